/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package simulator

import (
	"math"
	"math/rand"
	"time"

	"jinr.ru/greenlab/go-cyton/pkg/layers"
	"jinr.ru/greenlab/go-cyton/pkg/log"
)

const (
	vRef      = 4.5
	fullScale = 1<<23 - 1

	// amplitudes in volts
	noiseAmplitude      = 1e-6
	alphaAmplitude      = 10e-6
	lineNoiseAmplitude  = 5e-6
	testSignalAmplitude = 1.875e-3

	alphaFrequency = 10.0

	// gravityCounts is 1 g on the Z axis at 0.002/16 g per count
	gravityCounts = 8000

	// ImpedanceInterval is the number of samples between two impedance frames of a channel under test
	ImpedanceInterval = 50
)

func (s *Simulator) generate(done chan struct{}) {
	ticker := time.NewTicker(time.Second / time.Duration(s.opts.SampleRate))
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.mu.Lock()
			frames := s.state.tick(s.rnd, s.now())
			out := s.out
			s.mu.Unlock()
			for _, frame := range frames {
				if !emit(out, done, frame) {
					return
				}
			}
		}
	}
}

// tick returns the frames of one sample period, nothing while not streaming
func (st *boardState) tick(rnd *rand.Rand, boardTime int64) [][]byte {
	if !st.streaming {
		return nil
	}
	st.sampleNumber++
	st.sampleIndex++
	t := float64(st.sampleIndex) / float64(st.opts.SampleRate)

	// daisy boards send the lower channels with odd and the upper ones with even sample numbers
	offset := 0
	if st.daisy && st.sampleNumber%2 == 0 {
		offset = layers.ChannelsPerFrame
	}
	var channels [layers.ChannelsPerFrame]int32
	for i := range channels {
		channels[i] = st.channelValue(rnd, offset+i, t)
	}

	var frames [][]byte
	frame, err := st.sampleFrame(rnd, channels, boardTime)
	if err != nil {
		log.Error("Simulator failed to build a frame: %s", err)
		return nil
	}
	frames = append(frames, frame)

	if st.sampleIndex%ImpedanceInterval == 0 {
		for ch, on := range st.impedance {
			if !on {
				continue
			}
			imp, err := layers.NewFrame(uint8(ch+1), layers.PacketTypeImpedance,
				&layers.ImpedanceLayer{Ohms: uint32(5000 + rnd.Intn(1000))})
			if err != nil {
				log.Error("Simulator failed to build an impedance frame: %s", err)
				continue
			}
			frames = append(frames, imp)
		}
	}
	return frames
}

func (st *boardState) packetType() layers.PacketType {
	switch {
	case st.syncSetPending && st.opts.Accel:
		return layers.PacketTypeAccelTimeSyncSet
	case st.syncSetPending:
		return layers.PacketTypeRawAuxTimeSyncSet
	case st.synced && st.opts.Accel:
		return layers.PacketTypeAccelTimeSynced
	case st.synced:
		return layers.PacketTypeRawAuxTimeSynced
	case st.opts.Accel:
		return layers.PacketTypeStandardAccel
	}
	return layers.PacketTypeStandardRawAux
}

func (st *boardState) sampleFrame(rnd *rand.Rand, channels [layers.ChannelsPerFrame]int32, boardTime int64) ([]byte, error) {
	t := st.packetType()
	st.syncSetPending = false
	accel := [3]int16{
		int16(rnd.NormFloat64() * 10),
		int16(rnd.NormFloat64() * 10),
		gravityCounts + int16(rnd.NormFloat64()*10),
	}
	if t.IsTimeSyncSet() || t.IsTimeSynced() {
		payload := &layers.TimeSyncLayer{Channels: channels, BoardTime: int32(boardTime)}
		if t.HasAccel() {
			if axis := int(st.sampleNumber % 10); axis >= layers.AccelAxisX && axis <= layers.AccelAxisZ {
				v := accel[axis-layers.AccelAxisX]
				payload.Aux = [layers.TimeSyncAuxSize]byte{byte(v >> 8), byte(v)}
			}
		}
		return layers.NewFrame(st.sampleNumber, t, payload)
	}
	payload := &layers.SampleLayer{Channels: channels}
	if t.HasAccel() {
		payload.SetAccel(accel)
	}
	return layers.NewFrame(st.sampleNumber, t, payload)
}

// channelValue synthesizes one channel in counts at time t seconds
func (st *boardState) channelValue(rnd *rand.Rand, ch int, t float64) int32 {
	settings := st.channels[ch]
	if settings.PowerDown {
		return 0
	}
	v := rnd.NormFloat64() * noiseAmplitude
	if settings.InputType != "shorted" {
		if st.opts.Alpha {
			v += alphaAmplitude * math.Sin(2*math.Pi*alphaFrequency*t)
		}
		switch st.opts.LineNoise {
		case LineNoise60Hz:
			v += lineNoiseAmplitude * math.Sin(2*math.Pi*60*t)
		case LineNoise50Hz:
			v += lineNoiseAmplitude * math.Sin(2*math.Pi*50*t)
		}
		v += st.opts.ChannelDrift * t
	}
	if settings.InputType == "testsig" {
		v += st.testSignalValue(t)
	}
	counts := v / (vRef / float64(settings.Gain) / fullScale)
	return int32(math.Max(-fullScale, math.Min(fullScale, math.Round(counts))))
}

// testSignalValue follows the ADS1299 internal test source: a square wave or a dc level
func (st *boardState) testSignalValue(t float64) float64 {
	amplitude, frequency := testSignalAmplitude, 0.0
	switch st.testSignal {
	case 0:
		return 0
	case layers.TestSignals["dc"]:
		return amplitude
	case layers.TestSignals["pulse1xSlow"]:
		frequency = 1
	case layers.TestSignals["pulse1xFast"]:
		frequency = 2
	case layers.TestSignals["pulse2xSlow"]:
		amplitude, frequency = 2*amplitude, 1
	case layers.TestSignals["pulse2xFast"]:
		amplitude, frequency = 2*amplitude, 2
	}
	if math.Sin(2*math.Pi*frequency*t) >= 0 {
		return amplitude
	}
	return -amplitude
}
