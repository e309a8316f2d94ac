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

package cyton

import (
	"github.com/google/gopacket"

	"jinr.ru/greenlab/go-cyton/pkg/layers"
)

const (
	// ADS1299 reference voltage
	ADS1299Vref = 4.5
	// ADS1299 full scale count
	ADS1299FullScale = 1<<23 - 1
	// LIS3DH scale factor in g per count
	AccelScale = 0.002 / 16
)

func ScaleChannel(count int32, gain int) float64 {
	return float64(count) * ADS1299Vref / float64(gain) / ADS1299FullScale
}

func ScaleAccel(count int16) float64 {
	return float64(count) * AccelScale
}

// gainsFor returns the gains of the channels carried by a frame.
// The lower half of a daisy board sends odd sample numbers.
func (c *Conn) gainsFor(sampleNumber uint8) []int {
	if c.info.NumberOfChannels == layers.NumberOfChannelsDaisy && sampleNumber%2 == 0 {
		return c.gains[layers.ChannelsPerFrame:]
	}
	return c.gains[:layers.ChannelsPerFrame]
}

func (c *Conn) fillChannels(s *Sample, channels *[layers.ChannelsPerFrame]int32, gains []int) {
	if c.sendCounts {
		s.ChannelDataCounts = make([]int32, layers.ChannelsPerFrame)
		copy(s.ChannelDataCounts, channels[:])
		return
	}
	s.ChannelData = make([]float64, layers.ChannelsPerFrame)
	for i, v := range channels {
		s.ChannelData[i] = ScaleChannel(v, gains[i])
	}
}

// decodeSample turns a sample bearing packet into a Sample, nil if the payload is missing
func (c *Conn) decodeSample(frame *layers.FrameLayer, packet gopacket.Packet, arrived int64) *Sample {
	s := &Sample{
		SampleNumber: int(frame.SampleNumber),
		Timestamp:    arrived,
		TimeOffset:   c.sync.Master(),
	}
	gains := c.gainsFor(frame.SampleNumber)

	switch payload := packet.Layer(frame.NextLayerType()).(type) {
	case *layers.SampleLayer:
		c.fillChannels(s, &payload.Channels, gains)
		s.AuxData = append([]byte{}, payload.Aux[:]...)
		if frame.Type.HasAccel() {
			accel := payload.Accel()
			s.AccelData = []float64{ScaleAccel(accel[0]), ScaleAccel(accel[1]), ScaleAccel(accel[2])}
		}
	case *layers.TimeSyncLayer:
		c.fillChannels(s, &payload.Channels, gains)
		s.AuxData = append([]byte{}, payload.Aux[:]...)
		s.BoardTime = int64(payload.BoardTime)
		s.Timestamp = s.BoardTime + s.TimeOffset
		s.Synced = true
		if frame.Type.HasAccel() {
			s.AccelData = c.collectAccel(frame.SampleNumber, payload.AccelAxis())
		}
	default:
		return nil
	}
	return s
}

// collectAccel stores one axis sent in a synced frame and returns the vector once Z arrived
func (c *Conn) collectAccel(sampleNumber uint8, value int16) []float64 {
	switch sampleNumber % 10 {
	case layers.AccelAxisX:
		c.accel[0] = ScaleAccel(value)
	case layers.AccelAxisY:
		c.accel[1] = ScaleAccel(value)
	case layers.AccelAxisZ:
		c.accel[2] = ScaleAccel(value)
		return []float64{c.accel[0], c.accel[1], c.accel[2]}
	}
	return nil
}
