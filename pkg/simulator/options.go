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
	"time"

	"jinr.ru/greenlab/go-cyton/pkg/config"
)

const (
	OptAccel              = "accel"
	OptAlpha              = "alpha"
	OptBoardFailure       = "boardFailure"
	OptDaisy              = "daisy"
	OptDaisyCanBeAttached = "daisyCanBeAttached"
	OptDrift              = "drift"
	OptChannelDrift       = "channelDrift"
	OptFirmwareVersion    = "firmwareVersion"
	OptFragmentation      = "fragmentation"
	OptLatencyTime        = "latencyTime"
	OptBufferSize         = "bufferSize"
	OptLineNoise          = "lineNoise"
	OptSampleRate         = "sampleRate"
	OptSerialPortFailure  = "serialPortFailure"
	OptSeed               = "seed"
)

var knownOptions = []string{
	OptAccel, OptAlpha, OptBoardFailure, OptDaisy, OptDaisyCanBeAttached, OptDrift,
	OptChannelDrift, OptFirmwareVersion, OptFragmentation, OptLatencyTime, OptBufferSize,
	OptLineNoise, OptSampleRate, OptSerialPortFailure, OptSeed,
}

const (
	FirmwareV1 = "v1"
	FirmwareV2 = "v2"
	FirmwareV3 = "v3"

	FragmentationNone        = "none"
	FragmentationFullBuffers = "fullBuffers"
	FragmentationOneByOne    = "oneByOne"
	FragmentationRandom      = "random"

	LineNoise60Hz = "60Hz"
	LineNoise50Hz = "50Hz"
	LineNoiseNone = "none"

	DefaultSampleRate  = 250
	DefaultLatencyTime = 16
	DefaultBufferSize  = 4096
)

type Options struct {
	Accel              bool
	Alpha              bool
	BoardFailure       bool
	Daisy              bool
	DaisyCanBeAttached bool
	// Drift is the board clock drift in ms per second
	Drift float64
	// ChannelDrift is the baseline drift of every channel in volts per second
	ChannelDrift      float64
	FirmwareVersion   string
	Fragmentation     string
	LatencyTime       time.Duration
	BufferSize        int
	LineNoise         string
	SampleRate        int
	SerialPortFailure bool
	Seed              int64
}

func DefaultOptions() *Options {
	return &Options{
		Accel:              true,
		Alpha:              true,
		DaisyCanBeAttached: true,
		FirmwareVersion:    FirmwareV1,
		Fragmentation:      FragmentationNone,
		LatencyTime:        DefaultLatencyTime * time.Millisecond,
		BufferSize:         DefaultBufferSize,
		LineNoise:          LineNoise60Hz,
		SampleRate:         DefaultSampleRate,
		Seed:               time.Now().UnixNano(),
	}
}

// FirmwareMajor returns 1, 2 or 3
func (o *Options) FirmwareMajor() int {
	switch o.FirmwareVersion {
	case FirmwareV2:
		return 2
	case FirmwareV3:
		return 3
	}
	return 1
}

// NewOptions validates a raw option map, keys are case insensitive.
// The latency time is given in milliseconds.
func NewOptions(raw map[string]interface{}) (*Options, error) {
	normalized, err := config.NormalizeOptions(raw, knownOptions)
	if err != nil {
		return nil, err
	}
	in := config.Options(normalized)
	o := DefaultOptions()

	for key, b := range map[string]*bool{
		OptAccel:              &o.Accel,
		OptAlpha:              &o.Alpha,
		OptBoardFailure:       &o.BoardFailure,
		OptDaisy:              &o.Daisy,
		OptDaisyCanBeAttached: &o.DaisyCanBeAttached,
		OptSerialPortFailure:  &o.SerialPortFailure,
	} {
		if *b, err = in.Bool(key, *b); err != nil {
			return nil, err
		}
	}
	if o.Drift, err = in.Float(OptDrift, o.Drift); err != nil {
		return nil, err
	}
	if o.ChannelDrift, err = in.Float(OptChannelDrift, o.ChannelDrift); err != nil {
		return nil, err
	}
	if o.FirmwareVersion, err = in.String(OptFirmwareVersion, o.FirmwareVersion, FirmwareV1, FirmwareV2, FirmwareV3); err != nil {
		return nil, err
	}
	if o.Fragmentation, err = in.String(OptFragmentation, o.Fragmentation,
		FragmentationNone, FragmentationFullBuffers, FragmentationOneByOne, FragmentationRandom); err != nil {
		return nil, err
	}
	latency, err := in.Int(OptLatencyTime, DefaultLatencyTime)
	if err != nil {
		return nil, err
	}
	if latency < 0 {
		return nil, config.ErrInvalidOption{Key: OptLatencyTime, Reason: "must not be negative"}
	}
	o.LatencyTime = time.Duration(latency) * time.Millisecond
	if o.BufferSize, err = in.Int(OptBufferSize, o.BufferSize); err != nil {
		return nil, err
	}
	if o.BufferSize <= 0 {
		return nil, config.ErrInvalidOption{Key: OptBufferSize, Reason: "must be positive"}
	}
	if o.LineNoise, err = in.String(OptLineNoise, o.LineNoise, LineNoise60Hz, LineNoise50Hz, LineNoiseNone); err != nil {
		return nil, err
	}
	if o.SampleRate, err = in.Int(OptSampleRate, o.SampleRate); err != nil {
		return nil, err
	}
	if o.SampleRate <= 0 {
		return nil, config.ErrInvalidOption{Key: OptSampleRate, Reason: "must be positive"}
	}
	seed, err := in.Int(OptSeed, 0)
	if err != nil {
		return nil, err
	}
	if _, ok := normalized[OptSeed]; ok {
		o.Seed = int64(seed)
	}
	return o, nil
}
