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
	"time"

	"jinr.ru/greenlab/go-cyton/pkg/config"
	"jinr.ru/greenlab/go-cyton/pkg/simulator"
)

const (
	OptBaudRate                          = "baudRate"
	OptBoardType                         = "boardType"
	OptHardSet                           = "hardSet"
	OptSendCounts                        = "sendCounts"
	OptSimulate                          = "simulate"
	OptSimulatorBoardFailure             = "simulatorBoardFailure"
	OptSimulatorDaisyModuleAttached      = "simulatorDaisyModuleAttached"
	OptSimulatorDaisyModuleCanBeAttached = "simulatorDaisyModuleCanBeAttached"
	OptSimulatorFirmwareVersion          = "simulatorFirmwareVersion"
	OptSimulatorFragmentation            = "simulatorFragmentation"
	OptSimulatorHasAccelerometer         = "simulatorHasAccelerometer"
	OptSimulatorInternalClockDrift       = "simulatorInternalClockDrift"
	OptSimulatorInjectAlpha              = "simulatorInjectAlpha"
	OptSimulatorInjectLineNoise          = "simulatorInjectLineNoise"
	OptSimulatorSampleRate               = "simulatorSampleRate"
	OptSimulatorSerialPortFailure        = "simulatorSerialPortFailure"
	OptSntpTimeSync                      = "sntpTimeSync"
	OptSntpTimeSyncHost                  = "sntpTimeSyncHost"
	OptSntpTimeSyncPort                  = "sntpTimeSyncPort"
	OptWriteDelay                        = "writeDelay"
	OptReadyTimeout                      = "readyTimeout"
	OptSyncTimeout                       = "syncTimeout"
)

var knownOptions = []string{
	OptBaudRate, OptBoardType, OptHardSet, OptSendCounts, OptSimulate,
	OptSimulatorBoardFailure, OptSimulatorDaisyModuleAttached, OptSimulatorDaisyModuleCanBeAttached,
	OptSimulatorFirmwareVersion, OptSimulatorFragmentation, OptSimulatorHasAccelerometer,
	OptSimulatorInternalClockDrift, OptSimulatorInjectAlpha, OptSimulatorInjectLineNoise,
	OptSimulatorSampleRate, OptSimulatorSerialPortFailure,
	OptSntpTimeSync, OptSntpTimeSyncHost, OptSntpTimeSyncPort,
	OptWriteDelay, OptReadyTimeout, OptSyncTimeout,
}

const (
	DefaultBaudRate     = 115200
	DefaultWriteDelay   = 10 * time.Millisecond
	DefaultReadyTimeout = 5 * time.Second
	DefaultSyncTimeout  = 2 * time.Second
)

type Options struct {
	BaudRate   int
	BoardType  string
	HardSet    bool
	SendCounts bool
	Simulate   bool
	// Simulator holds the options handed to the simulator when Simulate is set
	Simulator    *simulator.Options
	SntpTimeSync bool
	SntpHost     string
	SntpPort     int
	WriteDelay   time.Duration
	ReadyTimeout time.Duration
	SyncTimeout  time.Duration
}

func DefaultOptions() *Options {
	return &Options{
		BaudRate:     DefaultBaudRate,
		BoardType:    BoardTypeCyton,
		Simulator:    simulator.DefaultOptions(),
		SntpHost:     DefaultNtpHost,
		SntpPort:     DefaultNtpPort,
		WriteDelay:   DefaultWriteDelay,
		ReadyTimeout: DefaultReadyTimeout,
		SyncTimeout:  DefaultSyncTimeout,
	}
}

// NewOptions validates a raw option map, keys are case insensitive.
// Durations are given in milliseconds.
func NewOptions(raw map[string]interface{}) (*Options, error) {
	normalized, err := config.NormalizeOptions(raw, knownOptions)
	if err != nil {
		return nil, err
	}
	in := config.Options(normalized)
	o := DefaultOptions()

	if o.BaudRate, err = in.Int(OptBaudRate, o.BaudRate); err != nil {
		return nil, err
	}
	boardType, err := in.String(OptBoardType, o.BoardType, "default", BoardTypeCyton, BoardTypeDaisy)
	if err != nil {
		return nil, err
	}
	if boardType == "default" {
		boardType = BoardTypeCyton
	}
	o.BoardType = boardType
	if o.HardSet, err = in.Bool(OptHardSet, o.HardSet); err != nil {
		return nil, err
	}
	if o.SendCounts, err = in.Bool(OptSendCounts, o.SendCounts); err != nil {
		return nil, err
	}
	if o.Simulate, err = in.Bool(OptSimulate, o.Simulate); err != nil {
		return nil, err
	}
	if o.SntpTimeSync, err = in.Bool(OptSntpTimeSync, o.SntpTimeSync); err != nil {
		return nil, err
	}
	if o.SntpHost, err = in.String(OptSntpTimeSyncHost, o.SntpHost); err != nil {
		return nil, err
	}
	if o.SntpPort, err = in.Int(OptSntpTimeSyncPort, o.SntpPort); err != nil {
		return nil, err
	}
	for key, d := range map[string]*time.Duration{
		OptWriteDelay:   &o.WriteDelay,
		OptReadyTimeout: &o.ReadyTimeout,
		OptSyncTimeout:  &o.SyncTimeout,
	} {
		ms, err := in.Int(key, int(d.Milliseconds()))
		if err != nil {
			return nil, err
		}
		*d = time.Duration(ms) * time.Millisecond
	}

	sim := map[string]interface{}{}
	for boardKey, simKey := range map[string]string{
		OptSimulatorBoardFailure:             simulator.OptBoardFailure,
		OptSimulatorDaisyModuleAttached:      simulator.OptDaisy,
		OptSimulatorDaisyModuleCanBeAttached: simulator.OptDaisyCanBeAttached,
		OptSimulatorFirmwareVersion:          simulator.OptFirmwareVersion,
		OptSimulatorFragmentation:            simulator.OptFragmentation,
		OptSimulatorHasAccelerometer:         simulator.OptAccel,
		OptSimulatorInternalClockDrift:       simulator.OptDrift,
		OptSimulatorInjectAlpha:              simulator.OptAlpha,
		OptSimulatorInjectLineNoise:          simulator.OptLineNoise,
		OptSimulatorSampleRate:               simulator.OptSampleRate,
		OptSimulatorSerialPortFailure:        simulator.OptSerialPortFailure,
	} {
		if v, ok := normalized[boardKey]; ok {
			sim[simKey] = v
		}
	}
	if o.Simulator, err = simulator.NewOptions(sim); err != nil {
		return nil, err
	}
	return o, nil
}
