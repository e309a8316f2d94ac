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
	"fmt"
)

type EventType int

const (
	EventSample EventType = iota
	EventDroppedPacket
	EventSynced
	EventEOT
	EventReady
	EventHardSet
	EventError
	EventRawFrame
	EventImpedance
	EventTimeLock
	EventTimeUnlock
)

var eventNames = map[EventType]string{
	EventSample:        "sample",
	EventDroppedPacket: "droppedPacket",
	EventSynced:        "synced",
	EventEOT:           "eot",
	EventReady:         "ready",
	EventHardSet:       "hardSet",
	EventError:         "error",
	EventRawFrame:      "rawFrame",
	EventImpedance:     "impedance",
	EventTimeLock:      "timeLock",
	EventTimeUnlock:    "timeUnlock",
}

func (e EventType) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", int(e))
}

type Sample struct {
	SampleNumber      int       `json:"sampleNumber"`
	ChannelData       []float64 `json:"channelData,omitempty"`
	ChannelDataCounts []int32   `json:"channelDataCounts,omitempty"`
	AuxData           []byte    `json:"auxData"`
	AccelData         []float64 `json:"accelData,omitempty"`
	Timestamp         int64     `json:"timestamp"`
	BoardTime         int64     `json:"boardTime,omitempty"`
	TimeOffset        int64     `json:"timeOffset"`
	// Synced is set for samples timestamped with the board clock
	Synced bool `json:"synced,omitempty"`
}

// SyncObject holds one round of the clock offset handshake, times are in milliseconds
type SyncObject struct {
	TimeSyncSent             int64   `json:"timeSyncSent"`
	TimeSyncSentConfirmation int64   `json:"timeSyncSentConfirmation"`
	TimeSyncSetPacket        int64   `json:"timeSyncSetPacket"`
	TimeRoundTrip            int64   `json:"timeRoundTrip"`
	TimeTransmission         float64 `json:"timeTransmission"`
	TimeOffset               float64 `json:"timeOffset"`
	TimeOffsetMaster         int64   `json:"timeOffsetMaster"`
	BoardTime                int64   `json:"boardTime"`
	Valid                    bool    `json:"valid"`
	Err                      error   `json:"-" yaml:"-"`
	Error                    string  `json:"error,omitempty"`
}

type Firmware struct {
	Major int    `json:"major" yaml:"major"`
	Minor int    `json:"minor" yaml:"minor"`
	Patch int    `json:"patch" yaml:"patch"`
	Raw   string `json:"raw" yaml:"raw"`
}

func (f Firmware) String() string {
	return fmt.Sprintf("v%d.%d.%d", f.Major, f.Minor, f.Patch)
}

const (
	BoardTypeCyton = "cyton"
	BoardTypeDaisy = "daisy"

	SampleRateCyton = 250
	SampleRateDaisy = 125
)

type BoardInfo struct {
	BoardType        string   `json:"boardType" yaml:"boardType"`
	NumberOfChannels int      `json:"numberOfChannels" yaml:"numberOfChannels"`
	SampleRate       int      `json:"sampleRate" yaml:"sampleRate"`
	Firmware         Firmware `json:"firmware" yaml:"firmware"`
	MissedPackets    int      `json:"missedPackets" yaml:"missedPackets"`
}

type Impedance struct {
	Channel int    `json:"channel"`
	Ohms    uint32 `json:"ohms"`
}

// Notification is one event emitted by the engine, only the field matching Type is set
type Notification struct {
	Type      EventType
	Sample    *Sample
	Dropped   []int
	Sync      *SyncObject
	Text      string
	Info      *BoardInfo
	Err       error
	Raw       []byte
	Impedance *Impedance
}
