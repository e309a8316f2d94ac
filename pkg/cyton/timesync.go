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
	"encoding/binary"
	"math"

	"jinr.ru/greenlab/go-cyton/pkg/layers"
)

const (
	// TimeSyncThreshold is the smallest transmission time, in ms, measured
	// from the confirmation byte that is trusted over the estimate
	TimeSyncThreshold = 10
	// TimeSyncMultiplier estimates the transmission time from the round trip
	TimeSyncMultiplier = 0.9
	// TimeSyncWindow is the number of offsets averaged into the master offset
	TimeSyncWindow = 10
)

// TimeSync runs the host side of the clock offset handshake
type TimeSync struct {
	inFlight  *SyncObject
	confirmed bool
	window    []float64
	master    int64
}

func NewTimeSync() *TimeSync {
	return &TimeSync{}
}

// Request starts a new round at time now
func (t *TimeSync) Request(now int64) error {
	if t.inFlight != nil {
		return ErrSyncInFlight{}
	}
	t.inFlight = &SyncObject{TimeSyncSent: now}
	t.confirmed = false
	return nil
}

func (t *TimeSync) InFlight() bool {
	return t.inFlight != nil
}

// Confirm records the arrival of the confirmation byte
func (t *TimeSync) Confirm(now int64) {
	if t.inFlight != nil {
		t.inFlight.TimeSyncSentConfirmation = now
		t.confirmed = true
	}
}

// Complete finalizes the round with the time sync set frame that arrived at the given time.
// The in flight round is discarded whatever the outcome.
func (t *TimeSync) Complete(frame []byte, arrived int64) *SyncObject {
	obj := t.inFlight
	t.inFlight = nil
	if obj == nil {
		return t.invalid(&SyncObject{TimeSyncSetPacket: arrived}, ErrSyncIsNull{})
	}
	obj.TimeSyncSetPacket = arrived
	if !t.confirmed {
		return t.invalid(obj, ErrNoConfirmation{})
	}
	if len(frame) != layers.PacketSize {
		return t.invalid(obj, layers.ErrInvalidByteLength{Length: len(frame)})
	}

	obj.TimeRoundTrip = arrived - obj.TimeSyncSent
	confirmGap := obj.TimeSyncSentConfirmation - obj.TimeSyncSent
	if obj.TimeRoundTrip-confirmGap > TimeSyncThreshold {
		obj.TimeTransmission = float64(obj.TimeRoundTrip - confirmGap)
	} else {
		obj.TimeTransmission = float64(obj.TimeRoundTrip) * TimeSyncMultiplier
	}
	obj.BoardTime = int64(int32(binary.BigEndian.Uint32(frame[layers.PositionTimeSyncTimeStart:])))
	obj.TimeOffset = float64(arrived) - obj.TimeTransmission - float64(obj.BoardTime)

	t.window = append(t.window, obj.TimeOffset)
	if len(t.window) > TimeSyncWindow {
		t.window = t.window[len(t.window)-TimeSyncWindow:]
	}
	t.master = floorMean(t.window)
	obj.TimeOffsetMaster = t.master
	obj.Valid = true
	return obj
}

func (t *TimeSync) invalid(obj *SyncObject, err error) *SyncObject {
	obj.Valid = false
	obj.Err = err
	obj.Error = err.Error()
	obj.TimeOffsetMaster = t.master
	return obj
}

// Abort drops the round in flight, used when the board never answers
func (t *TimeSync) Abort() {
	t.inFlight = nil
}

// Reset forgets every offset, the master offset goes back to zero
func (t *TimeSync) Reset() {
	t.inFlight = nil
	t.window = nil
	t.master = 0
}

func (t *TimeSync) Master() int64 {
	return t.master
}

func floorMean(values []float64) int64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return int64(math.Floor(sum / float64(len(values))))
}
