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
	"context"
	"errors"
	"testing"
	"time"

	"github.com/beevik/ntp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jinr.ru/greenlab/go-cyton/pkg/layers"
)

func TestTimeSyncRoundTrip(t *testing.T) {
	ts := NewTimeSync()
	require.NoError(t, ts.Request(1000))
	assert.Equal(t, ErrSyncInFlight{}, ts.Request(1001))
	ts.Confirm(1002)

	obj := ts.Complete(timeSyncFrame(t, 1, layers.PacketTypeAccelTimeSyncSet, 500), 1030)
	require.True(t, obj.Valid)
	assert.Equal(t, int64(30), obj.TimeRoundTrip)
	assert.Equal(t, 28.0, obj.TimeTransmission)
	assert.Equal(t, int64(500), obj.BoardTime)
	assert.Equal(t, 502.0, obj.TimeOffset)
	assert.Equal(t, int64(502), obj.TimeOffsetMaster)
	assert.False(t, ts.InFlight())
}

func TestTimeSyncThreshold(t *testing.T) {
	cases := []struct {
		arrived      int64
		transmission float64
	}{
		// exactly at the threshold the estimate from the round trip is used
		{arrived: TimeSyncThreshold, transmission: TimeSyncThreshold * TimeSyncMultiplier},
		{arrived: TimeSyncThreshold - 1, transmission: (TimeSyncThreshold - 1) * TimeSyncMultiplier},
		{arrived: TimeSyncThreshold + 1, transmission: TimeSyncThreshold + 1},
	}
	for _, c := range cases {
		ts := NewTimeSync()
		require.NoError(t, ts.Request(0))
		ts.Confirm(0)
		obj := ts.Complete(timeSyncFrame(t, 1, layers.PacketTypeAccelTimeSyncSet, 0), c.arrived)
		require.True(t, obj.Valid)
		assert.InDelta(t, c.transmission, obj.TimeTransmission, 1e-9, "arrived %d", c.arrived)
	}
}

func TestTimeSyncFailures(t *testing.T) {
	frame := timeSyncFrame(t, 1, layers.PacketTypeAccelTimeSyncSet, 0)

	ts := NewTimeSync()
	obj := ts.Complete(frame, 10)
	assert.False(t, obj.Valid)
	assert.Equal(t, ErrSyncIsNull{}, obj.Err)

	require.NoError(t, ts.Request(0))
	obj = ts.Complete(frame, 10)
	assert.False(t, obj.Valid)
	assert.Equal(t, ErrNoConfirmation{}, obj.Err)

	require.NoError(t, ts.Request(0))
	ts.Confirm(1)
	obj = ts.Complete(frame[:20], 10)
	assert.False(t, obj.Valid)
	var length layers.ErrInvalidByteLength
	assert.True(t, errors.As(obj.Err, &length))

	require.NoError(t, ts.Request(0))
	ts.Abort()
	assert.False(t, ts.InFlight())
}

func TestTimeSyncWindow(t *testing.T) {
	ts := NewTimeSync()
	for i := 0; i < TimeSyncWindow+2; i++ {
		require.NoError(t, ts.Request(0))
		ts.Confirm(0)
		// transmission is 0.9 ms, board time makes the offset i*100 - 0.9
		ts.Complete(timeSyncFrame(t, 1, layers.PacketTypeAccelTimeSyncSet, int32(1-i*100)), 1)
	}
	// mean of 200..1100 minus 0.9
	assert.Equal(t, int64(649), ts.Master())

	ts.Reset()
	assert.Equal(t, int64(0), ts.Master())
}

func TestFloorMean(t *testing.T) {
	assert.Equal(t, int64(0), floorMean(nil))
	assert.Equal(t, int64(1), floorMean([]float64{1}))
	assert.Equal(t, int64(1), floorMean([]float64{1, 2}))
	assert.Equal(t, int64(-2), floorMean([]float64{-1, -2}))
	assert.Equal(t, int64(5), floorMean([]float64{1, 5, 9, 6}))
}

func TestNtpClock(t *testing.T) {
	c := NewNtpClock("localhost", 123)
	now := time.Now()
	c.query = func(host string, opt ntp.QueryOptions) (*ntp.Response, error) {
		assert.Equal(t, "localhost", host)
		assert.Equal(t, 123, opt.Port)
		return &ntp.Response{
			Time:          now,
			ReferenceTime: now,
			Stratum:       2,
			ClockOffset:   1500 * time.Millisecond,
		}, nil
	}
	c.Poll()
	assert.True(t, c.Locked())
	assert.Equal(t, int64(1500), c.Offset())
	assert.InDelta(t, time.Now().UnixMilli()+1500, c.Now(), 100)
	assert.Equal(t, EventTimeLock, (<-c.Events()).Type)

	c.query = func(host string, opt ntp.QueryOptions) (*ntp.Response, error) {
		return nil, errors.New("unreachable")
	}
	c.Poll()
	assert.False(t, c.Locked())
	assert.Equal(t, EventError, (<-c.Events()).Type)
	assert.Equal(t, EventTimeUnlock, (<-c.Events()).Type)
	assert.Equal(t, int64(1500), c.Offset())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Run(ctx)
}
