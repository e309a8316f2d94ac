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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jinr.ru/greenlab/go-cyton/pkg/layers"
	"jinr.ru/greenlab/go-cyton/pkg/simulator"
)

func newSimulatedBoard(t *testing.T, sim map[string]interface{}, configure ...func(*Options)) *Board {
	t.Helper()
	simOpts, err := simulator.NewOptions(sim)
	require.NoError(t, err)
	opts := DefaultOptions()
	opts.Simulate = true
	opts.Simulator = simOpts
	opts.WriteDelay = time.Millisecond
	for _, f := range configure {
		f(opts)
	}
	b := NewBoard(opts, NewDialer("", opts))
	t.Cleanup(func() {
		if b.IsConnected() {
			_ = b.Disconnect(context.Background())
		}
	})
	return b
}

// next waits for the next notification of type typ
func next(t *testing.T, ch <-chan Notification, typ EventType) Notification {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case n := <-ch:
			if n.Type == typ {
				return n
			}
		case <-timeout:
			t.Fatalf("timeout waiting for %s", typ)
		}
	}
}

func TestBoardConnect(t *testing.T) {
	ctx := context.Background()
	b := newSimulatedBoard(t, nil)
	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	require.NoError(t, b.Connect(ctx))
	assert.True(t, b.IsConnected())
	assert.Equal(t, ErrAlreadyConnected{}, b.Connect(ctx))
	assert.Equal(t, BoardTypeCyton, b.Info().BoardType)
	assert.Equal(t, 1, b.Info().Firmware.Major)
	assert.Equal(t, 8, b.NumberOfChannels())
	assert.Equal(t, SampleRateCyton, b.SampleRate())

	// the ready seen while connecting is not published twice
	ready := next(t, sub, EventReady)
	assert.Equal(t, BoardTypeCyton, ready.Info.BoardType)
	select {
	case n := <-sub:
		assert.NotEqual(t, EventReady, n.Type)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, b.Disconnect(ctx))
	assert.False(t, b.IsConnected())
	assert.Equal(t, ErrAlreadyDisconnected{}, b.Disconnect(ctx))
	assert.Equal(t, ErrNotConnected{}, b.Write(ctx, []byte{layers.CmdStreamStart}))
	assert.Equal(t, ErrNotConnected{}, b.StreamStart(ctx))

	// reconnecting gives a fresh session
	require.NoError(t, b.Connect(ctx))
	assert.True(t, b.IsConnected())
}

func TestBoardStream(t *testing.T) {
	ctx := context.Background()
	b := newSimulatedBoard(t, nil)
	require.NoError(t, b.Connect(ctx))
	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	assert.Equal(t, ErrNotStreaming{}, b.StreamStop(ctx))
	require.NoError(t, b.StreamStart(ctx))
	assert.Equal(t, ErrAlreadyStreaming{}, b.StreamStart(ctx))
	assert.True(t, b.IsStreaming())

	s := next(t, sub, EventSample).Sample
	assert.Len(t, s.ChannelData, 8)
	assert.Len(t, s.AccelData, 3)
	assert.Len(t, next(t, sub, EventRawFrame).Raw, layers.PacketSize)

	require.NoError(t, b.StreamStop(ctx))
	assert.False(t, b.IsStreaming())
}

func TestBoardDaisyStream(t *testing.T) {
	ctx := context.Background()
	b := newSimulatedBoard(t, map[string]interface{}{simulator.OptDaisy: true})
	require.NoError(t, b.Connect(ctx))
	assert.Equal(t, BoardTypeDaisy, b.Info().BoardType)

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)
	require.NoError(t, b.StreamStart(ctx))
	s := next(t, sub, EventSample).Sample
	assert.Len(t, s.ChannelData, 16)
	assert.Equal(t, 0, s.SampleNumber%2)
}

func TestBoardHardSetDaisy(t *testing.T) {
	ctx := context.Background()
	b := newSimulatedBoard(t, nil, func(o *Options) {
		o.HardSet = true
		o.BoardType = BoardTypeDaisy
	})
	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	require.NoError(t, b.Connect(ctx))
	next(t, sub, EventHardSet)
	ready := next(t, sub, EventReady)
	assert.Equal(t, BoardTypeDaisy, ready.Info.BoardType)
	assert.Equal(t, 16, b.NumberOfChannels())
	assert.Equal(t, SampleRateDaisy, b.SampleRate())

	require.NoError(t, b.HardSetBoardType(ctx, BoardTypeCyton))
	assert.Equal(t, 8, b.NumberOfChannels())
	assert.Equal(t, ErrInvalidBoardType{Type: "ganglion"}, b.HardSetBoardType(ctx, "ganglion"))
}

func TestBoardHardSetFailure(t *testing.T) {
	b := newSimulatedBoard(t, map[string]interface{}{simulator.OptDaisyCanBeAttached: false}, func(o *Options) {
		o.HardSet = true
		o.BoardType = BoardTypeDaisy
	})
	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	assert.Equal(t, ErrUnableToAttachDaisy{}, b.Connect(context.Background()))
	assert.False(t, b.IsConnected())
	next(t, sub, EventError)
}

func TestBoardSerialPortFailure(t *testing.T) {
	b := newSimulatedBoard(t, map[string]interface{}{simulator.OptSerialPortFailure: true})
	assert.Error(t, b.Connect(context.Background()))
	assert.False(t, b.IsConnected())
}

func TestBoardSyncClocks(t *testing.T) {
	ctx := context.Background()
	b := newSimulatedBoard(t, map[string]interface{}{simulator.OptFirmwareVersion: "v2"})
	require.NoError(t, b.Connect(ctx))
	assert.Equal(t, 2, b.Info().Firmware.Major)

	_, err := b.SyncClocksFull(ctx)
	assert.Equal(t, ErrNotStreaming{}, err)

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)
	require.NoError(t, b.StreamStart(ctx))
	next(t, sub, EventSample)

	obj, err := b.SyncClocksFull(ctx)
	require.NoError(t, err)
	assert.True(t, obj.Valid)
	assert.GreaterOrEqual(t, obj.TimeRoundTrip, int64(0))
	assert.NotZero(t, obj.TimeOffsetMaster)

	// samples queued before the sync are not synced yet
	for !next(t, sub, EventSample).Sample.Synced {
	}
}

func TestBoardSyncClocksFirmwareV1(t *testing.T) {
	ctx := context.Background()
	b := newSimulatedBoard(t, nil)
	require.NoError(t, b.Connect(ctx))
	require.NoError(t, b.StreamStart(ctx))
	assert.Equal(t, ErrFirmware{What: "time sync needs firmware v2 or later"}, b.SyncClocks(ctx))
	_, err := b.RadioChannelGet(ctx)
	assert.ErrorAs(t, err, &ErrFirmware{})
}

func TestBoardRadio(t *testing.T) {
	ctx := context.Background()
	b := newSimulatedBoard(t, map[string]interface{}{simulator.OptFirmwareVersion: "v3"})
	require.NoError(t, b.Connect(ctx))

	channel, err := b.RadioChannelGet(ctx)
	require.NoError(t, err)
	assert.Equal(t, simulator.DefaultRadioChannel, channel)

	pollTime, err := b.RadioPollTimeGet(ctx)
	require.NoError(t, err)
	assert.Equal(t, simulator.DefaultRadioPollTime, pollTime)

	pollTime, err = b.RadioPollTimeSet(ctx, 60)
	require.NoError(t, err)
	assert.Equal(t, 60, pollTime)

	channel, err = b.RadioChannelSet(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, channel)
	_, err = b.RadioChannelSet(ctx, 26)
	assert.ErrorAs(t, err, &layers.ErrInvalidArgument{})

	up, err := b.RadioSystemStatus(ctx)
	require.NoError(t, err)
	assert.True(t, up)

	// the host leaves the board behind
	_, err = b.RadioChannelSetOverride(ctx, 9)
	require.NoError(t, err)
	up, err = b.RadioSystemStatus(ctx)
	require.NoError(t, err)
	assert.False(t, up)
	_, err = b.RadioPollTimeGet(ctx)
	assert.ErrorAs(t, err, &ErrRadio{})

	// baud rate replies come from the dongle itself
	rate, err := b.RadioBaudRateSet(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, layers.BaudRateFast, rate)
	rate, err = b.RadioBaudRateSet(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, layers.BaudRateDefault, rate)
}

func TestBoardChannelCommands(t *testing.T) {
	ctx := context.Background()
	b := newSimulatedBoard(t, map[string]interface{}{simulator.OptFirmwareVersion: "v2"})
	require.NoError(t, b.Connect(ctx))

	settings := &layers.ChannelSettings{Channel: 2, Gain: 8, InputType: "testsig", Bias: true, SRB2: true}
	require.NoError(t, b.ChannelSet(ctx, settings))
	require.NoError(t, b.ChannelOff(ctx, 3))
	require.NoError(t, b.ImpedanceSet(ctx, 4, true, false))
	require.NoError(t, b.TestSignal(ctx, "pulse1xFast"))
	assert.Equal(t, ErrInvalidTestSignal{Name: "square"}, b.TestSignal(ctx, "square"))

	read, err := b.RegisterQuery(ctx)
	require.NoError(t, err)
	require.Len(t, read, 8)
	assert.Equal(t, settings, read[1])
	assert.True(t, read[2].PowerDown)

	require.NoError(t, b.Defaults(ctx))
	read, err = b.RegisterQuery(ctx)
	require.NoError(t, err)
	assert.Equal(t, layers.DefaultChannelSettings(2), read[1])

	text, err := b.SDStart(ctx, "5min")
	require.NoError(t, err)
	assert.Contains(t, text, "5min")
	_, err = b.SDStart(ctx, "3days")
	assert.Equal(t, ErrInvalidSDDuration{Duration: "3days"}, err)
	_, err = b.SDStop(ctx)
	require.NoError(t, err)
}

func TestBoardFailure(t *testing.T) {
	ctx := context.Background()
	b := newSimulatedBoard(t, map[string]interface{}{
		simulator.OptFirmwareVersion: "v2",
		simulator.OptBoardFailure:    true,
	})
	require.NoError(t, b.Connect(ctx))

	err := b.ChannelSet(ctx, layers.DefaultChannelSettings(1))
	assert.ErrorAs(t, err, &ErrCommandFailed{})
	up, err := b.RadioSystemStatus(ctx)
	require.NoError(t, err)
	assert.False(t, up)
	rate, err := b.RadioBaudRateSet(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, layers.BaudRateFast, rate)
}

func TestBoardSoftReset(t *testing.T) {
	ctx := context.Background()
	b := newSimulatedBoard(t, map[string]interface{}{simulator.OptFirmwareVersion: "v2"})
	require.NoError(t, b.Connect(ctx))
	require.NoError(t, b.StreamStart(ctx))

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)
	require.NoError(t, b.SoftReset(ctx))
	assert.False(t, b.IsStreaming())
	ready := next(t, sub, EventReady)
	assert.Equal(t, 2, ready.Info.Firmware.Major)
}

func TestBoardHardSetRemoveFailure(t *testing.T) {
	ctx := context.Background()
	b := newSimulatedBoard(t, map[string]interface{}{
		simulator.OptDaisy:        true,
		simulator.OptBoardFailure: true,
	})
	require.NoError(t, b.Connect(ctx))
	require.Equal(t, 16, b.NumberOfChannels())

	err := b.HardSetBoardType(ctx, BoardTypeCyton)
	assert.ErrorAs(t, err, &ErrUnableToRemoveDaisy{})
	assert.Equal(t, BoardTypeDaisy, b.Info().BoardType)
	assert.Equal(t, 16, b.NumberOfChannels())
}

func TestCheckChannelCountReply(t *testing.T) {
	assert.NoError(t, checkChannelCountReply(BoardTypeCyton, "daisy removed"))
	assert.NoError(t, checkChannelCountReply(BoardTypeCyton, ""))
	assert.NoError(t, checkChannelCountReply(BoardTypeCyton, "no daisy to remove"))
	assert.Equal(t, ErrUnableToRemoveDaisy{Reply: "Failure: Board not responding"},
		checkChannelCountReply(BoardTypeCyton, "Failure: Board not responding"))
	assert.Error(t, checkChannelCountReply(BoardTypeCyton, "garbage"))

	assert.NoError(t, checkChannelCountReply(BoardTypeDaisy, "daisy attached16"))
	assert.NoError(t, checkChannelCountReply(BoardTypeDaisy, "16"))
	assert.Equal(t, ErrUnableToAttachDaisy{}, checkChannelCountReply(BoardTypeDaisy, "no daisy to attach!"))
	assert.Equal(t, ErrUnableToAttachDaisy{}, checkChannelCountReply(BoardTypeDaisy, "Failure: Board not responding"))
}

// requestSync starts a sync round without sending the command, the board never answers it
func requestSync(t *testing.T, b *Board) {
	t.Helper()
	var err error
	require.NoError(t, b.do(context.Background(), func(c *Conn) { err = c.RequestSync(0) }))
	require.NoError(t, err)
}

func syncInFlight(t *testing.T, b *Board) bool {
	t.Helper()
	var inFlight bool
	require.NoError(t, b.do(context.Background(), func(c *Conn) { inFlight = c.SyncInFlight() }))
	return inFlight
}

func TestBoardSoftResetDropsSync(t *testing.T) {
	ctx := context.Background()
	b := newSimulatedBoard(t, map[string]interface{}{simulator.OptFirmwareVersion: "v2"})
	require.NoError(t, b.Connect(ctx))
	require.NoError(t, b.StreamStart(ctx))

	requestSync(t, b)
	assert.Equal(t, ErrSyncInFlight{}, b.SyncClocks(ctx))

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)
	require.NoError(t, b.SoftReset(ctx))
	next(t, sub, EventReady)
	assert.False(t, syncInFlight(t, b))

	require.NoError(t, b.StreamStart(ctx))
	next(t, sub, EventSample)
	obj, err := b.SyncClocksFull(ctx)
	require.NoError(t, err)
	assert.True(t, obj.Valid)
}

func TestBoardStreamStopDropsSync(t *testing.T) {
	ctx := context.Background()
	b := newSimulatedBoard(t, map[string]interface{}{simulator.OptFirmwareVersion: "v2"})
	require.NoError(t, b.Connect(ctx))
	require.NoError(t, b.StreamStart(ctx))

	requestSync(t, b)
	require.NoError(t, b.StreamStop(ctx))
	assert.False(t, syncInFlight(t, b))

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)
	require.NoError(t, b.StreamStart(ctx))
	next(t, sub, EventSample)
	_, err := b.SyncClocksFull(ctx)
	assert.NoError(t, err)
}
