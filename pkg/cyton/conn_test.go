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
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jinr.ru/greenlab/go-cyton/pkg/layers"
)

const (
	resetTextV2 = "OpenBCI V3 8-16 channel\nOn Board ADS1299 Device ID: 0x3E\nLIS3DH Device ID: 0x33\nFirmware: v2.0.0\n$$$"

	resetTextDaisy = "OpenBCI V3 8-16 channel\nOn Board ADS1299 Device ID: 0x3E\n" +
		"On Daisy ADS1299 Device ID: 0x3E\nLIS3DH Device ID: 0x33\n$$$"
)

// ofType drops the notifications of other types
func ofType(notes []Notification, t EventType) []Notification {
	var out []Notification
	for _, n := range notes {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

func readyConn(t *testing.T, text string) *Conn {
	t.Helper()
	c := NewConn(false)
	ready := ofType(c.Process([]byte(text), 0), EventReady)
	require.Len(t, ready, 1)
	require.Equal(t, ModeNormal, c.Mode())
	return c
}

func TestParseBoardInfo(t *testing.T) {
	info := ParseBoardInfo(resetTextV2)
	assert.Equal(t, BoardTypeCyton, info.BoardType)
	assert.Equal(t, 8, info.NumberOfChannels)
	assert.Equal(t, SampleRateCyton, info.SampleRate)
	assert.Equal(t, Firmware{Major: 2, Raw: "v2.0.0"}, info.Firmware)

	info = ParseBoardInfo(resetTextDaisy)
	assert.Equal(t, BoardTypeDaisy, info.BoardType)
	assert.Equal(t, 16, info.NumberOfChannels)
	assert.Equal(t, SampleRateDaisy, info.SampleRate)
	assert.Equal(t, 1, info.Firmware.Major)
}

func TestProcessReset(t *testing.T) {
	c := NewConn(false)
	assert.Equal(t, ModeReset, c.Mode())

	// reset text split over two chunks, frames are only parsed afterwards
	text := []byte(resetTextV2)
	assert.Empty(t, c.Process(text[:20], 0))
	notes := c.Process(append(text[20:], sampleFrame(t, 1, 100)...), 5)
	require.Len(t, notes, 3)
	assert.Equal(t, EventReady, notes[0].Type)
	assert.Equal(t, 2, notes[0].Info.Firmware.Major)
	assert.Equal(t, EventRawFrame, notes[1].Type)
	assert.Equal(t, EventSample, notes[2].Type)

	s := notes[2].Sample
	assert.Equal(t, 1, s.SampleNumber)
	assert.Len(t, s.ChannelData, 8)
	assert.InDelta(t, ScaleChannel(100, layers.DefaultGain), s.ChannelData[0], 1e-12)
	assert.Equal(t, int64(5), s.Timestamp)
	assert.Equal(t, []float64{0, 0, 0}, s.AccelData)
}

func TestProcessSendCounts(t *testing.T) {
	c := NewConn(true)
	c.Process([]byte(resetTextV2), 0)
	samples := ofType(c.Process(sampleFrame(t, 1, -5, 7), 0), EventSample)
	require.Len(t, samples, 1)
	assert.Nil(t, samples[0].Sample.ChannelData)
	assert.Equal(t, []int32{-5, 7, 0, 0, 0, 0, 0, 0}, samples[0].Sample.ChannelDataCounts)
}

func TestProcessGain(t *testing.T) {
	c := readyConn(t, resetTextV2)
	c.SetGain(1, 8)
	samples := ofType(c.Process(sampleFrame(t, 1, 1000), 0), EventSample)
	require.Len(t, samples, 1)
	assert.InDelta(t, ScaleChannel(1000, 8), samples[0].Sample.ChannelData[0], 1e-12)
}

func TestProcessDroppedAndBad(t *testing.T) {
	c := readyConn(t, resetTextV2)
	stream := append(sampleFrame(t, 1), []byte("junk")...)
	stream = append(stream, sampleFrame(t, 4)...)
	notes := c.Process(stream, 0)

	dropped := ofType(notes, EventDroppedPacket)
	require.Len(t, dropped, 1)
	assert.Equal(t, []int{2, 3}, dropped[0].Dropped)
	assert.Len(t, ofType(notes, EventSample), 2)
	assert.Equal(t, 1, c.BadPackets())
}

func TestProcessDaisy(t *testing.T) {
	c := readyConn(t, resetTextDaisy)
	stream := append(sampleFrame(t, 1, 1), sampleFrame(t, 2, 2)...)
	stream = append(stream, sampleFrame(t, 4, 4)...)
	samples := ofType(c.Process(stream, 0), EventSample)
	require.Len(t, samples, 1)
	s := samples[0].Sample
	assert.Len(t, s.ChannelData, 16)
	assert.InDelta(t, ScaleChannel(1, layers.DefaultGain), s.ChannelData[0], 1e-12)
	assert.InDelta(t, ScaleChannel(2, layers.DefaultGain), s.ChannelData[8], 1e-12)
	assert.Equal(t, 1, c.Info().MissedPackets)
}

func TestProcessEOT(t *testing.T) {
	c := readyConn(t, resetTextV2)
	c.SetMode(ModeEOT)
	assert.Empty(t, c.Process([]byte("Success: Poll Time P"), 0))
	notes := c.Process([]byte("$$$"), 0)
	require.Len(t, notes, 1)
	assert.Equal(t, EventEOT, notes[0].Type)
	assert.Equal(t, "Success: Poll Time P", notes[0].Text)
	assert.Equal(t, ModeNormal, c.Mode())
}

func TestProcessTimeSync(t *testing.T) {
	c := readyConn(t, resetTextV2)
	require.NoError(t, c.RequestSync(1000))
	assert.Equal(t, ModeTimeSyncSent, c.Mode())
	assert.Equal(t, ErrSyncInFlight{}, c.RequestSync(1000))

	// a comma inside a frame, even one that looks like a frame boundary, is data
	frame := sampleFrame(t, 1)
	frame[5], frame[6], frame[7] = layers.ByteStop, layers.TimeSyncConfirmation, layers.ByteStart
	assert.Empty(t, ofType(c.Process(frame[:10], 1001), EventSample))
	assert.Len(t, ofType(c.Process(frame[10:], 1001), EventSample), 1)
	assert.Equal(t, ModeTimeSyncSent, c.Mode())

	notes := c.Process([]byte{layers.TimeSyncConfirmation}, 1002)
	assert.Empty(t, notes)
	assert.Equal(t, ModeNormal, c.Mode())

	notes = c.Process(timeSyncFrame(t, 2, layers.PacketTypeAccelTimeSyncSet, 500), 1030)
	synced := ofType(notes, EventSynced)
	require.Len(t, synced, 1)
	obj := synced[0].Sync
	require.True(t, obj.Valid)
	assert.Equal(t, int64(502), obj.TimeOffsetMaster)
	assert.Equal(t, int64(502), c.TimeOffsetMaster())

	samples := ofType(notes, EventSample)
	require.Len(t, samples, 1)
	assert.True(t, samples[0].Sample.Synced)
	assert.Equal(t, int64(500), samples[0].Sample.BoardTime)
	assert.Equal(t, int64(1002), samples[0].Sample.Timestamp)

	notes = c.Process(timeSyncFrame(t, 3, layers.PacketTypeAccelTimeSynced, 504), 1040)
	samples = ofType(notes, EventSample)
	require.Len(t, samples, 1)
	assert.Equal(t, int64(1006), samples[0].Sample.Timestamp)
	assert.Empty(t, ofType(notes, EventSynced))
}

func TestProcessConfirmationBetweenFrames(t *testing.T) {
	c := readyConn(t, resetTextV2)
	require.NoError(t, c.RequestSync(0))
	stream := append(sampleFrame(t, 1), layers.TimeSyncConfirmation)
	stream = append(stream, timeSyncFrame(t, 2, layers.PacketTypeRawAuxTimeSyncSet, 0)...)
	notes := c.Process(stream, 20)
	assert.Len(t, ofType(notes, EventSample), 2)
	synced := ofType(notes, EventSynced)
	require.Len(t, synced, 1)
	assert.True(t, synced[0].Sync.Valid)
	assert.Equal(t, 0, c.BadPackets())
}

func TestProcessUnexpectedSyncSet(t *testing.T) {
	c := readyConn(t, resetTextV2)
	notes := c.Process(timeSyncFrame(t, 1, layers.PacketTypeAccelTimeSyncSet, 0), 0)
	synced := ofType(notes, EventSynced)
	require.Len(t, synced, 1)
	assert.False(t, synced[0].Sync.Valid)
	assert.Equal(t, ErrSyncIsNull{}, synced[0].Sync.Err)
	assert.Len(t, ofType(notes, EventSample), 1)
}

func TestAbortSync(t *testing.T) {
	c := readyConn(t, resetTextV2)
	require.NoError(t, c.RequestSync(0))
	c.AbortSync(0)
	assert.Equal(t, ModeNormal, c.Mode())
	assert.False(t, c.SyncInFlight())
	require.NoError(t, c.RequestSync(0))
}

func TestProcessImpedance(t *testing.T) {
	c := readyConn(t, resetTextV2)
	frame, err := layers.NewFrame(3, layers.PacketTypeImpedance, &layers.ImpedanceLayer{Ohms: 5500})
	require.NoError(t, err)
	notes := ofType(c.Process(frame, 0), EventImpedance)
	require.Len(t, notes, 1)
	assert.Equal(t, Impedance{Channel: 3, Ohms: 5500}, *notes[0].Impedance)
}

func TestSetModeReset(t *testing.T) {
	c := readyConn(t, resetTextV2)
	c.Process(sampleFrame(t, 1)[:10], 0)
	c.SetMode(ModeReset)
	notes := c.Process([]byte(resetTextDaisy), 0)
	require.Len(t, notes, 1)
	assert.Equal(t, BoardTypeDaisy, notes[0].Info.BoardType)
}

func TestProcessBadPacketsSplit(t *testing.T) {
	stream := append([]byte("some noise between frames"), sampleFrame(t, 1)...)
	stream = append(stream, []byte("more")...)
	stream = append(stream, sampleFrame(t, 2)...)
	stream = append(stream, sampleFrame(t, 3)...)

	whole := readyConn(t, resetTextV2)
	whole.Process(stream, 0)
	require.Equal(t, 2, whole.BadPackets())

	for cut := 1; cut < len(stream); cut++ {
		c := readyConn(t, resetTextV2)
		c.Process(stream[:cut], 0)
		c.Process(stream[cut:], 0)
		assert.Equal(t, whole.BadPackets(), c.BadPackets(), "cut at %d", cut)
	}
}

func TestProcessTextBounded(t *testing.T) {
	c := readyConn(t, resetTextV2)
	c.SetMode(ModeEOT)
	for i := 0; i < 10; i++ {
		assert.Empty(t, c.Process(bytes.Repeat([]byte{'x'}, MaxTextLength), 0))
		assert.LessOrEqual(t, len(c.buffer), MaxTextLength)
	}
	notes := c.Process([]byte("Success$$$"), 0)
	require.Len(t, notes, 1)
	assert.True(t, strings.HasSuffix(notes[0].Text, "Success"))
	assert.Equal(t, ModeNormal, c.Mode())
}
