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
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"jinr.ru/greenlab/go-cyton/pkg/layers"
)

var firmwareRegexp = regexp.MustCompile(`Firmware: v(\d+)\.(\d+)\.(\d+)`)

// MaxTextLength bounds the text kept while waiting for the end of transmission,
// older bytes are dropped when a board never terminates its reply
const MaxTextLength = 4096

// Conn is the protocol state of one connection. It does no I/O and is not safe
// for concurrent use, the board engine goroutine is its only owner.
type Conn struct {
	ID string

	mode       ParsingMode
	buffer     []byte
	info       BoardInfo
	gains      [layers.NumberOfChannelsDaisy]int
	sendCounts bool
	accel      [3]float64
	badPackets int
	// noise is set while a run of dropped bytes may continue into the next delivery
	noise bool

	seq   *SequenceMonitor
	sync  *TimeSync
	daisy *DaisyMerger
}

func NewConn(sendCounts bool) *Conn {
	c := &Conn{
		ID:         uuid.NewString(),
		mode:       ModeReset,
		info:       cytonInfo(defaultFirmware()),
		sendCounts: sendCounts,
		seq:        NewSequenceMonitor(),
		sync:       NewTimeSync(),
		daisy:      NewDaisyMerger(),
	}
	for i := range c.gains {
		c.gains[i] = layers.DefaultGain
	}
	return c
}

func defaultFirmware() Firmware {
	return Firmware{Major: 1, Raw: "v1.0.0"}
}

func cytonInfo(fw Firmware) BoardInfo {
	return BoardInfo{
		BoardType:        BoardTypeCyton,
		NumberOfChannels: layers.NumberOfChannelsCyton,
		SampleRate:       SampleRateCyton,
		Firmware:         fw,
	}
}

// ParseBoardInfo reads the identity text printed by the board after a soft reset
func ParseBoardInfo(text string) BoardInfo {
	fw := defaultFirmware()
	if m := firmwareRegexp.FindStringSubmatch(text); m != nil {
		fw.Major, _ = strconv.Atoi(m[1])
		fw.Minor, _ = strconv.Atoi(m[2])
		fw.Patch, _ = strconv.Atoi(m[3])
		fw.Raw = "v" + m[1] + "." + m[2] + "." + m[3]
	}
	info := cytonInfo(fw)
	if strings.Contains(text, "Daisy") {
		info.BoardType = BoardTypeDaisy
		info.NumberOfChannels = layers.NumberOfChannelsDaisy
		info.SampleRate = SampleRateDaisy
	}
	return info
}

func (c *Conn) Mode() ParsingMode {
	return c.mode
}

// SetMode switches the parsing mode. Entering Reset drops whatever was buffered
// and the sync round in flight, the master offset survives.
func (c *Conn) SetMode(m ParsingMode) {
	if m == ModeReset {
		c.buffer = nil
		c.noise = false
		c.seq.Reset()
		c.sync.Abort()
		c.daisy.Reset()
	}
	c.mode = m
}

func (c *Conn) Info() BoardInfo {
	info := c.info
	info.MissedPackets = c.daisy.Missed()
	return info
}

// SetBoardType switches between 8 and 16 channels after a successful hard set
func (c *Conn) SetBoardType(boardType string) {
	if boardType == BoardTypeDaisy {
		c.info.BoardType = BoardTypeDaisy
		c.info.NumberOfChannels = layers.NumberOfChannelsDaisy
		c.info.SampleRate = SampleRateDaisy
	} else {
		c.info.BoardType = BoardTypeCyton
		c.info.NumberOfChannels = layers.NumberOfChannelsCyton
		c.info.SampleRate = SampleRateCyton
	}
	c.daisy.Reset()
}

func (c *Conn) SetGain(channel, gain int) {
	if channel >= 1 && channel <= len(c.gains) {
		c.gains[channel-1] = gain
	}
}

func (c *Conn) Gains() []int {
	return append([]int{}, c.gains[:]...)
}

func (c *Conn) BadPackets() int {
	return c.badPackets
}

func (c *Conn) TimeOffsetMaster() int64 {
	return c.sync.Master()
}

func (c *Conn) SyncInFlight() bool {
	return c.sync.InFlight()
}

// RequestSync starts a time sync round, the caller sends the sync command right after
func (c *Conn) RequestSync(now int64) error {
	if err := c.sync.Request(now); err != nil {
		return err
	}
	c.mode = ModeTimeSyncSent
	return nil
}

// AbortSync gives up on the round in flight and parses what was held back while waiting
func (c *Conn) AbortSync(now int64) []Notification {
	c.sync.Abort()
	if c.mode == ModeTimeSyncSent {
		c.mode = ModeNormal
	}
	return c.Process(nil, now)
}

// Reset invalidates everything learned on the connection
func (c *Conn) Reset() {
	c.mode = ModeReset
	c.buffer = nil
	c.noise = false
	c.accel = [3]float64{}
	c.seq.Reset()
	c.sync.Reset()
	c.daisy.Reset()
}

// Process consumes the bytes delivered at time arrived and returns the notifications in order
func (c *Conn) Process(data []byte, arrived int64) []Notification {
	c.buffer = append(c.buffer, data...)
	var out []Notification
	for {
		switch c.mode {
		case ModeReset, ModeEOT:
			idx := bytes.Index(c.buffer, layers.EOT)
			if idx < 0 {
				if len(c.buffer) > MaxTextLength {
					c.buffer = append([]byte(nil), c.buffer[len(c.buffer)-MaxTextLength:]...)
				}
				return out
			}
			text := string(c.buffer[:idx])
			c.buffer = c.buffer[idx+len(layers.EOT):]
			c.noise = false
			if c.mode == ModeReset {
				c.info = ParseBoardInfo(text)
				c.seq.Reset()
				c.daisy.Reset()
				info := c.Info()
				out = append(out, Notification{Type: EventReady, Info: &info})
			} else {
				out = append(out, Notification{Type: EventEOT, Text: text})
			}
			c.mode = ModeNormal
		case ModeTimeSyncSent:
			if i := findConfirmation(c.buffer); i >= 0 {
				c.sync.Confirm(arrived)
				c.buffer = append(c.buffer[:i:i], c.buffer[i+1:]...)
				c.mode = ModeNormal
				continue
			}
			return append(out, c.extract(arrived)...)
		default:
			return append(out, c.extract(arrived)...)
		}
	}
}

func (c *Conn) extract(arrived int64) []Notification {
	frames, remainder, bad, noise := consume(c.buffer, nil, c.noise)
	c.buffer = remainder
	c.noise = noise
	c.badPackets += bad
	var out []Notification
	for _, frame := range frames {
		out = append(out, c.route(frame, arrived)...)
	}
	return out
}

// findConfirmation looks for the sync confirmation byte between frames.
// Bytes inside a confirmed frame never match, a frame that is still
// incomplete stops the search until more data arrives.
func findConfirmation(buf []byte) int {
	for i := 0; i < len(buf); {
		if isFrameAt(buf, i) {
			i += layers.PacketSize
			continue
		}
		if buf[i] == layers.ByteStart && len(buf)-i < layers.PacketSize {
			return -1
		}
		if buf[i] == layers.TimeSyncConfirmation &&
			(i == 0 || layers.IsStopByte(buf[i-1])) &&
			(i == len(buf)-1 || buf[i+1] == layers.ByteStart) {
			return i
		}
		i++
	}
	return -1
}
