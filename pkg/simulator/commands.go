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
	"fmt"
	"strings"

	"jinr.ru/greenlab/go-cyton/pkg/layers"
	"jinr.ru/greenlab/go-cyton/pkg/log"
)

const (
	msgDaisyRemoved      = "daisy removed"
	msgDaisyAttached     = "daisy attached16"
	msgDaisyAlready      = "16"
	msgNoDaisyToAttach   = "no daisy to attach!"
	msgBoardNotReachable = "Failure: Board not responding"
)

// boardState is everything the firmware keeps between commands.
// It is guarded by the simulator mutex.
type boardState struct {
	opts     *Options
	firmware int

	streaming bool
	daisy     bool
	failure   bool
	channels  [layers.NumberOfChannelsDaisy]*layers.ChannelSettings
	impedance [layers.NumberOfChannelsDaisy]bool
	// testSignal is the command of the active internal test signal, zero for none
	testSignal byte
	sdLogging  bool

	// pending holds a multi byte command until it is complete
	pending []byte
	radio   radioState

	synced         bool
	syncSetPending bool
	sampleNumber   uint8
	sampleIndex    int64
}

func newBoardState(opts *Options) *boardState {
	st := &boardState{
		opts:     opts,
		firmware: opts.FirmwareMajor(),
		daisy:    opts.Daisy,
		failure:  opts.BoardFailure,
		radio:    newRadioState(),
	}
	st.defaults()
	return st
}

func (st *boardState) defaults() {
	for i := range st.channels {
		st.channels[i] = layers.DefaultChannelSettings(i + 1)
		st.impedance[i] = false
	}
	st.testSignal = 0
}

func (st *boardState) numberOfChannels() int {
	if st.daisy {
		return layers.NumberOfChannelsDaisy
	}
	return layers.NumberOfChannelsCyton
}

// reply terminates text with the end of transmission marker
func reply(text string) []byte {
	return append([]byte(text), layers.EOT...)
}

// ack is the text acknowledgement of firmware v2 and later
func (st *boardState) ack(success string) []byte {
	if st.firmware < 2 {
		return nil
	}
	if st.failure {
		return reply(msgBoardNotReachable)
	}
	return reply("Success: " + success)
}

// handle interprets one command byte and returns what the board sends back
func (st *boardState) handle(b byte) []byte {
	if len(st.pending) > 0 {
		return st.continueSequence(b)
	}
	switch b {
	case layers.CmdStreamStart:
		if !st.streaming {
			st.streaming = true
			st.sampleNumber = 0
		}
		return nil
	case layers.CmdStreamStop:
		st.streaming = false
		return nil
	case layers.CmdSoftReset:
		st.softReset()
		return reply(st.identity())
	case layers.CmdRegisterQuery:
		if st.failure {
			return reply(msgBoardNotReachable)
		}
		return reply(layers.RegisterDump(st.channels[:st.numberOfChannels()]))
	case layers.CmdChannelSettingsStart, layers.CmdImpedanceStart:
		st.pending = []byte{b}
		return nil
	case layers.RadioKey:
		if st.firmware >= 2 {
			st.pending = []byte{b}
		}
		return nil
	case layers.CmdDefaults:
		st.defaults()
		return st.ack("Updated channels to default")
	case layers.CmdTimeSync:
		if st.firmware < 2 {
			return nil
		}
		st.synced = true
		st.syncSetPending = true
		return []byte{layers.TimeSyncConfirmation}
	case layers.CmdChannelCount8, layers.CmdChannelCount16:
		return st.channelCount(b == layers.CmdChannelCount16)
	case layers.CmdSDStop:
		if st.failure {
			return reply(msgBoardNotReachable)
		}
		st.sdLogging = false
		return reply("Total Elapsed Time: 0 ms")
	}
	if ch, on, ok := layers.ChannelToggle(b); ok {
		if ch <= st.numberOfChannels() {
			st.channels[ch-1].PowerDown = !on
		}
		return nil
	}
	for name, cmd := range layers.TestSignals {
		if cmd == b {
			st.setTestSignal(name, cmd)
			return st.ack("Configured internal test signal.")
		}
	}
	for duration, cmd := range layers.SDCommands {
		if cmd == b {
			if st.failure {
				return reply(msgBoardNotReachable)
			}
			st.sdLogging = true
			return reply("Wiring is correct and a card is present.\nCorresponding SD file OBCI_00.TXT, duration " + duration)
		}
	}
	log.Debug("Simulator ignores command 0x%02x", b)
	return nil
}

func (st *boardState) setTestSignal(name string, cmd byte) {
	if name == "none" || name == "ground" {
		st.testSignal = 0
		return
	}
	st.testSignal = cmd
}

func (st *boardState) softReset() {
	st.streaming = false
	st.synced = false
	st.syncSetPending = false
	st.pending = nil
	st.sdLogging = false
	st.defaults()
}

// identity is the text printed after a soft reset
func (st *boardState) identity() string {
	var sb strings.Builder
	sb.WriteString("OpenBCI V3 8-16 channel\n")
	sb.WriteString("On Board ADS1299 Device ID: 0x3E\n")
	if st.daisy {
		sb.WriteString("On Daisy ADS1299 Device ID: 0x3E\n")
	}
	sb.WriteString("LIS3DH Device ID: 0x33\n")
	if st.firmware >= 2 {
		fmt.Fprintf(&sb, "Firmware: v%d.0.0\n", st.firmware)
	}
	return sb.String()
}

func (st *boardState) channelCount(sixteen bool) []byte {
	if st.failure {
		return reply(msgBoardNotReachable)
	}
	switch {
	case !sixteen && st.daisy:
		st.daisy = false
		return reply(msgDaisyRemoved)
	case !sixteen:
		return reply("")
	case st.daisy:
		return reply(msgDaisyAlready)
	case st.opts.DaisyCanBeAttached:
		st.daisy = true
		return reply(msgDaisyAttached)
	}
	return reply(msgNoDaisyToAttach)
}

// continueSequence collects the bytes of x..X, z..Z and radio commands
func (st *boardState) continueSequence(b byte) []byte {
	st.pending = append(st.pending, b)
	switch st.pending[0] {
	case layers.CmdChannelSettingsStart:
		if len(st.pending) < 9 && b != layers.CmdChannelSettingsEnd {
			return nil
		}
		cmd := st.pending
		st.pending = nil
		settings, err := layers.ParseChannelSettingsCommand(cmd)
		if err != nil {
			return st.fail(err)
		}
		if settings.Channel > st.numberOfChannels() {
			return st.fail(layers.ErrInvalidChannel{Channel: settings.Channel})
		}
		st.channels[settings.Channel-1] = settings
		return st.ack(fmt.Sprintf("Channel set for %d", settings.Channel))
	case layers.CmdImpedanceStart:
		if len(st.pending) < 5 && b != layers.CmdImpedanceEnd {
			return nil
		}
		cmd := st.pending
		st.pending = nil
		ch, p, n, err := layers.ParseImpedanceCommand(cmd)
		if err != nil {
			return st.fail(err)
		}
		if ch > st.numberOfChannels() {
			return st.fail(layers.ErrInvalidChannel{Channel: ch})
		}
		st.impedance[ch-1] = p || n
		return st.ack(fmt.Sprintf("Lead off set for %d", ch))
	case layers.RadioKey:
		if len(st.pending) == 2 && radioNeedsArgument(st.pending[1]) {
			return nil
		}
		cmd := st.pending
		st.pending = nil
		var arg byte
		if len(cmd) > 2 {
			arg = cmd[2]
		}
		return st.handleRadio(cmd[1], arg)
	}
	st.pending = nil
	return nil
}

func (st *boardState) fail(err error) []byte {
	log.Debug("Simulator rejects command: %s", err)
	if st.firmware < 2 {
		return nil
	}
	return reply("Failure: " + err.Error())
}
