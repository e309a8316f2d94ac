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

package layers

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

const (
	CmdStreamStart          = 'b'
	CmdStreamStop           = 's'
	CmdSoftReset            = 'v'
	CmdRegisterQuery        = '?'
	CmdDefaults             = 'd'
	CmdChannelSettingsStart = 'x'
	CmdChannelSettingsEnd   = 'X'
	CmdImpedanceStart       = 'z'
	CmdImpedanceEnd         = 'Z'
	CmdSDStop               = 'j'
	CmdChannelCount8        = 'c'
	CmdChannelCount16       = 'C'
	CmdTimeSync             = '<'

	// TimeSyncConfirmation is sent back by the board right after the sync command
	TimeSyncConfirmation = ','

	RadioKey = 0xF0

	RadioChannelGet         = 0x00
	RadioChannelSet         = 0x01
	RadioChannelSetOverride = 0x02
	RadioPollTimeGet        = 0x03
	RadioPollTimeSet        = 0x04
	RadioBaudRateDefault    = 0x05
	RadioBaudRateFast       = 0x06
	RadioSystemStatus       = 0x07

	// RadioChannelMax is the highest radio channel accepted by the dongle
	RadioChannelMax = 25

	BaudRateDefault = 115200
	BaudRateFast    = 230400
)

// EOT terminates every text block sent by the board
var EOT = []byte("$$$")

const (
	channelOffCommands = "12345678qwertyui"
	channelOnCommands  = "!@#$%^&*QWERTYUI"
	channelSetCommands = "12345678QWERTYUI"
)

// Gains lists the programmable gains in the order of their register codes
var Gains = []int{1, 2, 4, 6, 8, 12, 24}

const DefaultGain = 24

// InputTypes lists the channel multiplexer settings in the order of their register codes
var InputTypes = []string{"normal", "shorted", "biasMethod", "mvdd", "temp", "testsig", "biasDrp", "biasDrn"}

var SDCommands = map[string]byte{
	"14sec":  'a',
	"5min":   'A',
	"15min":  'S',
	"30min":  'F',
	"1hour":  'G',
	"2hour":  'H',
	"4hour":  'J',
	"12hour": 'K',
	"24hour": 'L',
}

// TestSignals maps signal names to commands. Ground is the same command as none.
var TestSignals = map[string]byte{
	"ground":      '0',
	"none":        '0',
	"pulse1xSlow": '-',
	"pulse1xFast": '=',
	"dc":          'p',
	"pulse2xSlow": '[',
	"pulse2xFast": ']',
}

func checkChannel(channel int) error {
	if channel < 1 || channel > NumberOfChannelsDaisy {
		return ErrInvalidChannel{Channel: channel}
	}
	return nil
}

func ChannelOffCommand(channel int) (byte, error) {
	if err := checkChannel(channel); err != nil {
		return 0, err
	}
	return channelOffCommands[channel-1], nil
}

func ChannelOnCommand(channel int) (byte, error) {
	if err := checkChannel(channel); err != nil {
		return 0, err
	}
	return channelOnCommands[channel-1], nil
}

// ChannelSetCommand returns the byte used to address a channel inside x..X and z..Z sequences
func ChannelSetCommand(channel int) (byte, error) {
	if err := checkChannel(channel); err != nil {
		return 0, err
	}
	return channelSetCommands[channel-1], nil
}

// ChannelFromSetCommand is the reverse of ChannelSetCommand
func ChannelFromSetCommand(b byte) (int, error) {
	i := strings.IndexByte(channelSetCommands, b)
	if i < 0 {
		return 0, ErrInvalidArgument{What: fmt.Sprintf("channel command 0x%02x", b)}
	}
	return i + 1, nil
}

// ChannelToggle decodes a channel on/off command. The second value is true for "on".
func ChannelToggle(b byte) (channel int, on bool, ok bool) {
	if i := strings.IndexByte(channelOffCommands, b); i >= 0 {
		return i + 1, false, true
	}
	if i := strings.IndexByte(channelOnCommands, b); i >= 0 {
		return i + 1, true, true
	}
	return 0, false, false
}

func GainCode(gain int) (byte, error) {
	for i, g := range Gains {
		if g == gain {
			return byte(i), nil
		}
	}
	return 0, ErrInvalidArgument{What: fmt.Sprintf("gain %d", gain)}
}

func InputTypeCode(inputType string) (byte, error) {
	for i, t := range InputTypes {
		if t == inputType {
			return byte(i), nil
		}
	}
	return 0, ErrInvalidArgument{What: fmt.Sprintf("input type %q", inputType)}
}

func boolChar(v bool) byte {
	if v {
		return '1'
	}
	return '0'
}

func charBool(b byte) (bool, error) {
	switch b {
	case '0':
		return false, nil
	case '1':
		return true, nil
	}
	return false, ErrInvalidArgument{What: fmt.Sprintf("flag 0x%02x", b)}
}

// ChannelSettings describes one ADS1299 channel
type ChannelSettings struct {
	Channel   int    `json:"channel" yaml:"channel"`
	PowerDown bool   `json:"powerDown" yaml:"powerDown"`
	Gain      int    `json:"gain" yaml:"gain"`
	InputType string `json:"inputType" yaml:"inputType"`
	Bias      bool   `json:"bias" yaml:"bias"`
	SRB2      bool   `json:"srb2" yaml:"srb2"`
	SRB1      bool   `json:"srb1" yaml:"srb1"`
}

// DefaultChannelSettings are the power up settings of every channel
func DefaultChannelSettings(channel int) *ChannelSettings {
	return &ChannelSettings{
		Channel:   channel,
		Gain:      DefaultGain,
		InputType: InputTypes[0],
		Bias:      true,
		SRB2:      true,
	}
}

// Commands encodes the settings as the nine bytes x, channel, power, gain, input, bias, srb2, srb1, X.
// Each byte is written separately.
func (s *ChannelSettings) Commands() ([]byte, error) {
	ch, err := ChannelSetCommand(s.Channel)
	if err != nil {
		return nil, err
	}
	gain, err := GainCode(s.Gain)
	if err != nil {
		return nil, err
	}
	input, err := InputTypeCode(s.InputType)
	if err != nil {
		return nil, err
	}
	return []byte{
		CmdChannelSettingsStart,
		ch,
		boolChar(s.PowerDown),
		'0' + gain,
		'0' + input,
		boolChar(s.Bias),
		boolChar(s.SRB2),
		boolChar(s.SRB1),
		CmdChannelSettingsEnd,
	}, nil
}

// ParseChannelSettingsCommand decodes the nine byte sequence produced by Commands
func ParseChannelSettingsCommand(cmd []byte) (*ChannelSettings, error) {
	if len(cmd) != 9 || cmd[0] != CmdChannelSettingsStart || cmd[8] != CmdChannelSettingsEnd {
		return nil, ErrInvalidArgument{What: fmt.Sprintf("channel settings %q", cmd)}
	}
	ch, err := ChannelFromSetCommand(cmd[1])
	if err != nil {
		return nil, err
	}
	s := &ChannelSettings{Channel: ch}
	gain, input := int(cmd[3]-'0'), int(cmd[4]-'0')
	if gain < 0 || gain >= len(Gains) {
		return nil, ErrInvalidArgument{What: fmt.Sprintf("gain code %q", cmd[3])}
	}
	if input < 0 || input >= len(InputTypes) {
		return nil, ErrInvalidArgument{What: fmt.Sprintf("input type code %q", cmd[4])}
	}
	s.Gain, s.InputType = Gains[gain], InputTypes[input]
	if s.PowerDown, err = charBool(cmd[2]); err != nil {
		return nil, err
	}
	if s.Bias, err = charBool(cmd[5]); err != nil {
		return nil, err
	}
	if s.SRB2, err = charBool(cmd[6]); err != nil {
		return nil, err
	}
	if s.SRB1, err = charBool(cmd[7]); err != nil {
		return nil, err
	}
	return s, nil
}

// ImpedanceCommand encodes z, channel, p, n, Z
func ImpedanceCommand(channel int, pInput, nInput bool) ([]byte, error) {
	ch, err := ChannelSetCommand(channel)
	if err != nil {
		return nil, err
	}
	return []byte{CmdImpedanceStart, ch, boolChar(pInput), boolChar(nInput), CmdImpedanceEnd}, nil
}

// ParseImpedanceCommand decodes the five byte sequence produced by ImpedanceCommand
func ParseImpedanceCommand(cmd []byte) (channel int, pInput, nInput bool, err error) {
	if len(cmd) != 5 || cmd[0] != CmdImpedanceStart || cmd[4] != CmdImpedanceEnd {
		return 0, false, false, ErrInvalidArgument{What: fmt.Sprintf("impedance %q", cmd)}
	}
	if channel, err = ChannelFromSetCommand(cmd[1]); err != nil {
		return
	}
	if pInput, err = charBool(cmd[2]); err != nil {
		return
	}
	nInput, err = charBool(cmd[3])
	return
}

// RadioCommand encodes a radio request, the argument is only sent for set commands
func RadioCommand(cmd byte, arg ...byte) []byte {
	return append([]byte{RadioKey, cmd}, arg...)
}

// ChannelRegister packs the CHnSET register value: power down, gain, SRB2 and input mux
func (s *ChannelSettings) ChannelRegister() byte {
	gain, _ := GainCode(s.Gain)
	input, _ := InputTypeCode(s.InputType)
	var v byte
	if s.PowerDown {
		v |= 0x80
	}
	v |= gain << 4
	if s.SRB2 {
		v |= 0x08
	}
	v |= input & 0x07
	return v
}

func applyChannelRegister(s *ChannelSettings, v byte) {
	s.PowerDown = v&0x80 != 0
	s.Gain = Gains[int(v>>4&0x07)%len(Gains)]
	s.SRB2 = v&0x08 != 0
	s.InputType = InputTypes[v&0x07]
}

const (
	RegisterAddrChannelSet = 0x05
	RegisterAddrBiasSensP  = 0x0D
	RegisterAddrMisc1      = 0x15

	registerBlockHeader = "ADS Registers"
)

func registerLine(name string, addr, value byte) string {
	var bits strings.Builder
	for i := 7; i >= 0; i-- {
		fmt.Fprintf(&bits, ", %d", value>>uint(i)&1)
	}
	return fmt.Sprintf("%s, %02X, %02X%s\n", name, addr, value, bits.String())
}

// RegisterDump renders the channel related ADS1299 registers the way the board prints them
// in reply to a register query. The first 8 settings go to the on board chip, the rest to the daisy.
func RegisterDump(settings []*ChannelSettings) string {
	var sb strings.Builder
	for block := 0; block*ChannelsPerFrame < len(settings); block++ {
		end := (block + 1) * ChannelsPerFrame
		if end > len(settings) {
			end = len(settings)
		}
		chunk := settings[block*ChannelsPerFrame : end]
		if block == 0 {
			sb.WriteString("Board " + registerBlockHeader + "\n")
		} else {
			sb.WriteString("Daisy " + registerBlockHeader + "\n")
		}
		sb.WriteString(registerLine("ID", 0x00, 0x3E))
		var biasSensP, misc1 byte
		for i, s := range chunk {
			sb.WriteString(registerLine(fmt.Sprintf("CH%dSET", i+1), RegisterAddrChannelSet+byte(i), s.ChannelRegister()))
			if s.Bias {
				biasSensP |= 1 << uint(i)
			}
			if s.SRB1 {
				misc1 = 0x20
			}
		}
		sb.WriteString(registerLine("BIAS_SENSP", RegisterAddrBiasSensP, biasSensP))
		sb.WriteString(registerLine("MISC1", RegisterAddrMisc1, misc1))
	}
	return sb.String()
}

// ParseRegisterDump extracts channel settings from a register query reply
func ParseRegisterDump(text string) ([]*ChannelSettings, error) {
	var settings []*ChannelSettings
	block := -1
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasSuffix(line, registerBlockHeader) {
			block++
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) < 3 || block < 0 {
			continue
		}
		name := strings.TrimSpace(fields[0])
		value, err := strconv.ParseUint(strings.TrimSpace(fields[2]), 16, 8)
		if err != nil {
			return nil, ErrInvalidArgument{What: fmt.Sprintf("register line %q", line)}
		}
		base := block * ChannelsPerFrame
		if base > len(settings) {
			base = len(settings)
		}
		switch {
		case strings.HasPrefix(name, "CH") && strings.HasSuffix(name, "SET"):
			n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "CH"), "SET"))
			if err != nil || n < 1 || n > ChannelsPerFrame {
				return nil, ErrInvalidArgument{What: fmt.Sprintf("register name %q", name)}
			}
			s := &ChannelSettings{Channel: base + n}
			applyChannelRegister(s, byte(value))
			settings = append(settings, s)
		case name == "BIAS_SENSP":
			for _, s := range settings[base:] {
				s.Bias = value&(1<<uint(s.Channel-base-1)) != 0
			}
		case name == "MISC1":
			for _, s := range settings[base:] {
				s.SRB1 = value&0x20 != 0
			}
		}
	}
	if len(settings) == 0 {
		return nil, ErrInvalidArgument{What: "register dump without channel settings"}
	}
	return settings, nil
}
