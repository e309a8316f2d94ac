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
	"strconv"

	"jinr.ru/greenlab/go-cyton/pkg/layers"
)

const (
	DefaultRadioChannel  = 0
	DefaultRadioPollTime = 80
)

// radioState belongs to the dongle, the host channel can differ from the board one
type radioState struct {
	systemChannel byte
	hostChannel   byte
	pollTime      byte
}

func newRadioState() radioState {
	return radioState{
		systemChannel: DefaultRadioChannel,
		hostChannel:   DefaultRadioChannel,
		pollTime:      DefaultRadioPollTime,
	}
}

func radioNeedsArgument(cmd byte) bool {
	switch cmd {
	case layers.RadioChannelSet, layers.RadioChannelSetOverride, layers.RadioPollTimeSet:
		return true
	}
	return false
}

// radioValue puts the value byte right before the end of transmission
func radioValue(text string, value byte) []byte {
	return reply(text + string([]byte{value}))
}

func (st *boardState) handleRadio(cmd, arg byte) []byte {
	r := &st.radio
	switch cmd {
	case layers.RadioChannelGet:
		if st.failure {
			return radioValue("Failure: Host on Channel Number ", r.systemChannel)
		}
		return radioValue("Success: Host and Device on Channel Number ", r.systemChannel)
	case layers.RadioChannelSet:
		if st.failure {
			return reply("Failure: No communication from Device")
		}
		if arg > layers.RadioChannelMax {
			return reply("Failure: Verify channel number is less than " + strconv.Itoa(layers.RadioChannelMax+1))
		}
		r.systemChannel, r.hostChannel = arg, arg
		return radioValue("Success: Channel Number ", arg)
	case layers.RadioChannelSetOverride:
		if arg > layers.RadioChannelMax {
			return reply("Failure: Verify channel number is less than " + strconv.Itoa(layers.RadioChannelMax+1))
		}
		r.hostChannel = arg
		st.failure = r.hostChannel != r.systemChannel
		return radioValue("Success: Host override - Channel Number ", arg)
	case layers.RadioPollTimeGet:
		if st.failure {
			return reply("Failure: No communication from Device")
		}
		return radioValue("Success: Poll Time ", r.pollTime)
	case layers.RadioPollTimeSet:
		if st.failure {
			return reply("Failure: No communication from Device")
		}
		r.pollTime = arg
		return radioValue("Success: Poll Time ", arg)
	case layers.RadioBaudRateDefault:
		return reply("Success: Switch your baud rate to " + strconv.Itoa(layers.BaudRateDefault))
	case layers.RadioBaudRateFast:
		return reply("Success: Switch your baud rate to " + strconv.Itoa(layers.BaudRateFast))
	case layers.RadioSystemStatus:
		if st.failure {
			return reply("Failure: System is Down")
		}
		return reply("Success: System is Up")
	}
	return reply("Failure: Unknown radio command")
}
