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

// ErrSyncIsNull returned when a time sync set packet arrives without a sync request in flight
type ErrSyncIsNull struct{}

func (e ErrSyncIsNull) Error() string {
	return "Time sync set packet received without a sync request"
}

// ErrNoConfirmation returned when a time sync set packet arrives before the confirmation byte
type ErrNoConfirmation struct{}

func (e ErrNoConfirmation) Error() string {
	return "Time sync set packet received before the sync confirmation"
}

type ErrSyncInFlight struct{}

func (e ErrSyncInFlight) Error() string {
	return "Time sync already in progress"
}

type ErrAlreadyConnected struct{}

func (e ErrAlreadyConnected) Error() string {
	return "already connected!"
}

type ErrAlreadyDisconnected struct{}

func (e ErrAlreadyDisconnected) Error() string {
	return "already disconnected!"
}

// ErrNotConnected returned for every operation that needs an open transport,
// including writes that were still queued when the connection went away
type ErrNotConnected struct{}

func (e ErrNotConnected) Error() string {
	return "not connected"
}

type ErrAlreadyStreaming struct{}

func (e ErrAlreadyStreaming) Error() string {
	return "already streaming"
}

type ErrNotStreaming struct{}

func (e ErrNotStreaming) Error() string {
	return "not streaming"
}

type ErrUnableToAttachDaisy struct{}

func (e ErrUnableToAttachDaisy) Error() string {
	return "unable to attach daisy"
}

// ErrUnableToRemoveDaisy returned when the board does not confirm the daisy module was removed
type ErrUnableToRemoveDaisy struct {
	Reply string
}

func (e ErrUnableToRemoveDaisy) Error() string {
	return fmt.Sprintf("unable to remove daisy: %q", e.Reply)
}

type ErrInvalidBoardType struct {
	Type string
}

func (e ErrInvalidBoardType) Error() string {
	return fmt.Sprintf("Invalid board type: %s", e.Type)
}

type ErrInvalidSDDuration struct {
	Duration string
}

func (e ErrInvalidSDDuration) Error() string {
	return fmt.Sprintf("Invalid SD duration: %s", e.Duration)
}

type ErrInvalidTestSignal struct {
	Name string
}

func (e ErrInvalidTestSignal) Error() string {
	return fmt.Sprintf("Invalid test signal: %s", e.Name)
}

// ErrFirmware returned when an operation is not supported by the firmware of the board
type ErrFirmware struct {
	What string
}

func (e ErrFirmware) Error() string {
	return fmt.Sprintf("Not supported by firmware: %s", e.What)
}

type ErrTimeout struct {
	What string
}

func (e ErrTimeout) Error() string {
	return fmt.Sprintf("Timeout while waiting for %s", e.What)
}

// ErrRadio returned when the dongle answers a radio command with a failure
type ErrRadio struct {
	Message string
}

func (e ErrRadio) Error() string {
	return fmt.Sprintf("Radio failure: %s", e.Message)
}

// ErrCommandFailed returned when the board acknowledges a command with a failure
type ErrCommandFailed struct {
	Message string
}

func (e ErrCommandFailed) Error() string {
	return fmt.Sprintf("Command failed: %s", e.Message)
}
