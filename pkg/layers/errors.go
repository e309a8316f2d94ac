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
	"fmt"
)

// ErrInvalidByteLength returned when a frame is not exactly PacketSize bytes long
type ErrInvalidByteLength struct {
	Length int
}

func (e ErrInvalidByteLength) Error() string {
	return fmt.Sprintf("Invalid byte length: %d, must be %d", e.Length, PacketSize)
}

type ErrInvalidStartByte struct {
	Value byte
}

func (e ErrInvalidStartByte) Error() string {
	return fmt.Sprintf("Invalid start byte: 0x%02x, must be 0x%02x", e.Value, ByteStart)
}

type ErrInvalidStopByte struct {
	Value byte
}

func (e ErrInvalidStopByte) Error() string {
	return fmt.Sprintf("Invalid stop byte: 0x%02x", e.Value)
}

// ErrInvalidChannel returned when a channel number is out of range for a command
type ErrInvalidChannel struct {
	Channel int
}

func (e ErrInvalidChannel) Error() string {
	return fmt.Sprintf("Invalid channel number: %d, must be in range 1..%d", e.Channel, NumberOfChannelsDaisy)
}

// ErrInvalidArgument returned when a command argument can not be encoded
type ErrInvalidArgument struct {
	What string
}

func (e ErrInvalidArgument) Error() string {
	return fmt.Sprintf("Invalid argument: %s", e.What)
}
