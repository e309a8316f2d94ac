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

type ErrNotOpen struct{}

func (e ErrNotOpen) Error() string {
	return "Serial port not open"
}

type ErrAlreadyOpen struct{}

func (e ErrAlreadyOpen) Error() string {
	return "Serial port already open"
}

type ErrAlreadyClosed struct{}

func (e ErrAlreadyClosed) Error() string {
	return "Serial port already closed"
}

// ErrSerialPortFailure is the injected transport failure
type ErrSerialPortFailure struct {
	What string
}

func (e ErrSerialPortFailure) Error() string {
	return "Serial port failure on " + e.What
}
