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

// ParsingMode decides how the accumulated bytes are interpreted.
// Reset and EOT read text up to the EOT marker, Normal and TimeSyncSent read frames.
type ParsingMode int

const (
	ModeReset ParsingMode = iota
	ModeNormal
	ModeTimeSyncSent
	ModeEOT
)

func (m ParsingMode) String() string {
	switch m {
	case ModeReset:
		return "reset"
	case ModeNormal:
		return "normal"
	case ModeTimeSyncSent:
		return "timeSyncSent"
	case ModeEOT:
		return "eot"
	}
	return "unknown"
}

// IsText is true for the modes that accumulate text
func (m ParsingMode) IsText() bool {
	return m == ModeReset || m == ModeEOT
}
