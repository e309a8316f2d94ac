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

const sampleNumberModulo = 256

// SequenceMonitor detects gaps in the 8 bit sample counter
type SequenceMonitor struct {
	previous int
}

func NewSequenceMonitor() *SequenceMonitor {
	return &SequenceMonitor{previous: -1}
}

// Check returns the sample numbers missing between the previous sample and current.
// The result is nil when there is no gap or when there is no previous sample.
func (m *SequenceMonitor) Check(current int) []int {
	previous := m.previous
	m.previous = current
	if previous < 0 {
		return nil
	}
	diff := ((current-previous)%sampleNumberModulo + sampleNumberModulo) % sampleNumberModulo
	if diff == 1 {
		return nil
	}
	// a repeated sample number means a full wrap was lost
	if diff == 0 {
		diff = sampleNumberModulo
	}
	missing := make([]int, 0, diff-1)
	for n := 1; n < diff; n++ {
		missing = append(missing, (previous+n)%sampleNumberModulo)
	}
	return missing
}

func (m *SequenceMonitor) Reset() {
	m.previous = -1
}
