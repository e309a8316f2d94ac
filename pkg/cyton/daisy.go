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

// DaisyMerger pairs the lower (odd) and upper (even) halves sent by a daisy board
type DaisyMerger struct {
	pending *Sample
	missed  int
}

func NewDaisyMerger() *DaisyMerger {
	return &DaisyMerger{}
}

// Add returns the merged sample once both halves are known, nil otherwise
func (d *DaisyMerger) Add(s *Sample) *Sample {
	if s.SampleNumber%2 == 1 {
		if d.pending != nil {
			d.missed++
		}
		d.pending = s
		return nil
	}
	if d.pending == nil {
		d.missed++
		return nil
	}
	lower := d.pending
	d.pending = nil
	return mergeDaisy(lower, s)
}

func (d *DaisyMerger) Missed() int {
	return d.missed
}

func (d *DaisyMerger) Reset() {
	d.pending = nil
}

func mergeDaisy(lower, upper *Sample) *Sample {
	merged := &Sample{
		SampleNumber: upper.SampleNumber,
		AuxData:      append(append([]byte{}, lower.AuxData...), upper.AuxData...),
		Timestamp:    (lower.Timestamp + upper.Timestamp) / 2,
		BoardTime:    upper.BoardTime,
		TimeOffset:   upper.TimeOffset,
		Synced:       lower.Synced && upper.Synced,
	}
	if lower.ChannelData != nil || upper.ChannelData != nil {
		merged.ChannelData = append(append([]float64{}, lower.ChannelData...), upper.ChannelData...)
	}
	if lower.ChannelDataCounts != nil || upper.ChannelDataCounts != nil {
		merged.ChannelDataCounts = append(append([]int32{}, lower.ChannelDataCounts...), upper.ChannelDataCounts...)
	}
	switch {
	case lower.AccelData != nil:
		merged.AccelData = lower.AccelData
	case upper.AccelData != nil:
		merged.AccelData = upper.AccelData
	}
	return merged
}
