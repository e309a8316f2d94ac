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
	"jinr.ru/greenlab/go-cyton/pkg/layers"
)

// isFrameAt reports whether a confirmed frame starts at position i
func isFrameAt(buf []byte, i int) bool {
	return len(buf)-i >= layers.PacketSize &&
		buf[i] == layers.ByteStart &&
		layers.IsStopByte(buf[i+layers.PositionStopByte])
}

// Consume appends incoming to existing and splits the result into frames.
// Bytes in front of a confirmed frame are dropped, each contiguous run of them
// counts as one bad packet. A byte is only dropped when a whole frame could
// follow it, so the frames do not depend on how the input was split.
// The remainder is nil when nothing is left over.
func Consume(existing, incoming []byte) (frames [][]byte, remainder []byte, badPackets int) {
	frames, remainder, badPackets, _ = consume(existing, incoming, false)
	return frames, remainder, badPackets
}

// consume is Consume for a stream whose previous delivery may have ended inside
// a noise run, a run continued here is not counted again
func consume(existing, incoming []byte, noise bool) (frames [][]byte, remainder []byte, badPackets int, inNoise bool) {
	buf := existing
	if len(incoming) > 0 {
		buf = make([]byte, 0, len(existing)+len(incoming))
		buf = append(buf, existing...)
		buf = append(buf, incoming...)
	}

	i := 0
	for len(buf)-i >= layers.PacketSize {
		if isFrameAt(buf, i) {
			frame := make([]byte, layers.PacketSize)
			copy(frame, buf[i:i+layers.PacketSize])
			frames = append(frames, frame)
			i += layers.PacketSize
			noise = false
			continue
		}
		if !noise {
			badPackets++
			noise = true
		}
		i++
	}

	if i < len(buf) {
		remainder = make([]byte, len(buf)-i)
		copy(remainder, buf[i:])
	}
	return frames, remainder, badPackets, noise
}
