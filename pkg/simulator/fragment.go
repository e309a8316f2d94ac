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
	"math/rand"
	"time"

	"jinr.ru/greenlab/go-cyton/pkg/layers"
)

// fragmenter emulates how a USB serial adapter hands data to the host
type fragmenter struct {
	policy     string
	bufferSize int
	latency    time.Duration
	rnd        *rand.Rand
}

func newFragmenter(opts *Options, rnd *rand.Rand) *fragmenter {
	return &fragmenter{
		policy:     opts.Fragmentation,
		bufferSize: opts.BufferSize,
		latency:    opts.LatencyTime,
		rnd:        rnd,
	}
}

// SplitRandom cuts data at random points. The chunks keep the order and
// concatenate back to data.
func SplitRandom(rnd *rand.Rand, data []byte) [][]byte {
	var chunks [][]byte
	for len(data) > 0 {
		limit := 2 * layers.PacketSize
		if limit > len(data) {
			limit = len(data)
		}
		n := 1 + rnd.Intn(limit)
		chunks = append(chunks, data[:n])
		data = data[n:]
	}
	return chunks
}

func (f *fragmenter) run(in <-chan []byte, out chan<- []byte, done <-chan struct{}) {
	send := func(chunk []byte) bool {
		select {
		case out <- chunk:
			return true
		case <-done:
			return false
		}
	}
	if f.policy == FragmentationFullBuffers {
		f.runFullBuffers(in, send, done)
		return
	}
	for {
		select {
		case <-done:
			return
		case data := <-in:
			var chunks [][]byte
			switch f.policy {
			case FragmentationOneByOne:
				for i := range data {
					chunks = append(chunks, data[i:i+1])
				}
			case FragmentationRandom:
				chunks = SplitRandom(f.rnd, data)
			default:
				chunks = [][]byte{data}
			}
			for _, chunk := range chunks {
				if !send(chunk) {
					return
				}
			}
		}
	}
}

// runFullBuffers releases exactly bufferSize bytes at a time, or whatever was
// collected once the latency timer fires
func (f *fragmenter) runFullBuffers(in <-chan []byte, send func([]byte) bool, done <-chan struct{}) {
	var buf []byte
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	var expired <-chan time.Time
	arm := func() {
		if f.latency > 0 {
			timer.Reset(f.latency)
			expired = timer.C
		}
	}
	disarm := func() {
		if expired != nil && !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		expired = nil
	}
	defer timer.Stop()

	for {
		select {
		case <-done:
			return
		case data := <-in:
			if len(buf) == 0 {
				arm()
			}
			buf = append(buf, data...)
			flushed := false
			for len(buf) >= f.bufferSize {
				chunk := append([]byte(nil), buf[:f.bufferSize]...)
				buf = buf[f.bufferSize:]
				flushed = true
				if !send(chunk) {
					return
				}
			}
			if f.latency == 0 && len(buf) > 0 {
				if !send(buf) {
					return
				}
				buf = nil
			}
			if len(buf) == 0 {
				buf = nil
				disarm()
			} else if flushed {
				disarm()
				arm()
			}
		case <-expired:
			expired = nil
			if len(buf) > 0 {
				chunk := buf
				buf = nil
				if !send(chunk) {
					return
				}
			}
		}
	}
}
