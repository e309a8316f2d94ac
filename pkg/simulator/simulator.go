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
	"io"
	"math/rand"
	"sync"
	"time"

	"jinr.ru/greenlab/go-cyton/pkg/layers"
	"jinr.ru/greenlab/go-cyton/pkg/log"
)

const (
	outQueueSize  = 1024
	readQueueSize = 256
)

// Simulator behaves like a Cyton board behind a serial port
type Simulator struct {
	opts *Options

	mu     sync.Mutex
	open   bool
	rnd    *rand.Rand
	state  *boardState
	out    chan []byte
	read   chan []byte
	done   chan struct{}
	wg     sync.WaitGroup
	opened time.Time

	readMu   sync.Mutex
	leftover []byte
}

var _ io.ReadWriteCloser = &Simulator{}

func NewSimulator(opts *Options) (*Simulator, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.SampleRate <= 0 || opts.BufferSize <= 0 {
		return nil, layers.ErrInvalidArgument{What: "sample rate and buffer size must be positive"}
	}
	return &Simulator{
		opts:  opts,
		rnd:   rand.New(rand.NewSource(opts.Seed)),
		state: newBoardState(opts),
	}, nil
}

func (s *Simulator) Options() *Options {
	return s.opts
}

// Open starts the sample generator and the fragmentation emulator
func (s *Simulator) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opts.SerialPortFailure {
		return ErrSerialPortFailure{What: "open"}
	}
	if s.open {
		return ErrAlreadyOpen{}
	}
	s.open = true
	s.opened = time.Now()
	s.out = make(chan []byte, outQueueSize)
	s.read = make(chan []byte, readQueueSize)
	s.done = make(chan struct{})
	fragRnd := rand.New(rand.NewSource(s.rnd.Int63()))

	s.wg.Add(2)
	go func(done chan struct{}) {
		defer s.wg.Done()
		s.generate(done)
	}(s.done)
	go func(in, out chan []byte, done chan struct{}) {
		defer s.wg.Done()
		newFragmenter(s.opts, fragRnd).run(in, out, done)
	}(s.out, s.read, s.done)
	log.Debug("Simulator opened with firmware %s", s.opts.FirmwareVersion)
	return nil
}

// Close stops streaming and unblocks pending reads with io.EOF
func (s *Simulator) Close() error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return ErrAlreadyClosed{}
	}
	s.open = false
	s.state.streaming = false
	close(s.done)
	s.mu.Unlock()
	s.wg.Wait()
	log.Debug("Simulator closed")
	return nil
}

// Read returns the bytes of the next chunk released by the fragmentation emulator
func (s *Simulator) Read(p []byte) (int, error) {
	s.readMu.Lock()
	defer s.readMu.Unlock()
	if len(s.leftover) == 0 {
		s.mu.Lock()
		read, done := s.read, s.done
		s.mu.Unlock()
		if done == nil {
			return 0, ErrNotOpen{}
		}
		select {
		case <-done:
			return 0, io.EOF
		default:
		}
		select {
		case data := <-read:
			s.leftover = data
		case <-done:
			return 0, io.EOF
		}
	}
	n := copy(p, s.leftover)
	s.leftover = s.leftover[n:]
	return n, nil
}

// Write interprets the bytes as board commands, replies are queued for reading
func (s *Simulator) Write(p []byte) (int, error) {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return 0, ErrNotOpen{}
	}
	if s.opts.SerialPortFailure {
		s.mu.Unlock()
		return 0, ErrSerialPortFailure{What: "write"}
	}
	var replies [][]byte
	for _, b := range p {
		if reply := s.state.handle(b); len(reply) > 0 {
			replies = append(replies, reply)
		}
	}
	out, done := s.out, s.done
	s.mu.Unlock()

	for _, reply := range replies {
		if !emit(out, done, reply) {
			return 0, ErrNotOpen{}
		}
	}
	return len(p), nil
}

// now is the board time in milliseconds since open, the drift option adds
// the given number of milliseconds every second
func (s *Simulator) now() int64 {
	elapsed := time.Since(s.opened)
	return elapsed.Milliseconds() + int64(elapsed.Seconds()*s.opts.Drift)
}

func emit(out chan []byte, done chan struct{}, data []byte) bool {
	select {
	case out <- data:
		return true
	case <-done:
		return false
	}
}
