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
	"context"
	"io"
	"sync"
	"time"

	"jinr.ru/greenlab/go-cyton/pkg/log"
)

// drainer is implemented by serial ports that can wait for the output buffer to be sent
type drainer interface {
	Drain() error
}

type writeRequest struct {
	data   []byte
	result chan error
}

// Writer serializes command writes to the transport. A write starts only after
// the previous one drained and the minimum delay between writes elapsed.
type Writer struct {
	w     io.Writer
	delay time.Duration

	mu      sync.Mutex
	queue   []*writeRequest
	closed  bool
	signal  chan struct{}
	stopped chan struct{}
}

func NewWriter(w io.Writer, delay time.Duration) *Writer {
	wr := &Writer{
		w:       w,
		delay:   delay,
		signal:  make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go wr.run()
	return wr
}

// Write queues data and waits until it was written or rejected. When ctx ends
// first, data that is still queued never reaches the transport.
func (w *Writer) Write(ctx context.Context, data []byte) error {
	req := &writeRequest{data: data, result: make(chan error, 1)}
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrNotConnected{}
	}
	w.queue = append(w.queue, req)
	w.mu.Unlock()

	select {
	case w.signal <- struct{}{}:
	default:
	}

	select {
	case err := <-req.result:
		return err
	case <-ctx.Done():
	}
	if w.cancel(req) {
		return ctx.Err()
	}
	// already handed to the transport or rejected by Close
	return <-req.result
}

// cancel takes req out of the queue, false when the writer no longer holds it there
func (w *Writer) cancel(req *writeRequest) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, queued := range w.queue {
		if queued == req {
			w.queue = append(w.queue[:i:i], w.queue[i+1:]...)
			return true
		}
	}
	return false
}

func (w *Writer) next() (*writeRequest, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, false
	}
	if len(w.queue) == 0 {
		return nil, true
	}
	req := w.queue[0]
	w.queue = w.queue[1:]
	return req, true
}

func (w *Writer) run() {
	defer close(w.stopped)
	for {
		req, ok := w.next()
		if !ok {
			return
		}
		if req == nil {
			<-w.signal
			continue
		}
		log.Debug("Writing %q", req.data)
		_, err := w.w.Write(req.data)
		if err == nil {
			if d, ok := w.w.(drainer); ok {
				err = d.Drain()
			}
		}
		req.result <- err
		time.Sleep(w.delay)
	}
}

// Close rejects every queued write with ErrNotConnected, none of them reaches the transport
func (w *Writer) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	pending := w.queue
	w.queue = nil
	w.mu.Unlock()

	for _, req := range pending {
		req.result <- ErrNotConnected{}
	}
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

// Wait blocks until the writer goroutine exited
func (w *Writer) Wait() {
	<-w.stopped
}
