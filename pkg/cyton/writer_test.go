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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jinr.ru/greenlab/go-cyton/pkg/config"
)

// gatedWriter blocks every write until release is closed
type gatedWriter struct {
	started chan struct{}
	release chan struct{}

	mu      sync.Mutex
	written []string
}

func newGatedWriter() *gatedWriter {
	return &gatedWriter{started: make(chan struct{}, 16), release: make(chan struct{})}
}

func (w *gatedWriter) Write(p []byte) (int, error) {
	w.started <- struct{}{}
	<-w.release
	w.mu.Lock()
	defer w.mu.Unlock()
	w.written = append(w.written, string(p))
	return len(p), nil
}

func (w *gatedWriter) Written() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string{}, w.written...)
}

func TestWriterOrder(t *testing.T) {
	gw := newGatedWriter()
	close(gw.release)
	w := NewWriter(gw, time.Millisecond)
	for _, cmd := range []string{"x", "3", "X"} {
		require.NoError(t, w.Write(context.Background(), []byte(cmd)))
	}
	assert.Equal(t, []string{"x", "3", "X"}, gw.Written())
	w.Close()
	w.Wait()
	assert.Equal(t, ErrNotConnected{}, w.Write(context.Background(), []byte("b")))
}

func TestWriterCloseRejectsQueued(t *testing.T) {
	gw := newGatedWriter()
	w := NewWriter(gw, 0)

	first := make(chan error, 1)
	go func() { first <- w.Write(context.Background(), []byte("b")) }()
	<-gw.started

	second := make(chan error, 1)
	go func() { second <- w.Write(context.Background(), []byte("s")) }()
	require.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return len(w.queue) == 1
	}, time.Second, time.Millisecond)

	w.Close()
	assert.Equal(t, ErrNotConnected{}, <-second)
	close(gw.release)
	assert.NoError(t, <-first)
	w.Wait()
	assert.Equal(t, []string{"b"}, gw.Written())
}

func TestWriterContext(t *testing.T) {
	gw := newGatedWriter()
	w := NewWriter(gw, 0)

	first := make(chan error, 1)
	go func() { first <- w.Write(context.Background(), []byte("a")) }()
	<-gw.started

	// a queued write whose context ends is withdrawn
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, w.Write(ctx, []byte("b")), context.DeadlineExceeded)

	// a write already on the transport reports how it ended
	inFlight, cancelInFlight := context.WithCancel(context.Background())
	third := make(chan error, 1)
	go func() {
		<-gw.started
		cancelInFlight()
	}()
	close(gw.release)
	require.NoError(t, <-first)
	go func() { third <- w.Write(inFlight, []byte("c")) }()
	assert.NoError(t, <-third)

	w.Close()
	w.Wait()
	assert.Equal(t, []string{"a", "c"}, gw.Written())
}

func TestNewOptions(t *testing.T) {
	o, err := NewOptions(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultBaudRate, o.BaudRate)
	assert.Equal(t, BoardTypeCyton, o.BoardType)
	assert.False(t, o.Simulate)
	assert.Equal(t, DefaultWriteDelay, o.WriteDelay)

	o, err = NewOptions(map[string]interface{}{
		"BoardType":                    "default",
		"simulate":                     "true",
		"hardSet":                      true,
		"simulatorFirmwareVersion":     "v2",
		"SIMULATORDAISYMODULEATTACHED": true,
		"writeDelay":                   0,
		"sntpTimeSyncHost":             "time.example.org",
	})
	require.NoError(t, err)
	assert.Equal(t, BoardTypeCyton, o.BoardType)
	assert.True(t, o.Simulate)
	assert.True(t, o.HardSet)
	assert.Equal(t, 2, o.Simulator.FirmwareMajor())
	assert.True(t, o.Simulator.Daisy)
	assert.Equal(t, time.Duration(0), o.WriteDelay)
	assert.Equal(t, "time.example.org", o.SntpHost)

	for _, raw := range []map[string]interface{}{
		{"bogus": 1},
		{"boardType": "ganglion"},
		{"simulatorFirmwareVersion": "v9"},
		{"baudRate": "fast"},
	} {
		_, err := NewOptions(raw)
		assert.ErrorAs(t, err, &config.ErrInvalidOption{}, "%v", raw)
	}
}
