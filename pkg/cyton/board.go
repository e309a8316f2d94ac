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
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/gopacket"
	"go.bug.st/serial"

	"jinr.ru/greenlab/go-cyton/pkg/log"
	"jinr.ru/greenlab/go-cyton/pkg/simulator"
)

const (
	readBufferSize   = 4096
	subscriberBuffer = 1024
)

// Dialer opens the transport to the board
type Dialer interface {
	Dial(ctx context.Context) (io.ReadWriteCloser, error)
}

type DialFunc func(ctx context.Context) (io.ReadWriteCloser, error)

func (f DialFunc) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	return f(ctx)
}

// SerialDialer opens a real serial port
type SerialDialer struct {
	Port     string
	BaudRate int
}

func (d SerialDialer) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	port, err := serial.Open(d.Port, &serial.Mode{BaudRate: d.BaudRate})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", d.Port, err)
	}
	return port, nil
}

// SimulatorDialer opens an in-process simulator
type SimulatorDialer struct {
	Options *simulator.Options
}

func (d SimulatorDialer) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	sim, err := simulator.NewSimulator(d.Options)
	if err != nil {
		return nil, err
	}
	if err := sim.Open(); err != nil {
		return nil, err
	}
	return sim, nil
}

// NewDialer picks the simulator or a serial port according to the options
func NewDialer(port string, opts *Options) Dialer {
	if opts.Simulate {
		return SimulatorDialer{Options: opts.Simulator}
	}
	return SerialDialer{Port: port, BaudRate: opts.BaudRate}
}

type InPacket struct {
	Data []byte
	gopacket.CaptureInfo
}

// transportSource stamps every chunk read from the transport with the arrival time
type transportSource struct {
	r     io.Reader
	clock Clock
	buf   []byte
}

// ReadPacketData reads the next chunk. This method is from PacketDataSource interface.
func (s *transportSource) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	n, err := s.r.Read(s.buf)
	if err != nil {
		return nil, gopacket.CaptureInfo{}, err
	}
	data := make([]byte, n)
	copy(data, s.buf[:n])
	ci := gopacket.CaptureInfo{
		Timestamp:     time.UnixMilli(s.clock.Now()),
		CaptureLength: n,
		Length:        n,
	}
	return data, ci, nil
}

var _ gopacket.PacketDataSource = &transportSource{}

// session is everything that lives exactly as long as one connection
type session struct {
	ctx       context.Context
	cancel    context.CancelFunc
	transport io.ReadWriteCloser
	writer    *Writer
	chIn      chan InPacket
	ctrl      chan func(*Conn)
	done      chan struct{}
	wg        sync.WaitGroup
	closing   bool
}

// Board drives one board over a transport. A single engine goroutine owns the
// protocol state, other goroutines reach it through the control channel.
type Board struct {
	opts   *Options
	dialer Dialer
	clock  Clock

	mu         sync.Mutex
	sess       *session
	conn       *Conn
	connected  bool
	streaming  bool
	connecting bool
	info       BoardInfo
	badPackets int

	subMu       sync.Mutex
	subscribers map[chan Notification]struct{}
	waiters     map[EventType][]chan Notification
}

func NewBoard(opts *Options, dialer Dialer) *Board {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Board{
		opts:        opts,
		dialer:      dialer,
		clock:       SystemClock{},
		info:        cytonInfo(defaultFirmware()),
		subscribers: map[chan Notification]struct{}{},
		waiters:     map[EventType][]chan Notification{},
	}
}

// SetClock replaces the time source, it must be called before Connect
func (b *Board) SetClock(clock Clock) {
	b.clock = clock
}

func (b *Board) Options() *Options {
	return b.opts
}

// Subscribe returns a channel receiving every notification. A subscriber that
// does not keep up loses notifications instead of stalling the engine.
func (b *Board) Subscribe() <-chan Notification {
	ch := make(chan Notification, subscriberBuffer)
	b.subMu.Lock()
	b.subscribers[ch] = struct{}{}
	b.subMu.Unlock()
	return ch
}

func (b *Board) Unsubscribe(ch <-chan Notification) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	for sub := range b.subscribers {
		if sub == ch {
			delete(b.subscribers, sub)
			close(sub)
		}
	}
}

// waiter registers interest in the next notification of type t.
// The returned cancel func must be called if the waiter is abandoned.
func (b *Board) waiter(t EventType) (chan Notification, func()) {
	ch := make(chan Notification, 1)
	b.subMu.Lock()
	b.waiters[t] = append(b.waiters[t], ch)
	b.subMu.Unlock()
	return ch, func() {
		b.subMu.Lock()
		defer b.subMu.Unlock()
		list := b.waiters[t]
		for i, w := range list {
			if w == ch {
				b.waiters[t] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

func (b *Board) wait(ctx context.Context, ch chan Notification, timeout time.Duration, what string) (Notification, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case n := <-ch:
		if n.Type == EventError {
			return n, n.Err
		}
		return n, nil
	case <-timer.C:
		return Notification{}, ErrTimeout{What: what}
	case <-ctx.Done():
		return Notification{}, ctx.Err()
	}
}

// publish hands a notification to its waiters and to every subscriber
func (b *Board) publish(n Notification) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	if waiters := b.waiters[n.Type]; len(waiters) > 0 {
		for _, w := range waiters {
			w <- n
		}
		delete(b.waiters, n.Type)
	}
	b.mu.Lock()
	quiet := b.connecting && (n.Type == EventReady)
	b.mu.Unlock()
	if quiet {
		return
	}
	for sub := range b.subscribers {
		select {
		case sub <- n:
		default:
		}
	}
}

// failWaiters wakes every waiter with err, used when the connection goes away
func (b *Board) failWaiters(err error) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	for t, waiters := range b.waiters {
		for _, w := range waiters {
			w <- Notification{Type: EventError, Err: err}
		}
		delete(b.waiters, t)
	}
}

func (b *Board) dispatch(notes []Notification) {
	for _, n := range notes {
		if n.Type == EventReady && n.Info != nil {
			b.mu.Lock()
			b.info = *n.Info
			b.mu.Unlock()
		}
		b.publish(n)
	}
}

// engine is the only goroutine touching conn
func (b *Board) engine(sess *session, conn *Conn) {
	defer sess.wg.Done()
	for {
		select {
		case p := <-sess.chIn:
			b.dispatch(conn.Process(p.Data, p.Timestamp.UnixMilli()))
			b.mu.Lock()
			b.info.MissedPackets = conn.daisy.Missed()
			b.badPackets = conn.BadPackets()
			b.mu.Unlock()
		case f := <-sess.ctrl:
			f(conn)
		case <-sess.done:
			return
		}
	}
}

func (b *Board) reader(sess *session, src gopacket.PacketDataSource) {
	defer sess.wg.Done()
	for {
		data, ci, err := src.ReadPacketData()
		if err != nil {
			b.mu.Lock()
			closing := sess.closing || b.sess != sess
			b.mu.Unlock()
			if closing {
				return
			}
			if errors.Is(err, io.EOF) {
				err = fmt.Errorf("transport closed: %w", err)
			}
			log.Error("Transport read failed: %s", err)
			b.publish(Notification{Type: EventError, Err: err})
			go b.invalidate(sess, err)
			return
		}
		if len(data) == 0 {
			continue
		}
		select {
		case sess.chIn <- InPacket{Data: data, CaptureInfo: ci}:
		case <-sess.done:
			return
		}
	}
}

// do runs f on the engine goroutine and waits for it to finish
func (b *Board) do(ctx context.Context, f func(*Conn)) error {
	b.mu.Lock()
	sess := b.sess
	b.mu.Unlock()
	if sess == nil {
		return ErrNotConnected{}
	}
	finished := make(chan struct{})
	select {
	case sess.ctrl <- func(c *Conn) { f(c); close(finished) }:
	case <-sess.done:
		return ErrNotConnected{}
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-sess.done:
		return ErrNotConnected{}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// write sends each command separately through the write queue
func (b *Board) write(ctx context.Context, cmds ...[]byte) error {
	b.mu.Lock()
	sess := b.sess
	b.mu.Unlock()
	if sess == nil {
		return ErrNotConnected{}
	}
	for _, cmd := range cmds {
		if err := sess.writer.Write(ctx, cmd); err != nil {
			if !errors.As(err, &ErrNotConnected{}) && !errors.Is(err, ctx.Err()) {
				log.Error("Write failed: %s", err)
				go b.invalidate(sess, err)
			}
			return err
		}
	}
	return nil
}

// open starts the goroutines of a fresh session, the caller holds b.mu
func (b *Board) open(transport io.ReadWriteCloser) *session {
	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{
		ctx:       ctx,
		cancel:    cancel,
		transport: transport,
		writer:    NewWriter(transport, b.opts.WriteDelay),
		chIn:      make(chan InPacket, 64),
		ctrl:      make(chan func(*Conn)),
		done:      make(chan struct{}),
	}
	b.conn = NewConn(b.opts.SendCounts)
	b.sess = sess
	b.connected = true
	b.streaming = false
	sess.wg.Add(2)
	go b.engine(sess, b.conn)
	go b.reader(sess, &transportSource{r: transport, clock: b.clock, buf: make([]byte, readBufferSize)})
	return sess
}

// close tears down sess. Queued writes are rejected, the engine stops and the
// protocol state is reset. The caller must not hold b.mu.
func (b *Board) close(sess *session, stopStream bool) error {
	b.mu.Lock()
	if b.sess != sess || sess.closing {
		b.mu.Unlock()
		return ErrAlreadyDisconnected{}
	}
	sess.closing = true
	streaming := b.streaming
	b.mu.Unlock()

	sess.cancel()
	sess.writer.Close()
	if stopStream && streaming {
		if _, err := sess.transport.Write([]byte{'s'}); err != nil {
			log.Warning("Unable to stop the stream: %s", err)
		}
	}
	err := sess.transport.Close()
	close(sess.done)
	sess.wg.Wait()
	sess.writer.Wait()

	b.mu.Lock()
	b.conn.Reset()
	b.sess = nil
	b.connected = false
	b.streaming = false
	b.mu.Unlock()
	b.failWaiters(ErrNotConnected{})
	return err
}

// invalidate drops the connection after a transport failure
func (b *Board) invalidate(sess *session, cause error) {
	if err := b.close(sess, false); err == nil {
		log.Warning("Connection closed after transport failure: %s", cause)
	}
}

func (b *Board) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *Board) IsStreaming() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.streaming
}

func (b *Board) Info() BoardInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.info
}

// BadPackets counts the noise bytes skipped by the extractor on the current connection
func (b *Board) BadPackets() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.badPackets
}

func (b *Board) NumberOfChannels() int {
	return b.Info().NumberOfChannels
}

func (b *Board) SampleRate() int {
	return b.Info().SampleRate
}
