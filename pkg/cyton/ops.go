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
	"strconv"
	"strings"

	"jinr.ru/greenlab/go-cyton/pkg/layers"
	"jinr.ru/greenlab/go-cyton/pkg/log"
)

// Connect opens the transport, soft resets the board and waits until it is ready
func (b *Board) Connect(ctx context.Context) error {
	b.mu.Lock()
	if b.connected || b.connecting {
		b.mu.Unlock()
		return ErrAlreadyConnected{}
	}
	b.connecting = true
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.connecting = false
		b.mu.Unlock()
	}()

	var ntpClock *NtpClock
	if b.opts.SntpTimeSync {
		if c, ok := b.clock.(*NtpClock); ok {
			ntpClock = c
		} else {
			ntpClock = NewNtpClock(b.opts.SntpHost, b.opts.SntpPort)
			b.clock = ntpClock
		}
	}

	transport, err := b.dialer.Dial(ctx)
	if err != nil {
		return err
	}
	b.mu.Lock()
	sess := b.open(transport)
	connID := b.conn.ID
	b.mu.Unlock()
	log.Info("Connected, session %s", connID)

	if ntpClock != nil {
		go ntpClock.Run(sess.ctx)
		go b.forwardClockEvents(sess, ntpClock)
	}

	ready, cancel := b.waiter(EventReady)
	if err := b.write(ctx, []byte{layers.CmdSoftReset}); err != nil {
		cancel()
		b.close(sess, false)
		return err
	}
	n, err := b.wait(ctx, ready, b.opts.ReadyTimeout, "ready")
	if err != nil {
		cancel()
		b.close(sess, false)
		return err
	}
	info := *n.Info

	if b.opts.HardSet && info.BoardType != b.opts.BoardType {
		log.Info("Board type is %s, hard setting %s", info.BoardType, b.opts.BoardType)
		b.publish(Notification{Type: EventHardSet})
		if err := b.HardSetBoardType(ctx, b.opts.BoardType); err != nil {
			log.Error("Hard set failed: %s", err)
			b.publish(Notification{Type: EventError, Err: err})
			b.close(sess, false)
			if b.opts.BoardType == BoardTypeDaisy {
				return ErrUnableToAttachDaisy{}
			}
			return err
		}
		info = b.Info()
	}

	b.mu.Lock()
	b.connecting = false
	b.mu.Unlock()
	b.publish(Notification{Type: EventReady, Info: &info})
	return nil
}

func (b *Board) forwardClockEvents(sess *session, clock *NtpClock) {
	for {
		select {
		case n := <-clock.Events():
			b.publish(n)
		case <-sess.ctx.Done():
			return
		}
	}
}

// Disconnect stops the stream if needed and closes the transport
func (b *Board) Disconnect(ctx context.Context) error {
	b.mu.Lock()
	sess := b.sess
	b.mu.Unlock()
	if sess == nil {
		return ErrAlreadyDisconnected{}
	}
	log.Info("Disconnecting")
	return b.close(sess, true)
}

// Write sends raw bytes to the board through the write queue
func (b *Board) Write(ctx context.Context, data []byte) error {
	return b.write(ctx, data)
}

func (b *Board) StreamStart(ctx context.Context) error {
	b.mu.Lock()
	connected, streaming := b.connected, b.streaming
	b.mu.Unlock()
	if !connected {
		return ErrNotConnected{}
	}
	if streaming {
		return ErrAlreadyStreaming{}
	}
	if err := b.write(ctx, []byte{layers.CmdStreamStart}); err != nil {
		return err
	}
	b.mu.Lock()
	b.streaming = true
	b.mu.Unlock()
	return nil
}

func (b *Board) StreamStop(ctx context.Context) error {
	b.mu.Lock()
	connected, streaming := b.connected, b.streaming
	b.mu.Unlock()
	if !connected {
		return ErrNotConnected{}
	}
	if !streaming {
		return ErrNotStreaming{}
	}
	if err := b.write(ctx, []byte{layers.CmdStreamStop}); err != nil {
		return err
	}
	// a stopped board never answers the sync in flight
	b.abortSync()
	b.mu.Lock()
	b.streaming = false
	b.mu.Unlock()
	return nil
}

// SoftReset puts the parser into reset mode and sends the reset command.
// The board info is refreshed by the following ready notification.
func (b *Board) SoftReset(ctx context.Context) error {
	if err := b.do(ctx, func(c *Conn) { c.SetMode(ModeReset) }); err != nil {
		return err
	}
	if err := b.write(ctx, []byte{layers.CmdSoftReset}); err != nil {
		return err
	}
	b.mu.Lock()
	b.streaming = false
	b.mu.Unlock()
	return nil
}

// eotCommand writes cmds in EOT mode and returns the text the board sent back
func (b *Board) eotCommand(ctx context.Context, what string, cmds ...[]byte) (string, error) {
	eot, cancel := b.waiter(EventEOT)
	if err := b.do(ctx, func(c *Conn) { c.SetMode(ModeEOT) }); err != nil {
		cancel()
		return "", err
	}
	if err := b.write(ctx, cmds...); err != nil {
		cancel()
		return "", err
	}
	n, err := b.wait(ctx, eot, b.opts.ReadyTimeout, what)
	if err != nil {
		cancel()
		_ = b.do(context.Background(), func(c *Conn) {
			if c.Mode() == ModeEOT {
				c.SetMode(ModeNormal)
			}
		})
		return "", err
	}
	return n.Text, nil
}

// command writes cmds, boards with firmware v2 and later acknowledge them with text
func (b *Board) command(ctx context.Context, what string, cmds ...[]byte) error {
	if b.Info().Firmware.Major < 2 {
		return b.write(ctx, cmds...)
	}
	text, err := b.eotCommand(ctx, what, cmds...)
	if err != nil {
		return err
	}
	if strings.HasPrefix(text, "Failure") {
		return ErrCommandFailed{Message: text}
	}
	log.Debug("%s: %s", what, text)
	return nil
}

func (b *Board) requireConnected() error {
	if !b.IsConnected() {
		return ErrNotConnected{}
	}
	return nil
}

// SDStart starts logging to the SD card for one of the durations in layers.SDCommands
func (b *Board) SDStart(ctx context.Context, duration string) (string, error) {
	cmd, ok := layers.SDCommands[duration]
	if !ok {
		return "", ErrInvalidSDDuration{Duration: duration}
	}
	if err := b.requireConnected(); err != nil {
		return "", err
	}
	return b.eotCommand(ctx, "sd start", []byte{cmd})
}

func (b *Board) SDStop(ctx context.Context) (string, error) {
	if err := b.requireConnected(); err != nil {
		return "", err
	}
	return b.eotCommand(ctx, "sd stop", []byte{layers.CmdSDStop})
}

func (b *Board) ChannelOff(ctx context.Context, channel int) error {
	cmd, err := layers.ChannelOffCommand(channel)
	if err != nil {
		return err
	}
	return b.write(ctx, []byte{cmd})
}

func (b *Board) ChannelOn(ctx context.Context, channel int) error {
	cmd, err := layers.ChannelOnCommand(channel)
	if err != nil {
		return err
	}
	return b.write(ctx, []byte{cmd})
}

// ChannelSet writes the nine setting commands one by one and updates the gain used for scaling
func (b *Board) ChannelSet(ctx context.Context, settings *layers.ChannelSettings) error {
	cmd, err := settings.Commands()
	if err != nil {
		return err
	}
	if err := b.requireConnected(); err != nil {
		return err
	}
	cmds := make([][]byte, len(cmd))
	for i := range cmd {
		cmds[i] = cmd[i : i+1]
	}
	if err := b.command(ctx, "channel settings", cmds...); err != nil {
		return err
	}
	return b.do(ctx, func(c *Conn) { c.SetGain(settings.Channel, settings.Gain) })
}

// ImpedanceSet starts or stops the impedance test of a channel.
// Firmware v2 takes the whole sequence in one write.
func (b *Board) ImpedanceSet(ctx context.Context, channel int, pInput, nInput bool) error {
	cmd, err := layers.ImpedanceCommand(channel, pInput, nInput)
	if err != nil {
		return err
	}
	if err := b.requireConnected(); err != nil {
		return err
	}
	if b.Info().Firmware.Major >= 2 {
		return b.command(ctx, "impedance", cmd)
	}
	cmds := make([][]byte, len(cmd))
	for i := range cmd {
		cmds[i] = cmd[i : i+1]
	}
	return b.write(ctx, cmds...)
}

func (b *Board) TestSignal(ctx context.Context, name string) error {
	cmd, ok := layers.TestSignals[name]
	if !ok {
		return ErrInvalidTestSignal{Name: name}
	}
	if err := b.requireConnected(); err != nil {
		return err
	}
	return b.command(ctx, "test signal", []byte{cmd})
}

// Defaults restores the power up channel settings
func (b *Board) Defaults(ctx context.Context) error {
	if err := b.requireConnected(); err != nil {
		return err
	}
	if err := b.command(ctx, "defaults", []byte{layers.CmdDefaults}); err != nil {
		return err
	}
	return b.do(ctx, func(c *Conn) {
		for ch := 1; ch <= layers.NumberOfChannelsDaisy; ch++ {
			c.SetGain(ch, layers.DefaultGain)
		}
	})
}

// RegisterQuery reads the channel settings back from the board
func (b *Board) RegisterQuery(ctx context.Context) ([]*layers.ChannelSettings, error) {
	if err := b.requireConnected(); err != nil {
		return nil, err
	}
	text, err := b.eotCommand(ctx, "register query", []byte{layers.CmdRegisterQuery})
	if err != nil {
		return nil, err
	}
	settings, err := layers.ParseRegisterDump(text)
	if err != nil {
		return nil, err
	}
	err = b.do(ctx, func(c *Conn) {
		for _, s := range settings {
			c.SetGain(s.Channel, s.Gain)
		}
	})
	return settings, err
}

// SyncClocks sends one sync request, the result arrives as a synced notification
func (b *Board) SyncClocks(ctx context.Context) error {
	b.mu.Lock()
	connected, streaming := b.connected, b.streaming
	fw := b.info.Firmware
	b.mu.Unlock()
	if !connected {
		return ErrNotConnected{}
	}
	if !streaming {
		return ErrNotStreaming{}
	}
	if fw.Major < 2 {
		return ErrFirmware{What: "time sync needs firmware v2 or later"}
	}
	var reqErr error
	if err := b.do(ctx, func(c *Conn) { reqErr = c.RequestSync(b.clock.Now()) }); err != nil {
		return err
	}
	if reqErr != nil {
		return reqErr
	}
	if err := b.write(ctx, []byte{layers.CmdTimeSync}); err != nil {
		b.abortSync()
		return err
	}
	return nil
}

// SyncClocksFull sends a sync request and waits for its result
func (b *Board) SyncClocksFull(ctx context.Context) (*SyncObject, error) {
	synced, cancel := b.waiter(EventSynced)
	if err := b.SyncClocks(ctx); err != nil {
		cancel()
		return nil, err
	}
	n, err := b.wait(ctx, synced, b.opts.SyncTimeout, "time sync")
	if err != nil {
		cancel()
		b.abortSync()
		return nil, err
	}
	if !n.Sync.Valid {
		return n.Sync, n.Sync.Err
	}
	return n.Sync, nil
}

func (b *Board) abortSync() {
	_ = b.do(context.Background(), func(c *Conn) {
		if c.SyncInFlight() {
			b.dispatch(c.AbortSync(b.clock.Now()))
		}
	})
}

// HardSetBoardType attaches or removes the daisy module
func (b *Board) HardSetBoardType(ctx context.Context, boardType string) error {
	var cmd byte
	switch boardType {
	case BoardTypeCyton, "default":
		boardType, cmd = BoardTypeCyton, layers.CmdChannelCount8
	case BoardTypeDaisy:
		cmd = layers.CmdChannelCount16
	default:
		return ErrInvalidBoardType{Type: boardType}
	}
	if err := b.requireConnected(); err != nil {
		return err
	}
	text, err := b.eotCommand(ctx, "channel count", []byte{cmd})
	if err != nil {
		return err
	}
	log.Debug("Channel count reply: %q", text)
	if err := checkChannelCountReply(boardType, text); err != nil {
		return err
	}
	var info BoardInfo
	if err := b.do(ctx, func(c *Conn) {
		c.SetBoardType(boardType)
		info = c.Info()
	}); err != nil {
		return err
	}
	b.mu.Lock()
	b.info = info
	b.mu.Unlock()
	return nil
}

// checkChannelCountReply accepts only the replies that confirm the requested board type.
// Removing the daisy answers "daisy removed", or nothing when no daisy was attached.
func checkChannelCountReply(boardType, text string) error {
	text = strings.TrimSpace(text)
	if boardType == BoardTypeDaisy {
		if strings.HasPrefix(text, "Failure") || !strings.Contains(text, "16") {
			return ErrUnableToAttachDaisy{}
		}
		return nil
	}
	switch {
	case text == "",
		strings.Contains(text, "daisy removed"),
		strings.Contains(text, "no daisy to remove"):
		return nil
	}
	return ErrUnableToRemoveDaisy{Reply: text}
}

// RadioResult is the parsed answer of the dongle to a radio command
type RadioResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	// Value is the byte sent right before the end of transmission
	Value byte `json:"value"`
}

func (b *Board) radio(ctx context.Context, cmd byte, arg ...byte) (*RadioResult, error) {
	if err := b.requireConnected(); err != nil {
		return nil, err
	}
	if b.Info().Firmware.Major < 2 {
		return nil, ErrFirmware{What: "radio commands need firmware v2 or later"}
	}
	text, err := b.eotCommand(ctx, "radio", layers.RadioCommand(cmd, arg...))
	if err != nil {
		return nil, err
	}
	res := &RadioResult{
		Success: strings.HasPrefix(text, "Success"),
		Message: text,
	}
	if len(text) > 0 {
		res.Value = text[len(text)-1]
	}
	return res, nil
}

func (b *Board) radioValue(ctx context.Context, cmd byte, arg ...byte) (int, error) {
	res, err := b.radio(ctx, cmd, arg...)
	if err != nil {
		return 0, err
	}
	if !res.Success {
		return int(res.Value), ErrRadio{Message: res.Message}
	}
	return int(res.Value), nil
}

func (b *Board) RadioChannelGet(ctx context.Context) (int, error) {
	return b.radioValue(ctx, layers.RadioChannelGet)
}

func (b *Board) RadioChannelSet(ctx context.Context, channel int) (int, error) {
	if channel < 0 || channel > layers.RadioChannelMax {
		return 0, layers.ErrInvalidArgument{What: "radio channel " + strconv.Itoa(channel)}
	}
	return b.radioValue(ctx, layers.RadioChannelSet, byte(channel))
}

// RadioChannelSetOverride moves the host only, used to find a board on another channel
func (b *Board) RadioChannelSetOverride(ctx context.Context, channel int) (int, error) {
	if channel < 0 || channel > layers.RadioChannelMax {
		return 0, layers.ErrInvalidArgument{What: "radio channel " + strconv.Itoa(channel)}
	}
	return b.radioValue(ctx, layers.RadioChannelSetOverride, byte(channel))
}

func (b *Board) RadioPollTimeGet(ctx context.Context) (int, error) {
	return b.radioValue(ctx, layers.RadioPollTimeGet)
}

func (b *Board) RadioPollTimeSet(ctx context.Context, pollTime int) (int, error) {
	if pollTime < 0 || pollTime > 255 {
		return 0, layers.ErrInvalidArgument{What: "poll time " + strconv.Itoa(pollTime)}
	}
	return b.radioValue(ctx, layers.RadioPollTimeSet, byte(pollTime))
}

// RadioBaudRateSet switches the dongle to the default or the fast baud rate and returns the new rate
func (b *Board) RadioBaudRateSet(ctx context.Context, fast bool) (int, error) {
	cmd := byte(layers.RadioBaudRateDefault)
	if fast {
		cmd = layers.RadioBaudRateFast
	}
	res, err := b.radio(ctx, cmd)
	if err != nil {
		return 0, err
	}
	if !res.Success {
		return 0, ErrRadio{Message: res.Message}
	}
	if len(res.Message) < 6 {
		return 0, ErrRadio{Message: res.Message}
	}
	rate, err := strconv.Atoi(res.Message[len(res.Message)-6:])
	if err != nil {
		return 0, ErrRadio{Message: res.Message}
	}
	return rate, nil
}

// RadioSystemStatus returns true when the dongle can reach the board
func (b *Board) RadioSystemStatus(ctx context.Context) (bool, error) {
	res, err := b.radio(ctx, layers.RadioSystemStatus)
	if err != nil {
		return false, err
	}
	return res.Success, nil
}
