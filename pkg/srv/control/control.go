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

package control

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"jinr.ru/greenlab/go-cyton/pkg/config"
	"jinr.ru/greenlab/go-cyton/pkg/cyton"
	"jinr.ru/greenlab/go-cyton/pkg/layers"
	"jinr.ru/greenlab/go-cyton/pkg/log"
	"jinr.ru/greenlab/go-cyton/pkg/sink"
	"jinr.ru/greenlab/go-cyton/pkg/srv/control/ifc"
)

const SimulatorPort = "simulator"

// ControlServer owns the board and feeds its notifications to the state store,
// the metrics, the websocket hub and the optional sinks
type ControlServer struct {
	context.Context
	*config.Config
	board     *cyton.Board
	state     *BoardState
	metrics   *Metrics
	hub       *Hub
	publisher *sink.Publisher
	recorder  *sink.Recorder
	api       ifc.ApiServer
	notes     <-chan cyton.Notification
	done      chan struct{}
	closeOnce sync.Once
}

var _ ifc.ControlServer = &ControlServer{}

// NewControlServer ...
func NewControlServer(ctx context.Context, cfg *config.Config, board *cyton.Board) (*ControlServer, error) {
	port := cfg.Port
	if board.Options().Simulate {
		port = SimulatorPort
	}
	log.Debug("Initializing control server for port: %s", port)

	state, err := NewBoardState(ctx, cfg.DBPath, port)
	if err != nil {
		return nil, err
	}

	s := &ControlServer{
		Context: ctx,
		Config:  cfg,
		board:   board,
		state:   state,
		metrics: NewMetrics(board),
		hub:     NewHub(),
		done:    make(chan struct{}),
	}

	if cfg.Nats != nil && cfg.Nats.URL != "" {
		s.publisher, err = sink.NewPublisher(cfg.Nats.URL, cfg.Nats.Subject)
		if err != nil {
			s.close()
			return nil, err
		}
	}
	if cfg.Record != nil && cfg.Record.Path != "" {
		s.recorder, err = sink.NewRecorder(cfg.Record.Path)
		if err != nil {
			s.close()
			return nil, err
		}
		log.Info("Recording samples to %s", cfg.Record.Path)
	}

	apiServer, err := NewApiServer(ctx, cfg, s)
	if err != nil {
		s.close()
		return nil, err
	}
	s.api = apiServer

	s.notes = board.Subscribe()
	go s.consume()

	return s, nil
}

func (s *ControlServer) Board() *cyton.Board {
	return s.board
}

func (s *ControlServer) Samples() http.Handler {
	return s.hub
}

func (s *ControlServer) Metrics() http.Handler {
	return s.metrics.Handler()
}

func (s *ControlServer) Handler() http.Handler {
	return s.api.Handler()
}

// Run connects the board and serves the API until the context is done
func (s *ControlServer) Run() error {
	defer s.close()

	if err := s.Connect(s.Context); err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.api.Run()
	}()

	select {
	case <-s.Context.Done():
		return s.Context.Err()
	case err := <-errChan:
		return err
	}
}

func (s *ControlServer) consume() {
	defer close(s.done)
	for n := range s.notes {
		s.handle(n)
	}
}

func (s *ControlServer) handle(n cyton.Notification) {
	s.metrics.Observe(n)
	switch n.Type {
	case cyton.EventSample:
		s.hub.Broadcast(n.Type.String(), n.Sample)
		if s.publisher != nil {
			if err := s.publisher.PublishSample(n.Sample); err != nil {
				log.Warning("Unable to publish sample: %s", err)
			}
		}
		if s.recorder != nil {
			if err := s.recorder.Record(n.Sample); err != nil {
				log.Warning("Unable to record sample: %s", err)
			}
		}
	case cyton.EventSynced:
		s.hub.Broadcast(n.Type.String(), n.Sync)
		if n.Sync.Valid {
			if err := s.state.SetSync(n.Sync); err != nil {
				log.Error("Unable to store sync result: %s", err)
			}
		}
		if s.publisher != nil {
			if err := s.publisher.PublishSynced(n.Sync); err != nil {
				log.Warning("Unable to publish sync result: %s", err)
			}
		}
	case cyton.EventDroppedPacket:
		log.Debug("Dropped packets: %v", n.Dropped)
		s.hub.Broadcast(n.Type.String(), n.Dropped)
	case cyton.EventImpedance:
		s.hub.Broadcast(n.Type.String(), n.Impedance)
	case cyton.EventReady, cyton.EventHardSet:
		info := s.board.Info()
		if err := s.state.SetInfo(&info); err != nil {
			log.Error("Unable to store board info: %s", err)
		}
	case cyton.EventError:
		log.Error("Board error: %s", n.Err)
	case cyton.EventTimeLock, cyton.EventTimeUnlock:
		log.Info("SNTP clock: %s", n.Type)
	}
}

// Connect connects the board and restores the channel settings stored for it
func (s *ControlServer) Connect(ctx context.Context) error {
	if err := s.board.Connect(ctx); err != nil {
		return err
	}
	info := s.board.Info()
	if err := s.state.SetInfo(&info); err != nil {
		log.Error("Unable to store board info: %s", err)
	}
	stored, err := s.state.GetChannelAll()
	if err != nil {
		return err
	}
	for _, settings := range stored {
		if settings.Channel > info.NumberOfChannels {
			continue
		}
		log.Info("Restoring settings of channel %d", settings.Channel)
		if err := s.board.ChannelSet(ctx, settings); err != nil {
			return err
		}
	}
	return nil
}

func (s *ControlServer) ChannelSet(ctx context.Context, settings *layers.ChannelSettings) error {
	if err := s.board.ChannelSet(ctx, settings); err != nil {
		return err
	}
	return s.state.SetChannel(settings)
}

// ChannelSettings returns the stored settings of a channel, or the power up ones
func (s *ControlServer) ChannelSettings(channel int) (*layers.ChannelSettings, error) {
	if channel < 1 || channel > layers.NumberOfChannelsDaisy {
		return nil, layers.ErrInvalidChannel{Channel: channel}
	}
	settings, err := s.state.GetChannel(channel)
	if errors.As(err, &ErrKeyNotFound{}) {
		return layers.DefaultChannelSettings(channel), nil
	}
	return settings, err
}

// RegisterQuery reads the channel settings back from the board and stores them
func (s *ControlServer) RegisterQuery(ctx context.Context) ([]*layers.ChannelSettings, error) {
	all, err := s.board.RegisterQuery(ctx)
	if err != nil {
		return nil, err
	}
	for _, settings := range all {
		if err := s.state.SetChannel(settings); err != nil {
			return nil, err
		}
	}
	return all, nil
}

func (s *ControlServer) SyncClocks(ctx context.Context) (*cyton.SyncObject, error) {
	return s.board.SyncClocksFull(ctx)
}

func (s *ControlServer) HardSetBoardType(ctx context.Context, boardType string) error {
	if err := s.board.HardSetBoardType(ctx, boardType); err != nil {
		return err
	}
	info := s.board.Info()
	return s.state.SetInfo(&info)
}

// Defaults resets the channels on the board and forgets the stored settings
func (s *ControlServer) Defaults(ctx context.Context) error {
	if err := s.board.Defaults(ctx); err != nil {
		return err
	}
	return s.state.ResetChannels()
}

// LastSync returns the last valid sync round stored for the board
func (s *ControlServer) LastSync() (*cyton.SyncObject, error) {
	return s.state.GetSync()
}

// StoredInfo returns the board info of the last connection
func (s *ControlServer) StoredInfo() (*cyton.BoardInfo, error) {
	return s.state.GetInfo()
}

func (s *ControlServer) close() {
	s.closeOnce.Do(s.release)
}

func (s *ControlServer) release() {
	if s.board.IsConnected() {
		if err := s.board.Disconnect(context.Background()); err != nil {
			log.Warning("Disconnect failed: %s", err)
		}
	}
	if s.notes != nil {
		s.board.Unsubscribe(s.notes)
		<-s.done
	}
	s.hub.Close()
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			log.Warning("Unable to close NATS connection: %s", err)
		}
	}
	if s.recorder != nil {
		if err := s.recorder.Flush(); err != nil {
			log.Warning("Unable to flush recording: %s", err)
		}
	}
	if err := s.state.Close(); err != nil {
		log.Warning("Unable to close state store: %s", err)
	}
}

// Close releases everything, Run calls it on exit
func (s *ControlServer) Close() {
	s.close()
}
