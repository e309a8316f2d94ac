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

package command

import (
	"context"
	"errors"

	"jinr.ru/greenlab/go-cyton/pkg/config"
	"jinr.ru/greenlab/go-cyton/pkg/cyton"
	"jinr.ru/greenlab/go-cyton/pkg/log"
	"jinr.ru/greenlab/go-cyton/pkg/srv/control"
)

// StartControlServer connects the board described by cfg and serves the API until ctx is done
func StartControlServer(ctx context.Context, cfg *config.Config) error {
	opts, err := cyton.NewOptions(cfg.Board)
	if err != nil {
		return err
	}
	board := cyton.NewBoard(opts, cyton.NewDialer(cfg.Port, opts))
	if opts.Simulate {
		log.Info("Using the board simulator, firmware: %s", opts.Simulator.FirmwareVersion)
	}

	s, err := control.NewControlServer(ctx, cfg, board)
	if err != nil {
		return err
	}
	if err := s.Run(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
