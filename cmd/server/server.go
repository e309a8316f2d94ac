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

package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-cyton/pkg/command"
	"jinr.ru/greenlab/go-cyton/pkg/config"
	"jinr.ru/greenlab/go-cyton/pkg/cyton"
)

const (
	PortOptionName      = "port"
	SimulateOptionName  = "simulate"
	AddressOptionName   = "address"
	ApiPortOptionName   = "api-port"
	BoardTypeOptionName = "board-type"
	HardSetOptionName   = "hard-set"
	NatsUrlOptionName   = "nats-url"
	RecordOptionName    = "record"
)

// NewCommand starts the control server. Flags override the config file.
func NewCommand(cfg *config.Config) *cobra.Command {
	var (
		port, address, boardType, natsUrl, record string
		apiPort                                   int
		simulate, hardSet                         bool
	)
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Connect the board and start the control server",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed(PortOptionName) {
				cfg.Port = port
			}
			if flags.Changed(AddressOptionName) {
				cfg.Api.Address = address
			}
			if flags.Changed(ApiPortOptionName) {
				cfg.Api.Port = apiPort
			}
			if flags.Changed(NatsUrlOptionName) {
				cfg.Nats.URL = natsUrl
			}
			if flags.Changed(RecordOptionName) {
				cfg.Record.Path = record
			}
			if cfg.Board == nil {
				cfg.Board = map[string]interface{}{}
			}
			if flags.Changed(SimulateOptionName) {
				cfg.Board["simulate"] = simulate
			}
			if flags.Changed(BoardTypeOptionName) {
				cfg.Board["boardType"] = boardType
			}
			if flags.Changed(HardSetOptionName) {
				cfg.Board["hardSet"] = hardSet
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return command.StartControlServer(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&port, PortOptionName, "", fmt.Sprintf("Serial port of the board. E.g. %s", config.DefaultSerialPort))
	cmd.Flags().BoolVar(&simulate, SimulateOptionName, false, "Use the board simulator instead of a serial port")
	cmd.Flags().StringVar(&address, AddressOptionName, "", fmt.Sprintf("API address to bind. E.g. %s", config.DefaultApiAddress))
	cmd.Flags().IntVar(&apiPort, ApiPortOptionName, config.DefaultApiPort, "API port to bind")
	cmd.Flags().StringVar(&boardType, BoardTypeOptionName, cyton.BoardTypeCyton,
		fmt.Sprintf("Board type, one of %s/%s", cyton.BoardTypeCyton, cyton.BoardTypeDaisy))
	cmd.Flags().BoolVar(&hardSet, HardSetOptionName, false, "Attach or remove the daisy module to match the board type")
	cmd.Flags().StringVar(&natsUrl, NatsUrlOptionName, "", "Publish samples to this NATS server")
	cmd.Flags().StringVar(&record, RecordOptionName, "", "Append samples to this CBOR file")
	return cmd
}
