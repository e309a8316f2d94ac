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

package board

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-cyton/pkg/command"
	"jinr.ru/greenlab/go-cyton/pkg/config"
)

func numberArg(what, arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", what, err)
	}
	return n, nil
}

func channelArg(arg string) (int, error) {
	return numberArg("channel", arg)
}

func NewStreamCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "stream start|stop",
		Short:     "Start/stop streaming",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"start", "stop"},
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient := command.NewApiClient(cfg)
			switch args[0] {
			case "start":
				return apiClient.StreamStart()
			case "stop":
				return apiClient.StreamStop()
			default:
				return errors.New("Wrong streaming command. Must be one of start/stop")
			}
		},
	}
	return cmd
}

func NewResetCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Soft reset the board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return command.NewApiClient(cfg).Reset()
		},
	}
}

func NewSyncCommand(cfg *config.Config) *cobra.Command {
	var last bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the board clock with the host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient := command.NewApiClient(cfg)
			sync := apiClient.Sync
			if last {
				sync = apiClient.LastSync
			}
			obj, err := sync()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Round trip: %d ms, transmission: %.1f ms, offset: %.1f ms, master offset: %d ms\n",
				obj.TimeRoundTrip, obj.TimeTransmission, obj.TimeOffset, obj.TimeOffsetMaster)
			return nil
		},
	}
	cmd.Flags().BoolVar(&last, "last", false, "Show the last stored sync result instead of running a new one")
	return cmd
}

func NewTestSignalCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:       "test-signal <name>",
		Short:     "Connect every channel to an internal test signal",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"dc", "ground", "pulse1xSlow", "pulse1xFast", "pulse2xSlow", "pulse2xFast", "none"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return command.NewApiClient(cfg).TestSignal(args[0])
		},
	}
}

func NewImpedanceCommand(cfg *config.Config) *cobra.Command {
	var pInput, nInput bool
	cmd := &cobra.Command{
		Use:   "impedance <n>",
		Short: "Enable/disable impedance measurement on a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := channelArg(args[0])
			if err != nil {
				return err
			}
			return command.NewApiClient(cfg).ImpedanceSet(n, pInput, nInput)
		},
	}
	cmd.Flags().BoolVar(&pInput, "p", false, "Measure on the P input")
	cmd.Flags().BoolVar(&nInput, "n", false, "Measure on the N input")
	return cmd
}

func NewSDCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sd",
		Short: "Log samples to the SD card of the board",
	}
	cmd.AddCommand(&cobra.Command{
		Use:       "start <duration>",
		Short:     "Start logging",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"14sec", "5min", "15min", "30min", "1hour", "2hour", "4hour", "12hour", "24hour"},
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := command.NewApiClient(cfg).SDStart(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "stop",
		Short: "Stop logging",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := command.NewApiClient(cfg).SDStop()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	})
	return cmd
}
