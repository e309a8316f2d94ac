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
	"fmt"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-cyton/pkg/command"
	"jinr.ru/greenlab/go-cyton/pkg/config"
	"jinr.ru/greenlab/go-cyton/pkg/cyton"
)

func printInfo(cmd *cobra.Command, info *cyton.BoardInfo) {
	fmt.Fprintf(cmd.OutOrStdout(), "Board: %s channels: %d sample rate: %d Hz firmware: %s missed packets: %d\n",
		info.BoardType, info.NumberOfChannels, info.SampleRate, info.Firmware, info.MissedPackets)
}

func NewBoardCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Board info and setup",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Show board info",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := command.NewApiClient(cfg).Info()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Connected: %t streaming: %t bad packets: %d\n",
				info.Connected, info.Streaming, info.BadPackets)
			printInfo(cmd, &info.Board)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:       "type cyton|daisy",
		Short:     "Attach or remove the daisy module",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{cyton.BoardTypeCyton, cyton.BoardTypeDaisy},
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := command.NewApiClient(cfg).BoardType(args[0])
			if err != nil {
				return err
			}
			printInfo(cmd, info)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "registers",
		Short: "Read the channel settings back from the board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := command.NewApiClient(cfg).Registers()
			if err != nil {
				return err
			}
			for _, settings := range all {
				printSettings(cmd, settings)
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "defaults",
		Short: "Reset every channel to its default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return command.NewApiClient(cfg).Defaults()
		},
	})
	return cmd
}
