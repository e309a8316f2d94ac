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
)

func NewRadioCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "radio",
		Short: "Query and configure the radio link of the dongle",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Check that the board answers over the radio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			up, err := command.NewApiClient(cfg).RadioStatus()
			if err != nil {
				return err
			}
			state := "down"
			if up {
				state = "up"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "System is %s\n", state)
			return nil
		},
	})

	var override bool
	channel := &cobra.Command{
		Use:   "channel [n]",
		Short: "Show the radio channel, or move to channel n",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient := command.NewApiClient(cfg)
			var (
				value int
				err   error
			)
			if len(args) == 0 {
				value, err = apiClient.RadioChannel()
			} else {
				var n int
				if n, err = channelArg(args[0]); err != nil {
					return err
				}
				value, err = apiClient.RadioChannelSet(n, override)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Radio channel: %d\n", value)
			return nil
		},
	}
	channel.Flags().BoolVar(&override, "override", false, "Move only the dongle, the board stays on its channel")
	cmd.AddCommand(channel)

	cmd.AddCommand(&cobra.Command{
		Use:   "poll-time [ms]",
		Short: "Show the poll time, or set it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient := command.NewApiClient(cfg)
			var (
				value int
				err   error
			)
			if len(args) == 0 {
				value, err = apiClient.RadioPollTime()
			} else {
				var n int
				if n, err = numberArg("poll time", args[0]); err != nil {
					return err
				}
				value, err = apiClient.RadioPollTimeSet(n)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Poll time: %d\n", value)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:       "baud default|fast",
		Short:     "Switch the baud rate of the dongle",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"default", "fast"},
		RunE: func(cmd *cobra.Command, args []string) error {
			rate, err := command.NewApiClient(cfg).RadioBaudRate(args[0] == "fast")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Switch your baud rate to %d\n", rate)
			return nil
		},
	})
	return cmd
}
