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
	"jinr.ru/greenlab/go-cyton/pkg/layers"
)

const (
	GainOptionName      = "gain"
	InputTypeOptionName = "input-type"
	PowerDownOptionName = "power-down"
	BiasOptionName      = "bias"
	SRB2OptionName      = "srb2"
	SRB1OptionName      = "srb1"
)

func NewChannelCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channel",
		Short: "Configure board channels",
	}
	for _, action := range []string{"on", "off"} {
		action := action
		cmd.AddCommand(&cobra.Command{
			Use:   fmt.Sprintf("%s <n>", action),
			Short: fmt.Sprintf("Power channel %s", action),
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				n, err := channelArg(args[0])
				if err != nil {
					return err
				}
				apiClient := command.NewApiClient(cfg)
				if action == "on" {
					return apiClient.ChannelOn(n)
				}
				return apiClient.ChannelOff(n)
			},
		})
	}
	cmd.AddCommand(newChannelSetCommand(cfg))
	cmd.AddCommand(newChannelGetCommand(cfg))
	return cmd
}

// newChannelSetCommand starts from the stored settings of the channel, so only
// the given flags change
func newChannelSetCommand(cfg *config.Config) *cobra.Command {
	var (
		gain                        int
		inputType                   string
		powerDown, bias, srb2, srb1 bool
	)
	cmd := &cobra.Command{
		Use:   "set <n>",
		Short: "Write the settings of a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := channelArg(args[0])
			if err != nil {
				return err
			}
			apiClient := command.NewApiClient(cfg)
			settings, err := apiClient.ChannelSettings(n)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed(GainOptionName) {
				settings.Gain = gain
			}
			if flags.Changed(InputTypeOptionName) {
				settings.InputType = inputType
			}
			if flags.Changed(PowerDownOptionName) {
				settings.PowerDown = powerDown
			}
			if flags.Changed(BiasOptionName) {
				settings.Bias = bias
			}
			if flags.Changed(SRB2OptionName) {
				settings.SRB2 = srb2
			}
			if flags.Changed(SRB1OptionName) {
				settings.SRB1 = srb1
			}
			return apiClient.ChannelSet(settings)
		},
	}
	cmd.Flags().IntVar(&gain, GainOptionName, layers.DefaultGain, fmt.Sprintf("Gain, one of %v", layers.Gains))
	cmd.Flags().StringVar(&inputType, InputTypeOptionName, "normal", fmt.Sprintf("Input type, one of %v", layers.InputTypes))
	cmd.Flags().BoolVar(&powerDown, PowerDownOptionName, false, "Power the channel down")
	cmd.Flags().BoolVar(&bias, BiasOptionName, true, "Include the channel in the bias")
	cmd.Flags().BoolVar(&srb2, SRB2OptionName, true, "Connect the channel to SRB2")
	cmd.Flags().BoolVar(&srb1, SRB1OptionName, false, "Connect all channels to SRB1")
	return cmd
}

func newChannelGetCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "get <n>",
		Short: "Show the stored settings of a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := channelArg(args[0])
			if err != nil {
				return err
			}
			settings, err := command.NewApiClient(cfg).ChannelSettings(n)
			if err != nil {
				return err
			}
			printSettings(cmd, settings)
			return nil
		},
	}
}

func printSettings(cmd *cobra.Command, s *layers.ChannelSettings) {
	fmt.Fprintf(cmd.OutOrStdout(), "Channel %2d: powerDown: %t gain: %2d input: %-8s bias: %t srb2: %t srb1: %t\n",
		s.Channel, s.PowerDown, s.Gain, s.InputType, s.Bias, s.SRB2, s.SRB1)
}
