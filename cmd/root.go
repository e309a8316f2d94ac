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

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-cyton/cmd/board"
	"jinr.ru/greenlab/go-cyton/cmd/completion"
	"jinr.ru/greenlab/go-cyton/cmd/config"
	"jinr.ru/greenlab/go-cyton/cmd/server"
	pkgconfig "jinr.ru/greenlab/go-cyton/pkg/config"
	"jinr.ru/greenlab/go-cyton/pkg/log"
)

const (
	LogLevelOptionName = "log-level"
)

func NewRootCommand(out io.Writer) *cobra.Command {
	var logLevel string
	cfg, err := pkgconfig.LoadConfig(pkgconfig.DefaultConfigPath())
	if err != nil {
		fmt.Fprintf(out, "Using default config: %s\n", err)
		cfg = pkgconfig.NewDefaultConfig()
	}
	cmd := &cobra.Command{
		Use:          "go-cyton",
		Short:        "Tool to work with OpenBCI Cyton boards",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			log.Init(cmd.ErrOrStderr(), cfg.LogLevel)
		},
	}
	cmd.SetOut(out)
	cmd.AddCommand(config.NewCommand(cfg))
	cmd.AddCommand(server.NewCommand(cfg))
	cmd.AddCommand(board.NewStreamCommand(cfg))
	cmd.AddCommand(board.NewResetCommand(cfg))
	cmd.AddCommand(board.NewSyncCommand(cfg))
	cmd.AddCommand(board.NewChannelCommand(cfg))
	cmd.AddCommand(board.NewImpedanceCommand(cfg))
	cmd.AddCommand(board.NewTestSignalCommand(cfg))
	cmd.AddCommand(board.NewSDCommand(cfg))
	cmd.AddCommand(board.NewBoardCommand(cfg))
	cmd.AddCommand(board.NewRadioCommand(cfg))
	cmd.AddCommand(completion.NewCommand())
	cmd.PersistentFlags().StringVar(&logLevel, LogLevelOptionName, "", fmt.Sprintf("Log level. %s", log.HelpLevels))
	return cmd
}
