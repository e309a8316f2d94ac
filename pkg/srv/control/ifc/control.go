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

package ifc

import (
	"context"
	"net/http"

	"jinr.ru/greenlab/go-cyton/pkg/cyton"
	"jinr.ru/greenlab/go-cyton/pkg/layers"
)

type ControlServer interface {
	Run() error

	Board() *cyton.Board

	// Connect and the settings commands below keep the state store in line with the board
	Connect(ctx context.Context) error
	ChannelSet(ctx context.Context, settings *layers.ChannelSettings) error
	ChannelSettings(channel int) (*layers.ChannelSettings, error)
	RegisterQuery(ctx context.Context) ([]*layers.ChannelSettings, error)
	SyncClocks(ctx context.Context) (*cyton.SyncObject, error)
	LastSync() (*cyton.SyncObject, error)
	HardSetBoardType(ctx context.Context, boardType string) error
	Defaults(ctx context.Context) error

	Samples() http.Handler
	Metrics() http.Handler
}

type ApiServer interface {
	Run() error
	Handler() http.Handler
}
