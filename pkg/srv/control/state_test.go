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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jinr.ru/greenlab/go-cyton/pkg/cyton"
	"jinr.ru/greenlab/go-cyton/pkg/layers"
)

func TestBoardState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "state.db")
	s, err := NewBoardState(context.Background(), path, "/dev/ttyUSB0")
	require.NoError(t, err)

	_, err = s.GetInfo()
	assert.Equal(t, ErrKeyNotFound{Key: keyInfo}, err)

	info := &cyton.BoardInfo{
		BoardType:        cyton.BoardTypeDaisy,
		NumberOfChannels: 16,
		SampleRate:       cyton.SampleRateDaisy,
		Firmware:         cyton.Firmware{Major: 3, Raw: "v3.0.0"},
	}
	require.NoError(t, s.SetInfo(info))

	ch10 := &layers.ChannelSettings{Channel: 10, Gain: 4, InputType: "shorted", SRB1: true}
	require.NoError(t, s.SetChannel(ch10))
	require.NoError(t, s.SetChannel(layers.DefaultChannelSettings(2)))
	all, err := s.GetChannelAll()
	require.NoError(t, err)
	assert.Equal(t, []*layers.ChannelSettings{layers.DefaultChannelSettings(2), ch10}, all)

	got, err := s.GetChannel(10)
	require.NoError(t, err)
	assert.Equal(t, ch10, got)
	_, err = s.GetChannel(3)
	assert.ErrorAs(t, err, &ErrKeyNotFound{})

	obj := &cyton.SyncObject{TimeRoundTrip: 12, TimeTransmission: 4.8, TimeOffsetMaster: 502, Valid: true}
	require.NoError(t, s.SetSync(obj))
	require.NoError(t, s.Close())

	// reopened, the cache survives and stays per port
	s, err = NewBoardState(context.Background(), path, "/dev/ttyUSB0")
	require.NoError(t, err)
	defer s.Close()
	stored, err := s.GetInfo()
	require.NoError(t, err)
	assert.Equal(t, info, stored)
	storedSync, err := s.GetSync()
	require.NoError(t, err)
	assert.Equal(t, obj, storedSync)

	require.NoError(t, s.ResetChannels())
	all, err = s.GetChannelAll()
	require.NoError(t, err)
	assert.Empty(t, all)
	_, err = s.GetInfo()
	assert.NoError(t, err)
}

func TestBoardStatePerPort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := NewBoardState(context.Background(), path, "a")
	require.NoError(t, err)
	require.NoError(t, s.SetChannel(layers.DefaultChannelSettings(1)))
	require.NoError(t, s.Close())

	s, err = NewBoardState(context.Background(), path, "b")
	require.NoError(t, err)
	defer s.Close()
	all, err := s.GetChannelAll()
	require.NoError(t, err)
	assert.Empty(t, all)
}
