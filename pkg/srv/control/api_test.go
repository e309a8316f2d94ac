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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jinr.ru/greenlab/go-cyton/pkg/config"
	"jinr.ru/greenlab/go-cyton/pkg/cyton"
	"jinr.ru/greenlab/go-cyton/pkg/layers"
	"jinr.ru/greenlab/go-cyton/pkg/simulator"
)

func newTestServer(t *testing.T, sim map[string]interface{}) (*ControlServer, *httptest.Server) {
	t.Helper()
	simOpts, err := simulator.NewOptions(sim)
	require.NoError(t, err)
	opts := cyton.DefaultOptions()
	opts.Simulate = true
	opts.Simulator = simOpts
	opts.WriteDelay = time.Millisecond
	board := cyton.NewBoard(opts, cyton.NewDialer("", opts))

	cfg := config.NewDefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "state.db")
	s, err := NewControlServer(context.Background(), cfg, board)
	require.NoError(t, err)
	require.NoError(t, s.Connect(context.Background()))

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Close()
		ts.Close()
	})
	return s, ts
}

func get(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	return decode(t, resp, v)
}

func post(t *testing.T, url string, body interface{}, v interface{}) int {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return decode(t, resp, v)
}

func decode(t *testing.T, resp *http.Response, v interface{}) int {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK && v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestApiInfo(t *testing.T) {
	_, ts := newTestServer(t, nil)
	info := &Info{}
	require.Equal(t, http.StatusOK, get(t, ts.URL+"/api/info", info))
	assert.True(t, info.Connected)
	assert.False(t, info.Streaming)
	assert.Equal(t, cyton.BoardTypeCyton, info.Board.BoardType)
	assert.Equal(t, 8, info.Board.NumberOfChannels)

	assert.Equal(t, http.StatusConflict, get(t, ts.URL+"/api/connect", nil))
	assert.Equal(t, http.StatusOK, get(t, ts.URL+"/api/disconnect", nil))
	assert.Equal(t, http.StatusConflict, get(t, ts.URL+"/api/disconnect", nil))
	assert.Equal(t, http.StatusConflict, get(t, ts.URL+"/api/stream/start", nil))
	assert.Equal(t, http.StatusOK, get(t, ts.URL+"/api/connect", nil))
}

func TestApiStream(t *testing.T) {
	_, ts := newTestServer(t, nil)
	status := &Status{}
	require.Equal(t, http.StatusOK, get(t, ts.URL+"/api/stream/start", status))
	assert.Equal(t, http.StatusOK, status.Code)
	assert.Equal(t, http.StatusConflict, get(t, ts.URL+"/api/stream/start", nil))
	assert.Equal(t, http.StatusOK, get(t, ts.URL+"/api/stream/stop", nil))
	assert.Equal(t, http.StatusConflict, get(t, ts.URL+"/api/stream/stop", nil))
	assert.Equal(t, http.StatusNotFound, get(t, ts.URL+"/api/stream/pause", nil))
	assert.Equal(t, http.StatusOK, get(t, ts.URL+"/api/reset", nil))
}

func TestApiChannelSettings(t *testing.T) {
	s, ts := newTestServer(t, map[string]interface{}{simulator.OptFirmwareVersion: "v2"})

	settings := &layers.ChannelSettings{Gain: 8, InputType: "testsig", Bias: true, SRB2: true}
	require.Equal(t, http.StatusOK, post(t, ts.URL+"/api/channel/2/settings", settings, nil))
	settings.Channel = 2

	stored := &layers.ChannelSettings{}
	require.Equal(t, http.StatusOK, get(t, ts.URL+"/api/channel/2/settings", stored))
	assert.Equal(t, settings, stored)
	require.Equal(t, http.StatusOK, get(t, ts.URL+"/api/channel/3/settings", stored))
	assert.Equal(t, layers.DefaultChannelSettings(3), stored)

	var read []*layers.ChannelSettings
	require.Equal(t, http.StatusOK, get(t, ts.URL+"/api/registers", &read))
	require.Len(t, read, 8)
	assert.Equal(t, settings, read[1])

	// stored settings are written back after a reconnect
	require.NoError(t, s.Board().Disconnect(context.Background()))
	require.Equal(t, http.StatusOK, get(t, ts.URL+"/api/connect", nil))
	read, err := s.Board().RegisterQuery(context.Background())
	require.NoError(t, err)
	assert.Equal(t, settings, read[1])

	require.Equal(t, http.StatusOK, get(t, ts.URL+"/api/defaults", nil))
	require.Equal(t, http.StatusOK, get(t, ts.URL+"/api/channel/2/settings", stored))
	assert.Equal(t, layers.DefaultChannelSettings(2), stored)

	assert.Equal(t, http.StatusBadRequest, post(t, ts.URL+"/api/channel/2/settings", &layers.ChannelSettings{Gain: 3}, nil))
	assert.Equal(t, http.StatusBadRequest, get(t, ts.URL+"/api/channel/17/settings", nil))
	assert.Equal(t, http.StatusOK, get(t, ts.URL+"/api/channel/3/off", nil))
	assert.Equal(t, http.StatusOK, get(t, ts.URL+"/api/channel/3/on", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, ts.URL+"/api/channel/0/on", nil))
	assert.Equal(t, http.StatusOK, post(t, ts.URL+"/api/impedance/4", &ImpedanceSetup{PInput: true}, nil))
	assert.Equal(t, http.StatusOK, get(t, ts.URL+"/api/test_signal/dc", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, ts.URL+"/api/test_signal/square", nil))
}

func TestApiSD(t *testing.T) {
	_, ts := newTestServer(t, map[string]interface{}{simulator.OptFirmwareVersion: "v2"})
	reply := &TextReply{}
	require.Equal(t, http.StatusOK, get(t, ts.URL+"/api/sd/start/15min", reply))
	assert.Contains(t, reply.Text, "15min")
	assert.Equal(t, http.StatusBadRequest, get(t, ts.URL+"/api/sd/start/3days", nil))
	assert.Equal(t, http.StatusOK, get(t, ts.URL+"/api/sd/stop", reply))
}

func TestApiSync(t *testing.T) {
	s, ts := newTestServer(t, map[string]interface{}{simulator.OptFirmwareVersion: "v2"})
	assert.Equal(t, http.StatusConflict, post(t, ts.URL+"/api/sync", nil, nil))
	assert.Equal(t, http.StatusNotFound, get(t, ts.URL+"/api/sync", nil))

	require.Equal(t, http.StatusOK, get(t, ts.URL+"/api/stream/start", nil))
	obj := &cyton.SyncObject{}
	require.Equal(t, http.StatusOK, post(t, ts.URL+"/api/sync", nil, obj))
	assert.True(t, obj.Valid)

	require.Eventually(t, func() bool {
		last, err := s.LastSync()
		return err == nil && last.TimeOffsetMaster == obj.TimeOffsetMaster
	}, 3*time.Second, 10*time.Millisecond)
	last := &cyton.SyncObject{}
	require.Equal(t, http.StatusOK, get(t, ts.URL+"/api/sync", last))
	assert.Equal(t, obj.TimeOffsetMaster, last.TimeOffsetMaster)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.syncs.WithLabelValues("true")))
}

func TestApiRadio(t *testing.T) {
	_, ts := newTestServer(t, map[string]interface{}{simulator.OptFirmwareVersion: "v3"})
	value := &RadioValue{}
	require.Equal(t, http.StatusOK, get(t, ts.URL+"/api/radio/channel", value))
	assert.Equal(t, simulator.DefaultRadioChannel, value.Value)
	require.Equal(t, http.StatusOK, post(t, ts.URL+"/api/radio/channel/5", nil, value))
	assert.Equal(t, 5, value.Value)
	assert.Equal(t, http.StatusBadRequest, post(t, ts.URL+"/api/radio/channel/26", nil, nil))
	require.Equal(t, http.StatusOK, post(t, ts.URL+"/api/radio/poll_time/60", nil, value))
	assert.Equal(t, 60, value.Value)
	require.Equal(t, http.StatusOK, get(t, ts.URL+"/api/radio/poll_time", value))
	assert.Equal(t, 60, value.Value)

	status := &RadioStatus{}
	require.Equal(t, http.StatusOK, get(t, ts.URL+"/api/radio/status", status))
	assert.True(t, status.Up)
	require.Equal(t, http.StatusOK, post(t, ts.URL+"/api/radio/channel/9?override=true", nil, value))
	require.Equal(t, http.StatusOK, get(t, ts.URL+"/api/radio/status", status))
	assert.False(t, status.Up)
	assert.Equal(t, http.StatusBadGateway, get(t, ts.URL+"/api/radio/poll_time", nil))

	require.Equal(t, http.StatusOK, post(t, ts.URL+"/api/radio/baud/fast", nil, value))
	assert.Equal(t, layers.BaudRateFast, value.Value)
}

func TestApiBoardType(t *testing.T) {
	s, ts := newTestServer(t, nil)
	info := &cyton.BoardInfo{}
	require.Equal(t, http.StatusOK, get(t, ts.URL+"/api/board_type/daisy", info))
	assert.Equal(t, cyton.BoardTypeDaisy, info.BoardType)
	assert.Equal(t, 16, info.NumberOfChannels)

	stored, err := s.StoredInfo()
	require.NoError(t, err)
	assert.Equal(t, cyton.BoardTypeDaisy, stored.BoardType)

	assert.Equal(t, http.StatusBadRequest, get(t, ts.URL+"/api/board_type/ganglion", nil))
}

func TestApiBoardFailure(t *testing.T) {
	_, ts := newTestServer(t, map[string]interface{}{
		simulator.OptFirmwareVersion:    "v2",
		simulator.OptDaisyCanBeAttached: false,
	})
	assert.Equal(t, http.StatusBadGateway, get(t, ts.URL+"/api/board_type/daisy", nil))
	info := &Info{}
	require.Equal(t, http.StatusOK, get(t, ts.URL+"/api/info", info))
	assert.Equal(t, 8, info.Board.NumberOfChannels)
}

func TestSamplesFeed(t *testing.T) {
	s, ts := newTestServer(t, nil)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/samples", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.hub.Clients() == 1 }, time.Second, time.Millisecond)

	require.Equal(t, http.StatusOK, get(t, ts.URL+"/api/stream/start", nil))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		msg := struct {
			Type string       `json:"type"`
			Data cyton.Sample `json:"data"`
		}{}
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg.Type == "sample" {
			assert.Len(t, msg.Data.ChannelData, 8)
			break
		}
	}

	conn.Close()
	require.Eventually(t, func() bool { return s.hub.Clients() == 0 }, time.Second, time.Millisecond)
}

func TestMetricsEndpoint(t *testing.T) {
	s, ts := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, get(t, ts.URL+"/api/stream/start", nil))
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(s.metrics.samples) > 0
	}, 3*time.Second, 10*time.Millisecond)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "cyton_samples_total")
	assert.Contains(t, string(body), "cyton_connected 1")
	assert.Contains(t, string(body), "cyton_streaming 1")
}

func TestApiDocs(t *testing.T) {
	_, ts := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/swagger.json")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "go-cyton API")

	resp, err = http.Get(ts.URL + "/docs")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "/swagger.json")
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{layers.ErrInvalidChannel{Channel: 0}, http.StatusBadRequest},
		{cyton.ErrInvalidSDDuration{Duration: "1day"}, http.StatusBadRequest},
		{cyton.ErrNotConnected{}, http.StatusConflict},
		{cyton.ErrSyncInFlight{}, http.StatusConflict},
		{cyton.ErrTimeout{What: "ready"}, http.StatusGatewayTimeout},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{cyton.ErrUnableToAttachDaisy{}, http.StatusBadGateway},
		{errors.New("write /dev/ttyUSB0: broken pipe"), http.StatusBadGateway},
	}
	for _, c := range cases {
		assert.Equal(t, c.status, errorStatus(c.err), "%v", c.err)
	}
}
