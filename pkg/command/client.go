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
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/imroc/req"

	"jinr.ru/greenlab/go-cyton/pkg/config"
	"jinr.ru/greenlab/go-cyton/pkg/cyton"
	"jinr.ru/greenlab/go-cyton/pkg/layers"
	"jinr.ru/greenlab/go-cyton/pkg/srv/control"
)

type ApiClient struct {
	*config.Config
	ApiPrefix string
}

func NewApiClient(cfg *config.Config) *ApiClient {
	return &ApiClient{
		Config:    cfg,
		ApiPrefix: fmt.Sprintf("http://%s:%d/api", cfg.Api.Address, cfg.Api.Port),
	}
}

func (c *ApiClient) url(format string, v ...interface{}) string {
	return c.ApiPrefix + fmt.Sprintf(format, v...)
}

func checkStatus(r *req.Resp) error {
	resp := r.Response()
	if resp.StatusCode != http.StatusOK {
		return ErrRequestFailed{Status: resp.Status, Message: strings.TrimSpace(r.String())}
	}
	return nil
}

// get sends a GET request and decodes the JSON reply into v unless v is nil
func (c *ApiClient) get(url string, v interface{}) error {
	r, err := req.Get(url)
	if err != nil {
		return err
	}
	if err := checkStatus(r); err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	return r.ToJSON(v)
}

func (c *ApiClient) post(url string, body interface{}, v interface{}, params ...interface{}) error {
	args := append([]interface{}{req.BodyJSON(body)}, params...)
	r, err := req.Post(url, args...)
	if err != nil {
		return err
	}
	if err := checkStatus(r); err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	return r.ToJSON(v)
}

// Info requests the board info and the connection state
func (c *ApiClient) Info() (*control.Info, error) {
	info := &control.Info{}
	if err := c.get(c.url("/info"), info); err != nil {
		return nil, err
	}
	return info, nil
}

func (c *ApiClient) Connect() error {
	return c.get(c.url("/connect"), nil)
}

func (c *ApiClient) Disconnect() error {
	return c.get(c.url("/disconnect"), nil)
}

// StreamStart sends request to start streaming
func (c *ApiClient) StreamStart() error {
	return c.get(c.url("/stream/start"), nil)
}

// StreamStop sends request to stop streaming
func (c *ApiClient) StreamStop() error {
	return c.get(c.url("/stream/stop"), nil)
}

func (c *ApiClient) Reset() error {
	return c.get(c.url("/reset"), nil)
}

func (c *ApiClient) Defaults() error {
	return c.get(c.url("/defaults"), nil)
}

// Sync runs one clock sync round on the server
func (c *ApiClient) Sync() (*cyton.SyncObject, error) {
	obj := &cyton.SyncObject{}
	if err := c.post(c.url("/sync"), nil, obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func (c *ApiClient) LastSync() (*cyton.SyncObject, error) {
	obj := &cyton.SyncObject{}
	if err := c.get(c.url("/sync"), obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func (c *ApiClient) ChannelOn(channel int) error {
	return c.get(c.url("/channel/%d/on", channel), nil)
}

func (c *ApiClient) ChannelOff(channel int) error {
	return c.get(c.url("/channel/%d/off", channel), nil)
}

func (c *ApiClient) ChannelSettings(channel int) (*layers.ChannelSettings, error) {
	settings := &layers.ChannelSettings{}
	if err := c.get(c.url("/channel/%d/settings", channel), settings); err != nil {
		return nil, err
	}
	return settings, nil
}

func (c *ApiClient) ChannelSet(settings *layers.ChannelSettings) error {
	return c.post(c.url("/channel/%d/settings", settings.Channel), settings, nil)
}

func (c *ApiClient) ImpedanceSet(channel int, pInput, nInput bool) error {
	setup := &control.ImpedanceSetup{PInput: pInput, NInput: nInput}
	return c.post(c.url("/impedance/%d", channel), setup, nil)
}

func (c *ApiClient) TestSignal(name string) error {
	return c.get(c.url("/test_signal/%s", name), nil)
}

// SDStart returns the reply of the board
func (c *ApiClient) SDStart(duration string) (string, error) {
	reply := &control.TextReply{}
	if err := c.get(c.url("/sd/start/%s", duration), reply); err != nil {
		return "", err
	}
	return reply.Text, nil
}

func (c *ApiClient) SDStop() (string, error) {
	reply := &control.TextReply{}
	if err := c.get(c.url("/sd/stop"), reply); err != nil {
		return "", err
	}
	return reply.Text, nil
}

func (c *ApiClient) BoardType(boardType string) (*cyton.BoardInfo, error) {
	info := &cyton.BoardInfo{}
	if err := c.get(c.url("/board_type/%s", boardType), info); err != nil {
		return nil, err
	}
	return info, nil
}

// Registers reads the channel settings back from the board
func (c *ApiClient) Registers() ([]*layers.ChannelSettings, error) {
	var all []*layers.ChannelSettings
	if err := c.get(c.url("/registers"), &all); err != nil {
		return nil, err
	}
	return all, nil
}

func (c *ApiClient) RadioStatus() (bool, error) {
	status := &control.RadioStatus{}
	if err := c.get(c.url("/radio/status"), status); err != nil {
		return false, err
	}
	return status.Up, nil
}

func (c *ApiClient) RadioChannel() (int, error) {
	value := &control.RadioValue{}
	if err := c.get(c.url("/radio/channel"), value); err != nil {
		return 0, err
	}
	return value.Value, nil
}

// RadioChannelSet moves host and device to channel, or only the host when override is set
func (c *ApiClient) RadioChannelSet(channel int, override bool) (int, error) {
	value := &control.RadioValue{}
	params := req.QueryParam{"override": strconv.FormatBool(override)}
	if err := c.post(c.url("/radio/channel/%d", channel), nil, value, params); err != nil {
		return 0, err
	}
	return value.Value, nil
}

func (c *ApiClient) RadioPollTime() (int, error) {
	value := &control.RadioValue{}
	if err := c.get(c.url("/radio/poll_time"), value); err != nil {
		return 0, err
	}
	return value.Value, nil
}

func (c *ApiClient) RadioPollTimeSet(pollTime int) (int, error) {
	value := &control.RadioValue{}
	if err := c.post(c.url("/radio/poll_time/%d", pollTime), nil, value); err != nil {
		return 0, err
	}
	return value.Value, nil
}

func (c *ApiClient) RadioBaudRate(fast bool) (int, error) {
	rate := "default"
	if fast {
		rate = "fast"
	}
	value := &control.RadioValue{}
	if err := c.post(c.url("/radio/baud/%s", rate), nil, value); err != nil {
		return 0, err
	}
	return value.Value, nil
}
