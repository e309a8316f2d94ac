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

package cyton

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/beevik/ntp"

	"jinr.ru/greenlab/go-cyton/pkg/log"
)

// Clock returns the host time in milliseconds
type Clock interface {
	Now() int64
}

type SystemClock struct{}

func (SystemClock) Now() int64 {
	return time.Now().UnixMilli()
}

const (
	DefaultNtpHost         = "pool.ntp.org"
	DefaultNtpPort         = 123
	DefaultNtpPollInterval = 60 * time.Second
	DefaultNtpTimeout      = 5 * time.Second
)

// NtpQuery is the signature of ntp.QueryWithOptions
type NtpQuery func(host string, opt ntp.QueryOptions) (*ntp.Response, error)

// NtpClock is the system clock corrected by the offset reported by an SNTP server.
// The offset is refreshed by Run in the background, Now never touches the network.
type NtpClock struct {
	Host     string
	Port     int
	Interval time.Duration
	Timeout  time.Duration

	query  NtpQuery
	offset atomic.Int64
	locked atomic.Bool
	events chan Notification
}

func NewNtpClock(host string, port int) *NtpClock {
	return &NtpClock{
		Host:     host,
		Port:     port,
		Interval: DefaultNtpPollInterval,
		Timeout:  DefaultNtpTimeout,
		query:    ntp.QueryWithOptions,
		events:   make(chan Notification, 16),
	}
}

func (c *NtpClock) Now() int64 {
	return time.Now().UnixMilli() + c.offset.Load()
}

// Offset returns the last known correction in milliseconds
func (c *NtpClock) Offset() int64 {
	return c.offset.Load()
}

func (c *NtpClock) Locked() bool {
	return c.locked.Load()
}

// Events delivers timeLock, timeUnlock and error notifications
func (c *NtpClock) Events() <-chan Notification {
	return c.events
}

// Run polls the server until ctx is done
func (c *NtpClock) Run(ctx context.Context) {
	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()
	c.Poll()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Poll()
		}
	}
}

// Poll queries the server once and updates the offset
func (c *NtpClock) Poll() {
	resp, err := c.query(c.Host, ntp.QueryOptions{Port: c.Port, Timeout: c.Timeout})
	if err == nil {
		err = resp.Validate()
	}
	if err != nil {
		log.Warning("SNTP query to %s:%d failed: %s", c.Host, c.Port, err)
		c.emit(Notification{Type: EventError, Err: fmt.Errorf("sntp query: %w", err)})
		if c.locked.CompareAndSwap(true, false) {
			c.emit(Notification{Type: EventTimeUnlock})
		}
		return
	}
	c.offset.Store(resp.ClockOffset.Milliseconds())
	log.Debug("SNTP offset: %s", resp.ClockOffset)
	if c.locked.CompareAndSwap(false, true) {
		c.emit(Notification{Type: EventTimeLock})
	}
}

func (c *NtpClock) emit(n Notification) {
	select {
	case c.events <- n:
	default:
	}
}
