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

package sink

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"jinr.ru/greenlab/go-cyton/pkg/cyton"
	"jinr.ru/greenlab/go-cyton/pkg/log"
)

const (
	SubjectSample = "sample"
	SubjectSynced = "synced"

	natsClientName    = "go-cyton"
	natsReconnectWait = 2 * time.Second
)

// natsConn is the part of *nats.Conn the publisher needs
type natsConn interface {
	Publish(subj string, data []byte) error
	Drain() error
}

// Publisher sends samples and sync results to NATS as JSON
type Publisher struct {
	conn    natsConn
	subject string
}

func NewPublisher(url, subject string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name(natsClientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(natsReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warning("NATS disconnected: %s", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("NATS reconnected: %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	log.Info("Publishing samples to NATS: url: %s subject: %s", url, subject)
	return newPublisher(conn, subject), nil
}

func newPublisher(conn natsConn, subject string) *Publisher {
	return &Publisher{conn: conn, subject: subject}
}

func (p *Publisher) publish(kind string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.conn.Publish(fmt.Sprintf("%s.%s", p.subject, kind), data)
}

func (p *Publisher) PublishSample(s *cyton.Sample) error {
	return p.publish(SubjectSample, s)
}

func (p *Publisher) PublishSynced(obj *cyton.SyncObject) error {
	return p.publish(SubjectSynced, obj)
}

// Close flushes pending messages and closes the connection
func (p *Publisher) Close() error {
	return p.conn.Drain()
}
