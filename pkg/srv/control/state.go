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
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
	"gopkg.in/yaml.v2"

	"jinr.ru/greenlab/go-cyton/pkg/cyton"
	"jinr.ru/greenlab/go-cyton/pkg/layers"
	"jinr.ru/greenlab/go-cyton/pkg/log"
)

const (
	BucketNamePrefix = "board_"

	keyInfo          = "info"
	keySync          = "sync"
	keyChannelPrefix = "channel_"
)

// BoardState caches what is known about the board attached to one port
type BoardState struct {
	context.Context
	DB     *bbolt.DB
	bucket []byte
}

func NewBoardState(ctx context.Context, dbPath, port string) (*BoardState, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, err
	}
	bucket := []byte(bucketName(port))
	if err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &BoardState{
		Context: ctx,
		DB:      db,
		bucket:  bucket,
	}, nil
}

func bucketName(port string) string {
	return fmt.Sprintf("%s%s", BucketNamePrefix, port)
}

func channelKey(channel int) string {
	return fmt.Sprintf("%s%02d", keyChannelPrefix, channel)
}

func (s *BoardState) Close() error {
	return s.DB.Close()
}

func (s *BoardState) put(key string, v interface{}) error {
	value, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	return s.DB.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return ErrBucketNotFound{Bucket: string(s.bucket)}
		}
		return b.Put([]byte(key), value)
	})
}

func (s *BoardState) get(key string, v interface{}) error {
	return s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return ErrBucketNotFound{Bucket: string(s.bucket)}
		}
		value := b.Get([]byte(key))
		if value == nil {
			return ErrKeyNotFound{Key: key}
		}
		return yaml.Unmarshal(value, v)
	})
}

func (s *BoardState) SetInfo(info *cyton.BoardInfo) error {
	log.Debug("Storing board info: type: %s channels: %d firmware: %s",
		info.BoardType, info.NumberOfChannels, info.Firmware)
	return s.put(keyInfo, info)
}

func (s *BoardState) GetInfo() (*cyton.BoardInfo, error) {
	info := &cyton.BoardInfo{}
	if err := s.get(keyInfo, info); err != nil {
		return nil, err
	}
	return info, nil
}

// SetSync keeps the last completed sync round
func (s *BoardState) SetSync(obj *cyton.SyncObject) error {
	return s.put(keySync, obj)
}

func (s *BoardState) GetSync() (*cyton.SyncObject, error) {
	obj := &cyton.SyncObject{}
	if err := s.get(keySync, obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func (s *BoardState) SetChannel(settings *layers.ChannelSettings) error {
	log.Debug("Storing channel settings: channel: %d gain: %d input: %s",
		settings.Channel, settings.Gain, settings.InputType)
	return s.put(channelKey(settings.Channel), settings)
}

func (s *BoardState) GetChannel(channel int) (*layers.ChannelSettings, error) {
	settings := &layers.ChannelSettings{}
	if err := s.get(channelKey(channel), settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// GetChannelAll returns the stored settings ordered by channel
func (s *BoardState) GetChannelAll() ([]*layers.ChannelSettings, error) {
	var all []*layers.ChannelSettings
	prefix := []byte(keyChannelPrefix)
	if err := s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return ErrBucketNotFound{Bucket: string(s.bucket)}
		}
		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			settings := &layers.ChannelSettings{}
			if err := yaml.Unmarshal(v, settings); err != nil {
				return err
			}
			all = append(all, settings)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return all, nil
}

// ResetChannels drops the stored settings, the board reverts to its defaults on reset
func (s *BoardState) ResetChannels() error {
	prefix := []byte(keyChannelPrefix)
	return s.DB.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return ErrBucketNotFound{Bucket: string(s.bucket)}
		}
		var keys [][]byte
		c := b.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			keys = append(keys, append([]byte{}, k...))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
