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

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"sigs.k8s.io/yaml"
)

type ApiConfig struct {
	Address string `json:"address,omitempty" toml:"address"`
	Port    int    `json:"port,omitempty" toml:"port"`
}

type NatsConfig struct {
	URL     string `json:"url,omitempty" toml:"url"`
	Subject string `json:"subject,omitempty" toml:"subject"`
}

type RecordConfig struct {
	Path string `json:"path,omitempty" toml:"path"`
}

type Config struct {
	LogLevel string                 `json:"logLevel,omitempty" toml:"logLevel"`
	Api      *ApiConfig             `json:"api,omitempty" toml:"api"`
	DBPath   string                 `json:"dbPath,omitempty" toml:"dbPath"`
	Port     string                 `json:"port,omitempty" toml:"port"`
	Board    map[string]interface{} `json:"board,omitempty" toml:"board"`
	Nats     *NatsConfig            `json:"nats,omitempty" toml:"nats"`
	Record   *RecordConfig          `json:"record,omitempty" toml:"record"`
	filepath string
}

func (c *Config) isToml() bool {
	return strings.EqualFold(filepath.Ext(c.filepath), ".toml")
}

// Path returns the file the config is persisted to
func (c *Config) Path() string {
	return c.filepath
}

func (c *Config) SetPath(path string) {
	c.filepath = path
}

func (c *Config) Persist(overwrite bool) error {
	if _, err := os.Stat(c.filepath); err == nil && !overwrite {
		return ErrConfigFileExists{Path: c.filepath}
	}

	var data []byte
	if c.isToml() {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return err
		}
		data = buf.Bytes()
	} else {
		var err error
		data, err = yaml.Marshal(c)
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(c.filepath), 0755); err != nil {
		return err
	}
	return os.WriteFile(c.filepath, data, 0644)
}

// Load reads the config file over the current values
func (c *Config) Load() error {
	data, err := os.ReadFile(c.filepath)
	if err != nil {
		return err
	}
	if c.isToml() {
		if err := toml.Unmarshal(data, c); err != nil {
			return ErrInvalidConfig{Path: c.filepath, Err: err}
		}
		return nil
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return ErrInvalidConfig{Path: c.filepath, Err: err}
	}
	return nil
}

func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return filepath.Join(home, ConfigDir, ConfigFile)
}

func DefaultDBPath() string {
	return filepath.Join(filepath.Dir(DefaultConfigPath()), DBFile)
}

func NewDefaultConfig() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Api: &ApiConfig{
			Address: DefaultApiAddress,
			Port:    DefaultApiPort,
		},
		DBPath: DefaultDBPath(),
		Port:   DefaultSerialPort,
		Board: map[string]interface{}{
			"boardType": DefaultBoardType,
		},
		Nats: &NatsConfig{
			Subject: DefaultNatsSubject,
		},
		Record:   &RecordConfig{},
		filepath: DefaultConfigPath(),
	}
}

// LoadConfig returns the defaults overridden by the file at path, when the file exists
func LoadConfig(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	if path != "" {
		cfg.filepath = path
	}
	if _, err := os.Stat(cfg.filepath); os.IsNotExist(err) {
		return cfg, nil
	}
	if err := cfg.Load(); err != nil {
		return nil, err
	}
	return cfg, nil
}
