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
	"fmt"
)

type ErrConfigFileExists struct {
	Path string
}

func (e ErrConfigFileExists) Error() string {
	return fmt.Sprintf("Config file already exists: %s", e.Path)
}

type ErrInvalidConfig struct {
	Path string
	Err  error
}

func (e ErrInvalidConfig) Error() string {
	return fmt.Sprintf("Invalid config file %s: %s", e.Path, e.Err)
}

func (e ErrInvalidConfig) Unwrap() error {
	return e.Err
}

// ErrInvalidOption returned for option keys that are not known or values of a wrong kind
type ErrInvalidOption struct {
	Key    string
	Reason string
}

func (e ErrInvalidOption) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("Invalid option: %s", e.Key)
	}
	return fmt.Sprintf("Invalid option %s: %s", e.Key, e.Reason)
}
