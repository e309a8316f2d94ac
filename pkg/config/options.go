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
	"strings"

	"github.com/spf13/cast"
)

// NormalizeOptions maps case-insensitive keys of raw onto the canonical names in known.
// Unknown keys fail with ErrInvalidOption.
func NormalizeOptions(raw map[string]interface{}, known []string) (map[string]interface{}, error) {
	canonical := make(map[string]string, len(known))
	for _, k := range known {
		canonical[strings.ToLower(k)] = k
	}
	out := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		name, ok := canonical[strings.ToLower(k)]
		if !ok {
			return nil, ErrInvalidOption{Key: k}
		}
		out[name] = v
	}
	return out, nil
}

// Options is a normalized option map with typed getters.
// Every getter returns the default when the key is absent and ErrInvalidOption when the value can not be coerced.
type Options map[string]interface{}

func (o Options) Bool(key string, def bool) (bool, error) {
	v, ok := o[key]
	if !ok {
		return def, nil
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def, ErrInvalidOption{Key: key, Reason: err.Error()}
	}
	return b, nil
}

func (o Options) Int(key string, def int) (int, error) {
	v, ok := o[key]
	if !ok {
		return def, nil
	}
	i, err := cast.ToIntE(v)
	if err != nil {
		return def, ErrInvalidOption{Key: key, Reason: err.Error()}
	}
	return i, nil
}

func (o Options) Float(key string, def float64) (float64, error) {
	v, ok := o[key]
	if !ok {
		return def, nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return def, ErrInvalidOption{Key: key, Reason: err.Error()}
	}
	return f, nil
}

// String returns the value of key, it must be one of allowed when allowed is not empty
func (o Options) String(key string, def string, allowed ...string) (string, error) {
	v, ok := o[key]
	if !ok {
		return def, nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return def, ErrInvalidOption{Key: key, Reason: err.Error()}
	}
	if len(allowed) == 0 {
		return s, nil
	}
	for _, a := range allowed {
		if strings.EqualFold(a, s) {
			return a, nil
		}
	}
	return def, ErrInvalidOption{Key: key, Reason: "must be one of " + strings.Join(allowed, ", ")}
}
