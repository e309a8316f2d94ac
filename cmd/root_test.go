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

package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	var out bytes.Buffer
	root := NewRootCommand(&out)

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"completion", "config", "server", "stream", "reset", "sync", "channel",
		"impedance", "test-signal", "sd", "board", "radio"} {
		assert.True(t, names[name], name)
	}

	root.SetArgs([]string{"completion", "--log-level", "error"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "go-cyton")
}

func TestConfigInit(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	var out bytes.Buffer
	root := NewRootCommand(&out)
	root.SetArgs([]string{"config", "init"})
	require.NoError(t, root.Execute())

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	path := filepath.Join(home, ".go-cyton", "config")
	assert.FileExists(t, path)
	assert.Contains(t, out.String(), path)

	// a second init refuses to overwrite
	root = NewRootCommand(&out)
	root.SetArgs([]string{"config", "init"})
	assert.Error(t, root.Execute())
	root = NewRootCommand(&out)
	root.SetArgs([]string{"config", "init", "--overwrite"})
	assert.NoError(t, root.Execute())
}
