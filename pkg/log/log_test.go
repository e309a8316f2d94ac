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

package log

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	Init(&buf, "warning")
	defer Init(os.Stderr, "info")

	Info("hidden %d", 1)
	Warning("shown %d", 2)
	Error("shown %d", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown 2")
	assert.Contains(t, out, "shown 3")
	assert.Contains(t, out, LoggerName)

	assert.NoError(t, SetLevel("debug"))
	Debug("debug line")
	assert.Contains(t, buf.String(), "debug line")

	assert.Error(t, SetLevel("verbose"))
}

func TestStdLogger(t *testing.T) {
	var buf bytes.Buffer
	Init(&buf, "debug")
	defer Init(os.Stderr, "info")

	StdLogger().Println("access line")
	assert.Contains(t, buf.String(), "access line")

	assert.NoError(t, SetLevel("info"))
	StdLogger().Println("quiet line")
	assert.NotContains(t, buf.String(), "quiet line")
}
