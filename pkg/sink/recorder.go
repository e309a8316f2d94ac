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
	"bufio"
	"io"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"jinr.ru/greenlab/go-cyton/pkg/cyton"
	"jinr.ru/greenlab/go-cyton/pkg/log"
)

// Recorder appends CBOR encoded samples to a file
type Recorder struct {
	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
	enc  *cbor.Encoder
}

func NewRecorder(filename string) (*Recorder, error) {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Error("Error while creating file: %s", filename)
		return nil, err
	}
	buf := bufio.NewWriter(file)
	return &Recorder{
		file: file,
		buf:  buf,
		enc:  cbor.NewEncoder(buf),
	}, nil
}

func (r *Recorder) Record(sample *cyton.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return ErrClosed{What: "recorder"}
	}
	return r.enc.Encode(sample)
}

// Flush writes the buffered samples to disk and closes the file
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.buf.Flush()
	if syncErr := r.file.Sync(); err == nil {
		err = syncErr
	}
	if closeErr := r.file.Close(); err == nil {
		err = closeErr
	}
	r.file = nil
	return err
}

// ReadRecording decodes every sample stored in a recording
func ReadRecording(filename string) ([]*cyton.Sample, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var samples []*cyton.Sample
	dec := cbor.NewDecoder(bufio.NewReader(file))
	for {
		s := &cyton.Sample{}
		if err := dec.Decode(s); err != nil {
			if err == io.EOF {
				return samples, nil
			}
			return samples, err
		}
		samples = append(samples, s)
	}
}
