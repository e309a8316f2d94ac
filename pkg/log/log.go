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
	"errors"
	"io"
	stdlog "log"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	LoggerName = "go-cyton"
	HelpLevels = "Must be one of: error, warning, info, debug."
)

var levelMapping = map[string]zapcore.Level{
	"error":   zapcore.ErrorLevel,
	"warning": zapcore.WarnLevel,
	"info":    zapcore.InfoLevel,
	"debug":   zapcore.DebugLevel,
}

var (
	mu     sync.RWMutex
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	logger = newLogger(os.Stderr)
)

func newLogger(out io.Writer) *zap.SugaredLogger {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(out), level)
	return zap.New(core).Named(LoggerName).Sugar()
}

func SetLevel(strLevel string) error {
	l, ok := levelMapping[strLevel]
	if !ok {
		return errors.New("Wrong log level. " + HelpLevels)
	}
	level.SetLevel(l)
	return nil
}

func Init(out io.Writer, strLevel string) {
	mu.Lock()
	logger = newLogger(out)
	mu.Unlock()
	if err := SetLevel(strLevel); err != nil {
		panic(err)
	}
}

// Logger returns the underlying zap logger, for libraries that want one
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger.Desugar()
}

// StdLogger adapts the logger for libraries expecting a standard library logger.
// Lines written to it are logged at debug level.
func StdLogger() *stdlog.Logger {
	l, err := zap.NewStdLogAt(Logger(), zapcore.DebugLevel)
	if err != nil {
		return zap.NewStdLog(Logger())
	}
	return l
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Error(format string, v ...interface{}) {
	current().Errorf(format, v...)
}

func Warning(format string, v ...interface{}) {
	current().Warnf(format, v...)
}

func Info(format string, v ...interface{}) {
	current().Infof(format, v...)
}

func Debug(format string, v ...interface{}) {
	current().Debugf(format, v...)
}
