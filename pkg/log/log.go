// Package log provides the leveled, per-module logging backend shared by
// the server and the client, built on go-logging.
package log

import (
	"fmt"
	"io"
	goLog "log"
	"os"
	"strings"
	"sync"

	"gopkg.in/op/go-logging.v1"
)

const logFormat = "%{time:15:04:05.000} %{level:.4s} %{module}: %{message}"

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// Backend routes every module logger to one output. The output can be
// reopened with Rotate.
type Backend struct {
	sync.RWMutex

	leveled logging.LeveledBackend
	w       io.WriteCloser

	file    string
	level   string
	disable bool
}

// New creates a backend writing to file, or stdout when file is empty.
// level is one of ERROR, WARNING, NOTICE, INFO, DEBUG.
func New(file, level string, disable bool) (*Backend, error) {
	b := &Backend{
		file:    file,
		level:   level,
		disable: disable,
	}
	if err := b.open(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Backend) open() error {
	lvl, err := ParseLevel(b.level)
	if err != nil {
		return err
	}

	switch {
	case b.disable:
		b.w = nopCloser{io.Discard}
	case b.file == "":
		b.w = nopCloser{os.Stdout}
	default:
		f, err := os.OpenFile(b.file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		b.w = f
	}

	base := logging.NewLogBackend(b.w, "", 0)
	formatted := logging.NewBackendFormatter(base, logging.MustStringFormatter(logFormat))
	b.leveled = logging.AddModuleLevel(formatted)
	b.leveled.SetLevel(lvl, "")
	return nil
}

// Log implements logging.Backend
func (b *Backend) Log(level logging.Level, calldepth int, record *logging.Record) error {
	b.RLock()
	defer b.RUnlock()
	return b.leveled.Log(level, calldepth+1, record)
}

// GetLevel implements logging.Leveled
func (b *Backend) GetLevel(module string) logging.Level {
	b.RLock()
	defer b.RUnlock()
	return b.leveled.GetLevel(module)
}

// SetLevel implements logging.Leveled
func (b *Backend) SetLevel(level logging.Level, module string) {
	b.RLock()
	defer b.RUnlock()
	b.leveled.SetLevel(level, module)
}

// IsEnabledFor implements logging.Leveled
func (b *Backend) IsEnabledFor(level logging.Level, module string) bool {
	b.RLock()
	defer b.RUnlock()
	return b.leveled.IsEnabledFor(level, module)
}

// GetLogger returns a logger for module writing to this backend
func (b *Backend) GetLogger(module string) *logging.Logger {
	l := logging.MustGetLogger(module)
	l.SetBackend(b)
	return l
}

// GetLogWriter returns an io.Writer that logs each written line for module
// at level. Used for libraries that only accept a writer.
func (b *Backend) GetLogWriter(module, level string) io.Writer {
	lvl, err := ParseLevel(level)
	if err != nil {
		panic("log: GetLogWriter: " + err.Error())
	}
	return &lineWriter{l: b.GetLogger(module), lvl: lvl}
}

// GetGoLogger returns a standard library logger for module at level
func (b *Backend) GetGoLogger(module, level string) *goLog.Logger {
	return goLog.New(b.GetLogWriter(module, level), "", 0)
}

// Rotate reopens the log file
func (b *Backend) Rotate() error {
	b.Lock()
	defer b.Unlock()

	if err := b.w.Close(); err != nil {
		return err
	}
	return b.open()
}

// Close closes the log file
func (b *Backend) Close() error {
	b.Lock()
	defer b.Unlock()
	return b.w.Close()
}

// ParseLevel converts a level name to a logging.Level
func ParseLevel(l string) (logging.Level, error) {
	switch strings.ToUpper(l) {
	case "ERROR":
		return logging.ERROR, nil
	case "WARNING":
		return logging.WARNING, nil
	case "NOTICE":
		return logging.NOTICE, nil
	case "INFO":
		return logging.INFO, nil
	case "DEBUG":
		return logging.DEBUG, nil
	default:
		return logging.CRITICAL, fmt.Errorf("log: invalid level: '%v'", l)
	}
}

type lineWriter struct {
	l   *logging.Logger
	lvl logging.Level
}

func (w *lineWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch w.lvl {
		case logging.ERROR:
			w.l.Error(line)
		case logging.WARNING:
			w.l.Warning(line)
		case logging.NOTICE:
			w.l.Notice(line)
		case logging.INFO:
			w.l.Info(line)
		default:
			w.l.Debug(line)
		}
	}
	return len(p), nil
}
