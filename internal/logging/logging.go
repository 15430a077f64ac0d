// Package logging provides the log file sink and logger setup of the fix.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/retroenv/retrogolib/log"
)

// DefaultMaxSize is where the log file stops growing.
const DefaultMaxSize = 10 << 20

// File is a log file that is truncated when opened and silently drops
// writes once it reaches its size limit.
type File struct {
	mu      sync.Mutex
	f       *os.File
	size    int64
	maxSize int64
}

// NewFile creates or truncates the log file at path.
func NewFile(path string, maxSize int64) (*File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &File{f: f, maxSize: maxSize}, nil
}

// Write appends p unless the file is already full. Dropped records are
// reported as written so the logger never fails.
func (w *File) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil || w.size >= w.maxSize {
		return len(p), nil
	}
	n, err := w.f.Write(p)
	w.size += int64(n)
	return n, err
}

// Size returns the number of bytes written so far.
func (w *File) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

func (w *File) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

// New returns a console logger writing to w at debug level.
func New(w io.Writer) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.DebugLevel
	cfg.Output = w
	return log.NewWithConfig(cfg)
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.NewNop()
}

// Banner describes the fix and its host for the first lines of the log.
type Banner struct {
	Name      string
	Version   string
	LogPath   string
	Module    string
	Path      string
	Base      uintptr
	Timestamp uint32
}

// Write logs the banner.
func (b Banner) Write(logger *log.Logger) {
	logger.Info(fmt.Sprintf("%s v%s loaded", b.Name, b.Version))
	logger.Info("log file", log.String("path", b.LogPath))
	logger.Info("host module",
		log.String("name", b.Module),
		log.String("path", b.Path),
		log.String("address", fmt.Sprintf("0x%X", b.Base)),
		log.Uint32("timestamp", b.Timestamp))
}
