package logging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func TestFileTruncatesOnOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fix.log")
	assert.NoError(t, os.WriteFile(path, []byte("previous run\n"), 0o600))

	w, err := NewFile(path, 0)
	assert.NoError(t, err)
	_, err = w.Write([]byte("fresh\n"))
	assert.NoError(t, err)
	assert.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, "fresh\n", string(data))
}

func TestFileStopsAtLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fix.log")
	w, err := NewFile(path, 8)
	assert.NoError(t, err)

	n, err := w.Write([]byte("0123456789"))
	assert.NoError(t, err)
	assert.Equal(t, 10, n)

	// full: reported as written, nothing stored
	n, err = w.Write([]byte("dropped"))
	assert.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, int64(10), w.Size())
	assert.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))
}

func TestFileWriteAfterClose(t *testing.T) {
	w, err := NewFile(filepath.Join(t.TempDir(), "fix.log"), 0)
	assert.NoError(t, err)
	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())

	n, err := w.Write([]byte("x"))
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBanner(t *testing.T) {
	var buf bytes.Buffer
	Banner{
		Name:      "FFXVIFix",
		Version:   "0.7.9",
		LogPath:   `C:\game\FFXVIFix.log`,
		Module:    "ffxvi.exe",
		Base:      0x140000000,
		Timestamp: 42,
	}.Write(New(&buf))

	out := buf.String()
	assert.True(t, strings.Contains(out, "FFXVIFix v0.7.9 loaded"))
	assert.True(t, strings.Contains(out, `"name":"ffxvi.exe"`))
	assert.True(t, strings.Contains(out, `"address":"0x140000000"`))
	assert.True(t, strings.Contains(out, `"timestamp":42`))
}

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf)
	logger.Debug("scan cache hit")
	assert.True(t, strings.Contains(buf.String(), "DEBUG"))
	assert.True(t, strings.Contains(buf.String(), "scan cache hit"))

	logger.Error("patch failed", errors.New("read only"))
	assert.True(t, strings.Contains(buf.String(), "ERROR"))
	assert.True(t, strings.Contains(buf.String(), "read only"))

	Discard().Error("dropped", nil)
}
