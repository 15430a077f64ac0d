//go:build linux

package hookingo

import (
	"testing"
	"unsafe"

	"github.com/retroenv/retrogolib/assert"
	"golang.org/x/sys/unix"
)

// codePage maps a read-execute page holding code at its start.
func codePage(t *testing.T, code []byte) uintptr {
	t.Helper()
	b, err := unix.Mmap(-1, 0, unix.Getpagesize(), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	assert.NoError(t, err)
	copy(b, code)
	assert.NoError(t, unix.Mprotect(b, unix.PROT_READ|unix.PROT_EXEC))
	t.Cleanup(func() { _ = unix.Munmap(b) })
	return uintptr(unsafe.Pointer(&b[0]))
}
