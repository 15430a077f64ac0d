// Package mem changes page protection, writes code, allocates executable
// memory near a target and freezes sibling threads of the current process.
package mem

import (
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"
)

var (
	// ErrProtect means page protection could not be queried or changed.
	ErrProtect = errors.New("cannot change memory protection")
	// ErrAlloc means no executable memory could be obtained.
	ErrAlloc = errors.New("cannot allocate executable memory")
)

// View returns a byte slice aliasing process memory at addr.
func View(addr, n uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
}

// Read copies n bytes from addr.
func Read(addr uintptr, n int) []byte {
	b := make([]byte, n)
	copy(b, View(addr, uintptr(n)))
	return b
}

type saved struct {
	addr, size uintptr
	prot       uint32
}

// Token remembers the protection a range had before Unprotect changed it.
type Token struct {
	saved []saved
}

// Unprotect makes [addr, addr+size) readable, writable and executable and
// returns a token that restores the exact prior protection.
func Unprotect(addr, size uintptr) (*Token, error) {
	s, err := makeWritable(addr, size)
	if err != nil {
		return nil, fmt.Errorf("%w at 0x%X+%d: %v", ErrProtect, addr, size, err)
	}
	return &Token{saved: s}, nil
}

// Restore puts back the protection recorded by Unprotect.
func (t *Token) Restore() error {
	var first error
	for i := len(t.saved) - 1; i >= 0; i-- {
		s := t.saved[i]
		if err := setProtect(s.addr, s.size, s.prot); err != nil && first == nil {
			first = fmt.Errorf("%w at 0x%X+%d: %v", ErrProtect, s.addr, s.size, err)
		}
	}
	t.saved = nil
	return first
}

// Write stores b at addr, lifting protection for the duration of the write
// and flushing the instruction cache afterwards.
func Write(addr uintptr, b []byte) error {
	if len(b) == 0 {
		return nil
	}
	tok, err := Unprotect(addr, uintptr(len(b)))
	if err != nil {
		return err
	}
	Store(addr, b)
	err = tok.Restore()
	FlushICache(addr, uintptr(len(b)))
	return err
}

// Store copies b to addr on already writable memory. A write that fits
// inside one aligned qword is published with a single atomic store so a
// concurrent reader sees either the old or the new bytes.
func Store(addr uintptr, b []byte) {
	n := uintptr(len(b))
	if n == 0 {
		return
	}
	q := addr &^ 7
	if n <= 8 && (addr+n-1)&^7 == q {
		p := (*uint64)(unsafe.Pointer(q))
		cur := atomic.LoadUint64(p)
		shift := (addr - q) * 8
		for i := uintptr(0); i < n; i++ {
			cur &^= uint64(0xFF) << (shift + i*8)
			cur |= uint64(b[i]) << (shift + i*8)
		}
		atomic.StoreUint64(p, cur)
		return
	}
	copy(View(addr, n), b)
}

func pageRange(addr, size uintptr) (start, length uintptr) {
	start = pageSize * (addr / pageSize)
	length = pageSize * ((addr + size + pageSize - 1 - start) / pageSize)
	return start, length
}

var pageSize uintptr = 0x1000
