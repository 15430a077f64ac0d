// Copyright (C) 2022 K2 Cyber Security Inc.

package hookingo

import (
	"bytes"
	"unsafe"

	"github.com/k2io/hookingo/internal/mem"
)

// WriteBytes overwrites live memory at addr, restoring the prior page
// protection afterwards.
func WriteBytes(addr uintptr, b []byte) error {
	return mem.Write(addr, b)
}

// WriteValue stores v at addr in its in-memory representation.
func WriteValue[T any](addr uintptr, v T) error {
	b := unsafe.Slice((*byte)(unsafe.Pointer(&v)), unsafe.Sizeof(v))
	return mem.Write(addr, bytes.Clone(b))
}

// ReadBytes copies n bytes from addr.
func ReadBytes(addr uintptr, n int) []byte {
	return mem.Read(addr, n)
}

// PatchSite is a reversible byte patch.
type PatchSite struct {
	Addr        uintptr
	Original    []byte
	Replacement []byte
}

// NewPatchSite records the bytes currently at addr as the original.
func NewPatchSite(addr uintptr, replacement []byte) *PatchSite {
	return &PatchSite{
		Addr:        addr,
		Original:    ReadBytes(addr, len(replacement)),
		Replacement: bytes.Clone(replacement),
	}
}

// Apply writes the replacement. Applying twice is harmless.
func (p *PatchSite) Apply() error {
	return WriteBytes(p.Addr, p.Replacement)
}

// Revert writes the original bytes back.
func (p *PatchSite) Revert() error {
	return WriteBytes(p.Addr, p.Original)
}

// Applied reports whether the replacement is currently in place.
func (p *PatchSite) Applied() bool {
	return bytes.Equal(ReadBytes(p.Addr, len(p.Replacement)), p.Replacement)
}
