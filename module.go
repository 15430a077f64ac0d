// Copyright (C) 2022 K2 Cyber Security Inc.

package hookingo

import (
	"fmt"

	"github.com/k2io/hookingo/internal/image"
	"github.com/k2io/hookingo/internal/pattern"
)

// Module is an executable image mapped into the current process.
type Module struct {
	Name      string
	Base      uintptr
	Size      uintptr
	Timestamp uint32

	img *image.Image
}

// OpenModule reads the headers of the image mapped at base.
func OpenModule(name string, base uintptr) (*Module, error) {
	img, err := image.Open(base)
	if err != nil {
		return nil, fmt.Errorf("module %s: %w", name, err)
	}
	return &Module{Name: name, Base: img.Base, Size: img.Size, Timestamp: img.Timestamp, img: img}, nil
}

// Bytes aliases the whole mapped image.
func (m *Module) Bytes() []byte {
	return m.img.Bytes()
}

// Find returns the address of the first match of an IDA-style signature.
func (m *Module) Find(sig string) (uintptr, error) {
	p, err := pattern.Parse(sig)
	if err != nil {
		return 0, err
	}
	return m.FindPattern(p)
}

// FindPattern returns the address of the leftmost match of p.
func (m *Module) FindPattern(p pattern.Pattern) (uintptr, error) {
	off, ok := pattern.Scan(m.Bytes(), p)
	if !ok {
		return 0, fmt.Errorf("%w in %s: %s", pattern.ErrNotFound, m.Name, p)
	}
	return m.Base + uintptr(off), nil
}

// Check fails unless [addr, addr+n) lies inside the module.
func (m *Module) Check(addr, n uintptr) error {
	return m.img.Check(addr, n)
}

// Export returns the address of a function exported by name.
func (m *Module) Export(name string) (uintptr, error) {
	return m.img.Export(name)
}

// Symbols returns every function exported by name.
func (m *Module) Symbols() (map[string]uintptr, error) {
	return m.img.Exports()
}

// Offset renders addr relative to the module for logs.
func (m *Module) Offset(addr uintptr) string {
	if addr < m.Base || addr >= m.Base+m.Size {
		return fmt.Sprintf("0x%X", addr)
	}
	return fmt.Sprintf("%s+0x%X", m.Name, addr-m.Base)
}
