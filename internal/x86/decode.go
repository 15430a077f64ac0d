// Package x86 measures, relocates and encodes amd64 machine code for
// trampolines and hook stubs.
package x86

import (
	"bytes"
	"errors"
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

var (
	// ErrDecode means an instruction at the hook site could not be decoded.
	ErrDecode = errors.New("cannot decode instruction")
	// ErrUnrelocatable means a displaced instruction cannot be moved.
	ErrUnrelocatable = errors.New("instruction not relocatable")
)

// MaxInstLen is the architectural upper bound of one instruction.
const MaxInstLen = 15

// Inst is one decoded instruction together with its original address.
type Inst struct {
	Addr uintptr
	Raw  []byte
	x86asm.Inst
}

// End returns the address of the following instruction.
func (i *Inst) End() uintptr {
	return i.Addr + uintptr(i.Len)
}

// Displaced is the run of whole instructions overwritten by a redirect.
type Displaced struct {
	Addr  uintptr
	Len   int
	Insts []Inst
}

// Measure decodes whole instructions from code, which is located at addr,
// until at least need bytes are covered. The result never splits an
// instruction and keeps its own copy of the bytes, so it stays valid after
// code is overwritten.
func Measure(code []byte, addr uintptr, need int) (*Displaced, error) {
	d := &Displaced{Addr: addr}
	for d.Len < need {
		if d.Len >= len(code) {
			return nil, fmt.Errorf("%w at 0x%X: code window exhausted", ErrDecode, addr+uintptr(d.Len))
		}
		src := code[d.Len:]
		inst, err := x86asm.Decode(src, 64)
		if err != nil {
			return nil, fmt.Errorf("%w at 0x%X: %v", ErrDecode, addr+uintptr(d.Len), err)
		}
		if inst.Len <= 0 || inst.Len > len(src) {
			return nil, fmt.Errorf("%w at 0x%X: bad length %d", ErrDecode, addr+uintptr(d.Len), inst.Len)
		}
		d.Insts = append(d.Insts, Inst{
			Addr: addr + uintptr(d.Len),
			Raw:  bytes.Clone(src[:inst.Len]),
			Inst: inst,
		})
		d.Len += inst.Len
	}
	return d, nil
}

// Contains reports whether addr lies inside the displaced range.
func (d *Displaced) Contains(addr uintptr) bool {
	return addr >= d.Addr && addr < d.Addr+uintptr(d.Len)
}

// Bytes returns a copy of the original displaced bytes.
func (d *Displaced) Bytes() []byte {
	b := make([]byte, 0, d.Len)
	for _, i := range d.Insts {
		b = append(b, i.Raw...)
	}
	return b
}

// relTarget returns the branch target of inst when it carries a relative
// immediate operand.
func relTarget(inst *Inst) (uintptr, bool) {
	for _, a := range inst.Args {
		if a == nil {
			break
		}
		if rel, ok := a.(x86asm.Rel); ok {
			return uintptr(int64(inst.End()) + int64(rel)), true
		}
	}
	return 0, false
}

// ripOperand returns the absolute address referenced by a RIP-relative
// memory operand of inst.
func ripOperand(inst *Inst) (uintptr, bool) {
	for _, a := range inst.Args {
		if a == nil {
			break
		}
		if mem, ok := a.(x86asm.Mem); ok && mem.Base == x86asm.RIP {
			return uintptr(int64(inst.End()) + disp32(mem)), true
		}
	}
	return 0, false
}

// disp32 returns the sign-extended displacement of m. x86asm stores a
// 32-bit displacement zero-extended.
func disp32(m x86asm.Mem) int64 {
	return int64(int32(m.Disp))
}
