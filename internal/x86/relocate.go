package x86

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// condition codes indexed the way the 0x70/0x0F80 opcodes encode them
var jccCode = map[x86asm.Op]byte{
	x86asm.JO: 0x0, x86asm.JNO: 0x1, x86asm.JB: 0x2, x86asm.JAE: 0x3,
	x86asm.JE: 0x4, x86asm.JNE: 0x5, x86asm.JBE: 0x6, x86asm.JA: 0x7,
	x86asm.JS: 0x8, x86asm.JNS: 0x9, x86asm.JP: 0xA, x86asm.JNP: 0xB,
	x86asm.JL: 0xC, x86asm.JGE: 0xD, x86asm.JLE: 0xE, x86asm.JG: 0xF,
}

// Relocated is displaced code rewritten to run at a new address.
type Relocated struct {
	Addr uintptr
	Code []byte
	// Offsets[i] is where displaced instruction i starts inside Code.
	Offsets []int
}

// Map translates an address inside the displaced range to the equivalent
// address in the relocated copy. Addresses that are not instruction
// boundaries are not translated.
func (r *Relocated) Map(d *Displaced, addr uintptr) (uintptr, bool) {
	for i, inst := range d.Insts {
		if inst.Addr == addr {
			return r.Addr + uintptr(r.Offsets[i]), true
		}
	}
	return 0, false
}

// Unmap translates an address inside the relocated copy back to the
// original instruction it was derived from.
func (r *Relocated) Unmap(d *Displaced, addr uintptr) (uintptr, bool) {
	for i, off := range r.Offsets {
		if r.Addr+uintptr(off) == addr {
			return d.Insts[i].Addr, true
		}
	}
	return 0, false
}

// Relocate rewrites the displaced instructions to execute at dst, preserving
// the targets of relative branches and RIP-relative operands, and appends a
// jump back to the first instruction after the displaced range.
func Relocate(d *Displaced, dst uintptr) (*Relocated, error) {
	r := &Relocated{Addr: dst}
	for i := range d.Insts {
		inst := &d.Insts[i]
		r.Offsets = append(r.Offsets, len(r.Code))
		at := dst + uintptr(len(r.Code))

		b, err := relocateOne(d, inst, at)
		if err != nil {
			return nil, err
		}
		r.Code = append(r.Code, b...)
	}
	back := d.Addr + uintptr(d.Len)
	r.Code = append(r.Code, Jump(dst+uintptr(len(r.Code)), back)...)
	return r, nil
}

// MaxRelocatedLen bounds the size Relocate can produce for d.
func MaxRelocatedLen(d *Displaced) int {
	n := JmpAbsLen
	for _, inst := range d.Insts {
		// a rewritten branch never exceeds 16 bytes
		if inst.Len > 16 {
			n += inst.Len
		} else {
			n += 16
		}
	}
	return n
}

func relocateOne(d *Displaced, inst *Inst, at uintptr) ([]byte, error) {
	if target, ok := relTarget(inst); ok {
		if d.Contains(target) && target != d.Addr {
			return nil, fmt.Errorf("%w: %v at 0x%X branches into the displaced range", ErrUnrelocatable, inst.Op, inst.Addr)
		}
		return relocateBranch(inst, at, target)
	}
	if target, ok := ripOperand(inst); ok {
		return relocateRIP(inst, at, target)
	}
	return append([]byte(nil), inst.Raw...), nil
}

func relocateBranch(inst *Inst, at, target uintptr) ([]byte, error) {
	switch inst.Op {
	case x86asm.JMP:
		return Jump(at, target), nil

	case x86asm.CALL:
		if rel, ok := Rel32(at, 5, target); ok {
			b := []byte{0xE8, 0, 0, 0, 0}
			binary.LittleEndian.PutUint32(b[1:], uint32(rel))
			return b, nil
		}
		return callAbs(target), nil
	}

	cc, ok := jccCode[inst.Op]
	if !ok {
		// LOOP, JRCXZ and XBEGIN have no rel32 form
		return nil, fmt.Errorf("%w: %v at 0x%X", ErrUnrelocatable, inst.Op, inst.Addr)
	}
	if rel, ok := Rel32(at, 6, target); ok {
		b := []byte{0x0F, 0x80 | cc, 0, 0, 0, 0}
		binary.LittleEndian.PutUint32(b[2:], uint32(rel))
		return b, nil
	}
	// inverted short jcc skips an absolute jump
	b := []byte{0x70 | (cc ^ 1), JmpAbsLen}
	return append(b, JmpAbs(target)...), nil
}

func relocateRIP(inst *Inst, at, target uintptr) ([]byte, error) {
	off, ok := dispOffset(inst)
	if !ok {
		return nil, fmt.Errorf("%w: cannot locate displacement of %v at 0x%X", ErrUnrelocatable, inst.Op, inst.Addr)
	}
	rel, ok := Rel32(at, inst.Len, target)
	if !ok {
		return nil, fmt.Errorf("%w: %v at 0x%X references 0x%X out of rel32 range", ErrUnrelocatable, inst.Op, inst.Addr, target)
	}
	b := append([]byte(nil), inst.Raw...)
	binary.LittleEndian.PutUint32(b[off:], uint32(rel))
	return b, nil
}

// dispOffset finds the disp32 of a RIP-relative operand inside the raw
// encoding. The disp32 is followed only by an optional immediate.
func dispOffset(inst *Inst) (int, bool) {
	var disp int64
	for _, a := range inst.Args {
		if mem, ok := a.(x86asm.Mem); ok && mem.Base == x86asm.RIP {
			disp = disp32(mem)
			break
		}
	}
	want := uint32(int32(disp))
	if inst.PCRel == 4 && inst.PCRelOff > 0 && inst.PCRelOff+4 <= len(inst.Raw) &&
		binary.LittleEndian.Uint32(inst.Raw[inst.PCRelOff:]) == want {
		return inst.PCRelOff, true
	}
	// opcode and ModRM take at least two bytes
	for off := len(inst.Raw) - 4; off >= 2; off-- {
		if binary.LittleEndian.Uint32(inst.Raw[off:]) == want {
			return off, true
		}
	}
	return 0, false
}
