// Copyright (C) 2022 K2 Cyber Security Inc.

package hookingo

import (
	"fmt"
	"math"

	"github.com/k2io/hookingo/internal/foreign"
)

// GPR names a general purpose register in hardware encoding order.
type GPR int

const (
	RAX GPR = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
	RFLAGS
)

var gprNames = [...]string{
	"RAX", "RCX", "RDX", "RBX", "RSP", "RBP", "RSI", "RDI",
	"R8", "R9", "R10", "R11", "R12", "R13", "R14", "R15", "RFLAGS",
}

func (r GPR) String() string {
	if r >= 0 && int(r) < len(gprNames) {
		return gprNames[r]
	}
	return fmt.Sprintf("GPR(%d)", int(r))
}

// XMM names a vector register.
type XMM int

const (
	XMM0 XMM = iota
	XMM1
	XMM2
	XMM3
	XMM4
	XMM5
	XMM6
	XMM7
	XMM8
	XMM9
	XMM10
	XMM11
	XMM12
	XMM13
	XMM14
	XMM15
)

// Context is the register state of the thread that hit a mid hook. The
// callback edits a private copy; the copy is committed when the callback
// returns and the Context becomes unusable. Any use after that panics.
type Context struct {
	f    trapFrame
	rsp  uint64
	live bool
}

func (c *Context) check() {
	if !c.live {
		panic("hookingo: Context used outside its callback")
	}
}

func (c *Context) slot(r GPR) *uint64 {
	c.check()
	switch {
	case r == RFLAGS:
		return &c.f.rflags
	case r == RSP:
		return &c.rsp
	case r < RAX || r > R15:
		panic(fmt.Sprintf("hookingo: bad register %v", r))
	}
	return &c.f.gpr[gprSlot[r]]
}

func (c *Context) set(r GPR, v, mask uint64) {
	if r == RSP {
		panic("hookingo: RSP is read-only in a mid hook")
	}
	p := c.slot(r)
	*p = *p&^mask | v&mask
}

// Get returns the 64-bit value of r.
func (c *Context) Get(r GPR) uint64 { return *c.slot(r) }

// Set replaces the 64-bit value of r. RSP cannot be written.
func (c *Context) Set(r GPR, v uint64) { c.set(r, v, math.MaxUint64) }

// Get32 returns the low 32 bits of r.
func (c *Context) Get32(r GPR) uint32 { return uint32(*c.slot(r)) }

// Set32 replaces only the low 32 bits of r.
func (c *Context) Set32(r GPR, v uint32) { c.set(r, uint64(v), math.MaxUint32) }

func (c *Context) Get16(r GPR) uint16 { return uint16(*c.slot(r)) }

func (c *Context) Set16(r GPR, v uint16) { c.set(r, uint64(v), math.MaxUint16) }

func (c *Context) Get8(r GPR) uint8 { return uint8(*c.slot(r)) }

func (c *Context) Set8(r GPR, v uint8) { c.set(r, uint64(v), math.MaxUint8) }

func (c *Context) lanes(x XMM) *[2]uint64 {
	c.check()
	if x < XMM0 || x > XMM15 {
		panic(fmt.Sprintf("hookingo: bad vector register %d", int(x)))
	}
	return &c.f.xmm[x]
}

// U32 returns 32-bit lane 0-3 of x.
func (c *Context) U32(x XMM, lane int) uint32 {
	v := c.lanes(x)
	return uint32(v[lane/2] >> (32 * (lane % 2)))
}

// SetU32 replaces 32-bit lane 0-3 of x.
func (c *Context) SetU32(x XMM, lane int, u uint32) {
	v := c.lanes(x)
	shift := 32 * (lane % 2)
	v[lane/2] = v[lane/2]&^(math.MaxUint32<<shift) | uint64(u)<<shift
}

func (c *Context) F32(x XMM, lane int) float32 {
	return math.Float32frombits(c.U32(x, lane))
}

func (c *Context) SetF32(x XMM, lane int, f float32) {
	c.SetU32(x, lane, math.Float32bits(f))
}

// U64 returns 64-bit lane 0-1 of x.
func (c *Context) U64(x XMM, lane int) uint64 { return c.lanes(x)[lane] }

func (c *Context) SetU64(x XMM, lane int, u uint64) { c.lanes(x)[lane] = u }

func (c *Context) F64(x XMM, lane int) float64 {
	return math.Float64frombits(c.U64(x, lane))
}

func (c *Context) SetF64(x XMM, lane int, f float64) {
	c.SetU64(x, lane, math.Float64bits(f))
}

// Stack returns a view of the 8-byte stack slot at RSP+off as it was when
// the hook fired. Writes through it go straight to the thread's stack.
func (c *Context) Stack(off uintptr) foreign.View {
	c.check()
	return foreign.At(uintptr(c.rsp)+off, 8)
}

// Deref returns a view of size bytes at off past the address held in r.
// The view is invalid when r holds a null pointer.
func (c *Context) Deref(r GPR, off, size uintptr) foreign.View {
	base := uintptr(c.Get(r))
	if base == 0 {
		return foreign.View{}
	}
	return foreign.At(base+off, size)
}
