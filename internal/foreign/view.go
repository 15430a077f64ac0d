// Package foreign gives bounds-checked typed access to structures owned by
// the host process whose layout is only known by offset.
package foreign

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// View is a window of size bytes at a foreign address. Every accessor
// checks that the field lies inside the window; an out-of-range access reads
// as zero, writes nothing and reports false.
type View struct {
	addr uintptr
	size uintptr
}

// At returns a view of size bytes at addr.
func At(addr, size uintptr) View {
	return View{addr: addr, size: size}
}

// Valid reports whether the view points anywhere.
func (v View) Valid() bool {
	return v.addr != 0 && v.size != 0
}

// Addr returns the base address of the view.
func (v View) Addr() uintptr { return v.addr }

func (v View) field(off, n uintptr) ([]byte, bool) {
	if !v.Valid() || off > v.size || n > v.size-off {
		return nil, false
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(v.addr+off)), n), true
}

func (v View) Uint8(off uintptr) (uint8, bool) {
	b, ok := v.field(off, 1)
	if !ok {
		return 0, false
	}
	return b[0], true
}

func (v View) SetUint8(off uintptr, x uint8) bool {
	b, ok := v.field(off, 1)
	if ok {
		b[0] = x
	}
	return ok
}

func (v View) Uint32(off uintptr) (uint32, bool) {
	b, ok := v.field(off, 4)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b), true
}

func (v View) SetUint32(off uintptr, x uint32) bool {
	b, ok := v.field(off, 4)
	if ok {
		binary.LittleEndian.PutUint32(b, x)
	}
	return ok
}

func (v View) Int32(off uintptr) (int32, bool) {
	x, ok := v.Uint32(off)
	return int32(x), ok
}

func (v View) SetInt32(off uintptr, x int32) bool {
	return v.SetUint32(off, uint32(x))
}

func (v View) Float32(off uintptr) (float32, bool) {
	x, ok := v.Uint32(off)
	return math.Float32frombits(x), ok
}

func (v View) SetFloat32(off uintptr, x float32) bool {
	return v.SetUint32(off, math.Float32bits(x))
}

func (v View) Uint64(off uintptr) (uint64, bool) {
	b, ok := v.field(off, 8)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint64(b), true
}

func (v View) SetUint64(off uintptr, x uint64) bool {
	b, ok := v.field(off, 8)
	if ok {
		binary.LittleEndian.PutUint64(b, x)
	}
	return ok
}
