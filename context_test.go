package hookingo

import (
	"math"
	"testing"
	"unsafe"

	"github.com/k2io/hookingo/internal/x86"
	"github.com/retroenv/retrogolib/assert"
)

func liveContext() *Context {
	c := &Context{rsp: 0x7FF0, live: true}
	for r := RAX; r <= R15; r++ {
		if r != RSP {
			c.f.gpr[gprSlot[r]] = 0x1111111111111111 * uint64(r)
		}
	}
	return c
}

func panics(fn func()) (did bool) {
	defer func() { did = recover() != nil }()
	fn()
	return false
}

func TestFrameLayout(t *testing.T) {
	var f trapFrame
	assert.Equal(t, uintptr(x86.FrameXMM), unsafe.Offsetof(f.xmm))
	assert.Equal(t, uintptr(x86.FrameGPR), unsafe.Offsetof(f.gpr))
	assert.Equal(t, uintptr(x86.FrameRFLAGS), unsafe.Offsetof(f.rflags))
	assert.Equal(t, uintptr(x86.FrameSize), unsafe.Sizeof(f))
}

func TestContextWidths(t *testing.T) {
	tests := []struct {
		name string
		set  func(c *Context)
		want uint64
	}{
		{name: "64", set: func(c *Context) { c.Set(RBX, 0xDEADBEEFCAFEBABE) }, want: 0xDEADBEEFCAFEBABE},
		{name: "32 keeps high half", set: func(c *Context) { c.Set32(RBX, 0x12345678) }, want: 0x3333333312345678},
		{name: "16", set: func(c *Context) { c.Set16(RBX, 0xABCD) }, want: 0x333333333333ABCD},
		{name: "8", set: func(c *Context) { c.Set8(RBX, 0x7F) }, want: 0x333333333333337F},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := liveContext()
			tt.set(c)
			assert.Equal(t, tt.want, c.Get(RBX))
			// neighbours untouched
			assert.Equal(t, uint64(0x2222222222222222), c.Get(RDX))
		})
	}

	c := liveContext()
	assert.Equal(t, uint32(0x77777777), c.Get32(RDI))
	assert.Equal(t, uint16(0x8888), c.Get16(R8))
	assert.Equal(t, uint8(0xFF), c.Get8(R15))
}

func TestContextRSP(t *testing.T) {
	c := liveContext()
	assert.Equal(t, uint64(0x7FF0), c.Get(RSP))
	assert.True(t, panics(func() { c.Set(RSP, 0) }))
	assert.True(t, panics(func() { c.Set8(RSP, 0) }))

	c.Set(RFLAGS, 0x246)
	assert.Equal(t, uint64(0x246), c.f.rflags)
}

func TestContextXMM(t *testing.T) {
	c := liveContext()
	c.SetF32(XMM5, 0, 2.5)
	c.SetF32(XMM5, 3, -1)
	c.SetU32(XMM5, 1, 7)

	assert.Equal(t, float32(2.5), c.F32(XMM5, 0))
	assert.Equal(t, uint32(7), c.U32(XMM5, 1))
	assert.Equal(t, float32(0), c.F32(XMM5, 2))
	assert.Equal(t, float32(-1), c.F32(XMM5, 3))
	assert.Equal(t, uint64(7)<<32|uint64(math.Float32bits(2.5)), c.U64(XMM5, 0))

	c.SetF64(XMM15, 1, math.Pi)
	assert.Equal(t, math.Pi, c.F64(XMM15, 1))
	assert.Equal(t, uint64(0), c.U64(XMM15, 0))
	assert.True(t, panics(func() { c.F32(XMM(16), 0) }))
}

func TestContextDeadAfterCallback(t *testing.T) {
	c := liveContext()
	c.live = false
	assert.True(t, panics(func() { c.Get(RAX) }))
	assert.True(t, panics(func() { c.SetF32(XMM0, 0, 1) }))
	assert.True(t, panics(func() { c.Stack(0) }))
}

// Foreign memory in these tests lives outside the goroutine stack, which
// moves when it grows.
var (
	stackWords [16]uint64
	derefBytes [16]byte
)

func TestContextStack(t *testing.T) {
	stackWords = [16]uint64{}
	stack := stackWords[:]
	c := &Context{rsp: uint64(uintptr(unsafe.Pointer(&stack[0]))), live: true}

	assert.True(t, c.Stack(0x40).SetInt32(0, 0))
	stack[8] = 0xFFFFFFFF_00000005
	v, ok := c.Stack(0x40).Int32(0)
	assert.True(t, ok)
	assert.Equal(t, int32(5), v)
	// the slot view is 8 bytes wide
	_, ok = c.Stack(0x40).Uint32(6)
	assert.False(t, ok)
}

func TestContextDeref(t *testing.T) {
	derefBytes = [16]byte{}
	buf := derefBytes[:]
	c := liveContext()
	c.Set(RCX, uint64(uintptr(unsafe.Pointer(&buf[0]))))

	v := c.Deref(RCX, 4, 8)
	assert.True(t, v.Valid())
	assert.True(t, v.SetInt32(4, 1080))
	assert.Equal(t, byte(0x38), buf[8])
	assert.Equal(t, byte(0x04), buf[9])

	c.Set(RCX, 0)
	v = c.Deref(RCX, 0x40, 4)
	assert.False(t, v.Valid())
	assert.False(t, v.SetInt32(0, 1))
}
