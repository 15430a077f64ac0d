package x86

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"golang.org/x/arch/x86/x86asm"
)

// mov [rsp+8], rbx; push rdi; sub rsp, 0x20; mov rdi, rcx; call rel32
var prologue = []byte{
	0x48, 0x89, 0x5C, 0x24, 0x08,
	0x57,
	0x48, 0x83, 0xEC, 0x20,
	0x48, 0x8B, 0xF9,
	0xE8, 0x00, 0x01, 0x00, 0x00,
	0xC3,
}

func decodeAt(t *testing.T, code []byte, addr uintptr) *Inst {
	t.Helper()
	inst, err := x86asm.Decode(code, 64)
	assert.NoError(t, err)
	return &Inst{Addr: addr, Raw: code[:inst.Len], Inst: inst}
}

func TestMeasure(t *testing.T) {
	tests := []struct {
		name  string
		need  int
		len   int
		insts int
	}{
		{name: "exact first instruction", need: 5, len: 5, insts: 1},
		{name: "never splits", need: 6, len: 6, insts: 2},
		{name: "rel32 redirect plus abs", need: 14, len: 18, insts: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Measure(prologue, 0x140001000, tt.need)
			assert.NoError(t, err)
			assert.Equal(t, tt.len, d.Len)
			assert.Equal(t, tt.insts, len(d.Insts))
			assert.Equal(t, uintptr(0x140001005), d.Insts[0].End())
		})
	}
}

func TestMeasureExhausted(t *testing.T) {
	_, err := Measure(prologue[:4], 0x1000, 5)
	assert.True(t, errors.Is(err, ErrDecode))
}

func TestMeasureKeepsOriginalBytes(t *testing.T) {
	code := append([]byte(nil), prologue...)
	d, err := Measure(code, 0x1000, 5)
	assert.NoError(t, err)

	// the site gets overwritten by a redirect
	copy(code, []byte{0xE9, 0xFB, 0xBF, 0xFE, 0xFF})
	got := d.Bytes()
	for i := 0; i < 5; i++ {
		assert.Equal(t, prologue[i], got[i])
	}
}

func TestRelocateCall(t *testing.T) {
	const src = uintptr(0x140001000)
	d, err := Measure(prologue, src, 14)
	assert.NoError(t, err)
	callTarget := src + 18 + 0x100

	tests := []struct {
		name string
		dst  uintptr
		abs  bool
	}{
		{name: "near", dst: 0x140200000},
		{name: "far", dst: 0x7FF000000000, abs: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Relocate(d, tt.dst)
			assert.NoError(t, err)
			assert.Equal(t, 5, len(r.Offsets))
			assert.True(t, len(r.Code) <= MaxRelocatedLen(d))

			off := r.Offsets[4]
			if tt.abs {
				assert.Equal(t, byte(0xFF), r.Code[off])
				assert.Equal(t, byte(0x15), r.Code[off+1])
				assert.Equal(t, uint64(callTarget), binary.LittleEndian.Uint64(r.Code[off+8:]))
				off += 16
			} else {
				inst := decodeAt(t, r.Code[off:], tt.dst+uintptr(off))
				assert.Equal(t, x86asm.CALL, inst.Op)
				got, ok := relTarget(inst)
				assert.True(t, ok)
				assert.Equal(t, callTarget, got)
				off += inst.Len
			}

			// the copy ends with a jump back past the displaced range
			back := r.Code[off:]
			if tt.abs {
				assert.Equal(t, JmpAbsLen, len(back))
				assert.Equal(t, uint64(src+18), binary.LittleEndian.Uint64(back[6:]))
			} else {
				inst := decodeAt(t, back, tt.dst+uintptr(off))
				got, ok := relTarget(inst)
				assert.True(t, ok)
				assert.Equal(t, src+18, got)
			}
		})
	}
}

func TestRelocateJcc(t *testing.T) {
	// test ecx, ecx; jz +0x40; nop x3
	code := []byte{0x85, 0xC9, 0x74, 0x40, 0x90, 0x90, 0x90}
	const src = uintptr(0x10000)
	target := src + 4 + 0x40
	d, err := Measure(code, src, 5)
	assert.NoError(t, err)

	r, err := Relocate(d, 0x20000)
	assert.NoError(t, err)
	inst := decodeAt(t, r.Code[r.Offsets[1]:], 0x20000+uintptr(r.Offsets[1]))
	assert.Equal(t, x86asm.JE, inst.Op)
	assert.Equal(t, 6, inst.Len)
	got, _ := relTarget(inst)
	assert.Equal(t, target, got)

	r, err = Relocate(d, 0x7FF000000000)
	assert.NoError(t, err)
	jcc := r.Code[r.Offsets[1]:]
	assert.Equal(t, byte(0x75), jcc[0]) // JNZ over the absolute jump
	assert.Equal(t, byte(JmpAbsLen), jcc[1])
	assert.Equal(t, uint64(target), binary.LittleEndian.Uint64(jcc[8:]))
}

func TestRelocateRIPRelative(t *testing.T) {
	// mov rax, [rip+0x10]; nop x2
	code := []byte{0x48, 0x8B, 0x05, 0x10, 0x00, 0x00, 0x00, 0x90, 0x90}
	const src = uintptr(0x140001000)
	d, err := Measure(code, src, 5)
	assert.NoError(t, err)

	r, err := Relocate(d, 0x140080000)
	assert.NoError(t, err)
	inst := decodeAt(t, r.Code, 0x140080000)
	got, ok := ripOperand(inst)
	assert.True(t, ok)
	assert.Equal(t, src+7+0x10, got)

	_, err = Relocate(d, 0x7FF000000000)
	assert.True(t, errors.Is(err, ErrUnrelocatable))
}

func TestRelocateRIPRelativeBackward(t *testing.T) {
	// mov rax, [rip-0x100]; nop x2
	code := []byte{0x48, 0x8B, 0x05, 0x00, 0xFF, 0xFF, 0xFF, 0x90, 0x90}
	const src = uintptr(0x140001000)
	d, err := Measure(code, src, 5)
	assert.NoError(t, err)
	got, ok := ripOperand(&d.Insts[0])
	assert.True(t, ok)
	assert.Equal(t, src+7-0x100, got)

	// moved above and below the referenced data
	for _, dst := range []uintptr{0x140080000, 0x13FF00000} {
		r, err := Relocate(d, dst)
		assert.NoError(t, err)
		got, ok = ripOperand(decodeAt(t, r.Code, dst))
		assert.True(t, ok)
		assert.Equal(t, src+7-0x100, got)
	}
}

func TestRelocateRejects(t *testing.T) {
	tests := []struct {
		name string
		code []byte
	}{
		{name: "branch into displaced range", code: []byte{0x74, 0x01, 0x90, 0x90, 0x90, 0x90}},
		{name: "loop", code: []byte{0xE2, 0x10, 0x90, 0x90, 0x90, 0x90}},
		{name: "jrcxz", code: []byte{0xE3, 0x10, 0x90, 0x90, 0x90, 0x90}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Measure(tt.code, 0x1000, 5)
			assert.NoError(t, err)
			_, err = Relocate(d, 0x2000)
			assert.True(t, errors.Is(err, ErrUnrelocatable))
		})
	}
}

func TestRelocatedMap(t *testing.T) {
	d, err := Measure(prologue, 0x5000, 6)
	assert.NoError(t, err)
	r, err := Relocate(d, 0x9000)
	assert.NoError(t, err)

	got, ok := r.Map(d, 0x5005)
	assert.True(t, ok)
	assert.Equal(t, uintptr(0x9005), got)
	_, ok = r.Map(d, 0x5003)
	assert.False(t, ok)
}

func TestJump(t *testing.T) {
	b := Jump(0x1000, 0x2000)
	assert.Equal(t, JmpRel32Len, len(b))
	assert.Equal(t, uint32(0x2000-0x1005), binary.LittleEndian.Uint32(b[1:]))

	b = Jump(0x1000, 0x7FF000000000)
	assert.Equal(t, JmpAbsLen, len(b))
	assert.True(t, Reachable(0x140000000, 0x140000000+0x7FFFFF00))
	assert.False(t, Reachable(0x140000000, 0x240000000))

	assert.Equal(t, 8, len(Pad([]byte{0xE9}, 8)))
	assert.Equal(t, byte(Int3), Pad(nil, 1)[0])
}

func TestMidStubDecodes(t *testing.T) {
	stub := MidStub(0x7FF612340000, 3)

	var ops []x86asm.Op
	for off := 0; off < len(stub); {
		inst, err := x86asm.Decode(stub[off:], 64)
		assert.NoError(t, err)
		ops = append(ops, inst.Op)
		off += inst.Len
	}

	count := func(op x86asm.Op) int {
		n := 0
		for _, o := range ops {
			if o == op {
				n++
			}
		}
		return n
	}
	assert.Equal(t, x86asm.PUSHFQ, ops[0])
	assert.Equal(t, x86asm.POPFQ, ops[len(ops)-1])
	assert.Equal(t, 15, count(x86asm.PUSH))
	assert.Equal(t, 15, count(x86asm.POP))
	assert.Equal(t, 32, count(x86asm.MOVDQU))
	assert.Equal(t, 1, count(x86asm.CALL))
}

func TestMovdquEncoding(t *testing.T) {
	tests := []struct {
		name  string
		xmm   byte
		disp  uint32
		store bool
		want  []byte
	}{
		{name: "xmm0 store", xmm: 0, disp: 0, store: true, want: []byte{0xF3, 0x0F, 0x7F, 0x04, 0x24}},
		{name: "xmm1 store disp8", xmm: 1, disp: 0x10, store: true, want: []byte{0xF3, 0x0F, 0x7F, 0x4C, 0x24, 0x10}},
		{name: "xmm9 load disp32", xmm: 9, disp: 0x90, want: []byte{0xF3, 0x44, 0x0F, 0x6F, 0x8C, 0x24, 0x90, 0x00, 0x00, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := movdqu(tt.xmm, tt.disp, tt.store)
			assert.Equal(t, len(tt.want), len(got))
			for i := range got {
				assert.Equal(t, tt.want[i], got[i])
			}
		})
	}
}
