package x86

// Frame layout written by MidStub, relative to the frame pointer passed to
// the dispatcher. Vector registers come first, then the general purpose
// registers in reverse push order, then RFLAGS.
const (
	FrameXMM    = 0x000 // XMM0..XMM15, 16 bytes each
	FrameGPR    = 0x100 // R15, R14, ... R8, RDI, RSI, RBP, RBX, RDX, RCX, RAX
	FrameRFLAGS = 0x178
	FrameSize   = 0x180 // RSP at the hook site equals frame + FrameSize
)

// push order, RAX first; each register is 8 bytes below the previous one
var pushOrder = [15]byte{
	0, // rax
	1, // rcx
	2, // rdx
	3, // rbx
	5, // rbp
	6, // rsi
	7, // rdi
	8, 9, 10, 11, 12, 13, 14, 15,
}

func pushReg(r byte) []byte {
	if r >= 8 {
		return []byte{0x41, 0x50 | (r - 8)}
	}
	return []byte{0x50 | r}
}

func popReg(r byte) []byte {
	if r >= 8 {
		return []byte{0x41, 0x58 | (r - 8)}
	}
	return []byte{0x58 | r}
}

// movdqu encodes MOVDQU between xmm and [RSP+disp]. store selects the
// register-to-memory direction.
func movdqu(xmm byte, disp uint32, store bool) []byte {
	b := []byte{0xF3}
	if xmm >= 8 {
		b = append(b, 0x44) // REX.R
	}
	op := byte(0x6F)
	if store {
		op = 0x7F
	}
	b = append(b, 0x0F, op)
	reg := (xmm & 7) << 3
	switch {
	case disp == 0:
		b = append(b, 0x04|reg, 0x24)
	case disp < 0x80:
		b = append(b, 0x44|reg, 0x24, byte(disp))
	default:
		b = append(b, 0x84|reg, 0x24, byte(disp), byte(disp>>8), byte(disp>>16), byte(disp>>24))
	}
	return b
}

// MidStub emits the register save and restore sequence that surrounds a
// call to dispatcher(frame, id) using the Win64 calling convention. The
// stub is position independent; execution falls off its end, where the
// caller places the relocated instructions.
func MidStub(dispatcher uintptr, id uint64) []byte {
	var b []byte
	b = append(b, 0x9C) // PUSHFQ
	for _, r := range pushOrder {
		b = append(b, pushReg(r)...)
	}
	b = append(b, 0x48, 0x81, 0xEC, 0x00, 0x01, 0x00, 0x00) // SUB RSP, 0x100
	for x := byte(0); x < 16; x++ {
		b = append(b, movdqu(x, uint32(x)*16, true)...)
	}

	b = append(b,
		0x48, 0x89, 0xE3, // MOV RBX, RSP
		0x48, 0x83, 0xE4, 0xF0, // AND RSP, -16
		0x48, 0x83, 0xEC, 0x20, // SUB RSP, 0x20 (shadow space)
		0x48, 0x89, 0xD9, // MOV RCX, RBX
	)
	b = append(b, movImm64(0x48, 0xBA, id)...)                  // MOV RDX, id
	b = append(b, movImm64(0x48, 0xB8, uint64(dispatcher))...) // MOV RAX, dispatcher
	b = append(b,
		0xFF, 0xD0, // CALL RAX
		0x48, 0x89, 0xDC, // MOV RSP, RBX
	)

	for x := byte(0); x < 16; x++ {
		b = append(b, movdqu(x, uint32(x)*16, false)...)
	}
	b = append(b, 0x48, 0x81, 0xC4, 0x00, 0x01, 0x00, 0x00) // ADD RSP, 0x100
	for i := len(pushOrder) - 1; i >= 0; i-- {
		b = append(b, popReg(pushOrder[i])...)
	}
	b = append(b, 0x9D) // POPFQ
	return b
}
