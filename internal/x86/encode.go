package x86

import "encoding/binary"

const (
	// JmpRel32Len is the size of E9 rel32.
	JmpRel32Len = 5
	// JmpAbsLen is the size of JMP [RIP+0] followed by the 64-bit target.
	JmpAbsLen = 14

	Int3 = 0xCC
	Nop  = 0x90
)

func overflowsS32(v1, v2 uintptr) bool {
	diff := v2 - v1
	if v1 > v2 {
		diff = v1 - v2
	}
	return diff > 0x7FFFFFFF
}

// Rel32 returns the displacement an instruction of length n at from needs
// to reach to.
func Rel32(from uintptr, n int, to uintptr) (int32, bool) {
	next := from + uintptr(n)
	if overflowsS32(next, to) {
		return 0, false
	}
	return int32(int64(to) - int64(next)), true
}

// Reachable reports whether a rel32 branch at from can reach to.
func Reachable(from, to uintptr) bool {
	_, ok := Rel32(from, JmpRel32Len, to)
	return ok
}

// JmpRel32 encodes JMP rel32 placed at from.
func JmpRel32(from, to uintptr) ([]byte, bool) {
	rel, ok := Rel32(from, JmpRel32Len, to)
	if !ok {
		return nil, false
	}
	b := []byte{0xE9, 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(b[1:], uint32(rel))
	return b, true
}

// JmpAbs encodes JMP QWORD PTR [RIP+0] with the target stored inline. It
// clobbers no register.
func JmpAbs(to uintptr) []byte {
	b := []byte{
		0xFF, 0x25, 0x00, 0x00, 0x00, 0x00, // JMP [RIP+0]
		0, 0, 0, 0, 0, 0, 0, 0, // dq to
	}
	binary.LittleEndian.PutUint64(b[6:], uint64(to))
	return b
}

// Jump encodes the shortest unconditional jump from from to to.
func Jump(from, to uintptr) []byte {
	if b, ok := JmpRel32(from, to); ok {
		return b
	}
	return JmpAbs(to)
}

// Pad fills b up to n bytes with INT3.
func Pad(b []byte, n int) []byte {
	for len(b) < n {
		b = append(b, Int3)
	}
	return b
}

func callAbs(to uintptr) []byte {
	b := []byte{
		0xFF, 0x15, 0x02, 0x00, 0x00, 0x00, // CALL [RIP+2]
		0xEB, 0x08, // JMP +8
		0, 0, 0, 0, 0, 0, 0, 0, // dq to
	}
	binary.LittleEndian.PutUint64(b[8:], uint64(to))
	return b
}

func movImm64(rex, op byte, v uint64) []byte {
	b := []byte{rex, op, 0, 0, 0, 0, 0, 0, 0, 0}
	binary.LittleEndian.PutUint64(b[2:], v)
	return b
}
