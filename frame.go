// Copyright (C) 2022 K2 Cyber Security Inc.

package hookingo

// trapFrame mirrors the save area the mid stub builds on the interrupted
// thread's stack.
type trapFrame struct {
	xmm [16][2]uint64
	// r15 down to rax, the reverse of the push order
	gpr    [15]uint64
	rflags uint64
}

// frame slot of each general purpose register
var gprSlot = [16]int{
	RAX: 14, RCX: 13, RDX: 12, RBX: 11,
	RSP: -1, RBP: 10, RSI: 9, RDI: 8,
	R8: 7, R9: 6, R10: 5, R11: 4,
	R12: 3, R13: 2, R14: 1, R15: 0,
}
