//go:build amd64

// Copyright (C) 2022 K2 Cyber Security Inc.
/*
Hooking at an arbitrary instruction boundary.

TARGET       the address being hooked
BLOCK        executable memory allocated within rel32 reach of TARGET
TRAMPOLINE   the displaced TARGET instructions relocated into BLOCK

How it is done:

***TARGET***
 - whole instructions covering a 5 byte JMP rel32 are displaced
 - overwritten by JMP BLOCK, padded with INT3

***BLOCK***
 - mid mode: a stub saving every register, calling the dispatcher with the
   frame and hook id, restoring the (possibly edited) registers
 - inline mode: an absolute jump to the replacement function
 - followed by TRAMPOLINE

***TRAMPOLINE***
 - the displaced instructions with relative branches and RIP-relative
   operands re-encoded for their new address
 - a jump back to the first instruction after the displaced range

When no memory within reach exists BLOCK is placed anywhere and TARGET gets
a 14 byte absolute jump instead.
*/

package hookingo

import (
	"errors"
	"fmt"

	"github.com/k2io/hookingo/internal/mem"
	"github.com/k2io/hookingo/internal/x86"
	"github.com/retroenv/retrogolib/log"
)

// window is how many bytes are decoded at the target
const window = 32

func (r *Registry) prefix(h *Hook) []byte {
	if h.mode == ModeMid {
		return x86.MidStub(r.bridge, h.id)
	}
	return x86.JmpAbs(h.detour)
}

// placeBlock measures the target and finds memory for the block, preferring
// a rel32 redirect.
func (r *Registry) placeBlock(h *Hook, head int) error {
	code := mem.View(h.target, window)

	d, err := x86.Measure(code, h.target, x86.JmpRel32Len)
	if err != nil {
		return err
	}
	blk, err := r.alloc.Near(h.target, head+x86.MaxRelocatedLen(d))
	if err == nil {
		h.disp, h.block = d, blk
		return nil
	}
	r.log.Debug("no memory in rel32 reach, using absolute redirect",
		log.String("target", hex(h.target)), log.Err(err))

	d, err = x86.Measure(code, h.target, x86.JmpAbsLen)
	if err != nil {
		return err
	}
	blk, err = r.alloc.Any(head + x86.MaxRelocatedLen(d))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTrampolineAlloc, err)
	}
	h.disp, h.block = d, blk
	return nil
}

func (r *Registry) install(h *Hook) error {
	h.state.Store(int32(Installing))

	head := r.prefix(h)
	if err := r.placeBlock(h, len(head)); err != nil {
		return err
	}
	reloc, err := x86.Relocate(h.disp, h.block.Addr+uintptr(len(head)))
	if err != nil {
		r.alloc.Release(h.block)
		return err
	}
	h.reloc = reloc

	buf := h.block.Bytes()
	n := copy(buf, head)
	copy(buf[n:], reloc.Code)

	redirect, ok := x86.JmpRel32(h.target, h.block.Addr)
	if !ok {
		redirect = x86.JmpAbs(h.block.Addr)
	}
	if len(redirect) > h.disp.Len {
		r.alloc.Release(h.block)
		return errors.New("redirect longer than displaced instructions")
	}
	h.redirect = x86.Pad(redirect, h.disp.Len)

	if h.mode == ModeMid {
		publish(h)
	}
	// a thread inside the displaced range moves to the same instruction in
	// the trampoline; one exactly at target takes the new redirect
	move := func(ip uintptr) (uintptr, bool) {
		if ip == h.target || !h.disp.Contains(ip) {
			return 0, false
		}
		return h.reloc.Map(h.disp, ip)
	}
	arm := func() { h.state.Store(int32(Armed)) }
	if err := r.patch(h.target, h.redirect, move, arm); err != nil {
		if h.mode == ModeMid {
			unpublish(h)
		}
		r.alloc.Release(h.block)
		return err
	}
	return nil
}

func (r *Registry) uninstall(h *Hook) error {
	if h.mode == ModeMid {
		unpublish(h)
	}
	orig := h.disp.Bytes()
	// a thread on a relocated instruction goes back to its original
	move := func(ip uintptr) (uintptr, bool) {
		return h.reloc.Unmap(h.disp, ip)
	}
	disarm := func() { h.state.Store(int32(Removed)) }
	if err := r.patch(h.target, orig, move, disarm); err != nil {
		if h.mode == ModeMid {
			publish(h)
		}
		return err
	}
	r.alloc.Release(h.block)
	return nil
}

// patch writes b at addr with every other thread suspended and moves their
// instruction pointers through move. commit runs before any thread resumes.
// Once b is stored the patch stands even if the old protection cannot be
// put back.
func (r *Registry) patch(addr uintptr, b []byte, move func(uintptr) (uintptr, bool), commit func()) error {
	tok, err := mem.Unprotect(addr, uintptr(len(b)))
	if err != nil {
		return err
	}
	frozen, err := mem.Freeze()
	if err != nil {
		_ = tok.Restore()
		return err
	}
	mem.Store(addr, b)
	frozen.FixIP(move)
	if commit != nil {
		commit()
	}
	frozen.Thaw()

	if err := tok.Restore(); err != nil {
		r.log.Warn("restoring page protection failed", log.String("address", hex(addr)), log.Err(err))
	}
	mem.FlushICache(addr, uintptr(len(b)))
	return nil
}
