// Copyright (C) 2022 K2 Cyber Security Inc.

package hookingo

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/k2io/hookingo/internal/mem"
	"github.com/k2io/hookingo/internal/x86"
)

// Mode selects what a hook does when execution reaches its target.
type Mode int

const (
	// ModeMid runs a callback with the live registers, then the original code.
	ModeMid Mode = iota
	// ModeInline sends execution to a replacement function instead.
	ModeInline
)

func (m Mode) String() string {
	if m == ModeInline {
		return "inline"
	}
	return "mid"
}

// State is the life cycle position of a hook.
type State int32

const (
	Unarmed State = iota
	Installing
	Armed
	Removed
)

func (s State) String() string {
	switch s {
	case Unarmed:
		return "unarmed"
	case Installing:
		return "installing"
	case Armed:
		return "armed"
	case Removed:
		return "removed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Hook is one installed redirect.
type Hook struct {
	id     uint64
	mode   Mode
	target uintptr
	// mid mode callback
	fn func(*Context)
	// inline mode replacement
	detour uintptr

	state atomic.Int32
	hits  atomic.Uint64

	// the modified instructions
	disp *x86.Displaced
	// the moved and jump back instructions
	reloc *x86.Relocated
	// redirect written over disp
	redirect []byte
	block    mem.Block
}

var (
	// ErrDoubleHook means the target is already hooked.
	ErrDoubleHook = errors.New("double hook")
	// ErrHookNotFound means the hook is not owned by the registry.
	ErrHookNotFound = errors.New("hook not found")
	// ErrTrampolineAlloc means no executable memory could hold the trampoline.
	ErrTrampolineAlloc = errors.New("trampoline allocation failed")
	// ErrUnrelocatable means an instruction at the target cannot be moved.
	ErrUnrelocatable = x86.ErrUnrelocatable
	// ErrUnsupported means the hook mode is not available on this platform.
	ErrUnsupported = errors.New("unsupported on this platform")
	// ErrRemoved means the hook was already removed.
	ErrRemoved = errors.New("hook removed")
	// ErrClosed means the registry no longer accepts hooks.
	ErrClosed = errors.New("registry closed")
)

// Target returns the hooked address.
func (h *Hook) Target() uintptr { return h.target }

// Mode returns the hook mode.
func (h *Hook) Mode() Mode { return h.mode }

// State returns the current life cycle state.
func (h *Hook) State() State { return State(h.state.Load()) }

// Original returns the address of the relocated original instructions. In
// inline mode calling it runs the unhooked function.
func (h *Hook) Original() uintptr {
	if h.reloc == nil {
		return 0
	}
	return h.reloc.Addr
}

// Hits returns how many times the mid mode callback ran.
func (h *Hook) Hits() uint64 { return h.hits.Load() }

// Len returns the number of target bytes the redirect occupies.
func (h *Hook) Len() int {
	if h.disp == nil {
		return 0
	}
	return h.disp.Len
}
