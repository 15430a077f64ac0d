// Copyright (C) 2022 K2 Cyber Security Inc.

package hookingo

import (
	"errors"
	"fmt"
	"sync"

	"github.com/k2io/hookingo/internal/mem"
	"github.com/retroenv/retrogolib/log"
)

// Registry owns installed hooks and the executable memory behind them.
// Hooks live until removed or until the registry is closed.
type Registry struct {
	mu     sync.Mutex
	log    *log.Logger
	alloc  *mem.Allocator
	hooks  map[uintptr]*Hook
	bridge uintptr
	closed bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger for install and removal events.
func WithLogger(l *log.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// withBridge replaces the dispatcher entry point mid stubs call.
func withBridge(addr uintptr) Option {
	return func(r *Registry) {
		r.bridge = addr
	}
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		log:   log.NewNop(),
		alloc: mem.NewAllocator(),
		hooks: make(map[uintptr]*Hook),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.bridge == 0 {
		r.bridge = bridge()
	}
	return r
}

// Mid arms a hook that calls fn with the live registers each time execution
// reaches target, then runs the original instructions. fn runs on the host
// thread that hit the hook and must not block.
func (r *Registry) Mid(target uintptr, fn func(*Context)) (*Hook, error) {
	if fn == nil {
		return nil, errors.New("nil callback")
	}
	if r.bridge == 0 {
		return nil, fmt.Errorf("mid hook at 0x%X: %w", target, ErrUnsupported)
	}
	return r.add(&Hook{mode: ModeMid, target: target, fn: fn})
}

// Inline arms a hook that sends every call of target to detour. The
// unhooked function stays callable at Hook.Original.
func (r *Registry) Inline(target, detour uintptr) (*Hook, error) {
	if detour == 0 {
		return nil, errors.New("nil detour")
	}
	return r.add(&Hook{mode: ModeInline, target: target, detour: detour})
}

func (r *Registry) add(h *Hook) (*Hook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if _, ok := r.hooks[h.target]; ok {
		return nil, fmt.Errorf("0x%X: %w", h.target, ErrDoubleHook)
	}
	h.id = nextID.Add(1)
	if err := r.install(h); err != nil {
		h.state.Store(int32(Unarmed))
		r.log.Error("hook install failed", err,
			log.String("mode", h.mode.String()),
			log.String("target", hex(h.target)))
		return nil, err
	}
	r.hooks[h.target] = h
	r.log.Info("hook armed",
		log.String("mode", h.mode.String()),
		log.String("target", hex(h.target)),
		log.String("trampoline", hex(h.Original())),
		log.Int("displaced", h.Len()))
	return h, nil
}

// Remove restores the original bytes of h. Its trampoline stays mapped
// until Close in case a thread is still running it.
func (r *Registry) Remove(h *Hook) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remove(h)
}

func (r *Registry) remove(h *Hook) error {
	if h.State() == Removed {
		return ErrRemoved
	}
	if cur, ok := r.hooks[h.target]; !ok || cur != h {
		return ErrHookNotFound
	}
	if err := r.uninstall(h); err != nil {
		r.log.Error("hook removal failed", err, log.String("target", hex(h.target)))
		return err
	}
	delete(r.hooks, h.target)
	r.log.Info("hook removed", log.String("target", hex(h.target)), log.Uint64("hits", h.Hits()))
	return nil
}

// Hooks returns the number of armed hooks.
func (r *Registry) Hooks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.hooks)
}

// Close removes every hook and releases all trampoline memory. The caller
// guarantees no thread still executes a trampoline. If a hook cannot be
// removed its redirect still jumps into the allocator's memory, so nothing
// is released and a later Close retries the remaining hooks.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed && len(r.hooks) == 0 {
		return nil
	}
	r.closed = true
	var errs []error
	for _, h := range r.hooks {
		if err := r.remove(h); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		r.log.Warn("trampoline memory kept", log.Int("hooks", len(r.hooks)))
		return errors.Join(errs...)
	}
	return r.alloc.Close()
}

func hex(addr uintptr) string {
	return fmt.Sprintf("0x%X", addr)
}
