// Copyright (C) 2022 K2 Cyber Security Inc.

package hookingo

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/k2io/hookingo/internal/x86"
)

// Mid hooks are found by id from the stub. The table is replaced as a whole
// on every change so the dispatcher never takes a lock.
var (
	table   atomic.Pointer[map[uint64]*Hook]
	tableMu sync.Mutex
	nextID  atomic.Uint64
)

func publish(h *Hook) {
	tableMu.Lock()
	defer tableMu.Unlock()
	next := make(map[uint64]*Hook)
	if cur := table.Load(); cur != nil {
		for id, x := range *cur {
			next[id] = x
		}
	}
	next[h.id] = h
	table.Store(&next)
}

func unpublish(h *Hook) {
	tableMu.Lock()
	defer tableMu.Unlock()
	cur := table.Load()
	if cur == nil {
		return
	}
	next := make(map[uint64]*Hook, len(*cur))
	for id, x := range *cur {
		if id != h.id {
			next[id] = x
		}
	}
	table.Store(&next)
}

func lookup(id uint64) *Hook {
	cur := table.Load()
	if cur == nil {
		return nil
	}
	return (*cur)[id]
}

// dispatch runs on the interrupted thread with frame pointing at the save
// area built by the mid stub. The Context escapes into the callback, which
// costs one heap allocation per hit. It is not pooled: a callback that keeps
// its Context must find it dead, never revived by a later hit.
func dispatch(frame, id uintptr) uintptr {
	h := lookup(uint64(id))
	if h == nil || h.State() != Armed {
		return 0
	}
	h.hits.Add(1)

	raw := (*trapFrame)(unsafe.Pointer(frame))
	c := &Context{f: *raw, rsp: uint64(frame + x86.FrameSize), live: true}
	if run(h.fn, c) {
		*raw = c.f
	}
	c.live = false
	return 0
}

// run reports whether fn returned normally. A panicking callback must not
// unwind into host code, so its edits are dropped instead.
func run(fn func(*Context), c *Context) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	fn(c)
	return true
}
