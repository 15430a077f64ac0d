package hookingo

import (
	"sync"
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/retroenv/retrogolib/assert"
)

func armed(fn func(*Context)) *Hook {
	h := &Hook{id: nextID.Add(1), mode: ModeMid, fn: fn}
	h.state.Store(int32(Armed))
	publish(h)
	return h
}

// frames passed to dispatch escape to the heap; the goroutine stack moves
// when it grows
var lastFrame atomic.Pointer[trapFrame]

func fire(h *Hook, f *trapFrame) {
	lastFrame.Store(f)
	dispatch(uintptr(unsafe.Pointer(f)), uintptr(h.id))
}

func TestDispatchCommitsRegisterWrite(t *testing.T) {
	h := armed(func(c *Context) { c.Set(RAX, 0) })
	defer unpublish(h)

	var f trapFrame
	f.gpr[gprSlot[RAX]] = 0x1234
	f.gpr[gprSlot[RCX]] = 0x99
	f.xmm[2][0] = 0xABCD
	fire(h, &f)

	assert.Equal(t, uint64(0), f.gpr[gprSlot[RAX]])
	assert.Equal(t, uint64(0x99), f.gpr[gprSlot[RCX]])
	assert.Equal(t, uint64(0xABCD), f.xmm[2][0])
	assert.Equal(t, uint64(1), h.Hits())
}

func TestDispatchOncePerPass(t *testing.T) {
	calls := 0
	h := armed(func(c *Context) { calls++ })
	defer unpublish(h)

	var f trapFrame
	for i := 0; i < 3; i++ {
		fire(h, &f)
	}
	assert.Equal(t, 3, calls)
	assert.Equal(t, uint64(3), h.Hits())
}

func TestDispatchSkipsUnpublished(t *testing.T) {
	calls := 0
	h := armed(func(c *Context) { calls++ })
	unpublish(h)

	var f trapFrame
	fire(h, &f)
	assert.Equal(t, 0, calls)
	assert.True(t, lookup(h.id) == nil)

	// published but no longer armed
	h.state.Store(int32(Removed))
	publish(h)
	defer unpublish(h)
	fire(h, &f)
	assert.Equal(t, 0, calls)
}

func TestDispatchPanicDropsEdits(t *testing.T) {
	h := armed(func(c *Context) {
		c.Set(RBX, 1)
		c.Set(RSP, 0)
	})
	defer unpublish(h)

	var f trapFrame
	f.gpr[gprSlot[RBX]] = 7
	fire(h, &f)
	assert.Equal(t, uint64(7), f.gpr[gprSlot[RBX]])
}

func TestDispatchInvalidatesContext(t *testing.T) {
	var kept *Context
	h := armed(func(c *Context) { kept = c })
	defer unpublish(h)

	var f trapFrame
	fire(h, &f)
	assert.True(t, panics(func() { kept.Get(RAX) }))
}

func TestDispatchSeesTrapRSP(t *testing.T) {
	var rsp uint64
	h := armed(func(c *Context) { rsp = c.Get(RSP) })
	defer unpublish(h)

	var f trapFrame
	fire(h, &f)
	assert.Equal(t, uint64(uintptr(unsafe.Pointer(&f))+unsafe.Sizeof(f)), rsp)
}

func TestDispatchConcurrentContexts(t *testing.T) {
	var mismatch sync.Map
	h := armed(func(c *Context) {
		id := c.Get(RCX)
		for i := 0; i < 100; i++ {
			if c.Get(RCX) != id {
				mismatch.Store(id, true)
			}
		}
		c.Set(RAX, id*2)
	})
	defer unpublish(h)

	const workers = 8
	frames := make([]trapFrame, workers)
	var wg sync.WaitGroup
	for i := range frames {
		frames[i].gpr[gprSlot[RCX]] = uint64(i + 1)
		wg.Add(1)
		go func(f *trapFrame) {
			defer wg.Done()
			for n := 0; n < 50; n++ {
				fire(h, f)
			}
		}(&frames[i])
	}
	wg.Wait()

	for i := range frames {
		assert.Equal(t, uint64(2*(i+1)), frames[i].gpr[gprSlot[RAX]])
	}
	n := 0
	mismatch.Range(func(_, _ any) bool { n++; return true })
	assert.Equal(t, 0, n)
	assert.Equal(t, uint64(workers*50), h.Hits())
}

func TestDispatchAllocatesOnlyContext(t *testing.T) {
	h := armed(func(c *Context) { c.Set(RAX, c.Get(RAX)+1) })
	defer unpublish(h)

	f := new(trapFrame)
	allocs := testing.AllocsPerRun(100, func() { fire(h, f) })
	assert.True(t, allocs <= 1)
	assert.Equal(t, uint64(101), f.gpr[gprSlot[RAX]])
}
