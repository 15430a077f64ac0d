package mem

import (
	"fmt"
	"sync"
)

// chunkSize is the unit reserved from the OS; blocks are carved from it.
const chunkSize = 0x10000

// reach is the largest distance a rel32 branch can cover.
const reach = 0x7FFFFFFF - chunkSize

// Block is a piece of executable memory handed out by an Allocator.
type Block struct {
	Addr uintptr
	Size int
}

// Bytes aliases the block's memory.
func (b Block) Bytes() []byte {
	return View(b.Addr, uintptr(b.Size))
}

type chunk struct {
	base uintptr
	used uintptr
}

// Allocator hands out executable blocks within rel32 distance of a target.
// Released blocks are quarantined and only returned to the OS by Close, so
// a thread still inside a removed trampoline never runs freed memory.
type Allocator struct {
	mu         sync.Mutex
	chunks     []*chunk
	quarantine []Block
}

// NewAllocator returns an empty allocator.
func NewAllocator() *Allocator {
	return &Allocator{}
}

func near(a, b uintptr) bool {
	if a > b {
		return a-b <= reach
	}
	return b-a <= reach
}

// Near returns a block of at least size bytes whose every byte is reachable
// from target with a rel32 displacement.
func (a *Allocator) Near(target uintptr, size int) (Block, error) {
	if size <= 0 || size > chunkSize {
		return Block{}, fmt.Errorf("%w: bad block size %d", ErrAlloc, size)
	}
	n := (uintptr(size) + 15) &^ 15

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, c := range a.chunks {
		if c.used+n <= chunkSize && near(c.base, target) {
			b := Block{Addr: c.base + c.used, Size: size}
			c.used += n
			return b, nil
		}
	}

	base, err := allocNear(target, chunkSize)
	if err != nil {
		return Block{}, fmt.Errorf("%w near 0x%X: %v", ErrAlloc, target, err)
	}
	if !near(base, target) {
		_ = release(base, chunkSize)
		return Block{}, fmt.Errorf("%w: no free region within 2GiB of 0x%X", ErrAlloc, target)
	}
	return a.adopt(base, n, size), nil
}

// Any returns a block of at least size bytes at any address. Code jumping
// to it needs an absolute jump.
func (a *Allocator) Any(size int) (Block, error) {
	if size <= 0 || size > chunkSize {
		return Block{}, fmt.Errorf("%w: bad block size %d", ErrAlloc, size)
	}
	n := (uintptr(size) + 15) &^ 15

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, c := range a.chunks {
		if c.used+n <= chunkSize {
			b := Block{Addr: c.base + c.used, Size: size}
			c.used += n
			return b, nil
		}
	}
	base, err := allocAny(chunkSize)
	if err != nil {
		return Block{}, fmt.Errorf("%w: %v", ErrAlloc, err)
	}
	return a.adopt(base, n, size), nil
}

func (a *Allocator) adopt(base, n uintptr, size int) Block {
	// INT3 fill so a stray jump into unused space traps
	fill := View(base, chunkSize)
	for i := range fill {
		fill[i] = 0xCC
	}
	a.chunks = append(a.chunks, &chunk{base: base, used: n})
	return Block{Addr: base, Size: size}
}

// Release quarantines b. Its memory stays mapped until Close.
func (a *Allocator) Release(b Block) {
	a.mu.Lock()
	a.quarantine = append(a.quarantine, b)
	a.mu.Unlock()
}

// Quarantined returns the number of released blocks still mapped.
func (a *Allocator) Quarantined() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.quarantine)
}

// Close returns every chunk to the OS. No block may be executing.
func (a *Allocator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var first error
	for _, c := range a.chunks {
		if err := release(c.base, chunkSize); err != nil && first == nil {
			first = fmt.Errorf("%w: release 0x%X: %v", ErrAlloc, c.base, err)
		}
	}
	a.chunks = nil
	a.quarantine = nil
	return first
}
