//go:build !windows

package mem

import "runtime"

// Frozen suspends nothing outside Windows. Callers there must only patch
// code no other thread is executing.
type Frozen struct{}

// Freeze pins the caller to its OS thread.
func Freeze() (*Frozen, error) {
	runtime.LockOSThread()
	return &Frozen{}, nil
}

// FixIP has no suspended threads to visit.
func (f *Frozen) FixIP(func(ip uintptr) (uintptr, bool)) {}

// Thaw releases the caller's thread.
func (f *Frozen) Thaw() {
	runtime.UnlockOSThread()
}
