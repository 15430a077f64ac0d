//go:build !windows && !linux

package mem

import "errors"

var errUnsupported = errors.New("unsupported platform")

func makeWritable(addr, size uintptr) ([]saved, error) { return nil, errUnsupported }

func setProtect(addr, size uintptr, prot uint32) error { return errUnsupported }

// FlushICache does nothing on this platform.
func FlushICache(addr, size uintptr) {}

func allocNear(target, size uintptr) (uintptr, error) { return 0, errUnsupported }

func allocAny(size uintptr) (uintptr, error) { return 0, errUnsupported }

func release(addr, size uintptr) error { return errUnsupported }
