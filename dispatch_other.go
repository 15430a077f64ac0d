//go:build !windows

// Copyright (C) 2022 K2 Cyber Security Inc.

package hookingo

// bridge has no native entry point for dispatch outside Windows, so mid
// hooks cannot be armed there.
func bridge() uintptr {
	return 0
}
