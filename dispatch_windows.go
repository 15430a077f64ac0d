// Copyright (C) 2022 K2 Cyber Security Inc.

package hookingo

import (
	"sync"

	"golang.org/x/sys/windows"
)

var (
	bridgeOnce sync.Once
	bridgeAddr uintptr
)

// bridge returns the native entry point of dispatch. Callbacks are a scarce
// runtime resource, so every mid hook shares this one.
func bridge() uintptr {
	bridgeOnce.Do(func() {
		bridgeAddr = windows.NewCallback(dispatch)
	})
	return bridgeAddr
}
