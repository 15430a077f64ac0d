// Copyright (C) 2022 K2 Cyber Security Inc.

package hookingo

import (
	"path/filepath"

	"golang.org/x/sys/windows"
)

// MainModule opens the executable of the current process.
func MainModule() (*Module, error) {
	var h windows.Handle
	if err := windows.GetModuleHandleEx(0, nil, &h); err != nil {
		return nil, err
	}
	return OpenModule(moduleName(h), uintptr(h))
}

// ModuleByName opens an already loaded DLL.
func ModuleByName(name string) (*Module, error) {
	p, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, err
	}
	var h windows.Handle
	if err := windows.GetModuleHandleEx(windows.GET_MODULE_HANDLE_EX_FLAG_UNCHANGED_REFCOUNT, p, &h); err != nil {
		return nil, err
	}
	return OpenModule(moduleName(h), uintptr(h))
}

// ModulePath returns the full path of a loaded module.
func ModulePath(h windows.Handle) string {
	buf := make([]uint16, windows.MAX_LONG_PATH)
	n, err := windows.GetModuleFileName(h, &buf[0], uint32(len(buf)))
	if err != nil {
		return ""
	}
	return windows.UTF16ToString(buf[:n])
}

func moduleName(h windows.Handle) string {
	return filepath.Base(ModulePath(h))
}
