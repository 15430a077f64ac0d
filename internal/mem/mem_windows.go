//go:build windows

package mem

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	kernel32                  = windows.NewLazySystemDLL("kernel32.dll")
	procFlushInstructionCache = kernel32.NewProc("FlushInstructionCache")
)

func makeWritable(addr, size uintptr) ([]saved, error) {
	var out []saved
	end := addr + size
	for cur := addr; cur < end; {
		var mbi windows.MemoryBasicInformation
		if err := windows.VirtualQuery(cur, &mbi, unsafe.Sizeof(mbi)); err != nil {
			return out, fmt.Errorf("VirtualQuery 0x%X: %w", cur, err)
		}
		regionEnd := mbi.BaseAddress + mbi.RegionSize
		n := end - cur
		if regionEnd-cur < n {
			n = regionEnd - cur
		}
		var old uint32
		if err := windows.VirtualProtect(cur, n, windows.PAGE_EXECUTE_READWRITE, &old); err != nil {
			restore(out)
			return nil, fmt.Errorf("VirtualProtect 0x%X: %w", cur, err)
		}
		out = append(out, saved{addr: cur, size: n, prot: old})
		cur += n
	}
	return out, nil
}

func restore(s []saved) {
	for i := len(s) - 1; i >= 0; i-- {
		_ = setProtect(s[i].addr, s[i].size, s[i].prot)
	}
}

func setProtect(addr, size uintptr, prot uint32) error {
	var old uint32
	return windows.VirtualProtect(addr, size, prot, &old)
}

// FlushICache discards stale instructions for [addr, addr+size).
func FlushICache(addr, size uintptr) {
	proc := windows.CurrentProcess()
	_, _, _ = procFlushInstructionCache.Call(uintptr(proc), addr, size)
}

const (
	allocGranularity = 0x10000
	memFree          = 0x10000 // MEM_FREE
)

// allocNear walks free regions outward from target, below first, until one
// can hold size bytes.
func allocNear(target, size uintptr) (uintptr, error) {
	tryAt := func(at uintptr) (uintptr, bool) {
		var mbi windows.MemoryBasicInformation
		if windows.VirtualQuery(at, &mbi, unsafe.Sizeof(mbi)) != nil {
			return 0, false
		}
		if mbi.State != memFree || mbi.BaseAddress+mbi.RegionSize-at < size {
			return 0, false
		}
		p, err := windows.VirtualAlloc(at, size, windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_EXECUTE_READWRITE)
		if err != nil || p == 0 {
			return 0, false
		}
		return p, true
	}

	origin := target &^ (allocGranularity - 1)
	for d := uintptr(0); d < reach; d += allocGranularity {
		if origin > d+allocGranularity {
			if p, ok := tryAt(origin - d); ok {
				return p, nil
			}
		}
		if d > 0 && origin+d > origin {
			if p, ok := tryAt(origin + d); ok {
				return p, nil
			}
		}
	}
	return 0, fmt.Errorf("no free region near 0x%X", target)
}

func allocAny(size uintptr) (uintptr, error) {
	return windows.VirtualAlloc(0, size, windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_EXECUTE_READWRITE)
}

func release(addr, _ uintptr) error {
	return windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
}
