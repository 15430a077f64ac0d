//go:build linux

package mem

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

func init() {
	pageSize = uintptr(unix.Getpagesize())
}

type mapping struct {
	start, end uintptr
	prot       uint32
}

// mappings reads the current protection of every mapping overlapping
// [addr, addr+size).
func mappings(addr, size uintptr) ([]mapping, error) {
	data, err := os.ReadFile("/proc/self/maps")
	if err != nil {
		return nil, err
	}
	var out []mapping
	end := addr + size
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Bytes()
		// start-end perms offset dev inode path
		dash := bytes.IndexByte(line, '-')
		sp := bytes.IndexByte(line, ' ')
		if dash < 0 || sp < dash || len(line) < sp+5 {
			continue
		}
		lo, err1 := strconv.ParseUint(string(line[:dash]), 16, 64)
		hi, err2 := strconv.ParseUint(string(line[dash+1:sp]), 16, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		if uintptr(hi) <= addr || uintptr(lo) >= end {
			continue
		}
		perms := line[sp+1 : sp+4]
		var prot uint32
		if perms[0] == 'r' {
			prot |= unix.PROT_READ
		}
		if perms[1] == 'w' {
			prot |= unix.PROT_WRITE
		}
		if perms[2] == 'x' {
			prot |= unix.PROT_EXEC
		}
		out = append(out, mapping{start: uintptr(lo), end: uintptr(hi), prot: prot})
	}
	return out, sc.Err()
}

func makeWritable(addr, size uintptr) ([]saved, error) {
	start, length := pageRange(addr, size)
	maps, err := mappings(start, length)
	if err != nil {
		return nil, err
	}
	var out []saved
	for _, m := range maps {
		lo, hi := max(m.start, start), min(m.end, start+length)
		out = append(out, saved{addr: lo, size: hi - lo, prot: m.prot})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("0x%X is not mapped", addr)
	}
	if err := setProtect(start, length, unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC); err != nil {
		return nil, err
	}
	return out, nil
}

func setProtect(addr, size uintptr, prot uint32) error {
	for i := uintptr(0); i < size; i += pageSize {
		if err := unix.Mprotect(View(addr+i, pageSize), int(prot)); err != nil {
			return err
		}
	}
	return nil
}

// FlushICache is a no-op: x86 keeps instruction fetch coherent with stores.
func FlushICache(addr, size uintptr) {}

// allocNear asks mmap for pages at hints stepping away from target.
func allocNear(target, size uintptr) (uintptr, error) {
	origin := target &^ (chunkSize - 1)
	for d := uintptr(chunkSize); d < reach; d += 0x1000000 {
		for _, hint := range [2]uintptr{origin - d, origin + d} {
			if hint > origin+d || hint < 0x10000 {
				continue
			}
			p, _, errno := unix.Syscall6(unix.SYS_MMAP, hint, size,
				unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC,
				unix.MAP_PRIVATE|unix.MAP_ANONYMOUS, ^uintptr(0), 0)
			if errno != 0 {
				return 0, errno
			}
			if near(p, target) && near(p+size, target) {
				return p, nil
			}
			_ = release(p, size)
		}
	}
	return 0, fmt.Errorf("no free region near 0x%X", target)
}

func allocAny(size uintptr) (uintptr, error) {
	p, _, errno := unix.Syscall6(unix.SYS_MMAP, 0, size,
		unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS, ^uintptr(0), 0)
	if errno != 0 {
		return 0, errno
	}
	return p, nil
}

func release(addr, size uintptr) error {
	// unix.Munmap only accepts slices it mapped itself
	if _, _, errno := unix.Syscall(unix.SYS_MUNMAP, addr, size, 0); errno != 0 {
		return errno
	}
	return nil
}
