//go:build windows

package mem

import (
	"runtime"
	"runtime/debug"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	procOpenThread       = kernel32.NewProc("OpenThread")
	procSuspendThread    = kernel32.NewProc("SuspendThread")
	procResumeThread     = kernel32.NewProc("ResumeThread")
	procGetThreadContext = kernel32.NewProc("GetThreadContext")
	procSetThreadContext = kernel32.NewProc("SetThreadContext")
	procThread32First    = kernel32.NewProc("Thread32First")
	procThread32Next     = kernel32.NewProc("Thread32Next")
)

const (
	thSnapThread = 0x00000004 // TH32CS_SNAPTHREAD

	threadAccess = 0x0002 | 0x0008 | 0x0010 // SUSPEND_RESUME | GET_CONTEXT | SET_CONTEXT

	contextControl     = 0x00100001 // CONTEXT_AMD64 | CONTEXT_CONTROL
	contextSize        = 1232
	contextFlagsOffset = 0x30
	contextRipOffset   = 0xF8
)

type threadEntry32 struct {
	Size           uint32
	Usage          uint32
	ThreadID       uint32
	OwnerProcessID uint32
	BasePri        int32
	DeltaPri       int32
	Flags          uint32
}

type thread struct {
	handle windows.Handle
	buf    [contextSize + 16]byte
}

// ctx returns the 16-byte aligned CONTEXT inside buf.
func (t *thread) ctx() unsafe.Pointer {
	p := uintptr(unsafe.Pointer(&t.buf[0]))
	return unsafe.Pointer((p + 15) &^ 15)
}

// Frozen holds every other thread of the process suspended.
type Frozen struct {
	threads []*thread
	gc      int
}

// Freeze suspends all threads of the current process except the caller.
// Until Thaw the caller must not allocate: a suspended thread may hold a
// runtime lock.
func Freeze() (*Frozen, error) {
	// resolve everything used while frozen up front
	for _, p := range []*windows.LazyProc{procOpenThread, procSuspendThread, procResumeThread,
		procGetThreadContext, procSetThreadContext, procThread32First, procThread32Next, procFlushInstructionCache} {
		if err := p.Find(); err != nil {
			return nil, err
		}
	}

	runtime.LockOSThread()
	self := windows.GetCurrentThreadId()
	pid := windows.GetCurrentProcessId()

	snap, err := windows.CreateToolhelp32Snapshot(thSnapThread, 0)
	if err != nil {
		runtime.UnlockOSThread()
		return nil, err
	}
	defer windows.CloseHandle(snap)

	f := &Frozen{}
	var te threadEntry32
	te.Size = uint32(unsafe.Sizeof(te))
	r, _, _ := procThread32First.Call(uintptr(snap), uintptr(unsafe.Pointer(&te)))
	for ok := r != 0; ok; {
		if te.OwnerProcessID == pid && te.ThreadID != self {
			h, _, _ := procOpenThread.Call(threadAccess, 0, uintptr(te.ThreadID))
			if h != 0 {
				f.threads = append(f.threads, &thread{handle: windows.Handle(h)})
			}
		}
		r, _, _ = procThread32Next.Call(uintptr(snap), uintptr(unsafe.Pointer(&te)))
		ok = r != 0
	}

	f.gc = debug.SetGCPercent(-1)
	for _, t := range f.threads {
		r, _, _ := procSuspendThread.Call(uintptr(t.handle))
		if int32(r) == -1 {
			windows.CloseHandle(t.handle)
			t.handle = 0
		}
	}
	return f, nil
}

// FixIP rewrites the instruction pointer of every suspended thread through
// move. move returns false to leave a thread alone.
func (f *Frozen) FixIP(move func(ip uintptr) (uintptr, bool)) {
	for _, t := range f.threads {
		if t.handle == 0 {
			continue
		}
		c := t.ctx()
		*(*uint32)(unsafe.Add(c, contextFlagsOffset)) = contextControl
		if r, _, _ := procGetThreadContext.Call(uintptr(t.handle), uintptr(c)); r == 0 {
			continue
		}
		rip := (*uint64)(unsafe.Add(c, contextRipOffset))
		if to, ok := move(uintptr(*rip)); ok {
			*rip = uint64(to)
			procSetThreadContext.Call(uintptr(t.handle), uintptr(c))
		}
	}
}

// Thaw resumes the threads suspended by Freeze.
func (f *Frozen) Thaw() {
	for _, t := range f.threads {
		if t.handle == 0 {
			continue
		}
		procResumeThread.Call(uintptr(t.handle))
		windows.CloseHandle(t.handle)
	}
	debug.SetGCPercent(f.gc)
	runtime.UnlockOSThread()
}
