package fix

import (
	"context"
	"encoding/binary"
	"time"
	"unsafe"

	"github.com/retroenv/retrogolib/log"
	"golang.org/x/sys/windows"

	"github.com/k2io/hookingo"
	"github.com/k2io/hookingo/internal/config"
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procEnumDisplaySettings = user32.NewProc("EnumDisplaySettingsW")
	procFindWindow          = user32.NewProc("FindWindowW")
	procIsWindow            = user32.NewProc("IsWindow")
	procSetWindowLongPtr    = user32.NewProc("SetWindowLongPtrW")
	procGetWindowLong       = user32.NewProc("GetWindowLongW")
	procSetWindowLong       = user32.NewProc("SetWindowLongW")
	procCallWindowProc      = user32.NewProc("CallWindowProcW")
	procSetWindowPos        = user32.NewProc("SetWindowPos")
	procGetWindowRect       = user32.NewProc("GetWindowRect")
	procClipCursor          = user32.NewProc("ClipCursor")
)

const (
	enumCurrentSettings = 0xFFFFFFFF

	// DEVMODEW
	devModeSize       = 220
	devModeSizeField  = 68
	devModePelsWidth  = 172
	devModePelsHeight = 176

	wmActivate    = 0x0006
	wmActivateApp = 0x001C
	waInactive    = 0

	swpNoSize       = 0x0001
	swpNoMove       = 0x0002
	swpNoZOrder     = 0x0004
	swpFrameChanged = 0x0020

	windowTries = 30
	windowPoll  = time.Second
)

// window long indices are negative
var (
	gwlStyle    = -16
	gwlExStyle  = -20
	gwlpWndProc = -4
)

// desktopSize returns the current mode of the primary display in pixels.
func desktopSize() (int, int) {
	var dm [devModeSize]byte
	binary.LittleEndian.PutUint16(dm[devModeSizeField:], devModeSize)
	r, _, _ := procEnumDisplaySettings.Call(0, enumCurrentSettings, uintptr(unsafe.Pointer(&dm[0])))
	if r == 0 {
		return 0, 0
	}
	return int(binary.LittleEndian.Uint32(dm[devModePelsWidth:])), int(binary.LittleEndian.Uint32(dm[devModePelsHeight:]))
}

func loadedModule(name string) (*hookingo.Module, error) {
	return hookingo.ModuleByName(name)
}

// constantFunc returns a native function pointer that returns n.
func constantFunc(n uintptr) (uintptr, error) {
	return windows.NewCallback(func() uintptr { return n }), nil
}

type rect struct {
	left, top, right, bottom int32
}

func findWindow(class string) uintptr {
	p, err := windows.UTF16PtrFromString(class)
	if err != nil {
		return 0
	}
	h, _, _ := procFindWindow.Call(uintptr(unsafe.Pointer(p)), 0)
	return h
}

func isWindow(h uintptr) bool {
	if h == 0 {
		return false
	}
	r, _, _ := procIsWindow.Call(h)
	return r != 0
}

// subclassWindow waits for the game window and replaces its window
// procedure with one handling focus changes.
func (f *Fix) subclassWindow(ctx context.Context) {
	var hwnd uintptr
	for i := 0; !isWindow(hwnd); i++ {
		if i == windowTries {
			f.log.Error("window focus: window not found", nil, log.String("class", gameWindowClass))
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(windowPoll):
		}
		hwnd = findWindow(gameWindowClass)
	}

	s := &subclass{hwnd: hwnd, cfg: f.cfg.Window, log: f.log}
	old, _, err := procSetWindowLongPtr.Call(hwnd, uintptr(gwlpWndProc), windows.NewCallback(s.proc))
	if old == 0 {
		f.log.Error("window focus: replacing window procedure failed", err)
		return
	}
	s.prev = old
	f.log.Info("window focus: window procedure replaced")
}

type subclass struct {
	hwnd uintptr
	prev uintptr
	cfg  config.Window
	log  *log.Logger
}

func (s *subclass) proc(hwnd, msg, wparam, lparam uintptr) uintptr {
	if msg == wmActivate || msg == wmActivateApp {
		if wparam&0xFFFF == waInactive {
			// swallowing the message keeps the game from muting itself
			if s.cfg.BackgroundAudio {
				return 0
			}
			if s.cfg.LockCursor {
				procClipCursor.Call(0)
			}
		} else {
			if s.cfg.LockCursor {
				var r rect
				procGetWindowRect.Call(s.hwnd, uintptr(unsafe.Pointer(&r)))
				procClipCursor.Call(uintptr(unsafe.Pointer(&r)))
			}
			if s.cfg.Resizable {
				s.makeResizable()
			}
		}
	}
	r, _, _ := procCallWindowProc.Call(s.prev, hwnd, msg, wparam, lparam)
	return r
}

func (s *subclass) makeResizable() {
	style, _, _ := procGetWindowLong.Call(s.hwnd, uintptr(gwlStyle))
	ex, _, _ := procGetWindowLong.Call(s.hwnd, uintptr(gwlExStyle))
	next, ok := resizable(uint32(style), uint32(ex))
	if !ok {
		return
	}
	procSetWindowLong.Call(s.hwnd, uintptr(gwlStyle), uintptr(next))
	procSetWindowPos.Call(s.hwnd, 0, 0, 0, 0, 0, swpFrameChanged|swpNoMove|swpNoSize|swpNoZOrder)
}
