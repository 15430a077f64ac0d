package fix

import "context"

// gameWindowClass is the class name of the game's main window.
const gameWindowClass = "FAITHGame"

const (
	wsThickFrame  = 0x00040000
	wsMaximizeBox = 0x00010000
	wsPopup       = 0x80000000
	wsExTopmost   = 0x00000008
)

// resizable returns the style of a framed window with a sizing border and
// a maximize button. Borderless, fullscreen and already resizable windows
// are left alone.
func resizable(style, exStyle uint32) (uint32, bool) {
	if style&wsThickFrame != 0 || style&wsPopup != 0 || exStyle&wsExTopmost != 0 {
		return style, false
	}
	return style | wsThickFrame | wsMaximizeBox, true
}

func (f *Fix) window(ctx context.Context) {
	w := f.cfg.Window
	if w.LockCursor {
		// always take the cursor clipping path
		f.patch("clip_cursor", []byte{0x90, 0x90})
	}
	if w.BackgroundAudio || w.LockCursor || w.Resizable {
		f.subclassWindow(ctx)
	}
}
