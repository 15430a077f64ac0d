//go:build !windows

package fix

import (
	"context"

	"github.com/retroenv/retrogolib/log"

	"github.com/k2io/hookingo"
)

func desktopSize() (int, int) { return 0, 0 }

func loadedModule(string) (*hookingo.Module, error) {
	return nil, hookingo.ErrUnsupported
}

func constantFunc(uintptr) (uintptr, error) {
	return 0, hookingo.ErrUnsupported
}

func (f *Fix) subclassWindow(context.Context) {
	f.log.Warn("window focus: not supported on this platform", log.String("class", gameWindowClass))
}
