// Package fix applies the game fixes: it finds code in the game image by
// signature and patches or hooks it according to the user settings.
//
// Every feature is independent. A signature that does not match, or a hook
// that cannot be installed, is logged and skipped without affecting the
// others.
package fix

import (
	"context"
	"errors"
	"sync"

	"github.com/retroenv/retrogolib/log"

	"github.com/k2io/hookingo"
	"github.com/k2io/hookingo/internal/catalog"
	"github.com/k2io/hookingo/internal/config"
	"github.com/k2io/hookingo/internal/logging"
	"github.com/k2io/hookingo/internal/x86"
)

const (
	Name    = "FFXVIFix"
	Version = "0.7.9"
)

// Fix holds everything the features share.
type Fix struct {
	cfg   *config.Config
	log   *log.Logger
	game  *hookingo.Module
	sigs  *catalog.Catalog
	hooks *hookingo.Registry
	state *State

	desktopW, desktopH int

	mu      sync.Mutex
	scans   map[string]uintptr
	patches []*hookingo.PatchSite
}

// Option configures a Fix.
type Option func(*Fix)

// WithRegistry installs hooks through r instead of a private registry.
func WithRegistry(r *hookingo.Registry) Option {
	return func(f *Fix) { f.hooks = r }
}

// WithDesktop overrides the detected desktop resolution.
func WithDesktop(width, height int) Option {
	return func(f *Fix) { f.desktopW, f.desktopH = width, height }
}

// New prepares the fixes for game. Nothing is changed until Run.
func New(cfg *config.Config, game *hookingo.Module, sigs *catalog.Catalog, logger *log.Logger, opts ...Option) *Fix {
	if logger == nil {
		logger = logging.Discard()
	}
	f := &Fix{
		cfg:   cfg,
		log:   logger,
		game:  game,
		sigs:  sigs,
		scans: make(map[string]uintptr),
	}
	f.desktopW, f.desktopH = desktopSize()
	for _, opt := range opts {
		opt(f)
	}
	if f.hooks == nil {
		f.hooks = hookingo.NewRegistry(hookingo.WithLogger(logger))
	}
	f.state = NewState(f.desktopW, f.desktopH)
	return f
}

// State returns the state shared with the hook callbacks.
func (f *Fix) State() *State { return f.state }

// Run applies every enabled feature. The features waiting for the game to
// load libraries or create its window give up when ctx is done.
func (f *Fix) Run(ctx context.Context) error {
	f.log.Info("game version", log.String("variant", string(f.sigs.Variant)))

	f.resolution()
	f.hud()
	f.fov()
	f.framerate()
	f.misc()
	f.jxl(ctx)
	f.window(ctx)
	return ctx.Err()
}

// Close reverts every byte patch and removes every hook.
func (f *Fix) Close() error {
	f.mu.Lock()
	patches := f.patches
	f.patches = nil
	f.mu.Unlock()

	var errs []error
	for i := len(patches) - 1; i >= 0; i-- {
		if err := patches[i].Revert(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := f.hooks.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// find returns the signature called name and where it matches.
func (f *Fix) find(name string) (catalog.Entry, uintptr, bool) {
	e, err := f.sigs.Get(name)
	if err != nil {
		f.log.Error("signature lookup failed", err)
		return e, 0, false
	}

	key := e.Pattern.String()
	f.mu.Lock()
	addr, ok := f.scans[key]
	f.mu.Unlock()
	if !ok {
		addr, err = f.game.FindPattern(e.Pattern)
		if err != nil {
			f.log.Error("pattern scan failed", err, log.String("feature", e.Label))
			return e, 0, false
		}
		f.mu.Lock()
		f.scans[key] = addr
		f.mu.Unlock()
	}
	f.log.Info("pattern found", log.String("feature", e.Label), log.String("address", f.game.Offset(addr)))
	return e, addr, true
}

// patch writes b at the signature called name.
func (f *Fix) patch(name string, b []byte) bool {
	e, addr, ok := f.find(name)
	if !ok {
		return false
	}
	return f.apply(e.Label, addr+e.Offset, b)
}

func (f *Fix) apply(label string, addr uintptr, b []byte) bool {
	if err := f.game.Check(addr, uintptr(len(b))); err != nil {
		f.log.Error("patch rejected", err, log.String("feature", label))
		return false
	}
	site := hookingo.NewPatchSite(addr, b)
	if err := site.Apply(); err != nil {
		f.log.Error("patch failed", err, log.String("feature", label))
		return false
	}
	f.mu.Lock()
	f.patches = append(f.patches, site)
	f.mu.Unlock()
	f.log.Info("patch applied", log.String("feature", label), log.String("address", f.game.Offset(addr)))
	return true
}

// mid arms a mid hook at the signature called name.
func (f *Fix) mid(name string, fn func(*hookingo.Context)) bool {
	e, addr, ok := f.find(name)
	if !ok {
		return false
	}
	at := addr + e.Offset
	if err := f.game.Check(at, x86.JmpAbsLen); err != nil {
		f.log.Error("hook rejected", err, log.String("feature", e.Label))
		return false
	}
	return f.midAt(e.Label, at, fn)
}

func (f *Fix) midAt(label string, at uintptr, fn func(*hookingo.Context)) bool {
	if _, err := f.hooks.Mid(at, fn); err != nil {
		f.log.Error("hook failed", err, log.String("feature", label))
		return false
	}
	f.log.Info("feature hooked", log.String("feature", label), log.String("address", f.game.Offset(at)))
	return true
}

// Patches returns how many byte patches are in place.
func (f *Fix) Patches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.patches)
}
