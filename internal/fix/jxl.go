package fix

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/retroenv/retrogolib/log"

	"github.com/k2io/hookingo"
)

// The game loads the JPEG XL libraries late, for its screenshot encoder.
const (
	jxlLib         = "jxl.dll"
	jxlThreadsLib  = "jxl_threads.dll"
	jxlQualityFunc = "JxlEncoderDistanceFromQuality"
	jxlWorkersFunc = "JxlThreadParallelRunnerDefaultNumWorkerThreads"

	jxlPoll = 100 * time.Millisecond
	jxlWait = 60 * time.Second
)

// errTimeout means a library did not show up in time.
var errTimeout = errors.New("timed out")

// waitModules polls open until every named module is loaded. It gives up
// after limit, when ctx is done, or at once if open reports the platform
// cannot load modules.
func waitModules(ctx context.Context, poll, limit time.Duration, open func(string) (*hookingo.Module, error), names ...string) ([]*hookingo.Module, error) {
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	mods := make([]*hookingo.Module, len(names))
	for {
		missing := ""
		for i, name := range names {
			if mods[i] != nil {
				continue
			}
			m, err := open(name)
			if errors.Is(err, hookingo.ErrUnsupported) {
				return nil, err
			}
			if err != nil {
				missing = name
				continue
			}
			mods[i] = m
		}
		if missing == "" {
			return mods, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("waiting for %s: %w", missing, errTimeout)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (f *Fix) jxl(ctx context.Context) {
	mods, err := waitModules(ctx, jxlPoll, jxlWait, loadedModule, jxlLib, jxlThreadsLib)
	if err != nil {
		f.log.Error("JXL tweaks: libraries not loaded", err)
		return
	}
	f.hookJXL(mods[0], mods[1])
}

func (f *Fix) hookJXL(enc, threads *hookingo.Module) {
	quality := f.cfg.JXL.Quality
	if addr, err := enc.Export(jxlQualityFunc); err != nil {
		f.log.Error("JXL tweaks: export lookup failed", err)
	} else {
		// first argument, in xmm0 at entry
		f.midAt(jxlQualityFunc, addr, func(c *hookingo.Context) {
			c.SetF32(hookingo.XMM0, 0, quality)
		})
	}

	addr, err := threads.Export(jxlWorkersFunc)
	if err != nil {
		f.log.Error("JXL tweaks: export lookup failed", err)
		return
	}
	detour, err := constantFunc(uintptr(f.cfg.JXL.NumThreads))
	if err != nil {
		f.log.Error("JXL tweaks: no detour", err)
		return
	}
	if _, err := f.hooks.Inline(addr, detour); err != nil {
		f.log.Error("hook failed", err, log.String("feature", jxlWorkersFunc))
		return
	}
	f.log.Info("feature hooked",
		log.String("feature", jxlWorkersFunc),
		log.String("address", threads.Offset(addr)),
		log.Int("threads", f.cfg.JXL.NumThreads))
}
