package fix

import (
	"github.com/retroenv/retrogolib/log"

	"github.com/k2io/hookingo"
	"github.com/k2io/hookingo/internal/catalog"
)

func (f *Fix) resolution() {
	if f.cfg.Resolution.Enabled {
		// jz -> jnz so the game starts at the desktop resolution
		f.patch("startup_resolution", []byte{0x85})

		// borderless and fullscreen take the requested size instead of the
		// display mode list entry
		if f.sigs.Variant == catalog.Demo {
			f.mid("resolution_fix", func(c *hookingo.Context) {
				c.Set(hookingo.R15, c.Get(hookingo.R8))
				c.Set(hookingo.R12, c.Get(hookingo.R9))
			})
		} else {
			f.mid("resolution_fix", func(c *hookingo.Context) {
				c.Set(hookingo.RDI, c.Get(hookingo.R8))
				c.Set(hookingo.RSI, c.Get(hookingo.R9))
			})
		}

		w, h := f.windowedSize()
		f.mid("windowed_resolutions", func(c *hookingo.Context) {
			// the first entry of the list is replaced
			if c.Get(hookingo.RBX) != 0 {
				return
			}
			list := c.Deref(hookingo.RAX, 4, 8)
			list.SetInt32(0, int32(w))
			list.SetInt32(4, int32(h))
		})
	}

	f.mid("current_resolution", func(c *hookingo.Context) {
		rax := c.Get(hookingo.RAX)
		g, changed := f.state.Resize(int(int32(rax)), int(int32(rax>>32)))
		if changed {
			f.logGeometry(g)
		}
	})

	f.mid("fsr_framegen_aspect", func(c *hookingo.Context) {
		c.SetF32(hookingo.XMM0, 0, f.state.Geometry().Aspect)
	})

	f.mid("vignette_strength", func(c *hookingo.Context) {
		g := f.state.Geometry()
		if !g.Wider() {
			return
		}
		c.Deref(hookingo.R15, 0x6C, 4).SetFloat32(0, 1/g.Multiplier)
	})
}

// windowedSize is the size offered as the first windowed resolution.
func (f *Fix) windowedSize() (int, int) {
	w, h := f.cfg.Resolution.WindowedResX, f.cfg.Resolution.WindowedResY
	if w == 0 || h == 0 {
		return f.desktopW, f.desktopH
	}
	return w, h
}

func (f *Fix) logGeometry(g Geometry) {
	f.log.Info("current resolution",
		log.Int("width", g.Width),
		log.Int("height", g.Height),
		log.Float32("aspect", g.Aspect),
		log.Float32("multiplier", g.Multiplier),
		log.Float32("hudWidth", g.HUDWidth),
		log.Float32("hudHeight", g.HUDHeight),
		log.Float32("hudWidthOffset", g.HUDWidthOffset),
		log.Float32("hudHeightOffset", g.HUDHeightOffset))
}
