package fix

import (
	"github.com/k2io/hookingo"
	"github.com/k2io/hookingo/internal/catalog"
)

// HUD size presets, indexed by the HUDSize setting. Zero keeps the size the
// game computed.
var (
	hudWidths  = [...]float32{0, 1440, 1728, 1920, 2520}
	hudHeights = [...]float32{0, 1440, 1200, 1080, 823}
)

func preset(table []float32, size int) (float32, bool) {
	if size <= 0 || size >= len(table) {
		return 0, false
	}
	return table[size], true
}

// blurBackdrop reports whether a photo mode element is one of the two
// 660x1080 blur panels at either side of a 16:9 screen.
func blurBackdrop(width, height int32, x float32) bool {
	if width < 655 || width > 665 || height < 1075 || height > 1085 {
		return false
	}
	return (x >= -675 && x <= -665) || (x >= 1925 && x <= 1935)
}

// Movie is the placement of a pre-rendered movie: the far edge and the
// near offset on each axis.
type Movie struct {
	Right, Left float32
	Bottom, Top float32
	Horizontal  bool
	Vertical    bool
}

// fitMovie letterboxes or pillarboxes a width x height movie quad to 16:9.
func fitMovie(g Geometry, width, height float32) Movie {
	var m Movie
	switch {
	case g.Wider():
		hudWidth := height * NativeAspect
		m.Left = (width - hudWidth) / 2
		m.Right = hudWidth + m.Left
		m.Horizontal = true
	case g.Narrower():
		hudHeight := width / NativeAspect
		m.Top = (height - hudHeight) / 2
		m.Bottom = hudHeight + m.Top
		m.Vertical = true
	}
	return m
}

func (f *Fix) hud() {
	if f.cfg.HUD.Enabled && f.cfg.Resolution.Enabled {
		f.hudSize()

		f.mid("hud_pillarboxing", func(c *hookingo.Context) {
			c.SetF32(hookingo.XMM5, 0, f.state.Geometry().Aspect)
		})

		size := f.cfg.HUD.HUDSize
		f.mid("gameplay_hud_width", func(c *hookingo.Context) {
			if c.F32(hookingo.XMM2, 0) <= NativeAspect {
				return
			}
			if w, ok := preset(hudWidths[:], size); ok {
				c.SetF32(hookingo.XMM1, 0, w)
			}
			f.state.eikonWidthOffset.Store((c.F32(hookingo.XMM1, 0) - 1920) / 2)
		})
		f.mid("gameplay_hud_height", func(c *hookingo.Context) {
			if c.F32(hookingo.XMM2, 0) >= NativeAspect {
				return
			}
			if h, ok := preset(hudHeights[:], size); ok {
				c.SetF32(hookingo.XMM0, 0, h)
			}
			f.state.eikonHeightOffset.Store((c.F32(hookingo.XMM0, 0) - 1080) / 2)
		})

		f.mid("eikon_cursor_width", func(c *hookingo.Context) {
			if f.state.Geometry().Wider() {
				c.SetF32(hookingo.XMM0, 0, c.F32(hookingo.XMM0, 0)+f.state.eikonWidthOffset.Load())
			}
		})
		f.mid("eikon_cursor_height", func(c *hookingo.Context) {
			if f.state.Geometry().Narrower() {
				c.SetF32(hookingo.XMM0, 0, c.F32(hookingo.XMM0, 0)+f.state.eikonHeightOffset.Load())
			}
		})

		f.mid("photo_mode_blur", func(c *hookingo.Context) {
			elem := c.Deref(hookingo.RCX, 0, 0xB4)
			w, _ := elem.Int32(0x40)
			h, _ := elem.Int32(0x44)
			x, _ := elem.Float32(0xB0)
			if blurBackdrop(w, h, x) {
				elem.SetInt32(0x40, 0)
			}
		})
	}

	if f.cfg.Movies.Enabled {
		f.mid("movies", func(c *hookingo.Context) {
			m := fitMovie(f.state.Geometry(), c.F32(hookingo.XMM0, 0), c.F32(hookingo.XMM2, 0))
			if m.Horizontal {
				c.SetF32(hookingo.XMM0, 0, m.Right)
				c.SetF32(hookingo.XMM1, 0, m.Left)
			}
			if m.Vertical {
				c.SetF32(hookingo.XMM2, 0, m.Bottom)
				c.SetF32(hookingo.XMM3, 0, m.Top)
			}
		})
	}
}

// hudSize makes the HUD canvas the full output size and removes the
// letterbox the game would add around it.
func (f *Fix) hudSize() {
	if f.sigs.Variant == catalog.Demo {
		f.mid("hud_size", func(c *hookingo.Context) {
			c.Set(hookingo.RSI, c.Get(hookingo.R13))
			c.Set(hookingo.RBP, c.Get(hookingo.R12))
			c.Set(hookingo.R14, 0)
			c.Set(hookingo.R15, 0)
		})
		return
	}
	f.mid("hud_size", func(c *hookingo.Context) {
		c.Set(hookingo.R12, c.Get(hookingo.RDI))
		c.Set(hookingo.R15, c.Get(hookingo.RBP))
		c.Set(hookingo.R13, 0)
		// spilled to [rsp+40] right after
		c.Set(hookingo.RAX, 0)
		c.Stack(0x40).SetInt32(0, 0)
	})
}
