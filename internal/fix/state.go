package fix

import (
	"math"
	"sync/atomic"
)

// NativeAspect is the aspect ratio the game lays its HUD out for.
const NativeAspect = float32(16) / 9

// Geometry is everything derived from the current output resolution.
type Geometry struct {
	Width  int
	Height int
	// Aspect is Width/Height.
	Aspect float32
	// Multiplier is Aspect relative to 16:9.
	Multiplier float32

	// 16:9 HUD rectangle centered in the output
	HUDWidth        float32
	HUDHeight       float32
	HUDWidthOffset  float32
	HUDHeightOffset float32
}

// NewGeometry computes the geometry of a width x height output.
func NewGeometry(width, height int) Geometry {
	g := Geometry{Width: width, Height: height}
	if width <= 0 || height <= 0 {
		return g
	}
	w, h := float32(width), float32(height)
	g.Aspect = w / h
	g.Multiplier = g.Aspect / NativeAspect

	if g.Aspect < NativeAspect {
		g.HUDWidth = w
		g.HUDHeight = w / NativeAspect
		g.HUDHeightOffset = (h - g.HUDHeight) / 2
		return g
	}
	g.HUDWidth = h * NativeAspect
	g.HUDHeight = h
	g.HUDWidthOffset = (w - g.HUDWidth) / 2
	return g
}

// Wider reports whether the output is wider than 16:9.
func (g Geometry) Wider() bool { return g.Aspect > NativeAspect }

// Narrower reports whether the output is narrower than 16:9.
func (g Geometry) Narrower() bool { return g.Aspect < NativeAspect }

type float32Value struct {
	bits atomic.Uint32
}

func (v *float32Value) Load() float32 { return math.Float32frombits(v.bits.Load()) }

func (v *float32Value) Store(f float32) { v.bits.Store(math.Float32bits(f)) }

// State is shared between hook callbacks, which run on game threads.
type State struct {
	geometry atomic.Pointer[Geometry]

	eikonWidthOffset  float32Value
	eikonHeightOffset float32Value
}

// NewState starts from the given output size, normally the desktop.
func NewState(width, height int) *State {
	s := &State{}
	g := NewGeometry(width, height)
	s.geometry.Store(&g)
	return s
}

// Geometry returns the current geometry.
func (s *State) Geometry() Geometry {
	return *s.geometry.Load()
}

// Resize records a new output size and reports whether it changed.
func (s *State) Resize(width, height int) (Geometry, bool) {
	cur := s.geometry.Load()
	if cur.Width == width && cur.Height == height {
		return *cur, false
	}
	g := NewGeometry(width, height)
	s.geometry.Store(&g)
	return g, true
}
