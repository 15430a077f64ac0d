package fix

import (
	"math"

	"github.com/k2io/hookingo"
)

// defaultCameraPos is the game's own horizontal camera offset.
const defaultCameraPos = 0.95

// verticalFOV widens a field of view cropped to 16:9 so a narrower output
// keeps the horizontal extent.
func verticalFOV(fov, aspect float32) float32 {
	if aspect <= 0 || aspect >= NativeAspect {
		return fov
	}
	half := math.Tan(float64(fov) / 2)
	return float32(2 * math.Atan(half*float64(NativeAspect/aspect)))
}

func (f *Fix) fov() {
	if f.cfg.FOV.Enabled {
		f.mid("fov", func(c *hookingo.Context) {
			aspect := f.state.Geometry().Aspect
			if aspect >= NativeAspect {
				return
			}
			fov := math.Float32frombits(c.Get32(hookingo.RAX))
			c.Set(hookingo.RAX, uint64(math.Float32bits(verticalFOV(fov, aspect))))
		})
	}

	cam := f.cfg.Camera
	if cam.AdditionalFOV != 0 {
		f.mid("gameplay_fov", func(c *hookingo.Context) {
			c.SetF32(hookingo.XMM0, 0, c.F32(hookingo.XMM0, 0)+cam.AdditionalFOV)
		})
	}
	if cam.HorizontalPos != defaultCameraPos {
		f.mid("camera_horizontal_pos", func(c *hookingo.Context) {
			c.SetF32(hookingo.XMM1, 0, cam.HorizontalPos)
		})
	}
	if cam.DistanceMultiplier != 1 {
		f.mid("camera_distance", func(c *hookingo.Context) {
			c.SetF32(hookingo.XMM3, 0, c.F32(hookingo.XMM3, 0)*cam.DistanceMultiplier)
		})
	}
}
