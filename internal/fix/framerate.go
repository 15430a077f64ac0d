package fix

import "encoding/binary"

func (f *Fix) framerate() {
	fps := f.cfg.Framerate
	if !fps.Enabled && fps.Framerate != 30 {
		// the cap is stored in hundredths of a frame per second
		limit := uint32(int32(fps.Framerate * 100))
		f.patch("cutscene_framerate_cap", binary.LittleEndian.AppendUint32(nil, limit))
	}

	if fps.Enabled {
		f.patch("framerate_cap", []byte{0x00})
	}
	if f.cfg.CutsceneFramegen.Enabled {
		f.patch("cutscene_framegen", []byte{0xEB})
	}
}

func (f *Fix) misc() {
	if f.cfg.MotionBlurFramegen.Enabled {
		// both sites or neither
		lock, lockAt, ok1 := f.find("motion_blur_menu_lock")
		logic, logicAt, ok2 := f.find("motion_blur_logic")
		if ok1 && ok2 {
			// keep the menu option visible with frame generation on
			f.apply(lock.Label, lockAt+lock.Offset, []byte{0x90, 0x90, 0x90, 0x90, 0x90, 0x90})
			// keep the blur strength from being zeroed
			f.apply(logic.Label, logicAt+logic.Offset, []byte{0xEB})
		}
	}
	if f.cfg.DebuggerCheck.Enabled {
		f.patch("graphics_debugger_check", []byte{0xEB})
	}
	if f.cfg.DepthOfField.Enabled {
		f.patch("depth_of_field", []byte{0xEB})
	}
}
