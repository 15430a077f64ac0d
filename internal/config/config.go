// Package config loads the user settings of the fix from its INI file.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/retroenv/retrogolib/log"
	"gopkg.in/ini.v1"
)

// FileName is the settings file expected next to the fix DLL.
const FileName = "FFXVIFix.ini"

// ErrMissing means the settings file does not exist.
var ErrMissing = errors.New("config file not found")

// Toggle is a section holding a single switch.
type Toggle struct {
	Enabled bool
}

type Resolution struct {
	Enabled      bool
	WindowedResX int
	WindowedResY int
}

type HUD struct {
	Enabled bool
	// HUDSize selects a preset: 0 automatic, 1 4:3, 2 16:10, 3 16:9, 4 21:9.
	HUDSize int
}

type Camera struct {
	AdditionalFOV      float32
	HorizontalPos      float32
	DistanceMultiplier float32
}

type Framerate struct {
	Enabled   bool
	Framerate float32
}

type JXL struct {
	NumThreads int
	Quality    float32
}

type Window struct {
	BackgroundAudio bool
	LockCursor      bool
	Resizable       bool
}

// Config is the validated settings. It is built once by Load and must be
// treated as read-only afterwards.
type Config struct {
	Resolution         Resolution `ini:"Fix Resolution"`
	HUD                HUD        `ini:"Fix HUD"`
	Movies             Toggle     `ini:"Fix Movies"`
	FOV                Toggle     `ini:"Fix FOV"`
	Camera             Camera     `ini:"Gameplay Camera"`
	Framerate          Framerate  `ini:"Remove 30FPS Cap"`
	CutsceneFramegen   Toggle     `ini:"Cutscene Frame Generation"`
	MotionBlurFramegen Toggle     `ini:"Motion Blur + Frame Generation"`
	JXL                JXL        `ini:"JPEG XL Tweaks"`
	DebuggerCheck      Toggle     `ini:"Disable Graphics Debugger Check"`
	DepthOfField       Toggle     `ini:"Disable Depth of Field"`
	Window             Window     `ini:"Game Window"`
}

// Default returns the values used for keys absent from the file.
func Default() Config {
	return Config{
		Camera:    Camera{HorizontalPos: 0.95, DistanceMultiplier: 1},
		Framerate: Framerate{Framerate: 30},
		JXL:       JXL{NumThreads: 1, Quality: 75},
	}
}

// Load reads and validates the settings file at path.
func Load(path string, logger *log.Logger) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissing, path)
		}
		return nil, err
	}
	return parse(path, logger)
}

// Parse reads settings from INI text.
func Parse(src []byte, logger *log.Logger) (*Config, error) {
	return parse(src, logger)
}

func parse(source any, logger *log.Logger) (*Config, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	f, err := ini.LoadSources(ini.LoadOptions{
		SkipUnrecognizableLines: true,
		AllowBooleanKeys:        true,
	}, source)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	c := Default()
	if err := f.MapTo(&c); err != nil {
		return nil, fmt.Errorf("mapping config: %w", err)
	}
	c.validate(logger, runtime.NumCPU())
	c.report(logger)
	return &c, nil
}

func clamp(logger *log.Logger, name string, v *float32, lo, hi float32) {
	if *v >= lo && *v <= hi {
		return
	}
	*v = min(max(*v, lo), hi)
	logger.Warn("config value invalid, clamped", log.String("key", name), log.Float32("value", *v))
}

func (c *Config) validate(logger *log.Logger, cpus int) {
	clamp(logger, "AdditionalFOV", &c.Camera.AdditionalFOV, -40, 140)
	clamp(logger, "HorizontalPos", &c.Camera.HorizontalPos, -5, 5)
	clamp(logger, "DistanceMultiplier", &c.Camera.DistanceMultiplier, 0.1, 10)

	// below 10fps the game misbehaves
	if c.Framerate.Framerate < 10 {
		c.Framerate.Framerate = 10
		logger.Warn("config value invalid, reset", log.String("key", "Framerate"), log.Float32("value", c.Framerate.Framerate))
	}
	if c.JXL.NumThreads < 1 || c.JXL.NumThreads > cpus {
		c.JXL.NumThreads = 1
		logger.Warn("config value invalid, reset", log.String("key", "NumThreads"), log.Int("value", 1))
	}
	clamp(logger, "Quality", &c.JXL.Quality, 1, 100)
}

func (c *Config) report(logger *log.Logger) {
	logger.Info("config parsed",
		log.Bool("fixResolution", c.Resolution.Enabled),
		log.Bool("fixHUD", c.HUD.Enabled),
		log.Int("hudSize", c.HUD.HUDSize),
		log.Bool("fixMovies", c.Movies.Enabled),
		log.Bool("fixFOV", c.FOV.Enabled),
		log.Float32("additionalFOV", c.Camera.AdditionalFOV),
		log.Float32("horizontalPos", c.Camera.HorizontalPos),
		log.Float32("distanceMultiplier", c.Camera.DistanceMultiplier),
		log.Bool("uncapFPS", c.Framerate.Enabled),
		log.Float32("fpsCap", c.Framerate.Framerate),
		log.Bool("cutsceneFramegen", c.CutsceneFramegen.Enabled),
		log.Bool("motionBlurFramegen", c.MotionBlurFramegen.Enabled),
		log.Int("jxlThreads", c.JXL.NumThreads),
		log.Float32("jxlQuality", c.JXL.Quality),
		log.Bool("disableDebuggerCheck", c.DebuggerCheck.Enabled),
		log.Bool("disableDOF", c.DepthOfField.Enabled),
		log.Bool("backgroundAudio", c.Window.BackgroundAudio),
		log.Bool("lockCursor", c.Window.LockCursor),
		log.Bool("resizableWindow", c.Window.Resizable))
}
