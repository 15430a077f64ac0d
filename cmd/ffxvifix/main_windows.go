package main

import "C"

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"unsafe"

	"github.com/0xrawsec/golang-win32/win32/user32"
	"github.com/retroenv/retrogolib/log"
	"golang.org/x/sys/windows"

	"github.com/k2io/hookingo"
	"github.com/k2io/hookingo/internal/catalog"
	"github.com/k2io/hookingo/internal/config"
	"github.com/k2io/hookingo/internal/fix"
	"github.com/k2io/hookingo/internal/logging"
)

// selfDir returns the directory holding this DLL.
func selfDir() (string, error) {
	var h windows.Handle
	addr := reflect.ValueOf(bootstrap).Pointer()
	flags := uint32(windows.GET_MODULE_HANDLE_EX_FLAG_FROM_ADDRESS | windows.GET_MODULE_HANDLE_EX_FLAG_UNCHANGED_REFCOUNT)
	if err := windows.GetModuleHandleEx(flags, (*uint16)(unsafe.Pointer(addr)), &h); err != nil {
		return "", err
	}
	return filepath.Dir(hookingo.ModulePath(h)), nil
}

func bootstrap() {
	dir, err := selfDir()
	if err != nil {
		return
	}
	logPath := filepath.Join(dir, fix.Name+".log")
	sink, err := logging.NewFile(logPath, logging.DefaultMaxSize)
	if err != nil {
		user32.MessageBox(0, fmt.Sprintf("Log initialisation failed: %v", err), fix.Name, 0)
		return
	}
	logger := logging.New(sink)

	game, err := hookingo.MainModule()
	if err != nil {
		logger.Error("opening game image failed", err)
		return
	}
	logging.Banner{
		Name:      fix.Name,
		Version:   fix.Version,
		LogPath:   logPath,
		Module:    game.Name,
		Path:      filepath.Dir(hookingo.ModulePath(0)),
		Base:      game.Base,
		Timestamp: game.Timestamp,
	}.Write(logger)

	iniPath := filepath.Join(dir, config.FileName)
	cfg, err := config.Load(iniPath, logger)
	if err != nil {
		logger.Error("loading config failed", err)
		if errors.Is(err, config.ErrMissing) {
			user32.MessageBox(0, fmt.Sprintf("%s v%s\nCould not locate config file.\nMake sure %s is located in %s",
				fix.Name, fix.Version, config.FileName, dir), fix.Name, 0)
		}
		return
	}
	logger.Info("config loaded", log.String("path", iniPath))

	sigs, err := catalog.Load(catalog.Detect(game.Name))
	if err != nil {
		logger.Error("loading signatures failed", err)
		return
	}
	if err := fix.New(cfg, game, sigs, logger).Run(context.Background()); err != nil {
		logger.Error("fix stopped", err)
	}
}
