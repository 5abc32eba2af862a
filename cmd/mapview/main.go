package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"go.uber.org/zap"

	"voxmap/internal/config"
	"voxmap/internal/logger"
	"voxmap/internal/viewer"
)

var (
	flagHeadless = flag.Bool("headless", false, "Render into memory buffers without opening a window")
	flagFrames   = flag.Int("frames", 120, "Frames to render in headless mode")
	flagExport   = flag.String("export", "", "Write the merged buffers as glTF binary on exit (.zst compresses)")
	flagInfo     = flag.Bool("info", false, "Print the map renderer state as YAML on exit")
	flagShadows  = flag.Bool("shadows", false, "Draw the shadow caster pass")
	flagSave     = flag.Bool("save-config", false, "Write the effective config to the user config directory")
)

func init() {
	runtime.LockOSThread()
}

func main() {
	config.ParseFlags()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *flagSave {
		if err := cfg.Save(); err != nil {
			logger.Warn("save config", zap.Error(err))
		} else {
			logger.Info("config saved", zap.String("dir", config.ConfigDir()))
		}
	}

	if err := run(cfg); err != nil {
		logger.Error("mapview failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	scene := viewer.NewScene(cfg.World, logger.Named("scene"))
	scene.Generate()

	if *flagHeadless {
		return runHeadless(cfg, scene)
	}
	return runWindow(cfg, scene)
}

// finish prints and exports what the flags ask for, then closes the session.
func finish(s *viewer.Session) error {
	defer s.Close()
	if *flagInfo {
		if err := s.Map.PrintInfo(os.Stdout); err != nil {
			return err
		}
	}
	if *flagExport != "" {
		return s.Export(*flagExport)
	}
	return nil
}
