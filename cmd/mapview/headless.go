package main

import (
	"time"

	"go.uber.org/zap"

	"voxmap/internal/config"
	"voxmap/internal/graphics/gfx"
	"voxmap/internal/logger"
	"voxmap/internal/profiling"
	"voxmap/internal/viewer"
)

const headlessDT = 1.0 / 60

// runHeadless renders a fixed number of frames into the memory device while
// turning the camera in place.
func runHeadless(cfg *config.Config, scene *viewer.Scene) error {
	dev := gfx.NewMemoryDevice()
	s, err := viewer.NewSession(cfg, scene, dev, logger.Named("session"))
	if err != nil {
		scene.Close()
		return err
	}
	s.SetShadows(*flagShadows)

	start := time.Now()
	for i := range *flagFrames {
		dev.Reset()
		s.Camera.Rotate(360.0/float32(max(*flagFrames, 1)), 0)
		if err := s.Step(headlessDT); err != nil {
			s.Close()
			return err
		}
		if i%30 == 0 {
			logger.Debug("frame", zap.Int("n", i), zap.String("top", profiling.TopN(4)))
		}
	}
	s.Map.LogInfo()
	logger.Info("headless run done",
		zap.Int("frames", *flagFrames),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("draws", len(dev.Draws())),
		zap.Int("uploadedBytes", dev.UploadedBytes()))
	return finish(s)
}
