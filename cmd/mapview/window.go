package main

import (
	"fmt"
	"time"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"voxmap/internal/config"
	"voxmap/internal/graphics/gfx/gldevice"
	"voxmap/internal/logger"
	"voxmap/internal/profiling"
	"voxmap/internal/viewer"
)

var skyColor = mgl32.Vec4{0.53, 0.72, 0.92, 1}

func setupWindow(cfg config.WindowConfig) (*glfw.Window, error) {
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)

	window, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create window: %w", err)
	}
	window.MakeContextCurrent()

	if err := gl.Init(); err != nil {
		window.Destroy()
		return nil, fmt.Errorf("init gl: %w", err)
	}

	if cfg.VSync {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}
	window.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)
	return window, nil
}

// runWindow opens a window and renders until it is closed.
func runWindow(cfg *config.Config, scene *viewer.Scene) error {
	if err := glfw.Init(); err != nil {
		scene.Close()
		return fmt.Errorf("init glfw: %w", err)
	}
	defer glfw.Terminate()

	window, err := setupWindow(cfg.Window)
	if err != nil {
		scene.Close()
		return err
	}
	defer window.Destroy()

	dev, err := gldevice.New(logger.Named("gl"))
	if err != nil {
		scene.Close()
		return err
	}
	defer dev.Close()
	for id, c := range viewer.MaterialColors {
		dev.SetMaterialColor(id, c)
	}

	s, err := viewer.NewSession(cfg, scene, dev, logger.Named("session"))
	if err != nil {
		scene.Close()
		return err
	}
	s.SetShadows(*flagShadows)

	w, h := window.GetFramebufferSize()
	dev.SetViewport(w, h)
	s.Camera.SetViewport(w, h)

	in := newInput(window, s)
	window.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		dev.SetViewport(width, height)
		s.Renderer.UpdateViewport(width, height)
	})

	if err := loop(window, cfg.Window, s, in, dev); err != nil {
		s.Close()
		return err
	}
	return finish(s)
}

func loop(window *glfw.Window, cfg config.WindowConfig, s *viewer.Session, in *input, dev *gldevice.Device) error {
	limiter := viewer.NewFPSLimiter(cfg.FPSLimit)
	frames := 0
	lastFPSCheck := time.Now()
	lastTime := time.Now()

	for !window.ShouldClose() {
		now := time.Now()
		dt := now.Sub(lastTime).Seconds()
		lastTime = now

		in.update(float32(dt))
		dev.BeginFrame(s.Camera.State().ViewProj(), skyColor)
		if err := s.Step(dt); err != nil {
			return err
		}
		frames++

		if time.Since(lastFPSCheck) >= time.Second {
			logger.Debug("fps",
				zap.Int("fps", frames),
				zap.String("top", profiling.TopN(4)))
			frames = 0
			lastFPSCheck = time.Now()
		}

		func() { defer profiling.Track("glfw.SwapBuffers")(); window.SwapBuffers() }()
		func() { defer profiling.Track("glfw.PollEvents")(); glfw.PollEvents() }()
		limiter.Wait()
	}
	return nil
}
