package main

import (
	"os"

	"github.com/go-gl/glfw/v3.3/glfw"
	"go.uber.org/zap"

	"voxmap/internal/logger"
	"voxmap/internal/viewer"
)

const (
	flySpeed         = 200 // world units per second
	fastMultiplier   = 4
	mouseSensitivity = 0.1
	zoomFOV          = 30
)

type input struct {
	window *glfw.Window
	s      *viewer.Session

	paused     bool
	firstMouse bool
	lastX      float64
	lastY      float64
	normalFOV  float32
	shadows    bool
}

func newInput(window *glfw.Window, s *viewer.Session) *input {
	in := &input{
		window:     window,
		s:          s,
		firstMouse: true,
		normalFOV:  s.Camera.FOV,
		shadows:    *flagShadows,
	}
	window.SetCursorPosCallback(in.onCursor)
	window.SetKeyCallback(in.onKey)
	return in
}

func (in *input) onCursor(_ *glfw.Window, x, y float64) {
	if in.paused {
		return
	}
	if in.firstMouse {
		in.lastX, in.lastY = x, y
		in.firstMouse = false
		return
	}
	dx, dy := x-in.lastX, in.lastY-y
	in.lastX, in.lastY = x, y
	in.s.Camera.Rotate(float32(dx*mouseSensitivity), float32(dy*mouseSensitivity))
}

func (in *input) onKey(w *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
	if action != glfw.Press {
		return
	}
	switch key {
	case glfw.KeyEscape:
		in.paused = !in.paused
		if in.paused {
			w.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
		} else {
			w.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)
			in.firstMouse = true
		}
	case glfw.KeyQ:
		w.SetShouldClose(true)
	case glfw.KeyF:
		in.s.ToggleWireframe()
	case glfw.KeyR:
		in.s.ToggleRangeAll()
	case glfw.KeyEqual, glfw.KeyKPAdd:
		in.s.AdjustRange(1)
	case glfw.KeyMinus, glfw.KeyKPSubtract:
		in.s.AdjustRange(-1)
	case glfw.KeyO:
		if err := in.s.ToggleOcclusion(); err != nil {
			logger.Warn("toggle occlusion", zap.Error(err))
		}
	case glfw.KeyT:
		in.s.ToggleRaytraced()
	case glfw.KeyL:
		in.shadows = !in.shadows
		in.s.SetShadows(in.shadows)
	case glfw.KeyI:
		if err := in.s.Map.PrintInfo(os.Stdout); err != nil {
			logger.Warn("print info", zap.Error(err))
		}
	case glfw.KeyG:
		path := *flagExport
		if path == "" {
			path = "voxmap.glb"
		}
		if err := in.s.Export(path); err != nil {
			logger.Warn("export", zap.Error(err))
		}
	}
}

// update flies the camera from the held movement keys.
func (in *input) update(dt float32) {
	if in.paused {
		return
	}
	held := func(k glfw.Key) float32 {
		if in.window.GetKey(k) == glfw.Press {
			return 1
		}
		return 0
	}
	forward := held(glfw.KeyW) - held(glfw.KeyS)
	right := held(glfw.KeyD) - held(glfw.KeyA)
	up := held(glfw.KeySpace) - held(glfw.KeyLeftShift)

	speed := float32(flySpeed)
	if in.window.GetKey(glfw.KeyLeftControl) == glfw.Press {
		speed *= fastMultiplier
	}
	in.s.Fly(forward, right, up, speed*dt)

	if in.window.GetKey(glfw.KeyC) == glfw.Press {
		in.s.Renderer.SetTargetFOV(zoomFOV)
	} else {
		in.s.Renderer.SetTargetFOV(in.normalFOV)
	}
}
