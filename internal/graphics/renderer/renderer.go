package renderer

import (
	"fmt"

	"go.uber.org/zap"

	"voxmap/internal/graphics"
	"voxmap/internal/graphics/drawlist"
	"voxmap/internal/logger"
	"voxmap/internal/profiling"
)

// Renderer orchestrates rendering via renderable features
type Renderer struct {
	renderables []Renderable
	camera      *graphics.Camera
	light       *drawlist.ShadowLight
	frame       uint64
	log         *zap.Logger

	// FOV transition
	targetFOV  float32
	currentFOV float32
}

// NewRenderer creates a new renderer drawing from camera with the given renderables
func NewRenderer(camera *graphics.Camera, log *zap.Logger, rs ...Renderable) (*Renderer, error) {
	r := &Renderer{
		renderables: rs,
		camera:      camera,
		log:         logger.OrNop(log),
		targetFOV:   camera.FOV,
		currentFOV:  camera.FOV,
	}

	// Initialize all renderables
	for i, rr := range rs {
		if err := rr.Init(); err != nil {
			// Dispose the ones already initialised
			for j := i - 1; j >= 0; j-- {
				rs[j].Dispose()
			}
			return nil, fmt.Errorf("init renderable %d: %w", i, err)
		}
	}
	return r, nil
}

// SetTargetFOV starts a smooth transition of the field of view, in degrees.
func (r *Renderer) SetTargetFOV(fov float32) {
	r.targetFOV = fov
}

// SetLight sets the shadow casting light; nil disables shadows.
func (r *Renderer) SetLight(l *drawlist.ShadowLight) {
	r.light = l
}

// Render draws one frame. The first error aborts the frame.
func (r *Renderer) Render(dt float64) error {
	defer profiling.Track("renderer.Render")()

	// Interpolate FOV
	step := float32(dt) * 100
	if r.currentFOV < r.targetFOV {
		r.currentFOV = min(r.currentFOV+step, r.targetFOV)
	} else if r.currentFOV > r.targetFOV {
		r.currentFOV = max(r.currentFOV-step, r.targetFOV)
	}
	r.camera.FOV = r.currentFOV

	ctx := RenderContext{
		Camera: r.camera.State(),
		DT:     dt,
		Frame:  r.frame,
		Light:  r.light,
	}
	r.frame++

	for _, rr := range r.renderables {
		if err := rr.Render(ctx); err != nil {
			r.log.Error("render failed", zap.Uint64("frame", ctx.Frame), zap.Error(err))
			return err
		}
	}
	return nil
}

// Frame returns the number of frames rendered so far.
func (r *Renderer) Frame() uint64 { return r.frame }

// Dispose cleans up all renderables in reverse order
func (r *Renderer) Dispose() {
	for i := len(r.renderables) - 1; i >= 0; i-- {
		r.renderables[i].Dispose()
	}
}

// GetCamera returns the camera instance
func (r *Renderer) GetCamera() *graphics.Camera {
	return r.camera
}

// UpdateViewport updates the camera and every renderable
func (r *Renderer) UpdateViewport(width, height int) {
	r.camera.SetViewport(width, height)
	for _, rr := range r.renderables {
		rr.SetViewport(width, height)
	}
}
