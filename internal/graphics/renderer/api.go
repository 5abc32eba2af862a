package renderer

import (
	"voxmap/internal/graphics"
	"voxmap/internal/graphics/drawlist"
)

// RenderContext provides shared context for all renderables
type RenderContext struct {
	Camera graphics.CameraState
	DT     float64
	Frame  uint64
	// Light is the shadow casting light of this frame, nil when shadows are off
	Light *drawlist.ShadowLight
}

// Renderable interface defines the lifecycle for renderable features
type Renderable interface {
	Init() error
	Render(ctx RenderContext) error
	Dispose()
	SetViewport(width, height int)
}
