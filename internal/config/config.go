// Package config handles renderer configuration loading and live settings.
package config

import "fmt"

// Config holds all settings of the map viewer.
type Config struct {
	Render  RenderOptions `yaml:"render"`
	World   WorldConfig   `yaml:"world"`
	Window  WindowConfig  `yaml:"window"`
	Logging LoggingConfig `yaml:"logging"`
}

// RenderOptions are the options consumed by the draw list builder, the mesh
// buffer cache and the map renderable. Distances are in nodes.
type RenderOptions struct {
	WantedRange       float32 `yaml:"wanted_range"`
	RangeAll          bool    `yaml:"range_all"`
	AllowNoclip       bool    `yaml:"allow_noclip"`
	ShowWireframe     bool    `yaml:"show_wireframe"`
	TrilinearFilter   bool    `yaml:"trilinear_filter"`
	BilinearFilter    bool    `yaml:"bilinear_filter"`
	AnisotropicFilter bool    `yaml:"anisotropic_filter"`

	TransparencySortingDistance int `yaml:"transparency_sorting_distance"`

	OcclusionCuller        string `yaml:"occlusion_culler"`
	EnableRaytracedCulling bool   `yaml:"enable_raytraced_culling"`
	OcclusionSamples       string `yaml:"occlusion_samples"`
	CullWorkers            int    `yaml:"cull_workers"`

	BufferInitialVertices int `yaml:"buffer_initial_vertices"`
	BufferInitialIndices  int `yaml:"buffer_initial_indices"`

	CameraMoveThreshold    float32 `yaml:"camera_move_threshold"`
	CameraTurnThresholdDeg float32 `yaml:"camera_turn_threshold_deg"`

	ShadowFrames int `yaml:"shadow_frames"`
}

// WorldConfig holds settings of the demo world that feeds the renderer.
type WorldConfig struct {
	Seed          int64   `yaml:"seed"`
	Radius        int     `yaml:"radius"` // in blocks, around the origin
	Height        int     `yaml:"height"` // in blocks, starting at y=0
	SeaLevel      int32   `yaml:"sea_level"`
	UnloadTimeout float32 `yaml:"unload_timeout"` // seconds
	MeshWorkers   int     `yaml:"mesh_workers"`
}

// WindowConfig holds display settings.
type WindowConfig struct {
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
	Title    string `yaml:"title"`
	VSync    bool   `yaml:"vsync"`
	FPSLimit int    `yaml:"fps_limit"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Occlusion culler policies and sample layouts.
const (
	CullerSampling = "sampling"
	CullerNone     = "none"

	SamplesCorners = "corners"
	SamplesFaces   = "faces"
)

// DefaultRenderOptions returns the render defaults.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		WantedRange:                 190,
		AllowNoclip:                 true,
		BilinearFilter:              true,
		TransparencySortingDistance: 16,
		OcclusionCuller:             CullerSampling,
		OcclusionSamples:            SamplesCorners,
		CullWorkers:                 1,
		BufferInitialVertices:       1 << 14,
		BufferInitialIndices:        1 << 15,
		CameraMoveThreshold:         1,
		CameraTurnThresholdDeg:      2,
		ShadowFrames:                8,
	}
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Render: DefaultRenderOptions(),
		World: WorldConfig{
			Seed:          1337,
			Radius:        6,
			Height:        3,
			SeaLevel:      20,
			UnloadTimeout: 600,
			MeshWorkers:   4,
		},
		Window: WindowConfig{
			Width:  1280,
			Height: 720,
			Title:  "voxmap",
			VSync:  true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Render.Validate(); err != nil {
		return err
	}
	return c.World.Validate()
}

// Validate checks the size of the demo world.
func (w WorldConfig) Validate() error {
	if w.Radius < 0 {
		return fmt.Errorf("world.radius: must not be negative, got %d", w.Radius)
	}
	if w.Height < 1 {
		return fmt.Errorf("world.height: must be at least 1, got %d", w.Height)
	}
	if w.UnloadTimeout <= 0 {
		return fmt.Errorf("world.unload_timeout: must be positive, got %v", w.UnloadTimeout)
	}
	return nil
}

// Validate checks enumerated options and ranges.
func (o RenderOptions) Validate() error {
	switch o.OcclusionCuller {
	case CullerSampling, CullerNone:
	default:
		return fmt.Errorf("render.occlusion_culler: unknown policy %q", o.OcclusionCuller)
	}
	switch o.OcclusionSamples {
	case SamplesCorners, SamplesFaces:
	default:
		return fmt.Errorf("render.occlusion_samples: unknown layout %q", o.OcclusionSamples)
	}
	if o.WantedRange < 0 {
		return fmt.Errorf("render.wanted_range: must not be negative, got %v", o.WantedRange)
	}
	if o.BufferInitialVertices <= 0 || o.BufferInitialIndices <= 0 {
		return fmt.Errorf("render.buffer_initial_*: must be positive")
	}
	if o.ShadowFrames < 1 {
		return fmt.Errorf("render.shadow_frames: must be at least 1, got %d", o.ShadowFrames)
	}
	return nil
}
