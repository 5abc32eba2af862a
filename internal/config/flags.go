package config

import "flag"

var (
	flagConfig    = flag.String("config", "", "Path to config file")
	flagDebug     = flag.Bool("debug", false, "Enable debug logging")
	flagRange     = flag.Float64("range", 0, "Wanted view range in nodes")
	flagRangeAll  = flag.Bool("range-all", false, "Draw every loaded block")
	flagWireframe = flag.Bool("wireframe", false, "Render in wireframe")
	flagCuller    = flag.String("culler", "", "Occlusion culler policy (sampling|none)")
	flagRaytraced = flag.Bool("raytraced", false, "Use exact ray traversal for occlusion")
	flagSeed      = flag.Int64("seed", 0, "World seed")
	flagWidth     = flag.Int("width", 0, "Window width")
	flagHeight    = flag.Int("height", 0, "Window height")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagRange > 0 {
		cfg.Render.WantedRange = float32(*flagRange)
	}
	if *flagRangeAll {
		cfg.Render.RangeAll = true
	}
	if *flagWireframe {
		cfg.Render.ShowWireframe = true
	}
	if *flagCuller != "" {
		cfg.Render.OcclusionCuller = *flagCuller
	}
	if *flagRaytraced {
		cfg.Render.EnableRaytracedCulling = true
	}
	if *flagSeed != 0 {
		cfg.World.Seed = *flagSeed
	}
	if *flagWidth > 0 {
		cfg.Window.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Window.Height = *flagHeight
	}
}
