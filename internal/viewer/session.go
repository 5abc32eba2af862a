package viewer

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"voxmap/internal/config"
	"voxmap/internal/graphics"
	"voxmap/internal/graphics/drawlist"
	"voxmap/internal/graphics/gfx"
	"voxmap/internal/graphics/renderables/mapnode"
	"voxmap/internal/graphics/renderer"
	"voxmap/internal/logger"
	"voxmap/internal/profiling"
	"voxmap/internal/world"
)

// Range steps, in nodes.
const (
	rangeStep = 16
	minRange  = 20
)

// sunDirection points from the sun down onto the terrain.
var sunDirection = mgl32.Vec3{0.3, -1, 0.2}.Normalize()

// Session drives one camera over a scene through a graphics device.
type Session struct {
	Scene    *Scene
	Camera   *graphics.Camera
	Settings *config.Settings
	Map      *mapnode.Map
	Renderer *renderer.Renderer

	shadows bool
	sun     drawlist.ShadowLight
	log     *zap.Logger
}

// NewSession creates the renderer stack for scene. The camera starts at the
// scene's spawn point.
func NewSession(cfg *config.Config, scene *Scene, dev gfx.Device, log *zap.Logger) (*Session, error) {
	log = logger.OrNop(log)
	cam := graphics.NewCamera(cfg.Window.Width, cfg.Window.Height)
	cam.Position = scene.Spawn()

	settings := config.NewSettings(cfg.Render)
	mapRenderer := mapnode.New(scene.World, dev, settings, log.Named("map"))
	r, err := renderer.NewRenderer(cam, log.Named("renderer"), mapRenderer)
	if err != nil {
		return nil, fmt.Errorf("create renderer: %w", err)
	}
	return &Session{
		Scene:    scene,
		Camera:   cam,
		Settings: settings,
		Map:      mapRenderer,
		Renderer: r,
		log:      log,
	}, nil
}

// Step advances the scene by dt seconds and renders one frame.
func (s *Session) Step(dt float64) error {
	profiling.ResetFrame()
	func() {
		defer profiling.Track("scene.Update")()
		s.Scene.Update(float32(dt))
	}()
	if s.shadows {
		s.followSun()
	}
	return s.Renderer.Render(dt)
}

// SetShadows turns the shadow pass on or off.
func (s *Session) SetShadows(on bool) {
	s.shadows = on
	if !on {
		s.Renderer.SetLight(nil)
		return
	}
	s.followSun()
	s.Renderer.SetLight(&s.sun)
}

// followSun keeps the light's caster volume centred on the camera.
func (s *Session) followSun() {
	reach := s.Settings.Snapshot().WantedRange * world.BS
	s.sun = drawlist.ShadowLight{
		Position:  s.Camera.Position.Sub(sunDirection.Mul(reach)),
		Direction: sunDirection,
		Radius:    reach,
		Length:    reach,
	}
}

// Fly moves the camera relative to its heading: forward along the view
// direction, right along the horizontal side vector and up along world Y.
func (s *Session) Fly(forward, right, up, distance float32) {
	dir := s.Camera.Direction()
	yaw := float64(mgl32.DegToRad(s.Camera.Yaw))
	side := mgl32.Vec3{float32(-math.Sin(yaw)), 0, float32(math.Cos(yaw))}
	move := dir.Mul(forward).Add(side.Mul(right)).Add(mgl32.Vec3{0, up, 0})
	if move.Len() == 0 {
		return
	}
	s.Camera.Move(move.Normalize().Mul(distance))
}

// ToggleWireframe flips wireframe rendering.
func (s *Session) ToggleWireframe() {
	s.Settings.SetShowWireframe(!s.Settings.Snapshot().ShowWireframe)
}

// ToggleRangeAll flips between the wanted range and drawing everything loaded.
func (s *Session) ToggleRangeAll() {
	on := !s.Settings.Snapshot().RangeAll
	s.Settings.SetRangeAll(on)
	s.log.Info("range all", zap.Bool("enabled", on))
}

// AdjustRange changes the wanted range by steps of rangeStep nodes.
func (s *Session) AdjustRange(steps int) {
	r := max(s.Settings.Snapshot().WantedRange+float32(steps*rangeStep), minRange)
	s.Settings.SetWantedRange(r)
	s.log.Info("wanted range", zap.Float32("nodes", r))
}

// ToggleOcclusion switches the occlusion culler between sampling and none.
func (s *Session) ToggleOcclusion() error {
	policy := config.CullerNone
	if s.Settings.Snapshot().OcclusionCuller == config.CullerNone {
		policy = config.CullerSampling
	}
	if err := s.Settings.SetOcclusionCuller(policy); err != nil {
		return err
	}
	s.log.Info("occlusion culler", zap.String("policy", policy))
	return nil
}

// ToggleRaytraced flips exact ray traversal for occlusion tests.
func (s *Session) ToggleRaytraced() {
	on := !s.Settings.Snapshot().EnableRaytracedCulling
	s.Settings.SetEnableRaytracedCulling(on)
	s.log.Info("raytraced culling", zap.Bool("enabled", on))
}

// Export writes the merged buffers to path as glTF binary.
func (s *Session) Export(path string) error {
	if err := s.Map.Cache().ExportGLB(path); err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	s.log.Info("exported merged buffers", zap.String("path", path))
	return nil
}

// Close disposes the renderer and the scene.
func (s *Session) Close() {
	s.Renderer.Dispose()
	s.Scene.Close()
}
