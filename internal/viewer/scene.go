// Package viewer wires a generated world, the mesher and the map renderer
// into something that can be driven frame by frame, with or without a window.
package viewer

import (
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"voxmap/internal/config"
	"voxmap/internal/logger"
	"voxmap/internal/meshing"
	"voxmap/internal/world"
)

// Demo content.
const (
	ContentStone world.Content = iota + 1
	ContentGrass
	ContentWater
)

// Demo materials.
const (
	MaterialStone world.MaterialID = iota + 1
	MaterialGrass
	MaterialWater
)

// MaterialColors are the flat colors materials are shaded with.
var MaterialColors = map[world.MaterialID]mgl32.Vec4{
	MaterialStone: {0.50, 0.50, 0.52, 1},
	MaterialGrass: {0.36, 0.62, 0.28, 1},
	MaterialWater: {0.20, 0.40, 0.80, 0.6},
}

// Scene owns the world and the mesher feeding it.
type Scene struct {
	World     *world.Map
	Generator *world.Generator
	Meshers   *meshing.WorkerPool

	cfg       config.WorldConfig
	materials []*world.Material
	log       *zap.Logger
}

// NewScene registers the demo content and starts the mesh workers. The
// world stays empty until Generate is called.
func NewScene(cfg config.WorldConfig, log *zap.Logger) *Scene {
	log = logger.OrNop(log)
	stone := world.NewMaterial(MaterialStone, "stone", false)
	grass := world.NewMaterial(MaterialGrass, "grass", false)
	water := world.NewMaterial(MaterialWater, "water", true)

	defs := world.NewNodeDefs()
	defs.Register(ContentStone, world.NodeDef{Name: "stone", Opaque: true, Material: stone})
	defs.Register(ContentGrass, world.NodeDef{Name: "grass", Opaque: true, Material: grass})
	defs.Register(ContentWater, world.NodeDef{Name: "water", Material: water})

	gen := world.NewGenerator(cfg.Seed, ContentStone, ContentGrass, ContentWater)
	gen.SeaLevel = int(cfg.SeaLevel)

	m := world.NewMap(defs)
	return &Scene{
		World:     m,
		Generator: gen,
		Meshers:   meshing.NewWorkerPool(m, cfg.MeshWorkers, 256, log.Named("meshing")),
		cfg:       cfg,
		materials: []*world.Material{stone, grass, water},
		log:       log,
	}
}

// Generate populates every block within Radius of the origin horizontally
// and Height blocks up, then waits for all of them to be meshed.
func (s *Scene) Generate() {
	r := int16(s.cfg.Radius)
	for x := -r; x <= r; x++ {
		for z := -r; z <= r; z++ {
			for y := int16(0); y < int16(s.cfg.Height); y++ {
				b := world.NewBlock(world.BlockPos{X: x, Y: y, Z: z})
				s.Generator.PopulateBlock(b)
				s.World.AddBlock(b)
			}
		}
	}
	for _, b := range s.World.AllBlocks() {
		s.Meshers.SubmitJobBlocking(b)
	}
	s.Meshers.Wait()
	s.log.Info("world generated",
		zap.Int("blocks", s.World.BlockCount()),
		zap.Uint64("meshed", s.Meshers.Meshed()))
}

// Spawn returns a camera position a few nodes above the terrain at the origin.
func (s *Scene) Spawn() mgl32.Vec3 {
	y := max(s.Generator.HeightAt(0, 0), int32(s.Generator.SeaLevel)) + 6
	return mgl32.Vec3{0, float32(y) * world.BS, 0}
}

// Update ages blocks, unloads the ones unused for longer than the unload
// timeout and queues modified blocks for remeshing.
func (s *Scene) Update(dt float32) {
	if unloaded := s.World.TimerUpdate(dt, s.cfg.UnloadTimeout); len(unloaded) > 0 {
		s.log.Debug("blocks unloaded", zap.Int("count", len(unloaded)))
	}
	s.Meshers.ScheduleModified()
}

// Close stops the mesher and gives back the registry's material shares.
func (s *Scene) Close() {
	s.Meshers.Shutdown()
	for _, mat := range s.materials {
		mat.Release()
	}
	s.materials = nil
}
