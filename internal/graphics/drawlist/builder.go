// Package drawlist selects and orders the blocks to draw each frame, for the
// main camera and for shadow casting lights.
package drawlist

import (
	"math"

	"github.com/alitto/pond/v2"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"voxmap/internal/config"
	"voxmap/internal/graphics"
	"voxmap/internal/graphics/meshcache"
	"voxmap/internal/graphics/occlusion"
	"voxmap/internal/logger"
	"voxmap/internal/profiling"
	"voxmap/internal/world"
)

// Occlusion tests below this many blocks stay on the calling goroutine.
const parallelThreshold = 64

// blockRadius is the radius of the sphere around a block.
var blockRadius = float32(world.BlockSize*world.BS) * float32(math.Sqrt(3)) / 2

// Stats counts what happened during the last UpdateDrawList.
type Stats struct {
	Candidates    int
	Drawn         int
	NoMesh        int
	FrustumCulled int
	Occluded      int
	Kept          int
	Noclip        bool
}

// Builder builds the main and shadow draw lists from the blocks of a map.
// It is used from the render thread only.
type Builder struct {
	m      *world.Map
	opts   config.RenderOptions
	log    *zap.Logger
	culler *occlusion.Culler
	pool   pond.Pool

	cam           graphics.CameraState
	lastCam       graphics.CameraState
	builtModCount uint64
	built         bool
	dirty         bool

	list   *DrawList
	keep   map[world.BlockPos]*world.Block
	shadow *DrawList

	candidates []*world.Block
	visible    []*world.Block
	occluded   []bool
	stats      Stats
}

// New creates a builder over m using the given options.
func New(m *world.Map, opts config.RenderOptions, log *zap.Logger) *Builder {
	b := &Builder{
		m:      m,
		log:    logger.OrNop(log),
		list:   newDrawList(),
		keep:   make(map[world.BlockPos]*world.Block),
		shadow: newDrawList(),
	}
	b.SetOptions(opts)
	return b
}

// SetOptions applies new render options and forces a rebuild of the list.
func (b *Builder) SetOptions(opts config.RenderOptions) {
	if b.pool == nil || opts.CullWorkers != b.opts.CullWorkers {
		if b.pool != nil {
			b.pool.StopAndWait()
			b.pool = nil
		}
		if opts.CullWorkers > 1 {
			b.pool = pond.NewPool(opts.CullWorkers)
		}
	}
	b.opts = opts
	b.culler = occlusion.New(b.m, occlusion.OptionsFrom(opts))
	b.dirty = true
	b.log.Debug("draw list options",
		zap.Float32("range", opts.WantedRange),
		zap.Bool("rangeAll", opts.RangeAll),
		zap.String("culler", opts.OcclusionCuller),
		zap.Bool("raytraced", opts.EnableRaytracedCulling),
		zap.Int("workers", opts.CullWorkers))
}

// Close stops the culling workers.
func (b *Builder) Close() {
	if b.pool != nil {
		b.pool.StopAndWait()
		b.pool = nil
	}
}

// UpdateCamera records the camera for the next UpdateDrawList. The list is
// marked for rebuild when the camera moved or turned past the configured
// thresholds, or when its field of view, aspect or offset changed.
func (b *Builder) UpdateCamera(s graphics.CameraState) {
	b.cam = s
	if !b.built {
		return
	}
	last := b.lastCam
	if s.Position.Sub(last.Position).Len() > b.opts.CameraMoveThreshold*world.BS {
		b.dirty = true
	}
	cosTurn := float32(math.Cos(float64(mgl32.DegToRad(b.opts.CameraTurnThresholdDeg))))
	if s.Direction.Dot(last.Direction) < cosTurn {
		b.dirty = true
	}
	if s.FOV != last.FOV || s.Aspect != last.Aspect || s.Offset != last.Offset || s.Far != last.Far {
		b.dirty = true
	}
}

// Camera returns the camera state of the last UpdateCamera.
func (b *Builder) Camera() graphics.CameraState { return b.cam }

// CameraBlock returns the block containing the camera.
func (b *Builder) CameraBlock() world.BlockPos {
	return world.FloatToNode(b.cam.Position).Block()
}

// NeedsUpdateDrawList reports whether the list built last no longer matches
// the camera, the settings or the loaded blocks.
func (b *Builder) NeedsUpdateDrawList() bool {
	return !b.built || b.dirty || b.m.ModCount() != b.builtModCount
}

// DrawList returns the main list, farthest block first.
func (b *Builder) DrawList() *DrawList { return b.list }

// KeepList returns blocks that must stay loaded without being drawn.
func (b *Builder) KeepList() map[world.BlockPos]*world.Block { return b.keep }

// ShadowList returns the shadow casters of the last UpdateDrawListShadow,
// ordered by position.
func (b *Builder) ShadowList() *DrawList { return b.shadow }

// Stats returns counters of the last UpdateDrawList.
func (b *Builder) Stats() Stats { return b.stats }

// GetBlocksInViewRange returns the inclusive block range covering rangeNodes
// nodes around cam.
func GetBlocksInViewRange(cam world.NodePos, rangeNodes float32) (min, max world.BlockPos) {
	r := int32(math.Ceil(float64(rangeNodes)))
	lo := world.NodePos{X: cam.X - r, Y: cam.Y - r, Z: cam.Z - r}.Block()
	hi := world.NodePos{X: cam.X + r, Y: cam.Y + r, Z: cam.Z + r}.Block()
	return lo, hi
}

// UpdateDrawList rebuilds the main list and the keep list.
func (b *Builder) UpdateDrawList() {
	defer profiling.Track("drawlist.Update")()
	modCount := b.m.ModCount()
	camNode := world.FloatToNode(b.cam.Position)
	camBlock := camNode.Block()

	b.stats = Stats{}
	b.list.reset()
	clear(b.keep)

	if b.opts.RangeAll {
		b.candidates = append(b.candidates[:0], b.m.AllBlocks()...)
	} else {
		lo, hi := GetBlocksInViewRange(camNode, b.opts.WantedRange)
		b.candidates = b.m.AppendBlocksInRange(lo, hi, b.candidates[:0])
	}
	b.stats.Candidates = len(b.candidates)

	occlusionOn := b.culler.Options().Policy != occlusion.PolicyNone
	if occlusionOn && b.opts.AllowNoclip {
		// A camera inside solid or unknown nodes would see nothing
		if opaque, loaded := b.m.NodeOpaque(camNode); opaque || !loaded {
			occlusionOn = false
			b.stats.Noclip = true
		}
	}

	fr := b.cam.Frustum()
	rangeWorld := b.opts.WantedRange*world.BS + blockRadius
	b.visible = b.visible[:0]
	for _, blk := range b.candidates {
		pos := blk.Pos()
		if blk.Mesh().Empty() {
			b.keep[pos] = blk
			b.stats.NoMesh++
			continue
		}
		center := pos.Center()
		if !b.opts.RangeAll && center.Sub(b.cam.Position).Len() > rangeWorld {
			continue
		}
		lo, hi := pos.Bounds()
		if !fr.IntersectsSphere(center, blockRadius) || !fr.IntersectsAABB(lo, hi) {
			b.keep[pos] = blk
			b.stats.FrustumCulled++
			continue
		}
		b.visible = append(b.visible, blk)
	}

	b.cullOccluded(occlusionOn)
	for i, blk := range b.visible {
		pos := blk.Pos()
		if b.occluded[i] {
			b.keep[pos] = blk
			b.stats.Occluded++
			continue
		}
		b.list.entries = append(b.list.entries, Entry{Pos: pos, Block: blk, DistSq: pos.DistanceSq(camBlock)})
	}
	b.list.finish(farFirst)

	b.stats.Drawn = b.list.Len()
	b.stats.Kept = len(b.keep)
	b.built = true
	b.dirty = false
	b.lastCam = b.cam
	b.builtModCount = modCount
}

// cullOccluded fills b.occluded for b.visible, in parallel when a pool is set.
func (b *Builder) cullOccluded(enabled bool) {
	n := len(b.visible)
	if cap(b.occluded) < n {
		b.occluded = make([]bool, n)
	}
	b.occluded = b.occluded[:n]
	clear(b.occluded)
	if !enabled || n == 0 {
		return
	}
	defer profiling.Track("drawlist.Occlusion")()

	cam := b.cam.Position
	if b.pool == nil || n < parallelThreshold {
		for i, blk := range b.visible {
			b.occluded[i] = b.culler.IsOccluded(blk.Pos(), cam)
		}
		return
	}

	workers := max(b.opts.CullWorkers, 1)
	chunk := (n + workers - 1) / workers
	group := b.pool.NewGroup()
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		group.Submit(func() {
			for i := start; i < end; i++ {
				b.occluded[i] = b.culler.IsOccluded(b.visible[i].Pos(), cam)
			}
		})
	}
	if err := group.Wait(); err != nil {
		b.log.Warn("parallel occlusion failed", zap.Error(err))
	}
}

// ShadowLight describes the caster volume of a directional light: a
// cylinder of Radius around the ray from Position along Direction, reaching
// Radius+Length. Units are world units.
type ShadowLight struct {
	Position  mgl32.Vec3
	Direction mgl32.Vec3
	Radius    float32
	Length    float32
}

// UpdateDrawListShadow rebuilds the shadow list for light. It shares no
// state with the main list.
func (b *Builder) UpdateDrawListShadow(light ShadowLight) {
	defer profiling.Track("drawlist.UpdateShadow")()
	b.shadow.reset()

	dir := light.Direction
	if l := dir.Len(); l > 0 {
		dir = dir.Mul(1 / l)
	}
	lightNode := world.FloatToNode(light.Position)
	lo, hi := GetBlocksInViewRange(lightNode, (light.Radius+light.Length)/world.BS)

	var blocks []*world.Block
	blocks = b.m.AppendBlocksInRange(lo, hi, blocks)
	for _, blk := range blocks {
		if blk.Mesh().Empty() {
			continue
		}
		center := blk.Pos().Center()
		rel := center.Sub(light.Position)
		projection := light.Position.Add(dir.Mul(dir.Dot(rel)))
		if projection.Sub(center).Len() > light.Radius {
			continue
		}
		b.shadow.entries = append(b.shadow.entries, Entry{Pos: blk.Pos(), Block: blk})
	}
	b.shadow.finish(byPosition)
}

// TouchStats counts the blocks kept alive by TouchBlocks.
type TouchStats struct {
	InRange  int
	WithMesh int
}

// TouchBlocks resets the usage timers of every block the lists reference so
// the map does not unload them.
func (b *Builder) TouchBlocks() TouchStats {
	var ts TouchStats
	touch := func(blk *world.Block) {
		blk.ResetUsageTimer()
		ts.InRange++
		if !blk.Mesh().Empty() {
			ts.WithMesh++
		}
	}
	for _, e := range b.list.entries {
		touch(e.Block)
	}
	for _, blk := range b.keep {
		touch(blk)
	}
	for _, e := range b.shadow.entries {
		if !b.list.Contains(e.Pos) {
			if _, kept := b.keep[e.Pos]; !kept {
				touch(e.Block)
			}
		}
	}
	return ts
}

// ResidentSet returns the blocks whose geometry the mesh cache must hold:
// the main list and the shadow list.
func (b *Builder) ResidentSet() meshcache.ResidentSet {
	rs := make(meshcache.ResidentSet, b.list.Len()+b.shadow.Len())
	for _, e := range b.list.entries {
		rs[e.Pos] = e.Block
	}
	for _, e := range b.shadow.entries {
		rs[e.Pos] = e.Block
	}
	return rs
}
