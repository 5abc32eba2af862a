package occlusion

import (
	"fmt"
	"testing"

	"voxmap/internal/config"
	"voxmap/internal/world"
)

const stone world.Content = 1

func newMap() *world.Map {
	defs := world.NewNodeDefs()
	defs.Register(stone, world.NodeDef{Name: "stone", Opaque: true})
	return world.NewMap(defs)
}

// wall fills the plane z with stone, leaving out the nodes in hole.
func wall(m *world.Map, z int32, hole map[[2]int32]bool) {
	for x := int32(-40); x <= 56; x++ {
		for y := int32(-40); y <= 56; y++ {
			if !hole[[2]int32{x, y}] {
				m.SetNode(world.NodePos{X: x, Y: y, Z: z}, stone)
			}
		}
	}
}

func allOptions() []Options {
	var out []Options
	for _, layout := range []Layout{LayoutCorners, LayoutFaces} {
		for _, rt := range []bool{false, true} {
			out = append(out, Options{Policy: PolicySampling, Layout: layout, Raytraced: rt})
		}
	}
	return out
}

func name(o Options) string {
	return fmt.Sprintf("layout=%d/raytraced=%v", o.Layout, o.Raytraced)
}

var (
	target = world.BlockPos{Z: 1}
	camera = world.NodePos{X: 8, Y: 8, Z: -8}.World()
)

func TestClearLineOfSightIsVisible(t *testing.T) {
	m := newMap()
	m.EmergeBlock(target)
	// Scattered geometry that does not cover the block
	m.SetNode(world.NodePos{X: 40, Y: 8, Z: 0}, stone)
	m.SetNode(world.NodePos{X: 8, Y: -30, Z: 0}, stone)

	for _, o := range allOptions() {
		t.Run(name(o), func(t *testing.T) {
			c := New(m, o)
			if c.IsOccluded(target, camera) {
				t.Error("block with an empty line of sight reported occluded")
			}
		})
	}
}

func TestWallOccludes(t *testing.T) {
	m := newMap()
	m.EmergeBlock(target)
	wall(m, -2, nil)

	for _, o := range allOptions() {
		t.Run(name(o), func(t *testing.T) {
			if !New(m, o).IsOccluded(target, camera) {
				t.Error("block behind a solid wall should be occluded")
			}
		})
	}
}

func TestHoleInWallKeepsVisible(t *testing.T) {
	m := newMap()
	m.EmergeBlock(target)
	hole := map[[2]int32]bool{}
	for x := int32(7); x <= 9; x++ {
		for y := int32(7); y <= 9; y++ {
			hole[[2]int32{x, y}] = true
		}
	}
	wall(m, -2, hole)

	for _, o := range allOptions() {
		t.Run(name(o), func(t *testing.T) {
			if New(m, o).IsOccluded(target, camera) {
				t.Error("block seen through a hole reported occluded")
			}
		})
	}
}

func TestOwnNodesDoNotOcclude(t *testing.T) {
	m := newMap()
	// The whole target block is solid; its own nodes must not hide it
	for x := int32(0); x < world.BlockSize; x++ {
		for y := int32(0); y < world.BlockSize; y++ {
			for z := int32(16); z < 32; z++ {
				m.SetNode(world.NodePos{X: x, Y: y, Z: z}, stone)
			}
		}
	}
	for _, o := range allOptions() {
		if New(m, o).IsOccluded(target, camera) {
			t.Errorf("%s: block hidden by its own nodes", name(o))
		}
	}
}

func TestCameraInsideBlockAndPolicyNone(t *testing.T) {
	m := newMap()
	wall(m, -2, nil)
	c := New(m, Options{Policy: PolicySampling})
	inside := world.NodePos{X: 4, Y: 4, Z: 20}.World()
	if c.IsOccluded(target, inside) {
		t.Error("block containing the camera must be visible")
	}
	if New(m, Options{Policy: PolicyNone}).IsOccluded(target, camera) {
		t.Error("PolicyNone must never occlude")
	}
}

func TestOptionsFrom(t *testing.T) {
	o := config.DefaultRenderOptions()
	o.OcclusionCuller = config.CullerNone
	o.OcclusionSamples = config.SamplesFaces
	o.EnableRaytracedCulling = true
	got := OptionsFrom(o)
	if got.Policy != PolicyNone || got.Layout != LayoutFaces || !got.Raytraced {
		t.Errorf("OptionsFrom = %+v", got)
	}
}

func TestIsOccludedDoesNotAllocate(t *testing.T) {
	m := newMap()
	m.EmergeBlock(target)
	wall(m, -2, nil)
	for _, o := range allOptions() {
		c := New(m, o)
		allocs := testing.AllocsPerRun(20, func() { c.IsOccluded(target, camera) })
		if allocs != 0 {
			t.Errorf("%s: %v allocations per call", name(o), allocs)
		}
	}
}

func BenchmarkIsOccluded(b *testing.B) {
	m := newMap()
	m.EmergeBlock(target)
	wall(m, -2, nil)
	c := New(m, Options{Policy: PolicySampling, Raytraced: true})
	for i := 0; i < b.N; i++ {
		c.IsOccluded(target, camera)
	}
}
