package meshcache

import (
	"testing"

	"voxmap/internal/graphics/gfx"
	"voxmap/internal/world"
)

func offsetsInOrder(t *testing.T, mb *MergedBuffer, want []world.BlockPos) {
	t.Helper()
	got := mb.Positions()
	if len(got) != len(want) {
		t.Fatalf("positions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index order = %v, want %v", got, want)
		}
	}
}

func transparentScene(t *testing.T) (*Cache, *gfx.MemoryDevice, *world.Material, *world.Material) {
	t.Helper()
	dev := gfx.NewMemoryDevice()
	c := newTestCache(dev)
	stone := world.NewMaterial(1, "stone", false)
	water := world.NewMaterial(2, "water", true)
	rs := ResidentSet{}
	for z := int16(0); z < 3; z++ {
		p := world.BlockPos{Z: z}
		rs[p] = meshedBlock(p, quad(stone, 1), quad(water, 1))
	}
	if err := c.Rebuild(rs); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	return c, dev, stone, water
}

func TestResortBackToFront(t *testing.T) {
	c, dev, stone, water := transparentScene(t)
	mb, _ := c.Lookup(water.ID, 0)
	solid, _ := c.Lookup(stone.ID, 0)
	solidOrder := solid.Positions()

	dev.Reset()
	n, err := c.Resort(world.BlockPos{}.Center(), 1000)
	if err != nil {
		t.Fatalf("Resort: %v", err)
	}
	if n != 1 {
		t.Errorf("resorted %d buffers, want 1", n)
	}
	offsetsInOrder(t, mb, []world.BlockPos{{Z: 2}, {Z: 1}, {Z: 0}})

	for _, u := range dev.Uploads() {
		if u.Buffer != mb.IndexBuffer() {
			t.Errorf("resort uploaded to a %s buffer other than the transparent index buffer", u.Buffer.Kind())
		}
	}
	offsetsInOrder(t, solid, solidOrder)

	// Unchanged camera: no work
	dev.Reset()
	n, err = c.Resort(world.BlockPos{}.Center(), 1000)
	if err != nil || n != 0 || dev.UploadedBytes() != 0 {
		t.Errorf("second Resort: n=%d err=%v uploaded=%d", n, err, dev.UploadedBytes())
	}
	offsetsInOrder(t, mb, []world.BlockPos{{Z: 2}, {Z: 1}, {Z: 0}})

	// Camera moves past the far end
	n, err = c.Resort(world.BlockPos{Z: 3}.Center(), 1000)
	if err != nil || n != 1 {
		t.Fatalf("Resort after move: n=%d err=%v", n, err)
	}
	offsetsInOrder(t, mb, []world.BlockPos{{Z: 0}, {Z: 1}, {Z: 2}})
}

func TestResortEqualDistanceGreaterPositionFirst(t *testing.T) {
	c := newTestCache(gfx.NewMemoryDevice())
	water := world.NewMaterial(2, "water", true)
	rs := ResidentSet{}
	for _, p := range []world.BlockPos{{X: -1}, {X: 1}, {Z: 2}} {
		rs[p] = meshedBlock(p, quad(water, 1))
	}
	if err := c.Rebuild(rs); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	mb, _ := c.Lookup(water.ID, 0)
	if _, err := c.Resort(world.BlockPos{}.Center(), 1000); err != nil {
		t.Fatalf("Resort: %v", err)
	}
	offsetsInOrder(t, mb, []world.BlockPos{{Z: 2}, {X: 1}, {X: -1}})
}

func TestResortFarBlocksKeepPositionalOrder(t *testing.T) {
	c, _, _, water := transparentScene(t)
	mb, _ := c.Lookup(water.ID, 0)

	// Camera in block z=3 sorting only within one block (16 nodes):
	// z=2 is near, z=0 and z=1 are far and go first in positional order.
	if _, err := c.Resort(world.BlockPos{Z: 3}.Center(), 16); err != nil {
		t.Fatalf("Resort: %v", err)
	}
	offsetsInOrder(t, mb, []world.BlockPos{{Z: 0}, {Z: 1}, {Z: 2}})

	if _, err := c.Resort(world.BlockPos{Z: -1}.Center(), 16); err != nil {
		t.Fatalf("Resort: %v", err)
	}
	// z=0 is near and drawn last, z=1 and z=2 are far
	offsetsInOrder(t, mb, []world.BlockPos{{Z: 1}, {Z: 2}, {Z: 0}})
}

func TestResortAfterRebuildKeepsIndicesValid(t *testing.T) {
	c, _, _, water := transparentScene(t)
	mb, _ := c.Lookup(water.ID, 0)
	if _, err := c.Resort(world.BlockPos{}.Center(), 1000); err != nil {
		t.Fatalf("Resort: %v", err)
	}
	before := mb.IndexCount()

	// Another block joins: the layout is sorted again even with a still camera
	rs := ResidentSet{}
	for p, s := range c.blocks {
		rs[p] = s.block
	}
	nb := meshedBlock(world.BlockPos{Z: 5}, quad(water, 1))
	rs[nb.Pos()] = nb
	if err := c.Rebuild(rs); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	n, err := c.Resort(world.BlockPos{}.Center(), 1000)
	if err != nil || n != 1 {
		t.Fatalf("Resort: n=%d err=%v", n, err)
	}
	if mb.IndexCount() != before+6 {
		t.Errorf("index count = %d, want %d", mb.IndexCount(), before+6)
	}
	offsetsInOrder(t, mb, []world.BlockPos{{Z: 5}, {Z: 2}, {Z: 1}, {Z: 0}})
}
