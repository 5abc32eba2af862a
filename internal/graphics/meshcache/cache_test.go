package meshcache

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"voxmap/internal/graphics/gfx"
	"voxmap/internal/world"
)

// quad returns a sub-mesh of n quads in the XY plane.
func quad(mat *world.Material, n int) *world.SubMesh {
	sm := &world.SubMesh{Material: mat}
	for q := 0; q < n; q++ {
		base := uint32(len(sm.Vertices))
		z := float32(q)
		for _, p := range [][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}} {
			sm.Vertices = append(sm.Vertices, world.Vertex{
				Pos:    mgl32.Vec3{p[0], p[1], z},
				Normal: mgl32.Vec3{0, 0, 1},
				Color:  world.PackColor(255, 255, 255, 255),
			})
		}
		sm.Indices = append(sm.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return sm
}

func meshedBlock(pos world.BlockPos, subs ...*world.SubMesh) *world.Block {
	b := world.NewBlock(pos)
	b.SetMesh(&world.BlockMesh{SubMeshes: subs})
	return b
}

func subBytes(sm *world.SubMesh) int {
	return len(sm.Vertices)*world.VertexBytes + len(sm.Indices)*world.IndexBytes
}

func newTestCache(dev gfx.Device) *Cache {
	return New(dev, Options{InitialVertices: 64, InitialIndices: 128}, nil)
}

func TestRebuildClearsStaleness(t *testing.T) {
	dev := gfx.NewMemoryDevice()
	c := newTestCache(dev)
	stone := world.NewMaterial(1, "stone", false)

	rs := ResidentSet{}
	for _, p := range []world.BlockPos{{0, 0, 0}, {1, 0, 0}} {
		rs[p] = meshedBlock(p, quad(stone, 2))
	}
	if !c.IsStale(rs) {
		t.Fatal("empty cache should be stale")
	}
	if err := c.Rebuild(rs); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if c.IsStale(rs) {
		t.Error("IsStale after Rebuild with the same set should be false")
	}
	if c.Len() != 1 {
		t.Errorf("entries = %d, want 1", c.Len())
	}
	if dev.UploadedBytes() == 0 {
		t.Error("rebuild uploaded nothing")
	}

	// A second rebuild with nothing changed is free
	dev.Reset()
	if err := c.Rebuild(rs); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if dev.UploadedBytes() != 0 {
		t.Errorf("idle rebuild uploaded %d bytes", dev.UploadedBytes())
	}
}

func TestEvictedBlockFreesExactBytes(t *testing.T) {
	c := newTestCache(gfx.NewMemoryDevice())
	stone := world.NewMaterial(1, "stone", false)
	a := meshedBlock(world.BlockPos{0, 0, 0}, quad(stone, 3))
	evicted := quad(stone, 5)
	b := meshedBlock(world.BlockPos{0, 0, 1}, evicted)

	rs := ResidentSet{a.Pos(): a, b.Pos(): b}
	if err := c.Rebuild(rs); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	before := c.LiveBytes()

	delete(rs, b.Pos())
	if !c.IsStale(rs) {
		t.Fatal("evicted block should make the cache stale")
	}
	if err := c.Rebuild(rs); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if got, want := before-c.LiveBytes(), subBytes(evicted); got != want {
		t.Errorf("live bytes decreased by %d, want %d", got, want)
	}
	if c.LastStats().FreedBytes != subBytes(evicted) {
		t.Errorf("FreedBytes = %d", c.LastStats().FreedBytes)
	}
}

func TestSoleContributorDropsEntry(t *testing.T) {
	c := newTestCache(gfx.NewMemoryDevice())
	stone := world.NewMaterial(1, "stone", false)
	glass := world.NewMaterial(2, "glass", true)

	a := meshedBlock(world.BlockPos{0, 0, 0}, quad(stone, 1))
	b := meshedBlock(world.BlockPos{0, 0, 1}, quad(stone, 1), quad(glass, 1))
	rs := ResidentSet{a.Pos(): a, b.Pos(): b}
	if err := c.Rebuild(rs); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if glass.Refs() != 2 {
		t.Fatalf("glass refs = %d, want registry + entry = 2", glass.Refs())
	}

	delete(rs, b.Pos())
	if err := c.Rebuild(rs); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if _, ok := c.Lookup(glass.ID, 0); ok {
		t.Error("glass entry should be dropped")
	}
	if glass.Refs() != 1 {
		t.Errorf("glass refs = %d, want 1 (registry only)", glass.Refs())
	}
	if stone.Refs() != 2 {
		t.Errorf("stone refs = %d, want 2", stone.Refs())
	}

	c.Close()
	if stone.Refs() != 1 || c.Len() != 0 {
		t.Errorf("after Close: stone refs = %d, entries = %d", stone.Refs(), c.Len())
	}
}

func TestGetOrCreateDropRefCounting(t *testing.T) {
	dev := gfx.NewMemoryDevice()
	c := newTestCache(dev)
	m := world.NewMaterial(7, "leaves", false)

	mb1, err := c.GetOrCreate(m, 1)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	mb2, _ := c.GetOrCreate(m, 1)
	if mb1 != mb2 {
		t.Error("GetOrCreate should return the existing entry")
	}
	if m.Refs() != 2 {
		t.Errorf("refs = %d, want 2", m.Refs())
	}
	if _, ok := c.Lookup(m.ID, 0); ok {
		t.Error("Lookup must not find another layer")
	}
	c.Drop(Key{Material: m.ID, Layer: 1})
	c.Drop(Key{Material: m.ID, Layer: 1})
	if m.Refs() != 1 {
		t.Errorf("refs after drop = %d, want 1", m.Refs())
	}
	if dev.LiveBuffers() != 0 {
		t.Errorf("device buffers leaked: %d", dev.LiveBuffers())
	}
}

func TestIdenticalRemeshSkipsUpload(t *testing.T) {
	dev := gfx.NewMemoryDevice()
	c := newTestCache(dev)
	stone := world.NewMaterial(1, "stone", false)
	a := meshedBlock(world.BlockPos{0, 0, 0}, quad(stone, 2))
	b := meshedBlock(world.BlockPos{1, 0, 0}, quad(stone, 2))
	rs := ResidentSet{a.Pos(): a, b.Pos(): b}
	if err := c.Rebuild(rs); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	dev.Reset()
	a.SetMesh(&world.BlockMesh{SubMeshes: []*world.SubMesh{quad(stone, 2)}})
	if !c.IsStale(rs) {
		t.Fatal("new generation should make the cache stale")
	}
	if err := c.Rebuild(rs); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if dev.UploadedBytes() != 0 {
		t.Errorf("byte-identical remesh uploaded %d bytes", dev.UploadedBytes())
	}

	dev.Reset()
	changed := quad(stone, 3)
	a.SetMesh(&world.BlockMesh{SubMeshes: []*world.SubMesh{changed}})
	if err := c.Rebuild(rs); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if got, want := dev.UploadedBytes(), subBytes(changed); got != want {
		t.Errorf("uploaded %d bytes, want only the changed block's %d", got, want)
	}
	if c.IsStale(rs) {
		t.Error("cache should be fresh after rebuild")
	}
}

func TestClearedMeshRemovesContribution(t *testing.T) {
	c := newTestCache(gfx.NewMemoryDevice())
	stone := world.NewMaterial(1, "stone", false)
	a := meshedBlock(world.BlockPos{0, 0, 0}, quad(stone, 1))
	rs := ResidentSet{a.Pos(): a}
	if err := c.Rebuild(rs); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	a.SetMesh(nil)
	if !c.IsStale(rs) {
		t.Fatal("cleared mesh should be stale")
	}
	if err := c.Rebuild(rs); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if c.Len() != 0 || c.IsStale(rs) {
		t.Errorf("entries = %d stale = %v", c.Len(), c.IsStale(rs))
	}
}

func TestOutOfMemoryPropagates(t *testing.T) {
	dev := gfx.NewMemoryDevice()
	dev.FailNewBuffer = true
	c := newTestCache(dev)
	stone := world.NewMaterial(1, "stone", false)
	a := meshedBlock(world.BlockPos{0, 0, 0}, quad(stone, 1))
	rs := ResidentSet{a.Pos(): a}

	err := c.Rebuild(rs)
	if !errors.Is(err, gfx.ErrOutOfMemory) {
		t.Fatalf("Rebuild err = %v, want ErrOutOfMemory", err)
	}
	if !c.IsStale(rs) {
		t.Error("failed rebuild must leave the cache stale")
	}
	if stone.Refs() != 1 {
		t.Errorf("failed create leaked a material share: refs = %d", stone.Refs())
	}

	dev.FailNewBuffer = false
	if err := c.Rebuild(rs); err != nil {
		t.Fatalf("retry Rebuild: %v", err)
	}
	if c.IsStale(rs) {
		t.Error("successful retry should clear staleness")
	}
}

func TestGrowFailurePropagates(t *testing.T) {
	dev := gfx.NewMemoryDevice()
	dev.MaxBufferSize = 64 * world.VertexBytes
	c := newTestCache(dev)
	stone := world.NewMaterial(1, "stone", false)
	a := meshedBlock(world.BlockPos{0, 0, 0}, quad(stone, 40))
	if err := c.Rebuild(ResidentSet{a.Pos(): a}); !errors.Is(err, gfx.ErrOutOfMemory) {
		t.Errorf("Rebuild err = %v, want ErrOutOfMemory", err)
	}
}

func readVertexPos(buf []byte, vertex int) mgl32.Vec3 {
	off := vertex * world.VertexBytes
	var p mgl32.Vec3
	for i := range p {
		p[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[off+4*i:]))
	}
	return p
}

func TestUploadedLayout(t *testing.T) {
	c := New(gfx.NewMemoryDevice(), Options{InitialVertices: 4, InitialIndices: 6}, nil)
	stone := world.NewMaterial(1, "stone", false)
	a := meshedBlock(world.BlockPos{0, 0, 0}, quad(stone, 1))
	b := meshedBlock(world.BlockPos{0, 1, 0}, quad(stone, 1))
	if err := c.Rebuild(ResidentSet{a.Pos(): a, b.Pos(): b}); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	mb, ok := c.Lookup(stone.ID, 0)
	if !ok {
		t.Fatal("missing entry")
	}
	if c.LastStats().BuffersGrown == 0 {
		t.Error("second block should have grown the buffers")
	}
	vb := mb.VertexBuffer().(*gfx.MemoryBuffer).Bytes()
	ib := mb.IndexBuffer().(*gfx.MemoryBuffer).Bytes()

	// Positions are translated into world space
	origin := b.Pos().MinNode().World()
	got := readVertexPos(vb, 4+2)
	if want := origin.Add(mgl32.Vec3{1, 1, 0}); !got.ApproxEqual(want) {
		t.Errorf("vertex pos = %v, want %v", got, want)
	}
	// Content of the first block survived the grow
	if got := readVertexPos(vb, 2); !got.ApproxEqual(mgl32.Vec3{1, 1, 0}) {
		t.Errorf("first block vertex = %v", got)
	}

	// Indices of the second block point at its own vertices
	off, count, ok := mb.IndexRange(b.Pos())
	if !ok || count != 6 {
		t.Fatalf("IndexRange = %d,%d,%v", off, count, ok)
	}
	for i := 0; i < count; i++ {
		idx := binary.LittleEndian.Uint32(ib[(off+i)*world.IndexBytes:])
		if idx < 4 || idx > 7 {
			t.Errorf("index %d = %d, want within [4,7]", i, idx)
		}
	}
}

func TestDuplicateKeysAreMerged(t *testing.T) {
	c := newTestCache(gfx.NewMemoryDevice())
	stone := world.NewMaterial(1, "stone", false)
	a := meshedBlock(world.BlockPos{}, quad(stone, 1), quad(stone, 2))
	if err := c.Rebuild(ResidentSet{a.Pos(): a}); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	mb, _ := c.Lookup(stone.ID, 0)
	if mb.Contributors() != 1 || mb.IndexCount() != 18 || mb.VertexCount() != 12 {
		t.Errorf("contributors=%d indices=%d vertices=%d", mb.Contributors(), mb.IndexCount(), mb.VertexCount())
	}
}

func TestReplacedBlockObjectIsRebuilt(t *testing.T) {
	c := newTestCache(gfx.NewMemoryDevice())
	stone := world.NewMaterial(1, "stone", false)
	pos := world.BlockPos{2, 0, 0}
	rs := ResidentSet{pos: meshedBlock(pos, quad(stone, 1))}
	if err := c.Rebuild(rs); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	// A reloaded block restarts its generation count
	rs[pos] = meshedBlock(pos, quad(stone, 4))
	if !c.IsStale(rs) {
		t.Fatal("new block object must be stale")
	}
	if err := c.Rebuild(rs); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	mb, _ := c.Lookup(stone.ID, 0)
	if mb.IndexCount() != 24 {
		t.Errorf("index count = %d, want 24", mb.IndexCount())
	}
}

func BenchmarkRebuildOneChanged(b *testing.B) {
	c := New(gfx.NewMemoryDevice(), Options{InitialVertices: 1 << 12, InitialIndices: 1 << 13}, nil)
	stone := world.NewMaterial(1, "stone", false)
	rs := ResidentSet{}
	for x := int16(0); x < 16; x++ {
		for z := int16(0); z < 16; z++ {
			p := world.BlockPos{X: x, Z: z}
			rs[p] = meshedBlock(p, quad(stone, 8))
		}
	}
	if err := c.Rebuild(rs); err != nil {
		b.Fatal(err)
	}
	hot := rs[world.BlockPos{}]
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hot.SetMesh(&world.BlockMesh{SubMeshes: []*world.SubMesh{quad(stone, 1+i%8)}})
		if err := c.Rebuild(rs); err != nil {
			b.Fatal(err)
		}
	}
}
