package world

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func newTestMap() (*Map, Content) {
	defs := NewNodeDefs()
	stone := Content(1)
	defs.Register(stone, NodeDef{Name: "stone", Opaque: true})
	defs.Register(2, NodeDef{Name: "glass"})
	return NewMap(defs), stone
}

func TestNodeToBlockNegative(t *testing.T) {
	cases := []struct {
		node NodePos
		want BlockPos
	}{
		{NodePos{0, 0, 0}, BlockPos{0, 0, 0}},
		{NodePos{15, 15, 15}, BlockPos{0, 0, 0}},
		{NodePos{16, 0, 0}, BlockPos{1, 0, 0}},
		{NodePos{-1, 0, 0}, BlockPos{-1, 0, 0}},
		{NodePos{-16, -17, 0}, BlockPos{-1, -2, 0}},
	}
	for _, c := range cases {
		if got := c.node.Block(); got != c.want {
			t.Errorf("%v.Block() = %v, want %v", c.node, got, c.want)
		}
	}
	x, y, z := NodePos{-1, -16, 17}.Local()
	if x != 15 || y != 0 || z != 1 {
		t.Errorf("Local() = %d,%d,%d, want 15,0,1", x, y, z)
	}
}

func TestFloatToNode(t *testing.T) {
	if got := FloatToNode(mgl32.Vec3{0, 0, 0}); got != (NodePos{0, 0, 0}) {
		t.Errorf("origin: got %v", got)
	}
	// Node centres sit on multiples of BS, so +-BS/2 is the boundary
	if got := FloatToNode(mgl32.Vec3{BS*0.5 + 0.01, -BS*0.5 - 0.01, BS * 3}); got != (NodePos{1, -1, 3}) {
		t.Errorf("boundaries: got %v", got)
	}
}

func TestBlockPosOrdering(t *testing.T) {
	a := BlockPos{0, 0, 1}
	b := BlockPos{0, 1, 0}
	if !a.Less(b) || b.Less(a) {
		t.Errorf("expected %v < %v", a, b)
	}
	if a.Compare(a) != 0 || a.Compare(b) != -1 || b.Compare(a) != 1 {
		t.Errorf("Compare inconsistent with Less")
	}
	if d := (BlockPos{0, 0, 0}).DistanceSq(BlockPos{1, -2, 2}); d != 9 {
		t.Errorf("DistanceSq = %d, want 9", d)
	}
}

func TestAppendBlocksInRangeInclusive(t *testing.T) {
	m, _ := newTestMap()
	for x := int16(-2); x <= 2; x++ {
		m.EmergeBlock(BlockPos{x, 0, 0})
	}
	got := m.AppendBlocksInRange(BlockPos{-1, 0, 0}, BlockPos{1, 0, 0}, nil)
	if len(got) != 3 {
		t.Fatalf("got %d blocks, want 3", len(got))
	}
	// Huge box takes the full-scan path
	got = m.AppendBlocksInRange(BlockPos{-1000, -1000, -1000}, BlockPos{1000, 1000, 1000}, got[:0])
	if len(got) != 5 {
		t.Fatalf("full scan: got %d blocks, want 5", len(got))
	}
}

func TestNodeOpaque(t *testing.T) {
	m, stone := newTestMap()
	if _, loaded := m.NodeOpaque(NodePos{0, 0, 0}); loaded {
		t.Fatalf("expected unloaded node")
	}
	m.SetNode(NodePos{1, 2, 3}, stone)
	m.SetNode(NodePos{1, 2, 4}, 2)
	if opaque, loaded := m.NodeOpaque(NodePos{1, 2, 3}); !opaque || !loaded {
		t.Errorf("stone: opaque=%v loaded=%v", opaque, loaded)
	}
	if opaque, _ := m.NodeOpaque(NodePos{1, 2, 4}); opaque {
		t.Errorf("glass should not be opaque")
	}
	if opaque, loaded := m.NodeOpaque(NodePos{0, 0, 0}); opaque || !loaded {
		t.Errorf("air: opaque=%v loaded=%v", opaque, loaded)
	}
}

func TestSetNodeMarksNeighbour(t *testing.T) {
	m, stone := newTestMap()
	nb := m.EmergeBlock(BlockPos{-1, 0, 0})
	nb.SetClean()
	m.SetNode(NodePos{0, 5, 5}, stone)
	if !nb.IsModified() {
		t.Errorf("neighbour across -X border should be marked modified")
	}
}

func TestModCountAndRemove(t *testing.T) {
	m, _ := newTestMap()
	before := m.ModCount()
	m.EmergeBlock(BlockPos{1, 1, 1})
	if m.ModCount() == before {
		t.Fatalf("emerge should bump modcount")
	}
	before = m.ModCount()
	if !m.RemoveBlock(BlockPos{1, 1, 1}) {
		t.Fatalf("expected removal")
	}
	if m.ModCount() == before {
		t.Errorf("remove should bump modcount")
	}
	if m.RemoveBlock(BlockPos{1, 1, 1}) {
		t.Errorf("second removal should report false")
	}
}

func TestTimerUpdateKeepsTouchedBlocks(t *testing.T) {
	m, _ := newTestMap()
	used := m.EmergeBlock(BlockPos{0, 0, 0})
	m.EmergeBlock(BlockPos{5, 0, 0})

	m.TimerUpdate(1, 1.5)
	used.ResetUsageTimer()
	unloaded := m.TimerUpdate(1, 1.5)

	if len(unloaded) != 1 || unloaded[0] != (BlockPos{5, 0, 0}) {
		t.Fatalf("unloaded = %v, want [{5 0 0}]", unloaded)
	}
	if m.GetBlock(BlockPos{0, 0, 0}) == nil {
		t.Errorf("touched block was unloaded")
	}
}

func TestEvictFarBlocks(t *testing.T) {
	m, _ := newTestMap()
	m.EmergeBlock(BlockPos{0, 0, 0})
	m.EmergeBlock(BlockPos{3, 0, 0})
	m.EmergeBlock(BlockPos{0, 0, -4})
	if n := m.EvictFarBlocks(BlockPos{0, 0, 0}, 3); n != 1 {
		t.Fatalf("evicted %d, want 1", n)
	}
	if m.BlockCount() != 2 {
		t.Errorf("block count %d, want 2", m.BlockCount())
	}
}
