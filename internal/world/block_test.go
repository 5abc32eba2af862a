package world

import "testing"

func TestSetMeshStampsGeneration(t *testing.T) {
	b := NewBlock(BlockPos{})
	if b.Mesh() != nil {
		t.Fatalf("new block should have no mesh")
	}
	m1 := &BlockMesh{}
	b.SetMesh(m1)
	old := b.Mesh()
	m2 := &BlockMesh{}
	b.SetMesh(m2)

	if old != m1 || old.Generation != 1 {
		t.Errorf("first snapshot: got gen %d", old.Generation)
	}
	if b.Mesh() != m2 || m2.Generation != 2 || b.Generation() != 2 {
		t.Errorf("second snapshot: got gen %d", m2.Generation)
	}
	b.SetMesh(nil)
	if b.Mesh() != nil || b.Generation() != 3 {
		t.Errorf("clearing the mesh should publish nil and advance generation")
	}
}

func TestSetNodeAirOnEmptyBlockStaysEmpty(t *testing.T) {
	b := NewBlock(BlockPos{})
	b.SetClean()
	b.SetNode(1, 1, 1, ContentAir)
	if b.IsModified() {
		t.Errorf("writing air into an empty block should not mark it modified")
	}
	b.SetNode(1, 1, 1, 4)
	if !b.IsModified() || b.GetNode(1, 1, 1) != 4 {
		t.Errorf("expected node 4 and modified block")
	}
	if b.GetNode(-1, 0, 0) != ContentAir {
		t.Errorf("out of range read should return air")
	}
}

func TestMaterialShares(t *testing.T) {
	m := NewMaterial(1, "stone", false)
	m.Acquire()
	if m.Refs() != 2 {
		t.Fatalf("refs = %d, want 2", m.Refs())
	}
	m.Release()
	m.Release()
	if m.Refs() != 0 {
		t.Fatalf("refs = %d, want 0", m.Refs())
	}
	defer func() {
		if recover() == nil {
			t.Errorf("over-release should panic")
		}
	}()
	m.Release()
}

func TestBlockMeshEmpty(t *testing.T) {
	var nilMesh *BlockMesh
	if !nilMesh.Empty() {
		t.Errorf("nil mesh should be empty")
	}
	m := &BlockMesh{SubMeshes: []*SubMesh{nil, {Indices: nil}}}
	if !m.Empty() {
		t.Errorf("mesh without indices should be empty")
	}
	m.SubMeshes = append(m.SubMeshes, &SubMesh{Indices: []uint32{0, 1, 2}})
	if m.Empty() {
		t.Errorf("mesh with a triangle should not be empty")
	}
}
