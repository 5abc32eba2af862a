package mapnode

import (
	"voxmap/internal/graphics/gfx"
	"voxmap/internal/graphics/meshcache"
	"voxmap/internal/world"
)

// DrawKind tells whether a descriptor covers a whole merged buffer or a run
// of blocks inside one.
type DrawKind uint8

const (
	FullBuffer DrawKind = iota
	PartialRange
)

func (k DrawKind) String() string {
	if k == PartialRange {
		return "partial"
	}
	return "full"
}

// DrawDescriptor is one draw submission. For PartialRange, Pos is the first
// block of the run and the index range covers the following blocks of the
// same buffer that were laid out next to it.
type DrawDescriptor struct {
	Kind          DrawKind
	Pos           world.BlockPos
	Buffer        *meshcache.MergedBuffer
	IndexOffset   int
	IndexCount    int
	ReuseMaterial bool
}

// Partial reports whether the descriptor covers only part of its buffer.
func (d DrawDescriptor) Partial() bool { return d.Kind == PartialRange }

// end is the index after the last one drawn.
func (d DrawDescriptor) end() int { return d.IndexOffset + d.IndexCount }

// call converts the descriptor to a device draw call. Any material other
// than noOverride replaces the buffer's own.
func (d DrawDescriptor) call(override world.MaterialID) gfx.DrawCall {
	mat := d.Buffer.Key().Material
	if override != noOverride {
		mat = override
	}
	return gfx.DrawCall{
		Vertices:      d.Buffer.VertexBuffer(),
		Indices:       d.Buffer.IndexBuffer(),
		IndexOffset:   d.IndexOffset,
		IndexCount:    d.IndexCount,
		Material:      mat,
		Transparent:   d.Buffer.Transparent() && override == noOverride,
		ReuseMaterial: d.ReuseMaterial,
	}
}

// appendRange adds the range [offset, offset+count) of mb to ds, extending
// the last descriptor when the range continues it.
func appendRange(ds []DrawDescriptor, mb *meshcache.MergedBuffer, pos world.BlockPos, offset, count int) []DrawDescriptor {
	if n := len(ds); n > 0 {
		last := &ds[n-1]
		if last.Buffer == mb && last.end() == offset {
			last.IndexCount += count
			return ds
		}
	}
	reuse := false
	if n := len(ds); n > 0 {
		reuse = ds[n-1].Buffer.Key().Material == mb.Key().Material
	}
	return append(ds, DrawDescriptor{
		Kind:          PartialRange,
		Pos:           pos,
		Buffer:        mb,
		IndexOffset:   offset,
		IndexCount:    count,
		ReuseMaterial: reuse,
	})
}
