package world

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Vertex is the vertex layout produced by the mesher. Positions are
// block-local, in world units.
type Vertex struct {
	Pos    mgl32.Vec3
	Normal mgl32.Vec3
	Color  uint32
	UV     mgl32.Vec2
}

// VertexBytes is the packed size of a Vertex on the GPU
const VertexBytes = 4*3 + 4*3 + 4 + 4*2

// IndexBytes is the size of one index on the GPU
const IndexBytes = 4

// MaxTileLayers bounds the number of layers a block mesh may use.
const MaxTileLayers = 2

// SubMesh holds geometry of one block for one (material, layer) pair.
// It is immutable once published.
type SubMesh struct {
	Material *Material
	Layer    uint8
	Vertices []Vertex
	Indices  []uint32
}

// BlockMesh is an immutable snapshot of a block's geometry.
type BlockMesh struct {
	Generation uint64
	SubMeshes  []*SubMesh
}

// Empty reports whether the mesh has any triangles.
func (m *BlockMesh) Empty() bool {
	if m == nil {
		return true
	}
	for _, sm := range m.SubMeshes {
		if sm != nil && len(sm.Indices) > 0 {
			return false
		}
	}
	return true
}

// PackColor packs an RGBA8 color with red in the lowest byte, matching the
// byte order the GPU reads it in.
func PackColor(r, g, b, a uint8) uint32 {
	return uint32(r) | uint32(g)<<8 | uint32(b)<<16 | uint32(a)<<24
}

// UnpackColor is the inverse of PackColor.
func UnpackColor(c uint32) (r, g, b, a uint8) {
	return uint8(c), uint8(c >> 8), uint8(c >> 16), uint8(c >> 24)
}
