package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	// BlockSize is the edge length of a block in nodes
	BlockSize = 16
	// BS is the size of one node in world units
	BS = 10.0
)

// BlockPos addresses a block on the block grid.
type BlockPos struct {
	X, Y, Z int16
}

// NodePos addresses a single node on the node grid.
type NodePos struct {
	X, Y, Z int32
}

// Less orders positions lexicographically by X, then Y, then Z.
func (p BlockPos) Less(o BlockPos) bool {
	if p.X != o.X {
		return p.X < o.X
	}
	if p.Y != o.Y {
		return p.Y < o.Y
	}
	return p.Z < o.Z
}

// Compare returns -1, 0 or +1 following Less.
func (p BlockPos) Compare(o BlockPos) int {
	switch {
	case p.Less(o):
		return -1
	case o.Less(p):
		return 1
	}
	return 0
}

// DistanceSq is the squared grid distance between two block positions.
func (p BlockPos) DistanceSq(o BlockPos) int64 {
	dx := int64(p.X) - int64(o.X)
	dy := int64(p.Y) - int64(o.Y)
	dz := int64(p.Z) - int64(o.Z)
	return dx*dx + dy*dy + dz*dz
}

// MinNode returns the node with the smallest coordinates inside the block.
func (p BlockPos) MinNode() NodePos {
	return NodePos{
		X: int32(p.X) * BlockSize,
		Y: int32(p.Y) * BlockSize,
		Z: int32(p.Z) * BlockSize,
	}
}

// Center returns the block centre in world units.
func (p BlockPos) Center() mgl32.Vec3 {
	half := float32(BlockSize) / 2
	return mgl32.Vec3{
		(float32(p.X)*BlockSize + half - 0.5) * BS,
		(float32(p.Y)*BlockSize + half - 0.5) * BS,
		(float32(p.Z)*BlockSize + half - 0.5) * BS,
	}
}

// Bounds returns the world-space AABB of the block. Node centres sit on
// integer node coordinates so the box starts half a node below the first one.
func (p BlockPos) Bounds() (min, max mgl32.Vec3) {
	n := p.MinNode()
	min = mgl32.Vec3{
		(float32(n.X) - 0.5) * BS,
		(float32(n.Y) - 0.5) * BS,
		(float32(n.Z) - 0.5) * BS,
	}
	size := float32(BlockSize) * BS
	max = min.Add(mgl32.Vec3{size, size, size})
	return min, max
}

// Block returns the block containing the node.
func (n NodePos) Block() BlockPos {
	return BlockPos{
		X: int16(floorDiv(n.X, BlockSize)),
		Y: int16(floorDiv(n.Y, BlockSize)),
		Z: int16(floorDiv(n.Z, BlockSize)),
	}
}

// Local returns the node coordinates relative to its block.
func (n NodePos) Local() (x, y, z int) {
	return int(mod(n.X, BlockSize)), int(mod(n.Y, BlockSize)), int(mod(n.Z, BlockSize))
}

// World returns the node centre in world units.
func (n NodePos) World() mgl32.Vec3 {
	return mgl32.Vec3{float32(n.X) * BS, float32(n.Y) * BS, float32(n.Z) * BS}
}

// FloatToNode converts a world-space position to the node that contains it.
func FloatToNode(v mgl32.Vec3) NodePos {
	return NodePos{
		X: int32(math.Floor(float64(v.X()/BS) + 0.5)),
		Y: int32(math.Floor(float64(v.Y()/BS) + 0.5)),
		Z: int32(math.Floor(float64(v.Z()/BS) + 0.5)),
	}
}

// ClampBlockCoord saturates a block coordinate to the int16 grid.
func ClampBlockCoord(v int32) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

func floorDiv(a, b int32) int32 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func mod(a, b int32) int32 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
