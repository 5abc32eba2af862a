package world

import (
	"math"
	"sync"
	"sync/atomic"
)

// BlockVolume is the number of nodes in a block
const BlockVolume = BlockSize * BlockSize * BlockSize

// Block represents a 16x16x16 cube of nodes
type Block struct {
	pos BlockPos

	mu    sync.RWMutex
	nodes []Content // nil while the block is all air

	modified atomic.Bool

	mesh       atomic.Pointer[BlockMesh]
	generation atomic.Uint64

	usage atomic.Uint32 // seconds since last use, float32 bits
}

// NewBlock creates an empty block at the given block coordinates
func NewBlock(pos BlockPos) *Block {
	b := &Block{pos: pos}
	b.modified.Store(true)
	return b
}

// Pos returns the block coordinates
func (b *Block) Pos() BlockPos {
	return b.pos
}

func indexInBlock(x, y, z int) int {
	return x*BlockSize*BlockSize + y*BlockSize + z
}

func inBlock(x, y, z int) bool {
	return x >= 0 && x < BlockSize && y >= 0 && y < BlockSize && z >= 0 && z < BlockSize
}

// GetNode returns the content at local coordinates
func (b *Block) GetNode(x, y, z int) Content {
	if !inBlock(x, y, z) {
		return ContentAir
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.nodes == nil {
		return ContentAir
	}
	return b.nodes[indexInBlock(x, y, z)]
}

// SetNode sets the content at local coordinates
func (b *Block) SetNode(x, y, z int, c Content) {
	if !inBlock(x, y, z) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.nodes == nil {
		if c == ContentAir {
			return
		}
		b.nodes = make([]Content, BlockVolume)
	}
	idx := indexInBlock(x, y, z)
	if b.nodes[idx] != c {
		b.nodes[idx] = c
		b.modified.Store(true)
	}
}

// IsModified returns whether the nodes changed since the last mesh build
func (b *Block) IsModified() bool {
	return b.modified.Load()
}

// SetClean marks the block as meshed
func (b *Block) SetClean() {
	b.modified.Store(false)
}

// MarkModified forces a remesh, e.g. when a neighbour border changed
func (b *Block) MarkModified() {
	b.modified.Store(true)
}

// Mesh returns the current mesh snapshot, or nil if none was published yet.
// The snapshot stays valid for as long as the caller holds it.
func (b *Block) Mesh() *BlockMesh {
	return b.mesh.Load()
}

// SetMesh publishes a new mesh snapshot. The mesh is stamped with the next
// generation of this block; a nil mesh clears the block's geometry.
func (b *Block) SetMesh(m *BlockMesh) {
	gen := b.generation.Add(1)
	if m != nil {
		m.Generation = gen
	}
	b.mesh.Store(m)
}

// Generation returns the generation of the last published mesh.
func (b *Block) Generation() uint64 {
	return b.generation.Load()
}

// ResetUsageTimer marks the block as used this frame
func (b *Block) ResetUsageTimer() {
	b.usage.Store(0)
}

// UsageTimer returns seconds since the block was last used
func (b *Block) UsageTimer() float32 {
	return math.Float32frombits(b.usage.Load())
}

func (b *Block) incrementUsageTimer(dt float32) float32 {
	for {
		old := b.usage.Load()
		next := math.Float32frombits(old) + dt
		if b.usage.CompareAndSwap(old, math.Float32bits(next)) {
			return next
		}
	}
}
