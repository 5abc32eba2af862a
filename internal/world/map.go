package world

import (
	"sync"

	"voxmap/internal/profiling"
)

// Map manages the storage and retrieval of blocks.
type Map struct {
	defs *NodeDefs

	// Map of blocks indexed by their coordinates
	blocks   map[BlockPos]*Block
	mu       sync.RWMutex
	modCount uint64 // Increases on any block add/remove or remesh notice
}

// NewMap creates an empty map using the given content registry.
func NewMap(defs *NodeDefs) *Map {
	if defs == nil {
		defs = NewNodeDefs()
	}
	return &Map{
		defs:   defs,
		blocks: make(map[BlockPos]*Block),
	}
}

// NodeDefs returns the content registry
func (m *Map) NodeDefs() *NodeDefs {
	return m.defs
}

// GetBlock returns the block at the given position, or nil if it is not loaded.
func (m *Map) GetBlock(pos BlockPos) *Block {
	m.mu.RLock()
	b := m.blocks[pos]
	m.mu.RUnlock()
	return b
}

// EmergeBlock returns the block at pos, creating an empty one if needed.
func (m *Map) EmergeBlock(pos BlockPos) *Block {
	m.mu.RLock()
	b, ok := m.blocks[pos]
	m.mu.RUnlock()
	if ok {
		return b
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// Double-check: another goroutine might have created it while we were waiting for the lock
	if b, ok := m.blocks[pos]; ok {
		return b
	}
	b = NewBlock(pos)
	m.blocks[pos] = b
	m.modCount++
	return b
}

// AddBlock inserts a pre-built block, replacing any block at the same position.
func (m *Map) AddBlock(b *Block) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[b.Pos()] = b
	m.modCount++
}

// RemoveBlock unloads the block at pos. It returns false if nothing was loaded there.
func (m *Map) RemoveBlock(pos BlockPos) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blocks[pos]; !ok {
		return false
	}
	delete(m.blocks, pos)
	m.modCount++
	return true
}

// NotifyMeshUpdated bumps the modification counter so that draw lists built
// from the previous block set are rebuilt.
func (m *Map) NotifyMeshUpdated() {
	m.mu.Lock()
	m.modCount++
	m.mu.Unlock()
}

// ModCount returns the current modification count of the block set.
func (m *Map) ModCount() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.modCount
}

// BlockCount returns the number of loaded blocks
func (m *Map) BlockCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blocks)
}

// AppendBlocksInRange appends all loaded blocks with min <= pos <= max
// (inclusive on every axis) into dst and returns the resulting slice.
func (m *Map) AppendBlocksInRange(min, max BlockPos, dst []*Block) []*Block {
	defer profiling.Track("world.AppendBlocksInRange")()
	m.mu.RLock()
	defer m.mu.RUnlock()

	volume := (int64(max.X) - int64(min.X) + 1) *
		(int64(max.Y) - int64(min.Y) + 1) *
		(int64(max.Z) - int64(min.Z) + 1)
	if volume <= 0 {
		return dst
	}
	// Walking the box only pays off while it is smaller than the loaded set
	if volume > int64(len(m.blocks)) {
		for pos, b := range m.blocks {
			if pos.X >= min.X && pos.X <= max.X &&
				pos.Y >= min.Y && pos.Y <= max.Y &&
				pos.Z >= min.Z && pos.Z <= max.Z {
				dst = append(dst, b)
			}
		}
		return dst
	}
	for x := int32(min.X); x <= int32(max.X); x++ {
		for y := int32(min.Y); y <= int32(max.Y); y++ {
			for z := int32(min.Z); z <= int32(max.Z); z++ {
				if b, ok := m.blocks[BlockPos{int16(x), int16(y), int16(z)}]; ok {
					dst = append(dst, b)
				}
			}
		}
	}
	return dst
}

// GetNode returns the content at world node coordinates and whether the
// containing block is loaded.
func (m *Map) GetNode(p NodePos) (Content, bool) {
	b := m.GetBlock(p.Block())
	if b == nil {
		return ContentAir, false
	}
	x, y, z := p.Local()
	return b.GetNode(x, y, z), true
}

// SetNode sets the content at world node coordinates, creating the block if needed.
func (m *Map) SetNode(p NodePos, c Content) {
	b := m.EmergeBlock(p.Block())
	x, y, z := p.Local()
	b.SetNode(x, y, z, c)

	// Mark neighbour blocks modified if we touched a border node
	mark := func(q NodePos) {
		if nb := m.GetBlock(q.Block()); nb != nil {
			nb.MarkModified()
		}
	}
	if x == 0 {
		mark(NodePos{p.X - 1, p.Y, p.Z})
	} else if x == BlockSize-1 {
		mark(NodePos{p.X + 1, p.Y, p.Z})
	}
	if y == 0 {
		mark(NodePos{p.X, p.Y - 1, p.Z})
	} else if y == BlockSize-1 {
		mark(NodePos{p.X, p.Y + 1, p.Z})
	}
	if z == 0 {
		mark(NodePos{p.X, p.Y, p.Z - 1})
	} else if z == BlockSize-1 {
		mark(NodePos{p.X, p.Y, p.Z + 1})
	}
}

// NodeOpaque reports whether the node blocks line of sight. loaded is false
// when the containing block is not in memory.
func (m *Map) NodeOpaque(p NodePos) (opaque, loaded bool) {
	c, loaded := m.GetNode(p)
	if !loaded {
		return false, false
	}
	return m.defs.Opaque(c), true
}

// EvictFarBlocks removes blocks farther than radius (in blocks) from center.
// Returns number of removed blocks.
func (m *Map) EvictFarBlocks(center BlockPos, radius int) int {
	defer profiling.Track("world.EvictFarBlocks")()
	removed := 0
	r2 := int64(radius) * int64(radius)
	m.mu.Lock()
	for pos := range m.blocks {
		if pos.DistanceSq(center) > r2 {
			delete(m.blocks, pos)
			removed++
		}
	}
	if removed > 0 {
		m.modCount++
	}
	m.mu.Unlock()
	return removed
}

// TimerUpdate advances usage timers and unloads blocks that were not used for
// longer than unloadTimeout seconds. Returns the positions that were unloaded.
func (m *Map) TimerUpdate(dt, unloadTimeout float32) []BlockPos {
	var unloaded []BlockPos
	m.mu.Lock()
	defer m.mu.Unlock()
	for pos, b := range m.blocks {
		if b.incrementUsageTimer(dt) > unloadTimeout {
			delete(m.blocks, pos)
			unloaded = append(unloaded, pos)
		}
	}
	if len(unloaded) > 0 {
		m.modCount++
	}
	return unloaded
}

// AllBlocks returns a snapshot of all loaded blocks.
func (m *Map) AllBlocks() []*Block {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Block, 0, len(m.blocks))
	for _, b := range m.blocks {
		out = append(out, b)
	}
	return out
}
