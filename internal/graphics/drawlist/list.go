package drawlist

import (
	"sort"

	"voxmap/internal/world"
)

// Entry is one block of a draw list.
type Entry struct {
	Pos    world.BlockPos
	Block  *world.Block
	DistSq int64 // squared block distance to the camera block
}

// farFirst orders a before b: larger distance first, then greater position.
func farFirst(a, b Entry) bool {
	if a.DistSq != b.DistSq {
		return a.DistSq > b.DistSq
	}
	return b.Pos.Less(a.Pos)
}

// DrawList is an ordered set of blocks keyed by position.
type DrawList struct {
	entries []Entry
	index   map[world.BlockPos]int
}

func newDrawList() *DrawList {
	return &DrawList{index: make(map[world.BlockPos]int)}
}

// Len returns the number of blocks.
func (l *DrawList) Len() int { return len(l.entries) }

// Entries returns the blocks in draw order. The slice must not be modified.
func (l *DrawList) Entries() []Entry { return l.entries }

// Contains reports whether a block at pos is in the list.
func (l *DrawList) Contains(pos world.BlockPos) bool {
	_, ok := l.index[pos]
	return ok
}

// Get returns the block at pos.
func (l *DrawList) Get(pos world.BlockPos) (*world.Block, bool) {
	i, ok := l.index[pos]
	if !ok {
		return nil, false
	}
	return l.entries[i].Block, true
}

// Positions returns the positions in draw order.
func (l *DrawList) Positions() []world.BlockPos {
	out := make([]world.BlockPos, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.Pos
	}
	return out
}

func (l *DrawList) reset() {
	l.entries = l.entries[:0]
	clear(l.index)
}

// finish sorts entries with less and rebuilds the index.
func (l *DrawList) finish(less func(a, b Entry) bool) {
	sort.Slice(l.entries, func(i, j int) bool { return less(l.entries[i], l.entries[j]) })
	for i, e := range l.entries {
		l.index[e.Pos] = i
	}
}

func byPosition(a, b Entry) bool { return a.Pos.Less(b.Pos) }
