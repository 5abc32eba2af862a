// Package meshcache merges per-block sub-meshes into a few large device
// buffers, one pair per (material, layer), and keeps them in sync with the
// set of resident blocks.
package meshcache

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"voxmap/internal/graphics/gfx"
	"voxmap/internal/graphics/suballoc"
	"voxmap/internal/logger"
	"voxmap/internal/profiling"
	"voxmap/internal/world"
)

// ResidentSet is the set of blocks whose geometry must be in the buffers.
type ResidentSet map[world.BlockPos]*world.Block

// Options sizes new merged buffers, in vertices and indices.
type Options struct {
	InitialVertices int
	InitialIndices  int
}

// Stats describes the work done by the last Rebuild.
type Stats struct {
	BlocksUpdated  int
	BlocksRemoved  int
	UploadedBytes  int
	FreedBytes     int
	BuffersGrown   int
	EntriesCreated int
	EntriesDropped int
}

// blockState records what the buffers hold for one resident block.
type blockState struct {
	block  *world.Block
	gen    uint64
	keys   []Key
	synced bool
}

// Cache owns the merged buffers. It is used from the render thread only.
type Cache struct {
	dev  gfx.Device
	opts Options
	log  *zap.Logger

	entries map[Key]*MergedBuffer
	blocks  map[world.BlockPos]*blockState

	digest  *xxhash.Digest
	scratch []byte
	stats   Stats
}

// New creates an empty cache drawing buffers from dev.
func New(dev gfx.Device, opts Options, log *zap.Logger) *Cache {
	opts.InitialVertices = max(opts.InitialVertices, 1)
	opts.InitialIndices = max(opts.InitialIndices, 1)
	return &Cache{
		dev:     dev,
		opts:    opts,
		log:     logger.OrNop(log),
		entries: make(map[Key]*MergedBuffer),
		blocks:  make(map[world.BlockPos]*blockState),
		digest:  xxhash.New(),
	}
}

func meshGeneration(m *world.BlockMesh) uint64 {
	if m == nil {
		return 0
	}
	return m.Generation
}

// GetOrCreate returns the entry for (mat, layer), creating it and taking a
// share of mat if needed.
func (c *Cache) GetOrCreate(mat *world.Material, layer uint8) (*MergedBuffer, error) {
	key := Key{Material: mat.ID, Layer: layer}
	if mb, ok := c.entries[key]; ok {
		return mb, nil
	}
	vb, err := c.dev.NewBuffer(gfx.VertexBuffer, c.opts.InitialVertices*world.VertexBytes)
	if err != nil {
		return nil, fmt.Errorf("merged buffer %s: %w", key, err)
	}
	ib, err := c.dev.NewBuffer(gfx.IndexBuffer, c.opts.InitialIndices*world.IndexBytes)
	if err != nil {
		vb.Release()
		return nil, fmt.Errorf("merged buffer %s: %w", key, err)
	}
	mb := &MergedBuffer{
		key:      key,
		material: mat.Acquire(),
		vb:       vb,
		ib:       ib,
		valloc:   suballoc.New(c.opts.InitialVertices),
		ialloc:   suballoc.New(c.opts.InitialIndices),
		contribs: make(map[world.BlockPos]*contribution),
	}
	c.entries[key] = mb
	c.stats.EntriesCreated++
	c.log.Debug("merged buffer created", zap.Stringer("key", key), zap.String("material", mat.Name))
	return mb, nil
}

// Lookup returns the entry for (id, layer) without creating it.
func (c *Cache) Lookup(id world.MaterialID, layer uint8) (*MergedBuffer, bool) {
	mb, ok := c.entries[Key{Material: id, Layer: layer}]
	return mb, ok
}

// Drop releases the entry for key and its material share. Blocks that still
// contributed to it lose that geometry until their mesh changes.
func (c *Cache) Drop(key Key) {
	mb, ok := c.entries[key]
	if !ok {
		return
	}
	for pos := range mb.contribs {
		if s := c.blocks[pos]; s != nil {
			s.keys = removeKey(s.keys, key)
			s.synced = false
		}
	}
	mb.release()
	mb.material.Release()
	delete(c.entries, key)
	c.stats.EntriesDropped++
	c.log.Debug("merged buffer dropped", zap.Stringer("key", key))
}

// Len returns the number of entries.
func (c *Cache) Len() int { return len(c.entries) }

// Entries returns the entries ordered by key.
func (c *Cache) Entries() []*MergedBuffer {
	out := make([]*MergedBuffer, 0, len(c.entries))
	for _, mb := range c.entries {
		out = append(out, mb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key.Less(out[j].key) })
	return out
}

// LiveBytes sums UsedBytes over all entries.
func (c *Cache) LiveBytes() int {
	n := 0
	for _, mb := range c.entries {
		n += mb.UsedBytes()
	}
	return n
}

// LastStats returns counters of the last Rebuild.
func (c *Cache) LastStats() Stats { return c.stats }

// IsStale reports whether the buffers differ from what rs requires: a block
// was added or removed, or a resident block published a new mesh.
func (c *Cache) IsStale(rs ResidentSet) bool {
	if len(rs) != len(c.blocks) {
		return true
	}
	for pos, b := range rs {
		s, ok := c.blocks[pos]
		if !ok || !s.synced || s.block != b || s.gen != meshGeneration(b.Mesh()) {
			return true
		}
	}
	return false
}

type pendingAdd struct {
	pos    world.BlockPos
	sub    *world.SubMesh
	fp     uint64
	vbytes []byte
}

// Rebuild brings the buffers in line with rs. All frees happen before any
// allocation and each touched buffer is uploaded once at the end.
func (c *Cache) Rebuild(rs ResidentSet) error {
	defer profiling.Track("meshcache.Rebuild")()
	c.stats = Stats{}

	// Blocks that left the set, or were replaced by another block object
	for pos, s := range c.blocks {
		if b, ok := rs[pos]; ok && b == s.block {
			continue
		}
		for _, k := range s.keys {
			c.stats.FreedBytes += c.entries[k].remove(pos)
		}
		delete(c.blocks, pos)
		c.stats.BlocksRemoved++
	}

	positions := make([]world.BlockPos, 0, len(rs))
	for pos := range rs {
		positions = append(positions, pos)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Less(positions[j]) })

	var adds []pendingAdd
	var updated []*blockState
	for _, pos := range positions {
		b := rs[pos]
		mesh := b.Mesh() // snapshot, valid for this whole rebuild
		gen := meshGeneration(mesh)
		s, ok := c.blocks[pos]
		if ok && s.synced && s.gen == gen {
			continue
		}
		if !ok {
			s = &blockState{block: b}
			c.blocks[pos] = s
		}
		s.gen = gen
		s.synced = false
		updated = append(updated, s)

		wanted := groupSubMeshes(mesh)
		origin := blockOrigin(pos)
		kept := s.keys[:0]
		for _, k := range s.keys {
			mb := c.entries[k]
			sub, want := wanted[k]
			if want {
				vbytes := packVertices(nil, sub.Vertices, origin)
				var fp uint64
				fp, c.scratch = fingerprint(c.digest, vbytes, sub.Indices, c.scratch)
				old := mb.contribs[pos]
				if old.fingerprint == fp {
					// Same bytes at the same place, nothing to upload
					old.sub = sub
					kept = append(kept, k)
					delete(wanted, k)
					continue
				}
			}
			c.stats.FreedBytes += mb.remove(pos)
		}
		s.keys = kept

		for _, sub := range sortedSubMeshes(wanted) {
			vbytes := packVertices(nil, sub.Vertices, origin)
			var fp uint64
			fp, c.scratch = fingerprint(c.digest, vbytes, sub.Indices, c.scratch)
			adds = append(adds, pendingAdd{
				pos:    pos,
				sub:    sub,
				fp:     fp,
				vbytes: vbytes,
			})
		}
	}

	for _, a := range adds {
		mb, err := c.GetOrCreate(a.sub.Material, a.sub.Layer)
		if err != nil {
			return fmt.Errorf("rebuild block %v: %w", a.pos, err)
		}
		mb.add(a.pos, a.sub, a.fp, a.vbytes)
		s := c.blocks[a.pos]
		s.keys = append(s.keys, mb.key)
	}
	for _, s := range updated {
		sort.Slice(s.keys, func(i, j int) bool { return s.keys[i].Less(s.keys[j]) })
		s.synced = true
	}
	c.stats.BlocksUpdated = len(updated)

	if err := c.flush(); err != nil {
		for _, s := range updated {
			s.synced = false
		}
		return err
	}

	for _, mb := range c.Entries() {
		if len(mb.contribs) == 0 {
			c.Drop(mb.key)
		}
	}

	profiling.Count("meshcache.uploadBytes", int64(c.stats.UploadedBytes))
	if c.stats.BlocksUpdated > 0 || c.stats.BlocksRemoved > 0 {
		c.log.Debug("rebuild",
			zap.Int("updated", c.stats.BlocksUpdated),
			zap.Int("removed", c.stats.BlocksRemoved),
			zap.Int("uploaded", c.stats.UploadedBytes),
			zap.Int("freed", c.stats.FreedBytes),
			zap.Int("entries", len(c.entries)))
	}
	return nil
}

// flush uploads pending writes of every entry in key order.
func (c *Cache) flush() error {
	for _, mb := range c.Entries() {
		if !mb.pending() {
			continue
		}
		n, grew, err := mb.flush()
		if grew {
			c.stats.BuffersGrown++
			c.log.Debug("merged buffer grew",
				zap.Stringer("key", mb.key),
				zap.Int("capacity", mb.CapacityBytes()),
				zap.Int("used", mb.UsedBytes()))
		}
		if err != nil {
			return err
		}
		c.stats.UploadedBytes += n
	}
	return nil
}

// Close drops every entry.
func (c *Cache) Close() {
	for _, mb := range c.Entries() {
		c.Drop(mb.key)
	}
	clear(c.blocks)
}

// groupSubMeshes maps sub-meshes with geometry by key. Sub-meshes sharing a
// key are concatenated so a block occupies each buffer at most once.
func groupSubMeshes(m *world.BlockMesh) map[Key]*world.SubMesh {
	out := make(map[Key]*world.SubMesh)
	if m == nil {
		return out
	}
	for _, sm := range m.SubMeshes {
		if sm == nil || sm.Material == nil || len(sm.Indices) == 0 {
			continue
		}
		k := Key{Material: sm.Material.ID, Layer: sm.Layer}
		prev, dup := out[k]
		if !dup {
			out[k] = sm
			continue
		}
		merged := &world.SubMesh{
			Material: prev.Material,
			Layer:    prev.Layer,
			Vertices: append(append([]world.Vertex(nil), prev.Vertices...), sm.Vertices...),
			Indices:  append([]uint32(nil), prev.Indices...),
		}
		base := uint32(len(prev.Vertices))
		for _, i := range sm.Indices {
			merged.Indices = append(merged.Indices, i+base)
		}
		out[k] = merged
	}
	return out
}

func sortedSubMeshes(m map[Key]*world.SubMesh) []*world.SubMesh {
	keys := make([]Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	out := make([]*world.SubMesh, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return out
}

func removeKey(keys []Key, k Key) []Key {
	for i, x := range keys {
		if x == k {
			return append(keys[:i], keys[i+1:]...)
		}
	}
	return keys
}
