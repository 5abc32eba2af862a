package meshcache

import (
	"fmt"
	"sort"

	"voxmap/internal/graphics/gfx"
	"voxmap/internal/graphics/suballoc"
	"voxmap/internal/world"
)

// Key identifies a merged buffer.
type Key struct {
	Material world.MaterialID
	Layer    uint8
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d", k.Material, k.Layer)
}

// Less orders keys by material, then layer.
func (k Key) Less(o Key) bool {
	if k.Material != o.Material {
		return k.Material < o.Material
	}
	return k.Layer < o.Layer
}

// contribution is the part of a merged buffer occupied by one block.
type contribution struct {
	pos         world.BlockPos
	sub         *world.SubMesh
	fingerprint uint64
	vertices    suballoc.Allocation
	indices     suballoc.Allocation
}

type pendingWrite struct {
	offset int // bytes
	data   []byte
}

// MergedBuffer holds the geometry of every resident block for one
// (material, layer) key in one vertex and one index buffer.
type MergedBuffer struct {
	key      Key
	material *world.Material

	vb, ib         gfx.Buffer
	valloc, ialloc *suballoc.Allocator

	contribs map[world.BlockPos]*contribution

	vertexGrew, indexGrew bool
	vertexWrites          []pendingWrite
	indexWrites           []pendingWrite

	// version increases whenever the index layout changes
	version uint64
	// state of the last transparent sort
	sortedFor     world.BlockPos
	sortedDist    int
	sortedVersion uint64
	sorted        bool
}

// Key returns the (material, layer) pair of the buffer.
func (mb *MergedBuffer) Key() Key { return mb.key }

// Material returns the shared material handle held by the entry.
func (mb *MergedBuffer) Material() *world.Material { return mb.material }

// Transparent reports whether the buffer needs back-to-front ordering.
func (mb *MergedBuffer) Transparent() bool { return mb.material.Transparent }

// VertexBuffer returns the device vertex buffer.
func (mb *MergedBuffer) VertexBuffer() gfx.Buffer { return mb.vb }

// IndexBuffer returns the device index buffer.
func (mb *MergedBuffer) IndexBuffer() gfx.Buffer { return mb.ib }

// Contributors returns the number of blocks stored in the buffer.
func (mb *MergedBuffer) Contributors() int { return len(mb.contribs) }

// Has reports whether the block at pos contributes to the buffer.
func (mb *MergedBuffer) Has(pos world.BlockPos) bool {
	_, ok := mb.contribs[pos]
	return ok
}

// IndexRange returns the index range of the block at pos, in elements.
func (mb *MergedBuffer) IndexRange(pos world.BlockPos) (offset, count int, ok bool) {
	c, ok := mb.contribs[pos]
	if !ok {
		return 0, 0, false
	}
	return c.indices.Offset, c.indices.Size, true
}

// IndexCount is the number of live indices in the buffer.
func (mb *MergedBuffer) IndexCount() int { return mb.ialloc.Used() }

// Packed reports whether the live indices fill [0, IndexCount()) with no
// free range in between, so the buffer can be drawn in one call.
func (mb *MergedBuffer) Packed() bool { return !hasGaps(mb) }

// VertexCount is the number of live vertices in the buffer.
func (mb *MergedBuffer) VertexCount() int { return mb.valloc.Used() }

// UsedBytes is the number of live bytes across both buffers.
func (mb *MergedBuffer) UsedBytes() int {
	return mb.valloc.Used()*world.VertexBytes + mb.ialloc.Used()*world.IndexBytes
}

// CapacityBytes is the allocated size of both buffers.
func (mb *MergedBuffer) CapacityBytes() int {
	return mb.valloc.Capacity()*world.VertexBytes + mb.ialloc.Capacity()*world.IndexBytes
}

// Positions returns the contributing blocks ordered by index offset.
func (mb *MergedBuffer) Positions() []world.BlockPos {
	out := make([]world.BlockPos, 0, len(mb.contribs))
	for p := range mb.contribs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return mb.contribs[out[i]].indices.Offset < mb.contribs[out[j]].indices.Offset
	})
	return out
}

// add allocates ranges for sub and queues its upload. Vertex positions are
// moved into world space using origin.
func (mb *MergedBuffer) add(pos world.BlockPos, sub *world.SubMesh, fp uint64, vbytes []byte) {
	c := &contribution{pos: pos, sub: sub, fingerprint: fp}
	var grew bool
	c.vertices, grew = mb.valloc.Allocate(len(sub.Vertices))
	mb.vertexGrew = mb.vertexGrew || grew
	c.indices, grew = mb.ialloc.Allocate(len(sub.Indices))
	mb.indexGrew = mb.indexGrew || grew

	mb.vertexWrites = append(mb.vertexWrites, pendingWrite{
		offset: c.vertices.Offset * world.VertexBytes,
		data:   vbytes,
	})
	mb.queueIndices(c)
	mb.contribs[pos] = c
	mb.version++
}

// remove frees the ranges of the block at pos. It returns the freed bytes.
func (mb *MergedBuffer) remove(pos world.BlockPos) int {
	c, ok := mb.contribs[pos]
	if !ok {
		return 0
	}
	mb.valloc.Free(c.vertices)
	mb.ialloc.Free(c.indices)
	delete(mb.contribs, pos)
	mb.version++
	return c.vertices.Size*world.VertexBytes + c.indices.Size*world.IndexBytes
}

func (mb *MergedBuffer) queueIndices(c *contribution) {
	mb.indexWrites = append(mb.indexWrites, pendingWrite{
		offset: c.indices.Offset * world.IndexBytes,
		data:   packIndices(nil, c.sub.Indices, uint32(c.vertices.Offset)),
	})
}

func (mb *MergedBuffer) pending() bool {
	return mb.vertexGrew || mb.indexGrew || len(mb.vertexWrites) > 0 || len(mb.indexWrites) > 0
}

// flush resizes the device buffers if an allocator grew and uploads the
// queued writes, merging contiguous ones into a single upload.
func (mb *MergedBuffer) flush() (uploaded int, grew bool, err error) {
	if mb.vertexGrew {
		if err := mb.vb.Resize(mb.valloc.Capacity() * world.VertexBytes); err != nil {
			return 0, false, fmt.Errorf("grow vertex buffer %s: %w", mb.key, err)
		}
		mb.vertexGrew = false
		grew = true
	}
	if mb.indexGrew {
		if err := mb.ib.Resize(mb.ialloc.Capacity() * world.IndexBytes); err != nil {
			return 0, false, fmt.Errorf("grow index buffer %s: %w", mb.key, err)
		}
		mb.indexGrew = false
		grew = true
	}
	n, err := uploadCoalesced(mb.vb, mb.vertexWrites)
	if err != nil {
		return 0, grew, fmt.Errorf("upload vertices %s: %w", mb.key, err)
	}
	uploaded += n
	n, err = uploadCoalesced(mb.ib, mb.indexWrites)
	if err != nil {
		return 0, grew, fmt.Errorf("upload indices %s: %w", mb.key, err)
	}
	uploaded += n
	mb.vertexWrites = mb.vertexWrites[:0]
	mb.indexWrites = mb.indexWrites[:0]
	return uploaded, grew, nil
}

func (mb *MergedBuffer) release() {
	mb.vb.Release()
	mb.ib.Release()
	mb.contribs = nil
	mb.vertexWrites = nil
	mb.indexWrites = nil
}

// uploadCoalesced sorts writes by offset and uploads each contiguous run once.
func uploadCoalesced(buf gfx.Buffer, writes []pendingWrite) (int, error) {
	if len(writes) == 0 {
		return 0, nil
	}
	sort.SliceStable(writes, func(i, j int) bool { return writes[i].offset < writes[j].offset })
	total := 0
	start := 0
	for start < len(writes) {
		end := start + 1
		runEnd := writes[start].offset + len(writes[start].data)
		for end < len(writes) && writes[end].offset == runEnd {
			runEnd += len(writes[end].data)
			end++
		}
		data := writes[start].data
		if end-start > 1 {
			data = make([]byte, 0, runEnd-writes[start].offset)
			for _, w := range writes[start:end] {
				data = append(data, w.data...)
			}
		}
		if err := buf.Upload(writes[start].offset, data); err != nil {
			return total, err
		}
		total += len(data)
		start = end
	}
	return total, nil
}
