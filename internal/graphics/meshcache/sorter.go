package meshcache

import (
	"fmt"
	"slices"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"voxmap/internal/profiling"
	"voxmap/internal/world"
)

// Resort lays out the index ranges of transparent buffers back to front as
// seen from cameraPos. Blocks farther than sortDistance nodes keep a
// positional order ahead of the sorted ones. Vertex data is never touched.
//
// A buffer is only re-sorted when the camera entered another block, the
// sort distance changed or blocks were added or removed since the last sort.
// It returns the number of buffers whose indices were re-uploaded.
func (c *Cache) Resort(cameraPos mgl32.Vec3, sortDistance int) (int, error) {
	defer profiling.Track("meshcache.Resort")()
	camBlock := world.FloatToNode(cameraPos).Block()
	limit := int64(sortDistance) * int64(sortDistance)

	resorted := 0
	for _, mb := range c.Entries() {
		if !mb.Transparent() || len(mb.contribs) == 0 {
			continue
		}
		if mb.sorted && mb.sortedFor == camBlock && mb.sortedDist == sortDistance && mb.sortedVersion == mb.version {
			continue
		}

		current := mb.Positions()
		order := slices.Clone(current)
		sort.Slice(order, func(i, j int) bool {
			return backToFront(order[i], order[j], camBlock, limit)
		})

		mb.sorted = true
		mb.sortedFor = camBlock
		mb.sortedDist = sortDistance
		mb.sortedVersion = mb.version
		if slices.Equal(order, current) && !hasGaps(mb) {
			continue
		}

		mb.ialloc.Reset()
		for _, pos := range order {
			ct := mb.contribs[pos]
			var grew bool
			ct.indices, grew = mb.ialloc.Allocate(len(ct.sub.Indices))
			mb.indexGrew = mb.indexGrew || grew
			mb.queueIndices(ct)
		}
		n, _, err := mb.flush()
		if err != nil {
			mb.sorted = false
			return resorted, fmt.Errorf("resort %s: %w", mb.key, err)
		}
		profiling.Count("meshcache.sortBytes", int64(n))
		resorted++
	}
	return resorted, nil
}

// backToFront orders a before b: blocks beyond the sort distance first in
// positional order, then the rest farthest first. Equal distances put the
// greater position first, as the draw list does.
func backToFront(a, b, cam world.BlockPos, limitNodesSq int64) bool {
	da, db := a.DistanceSq(cam), b.DistanceSq(cam)
	const bs2 = world.BlockSize * world.BlockSize
	farA, farB := da*bs2 > limitNodesSq, db*bs2 > limitNodesSq
	if farA != farB {
		return farA
	}
	if farA {
		return a.Less(b)
	}
	if da == db {
		return b.Less(a)
	}
	return da > db
}

// hasGaps reports whether the live index ranges do not start at 0 back to back.
func hasGaps(mb *MergedBuffer) bool {
	free := mb.ialloc.FreeRanges()
	if len(free) == 0 {
		return false
	}
	return len(free) > 1 || free[0].End() != mb.ialloc.Capacity()
}
