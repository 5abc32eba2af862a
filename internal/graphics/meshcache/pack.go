package meshcache

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/go-gl/mathgl/mgl32"

	"voxmap/internal/world"
)

// packVertices appends the GPU layout of vs to dst, translating positions by origin.
//
// Layout (36 bytes): position 3xf32, normal 3xf32, color RGBA8, uv 2xf32.
func packVertices(dst []byte, vs []world.Vertex, origin mgl32.Vec3) []byte {
	dst = growBytes(dst, len(vs)*world.VertexBytes)
	le := binary.LittleEndian
	for _, v := range vs {
		p := v.Pos.Add(origin)
		dst = le.AppendUint32(dst, math.Float32bits(p[0]))
		dst = le.AppendUint32(dst, math.Float32bits(p[1]))
		dst = le.AppendUint32(dst, math.Float32bits(p[2]))
		dst = le.AppendUint32(dst, math.Float32bits(v.Normal[0]))
		dst = le.AppendUint32(dst, math.Float32bits(v.Normal[1]))
		dst = le.AppendUint32(dst, math.Float32bits(v.Normal[2]))
		dst = le.AppendUint32(dst, v.Color)
		dst = le.AppendUint32(dst, math.Float32bits(v.UV[0]))
		dst = le.AppendUint32(dst, math.Float32bits(v.UV[1]))
	}
	return dst
}

// packIndices appends indices rebased by base to dst.
func packIndices(dst []byte, idx []uint32, base uint32) []byte {
	dst = growBytes(dst, len(idx)*world.IndexBytes)
	for _, i := range idx {
		dst = binary.LittleEndian.AppendUint32(dst, i+base)
	}
	return dst
}

func growBytes(b []byte, n int) []byte {
	if cap(b)-len(b) >= n {
		return b
	}
	out := make([]byte, len(b), len(b)+n)
	copy(out, b)
	return out
}

// fingerprint hashes packed vertices and raw indices. Two sub-meshes of the
// same block with equal fingerprints upload identical bytes.
// The returned slice is scratch grown to hold the packed indices.
func fingerprint(d *xxhash.Digest, vbytes []byte, idx []uint32, scratch []byte) (uint64, []byte) {
	d.Reset()
	_, _ = d.Write(vbytes)
	scratch = packIndices(scratch[:0], idx, 0)
	_, _ = d.Write(scratch)
	return d.Sum64(), scratch
}

// blockOrigin is the world position of node (0,0,0) of the block.
func blockOrigin(pos world.BlockPos) mgl32.Vec3 {
	return pos.MinNode().World()
}
