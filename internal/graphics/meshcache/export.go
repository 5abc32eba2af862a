package meshcache

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"voxmap/internal/world"
)

// ExportGLB writes the content of every merged buffer as a binary glTF
// document, one mesh per (material, layer). Paths ending in ".zst" are
// zstd-compressed.
func (c *Cache) ExportGLB(path string) error {
	doc := c.buildDocument()

	var buf bytes.Buffer
	enc := gltf.NewEncoder(&buf)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode glb: %w", err)
	}

	data := buf.Bytes()
	if strings.HasSuffix(path, ".zst") {
		zw, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return fmt.Errorf("zstd writer: %w", err)
		}
		data = zw.EncodeAll(data, nil)
		_ = zw.Close()
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	c.log.Info("merged buffers exported")
	return nil
}

func (c *Cache) buildDocument() *gltf.Document {
	doc := gltf.NewDocument()
	doc.Asset.Generator = "voxmap mesh cache"

	for _, mb := range c.Entries() {
		positions, normals, colors, indices := flatten(mb)
		if len(indices) == 0 {
			continue
		}
		posAccessor := modeler.WritePosition(doc, positions)
		normalAccessor := modeler.WriteNormal(doc, normals)
		colorAccessor := modeler.WriteColor(doc, colors)
		indicesAccessor := modeler.WriteIndices(doc, indices)

		pbr := &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float32{1, 1, 1, 1},
			MetallicFactor:  gltf.Float(0),
			RoughnessFactor: gltf.Float(1),
		}
		material := &gltf.Material{Name: mb.material.Name, PBRMetallicRoughness: pbr, AlphaMode: gltf.AlphaOpaque}
		if mb.Transparent() {
			material.AlphaMode = gltf.AlphaBlend
		}
		doc.Materials = append(doc.Materials, material)

		prim := &gltf.Primitive{
			Attributes: map[string]uint32{
				gltf.POSITION: uint32(posAccessor),
				gltf.NORMAL:   uint32(normalAccessor),
				gltf.COLOR_0:  uint32(colorAccessor),
			},
			Indices:  gltf.Index(uint32(indicesAccessor)),
			Material: gltf.Index(uint32(len(doc.Materials) - 1)),
		}
		m := &gltf.Mesh{
			Name:       fmt.Sprintf("%s/%d", mb.material.Name, mb.key.Layer),
			Primitives: []*gltf.Primitive{prim},
		}
		doc.Meshes = append(doc.Meshes, m)
		node := &gltf.Node{Name: m.Name, Mesh: gltf.Index(uint32(len(doc.Meshes) - 1))}
		doc.Nodes = append(doc.Nodes, node)
		doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(len(doc.Nodes)-1))
	}
	return doc
}

// flatten gathers the world-space geometry of one buffer, blocks in
// positional order.
func flatten(mb *MergedBuffer) (positions, normals [][3]float32, colors [][4]float32, indices []uint32) {
	order := make([]world.BlockPos, 0, len(mb.contribs))
	for p := range mb.contribs {
		order = append(order, p)
	}
	sort.Slice(order, func(i, j int) bool { return order[i].Less(order[j]) })

	for _, pos := range order {
		sub := mb.contribs[pos].sub
		origin := blockOrigin(pos)
		base := uint32(len(positions))
		for _, v := range sub.Vertices {
			p := v.Pos.Add(origin)
			positions = append(positions, [3]float32{p[0], p[1], p[2]})
			normals = append(normals, [3]float32{v.Normal[0], v.Normal[1], v.Normal[2]})
			r, g, b, a := world.UnpackColor(v.Color)
			colors = append(colors, [4]float32{
				float32(r) / 255, float32(g) / 255, float32(b) / 255, float32(a) / 255,
			})
		}
		for _, i := range sub.Indices {
			indices = append(indices, i+base)
		}
	}
	return positions, normals, colors, indices
}
