package meshing

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"voxmap/internal/world"
)

const size = world.BlockSize

// faceShade darkens faces by direction so the block edges stay readable
// without lighting. Indexed by axis, then 0 for +, 1 for -.
var faceShade = [3][2]float32{
	{0.8, 0.8},
	{1.0, 0.5},
	{0.65, 0.65},
}

// alphaTransparent is the vertex alpha of see-through materials.
const alphaTransparent = 160

// BuildBlockMesh greedily meshes the visible faces of b. Faces between two
// nodes are hidden when the neighbour is opaque or of the same content;
// neighbours in unloaded blocks count as air. Geometry is grouped into one
// sub-mesh per material, in material id order. Content without a material
// is not drawn.
func BuildBlockMesh(m *world.Map, b *world.Block) *world.BlockMesh {
	defs := m.NodeDefs()
	base := b.Pos().MinNode()

	// Local copy so the greedy passes do not lock the block per node
	var nodes [world.BlockVolume]world.Content
	empty := true
	for x := range size {
		for y := range size {
			for z := range size {
				c := b.GetNode(x, y, z)
				nodes[(x*size+y)*size+z] = c
				if c != world.ContentAir {
					empty = false
				}
			}
		}
	}
	if empty {
		return &world.BlockMesh{}
	}

	get := func(p [3]int) world.Content {
		if p[0] >= 0 && p[0] < size && p[1] >= 0 && p[1] < size && p[2] >= 0 && p[2] < size {
			return nodes[(p[0]*size+p[1])*size+p[2]]
		}
		c, _ := m.GetNode(world.NodePos{X: base.X + int32(p[0]), Y: base.Y + int32(p[1]), Z: base.Z + int32(p[2])})
		return c
	}

	subs := make(map[*world.Material]*world.SubMesh)
	var mask [size * size]world.Content
	for d := 0; d < 3; d++ {
		u, v := (d+1)%3, (d+2)%3
		for _, sign := range [2]int{1, -1} {
			for layer := 0; layer < size; layer++ {
				// Mask of visible faces on this layer, by content
				for i := 0; i < size; i++ {
					for j := 0; j < size; j++ {
						var p [3]int
						p[d], p[u], p[v] = layer, i, j
						c := nodes[(p[0]*size+p[1])*size+p[2]]
						mask[i*size+j] = world.ContentAir
						if c == world.ContentAir {
							continue
						}
						q := p
						q[d] += sign
						nc := get(q)
						if nc == c || defs.Opaque(nc) {
							continue
						}
						mask[i*size+j] = c
					}
				}
				// Greedy merge (rows along u, runs along v)
				for i := 0; i < size; i++ {
					for j := 0; j < size; {
						c := mask[i*size+j]
						if c == world.ContentAir {
							j++
							continue
						}
						w := 1
						for j+w < size && mask[i*size+j+w] == c {
							w++
						}
						h := 1
					grow:
						for i+h < size {
							for k := j; k < j+w; k++ {
								if mask[(i+h)*size+k] != c {
									break grow
								}
							}
							h++
						}
						for ii := i; ii < i+h; ii++ {
							for k := j; k < j+w; k++ {
								mask[ii*size+k] = world.ContentAir
							}
						}
						if def, ok := defs.Get(c); ok && def.Material != nil {
							sm := subs[def.Material]
							if sm == nil {
								sm = &world.SubMesh{Material: def.Material}
								subs[def.Material] = sm
							}
							emitQuad(sm, d, sign, layer, i, j, h, w)
						}
						j += w
					}
				}
			}
		}
	}

	mesh := &world.BlockMesh{SubMeshes: make([]*world.SubMesh, 0, len(subs))}
	for _, sm := range subs {
		mesh.SubMeshes = append(mesh.SubMeshes, sm)
	}
	sort.Slice(mesh.SubMeshes, func(i, j int) bool {
		return mesh.SubMeshes[i].Material.ID < mesh.SubMeshes[j].Material.ID
	})
	return mesh
}

// emitQuad appends the face of size h x w at (i, j) on layer of axis d.
// Positions are block-local in world units, node centres on integer nodes.
func emitQuad(sm *world.SubMesh, d, sign, layer, i, j, h, w int) {
	u, v := (d+1)%3, (d+2)%3
	plane := float32(layer) + 0.5*float32(sign)
	u0, v0 := float32(i)-0.5, float32(j)-0.5
	u1, v1 := u0+float32(h), v0+float32(w)

	corner := func(cu, cv float32) mgl32.Vec3 {
		var p mgl32.Vec3
		p[d], p[u], p[v] = plane, cu, cv
		return p.Mul(world.BS)
	}
	var normal mgl32.Vec3
	normal[d] = float32(sign)

	shade := faceShade[d][0]
	if sign < 0 {
		shade = faceShade[d][1]
	}
	s := uint8(shade * 255)
	alpha := uint8(255)
	if sm.Material.Transparent {
		alpha = alphaTransparent
	}
	color := world.PackColor(s, s, s, alpha)

	// Counter-clockwise seen from the side the normal points to
	corners := [4]mgl32.Vec3{corner(u0, v0), corner(u1, v0), corner(u1, v1), corner(u0, v1)}
	uvs := [4]mgl32.Vec2{{0, 0}, {float32(h), 0}, {float32(h), float32(w)}, {0, float32(w)}}
	if sign < 0 {
		corners[1], corners[3] = corners[3], corners[1]
		uvs[1], uvs[3] = uvs[3], uvs[1]
	}
	start := uint32(len(sm.Vertices))
	for k := range corners {
		sm.Vertices = append(sm.Vertices, world.Vertex{Pos: corners[k], Normal: normal, Color: color, UV: uvs[k]})
	}
	sm.Indices = append(sm.Indices, start, start+1, start+2, start, start+2, start+3)
}
