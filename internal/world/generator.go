package world

import (
	"math"
)

// Generator fills blocks with a noise heightmap terrain. It is only used to
// give the viewer and benchmarks something to look at.
type Generator struct {
	noise      heightNoise
	scale      float64 // noise cells per node
	baseHeight int
	amp        float64

	Stone Content
	Grass Content
	Water Content
	// Nodes at or below SeaLevel that are above the surface become water
	SeaLevel int
}

// NewGenerator creates a new generator with default settings.
func NewGenerator(seed int64, stone, grass, water Content) *Generator {
	return &Generator{
		noise:      heightNoise{seed: seed, octaves: 4, persistence: 0.5, lacunarity: 2},
		scale:      1.0 / 64.0,
		baseHeight: 8,
		amp:        24,
		Stone:      stone,
		Grass:      grass,
		Water:      water,
		SeaLevel:   10,
	}
}

// HeightAt computes the surface height (node Y) at node X,Z.
func (g *Generator) HeightAt(x, z int32) int32 {
	n := g.noise.at(float64(x)*g.scale, float64(z)*g.scale)
	return int32(math.Floor(float64(g.baseHeight) + n*g.amp))
}

// PopulateBlock fills a block from the heightmap.
func (g *Generator) PopulateBlock(b *Block) {
	base := b.Pos().MinNode()
	for lx := range BlockSize {
		for lz := range BlockSize {
			height := g.HeightAt(base.X+int32(lx), base.Z+int32(lz))
			for ly := range BlockSize {
				y := base.Y + int32(ly)
				switch {
				case y < height:
					b.SetNode(lx, ly, lz, g.Stone)
				case y == height:
					b.SetNode(lx, ly, lz, g.Grass)
				case y <= int32(g.SeaLevel) && g.Water != ContentAir:
					b.SetNode(lx, ly, lz, g.Water)
				}
			}
		}
	}
	b.MarkModified()
}
