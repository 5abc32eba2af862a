// Package physics casts rays through the node grid.
package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"voxmap/internal/world"
)

// DefaultStep is the marching step in world units, a fifth of a node.
const DefaultStep = world.BS / 5

// NodeSource answers whether a node blocks sight. loaded is false for nodes
// of blocks that are not in memory.
type NodeSource interface {
	NodeOpaque(p world.NodePos) (opaque, loaded bool)
}

// Box is an inclusive range of nodes.
type Box struct {
	Min, Max world.NodePos
}

// Contains reports whether p lies in the box.
func (b Box) Contains(p world.NodePos) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Ray describes a query. Start and Dir are in world units; Dir must be
// normalised. Opaque nodes inside Ignore, or equal to the start node, never
// count as hits. Unloaded nodes are treated as transparent.
type Ray struct {
	Start   mgl32.Vec3
	Dir     mgl32.Vec3
	MinDist float32
	MaxDist float32
	Ignore  Box
}

// RaycastResult stores the result of a raycast operation
type RaycastResult struct {
	Node     world.NodePos // first opaque node
	Previous world.NodePos // last node visited before Node
	Distance float32
	Hit      bool
}

func (r *Ray) counts(p, start world.NodePos) bool {
	return p != start && !r.Ignore.Contains(p)
}

// March walks the ray in fixed steps of step world units. It may miss nodes
// that the ray only clips at a corner.
func March(r Ray, step float32, src NodeSource) RaycastResult {
	if step <= 0 {
		step = DefaultStep
	}
	steps := int(r.MaxDist / step)
	start := world.FloatToNode(r.Start)
	last := start
	for i := 0; i <= steps; i++ {
		dist := float32(i) * step
		if dist < r.MinDist {
			continue
		}
		p := world.FloatToNode(r.Start.Add(r.Dir.Mul(dist)))
		if p == last && i > 0 {
			continue
		}
		if r.counts(p, start) {
			if opaque, _ := src.NodeOpaque(p); opaque {
				return RaycastResult{Node: p, Previous: last, Distance: dist, Hit: true}
			}
		}
		last = p
	}
	return RaycastResult{Previous: last}
}

// Traverse visits every node the ray passes through, in order, using a
// grid traversal. It is exact where March is approximate.
func Traverse(r Ray, src NodeSource) RaycastResult {
	start := world.FloatToNode(r.Start)
	p := start
	// Node n spans [(n-0.5)*BS, (n+0.5)*BS) on each axis
	var step [3]int32
	var tMax, tDelta [3]float32
	for a := 0; a < 3; a++ {
		d := r.Dir[a]
		n := float32(nodeCoord(p, a))
		switch {
		case d > 0:
			step[a] = 1
			tMax[a] = ((n+0.5)*world.BS - r.Start[a]) / d
			tDelta[a] = world.BS / d
		case d < 0:
			step[a] = -1
			tMax[a] = ((n-0.5)*world.BS - r.Start[a]) / d
			tDelta[a] = -world.BS / d
		default:
			tMax[a] = float32(math.Inf(1))
			tDelta[a] = float32(math.Inf(1))
		}
	}

	last := p
	t := float32(0)
	for t <= r.MaxDist {
		if t >= r.MinDist && r.counts(p, start) {
			if opaque, _ := src.NodeOpaque(p); opaque {
				return RaycastResult{Node: p, Previous: last, Distance: t, Hit: true}
			}
		}
		last = p
		a := 0
		if tMax[1] < tMax[a] {
			a = 1
		}
		if tMax[2] < tMax[a] {
			a = 2
		}
		t = tMax[a]
		tMax[a] += tDelta[a]
		switch a {
		case 0:
			p.X += step[0]
		case 1:
			p.Y += step[1]
		default:
			p.Z += step[2]
		}
	}
	return RaycastResult{Previous: last}
}

func nodeCoord(p world.NodePos, axis int) int32 {
	switch axis {
	case 0:
		return p.X
	case 1:
		return p.Y
	}
	return p.Z
}
