// Package occlusion decides whether a block is hidden behind opaque nodes.
package occlusion

import (
	"github.com/go-gl/mathgl/mgl32"

	"voxmap/internal/config"
	"voxmap/internal/physics"
	"voxmap/internal/world"
)

// Policy selects how blocks are tested.
type Policy uint8

const (
	// PolicyNone never reports a block as occluded.
	PolicyNone Policy = iota
	// PolicySampling casts rays at sample points inside the block.
	PolicySampling
)

// Layout selects the sample points of PolicySampling.
type Layout uint8

const (
	// LayoutCorners samples the block centre and its eight corner nodes.
	LayoutCorners Layout = iota
	// LayoutFaces samples the block centre and the centres of the faces turned
	// towards the camera.
	LayoutFaces
)

const maxSamples = 9

// Options configure a Culler.
type Options struct {
	Policy    Policy
	Layout    Layout
	Raytraced bool    // exact grid traversal instead of fixed steps
	Step      float32 // marching step in world units
}

// OptionsFrom maps render settings to culler options.
func OptionsFrom(o config.RenderOptions) Options {
	opts := Options{Policy: PolicySampling, Raytraced: o.EnableRaytracedCulling, Step: physics.DefaultStep}
	if o.OcclusionCuller == config.CullerNone {
		opts.Policy = PolicyNone
	}
	if o.OcclusionSamples == config.SamplesFaces {
		opts.Layout = LayoutFaces
	}
	return opts
}

// Culler tests blocks against the nodes of src. It holds no mutable state and
// may be shared between goroutines as long as src can.
type Culler struct {
	src  physics.NodeSource
	opts Options
}

// New creates a culler over src.
func New(src physics.NodeSource, opts Options) *Culler {
	if opts.Step <= 0 {
		opts.Step = physics.DefaultStep
	}
	return &Culler{src: src, opts: opts}
}

// Options returns the culler configuration.
func (c *Culler) Options() Options { return c.opts }

// IsOccluded reports whether the block at pos is hidden from camera. It
// errs towards visible: the block counts as hidden only when every sample
// ray is blocked by an opaque node outside the block. Unloaded nodes do not
// block sight.
func (c *Culler) IsOccluded(pos world.BlockPos, camera mgl32.Vec3) bool {
	if c.opts.Policy == PolicyNone {
		return false
	}
	if world.FloatToNode(camera).Block() == pos {
		return false
	}

	var samples [maxSamples]mgl32.Vec3
	n := c.samplePoints(pos, camera, &samples)

	minNode := pos.MinNode()
	ignore := physics.Box{
		Min: minNode,
		Max: world.NodePos{X: minNode.X + world.BlockSize - 1, Y: minNode.Y + world.BlockSize - 1, Z: minNode.Z + world.BlockSize - 1},
	}
	for i := 0; i < n; i++ {
		if !c.rayBlocked(camera, samples[i], ignore) {
			return false
		}
	}
	return true
}

func (c *Culler) rayBlocked(from, to mgl32.Vec3, ignore physics.Box) bool {
	d := to.Sub(from)
	dist := d.Len()
	if dist == 0 {
		return false
	}
	ray := physics.Ray{Start: from, Dir: d.Mul(1 / dist), MaxDist: dist, Ignore: ignore}
	var res physics.RaycastResult
	if c.opts.Raytraced {
		res = physics.Traverse(ray, c.src)
	} else {
		res = physics.March(ray, c.opts.Step, c.src)
	}
	return res.Hit
}

// samplePoints fills out with world positions to test and returns how many.
func (c *Culler) samplePoints(pos world.BlockPos, camera mgl32.Vec3, out *[maxSamples]mgl32.Vec3) int {
	center := pos.Center()
	out[0] = center
	lo := pos.MinNode().World()
	hi := lo.Add(mgl32.Vec3{1, 1, 1}.Mul((world.BlockSize - 1) * world.BS))

	if c.opts.Layout == LayoutCorners {
		i := 1
		for _, x := range [2]float32{lo[0], hi[0]} {
			for _, y := range [2]float32{lo[1], hi[1]} {
				for _, z := range [2]float32{lo[2], hi[2]} {
					out[i] = mgl32.Vec3{x, y, z}
					i++
				}
			}
		}
		return i
	}

	n := 1
	for a := 0; a < 3; a++ {
		face := center
		switch {
		case camera[a] > hi[a]:
			face[a] = hi[a]
		case camera[a] < lo[a]:
			face[a] = lo[a]
		default:
			continue
		}
		out[n] = face
		n++
	}
	return n
}
