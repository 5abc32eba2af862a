package graphics

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"voxmap/internal/graphics/frustum"
	"voxmap/internal/world"
)

// offsetStep is how far, in nodes, the camera may travel before the render
// offset snaps to its position.
const offsetStep = 200

// CameraState is what the draw list consumes from the camera each frame.
type CameraState struct {
	Position  mgl32.Vec3 // world units
	Direction mgl32.Vec3 // normalised
	FOV       float32    // vertical, radians
	Aspect    float32
	Near, Far float32
	Offset    world.NodePos // render-space origin, in nodes
}

// ViewProj returns projection*view.
func (s CameraState) ViewProj() mgl32.Mat4 {
	up := mgl32.Vec3{0, 1, 0}
	if math.Abs(float64(s.Direction.Dot(up))) > 0.999 {
		up = mgl32.Vec3{0, 0, 1}
	}
	view := mgl32.LookAtV(s.Position, s.Position.Add(s.Direction), up)
	proj := mgl32.Perspective(s.FOV, s.Aspect, s.Near, s.Far)
	return proj.Mul4(view)
}

// Frustum returns the view frustum of the state.
func (s CameraState) Frustum() frustum.Frustum {
	return frustum.FromMatrix(s.ViewProj())
}

// Camera is a free-flying camera driven by yaw and pitch in degrees.
type Camera struct {
	Position    mgl32.Vec3
	Yaw, Pitch  float32
	AspectRatio float32
	FOV         float32 // degrees
	NearPlane   float32
	FarPlane    float32

	offset world.NodePos
}

// NewCamera creates a camera for a viewport of the given size.
func NewCamera(width, height int) *Camera {
	c := &Camera{
		FOV:       72.0,
		NearPlane: 0.1 * world.BS,
		FarPlane:  2000.0 * world.BS,
		Yaw:       -90,
	}
	c.SetViewport(width, height)
	return c
}

// SetViewport updates the aspect ratio.
func (c *Camera) SetViewport(width, height int) {
	if height <= 0 {
		height = 1
	}
	c.AspectRatio = float32(width) / float32(height)
}

// Direction returns the normalised view direction.
func (c *Camera) Direction() mgl32.Vec3 {
	yaw := float64(mgl32.DegToRad(c.Yaw))
	pitch := float64(mgl32.DegToRad(c.Pitch))
	return mgl32.Vec3{
		float32(math.Cos(yaw) * math.Cos(pitch)),
		float32(math.Sin(pitch)),
		float32(math.Sin(yaw) * math.Cos(pitch)),
	}.Normalize()
}

// Rotate turns the camera, clamping pitch short of straight up or down.
func (c *Camera) Rotate(dYaw, dPitch float32) {
	c.Yaw = float32(math.Mod(float64(c.Yaw+dYaw), 360))
	c.Pitch = min(max(c.Pitch+dPitch, -89), 89)
}

// Move translates the camera by d in world units.
func (c *Camera) Move(d mgl32.Vec3) {
	c.Position = c.Position.Add(d)
}

// GetViewMatrix returns the view matrix.
func (c *Camera) GetViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position, c.Position.Add(c.Direction()), mgl32.Vec3{0, 1, 0})
}

// GetProjectionMatrix returns the projection matrix.
func (c *Camera) GetProjectionMatrix() mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.FOV), c.AspectRatio, c.NearPlane, c.FarPlane)
}

// State snapshots the camera. The render offset follows the camera in
// steps of offsetStep nodes.
func (c *Camera) State() CameraState {
	n := world.FloatToNode(c.Position)
	snap := func(v, o int32) int32 {
		if v-o > offsetStep || o-v > offsetStep {
			return v / offsetStep * offsetStep
		}
		return o
	}
	c.offset = world.NodePos{X: snap(n.X, c.offset.X), Y: snap(n.Y, c.offset.Y), Z: snap(n.Z, c.offset.Z)}
	return CameraState{
		Position:  c.Position,
		Direction: c.Direction(),
		FOV:       mgl32.DegToRad(c.FOV),
		Aspect:    c.AspectRatio,
		Near:      c.NearPlane,
		Far:       c.FarPlane,
		Offset:    c.offset,
	}
}
