// Package frustum extracts view frustum planes and tests volumes against them.
package frustum

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Plane is a*x + b*y + c*z + d = 0 with the normal pointing inside.
type Plane struct {
	A, B, C, D float32
}

// Distance returns the signed distance of p to the plane.
func (pl Plane) Distance(p mgl32.Vec3) float32 {
	return pl.A*p[0] + pl.B*p[1] + pl.C*p[2] + pl.D
}

// Frustum holds six planes in order: left, right, bottom, top, near, far.
type Frustum struct {
	Planes [6]Plane
}

// FromMatrix builds the frustum of the combined projection*view matrix.
func FromMatrix(clip mgl32.Mat4) Frustum {
	// Matrix is in column-major order in mgl32
	m00, m01, m02, m03 := clip[0], clip[4], clip[8], clip[12]
	m10, m11, m12, m13 := clip[1], clip[5], clip[9], clip[13]
	m20, m21, m22, m23 := clip[2], clip[6], clip[10], clip[14]
	m30, m31, m32, m33 := clip[3], clip[7], clip[11], clip[15]

	var f Frustum
	// Left  = m3 + m0
	f.Planes[0] = normalize(Plane{m30 + m00, m31 + m01, m32 + m02, m33 + m03})
	// Right = m3 - m0
	f.Planes[1] = normalize(Plane{m30 - m00, m31 - m01, m32 - m02, m33 - m03})
	// Bottom = m3 + m1
	f.Planes[2] = normalize(Plane{m30 + m10, m31 + m11, m32 + m12, m33 + m13})
	// Top = m3 - m1
	f.Planes[3] = normalize(Plane{m30 - m10, m31 - m11, m32 - m12, m33 - m13})
	// Near = m3 + m2
	f.Planes[4] = normalize(Plane{m30 + m20, m31 + m21, m32 + m22, m33 + m23})
	// Far = m3 - m2
	f.Planes[5] = normalize(Plane{m30 - m20, m31 - m21, m32 - m22, m33 - m23})
	return f
}

func normalize(p Plane) Plane {
	l := float32(math.Sqrt(float64(p.A*p.A + p.B*p.B + p.C*p.C)))
	if l == 0 {
		return p
	}
	return Plane{p.A / l, p.B / l, p.C / l, p.D / l}
}

// IntersectsAABB reports whether the box is at least partly inside.
func (f *Frustum) IntersectsAABB(min, max mgl32.Vec3) bool {
	for i := range f.Planes {
		p := &f.Planes[i]
		// Select the positive vertex for this plane normal
		px := max[0]
		if p.A < 0 {
			px = min[0]
		}
		py := max[1]
		if p.B < 0 {
			py = min[1]
		}
		pz := max[2]
		if p.C < 0 {
			pz = min[2]
		}
		if p.A*px+p.B*py+p.C*pz+p.D < 0 {
			return false
		}
	}
	return true
}

// IntersectsSphere reports whether the sphere is at least partly inside.
func (f *Frustum) IntersectsSphere(center mgl32.Vec3, radius float32) bool {
	for i := range f.Planes {
		if f.Planes[i].Distance(center) < -radius {
			return false
		}
	}
	return true
}

// NearEqual compares two matrices for approximate equality within epsilon.
func NearEqual(a, b mgl32.Mat4, epsilon float32) bool {
	for i := 0; i < 16; i++ {
		if float32(math.Abs(float64(a[i]-b[i]))) > epsilon {
			return false
		}
	}
	return true
}
