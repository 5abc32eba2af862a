package frustum

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func lookDownNegZ() Frustum {
	proj := mgl32.Perspective(mgl32.DegToRad(70), 1, 0.1, 1000)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0})
	return FromMatrix(proj.Mul4(view))
}

func TestIntersectsAABB(t *testing.T) {
	f := lookDownNegZ()
	tests := []struct {
		name     string
		min, max mgl32.Vec3
		want     bool
	}{
		{"ahead", mgl32.Vec3{-1, -1, -11}, mgl32.Vec3{1, 1, -9}, true},
		{"behind", mgl32.Vec3{-1, -1, 9}, mgl32.Vec3{1, 1, 11}, false},
		{"far left", mgl32.Vec3{-500, -1, -11}, mgl32.Vec3{-400, 1, -9}, false},
		{"beyond far plane", mgl32.Vec3{-1, -1, -2000}, mgl32.Vec3{1, 1, -1500}, false},
		{"around camera", mgl32.Vec3{-5, -5, -5}, mgl32.Vec3{5, 5, 5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.IntersectsAABB(tt.min, tt.max); got != tt.want {
				t.Errorf("IntersectsAABB = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIntersectsSphere(t *testing.T) {
	f := lookDownNegZ()
	if !f.IntersectsSphere(mgl32.Vec3{0, 0, -50}, 1) {
		t.Error("sphere ahead should intersect")
	}
	if f.IntersectsSphere(mgl32.Vec3{0, 0, 50}, 1) {
		t.Error("sphere behind should not intersect")
	}
	if !f.IntersectsSphere(mgl32.Vec3{0, 0, 0.5}, 1) {
		t.Error("sphere straddling the near plane should intersect")
	}
}

func TestNearEqual(t *testing.T) {
	a := mgl32.Ident4()
	b := a
	b[5] += 1e-5
	if !NearEqual(a, b, 1e-4) {
		t.Error("matrices within epsilon should be equal")
	}
	b[5] += 1
	if NearEqual(a, b, 1e-4) {
		t.Error("matrices beyond epsilon should differ")
	}
}
