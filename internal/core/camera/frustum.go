package camera

import "math"

// Plane satisfies Normal·p + D = 0; points with a positive distance are inside.
type Plane struct {
	Normal Vec3
	D      float32
}

func (p Plane) Distance(pt Vec3) float32 { return p.Normal.Dot(pt) + p.D }

// Frustum planes, in order: left, right, bottom, top, near, far.
type Frustum [6]Plane

// FrustumFrom extracts normalized planes from a view-projection matrix
// (Gribb/Hartmann, depth range [0, 1]).
func FrustumFrom(vp Mat4) Frustum {
	row := func(r int) [4]float32 {
		return [4]float32{vp[r], vp[4+r], vp[8+r], vp[12+r]}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	combos := [6][4]float32{
		add(r3, r0), sub(r3, r0),
		add(r3, r1), sub(r3, r1),
		r2, sub(r3, r2),
	}

	var f Frustum
	for i, c := range combos {
		n := Vec3{c[0], c[1], c[2]}
		l := float32(math.Sqrt(float64(n.Dot(n))))
		if l == 0 {
			l = 1
		}
		f[i] = Plane{Normal: Vec3{n[0] / l, n[1] / l, n[2] / l}, D: c[3] / l}
	}
	return f
}

func (f Frustum) ContainsPoint(pt Vec3) bool {
	return f.IntersectsSphere(pt, 0)
}

func (f Frustum) IntersectsSphere(center Vec3, radius float32) bool {
	for _, p := range f {
		if p.Distance(center) < -radius {
			return false
		}
	}
	return true
}

func add(a, b [4]float32) [4]float32 {
	return [4]float32{a[0] + b[0], a[1] + b[1], a[2] + b[2], a[3] + b[3]}
}

func sub(a, b [4]float32) [4]float32 {
	return [4]float32{a[0] - b[0], a[1] - b[1], a[2] - b[2], a[3] - b[3]}
}
