package geom

import "github.com/go-gl/mathgl/mgl64"

// Householder returns M = I - 2nn^T for a unit normal n. M is symmetric,
// orthogonal and its own inverse.
func Householder(n Point3) mgl64.Mat3 {
	x, y, z := n.X(), n.Y(), n.Z()
	// Symmetric, so column-major and row-major layouts coincide.
	return mgl64.Mat3{
		1 - 2*x*x, -2 * x * y, -2 * x * z,
		-2 * y * x, 1 - 2*y*y, -2 * y * z,
		-2 * z * x, -2 * z * y, 1 - 2*z*z,
	}
}

// ReflectPoint mirrors p across the plane through the origin with unit normal n.
func ReflectPoint(p, n Point3) Point3 {
	return p.Sub(n.Mul(2 * p.Dot(n)))
}

// ConjugateRotation returns the proper rotation M*R*M for the Householder
// matrix M of n. det(MRM) = det(R) so the result stays a rotation; it is
// renormalized to absorb floating error.
func ConjugateRotation(q Rotation3, n Point3) Rotation3 {
	m := Householder(n)
	r := q.Mat4().Mat3()
	out := m.Mul3(r).Mul3(m)
	return NormalizeRotation(mgl64.Mat4ToQuat(out.Mat4()))
}
