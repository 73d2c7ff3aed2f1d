package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Point3 is a position in world or frame-local space. Y is up.
type Point3 = mgl64.Vec3

// Rotation3 is an orientation stored as a unit quaternion.
type Rotation3 = mgl64.Quat

var (
	Up      = Point3{0, 1, 0}
	Forward = Point3{0, 0, 1}
	Right   = Point3{1, 0, 0}
)

// Pose is a position plus orientation.
type Pose struct {
	Position Point3
	Rotation Rotation3
}

func Identity() Rotation3 { return mgl64.QuatIdent() }

// Yaw returns a rotation of deg degrees about the vertical axis.
func Yaw(deg float64) Rotation3 {
	return mgl64.QuatRotate(mgl64.DegToRad(deg), Up)
}

// NormalizeRotation returns a unit quaternion. Degenerate input (zero length
// or NaN) collapses to the identity so the result is always a valid rotation.
func NormalizeRotation(q Rotation3) Rotation3 {
	l := q.Len()
	if l < 1e-12 || math.IsNaN(l) || math.IsInf(l, 0) {
		return mgl64.QuatIdent()
	}
	return q.Normalize()
}

// NormalizeVec returns v scaled to unit length, or the zero vector when v is
// too short to carry a direction.
func NormalizeVec(v Point3) Point3 {
	l := v.Len()
	if l < 1e-12 || math.IsNaN(l) {
		return Point3{}
	}
	return v.Mul(1 / l)
}

// YawFromLook builds a yaw-only orientation whose forward axis (+Z) points
// along the horizontal component of dir. A vertical or zero look direction
// gives the identity.
func YawFromLook(dir Point3) Rotation3 {
	h := Point3{dir.X(), 0, dir.Z()}
	if h.Len() < 1e-9 {
		return mgl64.QuatIdent()
	}
	// Yaw(a) maps +Z to (sin a, 0, cos a).
	a := math.Atan2(h.X(), h.Z())
	return NormalizeRotation(mgl64.QuatRotate(a, Up))
}

// Horizontal drops the vertical component.
func Horizontal(v Point3) Point3 { return Point3{v.X(), 0, v.Z()} }

// BearingDeg is the angle of the horizontal offset (x,z) measured from +X
// towards +Z, in [0,360).
func BearingDeg(v Point3) float64 {
	a := mgl64.RadToDeg(math.Atan2(v.Z(), v.X()))
	if a < 0 {
		a += 360
	}
	if a >= 360 {
		a -= 360
	}
	return a
}

func Distance(a, b Point3) float64 { return a.Sub(b).Len() }

// SameOrientation reports whether a and b describe the same rotation within
// eps. q and -q are the same rotation, so the basis images are compared.
func SameOrientation(a, b Rotation3, eps float64) bool {
	for _, axis := range []Point3{Right, Up, Forward} {
		if !a.Rotate(axis).ApproxEqualThreshold(b.Rotate(axis), eps) {
			return false
		}
	}
	return true
}

// ApproxPose compares positions and orientations within eps.
func ApproxPose(a, b Pose, eps float64) bool {
	return a.Position.ApproxEqualThreshold(b.Position, eps) && SameOrientation(a.Rotation, b.Rotation, eps)
}
