package geom

// Frame places a local coordinate system in the world.
type Frame struct {
	Center      Point3
	Orientation Rotation3
}

func NewFrame(center Point3, orientation Rotation3) Frame {
	return Frame{Center: center, Orientation: NormalizeRotation(orientation)}
}

// ToLocal expresses a world pose in frame-local coordinates.
func (f Frame) ToLocal(world Pose) Pose {
	inv := NormalizeRotation(f.Orientation).Inverse()
	return Pose{
		Position: inv.Rotate(world.Position.Sub(f.Center)),
		Rotation: NormalizeRotation(inv.Mul(world.Rotation)),
	}
}

// ToWorld maps a frame-local pose back to world space:
// worldPos = center + O*localPos, worldRot = O*localRot.
func (f Frame) ToWorld(local Pose) Pose {
	o := NormalizeRotation(f.Orientation)
	return Pose{
		Position: f.Center.Add(o.Rotate(local.Position)),
		Rotation: NormalizeRotation(o.Mul(local.Rotation)),
	}
}

// ToWorldPoint maps only a position.
func (f Frame) ToWorldPoint(local Point3) Point3 {
	return f.Center.Add(NormalizeRotation(f.Orientation).Rotate(local))
}
