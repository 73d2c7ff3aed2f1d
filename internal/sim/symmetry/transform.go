package symmetry

import "symcraft.ai/internal/sim/geom"

// Options tweak how a pose is carried through a generator.
type Options struct {
	// Door adds a half turn about the vertical axis after any reflection so
	// hinged doors keep their front face pointing outward.
	Door bool
}

var halfTurn = geom.Yaw(180)

// Apply carries a frame-local pose through one generator. Unknown generator
// kinds return the pose unchanged.
func Apply(local geom.Pose, g Generator, opts Options) geom.Pose {
	switch g.Kind {
	case GenRotation:
		r := geom.Yaw(g.AngleDeg)
		return geom.Pose{
			Position: r.Rotate(local.Position),
			Rotation: geom.NormalizeRotation(r.Mul(local.Rotation)),
		}
	case GenReflection:
		pos := local.Position
		rot := geom.NormalizeRotation(local.Rotation)
		for _, n := range g.Normals() {
			n = geom.NormalizeVec(n)
			if n == (geom.Point3{}) {
				continue
			}
			pos = geom.ReflectPoint(pos, n)
			rot = geom.ConjugateRotation(rot, n)
		}
		if opts.Door {
			rot = geom.NormalizeRotation(rot.Mul(halfTurn))
		}
		return geom.Pose{Position: pos, Rotation: rot}
	default:
		return local
	}
}

// Transform applies every generator to the same local pose and returns one
// pose per generator, in generator order.
func Transform(local geom.Pose, gens []Generator, opts Options) []geom.Pose {
	out := make([]geom.Pose, 0, len(gens))
	for _, g := range gens {
		out = append(out, Apply(local, g, opts))
	}
	return out
}

// TransformWorld is Transform followed by the frame's local-to-world mapping.
func TransformWorld(frame geom.Frame, local geom.Pose, gens []Generator, opts Options) []geom.Pose {
	poses := Transform(local, gens, opts)
	for i := range poses {
		poses[i] = frame.ToWorld(poses[i])
	}
	return poses
}

// TransformPoint carries only a position; rotations and door handling are
// skipped. Used for counterpart lookups.
func TransformPoint(frame geom.Frame, local geom.Point3, gens []Generator) []geom.Point3 {
	out := make([]geom.Point3, 0, len(gens))
	for _, p := range Transform(geom.Pose{Position: local, Rotation: geom.Identity()}, gens, Options{}) {
		out = append(out, frame.ToWorldPoint(p.Position))
	}
	return out
}
