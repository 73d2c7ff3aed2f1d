package symmetry

import (
	"fmt"

	"symcraft.ai/internal/sim/geom"
)

type GeneratorKind int

const (
	GenRotation GeneratorKind = iota + 1
	GenReflection
)

// Generator produces one symmetric copy. A rotation carries AngleDeg about
// the frame's vertical axis. A reflection carries Normal and, when Compound
// is set, a SecondNormal applied after the first.
type Generator struct {
	Kind GeneratorKind

	AngleDeg float64

	Normal       geom.Point3
	SecondNormal geom.Point3
	Compound     bool
}

func Rotation(angleDeg float64) Generator {
	return Generator{Kind: GenRotation, AngleDeg: angleDeg}
}

func Reflection(normal geom.Point3) Generator {
	return Generator{Kind: GenReflection, Normal: normal}
}

func CompoundReflection(first, second geom.Point3) Generator {
	return Generator{Kind: GenReflection, Normal: first, SecondNormal: second, Compound: true}
}

// Normals returns the reflection normals in application order.
func (g Generator) Normals() []geom.Point3 {
	if g.Kind != GenReflection {
		return nil
	}
	if g.Compound {
		return []geom.Point3{g.Normal, g.SecondNormal}
	}
	return []geom.Point3{g.Normal}
}

func (g Generator) String() string {
	switch g.Kind {
	case GenRotation:
		return fmt.Sprintf("rot(%.1f)", g.AngleDeg)
	case GenReflection:
		if g.Compound {
			return fmt.Sprintf("ref(%v,%v)", g.Normal, g.SecondNormal)
		}
		return fmt.Sprintf("ref(%v)", g.Normal)
	default:
		return "invalid"
	}
}

// Generators lists the transforms of a group in deterministic order, in
// frame-local coordinates. The identity is never included, so a rotational
// group of order n yields n-1 generators.
func Generators(g GroupType) ([]Generator, error) {
	switch g {
	case Rotational2, Rotational3, Rotational4, Rotational6:
		n := g.Order()
		step := 360.0 / float64(n)
		out := make([]Generator, 0, n-1)
		for k := 1; k < n; k++ {
			out = append(out, Rotation(step*float64(k)))
		}
		return out, nil
	case Mirror2:
		return []Generator{Reflection(geom.Forward)}, nil
	case Mirror4:
		return []Generator{
			Reflection(geom.Forward),
			Reflection(geom.Right),
			CompoundReflection(geom.Forward, geom.Right),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedGroup, g)
	}
}
