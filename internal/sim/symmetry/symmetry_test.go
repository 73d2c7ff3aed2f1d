package symmetry

import (
	"errors"
	"math"
	"strings"
	"testing"

	"symcraft.ai/internal/sim/geom"
)

const tol = 1e-9

func samplePoses() []geom.Pose {
	return []geom.Pose{
		{Position: geom.Point3{3, 0, 4}, Rotation: geom.Identity()},
		{Position: geom.Point3{-2.5, 1.5, 7}, Rotation: geom.Yaw(33)},
		{Position: geom.Point3{0.1, -3, -9}, Rotation: geom.NormalizeRotation(geom.Yaw(-71).Mul(geom.Rotation3{W: 0.8, V: geom.Point3{0.2, 0.1, -0.3}}))},
	}
}

func TestParseGroupType(t *testing.T) {
	cases := []struct {
		in   string
		want GroupType
	}{
		{in: "n2s", want: Rotational2},
		{in: "N3S", want: Rotational3},
		{in: " n4s ", want: Rotational4},
		{in: "n6s", want: Rotational6},
		{in: "m2s", want: Mirror2},
		{in: "M4s", want: Mirror4},
	}
	for _, c := range cases {
		got, err := ParseGroupType(c.in)
		if err != nil || got != c.want {
			t.Fatalf("ParseGroupType(%q)=%v,%v want %v", c.in, got, err, c.want)
		}
		if got.String() != strings.ToLower(strings.TrimSpace(c.in)) {
			t.Fatalf("String()=%q for %q", got.String(), c.in)
		}
	}
	for _, bad := range []string{"", "n5s", "m3s", "m6s", "x4s"} {
		if _, err := ParseGroupType(bad); !errors.Is(err, ErrUnsupportedGroup) {
			t.Fatalf("ParseGroupType(%q) err=%v want ErrUnsupportedGroup", bad, err)
		}
	}
}

func TestGenerators_Counts(t *testing.T) {
	cases := []struct {
		g    GroupType
		want int
	}{
		{Rotational2, 1},
		{Rotational3, 2},
		{Rotational4, 3},
		{Rotational6, 5},
		{Mirror2, 1},
		{Mirror4, 3},
	}
	for _, c := range cases {
		gens, err := Generators(c.g)
		if err != nil {
			t.Fatalf("Generators(%v): %v", c.g, err)
		}
		if len(gens) != c.want {
			t.Fatalf("Generators(%v) len=%d want %d", c.g, len(gens), c.want)
		}
		if !c.g.IsMirror() && len(gens) != c.g.Order()-1 {
			t.Fatalf("rotational %v: %d generators for order %d", c.g, len(gens), c.g.Order())
		}
	}
	if _, err := Generators(GroupType(99)); !errors.Is(err, ErrUnsupportedGroup) {
		t.Fatalf("expected ErrUnsupportedGroup, got %v", err)
	}
}

func TestGenerators_RotationalAngles(t *testing.T) {
	gens, _ := Generators(Rotational6)
	for i, g := range gens {
		want := 60.0 * float64(i+1)
		if g.Kind != GenRotation || math.Abs(g.AngleDeg-want) > tol {
			t.Fatalf("gen[%d]=%v want rot(%v)", i, g, want)
		}
	}
}

func TestGenerators_Mirror4Layout(t *testing.T) {
	gens, _ := Generators(Mirror4)
	if gens[0].Compound || gens[0].Normal != geom.Forward {
		t.Fatalf("gen[0]=%v want forward reflection", gens[0])
	}
	if gens[1].Compound || gens[1].Normal != geom.Right {
		t.Fatalf("gen[1]=%v want right reflection", gens[1])
	}
	if !gens[2].Compound || gens[2].Normal != geom.Forward || gens[2].SecondNormal != geom.Right {
		t.Fatalf("gen[2]=%v want compound forward+right", gens[2])
	}
}

func TestRotation_OrderNClosesLoop(t *testing.T) {
	for _, g := range []GroupType{Rotational2, Rotational3, Rotational4, Rotational6} {
		gens, _ := Generators(g)
		step := gens[0]
		for _, p := range samplePoses() {
			cur := p
			for i := 0; i < g.Order(); i++ {
				cur = Apply(cur, step, Options{})
			}
			if !geom.ApproxPose(cur, p, tol) {
				t.Fatalf("%v: %d steps gave %v want %v", g, g.Order(), cur, p)
			}
		}
	}
}

func TestRotation_ThetaThenComplement(t *testing.T) {
	for _, theta := range []float64{0, 17, 90, 120, 181.5, 300} {
		for _, p := range samplePoses() {
			got := Apply(Apply(p, Rotation(theta), Options{}), Rotation(360-theta), Options{})
			if !geom.ApproxPose(got, p, tol) {
				t.Fatalf("theta=%v: got %v want %v", theta, got, p)
			}
		}
	}
}

func TestReflection_SelfInverse(t *testing.T) {
	for _, n := range []geom.Point3{geom.Forward, geom.Right, {1, 0, 1}, {0, 0, -5}} {
		g := Reflection(n)
		for _, p := range samplePoses() {
			once := Apply(p, g, Options{})
			twice := Apply(once, g, Options{})
			if !geom.ApproxPose(twice, p, 1e-12) {
				t.Fatalf("normal=%v: twice=%v want %v", n, twice, p)
			}
		}
	}
}

func TestReflection_AxisNormalPositionIsExact(t *testing.T) {
	p := geom.Pose{Position: geom.Point3{1.25, 2, -3.5}, Rotation: geom.Identity()}
	got := Apply(Apply(p, Reflection(geom.Forward), Options{}), Reflection(geom.Forward), Options{})
	if got.Position != p.Position {
		t.Fatalf("position=%v want %v", got.Position, p.Position)
	}
	once := Apply(p, Reflection(geom.Forward), Options{})
	if once.Position != (geom.Point3{1.25, 2, 3.5}) {
		t.Fatalf("forward mirror=%v", once.Position)
	}
}

func TestReflection_NormalizesNormals(t *testing.T) {
	for _, p := range samplePoses() {
		a := Apply(p, Reflection(geom.Point3{0, 0, 7}), Options{})
		b := Apply(p, Reflection(geom.Forward), Options{})
		if !geom.ApproxPose(a, b, tol) {
			t.Fatalf("scaled normal changed result: %v vs %v", a, b)
		}
	}
}

func TestMirror4_CompoundEqualsSequential(t *testing.T) {
	gens, _ := Generators(Mirror4)
	compound := gens[2]
	for _, p := range samplePoses() {
		got := Apply(p, compound, Options{})
		seq := Apply(Apply(p, Reflection(geom.Forward), Options{}), Reflection(geom.Right), Options{})
		if !geom.ApproxPose(got, seq, tol) {
			t.Fatalf("compound=%v sequential=%v", got, seq)
		}
		// Two perpendicular vertical mirrors carry positions like a half turn about Y.
		half := Apply(p, Rotation(180), Options{})
		if !got.Position.ApproxEqualThreshold(half.Position, tol) {
			t.Fatalf("compound position=%v half turn=%v", got.Position, half.Position)
		}
	}
}

func TestDoor_GetsHalfTurnAfterMirror(t *testing.T) {
	p := geom.Pose{Position: geom.Point3{2, 0, 5}, Rotation: geom.Yaw(20)}
	plain := Apply(p, Reflection(geom.Forward), Options{})
	door := Apply(p, Reflection(geom.Forward), Options{Door: true})
	if !door.Position.ApproxEqualThreshold(plain.Position, tol) {
		t.Fatalf("door option moved the position")
	}
	want := geom.NormalizeRotation(plain.Rotation.Mul(geom.Yaw(180)))
	if !geom.SameOrientation(door.Rotation, want, tol) {
		t.Fatalf("door rotation=%v want %v", door.Rotation, want)
	}
	// Rotations never get the extra half turn.
	if r := Apply(p, Rotation(90), Options{Door: true}); !geom.ApproxPose(r, Apply(p, Rotation(90), Options{}), tol) {
		t.Fatalf("door option changed a rotation generator")
	}
}

func TestTransform_OnePosePerGenerator(t *testing.T) {
	gens, _ := Generators(Rotational4)
	p := geom.Pose{Position: geom.Point3{10, 0, 0}, Rotation: geom.Identity()}
	out := Transform(p, gens, Options{})
	if len(out) != 3 {
		t.Fatalf("len=%d want 3", len(out))
	}
	want := []geom.Point3{{0, 0, -10}, {-10, 0, 0}, {0, 0, 10}}
	for i := range out {
		if !out[i].Position.ApproxEqualThreshold(want[i], tol) {
			t.Fatalf("pose[%d]=%v want %v", i, out[i].Position, want[i])
		}
	}
}

func TestTransformWorld_UsesFrame(t *testing.T) {
	frame := geom.NewFrame(geom.Point3{100, 5, 100}, geom.Yaw(90))
	world := geom.Pose{Position: geom.Point3{100, 5, 110}, Rotation: geom.Yaw(90)}
	local := frame.ToLocal(world)
	gens, _ := Generators(Mirror2)
	out := TransformWorld(frame, local, gens, Options{})
	// Frame forward is world +X; the offset (0,0,10) lies in the mirror plane.
	if len(out) != 1 || !out[0].Position.ApproxEqualThreshold(world.Position, tol) {
		t.Fatalf("out=%v want position %v", out, world.Position)
	}
	pts := TransformPoint(frame, frame.ToLocal(geom.Pose{Position: geom.Point3{110, 5, 100}, Rotation: geom.Identity()}).Position, gens)
	if len(pts) != 1 || !pts[0].ApproxEqualThreshold(geom.Point3{90, 5, 100}, tol) {
		t.Fatalf("pts=%v want (90,5,100)", pts)
	}
}
