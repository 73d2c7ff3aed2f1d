package autodetect

import (
	"errors"
	"math"
	"strings"
	"testing"

	"symcraft.ai/internal/sim/frames"
	"symcraft.ai/internal/sim/geom"
	"symcraft.ai/internal/sim/symmetry"
)

func ring(center geom.Point3, owner string, radius float64, bearings ...float64) []Candidate {
	out := make([]Candidate, 0, len(bearings))
	for _, b := range bearings {
		r := b * math.Pi / 180
		out = append(out, Candidate{
			Prefab:   "foundation",
			OwnerID:  owner,
			Position: center.Add(geom.Point3{radius * math.Cos(r), 0, radius * math.Sin(r)}),
		})
	}
	return out
}

func isFoundation(p string) bool { return strings.Contains(p, "foundation") }

func TestClassify_Orders(t *testing.T) {
	d := &Detector{IsFoundation: isFoundation}
	c := geom.Point3{10, 0, -5}
	cases := []struct {
		name     string
		bearings []float64
		want     symmetry.GroupType
	}{
		{"square", []float64{0, 90, 180, 270}, symmetry.Rotational4},
		{"triangle", []float64{0, 120, 240}, symmetry.Rotational3},
		{"hexagon", []float64{0, 60, 120, 180, 240, 300}, symmetry.Rotational6},
		{"pentagon maps to four", []float64{0, 72, 144, 216, 288}, symmetry.Rotational4},
		{"opposite pair plus near duplicate", []float64{0, 180, 180.05}, symmetry.Rotational2},
		{"dense ring clamps to six", []float64{0, 30, 60, 90, 120, 150, 180, 210, 240, 270, 300, 330}, symmetry.Rotational6},
		{"unordered input", []float64{240, 0, 120}, symmetry.Rotational3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := d.Classify(c, "A1", ring(c, "A1", 8, tc.bearings...))
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if res.Group != tc.want || res.Fallback {
				t.Fatalf("group=%s fallback=%v want %s (gap=%.3f order=%d)", res.Group, res.Fallback, tc.want, res.MinGap, res.Order)
			}
		})
	}
}

func TestClassify_InsufficientFallsBackToFour(t *testing.T) {
	d := &Detector{IsFoundation: isFoundation}
	c := geom.Point3{}
	res, err := d.Classify(c, "A1", ring(c, "A1", 5, 0, 120))
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
	if res.Group != symmetry.Rotational4 || !res.Fallback {
		t.Fatalf("fallback=%+v", res)
	}
}

func TestClassify_Filters(t *testing.T) {
	d := &Detector{IsFoundation: isFoundation}
	c := geom.Point3{}

	cands := ring(c, "A1", 6, 0, 120)
	// Someone else's foundation, a wall, and one sitting on the center.
	cands = append(cands, ring(c, "B2", 6, 240)...)
	wall := ring(c, "A1", 6, 240)[0]
	wall.Prefab = "wall"
	cands = append(cands, wall)
	cands = append(cands, Candidate{Prefab: "foundation", OwnerID: "A1", Position: geom.Point3{0.05, 3, 0.05}})

	res, err := d.Classify(c, "A1", cands)
	if !errors.Is(err, ErrInsufficientData) || len(res.Bearings) != 2 {
		t.Fatalf("filtered bearings=%v err=%v", res.Bearings, err)
	}

	// Height does not matter, only the horizontal offset.
	cands = append(cands, Candidate{Prefab: "foundation.triangle", OwnerID: "A1", Position: geom.Point3{6 * math.Cos(4 * math.Pi / 3), 40, 6 * math.Sin(4 * math.Pi / 3)}})
	res, err = d.Classify(c, "A1", cands)
	if err != nil || res.Group != symmetry.Rotational3 {
		t.Fatalf("group=%s err=%v", res.Group, err)
	}
}

func TestClassify_ClusteredBearingsGiveTwo(t *testing.T) {
	d := &Detector{IsFoundation: isFoundation}
	c := geom.Point3{}
	cases := []struct {
		name  string
		cands []Candidate
	}{
		{"coincident", append(append(ring(c, "A1", 4, 45), ring(c, "A1", 8, 45)...), ring(c, "A1", 12, 45)...)},
		{"near coincident", ring(c, "A1", 8, 0, 0.0498, 0.0501)},
	}
	for _, tc := range cases {
		res, err := d.Classify(c, "A1", tc.cands)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if res.Group != symmetry.Rotational2 || res.Order != 2 || res.Fallback {
			t.Fatalf("%s: group=%s order=%d gap=%.3f", tc.name, res.Group, res.Order, res.MinGap)
		}
	}
}

func TestDetect_WritesFrame(t *testing.T) {
	store := frames.NewStore()
	center := geom.Point3{100, 0, 100}
	var gotRadius float64
	d := &Detector{
		Frames:       store,
		IsFoundation: isFoundation,
		Query: func(c geom.Point3, r float64) []Candidate {
			gotRadius = r
			return ring(c, "A1", 10, 0, 120, 240)
		},
	}

	if _, err := d.Detect("A1"); !errors.Is(err, ErrNoCenter) {
		t.Fatalf("expected ErrNoCenter, got %v", err)
	}

	f := store.Get("A1")
	f.SetCenter(center, geom.Identity())
	res, err := d.Detect("A1")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if res.Group != symmetry.Rotational3 || f.Group != symmetry.Rotational3 {
		t.Fatalf("result=%s frame=%s", res.Group, f.Group)
	}
	if gotRadius != DefaultRadius {
		t.Fatalf("radius=%v", gotRadius)
	}

	// The fallback is written too.
	d.Query = func(geom.Point3, float64) []Candidate { return nil }
	f.Group = symmetry.Rotational6
	if _, err := d.Detect("A1"); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected insufficient data, got %v", err)
	}
	if f.Group != symmetry.Rotational4 {
		t.Fatalf("frame group=%s after fallback", f.Group)
	}
}
