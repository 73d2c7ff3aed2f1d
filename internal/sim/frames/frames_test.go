package frames

import (
	"math"
	"testing"

	"symcraft.ai/internal/sim/geom"
	"symcraft.ai/internal/sim/symmetry"
)

func TestStore_CreatesOnFirstAccess(t *testing.T) {
	s := NewStore()
	if _, ok := s.Peek("A1"); ok {
		t.Fatalf("unexpected frame before access")
	}
	f := s.Get("A1")
	if f.Group != symmetry.Rotational4 || f.Enabled || f.HasCenter || !f.ViewVisible {
		t.Fatalf("unexpected defaults: %+v", f)
	}
	if s.Get("A1") != f {
		t.Fatalf("Get should return the same frame")
	}
	s.Clear("A1")
	if s.Len() != 0 {
		t.Fatalf("expected empty store after clear")
	}
}

func TestFrame_ActiveNeedsCenterAndEnabled(t *testing.T) {
	f := NewStore().Get("A1")
	f.Enabled = true
	if f.Active() {
		t.Fatalf("active without center")
	}
	f.SetCenter(geom.Point3{1, 2, 3}, geom.Yaw(45))
	if !f.Active() {
		t.Fatalf("expected active")
	}
	f.ClearCenter()
	if f.Active() {
		t.Fatalf("active after delete")
	}
}

func TestFrame_SetCenterNormalizesOrientation(t *testing.T) {
	f := NewStore().Get("A1")
	q := geom.Yaw(10)
	q.W *= 3
	q.V = q.V.Mul(3)
	f.SetCenter(geom.Point3{}, q)
	if math.Abs(f.Orientation.Len()-1) > 1e-12 {
		t.Fatalf("orientation not unit: %v", f.Orientation.Len())
	}
}

func TestSnapshot_IsImmuneToLaterEdits(t *testing.T) {
	f := NewStore().Get("A1")
	f.SetCenter(geom.Point3{5, 0, 5}, geom.Identity())
	f.Group = symmetry.Mirror2
	snap := f.Snapshot()

	f.SetCenter(geom.Point3{-100, 0, 0}, geom.Yaw(90))
	f.Group = symmetry.Rotational6

	if snap.Frame.Center != (geom.Point3{5, 0, 5}) || snap.Group != symmetry.Mirror2 {
		t.Fatalf("snapshot changed: %+v", snap)
	}
}

func TestFrame_View(t *testing.T) {
	f := NewStore().Get("A1")
	f.Enabled = true
	f.Group = symmetry.Mirror4
	v := f.View()
	if !v.Visible || !v.Enabled || v.CenterSet || v.GroupType != "m4s" {
		t.Fatalf("view=%+v", v)
	}
}
