package replicate

import (
	"fmt"
	"testing"

	"symcraft.ai/internal/protocol"
	"symcraft.ai/internal/sim/catalogs"
	"symcraft.ai/internal/sim/frames"
	"symcraft.ai/internal/sim/geom"
	"symcraft.ai/internal/sim/symmetry"
	"symcraft.ai/internal/sim/tasks"
)

type report struct{ actor, code, msg string }

type fakeHost struct {
	connected map[string]bool
	perm      map[string]bool
	frames    *frames.Store
	inv       map[string]map[string]int
	entities  map[string]*Entity
	nextID    int

	spawned    []SpawnSpec
	broadcasts []Entity
	reports    []report
	audits     []string
	gradeSets  int
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		connected: map[string]bool{"A1": true},
		perm:      map[string]bool{"A1": true},
		frames:    frames.NewStore(),
		inv:       map[string]map[string]int{"A1": {}},
		entities:  map[string]*Entity{},
	}
}

func (h *fakeHost) env() Env {
	return Env{
		ActorConnectedFn: func(id string) bool { return h.connected[id] },
		HasPermissionFn:  func(id string) bool { return h.perm[id] },
		FrameFn: func(id string) *frames.Frame {
			f, _ := h.frames.Peek(id)
			return f
		},
		InventoryAmountFn: func(id, item string) int { return h.inv[id][item] },
		InventoryTakeFn:   func(id, item string, n int) { h.inv[id][item] -= n },
		SpawnFn: func(spec SpawnSpec) (Entity, bool) {
			h.spawned = append(h.spawned, spec)
			return h.add(spec), true
		},
		BlocksNearFn: func(p geom.Point3, r float64) []Entity {
			var out []Entity
			for _, e := range h.entities {
				if geom.Distance(e.Pose.Position, p) <= r {
					out = append(out, *e)
				}
			}
			return out
		},
		SetGradeFn: func(id string, g catalogs.Grade) (Entity, bool) {
			e, ok := h.entities[id]
			if !ok {
				return Entity{}, false
			}
			h.gradeSets++
			e.Grade = g
			e.Health = 1000
			return *e, true
		},
		BroadcastFn: func(e Entity, _ string) { h.broadcasts = append(h.broadcasts, e) },
		ReportFn: func(actor, code, msg string) {
			h.reports = append(h.reports, report{actor, code, msg})
		},
		AuditFn: func(_ uint64, _ string, action string, _ Entity, _ string) {
			h.audits = append(h.audits, action)
		},
	}
}

func (h *fakeHost) add(spec SpawnSpec) Entity {
	h.nextID++
	e := Entity{
		ID:      fmt.Sprintf("E%06d", h.nextID),
		Prefab:  spec.Prefab,
		Kind:    spec.Kind,
		OwnerID: spec.OwnerID,
		Skin:    spec.Skin,
		Grade:   spec.Grade,
		Health:  spec.Health,
		Pose:    spec.Pose,
	}
	h.entities[e.ID] = &e
	return e
}

func (h *fakeHost) setFrame(actor string, center geom.Point3, orient geom.Rotation3, g symmetry.GroupType) *frames.Frame {
	f := h.frames.Get(actor)
	f.SetCenter(center, orient)
	f.Group = g
	f.Enabled = true
	return f
}

func loadCatalogs(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	c, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	return c
}

func stoneFoundation(h *fakeHost, pos geom.Point3) Entity {
	return h.add(SpawnSpec{
		Prefab:  "foundation",
		Kind:    catalogs.KindBlock,
		OwnerID: "A1",
		Grade:   catalogs.GradeStone,
		Health:  500,
		Pose:    geom.Pose{Position: pos, Rotation: geom.Identity()},
	})
}

func newScheduler(t *testing.T, h *fakeHost) (*Scheduler, *tasks.Queue) {
	q := tasks.NewQueue()
	return &Scheduler{Env: h.env(), Queue: q, Catalog: loadCatalogs(t)}, q
}


func hasPosition(es []Entity, p geom.Point3) bool {
	for _, e := range es {
		if e.Pose.Position.ApproxEqualThreshold(p, 1e-6) {
			return true
		}
	}
	return false
}

func TestScheduler_FullResourcesCreatesAllCopies(t *testing.T) {
	h := newFakeHost()
	h.inv["A1"]["stones"] = 10000
	center := geom.Point3{100, 0, 100}
	h.setFrame("A1", center, geom.Identity(), symmetry.Rotational4)
	s, q := newScheduler(t, h)

	var got Outcome
	s.OnOutcome = func(_ BuildOperation, out Outcome) { got = out }

	orig := stoneFoundation(h, center.Add(geom.Point3{6, 0, 0}))
	if id := s.OnEntityBuilt(10, "A1", orig); id == "" {
		t.Fatalf("expected a scheduled task")
	}
	if r := q.Drain(10, nil); r.Ran != 0 || len(h.spawned) != 0 {
		t.Fatalf("copies must not spawn before the delay")
	}
	if r := q.Drain(11, nil); r.Ran != 1 {
		t.Fatalf("drain=%+v", r)
	}

	if len(got.Created) != 3 || got.Skipped != 0 || got.Aborted {
		t.Fatalf("outcome=%+v", got)
	}
	for _, p := range []geom.Point3{
		center.Add(geom.Point3{0, 0, 6}),
		center.Add(geom.Point3{-6, 0, 0}),
		center.Add(geom.Point3{0, 0, -6}),
	} {
		if !hasPosition(got.Created, p) {
			t.Fatalf("missing copy at %v", p)
		}
	}
	for _, e := range got.Created {
		if e.Prefab != "foundation" || e.OwnerID != "A1" || e.Grade != catalogs.GradeStone || e.Health != 500 {
			t.Fatalf("copy attributes differ: %+v", e)
		}
	}
	if h.inv["A1"]["stones"] != 10000-3*300 {
		t.Fatalf("stones=%d", h.inv["A1"]["stones"])
	}
	if len(h.broadcasts) != 3 || len(h.audits) != 3 || h.audits[0] != ActionCopy {
		t.Fatalf("broadcasts=%d audits=%v", len(h.broadcasts), h.audits)
	}
	if len(h.reports) != 0 {
		t.Fatalf("unexpected reports: %v", h.reports)
	}
}

func TestScheduler_PartialResourcesSkipsCopies(t *testing.T) {
	h := newFakeHost()
	h.inv["A1"]["stones"] = 600
	h.setFrame("A1", geom.Point3{}, geom.Identity(), symmetry.Rotational4)
	s, _ := newScheduler(t, h)

	op, ok := s.Capture("A1", stoneFoundation(h, geom.Point3{3, 0, 3}))
	if !ok {
		t.Fatalf("capture failed")
	}
	out := s.Execute(2, op)
	if len(out.Created) != 2 || out.Skipped != 1 {
		t.Fatalf("outcome=%+v", out)
	}
	if h.inv["A1"]["stones"] != 0 {
		t.Fatalf("stones=%d", h.inv["A1"]["stones"])
	}
	if len(h.reports) != 1 || h.reports[0].code != protocol.ErrNoResource || h.reports[0].actor != "A1" {
		t.Fatalf("reports=%v", h.reports)
	}
	skips := 0
	for _, a := range h.audits {
		if a == ActionSkip {
			skips++
		}
	}
	if skips != 1 {
		t.Fatalf("audits=%v", h.audits)
	}
}

func TestScheduler_EmptyCostIsFree(t *testing.T) {
	h := newFakeHost()
	h.setFrame("A1", geom.Point3{}, geom.Identity(), symmetry.Rotational3)
	s, _ := newScheduler(t, h)

	op, ok := s.Capture("A1", stoneFoundation(h, geom.Point3{0, 0, 4}))
	if !ok {
		t.Fatalf("capture failed")
	}
	op.Cost = nil
	if out := s.Execute(1, op); len(out.Created) != 2 || out.Skipped != 0 {
		t.Fatalf("outcome=%+v", out)
	}
}

func TestScheduler_DisconnectedActorAborts(t *testing.T) {
	h := newFakeHost()
	h.inv["A1"]["stones"] = 10000
	h.setFrame("A1", geom.Point3{}, geom.Identity(), symmetry.Rotational6)
	s, q := newScheduler(t, h)

	s.OnEntityBuilt(1, "A1", stoneFoundation(h, geom.Point3{5, 0, 0}))
	h.connected["A1"] = false

	r := q.Drain(2, func(id string) bool { return h.connected[id] })
	if r.Aborted != 1 || r.Ran != 0 {
		t.Fatalf("drain=%+v", r)
	}

	// Executing directly performs the same check.
	op := BuildOperation{ActorID: "A1", Prefab: "foundation", Kind: catalogs.KindBlock, Health: 1,
		Generators: []symmetry.Generator{symmetry.Rotation(180)}}
	if out := s.Execute(3, op); !out.Aborted || len(out.Created) != 0 {
		t.Fatalf("outcome=%+v", out)
	}
	if len(h.spawned) != 0 || h.inv["A1"]["stones"] != 10000 || len(h.reports) != 0 {
		t.Fatalf("aborted task mutated state")
	}
}

func TestScheduler_FrameEditsAfterCaptureAreIgnored(t *testing.T) {
	h := newFakeHost()
	h.inv["A1"]["stones"] = 10000
	f := h.setFrame("A1", geom.Point3{}, geom.Identity(), symmetry.Rotational2)
	s, q := newScheduler(t, h)

	s.OnEntityBuilt(1, "A1", stoneFoundation(h, geom.Point3{4, 0, 0}))
	f.Group = symmetry.Rotational6
	f.SetCenter(geom.Point3{50, 0, 50}, geom.Yaw(30))
	q.Drain(2, nil)

	if len(h.spawned) != 1 || !h.spawned[0].Pose.Position.ApproxEqualThreshold(geom.Point3{-4, 0, 0}, 1e-6) {
		t.Fatalf("spawned=%+v", h.spawned)
	}
}

func TestScheduler_Eligibility(t *testing.T) {
	cases := []struct {
		name  string
		setup func(h *fakeHost) Entity
	}{
		{"disabled frame", func(h *fakeHost) Entity {
			h.setFrame("A1", geom.Point3{}, geom.Identity(), symmetry.Rotational4).Enabled = false
			return stoneFoundation(h, geom.Point3{1, 0, 0})
		}},
		{"no center", func(h *fakeHost) Entity {
			h.setFrame("A1", geom.Point3{}, geom.Identity(), symmetry.Rotational4).ClearCenter()
			return stoneFoundation(h, geom.Point3{1, 0, 0})
		}},
		{"no permission", func(h *fakeHost) Entity {
			h.setFrame("A1", geom.Point3{}, geom.Identity(), symmetry.Rotational4)
			h.perm["A1"] = false
			return stoneFoundation(h, geom.Point3{1, 0, 0})
		}},
		{"deployable", func(h *fakeHost) Entity {
			h.setFrame("A1", geom.Point3{}, geom.Identity(), symmetry.Rotational4)
			return h.add(SpawnSpec{Prefab: "box.wooden.large", Kind: catalogs.KindDeployable, OwnerID: "A1", Health: 100})
		}},
		{"zero health", func(h *fakeHost) Entity {
			h.setFrame("A1", geom.Point3{}, geom.Identity(), symmetry.Rotational4)
			e := stoneFoundation(h, geom.Point3{1, 0, 0})
			e.Health = 0
			return e
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newFakeHost()
			s, q := newScheduler(t, h)
			e := tc.setup(h)
			if id := s.OnEntityBuilt(1, "A1", e); id != "" || q.Len() != 0 {
				t.Fatalf("expected nothing scheduled, got %q", id)
			}
		})
	}
}

func TestScheduler_MirroredDoorGetsHalfTurn(t *testing.T) {
	h := newFakeHost()
	h.inv["A1"]["wood"] = 1000
	h.setFrame("A1", geom.Point3{}, geom.Identity(), symmetry.Mirror2)
	s, _ := newScheduler(t, h)

	door := h.add(SpawnSpec{
		Prefab:  "door.hinged.wood",
		Kind:    catalogs.KindDoor,
		OwnerID: "A1",
		Skin:    42,
		Health:  200,
		Pose:    geom.Pose{Position: geom.Point3{0, 0, 6}, Rotation: geom.Identity()},
	})
	op, ok := s.Capture("A1", door)
	if !ok {
		t.Fatalf("capture failed")
	}
	if op.Grade != "" || len(op.Cost) == 0 {
		t.Fatalf("door op grade=%q cost=%v", op.Grade, op.Cost)
	}
	out := s.Execute(1, op)
	if len(out.Created) != 1 {
		t.Fatalf("outcome=%+v", out)
	}
	c := out.Created[0]
	if !c.Pose.Position.ApproxEqualThreshold(geom.Point3{0, 0, -6}, 1e-6) {
		t.Fatalf("door copy at %v", c.Pose.Position)
	}
	if !geom.SameOrientation(c.Pose.Rotation, geom.Yaw(180), 1e-6) {
		t.Fatalf("door copy rotation %v", c.Pose.Rotation)
	}
	if c.Skin != 42 {
		t.Fatalf("skin=%d", c.Skin)
	}
}

func TestScheduler_RotatedFrame(t *testing.T) {
	h := newFakeHost()
	h.inv["A1"]["stones"] = 10000
	center := geom.Point3{10, 0, 10}
	h.setFrame("A1", center, geom.Yaw(45), symmetry.Rotational2)
	s, _ := newScheduler(t, h)

	orig := stoneFoundation(h, center.Add(geom.Point3{3, 0, 4}))
	op, _ := s.Capture("A1", orig)
	out := s.Execute(1, op)
	if len(out.Created) != 1 || !hasPosition(out.Created, center.Add(geom.Point3{-3, 0, -4})) {
		t.Fatalf("outcome=%+v", out)
	}
}

func newUpgrader(h *fakeHost) (*Upgrader, *tasks.Queue) {
	q := tasks.NewQueue()
	return &Upgrader{Env: h.env(), Queue: q}, q
}

func TestUpgrader_SyncsCounterparts(t *testing.T) {
	h := newFakeHost()
	h.setFrame("A1", geom.Point3{}, geom.Identity(), symmetry.Rotational4)
	orig := stoneFoundation(h, geom.Point3{6, 0, 0})
	stoneFoundation(h, geom.Point3{0, 0, 6.05})
	stoneFoundation(h, geom.Point3{-6, 0, 0})
	stoneFoundation(h, geom.Point3{0, 0, -6})
	u, q := newUpgrader(h)

	if id := u.OnBlockUpgraded(5, "A1", orig, catalogs.GradeMetal); id == "" {
		t.Fatalf("expected a scheduled task")
	}
	q.Drain(6, nil)

	if h.gradeSets != 3 || len(h.broadcasts) != 3 {
		t.Fatalf("gradeSets=%d broadcasts=%d", h.gradeSets, len(h.broadcasts))
	}
	for _, e := range h.broadcasts {
		if e.Grade != catalogs.GradeMetal || e.Health != 1000 {
			t.Fatalf("counterpart not regraded: %+v", e)
		}
	}
	if len(h.audits) != 3 || h.audits[0] != ActionUpgrade {
		t.Fatalf("audits=%v", h.audits)
	}
}

func TestUpgrader_NoCounterpartIsSilent(t *testing.T) {
	h := newFakeHost()
	h.setFrame("A1", geom.Point3{}, geom.Identity(), symmetry.Mirror4)
	orig := stoneFoundation(h, geom.Point3{3, 0, 5})
	// Inside the lookup radius but outside the match distance.
	stoneFoundation(h, geom.Point3{3.3, 0, -5})
	u, _ := newUpgrader(h)

	op, ok := u.Capture("A1", orig, catalogs.GradeMetal)
	if !ok {
		t.Fatalf("capture failed")
	}
	out := u.Execute(1, op)
	if len(out.Synced) != 0 || out.Missing != 3 {
		t.Fatalf("outcome=%+v", out)
	}
	if h.gradeSets != 0 || len(h.broadcasts) != 0 || len(h.reports) != 0 || len(h.spawned) != 0 {
		t.Fatalf("unexpected mutations")
	}
}

func TestUpgrader_SameGradeSkipped(t *testing.T) {
	h := newFakeHost()
	h.setFrame("A1", geom.Point3{}, geom.Identity(), symmetry.Rotational2)
	orig := stoneFoundation(h, geom.Point3{6, 0, 0})
	stoneFoundation(h, geom.Point3{-6, 0, 0})
	u, _ := newUpgrader(h)

	op, _ := u.Capture("A1", orig, catalogs.GradeStone)
	if out := u.Execute(1, op); len(out.Synced) != 0 || h.gradeSets != 0 {
		t.Fatalf("outcome=%+v", out)
	}
}

func TestUpgrader_RequiresOwnedBlock(t *testing.T) {
	h := newFakeHost()
	h.setFrame("A1", geom.Point3{}, geom.Identity(), symmetry.Rotational2)
	other := stoneFoundation(h, geom.Point3{6, 0, 0})
	other.OwnerID = "B2"
	u, q := newUpgrader(h)
	if id := u.OnBlockUpgraded(1, "A1", other, catalogs.GradeMetal); id != "" || q.Len() != 0 {
		t.Fatalf("foreign block should not sync")
	}
}

func TestUpgrader_DisconnectedActorAborts(t *testing.T) {
	h := newFakeHost()
	h.setFrame("A1", geom.Point3{}, geom.Identity(), symmetry.Rotational2)
	orig := stoneFoundation(h, geom.Point3{6, 0, 0})
	stoneFoundation(h, geom.Point3{-6, 0, 0})
	u, _ := newUpgrader(h)

	op, _ := u.Capture("A1", orig, catalogs.GradeMetal)
	h.connected["A1"] = false
	if out := u.Execute(1, op); !out.Aborted || h.gradeSets != 0 {
		t.Fatalf("outcome=%+v", out)
	}
}
