package world

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"symcraft.ai/internal/sim/catalogs"
	"symcraft.ai/internal/sim/geom"
	"symcraft.ai/internal/sim/replicate"
)

type Entity struct {
	ID          string
	Prefab      string
	Kind        catalogs.Kind
	OwnerID     string
	Skin        uint64
	Grade       catalogs.Grade
	Health      float64
	MaxHealth   float64
	Pose        geom.Pose
	CreatedTick uint64
}

func (e *Entity) view() replicate.Entity {
	return replicate.Entity{
		ID:      e.ID,
		Prefab:  e.Prefab,
		Kind:    e.Kind,
		OwnerID: e.OwnerID,
		Skin:    e.Skin,
		Grade:   e.Grade,
		Health:  e.Health,
		Pose:    e.Pose,
	}
}

func (w *World) newEntityID() string {
	n := w.nextEntityNum.Add(1)
	return fmt.Sprintf("E%06d", n)
}

func (w *World) spawn(prefab string, kind catalogs.Kind, ownerID string, skin uint64, grade catalogs.Grade, health float64, pose geom.Pose) *Entity {
	maxHealth := w.catalogs.MaxHealth(prefab, grade)
	if maxHealth <= 0 {
		maxHealth = health
	}
	if health <= 0 || health > maxHealth {
		health = maxHealth
	}
	e := &Entity{
		ID:          w.newEntityID(),
		Prefab:      prefab,
		Kind:        kind,
		OwnerID:     ownerID,
		Skin:        skin,
		Grade:       grade,
		Health:      health,
		MaxHealth:   maxHealth,
		Pose:        geom.Pose{Position: pose.Position, Rotation: geom.NormalizeRotation(pose.Rotation)},
		CreatedTick: w.tick.Load(),
	}
	w.entities[e.ID] = e
	return e
}

// setGrade regrades a block and restores it to full health.
func (w *World) setGrade(entityID string, g catalogs.Grade) (*Entity, bool) {
	e := w.entities[entityID]
	if e == nil || e.Kind != catalogs.KindBlock || !g.Valid() {
		return nil, false
	}
	e.Grade = g
	e.MaxHealth = w.catalogs.MaxHealth(e.Prefab, g)
	e.Health = e.MaxHealth
	return e, true
}

func (w *World) sortedEntityIDs() []string {
	ids := make([]string, 0, len(w.entities))
	for id := range w.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// entitiesNear returns entities within radius of pos, ordered by id.
func (w *World) entitiesNear(pos geom.Point3, radius float64) []*Entity {
	var out []*Entity
	for _, id := range w.sortedEntityIDs() {
		e := w.entities[id]
		if geom.Distance(e.Pose.Position, pos) <= radius {
			out = append(out, e)
		}
	}
	return out
}

// raycast follows the actor's view ray and returns the nearest hit on an
// entity box or the ground plane y=0.
func (w *World) raycast(a *Actor) (geom.Point3, error) {
	dir := geom.NormalizeVec(a.Look)
	if dir.Len() == 0 {
		return geom.Point3{}, ErrNoSurface
	}
	best := math.Inf(1)
	if dir.Y() < -1e-9 && a.Eye.Y() >= 0 {
		best = -a.Eye.Y() / dir.Y()
	}
	h := mgl64.Vec3{w.cfg.EntityHalfExtent, w.cfg.EntityHalfExtent, w.cfg.EntityHalfExtent}
	for _, id := range w.sortedEntityIDs() {
		e := w.entities[id]
		if t, ok := rayBox(a.Eye, dir, e.Pose.Position.Sub(h), e.Pose.Position.Add(h)); ok && t < best {
			best = t
		}
	}
	if math.IsInf(best, 1) || best > w.cfg.RaycastRange {
		return geom.Point3{}, ErrNoSurface
	}
	return a.Eye.Add(dir.Mul(best)), nil
}

// rayBox is the slab test. It reports the entry distance, or 0 when the
// origin is inside the box.
func rayBox(origin, dir, lo, hi geom.Point3) (float64, bool) {
	tMin, tMax := math.Inf(-1), math.Inf(1)
	for i := 0; i < 3; i++ {
		if math.Abs(dir[i]) < 1e-12 {
			if origin[i] < lo[i] || origin[i] > hi[i] {
				return 0, false
			}
			continue
		}
		t1 := (lo[i] - origin[i]) / dir[i]
		t2 := (hi[i] - origin[i]) / dir[i]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tMin = math.Max(tMin, t1)
		tMax = math.Min(tMax, t2)
		if tMin > tMax {
			return 0, false
		}
	}
	if tMax < 0 {
		return 0, false
	}
	if tMin < 0 {
		return 0, true
	}
	return tMin, true
}

func vecToWire(v geom.Point3) [3]float64 { return [3]float64{v.X(), v.Y(), v.Z()} }

func vecFromWire(v [3]float64) geom.Point3 { return geom.Point3{v[0], v[1], v[2]} }

// Wire rotations are [x, y, z, w].
func quatToWire(q geom.Rotation3) [4]float64 {
	return [4]float64{q.V.X(), q.V.Y(), q.V.Z(), q.W}
}

func quatFromWire(r [4]float64) geom.Rotation3 {
	return geom.NormalizeRotation(mgl64.Quat{W: r[3], V: mgl64.Vec3{r[0], r[1], r[2]}})
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
