package world

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"symcraft.ai/internal/persistence/snapshot"
	"symcraft.ai/internal/sim/catalogs"
	"symcraft.ai/internal/sim/frames"
	"symcraft.ai/internal/sim/geom"
	"symcraft.ai/internal/sim/replicate"
	"symcraft.ai/internal/sim/symmetry"
	"symcraft.ai/internal/sim/tasks"
)

func (w *World) ExportSnapshot(nowTick uint64) snapshot.SnapshotV1 {
	ids := make([]string, 0, len(w.actors))
	for id := range w.actors {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	actors := make([]snapshot.ActorV1, 0, len(ids))
	for _, id := range ids {
		a := w.actors[id]
		inv := make(map[string]int, len(a.Inventory))
		for k, v := range a.Inventory {
			inv[k] = v
		}
		sa := snapshot.ActorV1{
			ID:          a.ID,
			Name:        a.Name,
			Permissions: a.permissionList(),
			Eye:         vecToWire(a.Eye),
			Look:        vecToWire(a.Look),
			Inventory:   inv,
			Connected:   a.Connected,
		}
		if f, ok := w.frames.Peek(id); ok {
			sa.Frame = &snapshot.FrameV1{
				Center:      vecToWire(f.Center),
				Orientation: quatToWire(f.Orientation),
				HasCenter:   f.HasCenter,
				Group:       f.Group.String(),
				Enabled:     f.Enabled,
				ViewVisible: f.ViewVisible,
			}
		}
		actors = append(actors, sa)
	}

	entityIDs := w.sortedEntityIDs()
	entities := make([]snapshot.EntityV1, 0, len(entityIDs))
	for _, id := range entityIDs {
		e := w.entities[id]
		entities = append(entities, snapshot.EntityV1{
			ID:          e.ID,
			Prefab:      e.Prefab,
			Kind:        string(e.Kind),
			OwnerID:     e.OwnerID,
			Skin:        e.Skin,
			Grade:       string(e.Grade),
			Health:      e.Health,
			MaxHealth:   e.MaxHealth,
			Pos:         vecToWire(e.Pose.Position),
			Rot:         quatToWire(e.Pose.Rotation),
			CreatedTick: e.CreatedTick,
		})
	}

	starter := make(map[string]int, len(w.cfg.StarterItems))
	for k, v := range w.cfg.StarterItems {
		starter[k] = v
	}
	return snapshot.SnapshotV1{
		Header:             snapshot.Header{Version: snapshot.Version, WorldID: w.cfg.ID, Tick: nowTick},
		TickRate:           w.cfg.TickRateHz,
		SnapshotEveryTicks: w.cfg.SnapshotEveryTicks,
		StarterItems:       starter,
		Actors:             actors,
		Entities:           entities,
		Tasks:              w.exportTasks(),
		Counters: snapshot.CountersV1{
			NextActor:  w.nextActorNum.Load(),
			NextEntity: w.nextEntityNum.Load(),
			NextTask:   w.queue.NextSeq(),
		},
	}
}

func (w *World) exportTasks() []snapshot.TaskV1 {
	pending := w.queue.Pending()
	out := make([]snapshot.TaskV1, 0, len(pending))
	for _, t := range pending {
		st := snapshot.TaskV1{ID: t.TaskID, Kind: string(t.Kind), OwnerID: t.OwnerID, DueTick: t.DueTick}
		switch op := t.Payload.(type) {
		case replicate.BuildOperation:
			cost := make([]snapshot.ItemCountV1, 0, len(op.Cost))
			for _, c := range op.Cost {
				cost = append(cost, snapshot.ItemCountV1{Item: c.Item, Count: c.Count})
			}
			st.Build = &snapshot.BuildTaskV1{
				Prefab: op.Prefab,
				Kind:   string(op.Kind),
				Skin:   op.Skin,
				Health: op.Health,
				Grade:  string(op.Grade),
				Cost:   cost,
				Pos:    vecToWire(op.Local.Position),
				Rot:    quatToWire(op.Local.Rotation),
				Frame:  frameRefToWire(op.Frame),
			}
		case replicate.UpgradeOperation:
			st.Upgrade = &snapshot.UpgradeTaskV1{
				BlockID: op.BlockID,
				Grade:   string(op.Grade),
				Pos:     vecToWire(op.Local.Position),
				Rot:     quatToWire(op.Local.Rotation),
				Frame:   frameRefToWire(op.Frame),
			}
		default:
			w.log.Warn().Str("task", t.TaskID).Msg("pending task without a snapshot payload")
			continue
		}
		out = append(out, st)
	}
	return out
}

func frameRefToWire(s frames.Snapshot) snapshot.FrameRefV1 {
	return snapshot.FrameRefV1{
		Center:      vecToWire(s.Frame.Center),
		Orientation: quatToWire(s.Frame.Orientation),
		Group:       s.Group.String(),
	}
}

func frameRefFromWire(r snapshot.FrameRefV1) (frames.Snapshot, []symmetry.Generator, error) {
	g, err := symmetry.ParseGroupType(r.Group)
	if err != nil {
		return frames.Snapshot{}, nil, err
	}
	gens, err := symmetry.Generators(g)
	if err != nil {
		return frames.Snapshot{}, nil, err
	}
	snap := frames.Snapshot{
		Frame: geom.Frame{Center: vecFromWire(r.Center), Orientation: quatFromSnapshot(r.Orientation)},
		Group: g,
	}
	return snap, gens, nil
}

// quatFromSnapshot restores a stored rotation bit for bit. Stored rotations
// were normalized before they were written.
func quatFromSnapshot(r [4]float64) geom.Rotation3 {
	return geom.Rotation3{W: r[3], V: geom.Point3{r[0], r[1], r[2]}}
}

// ImportSnapshot replaces the world state for a server restart. Restored
// actors start disconnected; frames and pending tasks are dropped. Must be
// called before Run.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) error {
	return w.importSnapshot(s, false)
}

// ResumeSnapshot restores the world exactly as it was at the snapshot tick,
// session state included, so recorded ticks can be replayed on top of it.
func (w *World) ResumeSnapshot(s snapshot.SnapshotV1) error {
	return w.importSnapshot(s, true)
}

func (w *World) importSnapshot(s snapshot.SnapshotV1, resume bool) error {
	if s.Header.Version != snapshot.Version {
		return fmt.Errorf("%w: %d", snapshot.ErrVersion, s.Header.Version)
	}
	if s.Header.WorldID != "" && w.cfg.ID != "" && s.Header.WorldID != w.cfg.ID {
		return fmt.Errorf("snapshot world %q does not match %q", s.Header.WorldID, w.cfg.ID)
	}

	actors := make(map[string]*Actor, len(s.Actors))
	fs := frames.NewStoreWithGroup(w.cfg.DefaultGroup)
	for _, sa := range s.Actors {
		if sa.ID == "" {
			return errors.New("snapshot actor without id")
		}
		inv := map[string]int{}
		for k, v := range sa.Inventory {
			if v > 0 {
				inv[k] = v
			}
		}
		actors[sa.ID] = &Actor{
			ID:          sa.ID,
			Name:        sa.Name,
			Permissions: permissionSet(sa.Permissions),
			Eye:         vecFromWire(sa.Eye),
			Look:        vecFromWire(sa.Look),
			Inventory:   inv,
			Connected:   resume && sa.Connected,
		}
		if !resume || sa.Frame == nil {
			continue
		}
		g, err := symmetry.ParseGroupType(sa.Frame.Group)
		if err != nil {
			return fmt.Errorf("snapshot actor %s frame: %w", sa.ID, err)
		}
		fs.Put(sa.ID, frames.Frame{
			Center:      vecFromWire(sa.Frame.Center),
			Orientation: quatFromSnapshot(sa.Frame.Orientation),
			HasCenter:   sa.Frame.HasCenter,
			Group:       g,
			Enabled:     sa.Frame.Enabled,
			ViewVisible: sa.Frame.ViewVisible,
		})
	}
	entities := make(map[string]*Entity, len(s.Entities))
	for _, se := range s.Entities {
		kind := catalogs.Kind(se.Kind)
		if !kind.Valid() {
			return fmt.Errorf("snapshot entity %s: unknown kind %q", se.ID, se.Kind)
		}
		entities[se.ID] = &Entity{
			ID:          se.ID,
			Prefab:      se.Prefab,
			Kind:        kind,
			OwnerID:     se.OwnerID,
			Skin:        se.Skin,
			Grade:       catalogs.Grade(se.Grade),
			Health:      se.Health,
			MaxHealth:   se.MaxHealth,
			Pose:        geom.Pose{Position: vecFromWire(se.Pos), Rotation: quatFromSnapshot(se.Rot)},
			CreatedTick: se.CreatedTick,
		}
	}
	var pending []tasks.Task
	if resume {
		var err error
		if pending, err = w.restoreTasks(s.Tasks); err != nil {
			return err
		}
	}

	if s.TickRate > 0 {
		w.cfg.TickRateHz = s.TickRate
	}
	if s.SnapshotEveryTicks > 0 {
		w.cfg.SnapshotEveryTicks = s.SnapshotEveryTicks
	}
	if s.StarterItems != nil {
		w.cfg.StarterItems = s.StarterItems
	}
	w.actors = actors
	w.entities = entities
	w.clients = map[string]*clientState{}
	w.frames = fs
	w.detector.Frames = fs
	w.queue.Restore(pending, s.Counters.NextTask)
	w.nextActorNum.Store(s.Counters.NextActor)
	w.nextEntityNum.Store(s.Counters.NextEntity)
	w.tick.Store(s.Header.Tick + 1)
	return nil
}

func (w *World) restoreTasks(in []snapshot.TaskV1) ([]tasks.Task, error) {
	out := make([]tasks.Task, 0, len(in))
	for _, st := range in {
		var t tasks.Task
		switch {
		case st.Build != nil:
			b := st.Build
			fr, gens, err := frameRefFromWire(b.Frame)
			if err != nil {
				return nil, fmt.Errorf("snapshot task %s: %w", st.ID, err)
			}
			cost := make([]catalogs.ItemCount, 0, len(b.Cost))
			for _, c := range b.Cost {
				cost = append(cost, catalogs.ItemCount{Item: c.Item, Count: c.Count})
			}
			t = w.scheduler.Task(replicate.BuildOperation{
				ActorID:    st.OwnerID,
				Prefab:     b.Prefab,
				Kind:       catalogs.Kind(b.Kind),
				Skin:       b.Skin,
				Health:     b.Health,
				Grade:      catalogs.Grade(b.Grade),
				Cost:       cost,
				Local:      geom.Pose{Position: vecFromWire(b.Pos), Rotation: quatFromSnapshot(b.Rot)},
				Frame:      fr,
				Generators: gens,
			}, st.DueTick)
		case st.Upgrade != nil:
			u := st.Upgrade
			fr, gens, err := frameRefFromWire(u.Frame)
			if err != nil {
				return nil, fmt.Errorf("snapshot task %s: %w", st.ID, err)
			}
			t = w.upgrader.Task(replicate.UpgradeOperation{
				ActorID:    st.OwnerID,
				BlockID:    u.BlockID,
				Grade:      catalogs.Grade(u.Grade),
				Local:      geom.Pose{Position: vecFromWire(u.Pos), Rotation: quatFromSnapshot(u.Rot)},
				Frame:      fr,
				Generators: gens,
			}, st.DueTick)
		default:
			return nil, fmt.Errorf("snapshot task %s has no payload", st.ID)
		}
		t.TaskID = st.ID
		out = append(out, t)
	}
	return out, nil
}

type adminSnapshotReq struct {
	Resp chan adminSnapshotResp
}

type adminSnapshotResp struct {
	Tick uint64
	Err  string
}

// RequestSnapshot asks the world loop goroutine to enqueue a snapshot.
// It is safe to call from other goroutines (e.g. HTTP handlers).
func (w *World) RequestSnapshot(ctx context.Context) (tick uint64, err error) {
	if w == nil || w.admin == nil {
		return 0, errors.New("admin snapshot not available")
	}
	resp := make(chan adminSnapshotResp, 1)
	req := adminSnapshotReq{Resp: resp}

	select {
	case w.admin <- req:
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	select {
	case r := <-resp:
		if r.Err != "" {
			return r.Tick, errors.New(r.Err)
		}
		return r.Tick, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (w *World) handleAdminSnapshotRequests(reqs []adminSnapshotReq) {
	if w == nil || len(reqs) == 0 {
		return
	}
	cur := w.tick.Load()
	snapTick := uint64(0)
	if cur > 0 {
		snapTick = cur - 1
	}

	errStr := ""
	if w.snapshotSink == nil {
		errStr = "snapshot sink not configured"
	} else {
		snap := w.ExportSnapshot(snapTick)
		select {
		case w.snapshotSink <- snap:
		default:
			errStr = "snapshot sink backpressure"
		}
	}

	resp := adminSnapshotResp{Tick: snapTick, Err: errStr}
	for _, r := range reqs {
		if r.Resp == nil {
			continue
		}
		select {
		case r.Resp <- resp:
		default:
			// Client timed out; don't block the sim loop.
		}
	}
}
