// Package replicate turns a single placement or upgrade into its symmetric
// counterparts. Work is captured synchronously when the triggering event
// happens and executed later from the tasks queue.
package replicate

import (
	"errors"

	"github.com/rs/zerolog"

	"symcraft.ai/internal/protocol"
	"symcraft.ai/internal/sim/catalogs"
	"symcraft.ai/internal/sim/frames"
	"symcraft.ai/internal/sim/geom"
	"symcraft.ai/internal/sim/symmetry"
	"symcraft.ai/internal/sim/tasks"
)

var ErrInsufficientResources = errors.New("insufficient resources for symmetric copy")

// Audit actions.
const (
	ActionCopy    = "SYM_COPY"
	ActionSkip    = "SYM_SKIP"
	ActionUpgrade = "SYM_UPGRADE"
)

const DefaultDelayTicks = 1

// BuildOperation is everything a replication task needs, captured when the
// original was placed.
type BuildOperation struct {
	ActorID    string
	Prefab     string
	Kind       catalogs.Kind
	Skin       uint64
	Health     float64
	Grade      catalogs.Grade
	Cost       []catalogs.ItemCount
	Local      geom.Pose
	Frame      frames.Snapshot
	Generators []symmetry.Generator
}

// Outcome of one executed BuildOperation.
type Outcome struct {
	Created []Entity
	Skipped int
	Aborted bool
}

type Scheduler struct {
	Env        Env
	Queue      *tasks.Queue
	Catalog    *catalogs.Catalogs
	DelayTicks int
	Logger     zerolog.Logger
	Metrics    Metrics

	// OnOutcome, if set, observes every executed operation.
	OnOutcome func(op BuildOperation, out Outcome)
}

func (s *Scheduler) delay() uint64 {
	if s.DelayTicks > 0 {
		return uint64(s.DelayTicks)
	}
	return DefaultDelayTicks
}

// eligibleFrame returns the actor's frame if hooks should fire for them.
func eligibleFrame(env Env, actorID string) (*frames.Frame, bool) {
	if !env.ActorConnected(actorID) || !env.HasPermission(actorID) {
		return nil, false
	}
	f := env.Frame(actorID)
	if !f.Active() {
		return nil, false
	}
	return f, true
}

// Capture builds the operation for a freshly placed entity. It reports false
// when the placement does not qualify for replication.
func (s *Scheduler) Capture(actorID string, e Entity) (BuildOperation, bool) {
	f, ok := eligibleFrame(s.Env, actorID)
	if !ok {
		return BuildOperation{}, false
	}
	if !e.Kind.Replicable() || e.Health <= 0 {
		return BuildOperation{}, false
	}
	snap := f.Snapshot()
	gens, err := symmetry.Generators(snap.Group)
	if err != nil {
		s.Logger.Warn().Err(err).Str("actor", actorID).Msg("frame has unsupported group")
		return BuildOperation{}, false
	}

	grade := catalogs.Grade("")
	if e.Kind == catalogs.KindBlock {
		grade = e.Grade
	}
	return BuildOperation{
		ActorID:    actorID,
		Prefab:     e.Prefab,
		Kind:       e.Kind,
		Skin:       e.Skin,
		Health:     e.Health,
		Grade:      grade,
		Cost:       s.Catalog.CostFor(e.Prefab, grade),
		Local:      snap.Frame.ToLocal(e.Pose),
		Frame:      snap,
		Generators: gens,
	}, true
}

// OnEntityBuilt is the placement hook. It returns the scheduled task id, or
// "" when nothing was scheduled.
func (s *Scheduler) OnEntityBuilt(nowTick uint64, actorID string, e Entity) string {
	op, ok := s.Capture(actorID, e)
	if !ok || s.Queue == nil {
		return ""
	}
	id := s.Queue.Schedule(s.Task(op, nowTick+s.delay()))
	s.Logger.Debug().
		Str("actor", actorID).
		Str("entity", e.ID).
		Str("prefab", e.Prefab).
		Str("group", op.Frame.Group.String()).
		Str("task", id).
		Msg("replication scheduled")
	return id
}

// Task wraps op as a queue entry due at dueTick.
func (s *Scheduler) Task(op BuildOperation, dueTick uint64) tasks.Task {
	return tasks.Task{
		Kind:    tasks.KindReplicate,
		OwnerID: op.ActorID,
		DueTick: dueTick,
		Payload: op,
		Run: func(now uint64) {
			s.Execute(now, op)
		},
	}
}

// Execute spawns every affordable copy of op. Each copy is paid and
// broadcast on its own; a copy the actor cannot afford is reported and
// skipped. Nothing is retried.
func (s *Scheduler) Execute(nowTick uint64, op BuildOperation) Outcome {
	m := metricsOrNop(s.Metrics)
	var out Outcome
	if !s.Env.ActorConnected(op.ActorID) {
		out.Aborted = true
		m.TaskAborted(string(tasks.KindReplicate))
		s.finish(op, out)
		return out
	}

	opts := symmetry.Options{Door: op.Kind == catalogs.KindDoor}
	poses := symmetry.TransformWorld(op.Frame.Frame, op.Local, op.Generators, opts)
	for _, pose := range poses {
		if err := s.pay(op.ActorID, op.Cost); err != nil {
			out.Skipped++
			m.CopySkipped("resources")
			s.Env.Report(op.ActorID, protocol.ErrNoResource, "not enough resources for a symmetric copy")
			s.Env.Audit(nowTick, op.ActorID, ActionSkip, Entity{Prefab: op.Prefab, Kind: op.Kind, OwnerID: op.ActorID, Pose: pose}, err.Error())
			continue
		}
		ent, ok := s.Env.Spawn(SpawnSpec{
			Prefab:  op.Prefab,
			Kind:    op.Kind,
			OwnerID: op.ActorID,
			Skin:    op.Skin,
			Grade:   op.Grade,
			Health:  op.Health,
			Pose:    pose,
		})
		if !ok {
			out.Skipped++
			m.CopySkipped("spawn")
			s.Logger.Warn().Str("actor", op.ActorID).Str("prefab", op.Prefab).Msg("spawn failed")
			continue
		}
		out.Created = append(out.Created, ent)
		m.CopyCreated(string(op.Kind))
		s.Env.Broadcast(ent, ActionCopy)
		s.Env.Audit(nowTick, op.ActorID, ActionCopy, ent, "")
	}
	s.finish(op, out)
	return out
}

func (s *Scheduler) finish(op BuildOperation, out Outcome) {
	s.Logger.Debug().
		Str("actor", op.ActorID).
		Str("prefab", op.Prefab).
		Int("created", len(out.Created)).
		Int("skipped", out.Skipped).
		Bool("aborted", out.Aborted).
		Msg("replication done")
	if s.OnOutcome != nil {
		s.OnOutcome(op, out)
	}
}

// pay debits cost only when every item is available.
func (s *Scheduler) pay(actorID string, cost []catalogs.ItemCount) error {
	if len(cost) == 0 {
		return nil
	}
	need := map[string]int{}
	for _, c := range cost {
		need[c.Item] += c.Count
	}
	for item, n := range need {
		if s.Env.InventoryAmount(actorID, item) < n {
			return ErrInsufficientResources
		}
	}
	for _, c := range cost {
		s.Env.InventoryTake(actorID, c.Item, c.Count)
	}
	return nil
}
