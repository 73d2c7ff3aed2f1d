package replicate

import (
	"math"

	"github.com/rs/zerolog"

	"symcraft.ai/internal/sim/catalogs"
	"symcraft.ai/internal/sim/frames"
	"symcraft.ai/internal/sim/geom"
	"symcraft.ai/internal/sim/symmetry"
	"symcraft.ai/internal/sim/tasks"
)

const (
	DefaultLookupRadius  = 0.5
	DefaultMatchDistance = 0.1
)

// UpgradeOperation carries a block upgrade to its symmetric counterparts.
type UpgradeOperation struct {
	ActorID    string
	BlockID    string
	Grade      catalogs.Grade
	Local      geom.Pose
	Frame      frames.Snapshot
	Generators []symmetry.Generator
}

// UpgradeOutcome of one executed UpgradeOperation.
type UpgradeOutcome struct {
	Synced  []Entity
	Missing int
	Aborted bool
}

type Upgrader struct {
	Env           Env
	Queue         *tasks.Queue
	DelayTicks    int
	LookupRadius  float64
	MatchDistance float64
	Logger        zerolog.Logger
	Metrics       Metrics
}

func (u *Upgrader) delay() uint64 {
	if u.DelayTicks > 0 {
		return uint64(u.DelayTicks)
	}
	return DefaultDelayTicks
}

func (u *Upgrader) lookupRadius() float64 {
	if u.LookupRadius > 0 {
		return u.LookupRadius
	}
	return DefaultLookupRadius
}

func (u *Upgrader) matchDistance() float64 {
	if u.MatchDistance > 0 {
		return u.MatchDistance
	}
	return DefaultMatchDistance
}

// Capture builds the operation for an upgraded block. Only blocks the actor
// owns are carried over.
func (u *Upgrader) Capture(actorID string, block Entity, grade catalogs.Grade) (UpgradeOperation, bool) {
	f, ok := eligibleFrame(u.Env, actorID)
	if !ok {
		return UpgradeOperation{}, false
	}
	if block.Kind != catalogs.KindBlock || block.OwnerID != actorID || !grade.Valid() {
		return UpgradeOperation{}, false
	}
	snap := f.Snapshot()
	gens, err := symmetry.Generators(snap.Group)
	if err != nil {
		return UpgradeOperation{}, false
	}
	return UpgradeOperation{
		ActorID:    actorID,
		BlockID:    block.ID,
		Grade:      grade,
		Local:      snap.Frame.ToLocal(block.Pose),
		Frame:      snap,
		Generators: gens,
	}, true
}

// OnBlockUpgraded is the upgrade hook. It returns the scheduled task id, or
// "" when nothing was scheduled.
func (u *Upgrader) OnBlockUpgraded(nowTick uint64, actorID string, block Entity, grade catalogs.Grade) string {
	op, ok := u.Capture(actorID, block, grade)
	if !ok || u.Queue == nil {
		return ""
	}
	return u.Queue.Schedule(u.Task(op, nowTick+u.delay()))
}

func (u *Upgrader) Task(op UpgradeOperation, dueTick uint64) tasks.Task {
	return tasks.Task{
		Kind:    tasks.KindSyncUpgrade,
		OwnerID: op.ActorID,
		DueTick: dueTick,
		Payload: op,
		Run: func(now uint64) {
			u.Execute(now, op)
		},
	}
}

// Execute regrades the block found at each symmetric position. Positions
// without a block, or whose block already has the grade, are skipped
// silently. No entity is ever created.
func (u *Upgrader) Execute(nowTick uint64, op UpgradeOperation) UpgradeOutcome {
	m := metricsOrNop(u.Metrics)
	var out UpgradeOutcome
	if !u.Env.ActorConnected(op.ActorID) {
		out.Aborted = true
		m.TaskAborted(string(tasks.KindSyncUpgrade))
		return out
	}

	points := symmetry.TransformPoint(op.Frame.Frame, op.Local.Position, op.Generators)
	for _, p := range points {
		target, ok := u.counterpart(p, op.BlockID)
		if !ok {
			out.Missing++
			continue
		}
		if target.Grade == op.Grade {
			continue
		}
		ent, ok := u.Env.SetGrade(target.ID, op.Grade)
		if !ok {
			out.Missing++
			continue
		}
		out.Synced = append(out.Synced, ent)
		m.UpgradeSynced()
		u.Env.Broadcast(ent, ActionUpgrade)
		u.Env.Audit(nowTick, op.ActorID, ActionUpgrade, ent, "")
	}
	u.Logger.Debug().
		Str("actor", op.ActorID).
		Str("block", op.BlockID).
		Str("grade", string(op.Grade)).
		Int("synced", len(out.Synced)).
		Int("missing", out.Missing).
		Msg("upgrade sync done")
	return out
}

// counterpart finds the nearest structural block to p within the match
// distance, ignoring the original block.
func (u *Upgrader) counterpart(p geom.Point3, originID string) (Entity, bool) {
	best := Entity{}
	bestDist := math.Inf(1)
	for _, e := range u.Env.BlocksNear(p, u.lookupRadius()) {
		if e.Kind != catalogs.KindBlock || e.ID == originID {
			continue
		}
		d := geom.Distance(e.Pose.Position, p)
		if d < u.matchDistance() && d < bestDist {
			best, bestDist = e, d
		}
	}
	return best, !math.IsInf(bestDist, 1)
}
