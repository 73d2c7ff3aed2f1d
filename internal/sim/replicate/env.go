package replicate

import (
	"symcraft.ai/internal/sim/catalogs"
	"symcraft.ai/internal/sim/frames"
	"symcraft.ai/internal/sim/geom"
)

// Entity is the host's view of a placed entity.
type Entity struct {
	ID      string
	Prefab  string
	Kind    catalogs.Kind
	OwnerID string
	Skin    uint64
	Grade   catalogs.Grade
	Health  float64
	Pose    geom.Pose
}

// SpawnSpec describes an entity to create.
type SpawnSpec struct {
	Prefab  string
	Kind    catalogs.Kind
	OwnerID string
	Skin    uint64
	Grade   catalogs.Grade
	Health  float64
	Pose    geom.Pose
}

// Env is the host surface the replication core runs against. Every function
// is optional; a nil function behaves as "nothing there".
type Env struct {
	ActorConnectedFn  func(actorID string) bool
	HasPermissionFn   func(actorID string) bool
	FrameFn           func(actorID string) *frames.Frame
	InventoryAmountFn func(actorID, item string) int
	InventoryTakeFn   func(actorID, item string, n int)
	SpawnFn           func(spec SpawnSpec) (Entity, bool)
	BlocksNearFn      func(pos geom.Point3, radius float64) []Entity
	SetGradeFn        func(entityID string, grade catalogs.Grade) (Entity, bool)
	BroadcastFn       func(e Entity, reason string)
	ReportFn          func(actorID, code, message string)
	AuditFn           func(nowTick uint64, actorID, action string, e Entity, reason string)
}

func (e Env) ActorConnected(actorID string) bool {
	if e.ActorConnectedFn == nil {
		return false
	}
	return e.ActorConnectedFn(actorID)
}

func (e Env) HasPermission(actorID string) bool {
	if e.HasPermissionFn == nil {
		return false
	}
	return e.HasPermissionFn(actorID)
}

func (e Env) Frame(actorID string) *frames.Frame {
	if e.FrameFn == nil {
		return nil
	}
	return e.FrameFn(actorID)
}

func (e Env) InventoryAmount(actorID, item string) int {
	if e.InventoryAmountFn == nil {
		return 0
	}
	return e.InventoryAmountFn(actorID, item)
}

func (e Env) InventoryTake(actorID, item string, n int) {
	if e.InventoryTakeFn == nil {
		return
	}
	e.InventoryTakeFn(actorID, item, n)
}

func (e Env) Spawn(spec SpawnSpec) (Entity, bool) {
	if e.SpawnFn == nil {
		return Entity{}, false
	}
	return e.SpawnFn(spec)
}

func (e Env) BlocksNear(pos geom.Point3, radius float64) []Entity {
	if e.BlocksNearFn == nil {
		return nil
	}
	return e.BlocksNearFn(pos, radius)
}

func (e Env) SetGrade(entityID string, grade catalogs.Grade) (Entity, bool) {
	if e.SetGradeFn == nil {
		return Entity{}, false
	}
	return e.SetGradeFn(entityID, grade)
}

func (e Env) Broadcast(ent Entity, reason string) {
	if e.BroadcastFn != nil {
		e.BroadcastFn(ent, reason)
	}
}

func (e Env) Report(actorID, code, message string) {
	if e.ReportFn != nil {
		e.ReportFn(actorID, code, message)
	}
}

func (e Env) Audit(nowTick uint64, actorID, action string, ent Entity, reason string) {
	if e.AuditFn != nil {
		e.AuditFn(nowTick, actorID, action, ent, reason)
	}
}

// Metrics receives replication counters. Implementations must tolerate
// being called from the world loop only.
type Metrics interface {
	CopyCreated(kind string)
	CopySkipped(reason string)
	TaskAborted(kind string)
	UpgradeSynced()
}

type nopMetrics struct{}

func (nopMetrics) CopyCreated(string) {}
func (nopMetrics) CopySkipped(string) {}
func (nopMetrics) TaskAborted(string) {}
func (nopMetrics) UpgradeSynced()     {}

func metricsOrNop(m Metrics) Metrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}
