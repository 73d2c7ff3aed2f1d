// Package world is the authoritative host for symmetry building. All state
// lives on the world loop goroutine; transports talk to it through channels.
package world

import (
	"sync/atomic"

	"github.com/rs/zerolog"

	"symcraft.ai/internal/observability"
	"symcraft.ai/internal/persistence/snapshot"
	"symcraft.ai/internal/sim/autodetect"
	"symcraft.ai/internal/sim/catalogs"
	"symcraft.ai/internal/sim/frames"
	"symcraft.ai/internal/sim/geom"
	"symcraft.ai/internal/sim/replicate"
	"symcraft.ai/internal/sim/tasks"
)

type clientState struct {
	Out chan []byte
}

type World struct {
	cfg      WorldConfig
	catalogs *catalogs.Catalogs
	log      zerolog.Logger

	tick          atomic.Uint64
	nextActorNum  atomic.Uint64
	nextEntityNum atomic.Uint64

	actors   map[string]*Actor
	clients  map[string]*clientState
	entities map[string]*Entity

	frames    *frames.Store
	queue     *tasks.Queue
	scheduler *replicate.Scheduler
	upgrader  *replicate.Upgrader
	detector  *autodetect.Detector
	repl      replicate.Metrics

	inbox chan ActionEnvelope
	join  chan JoinRequest
	leave chan string
	admin chan adminSnapshotReq
	stop  chan struct{}

	tickLogger   TickLogger
	auditLogger  AuditLogger
	snapshotSink chan<- snapshot.SnapshotV1

	tasksRan     uint64
	tasksAborted uint64

	metrics atomic.Value // WorldMetrics
}

func New(cfg WorldConfig, cats *catalogs.Catalogs) (*World, error) {
	cfg.applyDefaults()
	w := &World{
		cfg:      cfg,
		catalogs: cats,
		log:      zerolog.Nop(),
		actors:   map[string]*Actor{},
		clients:  map[string]*clientState{},
		entities: map[string]*Entity{},
		frames:   frames.NewStoreWithGroup(cfg.DefaultGroup),
		queue:    tasks.NewQueue(),
		repl:     observability.Replication{},
		inbox:    make(chan ActionEnvelope, 1024),
		join:     make(chan JoinRequest, 64),
		leave:    make(chan string, 64),
		admin:    make(chan adminSnapshotReq, 8),
		stop:     make(chan struct{}),
	}
	env := w.replicateEnv()
	w.scheduler = &replicate.Scheduler{
		Env:        env,
		Queue:      w.queue,
		Catalog:    cats,
		DelayTicks: cfg.ReplicateDelayTicks,
		Logger:     w.log,
		Metrics:    w.repl,
	}
	w.upgrader = &replicate.Upgrader{
		Env:           env,
		Queue:         w.queue,
		DelayTicks:    cfg.UpgradeDelayTicks,
		LookupRadius:  cfg.Counterpart.LookupRadius,
		MatchDistance: cfg.Counterpart.MatchDistance,
		Logger:        w.log,
		Metrics:       w.repl,
	}
	w.detector = &autodetect.Detector{
		Query:        w.detectCandidates,
		Frames:       w.frames,
		Radius:       cfg.Detect.Radius,
		MinOffset:    cfg.Detect.MinOffset,
		MinGapDeg:    cfg.Detect.MinGapDeg,
		IsFoundation: cats.IsFoundation,
	}
	return w, nil
}

func (w *World) SetTickLogger(l TickLogger)                    { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger)                  { w.auditLogger = l }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

func (w *World) SetLogger(l zerolog.Logger) {
	w.log = l
	w.scheduler.Logger = l.With().Str("component", "replicate").Logger()
	w.upgrader.Logger = l.With().Str("component", "upgrade").Logger()
}

// SetReplicationMetrics replaces the replication counters sink.
func (w *World) SetReplicationMetrics(m replicate.Metrics) {
	w.repl = m
	w.scheduler.Metrics = m
	w.upgrader.Metrics = m
}

func (w *World) Config() WorldConfig { return w.cfg }

// replicateEnv binds the replication core to this world. Every closure runs
// on the world loop goroutine.
func (w *World) replicateEnv() replicate.Env {
	return replicate.Env{
		ActorConnectedFn: w.actorConnected,
		HasPermissionFn:  w.hasPermission,
		FrameFn: func(actorID string) *frames.Frame {
			f, _ := w.frames.Peek(actorID)
			return f
		},
		InventoryAmountFn: func(actorID, item string) int {
			if a := w.actors[actorID]; a != nil {
				return a.Inventory[item]
			}
			return 0
		},
		InventoryTakeFn: func(actorID, item string, n int) {
			if a := w.actors[actorID]; a != nil {
				a.take(item, n)
			}
		},
		SpawnFn: func(spec replicate.SpawnSpec) (replicate.Entity, bool) {
			e := w.spawn(spec.Prefab, spec.Kind, spec.OwnerID, spec.Skin, spec.Grade, spec.Health, spec.Pose)
			return e.view(), true
		},
		BlocksNearFn: func(pos geom.Point3, radius float64) []replicate.Entity {
			near := w.entitiesNear(pos, radius)
			out := make([]replicate.Entity, 0, len(near))
			for _, e := range near {
				out = append(out, e.view())
			}
			return out
		},
		SetGradeFn: func(entityID string, g catalogs.Grade) (replicate.Entity, bool) {
			e, ok := w.setGrade(entityID, g)
			if !ok {
				return replicate.Entity{}, false
			}
			return e.view(), true
		},
		BroadcastFn: func(e replicate.Entity, reason string) {
			if ent := w.entities[e.ID]; ent != nil {
				w.broadcastEntity(ent, reason)
			}
		},
		ReportFn: w.reply,
		AuditFn: func(nowTick uint64, actorID, action string, e replicate.Entity, reason string) {
			w.audit(AuditEntry{
				Tick:     nowTick,
				Actor:    actorID,
				Action:   action,
				EntityID: e.ID,
				Prefab:   e.Prefab,
				Grade:    string(e.Grade),
				Pos:      vecToWire(e.Pose.Position),
				Reason:   reason,
			})
		},
	}
}

func (w *World) detectCandidates(center geom.Point3, radius float64) []autodetect.Candidate {
	near := w.entitiesNear(center, radius)
	out := make([]autodetect.Candidate, 0, len(near))
	for _, e := range near {
		if e.Kind != catalogs.KindBlock {
			continue
		}
		out = append(out, autodetect.Candidate{
			EntityID: e.ID,
			Prefab:   e.Prefab,
			OwnerID:  e.OwnerID,
			Position: e.Pose.Position,
		})
	}
	return out
}

func (w *World) audit(e AuditEntry) {
	if w.auditLogger == nil {
		return
	}
	if err := w.auditLogger.WriteAudit(e); err != nil {
		w.log.Warn().Err(err).Str("action", e.Action).Msg("audit write failed")
	}
}
