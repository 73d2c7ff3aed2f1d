package world

import (
	"fmt"

	"symcraft.ai/internal/protocol"
	"symcraft.ai/internal/sim/catalogs"
	"symcraft.ai/internal/sim/geom"
)

// Audit actions for direct placements.
const (
	ActionBuild   = "BUILD"
	ActionUpgrade = "UPGRADE"
)

// applyBuild places an entity for the actor. The original placement is not
// charged; symmetric copies are.
func (w *World) applyBuild(a *Actor, msg *protocol.BuildMsg, nowTick uint64) {
	def, ok := w.catalogs.Prefab(msg.Prefab)
	if !ok {
		w.reply(a.ID, protocol.ErrBadRequest, fmt.Sprintf("unknown prefab %q", msg.Prefab))
		return
	}
	if !finite(msg.Pos[:]...) || !finite(msg.Rot[:]...) {
		w.reply(a.ID, protocol.ErrBadRequest, "position and rotation must be finite")
		return
	}
	grade := catalogs.Grade("")
	if def.Kind == catalogs.KindBlock {
		grade = catalogs.GradeTwig
		if msg.Grade != "" {
			g, err := catalogs.ParseGrade(msg.Grade)
			if err != nil {
				w.reply(a.ID, protocol.ErrBadRequest, err.Error())
				return
			}
			grade = g
		}
	}

	pose := geom.Pose{Position: vecFromWire(msg.Pos), Rotation: quatFromWire(msg.Rot)}
	e := w.spawn(def.Name, def.Kind, a.ID, msg.Skin, grade, 0, pose)
	w.broadcastEntity(e, ActionBuild)
	w.audit(AuditEntry{
		Tick:     nowTick,
		Actor:    a.ID,
		Action:   ActionBuild,
		EntityID: e.ID,
		Prefab:   e.Prefab,
		Grade:    string(e.Grade),
		Pos:      msg.Pos,
	})
	w.scheduler.OnEntityBuilt(nowTick, a.ID, e.view())
}

// applyUpgrade regrades one of the actor's blocks at the grade's cost.
func (w *World) applyUpgrade(a *Actor, msg *protocol.UpgradeMsg, nowTick uint64) {
	e := w.entities[msg.EntityID]
	if e == nil {
		w.reply(a.ID, protocol.ErrInvalidTarget, fmt.Sprintf("unknown entity %q", msg.EntityID))
		return
	}
	if e.Kind != catalogs.KindBlock {
		w.reply(a.ID, protocol.ErrInvalidTarget, fmt.Sprintf("%s is not a building block", e.Prefab))
		return
	}
	if e.OwnerID != a.ID {
		w.reply(a.ID, protocol.ErrInvalidTarget, "block belongs to another actor")
		return
	}
	g, err := catalogs.ParseGrade(msg.Grade)
	if err != nil {
		w.reply(a.ID, protocol.ErrBadRequest, err.Error())
		return
	}
	if g == e.Grade {
		w.reply(a.ID, protocol.ErrBadRequest, fmt.Sprintf("block is already %s", g))
		return
	}
	if !w.pay(a, w.catalogs.GradeCost(e.Prefab, g)) {
		w.reply(a.ID, protocol.ErrNoResource, fmt.Sprintf("not enough resources to upgrade to %s", g))
		return
	}
	if _, ok := w.setGrade(e.ID, g); !ok {
		w.reply(a.ID, protocol.ErrInternal, "upgrade failed")
		return
	}
	w.broadcastEntity(e, ActionUpgrade)
	w.audit(AuditEntry{
		Tick:     nowTick,
		Actor:    a.ID,
		Action:   ActionUpgrade,
		EntityID: e.ID,
		Prefab:   e.Prefab,
		Grade:    string(g),
		Pos:      vecToWire(e.Pose.Position),
	})
	w.upgrader.OnBlockUpgraded(nowTick, a.ID, e.view(), g)
}
