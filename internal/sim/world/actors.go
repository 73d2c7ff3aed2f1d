package world

import (
	"fmt"
	"sort"
	"strings"

	"symcraft.ai/internal/protocol"
	"symcraft.ai/internal/sim/catalogs"
	"symcraft.ai/internal/sim/geom"
	"symcraft.ai/internal/sim/symmetry"
)

var (
	defaultEye  = geom.Point3{0, 1.8, 0}
	defaultLook = geom.Point3{0, -0.5, 1}
)

type Actor struct {
	ID          string
	Name        string
	Permissions map[string]bool
	Eye         geom.Point3
	Look        geom.Point3
	Inventory   map[string]int
	Connected   bool
}

func (a *Actor) take(item string, n int) {
	if n <= 0 {
		return
	}
	left := a.Inventory[item] - n
	if left <= 0 {
		delete(a.Inventory, item)
		return
	}
	a.Inventory[item] = left
}

func (a *Actor) permissionList() []string {
	out := make([]string, 0, len(a.Permissions))
	for p, ok := range a.Permissions {
		if ok {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func (a *Actor) inventoryStacks() []protocol.ItemStack {
	items := make([]string, 0, len(a.Inventory))
	for it := range a.Inventory {
		items = append(items, it)
	}
	sort.Strings(items)
	out := make([]protocol.ItemStack, 0, len(items))
	for _, it := range items {
		out = append(out, protocol.ItemStack{Item: it, Count: a.Inventory[it]})
	}
	return out
}

func permissionSet(perms []string) map[string]bool {
	out := map[string]bool{}
	for _, p := range perms {
		p = strings.TrimSpace(p)
		if p != "" {
			out[p] = true
		}
	}
	return out
}

func (w *World) actorConnected(actorID string) bool {
	a := w.actors[actorID]
	return a != nil && a.Connected
}

func (w *World) hasPermission(actorID string) bool {
	a := w.actors[actorID]
	if a == nil {
		return false
	}
	return !w.cfg.RequirePermission || a.Permissions[PermissionUse]
}

// pay debits cost only when every item is available.
func (w *World) pay(a *Actor, cost []catalogs.ItemCount) bool {
	need := map[string]int{}
	for _, c := range cost {
		need[c.Item] += c.Count
	}
	for item, n := range need {
		if a.Inventory[item] < n {
			return false
		}
	}
	for item, n := range need {
		a.take(item, n)
	}
	return true
}

func (w *World) joinActor(req JoinRequest) JoinResponse {
	a := w.resumeActor(req)
	if a == nil {
		name := strings.TrimSpace(req.Name)
		if name == "" {
			name = "actor"
		}
		idNum := w.nextActorNum.Add(1)
		a = &Actor{
			ID:          fmt.Sprintf("A%d", idNum),
			Name:        name,
			Permissions: permissionSet(req.Permissions),
			Eye:         defaultEye,
			Look:        defaultLook,
			Inventory:   map[string]int{},
		}
		for item, n := range w.cfg.StarterItems {
			if n > 0 {
				a.Inventory[item] = n
			}
		}
		w.actors[a.ID] = a
	}
	a.Connected = true
	if req.Out != nil {
		w.clients[a.ID] = &clientState{Out: req.Out}
	}
	w.log.Info().Str("actor", a.ID).Str("name", a.Name).Msg("actor joined")
	return JoinResponse{Welcome: w.welcome(a)}
}

// resumeActor reattaches a disconnected actor by id. Permissions come from
// the new session.
func (w *World) resumeActor(req JoinRequest) *Actor {
	if req.ActorID == "" {
		return nil
	}
	a := w.actors[req.ActorID]
	if a == nil || a.Connected {
		return nil
	}
	a.Permissions = permissionSet(req.Permissions)
	if n := strings.TrimSpace(req.Name); n != "" {
		a.Name = n
	}
	return a
}

func (w *World) welcome(a *Actor) protocol.WelcomeMsg {
	var cd protocol.CatalogDigests
	if w.catalogs != nil {
		cd = protocol.CatalogDigests{
			PrefabsDigest:  w.catalogs.Prefabs.Digest,
			GradesDigest:   w.catalogs.Grades.Digest,
			FixturesDigest: w.catalogs.Fixtures.Digest,
			TuningDigest:   w.cfg.TuningDigest,
		}
	}
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SelectedVersion: protocol.Version,
		ActorID:         a.ID,
		WorldParams: protocol.WorldParams{
			TickRateHz:          w.cfg.TickRateHz,
			ReplicateDelayTicks: w.cfg.ReplicateDelayTicks,
			RaycastRange:        w.cfg.RaycastRange,
			DefaultGroup:        w.cfg.DefaultGroup.String(),
			Groups:              symmetry.GroupNames(),
		},
		Catalogs:  cd,
		Inventory: a.inventoryStacks(),
	}
}

// handleLeave disconnects the actor and drops their frame. Pending tasks
// stay queued and abort when they come due.
func (w *World) handleLeave(actorID string) bool {
	a := w.actors[actorID]
	if a == nil || !a.Connected {
		return false
	}
	a.Connected = false
	delete(w.clients, actorID)
	w.frames.Clear(actorID)
	w.log.Info().Str("actor", actorID).Msg("actor left")
	return true
}
