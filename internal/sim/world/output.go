package world

import (
	"encoding/json"

	"symcraft.ai/internal/protocol"
	"symcraft.ai/internal/sim/frames"
)

// trySend never blocks the world loop; a full client queue loses b.
func trySend(ch chan []byte, b []byte) bool {
	select {
	case ch <- b:
		return true
	default:
		return false
	}
}

// sendTo queues msg for one actor. Every kind shares the queue, so a full
// queue drops the new message rather than evicting an older one.
func (w *World) sendTo(actorID string, msg any) {
	cl := w.clients[actorID]
	if cl == nil || cl.Out == nil {
		return
	}
	b, err := json.Marshal(msg)
	if err != nil {
		w.log.Error().Err(err).Str("actor", actorID).Msg("marshal outbound message")
		return
	}
	if !trySend(cl.Out, b) {
		w.log.Warn().Str("actor", actorID).Msg("client queue full, message dropped")
	}
}

// reply sends a chat-style response. An empty code is a plain confirmation.
func (w *World) reply(actorID, code, message string) {
	w.sendTo(actorID, protocol.ReplyMsg{
		Type:            protocol.TypeReply,
		ProtocolVersion: protocol.Version,
		Tick:            w.tick.Load(),
		Code:            code,
		Message:         message,
	})
}

func (w *World) pushView(actorID string, f *frames.Frame) {
	v := f.View()
	w.sendTo(actorID, protocol.ViewMsg{
		Type:            protocol.TypeView,
		ProtocolVersion: protocol.Version,
		Tick:            w.tick.Load(),
		Visible:         v.Visible,
		Enabled:         v.Enabled,
		CenterSet:       v.CenterSet,
		GroupType:       v.GroupType,
	})
}

func (w *World) entityMsg(e *Entity, reason string) protocol.EntityMsg {
	return protocol.EntityMsg{
		Type:            protocol.TypeEntity,
		ProtocolVersion: protocol.Version,
		Tick:            w.tick.Load(),
		EntityID:        e.ID,
		Prefab:          e.Prefab,
		OwnerID:         e.OwnerID,
		Skin:            e.Skin,
		Grade:           string(e.Grade),
		Health:          e.Health,
		MaxHealth:       e.MaxHealth,
		Pos:             vecToWire(e.Pose.Position),
		Rot:             quatToWire(e.Pose.Rotation),
		Reason:          reason,
	}
}

// broadcastEntity sends e to every connected client.
func (w *World) broadcastEntity(e *Entity, reason string) {
	if len(w.clients) == 0 {
		return
	}
	b, err := json.Marshal(w.entityMsg(e, reason))
	if err != nil {
		w.log.Error().Err(err).Str("entity", e.ID).Msg("marshal entity")
		return
	}
	for id, cl := range w.clients {
		if cl == nil || cl.Out == nil {
			continue
		}
		if !trySend(cl.Out, b) {
			w.log.Warn().Str("actor", id).Str("entity", e.ID).Msg("client queue full, entity dropped")
		}
	}
}
