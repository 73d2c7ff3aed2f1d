package world

import (
	"errors"
	"fmt"

	"symcraft.ai/internal/command"
	"symcraft.ai/internal/observability"
	"symcraft.ai/internal/protocol"
	"symcraft.ai/internal/sim/autodetect"
	"symcraft.ai/internal/sim/geom"
)

func (w *World) applyCmd(a *Actor, msg *protocol.CmdMsg) {
	if msg.Eye != nil && finite(msg.Eye[:]...) {
		a.Eye = vecFromWire(*msg.Eye)
	}
	if msg.Look != nil && finite(msg.Look[:]...) {
		a.Look = vecFromWire(*msg.Look)
	}

	var (
		cmd command.Command
		err error
	)
	if msg.Control != "" {
		cmd, err = command.ParseControl(msg.Control)
	} else {
		cmd, err = command.Parse(msg.Command, msg.Args)
	}
	switch {
	case errors.Is(err, command.ErrUnknownControl):
		w.log.Debug().Str("actor", a.ID).Err(err).Msg("control ignored")
		return
	case err != nil:
		w.reply(a.ID, protocol.ErrBadRequest, err.Error())
		observability.RecordCommand("invalid", protocol.ErrBadRequest)
		return
	}

	if !w.hasPermission(a.ID) {
		w.reply(a.ID, protocol.ErrNoPermission, fmt.Sprintf("%v: %s", ErrNoPermission, PermissionUse))
		observability.RecordCommand(cmd.Kind.String(), protocol.ErrNoPermission)
		return
	}
	code := w.runCommand(a, cmd)
	observability.RecordCommand(cmd.Kind.String(), code)
}

// runCommand executes a decoded command and returns the reply code it
// produced ("" on success).
func (w *World) runCommand(a *Actor, cmd command.Command) string {
	f := w.frames.Get(a.ID)
	code := ""
	switch cmd.Kind {
	case command.KindToggleView:
		f.ViewVisible = !f.ViewVisible
		// A hidden panel gets one visible=false update.
		w.pushView(a.ID, f)
		return ""
	case command.KindToggleEnabled:
		f.Enabled = !f.Enabled
		if !cmd.Quiet() {
			state := "disabled"
			if f.Enabled {
				state = "enabled"
			}
			w.reply(a.ID, "", "symmetry "+state)
		}
	case command.KindSetCenter:
		p, err := w.raycast(a)
		if err != nil {
			w.reply(a.ID, protocol.ErrNoGeometry, "no surface in view to place the center on")
			code = protocol.ErrNoGeometry
			break
		}
		f.SetCenter(p, geom.YawFromLook(a.Look))
		w.reply(a.ID, "", fmt.Sprintf("symmetry center set at (%.2f, %.2f, %.2f)", p.X(), p.Y(), p.Z()))
		if cmd.Auto {
			code = w.detect(a)
		}
	case command.KindAutoDetect:
		if !f.HasCenter {
			w.reply(a.ID, protocol.ErrBadRequest, "set a center first: /sym set")
			code = protocol.ErrBadRequest
			break
		}
		code = w.detect(a)
	case command.KindDeleteCenter:
		f.ClearCenter()
		if !cmd.Quiet() {
			w.reply(a.ID, "", "symmetry center removed")
		}
	case command.KindSelectType:
		f.Group = cmd.Group
		if !cmd.Quiet() {
			w.reply(a.ID, "", "symmetry type: "+cmd.Group.String())
		}
	default:
		w.log.Error().Str("actor", a.ID).Stringer("kind", cmd.Kind).Msg("unhandled command kind")
		return protocol.ErrInternal
	}
	if f.ViewVisible {
		w.pushView(a.ID, f)
	}
	return code
}

func (w *World) detect(a *Actor) string {
	res, err := w.detector.Detect(a.ID)
	switch {
	case errors.Is(err, autodetect.ErrInsufficientData):
		observability.RecordDetection(res.Group.String(), true)
		w.reply(a.ID, protocol.ErrInsufficientData,
			fmt.Sprintf("need at least 3 foundations around the center to detect symmetry; using %s", res.Group))
		return protocol.ErrInsufficientData
	case err != nil:
		w.reply(a.ID, protocol.ErrBadRequest, "set a center first: /sym set")
		return protocol.ErrBadRequest
	}
	observability.RecordDetection(res.Group.String(), res.Fallback)
	w.reply(a.ID, "", "detected symmetry: "+res.Group.String())
	w.log.Debug().
		Str("actor", a.ID).
		Str("group", res.Group.String()).
		Int("bearings", len(res.Bearings)).
		Float64("min_gap", res.MinGap).
		Msg("symmetry detected")
	return ""
}
