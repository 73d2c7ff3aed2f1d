// Command symbot connects to a server, turns on symmetry and places a
// foundation off-center so the replicated copies and the synced upgrade can
// be watched in the server logs.
package main

import (
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"symcraft.ai/internal/observability"
	"symcraft.ai/internal/protocol"
	"symcraft.ai/internal/sim/world"
)

func main() {
	var (
		url     = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name    = flag.String("name", "symbot", "actor name")
		group   = flag.String("group", "n4s", "symmetry group to select")
		prefab  = flag.String("prefab", "foundation", "prefab to place")
		grade   = flag.String("upgrade", "stone", "grade to upgrade the placed block to (empty to skip)")
		timeout = flag.Duration("timeout", 10*time.Second, "give up after this long")
	)
	flag.Parse()

	logger := observability.InitLogger("symbot", "info")
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("dial")
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ActorName:       *name,
		Permissions:     []string{world.PermissionUse},
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatal().Err(err).Msg("send HELLO")
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	deadline := time.Now().Add(*timeout)

	b := &bot{conn: conn, log: logger, group: *group, prefab: *prefab, grade: *grade}
	for {
		select {
		case <-stop:
			return
		default:
		}
		if time.Now().After(deadline) {
			logger.Warn().Msg("timeout")
			return
		}

		_ = conn.SetReadDeadline(deadline)
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if b.handle(msg) {
			return
		}
	}
}

type bot struct {
	conn *websocket.Conn
	log  zerolog.Logger

	group  string
	prefab string
	grade  string

	actorID  string
	placedID string
	copies   int
}

// handle reacts to one server message and reports whether the script is done.
func (b *bot) handle(msg []byte) bool {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return false
	}
	switch base.Type {
	case protocol.TypeWelcome:
		var w protocol.WelcomeMsg
		if err := json.Unmarshal(msg, &w); err != nil {
			return false
		}
		b.actorID = w.ActorID
		b.log.Info().Str("actor", w.ActorID).Str("session", w.SessionID).Int("tick_rate", w.WorldParams.TickRateHz).Msg("WELCOME")
		// The default view ray hits the ground a few meters ahead.
		b.cmd("set")
		b.cmd(b.group)
		b.cmd("toggle")
		b.send(protocol.BuildMsg{
			Type:            protocol.TypeBuild,
			ProtocolVersion: protocol.Version,
			Prefab:          b.prefab,
			Pos:             [3]float64{6, 0, 3.6},
			Rot:             [4]float64{0, 0, 0, 1},
		})

	case protocol.TypeReply:
		var r protocol.ReplyMsg
		if err := json.Unmarshal(msg, &r); err != nil {
			return false
		}
		ev := b.log.Info()
		if r.Code != "" {
			ev = b.log.Warn().Str("code", r.Code)
		}
		ev.Uint64("tick", r.Tick).Msg(r.Message)

	case protocol.TypeEntity:
		var e protocol.EntityMsg
		if err := json.Unmarshal(msg, &e); err != nil {
			return false
		}
		b.log.Info().Str("entity", e.EntityID).Str("prefab", e.Prefab).Str("grade", e.Grade).
			Floats64("pos", e.Pos[:]).Str("reason", e.Reason).Msg("ENTITY")
		switch e.Reason {
		case "BUILD":
			if e.OwnerID == b.actorID && b.placedID == "" {
				b.placedID = e.EntityID
			}
		case "SYM_COPY":
			b.copies++
			if b.grade == "" {
				return true
			}
			// Copies of one placement arrive in the same tick.
			if b.copies == 1 && b.placedID != "" {
				b.send(protocol.UpgradeMsg{Type: protocol.TypeUpgrade, ProtocolVersion: protocol.Version, EntityID: b.placedID, Grade: b.grade})
			}
		case "SYM_UPGRADE":
			b.log.Info().Int("copies", b.copies).Msg("upgrade replicated")
			return true
		}
	}
	return false
}

func (b *bot) cmd(args ...string) {
	b.send(protocol.CmdMsg{Type: protocol.TypeCmd, ProtocolVersion: protocol.Version, Command: "sym", Args: args})
}

func (b *bot) send(v any) {
	if err := b.conn.WriteJSON(v); err != nil {
		b.log.Error().Err(err).Msg("send")
	}
}
