package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"symcraft.ai/internal/observability"
	"symcraft.ai/internal/protocol"
	"symcraft.ai/internal/sim/world"
)

const (
	outQueue     = 32
	readTimeout  = 60 * time.Second
	writeTimeout = 5 * time.Second
)

// World is the part of the host the transport talks to.
type World interface {
	Inbox() chan<- world.ActionEnvelope
	Join() chan<- world.JoinRequest
	Leave() chan<- string
	CurrentTick() uint64
}

type Server struct {
	world World
	log   zerolog.Logger

	upgrader websocket.Upgrader
}

func NewServer(w World, logger zerolog.Logger) *Server {
	return &Server{
		world: w,
		log:   logger.With().Str("component", "ws").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		actorID, sessionID, out := s.handshake(conn)
		if actorID == "" {
			return
		}
		observability.SessionOpened()
		defer observability.SessionClosed()
		log := s.log.With().Str("actor", actorID).Str("session", sessionID).Logger()
		log.Info().Msg("session opened")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			env, code := decodeAction(actorID, msg)
			if code != "" {
				s.reject(out, code)
				continue
			}
			select {
			case s.world.Inbox() <- env:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
		}
		cancel()

		s.world.Leave() <- actorID
		log.Info().Msg("session closed")
	}
}

// decodeAction turns one client frame into an envelope. A non-empty code
// means the frame was rejected.
func decodeAction(actorID string, msg []byte) (world.ActionEnvelope, string) {
	env := world.ActionEnvelope{ActorID: actorID}
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return env, protocol.ErrProtoBadRequest
	}
	if base.ProtocolVersion != "" && base.ProtocolVersion != protocol.Version {
		return env, protocol.ErrProtoBadRequest
	}
	switch base.Type {
	case protocol.TypeCmd:
		var m protocol.CmdMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return env, protocol.ErrProtoBadRequest
		}
		env.Cmd = &m
	case protocol.TypeBuild:
		var m protocol.BuildMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return env, protocol.ErrProtoBadRequest
		}
		env.Build = &m
	case protocol.TypeUpgrade:
		var m protocol.UpgradeMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return env, protocol.ErrProtoBadRequest
		}
		env.Upgrade = &m
	default:
		return env, protocol.ErrProtoBadRequest
	}
	return env, ""
}

func (s *Server) reject(out chan []byte, code string) {
	b, err := json.Marshal(protocol.ReplyMsg{
		Type:            protocol.TypeReply,
		ProtocolVersion: protocol.Version,
		Tick:            s.world.CurrentTick(),
		Code:            code,
		Message:         "malformed message",
	})
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
	}
}

func (s *Server) handshake(conn *websocket.Conn) (actorID, sessionID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, "expected HELLO")
		return "", "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		closeWith(conn, "bad HELLO")
		return "", "", nil
	}
	selected, ok := selectVersion(hello)
	if !ok {
		closeWith(conn, "bad protocol_version")
		return "", "", nil
	}
	if strings.TrimSpace(hello.ActorName) == "" {
		hello.ActorName = "builder"
	}

	out = make(chan []byte, outQueue)
	respCh := make(chan world.JoinResponse, 1)
	s.world.Join() <- world.JoinRequest{
		Name:        hello.ActorName,
		ActorID:     strings.TrimSpace(hello.ActorID),
		Permissions: hello.Permissions,
		Out:         out,
		Resp:        respCh,
	}
	resp := <-respCh

	sessionID = uuid.NewString()
	welcome := resp.Welcome
	welcome.SelectedVersion = selected
	welcome.SessionID = sessionID
	if err := writeJSON(conn, welcome); err != nil {
		s.world.Leave() <- welcome.ActorID
		return "", "", nil
	}
	return welcome.ActorID, sessionID, out
}

func selectVersion(h protocol.HelloMsg) (string, bool) {
	if h.ProtocolVersion == protocol.Version {
		return protocol.Version, true
	}
	for _, v := range h.SupportedVersions {
		if v == protocol.Version {
			return protocol.Version, true
		}
	}
	return "", false
}

func closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
