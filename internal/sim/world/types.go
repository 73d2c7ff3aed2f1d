package world

import (
	"errors"

	"symcraft.ai/internal/protocol"
)

var (
	ErrNoPermission = errors.New("missing symmetry permission")
	ErrNoSurface    = errors.New("no surface under the view ray")
	ErrUnknownActor = errors.New("unknown actor")
)

// PermissionUse gates symmetry commands and hooks when the world requires
// permissions.
const PermissionUse = "symmetry.use"

type JoinRequest struct {
	Name string
	// ActorID resumes a disconnected actor when it exists.
	ActorID     string
	Permissions []string
	Out         chan []byte
	Resp        chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
}

// ActionEnvelope carries exactly one client message for an actor.
type ActionEnvelope struct {
	ActorID string
	Cmd     *protocol.CmdMsg
	Build   *protocol.BuildMsg
	Upgrade *protocol.UpgradeMsg
}

type RecordedJoin struct {
	ActorID     string   `json:"actor_id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions,omitempty"`
}

type RecordedAction struct {
	ActorID string               `json:"actor_id"`
	Cmd     *protocol.CmdMsg     `json:"cmd,omitempty"`
	Build   *protocol.BuildMsg   `json:"build,omitempty"`
	Upgrade *protocol.UpgradeMsg `json:"upgrade,omitempty"`
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type TickLogEntry struct {
	Tick    uint64           `json:"tick"`
	Joins   []RecordedJoin   `json:"joins,omitempty"`
	Leaves  []string         `json:"leaves,omitempty"`
	Actions []RecordedAction `json:"actions,omitempty"`
	Digest  string           `json:"digest"`
}

type AuditEntry struct {
	Tick     uint64     `json:"tick"`
	Actor    string     `json:"actor"`
	Action   string     `json:"action"` // BUILD, UPGRADE, SYM_COPY, SYM_SKIP, SYM_UPGRADE
	EntityID string     `json:"entity_id,omitempty"`
	Prefab   string     `json:"prefab,omitempty"`
	Grade    string     `json:"grade,omitempty"`
	Pos      [3]float64 `json:"pos"`
	Reason   string     `json:"reason,omitempty"`
}
