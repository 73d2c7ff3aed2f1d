package protocol

// Positions are [x, y, z] with y up. Rotations are unit quaternions
// [x, y, z, w].

// HELLO (client -> server)
type HelloMsg struct {
	Type              string   `json:"type"`
	ProtocolVersion   string   `json:"protocol_version"`
	SupportedVersions []string `json:"supported_versions,omitempty"`
	ActorName         string   `json:"actor_name"`
	// ActorID resumes an existing actor when set.
	ActorID     string   `json:"actor_id,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// CMD (client -> server): a chat command or a UI control.
type CmdMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Command         string   `json:"command,omitempty"`
	Args            []string `json:"args,omitempty"`
	// Control is a UI button id (ToggleBtn, SetBtn, DeleteBtn, Type<TYPE>).
	Control string `json:"control,omitempty"`

	// Eye and Look update the actor's view ray before the command runs.
	Eye  *[3]float64 `json:"eye,omitempty"`
	Look *[3]float64 `json:"look,omitempty"`
}

// BUILD (client -> server)
type BuildMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Prefab          string     `json:"prefab"`
	Skin            uint64     `json:"skin,omitempty"`
	Grade           string     `json:"grade,omitempty"`
	Pos             [3]float64 `json:"pos"`
	Rot             [4]float64 `json:"rot"`
}

// UPGRADE (client -> server)
type UpgradeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	EntityID        string `json:"entity_id"`
	Grade           string `json:"grade"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SelectedVersion string         `json:"selected_version,omitempty"`
	SessionID       string         `json:"session_id,omitempty"`
	ActorID         string         `json:"actor_id"`
	WorldParams     WorldParams    `json:"world_params"`
	Catalogs        CatalogDigests `json:"catalogs"`
	Inventory       []ItemStack    `json:"inventory"`
}

type WorldParams struct {
	TickRateHz          int      `json:"tick_rate_hz"`
	ReplicateDelayTicks int      `json:"replicate_delay_ticks"`
	RaycastRange        float64  `json:"raycast_range"`
	DefaultGroup        string   `json:"default_group"`
	Groups              []string `json:"groups"`
}

type CatalogDigests struct {
	PrefabsDigest  string `json:"prefabs_digest"`
	GradesDigest   string `json:"grades_digest"`
	FixturesDigest string `json:"fixtures_digest"`
	TuningDigest   string `json:"tuning_digest,omitempty"`
}

type ItemStack struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

// REPLY (server -> client): a chat-style response to the actor.
type ReplyMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message"`
}

// VIEW (server -> client): the actor's symmetry panel. Hidden panels are
// sent once with visible=false.
type ViewMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Visible         bool   `json:"visible"`
	Enabled         bool   `json:"enabled"`
	CenterSet       bool   `json:"center_set"`
	GroupType       string `json:"group_type"`
}

// ENTITY (server -> client): an entity was created or changed.
type EntityMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Tick            uint64     `json:"tick"`
	EntityID        string     `json:"entity_id"`
	Prefab          string     `json:"prefab"`
	OwnerID         string     `json:"owner_id"`
	Skin            uint64     `json:"skin,omitempty"`
	Grade           string     `json:"grade,omitempty"`
	Health          float64    `json:"health"`
	MaxHealth       float64    `json:"max_health,omitempty"`
	Pos             [3]float64 `json:"pos"`
	Rot             [4]float64 `json:"rot"`
	// Reason is BUILD, SYM_COPY, UPGRADE or SYM_UPGRADE.
	Reason string `json:"reason,omitempty"`
}
