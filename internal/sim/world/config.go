package world

import (
	"symcraft.ai/internal/sim/symmetry"
	"symcraft.ai/internal/sim/tuning"
)

type WorldConfig struct {
	ID         string
	TickRateHz int

	// Operational parameters. These are included in snapshots.
	SnapshotEveryTicks int
	StarterItems       map[string]int

	ReplicateDelayTicks int
	UpgradeDelayTicks   int

	RaycastRange float64
	// EntityHalfExtent is the half size of the box used to raycast against
	// placed entities.
	EntityHalfExtent float64

	DefaultGroup      symmetry.GroupType
	RequirePermission bool

	Detect      tuning.DetectTuning
	Counterpart tuning.CounterpartTuning

	TuningDigest string
}

// ConfigFromTuning maps a loaded tuning file onto a world config.
func ConfigFromTuning(id string, t tuning.Tuning) WorldConfig {
	g, err := symmetry.ParseGroupType(t.DefaultGroup)
	if err != nil {
		g = symmetry.DefaultGroup
	}
	return WorldConfig{
		ID:                  id,
		TickRateHz:          t.TickRateHz,
		SnapshotEveryTicks:  t.SnapshotEveryTicks,
		StarterItems:        t.StarterItems,
		ReplicateDelayTicks: t.ReplicateDelayTicks,
		UpgradeDelayTicks:   t.UpgradeDelayTicks,
		RaycastRange:        t.RaycastRange,
		DefaultGroup:        g,
		RequirePermission:   t.RequirePermission,
		Detect:              t.Detect,
		Counterpart:         t.Counterpart,
	}
}

func (c *WorldConfig) applyDefaults() {
	d := tuning.Defaults()
	if c.ID == "" {
		c.ID = "world_1"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = d.TickRateHz
	}
	if c.ReplicateDelayTicks <= 0 {
		c.ReplicateDelayTicks = d.ReplicateDelayTicks
	}
	if c.UpgradeDelayTicks <= 0 {
		c.UpgradeDelayTicks = d.UpgradeDelayTicks
	}
	if c.RaycastRange <= 0 {
		c.RaycastRange = d.RaycastRange
	}
	if c.EntityHalfExtent <= 0 {
		c.EntityHalfExtent = 1.5
	}
	if !c.DefaultGroup.Valid() {
		c.DefaultGroup = symmetry.DefaultGroup
	}
	// nil means defaults; an empty map grants nothing.
	if c.StarterItems == nil {
		c.StarterItems = d.StarterItems
	}
	if c.Detect.Radius <= 0 {
		c.Detect.Radius = d.Detect.Radius
	}
	if c.Detect.MinOffset <= 0 {
		c.Detect.MinOffset = d.Detect.MinOffset
	}
	if c.Detect.MinGapDeg <= 0 {
		c.Detect.MinGapDeg = d.Detect.MinGapDeg
	}
	if c.Counterpart.LookupRadius <= 0 {
		c.Counterpart.LookupRadius = d.Counterpart.LookupRadius
	}
	if c.Counterpart.MatchDistance <= 0 {
		c.Counterpart.MatchDistance = d.Counterpart.MatchDistance
	}
}
