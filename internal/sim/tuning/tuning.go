package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"symcraft.ai/internal/sim/symmetry"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz         int `yaml:"tick_rate_hz"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`

	// Deferred work runs this many ticks after the triggering event.
	ReplicateDelayTicks int `yaml:"replicate_delay_ticks"`
	UpgradeDelayTicks   int `yaml:"upgrade_delay_ticks"`

	Detect       DetectTuning      `yaml:"detect"`
	Counterpart  CounterpartTuning `yaml:"counterpart"`
	RaycastRange float64           `yaml:"raycast_range"`
	DefaultGroup string            `yaml:"default_group"`

	// RequirePermission gates every symmetry command and hook on the
	// "symmetry.use" permission.
	RequirePermission bool           `yaml:"require_permission"`
	StarterItems      map[string]int `yaml:"starter_items"`

	LogLevel string `yaml:"log_level"`
}

type DetectTuning struct {
	Radius    float64 `yaml:"radius"`
	MinOffset float64 `yaml:"min_offset"`
	MinGapDeg float64 `yaml:"min_gap_deg"`
}

type CounterpartTuning struct {
	LookupRadius  float64 `yaml:"lookup_radius"`
	MatchDistance float64 `yaml:"match_distance"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:     "1.0",
		TickRateHz:          10,
		SnapshotEveryTicks:  3000,
		ReplicateDelayTicks: 1,
		UpgradeDelayTicks:   1,
		Detect: DetectTuning{
			Radius:    50,
			MinOffset: 0.1,
			MinGapDeg: 0.1,
		},
		Counterpart: CounterpartTuning{
			LookupRadius:  0.5,
			MatchDistance: 0.1,
		},
		RaycastRange:      100,
		DefaultGroup:      "n4s",
		RequirePermission: true,
		StarterItems: map[string]int{
			"wood":            5000,
			"stones":          5000,
			"metal.fragments": 2000,
			"metal.refined":   100,
			"gears":           20,
		},
		LogLevel: "info",
	}
}

// Load reads a tuning file. Missing or zero fields keep their defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	t.StarterItems = nil
	raw, err := os.ReadFile(path)
	if err != nil {
		return Defaults(), err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.fillZero()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t *Tuning) fillZero() {
	d := Defaults()
	if t.TickRateHz <= 0 {
		t.TickRateHz = d.TickRateHz
	}
	if t.ReplicateDelayTicks <= 0 {
		t.ReplicateDelayTicks = d.ReplicateDelayTicks
	}
	if t.UpgradeDelayTicks <= 0 {
		t.UpgradeDelayTicks = d.UpgradeDelayTicks
	}
	if t.Detect.Radius <= 0 {
		t.Detect.Radius = d.Detect.Radius
	}
	if t.Detect.MinOffset <= 0 {
		t.Detect.MinOffset = d.Detect.MinOffset
	}
	if t.Detect.MinGapDeg <= 0 {
		t.Detect.MinGapDeg = d.Detect.MinGapDeg
	}
	if t.Counterpart.LookupRadius <= 0 {
		t.Counterpart.LookupRadius = d.Counterpart.LookupRadius
	}
	if t.Counterpart.MatchDistance <= 0 {
		t.Counterpart.MatchDistance = d.Counterpart.MatchDistance
	}
	if t.RaycastRange <= 0 {
		t.RaycastRange = d.RaycastRange
	}
	if t.DefaultGroup == "" {
		t.DefaultGroup = d.DefaultGroup
	}
	if t.StarterItems == nil {
		t.StarterItems = d.StarterItems
	}
}

func (t Tuning) Validate() error {
	if t.TickRateHz > 1000 {
		return fmt.Errorf("tick_rate_hz too high: %d", t.TickRateHz)
	}
	if t.Counterpart.MatchDistance > t.Counterpart.LookupRadius {
		return fmt.Errorf("counterpart.match_distance %.3f exceeds lookup_radius %.3f", t.Counterpart.MatchDistance, t.Counterpart.LookupRadius)
	}
	if _, err := symmetry.ParseGroupType(t.DefaultGroup); err != nil {
		return fmt.Errorf("default_group: %w", err)
	}
	for item, n := range t.StarterItems {
		if n < 0 {
			return fmt.Errorf("starter_items[%s] negative", item)
		}
	}
	return nil
}
