package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type Catalogs struct {
	Prefabs  PrefabCatalog
	Grades   GradeCatalog
	Fixtures FixtureCostCatalog
}

// Kind groups prefabs by how symmetric replication treats them.
type Kind string

const (
	KindBlock      Kind = "BLOCK"       // grade-bearing structural block
	KindDoor       Kind = "DOOR"        // hinged doors and garage doors
	KindWindowBars Kind = "WINDOW_BARS" // deployable window bars
	KindDeployable Kind = "DEPLOYABLE"  // everything else; never replicated
)

func (k Kind) Valid() bool {
	switch k {
	case KindBlock, KindDoor, KindWindowBars, KindDeployable:
		return true
	}
	return false
}

// Replicable reports whether placements of this kind get symmetric copies.
func (k Kind) Replicable() bool {
	return k == KindBlock || k == KindDoor || k == KindWindowBars
}

type Grade string

const (
	GradeTwig    Grade = "twig"
	GradeWood    Grade = "wood"
	GradeStone   Grade = "stone"
	GradeMetal   Grade = "metal"
	GradeTopTier Grade = "toptier"
)

var gradeRank = map[Grade]int{
	GradeTwig:    0,
	GradeWood:    1,
	GradeStone:   2,
	GradeMetal:   3,
	GradeTopTier: 4,
}

func (g Grade) Valid() bool {
	_, ok := gradeRank[g]
	return ok
}

// Rank orders grades from twig (0) to top tier (4); -1 for unknown grades.
func (g Grade) Rank() int {
	if r, ok := gradeRank[g]; ok {
		return r
	}
	return -1
}

func ParseGrade(s string) (Grade, error) {
	g := Grade(strings.ToLower(strings.TrimSpace(s)))
	if !g.Valid() {
		return "", fmt.Errorf("unknown grade %q", s)
	}
	return g, nil
}

type ItemCount struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

type PrefabCatalog struct {
	ByName map[string]PrefabDef
	Digest string
}

type PrefabDef struct {
	Name   string `json:"name"`
	Kind   Kind   `json:"kind"`
	Family string `json:"family,omitempty"`

	// Blocks: cost to build at each grade, health multiplier on the grade's
	// base health.
	GradeCost   map[Grade][]ItemCount `json:"grade_cost,omitempty"`
	HealthScale float64               `json:"health_scale,omitempty"`

	// Non-block prefabs have a flat max health.
	MaxHealth float64 `json:"max_health,omitempty"`
}

type GradeCatalog struct {
	ByGrade map[Grade]GradeDef
	Digest  string
}

type GradeDef struct {
	Grade      Grade   `json:"grade"`
	BaseHealth float64 `json:"base_health"`
}

// FixtureCostCatalog is an ordered list of prefab-name substring rules; the
// first matching rule wins.
type FixtureCostCatalog struct {
	Rules  []FixtureCostRule
	Digest string
}

type FixtureCostRule struct {
	Match string      `json:"match"`
	Cost  []ItemCount `json:"cost"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadGrades(filepath.Join(configDir, "grades.json"), &c.Grades); err != nil {
		return nil, err
	}
	if err := loadPrefabs(filepath.Join(configDir, "prefabs.json"), &c.Prefabs); err != nil {
		return nil, err
	}
	if err := loadFixtureCosts(filepath.Join(configDir, "fixture_costs.json"), &c.Fixtures); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadGrades(path string, out *GradeCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []GradeDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("grades.json: %w", err)
	}
	out.ByGrade = map[Grade]GradeDef{}
	for _, d := range defs {
		if !d.Grade.Valid() {
			return fmt.Errorf("grades.json: unknown grade %q", d.Grade)
		}
		if d.BaseHealth <= 0 {
			return fmt.Errorf("grades.json: %s: base_health must be positive", d.Grade)
		}
		out.ByGrade[d.Grade] = d
	}
	return nil
}

func loadPrefabs(path string, out *PrefabCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []PrefabDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("prefabs.json: %w", err)
	}
	out.ByName = map[string]PrefabDef{}
	for _, d := range defs {
		if d.Name == "" {
			return fmt.Errorf("prefabs.json: empty name")
		}
		if !d.Kind.Valid() {
			return fmt.Errorf("prefabs.json: %s: unknown kind %q", d.Name, d.Kind)
		}
		if _, dup := out.ByName[d.Name]; dup {
			return fmt.Errorf("prefabs.json: duplicate %s", d.Name)
		}
		for g := range d.GradeCost {
			if !g.Valid() {
				return fmt.Errorf("prefabs.json: %s: unknown grade %q", d.Name, g)
			}
		}
		if d.Kind == KindBlock && d.HealthScale <= 0 {
			d.HealthScale = 1
		}
		out.ByName[d.Name] = d
	}
	return nil
}

func loadFixtureCosts(path string, out *FixtureCostCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		// Without a table fixtures replicate for free.
		if os.IsNotExist(err) {
			out.Digest = sha256Hex(nil)
			return nil
		}
		return err
	}
	out.Digest = sha256Hex(raw)
	if err := json.Unmarshal(raw, &out.Rules); err != nil {
		return fmt.Errorf("fixture_costs.json: %w", err)
	}
	for i, r := range out.Rules {
		if r.Match == "" {
			return fmt.Errorf("fixture_costs.json: rule %d: empty match", i)
		}
	}
	return nil
}

func (c *Catalogs) Prefab(name string) (PrefabDef, bool) {
	if c == nil {
		return PrefabDef{}, false
	}
	d, ok := c.Prefabs.ByName[name]
	return d, ok
}

// KindOf returns the prefab's kind, or KindDeployable for unknown prefabs.
func (c *Catalogs) KindOf(name string) Kind {
	if d, ok := c.Prefab(name); ok {
		return d.Kind
	}
	return KindDeployable
}

// IsFoundation reports whether a prefab belongs to the foundation family
// (square and triangle foundations).
func (c *Catalogs) IsFoundation(name string) bool {
	if d, ok := c.Prefab(name); ok && d.Family != "" {
		return d.Family == "foundation"
	}
	return strings.Contains(name, "foundation")
}

// GradeCost is the intrinsic build cost of a block at a grade.
func (c *Catalogs) GradeCost(name string, g Grade) []ItemCount {
	d, ok := c.Prefab(name)
	if !ok || d.Kind != KindBlock {
		return nil
	}
	return cloneCost(d.GradeCost[g])
}

// FixtureCost looks the prefab name up in the substring rule table.
func (c *Catalogs) FixtureCost(name string) []ItemCount {
	if c == nil || name == "" {
		return nil
	}
	for _, r := range c.Fixtures.Rules {
		if strings.Contains(name, r.Match) {
			return cloneCost(r.Cost)
		}
	}
	return nil
}

// CostFor picks the graded cost for blocks and the fixture table otherwise.
func (c *Catalogs) CostFor(name string, g Grade) []ItemCount {
	if c.KindOf(name) == KindBlock && g != "" {
		return c.GradeCost(name, g)
	}
	return c.FixtureCost(name)
}

// MaxHealth of a prefab at a grade. Unknown prefabs get 0.
func (c *Catalogs) MaxHealth(name string, g Grade) float64 {
	d, ok := c.Prefab(name)
	if !ok {
		return 0
	}
	if d.Kind != KindBlock {
		return d.MaxHealth
	}
	gd, ok := c.Grades.ByGrade[g]
	if !ok {
		return 0
	}
	return gd.BaseHealth * d.HealthScale
}

// Names returns all prefab names, sorted.
func (c *Catalogs) Names() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.Prefabs.ByName))
	for n := range c.Prefabs.ByName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func cloneCost(in []ItemCount) []ItemCount {
	if len(in) == 0 {
		return nil
	}
	out := make([]ItemCount, 0, len(in))
	for _, c := range in {
		if c.Item == "" || c.Count <= 0 {
			continue
		}
		out = append(out, c)
	}
	return out
}
