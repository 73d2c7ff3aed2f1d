// Package command decodes chat commands and UI controls into a closed set of
// symmetry commands. Decoding happens once, at the boundary; the world only
// ever sees Command values.
package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"

	"symcraft.ai/internal/sim/symmetry"
)

// Name is the chat command the symmetry commands hang off. UI buttons
// arrive as "ui <control>".
const (
	Name   = "sym"
	UIName = "ui"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrUnknownType    = errors.New("unknown symmetry type")
	// ErrUnknownControl is returned for control ids nobody handles. Callers
	// ignore it silently.
	ErrUnknownControl = errors.New("unknown control")
)

type Kind int

const (
	KindToggleView Kind = iota + 1
	KindToggleEnabled
	KindSetCenter
	KindAutoDetect
	KindDeleteCenter
	KindSelectType
)

func (k Kind) String() string {
	switch k {
	case KindToggleView:
		return "toggle_view"
	case KindToggleEnabled:
		return "toggle"
	case KindSetCenter:
		return "set"
	case KindAutoDetect:
		return "auto"
	case KindDeleteCenter:
		return "delete"
	case KindSelectType:
		return "type"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Source tells whether a command came from chat or from a UI control.
// Controls run without chat confirmations.
type Source int

const (
	SourceChat Source = iota
	SourceControl
)

type Command struct {
	Kind   Kind
	Source Source

	// Group is set for KindSelectType.
	Group symmetry.GroupType
	// Auto runs detection after a successful KindSetCenter.
	Auto bool
}

// Quiet reports whether the command should run without chat replies.
func (c Command) Quiet() bool { return c.Source == SourceControl }

var subcommands = []string{"toggle", "set", "auto", "delete"}

// Parse decodes "sym [args...]".
func Parse(name string, args []string) (Command, error) {
	name = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), "/")
	if name == UIName {
		if len(args) == 0 {
			return Command{}, fmt.Errorf("%w: missing control id", ErrUnknownControl)
		}
		return ParseControl(args[0])
	}
	if name != Name {
		return Command{}, fmt.Errorf("%w %q", ErrUnknownCommand, name)
	}
	if len(args) == 0 {
		return Command{Kind: KindToggleView}, nil
	}
	sub := strings.ToLower(strings.TrimSpace(args[0]))
	switch sub {
	case "toggle":
		return Command{Kind: KindToggleEnabled}, nil
	case "set":
		auto := len(args) > 1 && strings.EqualFold(strings.TrimSpace(args[1]), "auto")
		return Command{Kind: KindSetCenter, Auto: auto}, nil
	case "auto":
		return Command{Kind: KindAutoDetect}, nil
	case "delete":
		return Command{Kind: KindDeleteCenter}, nil
	}
	g, err := symmetry.ParseGroupType(sub)
	if err != nil {
		return Command{}, unknownType(sub)
	}
	return Command{Kind: KindSelectType, Group: g}, nil
}

// ParseControl decodes a UI control id.
func ParseControl(id string) (Command, error) {
	switch id {
	case "ToggleBtn":
		return Command{Kind: KindToggleEnabled, Source: SourceControl}, nil
	case "SetBtn":
		return Command{Kind: KindSetCenter, Auto: true, Source: SourceControl}, nil
	case "DeleteBtn":
		return Command{Kind: KindDeleteCenter, Source: SourceControl}, nil
	}
	if suffix, ok := strings.CutPrefix(id, "Type"); ok && suffix != "" {
		g, err := symmetry.ParseGroupType(suffix)
		if err != nil {
			return Command{}, fmt.Errorf("%w %q", ErrUnknownControl, id)
		}
		return Command{Kind: KindSelectType, Group: g, Source: SourceControl}, nil
	}
	return Command{}, fmt.Errorf("%w %q", ErrUnknownControl, id)
}

func unknownType(token string) error {
	msg := fmt.Sprintf("%q; available types: %s", token, strings.Join(symmetry.GroupNames(), ", "))
	candidates := append(append([]string{}, subcommands...), symmetry.GroupNames()...)
	if s := Suggest(token, candidates); s != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", s)
	}
	return fmt.Errorf("%w %s", ErrUnknownType, msg)
}

// Suggest returns the closest candidate to token, or "" when nothing is
// close enough. Prefix matches win over edit distance.
func Suggest(token string, candidates []string) string {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return ""
	}
	best := ""
	bestDist := -1
	for _, cand := range candidates {
		if len(token) >= 2 && strings.HasPrefix(cand, token) {
			return cand
		}
		d := levenshtein.ComputeDistance(token, cand)
		if d > distanceLimit(len(cand)) {
			continue
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = cand, d
		}
	}
	return best
}

func distanceLimit(n int) int {
	switch {
	case n <= 3:
		return 1
	case n <= 6:
		return 2
	default:
		return 3
	}
}
