package symmetry

import (
	"errors"
	"fmt"
	"strings"
)

// GroupType is one of the supported symmetry groups. Only vertical-axis
// rotations and mirrors through the frame's forward/right planes exist.
type GroupType int

const (
	Rotational2 GroupType = iota + 1
	Rotational3
	Rotational4
	Rotational6
	Mirror2
	Mirror4
)

// DefaultGroup is the group a fresh frame starts with.
const DefaultGroup = Rotational4

var ErrUnsupportedGroup = errors.New("unsupported symmetry group")

var groupNames = map[GroupType]string{
	Rotational2: "n2s",
	Rotational3: "n3s",
	Rotational4: "n4s",
	Rotational6: "n6s",
	Mirror2:     "m2s",
	Mirror4:     "m4s",
}

// AllGroupTypes lists the supported groups in display order.
func AllGroupTypes() []GroupType {
	return []GroupType{Rotational2, Rotational3, Rotational4, Rotational6, Mirror2, Mirror4}
}

// GroupNames returns the wire names of AllGroupTypes, in the same order.
func GroupNames() []string {
	all := AllGroupTypes()
	out := make([]string, 0, len(all))
	for _, g := range all {
		out = append(out, g.String())
	}
	return out
}

func (g GroupType) String() string {
	if s, ok := groupNames[g]; ok {
		return s
	}
	return fmt.Sprintf("GroupType(%d)", int(g))
}

func (g GroupType) Valid() bool {
	_, ok := groupNames[g]
	return ok
}

// Order is the total number of positions in the group, original included.
func (g GroupType) Order() int {
	switch g {
	case Rotational2, Mirror2:
		return 2
	case Rotational3:
		return 3
	case Rotational4, Mirror4:
		return 4
	case Rotational6:
		return 6
	default:
		return 0
	}
}

func (g GroupType) IsMirror() bool { return g == Mirror2 || g == Mirror4 }

// ParseGroupType accepts the wire names case-insensitively.
func ParseGroupType(s string) (GroupType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for g, name := range groupNames {
		if name == s {
			return g, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedGroup, s)
}

// RotationalForOrder maps an estimated order to the nearest supported
// rotational group. 5 sits between 4 and 6 and goes to the lower order.
func RotationalForOrder(n int) GroupType {
	switch {
	case n <= 2:
		return Rotational2
	case n == 3:
		return Rotational3
	case n == 4, n == 5:
		return Rotational4
	default:
		return Rotational6
	}
}
