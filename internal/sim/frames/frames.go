// Package frames holds per-actor symmetry frames for the lifetime of a
// session. The store is owned by the world loop and is not safe for
// concurrent use.
package frames

import (
	"symcraft.ai/internal/sim/geom"
	"symcraft.ai/internal/sim/symmetry"
)

// Frame is an actor's symmetry origin plus the selected group.
type Frame struct {
	Center      geom.Point3
	Orientation geom.Rotation3
	HasCenter   bool

	Group   symmetry.GroupType
	Enabled bool

	// ViewVisible controls whether the actor receives view-model updates.
	ViewVisible bool
}

// Snapshot is a value copy of the parts of a frame that deferred work
// depends on. Later edits to the live frame do not reach it.
type Snapshot struct {
	Frame geom.Frame
	Group symmetry.GroupType
}

// ViewModel is what the view layer renders for an actor.
type ViewModel struct {
	Visible   bool   `json:"visible"`
	Enabled   bool   `json:"enabled"`
	CenterSet bool   `json:"center_set"`
	GroupType string `json:"group_type"`
}

func newFrame(group symmetry.GroupType) *Frame {
	return &Frame{
		Orientation: geom.Identity(),
		Group:       group,
		ViewVisible: true,
	}
}

// Active reports whether replication hooks should fire for this frame.
func (f *Frame) Active() bool {
	return f != nil && f.Enabled && f.HasCenter
}

// SetCenter places the frame. The orientation is normalized on write.
func (f *Frame) SetCenter(center geom.Point3, orientation geom.Rotation3) {
	f.Center = center
	f.Orientation = geom.NormalizeRotation(orientation)
	f.HasCenter = true
}

func (f *Frame) ClearCenter() {
	f.Center = geom.Point3{}
	f.Orientation = geom.Identity()
	f.HasCenter = false
}

func (f *Frame) Snapshot() Snapshot {
	return Snapshot{
		Frame: geom.NewFrame(f.Center, f.Orientation),
		Group: f.Group,
	}
}

func (f *Frame) View() ViewModel {
	return ViewModel{
		Visible:   f.ViewVisible,
		Enabled:   f.Enabled,
		CenterSet: f.HasCenter,
		GroupType: f.Group.String(),
	}
}

// Store maps actor ids to frames.
type Store struct {
	byActor      map[string]*Frame
	defaultGroup symmetry.GroupType
}

func NewStore() *Store {
	return NewStoreWithGroup(symmetry.DefaultGroup)
}

// NewStoreWithGroup creates frames starting in group g. Invalid groups fall
// back to the package default.
func NewStoreWithGroup(g symmetry.GroupType) *Store {
	if !g.Valid() {
		g = symmetry.DefaultGroup
	}
	return &Store{byActor: map[string]*Frame{}, defaultGroup: g}
}

// Get returns the actor's frame, creating it on first access.
func (s *Store) Get(actorID string) *Frame {
	if f := s.byActor[actorID]; f != nil {
		return f
	}
	f := newFrame(s.defaultGroup)
	s.byActor[actorID] = f
	return f
}

// Peek returns the frame without creating one.
func (s *Store) Peek(actorID string) (*Frame, bool) {
	f, ok := s.byActor[actorID]
	return f, ok
}

// Clear drops the actor's frame (disconnect).
func (s *Store) Clear(actorID string) {
	delete(s.byActor, actorID)
}

func (s *Store) Len() int { return len(s.byActor) }

// Put installs a copy of f as the actor's frame.
func (s *Store) Put(actorID string, f Frame) {
	s.byActor[actorID] = &f
}
