// Package autodetect infers a rotational symmetry group from the layout of an
// actor's foundations around their frame center.
package autodetect

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"symcraft.ai/internal/sim/frames"
	"symcraft.ai/internal/sim/geom"
	"symcraft.ai/internal/sim/symmetry"
)

var (
	// ErrInsufficientData is non-fatal: the result still carries the
	// fallback group.
	ErrInsufficientData = errors.New("insufficient foundations for detection")
	ErrNoCenter         = errors.New("symmetry center not set")
)

const (
	DefaultRadius    = 50.0
	DefaultMinOffset = 0.1
	DefaultMinGapDeg = 0.1

	minBearings = 3
)

// Candidate is a structural entity found near the center.
type Candidate struct {
	EntityID string
	Prefab   string
	OwnerID  string
	Position geom.Point3
}

type Result struct {
	Group    symmetry.GroupType
	Fallback bool
	Bearings []float64
	MinGap   float64
	Order    int
}

type Detector struct {
	// Query returns structural entities within radius of center.
	Query  func(center geom.Point3, radius float64) []Candidate
	Frames *frames.Store

	Radius    float64
	MinOffset float64
	MinGapDeg float64

	IsFoundation func(prefab string) bool
}

func (d *Detector) radius() float64 {
	if d.Radius > 0 {
		return d.Radius
	}
	return DefaultRadius
}

func (d *Detector) minOffset() float64 {
	if d.MinOffset > 0 {
		return d.MinOffset
	}
	return DefaultMinOffset
}

func (d *Detector) minGap() float64 {
	if d.MinGapDeg > 0 {
		return d.MinGapDeg
	}
	return DefaultMinGapDeg
}

func (d *Detector) isFoundation(prefab string) bool {
	if d.IsFoundation == nil {
		return true
	}
	return d.IsFoundation(prefab)
}

// Classify runs the bearing analysis on candidates without touching any
// frame. With fewer than three usable bearings it returns Rotational4 and
// ErrInsufficientData.
func (d *Detector) Classify(center geom.Point3, actorID string, candidates []Candidate) (Result, error) {
	bearings := make([]float64, 0, len(candidates))
	for _, c := range candidates {
		if c.OwnerID != actorID || !d.isFoundation(c.Prefab) {
			continue
		}
		off := geom.Horizontal(c.Position.Sub(center))
		if off.Len() < d.minOffset() {
			continue
		}
		bearings = append(bearings, geom.BearingDeg(off))
	}

	res := Result{Group: symmetry.Rotational4, Bearings: bearings}
	if len(bearings) < minBearings {
		res.Fallback = true
		return res, fmt.Errorf("%w: %d usable of %d needed", ErrInsufficientData, len(bearings), minBearings)
	}

	sort.Float64s(bearings)
	// The wrap-around gap counts. A single cluster leaves only that gap, and
	// fully coincident bearings leave none, so both end up at order 2.
	minGap := 360.0
	for i := range bearings {
		next := bearings[(i+1)%len(bearings)]
		gap := math.Mod(next-bearings[i]+360, 360)
		if gap > d.minGap() && gap < minGap {
			minGap = gap
		}
	}

	order := int(math.Round(360 / minGap))
	if order < 2 {
		order = 2
	}
	if order > 6 {
		order = 6
	}
	res.MinGap = minGap
	res.Order = order
	res.Group = symmetry.RotationalForOrder(order)
	return res, nil
}

// Detect classifies the foundations around the actor's frame center and
// stores the resulting group on the frame, fallback included.
func (d *Detector) Detect(actorID string) (Result, error) {
	if d.Frames == nil {
		return Result{}, ErrNoCenter
	}
	f, ok := d.Frames.Peek(actorID)
	if !ok || !f.HasCenter {
		return Result{}, ErrNoCenter
	}
	var candidates []Candidate
	if d.Query != nil {
		candidates = d.Query(f.Center, d.radius())
	}
	res, err := d.Classify(f.Center, actorID, candidates)
	f.Group = res.Group
	return res, err
}
