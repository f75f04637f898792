// Package organ recenters a set of parts as one aggregate model and records the offsets applied.
package organ

import (
	"github.com/binzume/organconv/geom"
	"github.com/pkg/errors"
)

// Mode selects which centering steps are applied.
type Mode string

const (
	ModeAggregate Mode = "aggregate"
	ModeParts     Mode = "parts"
	ModeBoth      Mode = "both"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeAggregate, ModeParts, ModeBoth:
		return m, nil
	case "":
		return ModeBoth, nil
	}
	return "", errors.Errorf("unknown centering mode %q (aggregate, parts, both)", s)
}

func (m Mode) Aggregate() bool {
	return m == ModeAggregate || m == ModeBoth
}

func (m Mode) Parts() bool {
	return m == ModeParts || m == ModeBoth
}

// Pivot selects the point of a mesh that is moved to the origin.
type Pivot string

const (
	// PivotMedian is the mean of all vertex positions.
	PivotMedian Pivot = "median"
	// PivotBounds is the center of the bounding box.
	PivotBounds Pivot = "bounds"
)

func ParsePivot(s string) (Pivot, error) {
	switch p := Pivot(s); p {
	case PivotMedian, PivotBounds:
		return p, nil
	case "":
		return PivotMedian, nil
	}
	return "", errors.Errorf("unknown pivot %q (median, bounds)", s)
}

// Of returns the pivot of points.
func (p Pivot) Of(points []*geom.Vector3) *geom.Vector3 {
	if p == PivotBounds {
		return geom.Bounds(points).Center()
	}
	return geom.Mean(points)
}

// Scene is the part of a 3D scene the centering needs.
type Scene interface {
	// PartNames returns the parts in import order.
	PartNames() []string
	Pivot(name string, pivot Pivot) (*geom.Vector3, error)
	Translate(name string, d *geom.Vector3) error
}

func pivots(s Scene, pivot Pivot) ([]string, []*geom.Vector3, error) {
	names := s.PartNames()
	points := make([]*geom.Vector3, len(names))
	for i, name := range names {
		p, err := s.Pivot(name, pivot)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "pivot of %s", name)
		}
		points[i] = p
	}
	return names, points, nil
}

// CenterAggregate moves the pivot of the set of part pivots to the origin and stores it as the
// body offset. No-op for an empty scene.
func CenterAggregate(s Scene, pivot Pivot, rec *Offsets) error {
	names, points, err := pivots(s, pivot)
	if err != nil || len(names) == 0 {
		return err
	}
	body := pivot.Of(points)
	d := body.Neg()
	for _, name := range names {
		if err := s.Translate(name, d); err != nil {
			return errors.Wrapf(err, "translate %s", name)
		}
	}
	rec.BodyOffset = *body
	return nil
}

// RecordParts stores the current pivot of each part without moving it.
func RecordParts(s Scene, pivot Pivot, rec *Offsets) error {
	names, points, err := pivots(s, pivot)
	if err != nil {
		return err
	}
	for i, name := range names {
		rec.Parts[name] = points[i]
	}
	return nil
}

// CenterParts moves the pivot of every part to the origin and stores the pivot as the part offset.
func CenterParts(s Scene, pivot Pivot, rec *Offsets) error {
	names, points, err := pivots(s, pivot)
	if err != nil {
		return err
	}
	for i, name := range names {
		if err := s.Translate(name, points[i].Neg()); err != nil {
			return errors.Wrapf(err, "translate %s", name)
		}
		rec.Parts[name] = points[i]
	}
	return nil
}

// Center applies the centering steps of mode and returns the offsets record.
func Center(s Scene, mode Mode, pivot Pivot) (*Offsets, error) {
	rec := NewOffsets(mode, pivot)
	if mode.Aggregate() {
		if err := CenterAggregate(s, pivot, rec); err != nil {
			return nil, err
		}
	}
	var err error
	if mode.Parts() {
		err = CenterParts(s, pivot, rec)
	} else {
		err = RecordParts(s, pivot, rec)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}
