package las

import (
	"io"
	"math"
	"sync"

	"github.com/pkg/errors"

	"github.com/geodense/lascloud/internal/converters"
	"github.com/geodense/lascloud/internal/geometry"
)

// The WKT coordinate system VLR of LAS 1.4.
const (
	projectionUserID = "LASF_Projection"
	wktRecordID      = 2112
)

// LAS aggregates the header, variable length records and a point view.
// The container owns its header and any file backing; derived views
// produced by Filter, Slice and Update reference the parent's backing,
// which must stay open while they are in use.
type LAS struct {
	Header Header
	VLRs   []VLR
	EVLRs  []EVLR

	// Compressed records whether the source carried laszip compression.
	Compressed bool

	points   PointView
	warnings []Warning

	crsOverride string
	closers     []io.Closer

	mu sync.RWMutex
}

// New builds a container around an owned record slice. The header's
// format and counts are aligned with the records.
func New(header Header, records []PointRecord) *LAS {
	header.PointCount = uint64(len(records))
	l := &LAS{Header: header, points: NewOwnedView(header.Format, records)}
	return l
}

func (l *LAS) Len() int {
	return l.points.Len()
}

func (l *LAS) Format() PointFormat {
	return l.Header.Format
}

// View exposes the underlying point view.
func (l *LAS) View() PointView {
	return l.points
}

// Warnings lists the non fatal conditions collected while reading or
// writing this container.
func (l *LAS) Warnings() []Warning {
	return l.warnings
}

func (l *LAS) warn(w Warning) {
	l.warnings = append(l.warnings, w)
}

// At returns the record at index i.
func (l *LAS) At(i int) (PointRecord, error) {
	return l.points.Get(i)
}

// Close releases any file or stream backing. Derived containers share
// the parent backing and must not outlive it.
func (l *LAS) Close() error {
	var first error
	for _, c := range l.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	l.closers = nil
	return first
}

// derive clones the container around a new view, dropping ownership of
// the backing (the parent keeps it).
func (l *LAS) derive(view PointView) *LAS {
	return &LAS{
		Header:      l.Header,
		VLRs:        l.VLRs,
		EVLRs:       l.EVLRs,
		Compressed:  l.Compressed,
		points:      view,
		crsOverride: l.crsOverride,
	}
}

// Slice returns a container over the half open record range [from, to).
func (l *LAS) Slice(from, to int) (*LAS, error) {
	view, err := NewRangeView(l.points, from, to)
	if err != nil {
		return nil, err
	}
	out := l.derive(view)
	out.Header.PointCount = uint64(view.Len())
	return out, nil
}

// SelectMask returns a container over the points whose bits are set.
func (l *LAS) SelectMask(mask []uint64) (*LAS, error) {
	view, err := NewMaskedViewFromBits(l.points, mask)
	if err != nil {
		return nil, err
	}
	out := l.derive(view)
	out.Header.PointCount = uint64(view.Len())
	return out, nil
}

// Filter returns a new container keeping the points that satisfy the
// predicate. Summary statistics are recomputed on the result.
func (l *LAS) Filter(pred func(r *PointRecord) bool) (*LAS, error) {
	masked := NewMaskedView(l.points)
	if err := masked.FilterInPlace(pred); err != nil {
		return nil, err
	}
	out := l.derive(masked)
	out.Header.PointCount = uint64(masked.Len())
	if err := out.RecomputeSummary(); err != nil && !errors.Is(err, ErrUnavailable) {
		return nil, err
	}
	return out, nil
}

// FilterInPlace narrows the container itself. It refuses on non owning
// views other than Masked, leaving the container untouched.
func (l *LAS) FilterInPlace(pred func(r *PointRecord) bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch view := l.points.(type) {
	case *MaskedView:
		if err := view.FilterInPlace(pred); err != nil {
			return err
		}
	case *OwnedView:
		kept := view.records[:0]
		for i := range view.records {
			if pred(&view.records[i]) {
				kept = append(kept, view.records[i])
			}
		}
		view.records = kept
	default:
		return errors.Wrapf(ErrValidation, "cannot filter a %T in place", l.points)
	}
	l.Header.PointCount = uint64(l.points.Len())
	return l.recomputeSummaryLocked()
}

// HeaderOverrides substitutes header fields on Update. Nil members keep
// the current value.
type HeaderOverrides struct {
	Scale        *[3]float64
	Offset       *[3]float64
	SystemID     *string
	SoftwareID   *string
	FileSourceID *uint16

	// Recompute forces the summary walk even when no overlaid attribute
	// demands one.
	Recompute bool
}

// Update returns a new container layering the overlay over the current
// view. Coordinate extrema and return counts are recomputed when the
// overlay touches coordinates or return numbers, when scale or offset
// change, or when explicitly requested.
func (l *LAS) Update(overlay *Overlay, overrides *HeaderOverrides) (*LAS, error) {
	view, err := NewUpdatedView(l.points, overlay)
	if err != nil {
		return nil, err
	}
	out := l.derive(view)

	recompute := overlay.Has(AttrX, AttrY, AttrZ, AttrReturnNumber)
	if overrides != nil {
		if overrides.Scale != nil {
			out.Header.Scale = *overrides.Scale
			recompute = true
		}
		if overrides.Offset != nil {
			out.Header.Offset = *overrides.Offset
			recompute = true
		}
		if overrides.SystemID != nil {
			out.Header.SystemID = *overrides.SystemID
		}
		if overrides.SoftwareID != nil {
			out.Header.SoftwareID = *overrides.SoftwareID
		}
		if overrides.FileSourceID != nil {
			out.Header.FileSourceID = *overrides.FileSourceID
		}
		recompute = recompute || overrides.Recompute
	}
	if recompute {
		if err := out.RecomputeSummary(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Coordinate rescales the raw integer coordinates of point i into the
// container's CRS units.
func (l *LAS) Coordinate(i int) (geometry.Coordinate, error) {
	var rec PointRecord
	if err := l.points.ReadAttrs(i, []Attr{AttrX, AttrY, AttrZ}, &rec); err != nil {
		return geometry.Coordinate{}, err
	}
	return l.rescale(&rec), nil
}

func (l *LAS) rescale(r *PointRecord) geometry.Coordinate {
	return geometry.Coordinate{
		X: float64(r.X)*l.Header.Scale[0] + l.Header.Offset[0],
		Y: float64(r.Y)*l.Header.Scale[1] + l.Header.Offset[1],
		Z: float64(r.Z)*l.Header.Scale[2] + l.Header.Offset[2],
	}
}

// TransformedCoordinate rescales point i and reprojects it into the
// target CRS through the converter.
func (l *LAS) TransformedCoordinate(i int, targetCRS string, conv converters.CoordinateConverter) (geometry.Coordinate, error) {
	coord, err := l.Coordinate(i)
	if err != nil {
		return geometry.Coordinate{}, err
	}
	source, ok := l.CRS()
	if !ok {
		return geometry.Coordinate{}, errors.Wrap(ErrValidation, "container carries no CRS to transform from")
	}
	return conv.Convert(source, targetCRS, coord)
}

// CRS returns the container's coordinate system: the override supplied
// at read time if any, else the WKT VLR when the header's well known
// text flag is set. Callers wanting the GeoKey directory parse the VLRs
// through the geokey package instead.
func (l *LAS) CRS() (string, bool) {
	if l.crsOverride != "" {
		return l.crsOverride, true
	}
	if l.Header.WellKnownText() {
		if v, ok := FindVLR(l.VLRs, projectionUserID, wktRecordID); ok {
			return trimFixedString(v.Data), true
		}
	}
	return "", false
}

// Min returns the rescaled minimum corner from the header summary.
func (l *LAS) Min() geometry.Coordinate {
	return geometry.Coordinate{X: l.Header.Min[0], Y: l.Header.Min[1], Z: l.Header.Min[2]}
}

// Max returns the rescaled maximum corner from the header summary.
func (l *LAS) Max() geometry.Coordinate {
	return geometry.Coordinate{X: l.Header.Max[0], Y: l.Header.Max[1], Z: l.Header.Max[2]}
}

// Extrema returns the summary bounding box.
func (l *LAS) Extrema() *geometry.BoundingBox {
	return geometry.NewBoundingBox(
		l.Header.Min[0], l.Header.Max[0],
		l.Header.Min[1], l.Header.Max[1],
		l.Header.Min[2], l.Header.Max[2])
}

// summary holds statistics recomputed from a point walk.
type summary struct {
	min, max       [3]float64
	pointsByReturn [15]uint64
	count          uint64
}

// computeSummary walks the view exactly once.
func (l *LAS) computeSummary() (summary, error) {
	s := summary{}
	for d := 0; d < 3; d++ {
		s.min[d] = math.Inf(1)
		s.max[d] = math.Inf(-1)
	}
	err := l.points.Iter(func(i int, r *PointRecord) bool {
		c := l.rescale(r)
		for d, v := range [3]float64{c.X, c.Y, c.Z} {
			if v < s.min[d] {
				s.min[d] = v
			}
			if v > s.max[d] {
				s.max[d] = v
			}
		}
		if n := int(r.ReturnNumber); n >= 1 && n <= 15 {
			s.pointsByReturn[n-1]++
		}
		s.count++
		return true
	})
	if err != nil {
		return s, err
	}
	if s.count == 0 {
		s.min = [3]float64{}
		s.max = [3]float64{}
	}
	return s, nil
}

// RecomputeSummary walks the current view once under a read lock and
// stores the resulting extrema and per return counts in the header.
func (l *LAS) RecomputeSummary() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.recomputeSummaryLocked()
}

func (l *LAS) recomputeSummaryLocked() error {
	s, err := l.computeSummary()
	if err != nil {
		return err
	}
	l.Header.Min = s.min
	l.Header.Max = s.max
	l.Header.PointsByReturn = s.pointsByReturn
	l.Header.PointCount = s.count
	return nil
}
