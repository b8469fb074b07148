package las

import (
	"github.com/pkg/errors"
)

// Overlay is a set of per attribute replacement columns consumed by
// UpdatedView. Columns are typed to match the field they replace and
// must be as long as the view they are layered onto.
type Overlay struct {
	columns map[Attr]interface{}
}

func NewOverlay() *Overlay {
	return &Overlay{columns: make(map[Attr]interface{})}
}

// Set stores a replacement column. The concrete slice type must match
// the attribute: int32 for coordinates, uint16 for intensity, colors and
// source id, uint8 for classification style bytes, int16 for the scan
// angle, float64 for GPS time and bool for flags.
func (o *Overlay) Set(attr Attr, column interface{}) error {
	ok := false
	switch attr {
	case AttrX, AttrY, AttrZ:
		_, ok = column.([]int32)
	case AttrIntensity, AttrPointSourceID, AttrRed, AttrGreen, AttrBlue, AttrNIR:
		_, ok = column.([]uint16)
	case AttrReturnNumber, AttrReturnCount, AttrClassification, AttrUserData, AttrScannerChannel:
		_, ok = column.([]uint8)
	case AttrScanAngle:
		_, ok = column.([]int16)
	case AttrGPSTime:
		_, ok = column.([]float64)
	case AttrScanDirection, AttrEdgeOfFlight, AttrSynthetic, AttrKeyPoint, AttrWithheld, AttrOverlap:
		_, ok = column.([]bool)
	default:
		return errors.Wrapf(ErrValidation, "unknown overlay attribute %q", attr)
	}
	if !ok {
		return errors.Wrapf(ErrValidation, "column type %T incompatible with attribute %q", column, attr)
	}
	o.columns[attr] = column
	return nil
}

// Attrs lists the overlaid attributes.
func (o *Overlay) Attrs() []Attr {
	out := make([]Attr, 0, len(o.columns))
	for attr := range o.columns {
		out = append(out, attr)
	}
	return out
}

// Has reports whether any of the given attributes is overlaid.
func (o *Overlay) Has(attrs ...Attr) bool {
	for _, attr := range attrs {
		if _, ok := o.columns[attr]; ok {
			return true
		}
	}
	return false
}

func columnLen(column interface{}) int {
	switch c := column.(type) {
	case []int32:
		return len(c)
	case []uint16:
		return len(c)
	case []uint8:
		return len(c)
	case []int16:
		return len(c)
	case []float64:
		return len(c)
	case []bool:
		return len(c)
	}
	return -1
}

// validateFor checks every column against the target format and length.
func (o *Overlay) validateFor(format PointFormat, length int) error {
	for attr, column := range o.columns {
		if !format.Has(attr) {
			return errors.Wrapf(ErrValidation, "attribute %q does not exist in point format %d", attr, format.ID)
		}
		if n := columnLen(column); n != length {
			return errors.Wrapf(ErrValidation, "overlay column %q has %d values, view has %d points", attr, n, length)
		}
	}
	return nil
}

// apply replaces every overlaid field of r with the column value at i.
func (o *Overlay) apply(i int, r *PointRecord) {
	for attr, column := range o.columns {
		o.applyOne(attr, column, i, r)
	}
}

// applyAttrs replaces only the requested fields.
func (o *Overlay) applyAttrs(i int, r *PointRecord, attrs []Attr) {
	for _, attr := range attrs {
		if column, ok := o.columns[attr]; ok {
			o.applyOne(attr, column, i, r)
		}
	}
}

func (o *Overlay) applyOne(attr Attr, column interface{}, i int, r *PointRecord) {
	switch attr {
	case AttrX:
		r.X = column.([]int32)[i]
	case AttrY:
		r.Y = column.([]int32)[i]
	case AttrZ:
		r.Z = column.([]int32)[i]
	case AttrIntensity:
		r.Intensity = column.([]uint16)[i]
	case AttrPointSourceID:
		r.PointSourceID = column.([]uint16)[i]
	case AttrRed:
		r.Red = column.([]uint16)[i]
	case AttrGreen:
		r.Green = column.([]uint16)[i]
	case AttrBlue:
		r.Blue = column.([]uint16)[i]
	case AttrNIR:
		r.NIR = column.([]uint16)[i]
	case AttrReturnNumber:
		r.ReturnNumber = column.([]uint8)[i]
	case AttrReturnCount:
		r.ReturnCount = column.([]uint8)[i]
	case AttrClassification:
		r.Classification = column.([]uint8)[i]
	case AttrUserData:
		r.UserData = column.([]uint8)[i]
	case AttrScannerChannel:
		r.ScannerChannel = column.([]uint8)[i]
	case AttrScanAngle:
		r.ScanAngle = column.([]int16)[i]
	case AttrGPSTime:
		r.GPSTime = column.([]float64)[i]
	case AttrScanDirection:
		r.ScanDirection = column.([]bool)[i]
	case AttrEdgeOfFlight:
		r.EdgeOfFlight = column.([]bool)[i]
	case AttrSynthetic:
		r.Synthetic = column.([]bool)[i]
	case AttrKeyPoint:
		r.KeyPoint = column.([]bool)[i]
	case AttrWithheld:
		r.Withheld = column.([]bool)[i]
	case AttrOverlap:
		r.Overlap = column.([]bool)[i]
	}
}
