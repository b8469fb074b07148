package cloud

import (
	"github.com/pkg/errors"

	"github.com/geodense/lascloud/internal/converters"
	"github.com/geodense/lascloud/internal/geometry"
	"github.com/geodense/lascloud/pkg/geokey"
	"github.com/geodense/lascloud/pkg/las"
)

// AttrSpec names one attribute column and the extractor producing its
// values. Extractors run on the raw point record, before any rescaling.
type AttrSpec struct {
	Name    string
	Extract func(f las.PointFormat, r *las.PointRecord) interface{}
}

// Standard extractors for common attributes.

func IntensityAttr() AttrSpec {
	return AttrSpec{Name: "intensity", Extract: func(_ las.PointFormat, r *las.PointRecord) interface{} {
		return r.Intensity
	}}
}

func ClassificationAttr() AttrSpec {
	return AttrSpec{Name: "classification", Extract: func(_ las.PointFormat, r *las.PointRecord) interface{} {
		return r.Classification
	}}
}

func ReturnNumberAttr() AttrSpec {
	return AttrSpec{Name: "return_number", Extract: func(_ las.PointFormat, r *las.PointRecord) interface{} {
		return r.ReturnNumber
	}}
}

func GPSTimeAttr() AttrSpec {
	return AttrSpec{Name: "gps_time", Extract: func(_ las.PointFormat, r *las.PointRecord) interface{} {
		return r.GPSTime
	}}
}

// BuildOptions configures construction of a cloud from LAS sources.
type BuildOptions struct {
	// Attributes to extract beside the coordinates.
	Attributes []AttrSpec

	// Coordinates selects a subset of {x, y, z}; nil keeps all three.
	Coordinates []string

	// CRS is the target reference system. Empty keeps the source CRS
	// and skips reprojection.
	CRS string

	// Extent drops points outside this box, expressed in the target
	// CRS and widened by CoordTolerance.
	Extent *geometry.BoundingBox

	// Filter drops points failing the predicate; it sees the raw
	// record.
	Filter func(f las.PointFormat, r *las.PointRecord) bool

	CoordTolerance float64

	// Converter reprojects coordinates when CRS differs from the
	// source. Required in that case.
	Converter converters.CoordinateConverter
}

// sourceCRS resolves the CRS of a container: the explicit declaration
// first, then the GeoKey directory.
func sourceCRS(l *las.LAS) string {
	if crs, ok := l.CRS(); ok {
		return crs
	}
	if keys, err := geokey.Parse(l.VLRs); err == nil {
		if crs, ok := keys.CRSOf(); ok {
			return crs
		}
	}
	return ""
}

// FromLAS builds a cloud from a single container.
func FromLAS(l *las.LAS, opts BuildOptions) (*PointCloud, error) {
	return FromLASMulti([]*las.LAS{l}, opts)
}

// FromLASMulti builds one cloud from several containers, appending
// their points in input order. Every container is reprojected into the
// target CRS through the converter when it declares a different one.
func FromLASMulti(sources []*las.LAS, opts BuildOptions) (*PointCloud, error) {
	coordNames := opts.Coordinates
	if coordNames == nil {
		coordNames = []string{ColX, ColY, ColZ}
	}
	wantCoord := map[string]bool{}
	for _, name := range coordNames {
		if name != ColX && name != ColY && name != ColZ {
			return nil, errors.Wrapf(ErrColumnType, "unknown coordinate %q", name)
		}
		wantCoord[name] = true
	}

	coords := map[string][]float64{}
	builders := make([]*columnBuilder, len(opts.Attributes))
	for i := range builders {
		builders[i] = &columnBuilder{}
	}

	targetCRS := opts.CRS
	cloudCRS := targetCRS

	for _, l := range sources {
		source := sourceCRS(l)
		if cloudCRS == "" {
			cloudCRS = source
		}
		transform := targetCRS != "" && source != "" && source != targetCRS
		if transform && opts.Converter == nil {
			return nil, errors.Wrapf(ErrColumnType,
				"source CRS %q differs from target %q and no converter given", source, targetCRS)
		}

		format := l.Format()
		var loopErr error
		err := l.View().Iter(func(i int, r *las.PointRecord) bool {
			c := rescale(l, r)
			if transform {
				converted, err := opts.Converter.Convert(source, targetCRS, c)
				if err != nil {
					loopErr = err
					return false
				}
				c = converted
			}
			if opts.Extent != nil && !opts.Extent.Contains(c, opts.CoordTolerance) {
				return true
			}
			if opts.Filter != nil && !opts.Filter(format, r) {
				return true
			}
			if wantCoord[ColX] {
				coords[ColX] = append(coords[ColX], c.X)
			}
			if wantCoord[ColY] {
				coords[ColY] = append(coords[ColY], c.Y)
			}
			if wantCoord[ColZ] {
				coords[ColZ] = append(coords[ColZ], c.Z)
			}
			for j, spec := range opts.Attributes {
				if err := builders[j].append(spec.Extract(format, r)); err != nil {
					loopErr = errors.Wrapf(err, "attribute %q at point %d", spec.Name, i)
					return false
				}
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		if loopErr != nil {
			return nil, loopErr
		}
	}

	pc := New(cloudCRS)
	for _, name := range coordNames {
		if err := pc.SetColumn(name, F64Column(coords[name])); err != nil {
			return nil, err
		}
	}
	for j, spec := range opts.Attributes {
		col := builders[j].col
		if col == nil {
			col = &Column{kind: KindF64}
		}
		if err := pc.SetColumn(spec.Name, col); err != nil {
			return nil, err
		}
	}
	return pc, nil
}

// rescale applies the container scale and offset to raw coordinates.
func rescale(l *las.LAS, r *las.PointRecord) geometry.Coordinate {
	h := l.Header
	return geometry.Coordinate{
		X: float64(r.X)*h.Scale[0] + h.Offset[0],
		Y: float64(r.Y)*h.Scale[1] + h.Offset[1],
		Z: float64(r.Z)*h.Scale[2] + h.Offset[2],
	}
}
