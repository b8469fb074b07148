package converters

import (
	"github.com/geodense/lascloud/internal/geometry"
)

// CoordinateConverter reprojects coordinates between reference systems
// identified by proj4 definitions or "EPSG:nnnn" codes. Implementations
// are not required to be thread safe; callers must consult ThreadSafe
// before sharing a converter across goroutines.
type CoordinateConverter interface {
	Convert(sourceCRS string, targetCRS string, coord geometry.Coordinate) (geometry.Coordinate, error)
	ConvertBoundingBox(bbox *geometry.BoundingBox, sourceCRS string, targetCRS string) (*geometry.BoundingBox, error)
	ThreadSafe() bool
	Cleanup()
}

// ElevationCorrector adjusts point elevations during conversion, e.g. to
// apply a constant datum offset.
type ElevationCorrector interface {
	CorrectElevation(lon, lat, z float64) float64
}
