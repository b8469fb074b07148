package converters

import (
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	proj "github.com/xeonx/proj4"

	"github.com/geodense/lascloud/internal/geometry"
)

const toRadians = math.Pi / 180
const toDegrees = 180 / math.Pi

// proj4CoordinateConverter converts coordinates through libproj. Projection
// handles are cached per definition. libproj contexts are not reentrant so
// the converter serializes all transforms behind a mutex and reports itself
// as not thread safe.
type proj4CoordinateConverter struct {
	projections map[string]*proj.Proj
	mu          sync.Mutex
}

func NewProj4CoordinateConverter() CoordinateConverter {
	return &proj4CoordinateConverter{
		projections: make(map[string]*proj.Proj),
	}
}

func (c *proj4CoordinateConverter) Convert(sourceCRS string, targetCRS string, coord geometry.Coordinate) (geometry.Coordinate, error) {
	if sourceCRS == targetCRS {
		return coord, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	src, err := c.projection(sourceCRS)
	if err != nil {
		return coord, err
	}
	dst, err := c.projection(targetCRS)
	if err != nil {
		return coord, err
	}

	x := []float64{coord.X}
	y := []float64{coord.Y}
	z := []float64{coord.Z}
	if src.IsLatLong() {
		x[0] *= toRadians
		y[0] *= toRadians
	}

	if err := proj.TransformRaw(src, dst, x, y, z); err != nil {
		return coord, errors.Wrapf(err, "transforming %q to %q", sourceCRS, targetCRS)
	}

	if dst.IsLatLong() {
		x[0] *= toDegrees
		y[0] *= toDegrees
	}
	return geometry.Coordinate{X: x[0], Y: y[0], Z: z[0]}, nil
}

func (c *proj4CoordinateConverter) ConvertBoundingBox(bbox *geometry.BoundingBox, sourceCRS string, targetCRS string) (*geometry.BoundingBox, error) {
	out := geometry.EmptyBoundingBox()
	corners := []geometry.Coordinate{
		{X: bbox.Xmin, Y: bbox.Ymin, Z: bbox.Zmin},
		{X: bbox.Xmin, Y: bbox.Ymax, Z: bbox.Zmin},
		{X: bbox.Xmax, Y: bbox.Ymin, Z: bbox.Zmin},
		{X: bbox.Xmax, Y: bbox.Ymax, Z: bbox.Zmin},
		{X: bbox.Xmin, Y: bbox.Ymin, Z: bbox.Zmax},
		{X: bbox.Xmin, Y: bbox.Ymax, Z: bbox.Zmax},
		{X: bbox.Xmax, Y: bbox.Ymin, Z: bbox.Zmax},
		{X: bbox.Xmax, Y: bbox.Ymax, Z: bbox.Zmax},
	}
	for _, corner := range corners {
		converted, err := c.Convert(sourceCRS, targetCRS, corner)
		if err != nil {
			return nil, err
		}
		out.Extend(converted)
	}
	return out, nil
}

func (c *proj4CoordinateConverter) ThreadSafe() bool {
	return false
}

func (c *proj4CoordinateConverter) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.projections {
		p.Close()
	}
	c.projections = make(map[string]*proj.Proj)
}

// projection returns the cached handle for a CRS definition, initializing
// it on first use. Accepts "EPSG:nnnn" codes and raw proj4 "+..." strings.
func (c *proj4CoordinateConverter) projection(crs string) (*proj.Proj, error) {
	if p, ok := c.projections[crs]; ok {
		return p, nil
	}
	def, err := proj4Definition(crs)
	if err != nil {
		return nil, err
	}
	p, err := proj.InitPlus(def)
	if err != nil {
		return nil, errors.Wrapf(err, "initializing projection %q", crs)
	}
	c.projections[crs] = p
	return p, nil
}

func proj4Definition(crs string) (string, error) {
	if strings.HasPrefix(crs, "+") {
		return crs, nil
	}
	code := strings.TrimPrefix(strings.ToUpper(crs), "EPSG:")
	if _, err := strconv.Atoi(code); err != nil {
		return "", errors.Errorf("unrecognized CRS %q", crs)
	}
	return "+init=epsg:" + code, nil
}
