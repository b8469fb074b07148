package cloud

import (
	"context"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/geodense/lascloud/internal/geometry"
	"github.com/geodense/lascloud/internal/kdtree"
)

// RasterMode selects how points map to cells.
type RasterMode int

const (
	// ModeFootprint assigns each point to the single cell containing
	// it; points outside the extent are dropped. Cells are half open, so
	// points on the upper x or y edge of the extent are dropped as well.
	ModeFootprint RasterMode = iota
	// ModeRadius collects, per cell, every point within Radius of the
	// cell center in x/y units. Points may land in several cells.
	ModeRadius
	// ModeKNN collects, per cell, exactly K points: the nearest to the
	// cell center.
	ModeKNN
)

// RasterOptions configures Rasterize.
type RasterOptions struct {
	// Extent is the raster footprint; nil uses the full x/y bounding
	// box of the cloud.
	Extent *geometry.BoundingBox

	Mode   RasterMode
	Radius float64
	K      int
}

// Raster maps grid cells to point indices of its parent cloud. The
// mapping is CSR shaped: cell c owns indices[offsets[c-1]:offsets[c]]
// with an implicit leading zero. The parent columns are referenced, not
// copied.
type Raster struct {
	pc *PointCloud
	nx int
	ny int

	xmin float64
	ymin float64
	dx   float64
	dy   float64

	offsets []int
	indices []int
}

// Rasterize maps the cloud onto an nx by ny grid.
func Rasterize(ctx context.Context, pc *PointCloud, nx, ny int, opts RasterOptions) (*Raster, error) {
	if nx <= 0 || ny <= 0 {
		return nil, errors.Wrapf(ErrColumnType, "raster dimensions %dx%d must be positive", nx, ny)
	}
	x, y, _, err := pc.Coordinates()
	if err != nil {
		return nil, err
	}

	extent := opts.Extent
	if extent == nil {
		box := geometry.EmptyBoundingBox()
		for i := range x {
			box.Extend(geometry.Coordinate{X: x[i], Y: y[i]})
		}
		if box.IsEmpty() {
			return nil, errors.Wrap(ErrColumnType, "cannot rasterize an empty cloud without an extent")
		}
		extent = box
	}

	r := &Raster{
		pc:   pc,
		nx:   nx,
		ny:   ny,
		xmin: extent.Xmin,
		ymin: extent.Ymin,
		dx:   (extent.Xmax - extent.Xmin) / float64(nx),
		dy:   (extent.Ymax - extent.Ymin) / float64(ny),
	}
	if r.dx <= 0 || r.dy <= 0 {
		return nil, errors.Wrap(ErrColumnType, "raster extent has no area")
	}

	switch opts.Mode {
	case ModeFootprint:
		err = r.assignFootprint(x, y)
	case ModeRadius:
		if opts.Radius <= 0 {
			return nil, errors.Wrap(ErrColumnType, "radius mode needs a positive radius")
		}
		err = r.assignRadius(ctx, x, y, opts.Radius)
	case ModeKNN:
		if opts.K <= 0 {
			return nil, errors.Wrap(ErrColumnType, "knn mode needs a positive k")
		}
		if opts.K > len(x) {
			return nil, errors.Wrapf(ErrColumnType, "knn mode wants %d points per cell, cloud has %d", opts.K, len(x))
		}
		err = r.assignKNN(ctx, x, y, opts.K)
	default:
		return nil, errors.Wrapf(ErrColumnType, "unknown raster mode %d", opts.Mode)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Raster) Nx() int { return r.nx }
func (r *Raster) Ny() int { return r.ny }

// Cloud returns the parent cloud the cell indices refer to.
func (r *Raster) Cloud() *PointCloud { return r.pc }

// cellIndex is the linear CSR position of cell (i, j).
func (r *Raster) cellIndex(i, j int) int {
	return j*r.nx + i
}

// CellCenter returns the x/y center of cell (i, j).
func (r *Raster) CellCenter(i, j int) (float64, float64) {
	return r.xmin + (float64(i)+0.5)*r.dx, r.ymin + (float64(j)+0.5)*r.dy
}

// Cell returns the point indices of cell (i, j). The slice aliases the
// raster's index buffer.
func (r *Raster) Cell(i, j int) []int {
	c := r.cellIndex(i, j)
	start := 0
	if c > 0 {
		start = r.offsets[c-1]
	}
	return r.indices[start:r.offsets[c]]
}

// CellCount returns the number of points in cell (i, j).
func (r *Raster) CellCount(i, j int) int {
	return len(r.Cell(i, j))
}

// Counts materializes the per cell point counts indexed [i][j].
func (r *Raster) Counts() [][]int {
	out := make([][]int, r.nx)
	for i := range out {
		out[i] = make([]int, r.ny)
		for j := range out[i] {
			out[i][j] = r.CellCount(i, j)
		}
	}
	return out
}

// assignFootprint maps each point to at most one cell in two passes,
// keeping per cell indices in ascending point order.
func (r *Raster) assignFootprint(x, y []float64) error {
	cells := r.nx * r.ny
	counts := make([]int, cells)
	cellOf := make([]int32, len(x))
	for p := range x {
		i := int(math.Floor((x[p] - r.xmin) / r.dx))
		j := int(math.Floor((y[p] - r.ymin) / r.dy))
		if i < 0 || i >= r.nx || j < 0 || j >= r.ny {
			cellOf[p] = -1
			continue
		}
		c := r.cellIndex(i, j)
		cellOf[p] = int32(c)
		counts[c]++
	}
	r.buildOffsets(counts)
	cursor := r.startCursors()
	r.indices = make([]int, r.offsets[cells-1])
	for p := range x {
		if cellOf[p] < 0 {
			continue
		}
		c := cellOf[p]
		r.indices[cursor[c]] = p
		cursor[c]++
	}
	return nil
}

// assignRadius computes each point's covered cells in parallel, then
// assembles the CSR buffers sequentially so per cell indices stay in
// ascending point order.
func (r *Raster) assignRadius(ctx context.Context, x, y []float64, radius float64) error {
	cells := r.nx * r.ny
	covered := make([][]int32, len(x))

	err := parallelBatches(ctx, len(x), func(start, end int) error {
		for p := start; p < end; p++ {
			covered[p] = r.cellsWithin(x[p], y[p], radius)
		}
		return nil
	})
	if err != nil {
		return err
	}

	counts := make([]int, cells)
	for p := range covered {
		for _, c := range covered[p] {
			counts[c]++
		}
	}
	r.buildOffsets(counts)
	cursor := r.startCursors()
	r.indices = make([]int, r.offsets[cells-1])
	for p := range covered {
		for _, c := range covered[p] {
			r.indices[cursor[c]] = p
			cursor[c]++
		}
	}
	return nil
}

// cellsWithin lists the cells whose center lies within radius of the
// point, in ascending linear order.
func (r *Raster) cellsWithin(px, py, radius float64) []int32 {
	iMin := int(math.Ceil((px-radius-r.xmin)/r.dx - 0.5))
	iMax := int(math.Floor((px+radius-r.xmin)/r.dx - 0.5))
	jMin := int(math.Ceil((py-radius-r.ymin)/r.dy - 0.5))
	jMax := int(math.Floor((py+radius-r.ymin)/r.dy - 0.5))
	if iMin < 0 {
		iMin = 0
	}
	if jMin < 0 {
		jMin = 0
	}
	if iMax >= r.nx {
		iMax = r.nx - 1
	}
	if jMax >= r.ny {
		jMax = r.ny - 1
	}
	var out []int32
	for j := jMin; j <= jMax; j++ {
		for i := iMin; i <= iMax; i++ {
			cx, cy := r.CellCenter(i, j)
			ddx, ddy := cx-px, cy-py
			if ddx*ddx+ddy*ddy <= radius*radius {
				out = append(out, int32(r.cellIndex(i, j)))
			}
		}
	}
	return out
}

// assignKNN queries, per cell, the k points nearest to the cell center
// in x/y distance. Every cell holds exactly k indices ordered by
// ascending distance.
func (r *Raster) assignKNN(ctx context.Context, x, y []float64, k int) error {
	pts := make([]r3.Vector, len(x))
	for i := range pts {
		pts[i] = r3.Vector{X: x[i], Y: y[i]}
	}
	tree := kdtree.New(pts)

	cells := r.nx * r.ny
	r.indices = make([]int, cells*k)
	r.offsets = make([]int, cells)
	for c := range r.offsets {
		r.offsets[c] = (c + 1) * k
	}

	return parallelBatches(ctx, cells, func(start, end int) error {
		for c := start; c < end; c++ {
			i, j := c%r.nx, c/r.nx
			cx, cy := r.CellCenter(i, j)
			nearest := tree.Nearest(r3.Vector{X: cx, Y: cy}, k, -1)
			copy(r.indices[c*k:(c+1)*k], nearest)
		}
		return nil
	})
}

func (r *Raster) buildOffsets(counts []int) {
	r.offsets = make([]int, len(counts))
	sum := 0
	for c, n := range counts {
		sum += n
		r.offsets[c] = sum
	}
}

// startCursors returns the write cursor of every cell: its exclusive
// prefix sum.
func (r *Raster) startCursors() []int {
	cursor := make([]int, len(r.offsets))
	for c := range cursor {
		if c > 0 {
			cursor[c] = r.offsets[c-1]
		}
	}
	return cursor
}

// RasterColumn is a lazy 2D view over one parent column: each cell
// access gathers the column values of the points in that cell.
type RasterColumn struct {
	raster *Raster
	col    *Column
}

// ColumnView returns the lazy per cell view of a parent column.
func (r *Raster) ColumnView(name string) (*RasterColumn, error) {
	col, ok := r.pc.Column(name)
	if !ok {
		return nil, errors.Wrapf(ErrColumnType, "cloud has no %q column", name)
	}
	return &RasterColumn{raster: r, col: col}, nil
}

// At gathers the column values of cell (i, j).
func (rc *RasterColumn) At(i, j int) *Column {
	return rc.col.SelectRows(rc.raster.Cell(i, j))
}

// Each iterates cells in row major order, materializing each cell's
// values on the fly. Returning false stops the iteration.
func (rc *RasterColumn) Each(fn func(i, j int, cell *Column) bool) {
	for j := 0; j < rc.raster.ny; j++ {
		for i := 0; i < rc.raster.nx; i++ {
			if !fn(i, j, rc.At(i, j)) {
				return
			}
		}
	}
}
