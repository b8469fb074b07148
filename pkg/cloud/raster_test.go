package cloud

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geodense/lascloud/internal/geometry"
)

func rasterExtent() *geometry.BoundingBox {
	return geometry.NewBoundingBox(0, 7, 0, 7, 0, 0)
}

func TestRasterizeFootprintCounts(t *testing.T) {
	pc := fivePoints(t)
	r, err := Rasterize(context.Background(), pc, 3, 3, RasterOptions{Extent: rasterExtent()})
	require.NoError(t, err)

	want := [][]int{
		{2, 0, 0},
		{0, 2, 0},
		{0, 0, 1},
	}
	assert.Equal(t, want, r.Counts())

	// every retained point appears exactly once
	total := 0
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			total += r.CellCount(i, j)
		}
	}
	assert.Equal(t, 5, total)

	assert.Equal(t, []int{0, 1}, r.Cell(0, 0))
	assert.Equal(t, []int{2, 3}, r.Cell(1, 1))
	assert.Equal(t, []int{4}, r.Cell(2, 2))
}

func TestRasterizeFootprintDropsOutsidePoints(t *testing.T) {
	pc := fivePoints(t)
	r, err := Rasterize(context.Background(), pc, 2, 2,
		RasterOptions{Extent: geometry.NewBoundingBox(0, 3, 0, 3, 0, 0)})
	require.NoError(t, err)

	total := 0
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			total += r.CellCount(i, j)
		}
	}
	// only the points at (1,1) and (2,2) land in a cell; (3,3) sits on
	// the outer edge and is dropped by the floor rule
	assert.Equal(t, 2, total)
}

func TestRasterizeRadiusCountsAndValues(t *testing.T) {
	pc := fivePoints(t)
	r, err := Rasterize(context.Background(), pc, 3, 3,
		RasterOptions{Extent: rasterExtent(), Mode: ModeRadius, Radius: 3})
	require.NoError(t, err)

	wantCounts := [][]int{
		{3, 4, 0},
		{4, 4, 3},
		{0, 3, 2},
	}
	assert.Equal(t, wantCounts, r.Counts())

	// max x per cell through the lazy column view
	xview, err := r.ColumnView(ColX)
	require.NoError(t, err)
	maxX := make([][]float64, 3)
	for i := range maxX {
		maxX[i] = make([]float64, 3)
		for j := range maxX[i] {
			cell := xview.At(i, j)
			vals, err := cell.F64()
			require.NoError(t, err)
			for _, v := range vals {
				if v > maxX[i][j] {
					maxX[i][j] = v
				}
			}
		}
	}
	want := [][]float64{
		{3, 4, 0},
		{4, 5, 5},
		{0, 5, 5},
	}
	assert.Equal(t, want, maxX)
}

func TestRasterizeKNNExactK(t *testing.T) {
	pc := fivePoints(t)
	r, err := Rasterize(context.Background(), pc, 3, 3,
		RasterOptions{Extent: rasterExtent(), Mode: ModeKNN, K: 2})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.Equal(t, 2, r.CellCount(i, j), "cell %d,%d", i, j)
		}
	}
	// the cell around (1,1) is nearest to the first two points
	assert.Equal(t, []int{0, 1}, r.Cell(0, 0))
}

func TestRasterizeOffsetsInvariants(t *testing.T) {
	pc := fivePoints(t)
	for _, opts := range []RasterOptions{
		{Extent: rasterExtent()},
		{Extent: rasterExtent(), Mode: ModeRadius, Radius: 2.5},
		{Extent: rasterExtent(), Mode: ModeKNN, K: 3},
	} {
		r, err := Rasterize(context.Background(), pc, 3, 3, opts)
		require.NoError(t, err)

		prev := 0
		for c := 0; c < 9; c++ {
			assert.GreaterOrEqual(t, r.offsets[c], prev)
			prev = r.offsets[c]
		}
		assert.Equal(t, len(r.indices), r.offsets[8])
	}
}

func TestRasterizeDefaultExtentIsBoundingBox(t *testing.T) {
	pc := fivePoints(t)
	r, err := Rasterize(context.Background(), pc, 2, 2, RasterOptions{})
	require.NoError(t, err)

	total := 0
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			total += r.CellCount(i, j)
		}
	}
	// bounding box [1,5]x[1,5]: the point at the max corner lands on
	// the outer edge and is dropped by the floor rule
	assert.Equal(t, 4, total)
}

func TestRasterizeValidation(t *testing.T) {
	pc := fivePoints(t)
	_, err := Rasterize(context.Background(), pc, 0, 3, RasterOptions{Extent: rasterExtent()})
	assert.ErrorIs(t, err, ErrColumnType)
	_, err = Rasterize(context.Background(), pc, 3, 3, RasterOptions{Extent: rasterExtent(), Mode: ModeRadius})
	assert.ErrorIs(t, err, ErrColumnType)
	_, err = Rasterize(context.Background(), pc, 3, 3, RasterOptions{Extent: rasterExtent(), Mode: ModeKNN, K: 9})
	assert.ErrorIs(t, err, ErrColumnType)
}
