package cloud

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fivePoints is the reference cloud used across the processing tests:
// x = y = 1..5, z = squares, intensity = 1..5.
func fivePoints(t *testing.T) *PointCloud {
	t.Helper()
	pc, err := NewFromColumns(map[string]*Column{
		ColX:        F64Column([]float64{1, 2, 3, 4, 5}),
		ColY:        F64Column([]float64{1, 2, 3, 4, 5}),
		ColZ:        F64Column([]float64{1, 4, 9, 16, 25}),
		"intensity": F64Column([]float64{1, 2, 3, 4, 5}),
	}, "")
	require.NoError(t, err)
	return pc
}

func TestCloudConstruction(t *testing.T) {
	pc := fivePoints(t)
	assert.Equal(t, 5, pc.Len())
	assert.Equal(t, []string{"intensity", ColX, ColY, ColZ}, pc.Names())

	row, err := pc.Row(2)
	require.NoError(t, err)
	values := map[string]interface{}{}
	for _, nv := range row {
		values[nv.Name] = nv.Value
	}
	assert.Equal(t, 3.0, values[ColX])
	assert.Equal(t, 3.0, values[ColY])
	assert.Equal(t, 9.0, values[ColZ])
	assert.Equal(t, 3.0, values["intensity"])
}

func TestCoordinateColumnsMustBeFloat64(t *testing.T) {
	pc := New("")
	err := pc.SetColumn(ColX, I32Column([]int32{1}))
	assert.ErrorIs(t, err, ErrColumnType)
}

func TestColumnLengthMustMatch(t *testing.T) {
	pc := fivePoints(t)
	err := pc.SetColumn("extra", U8Column([]uint8{1, 2}))
	assert.ErrorIs(t, err, ErrColumnType)
	require.NoError(t, pc.SetColumn("extra", U8Column([]uint8{1, 2, 3, 4, 5})))
}

func TestDeleteColumn(t *testing.T) {
	pc := fivePoints(t)
	pc.DeleteColumn("intensity")
	_, ok := pc.Column("intensity")
	assert.False(t, ok)
	assert.Equal(t, []string{ColX, ColY, ColZ}, pc.Names())
}

func TestCloudSliceAndSelect(t *testing.T) {
	pc := fivePoints(t)

	sliced, err := pc.Slice(1, 4)
	require.NoError(t, err)
	assert.Equal(t, 3, sliced.Len())
	x, _, _, err := sliced.Coordinates()
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3, 4}, x)

	picked := pc.Select([]int{0, 4})
	assert.Equal(t, 2, picked.Len())
	x, _, z, err := picked.Coordinates()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 5}, x)
	assert.Equal(t, []float64{1, 25}, z)
}

func TestCloudEquality(t *testing.T) {
	a := fivePoints(t)
	b := fivePoints(t)
	assert.True(t, a.Equal(b))

	b.SetCRS("EPSG:4326")
	assert.False(t, a.Equal(b))
	b.SetCRS("")
	assert.True(t, a.Equal(b))

	require.NoError(t, b.SetColumn("intensity", F64Column([]float64{1, 2, 3, 4, 6})))
	assert.False(t, a.Equal(b))
}

func TestCloudAppend(t *testing.T) {
	a := fivePoints(t)
	b := fivePoints(t)
	joined, err := a.Append(b)
	require.NoError(t, err)
	assert.Equal(t, 10, joined.Len())
	x, _, _, err := joined.Coordinates()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 1, 2, 3, 4, 5}, x)

	b.SetCRS("EPSG:4326")
	_, err = a.Append(b)
	assert.ErrorIs(t, err, ErrColumnType)

	c := fivePoints(t)
	c.DeleteColumn("intensity")
	_, err = a.Append(c)
	assert.ErrorIs(t, err, ErrColumnType)
}

func TestColumnTypedAccess(t *testing.T) {
	col := U16Column([]uint16{7, 8})
	_, err := col.F64()
	assert.ErrorIs(t, err, ErrColumnType)

	v, ok := col.Float64At(1)
	require.True(t, ok)
	assert.Equal(t, 8.0, v)

	idx := IndexColumn([][]int{{1, 2}, {0, 2}})
	tuples, err := idx.Index()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, tuples[1])
	_, ok = idx.Float64At(0)
	assert.False(t, ok)
}
