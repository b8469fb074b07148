package cloud

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geodense/lascloud/internal/geometry"
	"github.com/geodense/lascloud/pkg/las"
)

// diagonalLAS builds a format 1 container with raw coordinates i*100
// under a 0.01 scale, i.e. world coordinates 0, 1, 2, ...
func diagonalLAS(t *testing.T, n int) *las.LAS {
	t.Helper()
	records := make([]las.PointRecord, n)
	for i := range records {
		records[i] = las.PointRecord{
			X: int32(i * 100), Y: int32(i * 100), Z: int32(i * 100),
			Intensity:    uint16(i * 10),
			ReturnNumber: 1, ReturnCount: 1,
			Classification: uint8(i % 3),
		}
	}
	h := las.Header{
		VersionMajor: 1, VersionMinor: 2,
		Format: las.Format(1),
		Scale:  [3]float64{0.01, 0.01, 0.01},
	}
	return las.New(h, records)
}

func TestFromLASCoordinatesAndAttributes(t *testing.T) {
	l := diagonalLAS(t, 5)
	pc, err := FromLAS(l, BuildOptions{
		Attributes: []AttrSpec{IntensityAttr(), ClassificationAttr()},
	})
	require.NoError(t, err)

	assert.Equal(t, 5, pc.Len())
	assert.Equal(t, []string{"classification", "intensity", ColX, ColY, ColZ}, pc.Names())

	x, y, z, err := pc.Coordinates()
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, x)
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, y)
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, z)

	intensity, ok := pc.Column("intensity")
	require.True(t, ok)
	assert.Equal(t, KindU16, intensity.Kind())
	assert.Equal(t, uint16(30), intensity.Value(3).(uint16))

	class, _ := pc.Column("classification")
	assert.Equal(t, KindU8, class.Kind())
}

func TestFromLASExtentAndFilter(t *testing.T) {
	l := diagonalLAS(t, 10)
	pc, err := FromLAS(l, BuildOptions{
		Extent: geometry.NewBoundingBox(1, 5, 0, 10, -1, 10),
		Filter: func(_ las.PointFormat, r *las.PointRecord) bool {
			return r.Classification != 0
		},
	})
	require.NoError(t, err)

	x, _, _, err := pc.Coordinates()
	require.NoError(t, err)
	// extent keeps 1..5, the classification filter then drops 3
	assert.Equal(t, []float64{1, 2, 4, 5}, x)
}

func TestFromLASCoordinateSubset(t *testing.T) {
	l := diagonalLAS(t, 3)
	pc, err := FromLAS(l, BuildOptions{Coordinates: []string{ColX, ColY}})
	require.NoError(t, err)
	assert.Equal(t, []string{ColX, ColY}, pc.Names())
	_, ok := pc.Column(ColZ)
	assert.False(t, ok)
}

func TestFromLASMultiAppendsSources(t *testing.T) {
	a := diagonalLAS(t, 3)
	b := diagonalLAS(t, 2)
	pc, err := FromLASMulti([]*las.LAS{a, b}, BuildOptions{})
	require.NoError(t, err)
	x, _, _, err := pc.Coordinates()
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 0, 1}, x)
}

func TestFromLASMissingConverter(t *testing.T) {
	l := diagonalLAS(t, 2)
	// the container declares a CRS differing from the target
	l2, err := las.ReadBytes(writeToBytes(t, l), las.ReadOptions{OverrideCRS: "EPSG:25832"})
	require.NoError(t, err)
	_, err = FromLAS(l2, BuildOptions{CRS: "EPSG:4326"})
	assert.ErrorIs(t, err, ErrColumnType)
}

func writeToBytes(t *testing.T, l *las.LAS) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, las.Write(&buf, l, las.WriteOptions{}))
	return buf.Bytes()
}
