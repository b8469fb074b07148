package cloud

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyNearOriginIndex(t *testing.T) {
	pc := fivePoints(t)

	// 1-based index of every point within distance 5 of the origin,
	// zero otherwise
	col, err := Apply(context.Background(), pc, func(i int, args []interface{}) interface{} {
		x := args[0].(float64)
		y := args[1].(float64)
		z := args[2].(float64)
		if math.Sqrt(x*x+y*y+z*z) <= 5 {
			return i + 1
		}
		return 0
	}, ColX, ColY, ColZ)
	require.NoError(t, err)

	assert.Equal(t, KindI32, col.Kind())
	got := make([]int32, col.Len())
	for i := range got {
		got[i] = col.Value(i).(int32)
	}
	assert.Equal(t, []int32{1, 2, 0, 0, 0}, got)
}

func TestApplyDeterminism(t *testing.T) {
	n := 20000
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i) * 0.25
	}
	pc, err := NewFromColumns(map[string]*Column{
		ColX: F64Column(xs),
		ColY: F64Column(make([]float64, n)),
		ColZ: F64Column(make([]float64, n)),
	}, "")
	require.NoError(t, err)

	fn := func(i int, args []interface{}) interface{} {
		return math.Sin(args[0].(float64))
	}
	first, err := Apply(context.Background(), pc, fn, ColX)
	require.NoError(t, err)
	second, err := Apply(context.Background(), pc, fn, ColX)
	require.NoError(t, err)
	assert.True(t, first.Equal(second))
}

func TestApplyUnknownColumn(t *testing.T) {
	pc := fivePoints(t)
	_, err := Apply(context.Background(), pc, func(int, []interface{}) interface{} { return 0 }, "missing")
	assert.ErrorIs(t, err, ErrColumnType)
}

func TestApplyCancellation(t *testing.T) {
	pc := fivePoints(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Apply(ctx, pc, func(int, []interface{}) interface{} { return 0 }, ColX)
	assert.Error(t, err)
}

func TestApplyNeighborhoodsTransient(t *testing.T) {
	pc := fivePoints(t)

	// mean z over the neighborhood [self, n1, n2]
	col, err := ApplyNeighborhoods(context.Background(), pc, func(i int, args [][]interface{}) interface{} {
		zs := args[0]
		sum := 0.0
		for _, v := range zs {
			sum += v.(float64)
		}
		return sum / float64(len(zs))
	}, ApplyOptions{K: 2}, ColZ)
	require.NoError(t, err)
	require.Equal(t, 5, col.Len())

	// point 0 neighbors are points 1 and 2
	want := (1.0 + 4.0 + 9.0) / 3
	assert.InDelta(t, want, col.Value(0).(float64), 1e-12)

	// the transient table is not stored
	_, ok := pc.Column(ColNeighbors)
	assert.False(t, ok)
}

func TestApplyNeighborhoodsStored(t *testing.T) {
	pc := fivePoints(t)
	require.NoError(t, StoreNeighbors(context.Background(), pc, 2))
	_, ok := pc.Column(ColNeighbors)
	require.True(t, ok)

	col, err := ApplyNeighborhoods(context.Background(), pc, func(i int, args [][]interface{}) interface{} {
		// neighborhood size is always 1 + k
		return len(args[0])
	}, ApplyOptions{UseStored: true}, ColX)
	require.NoError(t, err)
	for i := 0; i < col.Len(); i++ {
		assert.Equal(t, int32(3), col.Value(i).(int32))
	}
}

func TestApplyNeighborhoodsExplicit(t *testing.T) {
	pc := fivePoints(t)
	table := [][]int{{1}, {0}, {4}, {3}, {2}}

	col, err := ApplyNeighborhoods(context.Background(), pc, func(i int, args [][]interface{}) interface{} {
		xs := args[0]
		return xs[0].(float64) + xs[1].(float64)
	}, ApplyOptions{Explicit: table}, ColX)
	require.NoError(t, err)
	assert.Equal(t, 3.0, col.Value(0).(float64))
	assert.Equal(t, 8.0, col.Value(2).(float64))

	_, err = ApplyNeighborhoods(context.Background(), pc, func(int, [][]interface{}) interface{} { return 0 },
		ApplyOptions{Explicit: [][]int{{1}}}, ColX)
	assert.ErrorIs(t, err, ErrColumnType)
}

func TestApplyNeighborhoodsNoSource(t *testing.T) {
	pc := fivePoints(t)
	_, err := ApplyNeighborhoods(context.Background(), pc, func(int, [][]interface{}) interface{} { return 0 },
		ApplyOptions{}, ColX)
	assert.ErrorIs(t, err, ErrColumnType)
}

func TestCollectColumnRejectsMixedTypes(t *testing.T) {
	pc := fivePoints(t)
	_, err := Apply(context.Background(), pc, func(i int, args []interface{}) interface{} {
		if i == 0 {
			return 1.0
		}
		return "nope"
	}, ColX)
	assert.Error(t, err)
}
