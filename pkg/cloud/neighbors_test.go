package cloud

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeighborsReference(t *testing.T) {
	pc := fivePoints(t)
	table, err := Neighbors(context.Background(), pc, 3)
	require.NoError(t, err)

	want := [][]int{
		{1, 2, 3},
		{0, 2, 3},
		{1, 3, 0},
		{2, 4, 1},
		{3, 2, 1},
	}
	assert.Equal(t, want, table)
}

func TestStoreNeighborsPopulatesColumn(t *testing.T) {
	pc := fivePoints(t)
	require.NoError(t, StoreNeighbors(context.Background(), pc, 3))

	col, ok := pc.Column(ColNeighbors)
	require.True(t, ok)
	assert.Equal(t, KindIndex, col.Kind())

	table, err := col.Index()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, table[0])
}

func TestNeighborsValidation(t *testing.T) {
	pc := fivePoints(t)
	_, err := Neighbors(context.Background(), pc, 0)
	assert.ErrorIs(t, err, ErrColumnType)
	_, err = Neighbors(context.Background(), pc, 5)
	assert.ErrorIs(t, err, ErrColumnType)
	_, err = Neighbors(context.Background(), pc, 4)
	assert.NoError(t, err)
}
