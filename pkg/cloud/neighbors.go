package cloud

import (
	"context"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/geodense/lascloud/internal/kdtree"
)

// coordinateVectors gathers the coordinate columns into r3 vectors.
func coordinateVectors(pc *PointCloud) ([]r3.Vector, error) {
	x, y, z, err := pc.Coordinates()
	if err != nil {
		return nil, err
	}
	pts := make([]r3.Vector, len(x))
	for i := range pts {
		pts[i] = r3.Vector{X: x[i], Y: y[i], Z: z[i]}
	}
	return pts, nil
}

// Neighbors computes for every point the indices of its k nearest other
// points in 3D Euclidean distance, ordered ascending by distance with
// ties broken by the lower index. The table is returned without being
// stored in the cloud.
func Neighbors(ctx context.Context, pc *PointCloud, k int) ([][]int, error) {
	n := pc.Len()
	if k <= 0 {
		return nil, errors.Wrapf(ErrColumnType, "neighbor count %d must be positive", k)
	}
	if k > n-1 {
		return nil, errors.Wrapf(ErrColumnType, "cannot find %d neighbors among %d points", k, n)
	}
	pts, err := coordinateVectors(pc)
	if err != nil {
		return nil, err
	}
	tree := kdtree.New(pts)

	table := make([][]int, n)
	err = parallelBatches(ctx, n, func(start, end int) error {
		for i := start; i < end; i++ {
			table[i] = tree.Nearest(pts[i], k, i)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}

// StoreNeighbors computes the neighbor table and stores it as the
// "neighbors" column.
func StoreNeighbors(ctx context.Context, pc *PointCloud, k int) error {
	table, err := Neighbors(ctx, pc, k)
	if err != nil {
		return err
	}
	return pc.SetColumn(ColNeighbors, IndexColumn(table))
}
