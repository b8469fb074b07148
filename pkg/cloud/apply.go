package cloud

import (
	"context"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// applyBatchSize is the granularity of parallel work and cancellation.
const applyBatchSize = 4096

// PointFunc maps one point. It receives one boxed scalar per selected
// column, in the order the columns were named, plus the point index.
// Functions should be pure over their inputs; invocation order across
// points is unspecified.
type PointFunc func(i int, args []interface{}) interface{}

// NeighborhoodFunc maps one point together with its neighborhood. Each
// argument is a slice of column values ordered self first, then the
// neighbors.
type NeighborhoodFunc func(i int, args [][]interface{}) interface{}

// ApplyOptions selects the neighborhood mode.
type ApplyOptions struct {
	// UseStored consumes the stored "neighbors" column.
	UseStored bool
	// K computes a transient neighbor table of that many neighbors;
	// nothing is stored back into the cloud.
	K int
	// Explicit supplies per point neighbor lists directly.
	Explicit [][]int
}

// Apply runs fn over every point in parallel and collects the results
// into a column whose kind is fixed by the first result. Output element
// i always corresponds to input index i. Cancellation is honored at
// batch boundaries and discards the partial output.
func Apply(ctx context.Context, pc *PointCloud, fn PointFunc, cols ...string) (*Column, error) {
	selected, err := selectColumns(pc, cols)
	if err != nil {
		return nil, err
	}
	n := pc.Len()
	results := make([]interface{}, n)

	err = parallelBatches(ctx, n, func(start, end int) error {
		args := make([]interface{}, len(selected))
		for i := start; i < end; i++ {
			for j, col := range selected {
				args[j] = col.Value(i)
			}
			results[i] = fn(i, args)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return collectColumn(results)
}

// ApplyNeighborhoods runs fn over every point and its neighborhood in
// parallel. The neighborhood source follows opts: a stored table, a
// transient k nearest computation, or explicit lists.
func ApplyNeighborhoods(ctx context.Context, pc *PointCloud, fn NeighborhoodFunc, opts ApplyOptions, cols ...string) (*Column, error) {
	selected, err := selectColumns(pc, cols)
	if err != nil {
		return nil, err
	}
	n := pc.Len()

	var table [][]int
	switch {
	case opts.Explicit != nil:
		if len(opts.Explicit) != n {
			return nil, errors.Wrapf(ErrColumnType,
				"explicit neighbor table has %d entries, cloud has %d points", len(opts.Explicit), n)
		}
		table = opts.Explicit
	case opts.UseStored:
		col, ok := pc.Column(ColNeighbors)
		if !ok {
			return nil, errors.Wrapf(ErrColumnType, "cloud has no %q column", ColNeighbors)
		}
		table, err = col.Index()
		if err != nil {
			return nil, err
		}
	case opts.K > 0:
		table, err = Neighbors(ctx, pc, opts.K)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.Wrap(ErrColumnType, "no neighborhood source configured")
	}

	results := make([]interface{}, n)
	err = parallelBatches(ctx, n, func(start, end int) error {
		args := make([][]interface{}, len(selected))
		for i := start; i < end; i++ {
			hood := table[i]
			for j, col := range selected {
				vals := make([]interface{}, 1+len(hood))
				vals[0] = col.Value(i)
				for h, idx := range hood {
					vals[1+h] = col.Value(idx)
				}
				args[j] = vals
			}
			results[i] = fn(i, args)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return collectColumn(results)
}

func selectColumns(pc *PointCloud, names []string) ([]*Column, error) {
	out := make([]*Column, len(names))
	for i, name := range names {
		col, ok := pc.Column(name)
		if !ok {
			return nil, errors.Wrapf(ErrColumnType, "cloud has no %q column", name)
		}
		out[i] = col
	}
	return out, nil
}

// parallelBatches forks work over contiguous index batches and joins,
// checking cancellation before dispatching each batch.
func parallelBatches(ctx context.Context, n int, work func(start, end int) error) error {
	if n == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for start := 0; start < n; start += applyBatchSize {
		if err := gctx.Err(); err != nil {
			break
		}
		start := start
		end := start + applyBatchSize
		if end > n {
			end = n
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return work(start, end)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// collectColumn narrows boxed results into a typed column.
func collectColumn(results []interface{}) (*Column, error) {
	b := &columnBuilder{}
	for i, v := range results {
		if err := b.append(v); err != nil {
			return nil, errors.Wrapf(err, "result %d", i)
		}
	}
	if b.col == nil {
		return &Column{kind: KindF64}, nil
	}
	return b.col, nil
}
