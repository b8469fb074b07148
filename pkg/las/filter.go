package las

import (
	"context"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/geodense/lascloud/internal/converters"
)

// extentEpsilon scales the per axis tolerance applied by extent filters.
const extentEpsilon = 1e-6

// Interval is a closed interval on one axis.
type Interval struct {
	Min float64
	Max float64
}

// tolerance widens the interval proportionally to its span so points on
// the boundary survive float rounding.
func (iv *Interval) tolerance() float64 {
	return (iv.Max - iv.Min) * extentEpsilon
}

func (iv *Interval) contains(v float64) bool {
	tol := iv.tolerance()
	return v >= iv.Min-tol && v <= iv.Max+tol
}

// ExtentFilter keeps points whose rescaled coordinates fall inside every
// configured axis interval, optionally after reprojection into a target
// CRS. Axes left nil do not constrain.
type ExtentFilter struct {
	X *Interval
	Y *Interval
	Z *Interval

	// TargetCRS reprojects coordinates before the containment test.
	// Requires a converter and a source CRS on the container.
	TargetCRS string
	Converter converters.CoordinateConverter
}

// FilterExtent returns a new container keeping the points inside the
// extent. The predicate runs in parallel unless a non thread safe
// converter is involved.
func FilterExtent(ctx context.Context, l *LAS, extent ExtentFilter) (*LAS, error) {
	sourceCRS, _ := l.CRS()
	if extent.TargetCRS != "" {
		if extent.Converter == nil {
			return nil, errors.Wrap(ErrValidation, "extent filter with a target CRS needs a converter")
		}
		if sourceCRS == "" {
			return nil, errors.Wrap(ErrValidation, "container carries no CRS to reproject from")
		}
	}

	pred := func(r *PointRecord) (bool, error) {
		c := l.rescale(r)
		if extent.TargetCRS != "" {
			converted, err := extent.Converter.Convert(sourceCRS, extent.TargetCRS, c)
			if err != nil {
				return false, err
			}
			c = converted
		}
		if extent.X != nil && !extent.X.contains(c.X) {
			return false, nil
		}
		if extent.Y != nil && !extent.Y.contains(c.Y) {
			return false, nil
		}
		if extent.Z != nil && !extent.Z.contains(c.Z) {
			return false, nil
		}
		return true, nil
	}

	parallel := extent.TargetCRS == "" || extent.Converter.ThreadSafe()
	return filterWith(ctx, l, pred, parallel)
}

// FilterPredicate returns a new container keeping the points that
// satisfy pred, evaluating it in parallel batches.
func FilterPredicate(ctx context.Context, l *LAS, pred func(r *PointRecord) bool) (*LAS, error) {
	return filterWith(ctx, l, func(r *PointRecord) (bool, error) {
		return pred(r), nil
	}, true)
}

// filterWith materializes a bitmask over the current view and wraps it
// in a masked container. Parallel evaluation splits the index space into
// contiguous batches; cancellation is honored between batches.
func filterWith(ctx context.Context, l *LAS, pred func(r *PointRecord) (bool, error), parallel bool) (*LAS, error) {
	n := l.Len()
	mask := make([]uint64, (n+63)/64)

	if !parallel || n < 1024 {
		i := 0
		var perr error
		err := l.points.Iter(func(_ int, r *PointRecord) bool {
			ok, err := pred(r)
			if err != nil {
				perr = err
				return false
			}
			if ok {
				mask[i/64] |= uint64(1) << (i % 64)
			}
			i++
			return ctx.Err() == nil
		})
		if err != nil {
			return nil, err
		}
		if perr != nil {
			return nil, perr
		}
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrapf(ErrResource, "filter cancelled: %v", err)
		}
		return l.SelectMask(mask)
	}

	g, ctx := errgroup.WithContext(ctx)
	workers := runtime.NumCPU()
	batch := (n + workers - 1) / workers
	// batches are multiples of 64 so no two workers share a mask word
	batch = (batch + 63) &^ 63
	for start := 0; start < n; start += batch {
		start := start
		end := start + batch
		if end > n {
			end = n
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				if i%64 == 0 && ctx.Err() != nil {
					return ctx.Err()
				}
				rec, err := l.points.Get(i)
				if err != nil {
					return err
				}
				ok, err := pred(&rec)
				if err != nil {
					return err
				}
				if ok {
					mask[i/64] |= uint64(1) << (i % 64)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return l.SelectMask(mask)
}

// SubrangeOptions selects an arithmetic progression of surviving
// indices: start, start+step, ... strictly below stop. Stop at zero
// means the view length.
type SubrangeOptions struct {
	Start int
	Step  int
	Stop  int
}

// FilterSubrange returns a new container over the progression. Negative
// steps are rejected; reversed access goes through an IndexedView
// instead.
func FilterSubrange(l *LAS, opts SubrangeOptions) (*LAS, error) {
	n := l.Len()
	step := opts.Step
	if step == 0 {
		step = 1
	}
	if step < 0 {
		return nil, errors.Wrapf(ErrValidation, "negative subrange step %d", step)
	}
	if opts.Start < 0 {
		return nil, errors.Wrapf(ErrValidation, "negative subrange start %d", opts.Start)
	}
	stop := opts.Stop
	if stop <= 0 || stop > n {
		stop = n
	}
	count := 0
	if opts.Start < stop {
		count = (stop - opts.Start + step - 1) / step
	}
	view, err := NewIndexedView(l.points, opts.Start, step, count)
	if err != nil {
		return nil, err
	}
	out := l.derive(view)
	out.Header.PointCount = uint64(view.Len())
	return out, nil
}
