package cloud

import (
	"math/bits"

	"github.com/pkg/errors"

	"github.com/geodense/lascloud/internal/converters"
	"github.com/geodense/lascloud/internal/geometry"
)

// extentEpsilon scales the per axis tolerance of extent filters.
const extentEpsilon = 1e-6

// Interval is a closed interval on one axis, widened on evaluation by a
// tolerance proportional to its span.
type Interval struct {
	Min float64
	Max float64
}

func (iv *Interval) contains(v float64) bool {
	tol := (iv.Max - iv.Min) * extentEpsilon
	return v >= iv.Min-tol && v <= iv.Max+tol
}

// FilterOptions composes the cloud side filter engine: an optional
// predicate over named columns, an optional extent, and an optional
// sub range progression applied to the surviving indices. A bitmask is
// materialized first; the progression then walks it, clearing bits
// outside the arithmetic sequence.
type FilterOptions struct {
	// PredicateColumns names the columns handed to Predicate.
	PredicateColumns []string
	Predicate        func(vals []interface{}) bool

	X *Interval
	Y *Interval
	Z *Interval

	// TargetCRS evaluates the extent in another reference system,
	// reprojecting coordinates through Converter on the fly.
	TargetCRS string
	Converter converters.CoordinateConverter

	// Subrange selects start, start+step, ... among the survivors.
	// Negative steps are rejected.
	SubrangeStart int
	SubrangeStep  int
	SubrangeStop  int
	Subrange      bool
}

// Filter returns a new cloud keeping the rows that pass every
// configured stage.
func Filter(pc *PointCloud, opts FilterOptions) (*PointCloud, error) {
	n := pc.Len()
	mask := newBitmask(n)

	if err := applyExtent(pc, &opts, mask); err != nil {
		return nil, err
	}
	if err := applyPredicate(pc, &opts, mask); err != nil {
		return nil, err
	}
	if opts.Subrange {
		if err := applySubrange(&opts, mask, n); err != nil {
			return nil, err
		}
	}
	return pc.Select(mask.indices()), nil
}

func applyExtent(pc *PointCloud, opts *FilterOptions, mask *bitmask) error {
	if opts.X == nil && opts.Y == nil && opts.Z == nil {
		return nil
	}
	x, y, z, err := pc.Coordinates()
	if err != nil {
		return err
	}
	reproject := opts.TargetCRS != "" && opts.TargetCRS != pc.CRS()
	if reproject && opts.Converter == nil {
		return errors.Wrapf(ErrColumnType, "extent in CRS %q needs a converter", opts.TargetCRS)
	}
	if reproject && pc.CRS() == "" {
		return errors.Wrap(ErrColumnType, "cloud carries no CRS to reproject from")
	}

	// a non thread safe converter forces the serial path; this loop is
	// already serial so the flag only matters to future parallel use
	for i := 0; i < pc.Len(); i++ {
		if !mask.get(i) {
			continue
		}
		c := geometry.Coordinate{X: x[i], Y: y[i], Z: z[i]}
		if reproject {
			converted, err := opts.Converter.Convert(pc.CRS(), opts.TargetCRS, c)
			if err != nil {
				return err
			}
			c = converted
		}
		keep := true
		if opts.X != nil && !opts.X.contains(c.X) {
			keep = false
		}
		if keep && opts.Y != nil && !opts.Y.contains(c.Y) {
			keep = false
		}
		if keep && opts.Z != nil && !opts.Z.contains(c.Z) {
			keep = false
		}
		if !keep {
			mask.clear(i)
		}
	}
	return nil
}

func applyPredicate(pc *PointCloud, opts *FilterOptions, mask *bitmask) error {
	if opts.Predicate == nil {
		return nil
	}
	cols, err := selectColumns(pc, opts.PredicateColumns)
	if err != nil {
		return err
	}
	args := make([]interface{}, len(cols))
	for i := 0; i < pc.Len(); i++ {
		if !mask.get(i) {
			continue
		}
		for j, col := range cols {
			args[j] = col.Value(i)
		}
		if !opts.Predicate(args) {
			mask.clear(i)
		}
	}
	return nil
}

// applySubrange walks the surviving bits and keeps only those at
// positions start, start+step, ... of the survivor sequence.
func applySubrange(opts *FilterOptions, mask *bitmask, n int) error {
	step := opts.SubrangeStep
	if step == 0 {
		step = 1
	}
	if step < 0 {
		return errors.Wrapf(ErrColumnType, "negative subrange step %d", step)
	}
	if opts.SubrangeStart < 0 {
		return errors.Wrapf(ErrColumnType, "negative subrange start %d", opts.SubrangeStart)
	}
	stop := opts.SubrangeStop
	if stop <= 0 {
		stop = n
	}

	rank := 0
	next := opts.SubrangeStart
	for i := 0; i < n; i++ {
		if !mask.get(i) {
			continue
		}
		if rank == next && rank < stop {
			next += step
		} else {
			mask.clear(i)
		}
		rank++
	}
	return nil
}

// bitmask is a fixed size bit set over row indices.
type bitmask struct {
	words []uint64
	n     int
}

func newBitmask(n int) *bitmask {
	words := make([]uint64, (n+63)/64)
	for i := range words {
		words[i] = ^uint64(0)
	}
	if rem := n % 64; rem != 0 && len(words) > 0 {
		words[len(words)-1] = (uint64(1) << rem) - 1
	}
	return &bitmask{words: words, n: n}
}

func (b *bitmask) get(i int) bool {
	return b.words[i/64]&(uint64(1)<<(i%64)) != 0
}

func (b *bitmask) clear(i int) {
	b.words[i/64] &^= uint64(1) << (i % 64)
}

func (b *bitmask) count() int {
	total := 0
	for _, w := range b.words {
		total += bits.OnesCount64(w)
	}
	return total
}

// indices lists the set bits ascending.
func (b *bitmask) indices() []int {
	out := make([]int, 0, b.count())
	for w, word := range b.words {
		for word != 0 {
			bit := bits.TrailingZeros64(word)
			out = append(out, w*64+bit)
			word &= word - 1
		}
	}
	return out
}
