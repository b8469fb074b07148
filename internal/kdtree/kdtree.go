package kdtree

import (
	"github.com/golang/geo/r3"
)

// Tree is a static k-d tree over 3D points. It is built once and then
// queried concurrently; queries do not mutate the tree.
type Tree struct {
	pts []r3.Vector
	idx []int32
}

// New builds a tree over the given points. The point slice is retained,
// not copied.
func New(pts []r3.Vector) *Tree {
	t := &Tree{
		pts: pts,
		idx: make([]int32, len(pts)),
	}
	for i := range t.idx {
		t.idx[i] = int32(i)
	}
	t.build(0, len(pts), 0)
	return t
}

func (t *Tree) Len() int {
	return len(t.pts)
}

func component(v r3.Vector, axis int8) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	}
	return v.Z
}

// build arranges idx[lo:hi] so that the median sits at mid, everything
// before it is <= on the split axis and everything after is >=.
func (t *Tree) build(lo, hi int, depth int8) {
	if hi-lo <= 1 {
		return
	}
	axis := depth % 3
	mid := (lo + hi) / 2
	t.selectNth(lo, hi, mid, axis)
	t.build(lo, mid, (depth+1)%3)
	t.build(mid+1, hi, (depth+1)%3)
}

// selectNth is a quickselect over idx[lo:hi) keyed by the axis component,
// placing the nth smallest element at position n.
func (t *Tree) selectNth(lo, hi, n int, axis int8) {
	for hi-lo > 1 {
		p := t.partition(lo, hi, axis)
		switch {
		case n < p:
			hi = p
		case n > p:
			lo = p + 1
		default:
			return
		}
	}
}

func (t *Tree) partition(lo, hi int, axis int8) int {
	// median-of-three pivot guards against sorted input
	mid := (lo + hi) / 2
	a := component(t.pts[t.idx[lo]], axis)
	b := component(t.pts[t.idx[mid]], axis)
	c := component(t.pts[t.idx[hi-1]], axis)
	pivotAt := lo
	if (a <= b && b <= c) || (c <= b && b <= a) {
		pivotAt = mid
	} else if (a <= c && c <= b) || (b <= c && c <= a) {
		pivotAt = hi - 1
	}
	t.idx[pivotAt], t.idx[hi-1] = t.idx[hi-1], t.idx[pivotAt]
	pivot := component(t.pts[t.idx[hi-1]], axis)

	store := lo
	for i := lo; i < hi-1; i++ {
		if component(t.pts[t.idx[i]], axis) < pivot {
			t.idx[store], t.idx[i] = t.idx[i], t.idx[store]
			store++
		}
	}
	t.idx[store], t.idx[hi-1] = t.idx[hi-1], t.idx[store]
	return store
}

// neighbor is a candidate result during a query.
type neighbor struct {
	index int32
	dist2 float64
}

// resultSet is a bounded max-heap of the current k best candidates keyed
// by (distance, index) so that ties resolve to the lower index.
type resultSet struct {
	items []neighbor
	k     int
}

func worse(a, b neighbor) bool {
	if a.dist2 != b.dist2 {
		return a.dist2 > b.dist2
	}
	return a.index > b.index
}

func (rs *resultSet) push(n neighbor) {
	if len(rs.items) < rs.k {
		rs.items = append(rs.items, n)
		rs.up(len(rs.items) - 1)
		return
	}
	if worse(rs.items[0], n) {
		rs.items[0] = n
		rs.down(0)
	}
}

func (rs *resultSet) full() bool {
	return len(rs.items) == rs.k
}

func (rs *resultSet) worst() neighbor {
	return rs.items[0]
}

func (rs *resultSet) up(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !worse(rs.items[i], rs.items[parent]) {
			break
		}
		rs.items[i], rs.items[parent] = rs.items[parent], rs.items[i]
		i = parent
	}
}

func (rs *resultSet) down(i int) {
	for {
		l, r := 2*i+1, 2*i+2
		largest := i
		if l < len(rs.items) && worse(rs.items[l], rs.items[largest]) {
			largest = l
		}
		if r < len(rs.items) && worse(rs.items[r], rs.items[largest]) {
			largest = r
		}
		if largest == i {
			return
		}
		rs.items[i], rs.items[largest] = rs.items[largest], rs.items[i]
		i = largest
	}
}

// Nearest returns the indices of the k points closest to query in
// ascending distance order. The point at index exclude is never reported;
// pass a negative exclude to keep every point eligible. Ties resolve to
// the lower point index. Fewer than k indices are returned when the tree
// does not hold enough eligible points.
func (t *Tree) Nearest(query r3.Vector, k int, exclude int) []int {
	if k <= 0 || len(t.pts) == 0 {
		return nil
	}
	rs := &resultSet{items: make([]neighbor, 0, k), k: k}
	t.search(0, len(t.pts), 0, query, int32(exclude), rs)

	// heap order -> ascending (distance, index) order
	out := make([]int, len(rs.items))
	for i := len(rs.items) - 1; i >= 0; i-- {
		top := rs.items[0]
		last := len(rs.items) - 1
		rs.items[0] = rs.items[last]
		rs.items = rs.items[:last]
		if len(rs.items) > 0 {
			rs.down(0)
		}
		out[i] = int(top.index)
	}
	return out
}

func (t *Tree) search(lo, hi int, depth int8, query r3.Vector, exclude int32, rs *resultSet) {
	if hi <= lo {
		return
	}
	if hi-lo == 1 {
		t.consider(t.idx[lo], query, exclude, rs)
		return
	}
	axis := depth % 3
	mid := (lo + hi) / 2
	t.consider(t.idx[mid], query, exclude, rs)

	delta := component(query, axis) - component(t.pts[t.idx[mid]], axis)
	near, farLo, farHi := lo, mid+1, hi
	if delta > 0 {
		near, farLo, farHi = mid+1, lo, mid
	}
	if near == lo {
		t.search(lo, mid, (depth+1)%3, query, exclude, rs)
	} else {
		t.search(mid+1, hi, (depth+1)%3, query, exclude, rs)
	}
	// the far half can only matter while the splitting plane is closer
	// than the current worst candidate
	if !rs.full() || delta*delta <= rs.worst().dist2 {
		t.search(farLo, farHi, (depth+1)%3, query, exclude, rs)
	}
}

func (t *Tree) consider(i int32, query r3.Vector, exclude int32, rs *resultSet) {
	if i == exclude {
		return
	}
	d := t.pts[i].Sub(query)
	rs.push(neighbor{index: i, dist2: d.Dot(d)})
}
