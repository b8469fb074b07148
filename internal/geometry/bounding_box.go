package geometry

import "math"

// BoundingBox is an axis aligned box. Zmin/Zmax may be left at zero for
// callers that only care about the 2D footprint.
type BoundingBox struct {
	Xmin float64
	Xmax float64
	Ymin float64
	Ymax float64
	Zmin float64
	Zmax float64
	Xmid float64
	Ymid float64
	Zmid float64
}

func NewBoundingBox(xmin, xmax, ymin, ymax, zmin, zmax float64) *BoundingBox {
	return &BoundingBox{
		Xmin: xmin,
		Xmax: xmax,
		Ymin: ymin,
		Ymax: ymax,
		Zmin: zmin,
		Zmax: zmax,
		Xmid: (xmin + xmax) / 2,
		Ymid: (ymin + ymax) / 2,
		Zmid: (zmin + zmax) / 2,
	}
}

// EmptyBoundingBox returns a box primed for extension: mins at +Inf and
// maxes at -Inf so that the first Extend call sets all six bounds.
func EmptyBoundingBox() *BoundingBox {
	return &BoundingBox{
		Xmin: math.Inf(1),
		Xmax: math.Inf(-1),
		Ymin: math.Inf(1),
		Ymax: math.Inf(-1),
		Zmin: math.Inf(1),
		Zmax: math.Inf(-1),
	}
}

func (b *BoundingBox) Extend(c Coordinate) {
	if c.X < b.Xmin {
		b.Xmin = c.X
	}
	if c.X > b.Xmax {
		b.Xmax = c.X
	}
	if c.Y < b.Ymin {
		b.Ymin = c.Y
	}
	if c.Y > b.Ymax {
		b.Ymax = c.Y
	}
	if c.Z < b.Zmin {
		b.Zmin = c.Z
	}
	if c.Z > b.Zmax {
		b.Zmax = c.Z
	}
	b.Xmid = (b.Xmin + b.Xmax) / 2
	b.Ymid = (b.Ymin + b.Ymax) / 2
	b.Zmid = (b.Zmin + b.Zmax) / 2
}

func (b *BoundingBox) IsEmpty() bool {
	return b.Xmin > b.Xmax
}

// Contains2D reports whether the X/Y footprint of the box contains the
// coordinate, expanded by tol on every side.
func (b *BoundingBox) Contains2D(c Coordinate, tol float64) bool {
	return c.X >= b.Xmin-tol && c.X <= b.Xmax+tol &&
		c.Y >= b.Ymin-tol && c.Y <= b.Ymax+tol
}

// Contains reports whether the box contains the coordinate in all three
// axes, expanded by tol on every side.
func (b *BoundingBox) Contains(c Coordinate, tol float64) bool {
	return b.Contains2D(c, tol) && c.Z >= b.Zmin-tol && c.Z <= b.Zmax+tol
}
