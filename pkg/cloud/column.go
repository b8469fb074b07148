// Package cloud holds an in memory, column oriented point cloud with a
// dynamic attribute schema, parallel per point processing, k nearest
// neighbor search and rasterization onto regular grids.
package cloud

import (
	"github.com/pkg/errors"
)

// ErrColumnType marks access to a column under the wrong element kind.
var ErrColumnType = errors.New("cloud: column type mismatch")

// ColumnKind enumerates the element kinds a column can store.
type ColumnKind int

const (
	KindF64 ColumnKind = iota
	KindF32
	KindI64
	KindI32
	KindI16
	KindU16
	KindU8
	KindBool
	// KindIndex stores fixed length tuples of point indices, used for
	// neighbor tables.
	KindIndex
)

func (k ColumnKind) String() string {
	switch k {
	case KindF64:
		return "float64"
	case KindF32:
		return "float32"
	case KindI64:
		return "int64"
	case KindI32:
		return "int32"
	case KindI16:
		return "int16"
	case KindU16:
		return "uint16"
	case KindU8:
		return "uint8"
	case KindBool:
		return "bool"
	case KindIndex:
		return "index"
	}
	return "unknown"
}

// Column is a runtime typed attribute vector. Exactly one backing slice
// is populated, matching the kind.
type Column struct {
	kind  ColumnKind
	f64   []float64
	f32   []float32
	i64   []int64
	i32   []int32
	i16   []int16
	u16   []uint16
	u8    []uint8
	bools []bool
	index [][]int
}

func F64Column(vals []float64) *Column { return &Column{kind: KindF64, f64: vals} }
func F32Column(vals []float32) *Column { return &Column{kind: KindF32, f32: vals} }
func I64Column(vals []int64) *Column   { return &Column{kind: KindI64, i64: vals} }
func I32Column(vals []int32) *Column   { return &Column{kind: KindI32, i32: vals} }
func I16Column(vals []int16) *Column   { return &Column{kind: KindI16, i16: vals} }
func U16Column(vals []uint16) *Column  { return &Column{kind: KindU16, u16: vals} }
func U8Column(vals []uint8) *Column    { return &Column{kind: KindU8, u8: vals} }
func BoolColumn(vals []bool) *Column   { return &Column{kind: KindBool, bools: vals} }
func IndexColumn(vals [][]int) *Column { return &Column{kind: KindIndex, index: vals} }

func (c *Column) Kind() ColumnKind { return c.kind }

func (c *Column) Len() int {
	switch c.kind {
	case KindF64:
		return len(c.f64)
	case KindF32:
		return len(c.f32)
	case KindI64:
		return len(c.i64)
	case KindI32:
		return len(c.i32)
	case KindI16:
		return len(c.i16)
	case KindU16:
		return len(c.u16)
	case KindU8:
		return len(c.u8)
	case KindBool:
		return len(c.bools)
	case KindIndex:
		return len(c.index)
	}
	return 0
}

// Value boxes the element at i.
func (c *Column) Value(i int) interface{} {
	switch c.kind {
	case KindF64:
		return c.f64[i]
	case KindF32:
		return c.f32[i]
	case KindI64:
		return c.i64[i]
	case KindI32:
		return c.i32[i]
	case KindI16:
		return c.i16[i]
	case KindU16:
		return c.u16[i]
	case KindU8:
		return c.u8[i]
	case KindBool:
		return c.bools[i]
	case KindIndex:
		return c.index[i]
	}
	return nil
}

// F64 exposes the backing float64 slice; fails on other kinds.
func (c *Column) F64() ([]float64, error) {
	if c.kind != KindF64 {
		return nil, errors.Wrapf(ErrColumnType, "column is %s, want float64", c.kind)
	}
	return c.f64, nil
}

// Index exposes the backing neighbor tuples; fails on other kinds.
func (c *Column) Index() ([][]int, error) {
	if c.kind != KindIndex {
		return nil, errors.Wrapf(ErrColumnType, "column is %s, want index", c.kind)
	}
	return c.index, nil
}

// Float64At converts the element at i to float64 for numeric kinds.
func (c *Column) Float64At(i int) (float64, bool) {
	switch c.kind {
	case KindF64:
		return c.f64[i], true
	case KindF32:
		return float64(c.f32[i]), true
	case KindI64:
		return float64(c.i64[i]), true
	case KindI32:
		return float64(c.i32[i]), true
	case KindI16:
		return float64(c.i16[i]), true
	case KindU16:
		return float64(c.u16[i]), true
	case KindU8:
		return float64(c.u8[i]), true
	}
	return 0, false
}

// SelectRows gathers the elements at the given row indices into a new
// column of the same kind.
func (c *Column) SelectRows(rows []int) *Column {
	out := &Column{kind: c.kind}
	switch c.kind {
	case KindF64:
		out.f64 = make([]float64, len(rows))
		for i, r := range rows {
			out.f64[i] = c.f64[r]
		}
	case KindF32:
		out.f32 = make([]float32, len(rows))
		for i, r := range rows {
			out.f32[i] = c.f32[r]
		}
	case KindI64:
		out.i64 = make([]int64, len(rows))
		for i, r := range rows {
			out.i64[i] = c.i64[r]
		}
	case KindI32:
		out.i32 = make([]int32, len(rows))
		for i, r := range rows {
			out.i32[i] = c.i32[r]
		}
	case KindI16:
		out.i16 = make([]int16, len(rows))
		for i, r := range rows {
			out.i16[i] = c.i16[r]
		}
	case KindU16:
		out.u16 = make([]uint16, len(rows))
		for i, r := range rows {
			out.u16[i] = c.u16[r]
		}
	case KindU8:
		out.u8 = make([]uint8, len(rows))
		for i, r := range rows {
			out.u8[i] = c.u8[r]
		}
	case KindBool:
		out.bools = make([]bool, len(rows))
		for i, r := range rows {
			out.bools[i] = c.bools[r]
		}
	case KindIndex:
		out.index = make([][]int, len(rows))
		for i, r := range rows {
			out.index[i] = c.index[r]
		}
	}
	return out
}

// Slice returns the half open row range [from, to) as a new column
// sharing the backing array.
func (c *Column) Slice(from, to int) *Column {
	out := &Column{kind: c.kind}
	switch c.kind {
	case KindF64:
		out.f64 = c.f64[from:to]
	case KindF32:
		out.f32 = c.f32[from:to]
	case KindI64:
		out.i64 = c.i64[from:to]
	case KindI32:
		out.i32 = c.i32[from:to]
	case KindI16:
		out.i16 = c.i16[from:to]
	case KindU16:
		out.u16 = c.u16[from:to]
	case KindU8:
		out.u8 = c.u8[from:to]
	case KindBool:
		out.bools = c.bools[from:to]
	case KindIndex:
		out.index = c.index[from:to]
	}
	return out
}

// Equal is structural equality over kind, length and every element.
func (c *Column) Equal(other *Column) bool {
	if c.kind != other.kind || c.Len() != other.Len() {
		return false
	}
	n := c.Len()
	switch c.kind {
	case KindIndex:
		for i := 0; i < n; i++ {
			a, b := c.index[i], other.index[i]
			if len(a) != len(b) {
				return false
			}
			for j := range a {
				if a[j] != b[j] {
					return false
				}
			}
		}
		return true
	default:
		for i := 0; i < n; i++ {
			if c.Value(i) != other.Value(i) {
				return false
			}
		}
		return true
	}
}

// concatColumns joins two columns of the same kind into a fresh one.
func concatColumns(a, b *Column) (*Column, error) {
	if a.kind != b.kind {
		return nil, errors.Wrapf(ErrColumnType, "cannot concatenate %s with %s", a.kind, b.kind)
	}
	out := &Column{kind: a.kind}
	switch a.kind {
	case KindF64:
		out.f64 = append(append([]float64(nil), a.f64...), b.f64...)
	case KindF32:
		out.f32 = append(append([]float32(nil), a.f32...), b.f32...)
	case KindI64:
		out.i64 = append(append([]int64(nil), a.i64...), b.i64...)
	case KindI32:
		out.i32 = append(append([]int32(nil), a.i32...), b.i32...)
	case KindI16:
		out.i16 = append(append([]int16(nil), a.i16...), b.i16...)
	case KindU16:
		out.u16 = append(append([]uint16(nil), a.u16...), b.u16...)
	case KindU8:
		out.u8 = append(append([]uint8(nil), a.u8...), b.u8...)
	case KindBool:
		out.bools = append(append([]bool(nil), a.bools...), b.bools...)
	case KindIndex:
		out.index = append(append([][]int(nil), a.index...), b.index...)
	}
	return out, nil
}

// columnBuilder grows a column whose kind is fixed by the first value
// appended; later values must narrow cleanly into that kind.
type columnBuilder struct {
	col     *Column
	started bool
}

func (b *columnBuilder) append(v interface{}) error {
	if !b.started {
		b.col = &Column{}
		switch v.(type) {
		case float64:
			b.col.kind = KindF64
		case float32:
			b.col.kind = KindF32
		case int64:
			b.col.kind = KindI64
		case int, int32:
			b.col.kind = KindI32
		case int16:
			b.col.kind = KindI16
		case uint16:
			b.col.kind = KindU16
		case uint8:
			b.col.kind = KindU8
		case bool:
			b.col.kind = KindBool
		case []int:
			b.col.kind = KindIndex
		default:
			return errors.Wrapf(ErrColumnType, "unsupported element type %T", v)
		}
		b.started = true
	}
	switch b.col.kind {
	case KindF64:
		x, ok := v.(float64)
		if !ok {
			return errors.Wrapf(ErrColumnType, "expected float64, got %T", v)
		}
		b.col.f64 = append(b.col.f64, x)
	case KindF32:
		x, ok := v.(float32)
		if !ok {
			return errors.Wrapf(ErrColumnType, "expected float32, got %T", v)
		}
		b.col.f32 = append(b.col.f32, x)
	case KindI64:
		x, ok := v.(int64)
		if !ok {
			return errors.Wrapf(ErrColumnType, "expected int64, got %T", v)
		}
		b.col.i64 = append(b.col.i64, x)
	case KindI32:
		switch x := v.(type) {
		case int32:
			b.col.i32 = append(b.col.i32, x)
		case int:
			b.col.i32 = append(b.col.i32, int32(x))
		default:
			return errors.Wrapf(ErrColumnType, "expected int32, got %T", v)
		}
	case KindI16:
		x, ok := v.(int16)
		if !ok {
			return errors.Wrapf(ErrColumnType, "expected int16, got %T", v)
		}
		b.col.i16 = append(b.col.i16, x)
	case KindU16:
		x, ok := v.(uint16)
		if !ok {
			return errors.Wrapf(ErrColumnType, "expected uint16, got %T", v)
		}
		b.col.u16 = append(b.col.u16, x)
	case KindU8:
		x, ok := v.(uint8)
		if !ok {
			return errors.Wrapf(ErrColumnType, "expected uint8, got %T", v)
		}
		b.col.u8 = append(b.col.u8, x)
	case KindBool:
		x, ok := v.(bool)
		if !ok {
			return errors.Wrapf(ErrColumnType, "expected bool, got %T", v)
		}
		b.col.bools = append(b.col.bools, x)
	case KindIndex:
		x, ok := v.([]int)
		if !ok {
			return errors.Wrapf(ErrColumnType, "expected []int, got %T", v)
		}
		b.col.index = append(b.col.index, x)
	}
	return nil
}
