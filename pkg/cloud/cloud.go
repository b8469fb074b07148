package cloud

import (
	"sort"

	"github.com/pkg/errors"
)

// Reserved coordinate column names. Coordinates are always float64.
const (
	ColX = "x"
	ColY = "y"
	ColZ = "z"

	// ColNeighbors is the conventional name of the stored neighbor
	// table.
	ColNeighbors = "neighbors"
)

// PointCloud is an ordered set of equally long named columns plus an
// optional CRS. The cloud owns its columns exclusively.
type PointCloud struct {
	columns map[string]*Column
	crs     string
}

// New returns an empty cloud in the given CRS; pass "" for none.
func New(crs string) *PointCloud {
	return &PointCloud{columns: make(map[string]*Column), crs: crs}
}

// NewFromColumns builds a cloud from an explicit name to column
// mapping. All columns must agree on length; coordinate columns must be
// float64.
func NewFromColumns(cols map[string]*Column, crs string) (*PointCloud, error) {
	pc := New(crs)
	// deterministic validation order
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := pc.SetColumn(name, cols[name]); err != nil {
			return nil, err
		}
	}
	return pc, nil
}

func (pc *PointCloud) CRS() string {
	return pc.crs
}

func (pc *PointCloud) SetCRS(crs string) {
	pc.crs = crs
}

// Len is the number of points. An empty schema has length zero.
func (pc *PointCloud) Len() int {
	for _, col := range pc.columns {
		return col.Len()
	}
	return 0
}

// Names lists the column names in sorted order.
func (pc *PointCloud) Names() []string {
	names := make([]string, 0, len(pc.columns))
	for name := range pc.columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Column returns the named column.
func (pc *PointCloud) Column(name string) (*Column, bool) {
	col, ok := pc.columns[name]
	return col, ok
}

// SetColumn inserts or replaces a column. Insertion requires the length
// to match the existing columns; coordinate columns must be float64.
func (pc *PointCloud) SetColumn(name string, col *Column) error {
	if name == ColX || name == ColY || name == ColZ {
		if col.Kind() != KindF64 {
			return errors.Wrapf(ErrColumnType, "coordinate column %q must be float64, got %s", name, col.Kind())
		}
	}
	for other, existing := range pc.columns {
		if other == name {
			continue
		}
		if col.Len() != existing.Len() {
			return errors.Wrapf(ErrColumnType,
				"column %q has %d values, cloud has %d points", name, col.Len(), existing.Len())
		}
		break
	}
	pc.columns[name] = col
	return nil
}

// DeleteColumn removes a column; deleting an absent one is a no-op.
func (pc *PointCloud) DeleteColumn(name string) {
	delete(pc.columns, name)
}

// Coordinates returns the three coordinate columns.
func (pc *PointCloud) Coordinates() (x, y, z []float64, err error) {
	for _, name := range []string{ColX, ColY, ColZ} {
		col, ok := pc.columns[name]
		if !ok {
			return nil, nil, nil, errors.Wrapf(ErrColumnType, "cloud has no %q column", name)
		}
		vals, err := col.F64()
		if err != nil {
			return nil, nil, nil, err
		}
		switch name {
		case ColX:
			x = vals
		case ColY:
			y = vals
		case ColZ:
			z = vals
		}
	}
	return x, y, z, nil
}

// NamedValue is one attribute of a row.
type NamedValue struct {
	Name  string
	Value interface{}
}

// Row gathers the attributes of point i in sorted column order.
func (pc *PointCloud) Row(i int) ([]NamedValue, error) {
	if i < 0 || i >= pc.Len() {
		return nil, errors.Wrapf(ErrColumnType, "row %d out of range 0..%d", i, pc.Len()-1)
	}
	names := pc.Names()
	out := make([]NamedValue, len(names))
	for j, name := range names {
		out[j] = NamedValue{Name: name, Value: pc.columns[name].Value(i)}
	}
	return out, nil
}

// Slice returns the half open row range [from, to) as a new cloud whose
// columns share backing arrays with the parent.
func (pc *PointCloud) Slice(from, to int) (*PointCloud, error) {
	if from < 0 || to < from || to > pc.Len() {
		return nil, errors.Wrapf(ErrColumnType, "range [%d, %d) outside cloud of %d points", from, to, pc.Len())
	}
	out := New(pc.crs)
	for name, col := range pc.columns {
		out.columns[name] = col.Slice(from, to)
	}
	return out, nil
}

// Select gathers the given rows into a new cloud.
func (pc *PointCloud) Select(rows []int) *PointCloud {
	out := New(pc.crs)
	for name, col := range pc.columns {
		out.columns[name] = col.SelectRows(rows)
	}
	return out
}

// Append concatenates another cloud with the same schema and CRS,
// returning a new cloud.
func (pc *PointCloud) Append(other *PointCloud) (*PointCloud, error) {
	if pc.crs != other.crs {
		return nil, errors.Wrapf(ErrColumnType, "cannot append cloud in CRS %q to one in %q", other.crs, pc.crs)
	}
	names := pc.Names()
	otherNames := other.Names()
	if len(names) != len(otherNames) {
		return nil, errors.Wrap(ErrColumnType, "cannot append clouds with different schemas")
	}
	out := New(pc.crs)
	for _, name := range names {
		o, ok := other.columns[name]
		if !ok {
			return nil, errors.Wrapf(ErrColumnType, "appended cloud lacks column %q", name)
		}
		joined, err := concatColumns(pc.columns[name], o)
		if err != nil {
			return nil, errors.Wrapf(err, "column %q", name)
		}
		out.columns[name] = joined
	}
	return out, nil
}

// Clone copies the schema; column backing arrays are shared.
func (pc *PointCloud) Clone() *PointCloud {
	out := New(pc.crs)
	for name, col := range pc.columns {
		out.columns[name] = col
	}
	return out
}

// Equal is structural equality over CRS and every column.
func (pc *PointCloud) Equal(other *PointCloud) bool {
	if pc.crs != other.crs || len(pc.columns) != len(other.columns) {
		return false
	}
	for name, col := range pc.columns {
		o, ok := other.columns[name]
		if !ok || !col.Equal(o) {
			return false
		}
	}
	return true
}
