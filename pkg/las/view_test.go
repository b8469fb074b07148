package las

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bytesReaderAt(b []byte) io.ReaderAt {
	return bytes.NewReader(b)
}

// testRecords builds n format 0 records with X = i.
func testRecords(n int) []PointRecord {
	records := make([]PointRecord, n)
	for i := range records {
		records[i] = PointRecord{
			X: int32(i), Y: int32(i * 2), Z: int32(i * 3),
			Intensity:    uint16(i),
			ReturnNumber: 1, ReturnCount: 1,
		}
	}
	return records
}

func TestOwnedViewBasics(t *testing.T) {
	v := NewOwnedView(Format(0), testRecords(10))
	assert.Equal(t, 10, v.Len())

	r, err := v.Get(3)
	require.NoError(t, err)
	assert.Equal(t, int32(3), r.X)

	_, err = v.Get(10)
	assert.ErrorIs(t, err, ErrValidation)

	var visited []int32
	require.NoError(t, v.Iter(func(i int, r *PointRecord) bool {
		visited = append(visited, r.X)
		return true
	}))
	assert.Len(t, visited, 10)
	assert.Equal(t, int32(9), visited[9])
}

func TestMappedViewReadsRawBytes(t *testing.T) {
	f := Format(0)
	records := testRecords(5)
	raw := make([]byte, int(f.RecordLength())*5)
	for i := range records {
		require.NoError(t, f.EncodeRecord(&records[i], raw[i*int(f.RecordLength()):]))
	}
	v := NewMappedView(bytesReaderAt(raw), f, 0, 5)

	assert.Equal(t, 5, v.Len())
	r, err := v.Get(4)
	require.NoError(t, err)
	assert.Equal(t, int32(4), r.X)
	assert.Equal(t, int32(12), r.Z)

	// partial read touches only the requested attributes
	var partial PointRecord
	require.NoError(t, v.ReadAttrs(2, []Attr{AttrX, AttrIntensity}, &partial))
	assert.Equal(t, int32(2), partial.X)
	assert.Equal(t, uint16(2), partial.Intensity)
	assert.Equal(t, int32(0), partial.Y)
}

func TestMaskedViewFilterAndOrder(t *testing.T) {
	parent := NewOwnedView(Format(0), testRecords(10))
	masked := NewMaskedView(parent)
	assert.Equal(t, 10, masked.Len())

	even := func(r *PointRecord) bool { return r.X%2 == 0 }
	require.NoError(t, masked.FilterInPlace(even))
	assert.Equal(t, 5, masked.Len())

	var xs []int32
	require.NoError(t, masked.Iter(func(i int, r *PointRecord) bool {
		xs = append(xs, r.X)
		return true
	}))
	assert.Equal(t, []int32{0, 2, 4, 6, 8}, xs)

	r, err := masked.Get(2)
	require.NoError(t, err)
	assert.Equal(t, int32(4), r.X)

	p, err := masked.ParentIndex(3)
	require.NoError(t, err)
	assert.Equal(t, 6, p)
}

func TestMaskedViewFilterIdempotent(t *testing.T) {
	parent := NewOwnedView(Format(0), testRecords(20))
	masked := NewMaskedView(parent)
	pred := func(r *PointRecord) bool { return r.X >= 5 && r.X < 15 }

	require.NoError(t, masked.FilterInPlace(pred))
	first := masked.Len()
	require.NoError(t, masked.FilterInPlace(pred))
	assert.Equal(t, first, masked.Len())
}

func TestIndexRangeEquivalence(t *testing.T) {
	parent := NewOwnedView(Format(0), testRecords(32))

	ranged, err := NewRangeView(parent, 5, 12)
	require.NoError(t, err)

	mask := make([]uint64, 1)
	for i := 5; i < 12; i++ {
		mask[0] |= uint64(1) << i
	}
	masked, err := NewMaskedViewFromBits(parent, mask)
	require.NoError(t, err)

	require.Equal(t, ranged.Len(), masked.Len())
	for i := 0; i < ranged.Len(); i++ {
		a, err := ranged.Get(i)
		require.NoError(t, err)
		b, err := masked.Get(i)
		require.NoError(t, err)
		assert.Equal(t, a, b, "index %d", i)
	}
}

func TestIndexedViewReversed(t *testing.T) {
	parent := NewOwnedView(Format(0), testRecords(10))
	v, err := NewIndexedView(parent, 9, -1, 10)
	require.NoError(t, err)

	var xs []int32
	require.NoError(t, v.Iter(func(i int, r *PointRecord) bool {
		xs = append(xs, r.X)
		return true
	}))
	assert.Equal(t, []int32{9, 8, 7, 6, 5, 4, 3, 2, 1, 0}, xs)
}

func TestIndexedViewValidation(t *testing.T) {
	parent := NewOwnedView(Format(0), testRecords(10))
	_, err := NewIndexedView(parent, 0, 0, 5)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = NewIndexedView(parent, 8, 2, 3)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = NewRangeView(parent, 4, 2)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdatedViewOverlay(t *testing.T) {
	parent := NewOwnedView(Format(1), func() []PointRecord {
		records := testRecords(4)
		return records
	}())

	overlay := NewOverlay()
	require.NoError(t, overlay.Set(AttrIntensity, []uint16{100, 101, 102, 103}))
	require.NoError(t, overlay.Set(AttrGPSTime, []float64{1.5, 2.5, 3.5, 4.5}))

	v, err := NewUpdatedView(parent, overlay)
	require.NoError(t, err)

	r, err := v.Get(2)
	require.NoError(t, err)
	assert.Equal(t, uint16(102), r.Intensity)
	assert.Equal(t, 3.5, r.GPSTime)
	assert.Equal(t, int32(2), r.X)

	// the parent stays untouched
	p, err := parent.Get(2)
	require.NoError(t, err)
	assert.Equal(t, uint16(2), p.Intensity)
}

func TestOverlayRejectsWrongTypeAndMissingAttr(t *testing.T) {
	overlay := NewOverlay()
	err := overlay.Set(AttrIntensity, []float64{1})
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, overlay.Set(AttrGPSTime, []float64{1}))
	parent := NewOwnedView(Format(0), testRecords(1))
	_, err = NewUpdatedView(parent, overlay)
	// format 0 has no gps time
	assert.ErrorIs(t, err, ErrValidation)
}

func TestOverlayRejectsLengthMismatch(t *testing.T) {
	overlay := NewOverlay()
	require.NoError(t, overlay.Set(AttrIntensity, []uint16{1, 2}))
	parent := NewOwnedView(Format(0), testRecords(3))
	_, err := NewUpdatedView(parent, overlay)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSkipView(t *testing.T) {
	v := NewSkipView(Format(0), 42)
	assert.Equal(t, 42, v.Len())
	_, err := v.Get(0)
	assert.ErrorIs(t, err, ErrUnavailable)
	err = v.Iter(func(int, *PointRecord) bool { return true })
	assert.ErrorIs(t, err, ErrUnavailable)
}

// fakeLazReader decodes from an in memory record slice, tracking seeks.
type fakeLazReader struct {
	records []PointRecord
	cursor  int
	seeks   int
}

func (f *fakeLazReader) Seek(index int) error {
	f.cursor = index
	f.seeks++
	return nil
}

func (f *fakeLazReader) ReadNext() (PointRecord, error) {
	r := f.records[f.cursor]
	f.cursor++
	return r, nil
}

func (f *fakeLazReader) Close() error { return nil }

func TestLazStreamViewSequentialSkipsSeeks(t *testing.T) {
	reader := &fakeLazReader{records: testRecords(8)}
	v := NewLazStreamView(reader, Format(0), 8)

	// ascending sequential access never seeks after the first record
	for i := 0; i < 8; i++ {
		r, err := v.Get(i)
		require.NoError(t, err)
		assert.Equal(t, int32(i), r.X)
	}
	assert.Equal(t, 0, reader.seeks)

	// random access seeks, then sequential continues without
	r, err := v.Get(3)
	require.NoError(t, err)
	assert.Equal(t, int32(3), r.X)
	assert.Equal(t, 1, reader.seeks)
	_, err = v.Get(4)
	require.NoError(t, err)
	assert.Equal(t, 1, reader.seeks)
}

func TestLazStreamSequentialEqualsRandomAccess(t *testing.T) {
	records := testRecords(16)
	sequential := NewLazStreamView(&fakeLazReader{records: records}, Format(0), 16)
	random := NewLazStreamView(&fakeLazReader{records: records}, Format(0), 16)

	var seq []PointRecord
	require.NoError(t, sequential.Iter(func(i int, r *PointRecord) bool {
		seq = append(seq, *r)
		return true
	}))
	for i := 15; i >= 0; i-- {
		r, err := random.Get(i)
		require.NoError(t, err)
		assert.Equal(t, seq[i], r)
	}
}
