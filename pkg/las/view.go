package las

import (
	"io"
	"math/bits"
	"sync"

	"github.com/pkg/errors"
)

// PointView is random and sequential access over a sequence of point
// records without prescribing where their bytes live. Get materializes a
// full record; ReadAttrs decodes only the requested attributes into dst,
// which backings like the memory mapped one honor without touching the
// rest of the record. Iter passes a reused record; callbacks must copy
// what they keep. Returning false from the callback stops iteration.
type PointView interface {
	Len() int
	Format() PointFormat
	Get(i int) (PointRecord, error)
	ReadAttrs(i int, attrs []Attr, dst *PointRecord) error
	Iter(fn func(i int, r *PointRecord) bool) error
}

// OwnedView holds decoded records in memory. It is the only fully
// mutable backing.
type OwnedView struct {
	format  PointFormat
	records []PointRecord
}

func NewOwnedView(format PointFormat, records []PointRecord) *OwnedView {
	return &OwnedView{format: format, records: records}
}

func (v *OwnedView) Len() int            { return len(v.records) }
func (v *OwnedView) Format() PointFormat { return v.format }

func (v *OwnedView) Get(i int) (PointRecord, error) {
	if i < 0 || i >= len(v.records) {
		return PointRecord{}, errors.Wrapf(ErrValidation, "point index %d out of range 0..%d", i, len(v.records)-1)
	}
	return v.records[i], nil
}

func (v *OwnedView) ReadAttrs(i int, attrs []Attr, dst *PointRecord) error {
	r, err := v.Get(i)
	if err != nil {
		return err
	}
	copyAttrs(&r, dst, attrs)
	return nil
}

func (v *OwnedView) Iter(fn func(i int, r *PointRecord) bool) error {
	for i := range v.records {
		if !fn(i, &v.records[i]) {
			return nil
		}
	}
	return nil
}

// Set replaces the record at index i.
func (v *OwnedView) Set(i int, r PointRecord) error {
	if i < 0 || i >= len(v.records) {
		return errors.Wrapf(ErrValidation, "point index %d out of range 0..%d", i, len(v.records)-1)
	}
	v.records[i] = r
	return nil
}

// Append adds records to the view.
func (v *OwnedView) Append(records ...PointRecord) {
	v.records = append(v.records, records...)
}

// Truncate drops every record at index n and beyond.
func (v *OwnedView) Truncate(n int) {
	if n < len(v.records) {
		v.records = v.records[:n]
	}
}

// MappedView reads records straight out of a random access backing,
// typically a memory mapped file. Records overlap the underlying bytes;
// Get computes the byte offset and decodes on demand, and ReadAttrs
// decodes only the requested fields.
type MappedView struct {
	data   io.ReaderAt
	format PointFormat
	start  int64
	count  int
}

func NewMappedView(data io.ReaderAt, format PointFormat, start int64, count int) *MappedView {
	return &MappedView{data: data, format: format, start: start, count: count}
}

func (v *MappedView) Len() int            { return v.count }
func (v *MappedView) Format() PointFormat { return v.format }

func (v *MappedView) readRaw(i int, buf []byte) error {
	if i < 0 || i >= v.count {
		return errors.Wrapf(ErrValidation, "point index %d out of range 0..%d", i, v.count-1)
	}
	off := v.start + int64(i)*int64(v.format.RecordLength())
	n, err := v.data.ReadAt(buf, off)
	// a full read ending exactly at EOF is fine
	if err != nil && !(err == io.EOF && n == len(buf)) {
		return errors.Wrapf(ErrResource, "reading mapped record %d: %v", i, err)
	}
	return nil
}

func (v *MappedView) Get(i int) (PointRecord, error) {
	buf := make([]byte, v.format.RecordLength())
	if err := v.readRaw(i, buf); err != nil {
		return PointRecord{}, err
	}
	return v.format.DecodeRecord(buf)
}

func (v *MappedView) ReadAttrs(i int, attrs []Attr, dst *PointRecord) error {
	buf := make([]byte, v.format.RecordLength())
	if err := v.readRaw(i, buf); err != nil {
		return err
	}
	for _, attr := range attrs {
		v.format.decodeAttrInto(attr, buf, dst)
	}
	return nil
}

func (v *MappedView) Iter(fn func(i int, r *PointRecord) bool) error {
	buf := make([]byte, v.format.RecordLength())
	var rec PointRecord
	for i := 0; i < v.count; i++ {
		if err := v.readRaw(i, buf); err != nil {
			return err
		}
		if err := v.format.DecodeRecordInto(buf, &rec); err != nil {
			return err
		}
		if !fn(i, &rec) {
			return nil
		}
	}
	return nil
}

// LazStreamView serves records from a compressed reader. The reader owns
// a cursor, so access is stateful and serialized: Get(i) seeks unless
// the cursor already sits on i and always leaves it on i+1, which makes
// ascending sequential access seek free.
type LazStreamView struct {
	reader LazReader
	format PointFormat
	count  int

	mu     sync.Mutex
	cursor int
}

func NewLazStreamView(reader LazReader, format PointFormat, count int) *LazStreamView {
	return &LazStreamView{reader: reader, format: format, count: count}
}

func (v *LazStreamView) Len() int            { return v.count }
func (v *LazStreamView) Format() PointFormat { return v.format }

func (v *LazStreamView) Get(i int) (PointRecord, error) {
	if i < 0 || i >= v.count {
		return PointRecord{}, errors.Wrapf(ErrValidation, "point index %d out of range 0..%d", i, v.count-1)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cursor != i {
		if err := v.reader.Seek(i); err != nil {
			return PointRecord{}, errors.Wrapf(ErrResource, "seeking compressed stream to %d: %v", i, err)
		}
	}
	rec, err := v.reader.ReadNext()
	if err != nil {
		return PointRecord{}, errors.Wrapf(ErrResource, "decoding compressed record %d: %v", i, err)
	}
	v.cursor = i + 1
	return rec, nil
}

func (v *LazStreamView) ReadAttrs(i int, attrs []Attr, dst *PointRecord) error {
	r, err := v.Get(i)
	if err != nil {
		return err
	}
	copyAttrs(&r, dst, attrs)
	return nil
}

func (v *LazStreamView) Iter(fn func(i int, r *PointRecord) bool) error {
	for i := 0; i < v.count; i++ {
		r, err := v.Get(i)
		if err != nil {
			return err
		}
		if !fn(i, &r) {
			return nil
		}
	}
	return nil
}

// Close releases the underlying compressed reader.
func (v *LazStreamView) Close() error {
	return v.reader.Close()
}

// SkipView stands in when points were deliberately not read. The length
// comes from the header; every access fails with ErrUnavailable.
type SkipView struct {
	format PointFormat
	count  int
}

func NewSkipView(format PointFormat, count int) *SkipView {
	return &SkipView{format: format, count: count}
}

func (v *SkipView) Len() int            { return v.count }
func (v *SkipView) Format() PointFormat { return v.format }

func (v *SkipView) Get(int) (PointRecord, error) {
	return PointRecord{}, errors.Wrap(ErrUnavailable, "points were skipped on read")
}

func (v *SkipView) ReadAttrs(int, []Attr, *PointRecord) error {
	return errors.Wrap(ErrUnavailable, "points were skipped on read")
}

func (v *SkipView) Iter(func(i int, r *PointRecord) bool) error {
	return errors.Wrap(ErrUnavailable, "points were skipped on read")
}

// copyAttrs transfers the named fields between decoded records.
func copyAttrs(src, dst *PointRecord, attrs []Attr) {
	for _, attr := range attrs {
		switch attr {
		case AttrX:
			dst.X = src.X
		case AttrY:
			dst.Y = src.Y
		case AttrZ:
			dst.Z = src.Z
		case AttrIntensity:
			dst.Intensity = src.Intensity
		case AttrReturnNumber:
			dst.ReturnNumber = src.ReturnNumber
		case AttrReturnCount:
			dst.ReturnCount = src.ReturnCount
		case AttrScanDirection:
			dst.ScanDirection = src.ScanDirection
		case AttrEdgeOfFlight:
			dst.EdgeOfFlight = src.EdgeOfFlight
		case AttrClassification:
			dst.Classification = src.Classification
		case AttrSynthetic:
			dst.Synthetic = src.Synthetic
		case AttrKeyPoint:
			dst.KeyPoint = src.KeyPoint
		case AttrWithheld:
			dst.Withheld = src.Withheld
		case AttrOverlap:
			dst.Overlap = src.Overlap
		case AttrScannerChannel:
			dst.ScannerChannel = src.ScannerChannel
		case AttrScanAngle:
			dst.ScanAngle = src.ScanAngle
		case AttrUserData:
			dst.UserData = src.UserData
		case AttrPointSourceID:
			dst.PointSourceID = src.PointSourceID
		case AttrGPSTime:
			dst.GPSTime = src.GPSTime
		case AttrRed:
			dst.Red = src.Red
		case AttrGreen:
			dst.Green = src.Green
		case AttrBlue:
			dst.Blue = src.Blue
		case AttrNIR:
			dst.NIR = src.NIR
		}
	}
}

// MaskedView exposes the subset of its parent whose bits are set. The
// set bit count is cached so Len stays O(1). Iteration visits parent
// indices in ascending order.
type MaskedView struct {
	parent PointView
	bits   []uint64
	count  int
}

// NewMaskedView wraps parent with all bits set.
func NewMaskedView(parent PointView) *MaskedView {
	n := parent.Len()
	words := (n + 63) / 64
	bits := make([]uint64, words)
	for i := range bits {
		bits[i] = ^uint64(0)
	}
	if rem := n % 64; rem != 0 && words > 0 {
		bits[words-1] = (uint64(1) << rem) - 1
	}
	return &MaskedView{parent: parent, bits: bits, count: n}
}

// NewMaskedViewFromBits wraps parent with an explicit bitmask. The mask
// must cover the parent length.
func NewMaskedViewFromBits(parent PointView, mask []uint64) (*MaskedView, error) {
	n := parent.Len()
	if len(mask)*64 < n {
		return nil, errors.Wrapf(ErrValidation, "bitmask of %d words cannot cover %d points", len(mask), n)
	}
	bm := append([]uint64(nil), mask...)
	if rem := n % 64; rem != 0 {
		bm[n/64] &= (uint64(1) << rem) - 1
	}
	count := 0
	for _, w := range bm {
		count += bits.OnesCount64(w)
	}
	return &MaskedView{parent: parent, bits: bm, count: count}, nil
}

func (v *MaskedView) Len() int            { return v.count }
func (v *MaskedView) Format() PointFormat { return v.parent.Format() }

// ParentIndex maps a view index to the index of the i-th set bit.
func (v *MaskedView) ParentIndex(i int) (int, error) {
	if i < 0 || i >= v.count {
		return 0, errors.Wrapf(ErrValidation, "point index %d out of range 0..%d", i, v.count-1)
	}
	remaining := i
	for w, word := range v.bits {
		ones := bits.OnesCount64(word)
		if remaining >= ones {
			remaining -= ones
			continue
		}
		for word != 0 {
			b := bits.TrailingZeros64(word)
			if remaining == 0 {
				return w*64 + b, nil
			}
			remaining--
			word &= word - 1
		}
	}
	return 0, errors.Wrapf(ErrValidation, "bitmask count desynchronized at index %d", i)
}

func (v *MaskedView) Get(i int) (PointRecord, error) {
	p, err := v.ParentIndex(i)
	if err != nil {
		return PointRecord{}, err
	}
	return v.parent.Get(p)
}

func (v *MaskedView) ReadAttrs(i int, attrs []Attr, dst *PointRecord) error {
	p, err := v.ParentIndex(i)
	if err != nil {
		return err
	}
	return v.parent.ReadAttrs(p, attrs, dst)
}

func (v *MaskedView) Iter(fn func(i int, r *PointRecord) bool) error {
	i := 0
	return v.parent.Iter(func(p int, r *PointRecord) bool {
		if v.bits[p/64]&(uint64(1)<<(p%64)) == 0 {
			return true
		}
		if !fn(i, r) {
			return false
		}
		i++
		return true
	})
}

// FilterInPlace clears the bits of points failing the predicate and
// refreshes the cached count. The predicate sees the parent record.
func (v *MaskedView) FilterInPlace(pred func(r *PointRecord) bool) error {
	removed := 0
	err := v.parent.Iter(func(p int, r *PointRecord) bool {
		word, bit := p/64, uint64(1)<<(p%64)
		if v.bits[word]&bit == 0 {
			return true
		}
		if !pred(r) {
			v.bits[word] &^= bit
			removed++
		}
		return true
	})
	if err != nil {
		return err
	}
	v.count -= removed
	return nil
}

// Bits exposes the backing bitmask. The slice is live; mutating it
// desynchronizes the cached count.
func (v *MaskedView) Bits() []uint64 {
	return v.bits
}

// IndexedView is an arithmetic progression over its parent with O(1)
// random access. A negative step yields reversed iteration.
type IndexedView struct {
	parent PointView
	start  int
	step   int
	count  int
}

// NewIndexedView selects parent indices start, start+step, ... for count
// elements. Every selected index must land inside the parent.
func NewIndexedView(parent PointView, start, step, count int) (*IndexedView, error) {
	if step == 0 {
		return nil, errors.Wrap(ErrValidation, "indexed view step must be nonzero")
	}
	if count < 0 {
		return nil, errors.Wrap(ErrValidation, "indexed view count must be nonnegative")
	}
	if count > 0 {
		last := start + (count-1)*step
		if start < 0 || start >= parent.Len() || last < 0 || last >= parent.Len() {
			return nil, errors.Wrapf(ErrValidation,
				"indexed view range [%d..%d] outside parent of %d points", start, last, parent.Len())
		}
	}
	return &IndexedView{parent: parent, start: start, step: step, count: count}, nil
}

// NewRangeView selects the half open parent range [from, to).
func NewRangeView(parent PointView, from, to int) (*IndexedView, error) {
	if from < 0 || to < from || to > parent.Len() {
		return nil, errors.Wrapf(ErrValidation, "range [%d, %d) outside parent of %d points", from, to, parent.Len())
	}
	return &IndexedView{parent: parent, start: from, step: 1, count: to - from}, nil
}

func (v *IndexedView) Len() int            { return v.count }
func (v *IndexedView) Format() PointFormat { return v.parent.Format() }

func (v *IndexedView) ParentIndex(i int) (int, error) {
	if i < 0 || i >= v.count {
		return 0, errors.Wrapf(ErrValidation, "point index %d out of range 0..%d", i, v.count-1)
	}
	return v.start + i*v.step, nil
}

func (v *IndexedView) Get(i int) (PointRecord, error) {
	p, err := v.ParentIndex(i)
	if err != nil {
		return PointRecord{}, err
	}
	return v.parent.Get(p)
}

func (v *IndexedView) ReadAttrs(i int, attrs []Attr, dst *PointRecord) error {
	p, err := v.ParentIndex(i)
	if err != nil {
		return err
	}
	return v.parent.ReadAttrs(p, attrs, dst)
}

func (v *IndexedView) Iter(fn func(i int, r *PointRecord) bool) error {
	for i := 0; i < v.count; i++ {
		r, err := v.Get(i)
		if err != nil {
			return err
		}
		if !fn(i, &r) {
			return nil
		}
	}
	return nil
}

// UpdatedView layers overlay columns over its parent: records come back
// with the overlaid attributes replaced by the overlay values at the
// same index.
type UpdatedView struct {
	parent  PointView
	overlay *Overlay
}

// NewUpdatedView validates the overlay against the parent length and
// point format.
func NewUpdatedView(parent PointView, overlay *Overlay) (*UpdatedView, error) {
	if err := overlay.validateFor(parent.Format(), parent.Len()); err != nil {
		return nil, err
	}
	return &UpdatedView{parent: parent, overlay: overlay}, nil
}

func (v *UpdatedView) Len() int            { return v.parent.Len() }
func (v *UpdatedView) Format() PointFormat { return v.parent.Format() }

func (v *UpdatedView) Get(i int) (PointRecord, error) {
	r, err := v.parent.Get(i)
	if err != nil {
		return PointRecord{}, err
	}
	v.overlay.apply(i, &r)
	return r, nil
}

func (v *UpdatedView) ReadAttrs(i int, attrs []Attr, dst *PointRecord) error {
	if err := v.parent.ReadAttrs(i, attrs, dst); err != nil {
		return err
	}
	v.overlay.applyAttrs(i, dst, attrs)
	return nil
}

func (v *UpdatedView) Iter(fn func(i int, r *PointRecord) bool) error {
	var rec PointRecord
	return v.parent.Iter(func(i int, r *PointRecord) bool {
		rec = *r
		v.overlay.apply(i, &rec)
		return fn(i, &rec)
	})
}
