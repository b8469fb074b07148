package las

import (
	"bufio"
	"io"
	"math"
	"os"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// WriteFormat selects the container encoding.
type WriteFormat int

const (
	WriteLAS WriteFormat = iota
	WriteLAZ
)

// WriteOptions configures Write and WriteFile.
type WriteOptions struct {
	Format WriteFormat

	// Codec is required when Format is WriteLAZ.
	Codec LazCodec
}

// Write validates the container and serializes it to w in canonical
// order: header, VLRs, points in view order, EVLRs. Extra header bytes
// kept from reading are dropped with a warning, since the header is
// written at its canonical size. The stored summary is recomputed from the live view first; divergence
// warns and the recomputed values win. Chained views are consumed
// sequentially through a single iteration.
func Write(w io.Writer, l *LAS, opts WriteOptions) error {
	if opts.Format == WriteLAZ {
		return errors.Wrap(ErrValidation, "compressed output needs WriteFile and a codec")
	}
	if err := validateForWrite(l); err != nil {
		return err
	}

	minor := l.Header.VersionMinor
	vlrSize := 0
	for i := range l.VLRs {
		vlrSize += l.VLRs[i].Size()
	}
	if len(l.Header.ExtraHeaderBytes) > 0 {
		// nonstandard header tails are not reproducible once the header
		// is rewritten at its canonical size
		l.warn(warningf(WarnVersion, "dropping %d nonstandard header bytes on write", len(l.Header.ExtraHeaderBytes)))
		l.Header.ExtraHeaderBytes = nil
	}
	pointOffset := uint32(l.Header.HeaderSize()) + uint32(vlrSize)

	recordLength := int64(l.Header.Format.RecordLength())
	var evlrOffset uint64
	if minor >= 4 && len(l.EVLRs) > 0 {
		evlrOffset = uint64(pointOffset) + uint64(recordLength)*l.Header.PointCount
		l.Header.EVLRCount = uint32(len(l.EVLRs))
	} else {
		l.Header.EVLRCount = 0
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(l.Header.encodeHeader(pointOffset, uint32(len(l.VLRs)), evlrOffset)); err != nil {
		return errors.Wrapf(ErrResource, "writing header: %v", err)
	}
	for i := range l.VLRs {
		if _, err := bw.Write(encodeVLR(&l.VLRs[i], minor)); err != nil {
			return errors.Wrapf(ErrResource, "writing vlr %d: %v", i, err)
		}
	}

	format := l.Header.Format
	buf := make([]byte, format.RecordLength())
	var encodeErr error
	err := l.points.Iter(func(i int, r *PointRecord) bool {
		if err := format.EncodeRecord(r, buf); err != nil {
			encodeErr = errors.Wrapf(err, "encoding point %d", i)
			return false
		}
		if _, err := bw.Write(buf); err != nil {
			encodeErr = errors.Wrapf(ErrResource, "writing point %d: %v", i, err)
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	if encodeErr != nil {
		return encodeErr
	}

	if minor >= 4 {
		for i := range l.EVLRs {
			if _, err := bw.Write(encodeEVLR(&l.EVLRs[i])); err != nil {
				return errors.Wrapf(ErrResource, "writing evlr %d: %v", i, err)
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrapf(ErrResource, "flushing output: %v", err)
	}
	return nil
}

// WriteFile serializes the container to a file, compressing through the
// codec when WriteLAZ is requested.
func WriteFile(path string, l *LAS, opts WriteOptions) error {
	if opts.Format == WriteLAZ {
		if opts.Codec == nil {
			return errors.Wrap(ErrValidation, "compressed output requires a LazCodec")
		}
		if err := validateForWrite(l); err != nil {
			return err
		}
		lw, err := opts.Codec.OpenWriter(path, l.Header)
		if err != nil {
			return errors.Wrapf(ErrResource, "opening compressed writer for %s: %v", path, err)
		}
		var writeErr error
		iterErr := l.points.Iter(func(i int, r *PointRecord) bool {
			if err := lw.Write(*r); err != nil {
				writeErr = errors.Wrapf(ErrResource, "compressing point %d: %v", i, err)
				return false
			}
			return true
		})
		if err := lw.Close(); err != nil && writeErr == nil && iterErr == nil {
			writeErr = errors.Wrapf(ErrResource, "closing compressed writer: %v", err)
		}
		if iterErr != nil {
			return iterErr
		}
		return writeErr
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(ErrResource, "creating %s: %v", path, err)
	}
	werr := Write(f, l, opts)
	cerr := f.Close()
	if werr != nil {
		return werr
	}
	if cerr != nil {
		return errors.Wrapf(ErrResource, "closing %s: %v", path, cerr)
	}
	return nil
}

// validateForWrite runs the write validation ladder and refreshes the
// header summary from the live view.
func validateForWrite(l *LAS) error {
	h := &l.Header
	format := h.Format

	// 1. point format must be allowed in the minor version
	if !format.Unknown && h.VersionMinor < format.MinVersionMinor() {
		return errors.Wrapf(ErrValidation,
			"point format %d requires LAS 1.%d, container is 1.%d",
			format.ID, format.MinVersionMinor(), h.VersionMinor)
	}

	// 2. identifier strings
	if err := checkFixedString("system id", h.SystemID, 32); err != nil {
		return err
	}
	if err := checkFixedString("software id", h.SoftwareID, 32); err != nil {
		return err
	}
	for i := range l.VLRs {
		if err := l.VLRs[i].validate(); err != nil {
			return err
		}
	}

	// 3. the data has final say over the stored summary
	if _, ok := l.points.(*SkipView); !ok {
		s, err := l.computeSummary()
		if err != nil {
			return err
		}
		l.adoptSummary(s)
	}

	// 4. legacy versions cannot count past 32 bits
	if h.VersionMinor < 4 && h.PointCount > math.MaxUint32 {
		return errors.Wrapf(ErrValidation,
			"%d points exceed the 32 bit counter of LAS 1.%d", h.PointCount, h.VersionMinor)
	}

	// 5. return counters must stay consistent with the total
	var legacySum uint64
	for i, c := range h.PointsByReturn {
		if c > h.PointCount {
			return errors.Wrapf(ErrValidation,
				"return %d count %d exceeds point count %d", i+1, c, h.PointCount)
		}
		if i < 5 {
			legacySum += c
		}
	}
	if !format.Extended() && legacySum > h.PointCount {
		return errors.Wrapf(ErrValidation,
			"legacy return counts sum to %d, more than %d points", legacySum, h.PointCount)
	}
	return nil
}

// adoptSummary installs recomputed statistics, warning about stored
// values diverging beyond one coordinate quantum. The comparison runs on
// exact decimals so the quantum test is not itself subject to float
// rounding.
func (l *LAS) adoptSummary(s summary) {
	h := &l.Header
	axes := [3]string{"x", "y", "z"}
	for d := 0; d < 3; d++ {
		eps := decimal.NewFromFloat(math.Abs(h.Scale[d]))
		if summaryDiverges(h.Min[d], s.min[d], eps) {
			l.warn(warningf(WarnSummaryDivergence,
				"stored %s min %g diverges from recomputed %g", axes[d], h.Min[d], s.min[d]))
		}
		if summaryDiverges(h.Max[d], s.max[d], eps) {
			l.warn(warningf(WarnSummaryDivergence,
				"stored %s max %g diverges from recomputed %g", axes[d], h.Max[d], s.max[d]))
		}
		h.Min[d] = s.min[d]
		h.Max[d] = s.max[d]
	}
	for i := range h.PointsByReturn {
		if h.PointsByReturn[i] != s.pointsByReturn[i] {
			l.warn(warningf(WarnSummaryDivergence,
				"stored return %d count %d diverges from recomputed %d",
				i+1, h.PointsByReturn[i], s.pointsByReturn[i]))
		}
	}
	h.PointsByReturn = s.pointsByReturn
	if h.PointCount != s.count {
		l.warn(warningf(WarnSummaryDivergence,
			"stored point count %d diverges from recomputed %d", h.PointCount, s.count))
	}
	h.PointCount = s.count
}

func summaryDiverges(stored, recomputed float64, eps decimal.Decimal) bool {
	if math.IsInf(stored, 0) || math.IsNaN(stored) || math.IsInf(recomputed, 0) || math.IsNaN(recomputed) {
		return stored != recomputed
	}
	diff := decimal.NewFromFloat(stored).Sub(decimal.NewFromFloat(recomputed)).Abs()
	return diff.GreaterThan(eps)
}
