package las

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/exp/mmap"
)

// ReadMode selects how the point block is materialized on read.
type ReadMode int

const (
	// ReadPointsLazy memory maps the file and decodes records on access.
	ReadPointsLazy ReadMode = iota
	// ReadPointsEager decodes every record into memory up front.
	ReadPointsEager
	// ReadPointsStream reads records from the open file on access
	// without mapping it.
	ReadPointsStream
	// ReadPointsSkip reads only the header and VLRs; point access
	// yields ErrUnavailable.
	ReadPointsSkip
	// ReadPointsLazExplicit forces the compressed path even without the
	// laszip VLR.
	ReadPointsLazExplicit
)

// ReadOptions configures Open and ReadBytes.
type ReadOptions struct {
	ReadPoints ReadMode

	// OverrideCRS replaces whatever CRS the file declares.
	OverrideCRS string

	// Codec decodes compressed point data. Without one, LAZ files are
	// opened with their points unavailable.
	Codec LazCodec

	// Insecure is forwarded to URL fetching capabilities; local reads
	// ignore it.
	Insecure bool
}

// Open reads a LAS or LAZ file from disk.
func Open(path string, opts ReadOptions) (*LAS, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(ErrResource, "opening %s: %v", path, err)
	}

	l, pointOffset, recordLength, err := readHeaderBlock(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	l.crsOverride = opts.OverrideCRS

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(ErrResource, "stat %s: %v", path, err)
	}

	compressed := l.Compressed || opts.ReadPoints == ReadPointsLazExplicit
	format := l.Header.Format

	switch {
	case opts.ReadPoints == ReadPointsSkip:
		l.points = NewSkipView(format, int(l.Header.PointCount))
		f.Close()

	case compressed:
		f.Close()
		if opts.Codec == nil {
			l.warn(warningf(WarnVersion, "compressed point data and no codec supplied, points unavailable"))
			l.points = NewSkipView(format, int(l.Header.PointCount))
			break
		}
		reader, err := opts.Codec.OpenReader(path, format)
		if err != nil {
			return nil, errors.Wrapf(ErrResource, "opening compressed reader for %s: %v", path, err)
		}
		view := NewLazStreamView(reader, format, int(l.Header.PointCount))
		l.points = view
		l.closers = append(l.closers, view)

	default:
		count := clampPointCount(l, fi.Size(), pointOffset, recordLength)
		switch opts.ReadPoints {
		case ReadPointsEager:
			view, err := decodeOwned(f, format, pointOffset, recordLength, count)
			f.Close()
			if err != nil {
				return nil, err
			}
			l.points = view
		case ReadPointsStream:
			l.points = NewMappedView(f, format, pointOffset, count)
			l.closers = append(l.closers, f)
		default: // ReadPointsLazy
			f.Close()
			m, err := mmap.Open(path)
			if err != nil {
				return nil, errors.Wrapf(ErrResource, "mapping %s: %v", path, err)
			}
			l.points = NewMappedView(m, format, pointOffset, count)
			l.closers = append(l.closers, m)
		}
		l.readEVLRs(path)
	}

	l.Header.PointCount = uint64(l.points.Len())
	return l, nil
}

// ReadBytes decodes an in memory LAS file. Points are decoded eagerly,
// except that ReadPointsSkip and compressed data leave them unavailable.
func ReadBytes(data []byte, opts ReadOptions) (*LAS, error) {
	r := bytes.NewReader(data)
	l, pointOffset, recordLength, err := readHeaderBlock(r)
	if err != nil {
		return nil, err
	}
	l.crsOverride = opts.OverrideCRS

	format := l.Header.Format
	if l.Compressed {
		l.warn(warningf(WarnVersion, "compressed point data in memory buffer, points unavailable"))
		l.points = NewSkipView(format, int(l.Header.PointCount))
		return l, nil
	}
	if opts.ReadPoints == ReadPointsSkip {
		l.points = NewSkipView(format, int(l.Header.PointCount))
		return l, nil
	}

	count := clampPointCount(l, int64(len(data)), pointOffset, recordLength)
	view, err := decodeOwned(r, format, pointOffset, recordLength, count)
	if err != nil {
		return nil, err
	}
	l.points = view
	l.Header.PointCount = uint64(count)
	l.readEVLRsFrom(r, int64(len(data)))
	return l, nil
}

// readHeaderBlock parses the header and VLR list and resolves LAZ
// detection. It returns the point data offset and on disk record length.
func readHeaderBlock(r io.ReaderAt) (*LAS, int64, uint16, error) {
	buf := make([]byte, headerSizes[4])
	n, err := r.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return nil, 0, 0, errors.Wrapf(ErrResource, "reading header: %v", err)
	}
	buf = buf[:n]

	h, formatID, recordLength, vlrCount, warnings, err := decodeHeader(buf)
	if err != nil {
		return nil, 0, 0, err
	}
	l := &LAS{Header: h, warnings: warnings}

	declaredSize := int64(bo.Uint16(buf[94:96]))
	pointOffset := int64(h.PointDataOffset)
	l.readVLRs(r, declaredSize, pointOffset, vlrCount)

	// laszip announces itself through a VLR; the logical model hides it
	// and the unbiased point format.
	if v, ok := FindVLR(l.VLRs, lazUserID, lazRecordID); ok {
		l.Compressed = true
		if formatID >= lazPDRFBias {
			formatID -= lazPDRFBias
		}
		kept := l.VLRs[:0]
		for i := range l.VLRs {
			if !l.VLRs[i].Is(v.UserID, v.RecordID) {
				kept = append(kept, l.VLRs[i])
			}
		}
		l.VLRs = kept
	}

	format, err := Layout(formatID, recordLength)
	if err != nil {
		return nil, 0, 0, err
	}
	if format.Unknown {
		l.warn(warningf(WarnVersion, "unknown point format %d, records kept opaque", formatID))
	}
	l.Header.Format = format
	return l, pointOffset, recordLength, nil
}

// readVLRs parses the record list between the header block and the
// point data. Truncation stops the list and downgrades to a warning.
func (l *LAS) readVLRs(r io.ReaderAt, start, end int64, count uint32) {
	if end <= start || count == 0 {
		return
	}
	region := make([]byte, end-start)
	n, err := r.ReadAt(region, start)
	if err != nil && err != io.EOF {
		l.warn(warningf(WarnTruncation, "reading vlr region: %v", err))
		return
	}
	region = region[:n]

	off := 0
	for i := uint32(0); i < count; i++ {
		v, consumed, warnings, err := decodeVLR(region[off:], l.Header.VersionMinor)
		l.warnings = append(l.warnings, warnings...)
		if err != nil {
			l.warn(warningf(WarnTruncation, "vlr %d of %d: %v", i+1, count, err))
			return
		}
		l.VLRs = append(l.VLRs, v)
		off += consumed
	}
}

// clampPointCount bounds the header count by the bytes actually present,
// warning when they disagree.
func clampPointCount(l *LAS, size, pointOffset int64, recordLength uint16) int {
	if recordLength == 0 {
		return 0
	}
	available := size - pointOffset
	if available < 0 {
		available = 0
	}
	n := int(available / int64(recordLength))
	headerCount := int(l.Header.PointCount)
	if n < headerCount {
		l.warn(warningf(WarnTruncation,
			"header declares %d points but only %d fit in the file, keeping the prefix", headerCount, n))
		return n
	}
	return headerCount
}

// decodeOwned reads and decodes count records into an owned view.
func decodeOwned(r io.ReaderAt, format PointFormat, offset int64, recordLength uint16, count int) (*OwnedView, error) {
	raw := make([]byte, int64(recordLength)*int64(count))
	if count > 0 {
		if _, err := r.ReadAt(raw, offset); err != nil && err != io.EOF {
			return nil, errors.Wrapf(ErrResource, "reading point block: %v", err)
		}
	}
	records := make([]PointRecord, count)
	for i := 0; i < count; i++ {
		start := int64(i) * int64(recordLength)
		if err := format.DecodeRecordInto(raw[start:start+int64(recordLength)], &records[i]); err != nil {
			return nil, errors.Wrapf(err, "decoding point %d", i)
		}
	}
	return NewOwnedView(format, records), nil
}

// readEVLRs loads the extended records of 1.4 files. Failures downgrade
// to warnings; EVLR content stays opaque.
func (l *LAS) readEVLRs(path string) {
	if l.Header.VersionMinor < 4 || l.Header.EVLRCount == 0 || l.Header.EVLROffset == 0 {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		l.warn(warningf(WarnTruncation, "reopening %s for evlrs: %v", path, err))
		return
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		l.warn(warningf(WarnTruncation, "stat %s for evlrs: %v", path, err))
		return
	}
	l.readEVLRsFrom(f, fi.Size())
}

func (l *LAS) readEVLRsFrom(r io.ReaderAt, size int64) {
	if l.Header.VersionMinor < 4 || l.Header.EVLRCount == 0 || l.Header.EVLROffset == 0 {
		return
	}
	start := int64(l.Header.EVLROffset)
	if start >= size {
		l.warn(warningf(WarnTruncation, "evlr offset %d beyond end of file", start))
		return
	}
	region := make([]byte, size-start)
	n, err := r.ReadAt(region, start)
	if err != nil && err != io.EOF {
		l.warn(warningf(WarnTruncation, "reading evlr region: %v", err))
		return
	}
	region = region[:n]

	off := 0
	for i := uint32(0); i < l.Header.EVLRCount; i++ {
		v, consumed, err := decodeEVLR(region[off:])
		if err != nil {
			l.warn(warningf(WarnTruncation, "evlr %d of %d: %v", i+1, l.Header.EVLRCount, err))
			return
		}
		l.EVLRs = append(l.EVLRs, v)
		off += consumed
	}
}
