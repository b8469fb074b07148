package las

import (
	"math"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const fileSignature = "LASF"

// Header sizes by minor version 0..4.
var headerSizes = [5]uint16{227, 227, 227, 235, 375}

// Global encoding flag bits.
const (
	encAdjustedStandardGPSTime = 1 << 0
	encInternalWaveform        = 1 << 1
	encExternalWaveform        = 1 << 2
	encSyntheticReturnNumbers  = 1 << 3
	encWellKnownText           = 1 << 4
)

// Header is the logical public header block. Point counts and per return
// counts are held in their 64 bit form regardless of version; the writer
// derives the legacy 32 bit fields. The raw global encoding word is kept
// so unknown bits round trip.
type Header struct {
	FileSourceID   uint16
	GlobalEncoding uint16
	ProjectID      uuid.UUID
	VersionMajor   uint8
	VersionMinor   uint8
	SystemID       string
	SoftwareID     string
	CreationDay    uint16
	CreationYear   uint16

	// PointDataOffset is the offset the points were read from. The
	// writer recomputes it from header size and VLRs.
	PointDataOffset uint32

	Format         PointFormat
	PointCount     uint64
	PointsByReturn [15]uint64

	Scale  [3]float64
	Offset [3]float64
	Min    [3]float64
	Max    [3]float64

	WaveformDataOffset uint64
	EVLROffset         uint64
	EVLRCount          uint32

	// ExtraHeaderBytes preserves any bytes between the last parsed field
	// and the declared header size.
	ExtraHeaderBytes []byte
}

func (h *Header) AdjustedStandardGPSTime() bool { return h.GlobalEncoding&encAdjustedStandardGPSTime != 0 }
func (h *Header) InternalWaveform() bool        { return h.GlobalEncoding&encInternalWaveform != 0 }
func (h *Header) ExternalWaveform() bool        { return h.GlobalEncoding&encExternalWaveform != 0 }
func (h *Header) SyntheticReturnNumbers() bool  { return h.GlobalEncoding&encSyntheticReturnNumbers != 0 }
func (h *Header) WellKnownText() bool           { return h.GlobalEncoding&encWellKnownText != 0 }

func (h *Header) setFlag(bit uint16, on bool) {
	if on {
		h.GlobalEncoding |= bit
	} else {
		h.GlobalEncoding &^= bit
	}
}

func (h *Header) SetAdjustedStandardGPSTime(on bool) { h.setFlag(encAdjustedStandardGPSTime, on) }
func (h *Header) SetInternalWaveform(on bool)        { h.setFlag(encInternalWaveform, on) }
func (h *Header) SetExternalWaveform(on bool)        { h.setFlag(encExternalWaveform, on) }
func (h *Header) SetSyntheticReturnNumbers(on bool)  { h.setFlag(encSyntheticReturnNumbers, on) }
func (h *Header) SetWellKnownText(on bool)           { h.setFlag(encWellKnownText, on) }

// HeaderSize returns the fixed block size for the header's minor
// version. Unknown minors are sized like 1.4.
func (h *Header) HeaderSize() uint16 {
	if int(h.VersionMinor) < len(headerSizes) {
		return headerSizes[h.VersionMinor]
	}
	return headerSizes[4]
}

// ReturnCountWidth is the number of per return counters meaningful for
// the header's point format: 5 legacy slots or 15 extended ones.
func (h *Header) ReturnCountWidth() int {
	if h.Format.Extended() {
		return 15
	}
	return 5
}

// decodeGUID converts the little endian LAS project GUID layout into an
// RFC 4122 UUID. The mapping is its own inverse on the swapped groups.
func decodeGUID(b []byte) uuid.UUID {
	var u uuid.UUID
	u[0], u[1], u[2], u[3] = b[3], b[2], b[1], b[0]
	u[4], u[5] = b[5], b[4]
	u[6], u[7] = b[7], b[6]
	copy(u[8:], b[8:16])
	return u
}

func encodeGUID(u uuid.UUID, b []byte) {
	b[0], b[1], b[2], b[3] = u[3], u[2], u[1], u[0]
	b[4], b[5] = u[5], u[4]
	b[6], b[7] = u[7], u[6]
	copy(b[8:16], u[8:])
}

// trimFixedString strips the zero padding of a fixed width header field.
func trimFixedString(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return string(b[:end])
}

// checkFixedString validates an ASCII identifier against its on disk
// width.
func checkFixedString(name, s string, width int) error {
	if len(s) > width {
		return errors.Wrapf(ErrValidation, "%s %q longer than %d bytes", name, s, width)
	}
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return errors.Wrapf(ErrValidation, "%s %q contains non ASCII byte at %d", name, s, i)
		}
	}
	return nil
}

func putFixedString(b []byte, s string) {
	n := copy(b, s)
	for ; n < len(b); n++ {
		b[n] = 0
	}
}

// decodeHeader parses the fixed header block. buf holds at least the
// declared header size; the caller resolves truncation beforehand. The
// returned values beside the header are the on disk point format id and
// record length (still including the LAZ bias when compressed), the VLR
// count, and any warnings.
func decodeHeader(buf []byte) (Header, uint8, uint16, uint32, []Warning, error) {
	var warnings []Warning
	var h Header

	if len(buf) < 4 || string(buf[0:4]) != fileSignature {
		return h, 0, 0, 0, nil, errors.Wrap(ErrFormat, "missing LASF signature")
	}
	if len(buf) < int(headerSizes[0]) {
		return h, 0, 0, 0, nil, errors.Wrapf(ErrFormat, "header block of %d bytes shorter than the %d byte minimum", len(buf), headerSizes[0])
	}

	h.FileSourceID = bo.Uint16(buf[4:6])
	h.GlobalEncoding = bo.Uint16(buf[6:8])
	h.ProjectID = decodeGUID(buf[8:24])
	h.VersionMajor = buf[24]
	h.VersionMinor = buf[25]
	h.SystemID = trimFixedString(buf[26:58])
	h.SoftwareID = trimFixedString(buf[58:90])
	h.CreationDay = bo.Uint16(buf[90:92])
	h.CreationYear = bo.Uint16(buf[92:94])

	if h.VersionMajor != 1 {
		return h, 0, 0, 0, warnings, errors.Wrapf(ErrFormat, "unsupported version %d.%d", h.VersionMajor, h.VersionMinor)
	}
	if h.VersionMinor > 4 {
		warnings = append(warnings, warningf(WarnVersion, "unknown minor version 1.%d, parsing as 1.4", h.VersionMinor))
	}

	declaredSize := bo.Uint16(buf[94:96])
	if declaredSize != h.HeaderSize() {
		warnings = append(warnings, warningf(WarnVersion,
			"declared header size %d differs from the %d bytes version 1.%d defines",
			declaredSize, h.HeaderSize(), h.VersionMinor))
	}
	if int(declaredSize) > len(buf) {
		declaredSize = uint16(len(buf))
	}

	h.PointDataOffset = bo.Uint32(buf[96:100])
	vlrCount := bo.Uint32(buf[100:104])
	formatID := buf[104]
	recordLength := bo.Uint16(buf[105:107])

	h.PointCount = uint64(bo.Uint32(buf[107:111]))
	for i := 0; i < 5; i++ {
		h.PointsByReturn[i] = uint64(bo.Uint32(buf[111+4*i : 115+4*i]))
	}

	off := 131
	for d := 0; d < 3; d++ {
		h.Scale[d] = math.Float64frombits(bo.Uint64(buf[off : off+8]))
		off += 8
	}
	for d := 0; d < 3; d++ {
		h.Offset[d] = math.Float64frombits(bo.Uint64(buf[off : off+8]))
		off += 8
	}
	for d := 0; d < 3; d++ {
		h.Max[d] = math.Float64frombits(bo.Uint64(buf[off : off+8]))
		h.Min[d] = math.Float64frombits(bo.Uint64(buf[off+8 : off+16]))
		off += 16
	}

	if h.VersionMinor >= 3 && len(buf) >= off+8 {
		h.WaveformDataOffset = bo.Uint64(buf[off : off+8])
		off += 8
	}
	if h.VersionMinor >= 4 && len(buf) >= off+20 {
		h.EVLROffset = bo.Uint64(buf[off : off+8])
		h.EVLRCount = bo.Uint32(buf[off+8 : off+12])
		count64 := bo.Uint64(buf[off+12 : off+20])
		off += 20
		if count64 != 0 {
			h.PointCount = count64
		}
		allZero := true
		for i := 0; i < 15 && len(buf) >= off+8; i++ {
			v := bo.Uint64(buf[off : off+8])
			if v != 0 {
				allZero = false
			}
			h.PointsByReturn[i] = v
			off += 8
		}
		if allZero {
			// fall back to the legacy counters already decoded
			for i := 0; i < 5; i++ {
				h.PointsByReturn[i] = uint64(bo.Uint32(buf[111+4*i : 115+4*i]))
			}
		}
	}

	if int(declaredSize) > off {
		h.ExtraHeaderBytes = append([]byte(nil), buf[off:declaredSize]...)
	}

	warnings = append(warnings, h.flagVersionWarnings()...)
	return h, formatID, recordLength, vlrCount, warnings, nil
}

// flagVersionWarnings reports global encoding features used before the
// minor version that standardized them.
func (h *Header) flagVersionWarnings() []Warning {
	var out []Warning
	if h.AdjustedStandardGPSTime() && h.VersionMinor < 2 {
		out = append(out, warningf(WarnVersion, "adjusted standard GPS time flag predates LAS 1.2"))
	}
	if (h.InternalWaveform() || h.ExternalWaveform()) && h.VersionMinor < 3 {
		out = append(out, warningf(WarnVersion, "waveform flags predate LAS 1.3"))
	}
	if h.SyntheticReturnNumbers() && h.VersionMinor < 3 {
		out = append(out, warningf(WarnVersion, "synthetic return numbers flag predates LAS 1.3"))
	}
	if h.WellKnownText() && h.VersionMinor < 4 {
		out = append(out, warningf(WarnVersion, "WKT flag predates LAS 1.4"))
	}
	return out
}

// encodeHeader serializes the fixed header block for the header's minor
// version. pointDataOffset and vlrCount describe the layout being
// written; evlrOffset is zero unless EVLRs follow the points.
func (h *Header) encodeHeader(pointDataOffset uint32, vlrCount uint32, evlrOffset uint64) []byte {
	size := h.HeaderSize()
	buf := make([]byte, size)

	copy(buf[0:4], fileSignature)
	bo.PutUint16(buf[4:6], h.FileSourceID)
	bo.PutUint16(buf[6:8], h.GlobalEncoding)
	encodeGUID(h.ProjectID, buf[8:24])
	buf[24] = h.VersionMajor
	buf[25] = h.VersionMinor
	putFixedString(buf[26:58], h.SystemID)
	putFixedString(buf[58:90], h.SoftwareID)
	bo.PutUint16(buf[90:92], h.CreationDay)
	bo.PutUint16(buf[92:94], h.CreationYear)
	bo.PutUint16(buf[94:96], size)
	bo.PutUint32(buf[96:100], pointDataOffset)
	bo.PutUint32(buf[100:104], vlrCount)
	buf[104] = h.Format.ID
	bo.PutUint16(buf[105:107], h.Format.RecordLength())

	// Legacy 32 bit counts are zeroed when they cannot represent the
	// content; LAS 1.4 readers use the 64 bit fields instead.
	legacyOK := h.PointCount <= math.MaxUint32 && (h.Format.Unknown || h.Format.ID <= 5)
	if legacyOK {
		bo.PutUint32(buf[107:111], uint32(h.PointCount))
		for i := 0; i < 5; i++ {
			bo.PutUint32(buf[111+4*i:115+4*i], uint32(h.PointsByReturn[i]))
		}
	}

	off := 131
	for d := 0; d < 3; d++ {
		bo.PutUint64(buf[off:off+8], math.Float64bits(h.Scale[d]))
		off += 8
	}
	for d := 0; d < 3; d++ {
		bo.PutUint64(buf[off:off+8], math.Float64bits(h.Offset[d]))
		off += 8
	}
	for d := 0; d < 3; d++ {
		bo.PutUint64(buf[off:off+8], math.Float64bits(h.Max[d]))
		bo.PutUint64(buf[off+8:off+16], math.Float64bits(h.Min[d]))
		off += 16
	}

	if h.VersionMinor >= 3 {
		bo.PutUint64(buf[off:off+8], h.WaveformDataOffset)
		off += 8
	}
	if h.VersionMinor >= 4 {
		bo.PutUint64(buf[off:off+8], evlrOffset)
		bo.PutUint32(buf[off+8:off+12], h.EVLRCount)
		bo.PutUint64(buf[off+12:off+20], h.PointCount)
		off += 20
		for i := 0; i < 15; i++ {
			bo.PutUint64(buf[off:off+8], h.PointsByReturn[i])
			off += 8
		}
	}
	return buf
}
