package las

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

var bo = binary.LittleEndian

// WaveformPacket is the raw waveform descriptor of formats 4, 5, 9, 10.
type WaveformPacket struct {
	DescriptorIndex uint8
	ByteOffset      uint64
	PacketSize      uint32
	ReturnPoint     float32
	Xt              float32
	Yt              float32
	Zt              float32
}

// PointRecord is a decoded point. Which fields are meaningful depends on
// the point format the record was decoded with; accessors that take a
// PointFormat report presence alongside the value.
type PointRecord struct {
	X int32
	Y int32
	Z int32

	Intensity     uint16
	ReturnNumber  uint8
	ReturnCount   uint8
	ScanDirection bool // true when the mirror swept left to right
	EdgeOfFlight  bool

	Classification uint8
	Synthetic      bool
	KeyPoint       bool
	Withheld       bool
	Overlap        bool
	ScannerChannel uint8

	ScanAngle     int16
	UserData      uint8
	PointSourceID uint16

	GPSTime float64

	Red   uint16
	Green uint16
	Blue  uint16
	NIR   uint16

	Waveform WaveformPacket

	Extra []byte
}

// legacy classification numbered Overlap by ASPRS.
const legacyOverlapClass = 12

// IsOverlap reports the abstract overlap property: the dedicated flag bit
// for extended formats, classification 12 for legacy ones.
func (r *PointRecord) IsOverlap(f PointFormat) bool {
	if f.Extended() {
		return r.Overlap
	}
	return r.Classification == legacyOverlapClass
}

// IntensityNormalized returns the intensity scaled into [0, 1].
func (r *PointRecord) IntensityNormalized() float64 {
	return float64(r.Intensity) / math.MaxUint16
}

// ScanAngleDegrees converts the raw scan angle to degrees for the given
// format. Legacy formats store whole degrees in an i8; extended formats
// store 0.006 degree increments in an i16.
func (f PointFormat) ScanAngleDegrees(r *PointRecord) float64 {
	return float64(r.ScanAngle) * f.scanAngleScale()
}

// ScanAngleInRange reports whether the raw value lies inside the domain
// the specification allows for the format.
func (f PointFormat) ScanAngleInRange(raw int16) bool {
	if f.Extended() {
		return raw >= -30000 && raw <= 30000
	}
	return raw >= -90 && raw <= 90
}

// DecodeRecord decodes one on disk record. buf must hold at least
// RecordLength bytes; trailing extra bytes are copied out of it.
func (f PointFormat) DecodeRecord(buf []byte) (PointRecord, error) {
	var r PointRecord
	err := f.DecodeRecordInto(buf, &r)
	return r, err
}

// DecodeRecordInto decodes into an existing record, reusing its Extra
// buffer when capacity allows.
func (f PointFormat) DecodeRecordInto(buf []byte, r *PointRecord) error {
	if len(buf) < int(f.RecordLength()) {
		return errors.Wrapf(ErrTruncation, "point record needs %d bytes, have %d", f.RecordLength(), len(buf))
	}
	if f.Unknown {
		r.Extra = append(r.Extra[:0], buf[:f.RecordLength()]...)
		return nil
	}

	r.X = int32(bo.Uint32(buf[0:4]))
	r.Y = int32(bo.Uint32(buf[4:8]))
	r.Z = int32(bo.Uint32(buf[8:12]))
	r.Intensity = bo.Uint16(buf[12:14])

	if f.Extended() {
		m0, m1, m2 := buf[14], buf[15], buf[16]
		r.ReturnNumber = m0 & 0x0f
		r.ReturnCount = m0 >> 4
		r.Synthetic = m1&0x01 != 0
		r.KeyPoint = m1&0x02 != 0
		r.Withheld = m1&0x04 != 0
		r.Overlap = m1&0x08 != 0
		r.ScannerChannel = (m1 >> 4) & 0x03
		r.ScanDirection = m1&0x40 != 0
		r.EdgeOfFlight = m1&0x80 != 0
		r.Classification = m2
		r.UserData = buf[17]
		r.ScanAngle = int16(bo.Uint16(buf[18:20]))
		r.PointSourceID = bo.Uint16(buf[20:22])
		r.GPSTime = math.Float64frombits(bo.Uint64(buf[22:30]))
	} else {
		m0, m1 := buf[14], buf[15]
		r.ReturnNumber = m0 & 0x07
		r.ReturnCount = (m0 >> 3) & 0x07
		r.ScanDirection = m0&0x40 != 0
		r.EdgeOfFlight = m0&0x80 != 0
		r.Classification = m1 & 0x1f
		r.Synthetic = m1&0x20 != 0
		r.KeyPoint = m1&0x40 != 0
		r.Withheld = m1&0x80 != 0
		r.Overlap = r.Classification == legacyOverlapClass
		r.ScannerChannel = 0
		r.ScanAngle = int16(int8(buf[16]))
		r.UserData = buf[17]
		r.PointSourceID = bo.Uint16(buf[18:20])
		if off := f.gpsTimeOffset(); off >= 0 {
			r.GPSTime = math.Float64frombits(bo.Uint64(buf[off : off+8]))
		} else {
			r.GPSTime = 0
		}
	}

	if off := f.rgbOffset(); off >= 0 {
		r.Red = bo.Uint16(buf[off : off+2])
		r.Green = bo.Uint16(buf[off+2 : off+4])
		r.Blue = bo.Uint16(buf[off+4 : off+6])
	} else {
		r.Red, r.Green, r.Blue = 0, 0, 0
	}
	if off := f.nirOffset(); off >= 0 {
		r.NIR = bo.Uint16(buf[off : off+2])
	} else {
		r.NIR = 0
	}
	if off := f.waveformOffset(); off >= 0 {
		r.Waveform = decodeWaveform(buf[off:])
	} else {
		r.Waveform = WaveformPacket{}
	}
	if f.ExtraBytes > 0 {
		off := f.extraOffset()
		r.Extra = append(r.Extra[:0], buf[off:off+int(f.ExtraBytes)]...)
	} else {
		r.Extra = r.Extra[:0]
	}
	return nil
}

func decodeWaveform(buf []byte) WaveformPacket {
	return WaveformPacket{
		DescriptorIndex: buf[0],
		ByteOffset:      bo.Uint64(buf[1:9]),
		PacketSize:      bo.Uint32(buf[9:13]),
		ReturnPoint:     math.Float32frombits(bo.Uint32(buf[13:17])),
		Xt:              math.Float32frombits(bo.Uint32(buf[17:21])),
		Yt:              math.Float32frombits(bo.Uint32(buf[21:25])),
		Zt:              math.Float32frombits(bo.Uint32(buf[25:29])),
	}
}

func encodeWaveform(buf []byte, w WaveformPacket) {
	buf[0] = w.DescriptorIndex
	bo.PutUint64(buf[1:9], w.ByteOffset)
	bo.PutUint32(buf[9:13], w.PacketSize)
	bo.PutUint32(buf[13:17], math.Float32bits(w.ReturnPoint))
	bo.PutUint32(buf[17:21], math.Float32bits(w.Xt))
	bo.PutUint32(buf[21:25], math.Float32bits(w.Yt))
	bo.PutUint32(buf[25:29], math.Float32bits(w.Zt))
}

// EncodeRecord serializes the record into buf in canonical field order,
// little endian. buf must hold RecordLength bytes.
func (f PointFormat) EncodeRecord(r *PointRecord, buf []byte) error {
	if len(buf) < int(f.RecordLength()) {
		return errors.Wrapf(ErrValidation, "encode buffer needs %d bytes, have %d", f.RecordLength(), len(buf))
	}
	if f.Unknown {
		copy(buf[:f.RecordLength()], r.Extra)
		return nil
	}

	bo.PutUint32(buf[0:4], uint32(r.X))
	bo.PutUint32(buf[4:8], uint32(r.Y))
	bo.PutUint32(buf[8:12], uint32(r.Z))
	bo.PutUint16(buf[12:14], r.Intensity)

	if f.Extended() {
		buf[14] = (r.ReturnNumber & 0x0f) | (r.ReturnCount&0x0f)<<4
		var m1 uint8
		if r.Synthetic {
			m1 |= 0x01
		}
		if r.KeyPoint {
			m1 |= 0x02
		}
		if r.Withheld {
			m1 |= 0x04
		}
		if r.Overlap {
			m1 |= 0x08
		}
		m1 |= (r.ScannerChannel & 0x03) << 4
		if r.ScanDirection {
			m1 |= 0x40
		}
		if r.EdgeOfFlight {
			m1 |= 0x80
		}
		buf[15] = m1
		buf[16] = r.Classification
		buf[17] = r.UserData
		bo.PutUint16(buf[18:20], uint16(r.ScanAngle))
		bo.PutUint16(buf[20:22], r.PointSourceID)
		bo.PutUint64(buf[22:30], math.Float64bits(r.GPSTime))
	} else {
		m0 := (r.ReturnNumber & 0x07) | (r.ReturnCount&0x07)<<3
		if r.ScanDirection {
			m0 |= 0x40
		}
		if r.EdgeOfFlight {
			m0 |= 0x80
		}
		buf[14] = m0
		m1 := r.Classification & 0x1f
		if r.Synthetic {
			m1 |= 0x20
		}
		if r.KeyPoint {
			m1 |= 0x40
		}
		if r.Withheld {
			m1 |= 0x80
		}
		buf[15] = m1
		buf[16] = uint8(int8(r.ScanAngle))
		buf[17] = r.UserData
		bo.PutUint16(buf[18:20], r.PointSourceID)
		if off := f.gpsTimeOffset(); off >= 0 {
			bo.PutUint64(buf[off:off+8], math.Float64bits(r.GPSTime))
		}
	}

	if off := f.rgbOffset(); off >= 0 {
		bo.PutUint16(buf[off:off+2], r.Red)
		bo.PutUint16(buf[off+2:off+4], r.Green)
		bo.PutUint16(buf[off+4:off+6], r.Blue)
	}
	if off := f.nirOffset(); off >= 0 {
		bo.PutUint16(buf[off:off+2], r.NIR)
	}
	if off := f.waveformOffset(); off >= 0 {
		encodeWaveform(buf[off:], r.Waveform)
	}
	if f.ExtraBytes > 0 {
		off := f.extraOffset()
		n := copy(buf[off:off+int(f.ExtraBytes)], r.Extra)
		for ; n < int(f.ExtraBytes); n++ {
			buf[off+n] = 0
		}
	}
	return nil
}
