package las

import (
	"github.com/pkg/errors"
)

// baseSizes holds the mandatory record length in bytes for the eleven
// point data record formats defined by LAS 1.0 through 1.4.
var baseSizes = [11]uint16{20, 28, 26, 34, 57, 63, 30, 36, 38, 59, 67}

const waveformPacketSize = 29

// PointFormat identifies a point data record layout: a format id 0..10
// plus the number of trailing extra bytes carried by every record. An id
// outside the known range is preserved as Unknown; such records round
// trip as opaque bytes.
type PointFormat struct {
	ID         uint8
	ExtraBytes uint16
	Unknown    bool
}

// Layout derives the point format from the on disk format id and record
// length. Fails when the record length is below the base size of a known
// format.
func Layout(id uint8, recordLength uint16) (PointFormat, error) {
	if id > 10 {
		return PointFormat{ID: id, ExtraBytes: recordLength, Unknown: true}, nil
	}
	base := baseSizes[id]
	if recordLength < base {
		return PointFormat{}, errors.Wrapf(ErrFormat,
			"point record length %d below base size %d of format %d", recordLength, base, id)
	}
	return PointFormat{ID: id, ExtraBytes: recordLength - base}, nil
}

// Format returns the point format with no extra bytes. It panics on ids
// above 10; use Layout for data driven construction.
func Format(id uint8) PointFormat {
	if id > 10 {
		panic("las: unknown point format id")
	}
	return PointFormat{ID: id}
}

func (f PointFormat) BaseSize() uint16 {
	if f.Unknown {
		return 0
	}
	return baseSizes[f.ID]
}

// RecordLength is the full on disk size of one record, extra bytes
// included.
func (f PointFormat) RecordLength() uint16 {
	if f.Unknown {
		return f.ExtraBytes
	}
	return baseSizes[f.ID] + f.ExtraBytes
}

// Extended reports whether the format uses the 30 byte core block of
// formats 6..10 rather than the 20 byte legacy block.
func (f PointFormat) Extended() bool {
	return !f.Unknown && f.ID >= 6
}

func (f PointFormat) HasGPSTime() bool {
	switch f.ID {
	case 1, 3, 4, 5:
		return !f.Unknown
	}
	return f.Extended()
}

func (f PointFormat) HasRGB() bool {
	switch f.ID {
	case 2, 3, 5, 7, 8, 10:
		return !f.Unknown
	}
	return false
}

func (f PointFormat) HasNIR() bool {
	return !f.Unknown && (f.ID == 8 || f.ID == 10)
}

func (f PointFormat) HasWaveform() bool {
	switch f.ID {
	case 4, 5, 9, 10:
		return !f.Unknown
	}
	return false
}

// MinVersionMinor is the lowest LAS 1.x minor version in which this
// format is allowed.
func (f PointFormat) MinVersionMinor() uint8 {
	switch {
	case f.ID > 5:
		return 4
	case f.ID > 3:
		return 3
	case f.ID > 1:
		return 2
	}
	return 0
}

// gpsTimeOffset returns the byte offset of the GPS time field, or -1
// when the format has none.
func (f PointFormat) gpsTimeOffset() int {
	if !f.HasGPSTime() {
		return -1
	}
	if f.Extended() {
		return 22
	}
	return 20
}

// rgbOffset returns the byte offset of the red channel, or -1 when the
// format carries no color.
func (f PointFormat) rgbOffset() int {
	switch f.ID {
	case 2:
		return 20
	case 3, 5:
		return 28
	case 7, 8, 10:
		return 30
	}
	return -1
}

// nirOffset returns the byte offset of the near infrared channel, or -1.
func (f PointFormat) nirOffset() int {
	if !f.HasNIR() {
		return -1
	}
	return 36
}

// waveformOffset returns the byte offset of the waveform packet, or -1.
func (f PointFormat) waveformOffset() int {
	switch f.ID {
	case 4:
		return 28
	case 5:
		return 34
	case 9:
		return 30
	case 10:
		return 38
	}
	return -1
}

// extraOffset returns the byte offset of the trailing user bytes.
func (f PointFormat) extraOffset() int {
	return int(f.BaseSize())
}

// scanAngleScale is the factor converting the raw scan angle to degrees.
func (f PointFormat) scanAngleScale() float64 {
	if f.Extended() {
		return 0.006
	}
	return 1.0
}
