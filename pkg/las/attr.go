package las

import (
	"math"
)

// Attr names a point record attribute for selective reads and overlays.
type Attr string

const (
	AttrX              Attr = "x"
	AttrY              Attr = "y"
	AttrZ              Attr = "z"
	AttrIntensity      Attr = "intensity"
	AttrReturnNumber   Attr = "return_number"
	AttrReturnCount    Attr = "return_count"
	AttrScanDirection  Attr = "scan_direction"
	AttrEdgeOfFlight   Attr = "edge_of_flight"
	AttrClassification Attr = "classification"
	AttrSynthetic      Attr = "synthetic"
	AttrKeyPoint       Attr = "key_point"
	AttrWithheld       Attr = "withheld"
	AttrOverlap        Attr = "overlap"
	AttrScannerChannel Attr = "scanner_channel"
	AttrScanAngle      Attr = "scan_angle"
	AttrUserData       Attr = "user_data"
	AttrPointSourceID  Attr = "point_source_id"
	AttrGPSTime        Attr = "gps_time"
	AttrRed            Attr = "red"
	AttrGreen          Attr = "green"
	AttrBlue           Attr = "blue"
	AttrNIR            Attr = "nir"
)

// Has reports whether the attribute exists in the format.
func (f PointFormat) Has(attr Attr) bool {
	if f.Unknown {
		return false
	}
	switch attr {
	case AttrX, AttrY, AttrZ, AttrIntensity, AttrReturnNumber, AttrReturnCount,
		AttrScanDirection, AttrEdgeOfFlight, AttrClassification, AttrSynthetic,
		AttrKeyPoint, AttrWithheld, AttrScanAngle, AttrUserData, AttrPointSourceID:
		return true
	case AttrOverlap, AttrScannerChannel:
		return f.Extended()
	case AttrGPSTime:
		return f.HasGPSTime()
	case AttrRed, AttrGreen, AttrBlue:
		return f.HasRGB()
	case AttrNIR:
		return f.HasNIR()
	}
	return false
}

// The Read* helpers decode a single attribute from a raw record without
// materializing the rest. All are allocation free. The boolean result is
// false when the format does not carry the attribute.

func (f PointFormat) ReadX(buf []byte) int32 {
	return int32(bo.Uint32(buf[0:4]))
}

func (f PointFormat) ReadY(buf []byte) int32 {
	return int32(bo.Uint32(buf[4:8]))
}

func (f PointFormat) ReadZ(buf []byte) int32 {
	return int32(bo.Uint32(buf[8:12]))
}

func (f PointFormat) ReadIntensity(buf []byte) uint16 {
	return bo.Uint16(buf[12:14])
}

func (f PointFormat) ReadReturnNumber(buf []byte) uint8 {
	if f.Extended() {
		return buf[14] & 0x0f
	}
	return buf[14] & 0x07
}

func (f PointFormat) ReadReturnCount(buf []byte) uint8 {
	if f.Extended() {
		return buf[14] >> 4
	}
	return (buf[14] >> 3) & 0x07
}

func (f PointFormat) ReadClassification(buf []byte) uint8 {
	if f.Extended() {
		return buf[16]
	}
	return buf[15] & 0x1f
}

func (f PointFormat) ReadScanAngle(buf []byte) int16 {
	if f.Extended() {
		return int16(bo.Uint16(buf[18:20]))
	}
	return int16(int8(buf[16]))
}

func (f PointFormat) ReadUserData(buf []byte) uint8 {
	return buf[17]
}

func (f PointFormat) ReadPointSourceID(buf []byte) uint16 {
	if f.Extended() {
		return bo.Uint16(buf[20:22])
	}
	return bo.Uint16(buf[18:20])
}

func (f PointFormat) ReadGPSTime(buf []byte) (float64, bool) {
	off := f.gpsTimeOffset()
	if off < 0 {
		return 0, false
	}
	return math.Float64frombits(bo.Uint64(buf[off : off+8])), true
}

func (f PointFormat) ReadRGB(buf []byte) (r, g, b uint16, ok bool) {
	off := f.rgbOffset()
	if off < 0 {
		return 0, 0, 0, false
	}
	return bo.Uint16(buf[off : off+2]), bo.Uint16(buf[off+2 : off+4]), bo.Uint16(buf[off+4 : off+6]), true
}

func (f PointFormat) ReadNIR(buf []byte) (uint16, bool) {
	off := f.nirOffset()
	if off < 0 {
		return 0, false
	}
	return bo.Uint16(buf[off : off+2]), true
}

// decodeAttrInto copies one attribute out of the raw record into dst.
func (f PointFormat) decodeAttrInto(attr Attr, buf []byte, dst *PointRecord) {
	switch attr {
	case AttrX:
		dst.X = f.ReadX(buf)
	case AttrY:
		dst.Y = f.ReadY(buf)
	case AttrZ:
		dst.Z = f.ReadZ(buf)
	case AttrIntensity:
		dst.Intensity = f.ReadIntensity(buf)
	case AttrReturnNumber:
		dst.ReturnNumber = f.ReadReturnNumber(buf)
	case AttrReturnCount:
		dst.ReturnCount = f.ReadReturnCount(buf)
	case AttrClassification:
		dst.Classification = f.ReadClassification(buf)
	case AttrScanAngle:
		dst.ScanAngle = f.ReadScanAngle(buf)
	case AttrUserData:
		dst.UserData = f.ReadUserData(buf)
	case AttrPointSourceID:
		dst.PointSourceID = f.ReadPointSourceID(buf)
	case AttrGPSTime:
		dst.GPSTime, _ = f.ReadGPSTime(buf)
	case AttrRed, AttrGreen, AttrBlue:
		dst.Red, dst.Green, dst.Blue, _ = f.ReadRGB(buf)
	case AttrNIR:
		dst.NIR, _ = f.ReadNIR(buf)
	case AttrScanDirection, AttrEdgeOfFlight, AttrSynthetic, AttrKeyPoint,
		AttrWithheld, AttrOverlap, AttrScannerChannel:
		f.decodeFlagsInto(buf, dst)
	}
}

// decodeFlagsInto decodes the packed metadata bytes.
func (f PointFormat) decodeFlagsInto(buf []byte, dst *PointRecord) {
	if f.Extended() {
		m1 := buf[15]
		dst.Synthetic = m1&0x01 != 0
		dst.KeyPoint = m1&0x02 != 0
		dst.Withheld = m1&0x04 != 0
		dst.Overlap = m1&0x08 != 0
		dst.ScannerChannel = (m1 >> 4) & 0x03
		dst.ScanDirection = m1&0x40 != 0
		dst.EdgeOfFlight = m1&0x80 != 0
		return
	}
	m0, m1 := buf[14], buf[15]
	dst.ScanDirection = m0&0x40 != 0
	dst.EdgeOfFlight = m0&0x80 != 0
	dst.Synthetic = m1&0x20 != 0
	dst.KeyPoint = m1&0x40 != 0
	dst.Withheld = m1&0x80 != 0
	dst.Overlap = m1&0x1f == legacyOverlapClass
}
