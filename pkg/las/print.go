package las

import (
	"bytes"
	"fmt"
	"reflect"
)

// String renders every header field on its own line, in declaration
// order.
func (h Header) String() string {
	var buffer bytes.Buffer
	buffer.WriteString("LAS File Header:\n")
	s := reflect.ValueOf(&h).Elem()
	typeOfT := s.Type()
	for i := 0; i < s.NumField(); i++ {
		f := s.Field(i)
		str := fmt.Sprintf("%s %s = %v\n", typeOfT.Field(i).Name, f.Type(), f.Interface())
		buffer.WriteString(str)
	}
	return buffer.String()
}

// String renders the record fields on one line.
func (r PointRecord) String() string {
	return fmt.Sprintf(
		"raw(%d, %d, %d) intensity=%d return=%d/%d class=%d angle=%d source=%d gps=%g",
		r.X, r.Y, r.Z, r.Intensity, r.ReturnNumber, r.ReturnCount,
		r.Classification, r.ScanAngle, r.PointSourceID, r.GPSTime)
}

// ClassificationName returns the ASPRS name of a standard class value.
func ClassificationName(class uint8) string {
	if name, ok := classNames[class]; ok {
		return name
	}
	return "Reserved"
}

var classNames = map[uint8]string{
	0:  "Created, never classified",
	1:  "Unclassified",
	2:  "Ground",
	3:  "Low Vegetation",
	4:  "Medium Vegetation",
	5:  "High Vegetation",
	6:  "Building",
	7:  "Low Point (noise)",
	8:  "Model Key-point (mass point)",
	9:  "Water",
	12: "Overlap Points",
}
