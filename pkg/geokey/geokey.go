// Package geokey decodes the GeoTIFF style coordinate system directory
// embedded in LAS variable length records.
package geokey

import (
	"encoding/binary"
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/geodense/lascloud/pkg/las"
)

var bo = binary.LittleEndian

// The LASF_Projection records carrying the key directory and its
// parameter pools.
const (
	ProjectionUserID = "LASF_Projection"

	DirectoryRecordID    = 34735
	DoubleParamsRecordID = 34736
	ASCIIParamsRecordID  = 34737
)

// Well known GeoKey ids.
const (
	KeyModelType        uint16 = 1024
	KeyRasterType       uint16 = 1025
	KeyCitation         uint16 = 1026
	KeyGeographicType   uint16 = 2048
	KeyGeogCitation     uint16 = 2049
	KeyGeogAngularUnits uint16 = 2054
	KeyProjectedCSType  uint16 = 3072
	KeyPCSCitation      uint16 = 3073
	KeyProjLinearUnits  uint16 = 3076
	KeyVerticalCSType   uint16 = 4096
	KeyVerticalUnits    uint16 = 4099
)

// Model type values of KeyModelType.
const (
	ModelProjected  uint16 = 1
	ModelGeographic uint16 = 2
	ModelGeocentric uint16 = 3
)

var (
	// ErrMissingParameter marks a key referencing a parameter pool VLR
	// that is absent.
	ErrMissingParameter = errors.New("geokey: referenced parameter record missing")

	// ErrNoDirectory marks VLR sets without a key directory.
	ErrNoDirectory = errors.New("geokey: no key directory record")

	// ErrUnsupportedCRS marks key sets ToWKT cannot express; callers
	// fall back to the raw set.
	ErrUnsupportedCRS = errors.New("geokey: unsupported coordinate system")
)

// Kind tags the value category of one key.
type Kind int

const (
	KindShort Kind = iota
	KindDouble
	KindASCII
)

// Value is one decoded GeoKey. Shorts in the EPSG range 1024..32766 are
// tagged; Doubles keeps every entry when the key spans more than one.
type Value struct {
	Kind    Kind
	Short   uint16
	EPSG    bool
	Double  float64
	Doubles []float64
	Text    string
}

// KeySet is the decoded directory in file order.
type KeySet struct {
	order  []uint16
	values map[uint16]Value
}

func (s *KeySet) Len() int {
	return len(s.order)
}

// Keys lists the key ids in directory order.
func (s *KeySet) Keys() []uint16 {
	return append([]uint16(nil), s.order...)
}

func (s *KeySet) Get(id uint16) (Value, bool) {
	v, ok := s.values[id]
	return v, ok
}

// Short returns the short value of a key, false when absent or not a
// short.
func (s *KeySet) Short(id uint16) (uint16, bool) {
	v, ok := s.values[id]
	if !ok || v.Kind != KindShort {
		return 0, false
	}
	return v.Short, true
}

// Text returns the ASCII value of a key.
func (s *KeySet) Text(id uint16) (string, bool) {
	v, ok := s.values[id]
	if !ok || v.Kind != KindASCII {
		return "", false
	}
	return v.Text, true
}

func isEPSG(code uint16) bool {
	return code >= 1024 && code <= 32766
}

// Parse decodes the key directory from a container's VLR list.
func Parse(vlrs []las.VLR) (*KeySet, error) {
	dir, ok := las.FindVLR(vlrs, ProjectionUserID, DirectoryRecordID)
	if !ok {
		return nil, ErrNoDirectory
	}
	var doubles []float64
	if v, ok := las.FindVLR(vlrs, ProjectionUserID, DoubleParamsRecordID); ok {
		doubles = make([]float64, len(v.Data)/8)
		for i := range doubles {
			doubles[i] = float64frombytes(v.Data[i*8 : i*8+8])
		}
	}
	var ascii string
	hasASCII := false
	if v, ok := las.FindVLR(vlrs, ProjectionUserID, ASCIIParamsRecordID); ok {
		ascii = string(v.Data)
		hasASCII = true
	}

	data := dir.Data
	if len(data) < 8 {
		return nil, errors.Wrapf(ErrNoDirectory, "directory of %d bytes too short for its header", len(data))
	}
	numKeys := int(bo.Uint16(data[6:8]))
	if 8+numKeys*8 > len(data) {
		numKeys = (len(data) - 8) / 8
	}

	set := &KeySet{values: make(map[uint16]Value, numKeys)}
	for i := 0; i < numKeys; i++ {
		base := 8 + i*8
		id := bo.Uint16(data[base : base+2])
		tagLocation := bo.Uint16(data[base+2 : base+4])
		count := int(bo.Uint16(data[base+4 : base+6]))
		offset := int(bo.Uint16(data[base+6 : base+8]))

		var v Value
		switch tagLocation {
		case 0:
			v = Value{Kind: KindShort, Short: uint16(offset), EPSG: isEPSG(uint16(offset))}
		case DoubleParamsRecordID:
			if offset+count > len(doubles) {
				return nil, errors.Wrapf(ErrMissingParameter,
					"key %d wants %d doubles at %d, pool has %d", id, count, offset, len(doubles))
			}
			vals := doubles[offset : offset+count]
			v = Value{Kind: KindDouble, Double: vals[0], Doubles: append([]float64(nil), vals...)}
		case ASCIIParamsRecordID:
			if !hasASCII || offset+count > len(ascii) {
				return nil, errors.Wrapf(ErrMissingParameter,
					"key %d wants %d ascii bytes at %d, pool has %d", id, count, offset, len(ascii))
			}
			text := strings.TrimRight(ascii[offset:offset+count], "|\x00")
			v = Value{Kind: KindASCII, Text: text}
		default:
			// unknown pool location, keep the raw offset as a short
			v = Value{Kind: KindShort, Short: uint16(offset)}
		}
		set.order = append(set.order, id)
		set.values[id] = v
	}
	return set, nil
}

func float64frombytes(b []byte) float64 {
	return math.Float64frombits(bo.Uint64(b))
}
