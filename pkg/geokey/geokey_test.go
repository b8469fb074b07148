package geokey

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geodense/lascloud/pkg/las"
)

// directoryVLR packs GeoKey entries into a 34735 record. Each entry is
// (id, tagLocation, count, offset).
func directoryVLR(entries [][4]uint16) las.VLR {
	data := make([]byte, 8+len(entries)*8)
	binary.LittleEndian.PutUint16(data[0:2], 1) // directory version
	binary.LittleEndian.PutUint16(data[2:4], 1)
	binary.LittleEndian.PutUint16(data[4:6], 0)
	binary.LittleEndian.PutUint16(data[6:8], uint16(len(entries)))
	for i, e := range entries {
		base := 8 + i*8
		for j := 0; j < 4; j++ {
			binary.LittleEndian.PutUint16(data[base+2*j:base+2*j+2], e[j])
		}
	}
	return las.VLR{UserID: ProjectionUserID, RecordID: DirectoryRecordID, Data: data}
}

func doubleParamsVLR(vals []float64) las.VLR {
	data := make([]byte, len(vals)*8)
	for i, v := range vals {
		binary.LittleEndian.PutUint64(data[i*8:i*8+8], math.Float64bits(v))
	}
	return las.VLR{UserID: ProjectionUserID, RecordID: DoubleParamsRecordID, Data: data}
}

func asciiParamsVLR(s string) las.VLR {
	return las.VLR{UserID: ProjectionUserID, RecordID: ASCIIParamsRecordID, Data: []byte(s)}
}

func TestParseShortDoubleAndASCII(t *testing.T) {
	vlrs := []las.VLR{
		directoryVLR([][4]uint16{
			{KeyModelType, 0, 1, ModelProjected},
			{KeyProjectedCSType, 0, 1, 32633},
			{KeyCitation, ASCIIParamsRecordID, 11, 0},
			{KeyGeogAngularUnits, 0, 1, 9102},
			{2059, DoubleParamsRecordID, 1, 0}, // inverse flattening
		}),
		doubleParamsVLR([]float64{298.257223563}),
		asciiParamsVLR("WGS 84 UTM|"),
	}

	keys, err := Parse(vlrs)
	require.NoError(t, err)
	assert.Equal(t, 5, keys.Len())

	model, ok := keys.Short(KeyModelType)
	require.True(t, ok)
	assert.Equal(t, ModelProjected, model)

	cs, _ := keys.Get(KeyProjectedCSType)
	assert.Equal(t, KindShort, cs.Kind)
	assert.True(t, cs.EPSG)
	assert.Equal(t, uint16(32633), cs.Short)

	// model type 1 is below the EPSG range
	mt, _ := keys.Get(KeyModelType)
	assert.False(t, mt.EPSG)

	citation, ok := keys.Text(KeyCitation)
	require.True(t, ok)
	assert.Equal(t, "WGS 84 UTM", citation)

	flattening, _ := keys.Get(2059)
	assert.Equal(t, KindDouble, flattening.Kind)
	assert.InDelta(t, 298.257223563, flattening.Double, 1e-9)
}

func TestParseMissingDirectory(t *testing.T) {
	_, err := Parse(nil)
	assert.ErrorIs(t, err, ErrNoDirectory)
}

func TestParseMissingParameterPool(t *testing.T) {
	vlrs := []las.VLR{
		directoryVLR([][4]uint16{
			{KeyCitation, ASCIIParamsRecordID, 4, 0},
		}),
	}
	_, err := Parse(vlrs)
	assert.ErrorIs(t, err, ErrMissingParameter)

	vlrs = []las.VLR{
		directoryVLR([][4]uint16{
			{2059, DoubleParamsRecordID, 2, 0},
		}),
		doubleParamsVLR([]float64{1}),
	}
	_, err = Parse(vlrs)
	assert.ErrorIs(t, err, ErrMissingParameter)
}

func TestToWKTProjected(t *testing.T) {
	vlrs := []las.VLR{
		directoryVLR([][4]uint16{
			{KeyModelType, 0, 1, ModelProjected},
			{KeyProjectedCSType, 0, 1, 25832},
			{KeyPCSCitation, ASCIIParamsRecordID, 10, 0},
		}),
		asciiParamsVLR("ETRS89UTM|"),
	}
	keys, err := Parse(vlrs)
	require.NoError(t, err)

	wkt, err := keys.ToWKT()
	require.NoError(t, err)
	assert.Equal(t, `PROJCS["ETRS89UTM",AUTHORITY["EPSG","25832"]]`, wkt)

	code, ok := keys.EPSG()
	require.True(t, ok)
	assert.Equal(t, uint16(25832), code)

	crs, ok := keys.CRSOf()
	require.True(t, ok)
	assert.Equal(t, "EPSG:25832", crs)
}

func TestToWKTGeographic(t *testing.T) {
	vlrs := []las.VLR{
		directoryVLR([][4]uint16{
			{KeyModelType, 0, 1, ModelGeographic},
			{KeyGeographicType, 0, 1, 4326},
		}),
	}
	keys, err := Parse(vlrs)
	require.NoError(t, err)

	wkt, err := keys.ToWKT()
	require.NoError(t, err)
	assert.Equal(t, `GEOGCS["EPSG:4326",AUTHORITY["EPSG","4326"]]`, wkt)
}

func TestToWKTUnsupported(t *testing.T) {
	vlrs := []las.VLR{
		directoryVLR([][4]uint16{
			{KeyModelType, 0, 1, ModelGeocentric},
		}),
	}
	keys, err := Parse(vlrs)
	require.NoError(t, err)
	_, err = keys.ToWKT()
	assert.ErrorIs(t, err, ErrUnsupportedCRS)
}
