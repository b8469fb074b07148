package las

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHeader(minor uint8, format PointFormat) Header {
	h := Header{
		FileSourceID: 17,
		ProjectID:    uuid.MustParse("12345678-9abc-def0-1122-334455667788"),
		VersionMajor: 1,
		VersionMinor: minor,
		SystemID:     "lascloud test",
		SoftwareID:   "lascloud",
		CreationDay:  211,
		CreationYear: 2024,
		Format:       format,
		Scale:        [3]float64{0.01, 0.01, 0.01},
		Offset:       [3]float64{1000, 2000, 0},
	}
	return h
}

func TestHeaderSizes(t *testing.T) {
	for minor, want := range map[uint8]uint16{0: 227, 1: 227, 2: 227, 3: 235, 4: 375} {
		h := Header{VersionMinor: minor}
		assert.Equal(t, want, h.HeaderSize())
	}
}

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	for _, minor := range []uint8{0, 1, 2, 3, 4} {
		h := testHeader(minor, Format(1))
		h.PointCount = 12345
		h.PointsByReturn[0] = 12000
		h.PointsByReturn[1] = 345
		h.Min = [3]float64{1001, 2001, -5}
		h.Max = [3]float64{1099, 2099, 95}
		if minor >= 3 {
			h.WaveformDataOffset = 777777
		}

		buf := h.encodeHeader(uint32(h.HeaderSize()), 0, 0)
		require.Equal(t, int(h.HeaderSize()), len(buf))

		got, formatID, recordLength, vlrCount, warnings, err := decodeHeader(buf)
		require.NoError(t, err, "minor %d", minor)
		assert.Empty(t, warnings)
		assert.Equal(t, uint8(1), formatID)
		assert.Equal(t, uint16(28), recordLength)
		assert.Equal(t, uint32(0), vlrCount)

		assert.Equal(t, h.FileSourceID, got.FileSourceID)
		assert.Equal(t, h.ProjectID, got.ProjectID)
		assert.Equal(t, h.SystemID, got.SystemID)
		assert.Equal(t, h.SoftwareID, got.SoftwareID)
		assert.Equal(t, h.CreationDay, got.CreationDay)
		assert.Equal(t, h.CreationYear, got.CreationYear)
		assert.Equal(t, h.PointCount, got.PointCount)
		assert.Equal(t, h.PointsByReturn, got.PointsByReturn)
		assert.Equal(t, h.Scale, got.Scale)
		assert.Equal(t, h.Offset, got.Offset)
		assert.Equal(t, h.Min, got.Min)
		assert.Equal(t, h.Max, got.Max)
		if minor >= 3 {
			assert.Equal(t, h.WaveformDataOffset, got.WaveformDataOffset)
		}
	}
}

func TestHeaderLegacyCountsZeroedForExtendedFormats(t *testing.T) {
	h := testHeader(4, Format(6))
	h.PointCount = 10
	h.PointsByReturn[0] = 10

	buf := h.encodeHeader(uint32(h.HeaderSize()), 0, 0)
	// legacy slots at 107..131 stay zero for formats above 5
	for i := 107; i < 131; i++ {
		assert.Equal(t, byte(0), buf[i], "byte %d", i)
	}

	got, _, _, _, _, err := decodeHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), got.PointCount)
	assert.Equal(t, uint64(10), got.PointsByReturn[0])
}

func TestHeaderBadMagic(t *testing.T) {
	buf := make([]byte, 227)
	copy(buf, "NOPE")
	_, _, _, _, _, err := decodeHeader(buf)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFormat)
}

func TestHeaderVersionWarnings(t *testing.T) {
	h := testHeader(1, Format(1))
	h.SetAdjustedStandardGPSTime(true)
	buf := h.encodeHeader(uint32(h.HeaderSize()), 0, 0)
	_, _, _, _, warnings, err := decodeHeader(buf)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, WarnVersion, warnings[0].Kind)
}

func TestGlobalEncodingFlags(t *testing.T) {
	var h Header
	h.SetWellKnownText(true)
	h.SetExternalWaveform(true)
	assert.True(t, h.WellKnownText())
	assert.True(t, h.ExternalWaveform())
	assert.False(t, h.InternalWaveform())
	h.SetWellKnownText(false)
	assert.False(t, h.WellKnownText())
	assert.Equal(t, uint16(encExternalWaveform), h.GlobalEncoding)
}

func TestCheckFixedString(t *testing.T) {
	require.NoError(t, checkFixedString("system id", "ok", 32))
	err := checkFixedString("system id", string(make([]byte, 33)), 32)
	assert.ErrorIs(t, err, ErrValidation)
	err = checkFixedString("system id", "caf\xc3\xa9", 32)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGUIDRoundTrip(t *testing.T) {
	u := uuid.MustParse("00112233-4455-6677-8899-aabbccddeeff")
	var b [16]byte
	encodeGUID(u, b[:])
	assert.Equal(t, u, decodeGUID(b[:]))
}

func TestVLRRoundTrip(t *testing.T) {
	v := VLR{
		UserID:      "LASF_Projection",
		RecordID:    34735,
		Description: "geokeys",
		Data:        []byte{1, 0, 1, 0, 0, 0, 1, 0},
	}
	buf := encodeVLR(&v, 2)
	got, consumed, warnings, err := decodeVLR(buf, 2)
	require.NoError(t, err)
	assert.Equal(t, len(buf), consumed)
	assert.Empty(t, warnings)
	assert.Equal(t, v.UserID, got.UserID)
	assert.Equal(t, v.RecordID, got.RecordID)
	assert.Equal(t, v.Description, got.Description)
	assert.Equal(t, v.Data, got.Data)
}

func TestVLRReservedWarning(t *testing.T) {
	v := VLR{UserID: "x", RecordID: 1}
	buf := encodeVLR(&v, 0) // writes 0xAABB
	_, _, warnings, err := decodeVLR(buf, 1)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, WarnReserved, warnings[0].Kind)
}

func TestVLRTruncated(t *testing.T) {
	v := VLR{UserID: "x", RecordID: 1, Data: []byte{1, 2, 3, 4}}
	buf := encodeVLR(&v, 2)
	_, _, _, err := decodeVLR(buf[:len(buf)-2], 2)
	assert.ErrorIs(t, err, ErrTruncation)
	_, _, _, err = decodeVLR(buf[:10], 2)
	assert.ErrorIs(t, err, ErrTruncation)
}

func TestEVLRRoundTrip(t *testing.T) {
	v := EVLR{UserID: "custom", RecordID: 9, Description: "blob", Data: make([]byte, 100)}
	buf := encodeEVLR(&v)
	got, consumed, err := decodeEVLR(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), consumed)
	assert.Equal(t, v.UserID, got.UserID)
	assert.Equal(t, v.Data, got.Data)
}
