package las

import (
	"math"

	"github.com/pkg/errors"
)

const (
	vlrHeaderSize  = 54
	evlrHeaderSize = 60

	vlrReservedV0 = 0xAABB
	vlrReservedV1 = 0x0000
)

// The laszip compression layer announces itself through this VLR.
const (
	lazUserID   = "laszip encoded"
	lazRecordID = 22204
	lazPDRFBias = 128
)

// VLR is a variable length record. Identity for lookups is the
// (UserID, RecordID) pair; Data is opaque to the codec.
type VLR struct {
	Reserved    uint16
	UserID      string
	RecordID    uint16
	Description string
	Data        []byte
}

// Size is the full on disk footprint of the record, header included.
func (v *VLR) Size() int {
	return vlrHeaderSize + len(v.Data)
}

// Is reports whether the record matches the given identity.
func (v *VLR) Is(userID string, recordID uint16) bool {
	return v.UserID == userID && v.RecordID == recordID
}

func (v *VLR) validate() error {
	if err := checkFixedString("vlr user id", v.UserID, 16); err != nil {
		return err
	}
	if err := checkFixedString("vlr description", v.Description, 32); err != nil {
		return err
	}
	if len(v.Data) > math.MaxUint16 {
		return errors.Wrapf(ErrValidation, "vlr %q/%d payload of %d bytes exceeds the u16 limit",
			v.UserID, v.RecordID, len(v.Data))
	}
	return nil
}

// EVLR is an extended variable length record, stored after the point
// data in LAS 1.4 files. Content stays opaque.
type EVLR struct {
	Reserved    uint16
	UserID      string
	RecordID    uint16
	Description string
	Data        []byte
}

func (v *EVLR) Size() int {
	return evlrHeaderSize + len(v.Data)
}

func (v *EVLR) Is(userID string, recordID uint16) bool {
	return v.UserID == userID && v.RecordID == recordID
}

// decodeVLR parses one record from buf. Returns the record and the
// bytes consumed. A header or payload crossing the end of buf is a
// truncation.
func decodeVLR(buf []byte, minor uint8) (VLR, int, []Warning, error) {
	if len(buf) < vlrHeaderSize {
		return VLR{}, 0, nil, errors.Wrapf(ErrTruncation, "vlr header needs %d bytes, have %d", vlrHeaderSize, len(buf))
	}
	var warnings []Warning
	v := VLR{
		Reserved:    bo.Uint16(buf[0:2]),
		UserID:      trimFixedString(buf[2:18]),
		RecordID:    bo.Uint16(buf[18:20]),
		Description: trimFixedString(buf[22:54]),
	}
	expected := uint16(vlrReservedV1)
	if minor == 0 {
		expected = vlrReservedV0
	}
	if v.Reserved != expected {
		warnings = append(warnings, warningf(WarnReserved,
			"vlr %q/%d reserved value 0x%04X, expected 0x%04X for version 1.%d",
			v.UserID, v.RecordID, v.Reserved, expected, minor))
	}
	dataLen := int(bo.Uint16(buf[20:22]))
	if vlrHeaderSize+dataLen > len(buf) {
		return VLR{}, 0, warnings, errors.Wrapf(ErrTruncation,
			"vlr %q/%d payload of %d bytes crosses end of data", v.UserID, v.RecordID, dataLen)
	}
	v.Data = append([]byte(nil), buf[vlrHeaderSize:vlrHeaderSize+dataLen]...)
	return v, vlrHeaderSize + dataLen, warnings, nil
}

// encodeVLR serializes one record. The reserved prefix is normalized to
// the value the minor version prescribes.
func encodeVLR(v *VLR, minor uint8) []byte {
	buf := make([]byte, v.Size())
	reserved := uint16(vlrReservedV1)
	if minor == 0 {
		reserved = vlrReservedV0
	}
	bo.PutUint16(buf[0:2], reserved)
	putFixedString(buf[2:18], v.UserID)
	bo.PutUint16(buf[18:20], v.RecordID)
	bo.PutUint16(buf[20:22], uint16(len(v.Data)))
	putFixedString(buf[22:54], v.Description)
	copy(buf[vlrHeaderSize:], v.Data)
	return buf
}

func decodeEVLR(buf []byte) (EVLR, int, error) {
	if len(buf) < evlrHeaderSize {
		return EVLR{}, 0, errors.Wrapf(ErrTruncation, "evlr header needs %d bytes, have %d", evlrHeaderSize, len(buf))
	}
	v := EVLR{
		Reserved:    bo.Uint16(buf[0:2]),
		UserID:      trimFixedString(buf[2:18]),
		RecordID:    bo.Uint16(buf[18:20]),
		Description: trimFixedString(buf[28:60]),
	}
	dataLen := bo.Uint64(buf[20:28])
	if dataLen > uint64(len(buf)-evlrHeaderSize) {
		return EVLR{}, 0, errors.Wrapf(ErrTruncation,
			"evlr %q/%d payload of %d bytes crosses end of data", v.UserID, v.RecordID, dataLen)
	}
	v.Data = append([]byte(nil), buf[evlrHeaderSize:evlrHeaderSize+int(dataLen)]...)
	return v, evlrHeaderSize + int(dataLen), nil
}

func encodeEVLR(v *EVLR) []byte {
	buf := make([]byte, v.Size())
	bo.PutUint16(buf[0:2], v.Reserved)
	putFixedString(buf[2:18], v.UserID)
	bo.PutUint16(buf[18:20], v.RecordID)
	bo.PutUint64(buf[20:28], uint64(len(v.Data)))
	putFixedString(buf[28:60], v.Description)
	copy(buf[evlrHeaderSize:], v.Data)
	return buf
}

// FindVLR returns the first record with the given identity.
func FindVLR(vlrs []VLR, userID string, recordID uint16) (*VLR, bool) {
	for i := range vlrs {
		if vlrs[i].Is(userID, recordID) {
			return &vlrs[i], true
		}
	}
	return nil, false
}
