package p25

import (
	"encoding/binary"
	"fmt"
)

// LDU1 represents a parsed Logical Link Data Unit 1
type LDU1 struct {
	FrameType byte
	LCOpcode  byte
	DstID     uint32
	SrcID     uint32

	// Header data, populated only when FrameType is FrameTypeHDUValid
	AlgID uint8
	KeyID uint16
	MI    [MILength]byte

	Codewords [RecordCount][IMBECodewordLength]byte
}

// LDU2 represents a parsed Logical Link Data Unit 2
type LDU2 struct {
	AlgID uint8
	KeyID uint16
	MI    [MILength]byte

	Codewords [RecordCount][IMBECodewordLength]byte
}

// ResetBuffer zeroes an LDU accumulation buffer
func ResetBuffer(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}

// PlaceCodeword copies an IMBE codeword into its fixed buffer position.
// index is the position within the half superframe (0-8).
func PlaceCodeword(buf []byte, index int, cw []byte) error {
	if len(buf) != LDUBufferLength {
		return fmt.Errorf("p25: invalid LDU buffer length %d (expected %d)", len(buf), LDUBufferLength)
	}
	if index < 0 || index >= RecordCount {
		return fmt.Errorf("p25: codeword index %d out of range", index)
	}
	if len(cw) != IMBECodewordLength {
		return fmt.Errorf("p25: invalid codeword length %d (expected %d)", len(cw), IMBECodewordLength)
	}

	copy(buf[CodewordOffsets[index]:CodewordOffsets[index]+IMBECodewordLength], cw)
	return nil
}

// ExtractCodeword returns a copy of the IMBE codeword at the given position
func ExtractCodeword(buf []byte, index int) []byte {
	cw := make([]byte, IMBECodewordLength)
	copy(cw, buf[CodewordOffsets[index]:CodewordOffsets[index]+IMBECodewordLength])
	return cw
}

// WriteMarkers stamps the 9 record markers into an LDU buffer
func WriteMarkers(buf []byte, base byte) {
	for n := 0; n < RecordCount; n++ {
		buf[n*RecordLength] = base + byte(n)
	}
}

// ValidateMarkers checks the 9 record markers. A buffer that fails this
// check is structurally invalid and must be dropped without further parsing.
func ValidateMarkers(buf []byte, base byte) bool {
	if len(buf) != LDUBufferLength {
		return false
	}
	for n := 0; n < RecordCount; n++ {
		if buf[n*RecordLength] != base+byte(n) {
			return false
		}
	}
	return true
}

// SetLinkControl writes the Link Control fields into an LDU1 buffer
func SetLinkControl(buf []byte, opcode byte, dstID, srcID uint32) {
	buf[OffsetLCOpcode] = opcode & 0x3F
	buf[OffsetLCDstID] = byte(dstID >> 16)
	buf[OffsetLCDstID+1] = byte(dstID >> 8)
	buf[OffsetLCDstID+2] = byte(dstID)
	buf[OffsetLCSrcID] = byte(srcID >> 16)
	buf[OffsetLCSrcID+1] = byte(srcID >> 8)
	buf[OffsetLCSrcID+2] = byte(srcID)
}

// SetHeaderData writes the frame type and, for a valid header, the full
// encryption sync (algorithm, key ID, 9-byte MI) into an LDU1 buffer
func SetHeaderData(buf []byte, frameType byte, algID uint8, keyID uint16, mi []byte) {
	buf[OffsetFrameType] = frameType
	if frameType != FrameTypeHDUValid {
		return
	}
	copy(buf[OffsetHDUMI:OffsetHDUMI+MILength], mi)
	buf[OffsetHDUAlgID] = algID
	binary.BigEndian.PutUint16(buf[OffsetHDUKeyID:OffsetHDUKeyID+2], keyID)
}

// SetEncSync writes the fragmented encryption sync into an LDU2 buffer
func SetEncSync(buf []byte, algID uint8, keyID uint16, mi []byte) {
	for frag, off := range LDU2MIFragmentOffsets {
		copy(buf[off:off+3], mi[frag*3:frag*3+3])
	}
	buf[OffsetLDU2AlgID] = algID
	binary.BigEndian.PutUint16(buf[OffsetLDU2KeyID:OffsetLDU2KeyID+2], keyID)
}

// ParseLDU1 parses an LDU1 buffer. Marker validation gates all parsing.
func ParseLDU1(buf []byte) (*LDU1, error) {
	if !ValidateMarkers(buf, LDU1MarkerBase) {
		return nil, fmt.Errorf("p25: LDU1 marker validation failed")
	}

	ldu := &LDU1{
		FrameType: buf[OffsetFrameType],
		LCOpcode:  buf[OffsetLCOpcode] & 0x3F,
		DstID: uint32(buf[OffsetLCDstID])<<16 |
			uint32(buf[OffsetLCDstID+1])<<8 |
			uint32(buf[OffsetLCDstID+2]),
		SrcID: uint32(buf[OffsetLCSrcID])<<16 |
			uint32(buf[OffsetLCSrcID+1])<<8 |
			uint32(buf[OffsetLCSrcID+2]),
	}

	if ldu.FrameType == FrameTypeHDUValid {
		copy(ldu.MI[:], buf[OffsetHDUMI:OffsetHDUMI+MILength])
		ldu.AlgID = buf[OffsetHDUAlgID]
		ldu.KeyID = binary.BigEndian.Uint16(buf[OffsetHDUKeyID : OffsetHDUKeyID+2])
	}

	for n := 0; n < RecordCount; n++ {
		copy(ldu.Codewords[n][:], buf[CodewordOffsets[n]:CodewordOffsets[n]+IMBECodewordLength])
	}

	return ldu, nil
}

// ParseLDU2 parses an LDU2 buffer. Marker validation gates all parsing.
func ParseLDU2(buf []byte) (*LDU2, error) {
	if !ValidateMarkers(buf, LDU2MarkerBase) {
		return nil, fmt.Errorf("p25: LDU2 marker validation failed")
	}

	ldu := &LDU2{
		AlgID: buf[OffsetLDU2AlgID],
		KeyID: binary.BigEndian.Uint16(buf[OffsetLDU2KeyID : OffsetLDU2KeyID+2]),
	}

	for frag, off := range LDU2MIFragmentOffsets {
		copy(ldu.MI[frag*3:frag*3+3], buf[off:off+3])
	}

	for n := 0; n < RecordCount; n++ {
		copy(ldu.Codewords[n][:], buf[CodewordOffsets[n]:CodewordOffsets[n]+IMBECodewordLength])
	}

	return ldu, nil
}
