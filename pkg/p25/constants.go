package p25

// Data Unit IDs (DUID)
const (
	DUIDHDU   = 0x00 // Header Data Unit
	DUIDTDU   = 0x03 // Simple Terminator Data Unit
	DUIDLDU1  = 0x05 // Logical Link Data Unit 1
	DUIDTSDU  = 0x07 // Trunking Signalling Data Unit
	DUIDLDU2  = 0x0A // Logical Link Data Unit 2
	DUIDPDU   = 0x0C // Packet Data Unit
	DUIDTDULC = 0x0F // Terminator Data Unit with Link Control
)

// Frame type values carried alongside an LDU1 payload
const (
	FrameTypeDataUnit     = 0x00 // plain voice LDU
	FrameTypeHDUValid     = 0x01 // LDU1 carrying full header (enc sync) data
	FrameTypeHDULateEntry = 0x02 // late entry, no header data available
)

// Encryption algorithm IDs
const (
	AlgoUnencrypted = 0x80
	AlgoAES256      = 0x84
	AlgoARC4        = 0xAA
)

// Buffer and codeword geometry. An LDU buffer is 9 records of 25 bytes;
// each record starts with a marker byte and carries one IMBE codeword.
const (
	IMBECodewordLength = 11
	RecordLength       = 25
	RecordCount        = 9
	LDUBufferLength    = RecordCount * RecordLength // 225

	MILength = 9
)

// Record marker bases. Record n of an LDU1 is tagged LDU1MarkerBase+n,
// giving the 0x62..0x6A sequence; LDU2 uses 0x6B..0x73.
const (
	LDU1MarkerBase byte = 0x62
	LDU2MarkerBase byte = 0x6B
)

// CodewordOffsets places the 9 IMBE codewords inside the 225-byte buffer.
// These positions are part of the interop contract and must not change.
var CodewordOffsets = [RecordCount]int{10, 26, 55, 80, 105, 130, 155, 180, 204}

// Header (enc sync) field offsets, valid in an LDU1 tagged FrameTypeHDUValid.
// They ride the unused tail of record 1.
const (
	OffsetFrameType = 1
	OffsetHDUMI     = 37 // 9 bytes
	OffsetHDUAlgID  = 46
	OffsetHDUKeyID  = 47 // 2 bytes, big-endian
)

// Link Control field offsets in an LDU1 (record 2 tail)
const (
	OffsetLCOpcode = 66
	OffsetLCDstID  = 67 // 3 bytes, big-endian
	OffsetLCSrcID  = 70 // 3 bytes, big-endian
)

// Encryption sync offsets in an LDU2. The MI is fragmented 3 bytes per
// record across records 2-4; algorithm and key ID ride record 5.
var LDU2MIFragmentOffsets = [3]int{51, 76, 101}

const (
	OffsetLDU2AlgID = 126
	OffsetLDU2KeyID = 127 // 2 bytes, big-endian
)

// Link Control opcodes
const (
	LCOGroupVoice = 0x00
	LCOUnitToUnit = 0x03
)
