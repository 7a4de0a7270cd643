package dmr

import "fmt"

// PackVoicePayload packs 3 AMBE half-rate codewords (27 bytes) into a
// 33-byte burst body. The 216 voice bits split into two 108-bit halves:
// bytes [0,13) plus the high nibble of byte 13, and the low nibble of
// byte 19 plus bytes [20,33). Bytes 13-19 are left for sync/embedded
// signalling, whose insertion preserves the voice nibbles via SyncMask.
func PackVoicePayload(ambe []byte) ([]byte, error) {
	if len(ambe) != AMBEBufferLength {
		return nil, fmt.Errorf("dmr: invalid AMBE buffer length %d (expected %d)", len(ambe), AMBEBufferLength)
	}

	body := make([]byte, FrameBodyLength)
	copy(body[0:13], ambe[0:13])
	body[13] = ambe[13] & 0xF0
	body[19] = ambe[13] & 0x0F
	copy(body[20:33], ambe[14:27])
	return body, nil
}

// UnpackVoicePayload reconstructs the 27-byte AMBE codeword triplet from a
// 33-byte burst body, reversing the half-rate split of PackVoicePayload.
func UnpackVoicePayload(body []byte) ([]byte, error) {
	if len(body) != FrameBodyLength {
		return nil, fmt.Errorf("dmr: invalid frame body length %d (expected %d)", len(body), FrameBodyLength)
	}

	ambe := make([]byte, AMBEBufferLength)
	copy(ambe[0:13], body[0:13])
	ambe[13] = body[13]&0xF0 | body[19]&0x0F
	copy(ambe[14:27], body[20:33])
	return ambe, nil
}

// InsertVoiceSync inserts a voice sync pattern at bytes 13-19 under the
// nibble mask, leaving the surrounding codeword bits untouched
func InsertVoiceSync(body []byte, pattern []byte) {
	if len(body) < SyncOffset+SyncLength {
		return
	}
	for i := 0; i < SyncLength; i++ {
		body[SyncOffset+i] = (body[SyncOffset+i] & ^SyncMask[i]) | (pattern[i] & SyncMask[i])
	}
}

// SyncRegion returns a copy of the 7-byte sync/embedded region
func SyncRegion(body []byte) []byte {
	region := make([]byte, SyncLength)
	copy(region, body[SyncOffset:SyncOffset+SyncLength])
	return region
}

// BuildVoiceLCHeader builds a Voice LC Header burst body (33 bytes)
// carrying the full Link Control in clear
func BuildVoiceLCHeader(srcID, dstID uint32, flco FLCO) []byte {
	body := make([]byte, FrameBodyLength)
	copy(body[0:9], FullLC(srcID, dstID, flco))
	return body
}

// BuildTerminatorWithLC builds a terminator burst body. The terminator
// carries the same full LC as the header.
func BuildTerminatorWithLC(srcID, dstID uint32, flco FLCO) []byte {
	return BuildVoiceLCHeader(srcID, dstID, flco)
}

// FullLC assembles the 9-byte full Link Control
func FullLC(srcID, dstID uint32, flco FLCO) []byte {
	lc := make([]byte, 9)
	lc[0] = byte(flco) & 0x3F
	lc[1] = byte(dstID >> 16)
	lc[2] = byte(dstID >> 8)
	lc[3] = byte(dstID)
	lc[4] = byte(srcID >> 16)
	lc[5] = byte(srcID >> 8)
	lc[6] = byte(srcID)
	return lc
}

// ParseFullLC extracts addressing from a full LC (header or terminator body)
func ParseFullLC(body []byte) (srcID, dstID uint32, flco FLCO, ok bool) {
	if len(body) < 9 {
		return 0, 0, 0, false
	}

	flco = FLCO(body[0] & 0x3F)
	dstID = uint32(body[1])<<16 | uint32(body[2])<<8 | uint32(body[3])
	srcID = uint32(body[4])<<16 | uint32(body[5])<<8 | uint32(body[6])
	return srcID, dstID, flco, true
}

// BuildPIHeader builds a privacy indicator header body carrying the DMR
// encryption parameters
func BuildPIHeader(algID uint8, keyID uint16, mi []byte) []byte {
	body := make([]byte, FrameBodyLength)
	body[0] = 0x10 // PI opcode
	body[1] = algID
	body[2] = byte(keyID >> 8)
	body[3] = byte(keyID)
	copy(body[4:8], mi)
	return body
}

// ParsePIHeader extracts privacy parameters from a PI header body
func ParsePIHeader(body []byte) (algID uint8, keyID uint16, mi [4]byte, ok bool) {
	if len(body) < 8 || body[0] != 0x10 {
		return 0, 0, mi, false
	}

	algID = body[1]
	keyID = uint16(body[2])<<8 | uint16(body[3])
	copy(mi[:], body[4:8])
	return algID, keyID, mi, true
}
