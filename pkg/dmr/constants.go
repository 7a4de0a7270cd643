package dmr

// Frame body and codeword geometry. A DMR voice burst body is 33 bytes
// carrying 3 AMBE half-rate codewords (216 bits) split around the 7-byte
// sync/embedded signalling region at bytes 13-19.
const (
	FrameBodyLength    = 33
	AMBECodewordLength = 9
	FrameCodewords     = 3
	AMBEBufferLength   = FrameCodewords * AMBECodewordLength // 27

	SyncOffset = 13
	SyncLength = 7

	// Voice bursts cycle A-F before the superframe repeats
	FramesPerGroup = 6
)

// Frame types (bits 4-5 of the network slot byte)
const (
	FrameTypeVoice           = 0x00
	FrameTypeVoiceHeader     = 0x01
	FrameTypeVoiceTerminator = 0x02
	FrameTypeDataSync        = 0x03
)

// Data types carried in data sync frames
const (
	DataTypePIHeader         = 0x00 // privacy indicator header
	DataTypeVoiceLCHeader    = 0x01
	DataTypeTerminatorWithLC = 0x02
)

// FLCO (Full Link Control Opcode) values
type FLCO byte

const (
	FLCOGroup   FLCO = 0x00
	FLCOPrivate FLCO = 0x03
)

// LCSS embedded signalling fragment markers
const (
	LCSSSingleFragment byte = iota
	LCSSFirstFragment
	LCSSLastFragment
	LCSSContinuation
)

// Voice sync patterns, 7 bytes inserted at bytes 13-19 under SyncMask.
// MS patterns are used console-to-network, BS patterns network-to-console.
var (
	MSSourcedAudioSync = []byte{0x07, 0xF7, 0xD5, 0xDD, 0x57, 0xDF, 0xD0}
	BSSourcedAudioSync = []byte{0x07, 0x55, 0xFD, 0x7D, 0xF7, 0x5F, 0x70}

	// SyncMask protects the outer nibbles of bytes 13 and 19, which belong
	// to the surrounding voice codeword halves
	SyncMask = []byte{0x0F, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xF0}
)

// Timeslot values
const (
	Timeslot1 = 1
	Timeslot2 = 2
)
