// Package dispatch owns the per-channel voice state machines: superframe
// accumulation, call tracking, sequencing and the encode/decode paths.
package dispatch

import (
	"time"

	"github.com/lorenzolrom/dvmconsole/pkg/dmr"
	"github.com/lorenzolrom/dvmconsole/pkg/p25"
)

// Mode identifies the channel's radio standard
type Mode string

const (
	ModeP25 Mode = "P25"
	ModeDMR Mode = "DMR"
)

// ChannelState is the mutable voice state of one monitored channel. All
// fields are guarded by the owning Channel's mutex: inbound decode and
// outbound encode for the same channel never run concurrently, because
// stream IDs, the MI and the accumulation buffers update as a unit.
type ChannelState struct {
	// P25 superframe accumulation
	P25FrameIndex int // 0-17, wraps; buffers reset at 0 and 9
	NetLDU1       [p25.LDUBufferLength]byte
	NetLDU2       [p25.LDUBufferLength]byte

	// DMR codeword accumulation
	DMRFrameIndex int // 0-5 burst position within the superframe
	AMBEBuffer    [dmr.AMBEBufferLength]byte
	AMBECount     int // 0-3 codewords accumulated

	// call-local counters, reset to 0 at call end
	P25SeqNo uint32
	DMRSeqNo uint32

	// active encryption parameters; MI is only ever fully replaced or
	// cycled, never partially updated
	MI    [p25.MILength]byte
	AlgID uint8
	KeyID uint16

	// DMR embedded signalling shift state
	Embedded *dmr.EmbeddedData

	// outbound identity
	TxStreamID uint32
	PktSeq     uint16

	// inbound call tracking
	RxStreamID     uint32
	PeerID         uint32
	IsReceiving    bool
	LastPacketTime time.Time
	LastFrameType  byte

	// error count from the previous decode pass; read before a freshly
	// parsed LDU2 MI is adopted, then overwritten by the current pass
	LastErrs int

	// true until the call's first LDU1 has carried header data
	needHeader bool
}

// SlotStatus holds the last-observed call attributes for a channel (or
// channel+timeslot for DMR). Created lazily on first reference, fields
// reset on each new call, never destroyed while the channel exists.
type SlotStatus struct {
	SrcID     uint32
	DstID     uint32
	FrameType byte
	StreamID  uint32
	StartTime time.Time

	// DMR link control
	LC []byte

	// DMR privacy parameters from a PI header
	PrivacyAlgID uint8
	PrivacyKeyID uint16
	PrivacyMI    [4]byte

	// open call-history record, 0 when none
	historyID uint
}

// resetCall clears the slot for a new call
func (s *SlotStatus) resetCall() {
	s.SrcID = 0
	s.DstID = 0
	s.FrameType = 0
	s.StreamID = 0
	s.StartTime = time.Time{}
	s.LC = nil
	s.PrivacyAlgID = 0
	s.PrivacyKeyID = 0
	s.PrivacyMI = [4]byte{}
	s.historyID = 0
}
