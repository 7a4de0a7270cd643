package dispatch

import (
	"crypto/rand"
	"encoding/binary"
)

// SequenceCeiling bounds the per-channel transport sequence number; the
// counter wraps back to 0 when it is reached. Each channel keeps its own
// counter because channels multiplex onto one transport connection and the
// far end runs per-talkgroup continuity checks.
const SequenceCeiling = 0x10000

// NewStreamID allocates a fresh opaque stream identifier for a new
// outbound call. Never zero: zero marks "no stream" in channel state.
func NewStreamID() uint32 {
	var b [4]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			// rand failure is effectively unreachable; keep the call alive
			return 1
		}
		if id := binary.BigEndian.Uint32(b[:]); id != 0 {
			return id
		}
	}
}

// nextSeq returns the current transport sequence and advances the counter
func (c *Channel) nextSeq() uint16 {
	seq := c.state.PktSeq
	c.state.PktSeq = uint16((uint32(c.state.PktSeq) + 1) % SequenceCeiling)
	return seq
}

// resetSequencing zeroes the outbound stream identity, called whenever a
// transmission ends by release or forced stop
func (c *Channel) resetSequencing() {
	c.state.TxStreamID = 0
	c.state.PktSeq = 0
	c.state.P25SeqNo = 0
	c.state.DMRSeqNo = 0
	c.state.P25FrameIndex = 0
	c.state.DMRFrameIndex = 0
	c.state.AMBECount = 0
}
