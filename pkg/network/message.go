// Package network frames voice messages for the wire and carries them to
// and from the network peer over UDP.
package network

import (
	"encoding/binary"
	"fmt"
)

// Signature prefixes every framed message
const Signature = "DVMD"

// Function IDs identify the payload kind. P25 values track the DUID.
const (
	FuncP25TDU  = 0x03
	FuncP25LDU1 = 0x05
	FuncP25LDU2 = 0x0A

	FuncDMRVoice       = 0x20
	FuncDMRVoiceHeader = 0x21
	FuncDMRTerminator  = 0x22
	FuncDMRPIHeader    = 0x23
)

// Message field offsets
const (
	offSignature = 0  // 4 bytes: "DVMD"
	offFunction  = 4  // 1 byte
	offSequence  = 5  // 2 bytes, big-endian
	offStreamID  = 7  // 4 bytes, big-endian
	offPeerID    = 11 // 4 bytes, big-endian
	offSrcID     = 15 // 3 bytes, big-endian
	offDstID     = 18 // 3 bytes, big-endian
	offSlot      = 21 // 1 byte: timeslot bit 7, frame type bits 4-5, frame index bits 0-3
	offAlgID     = 22 // 1 byte
	offKeyID     = 23 // 2 bytes, big-endian
	offMI        = 25 // 9 bytes
	offLength    = 34 // 2 bytes, big-endian payload length
	HeaderLength = 36
)

// Slot byte masks, matching the DMR network convention
const (
	SlotTimeslotMask   = 0x80
	SlotFrameTypeMask  = 0x30
	SlotFrameIndexMask = 0x0F
)

// CryptoParams is the value snapshot of encryption parameters attached to
// an outbound message header; distinct from the live MI the crypto engine
// mutates frame by frame.
type CryptoParams struct {
	AlgID uint8
	KeyID uint16
	MI    [9]byte
}

// RemoteCallData carries addressing and LC metadata for a message
type RemoteCallData struct {
	SrcID    uint32
	DstID    uint32
	LCOpcode byte
}

// Message is one framed network message
type Message struct {
	Function   byte
	Sequence   uint16
	StreamID   uint32
	PeerID     uint32
	Call       RemoteCallData
	Timeslot   int // 1 or 2, DMR only
	FrameType  byte
	FrameIndex byte
	Crypto     CryptoParams
	Payload    []byte
}

// Encode encodes the message to raw bytes
func (m *Message) Encode() []byte {
	data := make([]byte, HeaderLength+len(m.Payload))

	copy(data[offSignature:], Signature)
	data[offFunction] = m.Function
	binary.BigEndian.PutUint16(data[offSequence:], m.Sequence)
	binary.BigEndian.PutUint32(data[offStreamID:], m.StreamID)
	binary.BigEndian.PutUint32(data[offPeerID:], m.PeerID)

	data[offSrcID] = byte(m.Call.SrcID >> 16)
	data[offSrcID+1] = byte(m.Call.SrcID >> 8)
	data[offSrcID+2] = byte(m.Call.SrcID)
	data[offDstID] = byte(m.Call.DstID >> 16)
	data[offDstID+1] = byte(m.Call.DstID >> 8)
	data[offDstID+2] = byte(m.Call.DstID)

	var slot byte
	if m.Timeslot == 2 {
		slot |= SlotTimeslotMask
	}
	slot |= (m.FrameType << 4) & SlotFrameTypeMask
	slot |= m.FrameIndex & SlotFrameIndexMask
	data[offSlot] = slot

	data[offAlgID] = m.Crypto.AlgID
	binary.BigEndian.PutUint16(data[offKeyID:], m.Crypto.KeyID)
	copy(data[offMI:offMI+9], m.Crypto.MI[:])

	binary.BigEndian.PutUint16(data[offLength:], uint16(len(m.Payload)))
	copy(data[HeaderLength:], m.Payload)
	return data
}

// ParseMessage parses a framed message from raw bytes
func ParseMessage(data []byte) (*Message, error) {
	if len(data) < HeaderLength {
		return nil, fmt.Errorf("network: message too short: %d bytes", len(data))
	}
	if string(data[offSignature:offSignature+4]) != Signature {
		return nil, fmt.Errorf("network: invalid signature %q", data[offSignature:offSignature+4])
	}

	m := &Message{
		Function: data[offFunction],
		Sequence: binary.BigEndian.Uint16(data[offSequence:]),
		StreamID: binary.BigEndian.Uint32(data[offStreamID:]),
		PeerID:   binary.BigEndian.Uint32(data[offPeerID:]),
	}

	m.Call.SrcID = uint32(data[offSrcID])<<16 | uint32(data[offSrcID+1])<<8 | uint32(data[offSrcID+2])
	m.Call.DstID = uint32(data[offDstID])<<16 | uint32(data[offDstID+1])<<8 | uint32(data[offDstID+2])

	slot := data[offSlot]
	if slot&SlotTimeslotMask != 0 {
		m.Timeslot = 2
	} else {
		m.Timeslot = 1
	}
	m.FrameType = (slot & SlotFrameTypeMask) >> 4
	m.FrameIndex = slot & SlotFrameIndexMask

	m.Crypto.AlgID = data[offAlgID]
	m.Crypto.KeyID = binary.BigEndian.Uint16(data[offKeyID:])
	copy(m.Crypto.MI[:], data[offMI:offMI+9])

	length := int(binary.BigEndian.Uint16(data[offLength:]))
	if HeaderLength+length > len(data) {
		return nil, fmt.Errorf("network: truncated payload: header says %d, have %d", length, len(data)-HeaderLength)
	}
	m.Payload = make([]byte, length)
	copy(m.Payload, data[HeaderLength:HeaderLength+length])

	return m, nil
}

// Event is an inbound message delivered to the dispatch layer
type Event struct {
	Data       []byte
	PeerID     uint32
	SrcID      uint32
	DstID      uint32
	StreamID   uint32
	Function   byte
	FrameType  byte
	FrameIndex byte
	Sequence   uint16
	Slot       int
	Crypto     CryptoParams
}

// Peer is the transport collaborator: it sends framed messages and
// delivers inbound events on a single channel.
type Peer interface {
	SendFramedMessage(m *Message) error
	Events() <-chan Event
	Close() error
}
