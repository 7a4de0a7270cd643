package network

import (
	"bytes"
	"testing"
)

func sampleMessage() *Message {
	return &Message{
		Function: FuncP25LDU1,
		Sequence: 0x1234,
		StreamID: 0xDEADBEEF,
		PeerID:   312000,
		Call: RemoteCallData{
			SrcID:    3219457,
			DstID:    3100,
			LCOpcode: 0x00,
		},
		Timeslot:   2,
		FrameType:  0x01,
		FrameIndex: 0x05,
		Crypto: CryptoParams{
			AlgID: 0xAA,
			KeyID: 0x0102,
			MI:    [9]byte{1, 2, 3, 4, 5, 6, 7, 8, 0},
		},
		Payload: bytes.Repeat([]byte{0x5A}, 225),
	}
}

func TestMessage_RoundTrip(t *testing.T) {
	m := sampleMessage()
	data := m.Encode()

	if len(data) != HeaderLength+len(m.Payload) {
		t.Fatalf("encoded length %d want %d", len(data), HeaderLength+len(m.Payload))
	}
	if string(data[0:4]) != Signature {
		t.Errorf("signature %q", data[0:4])
	}

	got, err := ParseMessage(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if got.Function != m.Function {
		t.Errorf("function: got 0x%02X want 0x%02X", got.Function, m.Function)
	}
	if got.Sequence != m.Sequence {
		t.Errorf("sequence: got %d want %d", got.Sequence, m.Sequence)
	}
	if got.StreamID != m.StreamID {
		t.Errorf("stream: got 0x%08X want 0x%08X", got.StreamID, m.StreamID)
	}
	if got.PeerID != m.PeerID {
		t.Errorf("peer: got %d want %d", got.PeerID, m.PeerID)
	}
	if got.Call.SrcID != m.Call.SrcID || got.Call.DstID != m.Call.DstID {
		t.Errorf("addressing: src %d dst %d", got.Call.SrcID, got.Call.DstID)
	}
	if got.Timeslot != 2 {
		t.Errorf("timeslot: got %d want 2", got.Timeslot)
	}
	if got.FrameType != m.FrameType {
		t.Errorf("frame type: got %d want %d", got.FrameType, m.FrameType)
	}
	if got.FrameIndex != m.FrameIndex {
		t.Errorf("frame index: got %d want %d", got.FrameIndex, m.FrameIndex)
	}
	if got.Crypto != m.Crypto {
		t.Errorf("crypto params: got %+v want %+v", got.Crypto, m.Crypto)
	}
	if !bytes.Equal(got.Payload, m.Payload) {
		t.Error("payload mismatch")
	}
}

func TestMessage_SlotByte(t *testing.T) {
	m := sampleMessage()
	m.Timeslot = 1
	m.FrameType = 0x02
	m.FrameIndex = 0x0C

	got, err := ParseMessage(m.Encode())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Timeslot != 1 {
		t.Errorf("timeslot: got %d want 1", got.Timeslot)
	}
	if got.FrameType != 0x02 {
		t.Errorf("frame type: got %d want 2", got.FrameType)
	}
	if got.FrameIndex != 0x0C {
		t.Errorf("frame index: got %d want 12", got.FrameIndex)
	}
}

func TestParseMessage_Rejects(t *testing.T) {
	if _, err := ParseMessage(make([]byte, 10)); err == nil {
		t.Error("short datagram accepted")
	}

	bad := sampleMessage().Encode()
	copy(bad[0:4], "XXXX")
	if _, err := ParseMessage(bad); err == nil {
		t.Error("bad signature accepted")
	}

	truncated := sampleMessage().Encode()
	if _, err := ParseMessage(truncated[:HeaderLength+10]); err == nil {
		t.Error("truncated payload accepted")
	}
}

func TestMessage_EmptyPayload(t *testing.T) {
	m := &Message{Function: FuncP25TDU, StreamID: 7}
	got, err := ParseMessage(m.Encode())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got.Payload) != 0 {
		t.Errorf("payload length %d want 0", len(got.Payload))
	}
}
