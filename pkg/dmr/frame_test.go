package dmr

import (
	"bytes"
	"testing"
)

func testAMBE() []byte {
	ambe := make([]byte, AMBEBufferLength)
	for i := range ambe {
		ambe[i] = byte(0xE0 + i)
	}
	return ambe
}

func TestVoicePayload_RoundTrip(t *testing.T) {
	ambe := testAMBE()

	body, err := PackVoicePayload(ambe)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if len(body) != FrameBodyLength {
		t.Fatalf("body length: got %d want %d", len(body), FrameBodyLength)
	}

	got, err := UnpackVoicePayload(body)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if !bytes.Equal(got, ambe) {
		t.Errorf("round trip mismatch: got %x want %x", got, ambe)
	}
}

func TestVoicePayload_SurvivesSyncInsertion(t *testing.T) {
	ambe := testAMBE()
	body, err := PackVoicePayload(ambe)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	InsertVoiceSync(body, MSSourcedAudioSync)

	// the sync pattern must land in the masked region
	region := SyncRegion(body)
	for i := 1; i < SyncLength-1; i++ {
		if region[i] != MSSourcedAudioSync[i] {
			t.Errorf("sync byte %d: got 0x%02X want 0x%02X", i, region[i], MSSourcedAudioSync[i])
		}
	}

	// and the voice bits must come back untouched
	got, err := UnpackVoicePayload(body)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if !bytes.Equal(got, ambe) {
		t.Errorf("sync insertion corrupted voice bits: got %x want %x", got, ambe)
	}
}

func TestVoicePayload_SizeErrors(t *testing.T) {
	if _, err := PackVoicePayload(make([]byte, 26)); err == nil {
		t.Error("expected error for short AMBE buffer")
	}
	if _, err := UnpackVoicePayload(make([]byte, 32)); err == nil {
		t.Error("expected error for short frame body")
	}
}

func TestFullLC_RoundTrip(t *testing.T) {
	body := BuildVoiceLCHeader(3101001, 9, FLCOGroup)
	if len(body) != FrameBodyLength {
		t.Fatalf("body length: got %d want %d", len(body), FrameBodyLength)
	}

	src, dst, flco, ok := ParseFullLC(body)
	if !ok {
		t.Fatal("parse failed")
	}
	if src != 3101001 {
		t.Errorf("src: got %d want 3101001", src)
	}
	if dst != 9 {
		t.Errorf("dst: got %d want 9", dst)
	}
	if flco != FLCOGroup {
		t.Errorf("flco: got %d want %d", flco, FLCOGroup)
	}
}

func TestPIHeader_RoundTrip(t *testing.T) {
	mi := []byte{0x11, 0x22, 0x33, 0x44}
	body := BuildPIHeader(0x21, 0x0055, mi)

	algID, keyID, gotMI, ok := ParsePIHeader(body)
	if !ok {
		t.Fatal("parse failed")
	}
	if algID != 0x21 {
		t.Errorf("alg: got 0x%02X want 0x21", algID)
	}
	if keyID != 0x0055 {
		t.Errorf("key: got 0x%04X want 0x0055", keyID)
	}
	if !bytes.Equal(gotMI[:], mi) {
		t.Errorf("mi: got %x want %x", gotMI, mi)
	}

	if _, _, _, ok := ParsePIHeader(make([]byte, FrameBodyLength)); ok {
		t.Error("parse accepted a body without the PI opcode")
	}
}

func TestEmbeddedData_FragmentRoundTrip(t *testing.T) {
	lc := FullLC(3101001, 9, FLCOGroup)

	tx := NewEmbeddedData(1)
	tx.SetLC(lc)

	rx := NewEmbeddedData(1)
	for i := 0; i < EmbeddedFragments; i++ {
		done := rx.AddFragment(tx.Fragment(i))
		if i < EmbeddedFragments-1 && done {
			t.Fatalf("reassembly completed early at fragment %d", i)
		}
		if i == EmbeddedFragments-1 && !done {
			t.Fatal("reassembly did not complete after the last fragment")
		}
	}

	if !rx.Valid() {
		t.Error("Valid() false after completed reassembly")
	}
	if !bytes.Equal(rx.LC(), lc) {
		t.Errorf("lc: got %x want %x", rx.LC(), lc)
	}

	src, dst, _, ok := ParseFullLC(rx.LC())
	if !ok || src != 3101001 || dst != 9 {
		t.Errorf("reassembled LC misparsed: src %d dst %d", src, dst)
	}
}

func TestEmbeddedData_OutOfOrderFragments(t *testing.T) {
	lc := FullLC(42, 7, FLCOGroup)

	tx := NewEmbeddedData(1)
	tx.SetLC(lc)

	rx := NewEmbeddedData(1)
	for _, i := range []int{2, 0, 3, 1} {
		last := i == 1
		if done := rx.AddFragment(tx.Fragment(i)); done != last {
			t.Errorf("fragment %d: done=%v want %v", i, done, last)
		}
	}
	if !bytes.Equal(rx.LC(), lc) {
		t.Errorf("lc: got %x want %x", rx.LC(), lc)
	}
}

func TestEmbeddedData_ChecksumRejectsCorruption(t *testing.T) {
	lc := FullLC(42, 7, FLCOGroup)

	tx := NewEmbeddedData(1)
	tx.SetLC(lc)

	rx := NewEmbeddedData(1)
	for i := 0; i < EmbeddedFragments; i++ {
		region := tx.Fragment(i)
		if i == 1 {
			region[3] ^= 0x01 // flip one LC bit
		}
		if rx.AddFragment(region) {
			t.Fatal("corrupted stream accepted")
		}
	}
	if rx.Valid() {
		t.Error("Valid() true after checksum failure")
	}
}

func TestEmbeddedData_FragmentsThroughBurstBody(t *testing.T) {
	lc := FullLC(3101001, 9, FLCOGroup)
	tx := NewEmbeddedData(5)
	tx.SetLC(lc)

	rx := NewEmbeddedData(5)
	for i := 0; i < EmbeddedFragments; i++ {
		body, err := PackVoicePayload(testAMBE())
		if err != nil {
			t.Fatalf("pack: %v", err)
		}
		InsertEmbedded(body, tx.Fragment(i))

		// voice bits survive the embedded insertion
		if got, _ := UnpackVoicePayload(body); !bytes.Equal(got, testAMBE()) {
			t.Fatalf("fragment %d corrupted voice bits", i)
		}

		rx.AddFragment(SyncRegion(body))
	}

	if !rx.Valid() {
		t.Fatal("LC did not reassemble through burst bodies")
	}
	if !bytes.Equal(rx.LC(), lc) {
		t.Errorf("lc: got %x want %x", rx.LC(), lc)
	}
}
