package vocoder

import (
	"encoding/binary"
	"net"
	"testing"
)

// fakeDaemon answers codec requests the way an AMBE server would
func fakeDaemon(t *testing.T) string {
	t.Helper()

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 2048)
		for {
			n, addr, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			if n < 2 {
				continue
			}

			mode := Mode(buf[1])
			var resp []byte
			switch buf[0] {
			case opEncode:
				resp = make([]byte, 2+mode.CodewordLength())
				resp[0] = opEncode
				resp[1] = buf[1]
				for i := 2; i < len(resp); i++ {
					resp[i] = 0x42
				}
			case opDecode:
				resp = make([]byte, 3+FrameBytes)
				resp[0] = opDecode
				resp[1] = buf[1]
				resp[2] = 2 // reported error count
				for i := 0; i < SamplesPerFrame; i++ {
					binary.LittleEndian.PutUint16(resp[3+i*2:], uint16(int16(i)))
				}
			default:
				continue
			}
			if _, err := conn.WriteToUDP(resp, addr); err != nil {
				return
			}
		}
	}()

	return conn.LocalAddr().String()
}

func TestExternal_EncodeDecode(t *testing.T) {
	addr := fakeDaemon(t)

	x, err := NewExternal(ModeAMBE, addr)
	if err != nil {
		t.Fatalf("NewExternal: %v", err)
	}
	defer x.Close()

	cw, err := x.Encode(make([]int16, SamplesPerFrame))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(cw) != AMBECodewordLength {
		t.Fatalf("codeword length: got %d want %d", len(cw), AMBECodewordLength)
	}
	if cw[0] != 0x42 {
		t.Errorf("codeword byte: got 0x%02X want 0x42", cw[0])
	}

	pcm, errs, err := x.Decode(cw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(pcm) != SamplesPerFrame {
		t.Fatalf("pcm length: got %d", len(pcm))
	}
	if errs != 2 {
		t.Errorf("error count: got %d want 2", errs)
	}
	if pcm[10] != 10 {
		t.Errorf("pcm sample: got %d want 10", pcm[10])
	}
}

func TestExternal_DaemonDownDegrades(t *testing.T) {
	// nothing is listening here; every request times out
	dead, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := dead.LocalAddr().String()
	dead.Close()

	x, err := NewExternal(ModeIMBE, addr)
	if err != nil {
		t.Fatalf("NewExternal: %v", err)
	}
	defer x.Close()

	// encode falls back to the software quantizer
	cw, err := x.Encode(make([]int16, SamplesPerFrame))
	if err != nil {
		t.Fatalf("encode fallback: %v", err)
	}
	if len(cw) != IMBECodewordLength {
		t.Errorf("fallback codeword length: got %d", len(cw))
	}

	// decode degrades to silence with a full-frame error count
	pcm, errs, err := x.Decode(cw)
	if err != nil {
		t.Fatalf("decode degrade: %v", err)
	}
	if errs != SamplesPerFrame {
		t.Errorf("error count: got %d want %d", errs, SamplesPerFrame)
	}
	for i, s := range pcm {
		if s != 0 {
			t.Fatalf("sample %d not silence: %d", i, s)
		}
	}
}

func TestExternal_ToneBypassesDaemon(t *testing.T) {
	// no daemon at all: tone codewords never hit the network
	dead, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := dead.LocalAddr().String()
	dead.Close()

	x, err := NewExternal(ModeIMBE, addr)
	if err != nil {
		t.Fatalf("NewExternal: %v", err)
	}
	defer x.Close()

	cw := ToneCodeword(ModeIMBE, Tone{Bin: 20, Amplitude: 10000})
	pcm, errs, err := x.Decode(cw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errs != 0 {
		t.Errorf("error count: got %d want 0", errs)
	}
	if _, ok := DetectTone(pcm); !ok {
		t.Error("tone codeword did not synthesize a tone")
	}
}
