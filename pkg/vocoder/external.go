package vocoder

// External codec backend: a UDP client for an AMBE-server style hardware
// codec daemon. One request in flight at a time, deadline bounded. A codec
// timeout never fails the call; decode degrades to silence with a
// full-frame error count and encode falls back to the software quantizer,
// so transmission keeps its cadence while the accelerator is unavailable.

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"
)

// Daemon request opcodes
const (
	opEncode = 0x01
	opDecode = 0x02
)

const requestDeadline = 80 * time.Millisecond

// External implements Codec against a codec daemon
type External struct {
	mode     Mode
	conn     *net.UDPConn
	fallback *Software

	tone toneState
}

// NewExternal dials the codec daemon at addr
func NewExternal(mode Mode, addr string) (*External, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("vocoder: resolve codec daemon: %w", err)
	}

	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("vocoder: dial codec daemon: %w", err)
	}

	return &External{
		mode:     mode,
		conn:     conn,
		fallback: NewSoftware(mode),
	}, nil
}

// Mode returns the codeword family
func (x *External) Mode() Mode {
	return x.mode
}

// Close releases the daemon connection
func (x *External) Close() error {
	return x.conn.Close()
}

// Encode sends one PCM frame to the daemon and returns the codeword
func (x *External) Encode(pcm []int16) ([]byte, error) {
	if len(pcm) != SamplesPerFrame {
		return nil, errFrameSize(len(pcm))
	}

	req := make([]byte, 2+FrameBytes)
	req[0] = opEncode
	req[1] = byte(x.mode)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(req[2+i*2:], uint16(s))
	}

	resp, err := x.roundTrip(req)
	if err != nil || len(resp) < 2+x.mode.CodewordLength() {
		// keep the transmit cadence on the software path
		return x.fallback.Encode(pcm)
	}

	return resp[2 : 2+x.mode.CodewordLength()], nil
}

// Decode sends one codeword to the daemon and returns the PCM frame plus
// the daemon's reported error count
func (x *External) Decode(cw []byte) ([]int16, int, error) {
	if len(cw) != x.mode.CodewordLength() {
		return nil, 0, errCodewordSize(len(cw))
	}

	if tone, ok := parseToneCodeword(cw); ok {
		return x.tone.synthesize(tone), 0, nil
	}

	req := make([]byte, 2+len(cw))
	req[0] = opDecode
	req[1] = byte(x.mode)
	copy(req[2:], cw)

	resp, err := x.roundTrip(req)
	if err != nil || len(resp) < 3+FrameBytes {
		// daemon unavailable: best-effort silence, full-frame error count
		return make([]int16, SamplesPerFrame), SamplesPerFrame, nil
	}

	errs := int(resp[2])
	pcm := make([]int16, SamplesPerFrame)
	for i := range pcm {
		pcm[i] = int16(binary.LittleEndian.Uint16(resp[3+i*2:]))
	}
	return pcm, errs, nil
}

func (x *External) roundTrip(req []byte) ([]byte, error) {
	if err := x.conn.SetDeadline(time.Now().Add(requestDeadline)); err != nil {
		return nil, err
	}
	if _, err := x.conn.Write(req); err != nil {
		return nil, err
	}

	resp := make([]byte, 2048)
	n, err := x.conn.Read(resp)
	if err != nil {
		return nil, err
	}
	if n < 2 || resp[0] != req[0] {
		return nil, fmt.Errorf("vocoder: malformed daemon response")
	}
	return resp[:n], nil
}
