// Package vocoder converts 20ms PCM frames to and from vocoder codewords.
// Two backends exist: a software codec and a client for an external
// hardware codec daemon. The backend is chosen once at channel
// initialization and fixed for the channel's lifetime.
package vocoder

import "fmt"

// Frame geometry: 160 signed 16-bit samples, 20ms at 8kHz, per codeword
const (
	SamplesPerFrame = 160
	FrameBytes      = SamplesPerFrame * 2
	SampleRate      = 8000
)

// Mode selects the codeword family
type Mode int

const (
	ModeIMBE Mode = iota // P25 full rate, 11-byte codewords
	ModeAMBE             // DMR half rate, 9-byte codewords
)

// CodewordLength returns the codeword size for a mode
func (m Mode) CodewordLength() int {
	if m == ModeAMBE {
		return AMBECodewordLength
	}
	return IMBECodewordLength
}

func (m Mode) String() string {
	if m == ModeAMBE {
		return "AMBE"
	}
	return "IMBE"
}

// Codeword lengths in bytes
const (
	IMBECodewordLength = 11
	AMBECodewordLength = 9
)

// Codec converts PCM frames to codewords and back. Implementations are
// stateful and per-channel; they are not safe for concurrent use.
type Codec interface {
	// Encode converts one 160-sample PCM frame to a codeword
	Encode(pcm []int16) ([]byte, error)

	// Decode converts a codeword back to a 160-sample PCM frame. The
	// returned error count reports recoverable decode degradation; it
	// feeds the caller's encryption re-sync decision and is not fatal.
	Decode(cw []byte) ([]int16, int, error)

	Mode() Mode
}

// New creates a codec backend by capability flag. backend is "software"
// or "external"; addr is the codec daemon address for the external backend.
func New(backend string, mode Mode, addr string) (Codec, error) {
	switch backend {
	case "", "software":
		return NewSoftware(mode), nil
	case "external":
		return NewExternal(mode, addr)
	default:
		return nil, fmt.Errorf("vocoder: unknown backend %q", backend)
	}
}

func errFrameSize(n int) error {
	return fmt.Errorf("vocoder: PCM frame must be %d samples, got %d", SamplesPerFrame, n)
}

func errCodewordSize(n int) error {
	return fmt.Errorf("vocoder: unexpected codeword length %d", n)
}
