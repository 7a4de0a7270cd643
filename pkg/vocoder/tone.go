package vocoder

import (
	"encoding/binary"
	"math"
)

// Single-tone substitution: page and alert tones riding the voice path are
// detected before encoding and replaced by a deterministic tone codeword
// instead of being vocoded. Framing is unaffected; only the codeword source
// changes.

// toneMarker tags a tone codeword. The software codec's state byte never
// exceeds the step table size, so the marker cannot collide with voice.
const toneMarker = 0xA0

// Tone bins are multiples of 50Hz (frame length 160 at 8kHz)
const toneBinHz = 50.0

// A bin must hold at least this share of the frame energy to count as a
// dominant single tone
const toneDominance = 0.70

// Minimum mean-square level before tone detection engages
const toneLevelFloor = 250000.0

// Tone describes a detected or synthesized single tone
type Tone struct {
	Bin       int // frequency = Bin * 50Hz
	Amplitude int
}

// Frequency returns the tone frequency in Hz
func (t Tone) Frequency() float64 {
	return float64(t.Bin) * toneBinHz
}

// DetectTone inspects one PCM frame for a dominant single tone using a
// Goertzel sweep over the 250-3150Hz voice band
func DetectTone(pcm []int16) (Tone, bool) {
	if len(pcm) != SamplesPerFrame {
		return Tone{}, false
	}

	var energy float64
	for _, s := range pcm {
		energy += float64(s) * float64(s)
	}
	if energy/SamplesPerFrame < toneLevelFloor {
		return Tone{}, false
	}

	bestBin, bestPower := 0, 0.0
	for bin := 5; bin <= 63; bin++ {
		p := goertzel(pcm, bin)
		if p > bestPower {
			bestPower = p
			bestBin = bin
		}
	}

	// for an on-bin sine of amplitude A, power ~= (A*N/2)^2 and the frame
	// energy is A^2*N/2, so this ratio approaches 1
	share := 2 * bestPower / (SamplesPerFrame * energy)
	if share < toneDominance {
		return Tone{}, false
	}

	amp := int(2 * math.Sqrt(bestPower) / SamplesPerFrame)
	return Tone{Bin: bestBin, Amplitude: amp}, true
}

// goertzel computes the squared magnitude of one DFT bin
func goertzel(pcm []int16, bin int) float64 {
	w := 2 * math.Pi * float64(bin) / SamplesPerFrame
	coeff := 2 * math.Cos(w)

	var s0, s1, s2 float64
	for _, x := range pcm {
		s0 = float64(x) + coeff*s1 - s2
		s2 = s1
		s1 = s0
	}
	return s1*s1 + s2*s2 - coeff*s1*s2
}

// ToneCodeword synthesizes the deterministic codeword for a tone
func ToneCodeword(mode Mode, t Tone) []byte {
	cw := make([]byte, mode.CodewordLength())
	cw[0] = toneMarker
	cw[1] = byte(t.Bin)
	binary.BigEndian.PutUint16(cw[2:4], uint16(t.Amplitude))
	return cw
}

// parseToneCodeword recognizes a tone codeword
func parseToneCodeword(cw []byte) (Tone, bool) {
	if len(cw) < 4 || cw[0] != toneMarker {
		return Tone{}, false
	}
	return Tone{
		Bin:       int(cw[1]),
		Amplitude: int(binary.BigEndian.Uint16(cw[2:4])),
	}, true
}

// IsToneCodeword reports whether a codeword carries a substituted tone
func IsToneCodeword(cw []byte) bool {
	_, ok := parseToneCodeword(cw)
	return ok
}

// toneState keeps oscillator phase continuous across decoded tone frames
type toneState struct {
	phase float64
}

// synthesize regenerates one PCM frame of the tone
func (ts *toneState) synthesize(t Tone) []int16 {
	pcm := make([]int16, SamplesPerFrame)
	step := 2 * math.Pi * t.Frequency() / SampleRate

	for i := range pcm {
		pcm[i] = int16(float64(t.Amplitude) * math.Sin(ts.phase))
		ts.phase += step
		if ts.phase > 2*math.Pi {
			ts.phase -= 2 * math.Pi
		}
	}
	return pcm
}
