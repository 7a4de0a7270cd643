package vocoder

import (
	"math"
	"testing"
)

func TestDetectTone_SingleTone(t *testing.T) {
	// 1000Hz is bin 20
	pcm := sineFrame(1000, 10000, 0)

	tone, ok := DetectTone(pcm)
	if !ok {
		t.Fatal("pure tone not detected")
	}
	if tone.Bin != 20 {
		t.Errorf("bin: got %d want 20", tone.Bin)
	}
	if tone.Frequency() != 1000 {
		t.Errorf("frequency: got %f want 1000", tone.Frequency())
	}
	if tone.Amplitude < 9000 || tone.Amplitude > 11000 {
		t.Errorf("amplitude estimate %d outside [9000,11000]", tone.Amplitude)
	}
}

func TestDetectTone_RejectsQuietAndComposite(t *testing.T) {
	// below the level floor
	if _, ok := DetectTone(sineFrame(1000, 100, 0)); ok {
		t.Error("quiet frame detected as a tone")
	}

	// silence
	if _, ok := DetectTone(make([]int16, SamplesPerFrame)); ok {
		t.Error("silence detected as a tone")
	}

	// two tones of similar level: no single bin is dominant
	a := sineFrame(1000, 8000, 0)
	b := sineFrame(2150, 8000, 0)
	mixed := make([]int16, SamplesPerFrame)
	for i := range mixed {
		mixed[i] = a[i] + b[i]
	}
	if _, ok := DetectTone(mixed); ok {
		t.Error("two-tone mix detected as a single tone")
	}

	if _, ok := DetectTone(make([]int16, 80)); ok {
		t.Error("wrong frame size accepted")
	}
}

func TestToneCodeword_RoundTrip(t *testing.T) {
	want := Tone{Bin: 31, Amplitude: 12345}

	for _, mode := range []Mode{ModeIMBE, ModeAMBE} {
		cw := ToneCodeword(mode, want)
		if len(cw) != mode.CodewordLength() {
			t.Errorf("%v: codeword length %d", mode, len(cw))
		}
		if !IsToneCodeword(cw) {
			t.Errorf("%v: tone codeword not recognized", mode)
		}

		got, ok := parseToneCodeword(cw)
		if !ok || got != want {
			t.Errorf("%v: got %+v want %+v", mode, got, want)
		}
	}
}

func TestToneCodeword_DistinctFromVoice(t *testing.T) {
	s := NewSoftware(ModeIMBE)
	cw, err := s.Encode(sineFrame(300, 20000, 0))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if IsToneCodeword(cw) {
		t.Error("voice codeword misread as a tone")
	}
}

func TestSoftware_DecodeSynthesizesTone(t *testing.T) {
	dec := NewSoftware(ModeIMBE)
	cw := ToneCodeword(ModeIMBE, Tone{Bin: 20, Amplitude: 10000})

	// phase must be continuous across consecutive frames
	var prev int16
	for frame := 0; frame < 3; frame++ {
		pcm, errs, err := dec.Decode(cw)
		if err != nil {
			t.Fatalf("decode frame %d: %v", frame, err)
		}
		if errs != 0 {
			t.Fatalf("decode frame %d: error count %d", frame, errs)
		}

		tone, ok := DetectTone(pcm)
		if !ok {
			t.Fatalf("frame %d: synthesized tone not detectable", frame)
		}
		if tone.Bin != 20 {
			t.Errorf("frame %d: bin %d want 20", frame, tone.Bin)
		}

		if frame > 0 {
			// 1000Hz advances one full sample step between frames; no jump
			// larger than the maximum per-sample slope can occur
			maxStep := 10000 * 2 * math.Pi * 1000 / SampleRate * 1.1
			if d := math.Abs(float64(pcm[0]) - float64(prev)); d > maxStep {
				t.Errorf("frame %d: phase discontinuity %f", frame, d)
			}
		}
		prev = pcm[SamplesPerFrame-1]
	}
}
