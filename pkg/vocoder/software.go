package vocoder

// Software codec backend: a decimating IMA ADPCM quantizer. The PCM frame
// is decimated to fit 4-bit ADPCM samples plus one state byte into the
// codeword, and interpolated back on decode. Lossy by design; round trips
// reproduce the waveform within codec tolerance, not bit-exactly.

var stepSizeTable = []int{
	7, 8, 9, 10, 11, 12, 13, 14, 16, 17, 19, 21, 23, 25, 28, 31, 34,
	37, 41, 45, 50, 55, 60, 66, 73, 80, 88, 97, 107, 118, 130, 143,
	157, 173, 190, 209, 230, 253, 279, 307, 337, 371, 408, 449, 494,
	544, 598, 658, 724, 796, 876, 963, 1060, 1166, 1282, 1411, 1552,
	1707, 1878, 2066, 2272, 2499, 2749, 3024, 3327, 3660, 4026,
	4428, 4871, 5358, 5894, 6484, 7132, 7845, 8630, 9493, 10442,
	11487, 12635, 13899, 15289, 16818, 18500, 20350, 22385, 24623,
	27086, 29794, 32767,
}

var indexAdjustTable = []int{
	-1, -1, -1, -1,
	2, 4, 6, 8,
	-1, -1, -1, -1,
	2, 4, 6, 8,
}

// Software implements Codec with the decimating ADPCM quantizer
type Software struct {
	mode Mode

	// decimation factor and quantized sample count per frame
	factor  int
	samples int

	// encoder predictor state
	encPrev  int
	encIndex int

	// decoder predictor state
	decPrev  int
	decIndex int
	decLast  int16 // last interpolation anchor from the previous frame

	tone toneState
}

// NewSoftware creates a software codec for the given mode
func NewSoftware(mode Mode) *Software {
	s := &Software{mode: mode}
	if mode == ModeAMBE {
		// 9 bytes: 1 state byte + 16 nibbles
		s.factor = 10
		s.samples = 16
	} else {
		// 11 bytes: 1 state byte + 20 nibbles
		s.factor = 8
		s.samples = 20
	}
	return s
}

// Mode returns the codeword family
func (s *Software) Mode() Mode {
	return s.mode
}

// Encode quantizes one PCM frame into a codeword. The first codeword byte
// carries the encoder's step index so a decoder can re-sync after loss.
func (s *Software) Encode(pcm []int16) ([]byte, error) {
	if len(pcm) != SamplesPerFrame {
		return nil, errFrameSize(len(pcm))
	}

	cw := make([]byte, s.mode.CodewordLength())
	cw[0] = byte(s.encIndex)

	for i := 0; i < s.samples; i++ {
		// boxcar decimation
		var acc int
		for j := 0; j < s.factor; j++ {
			acc += int(pcm[i*s.factor+j])
		}
		nibble := s.encodeNibble(acc / s.factor)

		if i&1 == 0 {
			cw[1+i/2] = nibble << 4
		} else {
			cw[1+i/2] |= nibble
		}
	}

	return cw, nil
}

func (s *Software) encodeNibble(sample int) byte {
	step := stepSizeTable[s.encIndex]
	diff := sample - s.encPrev

	var nibble byte
	if diff < 0 {
		nibble = 8
		diff = -diff
	}

	if diff >= step {
		nibble |= 4
		diff -= step
	}
	if diff >= step/2 {
		nibble |= 2
		diff -= step / 2
	}
	if diff >= step/4 {
		nibble |= 1
	}

	s.encPrev = predict(s.encPrev, nibble, step)
	s.encIndex = adjustIndex(s.encIndex, nibble)
	return nibble
}

// Decode expands a codeword back to one PCM frame. A step-index mismatch
// against the codeword header indicates lost frames; the decoder re-syncs
// and reports it through the error count.
func (s *Software) Decode(cw []byte) ([]int16, int, error) {
	if len(cw) != s.mode.CodewordLength() {
		return nil, 0, errCodewordSize(len(cw))
	}

	if tone, ok := parseToneCodeword(cw); ok {
		return s.tone.synthesize(tone), 0, nil
	}

	errs := 0
	headerIndex := int(cw[0])
	if headerIndex > len(stepSizeTable)-1 {
		headerIndex = len(stepSizeTable) - 1
		errs++
	}
	if headerIndex != s.decIndex {
		s.decIndex = headerIndex
		errs++
	}

	pcm := make([]int16, SamplesPerFrame)
	anchor := s.decLast
	for i := 0; i < s.samples; i++ {
		var nibble byte
		if i&1 == 0 {
			nibble = cw[1+i/2] >> 4
		} else {
			nibble = cw[1+i/2] & 0x0F
		}

		step := stepSizeTable[s.decIndex]
		s.decPrev = predict(s.decPrev, nibble, step)
		s.decIndex = adjustIndex(s.decIndex, nibble)

		// linear interpolation up to the frame rate
		target := int16(s.decPrev)
		for j := 0; j < s.factor; j++ {
			frac := j + 1
			pcm[i*s.factor+j] = int16(int(anchor) + (int(target)-int(anchor))*frac/s.factor)
		}
		anchor = target
	}
	s.decLast = anchor

	return pcm, errs, nil
}

func predict(prev int, nibble byte, step int) int {
	delta := step >> 3
	if nibble&4 != 0 {
		delta += step
	}
	if nibble&2 != 0 {
		delta += step >> 1
	}
	if nibble&1 != 0 {
		delta += step >> 2
	}

	if nibble&8 != 0 {
		prev -= delta
	} else {
		prev += delta
	}

	if prev > 32767 {
		prev = 32767
	} else if prev < -32768 {
		prev = -32768
	}
	return prev
}

func adjustIndex(index int, nibble byte) int {
	index += indexAdjustTable[nibble&0x0F]
	if index < 0 {
		index = 0
	} else if index > len(stepSizeTable)-1 {
		index = len(stepSizeTable) - 1
	}
	return index
}
