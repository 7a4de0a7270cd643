// Package audio holds PCM frame helpers and the paced tone/page player.
package audio

import "encoding/binary"

// 20ms frame at 8kHz: 160 samples, 320 bytes little-endian
const (
	SamplesPerFrame = 160
	FrameBytes      = SamplesPerFrame * 2
)

// BytesToSamples converts little-endian 16-bit PCM bytes to samples
func BytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}

// SamplesToBytes converts samples to little-endian 16-bit PCM bytes
func SamplesToBytes(samples []int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	return b
}

// Peak returns the peak absolute amplitude of a frame, for level metering
func Peak(samples []int16) int {
	var peak int
	for _, s := range samples {
		v := int(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}
