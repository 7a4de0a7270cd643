package crypto

import "encoding/binary"

// The 64-bit linear feedback shift register that advances the message
// indicator between superframes. Taps at positions 64, 62, 46, 38, 27 and
// 15. Both ends run the same transform, which keeps keystreams aligned
// without retransmitting a fresh MI every superframe.

// lfsrStep advances the register by one bit
func lfsrStep(reg uint64) uint64 {
	feedback := ((reg >> 63) ^ (reg >> 61) ^ (reg >> 45) ^ (reg >> 37) ^ (reg >> 26) ^ (reg >> 14)) & 1
	return reg<<1 | feedback
}

// CycleMI applies the LFSR transform to a 9-byte message indicator and
// returns the successor. Pure function of its input: the register is the
// first 8 bytes, advanced 64 steps; the ninth byte is cleared.
func CycleMI(mi []byte) [MILength]byte {
	var out [MILength]byte
	if len(mi) < 8 {
		return out
	}

	reg := binary.BigEndian.Uint64(mi[:8])
	for i := 0; i < 64; i++ {
		reg = lfsrStep(reg)
	}

	binary.BigEndian.PutUint64(out[:8], reg)
	out[8] = 0
	return out
}

// expandMI stretches a 9-byte MI into a 16-byte initialization vector by
// continuing the LFSR past the register contents
func expandMI(mi []byte) [16]byte {
	var iv [16]byte
	copy(iv[:8], mi[:8])

	reg := binary.BigEndian.Uint64(mi[:8])
	for i := 0; i < 64; i++ {
		reg = lfsrStep(reg)
	}
	binary.BigEndian.PutUint64(iv[8:], reg)
	return iv
}
