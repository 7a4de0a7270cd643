package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rc4"
	"fmt"
)

// Keystream geometry. One generated stream covers a full LDU1/LDU2 pair:
// the voice region starts at byte 267, each codeword consumes 11 bytes,
// and LDU2 codewords continue 101 bytes past their LDU1 counterparts.
const (
	keystreamLength = 469
	voiceOffset     = 267
	ldu2Offset      = 101
	codewordStride  = 11
)

// adpKeystream generates the ARC4 (ADP) keystream. The RC4 seed is the
// 5-byte key followed by the first 8 MI bytes.
func adpKeystream(key, mi []byte) ([]byte, error) {
	if len(mi) < 8 {
		return nil, fmt.Errorf("crypto: MI too short for ARC4 seed")
	}

	seed := make([]byte, 0, 13)
	if len(key) < 5 {
		// short keys are left-padded with zeros
		seed = append(seed, make([]byte, 5-len(key))...)
		seed = append(seed, key...)
	} else {
		seed = append(seed, key[:5]...)
	}
	seed = append(seed, mi[:8]...)

	c, err := rc4.NewCipher(seed)
	if err != nil {
		return nil, fmt.Errorf("crypto: %w", err)
	}

	ks := make([]byte, keystreamLength)
	c.XORKeyStream(ks, ks)
	return ks, nil
}

// aesKeystream generates the AES-256-OFB keystream. The IV is the MI
// expanded to 16 bytes through the LFSR.
func aesKeystream(key, mi []byte) ([]byte, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("crypto: AES-256 key must be 32 bytes, got %d", len(key))
	}
	if len(mi) < 8 {
		return nil, fmt.Errorf("crypto: MI too short for AES IV")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: %w", err)
	}

	iv := expandMI(mi)
	ks := make([]byte, keystreamLength)
	cipher.NewOFB(block, iv[:]).XORKeyStream(ks, ks)
	return ks, nil
}
