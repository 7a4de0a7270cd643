// Package crypto applies per-channel voice keystreams and manages the
// message indicator lifecycle for encrypted calls.
package crypto

import (
	"errors"
)

// MILength is the message indicator size in bytes
const MILength = 9

// Encryption algorithm IDs
const (
	AlgoUnencrypted uint8 = 0x80
	AlgoAES256      uint8 = 0x84
	AlgoARC4        uint8 = 0xAA
)

// FrameRole identifies which half of the superframe a codeword belongs to.
// Keystream offsets depend on it so alignment survives LDU1/LDU2 switches.
type FrameRole int

const (
	RoleLDU1 FrameRole = iota
	RoleLDU2
)

// ErrNoKey reports that key material for the requested (algID, keyID) pair
// is not loaded. The condition is not fatal: the engine stays usable and
// processing proceeds as a no-op rather than stalling transmission.
var ErrNoKey = errors.New("crypto: no key loaded")

// KeyProvider resolves raw key material by algorithm and key ID
type KeyProvider interface {
	Key(algID uint8, keyID uint16) ([]byte, bool)
}

// Engine holds the keystream state of one channel. Engines are per-channel
// and never shared; the owning channel serializes access.
type Engine struct {
	keys KeyProvider

	algID uint8
	keyID uint16
	mi    [MILength]byte

	keystream []byte
	noKey     bool
}

// NewEngine creates an engine backed by the given key provider
func NewEngine(keys KeyProvider) *Engine {
	return &Engine{keys: keys, algID: AlgoUnencrypted}
}

// Prepare re-seeds the keystream for new encryption parameters. The re-seed
// is deterministic: the same (algID, keyID, mi) always yields the same
// stream. A missing key records the no-key condition and returns ErrNoKey
// while leaving prior state untouched.
func (e *Engine) Prepare(algID uint8, keyID uint16, mi []byte) error {
	if algID == AlgoUnencrypted || algID == 0 || keyID == 0 {
		e.algID = algID
		e.keyID = keyID
		copy(e.mi[:], mi)
		e.keystream = nil
		e.noKey = false
		return nil
	}

	key, ok := e.keys.Key(algID, keyID)
	if !ok {
		e.noKey = true
		return ErrNoKey
	}

	var (
		ks  []byte
		err error
	)
	switch algID {
	case AlgoARC4:
		ks, err = adpKeystream(key, mi)
	case AlgoAES256:
		ks, err = aesKeystream(key, mi)
	default:
		// unknown algorithm: treat as clear rather than blocking the call
		e.algID = algID
		e.keyID = keyID
		copy(e.mi[:], mi)
		e.keystream = nil
		e.noKey = false
		return nil
	}
	if err != nil {
		return err
	}

	e.algID = algID
	e.keyID = keyID
	copy(e.mi[:], mi)
	e.keystream = ks
	e.noKey = false
	return nil
}

// Process applies the keystream to a codeword in place. role and block
// select the keystream window: block is the codeword position within the
// half superframe (0-8). With no keystream prepared this is a no-op.
func (e *Engine) Process(cw []byte, role FrameRole, block int) {
	if e.keystream == nil || block < 0 || block > 8 {
		return
	}

	offset := voiceOffset + block*codewordStride
	if role == RoleLDU2 {
		offset += ldu2Offset
	}
	if offset+len(cw) > len(e.keystream) {
		return
	}

	for i := range cw {
		cw[i] ^= e.keystream[offset+i]
	}
}

// Cycle advances the engine's MI through the LFSR and re-seeds. Called
// outbound after the last LDU2 block, and inbound when a decode-error
// indication suggests the network MI slipped.
func (e *Engine) Cycle() error {
	next := CycleMI(e.mi[:])
	return e.Prepare(e.algID, e.keyID, next[:])
}

// MI returns the engine's current message indicator
func (e *Engine) MI() [MILength]byte {
	return e.mi
}

// AlgID returns the active algorithm ID
func (e *Engine) AlgID() uint8 {
	return e.algID
}

// KeyID returns the active key ID
func (e *Engine) KeyID() uint16 {
	return e.keyID
}

// NoKey reports the no-key condition recorded by the last Prepare
func (e *Engine) NoKey() bool {
	return e.noKey
}
