package crypto

import "sync"

// keyIndex addresses one piece of key material
type keyIndex struct {
	algID uint8
	keyID uint16
}

// KeyStore is an in-memory KeyProvider. Keys are loaded at startup and
// may be replaced at runtime; lookups happen on every superframe, so the
// store is safe for concurrent use.
type KeyStore struct {
	mu   sync.RWMutex
	keys map[keyIndex][]byte
}

// NewKeyStore creates an empty key store
func NewKeyStore() *KeyStore {
	return &KeyStore{keys: make(map[keyIndex][]byte)}
}

// Add stores key material for (algID, keyID), replacing any previous entry
func (s *KeyStore) Add(algID uint8, keyID uint16, key []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := make([]byte, len(key))
	copy(k, key)
	s.keys[keyIndex{algID, keyID}] = k
}

// Key implements KeyProvider
func (s *KeyStore) Key(algID uint8, keyID uint16) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[keyIndex{algID, keyID}]
	return key, ok
}

// Len returns the number of loaded keys
func (s *KeyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}
