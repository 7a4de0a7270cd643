package config

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Key lengths by algorithm, in bytes
const (
	ARC4KeyLength   = 5
	AES256KeyLength = 32
)

// validate validates the configuration
func validate(cfg *Config) error {
	for name, sys := range cfg.Systems {
		if !sys.Enabled {
			continue
		}

		mode := strings.ToUpper(sys.Mode)
		if mode != "P25" && mode != "DMR" {
			return fmt.Errorf("system %s: invalid mode %s (must be P25 or DMR)", name, sys.Mode)
		}

		if sys.Address == "" {
			return fmt.Errorf("system %s: address is required", name)
		}
		if sys.Port <= 0 || sys.Port > 65535 {
			return fmt.Errorf("system %s: port must be between 1 and 65535", name)
		}
		if sys.PeerID == 0 {
			return fmt.Errorf("system %s: peer_id is required", name)
		}
		if sys.TalkgroupID == 0 {
			return fmt.Errorf("system %s: talkgroup_id is required", name)
		}

		if mode == "DMR" && sys.Timeslot != 1 && sys.Timeslot != 2 {
			return fmt.Errorf("system %s: timeslot must be 1 or 2", name)
		}

		switch strings.ToLower(sys.Algorithm) {
		case "", "none", "arc4", "aes256":
		default:
			return fmt.Errorf("system %s: unknown algorithm %s (must be none, arc4 or aes256)", name, sys.Algorithm)
		}

		switch strings.ToLower(sys.Vocoder) {
		case "", "software":
		case "external":
			if sys.VocoderAddress == "" {
				return fmt.Errorf("system %s: vocoder_address is required for the external vocoder", name)
			}
		default:
			return fmt.Errorf("system %s: unknown vocoder %s (must be software or external)", name, sys.Vocoder)
		}
	}

	seen := make(map[string]bool)
	for i, ch := range cfg.Channels {
		if ch.Name == "" {
			return fmt.Errorf("channel %d: name is required", i)
		}
		if seen[ch.Name] {
			return fmt.Errorf("channel %s: duplicate channel name", ch.Name)
		}
		seen[ch.Name] = true

		if _, exists := cfg.Systems[ch.System]; !exists {
			return fmt.Errorf("channel %s: system %s not found", ch.Name, ch.System)
		}
	}

	for i, key := range cfg.Keys {
		if key.KeyID == 0 {
			return fmt.Errorf("key %d: key_id must be nonzero", i)
		}
		raw, err := hex.DecodeString(key.KeyHex)
		if err != nil {
			return fmt.Errorf("key %d: key_hex is not valid hex", i)
		}
		if len(raw) != ARC4KeyLength && len(raw) != AES256KeyLength {
			return fmt.Errorf("key %d: key must be %d or %d bytes, got %d",
				i, ARC4KeyLength, AES256KeyLength, len(raw))
		}
	}

	if cfg.Events.Enabled {
		if cfg.Events.Port <= 0 || cfg.Events.Port > 65535 {
			return fmt.Errorf("events.port must be between 1 and 65535")
		}
	}

	return nil
}

// KeyBytes decodes the key material of an entry
func (k KeyEntry) KeyBytes() ([]byte, error) {
	return hex.DecodeString(k.KeyHex)
}
