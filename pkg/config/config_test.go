package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func validSystem() SystemConfig {
	return SystemConfig{
		Enabled:     true,
		Mode:        "P25",
		Address:     "10.0.0.1",
		Port:        62031,
		PeerID:      312000,
		TalkgroupID: 500,
	}
}

func TestLoad_UsesDefaults_WhenNoFile(t *testing.T) {
	// Reset viper to avoid cross-test pollution
	viper.Reset()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	// Spot-check a few defaults
	if cfg.History.Enabled != true {
		t.Errorf("expected History.Enabled default true, got %v", cfg.History.Enabled)
	}
	if cfg.History.Path == "" {
		t.Errorf("expected History.Path to be set")
	}
	if cfg.Logging.Level == "" {
		t.Errorf("expected Logging.Level to be set (default info)")
	}
}

func TestLoad_FromFile(t *testing.T) {
	viper.Reset()

	yaml := `
systems:
  west:
    enabled: true
    mode: P25
    address: 10.0.0.1
    port: 62031
    peer_id: 312000
    talkgroup_id: 500
    algorithm: arc4
    key_id: 1
  east:
    enabled: true
    mode: DMR
    address: 10.0.0.2
    port: 62032
    peer_id: 312001
    talkgroup_id: 9
    timeslot: 2
channels:
  - name: West Dispatch
    system: west
  - name: East Dispatch
    system: east
keys:
  - alg_id: 170
    key_id: 1
    key_hex: "deadbeef01"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if len(cfg.Systems) != 2 {
		t.Fatalf("expected 2 systems, got %d", len(cfg.Systems))
	}
	west := cfg.Systems["west"]
	if west.Mode != "P25" || west.TalkgroupID != 500 || west.Algorithm != "arc4" {
		t.Errorf("west system misparsed: %+v", west)
	}
	east := cfg.Systems["east"]
	if east.Mode != "DMR" || east.Timeslot != 2 {
		t.Errorf("east system misparsed: %+v", east)
	}
	if len(cfg.Channels) != 2 || cfg.Channels[0].System != "west" {
		t.Errorf("channels misparsed: %+v", cfg.Channels)
	}
	if len(cfg.Keys) != 1 {
		t.Fatalf("expected 1 key, got %d", len(cfg.Keys))
	}
	raw, err := cfg.Keys[0].KeyBytes()
	if err != nil {
		t.Fatalf("KeyBytes: %v", err)
	}
	if len(raw) != ARC4KeyLength {
		t.Errorf("key length %d want %d", len(raw), ARC4KeyLength)
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Run("invalid mode", func(t *testing.T) {
		sys := validSystem()
		sys.Mode = "NXDN"
		cfg := &Config{Systems: map[string]SystemConfig{"a": sys}}
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for unknown mode")
		}
	})

	t.Run("missing peer_id", func(t *testing.T) {
		sys := validSystem()
		sys.PeerID = 0
		cfg := &Config{Systems: map[string]SystemConfig{"a": sys}}
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for missing peer_id")
		}
	})

	t.Run("DMR timeslot out of range", func(t *testing.T) {
		sys := validSystem()
		sys.Mode = "DMR"
		sys.Timeslot = 3
		cfg := &Config{Systems: map[string]SystemConfig{"a": sys}}
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for timeslot 3")
		}
	})

	t.Run("unknown algorithm", func(t *testing.T) {
		sys := validSystem()
		sys.Algorithm = "des"
		cfg := &Config{Systems: map[string]SystemConfig{"a": sys}}
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for unknown algorithm")
		}
	})

	t.Run("external vocoder needs address", func(t *testing.T) {
		sys := validSystem()
		sys.Vocoder = "external"
		cfg := &Config{Systems: map[string]SystemConfig{"a": sys}}
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for external vocoder without address")
		}
	})

	t.Run("duplicate channel names", func(t *testing.T) {
		cfg := &Config{
			Systems: map[string]SystemConfig{"a": validSystem()},
			Channels: []ChannelConfig{
				{Name: "Dispatch", System: "a"},
				{Name: "Dispatch", System: "a"},
			},
		}
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for duplicate channel name")
		}
	})

	t.Run("channel references unknown system", func(t *testing.T) {
		cfg := &Config{
			Systems:  map[string]SystemConfig{"a": validSystem()},
			Channels: []ChannelConfig{{Name: "Dispatch", System: "b"}},
		}
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for unknown system reference")
		}
	})

	t.Run("bad key hex", func(t *testing.T) {
		cfg := &Config{Keys: []KeyEntry{{AlgID: 0xAA, KeyID: 1, KeyHex: "zz"}}}
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for invalid key hex")
		}
	})

	t.Run("wrong key length", func(t *testing.T) {
		cfg := &Config{Keys: []KeyEntry{{AlgID: 0xAA, KeyID: 1, KeyHex: "deadbeef"}}}
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for 4-byte key")
		}
	})

	t.Run("valid config passes", func(t *testing.T) {
		cfg := &Config{
			Systems:  map[string]SystemConfig{"a": validSystem()},
			Channels: []ChannelConfig{{Name: "Dispatch", System: "a"}},
			Keys:     []KeyEntry{{AlgID: 0xAA, KeyID: 1, KeyHex: "deadbeef01"}},
		}
		if err := validate(cfg); err != nil {
			t.Fatalf("valid config rejected: %v", err)
		}
	})
}
