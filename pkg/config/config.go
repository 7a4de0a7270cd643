package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Systems  map[string]SystemConfig `mapstructure:"systems"`
	Channels []ChannelConfig         `mapstructure:"channels"`
	Keys     []KeyEntry              `mapstructure:"keys"`
	History  HistoryConfig           `mapstructure:"history"`
	Events   EventsConfig            `mapstructure:"events"`
	Logging  LoggingConfig           `mapstructure:"logging"`
}

// SystemConfig describes one network system the console connects to
type SystemConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Mode    string `mapstructure:"mode"` // P25 or DMR
	Address string `mapstructure:"address"`
	Port    int    `mapstructure:"port"`
	PeerID  uint32 `mapstructure:"peer_id"` // our radio ID on this system

	// Call addressing
	TalkgroupID uint32 `mapstructure:"talkgroup_id"`
	Timeslot    int    `mapstructure:"timeslot"` // DMR only, 1 or 2

	// Encryption
	Algorithm string `mapstructure:"algorithm"` // none, arc4, aes256
	KeyID     uint16 `mapstructure:"key_id"`

	// Vocoder backend
	Vocoder        string `mapstructure:"vocoder"` // software or external
	VocoderAddress string `mapstructure:"vocoder_address"`
}

// ChannelConfig binds a monitored channel to a system
type ChannelConfig struct {
	Name   string `mapstructure:"name"`
	System string `mapstructure:"system"`
}

// KeyEntry holds one piece of key material, addressed by (alg_id, key_id)
type KeyEntry struct {
	AlgID  uint8  `mapstructure:"alg_id"`
	KeyID  uint16 `mapstructure:"key_id"`
	KeyHex string `mapstructure:"key_hex"`
}

// HistoryConfig holds call-history store configuration
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// EventsConfig holds the websocket event feed configuration
type EventsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configFile string) (*Config, error) {
	setDefaults()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath("/etc/dvmconsole")
	}

	viper.SetEnvPrefix("DVM")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is OK, use defaults
		} else if os.IsNotExist(err) {
			// File explicitly specified but doesn't exist - that's also OK
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("history.enabled", true)
	viper.SetDefault("history.path", "dvmconsole.db")

	viper.SetDefault("events.enabled", false)
	viper.SetDefault("events.host", "127.0.0.1")
	viper.SetDefault("events.port", 8180)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
}
