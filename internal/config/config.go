// Package config owns the TOML schemas shared by the seance binaries and
// the template generator. Loaders apply defaults and validate so every
// consumer sees the same rules.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/exbotanical/seance/internal/store"
	"github.com/pelletier/go-toml/v2"
)

// MediumConfig is the medium config.toml schema. Durations are strings in
// time.ParseDuration notation ("15s", "2m").
type MediumConfig struct {
	Node               string      `toml:"node"`
	Origin             string      `toml:"origin"`
	RelayListenAddr    string      `toml:"relay_listen_addr"`
	AdminListenAddr    string      `toml:"admin_listen_addr"`
	AdminCORSOrigins   []string    `toml:"admin_cors_origins"`
	AdminToken         string      `toml:"admin_token"`
	Invited            []string    `toml:"invited"`
	HeartbeatTolerance string      `toml:"heartbeat_tolerance"`
	StatusInterval     string      `toml:"status_interval"`
	Store              StoreConfig `toml:"store"`
}

// StoreConfig selects and parameterizes the medium's backing adapter.
type StoreConfig struct {
	Kind string `toml:"kind"`
	Root string `toml:"root"`
}

// SitterConfig is the sitter config.toml schema.
type SitterConfig struct {
	Origin            string `toml:"origin"`
	Medium            string `toml:"medium"`
	RelayConnectAddr  string `toml:"relay_connect_addr"`
	SitterID          string `toml:"sitter_id"`
	HeartbeatInterval string `toml:"heartbeat_interval"`
	RequestTimeout    string `toml:"request_timeout"`
}

func LoadMediumConfig(path string) (MediumConfig, error) {
	var cfg MediumConfig
	if err := loadToml(path, &cfg); err != nil {
		return MediumConfig{}, err
	}
	if cfg.Node == "" {
		cfg.Node = "medium.local"
	}
	if cfg.RelayListenAddr == "" {
		cfg.RelayListenAddr = "tcp://127.0.0.1:9690"
	}
	if cfg.Store.Kind == "" {
		cfg.Store.Kind = "memory"
	}
	if err := ValidateMediumConfig(cfg); err != nil {
		return MediumConfig{}, err
	}
	return cfg, nil
}

func LoadSitterConfig(path string) (SitterConfig, error) {
	var cfg SitterConfig
	if err := loadToml(path, &cfg); err != nil {
		return SitterConfig{}, err
	}
	if cfg.RelayConnectAddr == "" {
		cfg.RelayConnectAddr = "tcp://127.0.0.1:9690"
	}
	if err := ValidateSitterConfig(cfg); err != nil {
		return SitterConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateMediumConfig(cfg MediumConfig) error {
	if strings.TrimSpace(cfg.Origin) == "" {
		return fmt.Errorf("medium config missing origin")
	}
	if strings.TrimSpace(cfg.RelayListenAddr) == "" {
		return fmt.Errorf("medium config missing relay_listen_addr")
	}
	if len(Origins(cfg.Invited)) == 0 {
		return fmt.Errorf("medium config needs at least one invited origin")
	}
	if _, err := OptionalDuration(cfg.HeartbeatTolerance, 0); err != nil {
		return fmt.Errorf("medium config heartbeat_tolerance invalid: %w", err)
	}
	if _, err := OptionalDuration(cfg.StatusInterval, 0); err != nil {
		return fmt.Errorf("medium config status_interval invalid: %w", err)
	}
	if err := ValidateStoreConfig(cfg.Store); err != nil {
		return fmt.Errorf("medium config store invalid: %w", err)
	}
	return nil
}

func ValidateStoreConfig(cfg StoreConfig) error {
	kind := strings.ToLower(strings.TrimSpace(cfg.Kind))
	if kind == "" {
		kind = "memory"
	}
	registered := store.Kinds()
	known := false
	for _, candidate := range registered {
		if candidate == kind {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown store kind %q (registered: %s)", cfg.Kind, strings.Join(registered, ", "))
	}
	if kind == "fs" && strings.TrimSpace(cfg.Root) == "" {
		return fmt.Errorf("store kind fs requires root")
	}
	return nil
}

func ValidateSitterConfig(cfg SitterConfig) error {
	if strings.TrimSpace(cfg.Origin) == "" {
		return fmt.Errorf("sitter config missing origin")
	}
	if strings.TrimSpace(cfg.Medium) == "" {
		return fmt.Errorf("sitter config missing medium")
	}
	if strings.TrimSpace(cfg.RelayConnectAddr) == "" {
		return fmt.Errorf("sitter config missing relay_connect_addr")
	}
	if _, err := OptionalDuration(cfg.HeartbeatInterval, 0); err != nil {
		return fmt.Errorf("sitter config heartbeat_interval invalid: %w", err)
	}
	if _, err := OptionalDuration(cfg.RequestTimeout, 0); err != nil {
		return fmt.Errorf("sitter config request_timeout invalid: %w", err)
	}
	return nil
}
