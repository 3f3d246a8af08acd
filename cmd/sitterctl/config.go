package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/exbotanical/seance/internal/protocol"
	"github.com/exbotanical/seance/internal/sitter"
	"github.com/exbotanical/seance/internal/transport/zmqrelay"
)

const defaultRelayConnectAddr = "tcp://127.0.0.1:9690"

// sitterctl config.toml key mapping to sitter runtime settings.
type fileConfig struct {
	Origin            string `toml:"origin"`
	Medium            string `toml:"medium"`
	RelayConnectAddr  string `toml:"relay_connect_addr"`
	SitterID          string `toml:"sitter_id"`
	HeartbeatInterval string `toml:"heartbeat_interval"`
	RequestTimeout    string `toml:"request_timeout"`
}

// runtimeConfig aggregates the sitter settings and the relay connection
// that carries them.
type runtimeConfig struct {
	Sitter sitter.Config
	Relay  zmqrelay.DealerConfig
}

// sitterctl loader for TOML config with default overlay.
func loadRuntimeConfig(path string) (runtimeConfig, error) {
	cfg := runtimeConfig{
		Sitter: sitter.DefaultConfig(),
		Relay: zmqrelay.DealerConfig{
			ConnectAddr: defaultRelayConnectAddr,
		},
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return runtimeConfig{}, fmt.Errorf("load sitter config: %w", err)
	}

	if meta.IsDefined("origin") {
		cfg.Sitter.Origin = protocol.Origin(strings.TrimSpace(raw.Origin))
	}
	if meta.IsDefined("medium") {
		cfg.Sitter.Medium = protocol.Origin(strings.TrimSpace(raw.Medium))
	}
	if meta.IsDefined("relay_connect_addr") {
		cfg.Relay.ConnectAddr = strings.TrimSpace(raw.RelayConnectAddr)
	}
	if meta.IsDefined("sitter_id") {
		cfg.Sitter.SitterID = strings.TrimSpace(raw.SitterID)
	}
	if meta.IsDefined("heartbeat_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.HeartbeatInterval))
		if err != nil {
			return runtimeConfig{}, fmt.Errorf("parse heartbeat_interval: %w", err)
		}
		cfg.Sitter.HeartbeatInterval = d
	}
	if meta.IsDefined("request_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.RequestTimeout))
		if err != nil {
			return runtimeConfig{}, fmt.Errorf("parse request_timeout: %w", err)
		}
		cfg.Sitter.RequestTimeout = d
	}

	if strings.TrimSpace(string(cfg.Sitter.Origin)) == "" {
		return runtimeConfig{}, fmt.Errorf("load sitter config: origin is required")
	}
	if strings.TrimSpace(string(cfg.Sitter.Medium)) == "" {
		return runtimeConfig{}, fmt.Errorf("load sitter config: medium is required")
	}

	// The dealer identity and destination mirror the sitter's own view.
	cfg.Relay.Origin = cfg.Sitter.Origin
	cfg.Relay.Medium = cfg.Sitter.Medium
	return cfg, nil
}
