package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/exbotanical/seance/internal/config"
	"github.com/exbotanical/seance/internal/medium"
	"github.com/exbotanical/seance/internal/protocol"
	"github.com/exbotanical/seance/internal/transport/zmqrelay"
)

const defaultRelayListenAddr = "tcp://127.0.0.1:9690"

// mediumctl config.toml key mapping to medium runtime settings.
type fileConfig struct {
	Node               string          `toml:"node"`
	Origin             string          `toml:"origin"`
	RelayListenAddr    string          `toml:"relay_listen_addr"`
	AdminListenAddr    string          `toml:"admin_listen_addr"`
	AdminCORSOrigins   []string        `toml:"admin_cors_origins"`
	AdminToken         string          `toml:"admin_token"`
	Invited            []string        `toml:"invited"`
	HeartbeatTolerance string          `toml:"heartbeat_tolerance"`
	StatusInterval     string          `toml:"status_interval"`
	Store              fileStoreConfig `toml:"store"`
}

type fileStoreConfig struct {
	Kind string `toml:"kind"`
	Root string `toml:"root"`
}

// runtimeConfig aggregates everything main needs to assemble the medium:
// service settings, the relay binding, and the store selection.
type runtimeConfig struct {
	Service medium.ServiceConfig
	Relay   zmqrelay.RouterConfig
	Store   config.StoreConfig
}

// mediumctl loader for TOML config with default overlay.
func loadRuntimeConfig(path string) (runtimeConfig, error) {
	cfg := runtimeConfig{
		Service: medium.DefaultServiceConfig(),
		Relay: zmqrelay.RouterConfig{
			ListenAddr: defaultRelayListenAddr,
		},
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return runtimeConfig{}, fmt.Errorf("load medium config: %w", err)
	}

	if meta.IsDefined("node") {
		node := strings.TrimSpace(raw.Node)
		if node != "" {
			cfg.Service.Node = node
		}
	}
	if meta.IsDefined("origin") {
		cfg.Relay.Origin = protocol.Origin(strings.TrimSpace(raw.Origin))
	}
	if meta.IsDefined("relay_listen_addr") {
		cfg.Relay.ListenAddr = strings.TrimSpace(raw.RelayListenAddr)
	}
	if meta.IsDefined("admin_listen_addr") {
		cfg.Service.AdminListenAddr = strings.TrimSpace(raw.AdminListenAddr)
	}
	if meta.IsDefined("admin_cors_origins") {
		cfg.Service.AdminCORSOrigins = raw.AdminCORSOrigins
	}
	if meta.IsDefined("admin_token") {
		cfg.Service.AdminToken = strings.TrimSpace(raw.AdminToken)
	}
	if meta.IsDefined("invited") {
		cfg.Service.Invited = config.Origins(raw.Invited)
	}
	if meta.IsDefined("heartbeat_tolerance") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.HeartbeatTolerance))
		if err != nil {
			return runtimeConfig{}, fmt.Errorf("parse heartbeat_tolerance: %w", err)
		}
		cfg.Service.HeartbeatTolerance = d
	}
	if meta.IsDefined("status_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.StatusInterval))
		if err != nil {
			return runtimeConfig{}, fmt.Errorf("parse status_interval: %w", err)
		}
		cfg.Service.StatusInterval = d
	}
	if meta.IsDefined("store", "kind") {
		cfg.Store.Kind = strings.TrimSpace(raw.Store.Kind)
	}
	if meta.IsDefined("store", "root") {
		cfg.Store.Root = strings.TrimSpace(raw.Store.Root)
	}

	if strings.TrimSpace(string(cfg.Relay.Origin)) == "" {
		return runtimeConfig{}, fmt.Errorf("load medium config: origin is required")
	}
	if len(cfg.Service.Invited) == 0 {
		return runtimeConfig{}, fmt.Errorf("load medium config: at least one invited origin is required")
	}
	return cfg, nil
}
