package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/exbotanical/seance/internal/protocol"
	"github.com/exbotanical/seance/internal/store"
)

// Origins converts raw config entries into trimmed origins, dropping
// blanks so a stray empty TOML entry never lands in a trust pool.
func Origins(raw []string) []protocol.Origin {
	out := make([]protocol.Origin, 0, len(raw))
	for _, entry := range raw {
		trimmed := strings.TrimSpace(entry)
		if trimmed == "" {
			continue
		}
		out = append(out, protocol.Origin(trimmed))
	}
	return out
}

// OptionalDuration parses a duration string, mapping empty to fallback.
func OptionalDuration(raw string, fallback time.Duration) (time.Duration, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", raw, err)
	}
	return parsed, nil
}

// BuildAdapter constructs the configured store backend. A blank kind
// selects the in-memory adapter.
func BuildAdapter(cfg StoreConfig) (store.Adapter, error) {
	kind := strings.TrimSpace(cfg.Kind)
	if kind == "" {
		kind = "memory"
	}
	return store.Build(kind, store.Options{Root: cfg.Root})
}
