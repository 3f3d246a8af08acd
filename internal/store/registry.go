package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var ErrUnknownKind = errors.New("store: unknown adapter kind")

// Options carries construction settings shared by every adapter kind.
// Kinds ignore the fields they have no use for.
type Options struct {
	// Root is the sandbox directory for filesystem-backed adapters.
	Root string
}

// Factory builds one adapter from shared options.
type Factory func(opts Options) (Adapter, error)

var (
	factoryMu sync.RWMutex
	factories = map[string]Factory{}
)

// RegisterFactory binds an adapter kind to its constructor. Later
// registrations replace earlier ones; kinds compare case-insensitively.
func RegisterFactory(kind string, factory Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[normalizeKind(kind)] = factory
}

// Build resolves kind through the factory table and constructs the
// adapter. The configured backend of a medium deployment goes through
// here, so an unknown kind must fail loudly rather than fall back.
func Build(kind string, opts Options) (Adapter, error) {
	factoryMu.RLock()
	factory, ok := factories[normalizeKind(kind)]
	factoryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %s)", ErrUnknownKind, kind, strings.Join(Kinds(), ", "))
	}
	return factory(opts)
}

// Kinds lists the registered adapter kinds sorted by name.
func Kinds() []string {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	out := make([]string, 0, len(factories))
	for kind := range factories {
		out = append(out, kind)
	}
	sort.Strings(out)
	return out
}

func normalizeKind(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}

func init() {
	RegisterFactory("memory", func(Options) (Adapter, error) {
		return NewMemory(), nil
	})
	RegisterFactory("fs", func(opts Options) (Adapter, error) {
		return NewFS(opts.Root)
	})
}
