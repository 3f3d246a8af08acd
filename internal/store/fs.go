package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrInvalidRoot = errors.New("store: invalid fs root")

// FS persists one file per key under a sandboxed root directory. Keys may
// contain path separators; escapes past the root are rejected.
type FS struct {
	root string
}

var _ Adapter = (*FS)(nil)

func NewFS(root string) (*FS, error) {
	resolved := strings.TrimSpace(root)
	if resolved == "" {
		return nil, ErrInvalidRoot
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}
	return &FS{root: abs}, nil
}

func (f *FS) Name() string {
	return "fs"
}

func (f *FS) Get(key string) (string, error) {
	p, err := f.resolveKey(key)
	if err != nil {
		return "", err
	}
	out, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrKeyNotFound
		}
		return "", err
	}
	return string(out), nil
}

func (f *FS) Set(key string, value string) error {
	p, err := f.resolveKey(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, []byte(value), 0o644)
}

func (f *FS) Delete(key string) error {
	p, err := f.resolveKey(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (f *FS) resolveKey(key string) (string, error) {
	rel := strings.TrimSpace(key)
	if rel == "" {
		return "", ErrEmptyKey
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("store: absolute key not allowed")
	}
	p := filepath.Clean(filepath.Join(f.root, rel))
	if !underRoot(p, f.root) {
		return "", fmt.Errorf("store: key escapes root")
	}
	return p, nil
}

// underRoot reports whether p stays inside root. The root itself counts.
func underRoot(p string, root string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}
