package store

import (
	"errors"
	"testing"

	"github.com/exbotanical/seance/internal/testutil/testlog"
)

func TestBuildRegisteredKinds(t *testing.T) {
	testlog.Start(t)

	adapter, err := Build("memory", Options{})
	if err != nil {
		t.Fatalf("build memory: %v", err)
	}
	if adapter.Name() != "memory" {
		t.Fatalf("unexpected adapter: %q", adapter.Name())
	}

	adapter, err = Build(" FS ", Options{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("build fs: %v", err)
	}
	if adapter.Name() != "fs" {
		t.Fatalf("unexpected adapter: %q", adapter.Name())
	}
}

func TestBuildUnknownKind(t *testing.T) {
	testlog.Start(t)

	if _, err := Build("parchment", Options{}); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestRegisterFactoryExtendsTable(t *testing.T) {
	testlog.Start(t)

	RegisterFactory("null", func(Options) (Adapter, error) {
		return NewMemory(), nil
	})
	if _, err := Build("null", Options{}); err != nil {
		t.Fatalf("build registered kind: %v", err)
	}

	found := false
	for _, kind := range Kinds() {
		if kind == "null" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected registered kind listed, got %+v", Kinds())
	}
}
