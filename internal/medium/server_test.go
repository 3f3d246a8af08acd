package medium

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/exbotanical/seance/internal/protocol"
	"github.com/exbotanical/seance/internal/store"
	"github.com/exbotanical/seance/internal/testutil/testlog"
)

// scriptedAdapter is a store fake with per-key failure and panic scripting.
type scriptedAdapter struct {
	mu      sync.Mutex
	values  map[string]string
	failOn  map[string]error
	panicOn map[string]struct{}
}

func newScriptedAdapter() *scriptedAdapter {
	return &scriptedAdapter{
		values:  make(map[string]string),
		failOn:  make(map[string]error),
		panicOn: make(map[string]struct{}),
	}
}

func (a *scriptedAdapter) Name() string {
	return "scripted"
}

func (a *scriptedAdapter) Get(key string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.panicOn[key]; ok {
		panic("scripted get panic")
	}
	if err, ok := a.failOn[key]; ok {
		return "", err
	}
	value, ok := a.values[key]
	if !ok {
		return "", store.ErrKeyNotFound
	}
	return value, nil
}

func (a *scriptedAdapter) Set(key, value string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.panicOn[key]; ok {
		panic("scripted set panic")
	}
	if err, ok := a.failOn[key]; ok {
		return err
	}
	a.values[key] = value
	return nil
}

func (a *scriptedAdapter) Delete(key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.panicOn[key]; ok {
		panic("scripted delete panic")
	}
	if err, ok := a.failOn[key]; ok {
		return err
	}
	delete(a.values, key)
	return nil
}

func TestServerIncorporateIdempotent(t *testing.T) {
	testlog.Start(t)

	srv := NewServer([]protocol.Origin{"http://alpha.example"}, newScriptedAdapter())
	first := srv.Incorporate("http://alpha.example", "sitter-1")
	second := srv.Incorporate("http://alpha.example", "sitter-2")

	if srv.CircleSize() != 1 {
		t.Fatalf("unexpected circle size: %d", srv.CircleSize())
	}
	if !second.IncorporatedAt.Equal(first.IncorporatedAt) {
		t.Fatalf("expected first-seen timestamp preserved, first=%v second=%v", first.IncorporatedAt, second.IncorporatedAt)
	}
	if second.SitterID != "sitter-2" {
		t.Fatalf("expected sitter id refreshed, got %q", second.SitterID)
	}
}

func TestServerTrustPoolsAreDisjointChecks(t *testing.T) {
	testlog.Start(t)

	srv := NewServer([]protocol.Origin{"http://alpha.example"}, newScriptedAdapter())
	if !srv.IsInvited("http://alpha.example") {
		t.Fatalf("expected alpha invited")
	}
	if srv.IsInvited("http://mallory.example") {
		t.Fatalf("expected mallory uninvited")
	}
	if srv.IsIncorporated("http://alpha.example") {
		t.Fatalf("expected alpha outside the circle before mount")
	}

	srv.Incorporate("http://alpha.example", "sitter-1")
	if !srv.IsIncorporated("http://alpha.example") {
		t.Fatalf("expected alpha incorporated after mount")
	}

	srv.Dismiss("http://alpha.example")
	if srv.IsIncorporated("http://alpha.example") {
		t.Fatalf("expected alpha dismissed")
	}
	if !srv.IsInvited("http://alpha.example") {
		t.Fatalf("expected dismissal to leave the invited pool intact")
	}
}

func TestServerTouchSyn(t *testing.T) {
	testlog.Start(t)

	srv := NewServer(nil, newScriptedAdapter())
	if srv.TouchSyn("http://ghostly.example") {
		t.Fatalf("expected syn touch to miss an unincorporated origin")
	}

	srv.Incorporate("http://alpha.example", "sitter-1")
	if !srv.TouchSyn("http://alpha.example") {
		t.Fatalf("expected syn touch to land")
	}
	if !srv.TouchSyn("http://alpha.example") {
		t.Fatalf("expected repeated syn touch to land")
	}

	members := srv.SnapshotCircle()
	if len(members) != 1 || members[0].SynCount != 2 {
		t.Fatalf("unexpected syn count snapshot: %+v", members)
	}
}

func TestServerStaleMembersByTolerance(t *testing.T) {
	testlog.Start(t)

	srv := NewServer(nil, newScriptedAdapter())
	srv.Incorporate("http://alpha.example", "sitter-a")
	srv.Incorporate("http://bravo.example", "sitter-b")

	if stale := srv.StaleMembers(0); stale != nil {
		t.Fatalf("expected nil for disabled tolerance, got %+v", stale)
	}
	if stale := srv.StaleMembers(time.Hour); len(stale) != 0 {
		t.Fatalf("expected no stale members under a wide tolerance, got %+v", stale)
	}

	// Let both members age past the tolerance, then revive only bravo.
	time.Sleep(50 * time.Millisecond)
	srv.TouchSyn("http://bravo.example")

	stale := srv.StaleMembers(25 * time.Millisecond)
	if len(stale) != 1 || stale[0].Origin != "http://alpha.example" {
		t.Fatalf("expected only alpha stale, got %+v", stale)
	}
}

func TestServerRunGetIsolatesKeys(t *testing.T) {
	testlog.Start(t)

	adapter := newScriptedAdapter()
	adapter.values["present"] = "42"
	adapter.failOn["broken"] = errors.New("disk on fire")
	srv := NewServer(nil, adapter)

	entries, failures := srv.RunGet([]string{"present", "missing", "broken"})
	if len(entries) != 3 {
		t.Fatalf("unexpected entry count: %d", len(entries))
	}
	if entries[0]["present"] != "42" {
		t.Fatalf("unexpected present entry: %+v", entries[0])
	}
	if value, ok := entries[1]["missing"]; !ok || value != nil {
		t.Fatalf("expected null entry for missing key, got %+v", entries[1])
	}
	if value, ok := entries[2]["broken"]; !ok || value != nil {
		t.Fatalf("expected null entry for broken key, got %+v", entries[2])
	}
	if failures != 1 {
		t.Fatalf("expected one adapter failure, got %d", failures)
	}
}

func TestServerRunSetFailureDoesNotAbortBatch(t *testing.T) {
	testlog.Start(t)

	adapter := newScriptedAdapter()
	adapter.failOn["k"] = errors.New("write rejected")
	srv := NewServer(nil, adapter)

	entries, failures := srv.RunSet([]protocol.Pair{
		{Key: "k", Value: "v"},
		{Key: "ok", Value: "fine"},
	})
	if len(entries) != 2 {
		t.Fatalf("unexpected entry count: %d", len(entries))
	}
	if entries[0]["k"] != false {
		t.Fatalf("expected failed write to report false, got %+v", entries[0])
	}
	if entries[1]["ok"] != true {
		t.Fatalf("expected surviving write to report true, got %+v", entries[1])
	}
	if failures != 1 {
		t.Fatalf("expected one adapter failure, got %d", failures)
	}
	if adapter.values["ok"] != "fine" {
		t.Fatalf("expected surviving write applied, got %q", adapter.values["ok"])
	}
}

func TestServerRunDeleteAggregatesOutcomes(t *testing.T) {
	testlog.Start(t)

	adapter := newScriptedAdapter()
	adapter.values["gone"] = "x"
	adapter.failOn["stuck"] = errors.New("remove rejected")
	srv := NewServer(nil, adapter)

	entries, failures := srv.RunDelete([]string{"gone", "stuck", "never-there"})
	if len(entries) != 3 {
		t.Fatalf("unexpected entry count: %d", len(entries))
	}
	if entries[0]["gone"] != true {
		t.Fatalf("unexpected delete outcome: %+v", entries[0])
	}
	if entries[1]["stuck"] != false {
		t.Fatalf("unexpected delete outcome: %+v", entries[1])
	}
	if entries[2]["never-there"] != true {
		t.Fatalf("expected idempotent delete to report true, got %+v", entries[2])
	}
	if failures != 1 {
		t.Fatalf("expected one adapter failure, got %d", failures)
	}
}

func TestServerAdapterPanicRecovered(t *testing.T) {
	testlog.Start(t)

	adapter := newScriptedAdapter()
	adapter.panicOn["volatile"] = struct{}{}
	srv := NewServer(nil, adapter)

	if _, err := srv.adapterGet("volatile"); !errors.Is(err, ErrAdapterPanic) {
		t.Fatalf("expected ErrAdapterPanic, got %v", err)
	}

	entries, failures := srv.RunSet([]protocol.Pair{{Key: "volatile", Value: "v"}})
	if entries[0]["volatile"] != false {
		t.Fatalf("expected panicking write to report false, got %+v", entries[0])
	}
	if failures != 1 {
		t.Fatalf("expected one adapter failure, got %d", failures)
	}

	entries, failures = srv.RunGet([]string{"volatile"})
	if value, ok := entries[0]["volatile"]; !ok || value != nil {
		t.Fatalf("expected panicking read to report null, got %+v", entries[0])
	}
	if failures != 1 {
		t.Fatalf("expected one adapter failure, got %d", failures)
	}
}

func TestServerSnapshotAndClearCircleSorted(t *testing.T) {
	testlog.Start(t)

	srv := NewServer(nil, newScriptedAdapter())
	srv.Incorporate("http://bravo.example", "sitter-b")
	srv.Incorporate("http://alpha.example", "sitter-a")
	srv.Incorporate("http://charlie.example", "sitter-c")

	snapshot := srv.SnapshotCircle()
	if len(snapshot) != 3 {
		t.Fatalf("unexpected snapshot size: %d", len(snapshot))
	}
	if snapshot[0].Origin != "http://alpha.example" ||
		snapshot[1].Origin != "http://bravo.example" ||
		snapshot[2].Origin != "http://charlie.example" {
		t.Fatalf("expected snapshot sorted by origin, got %+v", snapshot)
	}

	cleared := srv.ClearCircle()
	if len(cleared) != 3 {
		t.Fatalf("unexpected cleared size: %d", len(cleared))
	}
	if cleared[0].Origin != "http://alpha.example" {
		t.Fatalf("expected cleared members sorted, got %+v", cleared)
	}
	if srv.CircleSize() != 0 {
		t.Fatalf("expected empty circle after clear, got %d", srv.CircleSize())
	}
}
