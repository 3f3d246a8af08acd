package medium

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/exbotanical/seance/internal/protocol"
	"github.com/exbotanical/seance/internal/store"
)

var ErrAdapterPanic = errors.New("medium: adapter panic")

// Member is the observed membership state for one incorporated origin.
type Member struct {
	Origin         protocol.Origin
	SitterID       string
	IncorporatedAt time.Time
	LastSeenAt     time.Time
	SynCount       uint64
}

// Stale reports whether the member has been silent longer than tolerance.
// A non-positive tolerance disables staleness tracking.
func (m Member) Stale(tolerance time.Duration) bool {
	if tolerance <= 0 {
		return false
	}
	return time.Since(m.LastSeenAt) > tolerance
}

// Server owns the circle of incorporated origins and the store dispatch
// boundary. Trust checks ride transport-stamped origins only; payload
// claims never reach them.
type Server struct {
	mu      sync.RWMutex
	invited map[protocol.Origin]struct{}
	circle  map[protocol.Origin]*Member

	adapter store.Adapter
}

// NewServer constructs medium state with a fixed invited pool and one
// backing adapter.
func NewServer(invited []protocol.Origin, adapter store.Adapter) *Server {
	pool := make(map[protocol.Origin]struct{}, len(invited))
	for _, origin := range invited {
		pool[origin] = struct{}{}
	}
	return &Server{
		invited: pool,
		circle:  make(map[protocol.Origin]*Member),
		adapter: adapter,
	}
}

// IsInvited reports whether origin belongs to the configured candidate pool.
func (s *Server) IsInvited(origin protocol.Origin) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.invited[origin]
	return ok
}

// IsIncorporated reports whether origin is currently in the circle.
func (s *Server) IsIncorporated(origin protocol.Origin) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.circle[origin]
	return ok
}

// Incorporate adds origin to the circle. Re-incorporation keeps first-seen
// metadata and refreshes the sitter id; it is safe to repeat.
func (s *Server) Incorporate(origin protocol.Origin, sitterID string) Member {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	member, ok := s.circle[origin]
	if !ok {
		member = &Member{Origin: origin, IncorporatedAt: now}
		s.circle[origin] = member
	}
	member.SitterID = sitterID
	member.LastSeenAt = now
	return *member
}

// Dismiss removes origin from the circle.
func (s *Server) Dismiss(origin protocol.Origin) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.circle, origin)
}

// TouchSyn bumps heartbeat counters for an incorporated origin.
func (s *Server) TouchSyn(origin protocol.Origin) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	member, ok := s.circle[origin]
	if !ok {
		return false
	}
	member.LastSeenAt = time.Now()
	member.SynCount++
	return true
}

// SnapshotCircle returns observed membership state for all incorporated
// origins, sorted by origin. Entries are copies.
func (s *Server) SnapshotCircle() []Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Member, 0, len(s.circle))
	for _, member := range s.circle {
		out = append(out, *member)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Origin < out[j].Origin
	})
	return out
}

// CircleSize returns the current number of incorporated origins.
func (s *Server) CircleSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.circle)
}

// StaleMembers returns members whose last heartbeat is older than tolerance,
// sorted by origin. Staleness is observational; silent members stay in the
// circle until they unmount or the channel closes.
func (s *Server) StaleMembers(tolerance time.Duration) []Member {
	if tolerance <= 0 {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Member, 0, len(s.circle))
	for _, member := range s.circle {
		if member.Stale(tolerance) {
			out = append(out, *member)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Origin < out[j].Origin
	})
	return out
}

// ClearCircle empties the roster and returns the dismissed members.
func (s *Server) ClearCircle() []Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Member, 0, len(s.circle))
	for _, member := range s.circle {
		out = append(out, *member)
	}
	s.circle = make(map[protocol.Origin]*Member)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Origin < out[j].Origin
	})
	return out
}

// RunGet executes per-key reads in batch order. Missing keys and failed
// reads both surface as null values; the failure count excludes plain
// missing keys.
func (s *Server) RunGet(keys []string) ([]map[string]any, int) {
	entries := make([]map[string]any, 0, len(keys))
	failures := 0
	for _, key := range keys {
		value, err := s.adapterGet(key)
		if err != nil {
			if !errors.Is(err, store.ErrKeyNotFound) {
				failures++
			}
			entries = append(entries, map[string]any{key: nil})
			continue
		}
		entries = append(entries, map[string]any{key: value})
	}
	return entries, failures
}

// RunSet executes per-pair writes in batch order, one boolean outcome per
// pair. A failed write never aborts the rest of the batch.
func (s *Server) RunSet(pairs []protocol.Pair) ([]map[string]any, int) {
	entries := make([]map[string]any, 0, len(pairs))
	failures := 0
	for _, pair := range pairs {
		err := s.adapterSet(pair.Key, pair.Value)
		if err != nil {
			failures++
		}
		entries = append(entries, map[string]any{pair.Key: err == nil})
	}
	return entries, failures
}

// RunDelete executes per-key removals in batch order, one boolean outcome
// per key.
func (s *Server) RunDelete(keys []string) ([]map[string]any, int) {
	entries := make([]map[string]any, 0, len(keys))
	failures := 0
	for _, key := range keys {
		err := s.adapterDelete(key)
		if err != nil {
			failures++
		}
		entries = append(entries, map[string]any{key: err == nil})
	}
	return entries, failures
}

// Adapter calls run behind panic recovery so one misbehaving key cannot
// take down the dispatch loop or its batch.

func (s *Server) adapterGet(key string) (value string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrAdapterPanic, r)
		}
	}()
	return s.adapter.Get(key)
}

func (s *Server) adapterSet(key, value string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrAdapterPanic, r)
		}
	}()
	return s.adapter.Set(key, value)
}

func (s *Server) adapterDelete(key string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrAdapterPanic, r)
		}
	}()
	return s.adapter.Delete(key)
}
