package sitter

import (
	"fmt"

	"github.com/exbotanical/seance/internal/protocol"
)

// Session is the chainable operation facade over one sitter. Every
// operation re-runs the connectivity gate, so a handle that outlives a
// teardown cannot leak traffic; its callbacks fail with ErrNotConnected
// instead.
type Session struct {
	sitter *Sitter
}

// Session resolves the operation facade, gated on connectivity.
func (s *Sitter) Session() (*Session, error) {
	if state := s.State(); state != StateConnected {
		return nil, fmt.Errorf("%w: state=%s", ErrNotConnected, state)
	}
	return &Session{sitter: s}, nil
}

// Get reads keys through the medium. fn receives one {key: value|null}
// entry per key in batch order.
func (se *Session) Get(keys []string, fn Callback) *Session {
	se.sitter.issueGet(keys, fn)
	return se
}

// Set writes pairs through the medium. fn receives one {key: bool} entry
// per pair in batch order.
func (se *Session) Set(pairs []protocol.Pair, fn Callback) *Session {
	se.sitter.issueSet(pairs, fn)
	return se
}

// Delete removes keys through the medium. fn receives one {key: bool}
// entry per key in batch order.
func (se *Session) Delete(keys []string, fn Callback) *Session {
	se.sitter.issueDelete(keys, fn)
	return se
}
