// Package sitter owns the client runtime that attaches one origin to the
// medium.
//
// Ownership boundary:
// - connection state machine: disconnected -> awaiting_ack -> connected
// - MOUNT handshake and recurring SYN heartbeat
// - pending-request registry with single-shot waiters
// - chainable Session facade for GET/SET/DELETE batches
//
// Lifecycle order:
// - attach -> mount -> heartbeat
//
// - a teardown broadcast drops the circle membership; heartbeats continue
//   but go unanswered until a new mount.
//
// Sitter does not own trust decisions; the medium filters by
// carrier-stamped origin.
package sitter
