// Package zmqrelay carries séance envelopes across processes over ZeroMQ.
//
// Ownership boundary:
// - ROUTER endpoint for the medium (binds, stamps senders from socket
//   identity frames)
// - DEALER endpoint for sitters (connects, socket identity = own origin)
// - msgpack relay frame codec
//
// Each socket is owned by a single goroutine; Send enqueues onto an
// outbox drained by that goroutine. A full outbox drops the envelope,
// matching the in-process loopback semantics.
package zmqrelay
