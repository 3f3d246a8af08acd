// Package protocol owns the wire contract and parsing primitives.
//
// Ownership boundary:
// - request/response envelope shapes and markers
// - string codec and typed payload helpers
// - message kind table
package protocol
