package transport

import (
	"errors"

	"github.com/exbotanical/seance/internal/protocol"
)

var (
	ErrOriginTaken        = errors.New("transport: origin already attached")
	ErrUnknownDestination = errors.New("transport: unknown destination")
	ErrEndpointClosed     = errors.New("transport: endpoint closed")
)

// Message is one delivery from the carrier. Sender is stamped by the
// transport layer, never taken from payload contents.
type Message struct {
	Sender  protocol.Origin
	Payload string
}

// Handler consumes one inbound message.
type Handler func(Message)

// Transport is the asynchronous origin-tagged carrier both parties ride.
// Implementations give no ordering, pairing, or delivery guarantees.
type Transport interface {
	// Send dispatches one payload toward dest. Fire and forget: an error
	// reports only local dispatch failure, never remote receipt.
	Send(dest protocol.Origin, payload string) error

	// Subscribe attaches one inbound handler and returns its detach func.
	// The handler reference is captured once and released by the cancel.
	Subscribe(fn Handler) (cancel func())

	// Ready is closed once the carrier accepts sends.
	Ready() <-chan struct{}

	// Terminating is closed just before the carrier goes away.
	Terminating() <-chan struct{}
}
