package transport

import (
	"sync"

	"github.com/exbotanical/seance/internal/protocol"
	"github.com/rs/zerolog/log"
)

const defaultQueueCapacity = 128

// Hub is an in-process loopback carrier pairing endpoints by origin. Sends
// enqueue onto the destination's buffered inbox; a full inbox drops the
// message, which callers must tolerate anyway.
type Hub struct {
	mu        sync.RWMutex
	endpoints map[protocol.Origin]*Endpoint
}

func NewHub() *Hub {
	return &Hub{
		endpoints: make(map[protocol.Origin]*Endpoint),
	}
}

// Attach binds one endpoint to origin and starts its dispatch loop. The
// returned endpoint is ready immediately.
func (h *Hub) Attach(origin protocol.Origin) (*Endpoint, error) {
	ep := &Endpoint{
		hub:         h,
		origin:      origin,
		handlers:    make(map[uint64]Handler),
		inbox:       make(chan Message, defaultQueueCapacity),
		ready:       make(chan struct{}),
		terminating: make(chan struct{}),
		done:        make(chan struct{}),
	}

	h.mu.Lock()
	if _, ok := h.endpoints[origin]; ok {
		h.mu.Unlock()
		return nil, ErrOriginTaken
	}
	h.endpoints[origin] = ep
	h.mu.Unlock()

	go ep.dispatch()
	close(ep.ready)
	return ep, nil
}

func (h *Hub) lookup(origin protocol.Origin) (*Endpoint, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ep, ok := h.endpoints[origin]
	return ep, ok
}

func (h *Hub) detach(origin protocol.Origin, ep *Endpoint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.endpoints[origin] == ep {
		delete(h.endpoints, origin)
	}
}

// Endpoint is one origin-bound attachment to the hub.
type Endpoint struct {
	hub    *Hub
	origin protocol.Origin

	mu       sync.RWMutex
	handlers map[uint64]Handler
	nextSub  uint64
	closed   bool

	inbox       chan Message
	ready       chan struct{}
	terminating chan struct{}
	done        chan struct{}
	closeOnce   sync.Once
}

var _ Transport = (*Endpoint)(nil)

// Origin returns the principal this endpoint is bound to.
func (e *Endpoint) Origin() protocol.Origin {
	return e.origin
}

// Send enqueues one payload onto the destination inbox, stamping this
// endpoint's origin as the sender.
func (e *Endpoint) Send(dest protocol.Origin, payload string) error {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return ErrEndpointClosed
	}

	target, ok := e.hub.lookup(dest)
	if !ok {
		return ErrUnknownDestination
	}

	msg := Message{Sender: e.origin, Payload: payload}
	select {
	case target.inbox <- msg:
		return nil
	default:
		log.Debug().Msgf("transport.Endpoint.Send drop dest=%q reason=inbox_full", dest)
		return nil
	}
}

// Subscribe attaches fn for inbound messages and returns its detach func.
func (e *Endpoint) Subscribe(fn Handler) (cancel func()) {
	e.mu.Lock()
	e.nextSub++
	id := e.nextSub
	e.handlers[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.handlers, id)
		e.mu.Unlock()
	}
}

func (e *Endpoint) Ready() <-chan struct{} {
	return e.ready
}

func (e *Endpoint) Terminating() <-chan struct{} {
	return e.terminating
}

// Close signals termination, detaches from the hub, and stops dispatch.
// Messages still queued are dropped.
func (e *Endpoint) Close() {
	e.closeOnce.Do(func() {
		close(e.terminating)
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()
		e.hub.detach(e.origin, e)
		close(e.done)
	})
}

// dispatch drains the inbox one message at a time so handler execution is
// serialized per endpoint.
func (e *Endpoint) dispatch() {
	for {
		select {
		case <-e.done:
			return
		case msg := <-e.inbox:
			for _, fn := range e.snapshotHandlers() {
				fn(msg)
			}
		}
	}
}

func (e *Endpoint) snapshotHandlers() []Handler {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Handler, 0, len(e.handlers))
	for _, fn := range e.handlers {
		out = append(out, fn)
	}
	return out
}
