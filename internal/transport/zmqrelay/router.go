package zmqrelay

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/exbotanical/seance/internal/protocol"
	"github.com/exbotanical/seance/internal/transport"
	zmq "github.com/pebbe/zmq4"
	"github.com/rs/zerolog/log"
)

var (
	ErrOriginMissing = errors.New("zmqrelay: origin required")
	ErrAddrMissing   = errors.New("zmqrelay: socket address required")
)

const (
	pollInterval         = 10 * time.Millisecond
	defaultOutboxLength  = 128
	routerIdentityFrames = 2
)

type routed struct {
	dest protocol.Origin
	wire []byte
}

// RouterConfig configures the medium-side relay endpoint.
type RouterConfig struct {
	Origin     protocol.Origin
	ListenAddr string
}

// Router binds a ROUTER socket and serves as the medium's carrier. Inbound
// senders are stamped from the socket identity frame; the in-frame claim
// is diagnostic only.
type Router struct {
	cfg    RouterConfig
	socket *zmq.Socket
	outbox chan routed

	mu       sync.Mutex
	handlers map[uint64]transport.Handler
	nextSub  uint64
	closed   bool

	ready       chan struct{}
	terminating chan struct{}
	done        chan struct{}
	closeOnce   sync.Once
}

var _ transport.Transport = (*Router)(nil)

// NewRouter binds the relay and starts its socket loop.
func NewRouter(cfg RouterConfig) (*Router, error) {
	if strings.TrimSpace(string(cfg.Origin)) == "" {
		return nil, ErrOriginMissing
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return nil, ErrAddrMissing
	}

	socket, err := zmq.NewSocket(zmq.ROUTER)
	if err != nil {
		return nil, err
	}
	if err := socket.SetLinger(0); err != nil {
		_ = socket.Close()
		return nil, err
	}
	if err := socket.Bind(cfg.ListenAddr); err != nil {
		_ = socket.Close()
		return nil, err
	}

	r := &Router{
		cfg:         cfg,
		socket:      socket,
		outbox:      make(chan routed, defaultOutboxLength),
		handlers:    make(map[uint64]transport.Handler),
		ready:       make(chan struct{}),
		terminating: make(chan struct{}),
		done:        make(chan struct{}),
	}
	close(r.ready)
	go r.loop()

	log.Info().Msgf("zmqrelay.Router bound origin=%q addr=%q", cfg.Origin, cfg.ListenAddr)
	return r, nil
}

// Origin returns the relay's own origin, carried as the sender claim on
// outbound frames.
func (r *Router) Origin() protocol.Origin {
	return r.cfg.Origin
}

// Send enqueues one envelope for the dealer whose identity is dest. A full
// outbox drops the envelope.
func (r *Router) Send(dest protocol.Origin, payload string) error {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return transport.ErrEndpointClosed
	}

	wire, err := encodeFrame(frame{Sender: string(r.cfg.Origin), Payload: payload})
	if err != nil {
		return err
	}
	select {
	case r.outbox <- routed{dest: dest, wire: wire}:
		return nil
	default:
		log.Debug().Msgf("zmqrelay.Router.Send drop dest=%q reason=outbox_full", dest)
		return nil
	}
}

// Subscribe registers a handler for inbound envelopes. The returned cancel
// releases it.
func (r *Router) Subscribe(fn transport.Handler) (cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSub++
	id := r.nextSub
	r.handlers[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.handlers, id)
	}
}

// Ready is closed once the socket is bound.
func (r *Router) Ready() <-chan struct{} {
	return r.ready
}

// Terminating is closed when Close begins.
func (r *Router) Terminating() <-chan struct{} {
	return r.terminating
}

// Close tears the socket down and waits for the loop to exit.
func (r *Router) Close() {
	r.closeOnce.Do(func() {
		close(r.terminating)
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		<-r.done
		_ = r.socket.Close()
		log.Info().Msgf("zmqrelay.Router closed origin=%q", r.cfg.Origin)
	})
}

// loop owns the socket: one goroutine both drains the outbox and receives
// inbound frames, since zmq sockets are not safe for concurrent use.
func (r *Router) loop() {
	defer close(r.done)
	poller := zmq.NewPoller()
	poller.Add(r.socket, zmq.POLLIN)

	for {
		select {
		case <-r.terminating:
			// Flush queued notices so a teardown broadcast enqueued just
			// before Close still reaches the wire.
			r.drainOutbox()
			return
		default:
		}

		r.drainOutbox()

		polled, err := poller.Poll(pollInterval)
		if err != nil {
			select {
			case <-r.terminating:
				return
			default:
			}
			log.Warn().Msgf("zmqrelay.Router.loop poll err=%v", err)
			continue
		}
		for range polled {
			r.recvOne()
		}
	}
}

func (r *Router) drainOutbox() {
	for {
		select {
		case out := <-r.outbox:
			if _, err := r.socket.SendMessage(string(out.dest), out.wire); err != nil {
				log.Debug().Msgf("zmqrelay.Router dispatch failed dest=%q err=%v", out.dest, err)
			}
		default:
			return
		}
	}
}

func (r *Router) recvOne() {
	frames, err := r.socket.RecvMessageBytes(zmq.DONTWAIT)
	if err != nil {
		return
	}
	if len(frames) < routerIdentityFrames {
		log.Debug().Msgf("zmqrelay.Router short message frames=%d", len(frames))
		return
	}

	identity := protocol.Origin(frames[0])
	f, err := decodeFrame(frames[len(frames)-1])
	if err != nil {
		log.Debug().Msgf("zmqrelay.Router drop sender=%q err=%v", identity, err)
		return
	}
	if f.Sender != string(identity) {
		log.Debug().Msgf(
			"zmqrelay.Router sender claim mismatch identity=%q claim=%q",
			identity,
			f.Sender,
		)
	}

	msg := transport.Message{Sender: identity, Payload: f.Payload}
	for _, fn := range r.snapshotHandlers() {
		fn(msg)
	}
}

func (r *Router) snapshotHandlers() []transport.Handler {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]transport.Handler, 0, len(r.handlers))
	for _, fn := range r.handlers {
		out = append(out, fn)
	}
	return out
}
