package zmqrelay

import (
	"strings"
	"sync"

	"github.com/exbotanical/seance/internal/protocol"
	"github.com/exbotanical/seance/internal/transport"
	zmq "github.com/pebbe/zmq4"
	"github.com/rs/zerolog/log"
)

// DealerConfig configures a sitter-side relay endpoint.
type DealerConfig struct {
	Origin      protocol.Origin
	Medium      protocol.Origin
	ConnectAddr string
}

// Dealer connects a DEALER socket whose identity is the sitter origin, so
// the router can stamp inbound envelopes without trusting frame claims.
// Its only reachable destination is the configured medium.
type Dealer struct {
	cfg    DealerConfig
	socket *zmq.Socket
	outbox chan []byte

	mu       sync.Mutex
	handlers map[uint64]transport.Handler
	nextSub  uint64
	closed   bool

	ready       chan struct{}
	terminating chan struct{}
	done        chan struct{}
	closeOnce   sync.Once
}

var _ transport.Transport = (*Dealer)(nil)

// NewDealer connects the relay and starts its socket loop.
func NewDealer(cfg DealerConfig) (*Dealer, error) {
	if strings.TrimSpace(string(cfg.Origin)) == "" {
		return nil, ErrOriginMissing
	}
	if strings.TrimSpace(string(cfg.Medium)) == "" {
		return nil, ErrOriginMissing
	}
	if strings.TrimSpace(cfg.ConnectAddr) == "" {
		return nil, ErrAddrMissing
	}

	socket, err := zmq.NewSocket(zmq.DEALER)
	if err != nil {
		return nil, err
	}
	if err := socket.SetLinger(0); err != nil {
		_ = socket.Close()
		return nil, err
	}
	if err := socket.SetIdentity(string(cfg.Origin)); err != nil {
		_ = socket.Close()
		return nil, err
	}
	if err := socket.Connect(cfg.ConnectAddr); err != nil {
		_ = socket.Close()
		return nil, err
	}

	d := &Dealer{
		cfg:         cfg,
		socket:      socket,
		outbox:      make(chan []byte, defaultOutboxLength),
		handlers:    make(map[uint64]transport.Handler),
		ready:       make(chan struct{}),
		terminating: make(chan struct{}),
		done:        make(chan struct{}),
	}
	close(d.ready)
	go d.loop()

	log.Info().Msgf(
		"zmqrelay.Dealer connected origin=%q medium=%q addr=%q",
		cfg.Origin,
		cfg.Medium,
		cfg.ConnectAddr,
	)
	return d, nil
}

// Origin returns the dealer's own origin.
func (d *Dealer) Origin() protocol.Origin {
	return d.cfg.Origin
}

// Send enqueues one envelope for the medium. Destinations other than the
// configured medium are unreachable through a dealer.
func (d *Dealer) Send(dest protocol.Origin, payload string) error {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return transport.ErrEndpointClosed
	}
	if dest != d.cfg.Medium {
		return transport.ErrUnknownDestination
	}

	wire, err := encodeFrame(frame{Sender: string(d.cfg.Origin), Payload: payload})
	if err != nil {
		return err
	}
	select {
	case d.outbox <- wire:
		return nil
	default:
		log.Debug().Msgf("zmqrelay.Dealer.Send drop origin=%q reason=outbox_full", d.cfg.Origin)
		return nil
	}
}

// Subscribe registers a handler for inbound envelopes. The returned cancel
// releases it.
func (d *Dealer) Subscribe(fn transport.Handler) (cancel func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextSub++
	id := d.nextSub
	d.handlers[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.handlers, id)
	}
}

// Ready is closed once the socket is connected.
func (d *Dealer) Ready() <-chan struct{} {
	return d.ready
}

// Terminating is closed when Close begins.
func (d *Dealer) Terminating() <-chan struct{} {
	return d.terminating
}

// Close tears the socket down and waits for the loop to exit.
func (d *Dealer) Close() {
	d.closeOnce.Do(func() {
		close(d.terminating)
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		<-d.done
		_ = d.socket.Close()
		log.Info().Msgf("zmqrelay.Dealer closed origin=%q", d.cfg.Origin)
	})
}

func (d *Dealer) loop() {
	defer close(d.done)
	poller := zmq.NewPoller()
	poller.Add(d.socket, zmq.POLLIN)

	for {
		select {
		case <-d.terminating:
			// Flush the queue so a final UNMOUNT enqueued just before
			// Close still reaches the medium.
			d.drainOutbox()
			return
		default:
		}

		d.drainOutbox()

		polled, err := poller.Poll(pollInterval)
		if err != nil {
			select {
			case <-d.terminating:
				return
			default:
			}
			log.Warn().Msgf("zmqrelay.Dealer.loop poll err=%v", err)
			continue
		}
		for range polled {
			d.recvOne()
		}
	}
}

func (d *Dealer) drainOutbox() {
	for {
		select {
		case wire := <-d.outbox:
			if _, err := d.socket.SendMessage(wire); err != nil {
				log.Debug().Msgf("zmqrelay.Dealer dispatch failed err=%v", err)
			}
		default:
			return
		}
	}
}

func (d *Dealer) recvOne() {
	frames, err := d.socket.RecvMessageBytes(zmq.DONTWAIT)
	if err != nil {
		return
	}
	if len(frames) == 0 {
		return
	}

	f, err := decodeFrame(frames[len(frames)-1])
	if err != nil {
		log.Debug().Msgf("zmqrelay.Dealer drop err=%v", err)
		return
	}

	msg := transport.Message{Sender: protocol.Origin(f.Sender), Payload: f.Payload}
	for _, fn := range d.snapshotHandlers() {
		fn(msg)
	}
}

func (d *Dealer) snapshotHandlers() []transport.Handler {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]transport.Handler, 0, len(d.handlers))
	for _, fn := range d.handlers {
		out = append(out, fn)
	}
	return out
}
