package sitter

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/exbotanical/seance/internal/protocol"
	"github.com/exbotanical/seance/internal/transport"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoTransport       = errors.New("sitter: transport required")
	ErrOriginRequired    = errors.New("sitter: own origin required")
	ErrMediumRequired    = errors.New("sitter: medium origin required")
	ErrNotConnected      = errors.New("sitter: not connected to medium")
	ErrEmptyBatch        = errors.New("sitter: empty operation batch")
	ErrEmptyKey          = errors.New("sitter: empty key in batch")
	ErrRequestTimeout    = errors.New("sitter: request timed out")
	ErrOperationRejected = errors.New("sitter: operation rejected by medium")
)

// ConnState describes sitter connectivity to the medium.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateAwaitingAck  ConnState = "awaiting_ack"
	StateConnected    ConnState = "connected"
)

// Config binds one sitter origin to one trusted medium origin over an
// injected carrier. OnIncorporate and OnDetach run on the carrier dispatch
// goroutine and must not block.
type Config struct {
	SitterID          string
	Origin            protocol.Origin
	Medium            protocol.Origin
	HeartbeatInterval time.Duration
	RequestTimeout    time.Duration

	OnIncorporate func(sitterID string)
	OnDetach      func(sitterID string)

	Transport transport.Transport
}

// Sitter client defaults. RequestTimeout stays zero: a request that never
// receives a response stays pending unless the caller opts in.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 5 * time.Second,
	}
}

// Sitter is the client runtime: connection state machine, MOUNT handshake,
// recurring SYN heartbeat, and pending-request correlation against one
// configured medium.
type Sitter struct {
	cfg      Config
	registry *Registry

	mu    sync.RWMutex
	state ConnState

	subMu     sync.Mutex
	attached  bool
	cancelSub func()
}

// Sitter constructor using explicit configuration. A missing SitterID is
// filled with a fresh UUID.
func NewSitterWithConfig(cfg Config) (*Sitter, error) {
	if cfg.Transport == nil {
		return nil, ErrNoTransport
	}
	if strings.TrimSpace(string(cfg.Origin)) == "" {
		return nil, ErrOriginRequired
	}
	if strings.TrimSpace(string(cfg.Medium)) == "" {
		return nil, ErrMediumRequired
	}
	if strings.TrimSpace(cfg.SitterID) == "" {
		cfg.SitterID = uuid.NewString()
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultConfig().HeartbeatInterval
	}
	return &Sitter{
		cfg:      cfg,
		registry: NewRegistry(),
		state:    StateDisconnected,
	}, nil
}

// SitterID returns the unique identifier carried by the MOUNT handshake.
func (s *Sitter) SitterID() string {
	return s.cfg.SitterID
}

// Origin returns the sitter's own origin.
func (s *Sitter) Origin() protocol.Origin {
	return s.cfg.Origin
}

// State reports current connectivity.
func (s *Sitter) State() ConnState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Pending reports the number of requests still awaiting a response.
func (s *Sitter) Pending() int {
	return s.registry.Len()
}

// Sitter runtime entrypoint that blocks until process signal shutdown.
func (s *Sitter) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Serve(ctx)
}

// Attach waits for the carrier and subscribes the inbound handler. The
// handler reference is captured once; dismounting releases it. Attach is
// idempotent so Serve can follow a manual Attach.
func (s *Sitter) Attach(ctx context.Context) error {
	select {
	case <-s.cfg.Transport.Ready():
	case <-ctx.Done():
		return ctx.Err()
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.attached {
		return nil
	}
	s.cancelSub = s.cfg.Transport.Subscribe(s.handleMessage)
	s.attached = true
	return nil
}

// Serve mounts onto the medium and drives the heartbeat until ctx is done
// or the carrier terminates. While the mount ack is outstanding the
// heartbeat re-sends MOUNT with a fresh id; once connected it emits SYN.
func (s *Sitter) Serve(ctx context.Context) error {
	if err := s.Attach(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	}
	defer s.dismount()

	s.sendMount()
	log.Info().Msgf(
		"sitter.Sitter.Serve mounted origin=%q medium=%q sitter_id=%q heartbeat=%s",
		s.cfg.Origin,
		s.cfg.Medium,
		s.cfg.SitterID,
		s.cfg.HeartbeatInterval,
	)

	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("sitter.Sitter.Serve shutdown origin=%q", s.cfg.Origin)
			return nil
		case <-s.cfg.Transport.Terminating():
			log.Warn().Msgf("sitter.Sitter.Serve carrier terminating origin=%q", s.cfg.Origin)
			return nil
		case <-ticker.C:
			s.heartbeat()
		}
	}
}

// heartbeat emits the periodic envelope for the current state. A teardown
// leaves the sitter disconnected; its heartbeats keep flowing and go
// unanswered.
func (s *Sitter) heartbeat() {
	switch s.State() {
	case StateAwaitingAck:
		s.sendMount()
	default:
		s.sendSyn()
	}
}

func (s *Sitter) sendMount() {
	id := s.registry.NextID()
	req, err := protocol.NewMount(s.cfg.Origin, id, s.cfg.SitterID)
	if err != nil {
		log.Warn().Msgf("sitter.Sitter.sendMount build err=%v", err)
		return
	}
	s.transitionAwaiting()
	if err := s.send(req); err != nil {
		log.Warn().Msgf("sitter.Sitter.sendMount dispatch failed id=%d err=%v", id, err)
		return
	}
	log.Debug().Msgf("sitter.Sitter.sendMount id=%d sitter_id=%q", id, s.cfg.SitterID)
}

func (s *Sitter) sendSyn() {
	req := protocol.NewSyn(s.cfg.Origin, s.registry.NextID())
	if err := s.send(req); err != nil {
		log.Debug().Msgf("sitter.Sitter.sendSyn dispatch failed id=%d err=%v", req.ID, err)
		return
	}
	log.Debug().Msgf("sitter.Sitter.sendSyn id=%d state=%s pending=%d", req.ID, s.State(), s.Pending())
}

func (s *Sitter) send(req protocol.Request) error {
	wire, err := protocol.EncodeRequest(req)
	if err != nil {
		return err
	}
	return s.cfg.Transport.Send(s.cfg.Medium, wire)
}

// dismount best-effort notifies the medium, abandons anything pending, and
// releases the carrier subscription.
func (s *Sitter) dismount() {
	if s.State() != StateDisconnected {
		if err := s.send(protocol.NewUnmount(s.cfg.Origin, s.registry.NextID())); err != nil {
			log.Debug().Msgf("sitter.Sitter.dismount dispatch failed err=%v", err)
		}
	}
	abandoned := s.registry.Abandon()
	s.transitionDisconnected()
	s.detachTransport()
	log.Info().Msgf("sitter.Sitter.dismount origin=%q abandoned=%d", s.cfg.Origin, abandoned)
}

func (s *Sitter) detachTransport() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.cancelSub != nil {
		s.cancelSub()
		s.cancelSub = nil
	}
	s.attached = false
}

// handleMessage routes one inbound envelope. Only the configured medium
// origin is trusted; everything else is dropped before decoding.
func (s *Sitter) handleMessage(msg transport.Message) {
	if msg.Sender != s.cfg.Medium {
		log.Debug().Msgf("sitter.Sitter.handleMessage drop foreign sender=%q", msg.Sender)
		return
	}
	resp, err := protocol.DecodeResponse(msg.Payload)
	if err != nil {
		log.Debug().Msgf("sitter.Sitter.handleMessage malformed err=%v", err)
		return
	}

	// The close broadcast empties the registry without firing callbacks.
	if resp.IsTeardown() {
		abandoned := s.registry.Abandon()
		s.transitionDisconnected()
		log.Info().Msgf(
			"sitter.Sitter.handleMessage teardown origin=%q abandoned=%d",
			s.cfg.Origin,
			abandoned,
		)
		return
	}

	// Bare acks feed the state machine only; MOUNT and SYN never park a
	// waiter, so there is no registry entry to consume.
	if resp.IsAck() {
		s.transitionConnected()
		return
	}

	var result []map[string]any
	var opErr error
	if strings.TrimSpace(resp.Error) != "" {
		opErr = fmt.Errorf("%w: %s", ErrOperationRejected, resp.Error)
	} else if entries, decodeErr := protocol.DecodeEntries(resp.Result); decodeErr != nil {
		opErr = decodeErr
	} else {
		result = entries
	}

	if !s.registry.Resolve(resp.ID, result, opErr) {
		log.Debug().Msgf("sitter.Sitter.handleMessage stale id=%d", resp.ID)
	}
}

func (s *Sitter) transitionAwaiting() {
	s.mu.Lock()
	defer s.mu.Unlock()
	// An ack that lands between a heartbeat tick and its re-MOUNT must not
	// be clobbered back to awaiting.
	if s.state == StateConnected {
		return
	}
	s.state = StateAwaitingAck
}

func (s *Sitter) transitionConnected() {
	s.mu.Lock()
	was := s.state
	s.state = StateConnected
	s.mu.Unlock()
	if was == StateConnected {
		return
	}
	log.Info().Msgf("sitter.Sitter connected origin=%q sitter_id=%q", s.cfg.Origin, s.cfg.SitterID)
	if s.cfg.OnIncorporate != nil {
		s.cfg.OnIncorporate(s.cfg.SitterID)
	}
}

func (s *Sitter) transitionDisconnected() {
	s.mu.Lock()
	was := s.state
	s.state = StateDisconnected
	s.mu.Unlock()
	if was != StateConnected {
		return
	}
	log.Info().Msgf("sitter.Sitter disconnected origin=%q sitter_id=%q", s.cfg.Origin, s.cfg.SitterID)
	if s.cfg.OnDetach != nil {
		s.cfg.OnDetach(s.cfg.SitterID)
	}
}

// issueGet dispatches a batched read. Validation and the connectivity gate
// run before any carrier traffic; a gated or invalid call performs zero
// transport IO.
func (s *Sitter) issueGet(keys []string, fn Callback) {
	if err := validateKeys(keys); err != nil {
		failFast(fn, err)
		return
	}
	if err := s.gate(); err != nil {
		failFast(fn, err)
		return
	}
	id, _ := s.registry.Register(fn)
	req, err := protocol.NewGet(s.cfg.Origin, id, keys)
	if err != nil {
		s.registry.Resolve(id, nil, err)
		return
	}
	s.dispatch(id, req)
}

// issueSet dispatches a batched write under the same gate as issueGet.
func (s *Sitter) issueSet(pairs []protocol.Pair, fn Callback) {
	if err := validatePairs(pairs); err != nil {
		failFast(fn, err)
		return
	}
	if err := s.gate(); err != nil {
		failFast(fn, err)
		return
	}
	id, _ := s.registry.Register(fn)
	req, err := protocol.NewSet(s.cfg.Origin, id, pairs)
	if err != nil {
		s.registry.Resolve(id, nil, err)
		return
	}
	s.dispatch(id, req)
}

// issueDelete dispatches a batched removal under the same gate as issueGet.
func (s *Sitter) issueDelete(keys []string, fn Callback) {
	if err := validateKeys(keys); err != nil {
		failFast(fn, err)
		return
	}
	if err := s.gate(); err != nil {
		failFast(fn, err)
		return
	}
	id, _ := s.registry.Register(fn)
	req, err := protocol.NewDelete(s.cfg.Origin, id, keys)
	if err != nil {
		s.registry.Resolve(id, nil, err)
		return
	}
	s.dispatch(id, req)
}

func (s *Sitter) gate() error {
	if state := s.State(); state != StateConnected {
		return fmt.Errorf("%w: state=%s", ErrNotConnected, state)
	}
	return nil
}

func (s *Sitter) dispatch(id uint64, req protocol.Request) {
	if err := s.send(req); err != nil {
		s.registry.Resolve(id, nil, err)
		return
	}
	s.armTimeout(id)
	log.Debug().Msgf("sitter.Sitter.dispatch id=%d type=%s", id, req.Type)
}

// armTimeout converts a silent medium into an error when the caller opted
// in. A late response after expiry resolves nothing and is discarded as an
// unknown id.
func (s *Sitter) armTimeout(id uint64) {
	if s.cfg.RequestTimeout <= 0 {
		return
	}
	time.AfterFunc(s.cfg.RequestTimeout, func() {
		if s.registry.Resolve(id, nil, ErrRequestTimeout) {
			log.Warn().Msgf("sitter.Sitter request expired id=%d after=%s", id, s.cfg.RequestTimeout)
		}
	})
}

func failFast(fn Callback, err error) {
	if fn != nil {
		fn(nil, err)
	}
}

func validateKeys(keys []string) error {
	if len(keys) == 0 {
		return ErrEmptyBatch
	}
	for _, key := range keys {
		if strings.TrimSpace(key) == "" {
			return ErrEmptyKey
		}
	}
	return nil
}

func validatePairs(pairs []protocol.Pair) error {
	if len(pairs) == 0 {
		return ErrEmptyBatch
	}
	for _, pair := range pairs {
		if strings.TrimSpace(pair.Key) == "" {
			return ErrEmptyKey
		}
	}
	return nil
}
