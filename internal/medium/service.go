package medium

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/exbotanical/seance/internal/observability"
	"github.com/exbotanical/seance/internal/protocol"
	"github.com/exbotanical/seance/internal/store"
	"github.com/exbotanical/seance/internal/transport"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoTransport = errors.New("medium: transport required")
	ErrNoAdapter   = errors.New("medium: store adapter required")
)

// Medium endpoint configuration. Transport and Adapter are injected
// collaborators; everything else has serviceable defaults.
type ServiceConfig struct {
	Node             string
	Invited          []protocol.Origin
	AdminListenAddr  string
	AdminCORSOrigins []string
	AdminToken       string

	// HeartbeatTolerance is how long a member may stay silent before the
	// status reports flag it stale. Staleness never evicts.
	HeartbeatTolerance time.Duration
	StatusInterval     time.Duration

	Transport transport.Transport
	Adapter   store.Adapter
}

// Medium service defaults for endpoint configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Node:               "medium.local",
		HeartbeatTolerance: 15 * time.Second,
		StatusInterval:     30 * time.Second,
	}
}

// Service runs the medium lifecycle: transport subscription, envelope
// dispatch, teardown broadcast, and the optional admin surface.
type Service struct {
	cfg    ServiceConfig
	server *Server

	subMu     sync.Mutex
	attached  bool
	cancelSub func()

	teardownOnce sync.Once
}

// Medium service constructor using explicit configuration.
func NewServiceWithConfig(cfg ServiceConfig) (*Service, error) {
	if cfg.Transport == nil {
		return nil, ErrNoTransport
	}
	if cfg.Adapter == nil {
		return nil, ErrNoAdapter
	}
	if strings.TrimSpace(cfg.Node) == "" {
		cfg.Node = DefaultServiceConfig().Node
	}
	if cfg.HeartbeatTolerance <= 0 {
		cfg.HeartbeatTolerance = DefaultServiceConfig().HeartbeatTolerance
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = DefaultServiceConfig().StatusInterval
	}
	return &Service{
		cfg:    cfg,
		server: NewServer(cfg.Invited, cfg.Adapter),
	}, nil
}

// Server returns the circle/dispatch boundary owner.
func (s *Service) Server() *Server {
	return s.server
}

// Node returns the configured node label.
func (s *Service) Node() string {
	return s.cfg.Node
}

// Medium runtime entrypoint that blocks until process signal shutdown.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Serve(ctx)
}

// Attach waits for the carrier and subscribes the dispatch handler. The
// handler reference is captured once; Teardown releases it. Attach is
// idempotent so Serve can follow a manual Attach.
func (s *Service) Attach(ctx context.Context) error {
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

// Serve attaches to the carrier once it is ready and dispatches inbound
// envelopes until ctx is done or the carrier terminates. Teardown is
// broadcast on the way out.
func (s *Service) Serve(ctx context.Context) error {
	if err := s.Attach(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	}
	defer s.Teardown()

	log.Info().Msgf(
		"medium.Service.Serve attached node=%q invited=%d admin=%q",
		s.cfg.Node,
		len(s.cfg.Invited),
		s.cfg.AdminListenAddr,
	)

	adminErr := make(chan error, 1)
	if strings.TrimSpace(s.cfg.AdminListenAddr) != "" {
		go func() {
			adminErr <- s.serveAdmin(ctx)
		}()
	}

	ticker := time.NewTicker(s.cfg.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("medium.Service.Serve shutdown node=%q", s.cfg.Node)
			return nil
		case <-s.cfg.Transport.Terminating():
			log.Warn().Msgf("medium.Service.Serve carrier terminating node=%q", s.cfg.Node)
			return nil
		case err := <-adminErr:
			if err != nil {
				return err
			}
		case <-ticker.C:
			stale := len(s.server.StaleMembers(s.cfg.HeartbeatTolerance))
			log.Info().Msgf(
				"medium.Service.status node=%q circle=%d stale=%d",
				s.cfg.Node,
				s.server.CircleSize(),
				stale,
			)
		}
	}
}

// Teardown broadcasts the close notice to every incorporated origin and
// releases the transport subscription. Safe to invoke more than once; only
// the first call broadcasts.
func (s *Service) Teardown() {
	s.teardownOnce.Do(func() {
		members := s.server.ClearCircle()
		wire, err := protocol.EncodeResponse(protocol.NewTeardown())
		if err == nil {
			for _, member := range members {
				if sendErr := s.cfg.Transport.Send(member.Origin, wire); sendErr != nil {
					log.Debug().Msgf(
						"medium.Service.Teardown send failed origin=%q err=%v",
						member.Origin,
						sendErr,
					)
				}
			}
		}
		s.clearSubscription()
		observability.SetCircleMembers(s.cfg.Node, 0)
		log.Info().Msgf("medium.Service.Teardown broadcast node=%q origins=%d", s.cfg.Node, len(members))
	})
}

// handleMessage routes one inbound envelope through the trust gate and the
// fixed kind table. Untrusted senders are dropped without a reply.
func (s *Service) handleMessage(msg transport.Message) {
	req, err := protocol.DecodeRequest(msg.Payload)
	if err != nil {
		observability.RecordEnvelope(s.cfg.Node, "malformed", observability.OutcomeIgnored)
		log.Debug().Msgf("medium.Service.handleMessage drop sender=%q err=%v", msg.Sender, err)
		return
	}

	kind := req.Kind()
	if kind == protocol.KindUnknown {
		observability.RecordEnvelope(s.cfg.Node, req.Type, observability.OutcomeIgnored)
		log.Debug().Msgf("medium.Service.handleMessage unknown type=%q sender=%q", req.Type, msg.Sender)
		return
	}

	// The trust gate rides the transport-stamped sender. MOUNT needs pool
	// membership; everything else needs prior incorporation.
	sender := msg.Sender
	if kind == protocol.KindMount {
		if !s.server.IsInvited(sender) {
			s.reject(sender, kind)
			return
		}
	} else if !s.server.IsIncorporated(sender) {
		s.reject(sender, kind)
		return
	}

	switch kind {
	case protocol.KindMount:
		sitterID, err := protocol.DecodeSitterID(req.Payload)
		if err != nil {
			observability.RecordEnvelope(s.cfg.Node, kind.String(), observability.OutcomeIgnored)
			log.Debug().Msgf("medium.Service.handleMessage bad mount payload sender=%q err=%v", sender, err)
			return
		}
		member := s.server.Incorporate(sender, sitterID)
		observability.SetCircleMembers(s.cfg.Node, s.server.CircleSize())
		log.Info().Msgf(
			"medium.Service.handleMessage incorporated origin=%q sitter_id=%q circle=%d",
			sender,
			member.SitterID,
			s.server.CircleSize(),
		)
		s.send(sender, protocol.NewAck(req.ID))
	case protocol.KindUnmount:
		s.server.Dismiss(sender)
		observability.SetCircleMembers(s.cfg.Node, s.server.CircleSize())
		log.Info().Msgf("medium.Service.handleMessage dismissed origin=%q circle=%d", sender, s.server.CircleSize())
	case protocol.KindSyn:
		s.server.TouchSyn(sender)
		s.send(sender, protocol.NewAck(req.ID))
	case protocol.KindGet, protocol.KindSet, protocol.KindDelete:
		s.send(sender, s.runAction(kind, req))
	}

	observability.RecordEnvelope(s.cfg.Node, kind.String(), observability.OutcomeHandled)
}

// runAction decodes the batch payload and aggregates per-key outcomes. An
// undecodable payload fails the whole action with a null result.
func (s *Service) runAction(kind protocol.Kind, req protocol.Request) protocol.Response {
	var entries []map[string]any
	var failures int

	switch kind {
	case protocol.KindGet:
		keys, err := protocol.DecodeKeys(req.Payload)
		if err != nil {
			return protocol.NewErrorResponse(req.ID, "malformed GET payload")
		}
		entries, failures = s.server.RunGet(keys)
	case protocol.KindSet:
		pairs, err := protocol.DecodePairs(req.Payload)
		if err != nil {
			return protocol.NewErrorResponse(req.ID, "malformed SET payload")
		}
		entries, failures = s.server.RunSet(pairs)
	case protocol.KindDelete:
		keys, err := protocol.DecodeKeys(req.Payload)
		if err != nil {
			return protocol.NewErrorResponse(req.ID, "malformed DELETE payload")
		}
		entries, failures = s.server.RunDelete(keys)
	}

	for i := 0; i < failures; i++ {
		observability.RecordAdapterFailure(s.cfg.Node, kind.String())
	}
	if failures > 0 {
		log.Warn().Msgf("medium.Service.runAction adapter failures action=%s count=%d", kind, failures)
	}

	resp, err := protocol.NewEntriesResponse(req.ID, entries)
	if err != nil {
		return protocol.NewErrorResponse(req.ID, "result encoding failed")
	}
	return resp
}

func (s *Service) send(dest protocol.Origin, resp protocol.Response) {
	wire, err := protocol.EncodeResponse(resp)
	if err != nil {
		log.Warn().Msgf("medium.Service.send encode err=%v", err)
		return
	}
	if err := s.cfg.Transport.Send(dest, wire); err != nil {
		log.Warn().Msgf("medium.Service.send dispatch failed dest=%q err=%v", dest, err)
	}
}

func (s *Service) reject(sender protocol.Origin, kind protocol.Kind) {
	observability.RecordEnvelope(s.cfg.Node, kind.String(), observability.OutcomeRejected)
	log.Debug().Msgf("medium.Service.handleMessage reject origin=%q kind=%s", sender, kind)
}

func (s *Service) clearSubscription() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.cancelSub != nil {
		s.cancelSub()
		s.cancelSub = nil
	}
	s.attached = false
}

// serveAdmin runs the operator HTTP surface until ctx is done.
func (s *Service) serveAdmin(ctx context.Context) error {
	admin := NewAdmin(s, s.cfg.AdminCORSOrigins)
	srv := &http.Server{
		Addr:    strings.TrimSpace(s.cfg.AdminListenAddr),
		Handler: admin.HTTPRouter(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Msgf("medium.Service.serveAdmin listening addr=%q", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
