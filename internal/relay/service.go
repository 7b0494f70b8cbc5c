// Package relay implements the per-connection protocol: joining a room,
// relaying player state and chat to room peers, and cleaning up on disconnect.
package relay

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/flapper/internal/game/room"
)

// DefaultRoomID is joined when a client names no room.
const DefaultRoomID = "lobby"

// Metrics receives relay counters. *observability.Metrics satisfies it.
type Metrics interface {
	ConnectionOpened()
	ConnectionClosed()
	PlayerJoined()
	FramesRelayed(msgType string, n int)
	FramesDropped(n int)
}

type nopMetrics struct{}

func (nopMetrics) ConnectionOpened()         {}
func (nopMetrics) ConnectionClosed()         {}
func (nopMetrics) PlayerJoined()             {}
func (nopMetrics) FramesRelayed(string, int) {}
func (nopMetrics) FramesDropped(int)         {}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithDefaultRoom sets the room joined when a client names none.
func WithDefaultRoom(id string) ServiceOption {
	return func(s *Service) { s.defaultRoom = id }
}

// WithOutboxSize sets how many frames each connection may have queued.
func WithOutboxSize(n int) ServiceOption {
	return func(s *Service) { s.outboxSize = n }
}

// WithIDGenerator overrides how connection ids are minted.
func WithIDGenerator(gen func() string) ServiceOption {
	return func(s *Service) { s.newID = gen }
}

// Service ties the room registry to the set of live connections and mints
// a Session per connection.
type Service struct {
	registry *room.Registry
	hub      *Hub
	logger   *zap.Logger

	metrics     Metrics
	defaultRoom string
	outboxSize  int
	newID       func() string
}

// NewService creates a Service over registry.
//
// Precondition: registry and logger must be non-nil.
func NewService(registry *room.Registry, logger *zap.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		registry:    registry,
		hub:         NewHub(logger),
		logger:      logger,
		metrics:     nopMetrics{},
		defaultRoom: DefaultRoomID,
		outboxSize:  256,
		newID:       func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open registers a new connection under a freshly minted id.
//
// Postcondition: Returns an unjoined Session whose outbox is registered with the hub.
func (s *Service) Open() (*Session, error) {
	return s.OpenWithID(s.newID())
}

// OpenWithID registers a new connection under connID.
//
// Precondition: connID must be non-empty.
// Postcondition: Returns an error if connID is empty or already live.
func (s *Service) OpenWithID(connID string) (*Session, error) {
	if connID == "" {
		return nil, fmt.Errorf("connection id must not be empty")
	}
	outbox := NewOutbox(s.outboxSize)
	if err := s.hub.Register(connID, outbox); err != nil {
		return nil, err
	}
	s.metrics.ConnectionOpened()
	s.logger.Debug("connection opened", zap.String("conn_id", connID))
	return &Session{
		id:     connID,
		svc:    s,
		outbox: outbox,
		logger: s.logger.With(zap.String("conn_id", connID)),
	}, nil
}

// Registry returns the room registry.
func (s *Service) Registry() *room.Registry {
	return s.registry
}

// Connections returns the number of open sessions.
func (s *Service) Connections() int {
	return s.hub.Count()
}

// broadcast queues frame for every peer and records the outcome.
func (s *Service) broadcast(msgType string, peers []string, frame []byte) {
	sent := s.hub.Broadcast(peers, frame)
	s.metrics.FramesRelayed(msgType, sent)
	s.metrics.FramesDropped(len(peers) - sent)
}
