package relay

import (
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/flapper/internal/game/room"
	"github.com/cory-johannsen/flapper/internal/protocol"
)

// State is a connection's position in the protocol.
type State int

const (
	// StateUnjoined accepts only joinRoom.
	StateUnjoined State = iota
	// StateJoined relays state and chat to the joined room.
	StateJoined
	// StateTerminated ignores everything.
	StateTerminated
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnjoined:
		return "unjoined"
	case StateJoined:
		return "joined"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Session is the protocol state machine for one connection. The joined room
// is carried as data; every inbound frame goes through Handle.
//
// Handle and Close may be called from different goroutines.
type Session struct {
	id     string
	svc    *Service
	outbox *Outbox
	logger *zap.Logger

	mu     sync.Mutex
	state  State
	roomID string
}

// ID returns the connection id, which is also the player id.
func (s *Session) ID() string { return s.id }

// Outbox returns the frames queued for this connection.
func (s *Session) Outbox() *Outbox { return s.outbox }

// State returns the current protocol state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RoomID returns the joined room, or "" when not joined.
func (s *Session) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// Handle processes one inbound frame. Malformed frames, unknown types, and
// relays sent before joining are dropped without a reply.
func (s *Session) Handle(raw []byte) {
	frame, ok := protocol.ParseFrame(raw)
	if !ok {
		s.logger.Debug("dropping malformed frame", zap.Int("bytes", len(raw)))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateTerminated {
		return
	}

	switch frame.Type {
	case protocol.TypeJoinRoom:
		s.join(protocol.ParseJoin(frame.Data, s.svc.defaultRoom))
	case protocol.TypeState:
		if s.state != StateJoined {
			return
		}
		s.relayState(protocol.ParseState(frame.Data))
	case protocol.TypeMsg:
		if s.state != StateJoined {
			return
		}
		s.relayChat(protocol.ParseChat(frame.Data))
	default:
		s.logger.Debug("dropping unknown frame type", zap.String("type", frame.Type))
	}
}

// Close disconnects the session: it leaves any joined room, tells the
// remaining players, and releases the outbox. Calling Close again is a no-op.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateTerminated {
		return
	}
	if s.state == StateJoined {
		s.leave()
	}
	s.state = StateTerminated
	s.svc.hub.Unregister(s.id)
	s.svc.metrics.ConnectionClosed()
	s.logger.Debug("connection closed")
}

// join must be called with s.mu held. A join while already joined switches
// rooms: the old room sees this player leave before the new room sees it join.
// If roomInit cannot be queued the join is undone, nobody is told, and the
// session is left unjoined.
func (s *Session) join(req protocol.JoinRequest) {
	if s.state == StateJoined {
		s.logger.Info("switching rooms",
			zap.String("from_room", s.roomID),
			zap.String("to_room", req.RoomID),
		)
		s.leave()
	}

	res, err := s.svc.registry.Join(req.RoomID, s.id, req.Name, func(res room.JoinResult) error {
		frame, err := protocol.Encode(protocol.TypeRoomInit, protocol.NewRoomInit(res))
		if err != nil {
			return err
		}
		return s.outbox.Push(frame)
	})
	if err != nil {
		s.logger.Warn("join abandoned, room init not queued",
			zap.String("room_id", req.RoomID),
			zap.Error(err),
		)
		return
	}

	s.state = StateJoined
	s.roomID = res.Room.ID()
	s.svc.metrics.PlayerJoined()
	s.logger.Info("player joined",
		zap.String("room_id", s.roomID),
		zap.String("name", res.You.Name),
		zap.Int("players", len(res.Players)),
		zap.Bool("room_created", res.Created),
	)

	frame, err := protocol.Encode(protocol.TypePlayerJoined, res.You)
	if err != nil {
		s.logger.Error("encoding player joined", zap.Error(err))
		return
	}
	s.svc.broadcast(protocol.TypePlayerJoined, res.Peers, frame)
}

// leave must be called with s.mu held and s.state == StateJoined.
func (s *Session) leave() {
	roomID := s.roomID
	res := s.svc.registry.Leave(roomID, s.id)
	s.state = StateUnjoined
	s.roomID = ""

	s.logger.Info("player left",
		zap.String("room_id", roomID),
		zap.Int("remaining", len(res.Peers)),
		zap.Bool("room_reclaimed", res.Reclaimed),
	)
	if !res.Removed {
		return
	}

	frame, err := protocol.Encode(protocol.TypePlayerLeft, protocol.PlayerLeft{ID: s.id})
	if err != nil {
		s.logger.Error("encoding player left", zap.Error(err))
		return
	}
	s.svc.broadcast(protocol.TypePlayerLeft, res.Peers, frame)
}

// relayState must be called with s.mu held.
func (s *Session) relayState(rep protocol.StateReport) {
	rm, ok := s.svc.registry.Get(s.roomID)
	if !ok {
		return
	}
	state, peers, ok := rm.ApplyStateUpdate(s.id, rep.Update)
	if !ok {
		return
	}

	frame, err := protocol.Encode(protocol.TypeState, protocol.NewStateRelay(state, rep.T))
	if err != nil {
		s.logger.Error("encoding state relay", zap.Error(err))
		return
	}
	s.svc.broadcast(protocol.TypeState, peers, frame)
}

// relayChat must be called with s.mu held.
func (s *Session) relayChat(text string) {
	rm, ok := s.svc.registry.Get(s.roomID)
	if !ok || !rm.Has(s.id) {
		return
	}

	frame, err := protocol.Encode(protocol.TypeMsg, protocol.ChatRelay{From: s.id, Text: text})
	if err != nil {
		s.logger.Error("encoding chat relay", zap.Error(err))
		return
	}
	s.svc.broadcast(protocol.TypeMsg, rm.PeerIDs(s.id), frame)
}
