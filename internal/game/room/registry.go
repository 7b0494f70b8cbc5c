package room

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/flapper/internal/game/seed"
)

// DefaultJoinDelay is added to a room's creation instant to form its start time.
const DefaultJoinDelay = 1500 * time.Millisecond

// Observer is notified of room lifecycle transitions.
//
// Calls are made while the registry lock is held; implementations must not
// call back into the Registry.
type Observer interface {
	RoomCreated(roomID string)
	RoomReclaimed(roomID string)
}

type nopObserver struct{}

func (nopObserver) RoomCreated(string)   {}
func (nopObserver) RoomReclaimed(string) {}

// JoinResult describes a completed join.
type JoinResult struct {
	// Room is the room joined.
	Room *Room
	// Created reports whether the join created the room.
	Created bool
	// You is the joiner's freshly inserted state.
	You PlayerState
	// Players is the roster after insertion, including the joiner.
	Players []PlayerState
	// Peers are the connection ids of every other player.
	Peers []string
}

// LeaveResult describes a completed leave.
type LeaveResult struct {
	// Removed reports whether the player was present.
	Removed bool
	// Peers are the connection ids still in the room.
	Peers []string
	// Reclaimed reports whether the leave emptied and deleted the room.
	Reclaimed bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithSeedSource sets where new rooms draw their seed from.
func WithSeedSource(src seed.Source) Option {
	return func(r *Registry) { r.seeds = src }
}

// WithClock sets the time source for room start times.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithJoinDelay sets the gap between room creation and its start time.
func WithJoinDelay(d time.Duration) Option {
	return func(r *Registry) { r.joinDelay = d }
}

// WithDefaults sets the Config every new room is created with.
func WithDefaults(cfg Config) Option {
	return func(r *Registry) { r.defaults = cfg }
}

// WithLogger sets the registry logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithObserver sets the lifecycle observer.
func WithObserver(o Observer) Option {
	return func(r *Registry) { r.observer = o }
}

// Registry owns every live room, keyed by room id.
//
// Invariant: no room with zero players is retained after Leave returns.
// Lock order is registry before room. All methods are safe for concurrent use.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room

	seeds     seed.Source
	now       func() time.Time
	joinDelay time.Duration
	defaults  Config
	logger    *zap.Logger
	observer  Observer
}

// NewRegistry creates an empty Registry.
//
// Postcondition: Unset options default to crypto seeds, the wall clock,
// DefaultJoinDelay, DefaultConfig, a no-op logger, and a no-op observer.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		rooms:     make(map[string]*Room),
		seeds:     seed.NewCryptoSource(),
		now:       time.Now,
		joinDelay: DefaultJoinDelay,
		defaults:  DefaultConfig(),
		logger:    zap.NewNop(),
		observer:  nopObserver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetOrCreate returns the room for roomID, creating it if absent.
//
// Postcondition: Exactly one Room exists per roomID no matter how many callers race.
func (r *Registry) GetOrCreate(roomID string) (rm *Room, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getOrCreateLocked(roomID)
}

func (r *Registry) getOrCreateLocked(roomID string) (*Room, bool) {
	if rm, ok := r.rooms[roomID]; ok {
		return rm, false
	}

	rm := newRoom(roomID, r.defaults, r.seeds.Uint32(), r.now().Add(r.joinDelay))
	r.rooms[roomID] = rm
	r.observer.RoomCreated(roomID)
	r.logger.Info("room created",
		zap.String("room_id", roomID),
		zap.Uint32("seed", rm.seed),
		zap.Time("start_time", rm.startTime),
	)
	return rm, true
}

// Get returns the room for roomID.
//
// Postcondition: Returns (room, true) if found, or (nil, false) otherwise.
func (r *Registry) Get(roomID string) (*Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[roomID]
	return rm, ok
}

// RemoveIfEmpty deletes the room for roomID if it has no players.
//
// Postcondition: Returns true only if a room was deleted.
func (r *Registry) RemoveIfEmpty(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[roomID]
	if !ok || rm.Len() > 0 {
		return false
	}
	r.reclaimLocked(roomID)
	return true
}

func (r *Registry) reclaimLocked(roomID string) {
	delete(r.rooms, roomID)
	r.observer.RoomReclaimed(roomID)
	r.logger.Info("room reclaimed", zap.String("room_id", roomID))
}

// Join resolves or creates roomID and inserts connID as a player. If
// onJoined is non-nil it runs while the room is still locked, so anything it
// queues for the joiner precedes every broadcast that can include them. When
// onJoined fails the insertion is undone, a room the join left empty is
// reclaimed, and the error is returned.
//
// Precondition: roomID and connID must be non-empty; onJoined must not call
// methods on the Registry or the Room.
// Postcondition: On success res.Players contains the joiner and everyone
// present; on error no trace of the join remains.
func (r *Registry) Join(roomID, connID, name string, onJoined func(JoinResult) error) (JoinResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, created := r.getOrCreateLocked(roomID)

	rm.mu.Lock()
	defer rm.mu.Unlock()

	you := rm.addLocked(connID, name)
	res := JoinResult{
		Room:    rm,
		Created: created,
		You:     you,
		Players: rm.snapshotLocked(),
		Peers:   rm.peersLocked(connID),
	}
	if onJoined == nil {
		return res, nil
	}
	if err := onJoined(res); err != nil {
		delete(rm.players, connID)
		if len(rm.players) == 0 {
			r.reclaimLocked(roomID)
		}
		return JoinResult{}, fmt.Errorf("joining room %s: %w", roomID, err)
	}
	return res, nil
}

// Leave removes connID from roomID and reclaims the room if it is left empty.
// Unknown rooms and players are ignored.
//
// Postcondition: If res.Reclaimed, Get(roomID) reports absent until the next join.
func (r *Registry) Leave(roomID, connID string) LeaveResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return LeaveResult{}
	}

	rm.mu.Lock()
	_, present := rm.players[connID]
	delete(rm.players, connID)
	peers := rm.peersLocked(connID)
	empty := len(rm.players) == 0
	rm.mu.Unlock()

	res := LeaveResult{Removed: present, Peers: peers}
	if empty {
		r.reclaimLocked(roomID)
		res.Reclaimed = true
	}
	return res
}

// Len returns the number of live rooms.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// IDs returns the ids of all live rooms in sorted order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
