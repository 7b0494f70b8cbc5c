// Package room holds the per-room game session state and the registry that
// owns every live room.
package room

import (
	"sync"
	"time"
)

// Config is the world a room's clients simulate. It is fixed at room
// creation and never renegotiated.
type Config struct {
	Gravity         float64 `json:"gravity"`
	FlapVelocity    float64 `json:"flapVelocity"`
	PipeSpeed       float64 `json:"pipeSpeed"`
	Gap             float64 `json:"gap"`
	SpawnIntervalMs int     `json:"spawnIntervalMs"`
	GroundY         float64 `json:"groundY"`
	WorldWidth      float64 `json:"worldWidth"`
	WorldHeight     float64 `json:"worldHeight"`
}

// DefaultConfig returns the stock world parameters.
func DefaultConfig() Config {
	return Config{
		Gravity:         1800,
		FlapVelocity:    -520,
		PipeSpeed:       180,
		Gap:             180,
		SpawnIntervalMs: 1500,
		GroundY:         520,
		WorldWidth:      720,
		WorldHeight:     600,
	}
}

// Room is one broadcast group sharing a seed, start time, and config.
//
// Invariant: id, cfg, seed, and startTime never change after construction.
// All methods are safe for concurrent use.
type Room struct {
	id        string
	cfg       Config
	seed      uint32
	startTime time.Time

	mu      sync.RWMutex
	players map[string]*PlayerState // conn id → state
}

func newRoom(id string, cfg Config, seed uint32, startTime time.Time) *Room {
	return &Room{
		id:        id,
		cfg:       cfg,
		seed:      seed,
		startTime: startTime,
		players:   make(map[string]*PlayerState),
	}
}

// ID returns the room identifier.
func (r *Room) ID() string { return r.id }

// Config returns the room's world parameters.
func (r *Room) Config() Config { return r.cfg }

// Seed returns the shared obstacle seed.
func (r *Room) Seed() uint32 { return r.seed }

// StartTime returns the instant every client starts simulating.
func (r *Room) StartTime() time.Time { return r.startTime }

// StartTimeMillis returns StartTime as Unix epoch milliseconds.
func (r *Room) StartTimeMillis() int64 { return r.startTime.UnixMilli() }

// AddPlayer inserts a player at the spawn position and returns its state.
// An existing entry for connID is replaced.
//
// Precondition: connID must be non-empty.
// Postcondition: The player is alive at mid-height with zero velocity and score.
func (r *Room) AddPlayer(connID, requestedName string) PlayerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addLocked(connID, requestedName)
}

func (r *Room) addLocked(connID, requestedName string) PlayerState {
	p := &PlayerState{
		ID:    connID,
		Name:  ResolveName(connID, requestedName),
		Y:     r.cfg.WorldHeight / 2,
		Alive: true,
	}
	r.players[connID] = p
	return *p
}

// ApplyStateUpdate merges u into the player owned by connID and returns the
// merged state along with every other player's connection id.
//
// Postcondition: Returns ok=false and changes nothing if connID is not in the room.
func (r *Room) ApplyStateUpdate(connID string, u StateUpdate) (state PlayerState, peers []string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.players[connID]
	if !exists {
		return PlayerState{}, nil, false
	}
	u.merge(p)
	return *p, r.peersLocked(connID), true
}

// RemovePlayer deletes the player owned by connID.
//
// Postcondition: Returns true if the room has no players afterwards.
func (r *Room) RemovePlayer(connID string) (empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.players, connID)
	return len(r.players) == 0
}

// Player returns a copy of the state owned by connID.
func (r *Room) Player(connID string) (PlayerState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[connID]
	if !ok {
		return PlayerState{}, false
	}
	return *p, true
}

// Snapshot returns copies of all current player states in no particular order.
func (r *Room) Snapshot() []PlayerState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() []PlayerState {
	out := make([]PlayerState, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, *p)
	}
	return out
}

// PeerIDs returns the connection ids of every player except the given one.
func (r *Room) PeerIDs(except string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.peersLocked(except)
}

func (r *Room) peersLocked(except string) []string {
	out := make([]string, 0, len(r.players))
	for id := range r.players {
		if id != except {
			out = append(out, id)
		}
	}
	return out
}

// Has reports whether connID is a player in the room.
func (r *Room) Has(connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.players[connID]
	return ok
}

// Len returns the number of players in the room.
func (r *Room) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}
