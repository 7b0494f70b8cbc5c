package relay

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Hub maps live connection ids to their outboxes.
// All methods are safe for concurrent use.
type Hub struct {
	mu       sync.RWMutex
	outboxes map[string]*Outbox
	logger   *zap.Logger
}

// NewHub creates an empty Hub.
//
// Precondition: logger must be non-nil.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		outboxes: make(map[string]*Outbox),
		logger:   logger,
	}
}

// Register binds connID to outbox.
//
// Postcondition: Returns an error if connID is already registered.
func (h *Hub) Register(connID string, outbox *Outbox) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.outboxes[connID]; exists {
		return fmt.Errorf("connection %q already registered", connID)
	}
	h.outboxes[connID] = outbox
	return nil
}

// Unregister removes connID and closes its outbox. Unknown ids are ignored.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	outbox, ok := h.outboxes[connID]
	delete(h.outboxes, connID)
	h.mu.Unlock()

	if ok {
		outbox.Close()
	}
}

// Send queues frame for connID.
//
// Postcondition: Returns false if connID is unknown or its outbox rejected the frame.
func (h *Hub) Send(connID string, frame []byte) bool {
	h.mu.RLock()
	outbox, ok := h.outboxes[connID]
	h.mu.RUnlock()

	if !ok {
		return false
	}
	if err := outbox.Push(frame); err != nil {
		h.logger.Debug("frame dropped",
			zap.String("conn_id", connID),
			zap.Error(err),
		)
		return false
	}
	return true
}

// Broadcast queues frame for every id in connIDs and returns how many
// outboxes accepted it. Delivery is best-effort.
func (h *Hub) Broadcast(connIDs []string, frame []byte) (sent int) {
	for _, id := range connIDs {
		if h.Send(id, frame) {
			sent++
		}
	}
	return sent
}

// Count returns the number of registered connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.outboxes)
}
