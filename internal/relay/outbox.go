package relay

import (
	"errors"
	"sync"
)

var (
	// ErrOutboxClosed is returned when pushing to a closed outbox.
	ErrOutboxClosed = errors.New("outbox closed")
	// ErrOutboxFull is returned when an outbox has no room for another frame.
	ErrOutboxFull = errors.New("outbox full")
)

// Outbox is a bounded FIFO of encoded frames bound for one connection.
// The transport's write loop drains Frames.
type Outbox struct {
	frames chan []byte
	mu     sync.Mutex
	closed bool
}

// NewOutbox creates an Outbox holding up to size frames.
//
// Postcondition: size <= 0 is replaced with 64.
func NewOutbox(size int) *Outbox {
	if size <= 0 {
		size = 64
	}
	return &Outbox{frames: make(chan []byte, size)}
}

// Push enqueues frame without blocking.
//
// Postcondition: Returns ErrOutboxClosed or ErrOutboxFull if the frame was not queued.
func (o *Outbox) Push(frame []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrOutboxClosed
	}
	select {
	case o.frames <- frame:
		return nil
	default:
		return ErrOutboxFull
	}
}

// Frames returns the receive side of the queue. It is closed by Close.
func (o *Outbox) Frames() <-chan []byte {
	return o.frames
}

// Close stops accepting frames and closes the Frames channel. Frames already
// queued remain readable.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.frames)
	}
}

// IsClosed reports whether Close has been called.
func (o *Outbox) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
