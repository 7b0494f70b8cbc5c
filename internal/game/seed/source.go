package seed

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
)

// Source supplies fresh room seeds.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Uint32 returns a seed drawn from the full uint32 range.
	Uint32() uint32
}

// cryptoSource implements Source using crypto/rand.
type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand.
func NewCryptoSource() Source {
	return cryptoSource{}
}

// Uint32 returns a uniformly distributed seed.
//
// Panics with "seed: crypto/rand failure: <err>" if crypto/rand fails.
func (cryptoSource) Uint32() uint32 {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic("seed: crypto/rand failure: " + err.Error())
	}
	return binary.LittleEndian.Uint32(buf[:])
}

// FixedSource replays a fixed list of seeds, cycling when exhausted.
// Intended for tests that need to know which seed a room received.
type FixedSource struct {
	mu    sync.Mutex
	seeds []uint32
	next  int
}

// Fixed returns a FixedSource over seeds.
//
// Precondition: len(seeds) > 0.
func Fixed(seeds ...uint32) *FixedSource {
	if len(seeds) == 0 {
		panic("seed: Fixed called with no seeds")
	}
	return &FixedSource{seeds: seeds}
}

// Uint32 returns the next seed in the list.
func (f *FixedSource) Uint32() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := f.seeds[f.next%len(f.seeds)]
	f.next++
	return v
}
