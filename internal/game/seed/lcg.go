// Package seed provides the deterministic sequence clients use to lay out
// obstacles, and the sources rooms draw their shared seed from.
package seed

// Multiplier and Increment are the linear-congruential constants from
// Numerical Recipes. Clients run the same generator, so these must never change.
const (
	Multiplier uint32 = 1664525
	Increment  uint32 = 1013904223
)

// divisor is 2^32 - 1.
const divisor = float64(^uint32(0))

// LCG is a linear-congruential generator over uint32 state.
//
// Invariant: state advances as state = Multiplier*state + Increment (mod 2^32).
// An LCG is not safe for concurrent use; each consumer owns its own.
type LCG struct {
	state uint32
}

// NewLCG returns a generator whose first Next call advances from seed.
//
// Postcondition: Two generators built from the same seed yield identical streams.
func NewLCG(seed uint32) *LCG {
	return &LCG{state: seed}
}

// Next advances the generator and returns state / (2^32 - 1).
//
// Postcondition: The result is in [0, 1]. It equals 1 only when the state
// reaches 2^32 - 1, matching the client-side formula exactly.
func (g *LCG) Next() float64 {
	g.state = Multiplier*g.state + Increment
	return float64(g.state) / divisor
}

// State returns the current internal state.
func (g *LCG) State() uint32 {
	return g.state
}

// Reset restarts the stream from seed.
func (g *LCG) Reset(seed uint32) {
	g.state = seed
}

// Sequence returns the first n values produced from seed.
//
// Precondition: n >= 0.
func Sequence(seed uint32, n int) []float64 {
	g := NewLCG(seed)
	out := make([]float64, n)
	for i := range out {
		out[i] = g.Next()
	}
	return out
}
