package room

import "unicode/utf8"

const (
	// MaxNameRunes caps a stored display name.
	MaxNameRunes = 20
	// fallbackPrefix starts a synthesized display name.
	fallbackPrefix = "Player-"
	// fallbackIDRunes is how much of the connection id a synthesized name keeps.
	fallbackIDRunes = 4
)

// PlayerState is the last state a client reported for itself.
//
// The connection id doubles as the player's identity.
type PlayerState struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Y     float64 `json:"y"`
	VY    float64 `json:"vy"`
	Alive bool    `json:"alive"`
	Score float64 `json:"score"`
}

// StateUpdate is a partial state report. Nil fields were absent on the wire
// and leave the stored value untouched.
type StateUpdate struct {
	Y     *float64
	VY    *float64
	Score *float64
	Alive *bool
}

// merge overwrites the fields of p that u carries.
func (u StateUpdate) merge(p *PlayerState) {
	if u.Y != nil {
		p.Y = *u.Y
	}
	if u.VY != nil {
		p.VY = *u.VY
	}
	if u.Score != nil {
		p.Score = *u.Score
	}
	if u.Alive != nil {
		p.Alive = *u.Alive
	}
}

// ResolveName applies the display name policy: keep at most MaxNameRunes
// runes of requested, or synthesize "Player-" plus the first four runes of
// connID when nothing is left.
func ResolveName(connID, requested string) string {
	name := TruncateRunes(requested, MaxNameRunes)
	if name != "" {
		return name
	}
	return fallbackPrefix + TruncateRunes(connID, fallbackIDRunes)
}

// TruncateRunes returns at most n runes of s.
func TruncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
