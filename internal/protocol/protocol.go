// Package protocol defines the relay's JSON wire format.
//
// Every frame is a text message of the form {"type": "<event>", "data": <payload>}.
// Inbound decoding never fails loudly: a field with the wrong JSON type is
// treated as absent, and a frame with no recognisable type is dropped.
package protocol

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/tidwall/gjson"

	"github.com/cory-johannsen/flapper/internal/game/room"
)

// Inbound event names.
const (
	TypeJoinRoom = "joinRoom"
	TypeState    = "state"
	TypeMsg      = "msg"
)

// Outbound event names. TypeState and TypeMsg are reused for relays.
const (
	TypeRoomInit     = "roomInit"
	TypePlayerJoined = "playerJoined"
	TypePlayerLeft   = "playerLeft"
)

// MaxChatRunes caps relayed chat text.
const MaxChatRunes = 200

// Frame is a decoded inbound envelope.
type Frame struct {
	Type string
	Data gjson.Result
}

// ParseFrame extracts the envelope from raw.
//
// Postcondition: Returns ok=false for anything that is not a JSON object with a string "type".
func ParseFrame(raw []byte) (Frame, bool) {
	if !gjson.ValidBytes(raw) {
		return Frame{}, false
	}
	res := gjson.ParseBytes(raw)
	if !res.IsObject() {
		return Frame{}, false
	}
	typ := res.Get("type")
	if typ.Type != gjson.String || typ.Str == "" {
		return Frame{}, false
	}
	return Frame{Type: typ.Str, Data: res.Get("data")}, true
}

// JoinRequest is a decoded joinRoom payload.
type JoinRequest struct {
	RoomID string
	Name   string
}

// ParseJoin reads roomId and name, substituting defaultRoom for a missing or
// empty room id.
func ParseJoin(data gjson.Result, defaultRoom string) JoinRequest {
	req := JoinRequest{
		RoomID: stringField(data, "roomId"),
		Name:   stringField(data, "name"),
	}
	if req.RoomID == "" {
		req.RoomID = defaultRoom
	}
	return req
}

// StateReport is a decoded state payload.
type StateReport struct {
	Update room.StateUpdate
	// T is the client timestamp token exactly as sent, null included, or nil
	// if absent.
	T json.RawMessage
}

// ParseState reads the optional y, vy, score, alive, and t fields.
func ParseState(data gjson.Result) StateReport {
	var rep StateReport
	if !data.IsObject() {
		return rep
	}
	rep.Update.Y = numberField(data, "y")
	rep.Update.VY = numberField(data, "vy")
	rep.Update.Score = numberField(data, "score")
	if v := data.Get("alive"); v.IsBool() {
		b := v.Bool()
		rep.Update.Alive = &b
	}
	if v := data.Get("t"); v.Exists() {
		rep.T = json.RawMessage(v.Raw)
	}
	return rep
}

// ParseChat coerces data to text and truncates it to MaxChatRunes runes.
//
// Falsy JSON values (absent, null, false, 0, "") become "". Strings are used
// as-is, numbers and true keep their JSON spelling, and objects and arrays
// keep their raw JSON text.
func ParseChat(data gjson.Result) string {
	var text string
	switch data.Type {
	case gjson.String:
		text = data.Str
	case gjson.Number:
		if data.Num != 0 {
			text = data.Raw
		}
	case gjson.True:
		text = "true"
	case gjson.JSON:
		text = data.Raw
	}
	return room.TruncateRunes(text, MaxChatRunes)
}

func stringField(data gjson.Result, key string) string {
	v := data.Get(key)
	if v.Type != gjson.String {
		return ""
	}
	return v.Str
}

// numberField returns nil for anything but a finite number. Literals such as
// 1e400 parse to ±Inf, which cannot be encoded back to JSON.
func numberField(data gjson.Result, key string) *float64 {
	v := data.Get(key)
	if v.Type != gjson.Number || math.IsInf(v.Num, 0) || math.IsNaN(v.Num) {
		return nil
	}
	f := v.Num
	return &f
}

// RoomInit is sent to a joiner only.
type RoomInit struct {
	RoomID    string             `json:"roomId"`
	You       room.PlayerState   `json:"you"`
	Players   []room.PlayerState `json:"players"`
	Config    room.Config        `json:"config"`
	Seed      uint32             `json:"seed"`
	StartTime int64              `json:"startTime"`
}

// NewRoomInit builds the joiner's briefing from a completed join.
func NewRoomInit(res room.JoinResult) RoomInit {
	return RoomInit{
		RoomID:    res.Room.ID(),
		You:       res.You,
		Players:   res.Players,
		Config:    res.Room.Config(),
		Seed:      res.Room.Seed(),
		StartTime: res.Room.StartTimeMillis(),
	}
}

// StateRelay is a player's merged state as relayed to peers.
type StateRelay struct {
	ID    string          `json:"id"`
	Y     float64         `json:"y"`
	VY    float64         `json:"vy"`
	Score float64         `json:"score"`
	Alive bool            `json:"alive"`
	T     json.RawMessage `json:"t,omitempty"`
}

// NewStateRelay builds the relay for a merged state and the sender's token.
func NewStateRelay(p room.PlayerState, t json.RawMessage) StateRelay {
	return StateRelay{ID: p.ID, Y: p.Y, VY: p.VY, Score: p.Score, Alive: p.Alive, T: t}
}

// ChatRelay carries chat text to peers.
type ChatRelay struct {
	From string `json:"from"`
	Text string `json:"text"`
}

// PlayerLeft announces a departure.
type PlayerLeft struct {
	ID string `json:"id"`
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Encode wraps payload in an envelope of the given type.
func Encode(typ string, payload any) ([]byte, error) {
	b, err := json.Marshal(envelope{Type: typ, Data: payload})
	if err != nil {
		return nil, fmt.Errorf("encoding %s frame: %w", typ, err)
	}
	return b, nil
}
