package protocol

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/flapper/internal/game/room"
	"github.com/cory-johannsen/flapper/internal/game/seed"
)

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		ok     bool
		typ    string
		hasDat bool
	}{
		{"join", `{"type":"joinRoom","data":{"roomId":"r1"}}`, true, TypeJoinRoom, true},
		{"no data", `{"type":"state"}`, true, TypeState, false},
		{"not json", `hello`, false, "", false},
		{"array", `["joinRoom"]`, false, "", false},
		{"numeric type", `{"type":7}`, false, "", false},
		{"empty type", `{"type":""}`, false, "", false},
		{"truncated", `{"type":"msg","data":`, false, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := ParseFrame([]byte(tt.raw))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.typ, f.Type)
			assert.Equal(t, tt.hasDat, f.Data.Exists())
		})
	}
}

func TestParseJoin(t *testing.T) {
	tests := []struct {
		name string
		data string
		want JoinRequest
	}{
		{"both", `{"roomId":"r1","name":"Zoe"}`, JoinRequest{RoomID: "r1", Name: "Zoe"}},
		{"absent room", `{"name":"Zoe"}`, JoinRequest{RoomID: "lobby", Name: "Zoe"}},
		{"empty room", `{"roomId":"","name":""}`, JoinRequest{RoomID: "lobby"}},
		{"wrong types", `{"roomId":5,"name":true}`, JoinRequest{RoomID: "lobby"}},
		{"null payload", `null`, JoinRequest{RoomID: "lobby"}},
		{"string payload", `"r1"`, JoinRequest{RoomID: "lobby"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseJoin(gjson.Parse(tt.data), "lobby"))
		})
	}
}

func TestParseState_OnlyY(t *testing.T) {
	rep := ParseState(gjson.Parse(`{"y":100}`))
	require.NotNil(t, rep.Update.Y)
	assert.Equal(t, 100.0, *rep.Update.Y)
	assert.Nil(t, rep.Update.VY)
	assert.Nil(t, rep.Update.Score)
	assert.Nil(t, rep.Update.Alive)
	assert.Nil(t, rep.T)
}

func TestParseState_AllFields(t *testing.T) {
	rep := ParseState(gjson.Parse(`{"y":1.5,"vy":-2,"score":3,"alive":false,"t":1712345678901}`))
	assert.Equal(t, 1.5, *rep.Update.Y)
	assert.Equal(t, -2.0, *rep.Update.VY)
	assert.Equal(t, 3.0, *rep.Update.Score)
	assert.False(t, *rep.Update.Alive)
	assert.Equal(t, json.RawMessage(`1712345678901`), rep.T)
}

func TestParseState_WrongTypesAreAbsent(t *testing.T) {
	rep := ParseState(gjson.Parse(`{"y":"high","vy":null,"score":[1],"alive":1}`))
	assert.Equal(t, room.StateUpdate{}, rep.Update)
	assert.Nil(t, rep.T)

	rep = ParseState(gjson.Parse(`42`))
	assert.Equal(t, StateReport{}, rep)
}

func TestParseState_NonFiniteNumbersAreAbsent(t *testing.T) {
	rep := ParseState(gjson.Parse(`{"y":1e400,"vy":-1e400,"score":7}`))
	assert.Nil(t, rep.Update.Y)
	assert.Nil(t, rep.Update.VY)
	require.NotNil(t, rep.Update.Score)
	assert.Equal(t, 7.0, *rep.Update.Score)
}

func TestParseState_NullTokenEchoed(t *testing.T) {
	rep := ParseState(gjson.Parse(`{"y":1,"t":null}`))
	assert.Equal(t, json.RawMessage(`null`), rep.T)

	b, err := Encode(TypeState, NewStateRelay(room.PlayerState{ID: "a", Y: 1}, rep.T))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"state","data":{"id":"a","y":1,"vy":0,"score":0,"alive":false,"t":null}}`, string(b))
}

func TestParseState_TokenEchoedVerbatim(t *testing.T) {
	rep := ParseState(gjson.Parse(`{"t":{"seq":4,"at":"x"}}`))
	assert.Equal(t, json.RawMessage(`{"seq":4,"at":"x"}`), rep.T)
}

func TestParseChat(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"string", `"hello"`, "hello"},
		{"number", `42`, "42"},
		{"zero", `0`, ""},
		{"true", `true`, "true"},
		{"false", `false`, ""},
		{"null", `null`, ""},
		{"empty", `""`, ""},
		{"object", `{"a":1}`, `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseChat(gjson.Parse(tt.data)))
		})
	}

	assert.Equal(t, "", ParseChat(gjson.Parse(`{}`).Get("missing")))
}

func TestParseChat_Truncates(t *testing.T) {
	long := strings.Repeat("a", 250)
	raw, err := json.Marshal(long)
	require.NoError(t, err)

	text := ParseChat(gjson.ParseBytes(raw))
	assert.Len(t, text, 200)
	assert.Equal(t, long[:200], text)
}

func TestEncode_RoomInit(t *testing.T) {
	reg := room.NewRegistry(
		room.WithSeedSource(seed.Fixed(77)),
		room.WithClock(func() time.Time { return time.UnixMilli(1000) }),
	)
	res, err := reg.Join("r1", "abcd1234", "Zoe", nil)
	require.NoError(t, err)

	b, err := Encode(TypeRoomInit, NewRoomInit(res))
	require.NoError(t, err)

	doc := gjson.ParseBytes(b)
	assert.Equal(t, TypeRoomInit, doc.Get("type").String())
	assert.Equal(t, "r1", doc.Get("data.roomId").String())
	assert.Equal(t, "Zoe", doc.Get("data.you.name").String())
	assert.Equal(t, int64(1), doc.Get("data.players.#").Int())
	assert.Equal(t, int64(77), doc.Get("data.seed").Int())
	assert.Equal(t, int64(2500), doc.Get("data.startTime").Int())
	assert.Equal(t, 1800.0, doc.Get("data.config.gravity").Float())
	assert.Equal(t, int64(1500), doc.Get("data.config.spawnIntervalMs").Int())
	assert.Equal(t, 300.0, doc.Get("data.you.y").Float())
	assert.True(t, doc.Get("data.you.alive").Bool())
}

func TestEncode_StateRelayOmitsAbsentToken(t *testing.T) {
	p := room.PlayerState{ID: "a", Y: 10, VY: 1, Score: 2, Alive: true}

	b, err := Encode(TypeState, NewStateRelay(p, nil))
	require.NoError(t, err)
	assert.False(t, gjson.GetBytes(b, "data.t").Exists())
	assert.Equal(t, `{"type":"state","data":{"id":"a","y":10,"vy":1,"score":2,"alive":true}}`, string(b))

	b, err = Encode(TypeState, NewStateRelay(p, json.RawMessage(`"tok"`)))
	require.NoError(t, err)
	assert.Equal(t, "tok", gjson.GetBytes(b, "data.t").String())
}

func TestEncode_ChatAndLeft(t *testing.T) {
	b, err := Encode(TypeMsg, ChatRelay{From: "a", Text: "hi"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"msg","data":{"from":"a","text":"hi"}}`, string(b))

	b, err = Encode(TypePlayerLeft, PlayerLeft{ID: "a"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"playerLeft","data":{"id":"a"}}`, string(b))
}

func TestEncode_Unencodable(t *testing.T) {
	_, err := Encode(TypeMsg, make(chan int))
	assert.Error(t, err)
}

// Property-based tests

func TestPropertyChatNeverExceedsLimit(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "text")
		raw, err := json.Marshal(s)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		text := ParseChat(gjson.ParseBytes(raw))
		if utf8.RuneCountInString(text) > MaxChatRunes {
			t.Fatalf("chat text has %d runes", utf8.RuneCountInString(text))
		}
		if !strings.HasPrefix(s, text) {
			t.Fatalf("%q is not a prefix of %q", text, s)
		}
	})
}

func TestPropertyStatePresenceMatchesPayload(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		payload := map[string]any{}
		if rapid.Bool().Draw(t, "has_y") {
			payload["y"] = rapid.Float64Range(-1e4, 1e4).Draw(t, "y")
		}
		if rapid.Bool().Draw(t, "has_vy") {
			payload["vy"] = rapid.Float64Range(-1e4, 1e4).Draw(t, "vy")
		}
		if rapid.Bool().Draw(t, "has_score") {
			payload["score"] = rapid.IntRange(0, 1e6).Draw(t, "score")
		}
		if rapid.Bool().Draw(t, "has_alive") {
			payload["alive"] = rapid.Bool().Draw(t, "alive")
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}

		rep := ParseState(gjson.ParseBytes(raw))
		_, hasY := payload["y"]
		_, hasVY := payload["vy"]
		_, hasScore := payload["score"]
		_, hasAlive := payload["alive"]
		if (rep.Update.Y != nil) != hasY || (rep.Update.VY != nil) != hasVY ||
			(rep.Update.Score != nil) != hasScore || (rep.Update.Alive != nil) != hasAlive {
			t.Fatalf("presence mismatch for %s: %+v", raw, rep.Update)
		}
		if hasY && *rep.Update.Y != payload["y"].(float64) {
			t.Fatalf("y %v != %v", *rep.Update.Y, payload["y"])
		}
	})
}
