// Package testutil provides test clients for integration testing.
package testutil

import (
	"encoding/json"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

// Frame is one decoded server frame.
type Frame struct {
	Type string
	Data gjson.Result
	Raw  string
}

// WSClient is a websocket test client speaking the {"type","data"} envelope.
type WSClient struct {
	conn *websocket.Conn
	t    *testing.T
}

// NewWSClient dials the /ws endpoint of the server at baseURL, which may use
// an http:// or ws:// scheme.
//
// Precondition: baseURL must point at a listening server.
// Postcondition: Returns a connected WSClient or fails the test.
func NewWSClient(t *testing.T, baseURL string) *WSClient {
	t.Helper()
	start := time.Now()

	url := "ws" + strings.TrimPrefix(strings.TrimPrefix(baseURL, "ws"), "http") + "/ws"
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("connecting to %s: %v [%s]", url, err, time.Since(start))
	}

	t.Cleanup(func() {
		conn.Close()
	})

	t.Logf("websocket client connected to %s [%s]", url, time.Since(start))
	return &WSClient{conn: conn, t: t}
}

// Send writes a frame with the given type and JSON-encoded data.
func (c *WSClient) Send(msgType string, data any) {
	c.t.Helper()
	raw, err := json.Marshal(struct {
		Type string `json:"type"`
		Data any    `json:"data"`
	}{msgType, data})
	if err != nil {
		c.t.Fatalf("encoding %s frame: %v", msgType, err)
	}
	c.SendRaw(string(raw))
}

// SendRaw writes text as a single text frame.
func (c *WSClient) SendRaw(text string) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		c.t.Fatalf("sending %q: %v", text, err)
	}
}

// Next reads the next frame, failing the test on timeout.
func (c *WSClient) Next(timeout time.Duration) Frame {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	_, raw, err := c.conn.ReadMessage()
	if err != nil {
		c.t.Fatalf("reading frame: %v", err)
	}
	parsed := gjson.ParseBytes(raw)
	return Frame{
		Type: parsed.Get("type").String(),
		Data: parsed.Get("data"),
		Raw:  string(raw),
	}
}

// Expect reads the next frame and fails the test unless it has msgType.
func (c *WSClient) Expect(msgType string, timeout time.Duration) Frame {
	c.t.Helper()
	f := c.Next(timeout)
	if f.Type != msgType {
		c.t.Fatalf("expected %s frame, got %s", msgType, f.Raw)
	}
	return f
}

// ExpectSilence fails the test if any frame arrives within wait. Read errors
// are permanent, so the client cannot read again afterwards.
func (c *WSClient) ExpectSilence(wait time.Duration) {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(wait))
	_, raw, err := c.conn.ReadMessage()
	if err == nil {
		c.t.Fatalf("expected no frame, got %s", raw)
	}
	var ne net.Error
	if !errors.As(err, &ne) || !ne.Timeout() {
		c.t.Fatalf("expected read timeout, got %v", err)
	}
}

// Close sends a close frame and closes the connection.
func (c *WSClient) Close() {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.conn.Close()
}
