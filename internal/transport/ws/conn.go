package ws

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/flapper/internal/relay"
)

// serveWS upgrades the request and runs the connection until either side
// hangs up. The read pump runs on the handler goroutine.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	addr := r.RemoteAddr

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed",
			zap.String("remote_addr", addr),
			zap.Error(err),
		)
		return
	}
	sess, err := s.svc.Open()
	if err != nil {
		s.logger.Error("opening session", zap.String("remote_addr", addr), zap.Error(err))
		conn.Close()
		return
	}
	if !s.track(conn) {
		sess.Close()
		conn.Close()
		return
	}
	defer s.untrack(conn)

	s.logger.Info("client connected",
		zap.String("remote_addr", addr),
		zap.String("conn_id", sess.ID()),
	)

	go s.writePump(conn, sess)
	s.readPump(conn, sess, start)
}

// readPump feeds inbound frames to the session. Any frame, including a pong,
// extends the read deadline by PongWait.
func (s *Server) readPump(conn *websocket.Conn, sess *relay.Session, start time.Time) {
	defer func() {
		sess.Close()
		conn.Close()
		s.logger.Info("client disconnected",
			zap.String("conn_id", sess.ID()),
			zap.Duration("duration", time.Since(start)),
		)
		s.wg.Done()
	}()

	if s.wsCfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(s.wsCfg.MaxMessageBytes)
	}
	s.extendRead(conn)
	conn.SetPongHandler(func(string) error {
		s.extendRead(conn)
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				s.logger.Debug("websocket read failed",
					zap.String("conn_id", sess.ID()),
					zap.Error(err),
				)
			}
			return
		}
		s.extendRead(conn)
		sess.Handle(data)
	}
}

// writePump drains the session outbox onto the socket and pings on
// PingInterval. It exits when the outbox closes or a write fails.
func (s *Server) writePump(conn *websocket.Conn, sess *relay.Session) {
	var tick <-chan time.Time
	if s.wsCfg.PingInterval > 0 {
		ticker := time.NewTicker(s.wsCfg.PingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	defer func() {
		conn.Close()
		s.wg.Done()
	}()

	frames := sess.Outbox().Frames()
	for {
		select {
		case frame, ok := <-frames:
			s.extendWrite(conn)
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.logger.Debug("websocket write failed",
					zap.String("conn_id", sess.ID()),
					zap.Error(err),
				)
				return
			}
		case <-tick:
			s.extendWrite(conn)
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) extendRead(conn *websocket.Conn) {
	if s.wsCfg.PongWait > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.wsCfg.PongWait))
	}
}

func (s *Server) extendWrite(conn *websocket.Conn) {
	if s.wsCfg.WriteWait > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.wsCfg.WriteWait))
	}
}
