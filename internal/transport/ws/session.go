package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// session is one live socket. It is also the connection's registry sink:
// Enqueue never blocks, so a stalled client only loses its own frames.
type session struct {
	handler *Handler
	id      string
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}

	closeOnce sync.Once
}

func newSession(h *Handler, id string, conn *websocket.Conn) *session {
	return &session{
		handler: h,
		id:      id,
		conn:    conn,
		send:    make(chan []byte, h.opts.SendBuffer),
		done:    make(chan struct{}),
	}
}

// Enqueue queues frame for the write loop. It reports false when the
// buffer is full or the session has ended.
func (s *session) Enqueue(frame []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

// run blocks until the socket is gone, then unregisters the connection.
// Disconnect is reached exactly once per session.
func (s *session) run(ctx context.Context) {
	go s.writeLoop()
	s.readLoop(ctx)

	s.handler.relay.Disconnect(ctx, s.id)
	s.stop()
	_ = s.conn.Close()
	s.handler.logger.Debug().Str("connection", s.id).Msg("Connection closed.")
}

func (s *session) stop() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *session) readLoop(ctx context.Context) {
	opts := s.handler.opts
	s.conn.SetReadLimit(opts.MaxMessageBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(opts.PongWait)) //nolint:errcheck
	s.conn.SetPongHandler(func(string) error {
		s.handler.relay.Heartbeat(ctx, s.id)
		return s.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	})

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				s.handler.logger.Debug().Err(err).Str("connection", s.id).Msg("Read loop ended.")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		s.handler.relay.Handle(ctx, s.id, data)
	}
}

func (s *session) writeLoop() {
	opts := s.handler.opts
	ticker := time.NewTicker(opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(opts.WriteWait)) //nolint:errcheck
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.handler.logger.Debug().Err(err).Str("connection", s.id).Msg("Write failed, closing socket.")
				_ = s.conn.Close()
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(opts.WriteWait)); err != nil {
				_ = s.conn.Close()
				return
			}
		}
	}
}

// closeWith sends a close frame and drops the socket. The read loop then
// fails and the session tears itself down.
func (s *session) closeWith(code int, reason string) {
	deadline := time.Now().Add(s.handler.opts.WriteWait)
	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline) //nolint:errcheck
	_ = s.conn.Close()
}
