// Package ws exposes the relay over a single websocket endpoint. Every
// inbound text frame is handed to the Relay; outbound frames are queued per
// connection and written by that connection's own write loop.
package ws

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prudhvinik1/devicerelay/internal/registry"
	"github.com/rs/zerolog"
)

const (
	DefaultSendBuffer      = 64
	DefaultPingInterval    = 25 * time.Second
	DefaultPongWait        = 60 * time.Second
	DefaultWriteWait       = 10 * time.Second
	DefaultMaxMessageBytes = 1 << 20
)

// Relay is the event-processing side of a connection.
type Relay interface {
	Connect(connID string, sink registry.Sink) error
	Disconnect(ctx context.Context, connID string)
	Heartbeat(ctx context.Context, connID string)
	Handle(ctx context.Context, connID string, raw []byte)
}

// Options tunes the endpoint. Zero values fall back to the defaults above.
type Options struct {
	SendBuffer      int
	AllowedOrigins  []string
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	MaxMessageBytes int64
}

func (o Options) withDefaults() Options {
	if o.SendBuffer <= 0 {
		o.SendBuffer = DefaultSendBuffer
	}
	if o.PingInterval <= 0 {
		o.PingInterval = DefaultPingInterval
	}
	if o.PongWait <= 0 {
		o.PongWait = DefaultPongWait
	}
	if o.PingInterval >= o.PongWait {
		o.PingInterval = o.PongWait * 9 / 10
	}
	if o.WriteWait <= 0 {
		o.WriteWait = DefaultWriteWait
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = DefaultMaxMessageBytes
	}
	return o
}

// Handler upgrades HTTP requests and runs one session per socket.
type Handler struct {
	relay    Relay
	opts     Options
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*session
	closing  bool
}

func NewHandler(relay Relay, opts Options, logger zerolog.Logger) *Handler {
	opts = opts.withDefaults()
	h := &Handler{
		relay:    relay,
		opts:     opts,
		logger:   logger.With().Str("component", "ws").Logger(),
		sessions: make(map[string]*session),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return h
}

// originChecker allows every origin when the list is empty or contains
// "*". Requests without an Origin header come from non-browser clients and
// are always allowed.
func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if o != "" {
			set[o] = struct{}{}
		}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(strings.TrimRight(origin, "/"))]
		return ok
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	closing := h.closing
	h.mu.Unlock()
	if closing {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("Failed to upgrade connection.")
		return
	}

	s := newSession(h, uuid.NewString(), conn)
	if err := h.relay.Connect(s.id, s); err != nil {
		h.logger.Error().Err(err).Str("connection", s.id).Msg("Failed to attach connection.")
		_ = conn.Close()
		return
	}
	if !h.track(s) {
		h.relay.Disconnect(context.Background(), s.id)
		s.closeWith(websocket.CloseGoingAway, "server shutting down")
		return
	}
	defer h.untrack(s.id)

	h.logger.Debug().Str("connection", s.id).Str("remote", r.RemoteAddr).Msg("Connection opened.")
	s.run(context.WithoutCancel(r.Context()))
}

func (h *Handler) track(s *session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.sessions[s.id] = s
	return true
}

func (h *Handler) untrack(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, id)
}

// Shutdown stops accepting sockets and sends a close frame to every open
// session. Sessions tear themselves down once their read loop sees the
// close; Shutdown waits for that until ctx expires.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	open := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		open = append(open, s)
	}
	h.mu.Unlock()

	h.logger.Info().Int("sessions", len(open)).Msg("Closing websocket sessions.")
	for _, s := range open {
		s.closeWith(websocket.CloseGoingAway, "server shutting down")
	}

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		h.mu.Lock()
		remaining := len(h.sessions)
		h.mu.Unlock()
		if remaining == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			h.logger.Warn().Int("sessions", remaining).Msg("Shutdown deadline reached with sessions still open.")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Open returns the number of sessions currently served.
func (h *Handler) Open() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}
