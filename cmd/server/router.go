package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// liveCounter reports live connections and distinct users.
type liveCounter interface {
	Live() (connections, users int)
}

type healthResponse struct {
	Status      string    `json:"status"`
	Connections int       `json:"connections"`
	Users       int       `json:"users"`
	Timestamp   time.Time `json:"timestamp"`
}

func newRouter(relay http.Handler, live liveCounter, gatherer prometheus.Gatherer, logger zerolog.Logger) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)

	// Health check endpoints
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		conns, users := live.Live()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(healthResponse{
			Status:      "ok",
			Connections: conns,
			Users:       users,
			Timestamp:   time.Now().UTC(),
		})
	})

	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	router.Handle("/ws", relay)

	return router
}

// requestLogger writes one zerolog line per request. Upgraded websocket
// requests are logged when the socket closes.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	logger = logger.With().Str("component", "http").Logger()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Debug().
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("duration", time.Since(start)).
					Msg("HTTP request.")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
