// Package apihttp exposes the engine to the UI layer: a JSON control surface
// for navigation and gestures, a websocket event stream, and the usual
// metrics/health endpoints.
package apihttp

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"reelengine/internal/controller"
	"reelengine/internal/domain"
	"reelengine/internal/domain/ports"
	"reelengine/internal/prefetch"
)

// PlaybackController is the engine surface the API drives. Implemented by
// controller.Controller.
type PlaybackController interface {
	RequestNavigate(ctx context.Context, index int) error
	ReportViewport(index int, visible float64, dragging bool)
	Tap()
	RequestTogglePlay()
	RequestToggleLike(ctx context.Context)
	SetFocus(focused bool)
	Refresh(ctx context.Context) error
	CurrentPlaybackState(index int) domain.PlaybackState
	CurrentIndex() int
}

// WindowInspector exposes the cache's debug snapshot.
type WindowInspector interface {
	Snapshot() prefetch.Snapshot
}

type Server struct {
	controller     PlaybackController
	window         WindowInspector
	viewerStore    ports.ViewerStore
	allowedOrigins []string
	logger         *slog.Logger
	handler        http.Handler
	wsHub          *wsHub
}

type ServerOption func(*Server)

func WithWindowInspector(w WindowInspector) ServerOption {
	return func(s *Server) { s.window = w }
}

func WithViewerStore(store ports.ViewerStore) ServerOption {
	return func(s *Server) { s.viewerStore = store }
}

// WithAllowedOrigins configures the CORS allowed origins whitelist.
// When empty (default), any origin is permitted (development mode).
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) { s.allowedOrigins = origins }
}

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

func NewServer(ctrl PlaybackController, opts ...ServerOption) *Server {
	s := &Server{controller: ctrl}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.wsHub = newWSHub(s.logger)
	go s.wsHub.run()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/viewer/state", s.handleViewerState)
	mux.HandleFunc("/api/viewer/navigate", s.handleNavigate)
	mux.HandleFunc("/api/viewer/viewport", s.handleViewport)
	mux.HandleFunc("/api/viewer/tap", s.handleTap)
	mux.HandleFunc("/api/viewer/play", s.handleTogglePlay)
	mux.HandleFunc("/api/viewer/like", s.handleToggleLike)
	mux.HandleFunc("/api/viewer/focus", s.handleFocus)
	mux.HandleFunc("/api/viewer/refresh", s.handleRefresh)
	mux.HandleFunc("/api/viewer/window", s.handleWindow)
	mux.HandleFunc("/api/history/recent", s.handleRecentHistory)
	mux.HandleFunc("/api/settings", s.handleSettings)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", s.handleWS)

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "reel-engine",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/healthz" && !strings.HasPrefix(p, "/ws")
		}),
	)
	s.handler = recoveryMiddleware(s.logger, rateLimitMiddleware(200, 400, metricsMiddleware(corsMiddleware(s.allowedOrigins, traced))))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Hub returns the websocket hub so it can be wired in as the controller's
// event sink.
func (s *Server) Hub() controller.EventSink { return s.wsHub }

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	client := &wsClient{
		hub:  s.wsHub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	s.wsHub.register <- client
	go client.writePump()
	go client.readPump()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Close shuts down the websocket hub, disconnecting all clients.
func (s *Server) Close() {
	if s.wsHub != nil {
		s.wsHub.Close()
	}
}
