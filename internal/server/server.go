// Package server assembles the HTTP surface: health and status endpoints,
// metrics, and the feature routes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ziadkadry99/drivenotify/internal/channel"
	"github.com/ziadkadry99/drivenotify/internal/db"
	"github.com/ziadkadry99/drivenotify/internal/live"
	"github.com/ziadkadry99/drivenotify/internal/message"
	"github.com/ziadkadry99/drivenotify/internal/notifications"
	"github.com/ziadkadry99/drivenotify/internal/pipeline"
)

const statusTimeout = 10 * time.Second

// Config holds server configuration.
type Config struct {
	Port           int
	AllowAll       bool   // allow all CORS origins
	APIKey         string // required as a bearer token when set
	RequestTimeout time.Duration
	Version        string
}

// Deps are the components the server exposes. Nil feature components are
// simply not mounted.
type Deps struct {
	DB        *db.DB
	Channel   channel.Channel
	Store     *notifications.Store
	Formatter *message.Formatter
	Pipeline  *pipeline.Pipeline
	Live      *live.Hub
}

// Server is the drivenotify HTTP server.
type Server struct {
	cfg        Config
	deps       Deps
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
}

// New creates a Server and builds its router.
func New(cfg Config, deps Deps, logger zerolog.Logger) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With().Str("component", "server").Logger(),
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(metricsMiddleware)
	r.Use(recoverer(s.logger))

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
		corsOpts.AllowCredentials = false
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/", s.handleBanner)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(apiKeyAuth(s.cfg.APIKey, s.logger))

		// Websocket connections outlive the request timeout.
		if s.deps.Live != nil {
			r.Get("/notifications/live", s.deps.Live.ServeHTTP)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.cfg.RequestTimeout))
			if s.deps.Pipeline != nil {
				pipeline.RegisterRoutes(r, s.deps.Pipeline, s.logger)
			}
			if s.deps.Store != nil {
				notifications.RegisterRoutes(r, s.deps.Store, s.logger)
			}
			if s.deps.Formatter != nil {
				message.RegisterRoutes(r, s.deps.Formatter)
			}
			r.Get("/messages/{messageId}/status", s.handleMessageStatus)
		})
	})

	return r
}

// Router returns the chi router.
func (s *Server) Router() chi.Router { return s.router }

func (s *Server) handleBanner(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"service":   "drivenotify",
		"version":   s.cfg.Version,
		"status":    "running",
		"timestamp": time.Now().UTC(),
	}
	if s.deps.Channel != nil {
		resp["channel"] = s.deps.Channel.Name()
	}
	writeJSON(w, http.StatusOK, resp)
}

type componentStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// handleStatus pings the database and the messaging provider. Any failing
// component turns the response into a 503.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), statusTimeout)
	defer cancel()

	components := map[string]componentStatus{}
	healthy := true

	check := func(name string, ping func(context.Context) error) {
		if err := ping(ctx); err != nil {
			healthy = false
			components[name] = componentStatus{Status: "error", Error: err.Error()}
			s.logger.Warn().Err(err).Str("check", name).Msg("status check failed")
			return
		}
		components[name] = componentStatus{Status: "ok"}
	}

	if s.deps.DB != nil {
		check("database", s.deps.DB.PingContext)
	}
	if s.deps.Channel != nil {
		check("channel", s.deps.Channel.Ping)
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	resp := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC(),
	}
	if s.deps.Channel != nil {
		resp["channel"] = s.deps.Channel.Name()
	}
	writeJSON(w, code, resp)
}

// handleMessageStatus asks the provider for the state of a sent message.
func (s *Server) handleMessageStatus(w http.ResponseWriter, r *http.Request) {
	checker, ok := s.deps.Channel.(channel.StatusChecker)
	if !ok {
		writeJSON(w, http.StatusNotImplemented, map[string]any{
			"success": false,
			"message": "Message status lookup is not supported by this channel",
		})
		return
	}

	st, err := checker.MessageStatus(r.Context(), chi.URLParam(r, "messageId"))
	if err != nil {
		s.logger.Warn().Err(err).Str("message_id", chi.URLParam(r, "messageId")).Msg("message status lookup failed")
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"success": false,
			"message": "Message status lookup failed",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": st})
}

// Start listens on the configured port until Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("drivenotify server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
