// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jeranaias/ollama-chat/internal/chat"
	"github.com/jeranaias/ollama-chat/internal/model"
	"github.com/jeranaias/ollama-chat/internal/store"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is where the API listens when no address is configured.
	DefaultAddr = "127.0.0.1:8080"

	// MaxRequestBodySize caps JSON bodies (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// healthTimeout bounds the Ollama probe behind /health.
	healthTimeout = 2 * time.Second
)

// Version is reported by /health. main overrides it at link time.
var Version = "dev"

// ============================================================================
// SERVER
// ============================================================================

// Config configures the HTTP API.
type Config struct {
	Addr           string
	AllowedOrigins []string

	// RateLimit is requests per second per client IP; 0 disables limiting.
	RateLimit float64
	RateBurst int
}

// Pinger reports whether the inference server is reachable.
// *ollama.Client implements it.
type Pinger interface {
	CheckRunning(ctx context.Context) error
}

// Server exposes the conversation store and chat controller over HTTP for a
// browser front end. It is one more render layer: every mutation goes
// through the store, and /api/events pushes store changes.
type Server struct {
	cfg    Config
	store  *store.Store
	chat   *chat.Controller
	pinger Pinger
	logger *zap.Logger

	settingsMu sync.RWMutex
	settings   model.Settings

	engine *gin.Engine
	cors   *CORSConfig

	mu   sync.Mutex
	http *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPinger enables the Ollama probe in /health.
func WithPinger(p Pinger) Option {
	return func(s *Server) {
		s.pinger = p
	}
}

// WithSettings sets the generation settings turns start with.
func WithSettings(settings model.Settings) Option {
	return func(s *Server) {
		s.settings = settings
	}
}

// New builds the server and its routes. It does not listen.
func New(cfg Config, st *store.Store, ctrl *chat.Controller, opts ...Option) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	s := &Server{
		cfg:      cfg,
		store:    st,
		chat:     ctrl,
		logger:   zap.NewNop(),
		settings: model.DefaultSettings(),
		cors:     DefaultCORSConfig(cfg.AllowedOrigins),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine = s.setupRouter()
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Settings returns the generation settings the next turn will use.
func (s *Server) Settings() model.Settings {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	return s.settings
}

// SetSettings swaps the settings value after validating it.
func (s *Server) SetSettings(settings model.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.settingsMu.Lock()
	s.settings = settings
	s.settingsMu.Unlock()
	return nil
}

func (s *Server) setupRouter() *gin.Engine {
	engine := gin.New()
	// Forwarded headers are only honoured from a local reverse proxy.
	_ = engine.SetTrustedProxies([]string{"127.0.0.1/32", "::1/128"})

	engine.Use(
		RecoveryMiddleware(s.logger),
		LoggingMiddleware(s.logger),
		CORSMiddleware(s.cors),
		RateLimitMiddleware(NewRateLimiter(s.cfg.RateLimit, s.cfg.RateBurst)),
		limitBody(MaxRequestBodySize),
	)

	engine.GET("/health", s.handleHealth)

	api := engine.Group("/api")
	api.GET("/conversations", s.listConversations)
	api.POST("/conversations", s.createConversation)
	api.GET("/conversations/current", s.currentConversation)
	api.GET("/conversations/:id", s.getConversation)
	api.PUT("/conversations/:id/select", s.selectConversation)
	api.PATCH("/conversations/:id", s.renameConversation)
	api.DELETE("/conversations/:id", s.deleteConversation)
	api.POST("/conversations/:id/clear", s.clearConversation)
	api.POST("/conversations/:id/turns", s.submitTurn)
	api.GET("/conversations/:id/export", s.exportConversation)

	api.GET("/models", s.listModels)
	api.POST("/models/pull", s.pullModel)
	api.GET("/models/selected", s.selectedModel)
	api.PUT("/models/selected", s.selectModel)

	api.GET("/settings", s.getSettings)
	api.PUT("/settings", s.putSettings)
	api.GET("/usage", s.getUsage)

	api.GET("/events", s.handleEvents)

	return engine
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		// No WriteTimeout: a turn waits as long as the model takes.
	}
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", ln.Addr().String()), zap.String("version", Version))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	s.logger.Info("server shutting down")
	return srv.Shutdown(ctx)
}

// ============================================================================
// HEALTH
// ============================================================================

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	OllamaStatus  string `json:"ollama_status"`
	Conversations int    `json:"conversations"`
	TurnInFlight  bool   `json:"turn_in_flight"`
	SelectedModel string `json:"selected_model"`
}

func (s *Server) handleHealth(c *gin.Context) {
	health := HealthResponse{
		Status:        "ok",
		Version:       Version,
		OllamaStatus:  "not_configured",
		Conversations: s.store.Len(),
		TurnInFlight:  s.chat.InFlight(),
		SelectedModel: s.chat.SelectedModel(),
	}

	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		if err := s.pinger.CheckRunning(ctx); err == nil {
			health.OllamaStatus = "ok"
		} else {
			health.OllamaStatus = "unavailable"
			health.Status = "degraded"
		}
	}

	c.JSON(http.StatusOK, health)
}

// ============================================================================
// HELPERS
// ============================================================================

// errorBody is the JSON shape of every error response.
func errorBody(kind, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"type":    kind,
			"message": message,
		},
	}
}

// writeError maps err onto a status code and error body.
func writeError(c *gin.Context, err error) {
	status, kind, message := classifyError(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, errorBody(kind, message))
}

func classifyError(err error) (status int, kind, message string) {
	var turnErr *chat.TurnError
	switch {
	case errors.Is(err, chat.ErrInvalidInput), errors.Is(err, model.ErrInvalidSettings):
		return http.StatusBadRequest, "invalid_input", err.Error()
	case errors.Is(err, chat.ErrUnknownModel):
		return http.StatusBadRequest, "unknown_model", err.Error()
	case errors.Is(err, chat.ErrNoModelSelected):
		return http.StatusConflict, "no_model_selected", "No model selected."
	case errors.Is(err, chat.ErrBusy):
		return http.StatusConflict, "busy", "A response is already being generated."
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, store.ErrLastConversationProtected):
		return http.StatusConflict, "last_conversation", err.Error()
	case errors.As(err, &turnErr):
		if turnErr.Kind == chat.KindBackendError {
			return http.StatusBadGateway, turnErr.Kind.String(), turnErr.UserMessage()
		}
		return http.StatusServiceUnavailable, turnErr.Kind.String(), turnErr.UserMessage()
	default:
		return http.StatusInternalServerError, "internal", "Internal Server Error"
	}
}

// limitBody caps the request body size.
func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}
