// Package server assembles the HTTP surface: middleware, routes and the
// long-lived background jobs.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/voicecode/mentor/internal/profile"
	"github.com/voicecode/mentor/server/ai"
	"github.com/voicecode/mentor/server/ratelimit"
	apiv1 "github.com/voicecode/mentor/server/router/api/v1"
	"github.com/voicecode/mentor/server/session"
	"github.com/voicecode/mentor/server/voice"
)

// Server owns the echo instance and the shared state stores.
type Server struct {
	Profile  *profile.Profile
	Sessions *session.Store
	Limiter  *ratelimit.Limiter
	Voice    *voice.Service

	echoServer *echo.Echo
	cleanupJob *session.CleanupJob
	logger     *slog.Logger
}

// NewServer wires all components together. Stores are created here and
// injected into the handlers; nothing reaches for ambient globals.
func NewServer(p *profile.Profile, logger *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(requestLogger(logger))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     p.Origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"*"},
		AllowCredentials: true,
	}))

	sessions := session.NewStore()
	limiter := ratelimit.NewLimiter()

	var completion ai.CompletionService
	if p.IsChatConfigured() {
		completion = ai.NewProvider(&ai.Config{
			BaseURL:   p.OpenAIBaseURL,
			APIKey:    p.OpenAIAPIKey,
			ChatModel: p.ChatModel,
		})
	}

	voiceService := voice.NewService(p, sessions, logger)

	s := &Server{
		Profile:    p,
		Sessions:   sessions,
		Limiter:    limiter,
		Voice:      voiceService,
		echoServer: e,
		cleanupJob: session.NewCleanupJob(sessions, session.CleanupConfig{}),
		logger:     logger,
	}

	apiV1 := apiv1.NewAPIV1Service(p, sessions, limiter, completion, logger)
	apiV1.Register(e)
	voiceService.Register(e.Group("/api/voice"))

	e.GET("/", s.handleRoot)
	e.GET("/health", s.handleHealth)
	e.GET("/api/info", s.handleInfo)

	return s
}

// Start runs the background jobs and serves until the context ends.
func (s *Server) Start(ctx context.Context) error {
	s.cleanupJob.Start(ctx)

	addr := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	s.logger.Info("server starting", "addr", addr, "mode", s.Profile.Mode)
	if err := s.echoServer.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the background jobs and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cleanupJob.Stop()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.echoServer.Shutdown(ctx)
}

// Echo exposes the router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echoServer
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"service": "voicecode-mentor",
		"version": s.Profile.Version,
		"status":  "healthy",
	})
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "healthy",
		"version": s.Profile.Version,
		"mode":    s.Profile.Mode,
	})
}

func (s *Server) handleInfo(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"endpoints": map[string]string{
			"chat":         "/api/chat (POST)",
			"chat_health":  "/api/chat/health (GET)",
			"context_sync": "/api/context/sync (POST)",
			"voice_stream": "/api/voice/stream (WebSocket)",
			"voice_health": "/api/voice/health (GET)",
			"voice_stats":  "/api/voice/stats (GET)",
		},
		"features": map[string]bool{
			"chat":  s.Profile.IsChatConfigured(),
			"voice": s.Profile.IsVoiceConfigured(),
		},
		"rate_limits": map[string]any{
			"chat": fmt.Sprintf("%d requests per %ds (per IP)",
				s.Profile.ChatRateLimit, s.Profile.ChatRateLimitWindow),
		},
	})
}

// requestLogger emits one structured line per request.
func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debug("http request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds())
			return nil
		},
	})
}
