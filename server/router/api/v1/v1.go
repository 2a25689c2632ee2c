// Package v1 exposes the REST API: context synchronization, session
// administration and the rate-limited chat endpoint.
package v1

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/voicecode/mentor/internal/profile"
	"github.com/voicecode/mentor/server/ai"
	apierrors "github.com/voicecode/mentor/server/internal/errors"
	"github.com/voicecode/mentor/server/ratelimit"
	"github.com/voicecode/mentor/server/session"
)

// SessionIDHeader carries the client's session correlation token.
const SessionIDHeader = "X-Session-ID"

// APIV1Service groups the REST handlers and their collaborators.
type APIV1Service struct {
	Profile    *profile.Profile
	Sessions   *session.Store
	Limiter    *ratelimit.Limiter
	Completion ai.CompletionService

	logger *slog.Logger
}

// NewAPIV1Service assembles the v1 API service.
func NewAPIV1Service(p *profile.Profile, sessions *session.Store, limiter *ratelimit.Limiter, completion ai.CompletionService, logger *slog.Logger) *APIV1Service {
	return &APIV1Service{
		Profile:    p,
		Sessions:   sessions,
		Limiter:    limiter,
		Completion: completion,
		logger:     logger,
	}
}

// Register mounts the v1 routes on the echo instance.
func (s *APIV1Service) Register(e *echo.Echo) {
	api := e.Group("/api")

	contextGroup := api.Group("/context")
	contextGroup.POST("/sync", s.SyncContext)
	contextGroup.GET("/session/:id", s.GetSessionInfo)
	contextGroup.DELETE("/session/:id", s.DeleteSession)
	contextGroup.GET("/stats", s.ContextStats)
	contextGroup.POST("/cleanup", s.CleanupSessions)
	contextGroup.POST("/message", s.AddMessage)
	contextGroup.GET("/summary/:id", s.GetSummary)

	chatGroup := api.Group("/chat")
	chatGroup.POST("", s.Chat, ratelimit.Middleware(
		s.Limiter,
		s.Profile.ChatRateLimit,
		time.Duration(s.Profile.ChatRateLimitWindow)*time.Second,
	))
	chatGroup.GET("/health", s.ChatHealth)
}

// respondError renders a structured error as JSON.
func respondError(c echo.Context, err *apierrors.APIError) error {
	body := map[string]any{
		"error":   string(err.Code),
		"message": err.Message,
	}
	if err.RetryAfter > 0 {
		body["retry_after"] = err.RetryAfter
	}
	return c.JSON(err.HTTPStatus(), body)
}

// healthStatus is the common health response shape.
func healthStatus(healthy bool) (int, string) {
	if healthy {
		return http.StatusOK, "healthy"
	}
	return http.StatusServiceUnavailable, "unhealthy"
}
