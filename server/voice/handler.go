package voice

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/semaphore"

	"github.com/voicecode/mentor/internal/profile"
	"github.com/voicecode/mentor/server/finops"
	"github.com/voicecode/mentor/internal/observability"
	"github.com/voicecode/mentor/server/ratelimit"
	"github.com/voicecode/mentor/server/session"
)

// Service exposes the relay endpoint and its health/stats surfaces.
type Service struct {
	Profile  *profile.Profile
	Upstream *Upstream
	Registry *Registry
	Metrics  *observability.RelayMetrics
	Spend    *finops.SpendMonitor

	relay    *Relay
	upgrader websocket.Upgrader
	// connSem caps concurrently active relay connections.
	connSem *semaphore.Weighted
	logger  *slog.Logger
}

// NewService assembles the voice service.
func NewService(p *profile.Profile, sessions *session.Store, logger *slog.Logger) *Service {
	upstream := NewUpstream(p.ElevenLabsAPIKey, p.ElevenLabsAgentID)
	registry := NewRegistry()
	metrics := observability.NewRelayMetrics()
	spend := finops.NewSpendMonitor(0, logger)

	return &Service{
		Profile:  p,
		Upstream: upstream,
		Registry: registry,
		Metrics:  metrics,
		Spend:    spend,
		relay:    NewRelay(upstream, sessions, registry, metrics, spend, logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Browser WS origin checks are advisory; CORS guards the REST surface.
				return true
			},
		},
		connSem: semaphore.NewWeighted(p.MaxVoiceConnections),
		logger:  logger,
	}
}

// Relay returns the underlying relay, mainly for tests.
func (s *Service) Relay() *Relay {
	return s.relay
}

// Register mounts the voice routes on the given group.
func (s *Service) Register(g *echo.Group) {
	g.GET("/stream", s.handleStream)
	g.GET("/health", s.handleHealth)
	g.GET("/stats", s.handleStats)
}

// handleStream upgrades the inbound connection and runs the relay for its
// whole lifetime. The optional session_id query parameter links the
// connection to cached context.
func (s *Service) handleStream(c echo.Context) error {
	sessionID := c.QueryParam("session_id")
	clientAddr := ratelimit.ClientIdentifier(c)

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "client_addr", clientAddr)
		return nil
	}

	if !s.connSem.TryAcquire(1) {
		writeErrorFrame(conn, "Too many active voice connections. Try again later.")
		_ = conn.Close()
		return nil
	}
	defer s.connSem.Release(1)

	s.relay.Handle(c.Request().Context(), conn, sessionID, clientAddr)
	return nil
}

func (s *Service) handleHealth(c echo.Context) error {
	configured := s.Upstream.Configured()
	status := "healthy"
	if !configured {
		status = "degraded"
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":             status,
		"service":            "voice",
		"configured":         configured,
		"reachable":          configured,
		"active_connections": s.Registry.Count(),
		"connections":        s.Registry.Snapshot(),
	})
}

func (s *Service) handleStats(c echo.Context) error {
	totalChars := s.Registry.TotalCharacters()
	return c.JSON(http.StatusOK, map[string]any{
		"active_connections": s.Registry.Count(),
		"total_characters":   totalChars,
		"estimated_minutes":  s.Upstream.EstimatedMinutes(totalChars),
		"estimated_cost_usd": s.Upstream.Cost(totalChars),
		"lifetime":           s.Metrics.Snapshot(),
		"spend":              s.Spend.Snapshot(),
	})
}
