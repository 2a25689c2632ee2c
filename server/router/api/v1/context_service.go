package v1

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	apierrors "github.com/voicecode/mentor/server/internal/errors"
	"github.com/voicecode/mentor/internal/observability"
	"github.com/voicecode/mentor/server/ratelimit"
	"github.com/voicecode/mentor/server/session"
)

const (
	// maxCodeSize caps the synced code blob.
	maxCodeSize = 10000
	// maxMessageSize caps an appended conversation message.
	maxMessageSize = 5000
)

// ContextSyncRequest is the periodic background sync from the editor.
// Pointer fields distinguish "absent" from "empty" for sparse updates.
type ContextSyncRequest struct {
	Code         *string `json:"code"`
	ProblemID    *string `json:"problem_id"`
	ProblemTitle *string `json:"problem_title"`
	Language     string  `json:"language"`
	HintLevel    int     `json:"hint_level"`
}

// ContextSyncResponse reports the session the sync landed in.
type ContextSyncResponse struct {
	SessionID string `json:"session_id"`
	Synced    bool   `json:"synced"`
	Message   string `json:"message"`
}

// SyncContext creates the session on first contact and sparsely updates it
// afterwards. The session id travels in the X-Session-ID header.
func (s *APIV1Service) SyncContext(c echo.Context) error {
	var req ContextSyncRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apierrors.InvalidArgument("malformed request body"))
	}
	if req.Code != nil && len(*req.Code) > maxCodeSize {
		return respondError(c, apierrors.InvalidArgument("code exceeds maximum size"))
	}
	if req.HintLevel < session.MinHintLevel || req.HintLevel > session.MaxHintLevel {
		return respondError(c, apierrors.InvalidArgument("hint_level must be between 0 and 3"))
	}

	clientAddr := ratelimit.ClientIdentifier(c)
	sessionID := c.Request().Header.Get(SessionIDHeader)

	if sessionID != "" {
		if _, ok := s.Sessions.Get(sessionID); ok {
			language := req.Language
			hintLevel := req.HintLevel
			s.Sessions.Update(sessionID, session.UpdatePatch{
				CurrentCode:  req.Code,
				ProblemID:    req.ProblemID,
				ProblemTitle: req.ProblemTitle,
				Language:     &language,
				HintLevel:    &hintLevel,
			})
			s.logger.Debug("session updated",
				observability.LogFieldSessionID, observability.SessionIDPrefix(sessionID))
			return c.JSON(http.StatusOK, ContextSyncResponse{
				SessionID: sessionID,
				Synced:    true,
				Message:   "Context synchronized successfully",
			})
		}
	}

	sessionID = uuid.NewString()
	opts := session.CreateOptions{
		Language:  req.Language,
		HintLevel: req.HintLevel,
	}
	if req.Code != nil {
		opts.CurrentCode = *req.Code
	}
	if req.ProblemID != nil {
		opts.ProblemID = *req.ProblemID
	}
	if req.ProblemTitle != nil {
		opts.ProblemTitle = *req.ProblemTitle
	}
	if _, err := s.Sessions.Create(sessionID, clientAddr, opts); err != nil {
		return respondError(c, apierrors.Internal("failed to create session", err))
	}
	s.logger.Info("session created",
		observability.LogFieldSessionID, observability.SessionIDPrefix(sessionID),
		observability.LogFieldClientAddr, clientAddr)
	return c.JSON(http.StatusOK, ContextSyncResponse{
		SessionID: sessionID,
		Synced:    true,
		Message:   "Context synchronized successfully",
	})
}

// GetSessionInfo returns a session's public summary for debugging.
func (s *APIV1Service) GetSessionInfo(c echo.Context) error {
	sessionID := c.Param("id")
	sess, ok := s.Sessions.Get(sessionID)
	if !ok {
		return respondError(c, apierrors.SessionNotFound())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"session_id":    sess.SessionID,
		"problem_id":    sess.ProblemID,
		"problem_title": sess.ProblemTitle,
		"language":      sess.Language,
		"hint_level":    sess.HintLevel,
		"code_length":   len(sess.CurrentCode),
		"message_count": sess.MessageCount,
		"created_at":    sess.CreatedAt,
		"last_updated":  sess.LastUpdated,
	})
}

// DeleteSession removes a session (logout/reset).
func (s *APIV1Service) DeleteSession(c echo.Context) error {
	sessionID := c.Param("id")
	if !s.Sessions.Delete(sessionID) {
		return respondError(c, apierrors.SessionNotFound())
	}
	s.logger.Info("session deleted",
		observability.LogFieldSessionID, observability.SessionIDPrefix(sessionID))
	return c.JSON(http.StatusOK, map[string]any{"message": "Session deleted"})
}

// ContextStats returns aggregate store statistics.
func (s *APIV1Service) ContextStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Sessions.Stats())
}

// CleanupSessions triggers an age-based sweep. Administrative surface.
func (s *APIV1Service) CleanupSessions(c echo.Context) error {
	maxAgeHours := 24
	if raw := c.QueryParam("max_age_hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return respondError(c, apierrors.InvalidArgument("max_age_hours must be a positive integer"))
		}
		maxAgeHours = parsed
	}
	removed := s.Sessions.Sweep(time.Duration(maxAgeHours) * time.Hour)
	s.logger.Info("session cleanup triggered", "removed", removed)
	return c.JSON(http.StatusOK, map[string]any{
		"removed":   removed,
		"remaining": s.Sessions.Count(),
	})
}

// MessageRequest appends one conversation turn.
type MessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AddMessage records a conversation turn in the session history. Called by
// the frontend after each voice/chat exchange.
func (s *APIV1Service) AddMessage(c echo.Context) error {
	sessionID := c.Request().Header.Get(SessionIDHeader)
	if sessionID == "" {
		return respondError(c, apierrors.InvalidArgument(SessionIDHeader+" header required"))
	}

	var req MessageRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apierrors.InvalidArgument("malformed request body"))
	}
	role := session.Role(req.Role)
	if !role.IsValid() {
		return respondError(c, apierrors.InvalidArgument("role must be 'user' or 'assistant'"))
	}
	if req.Content == "" || len(req.Content) > maxMessageSize {
		return respondError(c, apierrors.InvalidArgument("content must be between 1 and 5000 characters"))
	}

	sess, ok := s.Sessions.AppendMessage(sessionID, role, req.Content, session.DefaultMaxHistory)
	if !ok {
		return respondError(c, apierrors.SessionNotFound())
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success":       true,
		"message_count": sess.MessageCount,
		"history_size":  len(sess.History),
	})
}

// GetSummary returns the conversation summary projection for a session.
func (s *APIV1Service) GetSummary(c echo.Context) error {
	sessionID := c.Param("id")
	sess, ok := s.Sessions.Get(sessionID)
	if !ok {
		return respondError(c, apierrors.SessionNotFound())
	}
	summary := s.Sessions.Summary(sessionID, session.DefaultMaxExchanges)
	return c.JSON(http.StatusOK, map[string]any{
		"session_id":    sessionID,
		"summary":       summary,
		"message_count": sess.MessageCount,
		"has_history":   len(sess.History) > 0,
	})
}
