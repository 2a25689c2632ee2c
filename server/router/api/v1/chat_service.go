package v1

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/voicecode/mentor/server/ai"
	apierrors "github.com/voicecode/mentor/server/internal/errors"
	"github.com/voicecode/mentor/internal/observability"
	"github.com/voicecode/mentor/server/session"
)

const maxChatMessageSize = 1000

// ChatRequest is the user's question plus optional context overrides.
// Fields left absent fall back to the cached session values.
type ChatRequest struct {
	Message   string  `json:"message"`
	Code      *string `json:"code"`
	ProblemID *string `json:"problem_id"`
	Language  string  `json:"language"`
	HintLevel *int    `json:"hint_level"`
}

// ChatResponse is the mentor's reply.
type ChatResponse struct {
	Response   string `json:"response"`
	TokensUsed int    `json:"tokens_used,omitempty"`
	Model      string `json:"model"`
	SessionID  string `json:"session_id,omitempty"`
}

// Chat answers a question from the student. Request-supplied context wins;
// cached session values fill the gaps. A missing session is not an error.
func (s *APIV1Service) Chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apierrors.InvalidArgument("malformed request body"))
	}
	if req.Message == "" || len(req.Message) > maxChatMessageSize {
		return respondError(c, apierrors.InvalidArgument("message must be between 1 and 1000 characters"))
	}
	if s.Completion == nil || !s.Completion.Ready() {
		return respondError(c, apierrors.ChatUnavailable(nil))
	}

	sessionID := c.Request().Header.Get(SessionIDHeader)
	var sess *session.Session
	if sessionID != "" {
		sess, _ = s.Sessions.Get(sessionID)
	}

	code := ""
	problemID := ""
	language := req.Language
	hintLevel := 0
	if sess != nil {
		code = sess.CurrentCode
		problemID = sess.ProblemID
		hintLevel = sess.HintLevel
		if language == "" {
			language = sess.Language
		}

		// Chat turns count toward session activity.
		count := sess.MessageCount + 1
		s.Sessions.Update(sessionID, session.UpdatePatch{MessageCount: &count})
	}
	if req.Code != nil {
		code = *req.Code
	}
	if req.ProblemID != nil {
		problemID = *req.ProblemID
	}
	if req.HintLevel != nil {
		hintLevel = *req.HintLevel
	}

	messages := buildMentorMessages(req.Message, code, problemID, language, hintLevel)
	result, err := s.Completion.Complete(c.Request().Context(), messages)
	if err != nil {
		s.logger.Error("chat completion failed", "error", err)
		return respondError(c, apierrors.ChatUnavailable(err))
	}

	s.logger.Info("chat response generated",
		"tokens_used", result.TokensUsed,
		observability.LogFieldSessionID, observability.SessionIDPrefix(sessionID))

	resp := ChatResponse{
		Response:   result.Response,
		TokensUsed: result.TokensUsed,
		Model:      result.Model,
	}
	if sess != nil {
		resp.SessionID = sessionID
	}
	return c.JSON(http.StatusOK, resp)
}

// ChatHealth reports whether the completion backend is usable.
func (s *APIV1Service) ChatHealth(c echo.Context) error {
	ready := s.Completion != nil && s.Completion.Ready()
	code, status := healthStatus(ready)
	return c.JSON(code, map[string]any{
		"status":  status,
		"service": "chat",
	})
}

// buildMentorMessages assembles the conversation for the completion backend.
// The mentor guides rather than solves; the hint level controls how direct
// the guidance may be.
func buildMentorMessages(message, code, problemID, language string, hintLevel int) []ai.Message {
	var b strings.Builder
	b.WriteString("You are a patient coding mentor. Guide the student with the Socratic method; do not hand them the full solution.")
	if problemID != "" {
		fmt.Fprintf(&b, " They are working on the problem %q.", problemID)
	}
	fmt.Fprintf(&b, " Hint level %d of 3: the higher the level, the more direct you may be.", hintLevel)
	if strings.TrimSpace(code) != "" {
		fmt.Fprintf(&b, "\n\nTheir current %s code:\n\n%s", language, code)
	}

	return []ai.Message{
		{Role: "system", Content: b.String()},
		{Role: "user", Content: message},
	}
}
