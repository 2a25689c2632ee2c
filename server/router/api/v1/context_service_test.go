package v1

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicecode/mentor/internal/profile"
	"github.com/voicecode/mentor/server/ai"
	"github.com/voicecode/mentor/server/ratelimit"
	"github.com/voicecode/mentor/server/session"
)

type v1Harness struct {
	echo       *echo.Echo
	service    *APIV1Service
	completion *ai.MockCompletionService
}

func newV1Harness(t *testing.T) *v1Harness {
	t.Helper()

	p := &profile.Profile{Mode: "dev", Port: 8080}
	require.NoError(t, p.Validate())

	completion := ai.NewMockCompletionService("Think about what data structure gives O(1) lookups.")
	service := NewAPIV1Service(
		p,
		session.NewStore(),
		ratelimit.NewLimiter(),
		completion,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	e := echo.New()
	service.Register(e)
	return &v1Harness{echo: e, service: service, completion: completion}
}

func (h *v1Harness) do(method, target, sessionID, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.RemoteAddr = "192.0.2.1:51234"
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if sessionID != "" {
		req.Header.Set(SessionIDHeader, sessionID)
	}
	rec := httptest.NewRecorder()
	h.echo.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSyncContextCreatesSession(t *testing.T) {
	h := newV1Harness(t)

	rec := h.do(http.MethodPost, "/api/context/sync", "",
		`{"code":"def f(): pass","problem_id":"two-sum","problem_title":"Two Sum","language":"python","hint_level":1}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["synced"])
	sessionID, _ := body["session_id"].(string)
	require.NotEmpty(t, sessionID)

	sess, ok := h.service.Sessions.Get(sessionID)
	require.True(t, ok)
	assert.Equal(t, "two-sum", sess.ProblemID)
	assert.Equal(t, "Two Sum", sess.ProblemTitle)
	assert.Equal(t, "def f(): pass", sess.CurrentCode)
	assert.Equal(t, 1, sess.HintLevel)
	assert.Equal(t, "192.0.2.1", sess.OwnerAddr)
}

func TestSyncContextUpdatesExistingSession(t *testing.T) {
	h := newV1Harness(t)

	rec := h.do(http.MethodPost, "/api/context/sync", "",
		`{"code":"v1","problem_id":"two-sum","language":"python","hint_level":0}`)
	sessionID := decodeBody(t, rec)["session_id"].(string)

	// A later sync that omits problem_id must not blank it out.
	rec = h.do(http.MethodPost, "/api/context/sync", sessionID,
		`{"code":"v2","language":"python","hint_level":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, sessionID, decodeBody(t, rec)["session_id"])

	sess, ok := h.service.Sessions.Get(sessionID)
	require.True(t, ok)
	assert.Equal(t, "v2", sess.CurrentCode)
	assert.Equal(t, "two-sum", sess.ProblemID)
	assert.Equal(t, 2, sess.HintLevel)
}

func TestSyncContextUnknownSessionCreatesFresh(t *testing.T) {
	h := newV1Harness(t)

	rec := h.do(http.MethodPost, "/api/context/sync", "stale-id",
		`{"language":"python","hint_level":0}`)
	require.Equal(t, http.StatusOK, rec.Code)

	newID := decodeBody(t, rec)["session_id"].(string)
	assert.NotEqual(t, "stale-id", newID)
	_, ok := h.service.Sessions.Get(newID)
	assert.True(t, ok)
}

func TestSyncContextValidation(t *testing.T) {
	h := newV1Harness(t)

	rec := h.do(http.MethodPost, "/api/context/sync", "",
		`{"hint_level":7,"language":"python"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	huge := strings.Repeat("x", maxCodeSize+1)
	rec = h.do(http.MethodPost, "/api/context/sync", "",
		`{"code":"`+huge+`","language":"python","hint_level":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSessionInfo(t *testing.T) {
	h := newV1Harness(t)

	rec := h.do(http.MethodPost, "/api/context/sync", "",
		`{"code":"abcdef","problem_id":"two-sum","language":"go","hint_level":0}`)
	sessionID := decodeBody(t, rec)["session_id"].(string)

	rec = h.do(http.MethodGet, "/api/context/session/"+sessionID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, sessionID, body["session_id"])
	assert.Equal(t, "two-sum", body["problem_id"])
	assert.Equal(t, float64(6), body["code_length"])

	rec = h.do(http.MethodGet, "/api/context/session/missing", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteSession(t *testing.T) {
	h := newV1Harness(t)

	rec := h.do(http.MethodPost, "/api/context/sync", "", `{"language":"python","hint_level":0}`)
	sessionID := decodeBody(t, rec)["session_id"].(string)

	rec = h.do(http.MethodDelete, "/api/context/session/"+sessionID, "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodDelete, "/api/context/session/"+sessionID, "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddMessageAndSummary(t *testing.T) {
	h := newV1Harness(t)

	rec := h.do(http.MethodPost, "/api/context/sync", "", `{"language":"python","hint_level":0}`)
	sessionID := decodeBody(t, rec)["session_id"].(string)

	rec = h.do(http.MethodPost, "/api/context/message", sessionID,
		`{"role":"user","content":"How do I start?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodPost, "/api/context/message", sessionID,
		`{"role":"assistant","content":"What does the problem ask for?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(2), body["message_count"])
	assert.Equal(t, float64(2), body["history_size"])

	rec = h.do(http.MethodGet, "/api/context/summary/"+sessionID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, true, body["has_history"])
	summary, _ := body["summary"].(string)
	assert.Contains(t, summary, "- User: How do I start?")
	assert.Contains(t, summary, "- You (AI): What does the problem ask for?")
}

func TestAddMessageValidation(t *testing.T) {
	h := newV1Harness(t)

	rec := h.do(http.MethodPost, "/api/context/message", "",
		`{"role":"user","content":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing session header")

	rec = h.do(http.MethodPost, "/api/context/message", "some-id",
		`{"role":"narrator","content":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "invalid role")

	rec = h.do(http.MethodPost, "/api/context/message", "some-id",
		`{"role":"user","content":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "empty content")

	rec = h.do(http.MethodPost, "/api/context/message", "missing-session",
		`{"role":"user","content":"hi"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code, "unknown session")
}

func TestContextStatsAndCleanup(t *testing.T) {
	h := newV1Harness(t)

	rec := h.do(http.MethodPost, "/api/context/sync", "", `{"language":"python","hint_level":0}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodGet, "/api/context/stats", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["total_sessions"])

	// Nothing is older than an hour; the sweep removes nothing.
	rec = h.do(http.MethodPost, "/api/context/cleanup?max_age_hours=1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(0), body["removed"])
	assert.Equal(t, float64(1), body["remaining"])

	rec = h.do(http.MethodPost, "/api/context/cleanup?max_age_hours=zero", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
