// Package session provides the in-memory store of per-client coding sessions.
// A session caches the client's current problem, code and recent conversation
// so the voice relay and chat endpoints can recover context without the
// frontend resending it on every call.
package session

import (
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsValid reports whether the role is one of the two accepted values.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one turn of conversation. Immutable once appended.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session represents a client's coding session with cached context.
type Session struct {
	SessionID    string    `json:"session_id"`
	OwnerAddr    string    `json:"owner_addr"` // client network address, informational only
	ProblemID    string    `json:"problem_id,omitempty"`
	ProblemTitle string    `json:"problem_title,omitempty"`
	CurrentCode  string    `json:"current_code"`
	Language     string    `json:"language"`
	HintLevel    int       `json:"hint_level"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	LastUpdated  time.Time `json:"last_updated"`
	History      []Message `json:"conversation_history"`
}

// clone returns a deep copy so callers never hold a reference into the store.
func (s *Session) clone() *Session {
	dup := *s
	dup.History = make([]Message, len(s.History))
	copy(dup.History, s.History)
	return &dup
}

// CreateOptions holds the initial fields for a new session.
type CreateOptions struct {
	ProblemID    string
	ProblemTitle string
	CurrentCode  string
	Language     string
	HintLevel    int
}

// UpdatePatch applies sparse updates: nil fields retain their prior value.
type UpdatePatch struct {
	ProblemID    *string
	ProblemTitle *string
	CurrentCode  *string
	Language     *string
	HintLevel    *int
	MessageCount *int
}

// Stats aggregates store-wide counters.
type Stats struct {
	TotalSessions  int     `json:"total_sessions"`
	ActiveSessions int     `json:"active_sessions"` // sessions with at least one message
	TotalMessages  int     `json:"total_messages"`
	AvgMessages    float64 `json:"avg_messages_per_session"`
}

const (
	// MinHintLevel and MaxHintLevel bound the hint escalation ladder.
	MinHintLevel = 0
	MaxHintLevel = 3
)

func clampHintLevel(level int) int {
	if level < MinHintLevel {
		return MinHintLevel
	}
	if level > MaxHintLevel {
		return MaxHintLevel
	}
	return level
}
