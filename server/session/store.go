package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	apierrors "github.com/voicecode/mentor/server/internal/errors"
)

const (
	// DefaultMaxHistory is the conversation ring size; oldest entries drop first.
	DefaultMaxHistory = 20
	// DefaultMaxExchanges bounds the summary projection (one exchange = two messages).
	DefaultMaxExchanges = 5
	// DefaultMaxAge is the idle threshold for the periodic sweep.
	DefaultMaxAge = 24 * time.Hour

	// summaryContentLimit truncates individual messages inside the summary.
	summaryContentLimit = 150

	summaryHeader = "[PREVIOUS CONVERSATION SUMMARY]"
	summaryFooter = "[END OF SUMMARY - Continue from where we left off]"
)

// Store is the process-wide session cache. All methods are safe for
// concurrent use; a single coarse lock covers the cheap critical sections.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	// now is injectable for tests.
	now func() time.Time
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Get retrieves a session copy by ID. The second return value reports presence.
func (s *Store) Get(sessionID string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return sess.clone(), true
}

// Create registers a new session. It fails if the session ID is already
// taken; callers are expected to generate a fresh random ID.
func (s *Store) Create(sessionID, ownerAddr string, opts CreateOptions) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; ok {
		return nil, apierrors.SessionExists()
	}

	now := s.now()
	language := opts.Language
	if language == "" {
		language = "python"
	}
	sess := &Session{
		SessionID:    sessionID,
		OwnerAddr:    ownerAddr,
		ProblemID:    opts.ProblemID,
		ProblemTitle: opts.ProblemTitle,
		CurrentCode:  opts.CurrentCode,
		Language:     language,
		HintLevel:    clampHintLevel(opts.HintLevel),
		CreatedAt:    now,
		LastUpdated:  now,
		History:      []Message{},
	}
	s.sessions[sessionID] = sess
	return sess.clone(), nil
}

// Update applies a sparse patch: only non-nil fields change, everything else
// keeps its prior value. LastUpdated is refreshed on every call. Returns the
// updated copy, or false if the session does not exist.
func (s *Store) Update(sessionID string, patch UpdatePatch) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}

	if patch.ProblemID != nil {
		sess.ProblemID = *patch.ProblemID
	}
	if patch.ProblemTitle != nil {
		sess.ProblemTitle = *patch.ProblemTitle
	}
	if patch.CurrentCode != nil {
		sess.CurrentCode = *patch.CurrentCode
	}
	if patch.Language != nil {
		sess.Language = *patch.Language
	}
	if patch.HintLevel != nil {
		sess.HintLevel = clampHintLevel(*patch.HintLevel)
	}
	if patch.MessageCount != nil {
		sess.MessageCount = *patch.MessageCount
	}
	sess.LastUpdated = s.now()
	return sess.clone(), true
}

// AppendMessage adds one conversation turn and trims the history to the last
// maxHistory entries, keeping the most recent. MessageCount keeps counting
// past the trim point. Returns the updated copy so callers see the post-append
// state without a second racy lookup, or false if the session does not exist.
func (s *Store) AppendMessage(sessionID string, role Role, content string, maxHistory int) (*Session, bool) {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}

	sess.History = append(sess.History, Message{
		Role:      role,
		Content:   content,
		Timestamp: s.now(),
	})
	if len(sess.History) > maxHistory {
		sess.History = sess.History[len(sess.History)-maxHistory:]
	}
	sess.MessageCount++
	sess.LastUpdated = s.now()
	return sess.clone(), true
}

// Summary renders the most recent maxExchanges*2 messages into a fixed text
// block used to prime the voice agent. Purely a projection; returns "" when
// the session is unknown or has no history.
func (s *Store) Summary(sessionID string, maxExchanges int) string {
	if maxExchanges <= 0 {
		maxExchanges = DefaultMaxExchanges
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok || len(sess.History) == 0 {
		return ""
	}

	recent := sess.History
	if limit := maxExchanges * 2; len(recent) > limit {
		recent = recent[len(recent)-limit:]
	}

	var b strings.Builder
	b.WriteString(summaryHeader)
	for _, msg := range recent {
		label := "User"
		if msg.Role == RoleAssistant {
			label = "You (AI)"
		}
		fmt.Fprintf(&b, "\n- %s: %s", label, truncateRunes(msg.Content, summaryContentLimit))
	}
	b.WriteString("\n")
	b.WriteString(summaryFooter)
	return b.String()
}

// truncateRunes cuts on a rune boundary so multi-byte characters never get
// split mid-sequence.
func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

// Delete removes a session. Returns false if it did not exist.
func (s *Store) Delete(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return false
	}
	delete(s.sessions, sessionID)
	return true
}

// Sweep removes every session whose LastUpdated age exceeds maxAge and
// returns the number removed.
func (s *Store) Sweep(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxAge)
	removed := 0
	for id, sess := range s.sessions {
		if sess.LastUpdated.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Count returns the number of live sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// List returns copies of all live sessions, order unspecified.
func (s *Store) List() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.clone())
	}
	return out
}

// Stats aggregates store-wide counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{TotalSessions: len(s.sessions)}
	for _, sess := range s.sessions {
		if sess.MessageCount > 0 {
			stats.ActiveSessions++
		}
		stats.TotalMessages += sess.MessageCount
	}
	if stats.TotalSessions > 0 {
		stats.AvgMessages = float64(stats.TotalMessages) / float64(stats.TotalSessions)
	}
	return stats
}
