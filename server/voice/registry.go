package voice

import (
	"sync"
	"sync/atomic"
	"time"
)

// Connection tracks one active relay connection and its usage meter.
type Connection struct {
	ID          string
	SessionID   string
	ClientAddr  string
	ConnectedAt time.Time

	characters atomic.Int64
}

// AddCharacters adds to the connection's usage meter.
func (c *Connection) AddCharacters(n int64) {
	c.characters.Add(n)
}

// Characters returns the running character count.
func (c *Connection) Characters() int64 {
	return c.characters.Load()
}

// Duration returns how long the connection has been open.
func (c *Connection) Duration() time.Duration {
	return time.Since(c.ConnectedAt)
}

// ConnectionInfo is the stats projection of one connection.
type ConnectionInfo struct {
	ID              string `json:"id"`
	ClientAddr      string `json:"client_addr"`
	SessionID       string `json:"session_id,omitempty"`
	DurationSeconds int64  `json:"duration_seconds"`
	CharactersUsed  int64  `json:"characters_used"`
}

// Registry is the shared collection of active relay connections.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Connection)}
}

// Add registers a connection.
func (r *Registry) Add(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn.ID] = conn
}

// Remove unregisters a connection. Returns false if it was not present,
// which makes teardown idempotent.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[id]; !ok {
		return false
	}
	delete(r.conns, id)
	return true
}

// Count returns the number of active connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// TotalCharacters sums the usage meters of all active connections.
func (r *Registry) TotalCharacters() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total int64
	for _, conn := range r.conns {
		total += conn.Characters()
	}
	return total
}

// Snapshot returns stats for all active connections.
func (r *Registry) Snapshot() []ConnectionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ConnectionInfo, 0, len(r.conns))
	for _, conn := range r.conns {
		out = append(out, ConnectionInfo{
			ID:              conn.ID,
			ClientAddr:      conn.ClientAddr,
			SessionID:       conn.SessionID,
			DurationSeconds: int64(conn.Duration().Seconds()),
			CharactersUsed:  conn.Characters(),
		})
	}
	return out
}
