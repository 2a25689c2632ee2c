package observability

import (
	"sync/atomic"
)

// RelayMetrics collects process-lifetime counters for the voice relay.
// All counters are monotonic and safe for concurrent use.
type RelayMetrics struct {
	connectionsOpened atomic.Int64
	connectionsClosed atomic.Int64
	charactersRelayed atomic.Int64
	framesToUpstream  atomic.Int64
	framesToClient    atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	ConnectionsOpened int64 `json:"connections_opened"`
	ConnectionsClosed int64 `json:"connections_closed"`
	CharactersRelayed int64 `json:"characters_relayed"`
	FramesToUpstream  int64 `json:"frames_to_upstream"`
	FramesToClient    int64 `json:"frames_to_client"`
}

// NewRelayMetrics creates a zeroed metrics collector.
func NewRelayMetrics() *RelayMetrics {
	return &RelayMetrics{}
}

// ConnectionOpened records a relay connection entering the registry.
func (m *RelayMetrics) ConnectionOpened() { m.connectionsOpened.Add(1) }

// ConnectionClosed records a relay connection leaving the registry.
func (m *RelayMetrics) ConnectionClosed() { m.connectionsClosed.Add(1) }

// CharactersRelayed adds to the lifetime character count.
func (m *RelayMetrics) CharactersRelayed(n int64) { m.charactersRelayed.Add(n) }

// FrameToUpstream records one forwarded client frame.
func (m *RelayMetrics) FrameToUpstream() { m.framesToUpstream.Add(1) }

// FrameToClient records one forwarded upstream message.
func (m *RelayMetrics) FrameToClient() { m.framesToClient.Add(1) }

// Snapshot returns a copy of the current counters.
func (m *RelayMetrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		ConnectionsOpened: m.connectionsOpened.Load(),
		ConnectionsClosed: m.connectionsClosed.Load(),
		CharactersRelayed: m.charactersRelayed.Load(),
		FramesToUpstream:  m.framesToUpstream.Load(),
		FramesToClient:    m.framesToClient.Load(),
	}
}
