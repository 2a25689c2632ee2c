package voice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpstreamConfigured(t *testing.T) {
	assert.True(t, NewUpstream("key", "agent").Configured())
	assert.False(t, NewUpstream("", "agent").Configured())
	assert.False(t, NewUpstream("key", "").Configured())
	assert.False(t, NewUpstream("", "").Configured())
}

func TestUpstreamURL(t *testing.T) {
	u := NewUpstream("key", "agent-123")
	assert.Equal(t, "wss://api.elevenlabs.io/v1/convai/conversation?agent_id=agent-123", u.URL())

	u.AgentID = "agent with spaces"
	assert.Equal(t, "wss://api.elevenlabs.io/v1/convai/conversation?agent_id=agent+with+spaces", u.URL())

	u.Endpoint = "ws://127.0.0.1:9999/mock"
	u.AgentID = "a"
	assert.Equal(t, "ws://127.0.0.1:9999/mock?agent_id=a", u.URL())
}

func TestUpstreamAuthHeader(t *testing.T) {
	u := NewUpstream("secret-key", "agent")
	assert.Equal(t, "secret-key", u.AuthHeader().Get("xi-api-key"))
}

func TestUpstreamCost(t *testing.T) {
	u := NewUpstream("key", "agent")

	assert.InDelta(t, 0.0, u.Cost(0), 1e-9)
	assert.InDelta(t, 0.30, u.Cost(1000), 1e-9)
	assert.InDelta(t, 0.45, u.Cost(1500), 1e-9)

	u.UnitPrice = 0.10
	assert.InDelta(t, 0.10, u.Cost(1000), 1e-9)
}

func TestUpstreamEstimatedMinutes(t *testing.T) {
	u := NewUpstream("key", "agent")

	assert.InDelta(t, 0.0, u.EstimatedMinutes(0), 1e-9)
	assert.InDelta(t, 1.0, u.EstimatedMinutes(750), 1e-9)
	assert.InDelta(t, 2.0, u.EstimatedMinutes(1500), 1e-9)
}
