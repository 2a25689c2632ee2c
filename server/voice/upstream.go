// Package voice implements the real-time relay between a client WebSocket
// and the upstream conversational voice agent. The relay injects cached
// session context before audio flows, forwards frames in both directions
// concurrently and meters character usage for cost estimation.
package voice

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const (
	// DefaultEndpoint is the upstream conversational agent WebSocket endpoint.
	DefaultEndpoint = "wss://api.elevenlabs.io/v1/convai/conversation"

	// PingInterval and PongTimeout drive the upstream keep-alive heartbeat.
	PingInterval = 20 * time.Second
	PongTimeout  = 10 * time.Second

	// DefaultUnitPrice is the upstream price in USD per 1000 characters.
	DefaultUnitPrice = 0.30

	// charsPerMinute converts character counts to estimated speech minutes:
	// ~150 words/min at ~5 chars/word.
	charsPerMinute = 750
)

// Upstream holds the configuration for the remote voice agent.
type Upstream struct {
	APIKey  string
	AgentID string
	// Endpoint overrides DefaultEndpoint; used by tests to point at a mock.
	Endpoint string
	// UnitPrice is USD per 1000 characters.
	UnitPrice float64

	dialer *websocket.Dialer
}

// NewUpstream creates an upstream config with defaults applied.
func NewUpstream(apiKey, agentID string) *Upstream {
	return &Upstream{
		APIKey:    apiKey,
		AgentID:   agentID,
		Endpoint:  DefaultEndpoint,
		UnitPrice: DefaultUnitPrice,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Configured reports whether both credentials are present. The relay fails
// fast per connection when this is false, without attempting a handshake.
func (u *Upstream) Configured() bool {
	return u.APIKey != "" && u.AgentID != ""
}

// URL returns the connection URL carrying the agent id.
func (u *Upstream) URL() string {
	endpoint := u.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return endpoint + "?agent_id=" + url.QueryEscape(u.AgentID)
}

// AuthHeader returns the static credential header for the handshake.
func (u *Upstream) AuthHeader() http.Header {
	header := http.Header{}
	header.Set("xi-api-key", u.APIKey)
	return header
}

// Dial opens the outbound WebSocket to the voice agent.
func (u *Upstream) Dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := u.dialer.DialContext(ctx, u.URL(), u.AuthHeader())
	if err != nil {
		if resp != nil {
			return nil, errors.Wrapf(err, "upstream handshake failed (status %d)", resp.StatusCode)
		}
		return nil, errors.Wrap(err, "upstream handshake failed")
	}
	return conn, nil
}

// Cost estimates the USD cost of a conversation from its character count.
func (u *Upstream) Cost(characters int64) float64 {
	price := u.UnitPrice
	if price == 0 {
		price = DefaultUnitPrice
	}
	return float64(characters) / 1000 * price
}

// EstimatedMinutes estimates speech minutes from a character count.
func (u *Upstream) EstimatedMinutes(characters int64) float64 {
	return float64(characters) / charsPerMinute
}
