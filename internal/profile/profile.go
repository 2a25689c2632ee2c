package profile

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Version is the current version of server
	Version string
	// Origins is the list of allowed CORS origins for the frontend
	Origins []string

	// Voice upstream configuration. Both values are required for the voice
	// relay; when either is missing the relay fails fast per connection
	// instead of refusing to start the server.
	ElevenLabsAPIKey  string // VOICECODE_ELEVENLABS_API_KEY
	ElevenLabsAgentID string // VOICECODE_ELEVENLABS_AGENT_ID

	// Chat completion configuration.
	OpenAIAPIKey  string // VOICECODE_OPENAI_API_KEY
	OpenAIBaseURL string // VOICECODE_OPENAI_BASE_URL (default: https://api.openai.com/v1)
	ChatModel     string // VOICECODE_CHAT_MODEL (default: gpt-4o-mini)

	// Rate limiting (requests per window, per client IP).
	ChatRateLimit       int // VOICECODE_CHAT_RATE_LIMIT (default: 10)
	ChatRateLimitWindow int // VOICECODE_CHAT_RATE_LIMIT_WINDOW seconds (default: 60)

	// MaxVoiceConnections caps concurrently active relay connections.
	MaxVoiceConnections int64 // VOICECODE_MAX_VOICE_CONNECTIONS (default: 32)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsVoiceConfigured returns true if the upstream voice agent credentials are set.
func (p *Profile) IsVoiceConfigured() bool {
	return p.ElevenLabsAPIKey != "" && p.ElevenLabsAgentID != ""
}

// IsChatConfigured returns true if the chat completion backend is usable.
func (p *Profile) IsChatConfigured() bool {
	return p.OpenAIAPIKey != ""
}

// Validate normalizes the profile and rejects values the server cannot run with.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}
	if p.Port <= 0 || p.Port > 65535 {
		return errors.Errorf("invalid port %d", p.Port)
	}
	if p.OpenAIBaseURL == "" {
		p.OpenAIBaseURL = "https://api.openai.com/v1"
	}
	if p.ChatModel == "" {
		p.ChatModel = "gpt-4o-mini"
	}
	if p.ChatRateLimit <= 0 {
		p.ChatRateLimit = 10
	}
	if p.ChatRateLimitWindow <= 0 {
		p.ChatRateLimitWindow = 60
	}
	if p.MaxVoiceConnections <= 0 {
		p.MaxVoiceConnections = 32
	}
	if len(p.Origins) == 0 {
		p.Origins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	for i, origin := range p.Origins {
		p.Origins[i] = strings.TrimSuffix(strings.TrimSpace(origin), "/")
	}
	return nil
}

func (p *Profile) String() string {
	voice := "not configured"
	if p.IsVoiceConfigured() {
		voice = "configured"
	}
	chat := "not configured"
	if p.IsChatConfigured() {
		chat = "configured"
	}
	return fmt.Sprintf("mode=%s addr=%s port=%d voice=%s chat=%s", p.Mode, p.Addr, p.Port, voice, chat)
}
