package voice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lithammer/shortuuid/v4"

	"github.com/voicecode/mentor/server/finops"
	"github.com/voicecode/mentor/server/internal/errors"
	"github.com/voicecode/mentor/internal/observability"
	"github.com/voicecode/mentor/server/session"
)

// State is the lifecycle phase of one relay connection.
type State int32

const (
	StateConnecting State = iota
	StatePriming
	StateRelaying
	StateClosing
	StateClosed
)

const (
	// DefaultPrimingDelay gives the upstream agent time to ingest the
	// priming message before audio starts flowing.
	DefaultPrimingDelay = 300 * time.Millisecond

	// primingCodeLimit caps how much of the session's code the priming
	// message carries.
	primingCodeLimit = 800

	upstreamLostMessage = "Lost connection to voice service"
)

// errorFrame is the single diagnostic frame sent to the client on failure.
type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// textFrame is the upstream text-control envelope.
type textFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// audioChunk wraps raw client audio in the upstream's base64 JSON envelope.
type audioChunk struct {
	UserAudioChunk string `json:"user_audio_chunk"`
}

// upstreamEvent is the subset of the upstream JSON messages the relay
// inspects. Everything else is forwarded verbatim.
type upstreamEvent struct {
	Text       string `json:"text"`
	AudioEvent *struct {
		AudioBase64 string `json:"audio_base_64"`
	} `json:"audio_event"`
	AgentResponseEvent *struct {
		Response string `json:"response"`
	} `json:"agent_response_event"`
}

// Relay proxies client WebSocket connections to the upstream voice agent.
// It reads the session store to prime upstream with cached context and never
// mutates it.
type Relay struct {
	upstream *Upstream
	sessions *session.Store
	registry *Registry
	metrics  *observability.RelayMetrics
	spend    *finops.SpendMonitor
	logger   *slog.Logger

	// PrimingDelay is overridable in tests to keep them fast.
	PrimingDelay time.Duration
}

// NewRelay wires a relay against its collaborators.
func NewRelay(upstream *Upstream, sessions *session.Store, registry *Registry, metrics *observability.RelayMetrics, spend *finops.SpendMonitor, logger *slog.Logger) *Relay {
	return &Relay{
		upstream:     upstream,
		sessions:     sessions,
		registry:     registry,
		metrics:      metrics,
		spend:        spend,
		logger:       logger,
		PrimingDelay: DefaultPrimingDelay,
	}
}

// relayConn is the per-connection state machine.
type relayConn struct {
	relay    *Relay
	info     *Connection
	client   *websocket.Conn
	upstream *websocket.Conn
	log      *slog.Logger

	state     atomic.Int32
	closeOnce sync.Once
}

func (rc *relayConn) setState(s State) {
	rc.state.Store(int32(s))
}

// State returns the current lifecycle phase.
func (rc *relayConn) State() State {
	return State(rc.state.Load())
}

// Handle drives one relay connection from accept to teardown. It owns the
// client connection and closes it before returning.
func (r *Relay) Handle(ctx context.Context, client *websocket.Conn, sessionID, clientAddr string) {
	connectionID := shortuuid.New()
	log := observability.ConnectionLogger(r.logger, connectionID, sessionID, clientAddr)
	log.Info("voice connection opened")

	// Configuration failure is terminal before any upstream attempt.
	if !r.upstream.Configured() {
		writeErrorFrame(client, errors.VoiceNotConfigured().Message)
		_ = client.Close()
		log.Warn("voice relay refused, upstream not configured")
		return
	}

	upstreamConn, err := r.upstream.Dial(ctx)
	if err != nil {
		log.Error("upstream dial failed", "error", err)
		writeErrorFrame(client, upstreamLostMessage)
		_ = client.Close()
		return
	}
	log.Info("upstream connected")

	// The connection exists only once both legs are up; a failed dial never
	// shows in the registry or health output.
	info := &Connection{
		ID:          connectionID,
		SessionID:   sessionID,
		ClientAddr:  clientAddr,
		ConnectedAt: time.Now(),
	}
	r.registry.Add(info)
	r.metrics.ConnectionOpened()

	rc := &relayConn{
		relay:    r,
		info:     info,
		client:   client,
		upstream: upstreamConn,
		log:      log,
	}
	defer rc.close()

	rc.setState(StatePriming)
	if sessionID != "" {
		rc.prime(ctx, sessionID)
	}

	rc.setState(StateRelaying)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Closing both conns is the only way to unblock a pending read, so a
	// watcher turns cancellation into closes.
	go func() {
		<-ctx.Done()
		_ = upstreamConn.Close()
		_ = client.Close()
	}()

	upstreamConn.SetReadDeadline(time.Now().Add(PingInterval + PongTimeout))
	upstreamConn.SetPongHandler(func(string) error {
		return upstreamConn.SetReadDeadline(time.Now().Add(PingInterval + PongTimeout))
	})
	go heartbeat(ctx, upstreamConn)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer cancel()
		rc.forwardClientToUpstream()
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		rc.forwardUpstreamToClient()
	}()
	wg.Wait()
}

// prime sends the one-shot context message before any forwarding starts and
// waits briefly so upstream ingests it first.
func (rc *relayConn) prime(ctx context.Context, sessionID string) {
	sess, ok := rc.relay.sessions.Get(sessionID)
	if !ok {
		rc.log.Debug("session not found, skipping priming")
		return
	}

	frame, err := json.Marshal(textFrame{Type: "text", Text: buildPrimingMessage(sess)})
	if err != nil {
		rc.log.Warn("failed to encode priming message", "error", err)
		return
	}
	if err := rc.upstream.WriteMessage(websocket.TextMessage, frame); err != nil {
		rc.log.Warn("failed to send priming message", "error", err)
		return
	}
	rc.log.Info("priming message sent", "code_length", len(sess.CurrentCode))

	select {
	case <-time.After(rc.relay.PrimingDelay):
	case <-ctx.Done():
	}
}

// buildPrimingMessage derives the context message from the session fields.
// The subject always comes from the session, never from a fixed problem name.
func buildPrimingMessage(sess *session.Session) string {
	subject := sess.ProblemTitle
	if subject == "" {
		subject = sess.ProblemID
	}
	if subject == "" {
		subject = "their current coding problem"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CONTEXT: The student is working on %s.\n\n", subject)

	if strings.TrimSpace(sess.CurrentCode) != "" {
		snippet := sess.CurrentCode
		if runes := []rune(snippet); len(runes) > primingCodeLimit {
			// Cut on a rune boundary; code snippets can carry multi-byte
			// string literals and comments.
			snippet = string(runes[:primingCodeLimit]) + "..."
		}
		fmt.Fprintf(&b, "Here's their current %s code:\n\n%s\n\n", sess.Language, snippet)
		b.WriteString("You can see their code. Help them find errors, suggest improvements, or guide them with the Socratic method.")
	} else {
		b.WriteString("They haven't written any code yet. Help them get started!")
	}
	return b.String()
}

// forwardClientToUpstream relays client frames to the voice agent. A client
// disconnect ends the loop cleanly; it is not an error.
func (rc *relayConn) forwardClientToUpstream() {
	for {
		messageType, data, err := rc.client.ReadMessage()
		if err != nil {
			if isExpectedClose(err) {
				rc.log.Info("client disconnected")
			} else {
				rc.log.Debug("client read ended", "error", err)
			}
			return
		}

		switch messageType {
		case websocket.TextMessage:
			// Control messages pass through verbatim.
			if err := rc.upstream.WriteMessage(websocket.TextMessage, data); err != nil {
				rc.log.Debug("upstream write failed", "error", err)
				return
			}
			rc.meterClientText(data)
		case websocket.BinaryMessage:
			// Raw audio becomes the upstream's base64 JSON envelope.
			envelope, err := json.Marshal(audioChunk{
				UserAudioChunk: base64Encode(data),
			})
			if err != nil {
				continue
			}
			if err := rc.upstream.WriteMessage(websocket.TextMessage, envelope); err != nil {
				rc.log.Debug("upstream write failed", "error", err)
				return
			}
		default:
			continue
		}
		rc.relay.metrics.FrameToUpstream()
	}
}

// forwardUpstreamToClient relays voice-agent messages back to the client,
// unwrapping base64 audio into binary frames so the client never decodes.
func (rc *relayConn) forwardUpstreamToClient() {
	for {
		messageType, data, err := rc.upstream.ReadMessage()
		if err != nil {
			if isExpectedClose(err) {
				rc.log.Info("upstream closed")
			} else {
				rc.log.Error("upstream read failed", "error", err)
				writeErrorFrame(rc.client, upstreamLostMessage)
			}
			return
		}

		if messageType == websocket.BinaryMessage {
			// Raw binary from upstream is unexpected but forwarded as-is.
			if err := rc.client.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
			rc.relay.metrics.FrameToClient()
			continue
		}

		var event upstreamEvent
		decoded := json.Unmarshal(data, &event) == nil

		forwarded := false
		if decoded && event.AudioEvent != nil && event.AudioEvent.AudioBase64 != "" {
			if audio, err := base64Decode(event.AudioEvent.AudioBase64); err == nil {
				if err := rc.client.WriteMessage(websocket.BinaryMessage, audio); err != nil {
					return
				}
				forwarded = true
			}
		}
		if !forwarded {
			if err := rc.client.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}

		if decoded {
			rc.meterUpstreamEvent(&event)
		}
		rc.relay.metrics.FrameToClient()
	}
}

// meterClientText counts the characters of a client text-control message.
func (rc *relayConn) meterClientText(data []byte) {
	var frame textFrame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Text == "" {
		return
	}
	rc.addCharacters(int64(len(frame.Text)))
}

// meterUpstreamEvent counts each logical upstream utterance once: the agent
// response text when present, otherwise the generic text field.
func (rc *relayConn) meterUpstreamEvent(event *upstreamEvent) {
	switch {
	case event.AgentResponseEvent != nil && event.AgentResponseEvent.Response != "":
		rc.addCharacters(int64(len(event.AgentResponseEvent.Response)))
	case event.Text != "":
		rc.addCharacters(int64(len(event.Text)))
	}
}

func (rc *relayConn) addCharacters(n int64) {
	rc.info.AddCharacters(n)
	rc.relay.metrics.CharactersRelayed(n)
}

// close tears down both legs exactly once, finalizes the usage figures and
// removes the connection from the registry.
func (rc *relayConn) close() {
	rc.closeOnce.Do(func() {
		rc.setState(StateClosing)

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		deadline := time.Now().Add(time.Second)
		if rc.upstream != nil {
			_ = rc.upstream.WriteControl(websocket.CloseMessage, closeMsg, deadline)
			_ = rc.upstream.Close()
		}
		_ = rc.client.WriteControl(websocket.CloseMessage, closeMsg, deadline)
		_ = rc.client.Close()

		duration := rc.info.Duration()
		characters := rc.info.Characters()
		cost := rc.relay.upstream.Cost(characters)
		rc.log.Info("voice session ended",
			observability.LogFieldDuration, duration.Milliseconds(),
			observability.LogFieldCharacters, characters,
			"estimated_minutes", rc.relay.upstream.EstimatedMinutes(characters),
			"estimated_cost_usd", cost)

		rc.relay.spend.Record(finops.ConversationRecord{
			ConnectionID: rc.info.ID,
			SessionID:    rc.info.SessionID,
			Characters:   characters,
			Duration:     duration,
			CostUSD:      cost,
			EndedAt:      time.Now(),
		})

		rc.relay.registry.Remove(rc.info.ID)
		rc.relay.metrics.ConnectionClosed()
		rc.setState(StateClosed)
	})
}

// heartbeat pings upstream until the context ends. WriteControl is safe to
// call concurrently with the forwarding writes.
func heartbeat(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(PongTimeout)); err != nil {
				return
			}
		}
	}
}

// writeErrorFrame best-effort sends the single diagnostic frame to a client.
func writeErrorFrame(conn *websocket.Conn, message string) {
	frame, err := json.Marshal(errorFrame{Type: "error", Message: message})
	if err != nil {
		return
	}
	_ = conn.WriteMessage(websocket.TextMessage, frame)
}

// isExpectedClose reports whether a read error is a normal end-of-session
// signal rather than a failure.
func isExpectedClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived)
}

func base64Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func base64Decode(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
