// Package eventstore implements the append-only, totally ordered per-session
// event log and its materialized CRDT projection.
package eventstore

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/openclaw/gateway/internal/ids"
)

// Kind tags the variant of a SessionEvent.
type Kind string

const (
	KindSessionStarted   Kind = "session_started"
	KindMessageReceived  Kind = "message_received"
	KindMessageSent      Kind = "message_sent"
	KindAgentResponse    Kind = "agent_response"
	KindToolCalled       Kind = "tool_called"
	KindToolResult       Kind = "tool_result"
	KindStateChanged     Kind = "state_changed"
	KindSessionEnded     Kind = "session_ended"
)

// SessionStarted payload.
type SessionStarted struct {
	Channel string `json:"channel"`
	PeerID  string `json:"peerId"`
}

// MessageReceived payload.
type MessageReceived struct {
	Content     string   `json:"content"`
	Attachments []string `json:"attachments,omitempty"`
}

// MessageSent payload.
type MessageSent struct {
	Content   string `json:"content"`
	MessageID string `json:"messageId"`
}

// AgentResponse payload.
type AgentResponse struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Tokens  int64  `json:"tokens"`
}

// ToolCalled payload.
type ToolCalled struct {
	ToolName string          `json:"toolName"`
	Params   json.RawMessage `json:"params"`
}

// ToolResult payload.
type ToolResult struct {
	ToolName string          `json:"toolName"`
	Result   json.RawMessage `json:"result"`
	Success  bool            `json:"success"`
}

// StateChanged payload.
type StateChanged struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// SessionEnded payload.
type SessionEnded struct {
	Reason string `json:"reason"`
}

// EventID is a content-addressed 32-byte BLAKE2b-256 digest: two events
// produced from identical creation inputs are identical.
type EventID [32]byte

// Hex renders the id as 64 lowercase hex characters.
func (id EventID) Hex() string { return hex.EncodeToString(id[:]) }

// Less implements the lexicographic event-id tie-break used for ordering
// events that share a timestamp.
func (id EventID) Less(other EventID) bool {
	for i := range id {
		if id[i] != other[i] {
			return id[i] < other[i]
		}
	}
	return false
}

// Event is one immutable record of something that happened in a session.
type Event struct {
	ID         EventID
	SessionKey ids.SessionKey
	AgentID    ids.AgentId
	Timestamp  time.Time
	Kind       Kind
	Payload    json.RawMessage
}

// computeID derives the content-addressed id from the event's creation inputs.
func computeID(sessionKey ids.SessionKey, agentID ids.AgentId, ts time.Time, kind Kind, payload json.RawMessage) EventID {
	content := fmt.Sprintf("%s|%s|%d|%s|%s", sessionKey, agentID, ts.UTC().UnixNano(), kind, string(payload))
	return blake2b.Sum256([]byte(content))
}

// NewEvent builds an Event with its id derived from its content, so that two
// calls with identical arguments produce the identical event.
func NewEvent(sessionKey ids.SessionKey, agentID ids.AgentId, ts time.Time, kind Kind, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("eventstore: marshal payload: %w", err)
	}
	ts = ts.UTC()
	id := computeID(sessionKey, agentID, ts, kind, raw)
	return Event{
		ID:         id,
		SessionKey: sessionKey,
		AgentID:    agentID,
		Timestamp:  ts,
		Kind:       kind,
		Payload:    raw,
	}, nil
}

// wireEvent is the JSON-serializable form stored in the backend.
type wireEvent struct {
	ID         string          `json:"id"`
	SessionKey string          `json:"sessionKey"`
	AgentID    string          `json:"agentId"`
	Timestamp  time.Time       `json:"timestamp"`
	Kind       Kind            `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
}

func (e Event) marshal() ([]byte, error) {
	return json.Marshal(wireEvent{
		ID:         e.ID.Hex(),
		SessionKey: string(e.SessionKey),
		AgentID:    string(e.AgentID),
		Timestamp:  e.Timestamp,
		Kind:       e.Kind,
		Payload:    e.Payload,
	})
}

func unmarshalEvent(raw []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return Event{}, err
	}
	idBytes, err := hex.DecodeString(w.ID)
	if err != nil || len(idBytes) != 32 {
		return Event{}, fmt.Errorf("eventstore: malformed event id %q", w.ID)
	}
	var id EventID
	copy(id[:], idBytes)
	return Event{
		ID:         id,
		SessionKey: ids.SessionKey(w.SessionKey),
		AgentID:    ids.AgentId(w.AgentID),
		Timestamp:  w.Timestamp,
		Kind:       w.Kind,
		Payload:    w.Payload,
	}, nil
}
