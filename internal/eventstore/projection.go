package eventstore

import (
	"encoding/json"
	"time"

	"github.com/openclaw/gateway/internal/ids"
)

// SessionState is the lifecycle state of a session's materialized projection.
type SessionState string

const (
	StateActive SessionState = "active"
	StatePaused SessionState = "paused"
	StateEnded  SessionState = "ended"
)

// ProjectedMessage is one turn recorded in the projection's rolling history.
type ProjectedMessage struct {
	InboundText  string            `json:"inboundText,omitempty"`
	OutboundText string            `json:"outboundText,omitempty"`
	Tool         *ProjectedToolCall `json:"tool,omitempty"`
}

// ProjectedToolCall records a tool invocation inside a ProjectedMessage.
type ProjectedToolCall struct {
	Name   string `json:"name"`
	Result string `json:"result"`
}

// Projection is the materialized, CRDT-mergeable view of one session.
type Projection struct {
	SessionKey   ids.SessionKey            `json:"sessionKey"`
	AgentID      ids.AgentId               `json:"agentId"`
	Channel      string                    `json:"channel"`
	PeerID       string                    `json:"peerId"`
	State        SessionState              `json:"state"`
	MessageCount int64                     `json:"messageCount"`
	LastActivity time.Time                 `json:"lastActivity"`
	Messages     []ProjectedMessage        `json:"messages"`
	CustomState  map[string]json.RawMessage `json:"customState"`
	LastEventID  *EventID                  `json:"-"`
	LastEventHex string                    `json:"lastEventId,omitempty"`
}

// NewProjection lazily creates a fresh projection for a session. If the
// first event is SessionStarted, channel/peer-id populate from it;
// otherwise they default to "unknown".
func NewProjection(sessionKey ids.SessionKey, agentID ids.AgentId) Projection {
	return Projection{
		SessionKey:  sessionKey,
		AgentID:     agentID,
		Channel:     "unknown",
		PeerID:      "unknown",
		State:       StateActive,
		CustomState: map[string]json.RawMessage{},
	}
}

// Apply folds one event into the projection in place. message-count
// increments only on MessageReceived, never on MessageSent/AgentResponse.
func (p *Projection) Apply(ev Event) error {
	p.LastActivity = ev.Timestamp
	id := ev.ID
	p.LastEventID = &id
	p.LastEventHex = ev.ID.Hex()

	switch ev.Kind {
	case KindSessionStarted:
		var payload SessionStarted
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return err
		}
		p.Channel = payload.Channel
		p.PeerID = payload.PeerID

	case KindMessageReceived:
		var payload MessageReceived
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return err
		}
		p.MessageCount++
		p.Messages = append(p.Messages, ProjectedMessage{InboundText: payload.Content})

	case KindMessageSent:
		var payload MessageSent
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return err
		}
		p.Messages = append(p.Messages, ProjectedMessage{OutboundText: payload.Content})

	case KindAgentResponse:
		var payload AgentResponse
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return err
		}
		p.Messages = append(p.Messages, ProjectedMessage{OutboundText: payload.Content})

	case KindToolCalled:
		// Tool invocations are recorded on ToolResult; ToolCalled only marks activity.

	case KindToolResult:
		var payload ToolResult
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return err
		}
		p.Messages = append(p.Messages, ProjectedMessage{
			Tool: &ProjectedToolCall{Name: payload.ToolName, Result: string(payload.Result)},
		})

	case KindStateChanged:
		var payload StateChanged
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return err
		}
		if p.CustomState == nil {
			p.CustomState = map[string]json.RawMessage{}
		}
		p.CustomState[payload.Key] = payload.Value

	case KindSessionEnded:
		p.State = StateEnded
	}

	return nil
}

// Merge combines two projections for the same session-key:
//   - state and last-activity take the value of the operand with the
//     greater last-activity (last-writer-wins),
//   - messages take the longer sequence,
//   - custom-state is unioned per key with last-writer-wins per key.
//
// Merge(P, P) == P and Merge(P, Q) == Merge(Q, P) whenever the operands tie
// on last-activity, by construction of the rules above.
func Merge(a, b Projection) Projection {
	out := a
	newer := b
	bIsNewer := true
	if a.LastActivity.After(b.LastActivity) {
		newer = a
		bIsNewer = false
	}
	out.State = newer.State
	out.LastActivity = newer.LastActivity
	out.LastEventID = newer.LastEventID
	out.LastEventHex = newer.LastEventHex
	out.Channel = newer.Channel
	out.PeerID = newer.PeerID

	switch {
	case len(a.Messages) > len(b.Messages):
		out.Messages = a.Messages
	case len(b.Messages) > len(a.Messages):
		out.Messages = b.Messages
	default:
		out.Messages = newer.Messages
	}

	merged := map[string]json.RawMessage{}
	for k, v := range a.CustomState {
		merged[k] = v
	}
	// b wins per key when b is the newer operand; otherwise a's values for
	// overlapping keys are retained and only b's novel keys are added.
	for k, v := range b.CustomState {
		if bIsNewer {
			merged[k] = v
		} else if _, exists := merged[k]; !exists {
			merged[k] = v
		}
	}
	out.CustomState = merged

	if a.MessageCount > b.MessageCount {
		out.MessageCount = a.MessageCount
	} else {
		out.MessageCount = b.MessageCount
	}

	return out
}
