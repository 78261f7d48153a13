// Package channels defines the adapter contract every messaging platform
// integration (Telegram, Discord, ...) implements, plus a registry that
// exposes them to the gateway.
package channels

import (
	"context"

	"github.com/openclaw/gateway/internal/message"
)

// Capabilities records which message shapes an adapter can send/receive.
type Capabilities struct {
	Text      bool `json:"text"`
	Images    bool `json:"images"`
	Videos    bool `json:"videos"`
	Voice     bool `json:"voice"`
	Files     bool `json:"files"`
	Threads   bool `json:"threads"`
	Reactions bool `json:"reactions"`
	Editing   bool `json:"editing"`
	Deletion  bool `json:"deletion"`
}

// DeliveryMode classifies how an adapter flushes outbound sends.
type DeliveryMode string

const (
	DeliveryImmediate DeliveryMode = "immediate"
	DeliveryBatched   DeliveryMode = "batched"
	DeliveryWebhook   DeliveryMode = "webhook"
)

// OutboundContext addresses one outbound send.
type OutboundContext struct {
	ChatID   string
	ReplyTo  string
	ThreadID string
}

// ProbeResult is the outcome of asking an adapter whether it is currently
// connected to its platform.
type ProbeResult struct {
	Connected   bool
	AccountID   string
	DisplayName string
	Error       string
}

// Adapter is the contract every channel integration implements.
type Adapter interface {
	// ID is a stable identifier, e.g. "telegram", "discord".
	ID() string
	// Label is the human-readable name shown in channels.list.
	Label() string
	Capabilities() Capabilities

	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Probe(ctx context.Context) ProbeResult

	SendText(ctx context.Context, out OutboundContext, text string) (message.DeliveryResult, error)
	SendMedia(ctx context.Context, out OutboundContext, attachments []message.Attachment) (message.DeliveryResult, error)

	// TextChunkLimit is the platform's maximum single-message length.
	TextChunkLimit() int
	DeliveryMode() DeliveryMode

	// Normalize converts a platform-native event payload into the canonical
	// inbound message. The concrete type of raw is adapter-specific.
	Normalize(raw interface{}) (message.Inbound, error)
}

// Truncate shortens s to maxLen, appending "..." when it was cut.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
