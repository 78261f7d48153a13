// Package message holds the canonical, platform-independent message model
// that channel adapters normalize into and the agent runtime consumes.
package message

import (
	"time"

	"github.com/openclaw/gateway/internal/ids"
)

// AttachmentKind classifies an attachment's media type.
type AttachmentKind string

const (
	AttachmentImage    AttachmentKind = "image"
	AttachmentVideo    AttachmentKind = "video"
	AttachmentAudio    AttachmentKind = "audio"
	AttachmentVoice    AttachmentKind = "voice"
	AttachmentDocument AttachmentKind = "document"
	AttachmentSticker  AttachmentKind = "sticker"
	AttachmentGif      AttachmentKind = "gif"
	AttachmentLocation AttachmentKind = "location"
	AttachmentContact  AttachmentKind = "contact"
	AttachmentUnknown  AttachmentKind = "unknown"
)

// Attachment is one media item carried by an Inbound message.
type Attachment struct {
	Kind         AttachmentKind `json:"kind"`
	URL          string         `json:"url"`
	MimeType     string         `json:"mimeType,omitempty"`
	Filename     string         `json:"filename,omitempty"`
	Size         int64          `json:"size,omitempty"`
	ThumbnailURL string         `json:"thumbnailUrl,omitempty"`
}

// rawSizeLimit bounds the opaque Raw payload retained for audit, per the
// design note against unbounded storage blowup from raw-payload retention.
const rawSizeLimit = 64 * 1024

// Inbound is the normalized, channel-independent representation of a
// message received from a platform.
type Inbound struct {
	ID         string             `json:"id"`
	Channel    ids.ChannelId      `json:"channel"`
	AccountID  string             `json:"accountId"`
	PeerID     ids.PeerId         `json:"peerId"`
	PeerType   ids.PeerType       `json:"peerType"`
	Content    string             `json:"content"`
	Attachments []Attachment      `json:"attachments,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
	ReplyTo    string             `json:"replyTo,omitempty"`
	ThreadID   string             `json:"threadId,omitempty"`
	Mentions   []ids.PeerId       `json:"mentions,omitempty"`
	Raw        []byte             `json:"-"`
}

// WithRaw attaches an opaque platform payload, truncating it (rather than
// storing unbounded data) when it exceeds rawSizeLimit.
func (m Inbound) WithRaw(raw []byte) Inbound {
	if len(raw) > rawSizeLimit {
		raw = raw[:rawSizeLimit]
	}
	m.Raw = raw
	return m
}

// DeliveryResult is the outcome of a successful outbound send.
type DeliveryResult struct {
	MessageID string            `json:"messageId"`
	Channel   ids.ChannelId     `json:"channel"`
	Timestamp time.Time         `json:"timestamp"`
	ChatID    string            `json:"chatId,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// TokenUsage tracks non-negative, additive, monotonically increasing token counts.
type TokenUsage struct {
	Input       int64  `json:"input"`
	Output      int64  `json:"output"`
	CacheRead   *int64 `json:"cacheRead,omitempty"`
	CacheWrite  *int64 `json:"cacheWrite,omitempty"`
}

// Total sums input, output, and any present cache counters.
func (u TokenUsage) Total() int64 {
	total := u.Input + u.Output
	if u.CacheRead != nil {
		total += *u.CacheRead
	}
	if u.CacheWrite != nil {
		total += *u.CacheWrite
	}
	return total
}

// Add returns the element-wise sum of u and other.
func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	sum := TokenUsage{Input: u.Input + other.Input, Output: u.Output + other.Output}
	if u.CacheRead != nil || other.CacheRead != nil {
		v := derefOr(u.CacheRead, 0) + derefOr(other.CacheRead, 0)
		sum.CacheRead = &v
	}
	if u.CacheWrite != nil || other.CacheWrite != nil {
		v := derefOr(u.CacheWrite, 0) + derefOr(other.CacheWrite, 0)
		sum.CacheWrite = &v
	}
	return sum
}

func derefOr(p *int64, def int64) int64 {
	if p == nil {
		return def
	}
	return *p
}
