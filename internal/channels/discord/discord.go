// Package discord implements the channel Adapter contract over the Discord
// bot gateway via discordgo.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/openclaw/gateway/internal/apperr"
	"github.com/openclaw/gateway/internal/channels"
	"github.com/openclaw/gateway/internal/ids"
	"github.com/openclaw/gateway/internal/logging"
	"github.com/openclaw/gateway/internal/message"
)

// textChunkLimit is Discord's per-message character cap.
const textChunkLimit = 2000

// Config holds the token needed to open a bot session.
type Config struct {
	Token string
}

// Adapter connects to Discord's gateway over the Bot API.
type Adapter struct {
	cfg       Config
	session   *discordgo.Session
	botID     string
	username  string
	connected bool
	onInbound func(message.Inbound)
}

// OnInbound registers the callback invoked with each normalized inbound
// message. Must be set before Start.
func (a *Adapter) OnInbound(fn func(message.Inbound)) {
	a.onInbound = fn
}

// New builds an Adapter from cfg without opening a connection yet.
func New(cfg Config) (*Adapter, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, apperr.Wrap(apperr.Config, fmt.Errorf("discord: create session: %w", err))
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	return &Adapter{cfg: cfg, session: session}, nil
}

var _ channels.Adapter = (*Adapter)(nil)

func (a *Adapter) ID() string    { return "discord" }
func (a *Adapter) Label() string { return "Discord" }

func (a *Adapter) Capabilities() channels.Capabilities {
	return channels.Capabilities{Text: true, Images: true, Files: true, Threads: true, Reactions: true, Editing: true, Deletion: true}
}

func (a *Adapter) TextChunkLimit() int                    { return textChunkLimit }
func (a *Adapter) DeliveryMode() channels.DeliveryMode     { return channels.DeliveryImmediate }

// Start opens the gateway connection and resolves the bot's own identity.
func (a *Adapter) Start(ctx context.Context) error {
	log := logging.For("discord")
	if err := a.session.Open(); err != nil {
		return apperr.Wrap(apperr.NotConnected, fmt.Errorf("discord: open session: %w", err))
	}
	user, err := a.session.User("@me")
	if err != nil {
		_ = a.session.Close()
		return apperr.Wrap(apperr.AuthFailed, fmt.Errorf("discord: fetch bot identity: %w", err))
	}
	a.botID = user.ID
	a.username = user.Username
	a.connected = true

	a.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.ID == a.botID || a.onInbound == nil {
			return
		}
		inbound, err := a.Normalize(m)
		if err != nil {
			log.Warn("discord: failed to normalize message", "error", err)
			return
		}
		a.onInbound(inbound)
	})

	log.Info("discord connected", "username", user.Username, "id", user.ID)
	return nil
}

// Stop closes the gateway connection.
func (a *Adapter) Stop(ctx context.Context) error {
	a.connected = false
	if err := a.session.Close(); err != nil {
		return apperr.Wrap(apperr.Network, fmt.Errorf("discord: close session: %w", err))
	}
	return nil
}

// Probe reports whether Start has successfully opened the gateway socket.
func (a *Adapter) Probe(ctx context.Context) channels.ProbeResult {
	if !a.connected {
		return channels.ProbeResult{Connected: false, Error: "not started"}
	}
	return channels.ProbeResult{Connected: true, AccountID: a.botID, DisplayName: a.username}
}

// SendText delivers text to a Discord channel, chunking at the platform limit.
func (a *Adapter) SendText(ctx context.Context, out channels.OutboundContext, text string) (message.DeliveryResult, error) {
	if out.ChatID == "" {
		return message.DeliveryResult{}, apperr.New(apperr.Validation, "discord: empty chat id")
	}

	var lastID string
	for len(text) > 0 {
		chunk := text
		if len(chunk) > textChunkLimit {
			cutAt := textChunkLimit
			if idx := lastNewline(text[:textChunkLimit]); idx > textChunkLimit/2 {
				cutAt = idx + 1
			}
			chunk = text[:cutAt]
			text = text[cutAt:]
		} else {
			text = ""
		}

		sent, err := a.session.ChannelMessageSend(out.ChatID, chunk)
		if err != nil {
			return message.DeliveryResult{}, apperr.Wrap(apperr.DeliveryFailed, fmt.Errorf("discord: send message: %w", err))
		}
		lastID = sent.ID
	}

	return message.DeliveryResult{
		MessageID: lastID,
		Channel:   ids.ChannelId("discord"),
		ChatID:    out.ChatID,
	}, nil
}

// SendMedia posts each attachment URL as its own message; Discord embeds
// direct media URLs automatically.
func (a *Adapter) SendMedia(ctx context.Context, out channels.OutboundContext, attachments []message.Attachment) (message.DeliveryResult, error) {
	if len(attachments) == 0 {
		return message.DeliveryResult{}, apperr.New(apperr.Validation, "discord: no attachments given")
	}
	var lastID string
	for _, att := range attachments {
		sent, err := a.session.ChannelMessageSend(out.ChatID, att.URL)
		if err != nil {
			return message.DeliveryResult{}, apperr.Wrap(apperr.DeliveryFailed, fmt.Errorf("discord: send media: %w", err))
		}
		lastID = sent.ID
	}
	return message.DeliveryResult{MessageID: lastID, Channel: ids.ChannelId("discord"), ChatID: out.ChatID}, nil
}

// Normalize converts a *discordgo.MessageCreate into the canonical inbound shape.
func (a *Adapter) Normalize(raw interface{}) (message.Inbound, error) {
	m, ok := raw.(*discordgo.MessageCreate)
	if !ok || m.Message == nil {
		return message.Inbound{}, apperr.New(apperr.Validation, "discord: normalize expects *discordgo.MessageCreate")
	}

	peerType := ids.PeerGroup
	if m.GuildID == "" {
		peerType = ids.PeerDM
	}

	content := m.Content
	var atts []message.Attachment
	for _, f := range m.Attachments {
		atts = append(atts, message.Attachment{Kind: message.AttachmentDocument, URL: f.URL, Filename: f.Filename, Size: int64(f.Size)})
	}

	return message.Inbound{
		ID:          m.ID,
		Channel:     ids.ChannelId("discord"),
		AccountID:   a.botID,
		PeerID:      ids.PeerId(m.Author.ID),
		PeerType:    peerType,
		Content:     content,
		Attachments: atts,
		Timestamp:   m.Timestamp,
	}, nil
}

func lastNewline(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '\n' {
			return i
		}
	}
	return -1
}
