// Package telegram implements the channel Adapter contract over the
// Telegram Bot API via telego, using long polling.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/openclaw/gateway/internal/apperr"
	"github.com/openclaw/gateway/internal/channels"
	"github.com/openclaw/gateway/internal/ids"
	"github.com/openclaw/gateway/internal/logging"
	"github.com/openclaw/gateway/internal/message"
)

// textChunkLimit is Telegram's per-message character cap.
const textChunkLimit = 4096

// Config holds the token needed to start a bot.
type Config struct {
	Token string
}

// Adapter connects to Telegram via long polling.
type Adapter struct {
	cfg        Config
	bot        *telego.Bot
	username   string
	connected  bool
	pollCancel context.CancelFunc
	pollDone   chan struct{}
	onInbound  func(message.Inbound)
}

var _ channels.Adapter = (*Adapter)(nil)

// OnInbound registers the callback invoked with each normalized inbound
// message. Must be set before Start.
func (a *Adapter) OnInbound(fn func(message.Inbound)) {
	a.onInbound = fn
}

// New builds an Adapter from cfg without starting polling yet.
func New(cfg Config) (*Adapter, error) {
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, apperr.Wrap(apperr.Config, fmt.Errorf("telegram: create bot: %w", err))
	}
	return &Adapter{cfg: cfg, bot: bot}, nil
}

func (a *Adapter) ID() string    { return "telegram" }
func (a *Adapter) Label() string { return "Telegram" }

func (a *Adapter) Capabilities() channels.Capabilities {
	return channels.Capabilities{Text: true, Images: true, Videos: true, Voice: true, Files: true, Threads: true, Editing: true, Deletion: true}
}

func (a *Adapter) TextChunkLimit() int                { return textChunkLimit }
func (a *Adapter) DeliveryMode() channels.DeliveryMode { return channels.DeliveryImmediate }

// Start begins long polling for updates and records the bot's own username.
func (a *Adapter) Start(ctx context.Context) error {
	log := logging.For("telegram")

	pollCtx, cancel := context.WithCancel(ctx)
	a.pollCancel = cancel
	a.pollDone = make(chan struct{})

	updates, err := a.bot.UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{Timeout: 30})
	if err != nil {
		cancel()
		return apperr.Wrap(apperr.NotConnected, fmt.Errorf("telegram: start long polling: %w", err))
	}

	a.username = a.bot.Username()
	a.connected = true
	log.Info("telegram connected", "username", a.username)

	go func() {
		defer close(a.pollDone)
		for update := range updates {
			if update.Message == nil || a.onInbound == nil {
				continue
			}
			inbound, err := a.Normalize(update)
			if err != nil {
				log.Warn("telegram: failed to normalize update", "error", err)
				continue
			}
			a.onInbound(inbound)
		}
	}()

	return nil
}

// Stop cancels the long-polling context and waits for the drain goroutine.
func (a *Adapter) Stop(ctx context.Context) error {
	a.connected = false
	if a.pollCancel != nil {
		a.pollCancel()
	}
	if a.pollDone != nil {
		<-a.pollDone
	}
	return nil
}

// Probe reports whether long polling is currently active.
func (a *Adapter) Probe(ctx context.Context) channels.ProbeResult {
	if !a.connected {
		return channels.ProbeResult{Connected: false, Error: "not started"}
	}
	return channels.ProbeResult{Connected: true, DisplayName: a.username}
}

// SendText delivers text to a chat, chunking at the platform limit.
func (a *Adapter) SendText(ctx context.Context, out channels.OutboundContext, text string) (message.DeliveryResult, error) {
	chatID, err := strconv.ParseInt(out.ChatID, 10, 64)
	if err != nil {
		return message.DeliveryResult{}, apperr.Wrap(apperr.Validation, fmt.Errorf("telegram: parse chat id %q: %w", out.ChatID, err))
	}

	var lastID int
	for len(text) > 0 {
		chunk := text
		if len(chunk) > textChunkLimit {
			chunk = text[:textChunkLimit]
			text = text[textChunkLimit:]
		} else {
			text = ""
		}

		msg := tu.Message(tu.ID(chatID), chunk)
		sent, err := a.bot.SendMessage(ctx, msg)
		if err != nil {
			return message.DeliveryResult{}, apperr.Wrap(apperr.DeliveryFailed, fmt.Errorf("telegram: send message: %w", err))
		}
		lastID = sent.MessageID
	}

	return message.DeliveryResult{
		MessageID: strconv.Itoa(lastID),
		Channel:   ids.ChannelId("telegram"),
		ChatID:    out.ChatID,
	}, nil
}

// SendMedia posts each attachment's URL as its own message; Telegram
// previews direct media links automatically when unfurled.
func (a *Adapter) SendMedia(ctx context.Context, out channels.OutboundContext, attachments []message.Attachment) (message.DeliveryResult, error) {
	if len(attachments) == 0 {
		return message.DeliveryResult{}, apperr.New(apperr.Validation, "telegram: no attachments given")
	}
	chatID, err := strconv.ParseInt(out.ChatID, 10, 64)
	if err != nil {
		return message.DeliveryResult{}, apperr.Wrap(apperr.Validation, fmt.Errorf("telegram: parse chat id %q: %w", out.ChatID, err))
	}

	var lastID int
	for _, att := range attachments {
		msg := tu.Message(tu.ID(chatID), att.URL)
		sent, err := a.bot.SendMessage(ctx, msg)
		if err != nil {
			return message.DeliveryResult{}, apperr.Wrap(apperr.DeliveryFailed, fmt.Errorf("telegram: send media message: %w", err))
		}
		lastID = sent.MessageID
	}

	return message.DeliveryResult{MessageID: strconv.Itoa(lastID), Channel: ids.ChannelId("telegram"), ChatID: out.ChatID}, nil
}

// Normalize converts a telego.Update into the canonical inbound shape.
func (a *Adapter) Normalize(raw interface{}) (message.Inbound, error) {
	update, ok := raw.(telego.Update)
	if !ok || update.Message == nil {
		return message.Inbound{}, apperr.New(apperr.Validation, "telegram: normalize expects telego.Update with a message")
	}
	m := update.Message

	peerType := ids.PeerGroup
	if m.Chat.Type == "private" {
		peerType = ids.PeerDM
	}

	var peerID ids.PeerId
	if m.From != nil {
		peerID = ids.PeerId(strconv.FormatInt(m.From.ID, 10))
	}

	return message.Inbound{
		ID:        strconv.Itoa(m.MessageID),
		Channel:   ids.ChannelId("telegram"),
		PeerID:    peerID,
		PeerType:  peerType,
		Content:   m.Text,
		Timestamp: time.Unix(int64(m.Date), 0),
	}, nil
}
