package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"phrasebot/pkg/bus"
	"phrasebot/pkg/channel"
	"phrasebot/pkg/config"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

const channelName = "telegram"
const messagePreviewLimit = 240

// Adapter bridges Telegram updates into bot inbound messages and implements
// the responder transport on top of the Bot API.
type Adapter struct {
	cfg       config.TelegramConfig
	allowFrom map[string]struct{}
	log       *slog.Logger
}

// NewAdapter validates Telegram configuration and constructs an adapter instance.
func NewAdapter(cfg config.TelegramConfig, log *slog.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("channels.telegram.token is required")
	}

	if ownerID := strings.TrimSpace(cfg.OwnerID); ownerID != "" {
		if _, err := strconv.ParseInt(ownerID, 10, 64); err != nil {
			return nil, fmt.Errorf("channels.telegram.owner_id must be a chat id: %w", err)
		}
	}

	if log == nil {
		log = slog.Default()
	}

	return &Adapter{
		cfg:       cfg,
		allowFrom: allowFromSet(cfg.AllowFrom),
		log:       log.With("component", "channel.telegram"),
	}, nil
}

// Name returns the channel identifier used in events and logs.
func (a *Adapter) Name() string {
	return channelName
}

// Run starts Telegram long polling and hands each text message, together with
// the bot-backed transport, to the dispatch handler.
//
// Send failures are the handler's to record; the polling loop continues to
// the next update no matter how a dispatch cycle went.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	bot, err := a.newBot()
	if err != nil {
		return fmt.Errorf("initialize telegram bot: %w", err)
	}

	updates, err := bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	transport := &botTransport{bot: bot}
	a.log.Info("Telegram channel started", "owner_configured", strings.TrimSpace(a.cfg.OwnerID) != "")

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				if err := ctx.Err(); err != nil {
					return nil
				}
				return errors.New("telegram updates channel closed")
			}

			message := update.Message
			if message == nil {
				continue
			}

			content := strings.TrimSpace(message.Text)
			if content == "" {
				// Ignore non-text updates; routing operates on text only.
				continue
			}
			if message.From == nil {
				a.log.Debug("Ignoring message without sender")
				continue
			}

			senderID := strconv.FormatInt(message.From.ID, 10)
			if !a.senderAllowed(senderID) {
				a.log.Debug("Ignoring message from unauthorized sender", "sender_id", senderID)
				continue
			}

			chatID := strconv.FormatInt(message.Chat.ID, 10)
			inbound := bus.InboundMessage{
				Channel:  channelName,
				SenderID: senderID,
				ChatID:   chatID,
				Content:  content,
				Metadata: messageMetadata(update.UpdateID, message.From.Username),
			}
			a.log.Info("Received message", "chat_id", chatID, "sender_id", senderID, "content", previewText(content))

			outcome := handler(ctx, inbound, transport)
			if outcome.Failed() {
				a.log.Warn("Dispatch completed with errors", "chat_id", chatID, "kind", string(outcome.Decision.Kind), "reply_sent", outcome.ReplySent, "errors", len(outcome.Errors))
				continue
			}
			a.log.Info("Dispatch complete", "chat_id", chatID, "kind", string(outcome.Decision.Kind), "reply_sent", outcome.ReplySent)
		}
	}
}

// newBot constructs the telego client, routing through the configured HTTP
// proxy when one is set.
func (a *Adapter) newBot() (*telego.Bot, error) {
	var opts []telego.BotOption

	if proxy := strings.TrimSpace(a.cfg.Proxy); proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", proxy, err)
		}
		opts = append(opts, telego.WithHTTPClient(&http.Client{
			Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		}))
	}

	return telego.NewBot(strings.TrimSpace(a.cfg.Token), opts...)
}

// botTransport adapts the Bot API to the responder transport contract. Chat
// and recipient ids stay opaque strings everywhere else; the int64 conversion
// happens only at this edge.
type botTransport struct {
	bot *telego.Bot
}

func (t *botTransport) Send(ctx context.Context, chatID string, text string) error {
	id, err := strconv.ParseInt(strings.TrimSpace(chatID), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}

	if _, err := t.bot.SendMessage(ctx, tu.Message(tu.ID(id), text)); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	return nil
}

func (t *botTransport) NotifyOwner(ctx context.Context, recipientID string, text string) error {
	id, err := strconv.ParseInt(strings.TrimSpace(recipientID), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid owner id %q: %w", recipientID, err)
	}

	if _, err := t.bot.SendMessage(ctx, tu.Message(tu.ID(id), text)); err != nil {
		return fmt.Errorf("send owner notification: %w", err)
	}

	return nil
}

// senderAllowed checks whether a sender is permitted by allow_from config.
//
// When no allow list is configured, all senders are accepted.
func (a *Adapter) senderAllowed(senderID string) bool {
	if len(a.allowFrom) == 0 {
		return true
	}

	_, ok := a.allowFrom[strings.TrimSpace(senderID)]
	return ok
}

// messageMetadata captures update context the responder may include in owner
// notifications.
func messageMetadata(updateID int, username string) map[string]string {
	metadata := map[string]string{
		"update_id": strconv.Itoa(updateID),
	}
	if username != "" {
		metadata["username"] = username
	}

	return metadata
}

// allowFromSet normalizes allow_from values into a lookup set.
func allowFromSet(allowFrom []string) map[string]struct{} {
	if len(allowFrom) == 0 {
		return nil
	}

	allowed := make(map[string]struct{}, len(allowFrom))
	for _, value := range allowFrom {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		allowed[trimmed] = struct{}{}
	}

	if len(allowed) == 0 {
		return nil
	}

	return allowed
}

// previewText returns a bounded log-safe preview of message text.
func previewText(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= messagePreviewLimit {
		return trimmed
	}

	return trimmed[:messagePreviewLimit] + "..."
}
