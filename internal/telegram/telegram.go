// Package telegram hosts the Telegram client, routing, and handlers.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"tg_channel_gate_bot/internal/channel"
	"tg_channel_gate_bot/internal/config"
	"tg_channel_gate_bot/internal/feature/user"
	"tg_channel_gate_bot/internal/logging"
	"tg_channel_gate_bot/internal/membership"
	"tg_channel_gate_bot/internal/metrics"
)

const (
	startCommand       = "/start"
	verifyCallbackData = "verify"
	userTouchTimeout   = 3 * time.Second
)

// botAPI is the subset of *bot.Bot used by the client. It keeps handlers and
// the membership provider testable without a live Bot API.
type botAPI interface {
	Start(ctx context.Context)
	StartWebhook(ctx context.Context)
	WebhookHandler() http.HandlerFunc
	SetWebhook(ctx context.Context, params *bot.SetWebhookParams) (bool, error)
	DeleteWebhook(ctx context.Context, params *bot.DeleteWebhookParams) (bool, error)
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
	GetChatMember(ctx context.Context, params *bot.GetChatMemberParams) (*models.ChatMember, error)
	GetChat(ctx context.Context, params *bot.GetChatParams) (*models.ChatFullInfo, error)
}

type userRegistrar interface {
	EnsureUser(ctx context.Context, profile user.Profile) (bool, error)
}

var (
	defaultAllowedUpdates = bot.AllowedUpdates{
		"message",
		"callback_query",
	}

	createBot = func(token string, options ...bot.Option) (botAPI, error) {
		return bot.New(token, options...)
	}
)

// Client wraps the Telegram bot instance, the channel registry and the
// membership provider used to gate users.
type Client struct {
	api      botAPI
	logger   *logrus.Entry
	cfg      config.Config
	registry channel.Registry
	provider membership.Provider
	metrics  *metrics.Metrics
	users    userRegistrar

	mu          sync.RWMutex
	inviteLinks map[string]string
}

// Option customizes the client.
type Option func(*Client)

// WithUserRegistrar records every user that talks to the bot.
func WithUserRegistrar(registrar userRegistrar) Option {
	return func(c *Client) {
		c.users = registrar
	}
}

// WithMetrics enables Prometheus instrumentation of verifications and checks.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithProvider replaces the Bot API membership provider.
func WithProvider(provider membership.Provider) Option {
	return func(c *Client) {
		c.provider = provider
	}
}

// NewClient initializes the Telegram bot and registers the gate handlers.
func NewClient(cfg config.Config, registry channel.Registry, logger *logrus.Entry, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.TelegramToken) == "" {
		return nil, errors.New("telegram token is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	c := &Client{
		logger:      logger,
		cfg:         cfg,
		registry:    registry,
		inviteLinks: make(map[string]string),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	botOptions := []bot.Option{
		bot.WithAllowedUpdates(defaultAllowedUpdates),
		bot.WithDefaultHandler(defaultHandler(logger)),
		bot.WithErrorsHandler(errorHandler(logger)),
		bot.WithMessageTextHandler(startCommand, bot.MatchTypePrefix, c.handleStart),
		bot.WithCallbackQueryDataHandler(verifyCallbackData, bot.MatchTypeExact, c.handleVerify),
	}
	if cfg.WebhookSecret != "" {
		botOptions = append(botOptions, bot.WithWebhookSecretToken(cfg.WebhookSecret))
	}

	tgBot, err := createBot(cfg.TelegramToken, botOptions...)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot client: %w", err)
	}
	c.api = tgBot

	if c.provider == nil {
		c.provider = NewMembershipProvider(tgBot, cfg.MembershipTimeout, c.metrics, logger)
	}

	return c, nil
}

// Start receives updates until the context is canceled. With a webhook base
// URL configured the webhook is registered and updates arrive over HTTP
// (see WebhookHandler); otherwise any stale webhook is removed and long
// polling is used.
func (c *Client) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if c.cfg.UsesWebhook() {
		if _, err := c.api.SetWebhook(ctx, &bot.SetWebhookParams{
			URL:            c.cfg.WebhookURL(),
			SecretToken:    c.cfg.WebhookSecret,
			AllowedUpdates: defaultAllowedUpdates,
		}); err != nil {
			return fmt.Errorf("set telegram webhook: %w", err)
		}

		c.logger.WithFields(logging.Fields{
			"event":    "telegram_webhook_set",
			"base_url": c.cfg.WebhookBaseURL,
		}).Info("webhook registered, receiving updates over http")

		c.api.StartWebhook(ctx)
	} else {
		if _, err := c.api.DeleteWebhook(ctx, &bot.DeleteWebhookParams{}); err != nil {
			c.logger.WithField("event", "telegram_webhook_delete_error").WithError(err).Warn("failed to delete webhook before polling")
		}

		c.logger.WithFields(logging.Fields{
			"event":           "telegram_listen",
			"allowed_updates": defaultAllowedUpdates,
		}).Info("no webhook url configured, starting telegram long polling")

		c.api.Start(ctx)
	}

	c.logger.WithField("event", "telegram_stopped").Info("telegram client stopped")
	return nil
}

// WebhookHandler returns the HTTP handler Telegram posts updates to. It is
// nil in polling mode.
func (c *Client) WebhookHandler() http.Handler {
	if c == nil || c.api == nil || !c.cfg.UsesWebhook() {
		return nil
	}
	return c.api.WebhookHandler()
}

// Registry returns the channel registry the client gates on.
func (c *Client) Registry() channel.Registry {
	return c.registry
}

func (c *Client) inviteLink(ref channel.Reference) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	link, ok := c.inviteLinks[ref.Value()]
	return link, ok
}

func (c *Client) setInviteLink(ref channel.Reference, link string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.inviteLinks[ref.Value()] = link
}

type updateMeta struct {
	userID     int64
	chatID     int64
	text       string
	updateType string
}

func defaultHandler(logger *logrus.Entry) bot.HandlerFunc {
	if logger == nil {
		logger = logging.Logger()
	}

	return func(ctx context.Context, _ *bot.Bot, update *models.Update) {
		if update == nil {
			return
		}

		meta := extractUpdateMeta(update)

		fields := logging.Fields{
			"event":       "telegram_update_unhandled",
			"update_type": meta.updateType,
		}

		if meta.text != "" {
			fields["text"] = meta.text
		}
		if meta.userID != 0 {
			fields["user_id"] = meta.userID
		}
		if meta.chatID != 0 {
			fields["chat_id"] = meta.chatID
		}

		logger.WithFields(fields).Debug("telegram update ignored")
	}
}

func extractUpdateMeta(update *models.Update) updateMeta {
	switch {
	case update.Message != nil:
		return updateMeta{
			userID:     userID(update.Message.From),
			chatID:     chatID(&update.Message.Chat),
			text:       strings.TrimSpace(update.Message.Text),
			updateType: "message",
		}
	case update.CallbackQuery != nil:
		return updateMeta{
			userID:     userID(&update.CallbackQuery.From),
			chatID:     messageChatID(update.CallbackQuery.Message),
			text:       strings.TrimSpace(update.CallbackQuery.Data),
			updateType: "callback_query",
		}
	default:
		return updateMeta{updateType: "unknown"}
	}
}

func errorHandler(logger *logrus.Entry) bot.ErrorsHandler {
	if logger == nil {
		logger = logging.Logger()
	}

	return func(err error) {
		if err == nil {
			return
		}

		logger.WithField("event", "telegram_error").WithError(err).Error("telegram update error")
	}
}

func userID(user *models.User) int64 {
	if user == nil {
		return 0
	}

	return user.ID
}

func chatID(chat *models.Chat) int64 {
	if chat == nil {
		return 0
	}

	return chat.ID
}

func messageChatID(msg models.MaybeInaccessibleMessage) int64 {
	switch msg.Type {
	case models.MaybeInaccessibleMessageTypeMessage:
		if msg.Message == nil {
			return 0
		}
		return chatID(&msg.Message.Chat)
	case models.MaybeInaccessibleMessageTypeInaccessibleMessage:
		if msg.InaccessibleMessage == nil {
			return 0
		}
		return chatID(&msg.InaccessibleMessage.Chat)
	default:
		return 0
	}
}
