package telegram

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"tg_channel_gate_bot/internal/feature/user"
	"tg_channel_gate_bot/internal/logging"
	"tg_channel_gate_bot/internal/membership"
	"tg_channel_gate_bot/internal/metrics"
)

func (c *Client) handleStart(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update == nil || update.Message == nil {
		return
	}

	msg := update.Message
	c.touchUser(ctx, msg.From)

	log := c.logger.WithFields(logging.Context{
		UserID: userID(msg.From),
		ChatID: msg.Chat.ID,
		Event:  "start",
	}.Fields())

	if c.registry.IsEmpty() {
		c.send(ctx, msg.Chat.ID, welcomeText, nil)
		log.Info("no channels configured, sent plain welcome")
		return
	}

	refs := c.registry.All()
	c.send(ctx, msg.Chat.ID, joinPromptText(refs), c.joinKeyboard(refs))
	log.WithField("channels", len(refs)).Info("sent join prompt")
}

func (c *Client) handleVerify(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update == nil || update.CallbackQuery == nil {
		return
	}

	query := update.CallbackQuery
	if _, err := c.api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: query.ID}); err != nil {
		c.logger.WithField("event", "callback_answer_error").WithError(err).Debug("failed to answer callback query")
	}

	from := query.From
	c.touchUser(ctx, &from)

	target := messageChatID(query.Message)
	if target == 0 {
		target = from.ID
	}

	log := c.logger.WithFields(logging.Context{
		UserID: from.ID,
		ChatID: target,
		Event:  "verify",
	}.Fields())

	if c.registry.IsEmpty() {
		c.metrics.ObserveVerification(metrics.ResultNotConfigured)
		c.send(ctx, target, notConfiguredText, nil)
		log.Warn("verification requested but no channels are configured")
		return
	}

	verdict := membership.Verify(ctx, c.registry, from.ID, c.provider)

	for _, check := range verdict.Errors() {
		log.WithField("channel", check.Channel.Value()).WithError(check.Err).Warn("membership lookup failed, treating as not joined")
	}

	if verdict.AllJoined {
		c.metrics.ObserveVerification(metrics.ResultJoined)
		c.send(ctx, target, verifiedText, nil)
		log.Info("membership verified")
		return
	}

	c.metrics.ObserveVerification(metrics.ResultMissing)
	c.send(ctx, target, missingText(verdict.Missing), c.joinKeyboard(verdict.Missing))
	log.WithField("missing", len(verdict.Missing)).Info("membership incomplete")
}

func (c *Client) send(ctx context.Context, chatID int64, text string, markup *models.InlineKeyboardMarkup) {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}

	if _, err := c.api.SendMessage(ctx, params); err != nil {
		c.logger.WithFields(logging.Fields{
			"event":   "send_message_error",
			"chat_id": chatID,
		}).WithError(err).Error("failed to send message")
	}
}

func (c *Client) touchUser(ctx context.Context, from *models.User) {
	if c.users == nil || from == nil || from.ID == 0 {
		return
	}

	touchCtx, cancel := context.WithTimeout(ctx, userTouchTimeout)
	defer cancel()

	if _, err := c.users.EnsureUser(touchCtx, user.Profile{
		ID:        from.ID,
		Username:  from.Username,
		FirstName: from.FirstName,
	}); err != nil {
		c.logger.WithFields(logging.Fields{
			"event":   "user_touch_error",
			"user_id": from.ID,
		}).WithError(err).Warn("failed to record user")
	}
}
