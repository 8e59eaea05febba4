package telegram

import (
	"context"
	"time"

	"github.com/go-telegram/bot"

	"tg_channel_gate_bot/internal/logging"
)

const resolveTimeout = 5 * time.Second

// ResolveChannels looks up every registered channel once at startup. It logs
// channels the bot cannot see (usually because it is not an admin there, in
// which case membership lookups will fail too) and remembers invite links of
// private channels so join buttons can point at them. It returns how many
// channels resolved.
func (c *Client) ResolveChannels(ctx context.Context) int {
	if ctx == nil {
		ctx = context.Background()
	}

	resolved := 0
	for _, ref := range c.registry.All() {
		log := c.logger.WithFields(logging.Context{Channel: ref.Value(), Event: "channel_resolve"}.Fields())

		lookupCtx, cancel := context.WithTimeout(ctx, resolveTimeout)
		info, err := c.api.GetChat(lookupCtx, &bot.GetChatParams{ChatID: ref.Value()})
		cancel()

		if err != nil {
			log.WithError(err).Warn("channel is not accessible to the bot; membership checks will fail")
			continue
		}
		if info == nil {
			log.Warn("channel lookup returned no data")
			continue
		}

		resolved++
		fields := logging.Fields{"title": info.Title, "chat_id": info.ID}

		if ref.IsPrivate() {
			if info.InviteLink != "" {
				c.setInviteLink(ref, info.InviteLink)
				fields["invite_link"] = true
			} else {
				log.Warn("private channel has no invite link; join button will use a placeholder")
			}
		}

		log.WithFields(fields).Info("channel resolved")
	}

	return resolved
}
