package telegram

import (
	"strings"

	"github.com/go-telegram/bot/models"

	"tg_channel_gate_bot/internal/channel"
)

const (
	welcomeText       = "👋 Hello! Welcome."
	notConfiguredText = "Channels are not configured."
	verifiedText      = "🎉 Membership confirmed. Welcome!"

	joinPromptHeader  = "👋 Hello!\nJoin the channels below, then tap ✅ Check:"
	missingHeader     = "❗️ You have not joined these channels yet:"
	checkButtonText   = "✅ Check"
	joinButtonPrefix  = "➕ "
	inviteLinkMissing = " (invite link needed)"

	// placeholderLink is used for private channels whose invite link could not
	// be resolved.
	placeholderLink = "https://t.me/"
)

func joinPromptText(refs []channel.Reference) string {
	return bulletList(joinPromptHeader, refs)
}

func missingText(refs []channel.Reference) string {
	return bulletList(missingHeader, refs)
}

func bulletList(header string, refs []channel.Reference) string {
	lines := make([]string, 0, len(refs)+1)
	lines = append(lines, header)
	for _, ref := range refs {
		lines = append(lines, "• "+ref.Value())
	}
	return strings.Join(lines, "\n")
}

// joinKeyboard renders one URL button per channel followed by the check
// button. Private channels link to their resolved invite link when known.
func (c *Client) joinKeyboard(refs []channel.Reference) *models.InlineKeyboardMarkup {
	rows := make([][]models.InlineKeyboardButton, 0, len(refs)+1)

	for _, ref := range refs {
		rows = append(rows, []models.InlineKeyboardButton{c.joinButton(ref)})
	}

	rows = append(rows, []models.InlineKeyboardButton{{
		Text:         checkButtonText,
		CallbackData: verifyCallbackData,
	}})

	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func (c *Client) joinButton(ref channel.Reference) models.InlineKeyboardButton {
	if link, ok := channel.DisplayLink(ref); ok {
		return models.InlineKeyboardButton{Text: joinButtonPrefix + ref.Value(), URL: link}
	}

	if link, ok := c.inviteLink(ref); ok {
		return models.InlineKeyboardButton{Text: joinButtonPrefix + ref.Value(), URL: link}
	}

	return models.InlineKeyboardButton{
		Text: joinButtonPrefix + ref.Value() + inviteLinkMissing,
		URL:  placeholderLink,
	}
}
