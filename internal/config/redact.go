package config

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	tokenVisiblePrefix = 4
	redactedMarker     = "...redacted"
	unsetMarker        = "(unset)"
)

// FormatRedacted renders the resolved configuration for operators with secrets
// masked: the bot token keeps a short prefix, credentials are stripped from the
// Mongo URI, and the webhook secret is hidden entirely.
func FormatRedacted(cfg Config) string {
	lines := []string{
		fmt.Sprintf("telegram_token: %s", redactToken(cfg.TelegramToken)),
		fmt.Sprintf("channels: %s", valueOrUnset(cfg.Channels)),
		fmt.Sprintf("app_env: %s", cfg.AppEnv),
		fmt.Sprintf("log_level: %s", cfg.LogLevel),
		fmt.Sprintf("http_port: %d", cfg.HTTPPort),
		fmt.Sprintf("webhook_base_url: %s", valueOrUnset(cfg.WebhookBaseURL)),
		fmt.Sprintf("webhook_secret: %s", redactSecret(cfg.WebhookSecret)),
		fmt.Sprintf("membership_check_timeout: %s", cfg.MembershipTimeout),
		fmt.Sprintf("mongo_uri: %s", valueOrUnset(redactMongoURI(cfg.MongoURI))),
		fmt.Sprintf("mongo_db: %s", valueOrUnset(cfg.MongoDB)),
	}

	return strings.Join(lines, "\n")
}

func redactToken(token string) string {
	if token == "" {
		return unsetMarker
	}
	if len(token) <= tokenVisiblePrefix {
		return redactedMarker
	}
	return token[:tokenVisiblePrefix] + redactedMarker
}

func redactSecret(secret string) string {
	if secret == "" {
		return unsetMarker
	}
	return "redacted"
}

func redactMongoURI(uri string) string {
	if uri == "" {
		return ""
	}

	parsed, err := url.Parse(uri)
	if err != nil {
		return redactedMarker
	}
	parsed.User = nil

	return parsed.String()
}

func valueOrUnset(value string) string {
	if strings.TrimSpace(value) == "" {
		return unsetMarker
	}
	return value
}
