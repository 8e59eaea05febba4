// Package config defines the configuration contract and handles loading and validating environment configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Canonical environment variable keys.
	KeyTelegramToken     = "TELEGRAM_TOKEN"
	KeyBotToken          = "BOT_TOKEN"
	KeyChannels          = "CHANNELS"
	KeyAppEnv            = "APP_ENV"
	KeyLogLevel          = "LOG_LEVEL"
	KeyHTTPPort          = "HTTP_PORT"
	KeyPort              = "PORT"
	KeyWebhookBaseURL    = "WEBHOOK_BASE_URL"
	KeyRenderExternalURL = "RENDER_EXTERNAL_URL"
	KeyWebhookSecret     = "WEBHOOK_SECRET"
	KeyMembershipTimeout = "MEMBERSHIP_CHECK_TIMEOUT"
	KeyMongoURI          = "MONGO_URI"
	KeyMongoDB           = "MONGO_DB"

	// Allowed environment values.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// Defaults for optional settings.
	DefaultAppEnv            = EnvProduction
	DefaultLogLevel          = "info"
	DefaultHTTPPort          = 8080
	DefaultMembershipTimeout = 10 * time.Second

	// Recommended database names by environment.
	DefaultMongoDBProd = "channel_gate"
	DefaultMongoDBDev  = "channel_gate_dev"
)

var mongoSchemes = []string{"mongodb://", "mongodb+srv://"}

// VarSpec describes a single configuration key.
type VarSpec struct {
	Key         string // environment variable name
	Example     string // human-friendly sample value
	Required    bool   // whether the bot must refuse to start without this value
	Default     string // default when unset (empty when required)
	Description string // what the variable controls
	Notes       string // extra guidance or policies
}

// Contract enumerates the authoritative configuration keys for the bot.
// .env loading is only permitted when APP_ENV=development; production must rely
// on environment variables supplied by the runtime.
var Contract = []VarSpec{
	{
		Key:         KeyTelegramToken,
		Example:     "123:ABC",
		Required:    true,
		Description: "Telegram Bot Token issued by BotFather.",
		Notes:       KeyBotToken + " is accepted when " + KeyTelegramToken + " is unset.",
	},
	{
		Key:         KeyChannels,
		Example:     "@news, -1001234567890, https://t.me/chat",
		Description: "Comma-separated channels the user must join.",
		Notes:       "Accepts @handle, t.me links, tg://resolve links and -100 private ids. Empty disables gating.",
	},
	{
		Key:         KeyAppEnv,
		Example:     EnvDevelopment + " / " + EnvProduction,
		Default:     DefaultAppEnv,
		Description: "Runtime environment; controls log format and dotenv usage.",
		Notes:       "Load .env files only when APP_ENV=" + EnvDevelopment + ".",
	},
	{
		Key:         KeyLogLevel,
		Example:     DefaultLogLevel,
		Default:     DefaultLogLevel,
		Description: "Overrides default log level.",
	},
	{
		Key:         KeyHTTPPort,
		Example:     strconv.Itoa(DefaultHTTPPort),
		Default:     strconv.Itoa(DefaultHTTPPort),
		Description: "HTTP port for health, metrics and the webhook.",
		Notes:       KeyPort + " is used when " + KeyHTTPPort + " is unset.",
	},
	{
		Key:         KeyWebhookBaseURL,
		Example:     "https://bot.example.com",
		Description: "Public base URL; when set the bot receives updates by webhook instead of polling.",
		Notes:       KeyRenderExternalURL + " is used when " + KeyWebhookBaseURL + " is unset.",
	},
	{
		Key:         KeyWebhookSecret,
		Example:     "s3cr3t",
		Description: "Secret token Telegram sends with every webhook request.",
	},
	{
		Key:         KeyMembershipTimeout,
		Example:     DefaultMembershipTimeout.String(),
		Default:     DefaultMembershipTimeout.String(),
		Description: "Upper bound for a single membership lookup.",
	},
	{
		Key:         KeyMongoURI,
		Example:     "mongodb://localhost:27017",
		Description: "MongoDB connection string; enables user bookkeeping when set.",
	},
	{
		Key:         KeyMongoDB,
		Example:     DefaultMongoDBProd + " / " + DefaultMongoDBDev,
		Description: "MongoDB database name.",
		Notes:       "Required with " + KeyMongoURI + ". Recommended: production=" + DefaultMongoDBProd + ", development=" + DefaultMongoDBDev + ".",
	},
}

// Config mirrors resolved configuration values after loading.
type Config struct {
	TelegramToken     string
	Channels          string
	AppEnv            string
	LogLevel          string
	HTTPPort          int
	WebhookBaseURL    string
	WebhookSecret     string
	MembershipTimeout time.Duration
	MongoURI          string
	MongoDB           string
}

// Load resolves configuration from the environment (with optional dotenv in development).
func Load() (Config, error) {
	appEnv, err := resolveAppEnv()
	if err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(appEnv); err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:            firstNonEmpty(normalizeEnv(os.Getenv(KeyAppEnv)), appEnv),
		TelegramToken:     firstNonEmpty(os.Getenv(KeyTelegramToken), os.Getenv(KeyBotToken)),
		Channels:          strings.TrimSpace(os.Getenv(KeyChannels)),
		LogLevel:          firstNonEmpty(strings.TrimSpace(os.Getenv(KeyLogLevel)), DefaultLogLevel),
		HTTPPort:          DefaultHTTPPort,
		WebhookBaseURL:    strings.TrimRight(firstNonEmpty(os.Getenv(KeyWebhookBaseURL), os.Getenv(KeyRenderExternalURL)), "/"),
		WebhookSecret:     strings.TrimSpace(os.Getenv(KeyWebhookSecret)),
		MembershipTimeout: DefaultMembershipTimeout,
		MongoURI:          strings.TrimSpace(os.Getenv(KeyMongoURI)),
		MongoDB:           strings.TrimSpace(os.Getenv(KeyMongoDB)),
	}

	if err := validateAppEnv(cfg.AppEnv); err != nil {
		return Config{}, err
	}

	missing := make([]string, 0)

	if cfg.TelegramToken == "" {
		missing = append(missing, KeyTelegramToken)
	}

	if cfg.MongoURI != "" && cfg.MongoDB == "" {
		missing = append(missing, KeyMongoDB)
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	if cfg.MongoURI != "" && !hasMongoScheme(cfg.MongoURI) {
		return Config{}, fmt.Errorf("invalid %s: must start with %s", KeyMongoURI, strings.Join(mongoSchemes, " or "))
	}

	if cfg.WebhookBaseURL != "" {
		parsed, parseErr := url.Parse(cfg.WebhookBaseURL)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyWebhookBaseURL, parseErr)
		}
		if parsed.Scheme != "https" && parsed.Scheme != "http" {
			return Config{}, fmt.Errorf("invalid %s: scheme must be http or https", KeyWebhookBaseURL)
		}
	}

	httpPortKey := KeyHTTPPort
	httpPortRaw := strings.TrimSpace(os.Getenv(KeyHTTPPort))
	if httpPortRaw == "" {
		httpPortKey = KeyPort
		httpPortRaw = strings.TrimSpace(os.Getenv(KeyPort))
	}
	if httpPortRaw != "" {
		port, parseErr := strconv.Atoi(httpPortRaw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", httpPortKey, parseErr)
		}
		if port <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", httpPortKey)
		}
		cfg.HTTPPort = port
	}

	timeoutRaw := strings.TrimSpace(os.Getenv(KeyMembershipTimeout))
	if timeoutRaw != "" {
		timeout, parseErr := time.ParseDuration(timeoutRaw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyMembershipTimeout, parseErr)
		}
		if timeout <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyMembershipTimeout)
		}
		cfg.MembershipTimeout = timeout
	}

	return cfg, nil
}

// IsDevelopment reports if APP_ENV is development.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// UsesWebhook reports whether updates are delivered by webhook rather than long polling.
func (c Config) UsesWebhook() bool {
	return c.WebhookBaseURL != ""
}

// WebhookPath is the HTTP path Telegram posts updates to. It embeds the bot
// token so the path is not guessable.
func (c Config) WebhookPath() string {
	return "/" + c.TelegramToken
}

// WebhookURL is the absolute URL registered with Telegram in webhook mode.
func (c Config) WebhookURL() string {
	if !c.UsesWebhook() {
		return ""
	}
	return c.WebhookBaseURL + c.WebhookPath()
}

// MongoEnabled reports whether user bookkeeping in MongoDB is configured.
func (c Config) MongoEnabled() bool {
	return c.MongoURI != ""
}

func resolveAppEnv() (string, error) {
	if explicit := normalizeEnv(os.Getenv(KeyAppEnv)); explicit != "" {
		return explicit, nil
	}

	dotEnvValues, err := godotenv.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultAppEnv, nil
		}
		return "", fmt.Errorf("read .env: %w", err)
	}

	if envFromFile := normalizeEnv(dotEnvValues[KeyAppEnv]); envFromFile != "" {
		return envFromFile, nil
	}

	return DefaultAppEnv, nil
}

func loadDotEnv(appEnv string) error {
	if appEnv != EnvDevelopment {
		return nil
	}

	if err := godotenv.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}

func validateAppEnv(appEnv string) error {
	if appEnv == EnvDevelopment || appEnv == EnvProduction {
		return nil
	}

	return fmt.Errorf("invalid %s: must be %q or %q", KeyAppEnv, EnvDevelopment, EnvProduction)
}

func hasMongoScheme(uri string) bool {
	for _, scheme := range mongoSchemes {
		if strings.HasPrefix(strings.ToLower(uri), scheme) {
			return true
		}
	}
	return false
}

func normalizeEnv(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}
