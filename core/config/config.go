package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings that are common for all bots.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
	// UpdateInlineQuery identifies inline query updates for rate limit exclusions.
	UpdateInlineQuery = "inline_query"
)

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
// - "inline_query": inline query updates
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// RedisConfig points at the key/value store holding all bot state.
// URL accepts redis://, rediss:// or memory:// for a single-process in-memory store.
type RedisConfig struct {
	URL         string `yaml:"url" envconfig:"REDIS_URL"`
	OpTimeoutMS int    `yaml:"op_timeout_ms" envconfig:"REDIS_OP_TIMEOUT_MS"`
}

// OpTimeout returns the per-command store timeout.
func (c RedisConfig) OpTimeout() time.Duration {
	return time.Duration(c.OpTimeoutMS) * time.Millisecond
}

// CoinsConfig configures the market data client.
type CoinsConfig struct {
	BaseURL           string `yaml:"base_url" envconfig:"COINGECKO_BASE_URL"`
	APIKey            string `yaml:"api_key" envconfig:"COINGECKO_API_KEY"`
	APIKeyHeader      string `yaml:"api_key_header"`
	TimeoutSeconds    int    `yaml:"timeout_seconds"`
	ListingTTLSeconds int    `yaml:"listing_ttl_seconds"`
	WarmOnStart       bool   `yaml:"warm_on_start"`
	// Aliases maps a ticker symbol to a coin id and wins over the listing scan.
	Aliases map[string]string `yaml:"aliases"`
}

// Timeout returns the per-request market data timeout.
func (c CoinsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ListingTTL returns how long the cached coin listing stays valid.
func (c CoinsConfig) ListingTTL() time.Duration {
	return time.Duration(c.ListingTTLSeconds) * time.Second
}

const (
	// ProviderOpenAI selects an OpenAI-compatible chat completions endpoint.
	ProviderOpenAI = "openai"
	// ProviderOllama selects an Ollama server.
	ProviderOllama = "ollama"
)

// ProviderConfig describes one language-model backend. Order in AIConfig.Providers is call order.
type ProviderConfig struct {
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"`
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	// APIKeyEnv names an environment variable read into APIKey when APIKey is empty.
	APIKeyEnv      string `yaml:"api_key_env"`
	MaxTokens      int    `yaml:"max_tokens"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the per-call provider timeout.
func (c ProviderConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// AIConfig configures the response provider chain.
type AIConfig struct {
	Providers       []ProviderConfig `yaml:"providers"`
	CacheTTLSeconds int              `yaml:"cache_ttl_seconds"`
	MaxAnswerRunes  int              `yaml:"max_answer_runes"`
	Fallback        string           `yaml:"fallback"`
}

// CacheTTL returns how long answers stay cached.
func (c AIConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// LockConfig configures the single-instance lease.
type LockConfig struct {
	Disabled   bool   `yaml:"disabled" envconfig:"LOCK_DISABLED"`
	Key        string `yaml:"key"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

// TTL returns the lease duration.
func (c LockConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// MetricsConfig enables the Prometheus listener when Listen is set.
type MetricsConfig struct {
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN"`
}

// MenuConfig tunes menu texts.
type MenuConfig struct {
	// HintSymbols are suggested when a coin cannot be found.
	HintSymbols []string `yaml:"hint_symbols"`
	// DateLayout is the Go time layout used by the date helper.
	DateLayout string `yaml:"date_layout"`
}

// Config aggregates the bot configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Redis     RedisConfig     `yaml:"redis"`
	Coins     CoinsConfig     `yaml:"coins"`
	AI        AIConfig        `yaml:"ai"`
	Lock      LockConfig      `yaml:"lock"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Menu      MenuConfig      `yaml:"menu"`
}

const (
	defaultRedisURL          = "redis://localhost:6379/0"
	defaultRedisOpTimeoutMS  = 3000
	defaultCoinsBaseURL      = "https://api.coingecko.com/api/v3"
	defaultCoinsKeyHeader    = "x-cg-demo-api-key"
	defaultCoinsTimeout      = 10
	defaultListingTTL        = 3600
	defaultProviderTimeout   = 15
	defaultProviderMaxTokens = 512
	defaultAnswerTTL         = 3600
	defaultMaxAnswerRunes    = 3500
	defaultFallback          = "Sorry, I can't answer that right now. Please try again later."
	defaultLockKey           = "bot:instance:lock"
	defaultLockTTL           = 10
	defaultDateLayout        = time.DateOnly
)

var defaultHintSymbols = []string{"BTC", "ETH", "DOGE", "SOL"}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	allowed := map[string]struct{}{
		UpdateCallback:    {},
		UpdateMessage:     {},
		UpdateInlineQuery: {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message, inline_query", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}

	if err := normalizeRedis(&cfg.Redis); err != nil {
		return err
	}
	if err := normalizeCoins(&cfg.Coins); err != nil {
		return err
	}
	if err := normalizeAI(&cfg.AI); err != nil {
		return err
	}
	if err := normalizeLock(&cfg.Lock); err != nil {
		return err
	}
	cfg.Metrics.Listen = strings.TrimSpace(cfg.Metrics.Listen)
	if len(cfg.Menu.HintSymbols) == 0 {
		cfg.Menu.HintSymbols = append([]string(nil), defaultHintSymbols...)
	}
	if strings.TrimSpace(cfg.Menu.DateLayout) == "" {
		cfg.Menu.DateLayout = defaultDateLayout
	}
	return nil
}

func normalizeRedis(c *RedisConfig) error {
	c.URL = strings.TrimSpace(c.URL)
	if c.URL == "" {
		c.URL = defaultRedisURL
	}
	if c.OpTimeoutMS < 0 {
		return fmt.Errorf("redis.op_timeout_ms must be >= 0")
	}
	if c.OpTimeoutMS == 0 {
		c.OpTimeoutMS = defaultRedisOpTimeoutMS
	}
	return nil
}

func normalizeCoins(c *CoinsConfig) error {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = defaultCoinsBaseURL
	}
	if strings.TrimSpace(c.APIKeyHeader) == "" {
		c.APIKeyHeader = defaultCoinsKeyHeader
	}
	if c.TimeoutSeconds < 0 || c.ListingTTLSeconds < 0 {
		return fmt.Errorf("coins.timeout_seconds and coins.listing_ttl_seconds must be >= 0")
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = defaultCoinsTimeout
	}
	if c.ListingTTLSeconds == 0 {
		c.ListingTTLSeconds = defaultListingTTL
	}
	if len(c.Aliases) > 0 {
		aliases := make(map[string]string, len(c.Aliases))
		for sym, id := range c.Aliases {
			sym = strings.ToLower(strings.TrimSpace(sym))
			id = strings.TrimSpace(id)
			if sym == "" || id == "" {
				return fmt.Errorf("coins.aliases entries need both symbol and id")
			}
			aliases[sym] = id
		}
		c.Aliases = aliases
	}
	return nil
}

func normalizeAI(c *AIConfig) error {
	seen := make(map[string]struct{}, len(c.Providers))
	for i := range c.Providers {
		p := &c.Providers[i]
		p.Kind = strings.ToLower(strings.TrimSpace(p.Kind))
		switch p.Kind {
		case ProviderOpenAI:
			if strings.TrimSpace(p.Endpoint) == "" {
				return fmt.Errorf("ai.providers[%d].endpoint is required for kind %q", i, p.Kind)
			}
		case ProviderOllama:
			if strings.TrimSpace(p.Endpoint) == "" {
				p.Endpoint = "http://localhost:11434"
			}
		default:
			return fmt.Errorf("invalid ai.providers[%d].kind %q; allowed: openai, ollama", i, p.Kind)
		}
		if strings.TrimSpace(p.Model) == "" {
			return fmt.Errorf("ai.providers[%d].model is required", i)
		}
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			p.Name = p.Kind
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("duplicate ai provider name %q", p.Name)
		}
		seen[p.Name] = struct{}{}
		if p.APIKey == "" && strings.TrimSpace(p.APIKeyEnv) != "" {
			p.APIKey = os.Getenv(strings.TrimSpace(p.APIKeyEnv))
		}
		if p.TimeoutSeconds < 0 || p.MaxTokens < 0 {
			return fmt.Errorf("ai.providers[%d]: timeout_seconds and max_tokens must be >= 0", i)
		}
		if p.TimeoutSeconds == 0 {
			p.TimeoutSeconds = defaultProviderTimeout
		}
		if p.MaxTokens == 0 {
			p.MaxTokens = defaultProviderMaxTokens
		}
	}
	if c.CacheTTLSeconds <= 0 {
		c.CacheTTLSeconds = defaultAnswerTTL
	}
	if c.MaxAnswerRunes <= 0 {
		c.MaxAnswerRunes = defaultMaxAnswerRunes
	}
	if strings.TrimSpace(c.Fallback) == "" {
		c.Fallback = defaultFallback
	}
	return nil
}

func normalizeLock(c *LockConfig) error {
	c.Key = strings.TrimSpace(c.Key)
	if c.Key == "" {
		c.Key = defaultLockKey
	}
	if c.TTLSeconds < 0 {
		return fmt.Errorf("lock.ttl_seconds must be >= 0")
	}
	if c.TTLSeconds == 0 {
		c.TTLSeconds = defaultLockTTL
	}
	return nil
}
