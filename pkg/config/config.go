package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/gemrelay/gemrelay/pkg/models"
)

// Config holds all gemrelay configuration.
type Config struct {
	Listen    string           `yaml:"listen"`
	DBPath    string           `yaml:"db_path"`
	Line      LineConfig       `yaml:"line"`
	Providers []ProviderConfig `yaml:"providers"`
	Router    RouterConfig     `yaml:"router"`
	Modes     ModeConfig       `yaml:"modes"`
	Cache     CacheConfig      `yaml:"cache"`
	Prompt    PromptConfig     `yaml:"prompt"`
	Reply     ReplyConfig      `yaml:"reply"`
	KeepAlive KeepAliveConfig  `yaml:"keepalive"`
	Usage     UsageConfig      `yaml:"usage"`
	Quota     QuotaConfig      `yaml:"quota"`
	Log       LogConfig        `yaml:"log"`
}

// LineConfig holds the LINE channel credentials.
// PushTarget receives a copy of every generated answer; it is pushed through
// SecondaryToken when set, otherwise through ChannelToken.
type LineConfig struct {
	ChannelToken   string `yaml:"channel_token"`
	ChannelSecret  string `yaml:"channel_secret"`
	PushTarget     string `yaml:"push_target"`
	SecondaryToken string `yaml:"secondary_token"`
}

// ProviderConfig defines an upstream generation provider.
// Type is "gemini" (default), "openai" or "anthropic".
type ProviderConfig struct {
	Name        string  `yaml:"name"`
	Type        string  `yaml:"type"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// RouterConfig maps engine names to providers.
type RouterConfig struct {
	DefaultEngine string         `yaml:"default_engine"`
	Engines       []EngineConfig `yaml:"engines"`
}

// EngineConfig is a named provider+model pair a user can pick at activation.
type EngineConfig struct {
	Name     string `yaml:"name"`
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// ModeConfig bounds the user mode store.
type ModeConfig struct {
	Capacity int `yaml:"capacity"`
}

// CacheConfig controls the response cache.
// Backend selects an optional persistent tier: "memory" (none), "sqlite" or "redis".
type CacheConfig struct {
	Enabled  bool        `yaml:"enabled"`
	Capacity int         `yaml:"capacity"`
	Backend  string      `yaml:"backend"`
	Redis    RedisConfig `yaml:"redis"`
}

// RedisConfig locates the Redis cache tier.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// PromptConfig holds the prompt template file and per-mode instructions.
type PromptConfig struct {
	TemplateFile         string `yaml:"template_file"`
	GeneralInstruction   string `yaml:"general_instruction"`
	TranslateInstruction string `yaml:"translate_instruction"`
}

// ReplyConfig controls reply texts and rendering.
type ReplyConfig struct {
	Render            string  `yaml:"render"`
	ChunkSize         int     `yaml:"chunk_size"`
	QuickReply        bool    `yaml:"quick_reply"`
	FallbackText      string  `yaml:"fallback_text"`
	QuotaText         string  `yaml:"quota_text"`
	ActivateCommand   string  `yaml:"activate_command"`
	DeactivateCommand string  `yaml:"deactivate_command"`
	ActivateAck       string  `yaml:"activate_ack"`
	DeactivateAck     string  `yaml:"deactivate_ack"`
	WelcomeText       string  `yaml:"welcome_text"`
	JoinGreeting      string  `yaml:"join_greeting"`
	StripChars        string  `yaml:"strip_chars"`
	RateLimit         float64 `yaml:"rate_limit"`
}

// KeepAliveConfig controls the periodic self ping. An empty URL pings the
// local /ping endpoint.
type KeepAliveConfig struct {
	Enabled  bool          `yaml:"enabled"`
	URL      string        `yaml:"url"`
	Interval time.Duration `yaml:"interval"`
}

// UsageConfig controls the SQLite usage tracker.
type UsageConfig struct {
	Enabled bool `yaml:"enabled"`
}

// QuotaConfig caps generations per user. It needs the usage tracker.
type QuotaConfig struct {
	Enabled  bool                 `yaml:"enabled"`
	Policies []models.QuotaPolicy `yaml:"policies"`
}

// LogConfig controls logrus output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":5000",
		DBPath: "gemrelay.db",
		Modes: ModeConfig{
			Capacity: 1000,
		},
		Cache: CacheConfig{
			Enabled:  true,
			Capacity: 1000,
			Backend:  "memory",
		},
		Prompt: PromptConfig{
			TemplateFile:         "prompt.txt",
			TranslateInstruction: "你是一位專業的翻譯小助理。如果下面的文字是中文，請翻譯成英文；如果是其他語言，請翻譯成繁體中文。只輸出翻譯結果。",
		},
		Reply: ReplyConfig{
			Render:            "text",
			ChunkSize:         400,
			QuickReply:        true,
			FallbackText:      "AI 回應發生錯誤，請查看伺服器 Log 訊息或確認 API 金鑰是否有效",
			QuotaText:         "今日的使用次數已達上限，請明天再試。",
			ActivateCommand:   "啟動翻譯小助理",
			DeactivateCommand: "結束翻譯小助理",
			ActivateAck:       "翻譯小助理已啟動，請輸入要翻譯的文字。",
			DeactivateAck:     "翻譯小助理已結束，回到一般對話模式。",
			WelcomeText:       "感謝加入好友！直接輸入訊息就可以和 AI 聊天。",
			JoinGreeting:      "歡迎加入！",
			StripChars:        "。",
			RateLimit:         10,
		},
		KeepAlive: KeepAliveConfig{
			Enabled:  false,
			Interval: 10 * time.Minute,
		},
		Usage: UsageConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML config file, expands environment variables and overlays
// the well-known process environment variables. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}

		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg, envViper())
	return cfg, nil
}

// envBindings maps viper keys to the process environment variables that set them.
var envBindings = []struct {
	key, env string
}{
	{"line.channel_token", "CHANNEL_ACCESS_TOKEN"},
	{"line.channel_secret", "CHANNEL_SECRET"},
	{"line.push_target", "PUSH_TARGET_ID"},
	{"line.secondary_token", "SECONDARY_CHANNEL_ACCESS_TOKEN"},
	{"prompt.template_file", "PROMPT_TEMPLATE_FILE"},
	{"log.level", "LOG_LEVEL"},
	{"log.format", "LOG_FORMAT"},
	{"port", "PORT"},
	{"keepalive.url", "KEEPALIVE_URL"},
	{"keepalive.interval", "KEEPALIVE_INTERVAL"},
	{"modes.capacity", "MODE_CAPACITY"},
	{"reply.rate_limit", "REPLY_RATE_LIMIT"},
	{"providers.gemini", "GEMINI_API_KEY"},
	{"providers.openai", "OPENAI_API_KEY"},
	{"providers.anthropic", "ANTHROPIC_API_KEY"},
}

func envViper() *viper.Viper {
	v := viper.New()
	for _, b := range envBindings {
		_ = v.BindEnv(b.key, b.env)
	}
	return v
}

// applyEnv overlays environment variables on cfg. Values already in cfg act as
// viper defaults, so unset or empty variables leave them alone. Provider keys
// add a provider of the matching type when none is configured yet.
func applyEnv(cfg *Config, v *viper.Viper) {
	setString := func(key string, dst *string) {
		if s := strings.TrimSpace(v.GetString(key)); s != "" {
			*dst = s
		}
	}

	setString("line.channel_token", &cfg.Line.ChannelToken)
	setString("line.channel_secret", &cfg.Line.ChannelSecret)
	setString("line.push_target", &cfg.Line.PushTarget)
	setString("line.secondary_token", &cfg.Line.SecondaryToken)
	setString("prompt.template_file", &cfg.Prompt.TemplateFile)
	setString("log.level", &cfg.Log.Level)
	setString("log.format", &cfg.Log.Format)

	v.SetDefault("keepalive.interval", cfg.KeepAlive.Interval)
	v.SetDefault("modes.capacity", cfg.Modes.Capacity)
	v.SetDefault("reply.rate_limit", cfg.Reply.RateLimit)
	cfg.KeepAlive.Interval = v.GetDuration("keepalive.interval")
	cfg.Modes.Capacity = v.GetInt("modes.capacity")
	cfg.Reply.RateLimit = v.GetFloat64("reply.rate_limit")

	if port := strings.TrimSpace(v.GetString("port")); port != "" {
		cfg.Listen = ":" + port
	}
	if url := strings.TrimSpace(v.GetString("keepalive.url")); url != "" {
		cfg.KeepAlive.URL = url
		cfg.KeepAlive.Enabled = true
	}

	envProviders := []struct {
		typ, model string
	}{
		{"gemini", "gemini-2.5-flash"},
		{"openai", "gpt-4o-mini"},
		{"anthropic", "claude-haiku-4-5"},
	}
	for _, ep := range envProviders {
		key := strings.TrimSpace(v.GetString("providers." + ep.typ))
		if key == "" {
			continue
		}
		if p := cfg.providerByType(ep.typ); p != nil {
			if p.APIKey == "" {
				p.APIKey = key
			}
			continue
		}
		cfg.Providers = append(cfg.Providers, ProviderConfig{
			Name:   ep.typ,
			Type:   ep.typ,
			APIKey: key,
			Model:  ep.model,
		})
	}

	for i := range cfg.Providers {
		cfg.Providers[i].applyDefaults()
	}
}

func (c *Config) providerByType(typ string) *ProviderConfig {
	for i := range c.Providers {
		if c.Providers[i].kind() == typ {
			return &c.Providers[i]
		}
	}
	return nil
}

func (p *ProviderConfig) kind() string {
	if p.Type == "" {
		return "gemini"
	}
	return p.Type
}

func (p *ProviderConfig) applyDefaults() {
	p.Type = p.kind()
	if p.Name == "" {
		p.Name = p.Type
	}
	if p.Temperature == 0 {
		p.Temperature = 0.5
	}
	if p.MaxTokens == 0 {
		p.MaxTokens = 500
	}
}

// Validate checks the settings the webhook server cannot run without.
func (c *Config) Validate() error {
	if c.Line.ChannelSecret == "" {
		return fmt.Errorf("line channel secret is required (CHANNEL_SECRET)")
	}
	if c.Line.ChannelToken == "" {
		return fmt.Errorf("line channel access token is required (CHANNEL_ACCESS_TOKEN)")
	}
	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider is required (GEMINI_API_KEY, OPENAI_API_KEY or ANTHROPIC_API_KEY)")
	}
	switch c.Reply.Render {
	case "text", "carousel":
	default:
		return fmt.Errorf("unknown reply.render %q", c.Reply.Render)
	}
	switch c.Cache.Backend {
	case "", "memory", "sqlite", "redis":
	default:
		return fmt.Errorf("unknown cache.backend %q", c.Cache.Backend)
	}
	if c.Quota.Enabled && !c.Usage.Enabled {
		return fmt.Errorf("quota requires usage tracking (usage.enabled)")
	}
	return nil
}
