package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv blanks every variable the env overlay reads so the host
// environment cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, b := range envBindings {
		t.Setenv(b.env, "")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Listen != ":5000" {
		t.Errorf("expected :5000, got %s", cfg.Listen)
	}
	if cfg.Modes.Capacity != 1000 {
		t.Errorf("expected mode capacity 1000, got %d", cfg.Modes.Capacity)
	}
	if cfg.Reply.ChunkSize != 400 {
		t.Errorf("expected chunk size 400, got %d", cfg.Reply.ChunkSize)
	}
	if cfg.Reply.ActivateCommand != "啟動翻譯小助理" {
		t.Errorf("unexpected activate command %q", cfg.Reply.ActivateCommand)
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEST_GEMINI_KEY", "g-test-123")

	content := `
listen: ":9090"
db_path: "test.db"
line:
  channel_token: tok
  channel_secret: sec
providers:
  - name: gem
    type: gemini
    api_key: ${TEST_GEMINI_KEY}
    model: gemini-2.5-pro
router:
  default_engine: gem
  engines:
    - name: fast
      provider: gem
      model: gemini-2.5-flash
cache:
  enabled: true
  capacity: 50
  backend: sqlite
keepalive:
  enabled: true
  interval: 5m
quota:
  enabled: true
  policies:
    - user_id: "*"
      max_requests: 50
      period: daily
reply:
  render: carousel
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Listen != ":9090" {
		t.Errorf("expected :9090, got %s", cfg.Listen)
	}
	if cfg.Providers[0].APIKey != "g-test-123" {
		t.Errorf("env var not expanded: got %s", cfg.Providers[0].APIKey)
	}
	if cfg.Providers[0].Temperature != 0.5 || cfg.Providers[0].MaxTokens != 500 {
		t.Errorf("provider defaults not applied: %+v", cfg.Providers[0])
	}
	if cfg.Cache.Capacity != 50 || cfg.Cache.Backend != "sqlite" {
		t.Errorf("unexpected cache config: %+v", cfg.Cache)
	}
	if cfg.KeepAlive.Interval != 5*time.Minute {
		t.Errorf("expected 5m interval, got %v", cfg.KeepAlive.Interval)
	}
	if len(cfg.Quota.Policies) != 1 || cfg.Quota.Policies[0].MaxRequests != 50 {
		t.Errorf("unexpected quota policies: %+v", cfg.Quota.Policies)
	}
	// Unset keys keep their defaults.
	if cfg.Reply.FallbackText == "" {
		t.Error("expected default fallback text to survive")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadEnvOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHANNEL_ACCESS_TOKEN", "env-token")
	t.Setenv("CHANNEL_SECRET", "env-secret")
	t.Setenv("GEMINI_API_KEY", "env-gemini")
	t.Setenv("OPENAI_API_KEY", "env-openai")
	t.Setenv("PORT", "8088")
	t.Setenv("KEEPALIVE_URL", "https://example.com/ping")
	t.Setenv("PUSH_TARGET_ID", "Cgroup")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Line.ChannelToken != "env-token" || cfg.Line.ChannelSecret != "env-secret" {
		t.Errorf("line credentials not read from env: %+v", cfg.Line)
	}
	if cfg.Listen != ":8088" {
		t.Errorf("expected :8088, got %s", cfg.Listen)
	}
	if !cfg.KeepAlive.Enabled || cfg.KeepAlive.URL != "https://example.com/ping" {
		t.Errorf("keepalive not enabled from env: %+v", cfg.KeepAlive)
	}
	if cfg.Line.PushTarget != "Cgroup" {
		t.Errorf("expected push target, got %q", cfg.Line.PushTarget)
	}
	if len(cfg.Providers) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(cfg.Providers))
	}
	if cfg.Providers[0].Name != "gemini" || cfg.Providers[0].APIKey != "env-gemini" {
		t.Errorf("unexpected gemini provider: %+v", cfg.Providers[0])
	}
	if cfg.Providers[1].Type != "openai" {
		t.Errorf("unexpected second provider: %+v", cfg.Providers[1])
	}
}

func TestEnvKeyFillsConfiguredProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "from-env")

	content := `
providers:
  - name: main
    model: gemini-2.5-pro
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Providers) != 1 {
		t.Fatalf("expected 1 provider, got %d", len(cfg.Providers))
	}
	p := cfg.Providers[0]
	if p.Name != "main" || p.Type != "gemini" || p.APIKey != "from-env" {
		t.Errorf("unexpected provider: %+v", p)
	}
}

func TestHostEnvIgnoredWhenCleared(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Providers) != 0 {
		t.Errorf("expected no providers, got %+v", cfg.Providers)
	}
	if cfg.Listen != ":5000" {
		t.Errorf("expected default listen, got %s", cfg.Listen)
	}
}

func TestEnvTypedOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("KEEPALIVE_INTERVAL", "30s")
	t.Setenv("MODE_CAPACITY", "25")
	t.Setenv("REPLY_RATE_LIMIT", "2.5")
	t.Setenv("LOG_FORMAT", "json")

	content := `
modes:
  capacity: 300
keepalive:
  interval: 5m
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.KeepAlive.Interval != 30*time.Second {
		t.Errorf("expected 30s interval, got %v", cfg.KeepAlive.Interval)
	}
	if cfg.Modes.Capacity != 25 {
		t.Errorf("expected capacity 25, got %d", cfg.Modes.Capacity)
	}
	if cfg.Reply.RateLimit != 2.5 {
		t.Errorf("expected rate limit 2.5, got %v", cfg.Reply.RateLimit)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("expected json log format, got %s", cfg.Log.Format)
	}
}

func TestFileValuesSurviveUnsetEnv(t *testing.T) {
	clearEnv(t)

	content := `
modes:
  capacity: 300
keepalive:
  interval: 5m
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Modes.Capacity != 300 || cfg.KeepAlive.Interval != 5*time.Minute {
		t.Errorf("file values overridden: capacity=%d interval=%v", cfg.Modes.Capacity, cfg.KeepAlive.Interval)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"ok", func(*Config) {}, false},
		{"no secret", func(c *Config) { c.Line.ChannelSecret = "" }, true},
		{"no token", func(c *Config) { c.Line.ChannelToken = "" }, true},
		{"no providers", func(c *Config) { c.Providers = nil }, true},
		{"bad render", func(c *Config) { c.Reply.Render = "html" }, true},
		{"bad backend", func(c *Config) { c.Cache.Backend = "memcached" }, true},
		{"quota without usage", func(c *Config) { c.Quota.Enabled = true; c.Usage.Enabled = false }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Line = LineConfig{ChannelToken: "t", ChannelSecret: "s"}
			cfg.Providers = []ProviderConfig{{Name: "gemini", Type: "gemini", APIKey: "k"}}
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
