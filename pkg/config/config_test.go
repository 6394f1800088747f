package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Crawl.Type != "search" {
		t.Errorf("Expected default crawl type to be search, got %s", cfg.Crawl.Type)
	}
	if cfg.Crawl.MaxConcurrency != 4 {
		t.Errorf("Expected default max concurrency to be 4, got %d", cfg.Crawl.MaxConcurrency)
	}
	if cfg.Login.Method != LoginMethodQRCode {
		t.Errorf("Expected default login method to be qrcode, got %s", cfg.Login.Method)
	}
	if cfg.Login.MaxVerifyAttempts != 120 {
		t.Errorf("Expected default max verify attempts to be 120, got %d", cfg.Login.MaxVerifyAttempts)
	}
	if cfg.Login.MaxSliderAttempts != 20 {
		t.Errorf("Expected default max slider attempts to be 20, got %d", cfg.Login.MaxSliderAttempts)
	}
	if cfg.Proxy.Enabled {
		t.Error("Expected proxying to be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MEDIACRAWL_PLATFORMS", "xhs, dy")
	t.Setenv("MEDIACRAWL_TYPE", "detail")
	t.Setenv("MEDIACRAWL_MAX_CONCURRENCY", "8")
	t.Setenv("MEDIACRAWL_CRAWL_INTERVAL", "2s")
	t.Setenv("MEDIACRAWL_ENABLE_SUB_COMMENTS", "true")
	t.Setenv("MEDIACRAWL_LOGIN_METHOD", "cookie")
	t.Setenv("MEDIACRAWL_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if len(cfg.Platforms) != 2 || cfg.Platforms[0] != "xhs" || cfg.Platforms[1] != "dy" {
		t.Errorf("Expected platforms [xhs dy], got %v", cfg.Platforms)
	}
	if cfg.Crawl.Type != "detail" {
		t.Errorf("Expected crawl type detail, got %s", cfg.Crawl.Type)
	}
	if cfg.Crawl.MaxConcurrency != 8 {
		t.Errorf("Expected max concurrency 8, got %d", cfg.Crawl.MaxConcurrency)
	}
	if cfg.Crawl.CrawlInterval != 2*time.Second {
		t.Errorf("Expected crawl interval 2s, got %s", cfg.Crawl.CrawlInterval)
	}
	if !cfg.Crawl.EnableSubComments {
		t.Error("Expected sub comments to be enabled")
	}
	if cfg.Login.Method != LoginMethodCookie {
		t.Errorf("Expected login method cookie, got %s", cfg.Login.Method)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.Logging.Level)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
platforms:
  - xhs
crawl:
  type: creator
  creator_id_list:
    - u123
  max_concurrency: 2
  crawl_interval: 500ms
proxy:
  enabled: true
  pool_size: 7
  provider_url: "https://vendor.example/api"
login:
  method: cookie
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFromFile(path); err != nil {
		t.Fatalf("Failed to load config file: %v", err)
	}

	if cfg.Crawl.Type != "creator" {
		t.Errorf("Expected crawl type creator, got %s", cfg.Crawl.Type)
	}
	if cfg.Crawl.CrawlInterval != 500*time.Millisecond {
		t.Errorf("Expected crawl interval 500ms, got %s", cfg.Crawl.CrawlInterval)
	}
	if !cfg.Proxy.Enabled || cfg.Proxy.PoolSize != 7 {
		t.Errorf("Expected proxy enabled with pool size 7, got %+v", cfg.Proxy)
	}
	// Values absent from the file keep their defaults.
	if cfg.Crawl.PageLimit != 10 {
		t.Errorf("Expected default page limit 10, got %d", cfg.Crawl.PageLimit)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Loaded config should validate, got %v", err)
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"platforms":   []string{"weibo"},
		"type":        "detail",
		"ids":         []string{"1", "2"},
		"concurrency": 6,
		"interval":    3 * time.Second,
		"proxy":       true,
	})

	if len(cfg.Platforms) != 1 || cfg.Platforms[0] != "weibo" {
		t.Errorf("Expected platforms [weibo], got %v", cfg.Platforms)
	}
	if cfg.Crawl.Type != "detail" {
		t.Errorf("Expected crawl type detail, got %s", cfg.Crawl.Type)
	}
	if len(cfg.Crawl.IDList) != 2 {
		t.Errorf("Expected 2 item IDs, got %v", cfg.Crawl.IDList)
	}
	if cfg.Crawl.MaxConcurrency != 6 {
		t.Errorf("Expected max concurrency 6, got %d", cfg.Crawl.MaxConcurrency)
	}
	if !cfg.Proxy.Enabled {
		t.Error("Expected proxy flag to enable proxying")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"bad crawl type", func(c *Config) { c.Crawl.Type = "firehose" }, true},
		{"zero concurrency", func(c *Config) { c.Crawl.MaxConcurrency = 0 }, true},
		{"concurrency over cap", func(c *Config) { c.Crawl.MaxConcurrency = 11 }, true},
		{"negative interval", func(c *Config) { c.Crawl.CrawlInterval = -time.Second }, true},
		{"start page zero", func(c *Config) { c.Crawl.StartPage = 0 }, true},
		{"bad login method", func(c *Config) { c.Login.Method = "telepathy" }, true},
		{"phone method without number", func(c *Config) { c.Login.Method = LoginMethodPhone }, true},
		{"proxy without provider", func(c *Config) { c.Proxy.Enabled = true; c.Proxy.ProviderURL = "" }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "chatty" }, true},
		{"max items zero is unbounded", func(c *Config) { c.Crawl.MaxItems = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected valid config, got %v", err)
			}
		})
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
crawl:
  type: detail
  max_concurrency: 2
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	t.Setenv("MEDIACRAWL_MAX_CONCURRENCY", "5")

	cfg, err := Load(path, map[string]interface{}{"type": "search", "keywords": []string{"k"}})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Flags beat env beats file.
	if cfg.Crawl.Type != "search" {
		t.Errorf("Expected flag to win for crawl type, got %s", cfg.Crawl.Type)
	}
	if cfg.Crawl.MaxConcurrency != 5 {
		t.Errorf("Expected env to win for concurrency, got %d", cfg.Crawl.MaxConcurrency)
	}
}
