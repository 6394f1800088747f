package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Supported login methods.
const (
	LoginMethodQRCode = "qrcode"
	LoginMethodPhone  = "phone"
	LoginMethodCookie = "cookie"
)

// Config holds all configuration options for the crawl orchestration core.
type Config struct {
	// Platforms to run, each with its own session and proxy usage
	Platforms []string `yaml:"platforms" json:"platforms"`

	// Crawl behaviour (mode, concurrency, pacing, budgets)
	Crawl CrawlConfig `yaml:"crawl" json:"crawl"`

	// Proxy pool settings
	Proxy ProxyConfig `yaml:"proxy" json:"proxy"`

	// Login/session settings
	Login LoginConfig `yaml:"login" json:"login"`

	// Retry behaviour for network calls
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// CrawlConfig holds crawl-mode configuration
type CrawlConfig struct {
	// Type is one of search, detail, creator
	Type     string   `yaml:"type" json:"type"`
	Keywords []string `yaml:"keywords" json:"keywords"`
	// IDList feeds detail mode; CreatorIDList feeds creator mode
	IDList        []string `yaml:"id_list" json:"id_list"`
	CreatorIDList []string `yaml:"creator_id_list" json:"creator_id_list"`

	// StartPage skips search pages below it (resume aid)
	StartPage int `yaml:"start_page" json:"start_page"`
	// PageLimit caps search pages per keyword
	PageLimit int `yaml:"page_limit" json:"page_limit"`

	// MaxConcurrency bounds the per-item worker pool
	MaxConcurrency int `yaml:"max_concurrency" json:"max_concurrency"`
	// CrawlInterval is the fixed sleep between page fetches
	CrawlInterval time.Duration `yaml:"crawl_interval" json:"crawl_interval"`
	// RequestsPerMinute additionally gates worker-pool requests; 0 disables
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`

	// MaxItems bounds creator content walks; 0 means unbounded
	MaxItems int `yaml:"max_items" json:"max_items"`
	// MaxCommentsPerItem bounds one item's comment tree walk
	MaxCommentsPerItem int `yaml:"max_comments_per_item" json:"max_comments_per_item"`

	EnableComments    bool `yaml:"enable_comments" json:"enable_comments"`
	EnableSubComments bool `yaml:"enable_sub_comments" json:"enable_sub_comments"`
}

// ProxyConfig holds proxy pool configuration
type ProxyConfig struct {
	Enabled  bool `yaml:"enabled" json:"enabled"`
	PoolSize int  `yaml:"pool_size" json:"pool_size"`
	// ValidateIP probes each acquired lease against EchoURL before use
	ValidateIP bool   `yaml:"validate_ip" json:"validate_ip"`
	EchoURL    string `yaml:"echo_url" json:"echo_url"`
	// ProviderURL is the lease vendor API endpoint
	ProviderURL string `yaml:"provider_url" json:"provider_url"`
	// ProviderKey authenticates against the vendor API
	ProviderKey string `yaml:"provider_key" json:"provider_key"`
}

// LoginConfig holds login/session configuration
type LoginConfig struct {
	// Method is one of qrcode, phone, cookie
	Method string `yaml:"method" json:"method"`
	Phone  string `yaml:"phone" json:"phone"`
	// Cookies is the raw cookie string for the cookie method; usually left
	// empty here and resolved from the credential store instead
	Cookies string `yaml:"cookies" json:"cookies"`
	// SaveState persists the session across runs
	SaveState bool   `yaml:"save_state" json:"save_state"`
	StateDir  string `yaml:"state_dir" json:"state_dir"`
	// MaxVerifyAttempts bounds login-success polling
	MaxVerifyAttempts int `yaml:"max_verify_attempts" json:"max_verify_attempts"`
	// MaxSliderAttempts bounds slider solving before a fresh challenge
	MaxSliderAttempts int `yaml:"max_slider_attempts" json:"max_slider_attempts"`
}

// RetryConfig holds shared retry behaviour for network calls
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
	// Exponential switches from fixed to exponential waits
	Exponential bool `yaml:"exponential" json:"exponential"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Platforms: []string{},
		Crawl: CrawlConfig{
			Type:               "search",
			StartPage:          1,
			PageLimit:          10,
			MaxConcurrency:     4,
			CrawlInterval:      time.Second,
			RequestsPerMinute:  60,
			MaxItems:           200,
			MaxCommentsPerItem: 100,
			EnableComments:     true,
			EnableSubComments:  false,
		},
		Proxy: ProxyConfig{
			Enabled:    false,
			PoolSize:   5,
			ValidateIP: true,
			EchoURL:    "https://echo.apifox.cn/",
		},
		Login: LoginConfig{
			Method:            LoginMethodQRCode,
			SaveState:         true,
			MaxVerifyAttempts: 120,
			MaxSliderAttempts: 20,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
			Exponential: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   false,
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if platforms := os.Getenv("MEDIACRAWL_PLATFORMS"); platforms != "" {
		c.Platforms = splitList(platforms)
	}
	if keywords := os.Getenv("MEDIACRAWL_KEYWORDS"); keywords != "" {
		c.Crawl.Keywords = splitList(keywords)
	}
	if crawlType := os.Getenv("MEDIACRAWL_TYPE"); crawlType != "" {
		c.Crawl.Type = crawlType
	}
	if v := os.Getenv("MEDIACRAWL_MAX_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Crawl.MaxConcurrency = n
		}
	}
	if v := os.Getenv("MEDIACRAWL_CRAWL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Crawl.CrawlInterval = d
		}
	}
	if v := os.Getenv("MEDIACRAWL_MAX_COMMENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Crawl.MaxCommentsPerItem = n
		}
	}
	if v := os.Getenv("MEDIACRAWL_ENABLE_COMMENTS"); v != "" {
		c.Crawl.EnableComments = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("MEDIACRAWL_ENABLE_SUB_COMMENTS"); v != "" {
		c.Crawl.EnableSubComments = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("MEDIACRAWL_PROXY_ENABLED"); v != "" {
		c.Proxy.Enabled = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("MEDIACRAWL_PROXY_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Proxy.PoolSize = n
		}
	}
	if v := os.Getenv("MEDIACRAWL_PROXY_PROVIDER_URL"); v != "" {
		c.Proxy.ProviderURL = v
	}
	if v := os.Getenv("MEDIACRAWL_PROXY_PROVIDER_KEY"); v != "" {
		c.Proxy.ProviderKey = v
	}
	if v := os.Getenv("MEDIACRAWL_LOGIN_METHOD"); v != "" {
		c.Login.Method = v
	}
	if v := os.Getenv("MEDIACRAWL_LOGIN_PHONE"); v != "" {
		c.Login.Phone = v
	}
	if v := os.Getenv("MEDIACRAWL_COOKIES"); v != "" {
		c.Login.Cookies = v
	}
	if v := os.Getenv("MEDIACRAWL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	// Check in order of precedence
	locations := []string{
		".mediacrawl.yaml",
		".mediacrawl.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "mediacrawl", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "mediacrawl", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".mediacrawl.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	switch c.Crawl.Type {
	case "search", "detail", "creator":
	default:
		errs = append(errs, fmt.Errorf("invalid crawl type %q (want search, detail or creator)", c.Crawl.Type))
	}

	if c.Crawl.MaxConcurrency <= 0 {
		errs = append(errs, errors.New("max concurrency must be positive"))
	}
	if c.Crawl.MaxConcurrency > 10 {
		errs = append(errs, errors.New("max concurrency should not exceed 10"))
	}
	if c.Crawl.CrawlInterval < 0 {
		errs = append(errs, errors.New("crawl interval cannot be negative"))
	}
	if c.Crawl.StartPage < 1 {
		errs = append(errs, errors.New("start page must be at least 1"))
	}
	if c.Crawl.MaxItems < 0 {
		errs = append(errs, errors.New("max items cannot be negative"))
	}
	if c.Crawl.MaxCommentsPerItem <= 0 && c.Crawl.EnableComments {
		errs = append(errs, errors.New("max comments per item must be positive when comments are enabled"))
	}

	if c.Proxy.Enabled {
		if c.Proxy.PoolSize <= 0 {
			errs = append(errs, errors.New("proxy pool size must be positive"))
		}
		if c.Proxy.ProviderURL == "" {
			errs = append(errs, errors.New("proxy provider URL is required when proxying is enabled"))
		}
		if c.Proxy.ValidateIP && c.Proxy.EchoURL == "" {
			errs = append(errs, errors.New("echo URL is required when IP validation is enabled"))
		}
	}

	switch c.Login.Method {
	case LoginMethodQRCode, LoginMethodPhone, LoginMethodCookie:
	default:
		errs = append(errs, fmt.Errorf("invalid login method %q (want qrcode, phone or cookie)", c.Login.Method))
	}
	if c.Login.Method == LoginMethodPhone && c.Login.Phone == "" {
		errs = append(errs, errors.New("phone number is required for phone login"))
	}
	if c.Login.MaxVerifyAttempts <= 0 {
		errs = append(errs, errors.New("max verify attempts must be positive"))
	}
	if c.Login.MaxSliderAttempts <= 0 {
		errs = append(errs, errors.New("max slider attempts must be positive"))
	}

	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, errors.New("retry max attempts cannot be negative"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if platforms, ok := flags["platforms"].([]string); ok && len(platforms) > 0 {
		c.Platforms = platforms
	}
	if crawlType, ok := flags["type"].(string); ok && crawlType != "" {
		c.Crawl.Type = crawlType
	}
	if keywords, ok := flags["keywords"].([]string); ok && len(keywords) > 0 {
		c.Crawl.Keywords = keywords
	}
	if ids, ok := flags["ids"].([]string); ok && len(ids) > 0 {
		c.Crawl.IDList = ids
	}
	if creators, ok := flags["creators"].([]string); ok && len(creators) > 0 {
		c.Crawl.CreatorIDList = creators
	}
	if concurrent, ok := flags["concurrency"].(int); ok && concurrent > 0 {
		c.Crawl.MaxConcurrency = concurrent
	}
	if interval, ok := flags["interval"].(time.Duration); ok && interval > 0 {
		c.Crawl.CrawlInterval = interval
	}
	if pageLimit, ok := flags["page-limit"].(int); ok && pageLimit > 0 {
		c.Crawl.PageLimit = pageLimit
	}
	if method, ok := flags["login-method"].(string); ok && method != "" {
		c.Login.Method = method
	}
	if enabled, ok := flags["proxy"].(bool); ok {
		c.Proxy.Enabled = enabled
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".mediacrawl.env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
