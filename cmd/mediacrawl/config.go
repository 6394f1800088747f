package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mediacrawl/pkg/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage MediaCrawl configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables
  - Configuration file
  - Default values (lowest priority)`,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is created in the current directory as '.mediacrawl.yaml'
unless a different path is specified with the --config flag.`,
	RunE: runConfigInit,
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration merged from all sources.

Sensitive values like cookies and provider keys are masked.`,
	RunE: runConfigShow,
}

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate a configuration file for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Value types and ranges
  - Cross-field requirements (e.g. provider URL when proxying is enabled)`,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = ".mediacrawl.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists: %s", configPath)
	}

	exampleConfig := `# MediaCrawl Configuration File
#
# Environment variables prefixed with MEDIACRAWL_ override these values,
# e.g. MEDIACRAWL_PLATFORMS, MEDIACRAWL_COOKIES_XHS.

# Platforms to crawl
platforms:
  - xhs

crawl:
  # One of: search, detail, creator
  type: search
  keywords:
    - example keyword
  # Item IDs for detail mode
  id_list: []
  # Creator IDs for creator mode
  creator_id_list: []
  start_page: 1
  page_limit: 10
  # At most 10 concurrent per-item fetches
  max_concurrency: 4
  crawl_interval: 1s
  requests_per_minute: 60
  # 0 means unbounded creator walks
  max_items: 200
  max_comments_per_item: 100
  enable_comments: true
  enable_sub_comments: false

proxy:
  enabled: false
  pool_size: 5
  validate_ip: true
  echo_url: "https://echo.apifox.cn/"
  # Lease vendor API
  provider_url: ""
  provider_key: ""

login:
  # One of: qrcode, phone, cookie
  method: cookie
  phone: ""
  # Usually left empty; stored via 'mediacrawl auth set <platform>'
  cookies: ""
  save_state: true
  state_dir: ".mediacrawl_state"
  max_verify_attempts: 120
  max_slider_attempts: 20

retry:
  max_attempts: 3
  base_delay: 1s
  max_delay: 30s
  exponential: true

logging:
  level: info
  # Empty logs to stderr; a path enables rotating file output
  file: ""
  max_size: 100
  max_backups: 3
  max_age: 7
  compress: false
`

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0600); err != nil {
		return fmt.Errorf("write configuration file: %w", err)
	}

	fmt.Printf("Example configuration written to %s\n", configPath)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	// Mask secrets before printing.
	if cfg.Login.Cookies != "" {
		cfg.Login.Cookies = "********"
	}
	if cfg.Proxy.ProviderKey != "" {
		cfg.Proxy.ProviderKey = "********"
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal configuration: %w", err)
	}

	fmt.Print(string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	if err := cfg.LoadFromFile(configFile); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration is invalid:\n%w", err)
	}

	fmt.Println("Configuration is valid")
	return nil
}
