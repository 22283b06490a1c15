package main

import (
	"fmt"
	"os"

	"cinodeharvest/pkg/auth"
	"cinodeharvest/pkg/config"
	"cinodeharvest/pkg/ui"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Create, show and validate the cinodeharvest configuration.

Settings are merged in this order, later sources winning:
  defaults, config file, .env files, environment variables, command line flags`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an example configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

const exampleConfig = `# cinodeharvest configuration
#
# Environment variables override this file, for example
# CINODE_ACCESS, CINODE_COMPANY_ID, CINODE_OUTPUT_DIR, CINODE_CACHE_BACKEND.

api:
  base_url: "https://api.cinode.com/v0.1"
  token_url: "https://api.cinode.com/token"
  company_id: 31
  # Prefer 'cinodeharvest auth login' or CINODE_ACCESS over storing it here
  access_code: ""
  timeout: 5m

cache:
  # disk or redis
  backend: "disk"
  directory: "cache"
  redis_addr: ""
  redis_db: 0
  key_prefix: "cinode:cache:"
  # 0 keeps redis entries forever
  ttl: 0s

output:
  base_directory: "One Agency"
  sub_contractors_dir: "_Sub Contractors"
  in_house_projects_dir: "_In House Projects"
  # Appended to attachment names without an extension
  default_extension: ".pdf"

rate_limit:
  # 0 disables pacing
  requests_per_minute: 120

retry:
  enabled: true
  max_attempts: 3
  initial_backoff: 1s
  max_backoff: 30s
  multiplier: 2.0

download:
  # 0 runs every customer and sub-contractor task at once
  concurrency: 0
  claim_buffer: 100

logging:
  # debug, info, warn, error
  level: "info"
  # Optional log file in addition to the console
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = ".cinodeharvest.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists: %s", configPath)
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	ui.PrintInfo("Next", "run 'cinodeharvest auth login', then 'cinodeharvest config validate'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	display := *cfg
	if display.API.AccessCode != "" {
		display.API.AccessCode = auth.SanitizeCredential(&auth.Credential{AccessCode: display.API.AccessCode}).AccessCode
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current configuration")
	fmt.Print(string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	if cfg.API.AccessCode == "" {
		ui.PrintWarning("No access code configured", "a stored credential will be used")
	}
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("log file is not writable: %w", err)
		}
		f.Close()
	}

	ui.PrintSuccess("Configuration is valid")
	ui.PrintInfo("API", cfg.CompanyURL())
	ui.PrintInfo("Output directory", cfg.Output.BaseDirectory)
	ui.PrintInfo("Cache backend", cfg.Cache.Backend)
	ui.PrintInfo("Rate limit", fmt.Sprintf("%d requests/minute", cfg.RateLimit.RequestsPerMinute))
	ui.PrintInfo("Concurrency", fmt.Sprintf("%d", cfg.Download.Concurrency))
	return nil
}
