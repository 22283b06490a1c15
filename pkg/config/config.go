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

// Config holds all configuration options for the harvester
type Config struct {
	// Remote API access
	API APIConfig `yaml:"api" json:"api"`

	// Response cache
	Cache CacheConfig `yaml:"cache" json:"cache"`

	// Output tree
	Output OutputConfig `yaml:"output" json:"output"`

	// Request pacing
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Transport retry
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Task fan-out
	Download DownloadConfig `yaml:"download" json:"download"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// APIConfig holds Cinode API settings
type APIConfig struct {
	BaseURL    string        `yaml:"base_url" json:"base_url"`
	TokenURL   string        `yaml:"token_url" json:"token_url"`
	CompanyID  int           `yaml:"company_id" json:"company_id"`
	AccessCode string        `yaml:"access_code" json:"access_code"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
}

// CacheConfig selects and configures the response cache backend
type CacheConfig struct {
	Backend   string        `yaml:"backend" json:"backend"` // disk or redis
	Directory string        `yaml:"directory" json:"directory"`
	RedisAddr string        `yaml:"redis_addr" json:"redis_addr"`
	RedisDB   int           `yaml:"redis_db" json:"redis_db"`
	KeyPrefix string        `yaml:"key_prefix" json:"key_prefix"`
	TTL       time.Duration `yaml:"ttl" json:"ttl"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory      string `yaml:"base_directory" json:"base_directory"`
	SubContractorsDir  string `yaml:"sub_contractors_dir" json:"sub_contractors_dir"`
	InHouseProjectsDir string `yaml:"in_house_projects_dir" json:"in_house_projects_dir"`
	DefaultExtension   string `yaml:"default_extension" json:"default_extension"`
}

// RateLimitConfig holds request pacing configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// RetryConfig holds retry configuration for transport failures
type RetryConfig struct {
	Enabled        bool          `yaml:"enabled" json:"enabled"`
	MaxAttempts    int           `yaml:"max_attempts" json:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" json:"max_backoff"`
	Multiplier     float64       `yaml:"multiplier" json:"multiplier"`
}

// DownloadConfig holds fan-out configuration
type DownloadConfig struct {
	// Concurrency caps the number of harvest tasks in flight (0 means unbounded)
	Concurrency int `yaml:"concurrency" json:"concurrency"`
	// ClaimBuffer is the capacity of the reconciliation channel
	ClaimBuffer int `yaml:"claim_buffer" json:"claim_buffer"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   "https://api.cinode.com/v0.1",
			TokenURL:  "https://api.cinode.com/token",
			CompanyID: 31,
			Timeout:   5 * time.Minute,
		},
		Cache: CacheConfig{
			Backend:   "disk",
			Directory: "cache",
			KeyPrefix: "cinode:cache:",
		},
		Output: OutputConfig{
			BaseDirectory:      "One Agency",
			SubContractorsDir:  "_Sub Contractors",
			InHouseProjectsDir: "_In House Projects",
			DefaultExtension:   ".pdf",
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 120,
		},
		Retry: RetryConfig{
			Enabled:        true,
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
			Multiplier:     2.0,
		},
		Download: DownloadConfig{
			Concurrency: 0,
			ClaimBuffer: 100,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// CompanyURL returns the company-scoped API root
func (c *Config) CompanyURL() string {
	return fmt.Sprintf("%s/companies/%d", strings.TrimRight(c.API.BaseURL, "/"), c.API.CompanyID)
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if access := os.Getenv("CINODE_ACCESS"); access != "" {
		c.API.AccessCode = access
	}
	if company := os.Getenv("CINODE_COMPANY_ID"); company != "" {
		val, err := strconv.Atoi(company)
		if err != nil {
			return fmt.Errorf("invalid CINODE_COMPANY_ID %q: %w", company, err)
		}
		c.API.CompanyID = val
	}
	if baseURL := os.Getenv("CINODE_BASE_URL"); baseURL != "" {
		c.API.BaseURL = baseURL
	}

	if outputDir := os.Getenv("CINODE_OUTPUT_DIR"); outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}

	if cacheDir := os.Getenv("CINODE_CACHE_DIR"); cacheDir != "" {
		c.Cache.Directory = cacheDir
	}
	if backend := os.Getenv("CINODE_CACHE_BACKEND"); backend != "" {
		c.Cache.Backend = strings.ToLower(backend)
	}
	if addr := os.Getenv("CINODE_REDIS_ADDR"); addr != "" {
		c.Cache.RedisAddr = addr
	}

	if rpm := os.Getenv("CINODE_REQUESTS_PER_MINUTE"); rpm != "" {
		var val int
		fmt.Sscanf(rpm, "%d", &val)
		if val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}

	if concurrency := os.Getenv("CINODE_CONCURRENCY"); concurrency != "" {
		var val int
		fmt.Sscanf(concurrency, "%d", &val)
		if val >= 0 {
			c.Download.Concurrency = val
		}
	}

	if logLevel := os.Getenv("CINODE_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
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
	home := os.Getenv("HOME")
	locations := []string{
		".cinodeharvest.yaml",
		".cinodeharvest.yml",
		filepath.Join(home, ".config", "cinodeharvest", "config.yaml"),
		filepath.Join(home, ".config", "cinodeharvest", "config.yml"),
		filepath.Join(home, ".cinodeharvest.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid.
// The access code is not checked here because it may come from the credential store.
func (c *Config) Validate() error {
	var errs []error

	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("API base URL is required"))
	}
	if c.API.CompanyID <= 0 {
		errs = append(errs, errors.New("company ID must be positive"))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("API timeout must be positive"))
	}

	switch strings.ToLower(c.Cache.Backend) {
	case "disk":
		if c.Cache.Directory == "" {
			errs = append(errs, errors.New("cache directory is required for the disk backend"))
		}
	case "redis":
		if c.Cache.RedisAddr == "" {
			errs = append(errs, errors.New("redis address is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid cache backend %q", c.Cache.Backend))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Output.SubContractorsDir == "" || c.Output.InHouseProjectsDir == "" {
		errs = append(errs, errors.New("bucket directory names are required"))
	}

	if c.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}
	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, errors.New("max retry attempts cannot be negative"))
	}
	if c.Download.Concurrency < 0 {
		errs = append(errs, errors.New("concurrency cannot be negative"))
	}
	if c.Download.ClaimBuffer <= 0 {
		errs = append(errs, errors.New("claim buffer must be positive"))
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
	if output, ok := flags["output"].(string); ok && output != "" {
		c.Output.BaseDirectory = output
	}
	if cacheDir, ok := flags["cache-dir"].(string); ok && cacheDir != "" {
		c.Cache.Directory = cacheDir
	}
	if backend, ok := flags["cache-backend"].(string); ok && backend != "" {
		c.Cache.Backend = strings.ToLower(backend)
	}
	if company, ok := flags["company"].(int); ok && company > 0 {
		c.API.CompanyID = company
	}
	if concurrency, ok := flags["concurrency"].(int); ok && concurrency >= 0 {
		c.Download.Concurrency = concurrency
	}
	if rpm, ok := flags["requests-per-minute"].(int); ok && rpm > 0 {
		c.RateLimit.RequestsPerMinute = rpm
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Missing .env files are fine
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".cinodeharvest.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
