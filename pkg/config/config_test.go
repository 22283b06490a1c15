package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://api.cinode.com/v0.1", cfg.API.BaseURL)
	assert.Equal(t, 31, cfg.API.CompanyID)
	assert.Equal(t, 5*time.Minute, cfg.API.Timeout)

	assert.Equal(t, "disk", cfg.Cache.Backend)
	assert.Equal(t, "cache", cfg.Cache.Directory)

	assert.Equal(t, "One Agency", cfg.Output.BaseDirectory)
	assert.Equal(t, "_Sub Contractors", cfg.Output.SubContractorsDir)
	assert.Equal(t, "_In House Projects", cfg.Output.InHouseProjectsDir)
	assert.Equal(t, ".pdf", cfg.Output.DefaultExtension)

	assert.Equal(t, 100, cfg.Download.ClaimBuffer)
	assert.Equal(t, 0, cfg.Download.Concurrency)
	assert.True(t, cfg.Retry.Enabled)

	require.NoError(t, cfg.Validate())
}

func TestCompanyURL(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "https://api.cinode.com/v0.1/companies/31", cfg.CompanyURL())

	cfg.API.BaseURL = "http://127.0.0.1:8080/"
	cfg.API.CompanyID = 7
	assert.Equal(t, "http://127.0.0.1:8080/companies/7", cfg.CompanyURL())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CINODE_ACCESS", "secret-access")
	t.Setenv("CINODE_COMPANY_ID", "42")
	t.Setenv("CINODE_OUTPUT_DIR", "/tmp/harvest")
	t.Setenv("CINODE_CACHE_DIR", "/tmp/harvest-cache")
	t.Setenv("CINODE_CACHE_BACKEND", "REDIS")
	t.Setenv("CINODE_REDIS_ADDR", "localhost:6379")
	t.Setenv("CINODE_REQUESTS_PER_MINUTE", "30")
	t.Setenv("CINODE_CONCURRENCY", "8")
	t.Setenv("CINODE_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "secret-access", cfg.API.AccessCode)
	assert.Equal(t, 42, cfg.API.CompanyID)
	assert.Equal(t, "/tmp/harvest", cfg.Output.BaseDirectory)
	assert.Equal(t, "/tmp/harvest-cache", cfg.Cache.Directory)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "localhost:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, 30, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 8, cfg.Download.Concurrency)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvInvalidCompany(t *testing.T) {
	t.Setenv("CINODE_COMPANY_ID", "acme")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CINODE_COMPANY_ID")
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
api:
  company_id: 12
  timeout: 90s
cache:
  backend: redis
  redis_addr: cache.internal:6379
  ttl: 24h
output:
  base_directory: /data/agency
download:
  concurrency: 4
logging:
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, 12, cfg.API.CompanyID)
	assert.Equal(t, 90*time.Second, cfg.API.Timeout)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "cache.internal:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "/data/agency", cfg.Output.BaseDirectory)
	assert.Equal(t, 4, cfg.Download.Concurrency)
	assert.Equal(t, "warn", cfg.Logging.Level)

	// untouched sections keep their defaults
	assert.Equal(t, "_Sub Contractors", cfg.Output.SubContractorsDir)
	assert.Equal(t, 100, cfg.Download.ClaimBuffer)
}

func TestLoadFromFileErrors(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")))

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: [unterminated"), 0644))
	assert.Error(t, cfg.LoadFromFile(path))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{
			name:    "non-positive company",
			mutate:  func(c *Config) { c.API.CompanyID = 0 },
			wantErr: "company ID",
		},
		{
			name:    "redis without address",
			mutate:  func(c *Config) { c.Cache.Backend = "redis" },
			wantErr: "redis address",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Cache.Backend = "memcached" },
			wantErr: "invalid cache backend",
		},
		{
			name:    "negative concurrency",
			mutate:  func(c *Config) { c.Download.Concurrency = -1 },
			wantErr: "concurrency",
		},
		{
			name:    "zero claim buffer",
			mutate:  func(c *Config) { c.Download.ClaimBuffer = 0 },
			wantErr: "claim buffer",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.CompanyID = -1
	cfg.Output.BaseDirectory = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "company ID")
	assert.Contains(t, err.Error(), "output directory")
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"output":              "/srv/out",
		"cache-dir":           "/srv/cache",
		"company":             9,
		"concurrency":         2,
		"requests-per-minute": 15,
		"log-level":           "error",
	})

	assert.Equal(t, "/srv/out", cfg.Output.BaseDirectory)
	assert.Equal(t, "/srv/cache", cfg.Cache.Directory)
	assert.Equal(t, 9, cfg.API.CompanyID)
	assert.Equal(t, 2, cfg.Download.Concurrency)
	assert.Equal(t, 15, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, "error", cfg.Logging.Level)

	// empty values leave the config untouched
	cfg.MergeCommandLineFlags(map[string]interface{}{"output": "", "company": 0})
	assert.Equal(t, "/srv/out", cfg.Output.BaseDirectory)
	assert.Equal(t, 9, cfg.API.CompanyID)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.API.CompanyID = 77
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var loaded Config
	require.NoError(t, yaml.Unmarshal(data, &loaded))
	assert.Equal(t, 77, loaded.API.CompanyID)
	assert.Equal(t, cfg.Output, loaded.Output)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  company_id: 5\ndownload:\n  concurrency: 3\n"), 0644))

	t.Setenv("HOME", dir)
	t.Setenv("CINODE_COMPANY_ID", "6")

	cfg, err := Load(path, map[string]interface{}{"concurrency": 1})
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.API.CompanyID)
	assert.Equal(t, 1, cfg.Download.Concurrency)
}
