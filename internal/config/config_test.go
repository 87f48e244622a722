package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/chapter-crawler/internal/crawler"
	"github.com/JakeFAU/chapter-crawler/internal/extract"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://www.69shuba.com", cfg.Site.BaseURL)
	assert.Equal(t, BackendColly, cfg.HTTP.Backend)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 5, cfg.Crawler.MaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.Crawler.RetryDelay)
	assert.Equal(t, 10, cfg.Crawler.BatchSize)
	assert.Equal(t, 20*time.Second, cfg.Crawler.BatchCooldown)
	assert.Equal(t, crawler.FailFast, cfg.Policy())
	assert.Equal(t, "class", cfg.Listing.Kind)
	assert.Equal(t, 4, cfg.Listing.Class)
	assert.Equal(t, 2, cfg.Listing.StartPage)
	assert.Equal(t, 12, cfg.Listing.EndPage)
	assert.Equal(t, 3*time.Second, cfg.Listing.PageDelay)
	assert.Equal(t, extract.DefaultContentPath, cfg.Extract.ContentPath)
	assert.Equal(t, extract.DefaultNoisePaths, cfg.Extract.NoisePaths)
	assert.Equal(t, extract.DefaultStripLiterals, cfg.Extract.StripLiterals)
	assert.Equal(t, ProviderLocal, cfg.Output.Provider)
	assert.Equal(t, "book_runs", cfg.DB.Table)
	assert.Empty(t, cfg.Server.MetricsAddr)
	assert.True(t, cfg.Logging.Development)
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
site:
  base_url: https://mirror.example.com/
  user_agent: test-agent
  cookies:
    - cf_clearance=abc
    - PHPSESSID = xyz
  headers:
    referer: https://mirror.example.com/
http:
  backend: headless
  timeout: 12s
  rps: 0.5
headless:
  nav_timeout: 1m
  origin: https://mirror.example.com
crawler:
  max_attempts: 3
  retry_delay: 2s
  batch_size: 5
  batch_cooldown: 1m
  failure_policy: skip
listing:
  kind: full
  class: 7
  start_page: 1
  end_page: 3
extract:
  strip_indent: true
output:
  provider: gcs
  gcs_bucket: books
  prefix: novels
pubsub:
  project_id: proj
  topic_name: runs
server:
  metrics_addr: ":9100"
logging:
  development: false
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test-agent", cfg.Site.UserAgent)
	assert.Equal(t, BackendHeadless, cfg.HTTP.Backend)
	assert.Equal(t, 12*time.Second, cfg.HTTP.Timeout)
	assert.InDelta(t, 0.5, cfg.HTTP.RPS, 1e-9)
	assert.Equal(t, time.Minute, cfg.Headless.NavTimeout)
	assert.Equal(t, 3, cfg.Crawler.MaxAttempts)
	assert.Equal(t, crawler.SkipFailed, cfg.Policy())
	assert.Equal(t, "full", cfg.Listing.Kind)
	assert.Equal(t, 7, cfg.Listing.Class)
	assert.True(t, cfg.Extraction().StripIndent)
	assert.Equal(t, "novels", cfg.Output.Prefix)
	assert.Equal(t, ":9100", cfg.Server.MetricsAddr)
	assert.Equal(t, "debug", cfg.Logging.Level)

	cookies, err := cfg.CookieMap()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"cf_clearance": "abc", "PHPSESSID": "xyz"}, cookies)
	assert.Equal(t, "https://mirror.example.com/", cfg.HeaderMap().Get("Referer"))
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CHAPTERS_CRAWLER_FAILURE_POLICY", "skip")
	t.Setenv("CHAPTERS_CRAWLER_RETRY_DELAY", "250ms")
	t.Setenv("CHAPTERS_OUTPUT_PROVIDER", "memory")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, crawler.SkipFailed, cfg.Policy())
	assert.Equal(t, 250*time.Millisecond, cfg.Crawler.RetryDelay)
	assert.Equal(t, ProviderMemory, cfg.Output.Provider)
}

func TestLoadWithBoundValues(t *testing.T) {
	t.Parallel()

	v := viper.New()
	v.Set("crawler.max_attempts", 2)
	cfg, err := LoadWith(v, "")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Crawler.MaxAttempts)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"relative base url", func(c *Config) { c.Site.BaseURL = "/txt" }, "site.base_url"},
		{"bad cookie", func(c *Config) { c.Site.Cookies = []string{"novalue"} }, "site.cookies"},
		{"unknown backend", func(c *Config) { c.HTTP.Backend = "curl" }, "http.backend"},
		{"negative rps", func(c *Config) { c.HTTP.RPS = -1 }, "http.rps"},
		{"relative origin", func(c *Config) { c.Headless.Origin = "www.69shuba.com" }, "headless.origin"},
		{"zero attempts", func(c *Config) { c.Crawler.MaxAttempts = 0 }, "crawler.max_attempts"},
		{"negative delay", func(c *Config) { c.Crawler.RetryDelay = -time.Second }, "crawler delays"},
		{"negative batch", func(c *Config) { c.Crawler.BatchSize = -1 }, "crawler.batch_size"},
		{"unknown policy", func(c *Config) { c.Crawler.FailurePolicy = "retry_forever" }, "crawler.failure_policy"},
		{"empty content path", func(c *Config) { c.Extract.ContentPath = " " }, "extract.content_path"},
		{"local without dir", func(c *Config) { c.Output.Dir = "" }, "output.dir"},
		{"gcs without bucket", func(c *Config) { c.Output.Provider = ProviderGCS }, "output.gcs_bucket"},
		{"unknown provider", func(c *Config) { c.Output.Provider = "s3" }, "output.provider"},
		{"half pubsub", func(c *Config) { c.PubSub.ProjectID = "p" }, "pubsub.project_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			require.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestAutoBackendValidates(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2048, cfg.Headless.PromoteThreshold)

	cfg.HTTP.Backend = BackendAuto
	require.NoError(t, cfg.Validate())
}
