// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/chapter-crawler/internal/crawler"
	"github.com/JakeFAU/chapter-crawler/internal/extract"
)

// EnvPrefix is prepended to every environment override, e.g.
// CHAPTERS_CRAWLER_FAILURE_POLICY=skip.
const EnvPrefix = "CHAPTERS"

// Fetch backends.
const (
	BackendColly    = "colly"
	BackendHeadless = "headless"
	BackendAuto     = "auto"
)

// Output providers.
const (
	ProviderLocal  = "local"
	ProviderGCS    = "gcs"
	ProviderMemory = "memory"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Site     SiteConfig     `mapstructure:"site"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Listing  ListingConfig  `mapstructure:"listing"`
	Extract  ExtractConfig  `mapstructure:"extract"`
	Output   OutputConfig   `mapstructure:"output"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Video    VideoConfig    `mapstructure:"video"`
	Server   ServerConfig   `mapstructure:"server"`
	Progress ProgressConfig `mapstructure:"progress"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SiteConfig describes the target host and the identity presented to it.
// Cookies are "name=value" pairs; a list keeps the names' case intact.
type SiteConfig struct {
	BaseURL   string            `mapstructure:"base_url"`
	UserAgent string            `mapstructure:"user_agent"`
	Cookies   []string          `mapstructure:"cookies"`
	Headers   map[string]string `mapstructure:"headers"`
}

// HTTPConfig selects the fetch backend and its transport limits.
type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	Backend string        `mapstructure:"backend"`
	// RPS caps requests per host on top of the fixed pacing. 0 disables it.
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// HeadlessConfig configures the browser backend.
type HeadlessConfig struct {
	NavTimeout time.Duration `mapstructure:"nav_timeout"`
	Origin     string        `mapstructure:"origin"`
	ExecPath   string        `mapstructure:"exec_path"`
	// PromoteThreshold is the body size under which a script-heavy page
	// makes the auto backend switch to the browser.
	PromoteThreshold int `mapstructure:"promote_threshold"`
}

// CrawlerConfig governs retry, pacing and failure handling.
type CrawlerConfig struct {
	MaxAttempts   int           `mapstructure:"max_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	BatchSize     int           `mapstructure:"batch_size"`
	BatchCooldown time.Duration `mapstructure:"batch_cooldown"`
	FailurePolicy string        `mapstructure:"failure_policy"`
}

// ListingConfig drives book ID discovery over listing pages.
type ListingConfig struct {
	Kind      string        `mapstructure:"kind"`
	Class     int           `mapstructure:"class"`
	StartPage int           `mapstructure:"start_page"`
	EndPage   int           `mapstructure:"end_page"`
	PageDelay time.Duration `mapstructure:"page_delay"`
}

// ExtractConfig holds the content selectors.
type ExtractConfig struct {
	ContentPath   string   `mapstructure:"content_path"`
	NoisePaths    []string `mapstructure:"noise_paths"`
	StripLiterals []string `mapstructure:"strip_literals"`
	StripIndent   bool     `mapstructure:"strip_indent"`
}

// OutputConfig selects where book files and list_id.json go.
type OutputConfig struct {
	Provider  string `mapstructure:"provider"`
	Dir       string `mapstructure:"dir"`
	Prefix    string `mapstructure:"prefix"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// DBConfig controls the optional Postgres run store.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// PubSubConfig holds the run notification topic.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// VideoConfig configures the download-info client.
type VideoConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Host     string        `mapstructure:"host"`
	Quality  string        `mapstructure:"quality"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ServerConfig controls the ops HTTP server. An empty address disables it.
type ServerConfig struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// ProgressConfig tunes the progress hub.
type ProgressConfig struct {
	BufferSize   int           `mapstructure:"buffer_size"`
	MaxBatch     int           `mapstructure:"max_batch"`
	MaxBatchWait time.Duration `mapstructure:"max_batch_wait"`
	LogEvents    bool          `mapstructure:"log_events"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from defaults, a config file and the environment. With
// an empty path it looks for chapters.yaml (or .json/.toml) in the working
// directory, $HOME/.chapters and /etc/chapters, and a missing file is not an
// error.
func Load(path string) (Config, error) {
	return LoadWith(viper.New(), path)
}

// LoadWith is Load on a caller-owned Viper instance, so CLI flags bound to it
// take precedence.
func LoadWith(v *viper.Viper, path string) (Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("chapters")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.chapters")
		v.AddConfigPath("/etc/chapters/")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.base_url", "https://www.69shuba.com")
	v.SetDefault("site.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.backend", BackendColly)
	v.SetDefault("http.rps", 0)
	v.SetDefault("http.burst", 1)
	v.SetDefault("headless.nav_timeout", 45*time.Second)
	v.SetDefault("headless.promote_threshold", 2048)
	v.SetDefault("crawler.max_attempts", crawler.DefaultMaxAttempts)
	v.SetDefault("crawler.retry_delay", crawler.DefaultRetryDelay)
	v.SetDefault("crawler.batch_size", crawler.DefaultBatchSize)
	v.SetDefault("crawler.batch_cooldown", crawler.DefaultBatchCooldown)
	v.SetDefault("crawler.failure_policy", string(crawler.FailFast))
	v.SetDefault("listing.kind", "class")
	v.SetDefault("listing.class", 4)
	v.SetDefault("listing.start_page", 2)
	v.SetDefault("listing.end_page", 12)
	v.SetDefault("listing.page_delay", 3*time.Second)
	v.SetDefault("extract.content_path", extract.DefaultContentPath)
	v.SetDefault("extract.noise_paths", append([]string(nil), extract.DefaultNoisePaths...))
	v.SetDefault("extract.strip_literals", append([]string(nil), extract.DefaultStripLiterals...))
	v.SetDefault("extract.strip_indent", false)
	v.SetDefault("output.provider", ProviderLocal)
	v.SetDefault("output.dir", "out")
	v.SetDefault("db.table", "book_runs")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("video.timeout", 30*time.Second)
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.max_batch", 64)
	v.SetDefault("progress.max_batch_wait", 250*time.Millisecond)
	v.SetDefault("progress.log_events", false)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if _, err := crawler.NewSite(c.Site.BaseURL); err != nil {
		return fmt.Errorf("site.base_url: %w", err)
	}
	if _, err := c.CookieMap(); err != nil {
		return err
	}
	switch c.HTTP.Backend {
	case BackendColly, BackendHeadless, BackendAuto:
	default:
		return fmt.Errorf("http.backend must be one of %s, %s, %s; got %q",
			BackendColly, BackendHeadless, BackendAuto, c.HTTP.Backend)
	}
	if c.HTTP.Timeout < 0 {
		return fmt.Errorf("http.timeout must be >= 0")
	}
	if c.HTTP.RPS < 0 {
		return fmt.Errorf("http.rps must be >= 0")
	}
	if c.Headless.Origin != "" {
		if u, err := url.Parse(c.Headless.Origin); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("headless.origin must be an absolute URL")
		}
	}
	if c.Crawler.MaxAttempts <= 0 {
		return fmt.Errorf("crawler.max_attempts must be > 0")
	}
	if c.Crawler.RetryDelay < 0 || c.Crawler.BatchCooldown < 0 {
		return fmt.Errorf("crawler delays must be >= 0")
	}
	if c.Crawler.BatchSize < 0 {
		return fmt.Errorf("crawler.batch_size must be >= 0")
	}
	switch crawler.FailurePolicy(c.Crawler.FailurePolicy) {
	case crawler.FailFast, crawler.SkipFailed:
	default:
		return fmt.Errorf("crawler.failure_policy must be %q or %q, got %q",
			crawler.FailFast, crawler.SkipFailed, c.Crawler.FailurePolicy)
	}
	if strings.TrimSpace(c.Extract.ContentPath) == "" {
		return fmt.Errorf("extract.content_path is required")
	}
	switch c.Output.Provider {
	case ProviderLocal:
		if strings.TrimSpace(c.Output.Dir) == "" {
			return fmt.Errorf("output.dir is required for the local provider")
		}
	case ProviderGCS:
		if c.Output.GCSBucket == "" {
			return fmt.Errorf("output.gcs_bucket is required for the gcs provider")
		}
	case ProviderMemory:
	default:
		return fmt.Errorf("output.provider must be one of local, gcs, memory; got %q", c.Output.Provider)
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	return nil
}

// CookieMap parses Site.Cookies into name/value pairs.
func (c Config) CookieMap() (map[string]string, error) {
	if len(c.Site.Cookies) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(c.Site.Cookies))
	for _, raw := range c.Site.Cookies {
		name, value, ok := strings.Cut(raw, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("site.cookies: %q is not name=value", raw)
		}
		out[name] = strings.TrimSpace(value)
	}
	return out, nil
}

// HeaderMap returns Site.Headers in canonical form.
func (c Config) HeaderMap() http.Header {
	if len(c.Site.Headers) == 0 {
		return nil
	}
	h := make(http.Header, len(c.Site.Headers))
	for k, v := range c.Site.Headers {
		h.Set(k, v)
	}
	return h
}

// Policy returns the configured failure policy.
func (c Config) Policy() crawler.FailurePolicy {
	return crawler.FailurePolicy(c.Crawler.FailurePolicy)
}

// Extraction converts ExtractConfig into extractor options.
func (c Config) Extraction() extract.Options {
	return extract.Options{
		ContentPath:   c.Extract.ContentPath,
		NoisePaths:    c.Extract.NoisePaths,
		StripLiterals: c.Extract.StripLiterals,
		StripIndent:   c.Extract.StripIndent,
	}
}
