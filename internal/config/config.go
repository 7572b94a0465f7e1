// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lmcheong/eventtide/internal/pipeline"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig            `mapstructure:"server"`
	Auth     AuthConfig              `mapstructure:"auth"`
	Scraper  ScraperConfig           `mapstructure:"scraper"`
	HTTP     HTTPConfig              `mapstructure:"http"`
	Headless HeadlessConfig          `mapstructure:"headless"`
	AI       AIConfig                `mapstructure:"ai"`
	DB       DBConfig                `mapstructure:"db"`
	Archive  ArchiveConfig           `mapstructure:"archive"`
	PubSub   PubSubConfig            `mapstructure:"pubsub"`
	Logging  LoggingConfig           `mapstructure:"logging"`
	Sources  []pipeline.SourceConfig `mapstructure:"sources"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines trigger-endpoint authentication.
type AuthConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	BearerToken string `mapstructure:"bearer_token"`
}

// ScraperConfig governs coordinator and ingestion behavior.
type ScraperConfig struct {
	RunDeadlineSeconds int    `mapstructure:"run_deadline_seconds"`
	BatchSize          int    `mapstructure:"batch_size"`
	RetentionDays      int    `mapstructure:"retention_days"`
	UserAgent          string `mapstructure:"user_agent"`
}

// HTTPConfig configures HTTP client retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxParallel   int  `mapstructure:"max_parallel"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
	MinHTMLBytes  int  `mapstructure:"min_html_bytes"`
	MinElements   int  `mapstructure:"min_elements"`
}

// AIConfig holds credentials for the optional structured-extraction service.
type AIConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// DBConfig controls access to the event store.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// ArchiveConfig sets where raw-HTML snapshots are written.
type ArchiveConfig struct {
	Provider  string `mapstructure:"provider"` // "none", "local", "gcs"
	Dir       string `mapstructure:"dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for run-completion notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("EVENTTIDE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("scraper.run_deadline_seconds", 300)
	v.SetDefault("scraper.batch_size", 10)
	v.SetDefault("scraper.retention_days", 30)
	v.SetDefault("scraper.user_agent", "eventtide-bot/1.0 (+https://github.com/lmcheong/eventtide)")
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 5000)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.min_html_bytes", 2048)
	v.SetDefault("headless.min_elements", 3)
	v.SetDefault("ai.timeout_seconds", 30)
	v.SetDefault("db.table", "events")
	v.SetDefault("archive.provider", "none")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Scraper.BatchSize <= 0 {
		return fmt.Errorf("scraper.batch_size must be > 0")
	}
	if c.Scraper.RetentionDays <= 0 {
		return fmt.Errorf("scraper.retention_days must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Auth.Enabled && c.Auth.BearerToken == "" {
		return fmt.Errorf("auth.bearer_token must be set when auth is enabled")
	}
	seen := make(map[string]struct{}, len(c.Sources))
	for _, src := range c.Sources {
		if src.ID == "" {
			return fmt.Errorf("source id must not be empty")
		}
		if _, dup := seen[src.ID]; dup {
			return fmt.Errorf("duplicate source id %q", src.ID)
		}
		seen[src.ID] = struct{}{}
		if src.URL == "" {
			return fmt.Errorf("source %s: url must not be empty", src.ID)
		}
	}
	return nil
}

// RunDeadline converts the configured coordinator deadline into a duration.
// Zero means no deadline.
func (c Config) RunDeadline() time.Duration {
	return time.Duration(c.Scraper.RunDeadlineSeconds) * time.Second
}

// ActiveSources returns the subset of configured sources flagged active,
// optionally filtered to the given IDs.
func (c Config) ActiveSources(ids []string) []pipeline.SourceConfig {
	var filter map[string]struct{}
	if len(ids) > 0 {
		filter = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			filter[id] = struct{}{}
		}
	}
	var out []pipeline.SourceConfig
	for _, src := range c.Sources {
		if !src.Active {
			continue
		}
		if filter != nil {
			if _, ok := filter[src.ID]; !ok {
				continue
			}
		}
		out = append(out, src)
	}
	return out
}
