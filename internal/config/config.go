// Package config loads and validates harvester configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/harvester/internal/crawler"
)

// EnvPrefix namespaces environment overrides, e.g. HARVEST_CRAWLER_MAX_ITEMS.
const EnvPrefix = "HARVEST"

// Storage backends understood by the wiring layer.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendLocal    = "local"
	BackendGCS      = "gcs"
)

// Config captures every knob loaded via Viper.
type Config struct {
	Mode     string         `mapstructure:"mode"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Scroll   ScrollConfig   `mapstructure:"scroll"`
	Source   SourceConfig   `mapstructure:"source"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Storage  StorageConfig  `mapstructure:"storage"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// CrawlerConfig governs the run budget, concurrency and comment fan-out.
type CrawlerConfig struct {
	MaxItems           int           `mapstructure:"max_items"`
	Concurrency        int           `mapstructure:"concurrency"`
	CommentsEnabled    bool          `mapstructure:"comments_enabled"`
	MaxCommentsPerItem int           `mapstructure:"max_comments_per_item"`
	StartPage          int           `mapstructure:"start_page"`
	PageSize           int           `mapstructure:"page_size"`
	Keywords           []string      `mapstructure:"keywords"`
	Targets            []string      `mapstructure:"targets"`
	CommentJitter      time.Duration `mapstructure:"comment_jitter"`
}

// ScrollConfig tunes the adaptive scroll collector.
type ScrollConfig struct {
	MaxEmptyRounds int           `mapstructure:"max_empty_rounds"`
	EscalateAfter  int           `mapstructure:"escalate_after"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	MaxPolls       int           `mapstructure:"max_polls"`
	Settle         time.Duration `mapstructure:"settle"`
	LoadMoreWait   time.Duration `mapstructure:"load_more_wait"`
	InitialWait    time.Duration `mapstructure:"initial_wait"`
	Deadline       time.Duration `mapstructure:"deadline"`
}

// SourceConfig configures the remote source client.
type SourceConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	APIURL          string `mapstructure:"api_url"`
	ColumnURL       string `mapstructure:"column_url"`
	UserAgent       string `mapstructure:"user_agent"`
	Cookies         string `mapstructure:"cookies"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	SearchWarmupURL string `mapstructure:"search_warmup_url"`
}

// HeadlessConfig configures the browser render surface.
type HeadlessConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Headless      bool   `mapstructure:"headless"`
	ExecPath      string `mapstructure:"exec_path"`
	NavTimeoutSec int    `mapstructure:"nav_timeout_seconds"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Backend  string         `mapstructure:"backend"`
	Prefix   string         `mapstructure:"prefix"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Local    LocalConfig    `mapstructure:"local"`
	GCS      GCSConfig      `mapstructure:"gcs"`
}

// PostgresConfig holds the pgx pool settings.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// SQLiteConfig holds the database file path.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// LocalConfig holds the document directory.
type LocalConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// GCSConfig names the document bucket.
type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
}

// PubSubConfig enables content notices when TopicName is set.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ServerConfig controls the ops HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from defaults, the optional file at path, the
// environment and whatever flags the caller already bound into v.
// A nil v gets a fresh instance.
func Load(path string, v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.New()
	}
	v.SetEnvPrefix(EnvPrefix)
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
	v.SetDefault("mode", string(crawler.ModeSearch))

	v.SetDefault("crawler.max_items", 200)
	v.SetDefault("crawler.concurrency", 4)
	v.SetDefault("crawler.comments_enabled", true)
	v.SetDefault("crawler.max_comments_per_item", 0)
	v.SetDefault("crawler.start_page", 1)
	v.SetDefault("crawler.page_size", 20)
	v.SetDefault("crawler.keywords", []string{})
	v.SetDefault("crawler.targets", []string{})
	v.SetDefault("crawler.comment_jitter", "1s")

	v.SetDefault("scroll.max_empty_rounds", 10)
	v.SetDefault("scroll.escalate_after", 3)
	v.SetDefault("scroll.poll_interval", "800ms")
	v.SetDefault("scroll.max_polls", 5)
	v.SetDefault("scroll.settle", "1500ms")
	v.SetDefault("scroll.load_more_wait", "3s")
	v.SetDefault("scroll.initial_wait", "3s")
	v.SetDefault("scroll.deadline", "10m")

	v.SetDefault("source.base_url", crawler.SiteURL)
	v.SetDefault("source.api_url", crawler.SiteURL)
	v.SetDefault("source.column_url", crawler.ColumnURL)
	v.SetDefault("source.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	v.SetDefault("source.cookies", "")
	v.SetDefault("source.timeout_seconds", 15)
	v.SetDefault("source.search_warmup_url", crawler.SiteURL+"/search?type=content&q=python")

	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.headless", true)
	v.SetDefault("headless.exec_path", "")
	v.SetDefault("headless.nav_timeout_seconds", 45)

	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("storage.prefix", "harvest")
	v.SetDefault("storage.postgres.dsn", "")
	v.SetDefault("storage.postgres.max_conns", 4)
	v.SetDefault("storage.sqlite.path", "data/harvest.db")
	v.SetDefault("storage.local.base_dir", "data/documents")
	v.SetDefault("storage.gcs.bucket", "")

	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")

	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)

	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits. Every failure is a
// *crawler.ConfigError; all of them are joined.
func (c Config) Validate() error {
	var errs []error
	fail := func(field, reason string) {
		errs = append(errs, &crawler.ConfigError{Field: field, Reason: reason})
	}

	mode, err := crawler.ParseMode(c.Mode)
	if err != nil {
		errs = append(errs, err)
	}
	if c.Crawler.MaxItems <= 0 {
		fail("crawler.max_items", "must be > 0")
	}
	if c.Crawler.Concurrency <= 0 {
		fail("crawler.concurrency", "must be > 0")
	}
	if c.Crawler.MaxCommentsPerItem < 0 {
		fail("crawler.max_comments_per_item", "must be >= 0")
	}
	if c.Crawler.StartPage < 1 {
		fail("crawler.start_page", "must be >= 1")
	}
	if c.Crawler.PageSize <= 0 {
		fail("crawler.page_size", "must be > 0")
	}
	if c.Crawler.CommentJitter < 0 {
		fail("crawler.comment_jitter", "must be >= 0")
	}
	if c.Scroll.MaxEmptyRounds <= 0 {
		fail("scroll.max_empty_rounds", "must be > 0")
	}
	if c.Scroll.EscalateAfter <= 0 || c.Scroll.EscalateAfter > c.Scroll.MaxEmptyRounds {
		fail("scroll.escalate_after", "must be between 1 and scroll.max_empty_rounds")
	}
	if c.Scroll.Deadline <= 0 {
		fail("scroll.deadline", "must be > 0")
	}
	if c.Source.TimeoutSeconds <= 0 {
		fail("source.timeout_seconds", "must be > 0")
	}
	if mode == crawler.ModeQuestion && !c.Headless.Enabled {
		fail("headless.enabled", "question mode needs the render surface")
	}
	if c.Headless.Enabled && c.Headless.NavTimeoutSec <= 0 {
		fail("headless.nav_timeout_seconds", "must be > 0 when headless is enabled")
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.Postgres.DSN == "" {
			fail("storage.postgres.dsn", "required for the postgres backend")
		}
	case BackendSQLite:
		if c.Storage.SQLite.Path == "" {
			fail("storage.sqlite.path", "required for the sqlite backend")
		}
	case BackendLocal:
		if c.Storage.Local.BaseDir == "" {
			fail("storage.local.base_dir", "required for the local backend")
		}
	case BackendGCS:
		if c.Storage.GCS.Bucket == "" {
			fail("storage.gcs.bucket", "required for the gcs backend")
		}
	default:
		fail("storage.backend", fmt.Sprintf("unknown backend %q", c.Storage.Backend))
	}

	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		fail("pubsub.project_id", "required when pubsub.topic_name is set")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		fail("server.port", "must be > 0 when the server is enabled")
	}

	return errors.Join(errs...)
}

// SourceTimeout converts source.timeout_seconds to a duration.
func (c Config) SourceTimeout() time.Duration {
	return time.Duration(c.Source.TimeoutSeconds) * time.Second
}

// NavigationTimeout converts headless.nav_timeout_seconds to a duration.
func (c Config) NavigationTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}
