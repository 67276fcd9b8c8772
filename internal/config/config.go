package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// MaxArtifactWorkers caps the artifact worker pool regardless of configuration.
const MaxArtifactWorkers = 8

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Source    SourceConfig    `yaml:"source" mapstructure:"source"`
	Crawl     CrawlConfig     `yaml:"crawl" mapstructure:"crawl"`
	Artifacts ArtifactsConfig `yaml:"artifacts" mapstructure:"artifacts"`
	ObjStore  ObjStoreConfig  `yaml:"objstore" mapstructure:"objstore"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the catalog database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SourceConfig configures access to the standards listing and detail pages.
type SourceConfig struct {
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// CrawlConfig configures listing pagination.
type CrawlConfig struct {
	PageSize    int `yaml:"page_size" mapstructure:"page_size"`
	PageDelayMs int `yaml:"page_delay_ms" mapstructure:"page_delay_ms"`
}

// ArtifactsConfig configures the artifact pipeline.
type ArtifactsConfig struct {
	Workers int    `yaml:"workers" mapstructure:"workers"`
	PaceMs  int    `yaml:"pace_ms" mapstructure:"pace_ms"`
	TempDir string `yaml:"temp_dir" mapstructure:"temp_dir"`
	Prefix  string `yaml:"prefix" mapstructure:"prefix"`
}

// ObjStoreConfig configures durable artifact storage.
type ObjStoreConfig struct {
	Driver   string `yaml:"driver" mapstructure:"driver"`
	Bucket   string `yaml:"bucket" mapstructure:"bucket"`
	Region   string `yaml:"region" mapstructure:"region"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	Dir      string `yaml:"dir" mapstructure:"dir"`
}

// PipelineConfig configures the orchestrated run.
type PipelineConfig struct {
	ForceReload bool `yaml:"force_reload" mapstructure:"force_reload"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("STANDARDS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("source.base_url", "https://www.accessdata.fda.gov/scripts/cdrh/cfdocs/cfStandards/search.cfm")
	v.SetDefault("source.user_agent", "standards-cli/1.0")
	v.SetDefault("source.timeout_secs", 30)
	v.SetDefault("source.requests_per_second", 2.0)
	v.SetDefault("crawl.page_size", 500)
	v.SetDefault("crawl.page_delay_ms", 1000)
	v.SetDefault("artifacts.workers", 4)
	v.SetDefault("artifacts.pace_ms", 100)
	v.SetDefault("artifacts.temp_dir", os.TempDir())
	v.SetDefault("artifacts.prefix", "FDA_STANDARDS")
	v.SetDefault("objstore.driver", "s3")
	v.SetDefault("objstore.bucket", "")
	v.SetDefault("objstore.region", "us-east-1")
	v.SetDefault("objstore.endpoint", "")
	v.SetDefault("objstore.dir", "data/artifacts")
	v.SetDefault("pipeline.force_reload", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on and reports every
// problem found. Modes: "crawl", "store", "process", "run", "serve".
func (c *Config) Validate(mode string) error {
	var problems []string

	checkSource := func() {
		if c.Source.BaseURL == "" {
			problems = append(problems, "source.base_url is required")
		}
		if c.Crawl.PageSize < 1 {
			problems = append(problems, "crawl.page_size must be > 0")
		}
	}
	checkStore := func() {
		switch c.Store.Driver {
		case "postgres":
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required for postgres (STANDARDS_STORE_DATABASE_URL)")
			}
		case "sqlite":
		default:
			problems = append(problems, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
		}
	}
	checkArtifacts := func() {
		switch c.ObjStore.Driver {
		case "s3":
			if c.ObjStore.Bucket == "" {
				problems = append(problems, "objstore.bucket is required for s3 (STANDARDS_OBJSTORE_BUCKET)")
			}
		case "fs":
			if c.ObjStore.Dir == "" {
				problems = append(problems, "objstore.dir is required for fs")
			}
		default:
			problems = append(problems, fmt.Sprintf("objstore.driver %q is not supported", c.ObjStore.Driver))
		}
		if c.Artifacts.Prefix == "" {
			problems = append(problems, "artifacts.prefix must not be empty")
		}
	}

	switch mode {
	case "crawl":
		checkSource()
	case "store":
		checkStore()
	case "process":
		checkStore()
		checkArtifacts()
	case "run":
		checkSource()
		checkStore()
		checkArtifacts()
	case "serve":
		checkSource()
		checkStore()
		checkArtifacts()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ArtifactWorkers returns the configured pool size clamped to [1, MaxArtifactWorkers].
func (c ArtifactsConfig) ArtifactWorkers() int {
	switch {
	case c.Workers < 1:
		return 1
	case c.Workers > MaxArtifactWorkers:
		return MaxArtifactWorkers
	default:
		return c.Workers
	}
}

// Pace returns the delay applied after each artifact completion.
func (c ArtifactsConfig) Pace() time.Duration {
	return time.Duration(c.PaceMs) * time.Millisecond
}

// PageDelay returns the delay between listing page fetches.
func (c CrawlConfig) PageDelay() time.Duration {
	return time.Duration(c.PageDelayMs) * time.Millisecond
}

// Timeout returns the per-request HTTP timeout.
func (c SourceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
