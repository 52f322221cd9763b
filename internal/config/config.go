package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Source     SourceConfig     `yaml:"source" mapstructure:"source"`
	Browser    BrowserConfig    `yaml:"browser" mapstructure:"browser"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Input      InputConfig      `yaml:"input" mapstructure:"input"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// SourceConfig configures the fast search tier.
type SourceConfig struct {
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
	HTTPTimeoutSecs   int     `yaml:"http_timeout_secs" mapstructure:"http_timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	MaxAttempts       int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	BreakerThreshold  int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs  int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// HTTPTimeout returns the per-request timeout.
func (s SourceConfig) HTTPTimeout() time.Duration {
	return time.Duration(s.HTTPTimeoutSecs) * time.Second
}

// BreakerReset returns how long the breaker stays open.
func (s SourceConfig) BreakerReset() time.Duration {
	return time.Duration(s.BreakerResetSecs) * time.Second
}

// BrowserConfig configures the headless browser fallback tier.
type BrowserConfig struct {
	Enabled            bool   `yaml:"enabled" mapstructure:"enabled"`
	Headless           bool   `yaml:"headless" mapstructure:"headless"`
	PageLoadTimeoutSec int    `yaml:"page_load_timeout_secs" mapstructure:"page_load_timeout_secs"`
	ResultsTimeoutSecs int    `yaml:"results_timeout_secs" mapstructure:"results_timeout_secs"`
	ConsentWaitMs      int    `yaml:"consent_wait_ms" mapstructure:"consent_wait_ms"`
	ExecPath           string `yaml:"exec_path" mapstructure:"exec_path"`
}

func (b BrowserConfig) PageLoadTimeout() time.Duration {
	return time.Duration(b.PageLoadTimeoutSec) * time.Second
}

func (b BrowserConfig) ResultsTimeout() time.Duration {
	return time.Duration(b.ResultsTimeoutSecs) * time.Second
}

func (b BrowserConfig) ConsentWait() time.Duration {
	return time.Duration(b.ConsentWaitMs) * time.Millisecond
}

// PipelineConfig configures the worker pool and the follow-up passes.
type PipelineConfig struct {
	MaxWorkers         int  `yaml:"max_workers" mapstructure:"max_workers"`
	CheckpointEvery    int  `yaml:"checkpoint_every" mapstructure:"checkpoint_every"`
	WriteEveryRow      bool `yaml:"write_every_row" mapstructure:"write_every_row"`
	ProgressLogEvery   int  `yaml:"progress_log_every" mapstructure:"progress_log_every"`
	PollIntervalMs     int  `yaml:"poll_interval_ms" mapstructure:"poll_interval_ms"`
	BackfillBehindRows int  `yaml:"backfill_behind_rows" mapstructure:"backfill_behind_rows"`
	BackfillDelayMs    int  `yaml:"backfill_delay_ms" mapstructure:"backfill_delay_ms"`
}

func (p PipelineConfig) PollInterval() time.Duration {
	return time.Duration(p.PollIntervalMs) * time.Millisecond
}

func (p PipelineConfig) BackfillDelay() time.Duration {
	return time.Duration(p.BackfillDelayMs) * time.Millisecond
}

// InputConfig locates the input table when no path is given.
type InputConfig struct {
	Stem string `yaml:"stem" mapstructure:"stem"`
}

// OutputConfig locates the persisted market values table.
type OutputConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// StoreConfig configures the run history database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// MonitoringConfig configures run health alerts. Alerts are only delivered
// when WebhookURL is set.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	ErrorRateThreshold   float64 `yaml:"error_rate_threshold" mapstructure:"error_rate_threshold"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config.yaml and SCOUT_* environment
// variables, in increasing order of precedence.
func Load() (*Config, error) {
	// .env is optional; variables may come from the shell.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("source.base_url", "https://www.transfermarkt.com")
	v.SetDefault("source.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")
	v.SetDefault("source.http_timeout_secs", 6)
	v.SetDefault("source.requests_per_second", 2.0)
	v.SetDefault("source.max_attempts", 1)
	v.SetDefault("source.breaker_threshold", 5)
	v.SetDefault("source.breaker_reset_secs", 60)
	v.SetDefault("browser.enabled", true)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.page_load_timeout_secs", 12)
	v.SetDefault("browser.results_timeout_secs", 2)
	v.SetDefault("browser.consent_wait_ms", 1000)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("pipeline.max_workers", 6)
	v.SetDefault("pipeline.checkpoint_every", 20)
	v.SetDefault("pipeline.write_every_row", false)
	v.SetDefault("pipeline.progress_log_every", 25)
	v.SetDefault("pipeline.poll_interval_ms", 300)
	v.SetDefault("pipeline.backfill_behind_rows", 5)
	v.SetDefault("pipeline.backfill_delay_ms", 800)
	v.SetDefault("input.stem", "players_data_light-2024_2025")
	v.SetDefault("output.path", "market_values.csv")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "scout.db")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)
	v.SetDefault("monitoring.error_rate_threshold", 0.25)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

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

// Validate checks the settings a command mode depends on. Every problem is
// reported, not just the first.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "run", "lookup":
		if c.Source.BaseURL == "" {
			errs = append(errs, "source.base_url is required")
		}
		if c.Source.HTTPTimeoutSecs <= 0 {
			errs = append(errs, "source.http_timeout_secs must be > 0")
		}
		if c.Source.RequestsPerSecond <= 0 {
			errs = append(errs, "source.requests_per_second must be > 0")
		}
		if c.Pipeline.MaxWorkers < 1 || c.Pipeline.MaxWorkers > 64 {
			errs = append(errs, "pipeline.max_workers must be between 1 and 64")
		}
		if c.Pipeline.CheckpointEvery < 0 {
			errs = append(errs, "pipeline.checkpoint_every must be >= 0")
		}
		if c.Pipeline.BackfillBehindRows < 0 {
			errs = append(errs, "pipeline.backfill_behind_rows must be >= 0")
		}
	case "history":
		if c.Monitoring.FailureRateThreshold < 0 || c.Monitoring.FailureRateThreshold > 1 {
			errs = append(errs, "monitoring.failure_rate_threshold must be between 0 and 1")
		}
		if c.Monitoring.ErrorRateThreshold < 0 || c.Monitoring.ErrorRateThreshold > 1 {
			errs = append(errs, "monitoring.error_rate_threshold must be between 0 and 1")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "none":
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	default:
		errs = append(errs, "store.driver must be one of sqlite, postgres, none")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(errs, "; "))
	}
	return nil
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
