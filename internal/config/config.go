package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"earnings-insight/internal/logging"
)

// Event count bounds accepted for an analysis request.
const (
	MinEvents     = 4
	MaxEvents     = 37
	DefaultEvents = 8
)

// Bar sources for the reaction engine.
const (
	PriceSourceYahoo    = "yahoo"
	PriceSourcePostgres = "postgres"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	FMP      FMPConfig      `mapstructure:"fmp"`
	Yahoo    YahooConfig    `mapstructure:"yahoo"`
	Prices   PricesConfig   `mapstructure:"prices"`
	Database DatabaseConfig `mapstructure:"database"`
	Export   ExportConfig   `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment"`
}

// TracingConfig toggles the OpenTelemetry stdout exporter.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio" validate:"gte=0,lte=1"`
	Pretty      bool    `mapstructure:"pretty"`
}

// AnalysisConfig bounds the per-request work.
type AnalysisConfig struct {
	Events     int `mapstructure:"events" validate:"gte=4,lte=37"`
	WindowDays int `mapstructure:"window_days" validate:"gte=2,lte=30"`
	FetchLimit int `mapstructure:"fetch_limit" validate:"gte=4"`
}

// FMPConfig covers the primary earnings calendar.
type FMPConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// YahooConfig covers quotes, bars and the fallback calendar.
type YahooConfig struct {
	BaseURL     string        `mapstructure:"base_url" validate:"required,url"`
	CalendarURL string        `mapstructure:"calendar_url" validate:"required,url"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gt=0"`
	UserAgent   string        `mapstructure:"user_agent"`
	RateLimit   float64       `mapstructure:"rate_limit" validate:"gte=0"`
}

// PricesConfig selects where daily bars are read from.
type PricesConfig struct {
	Source string `mapstructure:"source" validate:"oneof=yahoo postgres"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	CSVPath     string `mapstructure:"csv_path"`
	ChartPath   string `mapstructure:"chart_path"`
	ChartWidth  int    `mapstructure:"chart_width" validate:"gte=200"`
	ChartHeight int    `mapstructure:"chart_height" validate:"gte=150"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("EARNINGS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadDotEnv reads .env from the working directory when present. Variables already
// set in the environment win.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "earningsinsight")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "earningsinsight")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("tracing.pretty", false)

	v.SetDefault("analysis.events", DefaultEvents)
	v.SetDefault("analysis.window_days", 7)
	v.SetDefault("analysis.fetch_limit", 40)

	v.SetDefault("fmp.base_url", "https://financialmodelingprep.com")
	v.SetDefault("fmp.api_key", "")
	v.SetDefault("fmp.timeout", "5s")

	v.SetDefault("yahoo.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("yahoo.calendar_url", "https://finance.yahoo.com")
	v.SetDefault("yahoo.timeout", "10s")
	v.SetDefault("yahoo.user_agent", "")
	v.SetDefault("yahoo.rate_limit", 2.0)

	v.SetDefault("prices.source", PriceSourceYahoo)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("export.csv_path", "")
	v.SetDefault("export.chart_path", "")
	v.SetDefault("export.chart_width", 1024)
	v.SetDefault("export.chart_height", 512)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate performs struct-tag checks plus the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config %s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("validate config: %w", err)
	}
	if c.Prices.Source == PriceSourcePostgres && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required when prices.source is postgres")
	}
	if c.Analysis.FetchLimit < c.Analysis.Events {
		return fmt.Errorf("analysis.fetch_limit must be at least analysis.events")
	}
	return nil
}

// ValidateEvents checks a requested event count against the accepted bounds.
func ValidateEvents(n int) error {
	if n < MinEvents || n > MaxEvents {
		return fmt.Errorf("events must be between %d and %d, got %d", MinEvents, MaxEvents, n)
	}
	return nil
}

// ResolveEvents returns either the CLI override or config default.
func (c *Config) ResolveEvents(override int) int {
	if override > 0 {
		return override
	}
	return c.Analysis.Events
}
