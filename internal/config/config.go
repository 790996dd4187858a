// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
)

type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080" validate:"required,numeric"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

type LogConfig struct {
	Level  string `envconfig:"LEVEL" default:"info" validate:"oneof=trace debug info warn error"`
	Format string `envconfig:"FORMAT" default:"console" validate:"oneof=console json"`
}

type GeminiConfig struct {
	APIKey string `envconfig:"API_KEY"`
	Model  string `envconfig:"MODEL" default:"gemini-2.5-flash"`
}

type MonobankConfig struct {
	BaseURL string        `envconfig:"BASE_URL" default:"https://api.monobank.ua" validate:"url"`
	Timeout time.Duration `envconfig:"TIMEOUT" default:"30s"`
	// FallbackRate converts USD statement lines. It is separate from the
	// user's rate.
	FallbackRate float64 `envconfig:"FALLBACK_RATE" default:"40" validate:"gt=0"`
	Timezone     string  `envconfig:"TIMEZONE" default:"Europe/Kyiv"`
}

type CurrencyConfig struct {
	DefaultUSDRate float64 `envconfig:"DEFAULT_USD_RATE" default:"41.5" validate:"gt=0"`
}

type PostgresConfig struct {
	DSN     string `envconfig:"DSN"`
	Migrate bool   `envconfig:"MIGRATE" default:"true"`
}

type MongoConfig struct {
	URI      string `envconfig:"URI"`
	Database string `envconfig:"DATABASE" default:"smart_finance"`
}

type BigQueryConfig struct {
	ProjectID string `envconfig:"PROJECT_ID"`
	Dataset   string `envconfig:"DATASET" default:"finance"`
}

// StoreConfig selects the remote transaction backend.
type StoreConfig struct {
	Backend  string         `envconfig:"BACKEND" default:"none" validate:"oneof=postgres mongo bigquery none"`
	Postgres PostgresConfig `envconfig:"POSTGRES"`
	Mongo    MongoConfig    `envconfig:"MONGO"`
	BigQuery BigQueryConfig `envconfig:"BIGQUERY"`
}

type RedisConfig struct {
	Addr     string `envconfig:"ADDR" default:"localhost:6379"`
	Password string `envconfig:"PASSWORD"`
	DB       int    `envconfig:"DB" default:"0" validate:"gte=0"`
	Prefix   string `envconfig:"PREFIX" default:"smart-finance:"`
}

// KVConfig selects the local key/value cache.
type KVConfig struct {
	Backend string      `envconfig:"BACKEND" default:"file" validate:"oneof=memory file redis"`
	Dir     string      `envconfig:"DIR" default:".data"`
	Redis   RedisConfig `envconfig:"REDIS"`
}

type TelegramConfig struct {
	BotToken       string        `envconfig:"BOT_TOKEN"`
	InitDataMaxAge time.Duration `envconfig:"INIT_DATA_MAX_AGE" default:"24h"`
}

type SyncConfig struct {
	Schedule string `envconfig:"SCHEDULE" default:"@every 6h"`
	Days     int    `envconfig:"DAYS" default:"30" validate:"gte=1,lte=365"`
	// Confidence is the minimum classifier score for relabeling fallback
	// categories.
	Confidence float64 `envconfig:"CONFIDENCE" default:"0.8" validate:"gt=0,lte=1"`
}

type ReportConfig struct {
	Schedule  string `envconfig:"SCHEDULE" default:"0 9 1 * *"`
	GCSBucket string `envconfig:"GCS_BUCKET"`
}

type JobsConfig struct {
	QueueSize int `envconfig:"QUEUE_SIZE" default:"100" validate:"gte=1"`
	Workers   int `envconfig:"WORKERS" default:"5" validate:"gte=1"`
}

// Config is the whole service configuration.
type Config struct {
	Env      string         `envconfig:"APP_ENV" default:"development"`
	Server   ServerConfig   `envconfig:"SERVER"`
	Log      LogConfig      `envconfig:"LOG"`
	Gemini   GeminiConfig   `envconfig:"GEMINI"`
	Monobank MonobankConfig `envconfig:"MONOBANK"`
	Currency CurrencyConfig `envconfig:"CURRENCY"`
	Store    StoreConfig    `envconfig:"STORE"`
	KV       KVConfig       `envconfig:"KV"`
	Telegram TelegramConfig `envconfig:"TELEGRAM"`
	Sync     SyncConfig     `envconfig:"SYNC"`
	Report   ReportConfig   `envconfig:"REPORT"`
	Jobs     JobsConfig     `envconfig:"JOBS"`
}

// Load reads the given .env files, when present, and then the environment.
// Variables already set in the environment win over file values.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, path := range envFiles {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("Load: %s: %w", path, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and backend specific requirements.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("Validate: %w", err)
	}

	switch c.Store.Backend {
	case "postgres":
		if c.Store.Postgres.DSN == "" {
			return errors.New("Validate: STORE_POSTGRES_DSN is required for the postgres backend")
		}
	case "mongo":
		if c.Store.Mongo.URI == "" {
			return errors.New("Validate: STORE_MONGO_URI is required for the mongo backend")
		}
	case "bigquery":
		if c.Store.BigQuery.ProjectID == "" {
			return errors.New("Validate: STORE_BIGQUERY_PROJECT_ID is required for the bigquery backend")
		}
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("Validate: MONOBANK_TIMEZONE: %w", err)
	}
	return nil
}

// Location is the time zone statement dates are reported in.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Monobank.Timezone)
}

// LogSummary writes the effective configuration with secrets masked.
func (c *Config) LogSummary(log zerolog.Logger) {
	log.Info().
		Str("env", c.Env).
		Str("port", c.Server.Port).
		Str("store_backend", c.Store.Backend).
		Str("kv_backend", c.KV.Backend).
		Str("gemini_model", c.Gemini.Model).
		Str("gemini_api_key", maskValue(c.Gemini.APIKey)).
		Str("telegram_bot_token", maskValue(c.Telegram.BotToken)).
		Float64("default_usd_rate", c.Currency.DefaultUSDRate).
		Float64("monobank_fallback_rate", c.Monobank.FallbackRate).
		Str("sync_schedule", c.Sync.Schedule).
		Str("report_schedule", c.Report.Schedule).
		Msg("Config loaded")
}

func maskValue(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 6 {
		return "****"
	}
	return key[:2] + "****" + key[len(key)-4:]
}
