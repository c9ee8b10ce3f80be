package config

import (
	"fmt"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	// application settings
	Environment string `env:"ENVIRONMENT" env-default:"development"`

	// logging configuration
	LogLevel     string `env:"LOG_LEVEL" env-default:"info"`
	LogFormat    string `env:"LOG_FORMAT" env-default:"text"`
	LogAddSource bool   `env:"LOG_ADD_SOURCE" env-default:"false"`

	// http server configuration
	ServerHost         string        `env:"SERVER_HOST" env-default:"0.0.0.0"`
	ServerPort         int           `env:"SERVER_PORT" env-default:"8080"`
	ServerReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" env-default:"30s"`
	ServerWriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" env-default:"90s"`
	ServerIdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" env-default:"60s"`
	RequestTimeout     time.Duration `env:"REQUEST_TIMEOUT" env-default:"60s"`

	// remote api settings
	GitHubAPIURL    string  `env:"GITHUB_API_URL"`
	GitHubToken     string  `env:"GITHUB_TOKEN"`
	GitHubRateLimit float64 `env:"GITHUB_RATE_LIMIT" env-default:"10"`
	GitHubRateBurst int     `env:"GITHUB_RATE_BURST" env-default:"5"`
	GitHubPerPage   int     `env:"GITHUB_PER_PAGE" env-default:"100"`
	GitHubMaxPages  int     `env:"GITHUB_MAX_PAGES" env-default:"10"`

	// aggregation settings
	TimingSampleSize  int    `env:"TIMING_SAMPLE_SIZE" env-default:"15"`
	DetailConcurrency int    `env:"DETAIL_CONCURRENCY" env-default:"3"`
	BucketStrategy    string `env:"BUCKET_STRATEGY" env-default:"epoch-week"`
	BucketTimezone    string `env:"BUCKET_TIMEZONE" env-default:"UTC"`
	BucketWeekStart   string `env:"BUCKET_WEEK_START" env-default:"monday"`
	CommitClassifier  string `env:"COMMIT_CLASSIFIER" env-default:"message"`

	// insights
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL" env-default:"gemini-2.5-flash"`
}

func New() (*Config, error) {
	var cfg Config

	// read from .env file if exists (optional)
	if _, err := os.Stat(".env"); err == nil {
		if err := cleanenv.ReadConfig(".env", &cfg); err != nil {
			return nil, fmt.Errorf("failed to read dotenv file: %w", err)
		}
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ServerPort, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.GitHubRateLimit, validation.Required, validation.Min(0.01)),
		validation.Field(&c.GitHubRateBurst, validation.Required, validation.Min(1)),
		validation.Field(&c.GitHubPerPage, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.GitHubMaxPages, validation.Required, validation.Min(1)),
		validation.Field(&c.TimingSampleSize, validation.Required, validation.Min(1)),
		validation.Field(&c.DetailConcurrency, validation.Required, validation.Min(1)),
		validation.Field(&c.BucketStrategy, validation.In("epoch-week", "calendar-week", "day")),
		validation.Field(&c.CommitClassifier, validation.In("message", "parents")),
	)
}
