package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	// Scan controls the scan cycle and its pacing
	Scan struct {
		// Minutes to sleep between cycles in continuous mode
		IntervalMinutes int `env:"SCAN_INTERVAL_MINUTES" envDefault:"30"`

		// Per-request timeout in seconds
		FetchTimeoutSeconds int `env:"FETCH_TIMEOUT_SECONDS" envDefault:"10"`

		// Extra attempts after a failed fetch
		RetryAttempts int `env:"RETRY_ATTEMPTS" envDefault:"2"`

		// Range of the random pause between requests, in seconds
		DelayMinSeconds float64 `env:"DELAY_MIN_SECONDS" envDefault:"2"`
		DelayMaxSeconds float64 `env:"DELAY_MAX_SECONDS" envDefault:"6"`

		// Range of the random pause before the first request
		InitialDelayMinSeconds float64 `env:"INITIAL_DELAY_MIN_SECONDS" envDefault:"2"`
		InitialDelayMaxSeconds float64 `env:"INITIAL_DELAY_MAX_SECONDS" envDefault:"5"`

		// http or browser
		Backend string `env:"FETCH_BACKEND" envDefault:"http"`

		// Empty rotates a realistic user agent per request
		UserAgent string `env:"USER_AGENT"`
	}

	Source struct {
		Name      string `env:"SOURCE_NAME" envDefault:"yad2"`
		BaseURL   string `env:"SOURCE_BASE_URL" envDefault:"https://www.yad2.co.il"`
		SearchURL string `env:"SOURCE_SEARCH_URL" envDefault:"https://www.yad2.co.il/realestate/rent"`
	}

	// Extraction plausibility bounds and limits
	Extract struct {
		MaxCandidatesPerPage int     `env:"MAX_CANDIDATES_PER_PAGE" envDefault:"10"`
		PricePlausibleMin    float64 `env:"PRICE_PLAUSIBLE_MIN" envDefault:"1000"`
		PricePlausibleMax    float64 `env:"PRICE_PLAUSIBLE_MAX" envDefault:"5000"`
		RoomsPlausibleMin    float64 `env:"ROOMS_PLAUSIBLE_MIN" envDefault:"0.5"`
		RoomsPlausibleMax    float64 `env:"ROOMS_PLAUSIBLE_MAX" envDefault:"5"`
	}

	Database struct {
		// sqlite or postgres
		Driver string `env:"DB_DRIVER" envDefault:"sqlite"`
		Path   string `env:"DB_PATH" envDefault:"data/apartments.db"`
		URL    string `env:"DATABASE_URL"`
	}

	Notify struct {
		// Maximum listings sent per cycle
		Limit           int    `env:"NOTIFY_LIMIT" envDefault:"5"`
		QueueSize       int    `env:"NOTIFY_QUEUE_SIZE" envDefault:"100"`
		TelegramEnabled bool   `env:"TELEGRAM_ENABLED" envDefault:"false"`
		TelegramToken   string `env:"TELEGRAM_BOT_TOKEN"`
		TelegramChatID  string `env:"TELEGRAM_CHAT_ID"`
	}

	SearchConfigPath string `env:"SEARCH_CONFIG_PATH" envDefault:"config/search.yaml"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat        string `env:"LOG_FORMAT" envDefault:"json"`
	APIPort          int    `env:"API_PORT" envDefault:"8080"`
}

// LoadConfig reads an optional .env file and then the environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the scan loop cannot run with.
func (c *Config) Validate() error {
	if c.Scan.IntervalMinutes <= 0 {
		return fmt.Errorf("SCAN_INTERVAL_MINUTES must be positive, got %d", c.Scan.IntervalMinutes)
	}
	if c.Scan.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT_SECONDS must be positive, got %d", c.Scan.FetchTimeoutSeconds)
	}
	if c.Scan.RetryAttempts < 0 {
		return fmt.Errorf("RETRY_ATTEMPTS must not be negative, got %d", c.Scan.RetryAttempts)
	}
	switch c.Scan.Backend {
	case "http", "browser":
	default:
		return fmt.Errorf("FETCH_BACKEND must be http or browser, got %q", c.Scan.Backend)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if c.Notify.TelegramEnabled && (c.Notify.TelegramToken == "" || c.Notify.TelegramChatID == "") {
		return errors.New("TELEGRAM_ENABLED requires TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID")
	}
	return nil
}

// Interval is the pause between cycles.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Scan.IntervalMinutes) * time.Minute
}

// FetchTimeout bounds a single request.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Scan.FetchTimeoutSeconds) * time.Second
}
