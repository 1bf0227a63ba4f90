package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Prefix is prepended to every environment variable name.
const Prefix = "SOVAEHR_"

// Config contains portal configuration parameters.
type Config struct {
	Port      string `env:"PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
	DBPath    string `env:"DB_PATH" envDefault:"sovaehr.db"`
	BaseURL   string `env:"BASE_URL"`
	TimeZone  string `env:"TIME_ZONE" envDefault:"Local"`

	Auth      Auth      `envPrefix:"AUTH_"`
	Security  Security  `envPrefix:"SECURITY_"`
	Storage   Storage   `envPrefix:"STORAGE_"`
	RateLimit RateLimit `envPrefix:"RATE_LIMIT_"`
	Redirect  Redirect  `envPrefix:"REDIRECT_"`
}

// Auth describes the external auth API.
type Auth struct {
	APIURL string `env:"API_URL"`
}

// Security contains cookie and CSRF parameters.
type Security struct {
	SecureCookies  bool     `env:"SECURE_COOKIES" envDefault:"false"`
	CSRFKey        string   `env:"CSRF_KEY"`
	OriginPatterns []string `env:"WS_ORIGIN_PATTERNS" envSeparator:","`
}

// Storage contains parameters of the per-browser storage areas.
type Storage struct {
	Secret          string        `env:"SECRET"`
	MaxAge          time.Duration `env:"MAX_AGE" envDefault:"720h"`
	TabIdle         time.Duration `env:"TAB_IDLE" envDefault:"30m"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1h"`
}

// RateLimit bounds form submissions per client IP.
type RateLimit struct {
	PerSecond float64 `env:"PER_SECOND" envDefault:"1"`
	Burst     int     `env:"BURST" envDefault:"5"`
}

// Redirect holds the navigation delays after sign-in and sign-out.
type Redirect struct {
	SignIn  time.Duration `env:"SIGNIN_DELAY" envDefault:"1200ms"`
	SignOut time.Duration `env:"SIGNOUT_DELAY" envDefault:"800ms"`
}

// Load reads the given .env files (missing files are skipped) and then the
// environment. Variables already set in the environment win over .env values.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Config{}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: Prefix}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:" + cfg.Port
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Auth.APIURL == "" {
		cfg.Auth.APIURL = cfg.BaseURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Security.CSRFKey != "" {
		if _, err := c.CSRFKeyBytes(); err != nil {
			return err
		}
	}
	if c.RateLimit.PerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return errors.New("rate limit must be positive")
	}
	if c.Redirect.SignIn < 0 || c.Redirect.SignOut < 0 {
		return errors.New("redirect delays must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// CSRFKeyBytes decodes the 32-byte hex CSRF key.
func (c *Config) CSRFKeyBytes() ([]byte, error) {
	key, err := hex.DecodeString(c.Security.CSRFKey)
	if err != nil {
		return nil, fmt.Errorf("csrf key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("csrf key is %d bytes, want 32", len(key))
	}
	return key, nil
}

// Location resolves TimeZone for appointment time labels.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("time zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// AuthAPIIsSelf reports whether the auth API URL points back at the portal,
// which serves no /api/auth routes. That is the default when
// SOVAEHR_AUTH_API_URL is unset.
func (c *Config) AuthAPIIsSelf() bool {
	return strings.TrimRight(c.Auth.APIURL, "/") == c.BaseURL
}

// SignUpRedirect is the redirect_to sent with sign-up requests.
func (c *Config) SignUpRedirect() string {
	return c.BaseURL + "/signin"
}
