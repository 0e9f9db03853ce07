// Package config loads the proxy's configuration once at startup.
//
// Sources, highest priority first:
//  1. Environment variables (ANKI_CONNECT_URL, ANKI_CONNECT_API_KEY,
//     ANKI_CONNECT_TIMEOUT, ANKI_CONNECT_VERSION, LOG_LEVEL), with a .env
//     file in the working directory loaded first if present
//  2. An optional mcp-anki.yaml config file in the working directory
//  3. Built-in defaults (local AnkiConnect, 30 s timeout, API version 6)
//
// Load validates eagerly and fails fast; a malformed value never reaches
// the serving runtime. The resulting Config is populated once and passed
// to the components that need it, never re-read mid-request.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Configuration errors. All of them mean startup must abort; none can
// occur after Load has returned.
var (
	ErrInvalidEndpoint = errors.New("invalid AnkiConnect endpoint URL")
	ErrInvalidTimeout  = errors.New("invalid request timeout")
	ErrInvalidVersion  = errors.New("invalid AnkiConnect API version")
	ErrInvalidLogLevel = errors.New("invalid log level")
)

// Defaults match the stock AnkiConnect add-on installation.
const (
	DefaultEndpoint       = "http://localhost:8765"
	DefaultTimeoutSeconds = 30.0
	DefaultVersion        = 6
	DefaultLogLevel       = "info"
)

// Config holds everything the proxy reads from its environment.
type Config struct {
	Endpoint       string  // AnkiConnect URL
	APIKey         string  // optional; omitted from requests when empty
	TimeoutSeconds float64 // per-request deadline
	Version        int     // AnkiConnect API version
	LogLevel       string  // zap level name
}

// Load reads, merges and validates the configuration.
func Load() (*Config, error) {
	// A missing .env is the normal case, not an error.
	_ = godotenv.Load()

	viper.SetConfigName("mcp-anki")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := Config{
		Endpoint: viper.GetString("anki_connect_url"),
		APIKey:   viper.GetString("anki_connect_api_key"),
		LogLevel: viper.GetString("log_level"),
	}

	// Timeout and version arrive as strings when set via environment;
	// parse them by hand so a typo yields a useful message instead of a
	// silent zero.
	rawTimeout := viper.GetString("anki_connect_timeout")
	timeout, err := strconv.ParseFloat(rawTimeout, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidTimeout, rawTimeout)
	}
	cfg.TimeoutSeconds = timeout

	rawVersion := viper.GetString("anki_connect_version")
	version, err := strconv.Atoi(rawVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not an integer", ErrInvalidVersion, rawVersion)
	}
	cfg.Version = version

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("anki_connect_url", DefaultEndpoint)
	viper.SetDefault("anki_connect_api_key", "")
	viper.SetDefault("anki_connect_timeout", DefaultTimeoutSeconds)
	viper.SetDefault("anki_connect_version", DefaultVersion)
	viper.SetDefault("log_level", DefaultLogLevel)
}

func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a failure here is a bug.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("anki_connect_url", "ANKI_CONNECT_URL")
	mustBind("anki_connect_api_key", "ANKI_CONNECT_API_KEY")
	mustBind("anki_connect_timeout", "ANKI_CONNECT_TIMEOUT")
	mustBind("anki_connect_version", "ANKI_CONNECT_VERSION")
	mustBind("log_level", "LOG_LEVEL")
}

// Validate checks every field and returns the first problem found.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidEndpoint, c.Endpoint)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidEndpoint, u.Scheme)
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("%w: must be positive, got %v", ErrInvalidTimeout, c.TimeoutSeconds)
	}
	if c.Version < 1 {
		return fmt.Errorf("%w: must be at least 1, got %d", ErrInvalidVersion, c.Version)
	}
	if _, err := zapcore.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}
	return nil
}

// Timeout returns the per-request deadline as a Duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}

// ZapLevel returns the configured log level. Validate has already checked
// it parses.
func (c *Config) ZapLevel() zapcore.Level {
	lvl, err := zapcore.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
