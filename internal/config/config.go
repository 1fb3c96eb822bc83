// Package config loads the server's runtime settings.
//
// Values are layered, later layers winning:
//
//  1. Defaults()
//  2. an optional YAML file (the --config flag)
//  3. environment variables
//
// and the result is checked with Validate before anything is started.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	// MinSessionSecretLength matches what auth.NewTokenService accepts.
	MinSessionSecretLength = 16
)

// Config holds runtime settings for the timekeeper server.
//
// SessionSecret may be empty: the server then authenticates existing
// sessions but refuses sign-up and sign-in. Google sign-in is enabled only
// when both the client ID and secret are set.
type Config struct {
	Port               int           `yaml:"port"`
	DBDriver           string        `yaml:"db_driver"`
	DatabaseDSN        string        `yaml:"database_dsn"`
	SessionSecret      string        `yaml:"session_secret"`
	SessionMaxAge      time.Duration `yaml:"session_max_age"`
	GoogleClientID     string        `yaml:"google_client_id"`
	GoogleClientSecret string        `yaml:"google_client_secret"`
	GoogleCallbackURL  string        `yaml:"google_callback_url"`
	CORSOrigins        []string      `yaml:"cors_origins"`
	LogLevel           string        `yaml:"log_level"`
	LogFormat          string        `yaml:"log_format"`
}

// Defaults returns a development configuration backed by a local SQLite file.
func Defaults() Config {
	return Config{
		Port:          8080,
		DBDriver:      DriverSQLite,
		DatabaseDSN:   "data/timekeeper.db",
		SessionMaxAge: 30 * 24 * time.Hour,
		CORSOrigins:   []string{"http://localhost:3000"},
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the process environment, then validates it.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}

	if cfg.GoogleCallbackURL == "" {
		cfg.GoogleCallbackURL = fmt.Sprintf("http://localhost:%d/api/auth/callback/google", cfg.Port)
	}
	cfg.DBDriver = strings.ToLower(cfg.DBDriver)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: PORT %q is not a number", v)
		}
		c.Port = port
	}
	if v, ok := lookup("SESSION_MAX_AGE"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: SESSION_MAX_AGE: %w", err)
		}
		c.SessionMaxAge = d
	}
	if v, ok := lookup("CORS_ORIGIN"); ok && v != "" {
		c.CORSOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				c.CORSOrigins = append(c.CORSOrigins, origin)
			}
		}
	}

	str("DB_DRIVER", &c.DBDriver)
	str("DATABASE_URL", &c.DatabaseDSN)
	str("SESSION_SECRET", &c.SessionSecret)
	str("GOOGLE_CLIENT_ID", &c.GoogleClientID)
	str("GOOGLE_CLIENT_SECRET", &c.GoogleClientSecret)
	str("GOOGLE_CALLBACK_URL", &c.GoogleCallbackURL)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	return nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.DBDriver != DriverSQLite && c.DBDriver != DriverPostgres {
		errs = append(errs, fmt.Errorf("db_driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.DBDriver))
	}
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database_dsn is required"))
	}
	if c.SessionSecret != "" && len(c.SessionSecret) < MinSessionSecretLength {
		errs = append(errs, fmt.Errorf("session_secret must be at least %d characters", MinSessionSecretLength))
	}
	if c.SessionMaxAge <= 0 {
		errs = append(errs, errors.New("session_max_age must be positive"))
	}
	if (c.GoogleClientID == "") != (c.GoogleClientSecret == "") {
		errs = append(errs, errors.New("google_client_id and google_client_secret must be set together"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format must be \"text\" or \"json\", got %q", c.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// SessionsEnabled reports whether the server can mint new sessions.
func (c Config) SessionsEnabled() bool {
	return c.SessionSecret != ""
}

// Level returns LogLevel as a slog.Level. Call it on a validated Config.
func (c Config) Level() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level %q is not one of debug, info, warn, error", s)
	}
	return level, nil
}
