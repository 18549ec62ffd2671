// Package config loads the server configuration.
//
// Sources, later ones winning:
//  1. Defaults() below
//  2. an optional TOML file (koanf file provider + toml parser)
//  3. environment variables (PORT, DB_PATH, JWT_SECRET, ...)
//
// Env vars exist so deployments can inject secrets without writing them into
// the config file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("config file not found")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
)

// CurrentVersion is the config file layout version this binary understands.
const CurrentVersion = 1

// Driver names accepted in database.driver.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// searchPaths are tried in order when Load is called without a path.
var searchPaths = []string{
	"vouchnet.toml",
	"config/vouchnet.toml",
	"/etc/vouchnet/vouchnet.toml",
}

type Config struct {
	// Version of the config file layout.
	Version    int        `koanf:"version"`
	Server     Server     `koanf:"server"`
	Database   Database   `koanf:"database"`
	Auth       Auth       `koanf:"auth"`
	GitHub     GitHub     `koanf:"github"`
	Reputation Reputation `koanf:"reputation"`
	Log        Log        `koanf:"log"`
}

type Server struct {
	Port int `koanf:"port"`
	// Timeouts in seconds.
	ReadTimeout     int `koanf:"read_timeout"`
	WriteTimeout    int `koanf:"write_timeout"`
	IdleTimeout     int `koanf:"idle_timeout"`
	ShutdownTimeout int `koanf:"shutdown_timeout"`
}

type Database struct {
	// "sqlite" or "memory".
	Driver string `koanf:"driver"`
	// SQLite file path; ":memory:" also works.
	Path string `koanf:"path"`
}

type Auth struct {
	// HMAC secret for session JWTs. Auth routes are disabled when empty.
	JWTSecret          string `koanf:"jwt_secret"`
	GitHubClientID     string `koanf:"github_client_id"`
	GitHubClientSecret string `koanf:"github_client_secret"`
	GitHubCallbackURL  string `koanf:"github_callback_url"`
	// bcrypt hash of the key that unlocks operator endpoints.
	OperatorKeyHash string `koanf:"operator_key_hash"`
	// Mark session cookies Secure (HTTPS only).
	SecureCookies bool `koanf:"secure_cookies"`
}

type GitHub struct {
	APIBaseURL string `koanf:"api_base_url"`
	// Optional token for authenticated (higher rate limit) API calls.
	Token string `koanf:"token"`
	// Request timeout in seconds.
	Timeout int `koanf:"timeout"`
	// Stats cache lifetime in minutes.
	CacheTTL int `koanf:"cache_ttl"`
	// Upper bound on repository pages fetched per user.
	MaxRepoPages int `koanf:"max_repo_pages"`
}

type Reputation struct {
	// Parallel calculations during recalculate-all.
	BatchConcurrency int `koanf:"batch_concurrency"`
}

type Log struct {
	// debug, info, warn or error.
	Level string `koanf:"level"`
}

// Defaults returns a config that runs locally with no file and no env.
func Defaults() *Config {
	return &Config{
		Version: CurrentVersion,
		Server: Server{
			Port:            8080,
			ReadTimeout:     10,
			WriteTimeout:    30,
			IdleTimeout:     60,
			ShutdownTimeout: 10,
		},
		Database: Database{
			Driver: DriverSQLite,
			Path:   "data/vouchnet.db",
		},
		GitHub: GitHub{
			APIBaseURL:   "https://api.github.com",
			Timeout:      10,
			CacheTTL:     10,
			MaxRepoPages: 10,
		},
		Reputation: Reputation{
			BatchConcurrency: 4,
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Load builds the configuration. With an empty path the search paths are
// tried and a missing file is fine; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	k := koanf.New(".")

	loaded := false
	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
			}
			return nil, fmt.Errorf("config: loading %s: %w", path, err)
		}
		loaded = true
	} else {
		for _, candidate := range searchPaths {
			if err := k.Load(file.Provider(candidate), toml.Parser()); err == nil {
				path = candidate
				loaded = true
				break
			}
		}
	}

	if loaded {
		// A file without a version key would otherwise inherit the default.
		cfg.Version = 0
		if err := k.Unmarshal("", cfg); err != nil {
			return nil, fmt.Errorf("config: unmarshaling %s: %w", path, err)
		}
		if err := checkConfigVersion(path, cfg.Version, CurrentVersion); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func checkConfigVersion(name string, current, expected int) error {
	if current == 0 {
		return fmt.Errorf("%w: %s", ErrConfigVersionMissing, name)
	}
	if current != expected {
		return fmt.Errorf("%w: %s (got: %d, expected: %d)",
			ErrConfigVersionMismatch, name, current, expected)
	}
	return nil
}

// applyEnv overlays the supported environment variables.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}

	strVars := map[string]*string{
		"DB_DRIVER":            &cfg.Database.Driver,
		"DB_PATH":              &cfg.Database.Path,
		"JWT_SECRET":           &cfg.Auth.JWTSecret,
		"GITHUB_CLIENT_ID":     &cfg.Auth.GitHubClientID,
		"GITHUB_CLIENT_SECRET": &cfg.Auth.GitHubClientSecret,
		"GITHUB_CALLBACK_URL":  &cfg.Auth.GitHubCallbackURL,
		"GITHUB_TOKEN":         &cfg.GitHub.Token,
		"OPERATOR_KEY_HASH":    &cfg.Auth.OperatorKeyHash,
		"LOG_LEVEL":            &cfg.Log.Level,
	}
	for name, dst := range strVars {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	return nil
}

// Validate rejects values the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("config: database.path is required for the sqlite driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown database.driver %q", c.Database.Driver)
	}
	if c.Reputation.BatchConcurrency < 1 {
		return fmt.Errorf("config: reputation.batch_concurrency must be at least 1, got %d", c.Reputation.BatchConcurrency)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// SlogLevel maps log.level to a slog.Level. Validate has already rejected
// unknown values, so the fallback is never hit after Load.
func (l Log) SlogLevel() slog.Level {
	level, err := parseLevel(l.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("config: unknown log.level %q", s)
	}
}
