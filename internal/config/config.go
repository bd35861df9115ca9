// Package config loads the service settings from environment variables,
// applying defaults and validating the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DBConfig selects and locates the action journal database.
type DBConfig struct {
	Driver   string // postgres|sqlite
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	Path     string // sqlite file, ":memory:" allowed
}

// DSN builds the postgres connection string.
func (d DBConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}

// BackendConfig points at the Backend Gateway REST API.
type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

// UndoConfig tunes the optimistic undo window.
type UndoConfig struct {
	Window        time.Duration
	Tick          time.Duration
	CommitTimeout time.Duration
}

// ReferenceConfig controls the reference data cache.
type ReferenceConfig struct {
	TTL       time.Duration
	Store     string // memory|redis
	RedisAddr string
}

type Config struct {
	// Server
	Port    string
	GinMode string // debug|release|test

	// Logging / Docs
	LogLevel       string
	LogPretty      bool
	SwaggerEnabled bool

	CORSAllowedOrigins []string
	JWTSecret          string

	Backend   BackendConfig
	DB        DBConfig
	Undo      UndoConfig
	Reference ReferenceConfig

	SearchDebounce  time.Duration
	SessionIdleTTL  time.Duration
	TableTTL        time.Duration // 0 keeps a loaded table until refresh
	DefaultPageSize int
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables, applies defaults
// and validates the result.
func Load() (Config, error) {
	cfg := Config{
		Port:    getenv("PORT", "8080"),
		GinMode: strings.ToLower(getenv("GIN_MODE", "release")),

		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),

		CORSAllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		JWTSecret:          getenv("JWT_SECRET", ""),

		Backend: BackendConfig{
			BaseURL: strings.TrimRight(getenv("BACKEND_BASE_URL", "http://localhost:8000/api"), "/"),
			Timeout: getdur("BACKEND_TIMEOUT", 15*time.Second),
		},
		DB: DBConfig{
			Driver:   strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			Host:     getenv("DB_HOST", "localhost"),
			Port:     getenv("DB_PORT", "5432"),
			User:     getenv("DB_USER", "postgres"),
			Password: getenv("DB_PASSWORD", ""),
			Name:     getenv("DB_NAME", "backoffice"),
			SSLMode:  getenv("DB_SSLMODE", "disable"),
			Path:     getenv("DB_PATH", "backoffice.db"),
		},
		Undo: UndoConfig{
			Window:        getdur("UNDO_WINDOW", 4*time.Second),
			Tick:          getdur("UNDO_TICK", 250*time.Millisecond),
			CommitTimeout: getdur("UNDO_COMMIT_TIMEOUT", 15*time.Second),
		},
		Reference: ReferenceConfig{
			TTL:       getdur("REFERENCE_TTL", 5*time.Minute),
			Store:     strings.ToLower(getenv("REFERENCE_STORE", "memory")),
			RedisAddr: getenv("REDIS_ADDR", "localhost:6379"),
		},

		SearchDebounce:  getdur("SEARCH_DEBOUNCE", 300*time.Millisecond),
		SessionIdleTTL:  getdur("SESSION_IDLE_TTL", 2*time.Hour),
		TableTTL:        getdur("TABLE_TTL", 5*time.Minute),
		DefaultPageSize: getint("DEFAULT_PAGE_SIZE", 10),
	}

	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.JWTSecret == "" {
		if cfg.GinMode == "release" {
			return cfg, errors.New("JWT_SECRET is required in release mode")
		}
		cfg.JWTSecret = "dev_only_secret"
	}
	if !strings.HasPrefix(cfg.Backend.BaseURL, "http://") && !strings.HasPrefix(cfg.Backend.BaseURL, "https://") {
		return cfg, errors.New("BACKEND_BASE_URL must be an http(s) URL")
	}
	if cfg.Backend.Timeout <= 0 {
		return cfg, errors.New("BACKEND_TIMEOUT must be > 0")
	}
	switch cfg.DB.Driver {
	case "postgres":
		if cfg.DB.Host == "" || cfg.DB.Name == "" {
			return cfg, errors.New("DB_HOST and DB_NAME are required for postgres")
		}
	case "sqlite":
		if strings.TrimSpace(cfg.DB.Path) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be postgres or sqlite")
	}
	if cfg.Undo.Window <= 0 || cfg.Undo.Tick <= 0 || cfg.Undo.CommitTimeout <= 0 {
		return cfg, errors.New("UNDO_WINDOW, UNDO_TICK and UNDO_COMMIT_TIMEOUT must be > 0")
	}
	if cfg.Undo.Tick > cfg.Undo.Window {
		return cfg, errors.New("UNDO_TICK must not exceed UNDO_WINDOW")
	}
	if cfg.Reference.TTL <= 0 {
		return cfg, errors.New("REFERENCE_TTL must be > 0")
	}
	switch cfg.Reference.Store {
	case "memory":
	case "redis":
		if cfg.Reference.RedisAddr == "" {
			return cfg, errors.New("REDIS_ADDR is required when REFERENCE_STORE=redis")
		}
	default:
		return cfg, errors.New("REFERENCE_STORE must be memory or redis")
	}
	if cfg.SearchDebounce < 0 {
		return cfg, errors.New("SEARCH_DEBOUNCE must be >= 0")
	}
	if cfg.SessionIdleTTL <= 0 {
		return cfg, errors.New("SESSION_IDLE_TTL must be > 0")
	}
	if cfg.TableTTL < 0 {
		return cfg, errors.New("TABLE_TTL must be >= 0")
	}
	if cfg.DefaultPageSize < 1 || cfg.DefaultPageSize > 100 {
		return cfg, errors.New("DEFAULT_PAGE_SIZE must be between 1 and 100")
	}

	return cfg, nil
}

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
