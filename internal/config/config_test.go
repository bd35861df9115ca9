package config

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GIN_MODE", "debug")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Undo.Window != 4*time.Second || cfg.Undo.Tick != 250*time.Millisecond {
		t.Fatalf("undo defaults: %+v", cfg.Undo)
	}
	if cfg.SearchDebounce != 300*time.Millisecond || cfg.Reference.TTL != 5*time.Minute {
		t.Fatalf("timing defaults: %+v", cfg)
	}
	if cfg.DB.Driver != "sqlite" || cfg.Reference.Store != "memory" || cfg.DefaultPageSize != 10 {
		t.Fatalf("defaults: %+v", cfg)
	}
	if cfg.JWTSecret == "" {
		t.Fatal("debug mode should fall back to a dev secret")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("GIN_MODE", "weird")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("LOG_LEVEL", "warning")
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("BACKEND_BASE_URL", "https://backend.example/api/")
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DB_HOST", "db")
	t.Setenv("UNDO_WINDOW", "2s")
	t.Setenv("UNDO_TICK", "x") // falls back to default
	t.Setenv("REFERENCE_STORE", "redis")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("DEFAULT_PAGE_SIZE", "25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.GinMode != "release" || cfg.LogLevel != "warn" || !cfg.LogPretty {
		t.Fatalf("normalization: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.CORSAllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("origins: %v", cfg.CORSAllowedOrigins)
	}
	if cfg.Backend.BaseURL != "https://backend.example/api" {
		t.Fatalf("base url: %s", cfg.Backend.BaseURL)
	}
	if cfg.DB.Driver != "postgres" || !strings.Contains(cfg.DB.DSN(), "host=db") {
		t.Fatalf("db: %+v", cfg.DB)
	}
	if cfg.Undo.Window != 2*time.Second || cfg.Undo.Tick != 250*time.Millisecond {
		t.Fatalf("undo: %+v", cfg.Undo)
	}
	if cfg.Reference.RedisAddr != "cache:6379" || cfg.DefaultPageSize != 25 {
		t.Fatalf("reference: %+v", cfg)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"log level", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"secret in release", map[string]string{"GIN_MODE": "release"}, "JWT_SECRET"},
		{"backend url", map[string]string{"BACKEND_BASE_URL": "ftp://x"}, "BACKEND_BASE_URL"},
		{"db driver", map[string]string{"DB_DRIVER": "mysql"}, "DB_DRIVER"},
		{"tick above window", map[string]string{"UNDO_WINDOW": "1s", "UNDO_TICK": "2s"}, "UNDO_TICK"},
		{"store", map[string]string{"REFERENCE_STORE": "memcached"}, "REFERENCE_STORE"},
		{"page size", map[string]string{"DEFAULT_PAGE_SIZE": "500"}, "DEFAULT_PAGE_SIZE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("GIN_MODE", "debug")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("got %v, want error mentioning %s", err, tc.want)
			}
		})
	}
}

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose")
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}
