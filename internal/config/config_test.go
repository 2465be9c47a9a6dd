package config

import (
	"strings"
	"testing"
	"time"
)

var configKeys = []string{
	"DATABASE_URL", "DB_PATH", "SERVER_PORT", "LOG_LEVEL", "ENV", "SITE_URL",
	"LLM_ENDPOINT", "OPENAI_API_KEY", "LLM_MODEL", "INFO_POST_CATEGORY",
	"ADMIN_EMAIL", "ADMIN_PASSWORD", "ADMIN_SECRET_KEY", "SESSION_SECRET", "COOKIE_SECURE",
	"SUPABASE_URL", "SUPABASE_SERVICE_KEY", "STORAGE_BUCKET", "UPLOAD_DIR",
	"SEARCH_INDEX_PATH", "SENTRY_DSN", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "SHUTDOWN_GRACE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.DBPath != defaultDBPath {
		t.Errorf("expected default DB path %q, got %q", defaultDBPath, cfg.DBPath)
	}

	if cfg.DatabaseURL != "" {
		t.Errorf("expected empty database url, got %q", cfg.DatabaseURL)
	}

	if cfg.ServerPort != defaultServerPort {
		t.Errorf("expected default server port %d, got %d", defaultServerPort, cfg.ServerPort)
	}

	if cfg.LogLevel != defaultLogLevel {
		t.Errorf("expected default log level %q, got %q", defaultLogLevel, cfg.LogLevel)
	}

	if cfg.Environment != defaultEnvironment || !cfg.IsDevelopment() || cfg.IsProduction() {
		t.Errorf("expected default environment %q, got %q", defaultEnvironment, cfg.Environment)
	}

	if cfg.SiteURL != defaultSiteURL {
		t.Errorf("expected default site url %q, got %q", defaultSiteURL, cfg.SiteURL)
	}

	if cfg.LLMModel != defaultLLMModel || cfg.LLMAPIKey != "" {
		t.Errorf("expected default model and no api key, got %q / %q", cfg.LLMModel, cfg.LLMAPIKey)
	}

	if cfg.InfoPostCategory != defaultInfoPostCategory {
		t.Errorf("expected info category %q, got %q", defaultInfoPostCategory, cfg.InfoPostCategory)
	}

	if cfg.CookieSecure {
		t.Errorf("expected insecure cookies outside production")
	}

	if cfg.StorageBucket != defaultStorageBucket || cfg.UploadDir != defaultUploadDir || cfg.UsesSupabaseStorage() {
		t.Errorf("expected local storage defaults, got %+v", cfg)
	}

	if cfg.RateLimitRPS != defaultRateLimitRPS || cfg.RateLimitBurst != defaultRateLimitBurst {
		t.Errorf("expected rate limit defaults, got %v / %d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	if cfg.ShutdownGrace != defaultShutdownGrace {
		t.Errorf("expected shutdown grace %s, got %s", defaultShutdownGrace, cfg.ShutdownGrace)
	}

	if cfg.SentryDSN != "" {
		t.Errorf("expected empty Sentry DSN, got %q", cfg.SentryDSN)
	}
}

func TestLoadWithExplicitValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://blog@db/blog")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ENV", "production")
	t.Setenv("SITE_URL", "https://blog.example.com/")
	t.Setenv("OPENAI_API_KEY", "secret")
	t.Setenv("LLM_MODEL", "gpt-4o-mini")
	t.Setenv("ADMIN_SECRET_KEY", "key")
	t.Setenv("SUPABASE_URL", "https://proj.supabase.co/")
	t.Setenv("SUPABASE_SERVICE_KEY", "service")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "4")
	t.Setenv("SHUTDOWN_GRACE", "3s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.DatabaseURL != "postgres://blog@db/blog" {
		t.Errorf("unexpected database url %q", cfg.DatabaseURL)
	}

	if cfg.ServerPort != 9090 {
		t.Errorf("expected server port 9090, got %d", cfg.ServerPort)
	}

	if !cfg.IsProduction() || !cfg.CookieSecure {
		t.Errorf("expected production with secure cookies, got %q / %v", cfg.Environment, cfg.CookieSecure)
	}

	if cfg.SiteURL != "https://blog.example.com" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.SiteURL)
	}

	if cfg.LLMAPIKey != "secret" || cfg.LLMModel != "gpt-4o-mini" {
		t.Errorf("unexpected llm settings %q / %q", cfg.LLMAPIKey, cfg.LLMModel)
	}

	if !cfg.UsesSupabaseStorage() || cfg.SupabaseURL != "https://proj.supabase.co" {
		t.Errorf("expected supabase storage, got %q", cfg.SupabaseURL)
	}

	if cfg.RateLimitRPS != 2.5 || cfg.RateLimitBurst != 4 {
		t.Errorf("unexpected rate limit %v / %d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	if cfg.ShutdownGrace != 3*time.Second {
		t.Errorf("expected grace 3s, got %s", cfg.ShutdownGrace)
	}
}

func TestLoadCookieSecureOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV", "production")
	t.Setenv("COOKIE_SECURE", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.CookieSecure {
		t.Fatalf("expected explicit COOKIE_SECURE=false to win")
	}
}

func TestLoadInvalidValues(t *testing.T) {
	cases := map[string]string{
		"SERVER_PORT":      "invalid",
		"COOKIE_SECURE":    "maybe",
		"RATE_LIMIT_RPS":   "-1",
		"RATE_LIMIT_BURST": "zero",
		"SHUTDOWN_GRACE":   "soon",
	}

	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)

			_, err := Load()
			if err == nil {
				t.Fatalf("expected error for %s=%s", key, value)
			}
			if !strings.Contains(err.Error(), "invalid "+key+" value") {
				t.Fatalf("expected error to mention %s, got %v", key, err)
			}
		})
	}
}
