package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Config holds runtime configuration values for the blog server.
type Config struct {
	DatabaseURL string
	DBPath      string
	ServerPort  int
	LogLevel    string
	Environment string
	SiteURL     string

	LLMEndpoint      string
	LLMAPIKey        string
	LLMModel         string
	InfoPostCategory string

	AdminEmail     string
	AdminPassword  string
	AdminSecretKey string
	SessionSecret  string
	CookieSecure   bool

	SupabaseURL        string
	SupabaseServiceKey string
	StorageBucket      string
	UploadDir          string

	SearchIndexPath string
	SentryDSN       string

	RateLimitRPS   float64
	RateLimitBurst int
	ShutdownGrace  time.Duration
}

const (
	defaultDBPath           = "./data/techblog.db"
	defaultServerPort       = 8080
	defaultLogLevel         = "info"
	defaultEnvironment      = "development"
	defaultSiteURL          = "http://localhost:8080"
	defaultLLMModel         = "gpt-4o"
	defaultInfoPostCategory = "테니스 원리"
	defaultStorageBucket    = "images"
	defaultUploadDir        = "./data/uploads"
	defaultRateLimitRPS     = 5.0
	defaultRateLimitBurst   = 20
	defaultShutdownGrace    = 10 * time.Second

	productionEnvironment = "production"
)

// Load reads configuration values from environment variables, applying defaults where necessary.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		DBPath:             getEnv("DB_PATH", defaultDBPath),
		LogLevel:           getEnv("LOG_LEVEL", defaultLogLevel),
		Environment:        getEnv("ENV", defaultEnvironment),
		SiteURL:            strings.TrimRight(getEnv("SITE_URL", defaultSiteURL), "/"),
		LLMEndpoint:        os.Getenv("LLM_ENDPOINT"),
		LLMAPIKey:          os.Getenv("OPENAI_API_KEY"),
		LLMModel:           getEnv("LLM_MODEL", defaultLLMModel),
		InfoPostCategory:   getEnv("INFO_POST_CATEGORY", defaultInfoPostCategory),
		AdminEmail:         os.Getenv("ADMIN_EMAIL"),
		AdminPassword:      os.Getenv("ADMIN_PASSWORD"),
		AdminSecretKey:     os.Getenv("ADMIN_SECRET_KEY"),
		SessionSecret:      os.Getenv("SESSION_SECRET"),
		SupabaseURL:        strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
		StorageBucket:      getEnv("STORAGE_BUCKET", defaultStorageBucket),
		UploadDir:          getEnv("UPLOAD_DIR", defaultUploadDir),
		SearchIndexPath:    os.Getenv("SEARCH_INDEX_PATH"),
		SentryDSN:          os.Getenv("SENTRY_DSN"),
	}

	portValue := getEnv("SERVER_PORT", strconv.Itoa(defaultServerPort))
	port, err := strconv.Atoi(portValue)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid SERVER_PORT value: %s", portValue)
	}
	cfg.ServerPort = port

	secureValue := getEnv("COOKIE_SECURE", strconv.FormatBool(cfg.IsProduction()))
	secure, err := strconv.ParseBool(secureValue)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid COOKIE_SECURE value: %s", secureValue)
	}
	cfg.CookieSecure = secure

	rpsValue := getEnv("RATE_LIMIT_RPS", strconv.FormatFloat(defaultRateLimitRPS, 'f', -1, 64))
	rps, err := strconv.ParseFloat(rpsValue, 64)
	if err != nil || rps <= 0 {
		return nil, eris.Errorf("invalid RATE_LIMIT_RPS value: %s", rpsValue)
	}
	cfg.RateLimitRPS = rps

	burstValue := getEnv("RATE_LIMIT_BURST", strconv.Itoa(defaultRateLimitBurst))
	burst, err := strconv.Atoi(burstValue)
	if err != nil || burst <= 0 {
		return nil, eris.Errorf("invalid RATE_LIMIT_BURST value: %s", burstValue)
	}
	cfg.RateLimitBurst = burst

	graceValue := getEnv("SHUTDOWN_GRACE", defaultShutdownGrace.String())
	grace, err := time.ParseDuration(graceValue)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid SHUTDOWN_GRACE value: %s", graceValue)
	}
	cfg.ShutdownGrace = grace

	return cfg, nil
}

// IsProduction reports whether ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, productionEnvironment)
}

// IsDevelopment reports whether ENV is development.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, defaultEnvironment)
}

// UsesSupabaseStorage reports whether uploads go to Supabase Storage rather than the local directory.
func (c *Config) UsesSupabaseStorage() bool {
	return c.SupabaseURL != "" && c.SupabaseServiceKey != ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
