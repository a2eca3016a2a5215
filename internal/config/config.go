// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, storage, scheduling, AI, search, caching, notification and
// observability settings.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS and the
// shared secret that grants the admin role.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
	AdminToken string // ADMIN_TOKEN; empty disables admin endpoints
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-vote-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// AIConfig configures the OpenAI-compatible completion endpoint.
type AIConfig struct {
	BaseURL    string        // AI_BASE_URL; empty uses the provider default
	APIKey     string        // AI_API_KEY; empty disables AI (stub generator)
	Model      string        // AI_MODEL
	Timeout    time.Duration // AI_TIMEOUT, per call
	DailyQuota int           // AI_DAILY_QUOTA, per user per day
}

// SearchConfig configures the external guide search engine.
type SearchConfig struct {
	MeiliURL    string // MEILI_URL; empty keeps search in memory only
	MeiliAPIKey string // MEILI_API_KEY
	IndexUID    string // MEILI_GUIDES_INDEX
}

// CacheConfig configures the read-side cache.
type CacheConfig struct {
	RedisURL string        // REDIS_URL; empty disables caching
	TTL      time.Duration // CACHE_TTL
	Prefix   string        // CACHE_PREFIX
}

// SchedulerConfig configures periodic background sweeps.
type SchedulerConfig struct {
	ClosureCron string         // CLOSURE_CRON, standard 5-field expression
	ReindexCron string         // REINDEX_CRON; "off" disables periodic reindex
	Location    *time.Location // TIMEZONE; defines "today" for date rules
}

// WorkerConfig sizes a bounded worker pool.
type WorkerConfig struct {
	Workers int
	Queue   int
}

// SMTPConfig configures e-mail notifications.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// IsConfigured reports whether enough settings exist to send mail.
func (s SMTPConfig) IsConfigured() bool {
	return s.Host != "" && s.From != ""
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Storage
	DatabaseURL string // sqlite://path, file path, or postgres://...

	// Votes
	VoteDefaultDays int // deadline offset for DEFAULT closure

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	AI        AIConfig
	Search    SearchConfig
	Cache     CacheConfig
	Scheduler SchedulerConfig

	// Pools
	Background WorkerConfig // BACKGROUND_WORKERS / BACKGROUND_QUEUE
	Notify     WorkerConfig // NOTIFY_WORKERS / NOTIFY_QUEUE

	// Notifications
	SMTP           SMTPConfig
	PushWebhookURL string // PUSH_WEBHOOK_URL; empty disables push

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		DatabaseURL:     getenv("DATABASE_URL", "sqlite://app.db"),
		VoteDefaultDays: getint("VOTE_DEFAULT_DAYS", 7),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
			AdminToken: strings.TrimSpace(os.Getenv("ADMIN_TOKEN")),
		},

		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		AI: AIConfig{
			BaseURL:    getenv("AI_BASE_URL", ""),
			APIKey:     getenv("AI_API_KEY", ""),
			Model:      getenv("AI_MODEL", "gpt-4o-mini"),
			Timeout:    getdur("AI_TIMEOUT", 20*time.Second),
			DailyQuota: getint("AI_DAILY_QUOTA", 3),
		},
		Search: SearchConfig{
			MeiliURL:    getenv("MEILI_URL", ""),
			MeiliAPIKey: getenv("MEILI_API_KEY", ""),
			IndexUID:    getenv("MEILI_GUIDES_INDEX", "guides"),
		},
		Cache: CacheConfig{
			RedisURL: getenv("REDIS_URL", ""),
			TTL:      getdur("CACHE_TTL", 5*time.Minute),
			Prefix:   getenv("CACHE_PREFIX", "cache:"),
		},
		Scheduler: SchedulerConfig{
			ClosureCron: getenv("CLOSURE_CRON", "0 0 * * *"),
			ReindexCron: getenv("REINDEX_CRON", "30 3 * * *"),
		},

		Background: WorkerConfig{
			Workers: getint("BACKGROUND_WORKERS", 4),
			Queue:   getint("BACKGROUND_QUEUE", 64),
		},
		Notify: WorkerConfig{
			Workers: getint("NOTIFY_WORKERS", 2),
			Queue:   getint("NOTIFY_QUEUE", 128),
		},

		SMTP: SMTPConfig{
			Host:     getenv("SMTP_HOST", ""),
			Port:     getint("SMTP_PORT", 587),
			Username: getenv("SMTP_USERNAME", ""),
			Password: getenv("SMTP_PASSWORD", ""),
			From:     getenv("SMTP_FROM", ""),
		},
		PushWebhookURL: getenv("PUSH_WEBHOOK_URL", ""),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-vote-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if strings.EqualFold(strings.TrimSpace(cfg.Scheduler.ReindexCron), "off") {
		cfg.Scheduler.ReindexCron = ""
	}
	loc, err := time.LoadLocation(getenv("TIMEZONE", "UTC"))
	if err != nil {
		return cfg, errors.New("TIMEZONE must be a valid IANA zone name")
	}
	cfg.Scheduler.Location = loc

	return cfg, cfg.validate()
}

func (cfg Config) validate() error {
	cronOK := func(expr string) bool {
		_, err := cron.ParseStandard(expr)
		return err == nil
	}
	levelOK := false
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
		levelOK = true
	}
	rules := []struct {
		ok  bool
		msg string
	}{
		{levelOK, "LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic"},
		{strings.TrimSpace(cfg.Port) != "", "PORT must not be empty"},
		{cfg.ReadTimeout > 0 && cfg.ReadHeaderTimeout > 0 && cfg.WriteTimeout > 0 && cfg.IdleTimeout > 0, "timeouts must be positive durations"},
		{cfg.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0"},
		{strings.TrimSpace(cfg.DatabaseURL) != "", "DATABASE_URL must not be empty"},
		{cfg.VoteDefaultDays >= 1, "VOTE_DEFAULT_DAYS must be >= 1"},
		{cfg.RateRPS >= 0, "RATE_RPS must be >= 0"},
		{cfg.RateBurst >= 1, "RATE_BURST must be >= 1"},
		{cfg.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0"},
		{cfg.IdempotencyTTL > 0, "IDEMPOTENCY_TTL must be > 0"},
		{cfg.AI.Timeout > 0, "AI_TIMEOUT must be > 0"},
		{cfg.AI.DailyQuota >= 1, "AI_DAILY_QUOTA must be >= 1"},
		{cfg.Cache.TTL > 0, "CACHE_TTL must be > 0"},
		{cronOK(cfg.Scheduler.ClosureCron), "CLOSURE_CRON must be a valid cron expression"},
		{cfg.Scheduler.ReindexCron == "" || cronOK(cfg.Scheduler.ReindexCron), "REINDEX_CRON must be a valid cron expression"},
		{cfg.Background.Workers >= 1 && cfg.Notify.Workers >= 1, "worker counts must be >= 1"},
		{cfg.Background.Queue >= 0 && cfg.Notify.Queue >= 0, "queue sizes must be >= 0"},
		{cfg.OTEL.SampleRatio >= 0 && cfg.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]"},
	}
	var errs []error
	for _, r := range rules {
		if !r.ok {
			errs = append(errs, errors.New(r.msg))
		}
	}
	return errors.Join(errs...)
}

// lookup parses the variable k with parse, returning def when it is unset,
// empty or malformed.
func lookup[T any](k string, def T, parse func(string) (T, error)) T {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return def
	}
	out, err := parse(v)
	if err != nil {
		return def
	}
	return out
}

func getenv(k, def string) string {
	return lookup(k, def, func(v string) (string, error) { return v, nil })
}

func getfloat(k string, def float64) float64 {
	return lookup(k, def, func(v string) (float64, error) { return strconv.ParseFloat(v, 64) })
}

func getint(k string, def int) int { return lookup(k, def, strconv.Atoi) }

func getdur(k string, def time.Duration) time.Duration { return lookup(k, def, time.ParseDuration) }

func getbool(k string, def bool) bool {
	return lookup(k, def, func(v string) (bool, error) {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true, nil
		case "0", "false", "no", "n", "off":
			return false, nil
		}
		return false, errors.New("not a boolean")
	})
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
