// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, fanout and viewport
// tuning, queue behavior, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "livingmap-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
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

	// App
	DBPath string // SQLite path

	// Prayers
	PrayerArchiveTTL time.Duration // discoverability window before soft archival
	MaxContentRunes  int           // prayer body cap

	// Viewport
	ViewportPadding      float64 // fractional bbox padding per axis [0,1]
	StrengthHalfLifeDays float64 // rendering emphasis half-life, days
	ClusterMaxIndividual int     // density threshold before clustering kicks in

	// Notification fanout
	FanoutBatchCap       int           // max recipients per event
	FanoutMaxRadiusKm    float64       // candidate discovery radius
	NotificationCooldown time.Duration // per (user, type) send window

	// Retry queue
	QueueMaxRetries     int           // attempts before dead-lettering
	QueueStaleTimeout   time.Duration // processing items older than this reset
	WorkerPollInterval  time.Duration // fanout worker poll cadence
	WorkerBatchSize     int           // items claimed per poll
	MaintenanceInterval time.Duration // stale-reset / purge / archive cadence

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

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

		// App
		DBPath: getenv("DB_PATH", "app.db"),

		// Prayers
		PrayerArchiveTTL: getdur("PRAYER_ARCHIVE_TTL", 30*24*time.Hour),
		MaxContentRunes:  getint("MAX_CONTENT_RUNES", 2000),

		// Viewport
		ViewportPadding:      getfloat("VIEWPORT_PADDING", 0.2),
		StrengthHalfLifeDays: getfloat("STRENGTH_HALF_LIFE_DAYS", 30),
		ClusterMaxIndividual: getint("CLUSTER_MAX_INDIVIDUAL", 50),

		// Notification fanout
		FanoutBatchCap:       getint("FANOUT_BATCH_CAP", 100),
		FanoutMaxRadiusKm:    getfloat("FANOUT_MAX_RADIUS_KM", 48),
		NotificationCooldown: getdur("NOTIFICATION_COOLDOWN", time.Hour),

		// Retry queue
		QueueMaxRetries:     getint("QUEUE_MAX_RETRIES", 3),
		QueueStaleTimeout:   getdur("QUEUE_STALE_TIMEOUT", 30*time.Minute),
		WorkerPollInterval:  getdur("WORKER_POLL_INTERVAL", 5*time.Second),
		WorkerBatchSize:     getint("WORKER_BATCH_SIZE", 10),
		MaintenanceInterval: getdur("MAINTENANCE_INTERVAL", 10*time.Minute),

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
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "livingmap-backend"),
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

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.PrayerArchiveTTL <= 0 {
		return cfg, errors.New("PRAYER_ARCHIVE_TTL must be > 0")
	}
	if cfg.MaxContentRunes < 1 {
		return cfg, errors.New("MAX_CONTENT_RUNES must be >= 1")
	}
	if cfg.ViewportPadding < 0 || cfg.ViewportPadding > 1 {
		return cfg, errors.New("VIEWPORT_PADDING must be between 0 and 1")
	}
	if cfg.StrengthHalfLifeDays <= 0 {
		return cfg, errors.New("STRENGTH_HALF_LIFE_DAYS must be > 0")
	}
	if cfg.ClusterMaxIndividual < 1 {
		return cfg, errors.New("CLUSTER_MAX_INDIVIDUAL must be >= 1")
	}
	if cfg.FanoutBatchCap < 1 {
		return cfg, errors.New("FANOUT_BATCH_CAP must be >= 1")
	}
	if cfg.FanoutMaxRadiusKm <= 0 {
		return cfg, errors.New("FANOUT_MAX_RADIUS_KM must be > 0")
	}
	if cfg.NotificationCooldown <= 0 {
		return cfg, errors.New("NOTIFICATION_COOLDOWN must be > 0")
	}
	if cfg.QueueMaxRetries < 1 {
		return cfg, errors.New("QUEUE_MAX_RETRIES must be >= 1")
	}
	if cfg.QueueStaleTimeout <= 0 || cfg.WorkerPollInterval <= 0 || cfg.MaintenanceInterval <= 0 {
		return cfg, errors.New("queue intervals must be positive durations")
	}
	if cfg.WorkerBatchSize < 1 {
		return cfg, errors.New("WORKER_BATCH_SIZE must be >= 1")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	// if cfg.APIBasePath == "" || cfg.APIBasePath[0] != '/' {
	// 	return cfg, errors.New("API_BASE_PATH must start with '/'")
	// }

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
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
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
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
