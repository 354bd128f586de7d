// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes the agent's runtime
// knobs (heartbeat, token rotation, delivery gating, notification cooldowns)
// next to the admin server, storage, cache and observability settings.
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
	AdminToken string // ADMIN_TOKEN; empty disables admin auth
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
	Environment string  // OTEL_DEPLOYMENT_ENVIRONMENT (e.g. "prod")
	Instance    string  // OTEL_SERVICE_INSTANCE_ID; host:pid when empty
}

// RedisConfig points the shared TTL cache at Redis. An empty Addr keeps the
// cache process-local.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MarketConfig configures the marketplace endpoints and client pacing.
type MarketConfig struct {
	WSURL     string        // WS_URL
	BaseURL   string        // MARKET_BASE_URL
	UserAgent string        // USER_AGENT
	Timeout   time.Duration // MARKET_TIMEOUT per RPC
	RPS       float64       // MARKET_RPS per account
}

// RuntimeConfig holds the per-account runtime knobs.
type RuntimeConfig struct {
	HeartbeatInterval     time.Duration
	HeartbeatTimeout      time.Duration
	TokenRefreshInterval  time.Duration
	TokenRetryInterval    time.Duration
	MaxConnectionFailures int
	ExtendedBackoff       time.Duration
	PauseMinutes          int
	PauseSweepInterval    time.Duration
	DeliveryCooldown      time.Duration
	OrderConfirmCooldown  time.Duration
	ReleaseDelay          time.Duration
	LockGCAge             time.Duration
	NotifyCooldown        time.Duration
	NotifyTokenCooldown   time.Duration
}

// TriggerConfig lists the phrases that classify inbound messages.
type TriggerConfig struct {
	AutoDelivery  []string // AUTO_DELIVERY_TRIGGERS
	FreeShipping  []string // FREE_SHIPPING_TITLES
	Ignorable     []string // IGNORABLE_MESSAGES
	ExternalReply ExternalReplyConfig
}

// ExternalReplyConfig configures the optional external reply policy.
type ExternalReplyConfig struct {
	Enabled bool
	URL     string
	Timeout time.Duration
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
	ShutdownTimeout   time.Duration

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Storage
	DBPath        string // SQLite path
	ItemCacheSize int    // LRU entries in front of the items table
	Redis         RedisConfig

	// Rate limiting (admin API)
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	Market   MarketConfig
	Runtime  RuntimeConfig
	Triggers TriggerConfig

	// Observability
	OTEL OTELConfig
}

// Default trigger phrases observed on the marketplace.
var (
	DefaultAutoDeliveryTriggers = []string{
		"[我已付款，等待你发货]",
		"[已付款，待发货]",
		"[记得及时发货]",
		"我已付款，等待你发货",
	}
	DefaultFreeShippingTitles = []string{"我已小刀，待刀成"}
	DefaultIgnorable          = []string{
		"[我已拍下，待付款]",
		"[你关闭了订单，钱款已原路退返]",
		"[买家确认收货，交易成功]",
		"[你已确认收货，交易成功]",
		"[你已发货]",
		"[你已发货，请等待买家确认收货]",
		"快给ta一个评价吧~",
		"快给ta一个评价吧～",
		"发来一条消息",
		"发来一条新消息",
	}
)

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
		ShutdownTimeout:   getdur("SHUTDOWN_TIMEOUT", 15*time.Second),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Storage
		DBPath:        getenv("DB_PATH", "xianyu.db"),
		ItemCacheSize: getint("ITEM_CACHE_SIZE", 1024),
		Redis: RedisConfig{
			Addr:     getenv("REDIS_ADDR", ""),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getint("REDIS_DB", 0),
		},

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
			AdminToken: getenv("ADMIN_TOKEN", ""),
		},

		Market: MarketConfig{
			WSURL:     getenv("WS_URL", "wss://wss-goofish.dingtalk.com/"),
			BaseURL:   getenv("MARKET_BASE_URL", "https://h5api.m.goofish.com/h5/"),
			UserAgent: getenv("USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36"),
			Timeout:   getdur("MARKET_TIMEOUT", 20*time.Second),
			RPS:       getfloat("MARKET_RPS", 2.0),
		},

		Runtime: RuntimeConfig{
			HeartbeatInterval:     getdur("HEARTBEAT_INTERVAL", 15*time.Second),
			HeartbeatTimeout:      getdur("HEARTBEAT_TIMEOUT", 5*time.Second),
			TokenRefreshInterval:  getdur("TOKEN_REFRESH_INTERVAL", time.Hour),
			TokenRetryInterval:    getdur("TOKEN_RETRY_INTERVAL", 5*time.Minute),
			MaxConnectionFailures: getint("MAX_CONNECTION_FAILURES", 5),
			ExtendedBackoff:       getdur("EXTENDED_BACKOFF", 30*time.Minute),
			PauseMinutes:          getint("PAUSE_MINUTES", 10),
			PauseSweepInterval:    getdur("PAUSE_SWEEP_INTERVAL", 5*time.Minute),
			DeliveryCooldown:      getdur("DELIVERY_COOLDOWN", 10*time.Minute),
			OrderConfirmCooldown:  getdur("ORDER_CONFIRM_COOLDOWN", 10*time.Minute),
			ReleaseDelay:          time.Duration(getint("RELEASE_DELAY_MINUTES", 10)) * time.Minute,
			LockGCAge:             getdur("LOCK_GC_AGE", 24*time.Hour),
			NotifyCooldown:        getdur("NOTIFICATION_COOLDOWN", 5*time.Minute),
			NotifyTokenCooldown:   getdur("NOTIFICATION_TOKEN_COOLDOWN", 3*time.Hour),
		},

		Triggers: TriggerConfig{
			AutoDelivery: splitCSVDefault("AUTO_DELIVERY_TRIGGERS", DefaultAutoDeliveryTriggers),
			FreeShipping: splitCSVDefault("FREE_SHIPPING_TITLES", DefaultFreeShippingTitles),
			Ignorable:    splitCSVDefault("IGNORABLE_MESSAGES", DefaultIgnorable),
			ExternalReply: ExternalReplyConfig{
				Enabled: getbool("EXTERNAL_REPLY_ENABLED", false),
				URL:     getenv("EXTERNAL_REPLY_URL", ""),
				Timeout: getdur("EXTERNAL_REPLY_TIMEOUT", 10*time.Second),
			},
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "xianyu-agent"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
			Environment: getenv("OTEL_DEPLOYMENT_ENVIRONMENT", ""),
			Instance:    getenv("OTEL_SERVICE_INSTANCE_ID", ""),
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
	if cfg.ItemCacheSize < 1 {
		return cfg, errors.New("ITEM_CACHE_SIZE must be >= 1")
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
	if !strings.HasPrefix(cfg.Market.WSURL, "ws://") && !strings.HasPrefix(cfg.Market.WSURL, "wss://") {
		return cfg, errors.New("WS_URL must be a ws:// or wss:// URL")
	}
	if cfg.Market.Timeout <= 0 {
		return cfg, errors.New("MARKET_TIMEOUT must be > 0")
	}
	if cfg.Market.RPS <= 0 {
		return cfg, errors.New("MARKET_RPS must be > 0")
	}
	rt := cfg.Runtime
	if rt.HeartbeatInterval <= 0 || rt.HeartbeatTimeout <= 0 {
		return cfg, errors.New("HEARTBEAT_INTERVAL and HEARTBEAT_TIMEOUT must be > 0")
	}
	if rt.TokenRefreshInterval <= 0 || rt.TokenRetryInterval <= 0 {
		return cfg, errors.New("TOKEN_REFRESH_INTERVAL and TOKEN_RETRY_INTERVAL must be > 0")
	}
	if rt.MaxConnectionFailures < 1 {
		return cfg, errors.New("MAX_CONNECTION_FAILURES must be >= 1")
	}
	if rt.ExtendedBackoff < 0 || rt.DeliveryCooldown < 0 || rt.OrderConfirmCooldown < 0 || rt.ReleaseDelay < 0 {
		return cfg, errors.New("backoff, cooldown and release delay must be >= 0")
	}
	if rt.PauseMinutes < 0 {
		return cfg, errors.New("PAUSE_MINUTES must be >= 0")
	}
	if rt.PauseSweepInterval <= 0 || rt.LockGCAge <= 0 {
		return cfg, errors.New("PAUSE_SWEEP_INTERVAL and LOCK_GC_AGE must be > 0")
	}
	if len(cfg.Triggers.AutoDelivery) == 0 {
		return cfg, errors.New("AUTO_DELIVERY_TRIGGERS must not be empty")
	}
	if cfg.Triggers.ExternalReply.Enabled && strings.TrimSpace(cfg.Triggers.ExternalReply.URL) == "" {
		return cfg, errors.New("EXTERNAL_REPLY_URL is required when EXTERNAL_REPLY_ENABLED=true")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

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

// getdur accepts Go durations ("15s") and bare integers as seconds ("3600").
func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return time.Duration(n) * time.Second
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

// splitCSVDefault splits the "|"-separated list in env k. Phrases contain
// full-width commas, so the separator differs from splitCSV.
func splitCSVDefault(k string, def []string) []string {
	v, ok := os.LookupEnv(k)
	if !ok || strings.TrimSpace(v) == "" {
		out := make([]string, len(def))
		copy(out, def)
		return out
	}
	var out []string
	for _, p := range strings.Split(v, "|") {
		if t := strings.TrimSpace(p); t != "" {
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
