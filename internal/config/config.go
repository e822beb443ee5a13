// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes agent behavior,
// text-generation provider, Telegram transport, the ops HTTP server, rate
// limiting, logging, and observability settings.
//
// There is no global instance: cmd/agent loads one Config at start-up and
// passes the relevant parts into each constructor.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Telegram transport modes.
const (
	TelegramPolling = "polling"
	TelegramWebhook = "webhook"
)

// minReplyChars mirrors the policy gate's floor; below it every reply is
// disallowed, which Load reports as a warning rather than an error.
const minReplyChars = 100

// AgentConfig defines the assistant's identity and pipeline sizing.
type AgentConfig struct {
	Name               string // AGENT_NAME
	MaxContextMessages int    // MAX_CONTEXT_MESSAGES
	MaxReplyChars      int    // MAX_REPLY_CHARS (policy floor 100)
	EnableVoiceNotes   bool   // ENABLE_VOICE_NOTES (reserved)
	QueueCapacity      int    // QUEUE_CAPACITY
	WorkerCount        int    // WORKER_COUNT
	ProfileFactsLimit  int    // PROFILE_FACTS_LIMIT
}

// LLMConfig selects and configures the text-generation provider.
type LLMConfig struct {
	Provider      string        // LLM_PROVIDER: openai|gemini
	OpenAIKey     string        // OPENAI_API_KEY
	OpenAIModel   string        // OPENAI_MODEL
	OpenAIBaseURL string        // OPENAI_BASE_URL
	GeminiKey     string        // GEMINI_API_KEY
	GeminiModel   string        // GEMINI_MODEL
	Timeout       time.Duration // LLM_TIMEOUT, per attempt
	MaxAttempts   int           // LLM_MAX_ATTEMPTS
}

// TelegramConfig defines the Bot API transport.
type TelegramConfig struct {
	Token         string        // TELEGRAM_BOT_TOKEN
	APIBaseURL    string        // TELEGRAM_API_BASE_URL
	Mode          string        // TELEGRAM_MODE: polling|webhook
	WebhookSecret string        // TELEGRAM_WEBHOOK_SECRET
	PollTimeout   time.Duration // TELEGRAM_POLL_TIMEOUT
}

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
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-chat-agent")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	Agent    AgentConfig
	LLM      LLMConfig
	Telegram TelegramConfig

	// Storage
	DBPath string // SQLite path

	// Ops HTTP server
	HTTPEnabled       bool          // HTTP_ENABLED
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test
	APIBasePath       string        // base path for API routes
	AdminToken        string        // bearer token for the ops API; empty disables auth

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

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
		Agent: AgentConfig{
			Name:               strings.TrimSpace(getenv("AGENT_NAME", "Orion")),
			MaxContextMessages: getint("MAX_CONTEXT_MESSAGES", 25),
			MaxReplyChars:      getint("MAX_REPLY_CHARS", 1600),
			EnableVoiceNotes:   getbool("ENABLE_VOICE_NOTES", false),
			QueueCapacity:      getint("QUEUE_CAPACITY", 200),
			WorkerCount:        getint("WORKER_COUNT", 3),
			ProfileFactsLimit:  getint("PROFILE_FACTS_LIMIT", 8),
		},
		LLM: LLMConfig{
			Provider:      strings.ToLower(strings.TrimSpace(getenv("LLM_PROVIDER", "openai"))),
			OpenAIKey:     strings.TrimSpace(getenv("OPENAI_API_KEY", "")),
			OpenAIModel:   getenv("OPENAI_MODEL", "gpt-4.1-mini"),
			OpenAIBaseURL: getenv("OPENAI_BASE_URL", ""),
			GeminiKey:     strings.TrimSpace(getenv("GEMINI_API_KEY", "")),
			GeminiModel:   getenv("GEMINI_MODEL", "gemini-2.0-flash"),
			Timeout:       getdur("LLM_TIMEOUT", 60*time.Second),
			MaxAttempts:   getint("LLM_MAX_ATTEMPTS", 4),
		},
		Telegram: TelegramConfig{
			Token:         strings.TrimSpace(getenv("TELEGRAM_BOT_TOKEN", "")),
			APIBaseURL:    getenv("TELEGRAM_API_BASE_URL", "https://api.telegram.org"),
			Mode:          strings.ToLower(strings.TrimSpace(getenv("TELEGRAM_MODE", TelegramPolling))),
			WebhookSecret: getenv("TELEGRAM_WEBHOOK_SECRET", ""),
			PollTimeout:   getdur("TELEGRAM_POLL_TIMEOUT", 30*time.Second),
		},

		DBPath: getenv("DB_PATH", "./data/agent.db"),

		HTTPEnabled:       getbool("HTTP_ENABLED", true),
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),
		APIBasePath:       normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),
		AdminToken:        strings.TrimSpace(getenv("ADMIN_TOKEN", "")),

		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-chat-agent"),
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
	if cfg.Agent.Name == "" {
		cfg.Agent.Name = "Orion"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if cfg.Agent.MaxContextMessages < 0 {
		return cfg, errors.New("MAX_CONTEXT_MESSAGES must be >= 0")
	}
	if cfg.Agent.MaxReplyChars <= 0 {
		return cfg, errors.New("MAX_REPLY_CHARS must be > 0")
	}
	if cfg.Agent.QueueCapacity < 1 {
		return cfg, errors.New("QUEUE_CAPACITY must be >= 1")
	}
	if cfg.Agent.WorkerCount < 1 {
		return cfg, errors.New("WORKER_COUNT must be >= 1")
	}
	if cfg.Agent.ProfileFactsLimit < 1 {
		return cfg, errors.New("PROFILE_FACTS_LIMIT must be >= 1")
	}
	switch cfg.LLM.Provider {
	case "openai", "gemini":
	default:
		return cfg, fmt.Errorf("LLM_PROVIDER must be openai or gemini, got %q", cfg.LLM.Provider)
	}
	if cfg.LLM.Timeout <= 0 {
		return cfg, errors.New("LLM_TIMEOUT must be a positive duration")
	}
	if cfg.LLM.MaxAttempts < 1 {
		return cfg, errors.New("LLM_MAX_ATTEMPTS must be >= 1")
	}
	switch cfg.Telegram.Mode {
	case TelegramPolling:
	case TelegramWebhook:
		if !cfg.HTTPEnabled {
			return cfg, errors.New("TELEGRAM_MODE=webhook requires HTTP_ENABLED")
		}
	default:
		return cfg, errors.New("TELEGRAM_MODE must be polling or webhook")
	}
	if cfg.Telegram.PollTimeout < time.Second {
		return cfg, errors.New("TELEGRAM_POLL_TIMEOUT must be >= 1s")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
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
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// Warnings lists settings that load but will make the agent misbehave.
func (c Config) Warnings() []string {
	var out []string
	if c.Agent.MaxReplyChars < minReplyChars {
		out = append(out, fmt.Sprintf("MAX_REPLY_CHARS=%d is below %d; every reply will be withheld", c.Agent.MaxReplyChars, minReplyChars))
	}
	if c.Agent.EnableVoiceNotes {
		out = append(out, "ENABLE_VOICE_NOTES is reserved and has no effect")
	}
	if c.Telegram.Mode == TelegramWebhook && c.Telegram.WebhookSecret == "" {
		out = append(out, "TELEGRAM_WEBHOOK_SECRET is empty; webhook requests are not authenticated")
	}
	return out
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
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
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
