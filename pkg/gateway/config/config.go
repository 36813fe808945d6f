package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr string

	// Upstream provider selection and credentials.
	Provider  string // "openai" or "gemini"
	OpenAIKey string
	GeminiKey string
	Model     string

	// Connection info returned by GET /v1/chat for realtime clients.
	RealtimeURL   string
	RealtimeModel string

	// Optional SOCKS5 address for upstream egress.
	SocksAddr string

	// Request-shape limits.
	MaxBodyBytes int64
	MaxMessages  int

	// Operational defaults.
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	HandlerTimeout      time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                envOr("NORA_GATEWAY_ADDR", ":8080"),
		Provider:            envOr("NORA_GATEWAY_PROVIDER", "openai"),
		OpenAIKey:           strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		GeminiKey:           strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		Model:               envOr("NORA_GATEWAY_MODEL", ""),
		RealtimeURL:         envOr("NORA_GATEWAY_REALTIME_URL", "wss://api.openai.com/v1/realtime"),
		RealtimeModel:       envOr("NORA_GATEWAY_REALTIME_MODEL", "gpt-4o-realtime-preview-2024-10-01"),
		SocksAddr:           envOr("NORA_GATEWAY_SOCKS_ADDR", ""),
		MaxBodyBytes:        envInt64Or("NORA_GATEWAY_MAX_BODY_BYTES", 1<<20), // 1 MiB
		MaxMessages:         envIntOr("NORA_GATEWAY_MAX_MESSAGES", 64),
		ReadHeaderTimeout:   envDurationOr("NORA_GATEWAY_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:         envDurationOr("NORA_GATEWAY_READ_TIMEOUT", 30*time.Second),
		HandlerTimeout:      envDurationOr("NORA_GATEWAY_TOTAL_REQUEST_TIMEOUT", 2*time.Minute),
		ShutdownGracePeriod: envDurationOr("NORA_GATEWAY_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	switch cfg.Provider {
	case "openai", "gemini":
	default:
		return Config{}, fmt.Errorf("NORA_GATEWAY_PROVIDER must be one of openai|gemini")
	}

	if cfg.MaxBodyBytes <= 0 {
		return Config{}, fmt.Errorf("NORA_GATEWAY_MAX_BODY_BYTES must be > 0")
	}
	if cfg.MaxMessages <= 0 {
		return Config{}, fmt.Errorf("NORA_GATEWAY_MAX_MESSAGES must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("NORA_GATEWAY_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("NORA_GATEWAY_READ_TIMEOUT must be > 0")
	}
	if cfg.HandlerTimeout <= 0 {
		return Config{}, fmt.Errorf("NORA_GATEWAY_TOTAL_REQUEST_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("NORA_GATEWAY_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
