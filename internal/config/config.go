package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultMaxBodySizeBytes = 10 * 1024 * 1024
	defaultRequestTimeout   = 30
)

// Config captures runtime configuration sourced from environment variables.
type Config struct {
	Environment string
	ListenAddr  string // gateway front: HTTP + WebSocket upgrades
	AdminAddr   string // rule-mutation API, health, metrics

	// Proxy limits and target.
	ProxyToURL         string
	MaxBodySizeBytes   int64
	RequestTimeoutSecs int

	// Firewall: static allow lists and the unrestricted bypass.
	AllowUnrestricted bool
	AllowIPs          []string
	AllowAccounts     []string

	// Event delivery.
	WebhookURLs []string // JSON event POST targets
	AlertURLs   []string // shoutrrr operator alert targets

	// Persistence for granted rules; empty disables the archive.
	DatabasePath string

	// Admin API credentials.
	JWTSecret         string
	AdminPasswordHash string // bcrypt hash; empty disables token issuance
}

// Load reads env vars and falls back to defaults so the gateway can boot
// with only a proxy target configured.
func Load() (Config, error) {
	cfg := Config{
		Environment:        getEnv("RPCWALL_ENV", "development"),
		ListenAddr:         getEnv("RPCWALL_LISTEN_ADDR", ":8545"),
		AdminAddr:          getEnv("RPCWALL_ADMIN_ADDR", "127.0.0.1:8580"),
		ProxyToURL:         getEnv("RPCWALL_PROXY_TO_URL", "http://127.0.0.1:9933"),
		MaxBodySizeBytes:   getEnvInt64("RPCWALL_MAX_BODY_SIZE_BYTES", defaultMaxBodySizeBytes),
		RequestTimeoutSecs: getEnvInt("RPCWALL_REQUEST_TIMEOUT_SECS", defaultRequestTimeout),
		AllowUnrestricted:  getEnvBool("RPCWALL_ALLOW_UNRESTRICTED", false),
		AllowIPs:           getEnvList("RPCWALL_ALLOW_IPS"),
		AllowAccounts:      getEnvList("RPCWALL_ALLOW_ACCOUNTS"),
		WebhookURLs:        getEnvList("RPCWALL_WEBHOOK_URLS"),
		AlertURLs:          getEnvList("RPCWALL_ALERT_URLS"),
		DatabasePath:       getEnv("RPCWALL_DB_PATH", filepath.Join("data", "rpcwall.db")),
		JWTSecret:          getEnv("RPCWALL_JWT_SECRET", ""),
		AdminPasswordHash:  getEnv("RPCWALL_ADMIN_PASSWORD_HASH", ""),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	if cfg.DatabasePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
			return Config{}, fmt.Errorf("ensure data directory: %w", err)
		}
	}

	return cfg, nil
}

// RequestTimeout returns the proxy deadline as a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSecs) * time.Second
}

func (c Config) validate() error {
	u, err := url.Parse(c.ProxyToURL)
	if err != nil {
		return fmt.Errorf("parse proxy target: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("proxy target scheme %q not supported", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("proxy target %q missing host", c.ProxyToURL)
	}

	if c.MaxBodySizeBytes <= 0 {
		return fmt.Errorf("max body size must be positive, got %d", c.MaxBodySizeBytes)
	}
	if c.RequestTimeoutSecs <= 0 {
		return fmt.Errorf("request timeout must be positive, got %d", c.RequestTimeoutSecs)
	}

	for _, raw := range c.WebhookURLs {
		wu, err := url.Parse(raw)
		if err != nil || (wu.Scheme != "http" && wu.Scheme != "https") {
			return fmt.Errorf("webhook url %q must be http or https", raw)
		}
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}

	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return n
		}
	}

	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}

	return fallback
}

func getEnvList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}
