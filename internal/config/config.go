package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Env      string
	HTTPAddr string
	BaseURL  string

	DBDSN         string
	JWTSecret     string
	EncryptionKey []byte

	LogLevel string

	LoginRateLimitRPM  int
	RedeemRateLimitRPM int

	InviteTTLHours int
	SessionDays    int

	NotifyURL       string
	NotifyTimeoutMS int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Env = strings.TrimSpace(os.Getenv("JT_ENV"))
	if cfg.Env == "" {
		return nil, fmt.Errorf("JT_ENV is required")
	}
	if cfg.Env != "dev" && cfg.Env != "prod" {
		return nil, fmt.Errorf("JT_ENV must be one of: dev, prod (got: %s)", cfg.Env)
	}

	cfg.HTTPAddr = getEnvOrDefault("JT_HTTP_ADDR", ":8080")

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("JT_BASE_URL")), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("JT_BASE_URL is required")
	}

	cfg.DBDSN = strings.TrimSpace(os.Getenv("JT_DB_DSN"))
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("JT_DB_DSN is required")
	}

	cfg.JWTSecret = os.Getenv("JT_JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JT_JWT_SECRET is required")
	}
	if cfg.Env == "prod" && len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("JT_JWT_SECRET must be at least 32 characters (currently %d)", len(cfg.JWTSecret))
	}

	encKey := strings.TrimSpace(os.Getenv("JT_ENCRYPTION_KEY"))
	if encKey == "" {
		return nil, fmt.Errorf("JT_ENCRYPTION_KEY is required")
	}
	key, err := base64.StdEncoding.DecodeString(encKey)
	if err != nil {
		return nil, fmt.Errorf("JT_ENCRYPTION_KEY must be base64-encoded: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("JT_ENCRYPTION_KEY must decode to 32 bytes (got: %d)", len(key))
	}
	cfg.EncryptionKey = key

	cfg.LogLevel = getEnvOrDefault("JT_LOG_LEVEL", "info")
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("JT_LOG_LEVEL must be one of: debug, info, warn, error (got: %s)", cfg.LogLevel)
	}

	cfg.LoginRateLimitRPM, err = getEnvIntOrDefault("JT_LOGIN_RATE_LIMIT_RPM", 10)
	if err != nil {
		return nil, err
	}

	cfg.RedeemRateLimitRPM, err = getEnvIntOrDefault("JT_REDEEM_RATE_LIMIT_RPM", 20)
	if err != nil {
		return nil, err
	}

	cfg.InviteTTLHours, err = getEnvIntOrDefault("JT_INVITE_TTL_HOURS", 48)
	if err != nil {
		return nil, err
	}
	if cfg.InviteTTLHours <= 0 {
		return nil, fmt.Errorf("JT_INVITE_TTL_HOURS must be positive (got: %d)", cfg.InviteTTLHours)
	}

	cfg.SessionDays, err = getEnvIntOrDefault("JT_SESSION_DAYS", 7)
	if err != nil {
		return nil, err
	}

	cfg.NotifyURL = strings.TrimSpace(os.Getenv("JT_NOTIFY_URL"))

	cfg.NotifyTimeoutMS, err = getEnvIntOrDefault("JT_NOTIFY_TIMEOUT_MS", 2000)
	if err != nil {
		return nil, err
	}
	if cfg.NotifyTimeoutMS <= 0 || cfg.NotifyTimeoutMS > 30000 {
		return nil, fmt.Errorf("JT_NOTIFY_TIMEOUT_MS must be between 1 and 30000 (got: %d)", cfg.NotifyTimeoutMS)
	}

	return cfg, nil
}

// IsDev returns true if running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// RedactedValues returns a map of config values with secrets redacted.
func (c *Config) RedactedValues() map[string]string {
	return map[string]string{
		"JT_ENV":                   c.Env,
		"JT_HTTP_ADDR":             c.HTTPAddr,
		"JT_BASE_URL":              c.BaseURL,
		"JT_DB_DSN":                redactDSN(c.DBDSN),
		"JT_JWT_SECRET":            "[REDACTED]",
		"JT_ENCRYPTION_KEY":        "[REDACTED]",
		"JT_LOG_LEVEL":             c.LogLevel,
		"JT_LOGIN_RATE_LIMIT_RPM":  fmt.Sprintf("%d", c.LoginRateLimitRPM),
		"JT_REDEEM_RATE_LIMIT_RPM": fmt.Sprintf("%d", c.RedeemRateLimitRPM),
		"JT_INVITE_TTL_HOURS":      fmt.Sprintf("%d", c.InviteTTLHours),
		"JT_SESSION_DAYS":          fmt.Sprintf("%d", c.SessionDays),
		"JT_NOTIFY_URL":            c.NotifyURL,
		"JT_NOTIFY_TIMEOUT_MS":     fmt.Sprintf("%d", c.NotifyTimeoutMS),
	}
}

func redactDSN(dsn string) string {
	if start := strings.Index(dsn, "://"); start != -1 {
		if end := strings.Index(dsn[start+3:], "@"); end != -1 {
			return dsn[:start+3] + "[REDACTED]" + dsn[start+3+end:]
		}
	}
	return dsn
}

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer (got: %q)", key, value)
	}
	return parsed, nil
}
