package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName          = "CrashPayments"
	defaultAppEnv           = "development"
	defaultPort             = "8080"
	defaultLogLevel         = "info"
	defaultShutdownDelay    = 10 * time.Second
	defaultIdempotencyTTL   = 24 * time.Hour
	defaultGatewayTimeout   = 15 * time.Second
	defaultGatewayBaseURL   = "https://api.flutterwave.com/v3"
	defaultCurrency         = "KES"
	defaultInitiateRate     = 10
	idemTTLSecondsEnvVar    = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar        = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar   = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar  = "SHUTDOWN_TIMEOUT"
	gatewaySecondsEnvVar    = "GATEWAY_TIMEOUT_SECONDS"
	gatewayDurationEnvVar   = "GATEWAY_TIMEOUT"
	initiateRateLimitEnvVar = "INITIATE_RATE_LIMIT"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	// BaseURL is the service's own public base URL. It doubles as the auth admin API
	// host and as the redirect fallback when a caller sends no Origin.
	BaseURL        string
	ServiceRoleKey string
	JWTSecret      string

	GatewayBaseURL    string
	GatewaySecretKey  string
	WebhookSecret     string
	GatewayTimeout    time.Duration
	ExpectedCurrency  string
	InitiateRateLimit int
}

// Load reads configuration values from the environment and populates a Config instance.
// Payment secrets are optional here: their absence is handled per request so a
// misconfigured deployment still answers webhooks.
func Load() (Config, error) {
	cfg := Config{
		AppName:           getEnv("APP_NAME", defaultAppName),
		AppEnv:            getEnv("APP_ENV", defaultAppEnv),
		Port:              getEnv("PORT", defaultPort),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		ShutdownPeriod:    defaultShutdownDelay,
		IdempotencyTTL:    defaultIdempotencyTTL,
		BaseURL:           strings.TrimSpace(os.Getenv("SUPABASE_URL")),
		ServiceRoleKey:    os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		JWTSecret:         os.Getenv("SUPABASE_JWT_SECRET"),
		GatewayBaseURL:    getEnv("FLUTTERWAVE_BASE_URL", defaultGatewayBaseURL),
		GatewaySecretKey:  os.Getenv("FLUTTERWAVE_SECRET_KEY"),
		WebhookSecret:     os.Getenv("FLUTTERWAVE_WEBHOOK_SECRET"),
		GatewayTimeout:    defaultGatewayTimeout,
		ExpectedCurrency:  strings.ToUpper(getEnv("EXPECTED_CURRENCY", defaultCurrency)),
		InitiateRateLimit: defaultInitiateRate,
	}

	var err error
	if cfg.ShutdownPeriod, err = durationFromEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationFromEnv(idemTTLSecondsEnvVar, idemTTLDurEnvVar, cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.GatewayTimeout, err = durationFromEnv(gatewaySecondsEnvVar, gatewayDurationEnvVar, cfg.GatewayTimeout); err != nil {
		return Config{}, err
	}

	if v := os.Getenv(initiateRateLimitEnvVar); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", initiateRateLimitEnvVar, err)
		}
		cfg.InitiateRateLimit = n
	}

	if cfg.DatabaseURL == "" && !cfg.IsDev() {
		return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the service runs in a local/development environment where
// in-memory backends are acceptable.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func durationFromEnv(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
