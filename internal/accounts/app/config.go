package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/pkg/cryptox"
)

const (
	SessionBackendSQLite = "sqlite"
	SessionBackendRedis  = "redis"
)

type Config struct {
	DatabaseFile   string // Optional: path to SQLite database file (default: ./accounts.db)
	PepperFile     string // Optional: path to file containing pepper for password hashing (default: ./pepper)
	SessionKeyFile string // Optional: path to file containing the session sealing key (default: ./session.key)

	CookieName   string // Optional: session cookie name (default: accounts_session)
	CookieDomain string // Optional: session cookie domain (default: host only)
	CookieSecure bool   // Optional: mark the cookie Secure and send HSTS (default: true)

	SessionBackend       string        // Optional: session store (sqlite, redis) (default: sqlite)
	RedisAddr            string        // Required for the redis backend
	RedisPassword        string        // Optional
	RedisDB              int           // Optional (default: 0)
	PersistentSessionTTL time.Duration // Optional: lifetime of remember-me sessions (default: 14 days)
	SessionRetention     time.Duration // Optional: how long dead session records are kept (default: 0)

	Hashing        cryptox.Params
	PasswordPolicy service.PasswordPolicy

	LoginPath          string // Optional: where browsers are sent to sign in (default: /account/login)
	HomePath           string // Optional: landing after sign in (default: /)
	AdminPath          string // Optional: admin landing after sign in (default: /admin)
	AdminRedirectFirst bool   // Optional: admin landing wins over a return URL (default: false)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	TrustedProxies       []string      // Optional: proxy CIDRs whose X-Forwarded-For is honoured (default: none)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	policy := service.DefaultPasswordPolicy

	return Config{
		DatabaseFile:   getEnvOrDefault("ACCOUNTS_DATABASE_FILE", "accounts.db"),
		PepperFile:     getEnvOrDefault("ACCOUNTS_PEPPER_FILE", "pepper"),
		SessionKeyFile: getEnvOrDefault("ACCOUNTS_SESSION_KEY_FILE", "session.key"),

		CookieName:   getEnvOrDefault("ACCOUNTS_COOKIE_NAME", "accounts_session"),
		CookieDomain: os.Getenv("ACCOUNTS_COOKIE_DOMAIN"),
		CookieSecure: getEnvBoolOrDefault("ACCOUNTS_COOKIE_SECURE", true),

		SessionBackend:       getEnvOrDefault("ACCOUNTS_SESSION_BACKEND", SessionBackendSQLite),
		RedisAddr:            os.Getenv("ACCOUNTS_REDIS_ADDR"),
		RedisPassword:        os.Getenv("ACCOUNTS_REDIS_PASSWORD"),
		RedisDB:              getEnvIntOrDefault("ACCOUNTS_REDIS_DB", 0),
		PersistentSessionTTL: getEnvDurationOrDefault("ACCOUNTS_PERSISTENT_SESSION_TTL", service.DefaultPersistentTTL),
		SessionRetention:     getEnvDurationOrDefault("ACCOUNTS_SESSION_RETENTION", 0),

		Hashing: cryptox.Params{
			Memory:      uint32(getEnvUintOrDefault("ACCOUNTS_ARGON2_MEMORY_KIB", uint64(cryptox.DefaultParams.Memory), 32)),
			Iterations:  uint32(getEnvUintOrDefault("ACCOUNTS_ARGON2_ITERATIONS", uint64(cryptox.DefaultParams.Iterations), 32)),
			Parallelism: uint8(getEnvUintOrDefault("ACCOUNTS_ARGON2_PARALLELISM", uint64(cryptox.DefaultParams.Parallelism), 8)),
		},
		PasswordPolicy: service.PasswordPolicy{
			MinLength:              getEnvIntOrDefault("PASSWORD_MIN_LENGTH", policy.MinLength),
			RequireLower:           getEnvBoolOrDefault("PASSWORD_REQUIRE_LOWER", policy.RequireLower),
			RequireUpper:           getEnvBoolOrDefault("PASSWORD_REQUIRE_UPPER", policy.RequireUpper),
			RequireDigit:           getEnvBoolOrDefault("PASSWORD_REQUIRE_DIGIT", policy.RequireDigit),
			RequireNonAlphanumeric: getEnvBoolOrDefault("PASSWORD_REQUIRE_NON_ALPHANUMERIC", policy.RequireNonAlphanumeric),
			MinUniqueChars:         getEnvIntOrDefault("PASSWORD_MIN_UNIQUE_CHARS", policy.MinUniqueChars),
		},

		LoginPath:          getEnvOrDefault("ACCOUNTS_LOGIN_PATH", "/account/login"),
		HomePath:           getEnvOrDefault("ACCOUNTS_HOME_PATH", "/"),
		AdminPath:          getEnvOrDefault("ACCOUNTS_ADMIN_PATH", "/admin"),
		AdminRedirectFirst: getEnvBoolOrDefault("ACCOUNTS_ADMIN_REDIRECT_FIRST", false),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		TrustedProxies:       getEnvListOrDefault("RATELIMIT_TRUSTED_PROXIES", nil),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil && intValue >= 0 {
		return intValue
	}

	return defaultValue
}

// getEnvListOrDefault splits a comma separated value, dropping empty items.
func getEnvListOrDefault(key string, defaultValue []string) []string {
	var items []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}

// getEnvUintOrDefault parses a positive integer that fits in bits, keeping
// the default for zero or out of range values.
func getEnvUintOrDefault(key string, defaultValue uint64, bits int) uint64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if n, err := strconv.ParseUint(value, 10, bits); err == nil && n > 0 {
		return n
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
