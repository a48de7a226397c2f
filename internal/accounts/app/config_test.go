package app

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	require.Equal(t, "accounts.db", cfg.DatabaseFile)
	require.Equal(t, SessionBackendSQLite, cfg.SessionBackend)
	require.True(t, cfg.CookieSecure)
	require.Equal(t, service.DefaultPersistentTTL, cfg.PersistentSessionTTL)
	require.Equal(t, service.DefaultPasswordPolicy, cfg.PasswordPolicy)
	require.Equal(t, cryptox.DefaultParams.Memory, cfg.Hashing.Memory)
	require.Equal(t, "/account/login", cfg.LoginPath)
	require.False(t, cfg.AdminRedirectFirst)
	require.Equal(t, 8080, cfg.Port)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("ACCOUNTS_COOKIE_SECURE", "false")
	t.Setenv("ACCOUNTS_SESSION_BACKEND", "redis")
	t.Setenv("ACCOUNTS_PERSISTENT_SESSION_TTL", "48h")
	t.Setenv("PASSWORD_MIN_LENGTH", "12")
	t.Setenv("PASSWORD_REQUIRE_DIGIT", "true")
	t.Setenv("ACCOUNTS_ADMIN_REDIRECT_FIRST", "1")
	t.Setenv("HOUSEKEEPING_INTERVAL", "15")

	cfg := LoadConfig()

	require.False(t, cfg.CookieSecure)
	require.Equal(t, SessionBackendRedis, cfg.SessionBackend)
	require.Equal(t, 48*time.Hour, cfg.PersistentSessionTTL)
	require.Equal(t, 12, cfg.PasswordPolicy.MinLength)
	require.True(t, cfg.PasswordPolicy.RequireDigit)
	require.True(t, cfg.PasswordPolicy.RequireLower)
	require.True(t, cfg.AdminRedirectFirst)
	require.Equal(t, 15*time.Minute, cfg.HousekeepingInterval)
}

func TestLoadConfigIgnoresGarbage(t *testing.T) {
	t.Setenv("PORT", "eighty")
	t.Setenv("PASSWORD_MIN_LENGTH", "-3")
	t.Setenv("ACCOUNTS_COOKIE_SECURE", "maybe")

	cfg := LoadConfig()

	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, service.DefaultPasswordPolicy.MinLength, cfg.PasswordPolicy.MinLength)
	require.True(t, cfg.CookieSecure)
}

func TestLoadConfigRejectsOutOfRangeHashing(t *testing.T) {
	t.Setenv("ACCOUNTS_ARGON2_PARALLELISM", "256")
	t.Setenv("ACCOUNTS_ARGON2_MEMORY_KIB", "4294967296")
	t.Setenv("ACCOUNTS_ARGON2_ITERATIONS", "0")

	cfg := LoadConfig()

	require.Equal(t, cryptox.DefaultParams.Parallelism, cfg.Hashing.Parallelism)
	require.Equal(t, cryptox.DefaultParams.Memory, cfg.Hashing.Memory)
	require.Equal(t, cryptox.DefaultParams.Iterations, cfg.Hashing.Iterations)
}
