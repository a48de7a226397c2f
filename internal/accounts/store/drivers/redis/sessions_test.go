package redis_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
	accountsredis "github.com/aussiebroadwan/accounts/internal/accounts/store/drivers/redis"
	"github.com/aussiebroadwan/accounts/pkg/idx"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a throwaway Redis 7 container and returns a connected
// session store plus a raw client for inspecting keys.
func setupRedis(t *testing.T) (*accountsredis.SessionStore, *goredis.Client) {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	addr, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	st, err := accountsredis.Open(ctx, accountsredis.Config{Addr: addr, RevokedRetention: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	raw := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { _ = raw.Close() })

	return st, raw
}

func TestRedisSessions(t *testing.T) {
	st, raw := setupRedis(t)
	ctx := context.Background()

	now := time.Now().UTC()
	expires := now.Add(time.Hour)
	persistent := domain.Session{
		ID: idx.New().String(), TokenHash: "hash-persistent", UserID: "user-1",
		Persistent: true, IssuedAt: now, ExpiresAt: &expires,
	}
	browser := domain.Session{
		ID: idx.New().String(), TokenHash: "hash-browser", UserID: "user-1", IssuedAt: now,
	}
	require.NoError(t, st.CreateSession(ctx, persistent))
	require.NoError(t, st.CreateSession(ctx, browser))

	t.Run("duplicate token hash", func(t *testing.T) {
		require.ErrorIs(t, st.CreateSession(ctx, browser), store.ErrAlreadyExists)
	})

	t.Run("round trip", func(t *testing.T) {
		got, err := st.GetSessionByTokenHash(ctx, "hash-persistent")
		require.NoError(t, err)
		require.Equal(t, persistent.ID, got.ID)
		require.Equal(t, "user-1", got.UserID)
		require.True(t, got.Persistent)
		require.True(t, now.Equal(got.IssuedAt))
		require.NotNil(t, got.ExpiresAt)
		require.True(t, expires.Equal(*got.ExpiresAt))
		require.Nil(t, got.RevokedAt)
	})

	t.Run("ttl follows session kind", func(t *testing.T) {
		ttl, err := raw.TTL(ctx, "accounts:session:hash-persistent").Result()
		require.NoError(t, err)
		require.Greater(t, ttl, 59*time.Minute)

		ttl, err = raw.TTL(ctx, "accounts:session:hash-browser").Result()
		require.NoError(t, err)
		require.Equal(t, time.Duration(-1), ttl, "browser sessions have no key expiry")
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := st.GetSessionByTokenHash(ctx, "nope")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("revoke keeps first time and bounds retention", func(t *testing.T) {
		first := now.Add(time.Minute)
		require.NoError(t, st.RevokeSession(ctx, "hash-browser", first))
		require.NoError(t, st.RevokeSession(ctx, "hash-browser", first.Add(time.Minute)))
		require.NoError(t, st.RevokeSession(ctx, "never-issued", first))

		got, err := st.GetSessionByTokenHash(ctx, "hash-browser")
		require.NoError(t, err)
		require.NotNil(t, got.RevokedAt)
		require.True(t, first.Equal(*got.RevokedAt))

		ttl, err := raw.TTL(ctx, "accounts:session:hash-browser").Result()
		require.NoError(t, err)
		require.Greater(t, ttl, time.Duration(0))
		require.LessOrEqual(t, ttl, time.Minute)
	})

	t.Run("concurrent revokes", func(t *testing.T) {
		s := domain.Session{ID: idx.New().String(), TokenHash: "hash-race", UserID: "user-1", IssuedAt: now}
		require.NoError(t, st.CreateSession(ctx, s))

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := st.RevokeSession(ctx, "hash-race", time.Now()); err != nil {
					t.Errorf("revoke: %v", err)
				}
			}()
		}
		wg.Wait()

		got, err := st.GetSessionByTokenHash(ctx, "hash-race")
		require.NoError(t, err)
		require.Equal(t, domain.SessionRevoked, got.State(time.Now()))
	})

	t.Run("purge is left to key expiry", func(t *testing.T) {
		n, err := st.DeleteInactiveSessions(ctx, now.Add(24*time.Hour))
		require.NoError(t, err)
		require.Zero(t, n)
	})
}
