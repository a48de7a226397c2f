// Package redis stores sessions in Redis, using key expiry for persistent
// sessions instead of periodic purging.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"

	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "accounts:session:"

	// DefaultRevokedRetention bounds how long a revoked record is kept.
	DefaultRevokedRetention = time.Hour

	maxWatchRetries = 5
)

// Config configures the Redis session store.
type Config struct {
	Addr     string
	Password string
	DB       int

	// KeyPrefix namespaces session keys. Defaults to "accounts:session:".
	KeyPrefix string

	// RevokedRetention is the remaining lifetime given to a revoked record.
	RevokedRetention time.Duration
}

// SessionStore implements store.Sessions on Redis. Each session is one JSON
// value keyed by token fingerprint. Persistent sessions carry a TTL matching
// their expiry; browser-session scoped ones have none until revoked.
type SessionStore struct {
	client    goredis.UniversalClient
	prefix    string
	retention time.Duration
}

var _ store.Sessions = (*SessionStore)(nil)

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, cfg Config) (*SessionStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(client, cfg), nil
}

// New wraps an existing client.
func New(client goredis.UniversalClient, cfg Config) *SessionStore {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	retention := cfg.RevokedRetention
	if retention <= 0 {
		retention = DefaultRevokedRetention
	}
	return &SessionStore{client: client, prefix: prefix, retention: retention}
}

// Ping verifies the connection is still alive.
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *SessionStore) Close() error {
	return s.client.Close()
}

type record struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Persistent bool       `json:"persistent"`
	IssuedAt   time.Time  `json:"issued_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}

func (s *SessionStore) key(tokenHash string) string {
	return s.prefix + tokenHash
}

func (s *SessionStore) CreateSession(ctx context.Context, sess domain.Session) error {
	payload, err := json.Marshal(record{
		ID:         sess.ID,
		UserID:     sess.UserID,
		Persistent: sess.Persistent,
		IssuedAt:   sess.IssuedAt,
		ExpiresAt:  sess.ExpiresAt,
		RevokedAt:  sess.RevokedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	var ttl time.Duration
	if sess.ExpiresAt != nil {
		ttl = max(time.Until(*sess.ExpiresAt), time.Millisecond)
	}

	ok, err := s.client.SetNX(ctx, s.key(sess.TokenHash), payload, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrAlreadyExists
	}
	return nil
}

func (s *SessionStore) GetSessionByTokenHash(ctx context.Context, tokenHash string) (domain.Session, error) {
	raw, err := s.client.Get(ctx, s.key(tokenHash)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.Session{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Session{}, err
	}

	rec, err := decode(raw)
	if err != nil {
		return domain.Session{}, err
	}
	return rec.session(tokenHash), nil
}

// RevokeSession marks the record revoked and shortens its lifetime to the
// retention window. The read-modify-write runs under WATCH so a concurrent
// revoke cannot overwrite the first revocation time.
func (s *SessionStore) RevokeSession(ctx context.Context, tokenHash string, at time.Time) error {
	key := s.key(tokenHash)

	revoke := func(tx *goredis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}

		rec, err := decode(raw)
		if err != nil {
			return err
		}
		if rec.RevokedAt != nil {
			return nil
		}
		revokedAt := at.UTC()
		rec.RevokedAt = &revokedAt

		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, payload, goredis.KeepTTL)
			pipe.ExpireLT(ctx, key, s.retention)
			return nil
		})
		return err
	}

	for range maxWatchRetries {
		err := s.client.Watch(ctx, revoke, key)
		if !errors.Is(err, goredis.TxFailedErr) {
			return err
		}
	}
	return goredis.TxFailedErr
}

// DeleteInactiveSessions is a no-op: expired and revoked records leave
// Redis through key expiry.
func (s *SessionStore) DeleteInactiveSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func decode(raw []byte) (record, error) {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return record{}, fmt.Errorf("decode session: %w", err)
	}
	return rec, nil
}

func (r record) session(tokenHash string) domain.Session {
	return domain.Session{
		ID:         r.ID,
		TokenHash:  tokenHash,
		UserID:     r.UserID,
		Persistent: r.Persistent,
		IssuedAt:   r.IssuedAt,
		ExpiresAt:  r.ExpiresAt,
		RevokedAt:  r.RevokedAt,
	}
}
