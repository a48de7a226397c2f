package service

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/aussiebroadwan/accounts/pkg/idx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
)

// DefaultPersistentTTL bounds "remember me" sessions.
const DefaultPersistentTTL = 14 * 24 * time.Hour

// SessionManager issues, resolves and revokes sign-in sessions. Sessions may
// live in a different backend than users and roles.
type SessionManager struct {
	Store         store.Store
	Sessions      store.Sessions
	PersistentTTL time.Duration
	Now           func() time.Time
}

func (m *SessionManager) now() time.Time {
	if m.Now != nil {
		return m.Now().UTC()
	}
	return time.Now().UTC()
}

func (m *SessionManager) persistentTTL() time.Duration {
	if m.PersistentTTL > 0 {
		return m.PersistentTTL
	}
	return DefaultPersistentTTL
}

// CreateSession issues a fresh token for user. The raw token is returned for
// the carrier and never stored. Browser-session scoped sessions have no
// server-side expiry.
func (m *SessionManager) CreateSession(ctx context.Context, user domain.User, persistent bool) (string, domain.Session, error) {
	l := slogx.FromContext(ctx)

	token, fingerprint, err := cryptox.NewSessionToken()
	if err != nil {
		l.Error("failed to generate session token", "error", err)
		return "", domain.Session{}, storeErr("generate_token", err)
	}

	now := m.now()
	sess := domain.Session{
		ID:         idx.NewAt(now).String(),
		TokenHash:  fingerprint,
		UserID:     user.ID,
		Persistent: persistent,
		IssuedAt:   now,
	}
	if persistent {
		expires := now.Add(m.persistentTTL())
		sess.ExpiresAt = &expires
	}

	if err := m.Sessions.CreateSession(ctx, sess); err != nil {
		l.Error("failed to store session", "user_id", user.ID, "error", err)
		return "", domain.Session{}, storeErr("create_session", err)
	}

	l.Info("session created", "user_id", user.ID, "session_id", sess.ID, "persistent", persistent)
	return token, sess, nil
}

// ResolveSession maps a raw token to the identity it signs in. An empty,
// unknown, revoked or expired token resolves to nil (anonymous) without
// error; only store failures are errors. Values that cannot be tokens are
// never looked up.
func (m *SessionManager) ResolveSession(ctx context.Context, token string) (*domain.Identity, error) {
	if !cryptox.IsSessionToken(token) {
		return nil, nil
	}

	sess, err := m.Sessions.GetSessionByTokenHash(ctx, cryptox.FingerprintToken(token))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get_session", err)
	}

	if sess.State(m.now()) != domain.SessionActive {
		return nil, nil
	}

	user, err := m.Store.Users().GetUserByID(ctx, sess.UserID)
	if errors.Is(err, store.ErrNotFound) {
		// Redis-held sessions can outlive their user row.
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get_user", err)
	}

	roles, err := m.Store.Roles().ListRolesForUser(ctx, user.ID)
	if err != nil {
		return nil, storeErr("list_roles", err)
	}

	return &domain.Identity{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		SessionID:   sess.ID,
		Roles:       roles,
	}, nil
}

// RevokeSession ends the session behind token. Empty, unknown and already
// revoked tokens are no-ops.
func (m *SessionManager) RevokeSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.Sessions.RevokeSession(ctx, cryptox.FingerprintToken(token), m.now()); err != nil {
		slogx.FromContext(ctx).Error("failed to revoke session", "error", err)
		return storeErr("revoke_session", err)
	}
	return nil
}
