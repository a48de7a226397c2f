package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
)

type sessionsRepo struct {
	db dbtx
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, token_hash, user_id, persistent, issued_at, expires_at, revoked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID,
		s.TokenHash,
		s.UserID,
		s.Persistent,
		toUnix(s.IssuedAt),
		toNullUnix(s.ExpiresAt),
		toNullUnix(s.RevokedAt),
	)
	return mapConstraint(err)
}

func (r *sessionsRepo) GetSessionByTokenHash(ctx context.Context, tokenHash string) (domain.Session, error) {
	var (
		s                    domain.Session
		issuedAt             int64
		expiresAt, revokedAt sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, token_hash, user_id, persistent, issued_at, expires_at, revoked_at
		FROM sessions WHERE token_hash = ?`, tokenHash,
	).Scan(&s.ID, &s.TokenHash, &s.UserID, &s.Persistent, &issuedAt, &expiresAt, &revokedAt)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}

	s.IssuedAt = fromUnix(issuedAt)
	s.ExpiresAt = fromNullUnix(expiresAt)
	s.RevokedAt = fromNullUnix(revokedAt)
	return s, nil
}

func (r *sessionsRepo) RevokeSession(ctx context.Context, tokenHash string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = ? WHERE token_hash = ? AND revoked_at IS NULL`,
		toUnix(at), tokenHash,
	)
	return err
}

func (r *sessionsRepo) DeleteInactiveSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	c := toUnix(cutoff)
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE (expires_at IS NOT NULL AND expires_at <= ?)
		   OR (revoked_at IS NOT NULL AND revoked_at <= ?)`,
		c, c,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
