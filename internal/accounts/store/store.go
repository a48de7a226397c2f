package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface implemented by concrete drivers.
// Sub-repositories are reached through methods so a Tx-scoped Store can hand
// out repositories bound to the transaction, and so nothing can open a
// transaction inside another one.
type Store interface {
	Users() Users
	Roles() Roles
	Sessions() Sessions

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// Users is the credential store.
type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail looks a user up by normalized email.
	GetUserByEmail(ctx context.Context, normalizedEmail string) (domain.User, error)

	// CreateUser inserts u. A second user with the same normalized email
	// fails with ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash replaces the stored hash and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error
}

// Roles is the role store and the user-role assignment table.
type Roles interface {
	GetRoleByName(ctx context.Context, name domain.RoleName) (domain.Role, error)

	// CreateRole fails with ErrAlreadyExists when the name is taken.
	CreateRole(ctx context.Context, r domain.Role) error

	// FindOrCreateRole returns the role named r.Name, inserting r if no such
	// role exists yet. Safe under concurrent callers: exactly one row wins.
	FindOrCreateRole(ctx context.Context, r domain.Role) (domain.Role, error)

	// AssignRole links a user to a role. Assigning twice is a no-op.
	AssignRole(ctx context.Context, userID, roleID string, at time.Time) error

	ListRolesForUser(ctx context.Context, userID string) (domain.RoleSet, error)

	// ListWithMemberCounts returns every role ordered by name.
	ListWithMemberCounts(ctx context.Context) ([]domain.RoleMembership, error)
}

// Sessions persists sign-in records keyed by token fingerprint.
type Sessions interface {
	CreateSession(ctx context.Context, s domain.Session) error

	GetSessionByTokenHash(ctx context.Context, tokenHash string) (domain.Session, error)

	// RevokeSession marks the session revoked at the given time. Unknown or
	// already revoked sessions are left untouched without error.
	RevokeSession(ctx context.Context, tokenHash string, at time.Time) error

	// DeleteInactiveSessions removes sessions that expired or were revoked
	// at or before cutoff and reports how many went.
	DeleteInactiveSessions(ctx context.Context, cutoff time.Time) (int64, error)
}
