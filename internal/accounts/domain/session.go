package domain

import "time"

// SessionState is derived from a session record at a point in time.
type SessionState int

const (
	SessionActive SessionState = iota
	SessionRevoked
	SessionExpired
)

func (s SessionState) String() string {
	switch s {
	case SessionActive:
		return "active"
	case SessionRevoked:
		return "revoked"
	case SessionExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Session is a server-side sign-in record. Only the fingerprint of the
// client-held token is stored.
type Session struct {
	ID         string
	TokenHash  string
	UserID     string
	Persistent bool
	IssuedAt   time.Time
	ExpiresAt  *time.Time // nil for browser-session scoped sessions
	RevokedAt  *time.Time
}

// State reports the session state at now. Revoked and Expired are terminal;
// revocation wins when both apply.
func (s Session) State(now time.Time) SessionState {
	if s.RevokedAt != nil {
		return SessionRevoked
	}
	if s.ExpiresAt != nil && !now.Before(*s.ExpiresAt) {
		return SessionExpired
	}
	return SessionActive
}
