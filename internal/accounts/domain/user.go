package domain

import (
	"strings"
	"time"
)

// User is a registered account.
type User struct {
	ID              string
	Email           string // as entered, used for display
	NormalizedEmail string // lookup key, unique
	DisplayName     string
	Phone           string
	PasswordHash    string // PHC encoded argon2id, carries its own parameters and salt
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NormalizeEmail returns the canonical lookup form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
