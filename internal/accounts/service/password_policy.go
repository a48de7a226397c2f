package service

import (
	"fmt"
	"unicode"
)

// PasswordPolicy is the configurable complexity rule set applied at
// registration. Every rule is independent; a zero value disables length and
// uniqueness checks and the Require flags default to off.
type PasswordPolicy struct {
	MinLength              int
	RequireLower           bool
	RequireUpper           bool
	RequireDigit           bool
	RequireNonAlphanumeric bool
	MinUniqueChars         int
}

// DefaultPasswordPolicy is deliberately lenient: five characters, one
// lowercase letter and three distinct characters.
var DefaultPasswordPolicy = PasswordPolicy{
	MinLength:      5,
	RequireLower:   true,
	MinUniqueChars: 3,
}

// Check returns one message per violated rule, in a stable order.
func (p PasswordPolicy) Check(password string) []string {
	var (
		msgs                         []string
		lower, upper, digit, special bool
		unique                       = make(map[rune]struct{})
		length                       int
	)

	for _, r := range password {
		length++
		unique[r] = struct{}{}
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsLetter(r):
			special = true
		}
	}

	if p.MinLength > 0 && length < p.MinLength {
		msgs = append(msgs, fmt.Sprintf("must be at least %d characters", p.MinLength))
	}
	if p.RequireLower && !lower {
		msgs = append(msgs, "must contain a lowercase letter")
	}
	if p.RequireUpper && !upper {
		msgs = append(msgs, "must contain an uppercase letter")
	}
	if p.RequireDigit && !digit {
		msgs = append(msgs, "must contain a digit")
	}
	if p.RequireNonAlphanumeric && !special {
		msgs = append(msgs, "must contain a non-alphanumeric character")
	}
	if p.MinUniqueChars > 0 && len(unique) < p.MinUniqueChars {
		msgs = append(msgs, fmt.Sprintf("must use at least %d different characters", p.MinUniqueChars))
	}
	return msgs
}
