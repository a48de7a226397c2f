package service

import (
	"net/url"
	"strings"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
)

// LoginRedirect picks where a client goes after signing in.
//
// Admins land on AdminPath and everyone else on HomePath. A caller-supplied
// return URL is honoured only when it is local to this site; AdminFirst
// decides whether the admin landing beats such a return URL.
type LoginRedirect struct {
	HomePath   string
	AdminPath  string
	AdminFirst bool
}

// Target returns the post-login location for a user holding roles.
func (r LoginRedirect) Target(roles domain.RoleSet, returnURL string) string {
	isAdmin := roles.Has(domain.RoleAdmin) && r.AdminPath != ""
	local := IsLocalURL(returnURL)

	switch {
	case isAdmin && (r.AdminFirst || !local):
		return r.AdminPath
	case local:
		return returnURL
	case r.HomePath != "":
		return r.HomePath
	default:
		return "/"
	}
}

// IsLocalURL accepts site-relative paths only. Scheme-relative ("//host")
// and backslash tricks are rejected.
func IsLocalURL(raw string) bool {
	if raw == "" || raw[0] != '/' {
		return false
	}
	if len(raw) > 1 && (raw[1] == '/' || raw[1] == '\\') {
		return false
	}
	if strings.ContainsAny(raw, "\r\n\t") {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}
