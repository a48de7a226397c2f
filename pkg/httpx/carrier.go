package httpx

import (
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/accounts/pkg/cryptox"
)

// DefaultSessionCookie is the cookie name used when CookieConfig.Name is empty.
const DefaultSessionCookie = "accounts_session"

const sealPurpose = "session-carrier"

// CookieConfig controls the attributes of the session cookie.
type CookieConfig struct {
	Name   string
	Domain string
	Secure bool
}

// SessionCarrier moves session tokens between server and client. Tokens are
// sealed before they leave the server so the client can neither read nor
// forge them; anything that fails to unseal is treated as absent.
//
// The carrier is read from the session cookie, or from an
// "Authorization: Bearer <sealed>" header for non-browser clients.
type SessionCarrier struct {
	sealer *cryptox.Sealer
	cfg    CookieConfig
}

// NewSessionCarrier builds a carrier sealing with keyMaterial.
func NewSessionCarrier(keyMaterial string, cfg CookieConfig) (*SessionCarrier, error) {
	sealer, err := cryptox.NewSealer(keyMaterial, sealPurpose)
	if err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = DefaultSessionCookie
	}
	return &SessionCarrier{sealer: sealer, cfg: cfg}, nil
}

// Read returns the raw session token carried by r, or "" when there is none
// or the carried value was not sealed by this server.
func (c *SessionCarrier) Read(r *http.Request) string {
	sealed, ok := BearerToken(r)
	if !ok {
		cookie, err := r.Cookie(c.cfg.Name)
		if err != nil {
			return ""
		}
		sealed = cookie.Value
	}

	token, err := c.sealer.Open(sealed)
	if err != nil {
		return ""
	}
	return string(token)
}

// Seal returns the client-facing form of token.
func (c *SessionCarrier) Seal(token string) (string, error) {
	return c.sealer.Seal([]byte(token))
}

// Write sets the session cookie for token. A nil expiresAt produces a
// browser-session cookie with neither Expires nor Max-Age.
func (c *SessionCarrier) Write(w http.ResponseWriter, token string, expiresAt *time.Time) error {
	sealed, err := c.Seal(token)
	if err != nil {
		return err
	}

	cookie := &http.Cookie{
		Name:     c.cfg.Name,
		Value:    sealed,
		Path:     "/",
		Domain:   c.cfg.Domain,
		Secure:   c.cfg.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if expiresAt != nil {
		cookie.Expires = expiresAt.UTC()
		cookie.MaxAge = max(int(time.Until(*expiresAt).Seconds()), 1)
	}

	http.SetCookie(w, cookie)
	return nil
}

// Clear instructs the client to drop the session cookie.
func (c *SessionCarrier) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.cfg.Name,
		Value:    "",
		Path:     "/",
		Domain:   c.cfg.Domain,
		Secure:   c.cfg.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
}

// BearerToken extracts the credential from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, value, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}
