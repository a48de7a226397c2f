package authsdk

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// SessionCookieName is the cookie the service sets on sign in.
const SessionCookieName = "accounts_session"

// Client talks to the accounts service. It keeps the session cookie in a
// cookie jar, so one Client behaves like one browser.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	// BearerToken, when set, is sent as "Authorization: Bearer" instead of
	// relying on the cookie. It must be the sealed cookie value.
	BearerToken string
}

// NewClient creates a client with an empty cookie jar. Redirects are not
// followed so callers can observe the gate's login redirects.
func NewClient(baseURL string) *Client {
	jar, _ := cookiejar.New(nil) // only fails with non-nil options

	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
			Jar:     jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// SessionCookie returns the sealed session value currently held in the jar,
// or "" when signed out.
func (c *Client) SessionCookie() string {
	if c.HTTPClient.Jar == nil {
		return ""
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return ""
	}
	for _, cookie := range c.HTTPClient.Jar.Cookies(u) {
		if cookie.Name == SessionCookieName {
			return cookie.Value
		}
	}
	return ""
}
