package accounts_test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/aussiebroadwan/accounts/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestForgedTokenIsAnonymous verifies values not sealed by the service are
// ignored.
func TestForgedTokenIsAnonymous(t *testing.T) {
	baseURL := setupAccountsContainer(t)

	client := authsdk.NewClient(baseURL)
	client.BearerToken = "bm90LWEtc2VhbGVkLXRva2Vu"

	_, err := client.Me(t.Context())
	assertCode(t, err, authsdk.ErrorCodeLoginRequired)
}

// TestRevokedTokenIsAnonymous verifies a copied token stops working after
// logout.
func TestRevokedTokenIsAnonymous(t *testing.T) {
	baseURL := setupAccountsContainer(t)
	client, _ := registerAccount(t, baseURL, "copy@x.com", "User")

	copied := authsdk.NewClient(baseURL)
	copied.BearerToken = client.SessionCookie()
	_, err := copied.Me(t.Context())
	require.NoError(t, err)

	require.NoError(t, client.Logout(t.Context()))

	_, err = copied.Me(t.Context())
	assertCode(t, err, authsdk.ErrorCodeLoginRequired)
}

// TestBrowserLoginRedirect verifies browsers are redirected to the login
// page with a return URL, and every response carries security headers.
func TestBrowserLoginRedirect(t *testing.T) {
	baseURL := setupAccountsContainer(t)

	noFollow := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	resp, err := noFollow.Get(baseURL + "/v1/admin/roles")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/account/login", loc.Path)
	require.Equal(t, "/v1/admin/roles", loc.Query().Get("return_url"))

	require.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	require.Empty(t, resp.Header.Get("Strict-Transport-Security"), "no HSTS over plain HTTP")
}

// TestSessionCookieAttributes verifies the cookie cannot be read by scripts.
func TestSessionCookieAttributes(t *testing.T) {
	baseURL := setupAccountsContainer(t)
	registerAccount(t, baseURL, "cookie@x.com", "User")

	client := authsdk.NewClient(baseURL)
	resp, err := client.HTTPClient.Post(baseURL+"/v1/account/login", "application/json",
		jsonBody(t, authsdk.LoginRequest{Email: "cookie@x.com", Password: testPassword}))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var session *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == authsdk.SessionCookieName {
			session = c
		}
	}
	require.NotNil(t, session)
	require.True(t, session.HttpOnly)
	require.Equal(t, http.SameSiteLaxMode, session.SameSite)
	require.Zero(t, session.MaxAge, "browser-session cookie")
}
