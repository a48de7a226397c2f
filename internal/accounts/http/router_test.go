package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/gate"
	"github.com/aussiebroadwan/accounts/internal/accounts/policy"
	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
	"github.com/aussiebroadwan/accounts/internal/accounts/store/drivers/sqlite"
	"github.com/aussiebroadwan/accounts/pkg/authsdk"
	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
	"github.com/stretchr/testify/require"
)

var relaxed = httpx.RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000}

// newTestServer wires the full router over a temp sqlite store. tweak may
// adjust the router before routes are applied.
func newTestServer(t *testing.T, tweak func(*Router)) *httptest.Server {
	t.Helper()

	st, err := sqlite.NewStore(sqlite.DSN(filepath.Join(t.TempDir(), "accounts.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	carrier, err := httpx.NewSessionCarrier("router-test-key", httpx.CookieConfig{})
	require.NoError(t, err)

	identity := &service.IdentityService{
		Store:  st,
		Hasher: cryptox.NewHasher(cryptox.Params{Memory: 1024, Iterations: 1, Parallelism: 1}, ""),
		Policy: service.DefaultPasswordPolicy,
	}
	sessions := &service.SessionManager{
		Store:         st,
		Sessions:      st.Sessions(),
		PersistentTTL: time.Hour,
	}

	g := gate.New(carrier, sessions, policy.MustEngine(policy.RequiresAuthentication), "/account/login")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	router := NewRouter("test", st, st.Sessions(), g, logger, false)
	router.IdentityService = identity
	router.SessionManager = sessions
	router.Carrier = carrier
	router.Redirect = service.LoginRedirect{HomePath: "/", AdminPath: "/admin"}
	router.Limits = RateLimits{Strict: relaxed, Moderate: relaxed, Public: relaxed}
	if tweak != nil {
		tweak(router)
	}
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func registration(email string, role domain.RoleName) authsdk.RegisterRequest {
	return authsdk.RegisterRequest{
		Email:           email,
		Password:        "hello",
		ConfirmPassword: "hello",
		DisplayName:     "Test User",
		Role:            string(role),
	}
}

func TestAccountLifecycle(t *testing.T) {
	srv := newTestServer(t, nil)
	ctx := context.Background()

	client := authsdk.NewClient(srv.URL)
	account, err := client.Register(ctx, registration("alice@example.com", domain.RoleUser))
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", account.Email)
	require.Equal(t, []string{"User"}, account.Roles)
	require.NotEmpty(t, client.SessionCookie(), "registering signs the user in")

	me, err := client.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, account.ID, me.UserID)
	require.Equal(t, []string{"User"}, me.Roles)

	// Signed-in clients cannot reach anonymous-only routes.
	_, err = client.Register(ctx, registration("again@example.com", domain.RoleUser))
	require.True(t, authsdk.HasCode(err, authsdk.ErrorCodeForbidden))

	require.NoError(t, client.Logout(ctx))
	require.Empty(t, client.SessionCookie())

	_, err = client.Me(ctx)
	require.True(t, authsdk.HasCode(err, authsdk.ErrorCodeLoginRequired))

	login, err := client.Login(ctx, authsdk.LoginRequest{
		Email:     "ALICE@example.com",
		Password:  "hello",
		ReturnURL: "/orders/7",
	})
	require.NoError(t, err)
	require.Equal(t, "/orders/7", login.Redirect)
	require.Nil(t, login.ExpiresAt)

	me, err = client.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, account.ID, me.UserID)
}

func TestLogoutRevokesCopiedToken(t *testing.T) {
	srv := newTestServer(t, nil)
	ctx := context.Background()

	client := authsdk.NewClient(srv.URL)
	_, err := client.Register(ctx, registration("bob@example.com", domain.RoleUser))
	require.NoError(t, err)

	// A second client presenting the same sealed value as a bearer token.
	copied := authsdk.NewClient(srv.URL)
	copied.BearerToken = client.SessionCookie()
	_, err = copied.Me(ctx)
	require.NoError(t, err)

	require.NoError(t, client.Logout(ctx))

	_, err = copied.Me(ctx)
	require.True(t, authsdk.HasCode(err, authsdk.ErrorCodeLoginRequired))
}

func TestLoginRememberMe(t *testing.T) {
	srv := newTestServer(t, nil)
	ctx := context.Background()

	_, err := authsdk.NewClient(srv.URL).Register(ctx, registration("carol@example.com", domain.RoleUser))
	require.NoError(t, err)

	client := authsdk.NewClient(srv.URL)
	login, err := client.Login(ctx, authsdk.LoginRequest{
		Email:      "carol@example.com",
		Password:   "hello",
		RememberMe: true,
	})
	require.NoError(t, err)
	require.NotNil(t, login.ExpiresAt)
	require.WithinDuration(t, time.Now().Add(time.Hour), *login.ExpiresAt, time.Minute)
	require.Equal(t, "/", login.Redirect)
}

func TestLoginFailures(t *testing.T) {
	srv := newTestServer(t, nil)
	ctx := context.Background()

	_, err := authsdk.NewClient(srv.URL).Register(ctx, registration("dave@example.com", domain.RoleUser))
	require.NoError(t, err)

	client := authsdk.NewClient(srv.URL)
	_, wrongPassword := client.Login(ctx, authsdk.LoginRequest{Email: "dave@example.com", Password: "nope1"})
	_, unknownUser := client.Login(ctx, authsdk.LoginRequest{Email: "nobody@example.com", Password: "hello"})

	require.True(t, authsdk.HasCode(wrongPassword, authsdk.ErrorCodeInvalidCredentials))
	require.Equal(t, wrongPassword.Error(), unknownUser.Error())
	require.Empty(t, client.SessionCookie())
}

func TestAdminRoles(t *testing.T) {
	srv := newTestServer(t, nil)
	ctx := context.Background()

	user := authsdk.NewClient(srv.URL)
	_, err := user.Register(ctx, registration("user@example.com", domain.RoleUser))
	require.NoError(t, err)

	_, err = user.ListRoles(ctx)
	require.True(t, authsdk.HasCode(err, authsdk.ErrorCodeForbidden))

	admin := authsdk.NewClient(srv.URL)
	_, err = admin.Register(ctx, registration("admin@example.com", domain.RoleAdmin))
	require.NoError(t, err)

	roles, err := admin.ListRoles(ctx)
	require.NoError(t, err)

	members := map[string]int{}
	for _, r := range roles.Roles {
		members[r.Name] = r.Members
	}
	require.Equal(t, map[string]int{"Admin": 1, "User": 1}, members)

	require.NoError(t, admin.Logout(ctx))
	login, err := admin.Login(ctx, authsdk.LoginRequest{
		Email:     "admin@example.com",
		Password:  "hello",
		ReturnURL: "https://evil.example/",
	})
	require.NoError(t, err)
	require.Equal(t, "/admin", login.Redirect)
}

func TestRegisterErrors(t *testing.T) {
	srv := newTestServer(t, nil)
	ctx := context.Background()

	t.Run("validation lists every violation", func(t *testing.T) {
		_, err := authsdk.NewClient(srv.URL).Register(ctx, authsdk.RegisterRequest{
			Email:           "not-an-email",
			Password:        "ab",
			ConfirmPassword: "abc",
		})
		require.True(t, authsdk.HasCode(err, authsdk.ErrorCodeValidation))

		apiErr := err.(*authsdk.APIError)
		require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

		fields := map[string]bool{}
		for _, v := range apiErr.Violations {
			fields[v.Field] = true
		}
		require.True(t, fields["email"])
		require.True(t, fields["password"])
		require.True(t, fields["confirm_password"])
		require.True(t, fields["display_name"])
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := authsdk.NewClient(srv.URL).Register(ctx, registration("erin@example.com", domain.RoleUser))
		require.NoError(t, err)

		_, err = authsdk.NewClient(srv.URL).Register(ctx, registration("Erin@Example.com", domain.RoleUser))
		require.True(t, authsdk.HasCode(err, authsdk.ErrorCodeDuplicateEmail))
		require.Equal(t, http.StatusConflict, err.(*authsdk.APIError).StatusCode)
	})

	t.Run("malformed body", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/v1/account/register", "application/json", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestEmailAvailable(t *testing.T) {
	srv := newTestServer(t, nil)
	ctx := context.Background()

	client := authsdk.NewClient(srv.URL)
	ok, err := client.EmailAvailable(ctx, "frank@example.com")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = client.Register(ctx, registration("frank@example.com", domain.RoleUser))
	require.NoError(t, err)

	// Public routes admit signed-in clients too.
	ok, err = client.EmailAvailable(ctx, "FRANK@example.com")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBrowserRedirects(t *testing.T) {
	srv := newTestServer(t, nil)
	noFollow := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}

	for _, path := range []string{"/v1/me", "/v1/admin/roles", "/does/not/exist"} {
		t.Run(path, func(t *testing.T) {
			resp, err := noFollow.Get(srv.URL + path)
			require.NoError(t, err)
			defer resp.Body.Close()

			require.Equal(t, http.StatusSeeOther, resp.StatusCode)
			loc, err := url.Parse(resp.Header.Get("Location"))
			require.NoError(t, err)
			require.Equal(t, "/account/login", loc.Path)
			require.Equal(t, path, loc.Query().Get(gate.ReturnURLParam))
		})
	}
}

func TestRateLimitedLogin(t *testing.T) {
	srv := newTestServer(t, func(r *Router) {
		r.Limits.Strict = httpx.RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute, Burst: 2}
	})
	ctx := context.Background()
	client := authsdk.NewClient(srv.URL)

	for range 2 {
		_, err := client.Login(ctx, authsdk.LoginRequest{Email: "gina@example.com", Password: "wrong"})
		require.True(t, authsdk.HasCode(err, authsdk.ErrorCodeInvalidCredentials))
	}

	_, err := client.Login(ctx, authsdk.LoginRequest{Email: "gina@example.com", Password: "wrong"})
	require.True(t, authsdk.HasCode(err, authsdk.ErrorCodeRateLimitExceeded))

	// The key includes the email, so another account is still allowed through.
	_, err = client.Login(ctx, authsdk.LoginRequest{Email: "hank@example.com", Password: "wrong"})
	require.True(t, authsdk.HasCode(err, authsdk.ErrorCodeInvalidCredentials))
}

func TestRateLimitIgnoresForwardedFor(t *testing.T) {
	srv := newTestServer(t, func(r *Router) {
		r.Limits.Strict = httpx.RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute, Burst: 2}
	})

	codes := map[int]int{}
	for i := range 6 {
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/account/login",
			strings.NewReader(`{"email":"ivy@example.com","password":"wrong"}`))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i+1))
		req.Header.Set("X-Real-IP", fmt.Sprintf("203.0.113.%d", i+1))

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		codes[resp.StatusCode]++
	}

	require.Equal(t, map[int]int{http.StatusUnauthorized: 2, http.StatusTooManyRequests: 4}, codes)
}

func TestLoginLimitedPerAddress(t *testing.T) {
	srv := newTestServer(t, func(r *Router) {
		r.Limits.Moderate = httpx.RateLimitConfig{RequestsPerWindow: 3, Window: time.Minute, Burst: 3}
	})
	ctx := context.Background()
	client := authsdk.NewClient(srv.URL)

	for i := range 3 {
		_, err := client.Login(ctx, authsdk.LoginRequest{Email: fmt.Sprintf("user%d@example.com", i), Password: "wrong"})
		require.True(t, authsdk.HasCode(err, authsdk.ErrorCodeInvalidCredentials))
	}

	// A fresh email does not buy a fresh budget.
	_, err := client.Login(ctx, authsdk.LoginRequest{Email: "user9@example.com", Password: "wrong"})
	require.True(t, authsdk.HasCode(err, authsdk.ErrorCodeRateLimitExceeded))
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, nil)
	ctx := context.Background()
	client := authsdk.NewClient(srv.URL)

	live, err := client.GetLiveness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)
	require.Equal(t, "test", live.Version)

	ready, err := client.GetReadiness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Status)
	require.NotNil(t, ready.Checks)
	require.Equal(t, "ok", ready.Checks.Database)
}

type downSessions struct{ store.Sessions }

func (downSessions) Ping(context.Context) error { return errors.New("connection refused") }

func TestReadyzReportsSessionStore(t *testing.T) {
	st, err := sqlite.NewStore(sqlite.DSN(filepath.Join(t.TempDir(), "accounts.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	rec := httptest.NewRecorder()
	ReadyzHandler(time.Now(), "test", st, downSessions{}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body authsdk.HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "degraded", body.Status)
	require.Equal(t, "ok", body.Checks.Database)
	require.Equal(t, "error", body.Checks.Sessions)
	require.NotContains(t, rec.Body.String(), "connection refused")
}
