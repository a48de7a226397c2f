package gate_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/gate"
	"github.com/aussiebroadwan/accounts/internal/accounts/policy"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
	"github.com/stretchr/testify/require"
)

// headerCarrier reads the token from a plain header.
type headerCarrier struct{}

func (headerCarrier) Read(r *http.Request) string { return r.Header.Get("X-Test-Token") }

type stubSessions struct {
	identities map[string]*domain.Identity
	err        error
}

func (s stubSessions) ResolveSession(_ context.Context, token string) (*domain.Identity, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.identities[token], nil
}

var sessions = stubSessions{identities: map[string]*domain.Identity{
	"user-token":  {UserID: "u1", Roles: domain.NewRoleSet(domain.RoleUser)},
	"admin-token": {UserID: "u2", Roles: domain.NewRoleSet(domain.RoleAdmin)},
}}

func newGate(t *testing.T, resolver gate.SessionResolver) (*gate.Gate, http.Handler) {
	t.Helper()
	g := gate.New(headerCarrier{}, resolver, policy.MustEngine(policy.RequiresAuthentication), "/account/login")

	mux := http.NewServeMux()
	echo := gate.HandlerFunc(func(w http.ResponseWriter, r *http.Request, id *domain.Identity) {
		if id.IsAnonymous() {
			_, _ = w.Write([]byte("anonymous"))
			return
		}
		require.Equal(t, id.UserID, httpx.SubjectFromContext(r.Context()))
		_, _ = w.Write([]byte(id.UserID))
	})

	mux.Handle("GET /open", echo)
	g.Declare("GET /open", policy.NamePublic)

	mux.Handle("GET /me", echo)

	mux.Handle("POST /login", echo)
	g.Declare("POST /login", policy.NameRequiresAnonymous)

	mux.Handle("GET /admin", echo)
	g.Declare("GET /admin", policy.RoleName(domain.RoleAdmin))

	return g, g.Wrap(mux)
}

func serve(h http.Handler, method, target, token string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("X-Test-Token", token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGateDispatch(t *testing.T) {
	_, h := newGate(t, sessions)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		code   int
		body   string
	}{
		{"public anonymous", http.MethodGet, "/open", "", http.StatusOK, "anonymous"},
		{"public signed in", http.MethodGet, "/open", "user-token", http.StatusOK, "u1"},
		{"fallback signed in", http.MethodGet, "/me", "user-token", http.StatusOK, "u1"},
		{"anonymous-only route", http.MethodPost, "/login", "", http.StatusOK, "anonymous"},
		{"admin route as admin", http.MethodGet, "/admin", "admin-token", http.StatusOK, "u2"},
		{"unknown token is anonymous", http.MethodGet, "/open", "forged", http.StatusOK, "anonymous"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, tt.method, tt.path, tt.token)
			require.Equal(t, tt.code, rec.Code)
			require.Equal(t, tt.body, rec.Body.String())
		})
	}
}

func TestGateRedirectsAnonymousToLogin(t *testing.T) {
	_, h := newGate(t, sessions)

	rec := serve(h, http.MethodGet, "/me?tab=profile", "")
	require.Equal(t, http.StatusSeeOther, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/account/login", loc.Path)
	require.Equal(t, "/me?tab=profile", loc.Query().Get(gate.ReturnURLParam))

	rec = serve(h, http.MethodGet, "/admin", "")
	require.Equal(t, http.StatusSeeOther, rec.Code, "anonymous on a role route is sent to login")

	rec = serve(h, http.MethodGet, "/me", "", "Accept", "application/json")
	require.Equal(t, http.StatusUnauthorized, rec.Code, "API clients get 401")
}

func TestGateForbidden(t *testing.T) {
	_, h := newGate(t, sessions)

	rec := serve(h, http.MethodGet, "/admin", "user-token")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.JSONEq(t, `{"error":"forbidden","error_description":"You do not have access to this resource."}`, rec.Body.String())

	rec = serve(h, http.MethodPost, "/login", "user-token")
	require.Equal(t, http.StatusForbidden, rec.Code, "signed-in users cannot reach anonymous-only routes")
}

func TestGateUnmatchedRoutesFailClosed(t *testing.T) {
	_, h := newGate(t, sessions)

	rec := serve(h, http.MethodGet, "/does-not-exist", "")
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = serve(h, http.MethodGet, "/does-not-exist", "user-token")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGateStoreFailureIsOpaque(t *testing.T) {
	_, h := newGate(t, stubSessions{err: errors.New("sqlite: disk I/O error")})

	rec := serve(h, http.MethodGet, "/open", "user-token")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "sqlite")
}

func TestDecide(t *testing.T) {
	g, _ := newGate(t, sessions)
	admin := policy.RoleName(domain.RoleAdmin)

	tests := []struct {
		name  string
		token string
		want  gate.Outcome
	}{
		{"anonymous", "", gate.RedirectToLogin},
		{"user", "user-token", gate.Forbidden},
		{"admin", "admin-token", gate.Dispatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req.Header.Set("X-Test-Token", tt.token)

			d, err := g.Decide(req, admin)
			require.NoError(t, err)
			require.Equal(t, tt.want, d.Outcome, d.Outcome.String())
			if tt.want == gate.Dispatch {
				require.NotNil(t, d.Identity)
			}
		})
	}
}
