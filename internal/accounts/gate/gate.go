// Package gate is the single chokepoint in front of every route. It resolves
// the session carried by the request, evaluates the route's declared
// policies and either dispatches with the resolved identity or answers with
// a login redirect or a forbidden response.
package gate

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/policy"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
)

// Outcome is what the gate does with a request.
type Outcome int

const (
	Dispatch Outcome = iota
	RedirectToLogin
	Forbidden
)

func (o Outcome) String() string {
	switch o {
	case Dispatch:
		return "dispatch"
	case RedirectToLogin:
		return "redirect_to_login"
	case Forbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Decision is the gate's verdict for one request.
type Decision struct {
	Outcome  Outcome
	Identity *domain.Identity
	Result   policy.Result
}

// TokenReader extracts the raw session token from a request, returning ""
// when none is present or it fails verification.
type TokenReader interface {
	Read(r *http.Request) string
}

// SessionResolver maps a raw token to an identity. Anonymous is (nil, nil).
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (*domain.Identity, error)
}

// ReturnURLParam carries the originally requested path to the login page.
const ReturnURLParam = "return_url"

// Gate evaluates requests against per-route policy declarations. Routes are
// declared during startup; Declare must not be called once serving starts.
type Gate struct {
	Carrier   TokenReader
	Sessions  SessionResolver
	Engine    *policy.Engine
	LoginPath string

	mu     sync.RWMutex
	routes map[string][]string
}

// New returns a Gate with no declared routes.
func New(carrier TokenReader, sessions SessionResolver, engine *policy.Engine, loginPath string) *Gate {
	return &Gate{
		Carrier:   carrier,
		Sessions:  sessions,
		Engine:    engine,
		LoginPath: loginPath,
		routes:    make(map[string][]string),
	}
}

// Declare records the policies for a ServeMux pattern. A pattern declared
// without policies still gets the fallback.
func (g *Gate) Declare(pattern string, policies ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.routes[pattern] = append([]string(nil), policies...)
}

// Policies returns the declared policies for pattern.
func (g *Gate) Policies(pattern string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.routes[pattern]
}

// Decide resolves the request's identity and evaluates policies against it.
// An error means the session store failed; the decision is then unusable.
func (g *Gate) Decide(r *http.Request, policies ...string) (Decision, error) {
	id, err := g.Sessions.ResolveSession(r.Context(), g.Carrier.Read(r))
	if err != nil {
		return Decision{}, err
	}

	res := g.Engine.Evaluate(id, policies...)
	d := Decision{Identity: id, Result: res}
	switch {
	case res.Allowed():
		d.Outcome = Dispatch
	case res.Reason == policy.ReasonUnauthenticated:
		d.Outcome = RedirectToLogin
	default:
		d.Outcome = Forbidden
	}
	return d, nil
}

// Wrap puts the gate in front of mux. The policies declared for the matched
// pattern are evaluated; unmatched requests get the fallback so a 404 never
// leaks to an anonymous client under a fail-closed posture.
func (g *Gate) Wrap(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, pattern := mux.Handler(r)

		d, err := g.Decide(r, g.Policies(pattern)...)
		if err != nil {
			slogx.FromContext(r.Context()).Error("failed to resolve session", "error", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "")
			return
		}

		switch d.Outcome {
		case RedirectToLogin:
			g.redirectToLogin(w, r)
		case Forbidden:
			slogx.FromContext(r.Context()).Info("request forbidden",
				"policy", d.Result.Policy, "anonymous", d.Identity.IsAnonymous())
			httpx.WriteError(w, http.StatusForbidden, "forbidden", "You do not have access to this resource.")
		default:
			mux.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), d.Identity)))
		}
	})
}

// redirectToLogin sends browsers to the login page with a return URL and
// API clients a 401.
func (g *Gate) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	if httpx.WantsJSON(r) || g.LoginPath == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "login_required", "Sign in to continue.")
		return
	}

	target := g.LoginPath
	if r.Method == http.MethodGet {
		target += "?" + url.Values{ReturnURLParam: {r.URL.RequestURI()}}.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

type ctxKey struct{}

func withIdentity(ctx context.Context, id *domain.Identity) context.Context {
	ctx = context.WithValue(ctx, ctxKey{}, id)
	if id != nil {
		ctx = httpx.WithSubject(ctx, id.UserID)
		ctx = slogx.With(ctx, "user_id", id.UserID)
	}
	return ctx
}

// HandlerFunc is a handler that receives the identity the gate resolved.
// The identity is nil on routes that admit anonymous requests.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, id *domain.Identity)

func (f HandlerFunc) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, _ := r.Context().Value(ctxKey{}).(*domain.Identity)
	f(w, r, id)
}
