package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/gate"
	"github.com/aussiebroadwan/accounts/internal/accounts/policy"
	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"

	_ "github.com/aussiebroadwan/accounts/api/accounts" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// RateLimits groups the per-route rate limit profiles.
type RateLimits struct {
	Strict   httpx.RateLimitConfig
	Moderate httpx.RateLimitConfig
	Public   httpx.RateLimitConfig
}

// Router holds shared dependencies for HTTP handlers. Every route is
// registered together with its policies so the gate can evaluate them.
type Router struct {
	Mux         *http.ServeMux
	Gate        *gate.Gate
	middlewares []httpx.Middleware
	handler     http.Handler

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store    store.Store
	sessions store.Sessions

	IdentityService *service.IdentityService
	SessionManager  *service.SessionManager
	Carrier         *httpx.SessionCarrier
	Redirect        service.LoginRedirect
	Limits          RateLimits
}

func NewRouter(
	buildVersion string,
	st store.Store,
	sessions store.Sessions,
	g *gate.Gate,
	logger *slog.Logger,
	hsts bool,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		Gate:         g,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		store:        st,
		sessions:     sessions,
		Limits: RateLimits{
			Strict:   httpx.StrictLimit,
			Moderate: httpx.ModerateLimit,
			Public:   httpx.PublicLimit,
		},
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.Recover(),
		httpx.SecurityHeaders(hsts),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAccount()
	r.registerMe()
	r.registerAdmin()
	r.registerSystem()

	r.handle("/swagger/", httpSwagger.Handler(), policy.NamePublic)

	r.handler = httpx.Chain(r.Gate.Wrap(r.Mux), r.middlewares...)
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
// ApplyRoutes must have been called.
//
//	@title			Accounts Service API
//	@version		0.1.0
//	@description	Account registration, sign in and role based access control.
//	@description
//	@description				Sessions are carried in a sealed HttpOnly cookie. Non-browser clients may send the sealed value as a bearer token.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/accounts
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	SessionCookie
//	@in							cookie
//	@name						accounts_session
//	@description				Sealed session token set by login or register.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

// handle registers h under pattern and declares its policies with the gate.
// No policies means the gate's fallback applies.
func (r *Router) handle(pattern string, h http.Handler, policies ...string) {
	r.Gate.Declare(pattern, policies...)
	r.Mux.Handle(pattern, h)
}

func (r *Router) registerAccount() {
	h := &AccountHandler{
		Identity: r.IdentityService,
		Sessions: r.SessionManager,
		Carrier:  r.Carrier,
		Redirect: r.Redirect,
	}

	// POST /register - strict rate limit by IP (account creation)
	r.handle("POST /v1/account/register",
		httpx.Chain(gate.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(r.Limits.Strict),
		),
		policy.NameRequiresAnonymous,
	)

	// POST /login - moderate limit per IP across all accounts, strict limit
	// per IP + email against guessing one password
	r.handle("POST /v1/account/login",
		httpx.Chain(gate.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(r.Limits.Moderate),
			httpx.RateLimitByIPAndJSONField(r.Limits.Strict, "email"),
		),
		policy.NameRequiresAnonymous,
	)

	r.handle("POST /v1/account/logout",
		httpx.Chain(gate.HandlerFunc(h.HandleLogout),
			httpx.RateLimitBySubject(r.Limits.Moderate),
		),
		policy.NameRequiresAuthentication,
	)

	// GET /email-available - remote validation for the registration form
	r.handle("GET /v1/account/email-available",
		httpx.Chain(gate.HandlerFunc(h.HandleEmailAvailable),
			httpx.RateLimitByIP(r.Limits.Public),
		),
		policy.NamePublic,
	)
}

func (r *Router) registerMe() {
	// Declares no policy: covered by the fallback.
	r.handle("GET /v1/me",
		httpx.Chain(gate.HandlerFunc(MeHandler),
			httpx.RateLimitBySubject(r.Limits.Moderate),
		),
	)
}

func (r *Router) registerAdmin() {
	h := &RolesHandler{Identity: r.IdentityService}

	r.handle("GET /v1/admin/roles",
		httpx.Chain(h,
			httpx.RateLimitBySubject(r.Limits.Moderate),
		),
		policy.RoleName(domain.RoleAdmin),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - public limits (monitoring systems may poll frequently)
	r.handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.Limits.Public),
		),
		policy.NamePublic,
	)
	r.handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.sessions),
			httpx.RateLimitByIP(r.Limits.Public),
		),
		policy.NamePublic,
	)
}
