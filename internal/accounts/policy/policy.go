// Package policy evaluates named authorization policies against the identity
// resolved for a request.
//
// Policies are registered once when the Engine is built and are read-only
// afterwards. A route that names no policy gets the Engine's fallback; a
// route that names several must pass all of them.
package policy

import (
	"errors"
	"fmt"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
)

// Decision is the outcome of an evaluation.
type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Reason explains a Deny so the caller can pick a response.
type Reason int

const (
	ReasonNone Reason = iota
	// ReasonUnauthenticated means signing in could change the outcome.
	ReasonUnauthenticated
	// ReasonForbidden means the current identity is not allowed.
	ReasonForbidden
)

func (r Reason) String() string {
	switch r {
	case ReasonUnauthenticated:
		return "unauthenticated"
	case ReasonForbidden:
		return "forbidden"
	default:
		return "none"
	}
}

// Policy is a named predicate over the request identity. A nil identity is
// the anonymous principal.
type Policy struct {
	Name  string
	Allow func(id *domain.Identity) bool
}

// Built-in policy names.
const (
	NameRequiresAuthentication = "RequiresAuthentication"
	NameRequiresAnonymous      = "RequiresAnonymous"
	NamePublic                 = "Public"
	rolePrefix                 = "RequiresRole:"
)

var (
	// RequiresAuthentication allows any signed-in identity.
	RequiresAuthentication = Policy{
		Name:  NameRequiresAuthentication,
		Allow: func(id *domain.Identity) bool { return !id.IsAnonymous() },
	}

	// RequiresAnonymous allows only requests without an identity.
	RequiresAnonymous = Policy{
		Name:  NameRequiresAnonymous,
		Allow: func(id *domain.Identity) bool { return id.IsAnonymous() },
	}

	// Public allows everyone. Routes must opt into it explicitly.
	Public = Policy{
		Name:  NamePublic,
		Allow: func(*domain.Identity) bool { return true },
	}
)

// RequiresRole allows a signed-in identity holding role.
func RequiresRole(role domain.RoleName) Policy {
	return Policy{
		Name:  RoleName(role),
		Allow: func(id *domain.Identity) bool { return id.HasRole(role) },
	}
}

// RoleName is the registered name of RequiresRole(role).
func RoleName(role domain.RoleName) string {
	return rolePrefix + string(role)
}

// Result reports the decision and, on Deny, which policy failed and why.
type Result struct {
	Decision Decision
	Policy   string
	Reason   Reason
}

// Allowed is shorthand for Decision == Allow.
func (r Result) Allowed() bool { return r.Decision == Allow }

var (
	ErrDuplicatePolicy = errors.New("policy: duplicate name")
	ErrInvalidPolicy   = errors.New("policy: name and predicate are required")
)

// Engine holds the registered policies and the fallback applied to routes
// that declare none.
type Engine struct {
	fallback Policy
	policies map[string]Policy
}

// NewEngine registers fallback and policies. The built-ins are always
// present; registering a name twice is an error.
func NewEngine(fallback Policy, policies ...Policy) (*Engine, error) {
	if fallback.Name == "" || fallback.Allow == nil {
		return nil, ErrInvalidPolicy
	}

	e := &Engine{
		fallback: fallback,
		policies: make(map[string]Policy),
	}

	builtins := []Policy{RequiresAuthentication, RequiresAnonymous, Public}
	for _, r := range domain.RoleNames {
		builtins = append(builtins, RequiresRole(r))
	}
	for _, p := range builtins {
		e.policies[p.Name] = p
	}

	for _, p := range policies {
		if p.Name == "" || p.Allow == nil {
			return nil, ErrInvalidPolicy
		}
		if _, ok := e.policies[p.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePolicy, p.Name)
		}
		e.policies[p.Name] = p
	}

	// A custom fallback is also reachable by name.
	if _, ok := e.policies[fallback.Name]; !ok {
		e.policies[fallback.Name] = fallback
	}
	return e, nil
}

// MustEngine is NewEngine for static configuration.
func MustEngine(fallback Policy, policies ...Policy) *Engine {
	e, err := NewEngine(fallback, policies...)
	if err != nil {
		panic(err)
	}
	return e
}

// Fallback returns the name of the policy applied to undeclared routes.
func (e *Engine) Fallback() string { return e.fallback.Name }

// Has reports whether name is registered.
func (e *Engine) Has(name string) bool {
	_, ok := e.policies[name]
	return ok
}

// Evaluate checks id against every named policy. With no names the
// fallback applies. The first failing policy is reported; an unknown name
// denies.
func (e *Engine) Evaluate(id *domain.Identity, names ...string) Result {
	if len(names) == 0 {
		return e.check(e.fallback, id)
	}

	for _, name := range names {
		p, ok := e.policies[name]
		if !ok {
			return Result{Decision: Deny, Policy: name, Reason: ReasonForbidden}
		}
		if res := e.check(p, id); !res.Allowed() {
			return res
		}
	}
	return Result{Decision: Allow}
}

func (e *Engine) check(p Policy, id *domain.Identity) Result {
	if p.Allow(id) {
		return Result{Decision: Allow}
	}

	reason := ReasonForbidden
	if id.IsAnonymous() {
		reason = ReasonUnauthenticated
	}
	return Result{Decision: Deny, Policy: p.Name, Reason: reason}
}
