package authsdk

import "time"

// ============================================================================
// Error Types
// ============================================================================

// ErrorResponse is the JSON body of every error response. Violations is only
// present on validation failures.
type ErrorResponse struct {
	// Error is the machine readable error code (e.g., "validation_error")
	Error string `json:"error"`

	// ErrorDescription is a human-readable description safe to display
	ErrorDescription string `json:"error_description,omitempty"`

	// Violations lists every failed field rule
	Violations []Violation `json:"violations,omitempty"`
}

// Violation is one failed field rule.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ============================================================================
// Account Types
// ============================================================================

// RegisterRequest is the body of POST /v1/account/register.
type RegisterRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	DisplayName     string `json:"display_name"`
	Phone           string `json:"phone,omitempty"`

	// Role is "User" or "Admin"; empty registers a regular user
	Role string `json:"role,omitempty"`
}

// LoginRequest is the body of POST /v1/account/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`

	// RememberMe issues a persistent session that survives browser restarts
	RememberMe bool `json:"remember_me,omitempty"`

	// ReturnURL is a site-local path to continue to after signing in
	ReturnURL string `json:"return_url,omitempty"`
}

// AccountResponse describes a user account.
type AccountResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Phone       string    `json:"phone,omitempty"`
	Roles       []string  `json:"roles"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
}

// LoginResponse is returned after a successful sign in.
type LoginResponse struct {
	Account AccountResponse `json:"account"`

	// Redirect is where the client should navigate next
	Redirect string `json:"redirect"`

	// ExpiresAt is set for persistent sessions only
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// MeResponse describes the signed-in identity.
type MeResponse struct {
	UserID      string   `json:"user_id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"display_name"`
	SessionID   string   `json:"session_id"`
	Roles       []string `json:"roles"`
}

// EmailAvailableResponse answers GET /v1/account/email-available.
type EmailAvailableResponse struct {
	Available bool `json:"available"`
}

// ============================================================================
// Role Types
// ============================================================================

// RoleInfo describes a role and how many users hold it.
type RoleInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Members   int       `json:"members"`
	CreatedAt time.Time `json:"created_at"`
}

// ListRolesResponse is returned by GET /v1/admin/roles.
type ListRolesResponse struct {
	Roles []RoleInfo `json:"roles"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	// Database indicates the user/role store status
	Database string `json:"database"`

	// Sessions indicates the session store status
	Sessions string `json:"sessions"`
}
