package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/pkg/authsdk"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
)

type AccountHandler struct {
	Identity *service.IdentityService
	Sessions *service.SessionManager
	Carrier  *httpx.SessionCarrier
	Redirect service.LoginRedirect
}

// HandleRegister creates an account and signs the new user in.
//
//	@Summary		Register an account
//	@Description	Creates a user with the requested role (created on first use) and sets a browser-session scoped cookie.
//	@Description	Only available to anonymous clients.
//	@Tags			Account
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RegisterRequest		true	"Registration form"
//	@Success		201		{object}	authsdk.AccountResponse		"Created account"
//	@Failure		400		{object}	authsdk.ErrorResponse		"Validation failed, every violation listed"
//	@Failure		403		{object}	authsdk.ErrorResponse		"Already signed in"
//	@Failure		409		{object}	authsdk.ErrorResponse		"Email already registered"
//	@Failure		429		{object}	authsdk.ErrorResponse		"Rate limit exceeded"
//	@Failure		500		{object}	authsdk.ErrorResponse		"Internal server error"
//	@Router			/v1/account/register [post].
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request, _ *domain.Identity) {
	ctx := r.Context()

	var req authsdk.RegisterRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadBody(w)
		return
	}

	user, err := h.Identity.Register(ctx, service.RegisterRequest{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		DisplayName:     req.DisplayName,
		Phone:           req.Phone,
		Role:            req.Role,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	roles, err := h.Identity.RolesFor(ctx, user.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if _, ok := h.signIn(w, r, user, false); !ok {
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, accountResponse(user, roles))
}

// HandleLogin verifies credentials and starts a session.
//
//	@Summary		Sign in
//	@Description	Verifies email and password and sets the session cookie. remember_me issues a persistent session;
//	@Description	otherwise the cookie ends with the browser session. The redirect field is the admin landing for
//	@Description	admins, else a site-local return_url, else home.
//	@Tags			Account
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.LoginResponse	"Signed in"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Malformed body"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid login attempt"
//	@Failure		403		{object}	authsdk.ErrorResponse	"Already signed in"
//	@Failure		429		{object}	authsdk.ErrorResponse	"Rate limit exceeded"
//	@Failure		500		{object}	authsdk.ErrorResponse	"Internal server error"
//	@Router			/v1/account/login [post].
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request, _ *domain.Identity) {
	ctx := r.Context()

	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadBody(w)
		return
	}

	user, err := h.Identity.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	roles, err := h.Identity.RolesFor(ctx, user.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	sess, ok := h.signIn(w, r, user, req.RememberMe)
	if !ok {
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.LoginResponse{
		Account:   accountResponse(user, roles),
		Redirect:  h.Redirect.Target(roles, req.ReturnURL),
		ExpiresAt: sess.ExpiresAt,
	})
}

// signIn issues a session for user and sets the cookie. On failure the
// error response has been written and ok is false.
func (h *AccountHandler) signIn(w http.ResponseWriter, r *http.Request, user domain.User, persistent bool) (domain.Session, bool) {
	token, sess, err := h.Sessions.CreateSession(r.Context(), user, persistent)
	if err != nil {
		writeServiceError(w, r, err)
		return domain.Session{}, false
	}
	if err := h.Carrier.Write(w, token, sess.ExpiresAt); err != nil {
		slogx.FromContext(r.Context()).Error("failed to seal session cookie", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, authsdk.ErrorCodeServerError, "")
		return domain.Session{}, false
	}
	return sess, true
}

// HandleLogout revokes the current session.
//
//	@Summary		Sign out
//	@Description	Revokes the current session and clears the cookie. Revoking is idempotent.
//	@Tags			Account
//	@Success		204	"Signed out"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Not signed in"
//	@Failure		500	{object}	authsdk.ErrorResponse	"Internal server error"
//	@Security		SessionCookie
//	@Router			/v1/account/logout [post].
func (h *AccountHandler) HandleLogout(w http.ResponseWriter, r *http.Request, id *domain.Identity) {
	h.Carrier.Clear(w)

	if err := h.Sessions.RevokeSession(r.Context(), h.Carrier.Read(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}

	slogx.FromContext(r.Context()).Info("signed out", "session_id", id.SessionID)
	w.WriteHeader(http.StatusNoContent)
}

// HandleEmailAvailable reports whether an email is still free.
//
//	@Summary		Check email availability
//	@Description	Remote validation for registration forms.
//	@Tags			Account
//	@Produce		json
//	@Param			email	query		string							true	"Email address"
//	@Success		200		{object}	authsdk.EmailAvailableResponse	"Availability"
//	@Failure		400		{object}	authsdk.ErrorResponse			"Missing email"
//	@Failure		500		{object}	authsdk.ErrorResponse			"Internal server error"
//	@Router			/v1/account/email-available [get].
func (h *AccountHandler) HandleEmailAvailable(w http.ResponseWriter, r *http.Request, _ *domain.Identity) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		httpx.WriteError(w, http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, "email is required")
		return
	}

	ok, err := h.Identity.EmailAvailable(r.Context(), email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.EmailAvailableResponse{Available: ok})
}

func accountResponse(u domain.User, roles domain.RoleSet) authsdk.AccountResponse {
	return authsdk.AccountResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Phone:       u.Phone,
		Roles:       roleStrings(roles),
		CreatedAt:   u.CreatedAt,
	}
}

func roleStrings(roles domain.RoleSet) []string {
	names := roles.Names()
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = n.String()
	}
	return out
}
