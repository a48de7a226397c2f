package http

import (
	"net/http"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/pkg/authsdk"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
)

// MeHandler godoc
//
//	@Summary		Current identity
//	@Description	Returns the signed-in user and the roles resolved for this request.
//	@Tags			Account
//	@Produce		json
//	@Success		200	{object}	authsdk.MeResponse		"Identity"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Not signed in"
//	@Security		SessionCookie
//	@Router			/v1/me [get].
func MeHandler(w http.ResponseWriter, r *http.Request, id *domain.Identity) {
	if id.IsAnonymous() {
		httpx.WriteError(w, http.StatusUnauthorized, authsdk.ErrorCodeLoginRequired, "Sign in to continue.")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MeResponse{
		UserID:      id.UserID,
		Email:       id.Email,
		DisplayName: id.DisplayName,
		SessionID:   id.SessionID,
		Roles:       roleStrings(id.Roles),
	})
}
