package http

import (
	"net/http"

	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/pkg/authsdk"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
)

type RolesHandler struct {
	Identity *service.IdentityService
}

// ServeHTTP handles the list roles endpoint
//
//	@Summary		List all roles
//	@Description	Returns every role with the number of users holding it. Requires the Admin role.
//	@Tags			Admin
//	@Produce		json
//	@Success		200	{object}	authsdk.ListRolesResponse	"List of roles"
//	@Failure		401	{object}	authsdk.ErrorResponse		"Not signed in"
//	@Failure		403	{object}	authsdk.ErrorResponse		"Forbidden - Admin role required"
//	@Failure		500	{object}	authsdk.ErrorResponse		"Internal server error"
//	@Security		SessionCookie
//	@Router			/v1/admin/roles [get].
func (h *RolesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	roles, err := h.Identity.ListRoles(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response := authsdk.ListRolesResponse{
		Roles: make([]authsdk.RoleInfo, len(roles)),
	}
	for i, m := range roles {
		response.Roles[i] = authsdk.RoleInfo{
			ID:        m.Role.ID,
			Name:      m.Role.Name.String(),
			Members:   m.Members,
			CreatedAt: m.Role.CreatedAt,
		}
	}

	httpx.WriteJSON(w, http.StatusOK, response)
}
