package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/pkg/authsdk"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
)

// writeServiceError maps service errors onto responses. Anything not
// user-correctable is logged and reported as an opaque server_error.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		resp := authsdk.ErrorResponse{
			Error:            authsdk.ErrorCodeValidation,
			ErrorDescription: "One or more fields are invalid.",
			Violations:       make([]authsdk.Violation, len(verr.Violations)),
		}
		for i, v := range verr.Violations {
			resp.Violations[i] = authsdk.Violation{Field: v.Field, Message: v.Message}
		}
		httpx.WriteJSON(w, http.StatusBadRequest, resp)

	case errors.Is(err, service.ErrDuplicateEmail):
		httpx.WriteError(w, http.StatusConflict, authsdk.ErrorCodeDuplicateEmail, "That email is already registered.")

	case errors.Is(err, service.ErrInvalidCredentials):
		httpx.WriteError(w, http.StatusUnauthorized, authsdk.ErrorCodeInvalidCredentials, "Invalid login attempt.")

	default:
		slogx.FromContext(r.Context()).Error("request failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, authsdk.ErrorCodeServerError, "")
	}
}

func writeBadBody(w http.ResponseWriter) {
	httpx.WriteError(w, http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, "Request body must be a single JSON object.")
}
