package handler

import (
	"context"
	"net/http"

	"github.com/sakif/vouchnet/internal/auth"
)

// DeveloperResolver maps the session's user to the developer profile the
// user acts as. *service.AuthService satisfies it.
type DeveloperResolver interface {
	DeveloperIDForUser(ctx context.Context, userID string) (string, error)
}

// callerDeveloperID resolves the authenticated caller's developer ID and
// writes the error response itself when it cannot.
func callerDeveloperID(w http.ResponseWriter, r *http.Request, resolver DeveloperResolver) (string, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "valid authentication required",
		})
		return "", false
	}

	developerID, err := resolver.DeveloperIDForUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return "", false
	}
	return developerID, true
}
