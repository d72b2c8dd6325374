package middleware

import (
	"net/http"

	"github.com/agritrace/agritrace-backend/api/responses"
	"github.com/agritrace/agritrace-backend/pkg/enums"
	pkgerrors "github.com/agritrace/agritrace-backend/pkg/errors"
	"github.com/agritrace/agritrace-backend/pkg/logger"
)

// RequireRole rejects requests whose authenticated role is not in the allow
// list. Route-level coarse gate; the services re-check roles themselves.
func RequireRole(logg *logger.Logger, roles ...enums.ParticipantRole) func(http.Handler) http.Handler {
	allowed := map[enums.ParticipantRole]struct{}{}
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := allowed[RoleFromContext(r.Context())]; !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
