package middleware

import (
	"net/http"

	"github.com/vegshop/vegshop-backend/api/responses"
	"github.com/vegshop/vegshop-backend/pkg/enums"
	pkgerrors "github.com/vegshop/vegshop-backend/pkg/errors"
	"github.com/vegshop/vegshop-backend/pkg/logger"
)

// RequireRole admits only callers whose token carries role. It must run after
// Auth; an anonymous request is reported as unauthenticated, not forbidden.
func RequireRole(role enums.Role, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			switch {
			case UserIDFromContext(ctx) == "" && RoleFromContext(ctx) == "":
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			case RoleFromContext(ctx) != role.String():
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, role.String()+" role required"))
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
