package middleware

import (
	"net/http"

	"perfreview/internal/domain/auth"
	"perfreview/internal/transport/http/api"
)

// RequireCapability short-circuits routes whose capability the caller's role lacks. Domain
// services repeat the check along with row-level scoping.
func RequireCapability(capability auth.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := GetActor(r.Context())
			if !ok {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
				return
			}
			if err := auth.Authorize(actor, capability); err != nil {
				api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", GetRequestID(r.Context()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
