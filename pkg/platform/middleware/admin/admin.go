package admin

import (
	"log/slog"
	"net/http"

	id "dynforms/pkg/domain"
	"dynforms/pkg/requestcontext"
)

// RequireRole rejects callers whose principal does not satisfy allow. It must
// run after auth.RequireAuth.
func RequireRole(policy string, allow func(id.Principal) bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			principal, ok := requestcontext.Principal(ctx)
			if !ok || !allow(principal) {
				logger.WarnContext(ctx, "role policy rejected caller",
					"policy", policy,
					"user_id", principal.UserID.String(),
					"role", principal.Role.String(),
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"` + policy + ` role required"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin allows only Admin principals.
func RequireAdmin(logger *slog.Logger) func(http.Handler) http.Handler {
	return RequireRole("Admin", id.Principal.IsAdmin, logger)
}

// RequireReviewer allows Reviewer and Admin principals.
func RequireReviewer(logger *slog.Logger) func(http.Handler) http.Handler {
	return RequireRole("Reviewer", id.Principal.IsReviewer, logger)
}
