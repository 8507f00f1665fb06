package testutil

import (
	"net/http"

	"github.com/google/uuid"

	id "dynforms/pkg/domain"
	"dynforms/pkg/requestcontext"
)

const (
	headerTestUser = "X-Test-User"
	headerTestRole = "X-Test-Role"
)

// FakeAuth stands in for auth.RequireAuth in handler tests. The caller comes
// from X-Test-User and X-Test-Role; a role without a user gets a fresh ID.
// Requests without either header stay anonymous.
func FakeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := r.Header.Get(headerTestRole)
		userID, err := id.ParseUserID(r.Header.Get(headerTestUser))
		if err != nil {
			if role == "" {
				next.ServeHTTP(w, r)
				return
			}
			userID = id.UserID(uuid.New())
		}
		ctx := requestcontext.WithPrincipal(r.Context(), id.Principal{UserID: userID, Role: id.Role(role)})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AsPrincipal marks req for FakeAuth. A nil user sends only the role.
func AsPrincipal(req *http.Request, p id.Principal) *http.Request {
	if !p.UserID.IsNil() {
		req.Header.Set(headerTestUser, p.UserID.String())
	}
	if p.Role != "" {
		req.Header.Set(headerTestRole, string(p.Role))
	}
	return req
}

// WithPrincipal puts p straight on the request context, for handlers mounted
// without FakeAuth.
func WithPrincipal(req *http.Request, p id.Principal) *http.Request {
	return req.WithContext(requestcontext.WithPrincipal(req.Context(), p))
}
