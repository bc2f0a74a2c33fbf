package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/lephuong249/storefront-orders/internal/api/httpx"
	"github.com/lephuong249/storefront-orders/internal/apperr"
)

const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"

	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Identity is the caller as asserted by the upstream auth gateway.
type Identity struct {
	UserID string
	Role   string
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// Identify reads the identity headers. Requests without a user id pass
// through anonymously.
func Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}
		role := strings.ToUpper(strings.TrimSpace(r.Header.Get(HeaderUserRole)))
		if role == "" {
			role = RoleUser
		}
		ctx := WithIdentity(r.Context(), Identity{UserID: userID, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects anonymous callers with 401 and callers holding none of
// roles with 403.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[strings.ToUpper(role)] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				httpx.WriteError(r.Context(), w, nil,
					apperr.Client(apperr.CodeUnauthenticated, "authentication required", http.StatusUnauthorized))
				return
			}
			if _, ok := allowed[id.Role]; !ok {
				httpx.WriteError(r.Context(), w, nil,
					apperr.Client(apperr.CodeForbidden, "insufficient role for this operation", http.StatusForbidden))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
