package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopboard/statusboard-api/internal/apperror"
)

type ctxKey string

const principalKey ctxKey = "principal"

// Principal is the authenticated actor making the request, stamped onto
// the context by Authenticate and read by downstream handlers and the
// tenant resolver.
type Principal struct {
	Subject  string
	TenantID string
	Role     Role
}

// ErrorWriter renders an authentication/authorization failure in the
// caller's envelope format. Injected so this package has no dependency
// on httpapi.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err *apperror.Error)

// Authenticate builds middleware that extracts and validates the bearer
// JWT, rejecting with auth_required (401) when absent or invalid, and
// stamps the resulting Principal onto the request context.
func Authenticate(secret string, writeErr ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token := ""
			if strings.HasPrefix(header, "Bearer ") {
				token = strings.TrimPrefix(header, "Bearer ")
			}
			if token == "" {
				writeErr(w, r, apperror.New(apperror.KindAuthRequired, "missing bearer credential"))
				return
			}

			claims, err := ValidateToken(token, secret)
			if err != nil {
				writeErr(w, r, apperror.Wrap(apperror.KindAuthRequired, "invalid or expired credential", err))
				return
			}

			principal := Principal{Subject: claims.Subject, TenantID: claims.TenantID, Role: claims.Role}
			ctx := context.WithValue(r.Context(), principalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole builds middleware that rejects with forbidden (403) unless
// the authenticated principal's role is in the allowed set. Must run
// after Authenticate.
func RequireRole(writeErr ErrorWriter, allowed ...Role) func(http.Handler) http.Handler {
	allowedSet := make(map[Role]bool, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFrom(r.Context())
			if !ok {
				writeErr(w, r, apperror.New(apperror.KindAuthRequired, "no authenticated principal"))
				return
			}
			if !allowedSet[principal.Role] {
				writeErr(w, r, apperror.New(apperror.KindForbidden, "role does not permit this operation"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PrincipalFrom returns the authenticated Principal from context, if any.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
