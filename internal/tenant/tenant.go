// Package tenant resolves the request-scoped tenant identity from the
// X-Tenant-Id header and the authenticated principal's tenant affinity.
package tenant

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/shopboard/statusboard-api/internal/apperror"
	"github.com/shopboard/statusboard-api/internal/auth"
)

// ctxKey is deliberately unexported so the tenant ID can only reach
// downstream handlers via the ID accessor below, never a bare string
// passed hand-to-hand through function signatures.
type ctxKey string

const tenantIDKey ctxKey = "tenant_id"

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,62}[a-z0-9]$`)

// Valid reports whether s is a syntactically acceptable tenant
// identifier: either a UUID or a short lowercase slug.
func Valid(s string) bool {
	if s == "" {
		return false
	}
	if _, err := uuid.Parse(s); err == nil {
		return true
	}
	return slugPattern.MatchString(s)
}

// ErrorWriter renders a resolution failure onto the response in the
// caller's envelope format. httpapi supplies its own implementation when
// constructing the middleware so this package has no dependency on it.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err *apperror.Error)

// NewMiddleware builds the tenant-resolution middleware. It requires
// X-Tenant-Id to be present and syntactically valid, and — when a
// Principal is already attached to the context by the auth middleware —
// requires it to agree with the principal's tenant affinity.
//
// Must run after auth.Authenticate so the Principal, if any, is already
// in context.
func NewMiddleware(writeErr ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("X-Tenant-Id")
			if header == "" {
				writeErr(w, r, apperror.New(apperror.KindMissingTenant, "X-Tenant-Id header is required"))
				return
			}
			if !Valid(header) {
				writeErr(w, r, apperror.New(apperror.KindInvalidTenant, "X-Tenant-Id is not a valid UUID or slug"))
				return
			}

			if principal, ok := auth.PrincipalFrom(r.Context()); ok && principal.TenantID != "" {
				if principal.TenantID != header {
					log.Warn().Str("header_tenant", header).Str("principal_tenant", principal.TenantID).Msg("tenant mismatch")
					writeErr(w, r, apperror.New(apperror.KindTenantMismatch, "X-Tenant-Id does not match the authenticated principal's tenant"))
					return
				}
			}

			ctx := context.WithValue(r.Context(), tenantIDKey, header)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ID returns the resolved tenant identifier for the request, or "" if
// none was resolved (should never happen on a route behind the
// middleware built by NewMiddleware).
func ID(ctx context.Context) string {
	if v, ok := ctx.Value(tenantIDKey).(string); ok {
		return v
	}
	return ""
}
