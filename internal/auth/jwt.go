// Package auth validates bearer credentials and exposes the
// authenticated Principal to downstream handlers.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is drawn from a fixed set recognized across every tenant.
type Role string

const (
	RoleOwner      Role = "owner"
	RoleAdvisor    Role = "advisor"
	RoleTechnician Role = "technician"
	RoleAccountant Role = "accountant"
	RoleCustomer   Role = "customer"
)

// ValidRole reports whether r is one of the fixed recognized roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleOwner, RoleAdvisor, RoleTechnician, RoleAccountant, RoleCustomer:
		return true
	default:
		return false
	}
}

// Claims is the HS256 JWT claim set this service issues and accepts.
// Tokens carry subject, tenant affinity, role, and expiry; validation
// rejects expired, malformed, badly-signed tokens uniformly through
// jwt.ParseWithClaims.
type Claims struct {
	jwt.RegisteredClaims
	TenantID string `json:"tenant_id"`
	Role     Role   `json:"role"`
}

// ValidateToken parses and validates an HS256 token and returns its
// claims. Errors are intentionally undifferentiated beyond "invalid" at
// this layer — the caller maps any failure to auth_required (401).
func ValidateToken(tokenString, secret string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("token is empty")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("jwt validation failed: %w", err)
	}

	if claims.Subject == "" {
		return nil, errors.New("missing sub claim")
	}
	if !ValidRole(claims.Role) {
		return nil, fmt.Errorf("unrecognized role claim: %q", claims.Role)
	}

	return claims, nil
}

// IssueToken mints an HS256 token for the given subject/tenant/role with
// the given TTL. Used by tests and any trusted internal token issuer;
// the HTTP surface itself never issues tokens (session/refresh mechanics
// are external per the authorization contract).
func IssueToken(secret, subject, tenantID string, role Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TenantID: tenantID,
		Role:     role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
