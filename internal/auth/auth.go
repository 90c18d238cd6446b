// Package auth implements bearer-JWT authentication and role gating for the
// HTTP API (§6): HS256 tokens carrying {sub, email, role, username, iat,
// exp} claims, with role in {admin, manager, viewer}.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ignite/adcontrol/internal/apperr"
)

// Role enumerates the three access levels the API recognizes.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleViewer  Role = "viewer"
)

// rank orders roles so Allows can compare by privilege rather than identity.
var rank = map[Role]int{RoleViewer: 0, RoleManager: 1, RoleAdmin: 2}

// Allows reports whether r meets or exceeds the privilege of min.
func (r Role) Allows(min Role) bool {
	return rank[r] >= rank[min]
}

// Claims is the JWT payload this service verifies on every request;
// Issuer.Issue can also mint tokens carrying it.
type Claims struct {
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 bearer tokens.
type Issuer struct {
	signingKey []byte
	ttl        time.Duration
}

// NewIssuer creates an Issuer. signingKey comes from the environment
// variable named by config's jwt_signing_key_env, never from the Settings
// Store (token verification must work even if the database is down).
func NewIssuer(signingKey []byte, ttl time.Duration) *Issuer {
	return &Issuer{signingKey: signingKey, ttl: ttl}
}

// Issue mints a token for the given identity, used by test/fixture setup
// and any first-party login flow layered above this package.
func (i *Issuer) Issue(subject, email string, role Role, username string) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		Email: email, Role: role, Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(i.signingKey)
}

// Verify parses and validates token, returning its Claims. Expired or
// malformed tokens return apperr.Authorization so the API layer maps them
// to 401 uniformly.
func (i *Issuer) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("auth: unexpected signing method")
		}
		return i.signingKey, nil
	})
	if err != nil || !parsed.Valid {
		return nil, apperr.Authorization("auth: invalid or expired token")
	}
	return claims, nil
}

type contextKey string

const claimsContextKey contextKey = "auth.claims"

// FromContext extracts the Claims a Middleware call stored on ctx.
func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsContextKey).(*Claims)
	return c, ok
}

// Middleware parses the Authorization bearer header, verifies the token,
// and stores its Claims on the request context. Missing or invalid tokens
// respond 401 and short-circuit the handler chain.
func Middleware(issuer *Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) {
				apperr.WriteHTTP(w, apperr.Authorization("auth: missing bearer token"))
				return
			}
			claims, err := issuer.Verify(strings.TrimPrefix(header, prefix))
			if err != nil {
				apperr.WriteHTTP(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole returns middleware that 403s any request whose caller's role
// does not meet min. It must run after Middleware, which populates the
// Claims this reads.
func RequireRole(min Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := FromContext(r.Context())
			if !ok {
				apperr.WriteHTTP(w, apperr.Authorization("auth: no claims on request"))
				return
			}
			if !claims.Role.Allows(min) {
				apperr.WriteHTTP(w, apperr.Forbidden("auth: role does not permit this action"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
