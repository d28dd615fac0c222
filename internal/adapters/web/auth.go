package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type authClaimsKey struct{}

// Roles carried in the token. Company users approve; vendors raise GRNs and invoices.
const (
	RoleAdmin    = "admin"
	RoleCompany  = "company"
	RoleVendor   = "vendor"
	RoleEmployee = "employee"
)

// AuthClaims holds the caller's identity extracted from the JWT.
type AuthClaims struct {
	Subject   string
	CompanyID string
	Role      string
}

// authFromContext returns the auth claims stored in ctx, or nil.
func authFromContext(ctx context.Context) *AuthClaims {
	v, _ := ctx.Value(authClaimsKey{}).(*AuthClaims)
	return v
}

// actor names the writer recorded in *_updated_by fields.
func actor(r *http.Request) string {
	if c := authFromContext(r.Context()); c != nil && c.Subject != "" {
		return c.Role + ":" + c.Subject
	}
	return "api"
}

// jwtClaims is the JWT payload struct used for signing and parsing.
type jwtClaims struct {
	CompanyID string `json:"company_id"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// RequireAuth is chi middleware that validates a bearer token (or the auth_token
// cookie) and injects AuthClaims into the request context. Returns 401 if the token
// is absent or invalid.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			writeError(w, r, "authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		claims := &jwtClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(h.jwtSecret), nil
		})
		if err != nil || !token.Valid {
			writeError(w, r, "invalid or expired token", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), authClaimsKey{}, &AuthClaims{
			Subject:   claims.Subject,
			CompanyID: claims.CompanyID,
			Role:      claims.Role,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects callers whose token role is not listed. Admins always pass.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := authFromContext(r.Context())
			if c == nil {
				writeError(w, r, "authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
				return
			}
			if c.Role != RoleAdmin && !contains(roles, c.Role) {
				writeError(w, r, "role "+c.Role+" may not perform this action", "FORBIDDEN", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// inCompany reports whether the caller may see records owned by companyID. Company
// users and employees are confined to the company in their token; admins and
// vendors work across companies.
func inCompany(r *http.Request, companyID string) bool {
	c := authFromContext(r.Context())
	if c == nil {
		return false
	}
	switch c.Role {
	case RoleCompany, RoleEmployee:
		return c.CompanyID == companyID
	}
	return true
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if after, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(after)
		}
	}
	if cookie, err := r.Cookie("auth_token"); err == nil {
		return cookie.Value
	}
	return ""
}

// me handles GET /api/auth/me and echoes the caller's identity.
func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	if claims == nil {
		writeError(w, r, "not authenticated", "UNAUTHORIZED", http.StatusUnauthorized)
		return
	}

	type meResponse struct {
		Subject   string `json:"subject"`
		Role      string `json:"role"`
		CompanyID string `json:"company_id"`
	}
	writeJSON(w, meResponse{
		Subject:   claims.Subject,
		Role:      claims.Role,
		CompanyID: claims.CompanyID,
	})
}
