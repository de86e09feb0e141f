package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ujpm/GGH-website-sub000/internal/models"
)

const claimsKey = "auth_claims"

// Verifier is the part of Service the middleware needs.
type Verifier interface {
	VerifyToken(token string) (*Claims, error)
}

// RequireRole rejects requests that lack a valid bearer token (401) or whose
// token carries none of the allowed roles (403). It runs before the handler,
// so the response never depends on whether the addressed resource exists.
func RequireRole(v Verifier, roles ...models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := bearerClaims(v, c.Request().Header.Get("Authorization"))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token").SetInternal(err)
			}
			if !hasRole(claims.Role, roles) {
				return echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions").SetInternal(ErrForbidden)
			}
			c.Set(claimsKey, claims)
			return next(c)
		}
	}
}

// ClaimsFromContext returns the claims stored by RequireRole.
func ClaimsFromContext(c echo.Context) (*Claims, error) {
	claims, ok := c.Get(claimsKey).(*Claims)
	if !ok {
		return nil, errors.New("claims not found in context")
	}
	return claims, nil
}

func bearerClaims(v Verifier, header string) (*Claims, error) {
	if header == "" {
		return nil, ErrUnauthorized
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, ErrUnauthorized
	}
	return v.VerifyToken(parts[1])
}

func hasRole(role models.Role, allowed []models.Role) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
