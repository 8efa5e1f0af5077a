package middleware

import (
	"net/http"
	"strings"

	"soda-machine/pkg"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ClaimsKey is the echo context key holding the verified jwt.MapClaims.
const ClaimsKey = "user"

const (
	userIDKey = "user_id"
	roleKey   = "role"
)

var parser = jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

// JWTAuthMiddleware accepts only HS256 tokens signed with secret that carry a
// user_id and a role. Verified claims are stored under ClaimsKey.
func JWTAuthMiddleware(secret string, log pkg.Logger) echo.MiddlewareFunc {
	keyFunc := func(*jwt.Token) (interface{}, error) { return []byte(secret), nil }

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
			if !ok || raw == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"errors": "Authorization header missing"})
			}

			claims := jwt.MapClaims{}
			if _, err := parser.ParseWithClaims(raw, claims, keyFunc); err != nil {
				log.Warn("Rejected token", zap.String("path", c.Request().URL.Path), zap.Error(err))
				return c.JSON(http.StatusUnauthorized, map[string]string{"errors": "Invalid token"})
			}
			userID, _ := claims[userIDKey].(string)
			role, _ := claims[roleKey].(string)
			if userID == "" || role == "" {
				log.Warn("Token without session claims", zap.String("path", c.Request().URL.Path))
				return c.JSON(http.StatusUnauthorized, map[string]string{"errors": "Invalid token claims"})
			}

			c.Set(ClaimsKey, claims)
			return next(c)
		}
	}
}

// UserID returns the session user id verified by JWTAuthMiddleware.
func UserID(c echo.Context) (string, bool) {
	claims, ok := c.Get(ClaimsKey).(jwt.MapClaims)
	if !ok {
		return "", false
	}
	userID, ok := claims[userIDKey].(string)
	return userID, ok && userID != ""
}

// RequireRole rejects requests whose token does not carry role.
// Must run after JWTAuthMiddleware.
func RequireRole(role string, log pkg.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := c.Get(ClaimsKey).(jwt.MapClaims)
			if !ok || claims[roleKey] != role {
				log.Warn("Forbidden request", zap.String("path", c.Request().URL.Path))
				return c.JSON(http.StatusForbidden, map[string]string{"errors": "Forbidden"})
			}
			return next(c)
		}
	}
}
