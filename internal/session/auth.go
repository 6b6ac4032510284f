package session

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the access-token payload the runtime reads. Only the subject
// matters here: it supplies the default user id for assignment scopes.
// Authorization decisions stay with the backend.
type Claims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// ParseIdentity validates the token signature and returns the subject.
func ParseIdentity(tokenString, secret string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	return claims.Subject, nil
}

// IdentityMiddleware extracts the caller's user id from a bearer token
// when one is present. Requests without a token proceed anonymously; the
// assignment point of view then needs an explicit user id in the scope.
func IdentityMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return c.Next()
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return c.Next()
		}
		if userID, err := ParseIdentity(parts[1], secret); err == nil {
			c.Locals("userId", userID)
		}
		return c.Next()
	}
}

func callerID(c *fiber.Ctx) string {
	id, _ := c.Locals("userId").(string)
	return id
}
