package middleware

import (
	"crypto/subtle"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/bookingchat/internal/models"
	"github.com/saeid-a/bookingchat/pkg/utils"
)

const InternalKeyHeader = "X-Internal-Key"

var ErrInvalidSubject = errors.New("invalid token subject")

func AuthRequired(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing authorization header",
			})
		}

		tokenString, ok := BearerToken(authHeader)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid authorization header format",
			})
		}

		claims, err := utils.ValidateToken(tokenString, secret)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals("user_id", claims.UserID)
		c.Locals("role", claims.Role)

		return c.Next()
	}
}

// InternalAPIKey guards the booking-system ingress. An empty key disables the
// routes entirely.
func InternalAPIKey(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if key == "" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Internal API is disabled",
			})
		}

		provided := c.Get(InternalKeyHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid internal key",
			})
		}
		return c.Next()
	}
}

func BearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// TokenSubject validates a token and returns the numeric user id and role it
// carries. The websocket gateway authenticates with it.
func TokenSubject(token, secret string) (int64, string, error) {
	claims, err := utils.ValidateToken(token, secret)
	if err != nil {
		return 0, "", err
	}
	userID, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil || userID <= 0 {
		return 0, "", ErrInvalidSubject
	}
	if claims.Role != models.UserTypeClient && claims.Role != models.UserTypeProvider {
		return 0, "", ErrInvalidSubject
	}
	return userID, claims.Role, nil
}
