package middleware

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/pharmalink/internal/apperrors"
	"github.com/rxtech-lab/pharmalink/internal/logger"
	"github.com/rxtech-lab/pharmalink/internal/models"
	"github.com/rxtech-lab/pharmalink/internal/utils"
)

const (
	userKey  = "user"
	actorKey = "actor"
)

var (
	ErrMissingToken = errors.New("missing or invalid Bearer token")
	ErrUnknownUser  = errors.New("token subject is not a registered user")
	errBadAudience  = errors.New("invalid audience")
)

// UserResolver maps a token subject to a local user
type UserResolver interface {
	ResolveUser(subject string) (*models.User, error)
}

// AuthConfig holds configuration for the auth middleware
type AuthConfig struct {
	// ResourceID is the expected audience. Empty skips the audience check.
	ResourceID       string
	JWTAuthenticator *utils.JwtAuthenticator
	Users            UserResolver
	// SkipWellKnown lets .well-known endpoints through without a token
	SkipWellKnown bool
}

// BearerToken extracts the token of an Authorization header value
func BearerToken(header string) string {
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// Authenticate validates token and resolves the local user it belongs to
func (cfg AuthConfig) Authenticate(token string) (*utils.AuthenticatedUser, *models.User, error) {
	if token == "" {
		return nil, nil, ErrMissingToken
	}
	if cfg.JWTAuthenticator == nil {
		return nil, nil, errors.New("authentication is not configured")
	}
	claims, err := cfg.JWTAuthenticator.ValidateToken(token)
	if err != nil {
		return nil, nil, err
	}
	if cfg.ResourceID != "" && !slices.Contains(claims.Aud, cfg.ResourceID) {
		return nil, nil, errBadAudience
	}
	user, err := cfg.Users.ResolveUser(claims.Sub)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil, ErrUnknownUser
		}
		return nil, nil, err
	}
	return claims, user, nil
}

// AuthMiddleware returns a Fiber middleware for Bearer token authentication.
// On success the token claims and the caller's Actor are stored in the
// context.
func AuthMiddleware(cfg AuthConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cfg.SkipWellKnown && strings.Contains(c.Path(), ".well-known") {
			return c.Next()
		}

		claims, user, err := cfg.Authenticate(BearerToken(c.Get("Authorization")))
		if err != nil {
			c.Set("WWW-Authenticate", `Bearer realm="pharmalink"`)
			if errors.Is(err, ErrMissingToken) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Missing or invalid Bearer token",
				})
			}
			if errors.Is(err, ErrUnknownUser) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Unknown user",
				})
			}
			logger.Debug(c.UserContext(), "token rejected", "error", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "Invalid token",
				"details": err.Error(),
			})
		}

		c.Locals(userKey, claims)
		c.Locals(actorKey, user.Actor())
		c.SetUserContext(context.WithValue(c.UserContext(), logger.UserIDKey, user.ID))
		return c.Next()
	}
}

// GetAuthenticatedUser retrieves the token claims from Fiber context.
// Returns nil if no user is found or if user is not of correct type
func GetAuthenticatedUser(c *fiber.Ctx) *utils.AuthenticatedUser {
	user, ok := c.Locals(userKey).(*utils.AuthenticatedUser)
	if !ok {
		return nil
	}
	return user
}

// GetActor returns the caller resolved by AuthMiddleware
func GetActor(c *fiber.Ctx) (models.Actor, bool) {
	actor, ok := c.Locals(actorKey).(models.Actor)
	return actor, ok
}
