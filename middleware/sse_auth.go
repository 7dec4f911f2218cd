package middleware

import (
	"errors"
	"strings"
	"time"

	"bounty-platform/logging"
	"bounty-platform/models"
	"bounty-platform/services"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidStreamToken = errors.New("invalid stream token")

type streamClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// StreamTokens signs and verifies the short-lived HS256 tokens a browser
// EventSource passes in the query string.
type StreamTokens struct {
	secret []byte
}

func NewStreamTokens(secret string) *StreamTokens {
	return &StreamTokens{secret: []byte(secret)}
}

// Issue mints a token for the given caller.
func (t *StreamTokens) Issue(a services.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := streamClaims{
		Role: string(a.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify checks the signature and expiry and returns the caller.
func (t *StreamTokens) Verify(token string) (services.Actor, error) {
	if len(t.secret) == 0 {
		return services.Actor{}, ErrInvalidStreamToken
	}
	var claims streamClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return services.Actor{}, errors.Join(ErrInvalidStreamToken, err)
	}

	role, ok := models.ParseRole(claims.Role)
	if !ok || claims.Subject == "" {
		return services.Actor{}, ErrInvalidStreamToken
	}
	return services.Actor{UserID: claims.Subject, Role: role}, nil
}

// SSEAuthMiddleware authenticates stream requests from the `token` query param.
//
//	app.Get("/notifications/stream", middleware.SSEAuthMiddleware(tokens, log), h.Stream)
func SSEAuthMiddleware(tokens *StreamTokens, log logging.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := strings.TrimSpace(c.Query("token"))
		if token == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "missing token in query",
			})
		}

		actor, err := tokens.Verify(token)
		if err != nil {
			log.Warn(c.UserContext(), "stream token rejected", "error", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		SetActor(c, actor)
		return c.Next()
	}
}
