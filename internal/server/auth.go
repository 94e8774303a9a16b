package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const localSender = "sender"

// IssueToken signs an HS256 token whose subject is the sender address.
func IssueToken(secret []byte, sender string, ttl time.Duration, now time.Time) (string, error) {
	if sender == "" {
		return "", errors.New("token subject is required")
	}
	claims := jwt.RegisteredClaims{
		Subject:   sender,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken validates token and returns its subject.
func ParseToken(secret []byte, token string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// bearerToken reads the Authorization header, falling back to the token
// query parameter that browsers use for websocket upgrades.
func bearerToken(c *fiber.Ctx) (string, error) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return c.Query("token"), nil
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New("invalid authorization format")
	}
	return parts[1], nil
}

// requireSender rejects requests without a valid token and stores the
// token subject as the transaction sender.
func (s *FiberServer) requireSender(c *fiber.Ctx) error {
	token, err := bearerToken(c)
	if err != nil {
		return unauthenticated(c, err.Error())
	}
	if token == "" {
		return unauthenticated(c, "authorization header required")
	}

	sender, err := ParseToken(s.jwtSecret, token)
	if err != nil {
		return unauthenticated(c, "invalid or expired token")
	}

	c.Locals(localSender, sender)
	return c.Next()
}

func senderOf(c *fiber.Ctx) string {
	sender, _ := c.Locals(localSender).(string)
	return sender
}
