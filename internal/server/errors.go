package server

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"dicehouse/internal/game"
)

const (
	codeUnauthenticated = "UNAUTHENTICATED"
	codeNotFound        = "NOT_FOUND"
	codeUnavailable     = "UNAVAILABLE"
	codeInternal        = "INTERNAL"
)

type errorBody struct {
	Error    string            `json:"error"`
	Message  string            `json:"message,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// writeError renders err as {"error": CODE, "message": ...}. Engine errors
// keep their code and status; anything else is logged and reported as an
// internal error without its detail.
func writeError(c *fiber.Ctx, err error) error {
	var ge *game.Error
	if errors.As(err, &ge) {
		return c.Status(ge.Code.HTTPStatus()).JSON(errorBody{
			Error:    string(ge.Code),
			Message:  ge.Message,
			Metadata: ge.Metadata,
		})
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(errorBody{Error: codeForStatus(fe.Code), Message: fe.Message})
	}

	log.Printf("[SERVER] %s %s failed: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(errorBody{
		Error:   codeInternal,
		Message: "internal error",
	})
}

func unauthenticated(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(errorBody{Error: codeUnauthenticated, Message: message})
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return codeNotFound
	case fiber.StatusServiceUnavailable:
		return codeUnavailable
	case fiber.StatusBadRequest:
		return string(game.CodeInvalidMessage)
	case fiber.StatusUnauthorized:
		return codeUnauthenticated
	default:
		return codeInternal
	}
}

// errorHandler is the app-wide fallback for errors returned by handlers and
// middleware.
func errorHandler(c *fiber.Ctx, err error) error {
	return writeError(c, err)
}
