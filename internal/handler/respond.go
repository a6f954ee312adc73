package handler

import (
	"log/slog"

	"go-inventory-tracker/internal/middleware"
	"go-inventory-tracker/internal/service"
	"go-inventory-tracker/pkg/apperror"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// respondError maps a classified error to its status code. Internal causes
// are logged and never sent to the client.
func respondError(c *fiber.Ctx, log *slog.Logger, err error) error {
	status := apperror.HTTPStatus(err)
	if status >= fiber.StatusInternalServerError {
		log.Error("request failed",
			"method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(fiber.Map{"error": apperror.Message(err)})
}

// actorFrom reads the identity set by middleware.RequireAuth.
func actorFrom(c *fiber.Ctx) service.Actor {
	actor := service.Actor{Username: "system"}
	if id, ok := c.Locals(middleware.LocalUserID).(string); ok {
		actor.UserID = id
	}
	if name, ok := c.Locals(middleware.LocalUsername).(string); ok {
		actor.Username = name
	}
	return actor
}

func parseID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, apperror.Validation("Invalid product ID")
	}
	return id, nil
}
