package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/pharmalink/internal/apperrors"
	"github.com/rxtech-lab/pharmalink/internal/logger"
)

func statusForKind(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindValidation:
		return fiber.StatusBadRequest
	case apperrors.KindNotFound:
		return fiber.StatusNotFound
	case apperrors.KindAuthorization:
		return fiber.StatusForbidden
	case apperrors.KindConflict:
		return fiber.StatusConflict
	case apperrors.KindExternal:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes err as {error, kind, details}. Errors outside the
// domain taxonomy are logged and hidden behind a generic message.
func respondError(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
	}

	kind := apperrors.KindOf(err)
	status := statusForKind(kind)
	if kind == apperrors.KindUnknown {
		logger.Error(c.UserContext(), "request failed", "method", c.Method(), "path", c.Path(), "error", err)
		return c.Status(status).JSON(fiber.Map{"error": "internal server error"})
	}

	body := fiber.Map{
		"error": err.Error(),
		"kind":  kind.String(),
	}
	if details := apperrors.DetailsOf(err); len(details) > 0 {
		body["details"] = details
	}
	return c.Status(status).JSON(body)
}

func badRequest(message string) error {
	return fiber.NewError(fiber.StatusBadRequest, message)
}
