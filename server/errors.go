package server

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// respondError turns a domain error into a stable status and short message.
// Internal failures are logged and collapsed; store-level detail never
// reaches the wire.
func (s *Server) respondError(c *fiber.Ctx, err error) error {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation error",
			"errors":  verrs,
		})
	}

	// Store misses use the repository's own error type, not the plain rich
	// error the category switch below handles.
	if repository.IsRecordNotFound(err) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Not found"})
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		status := statusForCategory(richErr.Category)
		if status == fiber.StatusInternalServerError {
			s.logger.Error("request failed", "error", err)
			return c.Status(status).JSON(fiber.Map{"message": "Server error"})
		}
		return c.Status(status).JSON(fiber.Map{"message": richErr.Message})
	}

	s.logger.Error("request failed", "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": "Server error",
	})
}

func statusForCategory(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return fiber.StatusBadRequest
	case goerrors.CategoryAuth:
		return fiber.StatusUnauthorized
	case goerrors.CategoryNotFound:
		return fiber.StatusNotFound
	case goerrors.CategoryConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}
