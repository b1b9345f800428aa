package handlers

import (
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/dto"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/services"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/storage"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// statusFor maps service sentinels to HTTP status codes; their messages are safe to show.
var statusFor = []struct {
	err    error
	status int
}{
	{services.ErrUnknownEntity, fiber.StatusBadRequest},
	{services.ErrInvalidPayload, fiber.StatusBadRequest},
	{services.ErrInvalidAction, fiber.StatusBadRequest},
	{services.ErrInvalidReport, fiber.StatusBadRequest},
	{services.ErrUnknownCivicType, fiber.StatusBadRequest},
	{services.ErrUnknownCivicAction, fiber.StatusBadRequest},
	{services.ErrInvalidID, fiber.StatusBadRequest},
	{services.ErrNoFiles, fiber.StatusBadRequest},
	{services.ErrWeakPassword, fiber.StatusBadRequest},
	{services.ErrInvalidResetToken, fiber.StatusBadRequest},
	{services.ErrDocumentEmpty, fiber.StatusUnprocessableEntity},
	{services.ErrDownloadFailed, fiber.StatusBadGateway},
	{storage.ErrUnknownBucket, fiber.StatusBadRequest},
	{storage.ErrExtensionBlocked, fiber.StatusBadRequest},
	{storage.ErrFileTooLarge, fiber.StatusRequestEntityTooLarge},
	{services.ErrInvalidCredentials, fiber.StatusUnauthorized},
	{services.ErrInvalidToken, fiber.StatusUnauthorized},
	{services.ErrInvalidSession, fiber.StatusUnauthorized},
	{services.ErrForbidden, fiber.StatusForbidden},
	{services.ErrNotStageable, fiber.StatusForbidden},
	{services.ErrModificationUnsupported, fiber.StatusForbidden},
	{services.ErrContentNotFound, fiber.StatusNotFound},
	{services.ErrPendingNotFound, fiber.StatusNotFound},
	{services.ErrModificationNotFound, fiber.StatusNotFound},
	{services.ErrReportNotFound, fiber.StatusNotFound},
	{services.ErrCivicItemNotFound, fiber.StatusNotFound},
	{services.ErrOrganizationMissing, fiber.StatusNotFound},
	{services.ErrUserNotFound, fiber.StatusNotFound},
	{services.ErrAlreadyReviewed, fiber.StatusConflict},
	{services.ErrEmailTaken, fiber.StatusConflict},
	{services.ErrSearchTimeout, fiber.StatusInternalServerError},
	{services.ErrSearchUnavailable, fiber.StatusServiceUnavailable},
}

// serviceError writes the JSON error response for err.
func serviceError(c *fiber.Ctx, err error) error {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Validation failed", Fields: verr.Fields,
		})
	}
	var rejected *services.ContentRejectedError
	if errors.As(err, &rejected) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{
			Error: true, Message: rejected.Message,
		})
	}
	var full *services.GalleryFullError
	if errors.As(err, &full) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: full.Error(),
		})
	}
	for _, m := range statusFor {
		if errors.Is(err, m.err) {
			return c.Status(m.status).JSON(dto.ErrorResponse{
				Error: true, Message: m.err.Error(),
			})
		}
	}

	slog.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
		Error: true, Message: "Internal server error",
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Message: msg,
	})
}

func paramID(c *fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	return id, err == nil
}
