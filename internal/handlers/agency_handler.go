package handlers

import (
	"errors"

	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/dto"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/services"
	"github.com/gofiber/fiber/v2"
)

type AgencyHandler struct {
	agencyService   *services.AgencyService
	documentService *services.DocumentService
}

func NewAgencyHandler(agencyService *services.AgencyService, documentService *services.DocumentService) *AgencyHandler {
	return &AgencyHandler{agencyService: agencyService, documentService: documentService}
}

func (h *AgencyHandler) Search(c *fiber.Ctx) error {
	var req dto.AgencySearchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	resp, err := h.agencyService.Search(c.UserContext(), &req)
	if err != nil {
		if errors.Is(err, services.ErrSearchFailed) {
			return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{
				Error: true, Message: "Agency search is temporarily unavailable. Please try again.",
			})
		}
		return serviceError(c, err)
	}
	return c.JSON(resp)
}

func (h *AgencyHandler) ProcessDocument(c *fiber.Ctx) error {
	var req dto.ProcessDocumentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	resp, err := h.documentService.Process(c.UserContext(), &req)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(resp)
}
