package handlers

import (
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/actor"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/dto"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/services"
	"github.com/gofiber/fiber/v2"
)

type ModerationHandler struct {
	approvalService     *services.ApprovalService
	modificationService *services.ModificationService
	reportService       *services.ReportService
}

func NewModerationHandler(
	approvalService *services.ApprovalService,
	modificationService *services.ModificationService,
	reportService *services.ReportService,
) *ModerationHandler {
	return &ModerationHandler{
		approvalService:     approvalService,
		modificationService: modificationService,
		reportService:       reportService,
	}
}

func (h *ModerationHandler) ListPending(c *fiber.Ctx) error {
	items, err := h.approvalService.ListPending(c.UserContext())
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"data": items, "total": len(items)})
}

func (h *ModerationHandler) GetPending(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid id")
	}
	item, err := h.approvalService.GetPending(c.UserContext(), c.Params("type"), id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(item)
}

func (h *ModerationHandler) Approve(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid id")
	}
	notes, ok := reviewNotes(c)
	if !ok {
		return badRequest(c, "Invalid request body")
	}
	live, err := h.approvalService.Approve(c.UserContext(), c.Params("type"), id, actor.From(c), notes)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Submission approved", "data": live})
}

func (h *ModerationHandler) Reject(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid id")
	}
	notes, ok := reviewNotes(c)
	if !ok {
		return badRequest(c, "Invalid request body")
	}
	if err := h.approvalService.Reject(c.UserContext(), c.Params("type"), id, actor.From(c), notes); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Submission rejected"})
}

func (h *ModerationHandler) ListModifications(c *fiber.Ctx) error {
	items, err := h.modificationService.ListModifications(c.UserContext(), c.Query("status"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"data": items, "total": len(items)})
}

func (h *ModerationHandler) ApproveModification(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid id")
	}
	notes, ok := reviewNotes(c)
	if !ok {
		return badRequest(c, "Invalid request body")
	}
	if err := h.modificationService.Approve(c.UserContext(), c.Params("entity"), id, actor.From(c), notes); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Modification applied"})
}

func (h *ModerationHandler) RejectModification(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid id")
	}
	notes, ok := reviewNotes(c)
	if !ok {
		return badRequest(c, "Invalid request body")
	}
	if err := h.modificationService.Reject(c.UserContext(), c.Params("entity"), id, actor.From(c), notes); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Modification rejected"})
}

func (h *ModerationHandler) MySubmissions(c *fiber.Ctx) error {
	items, err := h.modificationService.MySubmissions(c.UserContext(), actor.From(c).UserID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"data": items, "total": len(items)})
}

// CreateReport handles POST /api/{jobs,resources}/:id/reports.
func (h *ModerationHandler) CreateReport(kind string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := paramID(c, "id")
		if !ok {
			return badRequest(c, "Invalid id")
		}
		var req dto.CreateReportRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: "Invalid request body",
			})
		}
		report, err := h.reportService.Create(c.UserContext(), kind, id, &req)
		if err != nil {
			return serviceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(report)
	}
}

func (h *ModerationHandler) ListReports(c *fiber.Ctx) error {
	kind := c.Query("kind", services.ReportKindJob)
	items, err := h.reportService.List(c.UserContext(), kind)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"data": items, "total": len(items)})
}

func (h *ModerationHandler) DismissReport(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid id")
	}
	if err := h.reportService.Dismiss(c.UserContext(), c.Params("kind"), id); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Report dismissed"})
}

func (h *ModerationHandler) RemoveReportedContent(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid id")
	}
	if err := h.reportService.RemoveContent(c.UserContext(), c.Params("kind"), id, actor.From(c)); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Content removed"})
}

// reviewNotes reads the optional {notes} body of an approve or reject call.
func reviewNotes(c *fiber.Ctx) (string, bool) {
	if len(c.Body()) == 0 {
		return "", true
	}
	var req dto.ReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return "", false
	}
	if len(req.Notes) > 1000 {
		req.Notes = req.Notes[:1000]
	}
	return req.Notes, true
}
