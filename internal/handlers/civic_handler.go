package handlers

import (
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/actor"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/dto"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/services"
	"github.com/gofiber/fiber/v2"
)

type CivicHandler struct {
	authService    *services.CivicAuthService
	contentService *services.CivicContentService
}

func NewCivicHandler(authService *services.CivicAuthService, contentService *services.CivicContentService) *CivicHandler {
	return &CivicHandler{authService: authService, contentService: contentService}
}

func (h *CivicHandler) Login(c *fiber.Ctx) error {
	var req dto.CivicLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}
	token, org, expiresAt, err := h.authService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.CivicLoginResponse{SessionToken: token, ExpiresAt: expiresAt, Organization: org})
}

func (h *CivicHandler) Logout(c *fiber.Ctx) error {
	if token := c.Get(middleware.HeaderSessionToken); token != "" {
		if err := h.authService.Logout(c.UserContext(), token); err != nil {
			return serviceError(c, err)
		}
	}
	return c.JSON(fiber.Map{"message": "Logged out successfully"})
}

func (h *CivicHandler) RequestPasswordReset(c *fiber.Ctx) error {
	var req dto.CivicResetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}
	if err := h.authService.RequestPasswordReset(c.UserContext(), req.Email); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "If that address belongs to an organization, a reset link has been sent"})
}

func (h *CivicHandler) ConfirmPasswordReset(c *fiber.Ctx) error {
	var req dto.SetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}
	if err := h.authService.ConfirmPasswordReset(c.UserContext(), req.Token, req.Password); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Password updated successfully"})
}

// Content is the single gateway: ?type=<registry type>&action=list|create|update|delete&id=<uuid>.
func (h *CivicHandler) Content(c *fiber.Ctx) error {
	orgID, ok := actor.GetOrgID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid or expired session",
		})
	}
	action := c.Query("action", services.CivicActionList)
	var body []byte
	if action == services.CivicActionCreate || action == services.CivicActionUpdate {
		body = c.Body()
	}
	out, err := h.contentService.Execute(c.UserContext(), orgID, c.Query("type"), action, c.Query("id"), body)
	if err != nil {
		return serviceError(c, err)
	}
	if action == services.CivicActionCreate {
		return c.Status(fiber.StatusCreated).JSON(out)
	}
	return c.JSON(out)
}

func (h *CivicHandler) UploadGallery(c *fiber.Ctx) error {
	orgID, ok := actor.GetOrgID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid or expired session",
		})
	}
	form, err := c.MultipartForm()
	if err != nil {
		return badRequest(c, "multipart form expected")
	}
	files := form.File["files[]"]
	if len(files) == 0 {
		files = form.File["files"]
	}
	resp, err := h.contentService.UploadGallery(c.UserContext(), orgID, files, form.Value["captions[]"])
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// PublicProfile is GET /api/civic-organizations/:id.
func (h *CivicHandler) PublicProfile(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid id")
	}
	profile, err := h.contentService.PublicProfile(c.UserContext(), id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(profile)
}
