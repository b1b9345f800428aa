package handlers

import (
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/actor"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/dto"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/models"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/services"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/storage"
	"github.com/gofiber/fiber/v2"
)

var reservedListParams = map[string]bool{
	"search": true, "category": true, "sort": true, "page": true, "limit": true,
}

type ContentHandler struct {
	contentService      *services.ContentService
	submissionService   *services.SubmissionService
	modificationService *services.ModificationService
	store               *storage.LocalStore
}

func NewContentHandler(
	contentService *services.ContentService,
	submissionService *services.SubmissionService,
	modificationService *services.ModificationService,
	store *storage.LocalStore,
) *ContentHandler {
	return &ContentHandler{
		contentService:      contentService,
		submissionService:   submissionService,
		modificationService: modificationService,
		store:               store,
	}
}

// ForEntity pins the entity for routes like /api/events that carry no :entity segment.
func ForEntity(entity string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("entity", entity)
		return c.Next()
	}
}

func entityParam(c *fiber.Ctx) string {
	if p := c.Params("entity"); p != "" {
		return p
	}
	e, _ := c.Locals("entity").(string)
	return e
}

func (h *ContentHandler) List(c *fiber.Ctx) error {
	return h.list(c, false)
}

// AdminList includes expired and inactive rows.
func (h *ContentHandler) AdminList(c *fiber.Ctx) error {
	return h.list(c, true)
}

func (h *ContentHandler) list(c *fiber.Ctx, admin bool) error {
	opts := services.ListOptions{
		Search:   c.Query("search"),
		Category: c.Query("category"),
		Sort:     c.Query("sort"),
		Page:     c.QueryInt("page", 1),
		Limit:    c.QueryInt("limit", services.DefaultPageSize),
		Filters:  map[string]string{},
		Admin:    admin,
	}
	for k, v := range c.Queries() {
		if !reservedListParams[k] {
			opts.Filters[k] = v
		}
	}

	res, err := h.contentService.List(c.UserContext(), entityParam(c), opts)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.ListResponse{Items: res.Items, Total: res.Total, Page: res.Page, Limit: res.Limit})
}

func (h *ContentHandler) Get(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid id")
	}
	row, err := h.contentService.Get(c.UserContext(), entityParam(c), id, actor.From(c).IsAdmin())
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(row)
}

func (h *ContentHandler) Categories(c *fiber.Ctx) error {
	cats, err := h.contentService.Categories(c.UserContext(), entityParam(c))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"data": cats})
}

// Create publishes for main admins and stages for everyone else.
func (h *ContentHandler) Create(c *fiber.Ctx) error {
	res, err := h.submissionService.SubmitOrStage(c.UserContext(), entityParam(c), c.Body(), actor.From(c))
	if err != nil {
		return serviceError(c, err)
	}
	if res.Staged {
		return c.Status(fiber.StatusAccepted).JSON(dto.WriteResponse{
			Status:  dto.WriteStaged,
			Message: "Submission received and waiting for review",
			Data:    res.Record,
		})
	}
	return c.Status(fiber.StatusCreated).JSON(dto.WriteResponse{
		Status:  dto.WritePublished,
		Message: "Published",
		Data:    res.Record,
	})
}

func (h *ContentHandler) Update(c *fiber.Ctx) error {
	return h.change(c, models.ActionUpdate)
}

func (h *ContentHandler) Delete(c *fiber.Ctx) error {
	return h.change(c, models.ActionDelete)
}

func (h *ContentHandler) change(c *fiber.Ctx, action string) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid id")
	}
	res, err := h.modificationService.RequestChange(c.UserContext(), entityParam(c), id, action, c.Body(), actor.From(c))
	if err != nil {
		return serviceError(c, err)
	}
	if !res.Applied {
		return c.Status(fiber.StatusAccepted).JSON(dto.WriteResponse{
			Status:  dto.WriteStaged,
			Message: "Change request submitted for review",
			Data:    res.Record,
		})
	}
	if action == models.ActionDelete {
		return c.JSON(dto.WriteResponse{Status: dto.WriteDeleted, Message: "Deleted"})
	}
	return c.JSON(dto.WriteResponse{Status: dto.WritePublished, Message: "Updated", Data: res.Record})
}

// Upload stores one file in a bucket and returns its public URL.
func (h *ContentHandler) Upload(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file is required")
	}
	a := actor.From(c)
	url, err := h.store.Save(c.Params("bucket"), a.UserID.String(), fh)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.UploadResponse{URL: url})
}
