package handlers

import (
	"stormcloud/apperrors"
	"stormcloud/repositories"
	"stormcloud/services"

	"github.com/gofiber/fiber/v2"
)

type CMSHandlers struct {
	cms      *services.CMSService
	accounts *repositories.AccountRepository
}

func NewCMSHandlers(cms *services.CMSService, accounts *repositories.AccountRepository) *CMSHandlers {
	return &CMSHandlers{cms: cms, accounts: accounts}
}

type publishRequest struct {
	Slug string `json:"slug"`
	Path string `json:"path"`
}

// Publish points a page slug at one of the account's text files.
func (h *CMSHandlers) Publish(c *fiber.Ctx) error {
	var req publishRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Respond(c, apperrors.New(apperrors.CodeInvalidRequest,
			fiber.StatusBadRequest, "Invalid request body."))
	}

	mapping, err := h.cms.Publish(account(c), req.Slug, req.Path)
	if err != nil {
		return apperrors.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"slug":         mapping.Slug,
		"path":         mapping.FilePath,
		"refreshed_at": mapping.RefreshedAt,
	})
}

// List returns the account's published pages.
func (h *CMSHandlers) List(c *fiber.Ctx) error {
	mappings, err := h.cms.List(account(c))
	if err != nil {
		return apperrors.Respond(c, err)
	}

	out := make([]fiber.Map, 0, len(mappings))
	for _, m := range mappings {
		out = append(out, fiber.Map{
			"slug":         m.Slug,
			"path":         m.FilePath,
			"refreshed_at": m.RefreshedAt,
		})
	}
	return c.JSON(fiber.Map{"pages": out})
}

// Unpublish removes a page mapping, leaving the file in place.
func (h *CMSHandlers) Unpublish(c *fiber.Ctx) error {
	if err := h.cms.Unpublish(account(c), c.Params("slug")); err != nil {
		return apperrors.Respond(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

// PublicPage serves published content to unauthenticated visitors, keyed by
// the owner's username and the page slug.
func (h *CMSHandlers) PublicPage(c *fiber.Ctx) error {
	owner, err := h.accounts.GetByUsername(c.Params("username"))
	if err != nil {
		return apperrors.Respond(c, apperrors.New(apperrors.CodeNotFound,
			fiber.StatusNotFound, "Page not found."))
	}

	page, err := h.cms.Resolve(owner.ID, c.Params("slug"))
	if err != nil {
		return apperrors.Respond(c, err)
	}

	c.Set(fiber.HeaderContentType, page.ContentType)
	return c.SendString(page.Content)
}
