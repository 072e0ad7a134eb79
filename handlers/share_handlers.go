package handlers

import (
	"fmt"

	"stormcloud/apperrors"
	"stormcloud/services"

	"github.com/gofiber/fiber/v2"
)

type ShareHandlers struct {
	shares *services.ShareService
}

func NewShareHandlers(shares *services.ShareService) *ShareHandlers {
	return &ShareHandlers{shares: shares}
}

type createShareRequest struct {
	Path    string                `json:"path"`
	Options services.ShareOptions `json:"options"`
}

// Create issues a new share link for one of the account's files.
func (h *ShareHandlers) Create(c *fiber.Ctx) error {
	var req createShareRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Respond(c, apperrors.New(apperrors.CodeInvalidRequest,
			fiber.StatusBadRequest, "Invalid request body."))
	}

	acct := account(c)
	view, err := h.shares.Create(opContext(c, acct), acct, req.Path, req.Options)
	if err != nil {
		return apperrors.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}

// List returns the account's share links.
func (h *ShareHandlers) List(c *fiber.Ctx) error {
	views, err := h.shares.List(account(c))
	if err != nil {
		return apperrors.Respond(c, err)
	}
	return c.JSON(fiber.Map{"links": views})
}

// Revoke deactivates one of the account's links.
func (h *ShareHandlers) Revoke(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return apperrors.Respond(c, apperrors.New(apperrors.CodeInvalidRequest,
			fiber.StatusBadRequest, "Invalid link id."))
	}

	acct := account(c)
	if err := h.shares.Revoke(opContext(c, acct), acct, uint(id)); err != nil {
		return apperrors.Respond(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

// PublicView answers an unauthenticated share visit with file metadata.
// The password, when one is set, travels in the X-Share-Password header.
func (h *ShareHandlers) PublicView(c *fiber.Ctx) error {
	link, err := h.shares.View(c.Params("token"), c.Get("X-Share-Password"))
	if err != nil {
		return apperrors.Respond(c, err)
	}

	return c.JSON(fiber.Map{
		"file_name":      link.StoredFile.Name,
		"size":           link.StoredFile.Size,
		"content_type":   link.StoredFile.ContentType,
		"allow_download": link.AllowDownload,
		"view_count":     link.ViewCount,
	})
}

// PublicDownload streams the shared file to an unauthenticated visitor.
func (h *ShareHandlers) PublicDownload(c *fiber.Ctx) error {
	reader, link, err := h.shares.OpenDownload(c.Params("token"), c.Get("X-Share-Password"))
	if err != nil {
		return apperrors.Respond(c, err)
	}
	defer reader.Close()

	c.Set(fiber.HeaderContentType, link.StoredFile.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", link.StoredFile.Name))
	c.Set("Cache-Control", "private, no-cache")
	return c.SendStream(reader, int(link.StoredFile.Size))
}
