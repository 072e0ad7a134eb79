package handlers

import (
	"fmt"

	"stormcloud/apperrors"
	"stormcloud/pathutil"
	"stormcloud/services"

	"github.com/gofiber/fiber/v2"
)

type FileHandlers struct {
	files *services.FileService
	dirs  *services.DirectoryService
}

func NewFileHandlers(files *services.FileService, dirs *services.DirectoryService) *FileHandlers {
	return &FileHandlers{files: files, dirs: dirs}
}

// List returns one page of a directory listing.
func (h *FileHandlers) List(c *fiber.Ctx) error {
	listing, err := h.dirs.List(account(c), c.Query("path"),
		c.QueryInt("limit"), c.Query("cursor"), c.Query("search"))
	if err != nil {
		return apperrors.Respond(c, err)
	}
	return c.JSON(listing)
}

type pathRequest struct {
	Path string `json:"path"`
}

// CreateDirectory makes a new directory.
func (h *FileHandlers) CreateDirectory(c *fiber.Ctx) error {
	var req pathRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Respond(c, apperrors.New(apperrors.CodeInvalidRequest,
			fiber.StatusBadRequest, "Invalid request body."))
	}

	acct := account(c)
	details, err := h.dirs.Create(opContext(c, acct), acct, req.Path)
	if err != nil {
		return apperrors.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(details)
}

type reorderRequest struct {
	Path  string   `json:"path"`
	Order []string `json:"order"`
}

// Reorder applies an explicit child ordering to a directory.
func (h *FileHandlers) Reorder(c *fiber.Ctx) error {
	var req reorderRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Respond(c, apperrors.New(apperrors.CodeInvalidRequest,
			fiber.StatusBadRequest, "Invalid request body."))
	}

	acct := account(c)
	if err := h.dirs.Reorder(opContext(c, acct), acct, req.Path, req.Order); err != nil {
		return apperrors.Respond(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

// ResetOrder clears manual ordering for a directory.
func (h *FileHandlers) ResetOrder(c *fiber.Ctx) error {
	var req pathRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Respond(c, apperrors.New(apperrors.CodeInvalidRequest,
			fiber.StatusBadRequest, "Invalid request body."))
	}

	acct := account(c)
	if err := h.dirs.ResetOrder(opContext(c, acct), acct, req.Path); err != nil {
		return apperrors.Respond(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

// Info returns metadata for one entry.
func (h *FileHandlers) Info(c *fiber.Ctx) error {
	details, err := h.files.Info(account(c), c.Query("path"))
	if err != nil {
		return apperrors.Respond(c, err)
	}
	c.Set("ETag", details.ETag)
	return c.JSON(details)
}

// Upload stores a multipart file under the destination directory given in
// the "path" form field.
func (h *FileHandlers) Upload(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return apperrors.Respond(c, apperrors.New(apperrors.CodeInvalidRequest,
			fiber.StatusBadRequest, "A 'file' form field is required."))
	}

	src, err := header.Open()
	if err != nil {
		return apperrors.Respond(c, err)
	}
	defer src.Close()

	dest := pathutil.Join(c.FormValue("path"), header.Filename)
	acct := account(c)
	details, err := h.files.Upload(opContext(c, acct), acct, dest, src, header.Size)
	if err != nil {
		return apperrors.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(details)
}

// Download streams a file, honoring If-None-Match.
func (h *FileHandlers) Download(c *fiber.Ctx) error {
	acct := account(c)
	res, err := h.files.Download(opContext(c, acct), acct, c.Query("path"),
		c.Get(fiber.HeaderIfNoneMatch))
	if err != nil {
		return apperrors.Respond(c, err)
	}

	c.Set("ETag", res.ETag)
	if res.NotModified {
		return c.SendStatus(fiber.StatusNotModified)
	}
	defer res.Reader.Close()

	c.Set(fiber.HeaderContentType, res.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", res.Name))
	c.Set("Cache-Control", "private, no-cache")
	return c.SendStream(res.Reader, int(res.Size))
}

// Preview returns the content of a text file.
func (h *FileHandlers) Preview(c *fiber.Ctx) error {
	acct := account(c)
	res, err := h.files.Preview(opContext(c, acct), acct, c.Query("path"))
	if err != nil {
		return apperrors.Respond(c, err)
	}
	c.Set("ETag", res.ETag)
	return c.JSON(res)
}

type editRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Edit replaces the content of a text file in place.
func (h *FileHandlers) Edit(c *fiber.Ctx) error {
	var req editRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Respond(c, apperrors.New(apperrors.CodeInvalidRequest,
			fiber.StatusBadRequest, "Invalid request body."))
	}

	acct := account(c)
	details, err := h.files.UpdateContent(opContext(c, acct), acct, req.Path, []byte(req.Content))
	if err != nil {
		return apperrors.Respond(c, err)
	}
	return c.JSON(details)
}

// Delete removes a file or directory tree.
func (h *FileHandlers) Delete(c *fiber.Ctx) error {
	acct := account(c)
	if err := h.files.Delete(opContext(c, acct), acct, c.Query("path")); err != nil {
		return apperrors.Respond(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

// Usage reports the account's storage consumption against its quota.
func (h *FileHandlers) Usage(c *fiber.Ctx) error {
	return c.JSON(services.UsageFor(account(c)))
}
