package handlers

import (
	"stormcloud/apperrors"
	"stormcloud/models"
	"stormcloud/pathutil"
	"stormcloud/repositories"
	"stormcloud/services"
	"stormcloud/storage"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

type AdminHandlers struct {
	accounts *repositories.AccountRepository
	orgs     *repositories.OrganizationRepository
	audit    *repositories.AuditRepository
	files    *services.FileService
	dirs     *services.DirectoryService
	fileRepo *repositories.FileRepository
	backend  storage.Backend
}

func NewAdminHandlers(accounts *repositories.AccountRepository, orgs *repositories.OrganizationRepository,
	audit *repositories.AuditRepository, files *services.FileService, dirs *services.DirectoryService,
	fileRepo *repositories.FileRepository, backend storage.Backend) *AdminHandlers {
	return &AdminHandlers{
		accounts: accounts,
		orgs:     orgs,
		audit:    audit,
		files:    files,
		dirs:     dirs,
		fileRepo: fileRepo,
		backend:  backend,
	}
}

func accountView(a *models.Account) fiber.Map {
	return fiber.Map{
		"id":                  a.ID,
		"username":            a.Username,
		"is_admin":            a.IsAdmin,
		"organization_id":     a.OrganizationID,
		"storage_quota_bytes": a.StorageQuotaBytes,
		"storage_used_bytes":  a.StorageUsedBytes,
		"max_share_links":     a.MaxShareLinks,
		"max_upload_bytes":    a.MaxUploadBytes,
		"permissions": fiber.Map{
			"can_upload":        a.CanUpload,
			"can_delete":        a.CanDelete,
			"can_move":          a.CanMove,
			"can_overwrite":     a.CanOverwrite,
			"can_create_shares": a.CanCreateShares,
		},
	}
}

// ListUsers returns every account with its quota state.
func (h *AdminHandlers) ListUsers(c *fiber.Ctx) error {
	accounts, err := h.accounts.GetAll()
	if err != nil {
		return apperrors.Respond(c, err)
	}

	out := make([]fiber.Map, 0, len(accounts))
	for i := range accounts {
		out = append(out, accountView(&accounts[i]))
	}
	return c.JSON(fiber.Map{"users": out})
}

type createUserRequest struct {
	Username          string `json:"username"`
	Password          string `json:"password"`
	IsAdmin           bool   `json:"is_admin"`
	OrganizationID    *uint  `json:"organization_id"`
	StorageQuotaBytes int64  `json:"storage_quota_bytes"`
}

// CreateUser creates a new account.
func (h *AdminHandlers) CreateUser(c *fiber.Ctx) error {
	var req createUserRequest
	if err := c.BodyParser(&req); err != nil || req.Username == "" || req.Password == "" {
		return apperrors.Respond(c, apperrors.New(apperrors.CodeInvalidRequest,
			fiber.StatusBadRequest, "Username and password are required."))
	}
	if len(req.Password) < 6 {
		return apperrors.Respond(c, apperrors.New(apperrors.CodeValidationError,
			fiber.StatusBadRequest, "Password must be at least 6 characters."))
	}

	if exists, _ := h.accounts.Exists(req.Username); exists {
		return apperrors.Respond(c, apperrors.Newf(apperrors.CodeAlreadyExists,
			fiber.StatusConflict, "User '%s' already exists.", req.Username))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return apperrors.Respond(c, err)
	}

	account := &models.Account{
		Username:          req.Username,
		PasswordHash:      string(hash),
		IsAdmin:           req.IsAdmin,
		OrganizationID:    req.OrganizationID,
		StorageQuotaBytes: req.StorageQuotaBytes,
		CanUpload:         true,
		CanDelete:         true,
		CanMove:           true,
		CanOverwrite:      true,
		CanCreateShares:   true,
	}
	if err := h.accounts.Create(account); err != nil {
		return apperrors.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(accountView(account))
}

type updateUserRequest struct {
	StorageQuotaBytes *int64  `json:"storage_quota_bytes"`
	MaxShareLinks     *uint   `json:"max_share_links"`
	MaxUploadBytes    *int64  `json:"max_upload_bytes"`
	OrganizationID    *uint   `json:"organization_id"`
	CanUpload         *bool   `json:"can_upload"`
	CanDelete         *bool   `json:"can_delete"`
	CanMove           *bool   `json:"can_move"`
	CanOverwrite      *bool   `json:"can_overwrite"`
	CanCreateShares   *bool   `json:"can_create_shares"`
	Password          *string `json:"password"`
}

// UpdateUser changes quotas, capability flags, organization membership, or
// password. Absent fields stay untouched.
func (h *AdminHandlers) UpdateUser(c *fiber.Ctx) error {
	account, err := h.accounts.GetByUsername(c.Params("username"))
	if err != nil {
		return apperrors.Respond(c, apperrors.New(apperrors.CodeNotFound,
			fiber.StatusNotFound, "User not found."))
	}

	var req updateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Respond(c, apperrors.New(apperrors.CodeInvalidRequest,
			fiber.StatusBadRequest, "Invalid request body."))
	}

	if req.StorageQuotaBytes != nil {
		account.StorageQuotaBytes = *req.StorageQuotaBytes
	}
	if req.MaxShareLinks != nil {
		account.MaxShareLinks = *req.MaxShareLinks
	}
	if req.MaxUploadBytes != nil {
		account.MaxUploadBytes = *req.MaxUploadBytes
	}
	if req.OrganizationID != nil {
		account.OrganizationID = req.OrganizationID
	}
	if req.CanUpload != nil {
		account.CanUpload = *req.CanUpload
	}
	if req.CanDelete != nil {
		account.CanDelete = *req.CanDelete
	}
	if req.CanMove != nil {
		account.CanMove = *req.CanMove
	}
	if req.CanOverwrite != nil {
		account.CanOverwrite = *req.CanOverwrite
	}
	if req.CanCreateShares != nil {
		account.CanCreateShares = *req.CanCreateShares
	}
	if req.Password != nil {
		if len(*req.Password) < 6 {
			return apperrors.Respond(c, apperrors.New(apperrors.CodeValidationError,
				fiber.StatusBadRequest, "Password must be at least 6 characters."))
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return apperrors.Respond(c, err)
		}
		account.PasswordHash = string(hash)
	}

	if err := h.accounts.Update(account); err != nil {
		return apperrors.Respond(c, err)
	}
	return c.JSON(accountView(account))
}

// DeleteUser removes an account, its metadata (by cascade), and its stored
// bytes. Admin accounts cannot be deleted.
func (h *AdminHandlers) DeleteUser(c *fiber.Ctx) error {
	account, err := h.accounts.GetByUsername(c.Params("username"))
	if err != nil {
		return apperrors.Respond(c, apperrors.New(apperrors.CodeNotFound,
			fiber.StatusNotFound, "User not found."))
	}
	if account.IsAdmin {
		return apperrors.Respond(c, apperrors.New(apperrors.CodeForbidden,
			fiber.StatusForbidden, "Admin accounts cannot be deleted."))
	}

	if err := h.accounts.Delete(account.Username); err != nil {
		return apperrors.Respond(c, err)
	}
	// Audit rows survive with a NULL actor; the byte tree does not.
	_ = h.backend.Delete(services.OwnerRootPath(account.ID))

	return c.JSON(fiber.Map{"ok": true})
}

// RecalculateUsage reconciles an account's usage counter against the sum of
// its file records.
func (h *AdminHandlers) RecalculateUsage(c *fiber.Ctx) error {
	account, err := h.accounts.GetByUsername(c.Params("username"))
	if err != nil {
		return apperrors.Respond(c, apperrors.New(apperrors.CodeNotFound,
			fiber.StatusNotFound, "User not found."))
	}

	total, err := h.fileRepo.SumFileSizes(nil, account.ID)
	if err != nil {
		return apperrors.Respond(c, err)
	}
	if err := h.accounts.SetStorageUsed(nil, account.ID, total); err != nil {
		return apperrors.Respond(c, err)
	}
	return c.JSON(fiber.Map{"username": account.Username, "storage_used_bytes": total})
}

func (h *AdminHandlers) targetUser(c *fiber.Ctx) (*models.Account, error) {
	account, err := h.accounts.GetByUsername(c.Params("username"))
	if err != nil {
		return nil, apperrors.New(apperrors.CodeNotFound, fiber.StatusNotFound, "User not found.")
	}
	return account, nil
}

// ListUserFiles lists a directory inside another user's tree.
func (h *AdminHandlers) ListUserFiles(c *fiber.Ctx) error {
	target, err := h.targetUser(c)
	if err != nil {
		return apperrors.Respond(c, err)
	}

	listing, err := h.dirs.List(target, c.Query("path"),
		c.QueryInt("limit"), c.Query("cursor"), c.Query("search"))
	if err != nil {
		return apperrors.Respond(c, err)
	}
	return c.JSON(listing)
}

// UploadUserFile uploads into another user's tree. Requires a written
// justification, which lands in the audit trail.
func (h *AdminHandlers) UploadUserFile(c *fiber.Ctx) error {
	target, err := h.targetUser(c)
	if err != nil {
		return apperrors.Respond(c, err)
	}
	justification := c.FormValue("justification")
	if justification == "" {
		return apperrors.Respond(c, apperrors.New(apperrors.CodeInvalidRequest,
			fiber.StatusBadRequest, "A justification is required for admin file actions."))
	}

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

	op := adminOpContext(c, account(c), target, justification)
	details, err := h.files.Upload(op, target, pathutil.Join(c.FormValue("path"), header.Filename), src, header.Size)
	if err != nil {
		return apperrors.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(details)
}

// DeleteUserFile deletes from another user's tree, with justification.
func (h *AdminHandlers) DeleteUserFile(c *fiber.Ctx) error {
	target, err := h.targetUser(c)
	if err != nil {
		return apperrors.Respond(c, err)
	}
	justification := c.Query("justification")
	if justification == "" {
		return apperrors.Respond(c, apperrors.New(apperrors.CodeInvalidRequest,
			fiber.StatusBadRequest, "A justification is required for admin file actions."))
	}

	op := adminOpContext(c, account(c), target, justification)
	if err := h.files.Delete(op, target, c.Query("path")); err != nil {
		return apperrors.Respond(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

// AuditLog lists audit rows, newest first, with optional filters.
func (h *AdminHandlers) AuditLog(c *fiber.Ctx) error {
	filter := repositories.AuditFilter{
		Action:       c.Query("action"),
		FailuresOnly: c.QueryBool("failures"),
		Limit:        c.QueryInt("limit"),
		Offset:       c.QueryInt("offset"),
	}
	if username := c.Query("user"); username != "" {
		target, err := h.accounts.GetByUsername(username)
		if err != nil {
			return apperrors.Respond(c, apperrors.New(apperrors.CodeNotFound,
				fiber.StatusNotFound, "User not found."))
		}
		filter.TargetUserID = target.ID
	}

	entries, total, err := h.audit.List(filter)
	if err != nil {
		return apperrors.Respond(c, err)
	}
	return c.JSON(fiber.Map{"entries": entries, "total": total})
}

type createOrgRequest struct {
	Name              string `json:"name"`
	StorageQuotaBytes int64  `json:"storage_quota_bytes"`
}

// CreateOrganization creates a new organization.
func (h *AdminHandlers) CreateOrganization(c *fiber.Ctx) error {
	var req createOrgRequest
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return apperrors.Respond(c, apperrors.New(apperrors.CodeInvalidRequest,
			fiber.StatusBadRequest, "An organization name is required."))
	}

	org := &models.Organization{Name: req.Name, StorageQuotaBytes: req.StorageQuotaBytes}
	if err := h.orgs.Create(org); err != nil {
		return apperrors.Respond(c, apperrors.Newf(apperrors.CodeAlreadyExists,
			fiber.StatusConflict, "Organization '%s' already exists.", req.Name))
	}
	return c.Status(fiber.StatusCreated).JSON(org)
}

// ListOrganizations returns all organizations.
func (h *AdminHandlers) ListOrganizations(c *fiber.Ctx) error {
	orgs, err := h.orgs.GetAll()
	if err != nil {
		return apperrors.Respond(c, err)
	}
	return c.JSON(fiber.Map{"organizations": orgs})
}
