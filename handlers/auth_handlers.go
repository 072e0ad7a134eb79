package handlers

import (
	"stormcloud/apperrors"
	"stormcloud/middleware"
	"stormcloud/models"
	"stormcloud/repositories"
	"stormcloud/services"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

type AuthHandlers struct {
	accounts *repositories.AccountRepository
	keys     *repositories.APIKeyRepository
}

func NewAuthHandlers(accounts *repositories.AccountRepository, keys *repositories.APIKeyRepository) *AuthHandlers {
	return &AuthHandlers{accounts: accounts, keys: keys}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login verifies credentials and issues a session token, both as a cookie
// and in the response body for API clients.
func (h *AuthHandlers) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Respond(c, apperrors.New(apperrors.CodeInvalidRequest,
			fiber.StatusBadRequest, "Invalid request body."))
	}

	invalid := apperrors.New(apperrors.CodeUnauthorized, fiber.StatusUnauthorized,
		"Invalid username or password.")

	account, err := h.accounts.GetByUsername(req.Username)
	if err != nil {
		return apperrors.Respond(c, invalid)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		return apperrors.Respond(c, invalid)
	}

	token := middleware.CreateSession(account.ID, account.IsAdmin)
	c.Cookie(&fiber.Cookie{
		Name:     "session_token",
		Value:    token,
		Path:     "/",
		HTTPOnly: true,
		MaxAge:   86400, // 24 hours
	})

	return c.JSON(fiber.Map{
		"token":    token,
		"username": account.Username,
		"is_admin": account.IsAdmin,
	})
}

// Logout destroys the current session.
func (h *AuthHandlers) Logout(c *fiber.Ctx) error {
	token := c.Cookies("session_token")
	if token != "" {
		middleware.DeleteSession(token)
	}
	c.ClearCookie("session_token")
	return c.JSON(fiber.Map{"ok": true})
}

// Me describes the authenticated account, including its storage usage.
func (h *AuthHandlers) Me(c *fiber.Ctx) error {
	acct := account(c)
	return c.JSON(fiber.Map{
		"username": acct.Username,
		"is_admin": acct.IsAdmin,
		"storage":  services.UsageFor(acct),
		"permissions": fiber.Map{
			"can_upload":        acct.CanUpload,
			"can_delete":        acct.CanDelete,
			"can_move":          acct.CanMove,
			"can_overwrite":     acct.CanOverwrite,
			"can_create_shares": acct.CanCreateShares,
		},
	})
}

type createKeyRequest struct {
	Name string `json:"name"`
}

// CreateAPIKey issues a new key for the authenticated account. The full
// key is shown exactly once.
func (h *AuthHandlers) CreateAPIKey(c *fiber.Ctx) error {
	var req createKeyRequest
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return apperrors.Respond(c, apperrors.New(apperrors.CodeInvalidRequest,
			fiber.StatusBadRequest, "A key name is required."))
	}

	plain := middleware.GenerateAPIKey()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return apperrors.Respond(c, err)
	}

	acct := account(c)
	id := acct.ID
	key := &models.APIKey{
		AccountID: &id,
		Name:      req.Name,
		Prefix:    plain[:middleware.APIKeyPrefixLen],
		KeyHash:   string(hash),
	}
	if err := h.keys.Create(key); err != nil {
		return apperrors.Respond(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":   key.ID,
		"name": key.Name,
		"key":  plain,
	})
}

// ListAPIKeys returns the account's keys, prefixes only.
func (h *AuthHandlers) ListAPIKeys(c *fiber.Ctx) error {
	keys, err := h.keys.ListByAccount(account(c).ID)
	if err != nil {
		return apperrors.Respond(c, err)
	}

	out := make([]fiber.Map, 0, len(keys))
	for _, k := range keys {
		entry := fiber.Map{
			"id":     k.ID,
			"name":   k.Name,
			"prefix": k.Prefix,
		}
		if k.LastUsedAt != nil {
			entry["last_used_at"] = k.LastUsedAt
		}
		out = append(out, entry)
	}
	return c.JSON(fiber.Map{"keys": out})
}

// DeleteAPIKey removes one of the account's keys.
func (h *AuthHandlers) DeleteAPIKey(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return apperrors.Respond(c, apperrors.New(apperrors.CodeInvalidRequest,
			fiber.StatusBadRequest, "Invalid key id."))
	}
	if err := h.keys.Delete(account(c).ID, uint(id)); err != nil {
		return apperrors.Respond(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}
