package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"stormcloud/apperrors"
	"stormcloud/models"
	"stormcloud/repositories"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

// Session represents an active authenticated session.
type Session struct {
	AccountID uint
	IsAdmin   bool
	ExpiresAt time.Time
}

var (
	sessions  = make(map[string]*Session)
	sessionMu sync.RWMutex
)

const sessionCookieName = "session_token"

// APIKeyPrefixLen is how many leading characters of a key are stored in
// clear for lookup.
const APIKeyPrefixLen = 12

// GenerateSessionToken creates a random session token.
func GenerateSessionToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// GenerateAPIKey creates a new clear-text API key. Only the prefix and a
// bcrypt hash are ever stored.
func GenerateAPIKey() string {
	b := make([]byte, 24)
	rand.Read(b)
	return "sck_" + hex.EncodeToString(b)
}

// CreateSession creates a new session and returns the token.
func CreateSession(accountID uint, isAdmin bool) string {
	sessionMu.Lock()
	defer sessionMu.Unlock()

	token := GenerateSessionToken()
	sessions[token] = &Session{
		AccountID: accountID,
		IsAdmin:   isAdmin,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	return token
}

// GetSession retrieves a session by token.
func GetSession(token string) (*Session, bool) {
	sessionMu.RLock()
	defer sessionMu.RUnlock()

	session, exists := sessions[token]
	if !exists || time.Now().After(session.ExpiresAt) {
		return nil, false
	}
	return session, true
}

// DeleteSession removes a session.
func DeleteSession(token string) {
	sessionMu.Lock()
	defer sessionMu.Unlock()
	delete(sessions, token)
}

func unauthorized(c *fiber.Ctx) error {
	return apperrors.Respond(c, apperrors.New(apperrors.CodeUnauthorized,
		fiber.StatusUnauthorized, "Authentication required."))
}

// RequireAuth authenticates the request via session cookie, Bearer session
// token, or X-API-Key, and stores the account in the request context.
func RequireAuth(accounts *repositories.AccountRepository, keys *repositories.APIKeyRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if apiKey := c.Get("X-API-Key"); apiKey != "" {
			account, err := authenticateAPIKey(keys, accounts, apiKey)
			if err != nil {
				return unauthorized(c)
			}
			c.Locals("account", account)
			return c.Next()
		}

		token := c.Cookies(sessionCookieName)
		if token == "" {
			if auth := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
				token = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		if token == "" {
			return unauthorized(c)
		}

		session, valid := GetSession(token)
		if !valid {
			return unauthorized(c)
		}

		account, err := accounts.GetByID(session.AccountID)
		if err != nil {
			DeleteSession(token)
			return unauthorized(c)
		}

		c.Locals("account", account)
		return c.Next()
	}
}

func authenticateAPIKey(keys *repositories.APIKeyRepository,
	accounts *repositories.AccountRepository, apiKey string) (*models.Account, error) {
	if len(apiKey) < APIKeyPrefixLen {
		return nil, apperrors.New(apperrors.CodeUnauthorized, fiber.StatusUnauthorized, "invalid key")
	}
	record, err := keys.GetByPrefix(apiKey[:APIKeyPrefixLen])
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(record.KeyHash), []byte(apiKey)); err != nil {
		return nil, err
	}

	// Re-fetch with the organization preloaded for quota inheritance.
	account, err := accounts.GetByID(*record.AccountID)
	if err != nil {
		return nil, err
	}
	_ = keys.TouchLastUsed(record.ID)
	return account, nil
}

// RequireAdmin ensures the authenticated account is an admin. Must run
// after RequireAuth.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		account := AccountFrom(c)
		if account == nil || !account.IsAdmin {
			return apperrors.Respond(c, apperrors.New(apperrors.CodeForbidden,
				fiber.StatusForbidden, "Admin access required."))
		}
		return c.Next()
	}
}

// AccountFrom returns the authenticated account stored by RequireAuth.
func AccountFrom(c *fiber.Ctx) *models.Account {
	account, _ := c.Locals("account").(*models.Account)
	return account
}
