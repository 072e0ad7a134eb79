package handlers

import (
	"stormcloud/middleware"
	"stormcloud/models"
	"stormcloud/services"

	"github.com/gofiber/fiber/v2"
)

// opContext builds the audit context for a self-service operation: the
// authenticated account acts on its own storage.
func opContext(c *fiber.Ctx, account *models.Account) services.OpContext {
	return services.OpContext{
		Actor:     account,
		Target:    account,
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}
}

// adminOpContext builds the audit context for an admin acting on another
// account's storage.
func adminOpContext(c *fiber.Ctx, admin, target *models.Account, justification string) services.OpContext {
	return services.OpContext{
		Actor:         admin,
		Target:        target,
		IsAdminAction: true,
		Justification: justification,
		IPAddress:     c.IP(),
		UserAgent:     c.Get(fiber.HeaderUserAgent),
	}
}

func account(c *fiber.Ctx) *models.Account {
	return middleware.AccountFrom(c)
}
