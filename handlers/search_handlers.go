package handlers

import (
	"stormcloud/apperrors"
	"stormcloud/repositories"
	"stormcloud/services"

	"github.com/gofiber/fiber/v2"
)

type SearchHandlers struct {
	search   *services.SearchService
	accounts *repositories.AccountRepository
}

func NewSearchHandlers(search *services.SearchService, accounts *repositories.AccountRepository) *SearchHandlers {
	return &SearchHandlers{search: search, accounts: accounts}
}

// Search runs a recursive name search over the account's own tree.
func (h *SearchHandlers) Search(c *fiber.Ctx) error {
	result, err := h.search.Search(account(c), c.Query("q"), c.Query("path"), c.QueryInt("limit"))
	if err != nil {
		return apperrors.Respond(c, err)
	}
	return c.JSON(result)
}

// AdminSearch runs the same search over another user's tree and labels the
// response with the target account.
func (h *SearchHandlers) AdminSearch(c *fiber.Ctx) error {
	target, err := h.accounts.GetByUsername(c.Params("username"))
	if err != nil {
		return apperrors.Respond(c, apperrors.New(apperrors.CodeNotFound,
			fiber.StatusNotFound, "User not found."))
	}

	result, err := h.search.Search(target, c.Query("q"), c.Query("path"), c.QueryInt("limit"))
	if err != nil {
		return apperrors.Respond(c, err)
	}

	return c.JSON(fiber.Map{
		"query":       result.Query,
		"search_path": result.SearchPath,
		"results":     result.Results,
		"count":       result.Count,
		"truncated":   result.Truncated,
		"target_user": fiber.Map{
			"id":       target.ID,
			"username": target.Username,
		},
	})
}
