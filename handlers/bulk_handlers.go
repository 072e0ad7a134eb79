package handlers

import (
	"stormcloud/apperrors"
	"stormcloud/services"
	"stormcloud/tasks"

	"github.com/gofiber/fiber/v2"
)

type BulkHandlers struct {
	bulk   *services.BulkService
	runner *tasks.Runner
}

func NewBulkHandlers(bulk *services.BulkService, runner *tasks.Runner) *BulkHandlers {
	return &BulkHandlers{bulk: bulk, runner: runner}
}

// Submit validates and runs a batch operation. Small batches answer with
// full results; large ones come back 202 with a task id.
func (h *BulkHandlers) Submit(c *fiber.Ctx) error {
	var req services.BulkRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Respond(c, apperrors.New(apperrors.CodeInvalidRequest,
			fiber.StatusBadRequest, "Invalid request body."))
	}

	acct := account(c)
	outcome, err := h.bulk.Submit(opContext(c, acct), acct, req)
	if err != nil {
		return apperrors.Respond(c, err)
	}

	if outcome.Async {
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"task_id": outcome.TaskID,
			"status":  tasks.StatusPending,
		})
	}
	return c.JSON(outcome.Stats)
}

// Status reports the state of a deferred batch. Tasks are only visible to
// the account that submitted them.
func (h *BulkHandlers) Status(c *fiber.Ctx) error {
	if h.runner == nil {
		return apperrors.Respond(c, apperrors.New(apperrors.CodeTaskNotFound,
			fiber.StatusNotFound, "Task not found."))
	}

	task, ok := h.runner.Get(c.Params("id"), account(c).ID)
	if !ok {
		return apperrors.Respond(c, apperrors.New(apperrors.CodeTaskNotFound,
			fiber.StatusNotFound, "Task not found."))
	}
	return c.JSON(task)
}
