package services

import (
	"fmt"

	"stormcloud/apperrors"
	"stormcloud/config"
	"stormcloud/models"
	"stormcloud/repositories"

	"github.com/gofiber/fiber/v2"
)

// Bulk operations.
const (
	BulkDelete = "delete"
	BulkMove   = "move"
	BulkCopy   = "copy"
)

// BulkRequest is a batch operation over up to the configured path ceiling.
type BulkRequest struct {
	Operation   string   `json:"operation"`
	Paths       []string `json:"paths"`
	Destination *string  `json:"destination"`
}

// BulkPathResult is the outcome for one path. Paths are independent; one
// failure never aborts the rest.
type BulkPathResult struct {
	Path         string `json:"path"`
	Success      bool   `json:"success"`
	NewPath      string `json:"new_path,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// BulkStats summarizes one executed batch.
type BulkStats struct {
	Operation string           `json:"operation"`
	Total     int              `json:"total"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Results   []BulkPathResult `json:"results"`
}

// BulkOutcome is what a submission returns: either completed stats or a
// task id for an asynchronous batch.
type BulkOutcome struct {
	Async  bool
	TaskID string
	Stats  *BulkStats
}

// BulkJob is the persisted form of a deferred batch. Accounts are carried
// by id so permissions are re-checked at execution time.
type BulkJob struct {
	ActorID       uint
	TargetID      uint
	IsAdminAction bool
	Justification string
	IPAddress     string
	UserAgent     string
	Operation     string
	Paths         []string
	Destination   string
}

// AsyncRunner accepts deferred bulk jobs. Enqueue returns false when the
// queue cannot take the job, in which case the caller falls back to
// synchronous execution.
type AsyncRunner interface {
	EnqueueBulk(job BulkJob) (taskID string, ok bool)
}

// BulkService validates, routes, and executes batch file operations.
type BulkService struct {
	cfg      *config.Config
	files    *FileService
	accounts *repositories.AccountRepository
	runner   AsyncRunner
}

// NewBulkService wires a bulk service. A nil runner forces every batch to
// run synchronously.
func NewBulkService(cfg *config.Config, files *FileService,
	accounts *repositories.AccountRepository, runner AsyncRunner) *BulkService {
	return &BulkService{cfg: cfg, files: files, accounts: accounts, runner: runner}
}

var bulkCapabilities = map[string]string{
	BulkDelete: CapDelete,
	BulkMove:   CapMove,
	BulkCopy:   CapUpload,
}

var bulkActions = map[string]string{
	BulkDelete: models.ActionBulkDelete,
	BulkMove:   models.ActionBulkMove,
	BulkCopy:   models.ActionBulkCopy,
}

// Submit validates a batch and either executes it now or hands it to the
// async runner when it is large enough and a runner is available.
func (s *BulkService) Submit(op OpContext, owner *models.Account, req BulkRequest) (*BulkOutcome, error) {
	capability, ok := bulkCapabilities[req.Operation]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeInvalidRequest, fiber.StatusBadRequest,
			"Unknown bulk operation '%s'.", req.Operation)
	}
	if len(req.Paths) == 0 {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, fiber.StatusBadRequest,
			"At least one path is required.")
	}
	if len(req.Paths) > s.cfg.BulkMaxPaths {
		return nil, apperrors.Newf(apperrors.CodeInvalidRequest, fiber.StatusBadRequest,
			"A bulk request may name at most %d paths.", s.cfg.BulkMaxPaths).
			With("limit", s.cfg.BulkMaxPaths)
	}

	destination := ""
	if req.Operation == BulkMove || req.Operation == BulkCopy {
		if req.Destination == nil {
			return nil, apperrors.Newf(apperrors.CodeInvalidRequest, fiber.StatusBadRequest,
				"Operation '%s' requires a destination.", req.Operation)
		}
		destination = *req.Destination
	}

	if err := RequireCapability(owner, capability); err != nil {
		return nil, err
	}

	paths := dedupePaths(req.Paths)

	if s.runner != nil && s.cfg.BulkAsyncEnabled && len(paths) > s.cfg.BulkAsyncThreshold {
		job := BulkJob{
			TargetID:      owner.ID,
			IsAdminAction: op.IsAdminAction,
			Justification: op.Justification,
			IPAddress:     op.IPAddress,
			UserAgent:     op.UserAgent,
			Operation:     req.Operation,
			Paths:         paths,
			Destination:   destination,
		}
		if op.Actor != nil {
			job.ActorID = op.Actor.ID
		}
		if taskID, ok := s.runner.EnqueueBulk(job); ok {
			return &BulkOutcome{Async: true, TaskID: taskID}, nil
		}
		// Queue full; run it here rather than failing the request.
	}

	stats := s.ExecuteSync(op, owner, req.Operation, paths, destination)
	return &BulkOutcome{Stats: stats}, nil
}

// ExecuteSync runs a validated batch path by path and emits one audit event
// covering the whole batch.
func (s *BulkService) ExecuteSync(op OpContext, owner *models.Account,
	operation string, paths []string, destination string) *BulkStats {
	stats := &BulkStats{Operation: operation, Total: len(paths), Results: make([]BulkPathResult, 0, len(paths))}

	for _, path := range paths {
		result := BulkPathResult{Path: path}
		var err error
		switch operation {
		case BulkDelete:
			_, err = s.files.deleteOne(owner, path)
		case BulkMove:
			var rec *models.StoredFile
			if rec, err = s.files.moveOne(owner, path, destination); err == nil {
				result.NewPath = rec.Path
			}
		case BulkCopy:
			var rec *models.StoredFile
			if rec, err = s.files.copyOne(owner, path, destination); err == nil {
				result.NewPath = rec.Path
			}
		}
		if err != nil {
			result.ErrorCode, result.ErrorMessage = codeOf(err)
			stats.Failed++
		} else {
			result.Success = true
			stats.Succeeded++
		}
		stats.Results = append(stats.Results, result)
	}

	s.files.audit.Record(AuditEvent{
		Op:              op,
		Action:          bulkActions[operation],
		DestinationPath: destination,
		PathsAffected:   paths,
		Success:         stats.Failed == 0,
	})
	return stats
}

// RunJob executes a deferred batch. Accounts and capabilities are resolved
// fresh; a permission revoked between submission and execution fails the
// whole job.
func (s *BulkService) RunJob(job BulkJob) (*BulkStats, error) {
	owner, err := s.accounts.GetByID(job.TargetID)
	if err != nil {
		return nil, fmt.Errorf("bulk job target account: %w", err)
	}

	op := OpContext{
		Target:        owner,
		IsAdminAction: job.IsAdminAction,
		Justification: job.Justification,
		IPAddress:     job.IPAddress,
		UserAgent:     job.UserAgent,
	}
	if job.ActorID != 0 {
		if actor, err := s.accounts.GetByID(job.ActorID); err == nil {
			op.Actor = actor
		}
	}

	if err := RequireCapability(owner, bulkCapabilities[job.Operation]); err != nil {
		return nil, err
	}

	return s.ExecuteSync(op, owner, job.Operation, job.Paths, job.Destination), nil
}

// dedupePaths drops repeated paths, keeping first-occurrence order.
func dedupePaths(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
