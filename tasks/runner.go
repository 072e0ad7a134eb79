// Package tasks runs the background side of the service: deferred bulk
// batches, the share-link expiry sweep, and stale page-mapping pruning.
package tasks

import (
	"context"
	"sync"
	"time"

	"stormcloud/config"
	"stormcloud/repositories"
	"stormcloud/services"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Task states reported by the status endpoint.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Task tracks one deferred bulk batch from submission to completion. The
// registry is in-memory; tasks do not survive a restart.
type Task struct {
	ID         string              `json:"id"`
	AccountID  uint                `json:"-"`
	Status     string              `json:"status"`
	Stats      *services.BulkStats `json:"stats,omitempty"`
	Error      string              `json:"error,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
}

type queuedJob struct {
	taskID string
	job    services.BulkJob
}

// Runner owns the background goroutines. Construct it, Bind the bulk
// service, then Start it once at boot.
type Runner struct {
	cfg      *config.Config
	shares   *repositories.ShareRepository
	mappings *repositories.ContentMappingRepository
	log      zerolog.Logger

	bulk  *services.BulkService
	queue chan queuedJob

	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewRunner creates a runner with a bounded job queue.
func NewRunner(cfg *config.Config, shares *repositories.ShareRepository,
	mappings *repositories.ContentMappingRepository, log zerolog.Logger) *Runner {
	return &Runner{
		cfg:      cfg,
		shares:   shares,
		mappings: mappings,
		log:      log.With().Str("component", "tasks").Logger(),
		queue:    make(chan queuedJob, 64),
		tasks:    make(map[string]*Task),
	}
}

// Bind attaches the bulk service that executes deferred batches. Must be
// called before Start.
func (r *Runner) Bind(bulk *services.BulkService) {
	r.bulk = bulk
}

// Start launches the worker and sweeper goroutines. They exit when ctx is
// cancelled.
func (r *Runner) Start(ctx context.Context) {
	go r.workerLoop(ctx)
	go r.sweepLoop(ctx, 10*time.Minute, r.sweepExpiredShares)
	go r.sweepLoop(ctx, time.Hour, r.pruneStaleMappings)
	r.log.Info().Msg("background runner started")
}

// EnqueueBulk registers a deferred batch and hands it to the worker.
// Returns false when the queue is full so the caller can fall back to
// synchronous execution.
func (r *Runner) EnqueueBulk(job services.BulkJob) (string, bool) {
	task := &Task{
		ID:        uuid.NewString(),
		AccountID: job.TargetID,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}

	select {
	case r.queue <- queuedJob{taskID: task.ID, job: job}:
	default:
		return "", false
	}

	r.mu.Lock()
	r.tasks[task.ID] = task
	r.mu.Unlock()

	r.log.Info().Str("task_id", task.ID).Str("operation", job.Operation).
		Int("paths", len(job.Paths)).Msg("bulk job queued")
	return task.ID, true
}

// Get returns a snapshot of a task, restricted to the submitting account.
func (r *Runner) Get(taskID string, accountID uint) (*Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	task, ok := r.tasks[taskID]
	if !ok || task.AccountID != accountID {
		return nil, false
	}
	snapshot := *task
	return &snapshot, true
}

func (r *Runner) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-r.queue:
			r.runOne(item)
		}
	}
}

func (r *Runner) runOne(item queuedJob) {
	r.setStatus(item.taskID, StatusRunning, nil, "")

	stats, err := r.bulk.RunJob(item.job)
	if err != nil {
		r.log.Error().Err(err).Str("task_id", item.taskID).Msg("bulk job failed")
		r.setStatus(item.taskID, StatusFailed, nil, err.Error())
		return
	}

	r.log.Info().Str("task_id", item.taskID).
		Int("succeeded", stats.Succeeded).Int("failed", stats.Failed).
		Msg("bulk job finished")
	r.setStatus(item.taskID, StatusCompleted, stats, "")
}

func (r *Runner) setStatus(taskID, status string, stats *services.BulkStats, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[taskID]
	if !ok {
		return
	}
	task.Status = status
	task.Stats = stats
	task.Error = errMsg
	if status == StatusCompleted || status == StatusFailed {
		now := time.Now()
		task.FinishedAt = &now
	}
}

func (r *Runner) sweepLoop(ctx context.Context, interval time.Duration, sweep func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}

func (r *Runner) sweepExpiredShares() {
	swept, err := r.shares.DeactivateExpired(time.Now())
	if err != nil {
		r.log.Error().Err(err).Msg("share expiry sweep failed")
		return
	}
	if swept > 0 {
		r.log.Info().Int64("swept", swept).Msg("expired share links deactivated")
	}
}

func (r *Runner) pruneStaleMappings() {
	cutoff := time.Now().Add(-time.Duration(r.cfg.CMSStaleWindowHours) * time.Hour)
	pruned, err := r.mappings.PruneStale(cutoff)
	if err != nil {
		r.log.Error().Err(err).Msg("page mapping prune failed")
		return
	}
	if pruned > 0 {
		r.log.Info().Int64("pruned", pruned).Msg("stale page mappings removed")
	}
}
