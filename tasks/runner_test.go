package tasks

import (
	"context"
	"strings"
	"testing"
	"time"

	"stormcloud/config"
	"stormcloud/database"
	"stormcloud/models"
	"stormcloud/repositories"
	"stormcloud/services"
	"stormcloud/storage"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runnerEnv struct {
	runner  *Runner
	bulk    *services.BulkService
	files   *services.FileService
	account *models.Account
}

func newRunnerEnv(t *testing.T) *runnerEnv {
	t.Helper()

	require.NoError(t, database.ConnectSQLite(":memory:"))
	require.NoError(t, database.Migrate())

	backend, err := storage.NewLocalBackend(t.TempDir())
	require.NoError(t, err)

	cfg := config.Default()
	accountRepo := repositories.NewAccountRepository()
	fileRepo := repositories.NewFileRepository()
	shareRepo := repositories.NewShareRepository()
	cmsRepo := repositories.NewContentMappingRepository()
	auditRepo := repositories.NewAuditRepository()

	auditor := services.NewAuditor(auditRepo, zerolog.Nop())
	quota := services.NewQuotaService(accountRepo)
	files := services.NewFileService(cfg, backend, fileRepo, accountRepo, quota, auditor)

	runner := NewRunner(cfg, shareRepo, cmsRepo, zerolog.Nop())
	bulk := services.NewBulkService(cfg, files, accountRepo, runner)
	runner.Bind(bulk)

	account := &models.Account{
		Username: "worker-test", PasswordHash: "unused",
		CanUpload: true, CanDelete: true, CanMove: true,
		CanOverwrite: true, CanCreateShares: true,
	}
	require.NoError(t, accountRepo.Create(account))

	return &runnerEnv{runner: runner, bulk: bulk, files: files, account: account}
}

func (e *runnerEnv) upload(t *testing.T, path, content string) {
	t.Helper()
	op := services.OpContext{Actor: e.account, Target: e.account}
	_, err := e.files.Upload(op, e.account, path, strings.NewReader(content), int64(len(content)))
	require.NoError(t, err)
}

func TestRunnerExecutesBulkJob(t *testing.T) {
	env := newRunnerEnv(t)
	env.upload(t, "a.txt", "1")
	env.upload(t, "b.txt", "2")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.runner.Start(ctx)

	taskID, ok := env.runner.EnqueueBulk(services.BulkJob{
		TargetID:  env.account.ID,
		Operation: services.BulkDelete,
		Paths:     []string{"a.txt", "b.txt", "missing.txt"},
	})
	require.True(t, ok)

	require.Eventually(t, func() bool {
		task, found := env.runner.Get(taskID, env.account.ID)
		return found && task.Status == StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	task, found := env.runner.Get(taskID, env.account.ID)
	require.True(t, found)
	require.NotNil(t, task.Stats)
	assert.Equal(t, 2, task.Stats.Succeeded)
	assert.Equal(t, 1, task.Stats.Failed)
	assert.NotNil(t, task.FinishedAt)
}

func TestRunnerFailsJobWhenPermissionRevoked(t *testing.T) {
	env := newRunnerEnv(t)
	env.upload(t, "a.txt", "1")

	// Permission is revoked after submission but before execution.
	env.account.CanDelete = false
	require.NoError(t, database.DB.Save(env.account).Error)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.runner.Start(ctx)

	taskID, ok := env.runner.EnqueueBulk(services.BulkJob{
		TargetID:  env.account.ID,
		Operation: services.BulkDelete,
		Paths:     []string{"a.txt"},
	})
	require.True(t, ok)

	require.Eventually(t, func() bool {
		task, found := env.runner.Get(taskID, env.account.ID)
		return found && task.Status == StatusFailed
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRunnerScopesTasksToSubmitter(t *testing.T) {
	env := newRunnerEnv(t)

	taskID, ok := env.runner.EnqueueBulk(services.BulkJob{
		TargetID:  env.account.ID,
		Operation: services.BulkDelete,
		Paths:     []string{"x"},
	})
	require.True(t, ok)

	_, found := env.runner.Get(taskID, env.account.ID+1)
	assert.False(t, found, "other accounts cannot see the task")
}
