package services

import (
	"fmt"
	"testing"

	"stormcloud/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestBulkDelete(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, "alice", 0)

	env.upload(t, account, "a.txt", "1")
	env.upload(t, account, "b.txt", "2")

	outcome, err := env.bulk.Submit(env.op(account), account, BulkRequest{
		Operation: BulkDelete,
		Paths:     []string{"a.txt", "b.txt", "missing.txt"},
	})
	require.NoError(t, err)
	require.False(t, outcome.Async)

	stats := outcome.Stats
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Succeeded)
	assert.Equal(t, 1, stats.Failed)

	// Per-path outcomes are independent and ordered.
	assert.True(t, stats.Results[0].Success)
	assert.True(t, stats.Results[1].Success)
	assert.False(t, stats.Results[2].Success)
	assert.Equal(t, apperrors.CodeFileNotFound, stats.Results[2].ErrorCode)
}

func TestBulkMove(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, "alice", 0)

	env.mkdir(t, account, "dst")
	env.upload(t, account, "a.txt", "1")
	env.upload(t, account, "dst/b.txt", "collides")
	env.upload(t, account, "b.txt", "2")

	outcome, err := env.bulk.Submit(env.op(account), account, BulkRequest{
		Operation:   BulkMove,
		Paths:       []string{"a.txt", "b.txt"},
		Destination: strPtr("dst"),
	})
	require.NoError(t, err)

	stats := outcome.Stats
	assert.Equal(t, 1, stats.Succeeded)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, "dst/a.txt", stats.Results[0].NewPath)
	assert.Equal(t, apperrors.CodeAlreadyExists, stats.Results[1].ErrorCode)
}

func TestBulkCopyQuotaAndDedupe(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, "alice", 50)

	env.mkdir(t, account, "dst")
	env.upload(t, account, "a.bin", "0123456789012345678901234") // 25 bytes

	// One copy fits (25 -> 50); a second does not.
	outcome, err := env.bulk.Submit(env.op(account), account, BulkRequest{
		Operation:   BulkCopy,
		Paths:       []string{"a.bin", "a.bin", "a.bin"},
		Destination: strPtr("dst"),
	})
	require.NoError(t, err)

	// Duplicate paths collapse to one attempt.
	stats := outcome.Stats
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Succeeded)
	assert.Equal(t, int64(50), env.reload(t, account).StorageUsedBytes)
}

func TestBulkValidation(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, "alice", 0)

	t.Run("unknown operation", func(t *testing.T) {
		_, err := env.bulk.Submit(env.op(account), account, BulkRequest{
			Operation: "rename", Paths: []string{"a"},
		})
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeInvalidRequest, apperrors.As(err).Code)
	})

	t.Run("no paths", func(t *testing.T) {
		_, err := env.bulk.Submit(env.op(account), account, BulkRequest{Operation: BulkDelete})
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeInvalidRequest, apperrors.As(err).Code)
	})

	t.Run("too many paths", func(t *testing.T) {
		paths := make([]string, env.cfg.BulkMaxPaths+1)
		for i := range paths {
			paths[i] = fmt.Sprintf("f-%d.txt", i)
		}
		_, err := env.bulk.Submit(env.op(account), account, BulkRequest{
			Operation: BulkDelete, Paths: paths,
		})
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeInvalidRequest, apperrors.As(err).Code)
	})

	t.Run("move requires a destination", func(t *testing.T) {
		_, err := env.bulk.Submit(env.op(account), account, BulkRequest{
			Operation: BulkMove, Paths: []string{"a.txt"},
		})
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeInvalidRequest, apperrors.As(err).Code)
	})

	t.Run("capability gate runs before anything mutates", func(t *testing.T) {
		env.upload(t, account, "protected.txt", "x")
		account.CanDelete = false
		defer func() { account.CanDelete = true }()

		_, err := env.bulk.Submit(env.op(account), account, BulkRequest{
			Operation: BulkDelete, Paths: []string{"protected.txt"},
		})
		require.Error(t, err)
		assert.Equal(t, apperrors.CodePermissionDenied, apperrors.As(err).Code)

		_, getErr := env.fileRepo.Get(account.ID, "protected.txt")
		assert.NoError(t, getErr)
	})
}

func TestBulkEmitsOneAuditEvent(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, "alice", 0)

	env.upload(t, account, "a.txt", "1")
	env.upload(t, account, "b.txt", "2")

	before, err := env.auditRepo.CountFor(account.ID)
	require.NoError(t, err)

	_, err = env.bulk.Submit(env.op(account), account, BulkRequest{
		Operation: BulkDelete, Paths: []string{"a.txt", "b.txt"},
	})
	require.NoError(t, err)

	after, err := env.auditRepo.CountFor(account.ID)
	require.NoError(t, err)
	assert.Equal(t, before+1, after, "a batch audits once, not per path")
}
