package services

import (
	"strings"
	"testing"

	"stormcloud/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectiveQuota(t *testing.T) {
	env := newTestEnv(t)

	org := env.createOrg(t, "acme", 1000)

	t.Run("account quota wins over organization", func(t *testing.T) {
		account := env.createAccount(t, "own-quota", 500)
		account.OrganizationID = &org.ID
		require.NoError(t, env.accountRepo.Update(account))

		assert.Equal(t, int64(500), EffectiveQuota(env.reload(t, account)))
	})

	t.Run("zero account quota inherits organization", func(t *testing.T) {
		account := env.createAccount(t, "org-quota", 0)
		account.OrganizationID = &org.ID
		require.NoError(t, env.accountRepo.Update(account))

		assert.Equal(t, int64(1000), EffectiveQuota(env.reload(t, account)))
	})

	t.Run("no quota anywhere means unlimited", func(t *testing.T) {
		account := env.createAccount(t, "unlimited", 0)
		assert.Equal(t, int64(0), EffectiveQuota(account))
	})
}

func TestUploadQuotaEnforcement(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, "alice", 100)

	t.Run("upload to exactly the quota succeeds", func(t *testing.T) {
		env.upload(t, account, "full.bin", strings.Repeat("x", 100))
		assert.Equal(t, int64(100), env.reload(t, account).StorageUsedBytes)
	})

	t.Run("one more byte is rejected", func(t *testing.T) {
		_, err := env.files.Upload(env.op(account), account, "extra.bin",
			strings.NewReader("y"), 1)
		require.Error(t, err)

		appErr := apperrors.As(err)
		require.NotNil(t, appErr)
		assert.Equal(t, apperrors.CodeQuotaExceeded, appErr.Code)
		assert.Equal(t, 507, appErr.Status)
	})

	t.Run("rejected upload leaves usage untouched", func(t *testing.T) {
		assert.Equal(t, int64(100), env.reload(t, account).StorageUsedBytes)
	})
}

func TestOverwriteChargesOnlyTheDifference(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, "bob", 100)

	env.upload(t, account, "notes.txt", strings.Repeat("a", 80))
	assert.Equal(t, int64(80), env.reload(t, account).StorageUsedBytes)

	// 80 -> 95 needs 15 more bytes; headroom is 20.
	env.upload(t, account, "notes.txt", strings.Repeat("b", 95))
	assert.Equal(t, int64(95), env.reload(t, account).StorageUsedBytes)

	// 95 -> 101 would exceed the ceiling even though 101-95 < headroom at
	// the start of the test.
	_, err := env.files.Upload(env.op(account), account, "notes.txt",
		strings.NewReader(strings.Repeat("c", 101)), 101)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeQuotaExceeded, apperrors.As(err).Code)

	// Shrinking is always allowed.
	env.upload(t, account, "notes.txt", "tiny")
	assert.Equal(t, int64(4), env.reload(t, account).StorageUsedBytes)
}

func TestDeleteReleasesQuota(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, "carol", 1000)

	env.mkdir(t, account, "docs")
	env.upload(t, account, "docs/a.txt", strings.Repeat("x", 40))
	env.upload(t, account, "docs/b.txt", strings.Repeat("y", 60))
	assert.Equal(t, int64(100), env.reload(t, account).StorageUsedBytes)

	require.NoError(t, env.files.Delete(env.op(account), account, "docs"))
	assert.Equal(t, int64(0), env.reload(t, account).StorageUsedBytes)

	// Metadata for the subtree is gone too.
	_, err := env.fileRepo.Get(account.ID, "docs/a.txt")
	assert.Error(t, err)
}

func TestOrganizationQuotaApplies(t *testing.T) {
	env := newTestEnv(t)
	org := env.createOrg(t, "smallco", 50)

	account := env.createAccount(t, "dave", 0)
	account.OrganizationID = &org.ID
	require.NoError(t, env.accountRepo.Update(account))
	account = env.reload(t, account)

	env.upload(t, account, "ok.bin", strings.Repeat("x", 50))

	_, err := env.files.Upload(env.op(account), account, "no.bin", strings.NewReader("z"), 1)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeQuotaExceeded, apperrors.As(err).Code)
}

func TestUsageFor(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, "erin", 200)
	env.upload(t, account, "f.txt", strings.Repeat("x", 50))

	usage := UsageFor(env.reload(t, account))
	assert.Equal(t, Usage{UsedBytes: 50, QuotaBytes: 200, Unlimited: false}, usage)

	unlimited := env.createAccount(t, "frank", 0)
	assert.True(t, UsageFor(unlimited).Unlimited)
}
