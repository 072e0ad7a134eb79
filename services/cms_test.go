package services

import (
	"testing"
	"time"

	"stormcloud/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCMSPublishAndResolve(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, "alice", 0)
	env.upload(t, account, "pages/about.md", "# About us")

	mapping, err := env.cms.Publish(account, "about", "pages/about.md")
	require.NoError(t, err)
	assert.Equal(t, "about", mapping.Slug)

	page, err := env.cms.Resolve(account.ID, "about")
	require.NoError(t, err)
	assert.Equal(t, "# About us", page.Content)
	assert.Equal(t, "text/markdown; charset=utf-8", page.ContentType)

	t.Run("republish refreshes in place", func(t *testing.T) {
		env.upload(t, account, "pages/about-v2.md", "# New about")
		_, err := env.cms.Publish(account, "about", "pages/about-v2.md")
		require.NoError(t, err)

		page, err := env.cms.Resolve(account.ID, "about")
		require.NoError(t, err)
		assert.Equal(t, "# New about", page.Content)

		mappings, err := env.cms.List(account)
		require.NoError(t, err)
		assert.Len(t, mappings, 1)
	})
}

func TestCMSValidation(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, "alice", 0)
	env.upload(t, account, "photo.png", "binary-ish")

	t.Run("bad slug", func(t *testing.T) {
		_, err := env.cms.Publish(account, "Not A Slug", "photo.png")
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeInvalidRequest, apperrors.As(err).Code)
	})

	t.Run("non-text content", func(t *testing.T) {
		_, err := env.cms.Publish(account, "photo", "photo.png")
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeNotTextFile, apperrors.As(err).Code)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := env.cms.Publish(account, "ghost", "nope.md")
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeFileNotFound, apperrors.As(err).Code)
	})

	t.Run("unknown slug resolves to not found", func(t *testing.T) {
		_, err := env.cms.Resolve(account.ID, "unknown")
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeNotFound, apperrors.As(err).Code)
	})
}

func TestCMSUnpublishAndPrune(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, "alice", 0)
	env.upload(t, account, "page.md", "content")

	_, err := env.cms.Publish(account, "page", "page.md")
	require.NoError(t, err)

	t.Run("unpublish removes the mapping only", func(t *testing.T) {
		require.NoError(t, env.cms.Unpublish(account, "page"))

		_, err := env.cms.Resolve(account.ID, "page")
		require.Error(t, err)

		_, err = env.fileRepo.Get(account.ID, "page.md")
		assert.NoError(t, err, "the file itself stays")
	})

	t.Run("stale mappings are pruned by cutoff", func(t *testing.T) {
		_, err := env.cms.Publish(account, "fresh", "page.md")
		require.NoError(t, err)

		pruned, err := env.cmsRepo.PruneStale(time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.Zero(t, pruned, "fresh mapping survives")

		pruned, err = env.cmsRepo.PruneStale(time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), pruned)
	})
}
