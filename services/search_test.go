package services

import (
	"fmt"
	"testing"

	"stormcloud/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, "alice", 0)

	env.mkdir(t, account, "docs")
	env.mkdir(t, account, "docs/readme-drafts")
	env.upload(t, account, "README.md", "root readme")
	env.upload(t, account, "docs/readme.txt", "nested readme")
	env.upload(t, account, "docs/other.txt", "no match")

	t.Run("case-insensitive substring on the name", func(t *testing.T) {
		result, err := env.search.Search(account, "readme", "", 0)
		require.NoError(t, err)

		paths := make([]string, 0, len(result.Results))
		for _, r := range result.Results {
			paths = append(paths, r.Path)
		}
		assert.ElementsMatch(t,
			[]string{"README.md", "docs/readme.txt", "docs/readme-drafts"}, paths)
		assert.Equal(t, 3, result.Count)
		assert.False(t, result.Truncated)
	})

	t.Run("scoped to a subdirectory", func(t *testing.T) {
		result, err := env.search.Search(account, "readme", "docs", 0)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Count)
		assert.Equal(t, "docs", result.SearchPath)
	})

	t.Run("no hits is an empty result, not an error", func(t *testing.T) {
		result, err := env.search.Search(account, "zzz", "", 0)
		require.NoError(t, err)
		assert.Empty(t, result.Results)
		assert.Equal(t, 0, result.Count)
	})
}

func TestSearchValidation(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, "alice", 0)
	env.upload(t, account, "file.txt", "x")

	t.Run("empty query", func(t *testing.T) {
		_, err := env.search.Search(account, "  ", "", 0)
		require.Error(t, err)
		appErr := apperrors.As(err)
		assert.Equal(t, apperrors.CodeMissingQuery, appErr.Code)
		assert.Equal(t, 400, appErr.Status)
	})

	t.Run("missing start path", func(t *testing.T) {
		_, err := env.search.Search(account, "x", "nowhere", 0)
		require.Error(t, err)
		appErr := apperrors.As(err)
		assert.Equal(t, apperrors.CodePathNotFound, appErr.Code)
		assert.Equal(t, 404, appErr.Status)
	})

	t.Run("start path is a file", func(t *testing.T) {
		_, err := env.search.Search(account, "x", "file.txt", 0)
		require.Error(t, err)
		assert.Equal(t, apperrors.CodePathIsFile, apperrors.As(err).Code)
	})
}

func TestSearchTruncation(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, "alice", 0)

	for i := 0; i < 5; i++ {
		env.upload(t, account, fmt.Sprintf("match-%d.txt", i), "x")
	}

	result, err := env.search.Search(account, "match", "", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Count)
	assert.True(t, result.Truncated)
}

func TestSearchIsPerTenant(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createAccount(t, "alice", 0)
	bob := env.createAccount(t, "bob", 0)

	env.upload(t, alice, "secret-plan.txt", "alice's")
	env.upload(t, bob, "other.txt", "bob's")

	result, err := env.search.Search(bob, "secret", "", 0)
	require.NoError(t, err)
	assert.Empty(t, result.Results)
}
