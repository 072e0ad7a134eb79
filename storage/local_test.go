package storage

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T) *LocalBackend {
	t.Helper()
	b, err := NewLocalBackend(t.TempDir())
	require.NoError(t, err)
	return b
}

func TestSaveAndOpen(t *testing.T) {
	b := newTestBackend(t)

	info, err := b.Save("hello.txt", strings.NewReader("hello world"))
	require.NoError(t, err)
	assert.Equal(t, "hello.txt", info.Name)
	assert.Equal(t, int64(11), info.Size)
	assert.False(t, info.IsDirectory)
	assert.Equal(t, "text/plain; charset=utf-8", info.ContentType)

	r, err := b.Open("hello.txt")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestSaveRequiresParent(t *testing.T) {
	b := newTestBackend(t)

	_, err := b.Save("missing/dir/file.txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveOverwrites(t *testing.T) {
	b := newTestBackend(t)

	_, err := b.Save("a.txt", strings.NewReader("first"))
	require.NoError(t, err)
	info, err := b.Save("a.txt", strings.NewReader("second version"))
	require.NoError(t, err)
	assert.Equal(t, int64(14), info.Size)
}

func TestMkdirAndList(t *testing.T) {
	b := newTestBackend(t)

	_, err := b.Mkdir("docs")
	require.NoError(t, err)
	_, err = b.Mkdir("docs")
	assert.ErrorIs(t, err, ErrAlreadyExists)

	_, err = b.Save("docs/readme.md", strings.NewReader("# hi"))
	require.NoError(t, err)

	entries, err := b.List("docs")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "readme.md", entries[0].Name)
	assert.Equal(t, "docs/readme.md", entries[0].Path)
}

func TestDeleteRecursive(t *testing.T) {
	b := newTestBackend(t)

	_, err := b.Mkdir("dir/sub")
	require.NoError(t, err)
	_, err = b.Save("dir/sub/f.txt", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, b.Delete("dir"))
	assert.False(t, b.Exists("dir"))
	assert.False(t, b.Exists("dir/sub/f.txt"))

	assert.ErrorIs(t, b.Delete("dir"), ErrNotFound)
}

func TestMove(t *testing.T) {
	b := newTestBackend(t)

	_, err := b.Mkdir("dst")
	require.NoError(t, err)
	_, err = b.Save("a.txt", strings.NewReader("content"))
	require.NoError(t, err)

	info, err := b.Move("a.txt", "dst")
	require.NoError(t, err)
	assert.Equal(t, "dst/a.txt", info.Path)
	assert.False(t, b.Exists("a.txt"))
	assert.True(t, b.Exists("dst/a.txt"))

	// Collision fails.
	_, err = b.Save("a.txt", strings.NewReader("other"))
	require.NoError(t, err)
	_, err = b.Move("a.txt", "dst")
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestCopyRenamesOnCollision(t *testing.T) {
	b := newTestBackend(t)

	_, err := b.Mkdir("dst")
	require.NoError(t, err)
	_, err = b.Save("a.txt", strings.NewReader("content"))
	require.NoError(t, err)

	first, err := b.Copy("a.txt", "dst")
	require.NoError(t, err)
	assert.Equal(t, "dst/a.txt", first.Path)

	second, err := b.Copy("a.txt", "dst")
	require.NoError(t, err)
	assert.Equal(t, "dst/a (copy).txt", second.Path)

	third, err := b.Copy("a.txt", "dst")
	require.NoError(t, err)
	assert.Equal(t, "dst/a (copy 2).txt", third.Path)

	assert.True(t, b.Exists("a.txt"))
}

func TestResolveBlocksEscape(t *testing.T) {
	b := newTestBackend(t)

	// Raw traversal never reaches the backend in production, but the
	// backend still refuses it.
	_, err := b.Info("../outside")
	assert.Error(t, err)
}
