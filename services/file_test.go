package services

import (
	"io"
	"strings"
	"testing"

	"stormcloud/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadCreatesMissingParents(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, "alice", 0)

	details := env.upload(t, account, "a/b/c.txt", "hello")
	assert.Equal(t, "a/b/c.txt", details.Path)
	assert.Equal(t, "c.txt", details.Name)

	for _, dir := range []string{"a", "a/b"} {
		rec, err := env.fileRepo.Get(account.ID, dir)
		require.NoError(t, err)
		assert.True(t, rec.IsDirectory)
	}
}

func TestUploadRejectsTraversal(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, "alice", 0)

	for _, path := range []string{"../escape.txt", "a/../../b.txt", ""} {
		_, err := env.files.Upload(env.op(account), account, path, strings.NewReader("x"), 1)
		require.Error(t, err, "path %q", path)
		assert.Equal(t, apperrors.CodeInvalidPath, apperrors.As(err).Code)
	}
}

func TestUploadRespectsCapabilities(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, "alice", 0)
	env.upload(t, account, "keep.txt", "v1")

	t.Run("overwrite needs can_overwrite", func(t *testing.T) {
		account.CanOverwrite = false
		_, err := env.files.Upload(env.op(account), account, "keep.txt", strings.NewReader("v2"), 2)
		require.Error(t, err)
		appErr := apperrors.As(err)
		assert.Equal(t, apperrors.CodePermissionDenied, appErr.Code)
		assert.Equal(t, CapOverwrite, appErr.Extra["permission"])
		account.CanOverwrite = true
	})

	t.Run("upload needs can_upload", func(t *testing.T) {
		account.CanUpload = false
		_, err := env.files.Upload(env.op(account), account, "new.txt", strings.NewReader("x"), 1)
		require.Error(t, err)
		assert.Equal(t, apperrors.CodePermissionDenied, apperrors.As(err).Code)
		account.CanUpload = true
	})
}

func TestUploadSizeCeilings(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, "alice", 0)
	account.MaxUploadBytes = 10

	_, err := env.files.Upload(env.op(account), account, "big.bin",
		strings.NewReader(strings.Repeat("x", 11)), 11)
	require.Error(t, err)
	appErr := apperrors.As(err)
	assert.Equal(t, apperrors.CodeFileTooLarge, appErr.Code)
	assert.Equal(t, 413, appErr.Status)

	account.MaxUploadBytes = 0
	env.upload(t, account, "big.bin", strings.Repeat("x", 11))
}

func TestDownloadRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, "alice", 0)
	env.upload(t, account, "doc.txt", "round trip content")

	res, err := env.files.Download(env.op(account), account, "doc.txt", "")
	require.NoError(t, err)
	defer res.Reader.Close()

	data, err := io.ReadAll(res.Reader)
	require.NoError(t, err)
	assert.Equal(t, "round trip content", string(data))
	assert.Equal(t, "doc.txt", res.Name)
	assert.NotEmpty(t, res.ETag)

	t.Run("matching validator answers not modified", func(t *testing.T) {
		again, err := env.files.Download(env.op(account), account, "doc.txt", res.ETag)
		require.NoError(t, err)
		assert.True(t, again.NotModified)
		assert.Nil(t, again.Reader)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := env.files.Download(env.op(account), account, "nope.txt", "")
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeFileNotFound, apperrors.As(err).Code)
	})

	t.Run("directory is not downloadable", func(t *testing.T) {
		env.mkdir(t, account, "folder")
		_, err := env.files.Download(env.op(account), account, "folder", "")
		require.Error(t, err)
		assert.Equal(t, apperrors.CodePathIsDirectory, apperrors.As(err).Code)
	})
}

func TestPreview(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, "alice", 0)
	env.upload(t, account, "readme.md", "# Title")
	env.upload(t, account, "image.png", "not really a png")

	t.Run("text file previews", func(t *testing.T) {
		res, err := env.files.Preview(env.op(account), account, "readme.md")
		require.NoError(t, err)
		assert.Equal(t, "# Title", res.Content)
	})

	t.Run("binary file is refused", func(t *testing.T) {
		_, err := env.files.Preview(env.op(account), account, "image.png")
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeNotTextFile, apperrors.As(err).Code)
	})

	t.Run("oversize file is refused", func(t *testing.T) {
		env.cfg.MaxPreviewBytes = 3
		defer func() { env.cfg.MaxPreviewBytes = 5 << 20 }()

		_, err := env.files.Preview(env.op(account), account, "readme.md")
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeFileTooLarge, apperrors.As(err).Code)
	})
}

func TestUpdateContent(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, "alice", 100)
	env.upload(t, account, "notes.txt", "short")

	details, err := env.files.UpdateContent(env.op(account), account, "notes.txt",
		[]byte("a longer body of text"))
	require.NoError(t, err)
	assert.Equal(t, int64(21), details.Size)
	assert.Equal(t, int64(21), env.reload(t, account).StorageUsedBytes)

	res, err := env.files.Download(env.op(account), account, "notes.txt", "")
	require.NoError(t, err)
	defer res.Reader.Close()
	data, _ := io.ReadAll(res.Reader)
	assert.Equal(t, "a longer body of text", string(data))
}

func TestMove(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, "alice", 0)
	env.mkdir(t, account, "src")
	env.mkdir(t, account, "dst")
	env.upload(t, account, "src/file.txt", "payload")

	t.Run("move updates metadata and bytes", func(t *testing.T) {
		details, err := env.files.Move(env.op(account), account, "src/file.txt", "dst")
		require.NoError(t, err)
		assert.Equal(t, "dst/file.txt", details.Path)

		_, err = env.fileRepo.Get(account.ID, "src/file.txt")
		assert.Error(t, err)

		res, err := env.files.Download(env.op(account), account, "dst/file.txt", "")
		require.NoError(t, err)
		res.Reader.Close()
	})

	t.Run("collision is rejected", func(t *testing.T) {
		env.upload(t, account, "src/file.txt", "other")
		_, err := env.files.Move(env.op(account), account, "src/file.txt", "dst")
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeAlreadyExists, apperrors.As(err).Code)
	})

	t.Run("missing destination", func(t *testing.T) {
		_, err := env.files.Move(env.op(account), account, "src/file.txt", "nowhere")
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeDestinationNotFound, apperrors.As(err).Code)
	})

	t.Run("directory move rewrites the subtree", func(t *testing.T) {
		env.upload(t, account, "src/deep/nested.txt", "x")
		_, err := env.files.Move(env.op(account), account, "src/deep", "dst")
		require.NoError(t, err)

		rec, err := env.fileRepo.Get(account.ID, "dst/deep/nested.txt")
		require.NoError(t, err)
		assert.Equal(t, "dst/deep", rec.ParentPath)
	})

	t.Run("directory cannot move into itself", func(t *testing.T) {
		env.mkdir(t, account, "outer")
		env.mkdir(t, account, "outer/inner")
		_, err := env.files.Move(env.op(account), account, "outer", "outer/inner")
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeInvalidPath, apperrors.As(err).Code)
	})
}

func TestCopy(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, "alice", 100)
	env.mkdir(t, account, "dst")
	env.upload(t, account, "orig.txt", strings.Repeat("x", 30))

	t.Run("copy duplicates bytes and charges quota", func(t *testing.T) {
		details, err := env.files.Copy(env.op(account), account, "orig.txt", "dst")
		require.NoError(t, err)
		assert.Equal(t, "dst/orig.txt", details.Path)
		assert.Equal(t, int64(60), env.reload(t, account).StorageUsedBytes)
	})

	t.Run("copy into the same directory renames", func(t *testing.T) {
		details, err := env.files.Copy(env.op(account), account, "orig.txt", "")
		require.NoError(t, err)
		assert.Equal(t, "orig (copy).txt", details.Path)
	})

	t.Run("copy fails when quota cannot hold the duplicate", func(t *testing.T) {
		used := env.reload(t, account).StorageUsedBytes
		_, err := env.files.Copy(env.op(account), account, "orig.txt", "dst")
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeQuotaExceeded, apperrors.As(err).Code)
		assert.Equal(t, used, env.reload(t, account).StorageUsedBytes)
	})
}

func TestDeleteRequiresCapability(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, "alice", 0)
	env.upload(t, account, "f.txt", "x")

	account.CanDelete = false
	err := env.files.Delete(env.op(account), account, "f.txt")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodePermissionDenied, apperrors.As(err).Code)

	account.CanDelete = true
	require.NoError(t, env.files.Delete(env.op(account), account, "f.txt"))
}

func TestInfo(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, "alice", 0)
	env.upload(t, account, "info.json", `{"k":1}`)

	details, err := env.files.Info(account, "info.json")
	require.NoError(t, err)
	assert.Equal(t, "application/json", details.ContentType)
	assert.False(t, details.IsDirectory)
	assert.NotEmpty(t, details.ETag)
}
