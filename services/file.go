package services

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"

	"stormcloud/apperrors"
	"stormcloud/config"
	"stormcloud/database"
	"stormcloud/models"
	"stormcloud/pathutil"
	"stormcloud/repositories"
	"stormcloud/storage"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// FileService implements single-file operations against the metadata index
// and the storage backend. The index is authoritative; every mutation keeps
// the two in step inside one database transaction.
type FileService struct {
	cfg      *config.Config
	backend  storage.Backend
	files    *repositories.FileRepository
	accounts *repositories.AccountRepository
	quota    *QuotaService
	audit    AuditRecorder
}

// NewFileService wires a file service.
func NewFileService(cfg *config.Config, backend storage.Backend, files *repositories.FileRepository,
	accounts *repositories.AccountRepository, quota *QuotaService, audit AuditRecorder) *FileService {
	return &FileService{cfg: cfg, backend: backend, files: files, accounts: accounts, quota: quota, audit: audit}
}

// ownerRoot is the backend path segment isolating one account's tree.
func ownerRoot(ownerID uint) string {
	return strconv.FormatUint(uint64(ownerID), 10)
}

// OwnerRootPath exposes the backend root segment for an account, for
// tree-level maintenance like account deletion.
func OwnerRootPath(ownerID uint) string {
	return ownerRoot(ownerID)
}

func backendPath(ownerID uint, path string) string {
	if path == "" {
		return ownerRoot(ownerID)
	}
	return ownerRoot(ownerID) + "/" + path
}

func mapStorageErr(err error, path string) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.FileNotFound(path)
	case errors.Is(err, storage.ErrAlreadyExists):
		return apperrors.Newf(apperrors.CodeAlreadyExists, fiber.StatusConflict,
			"'%s' already exists at the destination.", path)
	case errors.Is(err, storage.ErrIsDirectory):
		return apperrors.PathIsDirectory(path)
	case errors.Is(err, storage.ErrNotDirectory):
		return apperrors.Newf(apperrors.CodePathIsFile, fiber.StatusBadRequest,
			"Path '%s' is a file, not a directory.", path)
	default:
		return err
	}
}

// FileDetails is the metadata view returned by Info.
type FileDetails struct {
	Name             string `json:"name"`
	Path             string `json:"path"`
	Size             int64  `json:"size"`
	ContentType      string `json:"content_type"`
	IsDirectory      bool   `json:"is_directory"`
	EncryptionMethod string `json:"encryption_method"`
	Modified         string `json:"modified"`
	ETag             string `json:"etag"`
}

func detailsOf(rec *models.StoredFile) FileDetails {
	return FileDetails{
		Name:             rec.Name,
		Path:             rec.Path,
		Size:             rec.Size,
		ContentType:      rec.ContentType,
		IsDirectory:      rec.IsDirectory,
		EncryptionMethod: rec.EncryptionMethod,
		Modified:         rec.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		ETag:             ETagFor(rec.Path, rec.Size, rec.UpdatedAt),
	}
}

// Info returns metadata for a single entry.
func (s *FileService) Info(owner *models.Account, rawPath string) (*FileDetails, error) {
	path, err := pathutil.Normalize(rawPath)
	if err != nil || path == "" {
		return nil, apperrors.InvalidPath("Invalid path.")
	}
	rec, err := s.files.Get(owner.ID, path)
	if err != nil {
		return nil, apperrors.FileNotFound(path)
	}
	d := detailsOf(rec)
	return &d, nil
}

// maxUploadFor resolves the per-file upload ceiling for an account.
func (s *FileService) maxUploadFor(owner *models.Account) int64 {
	if owner.MaxUploadBytes > 0 {
		return owner.MaxUploadBytes
	}
	return s.cfg.MaxUploadBytes
}

// Upload stores a file at path, creating missing parent directories. An
// existing file is overwritten when the owner holds can_overwrite, with the
// quota charged only for the size difference.
func (s *FileService) Upload(op OpContext, owner *models.Account, rawPath string,
	content io.Reader, size int64) (*FileDetails, error) {
	rec, err := s.uploadOne(owner, rawPath, content, size)

	ev := AuditEvent{Op: op, Action: models.ActionUpload, Path: rawPath, Success: err == nil}
	if rec != nil {
		ev.Path = rec.Path
		ev.FileSize = &rec.Size
		ev.ContentType = rec.ContentType
	}
	ev.ErrorCode, ev.ErrorMessage = codeOf(err)
	s.audit.Record(ev)

	if err != nil {
		return nil, err
	}
	d := detailsOf(rec)
	return &d, nil
}

func (s *FileService) uploadOne(owner *models.Account, rawPath string,
	content io.Reader, size int64) (*models.StoredFile, error) {
	path, err := pathutil.Normalize(rawPath)
	if err != nil || path == "" {
		return nil, apperrors.InvalidPath("Invalid upload path.")
	}
	if err := pathutil.ValidateFilename(pathutil.Base(path)); err != nil {
		return nil, apperrors.InvalidPath(err.Error())
	}
	if err := RequireCapability(owner, CapUpload); err != nil {
		return nil, err
	}

	if max := s.maxUploadFor(owner); size > max {
		return nil, apperrors.Newf(apperrors.CodeFileTooLarge, fiber.StatusRequestEntityTooLarge,
			"File exceeds the maximum upload size of %d bytes.", max).With("limit", max)
	}

	existing, _ := s.files.Get(owner.ID, path)
	if existing != nil {
		if existing.IsDirectory {
			return nil, apperrors.PathIsDirectory(path)
		}
		if err := RequireCapability(owner, CapOverwrite); err != nil {
			return nil, err
		}
	}

	var oldSize int64
	if existing != nil {
		oldSize = existing.Size
	}

	var rec *models.StoredFile
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.ensureParents(tx, owner.ID, pathutil.Parent(path)); err != nil {
			return err
		}
		if err := s.quota.CheckAndReserve(tx, owner.ID, size-oldSize); err != nil {
			return err
		}

		info, err := s.backend.Save(backendPath(owner.ID, path), content)
		if err != nil {
			return mapStorageErr(err, path)
		}

		// Written size is authoritative; settle any difference from the
		// declared size so the counter never drifts.
		if info.Size != size {
			if err := s.accounts.AdjustStorageUsed(tx, owner.ID, info.Size-size); err != nil {
				return err
			}
		}

		if existing != nil {
			existing.Size = info.Size
			existing.ContentType = storage.ContentTypeFor(existing.Name)
			rec = existing
			return s.files.Save(tx, existing)
		}

		if err := s.files.ShiftSiblingPositions(tx, owner.ID, pathutil.Parent(path)); err != nil {
			return err
		}
		pos := 0
		rec = &models.StoredFile{
			OwnerID:          owner.ID,
			Path:             path,
			Name:             pathutil.Base(path),
			ParentPath:       pathutil.Parent(path),
			Size:             info.Size,
			ContentType:      storage.ContentTypeFor(pathutil.Base(path)),
			EncryptionMethod: models.EncryptionNone,
			SortPosition:     &pos,
		}
		return s.files.Create(tx, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ensureParents creates missing directory records (and backend directories)
// for every ancestor of parentPath. Implicit parents keep alphabetical
// ordering.
func (s *FileService) ensureParents(tx *gorm.DB, ownerID uint, parentPath string) error {
	// The per-owner root directory has no metadata record of its own.
	if _, err := s.backend.Mkdir(ownerRoot(ownerID)); err != nil && !errors.Is(err, storage.ErrAlreadyExists) {
		return mapStorageErr(err, "")
	}
	if parentPath == "" {
		return nil
	}
	segments := strings.Split(parentPath, "/")
	current := ""
	for _, seg := range segments {
		if current == "" {
			current = seg
		} else {
			current = current + "/" + seg
		}
		exists, err := s.files.Exists(ownerID, current)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if _, err := s.backend.Mkdir(backendPath(ownerID, current)); err != nil && !errors.Is(err, storage.ErrAlreadyExists) {
			return mapStorageErr(err, current)
		}
		dir := &models.StoredFile{
			OwnerID:     ownerID,
			Path:        current,
			Name:        pathutil.Base(current),
			ParentPath:  pathutil.Parent(current),
			IsDirectory: true,
		}
		if err := s.files.Create(tx, dir); err != nil {
			return err
		}
	}
	return nil
}

// DownloadResult carries everything the transport layer needs to stream a
// file back, or to answer a conditional request with 304.
type DownloadResult struct {
	Reader      io.ReadCloser
	Name        string
	Size        int64
	ContentType string
	ETag        string
	NotModified bool
}

// Download opens a file for streaming. A matching If-None-Match validator
// short-circuits to NotModified without touching the backend.
func (s *FileService) Download(op OpContext, owner *models.Account, rawPath, ifNoneMatch string) (*DownloadResult, error) {
	res, err := s.downloadOne(owner, rawPath, ifNoneMatch)

	ev := AuditEvent{Op: op, Action: models.ActionDownload, Path: rawPath, Success: err == nil}
	if res != nil {
		ev.FileSize = &res.Size
		ev.ContentType = res.ContentType
	}
	ev.ErrorCode, ev.ErrorMessage = codeOf(err)
	s.audit.Record(ev)

	return res, err
}

func (s *FileService) downloadOne(owner *models.Account, rawPath, ifNoneMatch string) (*DownloadResult, error) {
	path, err := pathutil.Normalize(rawPath)
	if err != nil || path == "" {
		return nil, apperrors.InvalidPath("Invalid path.")
	}
	rec, err := s.files.Get(owner.ID, path)
	if err != nil {
		return nil, apperrors.FileNotFound(path)
	}
	if rec.IsDirectory {
		return nil, apperrors.PathIsDirectory(path)
	}

	etag := ETagFor(rec.Path, rec.Size, rec.UpdatedAt)
	if ifNoneMatch != "" && ifNoneMatch == etag {
		return &DownloadResult{Name: rec.Name, Size: rec.Size, ContentType: rec.ContentType,
			ETag: etag, NotModified: true}, nil
	}

	reader, err := s.backend.Open(backendPath(owner.ID, path))
	if err != nil {
		return nil, mapStorageErr(err, path)
	}
	return &DownloadResult{
		Reader:      reader,
		Name:        rec.Name,
		Size:        rec.Size,
		ContentType: rec.ContentType,
		ETag:        etag,
	}, nil
}

// PreviewResult is the text content view of a file.
type PreviewResult struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Content     string `json:"content"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	ETag        string `json:"etag"`
}

// Preview returns the content of a text file, bounded by the preview size
// ceiling.
func (s *FileService) Preview(op OpContext, owner *models.Account, rawPath string) (*PreviewResult, error) {
	res, err := s.previewOne(owner, rawPath)

	ev := AuditEvent{Op: op, Action: models.ActionPreview, Path: rawPath, Success: err == nil}
	if res != nil {
		ev.Path = res.Path
		ev.FileSize = &res.Size
		ev.ContentType = res.ContentType
	}
	ev.ErrorCode, ev.ErrorMessage = codeOf(err)
	s.audit.Record(ev)

	return res, err
}

func (s *FileService) previewOne(owner *models.Account, rawPath string) (*PreviewResult, error) {
	path, err := pathutil.Normalize(rawPath)
	if err != nil || path == "" {
		return nil, apperrors.InvalidPath("Invalid path.")
	}
	rec, err := s.files.Get(owner.ID, path)
	if err != nil {
		return nil, apperrors.FileNotFound(path)
	}
	if rec.IsDirectory {
		return nil, apperrors.PathIsDirectory(path)
	}
	if !IsTextFile(rec.Name, rec.ContentType) {
		return nil, apperrors.Newf(apperrors.CodeNotTextFile, fiber.StatusBadRequest,
			"'%s' is not a previewable text file.", rec.Name).With("content_type", rec.ContentType)
	}
	if rec.Size > s.cfg.MaxPreviewBytes {
		return nil, apperrors.Newf(apperrors.CodeFileTooLarge, fiber.StatusRequestEntityTooLarge,
			"File is too large to preview (limit %d bytes).", s.cfg.MaxPreviewBytes).
			With("limit", s.cfg.MaxPreviewBytes)
	}

	reader, err := s.backend.Open(backendPath(owner.ID, path))
	if err != nil {
		return nil, mapStorageErr(err, path)
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, s.cfg.MaxPreviewBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > s.cfg.MaxPreviewBytes {
		return nil, apperrors.Newf(apperrors.CodeFileTooLarge, fiber.StatusRequestEntityTooLarge,
			"File is too large to preview (limit %d bytes).", s.cfg.MaxPreviewBytes).
			With("limit", s.cfg.MaxPreviewBytes)
	}

	return &PreviewResult{
		Name:        rec.Name,
		Path:        rec.Path,
		Content:     string(data),
		Size:        rec.Size,
		ContentType: rec.ContentType,
		ETag:        ETagFor(rec.Path, rec.Size, rec.UpdatedAt),
	}, nil
}

// UpdateContent replaces the content of an existing text file in place,
// charging the quota for the size difference.
func (s *FileService) UpdateContent(op OpContext, owner *models.Account, rawPath string, content []byte) (*FileDetails, error) {
	rec, err := s.updateContentOne(owner, rawPath, content)

	ev := AuditEvent{Op: op, Action: models.ActionEdit, Path: rawPath, Success: err == nil}
	if rec != nil {
		ev.Path = rec.Path
		ev.FileSize = &rec.Size
		ev.ContentType = rec.ContentType
	}
	ev.ErrorCode, ev.ErrorMessage = codeOf(err)
	s.audit.Record(ev)

	if err != nil {
		return nil, err
	}
	d := detailsOf(rec)
	return &d, nil
}

func (s *FileService) updateContentOne(owner *models.Account, rawPath string, content []byte) (*models.StoredFile, error) {
	path, err := pathutil.Normalize(rawPath)
	if err != nil || path == "" {
		return nil, apperrors.InvalidPath("Invalid path.")
	}
	if err := RequireCapability(owner, CapOverwrite); err != nil {
		return nil, err
	}

	rec, err := s.files.Get(owner.ID, path)
	if err != nil {
		return nil, apperrors.FileNotFound(path)
	}
	if rec.IsDirectory {
		return nil, apperrors.PathIsDirectory(path)
	}
	if !IsTextFile(rec.Name, rec.ContentType) {
		return nil, apperrors.Newf(apperrors.CodeNotTextFile, fiber.StatusBadRequest,
			"'%s' is not an editable text file.", rec.Name).With("content_type", rec.ContentType)
	}

	newSize := int64(len(content))
	if max := s.maxUploadFor(owner); newSize > max {
		return nil, apperrors.Newf(apperrors.CodeFileTooLarge, fiber.StatusRequestEntityTooLarge,
			"Content exceeds the maximum size of %d bytes.", max).With("limit", max)
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.quota.CheckAndReserve(tx, owner.ID, newSize-rec.Size); err != nil {
			return err
		}
		info, err := s.backend.Save(backendPath(owner.ID, path), bytes.NewReader(content))
		if err != nil {
			return mapStorageErr(err, path)
		}
		rec.Size = info.Size
		return s.files.Save(tx, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes a file or directory tree and releases its bytes back to
// the quota.
func (s *FileService) Delete(op OpContext, owner *models.Account, rawPath string) error {
	freed, err := s.deleteOne(owner, rawPath)

	ev := AuditEvent{Op: op, Action: models.ActionDelete, Path: rawPath, Success: err == nil}
	if err == nil {
		ev.FileSize = &freed
	}
	ev.ErrorCode, ev.ErrorMessage = codeOf(err)
	s.audit.Record(ev)

	return err
}

func (s *FileService) deleteOne(owner *models.Account, rawPath string) (int64, error) {
	path, err := pathutil.Normalize(rawPath)
	if err != nil || path == "" {
		return 0, apperrors.InvalidPath("Invalid path.")
	}
	if err := RequireCapability(owner, CapDelete); err != nil {
		return 0, err
	}

	rec, err := s.files.Get(owner.ID, path)
	if err != nil {
		return 0, apperrors.FileNotFound(path)
	}

	var freed int64
	if rec.IsDirectory {
		freed, err = s.files.SumSubtreeSizes(nil, owner.ID, path)
		if err != nil {
			return 0, err
		}
	} else {
		freed = rec.Size
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.backend.Delete(backendPath(owner.ID, path)); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return mapStorageErr(err, path)
		}
		if rec.IsDirectory {
			if err := s.files.DeleteSubtree(tx, owner.ID, path); err != nil {
				return err
			}
		}
		if err := s.files.Delete(tx, owner.ID, path); err != nil {
			return err
		}
		return s.quota.Release(tx, owner.ID, freed)
	})
	if err != nil {
		return 0, err
	}
	return freed, nil
}

// Move relocates a file or directory into a destination directory, keeping
// its name. Collisions fail; nothing is renamed implicitly.
func (s *FileService) Move(op OpContext, owner *models.Account, rawSrc, rawDstDir string) (*FileDetails, error) {
	rec, err := s.moveOne(owner, rawSrc, rawDstDir)

	ev := AuditEvent{Op: op, Action: models.ActionMove, Path: rawSrc,
		DestinationPath: rawDstDir, Success: err == nil}
	if rec != nil {
		ev.Path = rec.Path
	}
	ev.ErrorCode, ev.ErrorMessage = codeOf(err)
	s.audit.Record(ev)

	if err != nil {
		return nil, err
	}
	d := detailsOf(rec)
	return &d, nil
}

func (s *FileService) moveOne(owner *models.Account, rawSrc, rawDstDir string) (*models.StoredFile, error) {
	src, err := pathutil.Normalize(rawSrc)
	if err != nil || src == "" {
		return nil, apperrors.InvalidPath("Invalid source path.")
	}
	dstDir, err := pathutil.Normalize(rawDstDir)
	if err != nil {
		return nil, apperrors.InvalidPath("Invalid destination path.")
	}
	if err := RequireCapability(owner, CapMove); err != nil {
		return nil, err
	}

	rec, err := s.files.Get(owner.ID, src)
	if err != nil {
		return nil, apperrors.FileNotFound(src)
	}
	if err := s.requireDestination(owner.ID, dstDir); err != nil {
		return nil, err
	}
	if rec.IsDirectory && (dstDir == src || strings.HasPrefix(dstDir+"/", src+"/")) {
		return nil, apperrors.InvalidPath("Cannot move a directory into itself.")
	}

	newPath := pathutil.Join(dstDir, rec.Name)
	if newPath == src {
		return rec, nil
	}
	if exists, _ := s.files.Exists(owner.ID, newPath); exists {
		return nil, apperrors.Newf(apperrors.CodeAlreadyExists, fiber.StatusConflict,
			"'%s' already exists at the destination.", rec.Name).With("path", newPath)
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if _, err := s.backend.Move(backendPath(owner.ID, src), backendPath(owner.ID, dstDir)); err != nil {
			return mapStorageErr(err, src)
		}
		oldPath := rec.Path
		rec.Path = newPath
		rec.ParentPath = dstDir
		if err := s.files.Save(tx, rec); err != nil {
			return err
		}
		if rec.IsDirectory {
			return s.files.RewriteSubtreePaths(tx, owner.ID, oldPath, newPath)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Copy duplicates a file or directory tree into a destination directory.
// Name collisions resolve with a " (copy)" suffix; the quota is charged for
// the full copied size up front.
func (s *FileService) Copy(op OpContext, owner *models.Account, rawSrc, rawDstDir string) (*FileDetails, error) {
	rec, err := s.copyOne(owner, rawSrc, rawDstDir)

	ev := AuditEvent{Op: op, Action: models.ActionCopy, Path: rawSrc,
		DestinationPath: rawDstDir, Success: err == nil}
	if rec != nil {
		ev.Path = rec.Path
		ev.FileSize = &rec.Size
	}
	ev.ErrorCode, ev.ErrorMessage = codeOf(err)
	s.audit.Record(ev)

	if err != nil {
		return nil, err
	}
	d := detailsOf(rec)
	return &d, nil
}

func (s *FileService) copyOne(owner *models.Account, rawSrc, rawDstDir string) (*models.StoredFile, error) {
	src, err := pathutil.Normalize(rawSrc)
	if err != nil || src == "" {
		return nil, apperrors.InvalidPath("Invalid source path.")
	}
	dstDir, err := pathutil.Normalize(rawDstDir)
	if err != nil {
		return nil, apperrors.InvalidPath("Invalid destination path.")
	}
	if err := RequireCapability(owner, CapUpload); err != nil {
		return nil, err
	}

	rec, err := s.files.Get(owner.ID, src)
	if err != nil {
		return nil, apperrors.FileNotFound(src)
	}
	if err := s.requireDestination(owner.ID, dstDir); err != nil {
		return nil, err
	}
	if rec.IsDirectory && (dstDir == src || strings.HasPrefix(dstDir+"/", src+"/")) {
		return nil, apperrors.InvalidPath("Cannot copy a directory into itself.")
	}

	var total int64
	if rec.IsDirectory {
		total, err = s.files.SumSubtreeSizes(nil, owner.ID, src)
		if err != nil {
			return nil, err
		}
	} else {
		total = rec.Size
	}

	var subtree []models.StoredFile
	if rec.IsDirectory {
		subtree, err = s.files.Subtree(owner.ID, src)
		if err != nil {
			return nil, err
		}
	}

	var created *models.StoredFile
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.quota.CheckAndReserve(tx, owner.ID, total); err != nil {
			return err
		}
		info, err := s.backend.Copy(backendPath(owner.ID, src), backendPath(owner.ID, dstDir))
		if err != nil {
			return mapStorageErr(err, src)
		}

		newPath := pathutil.Join(dstDir, info.Name)
		created = &models.StoredFile{
			OwnerID:          owner.ID,
			Path:             newPath,
			Name:             info.Name,
			ParentPath:       dstDir,
			Size:             rec.Size,
			ContentType:      rec.ContentType,
			IsDirectory:      rec.IsDirectory,
			EncryptionMethod: rec.EncryptionMethod,
		}
		if err := s.files.Create(tx, created); err != nil {
			return err
		}

		for i := range subtree {
			child := subtree[i]
			dup := models.StoredFile{
				OwnerID:          owner.ID,
				Path:             newPath + strings.TrimPrefix(child.Path, src),
				Name:             child.Name,
				ParentPath:       newPath + strings.TrimPrefix(child.ParentPath, src),
				Size:             child.Size,
				ContentType:      child.ContentType,
				IsDirectory:      child.IsDirectory,
				EncryptionMethod: child.EncryptionMethod,
			}
			if err := s.files.Create(tx, &dup); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// requireDestination verifies the destination directory exists. The root
// ("") always does.
func (s *FileService) requireDestination(ownerID uint, dstDir string) error {
	if dstDir == "" {
		return nil
	}
	rec, err := s.files.Get(ownerID, dstDir)
	if err != nil {
		return apperrors.Newf(apperrors.CodeDestinationNotFound, fiber.StatusNotFound,
			"Destination directory '%s' does not exist.", dstDir).With("destination", dstDir)
	}
	if !rec.IsDirectory {
		return apperrors.Newf(apperrors.CodePathIsFile, fiber.StatusBadRequest,
			"Destination '%s' is a file, not a directory.", dstDir)
	}
	return nil
}
