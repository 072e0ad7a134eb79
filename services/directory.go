package services

import (
	"encoding/base64"
	"sort"
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

// DirectoryService implements directory listings, creation, and manual
// ordering over the metadata index.
type DirectoryService struct {
	cfg     *config.Config
	backend storage.Backend
	files   *repositories.FileRepository
	audit   AuditRecorder
}

// NewDirectoryService wires a directory service.
func NewDirectoryService(cfg *config.Config, backend storage.Backend,
	files *repositories.FileRepository, audit AuditRecorder) *DirectoryService {
	return &DirectoryService{cfg: cfg, backend: backend, files: files, audit: audit}
}

// ListEntry is one row in a directory listing.
type ListEntry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type,omitempty"`
	Modified    string `json:"modified"`
	SortOrder   *int   `json:"sort_order"`
}

// Listing is a page of directory entries.
type Listing struct {
	Path       string      `json:"path"`
	Entries    []ListEntry `json:"entries"`
	Total      int         `json:"total"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// List returns one page of a directory's children: directories first, then
// manual sort position, then name. An optional name filter narrows the page
// before pagination.
func (s *DirectoryService) List(owner *models.Account, rawPath string, limit int, cursor, nameFilter string) (*Listing, error) {
	dirPath, err := pathutil.Normalize(rawPath)
	if err != nil {
		return nil, apperrors.InvalidPath("Invalid path.")
	}

	if dirPath != "" {
		rec, err := s.files.Get(owner.ID, dirPath)
		if err != nil {
			return nil, apperrors.Newf(apperrors.CodeDirectoryNotFound, fiber.StatusNotFound,
				"Directory '%s' does not exist.", dirPath)
		}
		if !rec.IsDirectory {
			return nil, apperrors.Newf(apperrors.CodePathIsFile, fiber.StatusBadRequest,
				"Path '%s' is a file, not a directory.", dirPath)
		}
	}

	children, err := s.files.ListByParent(owner.ID, dirPath)
	if err != nil {
		return nil, err
	}

	if nameFilter != "" {
		needle := strings.ToLower(nameFilter)
		filtered := children[:0]
		for _, c := range children {
			if strings.Contains(strings.ToLower(c.Name), needle) {
				filtered = append(filtered, c)
			}
		}
		children = filtered
	}

	sortEntries(children)

	if limit <= 0 {
		limit = s.cfg.ListDefaultLimit
	}
	if limit > s.cfg.ListMaxLimit {
		limit = s.cfg.ListMaxLimit
	}

	offset := decodeCursor(cursor)
	if offset > len(children) {
		offset = len(children)
	}
	end := offset + limit
	if end > len(children) {
		end = len(children)
	}

	listing := &Listing{Path: dirPath, Total: len(children), Entries: make([]ListEntry, 0, end-offset)}
	for _, c := range children[offset:end] {
		entry := ListEntry{
			Name:      c.Name,
			Path:      c.Path,
			Type:      "file",
			Size:      c.Size,
			Modified:  c.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			SortOrder: c.SortPosition,
		}
		if c.IsDirectory {
			entry.Type = "directory"
		} else {
			entry.ContentType = c.ContentType
		}
		listing.Entries = append(listing.Entries, entry)
	}
	if end < len(children) {
		listing.NextCursor = encodeCursor(end)
	}
	return listing, nil
}

// sortEntries orders children directories-first, then by manual position
// (NULL after all positioned entries), then by name.
func sortEntries(entries []models.StoredFile) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.IsDirectory != b.IsDirectory {
			return a.IsDirectory
		}
		ap, bp := a.SortPosition, b.SortPosition
		switch {
		case ap != nil && bp != nil && *ap != *bp:
			return *ap < *bp
		case ap != nil && bp == nil:
			return true
		case ap == nil && bp != nil:
			return false
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
}

func encodeCursor(offset int) string {
	return base64.URLEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

func decodeCursor(cursor string) int {
	if cursor == "" {
		return 0
	}
	raw, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return 0
	}
	offset, err := strconv.Atoi(string(raw))
	if err != nil || offset < 0 {
		return 0
	}
	return offset
}

// Create makes a new directory. The parent must already exist; the new
// entry takes the first manual sort position among its siblings.
func (s *DirectoryService) Create(op OpContext, owner *models.Account, rawPath string) (*FileDetails, error) {
	rec, err := s.createOne(owner, rawPath)

	ev := AuditEvent{Op: op, Action: models.ActionCreateDir, Path: rawPath, Success: err == nil}
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

func (s *DirectoryService) createOne(owner *models.Account, rawPath string) (*models.StoredFile, error) {
	dirPath, err := pathutil.Normalize(rawPath)
	if err != nil || dirPath == "" {
		return nil, apperrors.InvalidPath("Invalid directory path.")
	}
	if err := RequireCapability(owner, CapUpload); err != nil {
		return nil, err
	}

	parent := pathutil.Parent(dirPath)
	if parent != "" {
		parentRec, err := s.files.Get(owner.ID, parent)
		if err != nil {
			return nil, apperrors.Newf(apperrors.CodeDirectoryNotFound, fiber.StatusNotFound,
				"Parent directory '%s' does not exist.", parent)
		}
		if !parentRec.IsDirectory {
			return nil, apperrors.Newf(apperrors.CodePathIsFile, fiber.StatusBadRequest,
				"Parent path '%s' is a file.", parent)
		}
	}

	if exists, _ := s.files.Exists(owner.ID, dirPath); exists {
		return nil, apperrors.Newf(apperrors.CodeAlreadyExists, fiber.StatusConflict,
			"'%s' already exists.", dirPath).With("path", dirPath)
	}

	var rec *models.StoredFile
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if _, err := s.backend.Mkdir(backendPath(owner.ID, dirPath)); err != nil {
			return mapStorageErr(err, dirPath)
		}
		if err := s.files.ShiftSiblingPositions(tx, owner.ID, parent); err != nil {
			return err
		}
		pos := 0
		rec = &models.StoredFile{
			OwnerID:      owner.ID,
			Path:         dirPath,
			Name:         pathutil.Base(dirPath),
			ParentPath:   parent,
			IsDirectory:  true,
			SortPosition: &pos,
		}
		return s.files.Create(tx, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Reorder applies an explicit child ordering to a directory as one atomic
// batch. Names not present in the directory are ignored by the update.
func (s *DirectoryService) Reorder(op OpContext, owner *models.Account, rawPath string, orderedNames []string) error {
	err := s.reorderOne(owner, rawPath, orderedNames)

	s.audit.Record(AuditEvent{
		Op: op, Action: models.ActionReorder, Path: rawPath,
		PathsAffected: orderedNames, Success: err == nil,
	})
	return err
}

func (s *DirectoryService) reorderOne(owner *models.Account, rawPath string, orderedNames []string) error {
	dirPath, err := pathutil.Normalize(rawPath)
	if err != nil {
		return apperrors.InvalidPath("Invalid path.")
	}
	if len(orderedNames) == 0 {
		return apperrors.New(apperrors.CodeInvalidRequest, fiber.StatusBadRequest,
			"An ordered list of names is required.")
	}
	if dirPath != "" {
		rec, err := s.files.Get(owner.ID, dirPath)
		if err != nil {
			return apperrors.Newf(apperrors.CodeDirectoryNotFound, fiber.StatusNotFound,
				"Directory '%s' does not exist.", dirPath)
		}
		if !rec.IsDirectory {
			return apperrors.Newf(apperrors.CodePathIsFile, fiber.StatusBadRequest,
				"Path '%s' is a file, not a directory.", dirPath)
		}
	}
	return s.files.SetSortPositions(owner.ID, dirPath, orderedNames)
}

// ResetOrder clears manual ordering for a directory, restoring alphabetical
// order.
func (s *DirectoryService) ResetOrder(op OpContext, owner *models.Account, rawPath string) error {
	dirPath, err := pathutil.Normalize(rawPath)
	if err != nil {
		err = apperrors.InvalidPath("Invalid path.")
	} else {
		err = s.files.ResetSortPositions(owner.ID, dirPath)
	}

	s.audit.Record(AuditEvent{Op: op, Action: models.ActionReorder, Path: rawPath, Success: err == nil})
	return err
}
