package services

import (
	"io"
	"regexp"
	"time"

	"stormcloud/apperrors"
	"stormcloud/config"
	"stormcloud/models"
	"stormcloud/pathutil"
	"stormcloud/repositories"
	"stormcloud/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{2,63}$`)

// ShareService manages public share links over stored files.
type ShareService struct {
	cfg     *config.Config
	backend storage.Backend
	shares  *repositories.ShareRepository
	files   *repositories.FileRepository
	audit   AuditRecorder
}

// NewShareService wires a share service.
func NewShareService(cfg *config.Config, backend storage.Backend, shares *repositories.ShareRepository,
	files *repositories.FileRepository, audit AuditRecorder) *ShareService {
	return &ShareService{cfg: cfg, backend: backend, shares: shares, files: files, audit: audit}
}

// ShareOptions are the creation-time knobs for a link.
type ShareOptions struct {
	ExpiryDays    *int    `json:"expiry_days"`
	Password      string  `json:"password"`
	CustomSlug    *string `json:"custom_slug"`
	AllowDownload *bool   `json:"allow_download"`
}

// ShareView is the owner-facing representation of a link.
type ShareView struct {
	ID            uint   `json:"id"`
	Token         string `json:"token"`
	Slug          string `json:"slug,omitempty"`
	FilePath      string `json:"file_path"`
	FileName      string `json:"file_name"`
	HasPassword   bool   `json:"has_password"`
	AllowDownload bool   `json:"allow_download"`
	IsActive      bool   `json:"is_active"`
	ExpiresAt     string `json:"expires_at,omitempty"`
	ViewCount     uint   `json:"view_count"`
	DownloadCount uint   `json:"download_count"`
	CreatedAt     string `json:"created_at"`
}

func viewOf(link *models.ShareLink) ShareView {
	v := ShareView{
		ID:            link.ID,
		Token:         link.Token,
		HasPassword:   link.PasswordHash != "",
		AllowDownload: link.AllowDownload,
		IsActive:      link.IsActive,
		ViewCount:     link.ViewCount,
		DownloadCount: link.DownloadCount,
		CreatedAt:     link.CreatedAt.UTC().Format(time.RFC3339),
	}
	if link.CustomSlug != nil {
		v.Slug = *link.CustomSlug
	}
	if link.ExpiresAt != nil {
		v.ExpiresAt = link.ExpiresAt.UTC().Format(time.RFC3339)
	}
	if link.StoredFile.ID != 0 {
		v.FilePath = link.StoredFile.Path
		v.FileName = link.StoredFile.Name
	}
	return v
}

// Create issues a new share link for a file the owner holds, within the
// account's active-link ceiling.
func (s *ShareService) Create(op OpContext, owner *models.Account, rawPath string, opts ShareOptions) (*ShareView, error) {
	link, err := s.createOne(owner, rawPath, opts)

	ev := AuditEvent{Op: op, Action: models.ActionShareCreate, Path: rawPath, Success: err == nil}
	ev.ErrorCode, ev.ErrorMessage = codeOf(err)
	s.audit.Record(ev)

	if err != nil {
		return nil, err
	}
	v := viewOf(link)
	return &v, nil
}

func (s *ShareService) createOne(owner *models.Account, rawPath string, opts ShareOptions) (*models.ShareLink, error) {
	path, err := pathutil.Normalize(rawPath)
	if err != nil || path == "" {
		return nil, apperrors.InvalidPath("Invalid path.")
	}
	if err := RequireCapability(owner, CapCreateShares); err != nil {
		return nil, err
	}

	if owner.MaxShareLinks > 0 {
		active, err := s.shares.CountActive(owner.ID)
		if err != nil {
			return nil, err
		}
		if active >= int64(owner.MaxShareLinks) {
			return nil, apperrors.Newf(apperrors.CodeMaxShareLinksExceeded, fiber.StatusForbidden,
				"Active share link limit of %d reached.", owner.MaxShareLinks).
				With("limit", owner.MaxShareLinks)
		}
	}

	rec, err := s.files.Get(owner.ID, path)
	if err != nil {
		return nil, apperrors.FileNotFound(path)
	}
	if rec.IsDirectory {
		return nil, apperrors.PathIsDirectory(path)
	}

	link := &models.ShareLink{
		OwnerID:       owner.ID,
		StoredFileID:  rec.ID,
		Token:         uuid.NewString(),
		IsActive:      true,
		AllowDownload: true,
	}
	if opts.AllowDownload != nil {
		link.AllowDownload = *opts.AllowDownload
	}

	expiryDays := s.cfg.DefaultShareExpiryDays
	if opts.ExpiryDays != nil {
		expiryDays = *opts.ExpiryDays
	}
	if expiryDays < 0 {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, fiber.StatusBadRequest,
			"expiry_days must not be negative.")
	}
	if expiryDays == 0 {
		if !s.cfg.AllowUnlimitedShareLinks {
			return nil, apperrors.New(apperrors.CodeUnlimitedNotAllowed, fiber.StatusForbidden,
				"Share links without an expiry are not allowed.")
		}
	} else {
		at := time.Now().Add(time.Duration(expiryDays) * 24 * time.Hour)
		link.ExpiresAt = &at
	}

	if opts.CustomSlug != nil && *opts.CustomSlug != "" {
		slug := *opts.CustomSlug
		if !slugPattern.MatchString(slug) {
			return nil, apperrors.New(apperrors.CodeInvalidRequest, fiber.StatusBadRequest,
				"Custom slug must be 3-64 lowercase letters, digits, or hyphens.")
		}
		if existing, _ := s.shares.GetByToken(slug); existing != nil {
			return nil, apperrors.Newf(apperrors.CodeAlreadyExists, fiber.StatusConflict,
				"Slug '%s' is already taken.", slug)
		}
		link.CustomSlug = &slug
	}

	if opts.Password != "" {
		if err := link.SetPassword(opts.Password); err != nil {
			return nil, err
		}
	}

	if err := s.shares.Create(link); err != nil {
		return nil, err
	}
	link.StoredFile = *rec
	return link, nil
}

// List returns the owner's links, newest first.
func (s *ShareService) List(owner *models.Account) ([]ShareView, error) {
	links, err := s.shares.ListByOwner(owner.ID)
	if err != nil {
		return nil, err
	}
	views := make([]ShareView, 0, len(links))
	for i := range links {
		views = append(views, viewOf(&links[i]))
	}
	return views, nil
}

// Revoke deactivates one of the owner's links. Revoked links answer public
// requests exactly like links that never existed.
func (s *ShareService) Revoke(op OpContext, owner *models.Account, id uint) error {
	link, err := s.shares.GetByID(owner.ID, id)
	if err != nil {
		err = apperrors.New(apperrors.CodeLinkNotFound, fiber.StatusNotFound, "Share link not found.")
	} else {
		err = s.shares.Deactivate(link)
	}

	ev := AuditEvent{Op: op, Action: models.ActionShareRevoke, Success: err == nil}
	if link != nil && link.StoredFile.ID != 0 {
		ev.Path = link.StoredFile.Path
	}
	ev.ErrorCode, ev.ErrorMessage = codeOf(err)
	s.audit.Record(ev)

	return err
}

// Resolve answers a public share request. Unknown, revoked, and expired
// links are indistinguishable to the caller. A correct password (when one
// is set) is required before anything about the link is revealed.
func (s *ShareService) Resolve(token, password string) (*models.ShareLink, error) {
	link, err := s.shares.GetByToken(token)
	if err != nil || !link.IsValid(time.Now()) {
		return nil, apperrors.ShareNotFound()
	}

	if link.PasswordHash != "" {
		if password == "" {
			return nil, apperrors.New(apperrors.CodePasswordRequired, fiber.StatusUnauthorized,
				"This share link requires a password.")
		}
		if !link.CheckPassword(password) {
			return nil, apperrors.New(apperrors.CodeInvalidPassword, fiber.StatusUnauthorized,
				"Incorrect password.")
		}
	}
	return link, nil
}

// View resolves a link and records the visit.
func (s *ShareService) View(token, password string) (*models.ShareLink, error) {
	link, err := s.Resolve(token, password)
	if err != nil {
		return nil, err
	}
	if err := s.shares.RecordView(link.ID); err == nil {
		link.ViewCount++
	}
	return link, nil
}

// OpenDownload resolves a link, enforces its download flag, and opens the
// underlying file for streaming.
func (s *ShareService) OpenDownload(token, password string) (io.ReadCloser, *models.ShareLink, error) {
	link, err := s.Resolve(token, password)
	if err != nil {
		return nil, nil, err
	}
	if !link.AllowDownload {
		return nil, nil, apperrors.New(apperrors.CodeDownloadDisabled, fiber.StatusForbidden,
			"Downloads are disabled for this share link.")
	}

	reader, err := s.backend.Open(backendPath(link.OwnerID, link.StoredFile.Path))
	if err != nil {
		return nil, nil, apperrors.ShareNotFound()
	}
	if err := s.shares.RecordDownload(link.ID); err == nil {
		link.DownloadCount++
	}
	return reader, link, nil
}
