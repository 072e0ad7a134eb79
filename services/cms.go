package services

import (
	"io"
	"regexp"

	"stormcloud/apperrors"
	"stormcloud/config"
	"stormcloud/models"
	"stormcloud/pathutil"
	"stormcloud/repositories"
	"stormcloud/storage"

	"github.com/gofiber/fiber/v2"
)

var cmsSlugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,127}$`)

// CMSService maps published page slugs to stored files. Mappings go stale
// when not refreshed; a background sweep prunes them.
type CMSService struct {
	cfg      *config.Config
	backend  storage.Backend
	mappings *repositories.ContentMappingRepository
	files    *repositories.FileRepository
}

// NewCMSService wires a CMS service.
func NewCMSService(cfg *config.Config, backend storage.Backend,
	mappings *repositories.ContentMappingRepository, files *repositories.FileRepository) *CMSService {
	return &CMSService{cfg: cfg, backend: backend, mappings: mappings, files: files}
}

// Publish points a slug at one of the owner's text files, refreshing the
// staleness clock on re-publish.
func (s *CMSService) Publish(owner *models.Account, slug, rawPath string) (*models.ContentMapping, error) {
	if !cmsSlugPattern.MatchString(slug) {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, fiber.StatusBadRequest,
			"Slug must be lowercase letters, digits, or hyphens.")
	}
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
			"'%s' cannot be published as page content.", rec.Name)
	}

	return s.mappings.Upsert(owner.ID, slug, path)
}

// PageContent is a resolved published page.
type PageContent struct {
	Slug        string `json:"slug"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
}

// Resolve serves the content behind a published slug.
func (s *CMSService) Resolve(ownerID uint, slug string) (*PageContent, error) {
	mapping, err := s.mappings.GetBySlug(ownerID, slug)
	if err != nil {
		return nil, apperrors.Newf(apperrors.CodeNotFound, fiber.StatusNotFound,
			"No page published at '%s'.", slug)
	}

	rec, err := s.files.Get(ownerID, mapping.FilePath)
	if err != nil {
		return nil, apperrors.Newf(apperrors.CodeNotFound, fiber.StatusNotFound,
			"No page published at '%s'.", slug)
	}

	reader, err := s.backend.Open(backendPath(ownerID, rec.Path))
	if err != nil {
		return nil, mapStorageErr(err, rec.Path)
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, s.cfg.MaxPreviewBytes))
	if err != nil {
		return nil, err
	}
	return &PageContent{Slug: slug, Content: string(data), ContentType: rec.ContentType}, nil
}

// List returns the owner's published mappings.
func (s *CMSService) List(owner *models.Account) ([]models.ContentMapping, error) {
	return s.mappings.ListByOwner(owner.ID)
}

// Unpublish removes a mapping. The underlying file is untouched.
func (s *CMSService) Unpublish(owner *models.Account, slug string) error {
	if _, err := s.mappings.GetBySlug(owner.ID, slug); err != nil {
		return apperrors.Newf(apperrors.CodeNotFound, fiber.StatusNotFound,
			"No page published at '%s'.", slug)
	}
	return s.mappings.Delete(owner.ID, slug)
}
