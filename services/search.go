package services

import (
	"strings"

	"stormcloud/apperrors"
	"stormcloud/config"
	"stormcloud/models"
	"stormcloud/pathutil"
	"stormcloud/repositories"

	"github.com/gofiber/fiber/v2"
)

// SearchService walks the metadata index for case-insensitive name matches.
type SearchService struct {
	cfg   *config.Config
	files *repositories.FileRepository
}

// NewSearchService wires a search service.
func NewSearchService(cfg *config.Config, files *repositories.FileRepository) *SearchService {
	return &SearchService{cfg: cfg, files: files}
}

// SearchEntry is one search hit.
type SearchEntry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type,omitempty"`
	Modified    string `json:"modified"`
}

// SearchResult is the full answer for one query.
type SearchResult struct {
	Query      string        `json:"query"`
	SearchPath string        `json:"search_path"`
	Results    []SearchEntry `json:"results"`
	Count      int           `json:"count"`
	Truncated  bool          `json:"truncated"`
}

// Search matches entry names under startPath against query, case-insensitive
// substring on the final component. Results come back in path order, capped
// at limit with a truncation flag.
func (s *SearchService) Search(owner *models.Account, query, rawStartPath string, limit int) (*SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.New(apperrors.CodeMissingQuery, fiber.StatusBadRequest,
			"A search query is required.")
	}

	startPath, err := pathutil.Normalize(rawStartPath)
	if err != nil {
		return nil, apperrors.InvalidPath("Invalid search path.")
	}
	if startPath != "" {
		rec, err := s.files.Get(owner.ID, startPath)
		if err != nil {
			return nil, apperrors.Newf(apperrors.CodePathNotFound, fiber.StatusNotFound,
				"Search path '%s' does not exist.", startPath)
		}
		if !rec.IsDirectory {
			return nil, apperrors.Newf(apperrors.CodePathIsFile, fiber.StatusBadRequest,
				"Search path '%s' is a file, not a directory.", startPath)
		}
	}

	if limit <= 0 {
		limit = s.cfg.SearchDefaultLimit
	}
	if limit > s.cfg.SearchMaxLimit {
		limit = s.cfg.SearchMaxLimit
	}

	entries, err := s.files.Subtree(owner.ID, startPath)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	result := &SearchResult{Query: query, SearchPath: startPath, Results: []SearchEntry{}}
	for i := range entries {
		e := &entries[i]
		if !strings.Contains(strings.ToLower(e.Name), needle) {
			continue
		}
		if len(result.Results) >= limit {
			result.Truncated = true
			break
		}
		hit := SearchEntry{
			Name:     e.Name,
			Path:     e.Path,
			Type:     "file",
			Size:     e.Size,
			Modified: e.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
		if e.IsDirectory {
			hit.Type = "directory"
		} else {
			hit.ContentType = e.ContentType
		}
		result.Results = append(result.Results, hit)
	}
	result.Count = len(result.Results)
	return result, nil
}
