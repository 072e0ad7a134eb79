package repositories

import (
	"time"

	"stormcloud/database"
	"stormcloud/models"
)

// ContentMappingRepository handles CMS page-to-file mappings.
type ContentMappingRepository struct{}

// NewContentMappingRepository creates a new content mapping repository.
func NewContentMappingRepository() *ContentMappingRepository {
	return &ContentMappingRepository{}
}

// Upsert points a slug at a file path, refreshing the staleness clock.
func (r *ContentMappingRepository) Upsert(ownerID uint, slug, filePath string) (*models.ContentMapping, error) {
	var mapping models.ContentMapping
	err := database.DB.
		Where("owner_id = ? AND slug = ?", ownerID, slug).
		First(&mapping).Error

	now := time.Now()
	if err == nil {
		mapping.FilePath = filePath
		mapping.RefreshedAt = now
		return &mapping, database.DB.Save(&mapping).Error
	}

	mapping = models.ContentMapping{
		OwnerID:     ownerID,
		Slug:        slug,
		FilePath:    filePath,
		RefreshedAt: now,
	}
	return &mapping, database.DB.Create(&mapping).Error
}

// GetBySlug resolves a mapping for an owner.
func (r *ContentMappingRepository) GetBySlug(ownerID uint, slug string) (*models.ContentMapping, error) {
	var mapping models.ContentMapping
	err := database.DB.
		Where("owner_id = ? AND slug = ?", ownerID, slug).
		First(&mapping).Error
	if err != nil {
		return nil, err
	}
	return &mapping, nil
}

// ListByOwner returns all mappings for an account.
func (r *ContentMappingRepository) ListByOwner(ownerID uint) ([]models.ContentMapping, error) {
	var mappings []models.ContentMapping
	err := database.DB.Where("owner_id = ?", ownerID).Order("slug").Find(&mappings).Error
	return mappings, err
}

// Delete removes a mapping.
func (r *ContentMappingRepository) Delete(ownerID uint, slug string) error {
	return database.DB.Unscoped().
		Where("owner_id = ? AND slug = ?", ownerID, slug).
		Delete(&models.ContentMapping{}).Error
}

// PruneStale removes mappings not refreshed since the cutoff. Returns the
// number pruned.
func (r *ContentMappingRepository) PruneStale(cutoff time.Time) (int64, error) {
	result := database.DB.Unscoped().
		Where("refreshed_at < ?", cutoff).
		Delete(&models.ContentMapping{})
	return result.RowsAffected, result.Error
}
