package repositories

import (
	"time"

	"stormcloud/database"
	"stormcloud/models"

	"gorm.io/gorm"
)

// ShareRepository handles share link data operations.
type ShareRepository struct{}

// NewShareRepository creates a new share repository.
func NewShareRepository() *ShareRepository {
	return &ShareRepository{}
}

// Create creates a new share link.
func (r *ShareRepository) Create(link *models.ShareLink) error {
	return database.DB.Create(link).Error
}

// GetByToken looks a link up by its UUID token or custom slug, with the
// target file preloaded. Validity (active/expiry) is the caller's check so
// all invalid outcomes can collapse into one answer.
func (r *ShareRepository) GetByToken(token string) (*models.ShareLink, error) {
	var link models.ShareLink
	err := database.DB.Preload("StoredFile").
		Where("token = ? OR custom_slug = ?", token, token).
		First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// GetByID retrieves a link owned by the given account.
func (r *ShareRepository) GetByID(ownerID, id uint) (*models.ShareLink, error) {
	var link models.ShareLink
	err := database.DB.Preload("StoredFile").
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// ListByOwner returns all links for an account, newest first.
func (r *ShareRepository) ListByOwner(ownerID uint) ([]models.ShareLink, error) {
	var links []models.ShareLink
	err := database.DB.Preload("StoredFile").
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&links).Error
	return links, err
}

// CountActive counts the owner's currently active, unexpired links.
func (r *ShareRepository) CountActive(ownerID uint) (int64, error) {
	var count int64
	err := database.DB.Model(&models.ShareLink{}).
		Where("owner_id = ? AND is_active = ?", ownerID, true).
		Where("expires_at IS NULL OR expires_at > ?", time.Now()).
		Count(&count).Error
	return count, err
}

// Deactivate revokes a link.
func (r *ShareRepository) Deactivate(link *models.ShareLink) error {
	link.IsActive = false
	return database.DB.Model(link).Update("is_active", false).Error
}

// DeactivateExpired revokes every active link past its expiry. Returns the
// number of links swept.
func (r *ShareRepository) DeactivateExpired(now time.Time) (int64, error) {
	result := database.DB.Model(&models.ShareLink{}).
		Where("is_active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, now).
		Update("is_active", false)
	return result.RowsAffected, result.Error
}

// RecordView bumps the view counter and access timestamp.
func (r *ShareRepository) RecordView(id uint) error {
	return database.DB.Model(&models.ShareLink{}).Where("id = ?", id).
		Updates(map[string]any{
			"view_count":       gorm.Expr("view_count + 1"),
			"last_accessed_at": time.Now(),
		}).Error
}

// RecordDownload bumps the download counter and access timestamp.
func (r *ShareRepository) RecordDownload(id uint) error {
	return database.DB.Model(&models.ShareLink{}).Where("id = ?", id).
		Updates(map[string]any{
			"download_count":   gorm.Expr("download_count + 1"),
			"last_accessed_at": time.Now(),
		}).Error
}
