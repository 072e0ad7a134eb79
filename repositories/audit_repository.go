package repositories

import (
	"stormcloud/database"
	"stormcloud/models"
)

// AuditRepository handles file audit log persistence. Insert-only by
// design; nothing here updates or deletes rows.
type AuditRepository struct{}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

// Create appends one audit record.
func (r *AuditRepository) Create(entry *models.FileAuditLog) error {
	return database.DB.Create(entry).Error
}

// AuditFilter narrows List results. Zero values mean "no filter".
type AuditFilter struct {
	TargetUserID uint
	Action       string
	FailuresOnly bool
	Limit        int
	Offset       int
}

// List returns audit rows newest first, with total count for pagination.
func (r *AuditRepository) List(filter AuditFilter) ([]models.FileAuditLog, int64, error) {
	q := database.DB.Model(&models.FileAuditLog{})

	if filter.TargetUserID != 0 {
		q = q.Where("target_user_id = ?", filter.TargetUserID)
	}
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	if filter.FailuresOnly {
		q = q.Where("success = ?", false)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var entries []models.FileAuditLog
	err := q.Order("created_at DESC").Limit(limit).Offset(filter.Offset).Find(&entries).Error
	return entries, total, err
}

// CountFor returns how many audit rows exist for a target user.
func (r *AuditRepository) CountFor(targetUserID uint) (int64, error) {
	var count int64
	err := database.DB.Model(&models.FileAuditLog{}).
		Where("target_user_id = ?", targetUserID).Count(&count).Error
	return count, err
}
