package repositories

import (
	"time"

	"stormcloud/database"
	"stormcloud/models"
)

// APIKeyRepository handles API key data operations.
type APIKeyRepository struct{}

// NewAPIKeyRepository creates a new API key repository.
func NewAPIKeyRepository() *APIKeyRepository {
	return &APIKeyRepository{}
}

// Create stores a new key record.
func (r *APIKeyRepository) Create(key *models.APIKey) error {
	return database.DB.Create(key).Error
}

// GetByPrefix looks a key up by its clear-text prefix, with the owning
// account preloaded. Owner-less keys (account deleted) are excluded.
func (r *APIKeyRepository) GetByPrefix(prefix string) (*models.APIKey, error) {
	var key models.APIKey
	err := database.DB.Preload("Account").
		Where("prefix = ? AND account_id IS NOT NULL", prefix).
		First(&key).Error
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// ListByAccount returns all keys for an account.
func (r *APIKeyRepository) ListByAccount(accountID uint) ([]models.APIKey, error) {
	var keys []models.APIKey
	err := database.DB.Where("account_id = ?", accountID).Find(&keys).Error
	return keys, err
}

// TouchLastUsed records a successful authentication.
func (r *APIKeyRepository) TouchLastUsed(id uint) error {
	return database.DB.Model(&models.APIKey{}).Where("id = ?", id).
		Update("last_used_at", time.Now()).Error
}

// Delete removes a key owned by the given account.
func (r *APIKeyRepository) Delete(accountID, id uint) error {
	return database.DB.
		Where("id = ? AND account_id = ?", id, accountID).
		Delete(&models.APIKey{}).Error
}
