package repositories

import (
	"stormcloud/database"
	"stormcloud/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccountRepository handles account data operations.
type AccountRepository struct{}

// NewAccountRepository creates a new account repository.
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{}
}

func (r *AccountRepository) db(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return database.DB
}

// Create creates a new account.
func (r *AccountRepository) Create(account *models.Account) error {
	return database.DB.Create(account).Error
}

// GetByUsername retrieves an account by username.
func (r *AccountRepository) GetByUsername(username string) (*models.Account, error) {
	var account models.Account
	err := database.DB.Where("username = ?", username).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetByID retrieves an account by id, with its organization populated so
// quota inheritance never triggers a second lookup.
func (r *AccountRepository) GetByID(id uint) (*models.Account, error) {
	var account models.Account
	err := database.DB.Preload("Organization").First(&account, id).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetAll retrieves all accounts.
func (r *AccountRepository) GetAll() ([]models.Account, error) {
	var accounts []models.Account
	err := database.DB.Find(&accounts).Error
	return accounts, err
}

// GetNonAdmin retrieves all non-admin accounts.
func (r *AccountRepository) GetNonAdmin() ([]models.Account, error) {
	var accounts []models.Account
	err := database.DB.Where("is_admin = ?", false).Find(&accounts).Error
	return accounts, err
}

// Update updates an account.
func (r *AccountRepository) Update(account *models.Account) error {
	return database.DB.Save(account).Error
}

// Delete hard-deletes an account by username. Stored files and share links
// cascade; API keys and audit rows keep a NULL owner instead.
func (r *AccountRepository) Delete(username string) error {
	return database.DB.Unscoped().Where("username = ?", username).Delete(&models.Account{}).Error
}

// Exists checks if an account exists.
func (r *AccountRepository) Exists(username string) (bool, error) {
	var count int64
	err := database.DB.Model(&models.Account{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}

// LockForUpdate loads the account row inside tx with a row lock, so
// concurrent quota checks serialize on the same owner.
func (r *AccountRepository) LockForUpdate(tx *gorm.DB, id uint) (*models.Account, error) {
	var account models.Account
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&account, id).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// AdjustStorageUsed shifts the account's usage counter by delta inside tx,
// clamping at zero.
func (r *AccountRepository) AdjustStorageUsed(tx *gorm.DB, id uint, delta int64) error {
	return r.db(tx).Model(&models.Account{}).Where("id = ?", id).
		Update("storage_used_bytes", gorm.Expr(
			"CASE WHEN storage_used_bytes + ? < 0 THEN 0 ELSE storage_used_bytes + ? END",
			delta, delta)).Error
}

// SetStorageUsed overwrites the usage counter (used by reconciliation).
func (r *AccountRepository) SetStorageUsed(tx *gorm.DB, id uint, used int64) error {
	return r.db(tx).Model(&models.Account{}).Where("id = ?", id).
		Update("storage_used_bytes", used).Error
}
