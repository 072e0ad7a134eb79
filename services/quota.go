package services

import (
	"stormcloud/apperrors"
	"stormcloud/models"
	"stormcloud/repositories"

	"gorm.io/gorm"
)

// QuotaService enforces per-account storage ceilings and keeps the usage
// counter in step with file writes and deletes.
type QuotaService struct {
	accounts *repositories.AccountRepository
}

// NewQuotaService creates a quota service.
func NewQuotaService(accounts *repositories.AccountRepository) *QuotaService {
	return &QuotaService{accounts: accounts}
}

// EffectiveQuota resolves the ceiling that applies to an account: its own
// quota if set, otherwise the organization's, otherwise 0 for unlimited.
// The account's Organization must already be loaded when inheritance is in
// play.
func EffectiveQuota(account *models.Account) int64 {
	if account.StorageQuotaBytes > 0 {
		return account.StorageQuotaBytes
	}
	if account.OrganizationID != nil && account.Organization != nil {
		return account.Organization.StorageQuotaBytes
	}
	return 0
}

// CheckAndReserve verifies that adding delta bytes stays within the
// account's effective quota and moves the usage counter, all under a row
// lock inside tx. Negative deltas (overwrites that shrink, deletes) always
// pass the check.
func (s *QuotaService) CheckAndReserve(tx *gorm.DB, accountID uint, delta int64) error {
	account, err := s.accounts.LockForUpdate(tx, accountID)
	if err != nil {
		return err
	}

	if delta > 0 {
		quota := account.StorageQuotaBytes
		if quota == 0 && account.OrganizationID != nil {
			var org models.Organization
			if err := tx.First(&org, *account.OrganizationID).Error; err == nil {
				quota = org.StorageQuotaBytes
			}
		}
		if quota > 0 && account.StorageUsedBytes+delta > quota {
			return apperrors.QuotaExceeded(quota, account.StorageUsedBytes)
		}
	}

	return s.accounts.AdjustStorageUsed(tx, accountID, delta)
}

// Release gives back bytes after a delete. Runs inside tx so the metadata
// removal and the counter move commit together.
func (s *QuotaService) Release(tx *gorm.DB, accountID uint, bytes int64) error {
	if bytes == 0 {
		return nil
	}
	return s.accounts.AdjustStorageUsed(tx, accountID, -bytes)
}

// Usage reports an account's current consumption against its ceiling.
type Usage struct {
	UsedBytes  int64 `json:"used_bytes"`
	QuotaBytes int64 `json:"quota_bytes"`
	Unlimited  bool  `json:"unlimited"`
}

// UsageFor builds the usage report for an account with Organization loaded.
func UsageFor(account *models.Account) Usage {
	quota := EffectiveQuota(account)
	return Usage{
		UsedBytes:  account.StorageUsedBytes,
		QuotaBytes: quota,
		Unlimited:  quota == 0,
	}
}
