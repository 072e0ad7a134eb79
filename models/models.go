package models

import (
	"time"

	"gorm.io/gorm"
)

// Organization groups accounts that share a default storage quota.
type Organization struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
	Name      string         `gorm:"uniqueIndex;not null"`

	// Inherited by member accounts whose own quota is 0. 0 = unlimited.
	StorageQuotaBytes int64 `gorm:"default:0"`
}

// Account is the tenant entity: it owns stored files, carries the storage
// quota and the capability flags checked before every mutating operation.
type Account struct {
	ID           uint `gorm:"primarykey"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    gorm.DeletedAt `gorm:"index"`
	Username     string         `gorm:"uniqueIndex;not null"`
	PasswordHash string         `gorm:"not null"`
	IsAdmin      bool           `gorm:"default:false"`

	OrganizationID *uint
	Organization   *Organization `gorm:"foreignKey:OrganizationID"`

	// 0 = inherit the organization quota (or unlimited without one).
	StorageQuotaBytes int64 `gorm:"default:0"`
	StorageUsedBytes  int64 `gorm:"default:0"`

	CanUpload       bool `gorm:"default:true"`
	CanDelete       bool `gorm:"default:true"`
	CanMove         bool `gorm:"default:true"`
	CanOverwrite    bool `gorm:"default:true"`
	CanCreateShares bool `gorm:"default:true"`

	// 0 = unlimited.
	MaxShareLinks uint `gorm:"default:0"`
	// Per-file upload ceiling in bytes. 0 = server default.
	MaxUploadBytes int64 `gorm:"default:0"`
}

// StorageRemainingBytes returns bytes left under the given effective quota,
// or -1 when unlimited.
func (a *Account) StorageRemainingBytes(effectiveQuota int64) int64 {
	if effectiveQuota == 0 {
		return -1
	}
	remaining := effectiveQuota - a.StorageUsedBytes
	if remaining < 0 {
		return 0
	}
	return remaining
}

// APIKey is a named credential acting on behalf of one account. Keys survive
// account deletion as owner-less records instead of cascading away.
type APIKey struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	// SET NULL on account deletion, not CASCADE.
	AccountID *uint    `gorm:"index"`
	Account   *Account `gorm:"foreignKey:AccountID;constraint:OnDelete:SET NULL"`

	Name string `gorm:"not null"`
	// First 12 characters of the key, stored in clear for lookup.
	Prefix string `gorm:"uniqueIndex;not null"`
	// bcrypt hash of the full key.
	KeyHash    string `gorm:"not null"`
	LastUsedAt *time.Time
}
