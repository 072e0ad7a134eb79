package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ShareLink grants unauthenticated, revocable read access to a single file
// via an unguessable token. Expired, revoked and unknown tokens are
// indistinguishable to callers.
type ShareLink struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`

	OwnerID uint    `gorm:"not null;index"`
	Owner   Account `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`

	StoredFileID uint       `gorm:"not null;index"`
	StoredFile   StoredFile `gorm:"foreignKey:StoredFileID;constraint:OnDelete:CASCADE"`

	Token      string  `gorm:"size:64;uniqueIndex;not null"`
	CustomSlug *string `gorm:"size:64;uniqueIndex"`

	// bcrypt hash; empty means no password.
	PasswordHash string `gorm:"size:100"`

	// nil = never expires.
	ExpiresAt *time.Time
	IsActive  bool `gorm:"default:true"`

	AllowDownload  bool `gorm:"default:true"`
	ViewCount      uint `gorm:"default:0"`
	DownloadCount  uint `gorm:"default:0"`
	LastAccessedAt *time.Time
}

// IsValid reports whether the link is active and unexpired.
func (l *ShareLink) IsValid(now time.Time) bool {
	if !l.IsActive {
		return false
	}
	if l.ExpiresAt != nil && l.ExpiresAt.Before(now) {
		return false
	}
	return true
}

// SetPassword stores a bcrypt hash of the given password.
func (l *ShareLink) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	l.PasswordHash = string(hash)
	return nil
}

// CheckPassword verifies the supplied password. Links without a password
// accept anything.
func (l *ShareLink) CheckPassword(password string) bool {
	if l.PasswordHash == "" {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(l.PasswordHash), []byte(password)) == nil
}
