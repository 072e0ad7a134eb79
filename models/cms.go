package models

import (
	"time"

	"gorm.io/gorm"
)

// ContentMapping maps a CMS page slug to a stored file path. Rendering is
// out of scope here; the mapping only resolves which file backs a page and
// when it was last refreshed, so stale mappings can be pruned.
type ContentMapping struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`

	OwnerID uint    `gorm:"not null;uniqueIndex:idx_owner_slug"`
	Owner   Account `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`

	Slug     string `gorm:"size:255;not null;uniqueIndex:idx_owner_slug"`
	FilePath string `gorm:"size:1024;not null"`

	// Updated every time the mapping is (re)pointed at a file; mappings not
	// refreshed within the configured window are stale.
	RefreshedAt time.Time `gorm:"index"`
}
