package models

import (
	"time"

	"gorm.io/gorm"
)

// Encryption methods recorded on stored files. The encryption implementation
// itself lives behind the storage backend.
const (
	EncryptionNone   = "none"
	EncryptionServer = "server"
	EncryptionClient = "client"
)

// StoredFile is the metadata index for one file or directory, unique per
// (owner, path). The storage backend holds the bytes; this record is the
// authoritative index backing listings, search, and quota accounting.
type StoredFile struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`

	OwnerID uint    `gorm:"not null;uniqueIndex:idx_owner_path;index:idx_owner_parent"`
	Owner   Account `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`

	// Full path relative to the owner root, normalized.
	Path string `gorm:"size:1024;not null;uniqueIndex:idx_owner_path"`
	// Final path component.
	Name string `gorm:"size:255;not null"`
	// Parent directory path ("" for top-level entries).
	ParentPath string `gorm:"size:1024;index:idx_owner_parent"`

	Size        int64  `gorm:"default:0"`
	ContentType string `gorm:"size:100"`
	IsDirectory bool   `gorm:"default:false"`

	EncryptionMethod string `gorm:"size:20;default:none"`

	// Manual ordering within the parent directory; NULL sorts after all
	// positioned entries, alphabetically.
	SortPosition *int
}
