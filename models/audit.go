package models

import (
	"time"

	"gorm.io/datatypes"
)

// Audit actions recorded for file operations.
const (
	ActionList        = "list"
	ActionUpload      = "upload"
	ActionDownload    = "download"
	ActionPreview     = "preview"
	ActionEdit        = "edit"
	ActionDelete      = "delete"
	ActionMove        = "move"
	ActionCopy        = "copy"
	ActionCreateDir   = "create_dir"
	ActionReorder     = "reorder"
	ActionBulkDelete  = "bulk_delete"
	ActionBulkMove    = "bulk_move"
	ActionBulkCopy    = "bulk_copy"
	ActionShareCreate = "share_create"
	ActionShareRevoke = "share_revoke"
)

// FileAuditLog is one append-only record of a file action. Application code
// only ever inserts; rows are retained when the owning account is deleted
// (actor references become NULL).
type FileAuditLog struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time

	PerformedByID *uint    `gorm:"index"`
	PerformedBy   *Account `gorm:"foreignKey:PerformedByID;constraint:OnDelete:SET NULL"`

	// Whose storage was touched; differs from PerformedBy for admin actions.
	TargetUserID *uint    `gorm:"index"`
	TargetUser   *Account `gorm:"foreignKey:TargetUserID;constraint:OnDelete:SET NULL"`

	IsAdminAction bool `gorm:"default:false"`

	Action  string `gorm:"size:30;not null;index"`
	Path    string `gorm:"size:1024"`
	Success bool   `gorm:"index"`

	DestinationPath string         `gorm:"size:1024"`
	PathsAffected   datatypes.JSON `gorm:"type:json"`
	ErrorCode       string         `gorm:"size:60"`
	ErrorMessage    string         `gorm:"size:500"`
	Justification   string         `gorm:"size:500"`

	IPAddress string `gorm:"size:45"`
	UserAgent string `gorm:"size:500"`

	FileSize    *int64
	ContentType string `gorm:"size:100"`
}
