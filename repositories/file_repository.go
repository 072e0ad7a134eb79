package repositories

import (
	"strings"

	"stormcloud/database"
	"stormcloud/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FileRepository handles stored file metadata operations.
type FileRepository struct{}

// NewFileRepository creates a new file repository.
func NewFileRepository() *FileRepository {
	return &FileRepository{}
}

func (r *FileRepository) db(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return database.DB
}

// Get retrieves the record at (owner, path).
func (r *FileRepository) Get(ownerID uint, path string) (*models.StoredFile, error) {
	var f models.StoredFile
	err := database.DB.Where("owner_id = ? AND path = ?", ownerID, path).First(&f).Error
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// Exists checks whether a record exists at (owner, path).
func (r *FileRepository) Exists(ownerID uint, path string) (bool, error) {
	var count int64
	err := database.DB.Model(&models.StoredFile{}).
		Where("owner_id = ? AND path = ?", ownerID, path).Count(&count).Error
	return count > 0, err
}

// Upsert creates or updates the record at (owner, path).
func (r *FileRepository) Upsert(tx *gorm.DB, f *models.StoredFile) error {
	return r.db(tx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "owner_id"}, {Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "parent_path", "size", "content_type", "is_directory",
			"encryption_method", "sort_position", "updated_at",
		}),
	}).Create(f).Error
}

// Create inserts a new record.
func (r *FileRepository) Create(tx *gorm.DB, f *models.StoredFile) error {
	return r.db(tx).Create(f).Error
}

// Save persists changes to an existing record.
func (r *FileRepository) Save(tx *gorm.DB, f *models.StoredFile) error {
	return r.db(tx).Save(f).Error
}

// Delete removes the record at (owner, path). Directory records cascade to
// their descendants via DeleteSubtree.
func (r *FileRepository) Delete(tx *gorm.DB, ownerID uint, path string) error {
	return r.db(tx).Unscoped().
		Where("owner_id = ? AND path = ?", ownerID, path).
		Delete(&models.StoredFile{}).Error
}

// DeleteSubtree removes every record strictly below the given directory path.
func (r *FileRepository) DeleteSubtree(tx *gorm.DB, ownerID uint, dirPath string) error {
	return r.db(tx).Unscoped().
		Where("owner_id = ? AND path LIKE ? ESCAPE '\\'", ownerID, likePrefix(dirPath)+"/%").
		Delete(&models.StoredFile{}).Error
}

// ListByParent returns the direct children of a directory.
func (r *FileRepository) ListByParent(ownerID uint, parentPath string) ([]models.StoredFile, error) {
	var files []models.StoredFile
	err := database.DB.
		Where("owner_id = ? AND parent_path = ?", ownerID, parentPath).
		Find(&files).Error
	return files, err
}

// ListByPaths fetches all records matching the given paths in one query.
func (r *FileRepository) ListByPaths(ownerID uint, paths []string) (map[string]*models.StoredFile, error) {
	var files []models.StoredFile
	err := database.DB.
		Where("owner_id = ? AND path IN ?", ownerID, paths).
		Find(&files).Error
	if err != nil {
		return nil, err
	}

	byPath := make(map[string]*models.StoredFile, len(files))
	for i := range files {
		byPath[files[i].Path] = &files[i]
	}
	return byPath, nil
}

// Subtree returns every record at or below startPath ("" for the whole
// tree), ordered by path.
func (r *FileRepository) Subtree(ownerID uint, startPath string) ([]models.StoredFile, error) {
	q := database.DB.Where("owner_id = ?", ownerID)
	if startPath != "" {
		q = q.Where("path LIKE ? ESCAPE '\\'", likePrefix(startPath)+"/%")
	}

	var files []models.StoredFile
	err := q.Order("path").Find(&files).Error
	return files, err
}

// SumFileSizes totals the sizes of all non-directory records for an owner.
func (r *FileRepository) SumFileSizes(tx *gorm.DB, ownerID uint) (int64, error) {
	var total int64
	err := r.db(tx).Model(&models.StoredFile{}).
		Where("owner_id = ? AND is_directory = ?", ownerID, false).
		Select("COALESCE(SUM(size), 0)").Scan(&total).Error
	return total, err
}

// SumSubtreeSizes totals the non-directory sizes at or below dirPath.
func (r *FileRepository) SumSubtreeSizes(tx *gorm.DB, ownerID uint, dirPath string) (int64, error) {
	var total int64
	err := r.db(tx).Model(&models.StoredFile{}).
		Where("owner_id = ? AND is_directory = ? AND (path = ? OR path LIKE ? ESCAPE '\\')",
			ownerID, false, dirPath, likePrefix(dirPath)+"/%").
		Select("COALESCE(SUM(size), 0)").Scan(&total).Error
	return total, err
}

// RewriteSubtreePaths updates path and parent_path for every record under
// oldDir after a directory move.
func (r *FileRepository) RewriteSubtreePaths(tx *gorm.DB, ownerID uint, oldDir, newDir string) error {
	var children []models.StoredFile
	err := r.db(tx).
		Where("owner_id = ? AND path LIKE ? ESCAPE '\\'", ownerID, likePrefix(oldDir)+"/%").
		Find(&children).Error
	if err != nil {
		return err
	}

	for i := range children {
		child := &children[i]
		child.Path = newDir + strings.TrimPrefix(child.Path, oldDir)
		child.ParentPath = newDir + strings.TrimPrefix(child.ParentPath, oldDir)
		if err := r.db(tx).Save(child).Error; err != nil {
			return err
		}
	}
	return nil
}

// ShiftSiblingPositions pushes every positioned sibling down one slot so a
// new entry can take position 0.
func (r *FileRepository) ShiftSiblingPositions(tx *gorm.DB, ownerID uint, parentPath string) error {
	return r.db(tx).Model(&models.StoredFile{}).
		Where("owner_id = ? AND parent_path = ? AND sort_position IS NOT NULL", ownerID, parentPath).
		Update("sort_position", gorm.Expr("sort_position + 1")).Error
}

// SetSortPositions applies an explicit ordering to the named children of a
// directory as one atomic batch.
func (r *FileRepository) SetSortPositions(ownerID uint, parentPath string, orderedNames []string) error {
	return database.DB.Transaction(func(tx *gorm.DB) error {
		for i, name := range orderedNames {
			err := tx.Model(&models.StoredFile{}).
				Where("owner_id = ? AND parent_path = ? AND name = ?", ownerID, parentPath, name).
				Update("sort_position", i).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// ResetSortPositions clears manual ordering for a directory's children,
// restoring alphabetical order.
func (r *FileRepository) ResetSortPositions(ownerID uint, parentPath string) error {
	return database.DB.Model(&models.StoredFile{}).
		Where("owner_id = ? AND parent_path = ?", ownerID, parentPath).
		Update("sort_position", nil).Error
}

// likePrefix escapes LIKE metacharacters in a literal path prefix.
func likePrefix(p string) string {
	p = strings.ReplaceAll(p, `\`, `\\`)
	p = strings.ReplaceAll(p, "%", `\%`)
	return strings.ReplaceAll(p, "_", `\_`)
}
