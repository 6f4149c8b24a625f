package repository

import (
	"time"

	"picvault-go/internal/model"

	"gorm.io/gorm"
)

// DirectoryStat 描述一个目录的聚合统计信息。
type DirectoryStat struct {
	DirectoryName  string    `json:"directory_name"`
	ImageCount     int64     `json:"image_count"`
	TotalSize      int64     `json:"total_size"`
	LastUploadedAt time.Time `json:"last_uploaded_at"`
}

// ImageRepository 接口定义了图片元数据的持久化操作。
// 元数据记录与对象存储中的对象一一对应，以 (directory_name, file_name) 为键。
type ImageRepository interface {
	Create(meta *model.ImageMetadata) error
	FindByDirectoryAndFileName(directoryName, fileName string) (*model.ImageMetadata, error)
	ExistsByDirectoryAndOriginalName(directoryName, originalName string) (bool, error)
	FindByDirectory(directoryName string) ([]model.ImageMetadata, error)
	Delete(directoryName, fileName string) (bool, error)
	DirectoryStats() ([]DirectoryStat, error)
}

// imageRepository 是 ImageRepository 接口的 GORM 实现。
type imageRepository struct {
	db *gorm.DB
}

// NewImageRepository 创建一个新的 ImageRepository 实例。
func NewImageRepository(db *gorm.DB) ImageRepository {
	return &imageRepository{db: db}
}

// Create 写入一条图片元数据记录。
func (r *imageRepository) Create(meta *model.ImageMetadata) error {
	return r.db.Create(meta).Error
}

// FindByDirectoryAndFileName 按目录与存储文件名查找一条记录。
func (r *imageRepository) FindByDirectoryAndFileName(directoryName, fileName string) (*model.ImageMetadata, error) {
	var meta model.ImageMetadata
	err := r.db.Where("directory_name = ? AND file_name = ?", directoryName, fileName).First(&meta).Error
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

// ExistsByDirectoryAndOriginalName 检查目录内是否已存在同原始名的图片。
func (r *imageRepository) ExistsByDirectoryAndOriginalName(directoryName, originalName string) (bool, error) {
	var count int64
	err := r.db.Model(&model.ImageMetadata{}).
		Where("directory_name = ? AND original_name = ?", directoryName, originalName).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindByDirectory 返回目录下的全部记录，按上传时间倒序。
func (r *imageRepository) FindByDirectory(directoryName string) ([]model.ImageMetadata, error) {
	var metas []model.ImageMetadata
	err := r.db.Where("directory_name = ?", directoryName).
		Order("uploaded_at DESC").
		Find(&metas).Error
	return metas, err
}

// Delete 删除一条记录。返回值表示是否确实删除了记录。
func (r *imageRepository) Delete(directoryName, fileName string) (bool, error) {
	result := r.db.Where("directory_name = ? AND file_name = ?", directoryName, fileName).
		Delete(&model.ImageMetadata{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DirectoryStats 按目录聚合图片数量、总字节数与最近上传时间。
// 聚合在 Go 侧完成，MAX(datetime) 的扫描行为在不同数据库驱动间不一致。
func (r *imageRepository) DirectoryStats() ([]DirectoryStat, error) {
	var metas []model.ImageMetadata
	err := r.db.Select("directory_name", "file_size", "uploaded_at").Find(&metas).Error
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*DirectoryStat)
	order := make([]string, 0)
	for i := range metas {
		stat, ok := byName[metas[i].DirectoryName]
		if !ok {
			stat = &DirectoryStat{DirectoryName: metas[i].DirectoryName}
			byName[metas[i].DirectoryName] = stat
			order = append(order, metas[i].DirectoryName)
		}
		stat.ImageCount++
		stat.TotalSize += metas[i].FileSize
		if metas[i].UploadedAt.After(stat.LastUploadedAt) {
			stat.LastUploadedAt = metas[i].UploadedAt
		}
	}

	stats := make([]DirectoryStat, 0, len(order))
	for _, name := range order {
		stats = append(stats, *byName[name])
	}
	return stats, nil
}
