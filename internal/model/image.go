package model

import "time"

// ImageMetadata 定义了 image_metadata 表的 ORM 模型。
// 每个存入对象存储的图片对应一条记录；file_name 在 directory_name 内唯一。
// 记录与对象保持同生共死：先写对象再写记录，删除时两者一起移除。
type ImageMetadata struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	FileName      string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_dir_file" json:"fileName"`
	DirectoryName string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_dir_file" json:"directoryName"`
	OriginalName  string    `gorm:"type:varchar(255);not null" json:"originalName"`
	Description   string    `gorm:"type:varchar(500)" json:"description"`
	FileSize      int64     `gorm:"not null" json:"fileSize"`
	ContentType   string    `gorm:"type:varchar(100);not null" json:"contentType"`
	URL           string    `gorm:"type:varchar(1024)" json:"url"`
	ImageWidth    int       `json:"imageWidth"`
	ImageHeight   int       `json:"imageHeight"`
	ImageFormat   string    `gorm:"type:varchar(20)" json:"imageFormat"`
	UploadedAt    time.Time `gorm:"not null" json:"uploadedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (ImageMetadata) TableName() string {
	return "image_metadata"
}

// ImageInfo 描述解码图片得到的尺寸与格式信息，解码失败时整体缺省。
type ImageInfo struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}
