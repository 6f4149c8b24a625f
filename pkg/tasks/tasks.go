// Package tasks defines the payloads exchanged over Kafka.
package tasks

// 图片生命周期事件类型。
const (
	EventImageUploaded = "image_uploaded"
	EventImageDeleted  = "image_deleted"
)

// ImageEventTask 表示一条图片生命周期事件，由上传/删除路径产生，
// 后台消费者据此维护 Elasticsearch 中的元数据索引。
type ImageEventTask struct {
	Event         string `json:"event"`
	FileName      string `json:"file_name"`
	OriginalName  string `json:"original_name"`
	DirectoryName string `json:"directory_name"`
	Description   string `json:"description"`
	FileSize      int64  `json:"file_size"`
	ContentType   string `json:"content_type"`
	URL           string `json:"url"`
	UploadedAt    string `json:"uploaded_at"`
}
