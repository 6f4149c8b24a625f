package model

// EsImageDocument 对应 Elasticsearch 图片元数据索引中的文档结构。
type EsImageDocument struct {
	FileName      string `json:"file_name"`
	OriginalName  string `json:"original_name"`
	DirectoryName string `json:"directory_name"`
	Description   string `json:"description"`
	ContentType   string `json:"content_type"`
	FileSize      int64  `json:"file_size"`
	URL           string `json:"url"`
	UploadedAt    string `json:"uploaded_at"`
}
