// Package service 包含了应用的业务逻辑层。
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"picvault-go/internal/config"
	"picvault-go/internal/model"
	"picvault-go/internal/repository"
	"picvault-go/pkg/es"
	"picvault-go/pkg/log"
	"picvault-go/pkg/storage"
	"picvault-go/pkg/tasks"

	"github.com/google/uuid"
	"gorm.io/gorm"

	// 注册解码器，供 image.DecodeConfig 识别各种图片格式
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ValidationError 表示用户可修正的校验错误，处理器将其映射为 400。
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ObjectStore 抽象了图片服务需要的对象存储操作，便于在测试中替换实现。
// 生产实现是 *storage.Client。
type ObjectStore interface {
	Put(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) error
	Fetch(ctx context.Context, objectName string) ([]byte, string, error)
	Stat(ctx context.Context, objectName string) (storage.ObjectInfo, error)
	Remove(ctx context.Context, objectName string) error
	List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
	PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}

// IncomingFile 表示一个待上传的文件，由处理器从 multipart 表单中读出。
type IncomingFile struct {
	OriginalName string
	ContentType  string
	Content      []byte
}

// UploadResult 是单文件上传成功后的响应结构。
type UploadResult struct {
	Success       bool             `json:"success"`
	Message       string           `json:"message"`
	FileName      string           `json:"file_name"`
	OriginalName  string           `json:"original_name"`
	DirectoryName string           `json:"directory_name"`
	FileSize      int64            `json:"file_size"`
	ContentType   string           `json:"content_type"`
	URL           string           `json:"url"`
	UploadedAt    time.Time        `json:"uploaded_at"`
	ImageInfo     *model.ImageInfo `json:"image_info,omitempty"`
}

// BulkUploadError 记录批量上传中单个文件的失败原因。
type BulkUploadError struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// BulkUploadResult 是批量上传的响应结构。
// Success 仅在全部文件成功时为 true；Results 与 Errors 均保持输入顺序。
type BulkUploadResult struct {
	Success       bool              `json:"success"`
	Message       string            `json:"message"`
	Results       []*UploadResult   `json:"results"`
	Errors        []BulkUploadError `json:"errors"`
	TotalUploaded int               `json:"total_uploaded"`
	TotalErrors   int               `json:"total_errors"`
}

// ImageEntry 是目录列表中单张图片的条目。
// 宽高沿用对象元数据的字符串表示，客户端负责解析。
type ImageEntry struct {
	FileName      string    `json:"file_name"`
	OriginalName  string    `json:"original_name"`
	DirectoryName string    `json:"directory_name"`
	FileSize      int64     `json:"file_size"`
	ContentType   string    `json:"content_type"`
	URL           string    `json:"url"`
	LastModified  time.Time `json:"last_modified"`
	ETag          string    `json:"etag"`
	Description   string    `json:"description"`
	ImageWidth    string    `json:"image_width"`
	ImageHeight   string    `json:"image_height"`
	ImageFormat   string    `json:"image_format"`
}

// DirectoryEntry 是目录列表中单个目录的条目。
type DirectoryEntry struct {
	Name         string    `json:"name"`
	ImageCount   int64     `json:"image_count"`
	TotalSize    int64     `json:"total_size"`
	LastModified time.Time `json:"last_modified"`
}

// DirectoryDeleteResult 是删除整个目录的响应结构。
type DirectoryDeleteResult struct {
	Success       bool              `json:"success"`
	Message       string            `json:"message"`
	DirectoryName string            `json:"directory_name"`
	DeletedCount  int               `json:"deleted_count"`
	Errors        []BulkUploadError `json:"errors"`
}

// ImageService 接口定义了图片上传管线的全部业务操作。
// 它是唯一可以创建或销毁图片记录的组件。
type ImageService interface {
	UploadImage(ctx context.Context, directoryName, description string, file IncomingFile) (*UploadResult, error)
	BulkUpload(ctx context.Context, directoryName, description string, files []IncomingFile) (*BulkUploadResult, error)
	DeleteImage(ctx context.Context, directoryName, fileName string) error
	DeleteDirectory(ctx context.Context, directoryName string) (*DirectoryDeleteResult, error)
	ListImages(ctx context.Context, directoryName string) ([]ImageEntry, error)
	ListDirectories(ctx context.Context) ([]DirectoryEntry, error)
	GetImageData(ctx context.Context, directoryName, fileName string) ([]byte, string, error)
	GetImageInfo(ctx context.Context, directoryName, fileName string) (*ImageEntry, error)
	SearchImages(ctx context.Context, query, directoryName string) ([]model.EsImageDocument, error)
}

type imageService struct {
	imageRepo repository.ImageRepository
	store     ObjectStore
	uploadCfg config.UploadConfig
	minioCfg  config.MinIOConfig
	esCfg     config.ElasticsearchConfig
	produce   func(tasks.ImageEventTask) error // 可为 nil（测试或未接入 Kafka 时）
}

// NewImageService 创建一个新的 ImageService 实例。
// produce 用于发布图片生命周期事件，传 nil 则跳过事件发布。
func NewImageService(
	imageRepo repository.ImageRepository,
	store ObjectStore,
	uploadCfg config.UploadConfig,
	minioCfg config.MinIOConfig,
	esCfg config.ElasticsearchConfig,
	produce func(tasks.ImageEventTask) error,
) ImageService {
	return &imageService{
		imageRepo: imageRepo,
		store:     store,
		uploadCfg: uploadCfg,
		minioCfg:  minioCfg,
		esCfg:     esCfg,
		produce:   produce,
	}
}

// UploadImage 执行单文件上传：校验、命名、先写对象再写元数据。
// 元数据写入失败时会尝试删除已写入的对象（补偿动作）。
func (s *imageService) UploadImage(ctx context.Context, directoryName, description string, file IncomingFile) (*UploadResult, error) {
	if err := s.validateFile(file); err != nil {
		return nil, err
	}

	directoryName, err := sanitizeDirectoryName(directoryName)
	if err != nil {
		return nil, err
	}

	// 同一目录下不允许重复的原始文件名
	exists, err := s.imageRepo.ExistsByDirectoryAndOriginalName(directoryName, file.OriginalName)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, validationErrorf("目录 '%s' 中已存在名为 '%s' 的文件", directoryName, file.OriginalName)
	}

	// 生成无冲突的存储文件名
	ext := strings.ToLower(filepath.Ext(file.OriginalName))
	fileName := uuid.NewString() + ext
	objectName := directoryName + "/" + fileName

	// 解码尺寸信息是尽力而为的：失败不算错误，只是响应中缺少 image_info
	imageInfo := decodeImageInfo(file.Content)

	// 不变量：先写对象，再写元数据
	if err := s.store.Put(ctx, objectName, bytes.NewReader(file.Content), int64(len(file.Content)), file.ContentType); err != nil {
		log.Errorf("[UploadImage] 写入对象存储失败, object: %s, error: %v", objectName, err)
		return nil, fmt.Errorf("写入对象存储失败: %w", err)
	}

	url := s.objectURL(ctx, objectName)
	uploadedAt := time.Now().UTC()

	meta := &model.ImageMetadata{
		FileName:      fileName,
		DirectoryName: directoryName,
		OriginalName:  file.OriginalName,
		Description:   description,
		FileSize:      int64(len(file.Content)),
		ContentType:   file.ContentType,
		URL:           url,
		UploadedAt:    uploadedAt,
	}
	if imageInfo != nil {
		meta.ImageWidth = imageInfo.Width
		meta.ImageHeight = imageInfo.Height
		meta.ImageFormat = imageInfo.Format
	}

	if err := s.imageRepo.Create(meta); err != nil {
		// 补偿：删除刚写入的对象，避免留下孤儿。补偿失败只能记录，等待人工清理。
		if remErr := s.store.Remove(ctx, objectName); remErr != nil {
			log.Errorf("[UploadImage] 元数据写入失败且补偿删除对象也失败，产生孤儿对象: %s, error: %v", objectName, remErr)
		}
		log.Errorf("[UploadImage] 写入元数据失败, object: %s, error: %v", objectName, err)
		return nil, fmt.Errorf("写入图片元数据失败: %w", err)
	}

	s.produceEvent(tasks.ImageEventTask{
		Event:         tasks.EventImageUploaded,
		FileName:      fileName,
		OriginalName:  file.OriginalName,
		DirectoryName: directoryName,
		Description:   description,
		FileSize:      meta.FileSize,
		ContentType:   file.ContentType,
		URL:           url,
		UploadedAt:    uploadedAt.Format(time.RFC3339),
	})

	log.Infof("[UploadImage] 上传成功: %s/%s (%d 字节)", directoryName, fileName, meta.FileSize)
	return &UploadResult{
		Success:       true,
		Message:       "Image uploaded successfully",
		FileName:      fileName,
		OriginalName:  file.OriginalName,
		DirectoryName: directoryName,
		FileSize:      meta.FileSize,
		ContentType:   file.ContentType,
		URL:           url,
		UploadedAt:    uploadedAt,
		ImageInfo:     imageInfo,
	}, nil
}

// BulkUpload 逐个独立处理文件：单个文件失败不中断其余文件。
// Results 与 Errors 分别保持有效/无效输入的原始顺序。
func (s *imageService) BulkUpload(ctx context.Context, directoryName, description string, files []IncomingFile) (*BulkUploadResult, error) {
	if len(files) == 0 {
		return nil, validationErrorf("未提供任何文件")
	}
	if s.uploadCfg.MaxBulkCount > 0 && len(files) > s.uploadCfg.MaxBulkCount {
		return nil, validationErrorf("一次最多上传 %d 个文件", s.uploadCfg.MaxBulkCount)
	}

	results := make([]*UploadResult, 0, len(files))
	uploadErrors := make([]BulkUploadError, 0)

	for _, file := range files {
		result, err := s.UploadImage(ctx, directoryName, description, file)
		if err != nil {
			uploadErrors = append(uploadErrors, BulkUploadError{
				Filename: file.OriginalName,
				Error:    err.Error(),
			})
			continue
		}
		results = append(results, result)
	}

	message := fmt.Sprintf("Uploaded %d images successfully", len(results))
	if len(uploadErrors) > 0 {
		message += fmt.Sprintf(", %d failed", len(uploadErrors))
	}

	return &BulkUploadResult{
		Success:       len(uploadErrors) == 0,
		Message:       message,
		Results:       results,
		Errors:        uploadErrors,
		TotalUploaded: len(results),
		TotalErrors:   len(uploadErrors),
	}, nil
}

// DeleteImage 同时移除对象与元数据记录。
// 语义是"确保不存在"：删除从未上传过的键也视为成功。
func (s *imageService) DeleteImage(ctx context.Context, directoryName, fileName string) error {
	directoryName, err := sanitizeDirectoryName(directoryName)
	if err != nil {
		return err
	}
	objectName := directoryName + "/" + fileName

	if err := s.store.Remove(ctx, objectName); err != nil {
		log.Errorf("[DeleteImage] 删除对象失败, object: %s, error: %v", objectName, err)
		return fmt.Errorf("删除对象失败: %w", err)
	}

	if _, err := s.imageRepo.Delete(directoryName, fileName); err != nil {
		log.Errorf("[DeleteImage] 删除元数据失败, object: %s, error: %v", objectName, err)
		return fmt.Errorf("删除图片元数据失败: %w", err)
	}

	s.produceEvent(tasks.ImageEventTask{
		Event:         tasks.EventImageDeleted,
		FileName:      fileName,
		DirectoryName: directoryName,
	})

	log.Infof("[DeleteImage] 已删除: %s", objectName)
	return nil
}

// DeleteDirectory 删除目录下的全部图片，逐个处理并汇总失败项。
func (s *imageService) DeleteDirectory(ctx context.Context, directoryName string) (*DirectoryDeleteResult, error) {
	directoryName, err := sanitizeDirectoryName(directoryName)
	if err != nil {
		return nil, err
	}

	metas, err := s.imageRepo.FindByDirectory(directoryName)
	if err != nil {
		return nil, err
	}
	if len(metas) == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	deleted := 0
	deleteErrors := make([]BulkUploadError, 0)
	for _, meta := range metas {
		if err := s.DeleteImage(ctx, directoryName, meta.FileName); err != nil {
			deleteErrors = append(deleteErrors, BulkUploadError{
				Filename: meta.FileName,
				Error:    err.Error(),
			})
			continue
		}
		deleted++
	}

	message := fmt.Sprintf("Deleted %d images from directory '%s'", deleted, directoryName)
	if len(deleteErrors) > 0 {
		message += fmt.Sprintf(", %d failed", len(deleteErrors))
	}

	return &DirectoryDeleteResult{
		Success:       len(deleteErrors) == 0,
		Message:       message,
		DirectoryName: directoryName,
		DeletedCount:  deleted,
		Errors:        deleteErrors,
	}, nil
}

// ListImages 返回目录下的全部元数据记录，并合入对象存储侧的
// last_modified 与 etag，按最近修改时间倒序。
func (s *imageService) ListImages(ctx context.Context, directoryName string) ([]ImageEntry, error) {
	directoryName, err := sanitizeDirectoryName(directoryName)
	if err != nil {
		return nil, err
	}

	metas, err := s.imageRepo.FindByDirectory(directoryName)
	if err != nil {
		return nil, err
	}

	// 一次 List 拿到目录下所有对象的属性，避免逐个 Stat
	objects, err := s.store.List(ctx, directoryName+"/")
	if err != nil {
		return nil, err
	}
	objByKey := make(map[string]storage.ObjectInfo, len(objects))
	for _, obj := range objects {
		objByKey[obj.Key] = obj
	}

	entries := make([]ImageEntry, 0, len(metas))
	for _, meta := range metas {
		entry := ImageEntry{
			FileName:      meta.FileName,
			OriginalName:  meta.OriginalName,
			DirectoryName: directoryName,
			FileSize:      meta.FileSize,
			ContentType:   meta.ContentType,
			URL:           s.objectURL(ctx, directoryName+"/"+meta.FileName),
			LastModified:  meta.UploadedAt,
			Description:   meta.Description,
			ImageWidth:    formatDimension(meta.ImageWidth),
			ImageHeight:   formatDimension(meta.ImageHeight),
			ImageFormat:   meta.ImageFormat,
		}
		if obj, ok := objByKey[directoryName+"/"+meta.FileName]; ok {
			entry.LastModified = obj.LastModified
			entry.ETag = obj.ETag
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastModified.After(entries[j].LastModified)
	})
	return entries, nil
}

// ListDirectories 返回所有包含图片的目录及其聚合统计。
func (s *imageService) ListDirectories(ctx context.Context) ([]DirectoryEntry, error) {
	stats, err := s.imageRepo.DirectoryStats()
	if err != nil {
		return nil, err
	}

	entries := make([]DirectoryEntry, 0, len(stats))
	for _, stat := range stats {
		entries = append(entries, DirectoryEntry{
			Name:         stat.DirectoryName,
			ImageCount:   stat.ImageCount,
			TotalSize:    stat.TotalSize,
			LastModified: stat.LastUploadedAt,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastModified.After(entries[j].LastModified)
	})
	return entries, nil
}

// GetImageData 读取图片原始字节，用于直接响应给浏览器。
// 图片不存在时返回 gorm.ErrRecordNotFound。
func (s *imageService) GetImageData(ctx context.Context, directoryName, fileName string) ([]byte, string, error) {
	directoryName, err := sanitizeDirectoryName(directoryName)
	if err != nil {
		return nil, "", err
	}

	meta, err := s.imageRepo.FindByDirectoryAndFileName(directoryName, fileName)
	if err != nil {
		return nil, "", err
	}

	data, contentType, err := s.store.Fetch(ctx, directoryName+"/"+fileName)
	if err != nil {
		return nil, "", err
	}
	if contentType == "" {
		contentType = meta.ContentType
	}
	return data, contentType, nil
}

// GetImageInfo 返回单张图片的详细条目。
func (s *imageService) GetImageInfo(ctx context.Context, directoryName, fileName string) (*ImageEntry, error) {
	entries, err := s.ListImages(ctx, directoryName)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].FileName == fileName {
			return &entries[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// SearchImages 通过 Elasticsearch 按关键词检索图片元数据。
func (s *imageService) SearchImages(ctx context.Context, query, directoryName string) ([]model.EsImageDocument, error) {
	if strings.TrimSpace(query) == "" {
		return nil, validationErrorf("检索关键词不能为空")
	}
	return es.SearchImages(ctx, s.esCfg.IndexName, query, directoryName, 50)
}

// validateFile 执行上传前校验：文件名、扩展名、MIME 类型与大小。
func (s *imageService) validateFile(file IncomingFile) error {
	if file.OriginalName == "" {
		return validationErrorf("未提供文件名")
	}

	ext := strings.ToLower(filepath.Ext(file.OriginalName))
	if !contains(s.uploadCfg.AllowedExtensions, ext) {
		return validationErrorf("不支持的文件类型，允许的扩展名: %s", strings.Join(s.uploadCfg.AllowedExtensions, ", "))
	}

	if !strings.HasPrefix(file.ContentType, "image/") || !contains(s.uploadCfg.AllowedTypes, file.ContentType) {
		return validationErrorf("文件必须是图片，允许的类型: %s", strings.Join(s.uploadCfg.AllowedTypes, ", "))
	}

	if len(file.Content) == 0 {
		return validationErrorf("文件内容为空")
	}
	if s.uploadCfg.MaxFileSize > 0 && int64(len(file.Content)) > s.uploadCfg.MaxFileSize {
		return validationErrorf("文件过大，大小上限: %.1fMB", float64(s.uploadCfg.MaxFileSize)/(1024*1024))
	}
	return nil
}

// objectURL 为对象生成限时公开地址，失败时退回到本服务的下载路径。
func (s *imageService) objectURL(ctx context.Context, objectName string) string {
	expiry := time.Duration(s.minioCfg.URLExpiryHours) * time.Hour
	if expiry <= 0 {
		expiry = time.Hour
	}
	url, err := s.store.PresignedURL(ctx, objectName, expiry)
	if err != nil || url == "" {
		return "/api/images/" + objectName
	}
	return url
}

func (s *imageService) produceEvent(task tasks.ImageEventTask) {
	if s.produce == nil {
		return
	}
	// 事件发布是尽力而为的，失败不影响主流程
	if err := s.produce(task); err != nil {
		log.Warnf("[ImageService] 发布图片事件失败: event=%s, key=%s/%s, error: %v",
			task.Event, task.DirectoryName, task.FileName, err)
	}
}

// decodeImageInfo 尝试解码图片头部获取尺寸与格式，失败时返回 nil。
func decodeImageInfo(content []byte) *model.ImageInfo {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return nil
	}
	return &model.ImageInfo{
		Width:  cfg.Width,
		Height: cfg.Height,
		Format: format,
	}
}

// sanitizeDirectoryName 清洗目录名：仅保留字母数字与 -_，限长 50。
func sanitizeDirectoryName(directoryName string) (string, error) {
	var b strings.Builder
	for _, c := range directoryName {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-' || c == '_' {
			b.WriteRune(c)
		}
	}
	sanitized := b.String()
	if sanitized == "" {
		return "", validationErrorf("无效的目录名")
	}
	if len(sanitized) > 50 {
		sanitized = sanitized[:50]
	}
	return sanitized, nil
}

func formatDimension(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// IsNotFound 判断错误是否表示记录不存在。
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
