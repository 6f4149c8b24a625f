package handler

import (
	"io"
	"mime/multipart"
	"net/http"

	"picvault-go/internal/service"

	"github.com/gin-gonic/gin"
)

// ImageHandler 负责处理图片上传与管理相关的 HTTP 请求。
type ImageHandler struct {
	imageService service.ImageService
}

// NewImageHandler 创建一个新的 ImageHandler 实例。
func NewImageHandler(imageService service.ImageService) *ImageHandler {
	return &ImageHandler{imageService: imageService}
}

// readUpload 把 multipart 文件完整读入内存。
// 上传有大小上限，业务层校验后超限文件会被拒绝。
func readUpload(fileHeader *multipart.FileHeader) (service.IncomingFile, error) {
	f, err := fileHeader.Open()
	if err != nil {
		return service.IncomingFile{}, err
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return service.IncomingFile{}, err
	}
	return service.IncomingFile{
		OriginalName: fileHeader.Filename,
		ContentType:  fileHeader.Header.Get("Content-Type"),
		Content:      content,
	}, nil
}

// Upload 处理单文件上传请求。
// POST /api/images/upload
// 表单字段: file, directory_name(默认 "default"), description(可选)
func (h *ImageHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		abortWithDetail(c, http.StatusBadRequest, "未提供文件")
		return
	}
	directoryName := c.DefaultPostForm("directory_name", "default")
	description := c.PostForm("description")

	file, err := readUpload(fileHeader)
	if err != nil {
		abortWithDetail(c, http.StatusBadRequest, "读取上传文件失败")
		return
	}

	result, err := h.imageService.UploadImage(c.Request.Context(), directoryName, description, file)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// BulkUpload 处理批量上传请求，单个文件失败不影响其余文件。
// POST /api/images/:directory_name/bulk-upload
// 表单字段: files(可重复), description(可选)
func (h *ImageHandler) BulkUpload(c *gin.Context) {
	directoryName := c.Param("directory_name")
	description := c.PostForm("description")

	form, err := c.MultipartForm()
	if err != nil {
		abortWithDetail(c, http.StatusBadRequest, "请求不是有效的 multipart 表单")
		return
	}
	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		abortWithDetail(c, http.StatusBadRequest, "未提供任何文件")
		return
	}

	files := make([]service.IncomingFile, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		file, err := readUpload(fh)
		if err != nil {
			abortWithDetail(c, http.StatusBadRequest, "读取上传文件失败: "+fh.Filename)
			return
		}
		files = append(files, file)
	}

	result, err := h.imageService.BulkUpload(c.Request.Context(), directoryName, description, files)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// List 返回目录下的全部图片条目。
// GET /api/images/:directory_name
func (h *ImageHandler) List(c *gin.Context) {
	directoryName := c.Param("directory_name")

	entries, err := h.imageService.ListImages(c.Request.Context(), directoryName)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"images":         entries,
		"total":          len(entries),
		"directory_name": directoryName,
	})
}

// ListDirectories 返回所有包含图片的目录及其统计。
// GET /api/images/directories
func (h *ImageHandler) ListDirectories(c *gin.Context) {
	entries, err := h.imageService.ListDirectories(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"directories": entries,
		"total":       len(entries),
	})
}

// Download 返回图片的原始字节，Content-Type 取自存储的对象属性。
// GET /api/images/:directory_name/:file_name
func (h *ImageHandler) Download(c *gin.Context) {
	fileName := c.Param("file_name")
	data, contentType, err := h.imageService.GetImageData(
		c.Request.Context(), c.Param("directory_name"), fileName)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="`+fileName+`"`)
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, contentType, data)
}

// Info 返回单张图片的详细信息。
// GET /api/images/:directory_name/:file_name/info
func (h *ImageHandler) Info(c *gin.Context) {
	entry, err := h.imageService.GetImageInfo(
		c.Request.Context(), c.Param("directory_name"), c.Param("file_name"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// Delete 删除一张图片。语义是"确保不存在"：重复删除同样返回成功。
// DELETE /api/images/:directory_name/:file_name
func (h *ImageHandler) Delete(c *gin.Context) {
	directoryName := c.Param("directory_name")
	fileName := c.Param("file_name")

	if err := h.imageService.DeleteImage(c.Request.Context(), directoryName, fileName); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Image '" + fileName + "' deleted successfully",
	})
}

// DeleteDirectory 删除目录下的全部图片。
// DELETE /api/images/:directory_name
func (h *ImageHandler) DeleteDirectory(c *gin.Context) {
	result, err := h.imageService.DeleteDirectory(c.Request.Context(), c.Param("directory_name"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Search 通过 Elasticsearch 按关键词检索图片元数据。
// GET /api/images/search?q=&directory_name=
func (h *ImageHandler) Search(c *gin.Context) {
	query := c.Query("q")
	directoryName := c.Query("directory_name")

	results, err := h.imageService.SearchImages(c.Request.Context(), query, directoryName)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"total":   len(results),
		"query":   query,
	})
}
