// Package imageclient 提供了图片服务 HTTP API 的 Go 客户端，
// 包含本地文件暂存（Stager）与带状态机的上传客户端（Client）。
package imageclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Client 是图片服务的 HTTP 客户端，维护一个上传状态机。
type Client struct {
	baseURL    string
	httpClient *http.Client
	status     Status
}

// NewClient 创建一个新的 Client 实例。
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Status 是上传过程的状态机。
// 进度没有中间值：开始时为 0，完成时直接跳到 100。
type Status struct {
	mu          sync.Mutex
	isUploading bool
	progress    int
	errMsg      string
	successMsg  string
}

// StatusView 是状态机的一次快照。
type StatusView struct {
	IsUploading bool
	Progress    int
	Error       string
	Success     string
}

func (s *Status) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isUploading = true
	s.progress = 0
	s.errMsg = ""
	s.successMsg = ""
}

func (s *Status) succeed(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isUploading = false
	s.progress = 100
	s.successMsg = message
}

func (s *Status) fail(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isUploading = false
	s.errMsg = message
}

// Snapshot 返回当前状态的副本。
func (s *Status) Snapshot() StatusView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatusView{
		IsUploading: s.isUploading,
		Progress:    s.progress,
		Error:       s.errMsg,
		Success:     s.successMsg,
	}
}

// Reset 将状态机恢复到初始状态。
func (s *Status) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isUploading = false
	s.progress = 0
	s.errMsg = ""
	s.successMsg = ""
}

// Status 返回客户端的上传状态机。
func (c *Client) Status() *Status {
	return &c.status
}

// UploadedImage 是服务端确认上传成功后返回的图片信息。
type UploadedImage struct {
	ID            string
	FileName      string
	OriginalName  string
	DirectoryName string
	FileSize      int64
	URL           string
	UploadedAt    time.Time
}

type uploadResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	FileName      string `json:"file_name"`
	OriginalName  string `json:"original_name"`
	DirectoryName string `json:"directory_name"`
	FileSize      int64  `json:"file_size"`
	URL           string `json:"url"`
	UploadedAt    string `json:"uploaded_at"`
}

// detailMessage 尝试从错误响应体中提取 {"detail": "..."} 字段。
// 解析失败时退回到带状态码的通用消息。
func detailMessage(statusCode int, body []byte) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	return fmt.Sprintf("上传失败，服务端返回状态码 %d", statusCode)
}

func toUploadedImage(resp uploadResponse) UploadedImage {
	uploadedAt, _ := time.Parse(time.RFC3339, resp.UploadedAt)
	return UploadedImage{
		// 服务端生成的存储文件名在目录内唯一，直接作为客户端 ID
		ID:            resp.FileName,
		FileName:      resp.FileName,
		OriginalName:  resp.OriginalName,
		DirectoryName: resp.DirectoryName,
		FileSize:      resp.FileSize,
		URL:           resp.URL,
		UploadedAt:    uploadedAt,
	}
}

// UploadSingle 上传单个暂存文件，并驱动状态机走完一次完整周期。
func (c *Client) UploadSingle(ctx context.Context, file *StagedFile, directoryName, description string) (*UploadedImage, error) {
	c.status.begin()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", file.Name)
	if err != nil {
		c.status.fail(err.Error())
		return nil, err
	}
	if _, err := part.Write(file.Data); err != nil {
		c.status.fail(err.Error())
		return nil, err
	}
	_ = writer.WriteField("directory_name", directoryName)
	if description != "" {
		_ = writer.WriteField("description", description)
	}
	if err := writer.Close(); err != nil {
		c.status.fail(err.Error())
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/images/upload", body)
	if err != nil {
		c.status.fail(err.Error())
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.status.fail(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		message := detailMessage(resp.StatusCode, respBody)
		c.status.fail(message)
		return nil, fmt.Errorf("%s", message)
	}

	var parsed uploadResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		c.status.fail("无法解析服务端响应")
		return nil, err
	}

	uploaded := toUploadedImage(parsed)
	c.status.succeed(fmt.Sprintf("'%s' 上传成功", file.Name))
	return &uploaded, nil
}

type bulkUploadResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Results []uploadResponse `json:"results"`
	Errors  []struct {
		Filename string `json:"filename"`
		Error    string `json:"error"`
	} `json:"errors"`
	TotalUploaded int `json:"total_uploaded"`
	TotalErrors   int `json:"total_errors"`
}

// UploadMultiple 批量上传暂存文件。
// 服务端允许部分成功；只要存在失败项，这里就把失败原因汇总为一个错误返回，
// 同时返回已成功上传的文件。
func (c *Client) UploadMultiple(ctx context.Context, files []*StagedFile, directoryName, description string) ([]UploadedImage, error) {
	c.status.begin()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, file := range files {
		part, err := writer.CreateFormFile("files", file.Name)
		if err != nil {
			c.status.fail(err.Error())
			return nil, err
		}
		if _, err := part.Write(file.Data); err != nil {
			c.status.fail(err.Error())
			return nil, err
		}
	}
	if description != "" {
		_ = writer.WriteField("description", description)
	}
	if err := writer.Close(); err != nil {
		c.status.fail(err.Error())
		return nil, err
	}

	url := fmt.Sprintf("%s/api/images/%s/bulk-upload", c.baseURL, directoryName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		c.status.fail(err.Error())
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.status.fail(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		message := detailMessage(resp.StatusCode, respBody)
		c.status.fail(message)
		return nil, fmt.Errorf("%s", message)
	}

	var parsed bulkUploadResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		c.status.fail("无法解析服务端响应")
		return nil, err
	}

	uploaded := make([]UploadedImage, 0, len(parsed.Results))
	for _, result := range parsed.Results {
		uploaded = append(uploaded, toUploadedImage(result))
	}

	if !parsed.Success && len(parsed.Errors) > 0 {
		reasons := make([]string, 0, len(parsed.Errors))
		for _, e := range parsed.Errors {
			reasons = append(reasons, fmt.Sprintf("%s: %s", e.Filename, e.Error))
		}
		message := strings.Join(reasons, "; ")
		c.status.fail(message)
		return uploaded, fmt.Errorf("部分文件上传失败: %s", message)
	}

	c.status.succeed(fmt.Sprintf("成功上传 %d 个文件", len(uploaded)))
	return uploaded, nil
}

// DeleteImage 删除远端图片。任何失败都吞掉并返回 false，
// 调用方只关心"删除是否被确认"，不关心失败原因。
func (c *Client) DeleteImage(ctx context.Context, directoryName, fileName string) bool {
	url := fmt.Sprintf("%s/api/images/%s/%s", c.baseURL, directoryName, fileName)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

// RemoteImage 是目录列表中一张图片的客户端视图。
type RemoteImage struct {
	ID           string
	FileName     string
	OriginalName string
	URL          string
	Timestamp    time.Time
	Description  string
	Width        int
	Height       int
	Format       string
}

type listImageEntry struct {
	FileName     string `json:"file_name"`
	OriginalName string `json:"original_name"`
	URL          string `json:"url"`
	LastModified string `json:"last_modified"`
	Timestamp    string `json:"timestamp"` // 旧版服务端使用的字段名
	Description  string `json:"description"`
	ImageWidth   string `json:"image_width"`
	ImageHeight  string `json:"image_height"`
	ImageFormat  string `json:"image_format"`
}

// parseDimension 解析服务端返回的字符串尺寸，缺失或无法解析时取 0。
func parseDimension(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// ListDirectory 拉取目录下的全部图片。
// 字段映射是宽容的：缺失的尺寸取 0，缺失的格式取空串，时间解析失败取零值。
func (c *Client) ListDirectory(ctx context.Context, directoryName string) ([]RemoteImage, error) {
	url := fmt.Sprintf("%s/api/images/%s", c.baseURL, directoryName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s", detailMessage(resp.StatusCode, respBody))
	}

	var parsed struct {
		Images []listImageEntry `json:"images"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, err
	}

	images := make([]RemoteImage, 0, len(parsed.Images))
	for _, entry := range parsed.Images {
		rawTime := entry.LastModified
		if rawTime == "" {
			rawTime = entry.Timestamp
		}
		timestamp, _ := time.Parse(time.RFC3339, rawTime)
		images = append(images, RemoteImage{
			ID:           entry.FileName,
			FileName:     entry.FileName,
			OriginalName: entry.OriginalName,
			URL:          entry.URL,
			Timestamp:    timestamp,
			Description:  entry.Description,
			Width:        parseDimension(entry.ImageWidth),
			Height:       parseDimension(entry.ImageHeight),
			Format:       entry.ImageFormat,
		})
	}
	return images, nil
}
