package imageclient

import (
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"
)

// StagedFile 是一个已选入暂存区、尚未上传的本地文件。
type StagedFile struct {
	Name        string
	ContentType string
	Data        []byte

	previewOnce sync.Once
	preview     string
}

// Preview 返回文件的 data-URL 预览。
// 编码只在第一次调用时执行一次，之后复用缓存结果。
func (f *StagedFile) Preview() string {
	f.previewOnce.Do(func() {
		f.preview = fmt.Sprintf("data:%s;base64,%s",
			f.ContentType, base64.StdEncoding.EncodeToString(f.Data))
	})
	return f.preview
}

// Stager 维护待上传文件的暂存区，限制暂存数量上限。
type Stager struct {
	mu       sync.Mutex
	files    []*StagedFile
	maxCount int
}

// NewStager 创建一个新的 Stager 实例。maxCount 是暂存区的容量上限。
func NewStager(maxCount int) *Stager {
	return &Stager{maxCount: maxCount}
}

// SelectSingle 将单个文件放入暂存区。
// 只接受 Content-Type 以 image/ 开头的文件，暂存区满时拒绝。
func (s *Stager) SelectSingle(name, contentType string, data []byte) (*StagedFile, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("'%s' 不是图片文件", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.files) >= s.maxCount {
		return nil, fmt.Errorf("暂存区已满，最多 %d 个文件", s.maxCount)
	}

	file := &StagedFile{Name: name, ContentType: contentType, Data: data}
	s.files = append(s.files, file)
	return file, nil
}

// FileCandidate 是一个待筛选的候选文件。
type FileCandidate struct {
	Name        string
	ContentType string
	Data        []byte
}

// SelectMultiple 批量选择文件：过滤掉非图片，截断超出容量的部分，
// 并发预热各文件的预览，最多等待 timeout。
// 超时只影响预热，文件仍会入选，预览在之后按需生成。
func (s *Stager) SelectMultiple(candidates []FileCandidate, timeout time.Duration) []*StagedFile {
	s.mu.Lock()
	remaining := s.maxCount - len(s.files)
	s.mu.Unlock()
	if remaining <= 0 {
		return nil
	}

	selected := make([]*StagedFile, 0, remaining)
	for _, candidate := range candidates {
		if len(selected) >= remaining {
			break
		}
		if !strings.HasPrefix(candidate.ContentType, "image/") {
			continue
		}
		selected = append(selected, &StagedFile{
			Name:        candidate.Name,
			ContentType: candidate.ContentType,
			Data:        candidate.Data,
		})
	}

	var wg sync.WaitGroup
	for _, file := range selected {
		wg.Add(1)
		go func(f *StagedFile) {
			defer wg.Done()
			f.Preview()
		}(file)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}

	s.mu.Lock()
	s.files = append(s.files, selected...)
	s.mu.Unlock()
	return selected
}

// Files 返回暂存区当前内容的副本。
func (s *Stager) Files() []*StagedFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*StagedFile, len(s.files))
	copy(out, s.files)
	return out
}

// Remove 按文件名从暂存区移除一个文件。
func (s *Stager) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, file := range s.files {
		if file.Name == name {
			s.files = append(s.files[:i], s.files[i+1:]...)
			return true
		}
	}
	return false
}

// Clear 清空暂存区。
func (s *Stager) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = nil
}
