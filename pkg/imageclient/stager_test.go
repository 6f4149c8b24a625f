package imageclient

import (
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectSingle(t *testing.T) {
	stager := NewStager(10)

	file, err := stager.SelectSingle("beach.png", "image/png", []byte("data"))
	require.NoError(t, err)
	assert.Equal(t, "beach.png", file.Name)
	assert.Len(t, stager.Files(), 1)

	// 非图片被拒绝
	_, err = stager.SelectSingle("notes.txt", "text/plain", []byte("data"))
	assert.Error(t, err)
	assert.Len(t, stager.Files(), 1)
}

func TestSelectSingleCapacity(t *testing.T) {
	stager := NewStager(2)

	_, err := stager.SelectSingle("a.png", "image/png", nil)
	require.NoError(t, err)
	_, err = stager.SelectSingle("b.png", "image/png", nil)
	require.NoError(t, err)

	_, err = stager.SelectSingle("c.png", "image/png", nil)
	assert.Error(t, err)
	assert.Len(t, stager.Files(), 2)
}

func TestSelectMultipleFiltersAndTruncates(t *testing.T) {
	stager := NewStager(3)
	_, err := stager.SelectSingle("existing.png", "image/png", nil)
	require.NoError(t, err)

	candidates := []FileCandidate{
		{Name: "a.png", ContentType: "image/png", Data: []byte("a")},
		{Name: "doc.pdf", ContentType: "application/pdf", Data: []byte("pdf")},
		{Name: "b.jpg", ContentType: "image/jpeg", Data: []byte("b")},
		{Name: "c.gif", ContentType: "image/gif", Data: []byte("c")},
	}

	selected := stager.SelectMultiple(candidates, time.Second)

	// 非图片被过滤，剩余容量只够 2 个
	require.Len(t, selected, 2)
	assert.Equal(t, "a.png", selected[0].Name)
	assert.Equal(t, "b.jpg", selected[1].Name)
	assert.Len(t, stager.Files(), 3)

	// 暂存区已满时不再入选
	assert.Empty(t, stager.SelectMultiple(candidates, time.Second))
}

func TestPreviewDataURL(t *testing.T) {
	file := &StagedFile{Name: "a.png", ContentType: "image/png", Data: []byte("hello")}

	expected := fmt.Sprintf("data:image/png;base64,%s",
		base64.StdEncoding.EncodeToString([]byte("hello")))
	assert.Equal(t, expected, file.Preview())
}

func TestPreviewResolvesOnce(t *testing.T) {
	file := &StagedFile{Name: "a.png", ContentType: "image/png", Data: []byte("hello")}

	first := file.Preview()
	// 预览只生成一次：后续修改数据不影响已缓存的结果
	file.Data = []byte("changed")
	assert.Equal(t, first, file.Preview())
}

func TestSelectMultipleWarmsPreviews(t *testing.T) {
	stager := NewStager(5)

	candidates := []FileCandidate{
		{Name: "a.png", ContentType: "image/png", Data: []byte("aaa")},
		{Name: "b.png", ContentType: "image/png", Data: []byte("bbb")},
	}
	selected := stager.SelectMultiple(candidates, time.Second)
	require.Len(t, selected, 2)

	for _, file := range selected {
		assert.Contains(t, file.Preview(), "data:image/png;base64,")
	}
}

func TestRemoveAndClear(t *testing.T) {
	stager := NewStager(10)
	_, err := stager.SelectSingle("a.png", "image/png", nil)
	require.NoError(t, err)
	_, err = stager.SelectSingle("b.png", "image/png", nil)
	require.NoError(t, err)

	assert.True(t, stager.Remove("a.png"))
	assert.False(t, stager.Remove("a.png"))
	assert.Len(t, stager.Files(), 1)

	stager.Clear()
	assert.Empty(t, stager.Files())
}
