package repository

import (
	"testing"
	"time"

	"picvault-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newImageMeta(directory, fileName, originalName string, size int64, uploadedAt time.Time) *model.ImageMetadata {
	return &model.ImageMetadata{
		FileName:      fileName,
		DirectoryName: directory,
		OriginalName:  originalName,
		ContentType:   "image/png",
		FileSize:      size,
		UploadedAt:    uploadedAt,
	}
}

func TestImageRepositoryCreateAndFind(t *testing.T) {
	repo := NewImageRepository(newTestDB(t))

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.Create(newImageMeta("photos", "abc.png", "beach.png", 100, now)))

	meta, err := repo.FindByDirectoryAndFileName("photos", "abc.png")
	require.NoError(t, err)
	assert.Equal(t, "beach.png", meta.OriginalName)
	assert.Equal(t, int64(100), meta.FileSize)

	_, err = repo.FindByDirectoryAndFileName("photos", "missing.png")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// (directory_name, file_name) 唯一索引拒绝重复键
	err = repo.Create(newImageMeta("photos", "abc.png", "other.png", 1, now))
	assert.Error(t, err)
}

func TestImageRepositoryExistsByOriginalName(t *testing.T) {
	repo := NewImageRepository(newTestDB(t))

	now := time.Now().UTC()
	require.NoError(t, repo.Create(newImageMeta("photos", "abc.png", "beach.png", 100, now)))

	exists, err := repo.ExistsByDirectoryAndOriginalName("photos", "beach.png")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByDirectoryAndOriginalName("photos", "other.png")
	require.NoError(t, err)
	assert.False(t, exists)

	// 原始名检查以目录为边界
	exists, err = repo.ExistsByDirectoryAndOriginalName("wallpapers", "beach.png")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestImageRepositoryFindByDirectoryOrder(t *testing.T) {
	repo := NewImageRepository(newTestDB(t))

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.Create(newImageMeta("photos", "old.png", "old.png", 10, base.Add(-time.Hour))))
	require.NoError(t, repo.Create(newImageMeta("photos", "new.png", "new.png", 20, base)))
	require.NoError(t, repo.Create(newImageMeta("other", "x.png", "x.png", 30, base)))

	metas, err := repo.FindByDirectory("photos")
	require.NoError(t, err)
	require.Len(t, metas, 2)
	// 最近上传的排在最前
	assert.Equal(t, "new.png", metas[0].FileName)
	assert.Equal(t, "old.png", metas[1].FileName)
}

func TestImageRepositoryDelete(t *testing.T) {
	repo := NewImageRepository(newTestDB(t))

	require.NoError(t, repo.Create(newImageMeta("photos", "abc.png", "beach.png", 100, time.Now().UTC())))

	deleted, err := repo.Delete("photos", "abc.png")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.Delete("photos", "abc.png")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestImageRepositoryDirectoryStats(t *testing.T) {
	repo := NewImageRepository(newTestDB(t))

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.Create(newImageMeta("photos", "a.png", "a.png", 100, base.Add(-time.Hour))))
	require.NoError(t, repo.Create(newImageMeta("photos", "b.png", "b.png", 200, base)))
	require.NoError(t, repo.Create(newImageMeta("wallpapers", "c.png", "c.png", 50, base)))

	stats, err := repo.DirectoryStats()
	require.NoError(t, err)
	require.Len(t, stats, 2)

	byName := make(map[string]DirectoryStat)
	for _, stat := range stats {
		byName[stat.DirectoryName] = stat
	}

	photos := byName["photos"]
	assert.Equal(t, int64(2), photos.ImageCount)
	assert.Equal(t, int64(300), photos.TotalSize)

	wallpapers := byName["wallpapers"]
	assert.Equal(t, int64(1), wallpapers.ImageCount)
	assert.Equal(t, int64(50), wallpapers.TotalSize)
}
