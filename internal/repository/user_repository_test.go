package repository

import (
	"fmt"
	"testing"

	"picvault-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB 创建一个独立的内存 SQLite 数据库用于测试。
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.ImageMetadata{}))
	return db
}

func TestUserRepositoryCRUD(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))

	user := &model.User{Username: "alice", Password: "hashed"}
	require.NoError(t, repo.Create(user))
	assert.NotZero(t, user.ID)

	found, err := repo.FindByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", found.Username)

	found, err = repo.FindByUsername("alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = repo.FindByUsername("nobody")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	found.Username = "alice2"
	require.NoError(t, repo.Update(found))
	updated, err := repo.FindByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice2", updated.Username)
}

func TestUserRepositoryDelete(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))

	user := &model.User{Username: "bob", Password: "hashed"}
	require.NoError(t, repo.Create(user))

	deleted, err := repo.Delete(user.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	// 删除不存在的记录返回 false 而非错误
	deleted, err = repo.Delete(user.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestUserRepositoryPagination(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))

	for i := 0; i < 25; i++ {
		require.NoError(t, repo.Create(&model.User{
			Username: fmt.Sprintf("user%02d", i),
			Password: "hashed",
		}))
	}

	users, total, err := repo.FindWithPagination(0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(25), total)
	require.Len(t, users, 10)
	assert.Equal(t, "user00", users[0].Username)

	users, total, err = repo.FindWithPagination(20, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(25), total)
	assert.Len(t, users, 5)

	// 超出范围返回空页，总数不变
	users, total, err = repo.FindWithPagination(100, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(25), total)
	assert.Empty(t, users)
}

func TestUserRepositorySearch(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))

	for _, name := range []string{"alice", "alicia", "bob", "malice"} {
		require.NoError(t, repo.Create(&model.User{Username: name, Password: "hashed"}))
	}

	users, total, err := repo.SearchWithPagination("alic", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total) // alice, alicia, malice
	assert.Len(t, users, 3)

	users, total, err = repo.SearchWithPagination("alic", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, users, 2)

	_, total, err = repo.SearchWithPagination("zzz", 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}
