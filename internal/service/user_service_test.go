package service

import (
	"context"
	"fmt"
	"testing"

	"picvault-go/internal/model"
	"picvault-go/internal/repository"
	"picvault-go/pkg/hash"
	"picvault-go/pkg/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestUserService(t *testing.T) UserService {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}))

	jwtManager := token.NewJWTManager("test-secret", 1, 7)
	return NewUserService(repository.NewUserRepository(db), jwtManager, nil)
}

func TestRegister(t *testing.T) {
	svc := newTestUserService(t)

	user, err := svc.Register(RegisterRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "alice", user.Username)

	// 密码以 bcrypt 哈希存储，不落明文
	assert.NotEqual(t, "secret123", user.Password)
	assert.True(t, hash.CheckPasswordHash("secret123", user.Password))
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestUserService(t)

	var validationErr *ValidationError

	_, err := svc.Register(RegisterRequest{Username: "ab", Password: "secret123"})
	assert.ErrorAs(t, err, &validationErr)

	_, err = svc.Register(RegisterRequest{Username: "alice", Password: "short"})
	assert.ErrorAs(t, err, &validationErr)

	_, err = svc.Register(RegisterRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)
	_, err = svc.Register(RegisterRequest{Username: "alice", Password: "secret456"})
	assert.ErrorAs(t, err, &validationErr)
}

func TestLogin(t *testing.T) {
	svc := newTestUserService(t)

	_, err := svc.Register(RegisterRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)

	accessToken, user, err := svc.Login("alice", "secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, accessToken)
	assert.Equal(t, "alice", user.Username)

	// 签发的令牌可以通过校验，claims 指向登录用户
	claims, err := svc.VerifyToken(context.Background(), accessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestLoginInvalidCredentials(t *testing.T) {
	svc := newTestUserService(t)

	_, err := svc.Register(RegisterRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)

	// 密码错误与用户不存在返回同一个错误
	_, _, err = svc.Login("alice", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login("nobody", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	svc := newTestUserService(t)

	_, err := svc.VerifyToken(context.Background(), "not-a-token")
	assert.Error(t, err)
}

func TestLogoutWithInvalidTokenIsNoop(t *testing.T) {
	svc := newTestUserService(t)
	assert.NoError(t, svc.Logout(context.Background(), "not-a-token"))
}

func TestUpdateUser(t *testing.T) {
	svc := newTestUserService(t)

	user, err := svc.Register(RegisterRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)
	_, err = svc.Register(RegisterRequest{Username: "bob", Password: "secret123"})
	require.NoError(t, err)

	// 改名成功
	updated, err := svc.Update(user.ID, UpdateUserRequest{Username: "alice2"})
	require.NoError(t, err)
	assert.Equal(t, "alice2", updated.Username)

	// 新用户名被占用时拒绝
	var validationErr *ValidationError
	_, err = svc.Update(user.ID, UpdateUserRequest{Username: "bob"})
	assert.ErrorAs(t, err, &validationErr)

	// 改密码后旧密码失效
	_, err = svc.Update(user.ID, UpdateUserRequest{Password: "newsecret"})
	require.NoError(t, err)
	_, _, err = svc.Login("alice2", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login("alice2", "newsecret")
	assert.NoError(t, err)

	// 不存在的用户返回 not found
	_, err = svc.Update(9999, UpdateUserRequest{Username: "ghost"})
	assert.True(t, IsNotFound(err))
}

func TestDeleteUser(t *testing.T) {
	svc := newTestUserService(t)

	user, err := svc.Register(RegisterRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(user.ID))
	assert.True(t, IsNotFound(svc.Delete(user.ID)))

	_, err = svc.GetByID(user.ID)
	assert.True(t, IsNotFound(err))
}

func TestListUsers(t *testing.T) {
	svc := newTestUserService(t)

	for i := 0; i < 5; i++ {
		_, err := svc.Register(RegisterRequest{
			Username: fmt.Sprintf("user%d", i),
			Password: "secret123",
		})
		require.NoError(t, err)
	}
	_, err := svc.Register(RegisterRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)

	users, total, err := svc.List(0, 3, "")
	require.NoError(t, err)
	assert.Equal(t, int64(6), total)
	assert.Len(t, users, 3)

	users, total, err = svc.List(0, 10, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)

	// 非法分页参数回退到默认值
	users, _, err = svc.List(-5, 0, "")
	require.NoError(t, err)
	assert.Len(t, users, 6)
}
