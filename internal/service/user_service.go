package service

import (
	"context"
	"errors"
	"time"

	"picvault-go/internal/model"
	"picvault-go/internal/repository"
	"picvault-go/pkg/hash"
	"picvault-go/pkg/log"
	"picvault-go/pkg/token"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// ErrInvalidCredentials 表示用户名或密码错误，处理器将其映射为 401。
var ErrInvalidCredentials = errors.New("用户名或密码错误")

// blacklistKeyPrefix 是 Redis 中注销令牌黑名单的键前缀。
const blacklistKeyPrefix = "blacklist:"

// RegisterRequest 是创建用户的入参。
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UpdateUserRequest 是更新用户的入参，零值字段保持不变。
type UpdateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserService 接口定义了用户管理与认证的业务操作。
type UserService interface {
	Register(req RegisterRequest) (*model.User, error)
	Login(username, password string) (string, *model.User, error)
	Logout(ctx context.Context, tokenString string) error
	VerifyToken(ctx context.Context, tokenString string) (*token.CustomClaims, error)
	GetByID(userID uint) (*model.User, error)
	GetByUsername(username string) (*model.User, error)
	Update(userID uint, req UpdateUserRequest) (*model.User, error)
	Delete(userID uint) error
	List(skip, limit int, search string) ([]model.User, int64, error)
}

type userService struct {
	userRepo   repository.UserRepository
	jwtManager *token.JWTManager
	rdb        *redis.Client // 可为 nil（测试时跳过黑名单）
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(userRepo repository.UserRepository, jwtManager *token.JWTManager, rdb *redis.Client) UserService {
	return &userService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
		rdb:        rdb,
	}
}

// Register 创建一个新用户，密码以 bcrypt 哈希存储。
func (s *userService) Register(req RegisterRequest) (*model.User, error) {
	if len(req.Username) < 3 {
		return nil, validationErrorf("用户名至少需要 3 个字符")
	}
	if len(req.Password) < 6 {
		return nil, validationErrorf("密码至少需要 6 个字符")
	}

	_, err := s.userRepo.FindByUsername(req.Username)
	if err == nil {
		return nil, validationErrorf("用户名 '%s' 已被占用", req.Username)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashedPassword, err := hash.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username: req.Username,
		Password: hashedPassword,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}

	log.Infof("[Register] 新用户注册成功: %s (id=%d)", user.Username, user.ID)
	return user, nil
}

// Login 校验凭证并签发访问令牌。
// 用户不存在与密码错误返回同一个错误，避免泄露用户名是否存在。
func (s *userService) Login(username, password string) (string, *model.User, error) {
	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	if !hash.CheckPasswordHash(password, user.Password) {
		return "", nil, ErrInvalidCredentials
	}

	accessToken, err := s.jwtManager.GenerateToken(user.ID, user.Username)
	if err != nil {
		return "", nil, err
	}

	log.Infof("[Login] 用户登录成功: %s", user.Username)
	return accessToken, user, nil
}

// Logout 将令牌加入 Redis 黑名单，过期时间等于令牌的剩余有效期。
func (s *userService) Logout(ctx context.Context, tokenString string) error {
	claims, err := s.jwtManager.VerifyToken(tokenString)
	if err != nil {
		// 无效或已过期的令牌无需拉黑
		return nil
	}
	if s.rdb == nil {
		return nil
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, blacklistKeyPrefix+tokenString, "1", ttl).Err()
}

// VerifyToken 校验令牌签名与有效期，并确认其未被注销。
func (s *userService) VerifyToken(ctx context.Context, tokenString string) (*token.CustomClaims, error) {
	claims, err := s.jwtManager.VerifyToken(tokenString)
	if err != nil {
		return nil, err
	}

	if s.rdb != nil {
		exists, err := s.rdb.Exists(ctx, blacklistKeyPrefix+tokenString).Result()
		if err != nil {
			return nil, err
		}
		if exists > 0 {
			return nil, errors.New("令牌已注销")
		}
	}
	return claims, nil
}

// GetByID 根据 ID 获取用户。
func (s *userService) GetByID(userID uint) (*model.User, error) {
	return s.userRepo.FindByID(userID)
}

// GetByUsername 根据用户名获取用户。
func (s *userService) GetByUsername(username string) (*model.User, error) {
	return s.userRepo.FindByUsername(username)
}

// Update 更新用户的用户名或密码，零值字段不做修改。
func (s *userService) Update(userID uint, req UpdateUserRequest) (*model.User, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}

	if req.Username != "" && req.Username != user.Username {
		if len(req.Username) < 3 {
			return nil, validationErrorf("用户名至少需要 3 个字符")
		}
		_, err := s.userRepo.FindByUsername(req.Username)
		if err == nil {
			return nil, validationErrorf("用户名 '%s' 已被占用", req.Username)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		user.Username = req.Username
	}

	if req.Password != "" {
		if len(req.Password) < 6 {
			return nil, validationErrorf("密码至少需要 6 个字符")
		}
		hashedPassword, err := hash.HashPassword(req.Password)
		if err != nil {
			return nil, err
		}
		user.Password = hashedPassword
	}

	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

// Delete 删除一个用户，用户不存在时返回 gorm.ErrRecordNotFound。
func (s *userService) Delete(userID uint) error {
	deleted, err := s.userRepo.Delete(userID)
	if err != nil {
		return err
	}
	if !deleted {
		return gorm.ErrRecordNotFound
	}
	log.Infof("[Delete] 用户已删除: id=%d", userID)
	return nil
}

// List 分页获取用户列表，search 非空时按用户名模糊匹配。
func (s *userService) List(skip, limit int, search string) ([]model.User, int64, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = 100
	}
	if search != "" {
		return s.userRepo.SearchWithPagination(search, skip, limit)
	}
	return s.userRepo.FindWithPagination(skip, limit)
}
