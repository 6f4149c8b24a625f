package handler

import (
	"net/http"
	"strings"

	"picvault-go/internal/service"

	"github.com/gin-gonic/gin"
)

// AuthHandler 负责处理登录、令牌校验与注销相关的 HTTP 请求。
type AuthHandler struct {
	userService service.UserService
}

// NewAuthHandler 创建一个新的 AuthHandler 实例。
func NewAuthHandler(userService service.UserService) *AuthHandler {
	return &AuthHandler{userService: userService}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 处理登录请求，签发访问令牌。
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithDetail(c, http.StatusBadRequest, "请求参数无效: "+err.Error())
		return
	}

	accessToken, user, err := h.userService.Login(req.Username, req.Password)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": accessToken,
		"token_type":   "bearer",
		"user":         user,
	})
}

// Verify 校验请求携带的令牌是否有效且未被注销。
// GET /api/auth/verify
func (h *AuthHandler) Verify(c *gin.Context) {
	tokenString, ok := bearerToken(c)
	if !ok {
		abortWithDetail(c, http.StatusUnauthorized, "缺少认证令牌")
		return
	}

	claims, err := h.userService.VerifyToken(c.Request.Context(), tokenString)
	if err != nil {
		abortWithDetail(c, http.StatusUnauthorized, "令牌无效或已过期")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":    true,
		"user_id":  claims.UserID,
		"username": claims.Username,
	})
}

// Logout 注销当前令牌，令牌剩余有效期内不可再使用。
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	tokenString, ok := bearerToken(c)
	if !ok {
		abortWithDetail(c, http.StatusUnauthorized, "缺少认证令牌")
		return
	}

	if err := h.userService.Logout(c.Request.Context(), tokenString); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "已注销"})
}

// bearerToken 从 Authorization 头中提取 Bearer 令牌。
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
