// Package handler 包含了所有 gin 的 HTTP 请求处理器。
package handler

import (
	"errors"
	"net/http"

	"picvault-go/internal/service"
	"picvault-go/pkg/log"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// abortWithDetail 以统一的 {"detail": "..."} 结构返回错误响应。
func abortWithDetail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

// handleServiceError 将业务层错误映射到 HTTP 状态码。
// 校验错误 -> 400，凭证错误 -> 401，记录不存在 -> 404，其余 -> 500。
func handleServiceError(c *gin.Context, err error) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		abortWithDetail(c, http.StatusBadRequest, validationErr.Message)
	case errors.Is(err, service.ErrInvalidCredentials):
		abortWithDetail(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, gorm.ErrRecordNotFound):
		abortWithDetail(c, http.StatusNotFound, "资源不存在")
	default:
		log.Errorf("[Handler] 内部错误: %v", err)
		abortWithDetail(c, http.StatusInternalServerError, "服务器内部错误")
	}
}
