package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck 是对单个依赖的可达性探测。
type HealthCheck func(ctx context.Context) error

// HealthHandler 汇报各个后端依赖的可达性。
// 无论依赖状态如何都返回 200，调用方依据各组件字段判断。
type HealthHandler struct {
	checks map[string]HealthCheck
}

// NewHealthHandler 创建一个新的 HealthHandler 实例。
func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Health 处理健康检查请求。
// GET /api/health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	overall := "healthy"
	components := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			components[name] = "unavailable"
			overall = "degraded"
			continue
		}
		components[name] = "ok"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     overall,
		"components": components,
	})
}
