package handler

import (
	"net/http"
	"strconv"

	"picvault-go/internal/service"

	"github.com/gin-gonic/gin"
)

// UserHandler 负责处理用户管理相关的 HTTP 请求。
type UserHandler struct {
	userService service.UserService
}

// NewUserHandler 创建一个新的 UserHandler 实例。
func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// Create 处理创建用户的请求。
// POST /api/users
func (h *UserHandler) Create(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithDetail(c, http.StatusBadRequest, "请求参数无效: "+err.Error())
		return
	}

	user, err := h.userService.Register(req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// List 处理分页获取用户列表的请求，支持按用户名模糊检索。
// GET /api/users?skip=0&limit=100&search=
func (h *UserHandler) List(c *gin.Context) {
	skip, err := strconv.Atoi(c.DefaultQuery("skip", "0"))
	if err != nil || skip < 0 {
		abortWithDetail(c, http.StatusBadRequest, "skip 参数无效")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		abortWithDetail(c, http.StatusBadRequest, "limit 参数无效")
		return
	}
	search := c.Query("search")

	users, total, err := h.userService.List(skip, limit, search)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users": users,
		"total": total,
		"skip":  skip,
		"limit": limit,
	})
}

// GetByID 处理按 ID 获取用户的请求。
// GET /api/users/:user_id
func (h *UserHandler) GetByID(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil {
		abortWithDetail(c, http.StatusBadRequest, "用户 ID 无效")
		return
	}

	user, err := h.userService.GetByID(uint(userID))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// GetByUsername 处理按用户名获取用户的请求。
// GET /api/users/username/:username
func (h *UserHandler) GetByUsername(c *gin.Context) {
	user, err := h.userService.GetByUsername(c.Param("username"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Update 处理更新用户的请求，未出现的字段保持原值。
// PUT /api/users/:user_id
func (h *UserHandler) Update(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil {
		abortWithDetail(c, http.StatusBadRequest, "用户 ID 无效")
		return
	}

	var req service.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithDetail(c, http.StatusBadRequest, "请求参数无效: "+err.Error())
		return
	}

	user, err := h.userService.Update(uint(userID), req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Delete 处理删除用户的请求，成功时返回 204。
// DELETE /api/users/:user_id
func (h *UserHandler) Delete(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil {
		abortWithDetail(c, http.StatusBadRequest, "用户 ID 无效")
		return
	}

	if err := h.userService.Delete(uint(userID)); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
