package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/taskboard/internal/services"
	"github.com/huangang/taskboard/pkg/response"
)

type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// List searches users by name or email for member pickers
// GET /api/users?search=
func (h *UserHandler) List(c *gin.Context) {
	var req services.UserSearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, response.BindError(err))
		return
	}

	users, err := h.userService.Search(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, users)
}

// GetByID returns one user's public profile
// GET /api/users/:id
func (h *UserHandler) GetByID(c *gin.Context) {
	user, err := h.userService.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, user)
}
