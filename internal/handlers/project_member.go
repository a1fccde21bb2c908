package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/taskboard/internal/middleware"
	"github.com/huangang/taskboard/internal/services"
	"github.com/huangang/taskboard/pkg/response"
)

// ProjectMemberHandler provides CRUD endpoints for project members.
type ProjectMemberHandler struct {
	memberService *services.ProjectMemberService
}

func NewProjectMemberHandler(memberService *services.ProjectMemberService) *ProjectMemberHandler {
	return &ProjectMemberHandler{memberService: memberService}
}

// List returns all members of a project.
func (h *ProjectMemberHandler) List(c *gin.Context) {
	members, err := h.memberService.List(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, members)
}

// Add adds a user to a project with the specified role.
func (h *ProjectMemberHandler) Add(c *gin.Context) {
	var req services.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, response.BindError(err))
		return
	}

	member, err := h.memberService.Add(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, member)
}

// UpdateRole changes a member's role.
func (h *ProjectMemberHandler) UpdateRole(c *gin.Context) {
	var req services.UpdateMemberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, response.BindError(err))
		return
	}

	member, err := h.memberService.UpdateRole(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"), c.Param("userId"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, member)
}

// Remove removes a member from a project. Members may always remove themselves.
func (h *ProjectMemberHandler) Remove(c *gin.Context) {
	if err := h.memberService.Remove(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"), c.Param("userId")); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "Member removed successfully"})
}
