package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/taskboard/internal/middleware"
	"github.com/huangang/taskboard/internal/services"
	"github.com/huangang/taskboard/pkg/response"
)

type AnalyticsHandler struct {
	analyticsService *services.AnalyticsService
}

func NewAnalyticsHandler(analyticsService *services.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analyticsService: analyticsService}
}

// Overview returns totals and breakdowns over the user's visible projects
// GET /api/analytics
func (h *AnalyticsHandler) Overview(c *gin.Context) {
	resp, err := h.analyticsService.Overview(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// Assignees returns per-assignee workload
// GET /api/analytics/assignees
func (h *AnalyticsHandler) Assignees(c *gin.Context) {
	resp, err := h.analyticsService.Assignees(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// Project returns completion statistics for one project
// GET /api/analytics/project/:id
func (h *AnalyticsHandler) Project(c *gin.Context) {
	resp, err := h.analyticsService.Project(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}
