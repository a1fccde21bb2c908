package main

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/taskboard/internal/middleware"
	"github.com/huangang/taskboard/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS(svc.cfg.Server.CORSOrigins))

	// Multipart parsing keeps at most this much in memory
	r.MaxMultipartMemory = 8 << 20

	r.GET("/health", svc.healthHandler.CheckHealth)
	r.GET("/metrics", svc.metricsHandler.Metrics)

	authRequired := middleware.AuthRequired(svc.tokens, svc.auth)
	streamAuth := middleware.StreamAuth(svc.tokens, svc.auth)

	api := r.Group("/api")
	api.Use(middleware.AuditLog(svc.systemLogs))
	{
		// Auth routes (public, rate limited)
		auth := api.Group("/auth")
		{
			limited := auth.Group("", svc.authLimiter.Middleware())
			limited.POST("/register", svc.authHandler.Register)
			limited.POST("/login", svc.authHandler.Login)
			limited.POST("/demo", svc.authHandler.Demo)
			auth.GET("/me", authRequired, svc.authHandler.Me)
		}

		// Event streams authenticate from the query string
		api.GET("/events/projects/:projectId", streamAuth, svc.eventsHandler.StreamProject)
		api.GET("/ws", streamAuth, svc.eventsHandler.ServeWS)

		// Protected routes
		protected := api.Group("")
		protected.Use(authRequired)
		{
			// Users
			protected.GET("/users", svc.userHandler.List)
			protected.GET("/users/:id", svc.userHandler.GetByID)

			// Projects
			protected.GET("/projects", svc.projectHandler.List)
			protected.GET("/projects/:id", svc.projectHandler.GetByID)
			protected.POST("/projects", svc.projectHandler.Create)
			protected.PUT("/projects/:id", svc.projectHandler.Update)
			protected.DELETE("/projects/:id", svc.projectHandler.Delete)

			// Project members
			protected.GET("/projects/:id/members", svc.memberHandler.List)
			protected.POST("/projects/:id/members", svc.memberHandler.Add)
			protected.PUT("/projects/:id/members/:userId", svc.memberHandler.UpdateRole)
			protected.DELETE("/projects/:id/members/:userId", svc.memberHandler.Remove)

			// Tasks; reorder takes the project id in the :id position
			protected.GET("/tasks", svc.taskHandler.List)
			protected.GET("/tasks/:id", svc.taskHandler.GetByID)
			protected.POST("/tasks", svc.taskHandler.Create)
			protected.PUT("/tasks/:id", svc.taskHandler.Update)
			protected.DELETE("/tasks/:id", svc.taskHandler.Delete)
			protected.PUT("/tasks/:id/reorder", svc.taskHandler.Reorder)
			protected.POST("/tasks/:id/comments", svc.taskHandler.AddComment)

			// Files
			protected.POST("/files/upload", svc.fileHandler.Upload)
			protected.GET("/files", svc.fileHandler.List)
			protected.GET("/files/:id/download", svc.fileHandler.Download)
			protected.DELETE("/files/:id", svc.fileHandler.Delete)

			// Analytics
			protected.GET("/analytics", svc.analyticsHandler.Overview)
			protected.GET("/analytics/assignees", svc.analyticsHandler.Assignees)
			protected.GET("/analytics/project/:id", svc.analyticsHandler.Project)
		}

		// Admin only
		admin := api.Group("")
		admin.Use(authRequired, middleware.AdminRequired())
		{
			admin.GET("/system-logs", svc.systemLogHandler.List)
			admin.GET("/system-logs/modules", svc.systemLogHandler.GetModules)
		}
	}
}
