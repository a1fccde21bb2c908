package main

import (
	"fmt"

	"github.com/huangang/taskboard/internal/config"
	"github.com/huangang/taskboard/internal/handlers"
	"github.com/huangang/taskboard/internal/middleware"
	"github.com/huangang/taskboard/internal/models"
	"github.com/huangang/taskboard/internal/services"
	"github.com/huangang/taskboard/internal/utils"
	"github.com/huangang/taskboard/pkg/logger"
	"gorm.io/gorm"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	cfg    *config.Config
	db     *gorm.DB
	tokens *utils.TokenManager

	hub            *services.EventHub
	closeBroadcast func()
	taskQueue      services.TaskQueue
	worker         *services.Worker
	janitor        *services.Janitor
	authLimiter    *middleware.RateLimiter

	auth       *services.AuthService
	access     *services.AccessService
	systemLogs *services.SystemLogService

	authHandler      *handlers.AuthHandler
	userHandler      *handlers.UserHandler
	projectHandler   *handlers.ProjectHandler
	memberHandler    *handlers.ProjectMemberHandler
	taskHandler      *handlers.TaskHandler
	fileHandler      *handlers.FileHandler
	analyticsHandler *handlers.AnalyticsHandler
	eventsHandler    *handlers.EventsHandler
	healthHandler    *handlers.HealthHandler
	metricsHandler   *handlers.MetricsHandler
	systemLogHandler *handlers.SystemLogHandler
}

// openDatabase connects and migrates the configured database.
func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := models.InitDB(&cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := models.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

// bootstrap initializes all application dependencies: database, services, background jobs.
func bootstrap(cfg *config.Config) (*appServices, error) {
	if err := handlers.RegisterValidators(); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}

	storage, err := services.NewLocalStorage(cfg.Storage.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare upload dir: %w", err)
	}

	// Events fan out through Redis when enabled, otherwise in-process
	hub := services.NewEventHub()
	broadcaster, closeBroadcast := services.InitBroadcaster(&cfg.Redis, hub)

	// Task queue (uses Redis if enabled, otherwise sync mode)
	taskQueue := services.NewTaskQueue(&cfg.Redis, storage.ProcessCleanup)
	worker := services.NewWorker(&cfg.Redis, storage.ProcessCleanup)
	if worker != nil {
		if err := worker.Start(); err != nil {
			logger.Warn().Err(err).Msg("Failed to start worker, cleanup tasks will wait in Redis")
		}
	}

	tokens := utils.NewTokenManager(cfg.JWT.Secret, cfg.JWT.ExpireHour)
	systemLogs := services.NewSystemLogService(db)

	janitor := services.NewJanitor(db, storage, systemLogs, cfg.Logging.RetentionDays)
	if err := janitor.Start(); err != nil {
		logger.Warn().Err(err).Msg("Failed to start janitor")
	}

	access := services.NewAccessService(db)
	auth := services.NewAuthService(db, tokens)
	projects := services.NewProjectService(db, access, broadcaster, taskQueue)
	members := services.NewProjectMemberService(db, access, broadcaster)
	tasks := services.NewTaskService(db, access, projects, broadcaster, taskQueue)
	files := services.NewFileService(db, access, storage, broadcaster, cfg.Storage.MaxUploadSize)

	return &appServices{
		cfg:            cfg,
		db:             db,
		tokens:         tokens,
		hub:            hub,
		closeBroadcast: closeBroadcast,
		taskQueue:      taskQueue,
		worker:         worker,
		janitor:        janitor,
		authLimiter:    middleware.NewRateLimiter(5, 10),
		auth:           auth,
		access:         access,
		systemLogs:     systemLogs,

		authHandler:      handlers.NewAuthHandler(auth),
		userHandler:      handlers.NewUserHandler(services.NewUserService(db)),
		projectHandler:   handlers.NewProjectHandler(projects),
		memberHandler:    handlers.NewProjectMemberHandler(members),
		taskHandler:      handlers.NewTaskHandler(tasks),
		fileHandler:      handlers.NewFileHandler(files, cfg.Storage.MaxUploadSize),
		analyticsHandler: handlers.NewAnalyticsHandler(services.NewAnalyticsService(db, access)),
		eventsHandler:    handlers.NewEventsHandler(hub, access, cfg.Server.CORSOrigins),
		healthHandler:    handlers.NewHealthHandler(db, taskQueue, hub),
		metricsHandler:   handlers.NewMetricsHandler(db, hub, taskQueue),
		systemLogHandler: handlers.NewSystemLogHandler(systemLogs),
	}, nil
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.janitor.Stop()
	s.authLimiter.Stop()
	logger.Info().Msg("All schedulers stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		s.taskQueue.Close()
	}
	s.closeBroadcast()

	if sqlDB, err := s.db.DB(); err == nil {
		sqlDB.Close()
	}
}
