package handlers

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangang/taskboard/internal/models"
	"github.com/huangang/taskboard/internal/services"
	"gorm.io/gorm"
)

// MetricsHandler exposes gauges in the Prometheus text format.
type MetricsHandler struct {
	db        *gorm.DB
	hub       *services.EventHub
	queue     services.TaskQueue
	startTime time.Time
}

func NewMetricsHandler(db *gorm.DB, hub *services.EventHub, queue services.TaskQueue) *MetricsHandler {
	return &MetricsHandler{db: db, hub: hub, queue: queue, startTime: time.Now()}
}

// Metrics returns Prometheus-compatible text format metrics.
// GET /metrics
func (h *MetricsHandler) Metrics(c *gin.Context) {
	var b strings.Builder

	// -- Runtime metrics --
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	writeGauge(&b, "taskboard_uptime_seconds", "Time since server start in seconds", time.Since(h.startTime).Seconds())
	writeGauge(&b, "taskboard_goroutines", "Number of active goroutines", float64(runtime.NumGoroutine()))
	writeGauge(&b, "taskboard_memory_alloc_bytes", "Current heap allocation in bytes", float64(m.Alloc))
	writeGauge(&b, "taskboard_memory_sys_bytes", "Total memory obtained from OS in bytes", float64(m.Sys))
	writeGauge(&b, "taskboard_gc_runs_total", "Total number of GC runs", float64(m.NumGC))

	// -- Database metrics --
	if sqlDB, err := h.db.DB(); err == nil {
		stats := sqlDB.Stats()
		writeGauge(&b, "taskboard_db_open_connections", "Number of open DB connections", float64(stats.OpenConnections))
		writeGauge(&b, "taskboard_db_in_use_connections", "Number of in-use DB connections", float64(stats.InUse))
		writeGauge(&b, "taskboard_db_idle_connections", "Number of idle DB connections", float64(stats.Idle))
	}

	// -- Stream metrics --
	writeGauge(&b, "taskboard_stream_active_clients", "Number of connected SSE and WebSocket clients", float64(h.hub.ClientCount()))

	// -- Queue metrics --
	queueAsync := 0.0
	if h.queue != nil && h.queue.IsAsync() {
		queueAsync = 1.0
	}
	writeGauge(&b, "taskboard_queue_async_enabled", "Whether async queue (Redis) is enabled (1=yes, 0=no)", queueAsync)

	// -- Domain metrics --
	db := h.db.WithContext(c.Request.Context())
	var projects, tasks, overdue, users, files int64
	db.Model(&models.Project{}).Count(&projects)
	db.Model(&models.Task{}).Count(&tasks)
	db.Model(&models.Task{}).Where("due_date < ? AND status <> ?", time.Now().UTC(), models.TaskStatusDone).Count(&overdue)
	db.Model(&models.User{}).Count(&users)
	db.Model(&models.File{}).Count(&files)

	writeGauge(&b, "taskboard_projects_total", "Total number of projects", float64(projects))
	writeGauge(&b, "taskboard_tasks_total", "Total number of tasks", float64(tasks))
	writeGauge(&b, "taskboard_tasks_overdue", "Tasks past their due date and not done", float64(overdue))
	writeGauge(&b, "taskboard_users_total", "Total number of users", float64(users))
	writeGauge(&b, "taskboard_files_total", "Total number of uploaded files", float64(files))

	c.Data(200, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
}

func writeGauge(b *strings.Builder, name, help string, value float64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s gauge\n", name)
	fmt.Fprintf(b, "%s %g\n\n", name, value)
}
