package services

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/huangang/taskboard/internal/models"
	"github.com/huangang/taskboard/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

const (
	orphanSweepSchedule = "@hourly"
	logPruneSchedule    = "30 3 * * *"
	// orphanGracePeriod leaves room for an upload whose row is still being
	// written.
	orphanGracePeriod = time.Hour
)

// Janitor runs periodic housekeeping: removing stored uploads that no file
// row references and pruning old system logs.
type Janitor struct {
	db            *gorm.DB
	storage       *LocalStorage
	logs          *SystemLogService
	retentionDays int
	now           func() time.Time
	scheduler     *cron.Cron
}

func NewJanitor(db *gorm.DB, storage *LocalStorage, logs *SystemLogService, retentionDays int) *Janitor {
	return &Janitor{
		db:            db,
		storage:       storage,
		logs:          logs,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

func (j *Janitor) Start() error {
	j.scheduler = cron.New()

	if _, err := j.scheduler.AddFunc(orphanSweepSchedule, func() {
		if _, err := j.SweepOrphans(context.Background()); err != nil {
			logger.Errorf("[Janitor] Orphan sweep failed: %v", err)
		}
	}); err != nil {
		return err
	}
	if _, err := j.scheduler.AddFunc(logPruneSchedule, func() {
		j.PruneLogs(context.Background())
	}); err != nil {
		return err
	}

	j.scheduler.Start()
	logger.Infof("[Janitor] Scheduler started (log retention %d days)", j.retentionDays)
	return nil
}

// Stop waits for running jobs to finish.
func (j *Janitor) Stop() {
	if j.scheduler == nil {
		return
	}
	<-j.scheduler.Stop().Done()
}

// SweepOrphans deletes files in the upload directory that are older than
// the grace period and not referenced by any file row.
func (j *Janitor) SweepOrphans(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(j.storage.Dir())
	if err != nil {
		return 0, err
	}

	var known []string
	if err := j.db.WithContext(ctx).Model(&models.File{}).Pluck("filename", &known).Error; err != nil {
		return 0, err
	}
	referenced := make(map[string]struct{}, len(known))
	for _, name := range known {
		referenced[name] = struct{}{}
	}

	cutoff := j.now().Add(-orphanGracePeriod)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := referenced[entry.Name()]; ok {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(j.storage.Dir(), entry.Name())
		if err := j.storage.Remove(path); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("failed to remove orphaned upload")
			continue
		}
		removed++
	}

	if removed > 0 {
		logger.Infof("[Janitor] Removed %d orphaned uploads", removed)
	}
	return removed, nil
}

func (j *Janitor) PruneLogs(ctx context.Context) {
	if j.retentionDays <= 0 {
		logger.Debug().Msg("log cleanup disabled (retention_days <= 0)")
		return
	}

	deleted, err := j.logs.CleanupOldLogs(ctx, j.retentionDays, j.now())
	if err != nil {
		logger.Errorf("[Janitor] Failed to cleanup old logs: %v", err)
		return
	}
	if deleted > 0 {
		logger.Infof("[Janitor] Cleaned up %d logs older than %d days", deleted, j.retentionDays)
	}
}
