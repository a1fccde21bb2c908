package services

import (
	"context"
	"errors"

	"github.com/huangang/taskboard/internal/models"
	"github.com/huangang/taskboard/pkg/logger"
	"gorm.io/gorm"
)

// syncAssignees grants MEMBER access to users whose display name exactly
// matches an assignee name. The earliest registered user wins when names
// collide. Failures are logged per name and never fail the task write.
// It reports whether any membership was added.
func (s *TaskService) syncAssignees(ctx context.Context, projectID string, names []string) bool {
	db := s.db.WithContext(ctx)
	added := false
	seen := make(map[string]struct{}, len(names))

	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}

		ok, err := addAssigneeMember(db, projectID, name)
		if err != nil {
			logger.Warn().Err(err).
				Str("project_id", projectID).
				Str("assignee", name).
				Msg("could not add assignee as project member")
			continue
		}
		added = added || ok
	}
	return added
}

func addAssigneeMember(db *gorm.DB, projectID, name string) (bool, error) {
	var users []models.User
	if err := db.Select("id").Where("name = ?", name).Order("created_at ASC").Limit(1).Find(&users).Error; err != nil {
		return false, err
	}
	if len(users) == 0 {
		return false, nil
	}

	var count int64
	if err := db.Model(&models.ProjectMember{}).
		Where("project_id = ? AND user_id = ?", projectID, users[0].ID).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	member := models.ProjectMember{ProjectID: projectID, UserID: users[0].ID, Role: models.RoleMember}
	if err := db.Create(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
