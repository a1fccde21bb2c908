package services

import (
	"context"
	"strings"

	"github.com/huangang/taskboard/internal/models"
	"github.com/huangang/taskboard/pkg/logger"
	"github.com/huangang/taskboard/pkg/response"
	"gorm.io/gorm"
)

type ProjectService struct {
	db     *gorm.DB
	access *AccessService
	events Broadcaster
	queue  TaskQueue
}

func NewProjectService(db *gorm.DB, access *AccessService, events Broadcaster, queue TaskQueue) *ProjectService {
	return &ProjectService{db: db, access: access, events: events, queue: queue}
}

type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Color       string `json:"color" binding:"omitempty,hexcolor"`
}

// UpdateProjectRequest is partial: nil fields are left unchanged. An empty
// description clears it.
type UpdateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Color       *string `json:"color" binding:"omitempty,hexcolor"`
}

// List returns every project the user created or belongs to, most recently
// updated first.
func (s *ProjectService) List(ctx context.Context, user *models.User) ([]models.Project, error) {
	db := s.db.WithContext(ctx)

	projects := []models.Project{}
	err := db.Preload("Creator", publicUser).
		Preload("Members.User", publicUser).
		Where("creator_id = ?", user.ID).
		Or("id IN (?)", db.Model(&models.ProjectMember{}).Select("project_id").Where("user_id = ?", user.ID)).
		Order("updated_at DESC").
		Find(&projects).Error
	if err != nil {
		return nil, err
	}

	if err := s.attachCounts(ctx, projects, false); err != nil {
		return nil, err
	}
	return projects, nil
}

// Get returns the project with its members and its board, tasks ordered by
// position.
func (s *ProjectService) Get(ctx context.Context, user *models.User, id string) (*models.Project, error) {
	if _, err := s.access.RequireAccess(ctx, user, id); err != nil {
		return nil, err
	}
	return s.load(ctx, id, true)
}

// Create inserts the project and its creator's MANAGER membership together.
func (s *ProjectService) Create(ctx context.Context, user *models.User, req *CreateProjectRequest) (*models.Project, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, requiredField("name")
	}
	color := req.Color
	if color == "" {
		color = models.DefaultProjectColor
	}

	project := models.Project{
		Name:        name,
		Description: optionalText(req.Description),
		Color:       color,
		CreatorID:   user.ID,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&project).Error; err != nil {
			return err
		}
		member := models.ProjectMember{ProjectID: project.ID, UserID: user.ID, Role: models.RoleManager}
		return tx.Create(&member).Error
	})
	if err != nil {
		return nil, err
	}

	created, err := s.load(ctx, project.ID, false)
	if err != nil {
		return nil, err
	}
	s.events.Publish(created.ID, EventProjectCreated, created)
	return created, nil
}

func (s *ProjectService) Update(ctx context.Context, user *models.User, id string, req *UpdateProjectRequest) (*models.Project, error) {
	if _, err := s.access.RequireMutation(ctx, user, id); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		if name := strings.TrimSpace(*req.Name); name != "" {
			updates["name"] = name
		}
	}
	if req.Description != nil {
		updates["description"] = optionalText(*req.Description)
	}
	if req.Color != nil && *req.Color != "" {
		updates["color"] = *req.Color
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	updated, err := s.load(ctx, id, false)
	if err != nil {
		return nil, err
	}
	s.events.Publish(id, EventProjectUpdated, updated)
	return updated, nil
}

// Delete removes the project; members, tasks, comments and file rows go with
// it through foreign key cascades. The stored uploads are handed to the
// cleanup queue afterwards.
func (s *ProjectService) Delete(ctx context.Context, user *models.User, id string) error {
	if _, err := s.access.RequireMutation(ctx, user, id); err != nil {
		return err
	}

	db := s.db.WithContext(ctx)
	var paths []string
	err := db.Model(&models.File{}).
		Where("project_id = ?", id).
		Or("task_id IN (?)", db.Model(&models.Task{}).Select("id").Where("project_id = ?", id)).
		Pluck("path", &paths).Error
	if err != nil {
		return err
	}

	if err := db.Delete(&models.Project{}, "id = ?", id).Error; err != nil {
		return err
	}

	if len(paths) > 0 {
		if err := s.queue.Enqueue(&FileCleanupTask{Paths: paths, ProjectID: id}); err != nil {
			// rows are gone; the janitor sweeps the leftovers
			logger.Warn().Err(err).Str("project_id", id).Int("files", len(paths)).Msg("failed to enqueue file cleanup")
		}
	}

	s.events.Publish(id, EventProjectDeleted, map[string]string{"projectId": id})
	return nil
}

// load fetches a project with creator, members and counts. withTasks also
// loads the board.
func (s *ProjectService) load(ctx context.Context, id string, withTasks bool) (*models.Project, error) {
	query := s.db.WithContext(ctx).
		Preload("Creator", publicUser).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("joined_at ASC") }).
		Preload("Members.User", publicUser)
	if withTasks {
		query = query.
			Preload("Tasks", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, created_at DESC") }).
			Preload("Tasks.Creator", publicUser)
	}

	var project models.Project
	if err := query.First(&project, "id = ?", id).Error; err != nil {
		return nil, err
	}

	if withTasks {
		if err := attachTaskCounts(s.db.WithContext(ctx), project.Tasks); err != nil {
			return nil, err
		}
	}

	projects := []models.Project{project}
	if err := s.attachCounts(ctx, projects, true); err != nil {
		return nil, err
	}
	return &projects[0], nil
}

type groupCount struct {
	GroupKey string
	Total    int64
}

func countBy(db *gorm.DB, model interface{}, column string, keys []string) (map[string]int64, error) {
	var rows []groupCount
	err := db.Model(model).
		Select(column + " AS group_key, COUNT(*) AS total").
		Where(column+" IN ?", keys).
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.GroupKey] = r.Total
	}
	return out, nil
}

// attachCounts fills Count on each project. Files are only counted for the
// detail view.
func (s *ProjectService) attachCounts(ctx context.Context, projects []models.Project, withFiles bool) error {
	if len(projects) == 0 {
		return nil
	}
	ids := make([]string, len(projects))
	for i := range projects {
		ids[i] = projects[i].ID
	}

	db := s.db.WithContext(ctx)
	tasks, err := countBy(db, &models.Task{}, "project_id", ids)
	if err != nil {
		return err
	}
	members, err := countBy(db, &models.ProjectMember{}, "project_id", ids)
	if err != nil {
		return err
	}
	var files map[string]int64
	if withFiles {
		if files, err = countBy(db, &models.File{}, "project_id", ids); err != nil {
			return err
		}
	}

	for i := range projects {
		count := &models.ProjectCount{Tasks: tasks[projects[i].ID], Members: members[projects[i].ID]}
		if withFiles {
			n := files[projects[i].ID]
			count.Files = &n
		}
		projects[i].Count = count
	}
	return nil
}

func requiredField(field string) error {
	return response.NewValidation([]response.FieldError{{Field: field, Message: "is required"}})
}

// optionalText maps blank input to NULL.
func optionalText(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
