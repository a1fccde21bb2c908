package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/huangang/taskboard/internal/models"
	"github.com/huangang/taskboard/pkg/logger"
	"github.com/huangang/taskboard/pkg/response"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TaskService struct {
	db       *gorm.DB
	access   *AccessService
	projects *ProjectService
	events   Broadcaster
	queue    TaskQueue
}

func NewTaskService(db *gorm.DB, access *AccessService, projects *ProjectService, events Broadcaster, queue TaskQueue) *TaskService {
	return &TaskService{db: db, access: access, projects: projects, events: events, queue: queue}
}

type TaskListRequest struct {
	ProjectID string `form:"projectId"`
	Status    string `form:"status" binding:"omitempty,oneof=TODO IN_PROGRESS IN_REVIEW DONE"`
	Priority  string `form:"priority" binding:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	Search    string `form:"search"`
}

type CreateTaskRequest struct {
	Title         string   `json:"title" binding:"required"`
	ProjectID     string   `json:"projectId" binding:"required"`
	Description   string   `json:"description"`
	Status        string   `json:"status" binding:"omitempty,oneof=TODO IN_PROGRESS IN_REVIEW DONE"`
	Priority      string   `json:"priority" binding:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	AssigneeNames []string `json:"assigneeNames"`
	DueDate       string   `json:"dueDate" binding:"omitempty,isodate"`
}

// UpdateTaskRequest is partial: nil fields are left unchanged. An empty
// assigneeNames list, description or dueDate clears the stored value.
type UpdateTaskRequest struct {
	Title         *string   `json:"title"`
	Description   *string   `json:"description"`
	Status        *string   `json:"status" binding:"omitempty,oneof=TODO IN_PROGRESS IN_REVIEW DONE"`
	Priority      *string   `json:"priority" binding:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	AssigneeNames *[]string `json:"assigneeNames"`
	DueDate       *string   `json:"dueDate" binding:"omitempty,isodate"`
	Position      *int      `json:"position"`
}

type ReorderItem struct {
	ID       string `json:"id" binding:"required"`
	Position *int   `json:"position" binding:"required"`
}

type ReorderTasksRequest struct {
	Tasks []ReorderItem `json:"tasks" binding:"required,dive"`
}

type CreateCommentRequest struct {
	Content string `json:"content" binding:"required"`
}

func projectSummary(db *gorm.DB) *gorm.DB {
	return db.Select("id", "name", "color")
}

// List returns tasks across the projects visible to the user, or within one
// project when ProjectID is set.
func (s *TaskService) List(ctx context.Context, user *models.User, req *TaskListRequest) ([]models.Task, error) {
	db := s.db.WithContext(ctx)
	query := db.Model(&models.Task{})

	if req.ProjectID != "" {
		if _, err := s.access.RequireAccess(ctx, user, req.ProjectID); err != nil {
			return nil, err
		}
		query = query.Where("project_id = ?", req.ProjectID)
	} else {
		ids, err := s.access.VisibleProjectIDs(ctx, user)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return []models.Task{}, nil
		}
		query = query.Where("project_id IN ?", ids)
	}

	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.Priority != "" {
		query = query.Where("priority = ?", req.Priority)
	}
	if term := strings.ToLower(strings.TrimSpace(req.Search)); term != "" {
		like := "%" + term + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}

	tasks := []models.Task{}
	err := query.
		Preload("Project", projectSummary).
		Preload("Creator", publicUser).
		Order("position ASC, created_at DESC").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}

	if err := attachTaskCounts(db, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Get returns a task with its project members, comments (oldest first) and
// attachments (newest first).
func (s *TaskService) Get(ctx context.Context, user *models.User, id string) (*models.Task, error) {
	task, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.RequireAccess(ctx, user, task.ProjectID); err != nil {
		return nil, err
	}

	var detail models.Task
	err = s.db.WithContext(ctx).
		Preload("Project").
		Preload("Project.Members.User", publicUser).
		Preload("Creator", publicUser).
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Comments.User", publicUser).
		Preload("Files", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }).
		Preload("Files.User", publicUser).
		First(&detail, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create appends the task to the end of the project's board.
func (s *TaskService) Create(ctx context.Context, user *models.User, req *CreateTaskRequest) (*models.Task, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, requiredField("title")
	}
	if _, err := s.access.RequireAccess(ctx, user, req.ProjectID); err != nil {
		return nil, err
	}

	dueDate, err := parseDueDate(req.DueDate)
	if err != nil {
		return nil, err
	}

	task := models.Task{
		Title:         title,
		Description:   optionalText(req.Description),
		Status:        defaultString(req.Status, models.TaskStatusTodo),
		Priority:      defaultString(req.Priority, models.PriorityMedium),
		DueDate:       dueDate,
		AssigneeNames: cleanAssigneeNames(req.AssigneeNames),
		ProjectID:     req.ProjectID,
		CreatorID:     user.ID,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxPosition int
		if err := tx.Model(&models.Task{}).
			Where("project_id = ?", req.ProjectID).
			Select("COALESCE(MAX(position), 0)").
			Scan(&maxPosition).Error; err != nil {
			return err
		}
		task.Position = maxPosition + 1
		return tx.Create(&task).Error
	})
	if err != nil {
		return nil, err
	}

	membersAdded := s.syncAssignees(ctx, req.ProjectID, task.AssigneeNames)

	created, err := s.loadSummary(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	s.events.Publish(req.ProjectID, EventTaskCreated, created)
	if membersAdded {
		s.publishProjectUpdated(ctx, req.ProjectID)
	}
	return created, nil
}

func (s *TaskService) Update(ctx context.Context, user *models.User, id string, req *UpdateTaskRequest) (*models.Task, error) {
	task, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.RequireAccess(ctx, user, task.ProjectID); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		if title := strings.TrimSpace(*req.Title); title != "" {
			updates["title"] = title
		}
	}
	if req.Description != nil {
		updates["description"] = optionalText(*req.Description)
	}
	if req.Status != nil && *req.Status != "" {
		updates["status"] = *req.Status
	}
	if req.Priority != nil && *req.Priority != "" {
		updates["priority"] = *req.Priority
	}
	var names datatypes.JSONSlice[string]
	if req.AssigneeNames != nil {
		names = cleanAssigneeNames(*req.AssigneeNames)
		updates["assignee_names"] = names
	}
	if req.DueDate != nil {
		dueDate, err := parseDueDate(*req.DueDate)
		if err != nil {
			return nil, err
		}
		updates["due_date"] = dueDate
	}
	if req.Position != nil {
		updates["position"] = *req.Position
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	membersAdded := len(names) > 0 && s.syncAssignees(ctx, task.ProjectID, names)

	updated, err := s.loadSummary(ctx, id)
	if err != nil {
		return nil, err
	}
	s.events.Publish(task.ProjectID, EventTaskUpdated, updated)
	if membersAdded {
		s.publishProjectUpdated(ctx, task.ProjectID)
	}
	return updated, nil
}

// Delete removes the task with its comments and attachments. Positions of
// the remaining tasks are left as they are.
func (s *TaskService) Delete(ctx context.Context, user *models.User, id string) error {
	task, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.access.RequireAccess(ctx, user, task.ProjectID); err != nil {
		return err
	}

	db := s.db.WithContext(ctx)
	var paths []string
	if err := db.Model(&models.File{}).Where("task_id = ?", id).Pluck("path", &paths).Error; err != nil {
		return err
	}
	if err := db.Delete(&models.Task{}, "id = ?", id).Error; err != nil {
		return err
	}

	if len(paths) > 0 {
		if err := s.queue.Enqueue(&FileCleanupTask{Paths: paths, ProjectID: task.ProjectID}); err != nil {
			logger.Warn().Err(err).Str("task_id", id).Msg("failed to enqueue file cleanup")
		}
	}

	s.events.Publish(task.ProjectID, EventTaskDeleted, map[string]string{"taskId": id})
	return nil
}

// Reorder applies every position in one transaction. A task outside the
// project aborts the whole batch.
func (s *TaskService) Reorder(ctx context.Context, user *models.User, projectID string, req *ReorderTasksRequest) error {
	if _, err := s.access.RequireAccess(ctx, user, projectID); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range req.Tasks {
			result := tx.Model(&models.Task{}).
				Where("id = ? AND project_id = ?", item.ID, projectID).
				Updates(map[string]interface{}{"position": *item.Position})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return response.NewNotFound("Task not found: " + item.ID)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.events.Publish(projectID, EventTasksReordered, map[string]interface{}{"tasks": req.Tasks})
	return nil
}

func (s *TaskService) AddComment(ctx context.Context, user *models.User, taskID string, req *CreateCommentRequest) (*models.Comment, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, requiredField("content")
	}

	task, err := s.find(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.RequireAccess(ctx, user, task.ProjectID); err != nil {
		return nil, err
	}

	comment := models.Comment{Content: content, TaskID: taskID, UserID: user.ID}
	db := s.db.WithContext(ctx)
	if err := db.Create(&comment).Error; err != nil {
		return nil, err
	}
	if err := db.Preload("User", publicUser).First(&comment, "id = ?", comment.ID).Error; err != nil {
		return nil, err
	}

	s.events.Publish(task.ProjectID, EventCommentAdded, &comment)
	return &comment, nil
}

func (s *TaskService) find(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	if err := s.db.WithContext(ctx).Select("id", "project_id").First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("Task not found")
		}
		return nil, err
	}
	return &task, nil
}

// loadSummary is the shape returned by create and update and carried by
// their events.
func (s *TaskService) loadSummary(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	err := s.db.WithContext(ctx).
		Preload("Project", projectSummary).
		Preload("Creator", publicUser).
		First(&task, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *TaskService) publishProjectUpdated(ctx context.Context, projectID string) {
	project, err := s.projects.load(ctx, projectID, false)
	if err != nil {
		logger.Warn().Err(err).Str("project_id", projectID).Msg("failed to load project for update event")
		return
	}
	s.events.Publish(projectID, EventProjectUpdated, project)
}

// attachTaskCounts fills the comment and file counts of each task.
func attachTaskCounts(db *gorm.DB, tasks []models.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	ids := make([]string, len(tasks))
	for i := range tasks {
		ids[i] = tasks[i].ID
	}

	comments, err := countBy(db, &models.Comment{}, "task_id", ids)
	if err != nil {
		return err
	}
	files, err := countBy(db, &models.File{}, "task_id", ids)
	if err != nil {
		return err
	}
	for i := range tasks {
		tasks[i].Count = &models.TaskCount{Comments: comments[tasks[i].ID], Files: files[tasks[i].ID]}
	}
	return nil
}

// parseDueDate accepts RFC 3339 timestamps and plain dates. Blank input means
// no due date.
func parseDueDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, ok := ParseISODate(value)
	if !ok {
		return nil, response.NewValidation([]response.FieldError{{Field: "dueDate", Message: "must be a valid ISO 8601 date"}})
	}
	utc := t.UTC()
	return &utc, nil
}

// ParseISODate parses the date formats accepted for due dates.
func ParseISODate(value string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// cleanAssigneeNames trims names and drops blanks. An empty result is stored
// as null.
func cleanAssigneeNames(names []string) datatypes.JSONSlice[string] {
	var out []string
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return datatypes.JSONSlice[string](out)
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
