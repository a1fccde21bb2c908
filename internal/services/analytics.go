package services

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/huangang/taskboard/internal/models"
	"gorm.io/gorm"
)

const (
	recentActivityWindow = 7 * 24 * time.Hour
	topProjectsLimit     = 5
)

// AnalyticsService computes board statistics on demand; nothing is cached.
type AnalyticsService struct {
	db     *gorm.DB
	access *AccessService
	now    func() time.Time
}

func NewAnalyticsService(db *gorm.DB, access *AccessService) *AnalyticsService {
	return &AnalyticsService{db: db, access: access, now: time.Now}
}

// SetClock replaces the time source used for overdue and recent-activity
// cut-offs.
func (s *AnalyticsService) SetClock(now func() time.Time) {
	s.now = now
}

type AnalyticsOverview struct {
	TotalProjects  int64 `json:"totalProjects"`
	TotalTasks     int64 `json:"totalTasks"`
	MyCreatedTasks int64 `json:"myCreatedTasks"`
	OverdueTasks   int64 `json:"overdueTasks"`
	TotalMembers   int64 `json:"totalMembers"`
}

type RecentActivity struct {
	TasksCreated  int64 `json:"tasksCreated"`
	CommentsAdded int64 `json:"commentsAdded"`
}

type AnalyticsResponse struct {
	Overview        AnalyticsOverview `json:"overview"`
	TasksByStatus   map[string]int64  `json:"tasksByStatus"`
	TasksByPriority map[string]int64  `json:"tasksByPriority"`
	RecentActivity  RecentActivity    `json:"recentActivity"`
	TopProjects     []models.Project  `json:"topProjects"`
}

type AssigneeTask struct {
	ID      string          `json:"id"`
	Title   string          `json:"title"`
	Status  string          `json:"status"`
	Project *models.Project `json:"project"`
}

type AssigneeStats struct {
	Name         string         `json:"name"`
	TaskCount    int            `json:"taskCount"`
	ProjectCount int            `json:"projectCount"`
	Tasks        []AssigneeTask `json:"tasks"`
}

type ProjectAnalytics struct {
	TotalTasks      int64            `json:"totalTasks"`
	CompletedTasks  int64            `json:"completedTasks"`
	CompletionRate  float64          `json:"completionRate"`
	TasksByStatus   map[string]int64 `json:"tasksByStatus"`
	TasksByPriority map[string]int64 `json:"tasksByPriority"`
}

// Overview aggregates over every project the user created or belongs to.
func (s *AnalyticsService) Overview(ctx context.Context, user *models.User) (*AnalyticsResponse, error) {
	resp := &AnalyticsResponse{
		TasksByStatus:   zeroFilled(models.TaskStatuses),
		TasksByPriority: zeroFilled(models.Priorities),
		TopProjects:     []models.Project{},
	}

	ids, err := s.access.VisibleProjectIDs(ctx, user)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return resp, nil
	}

	db := s.db.WithContext(ctx)
	now := s.now().UTC()
	tasks := func() *gorm.DB { return db.Model(&models.Task{}).Where("project_id IN ?", ids) }

	resp.Overview.TotalProjects = int64(len(ids))
	if err := tasks().Count(&resp.Overview.TotalTasks).Error; err != nil {
		return nil, err
	}
	if err := tasks().Where("creator_id = ?", user.ID).Count(&resp.Overview.MyCreatedTasks).Error; err != nil {
		return nil, err
	}
	if err := tasks().Where("due_date < ? AND status <> ?", now, models.TaskStatusDone).Count(&resp.Overview.OverdueTasks).Error; err != nil {
		return nil, err
	}
	if err := mergeTotals(tasks(), "status", resp.TasksByStatus); err != nil {
		return nil, err
	}
	if err := mergeTotals(tasks(), "priority", resp.TasksByPriority); err != nil {
		return nil, err
	}

	since := now.Add(-recentActivityWindow)
	if err := tasks().Where("created_at >= ?", since).Count(&resp.RecentActivity.TasksCreated).Error; err != nil {
		return nil, err
	}
	err = db.Model(&models.Comment{}).
		Where("created_at >= ?", since).
		Where("task_id IN (?)", db.Model(&models.Task{}).Select("id").Where("project_id IN ?", ids)).
		Count(&resp.RecentActivity.CommentsAdded).Error
	if err != nil {
		return nil, err
	}

	var assigned []models.Task
	if err := tasks().Select("id", "assignee_names").Find(&assigned).Error; err != nil {
		return nil, err
	}
	names := make(map[string]struct{})
	for _, t := range assigned {
		for _, name := range t.AssigneeNames {
			if name = strings.TrimSpace(name); name != "" {
				names[name] = struct{}{}
			}
		}
	}
	resp.Overview.TotalMembers = int64(len(names))

	if resp.TopProjects, err = s.topProjects(ctx, ids); err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *AnalyticsService) topProjects(ctx context.Context, ids []string) ([]models.Project, error) {
	db := s.db.WithContext(ctx)

	var projects []models.Project
	if err := db.Select("id", "name", "color", "updated_at").Where("id IN ?", ids).Find(&projects).Error; err != nil {
		return nil, err
	}
	taskCounts, err := countBy(db, &models.Task{}, "project_id", ids)
	if err != nil {
		return nil, err
	}
	memberCounts, err := countBy(db, &models.ProjectMember{}, "project_id", ids)
	if err != nil {
		return nil, err
	}

	for i := range projects {
		projects[i].Count = &models.ProjectCount{
			Tasks:   taskCounts[projects[i].ID],
			Members: memberCounts[projects[i].ID],
		}
	}
	sort.SliceStable(projects, func(i, j int) bool {
		if projects[i].Count.Tasks != projects[j].Count.Tasks {
			return projects[i].Count.Tasks > projects[j].Count.Tasks
		}
		return projects[i].Name < projects[j].Name
	})
	if len(projects) > topProjectsLimit {
		projects = projects[:topProjectsLimit]
	}
	return projects, nil
}

// Assignees groups visible tasks by trimmed assignee name, busiest first.
func (s *AnalyticsService) Assignees(ctx context.Context, user *models.User) ([]AssigneeStats, error) {
	out := []AssigneeStats{}

	ids, err := s.access.VisibleProjectIDs(ctx, user)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	var tasks []models.Task
	err = s.db.WithContext(ctx).
		Select("id", "title", "status", "assignee_names", "project_id", "created_at").
		Preload("Project", projectSummary).
		Where("project_id IN ?", ids).
		Order("created_at ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}

	index := make(map[string]int)
	projects := make(map[string]map[string]struct{})
	for _, task := range tasks {
		for _, name := range task.AssigneeNames {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			i, ok := index[name]
			if !ok {
				i = len(out)
				index[name] = i
				out = append(out, AssigneeStats{Name: name, Tasks: []AssigneeTask{}})
				projects[name] = make(map[string]struct{})
			}
			out[i].TaskCount++
			out[i].Tasks = append(out[i].Tasks, AssigneeTask{
				ID:      task.ID,
				Title:   task.Title,
				Status:  task.Status,
				Project: task.Project,
			})
			projects[name][task.ProjectID] = struct{}{}
		}
	}

	for i := range out {
		out[i].ProjectCount = len(projects[out[i].Name])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TaskCount > out[j].TaskCount })
	return out, nil
}

// Project returns completion statistics for one project.
func (s *AnalyticsService) Project(ctx context.Context, user *models.User, projectID string) (*ProjectAnalytics, error) {
	if _, err := s.access.RequireAccess(ctx, user, projectID); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	tasks := func() *gorm.DB { return db.Model(&models.Task{}).Where("project_id = ?", projectID) }

	resp := &ProjectAnalytics{
		TasksByStatus:   zeroFilled(models.TaskStatuses),
		TasksByPriority: zeroFilled(models.Priorities),
	}
	if err := tasks().Count(&resp.TotalTasks).Error; err != nil {
		return nil, err
	}
	if err := mergeTotals(tasks(), "status", resp.TasksByStatus); err != nil {
		return nil, err
	}
	if err := mergeTotals(tasks(), "priority", resp.TasksByPriority); err != nil {
		return nil, err
	}
	resp.CompletedTasks = resp.TasksByStatus[models.TaskStatusDone]
	if resp.TotalTasks > 0 {
		rate := float64(resp.CompletedTasks) / float64(resp.TotalTasks) * 100
		resp.CompletionRate = math.Round(rate*100) / 100
	}
	return resp, nil
}

func zeroFilled(keys []string) map[string]int64 {
	out := make(map[string]int64, len(keys))
	for _, k := range keys {
		out[k] = 0
	}
	return out
}

func mergeTotals(query *gorm.DB, column string, into map[string]int64) error {
	var rows []groupCount
	err := query.
		Select(column + " AS group_key, COUNT(*) AS total").
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return err
	}
	for _, r := range rows {
		into[r.GroupKey] = r.Total
	}
	return nil
}
