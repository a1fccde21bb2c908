package services

import (
	"context"
	"errors"

	"github.com/huangang/taskboard/internal/models"
	"github.com/huangang/taskboard/internal/utils"
	"github.com/huangang/taskboard/pkg/logger"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DemoEmail    = "demo@example.com"
	DemoName     = "Demo User"
	demoPassword = "demo123456"
)

type demoTask struct {
	title, description, status, priority string
	assignees                            []string
}

type demoProject struct {
	name, description, color string
	tasks                    []demoTask
}

var demoProjects = []demoProject{
	{
		name:        "Website Redesign",
		description: "Redesign and rebuild the company website with modern UI/UX",
		color:       "#3b82f6",
		tasks: []demoTask{
			{"Design homepage mockup", "Create initial design mockup for the homepage", models.TaskStatusDone, models.PriorityHigh, []string{"John Doe", "Jane Smith"}},
			{"Review design feedback", "Gather and review feedback from stakeholders", models.TaskStatusInProgress, models.PriorityMedium, []string{"Jane Smith"}},
			{"Implement responsive layout", "Make the design responsive for mobile devices", models.TaskStatusTodo, models.PriorityHigh, []string{"John Doe"}},
			{"Setup development environment", "Configure development tools and environment", models.TaskStatusTodo, models.PriorityMedium, []string{DemoName}},
		},
	},
	{
		name:        "Mobile App Development",
		description: "Build a mobile application for iOS and Android",
		color:       "#10b981",
		tasks: []demoTask{
			{"Wireframe mobile screens", "Create wireframes for main app screens", models.TaskStatusDone, models.PriorityHigh, []string{"Sarah Johnson"}},
			{"Setup React Native project", "Initialize React Native project structure", models.TaskStatusInProgress, models.PriorityUrgent, []string{"Mike Wilson"}},
			{"Design app icons", "Create app icons for iOS and Android", models.TaskStatusInReview, models.PriorityMedium, []string{"Sarah Johnson", "Jane Smith"}},
			{"Implement authentication", "Add user authentication flow", models.TaskStatusTodo, models.PriorityHigh, []string{"Mike Wilson"}},
			{"Write unit tests", "Create unit tests for core features", models.TaskStatusTodo, models.PriorityLow, []string{DemoName}},
		},
	},
	{
		name:        "Marketing Campaign",
		description: "Plan and execute Q1 marketing campaign",
		color:       "#f59e0b",
		tasks: []demoTask{
			{"Research target audience", "Conduct market research on target demographics", models.TaskStatusDone, models.PriorityMedium, []string{"Emily Brown"}},
			{"Create campaign content", "Write copy and create visual content", models.TaskStatusInProgress, models.PriorityHigh, []string{"Emily Brown", "Jane Smith"}},
			{"Schedule social media posts", "Plan and schedule posts across platforms", models.TaskStatusTodo, models.PriorityMedium, []string{"Emily Brown"}},
		},
	},
}

// Demo signs in to the shared demo account, creating and seeding it on
// first use.
func (s *AuthService) Demo(ctx context.Context) (*AuthResponse, error) {
	user, err := s.SeedDemo(ctx)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// SeedDemo returns the demo user. If it does not exist yet it is created
// together with its sample projects in one transaction.
func (s *AuthService) SeedDemo(ctx context.Context) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", DemoEmail).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := utils.HashPassword(demoPassword)
	if err != nil {
		return nil, err
	}
	user = models.User{Email: DemoEmail, Password: hash, Name: DemoName, Role: models.RoleMember}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		for _, dp := range demoProjects {
			if err := seedDemoProject(tx, &user, dp); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// another request seeded it first
		if err := s.db.WithContext(ctx).Where("email = ?", DemoEmail).First(&user).Error; err != nil {
			return nil, err
		}
		return &user, nil
	}
	if err != nil {
		return nil, err
	}

	logger.Info().Str("user_id", user.ID).Int("projects", len(demoProjects)).Msg("demo account seeded")
	return &user, nil
}

func seedDemoProject(tx *gorm.DB, user *models.User, dp demoProject) error {
	description := dp.description
	project := models.Project{
		Name:        dp.name,
		Description: &description,
		Color:       dp.color,
		CreatorID:   user.ID,
	}
	if err := tx.Create(&project).Error; err != nil {
		return err
	}
	member := models.ProjectMember{ProjectID: project.ID, UserID: user.ID, Role: models.RoleManager}
	if err := tx.Create(&member).Error; err != nil {
		return err
	}

	tasks := make([]models.Task, 0, len(dp.tasks))
	for i, dt := range dp.tasks {
		description := dt.description
		tasks = append(tasks, models.Task{
			Title:         dt.title,
			Description:   &description,
			Status:        dt.status,
			Priority:      dt.priority,
			Position:      i + 1,
			AssigneeNames: datatypes.JSONSlice[string](dt.assignees),
			ProjectID:     project.ID,
			CreatorID:     user.ID,
		})
	}
	return tx.Create(&tasks).Error
}
