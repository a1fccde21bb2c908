package services

import (
	"context"
	"errors"

	"github.com/huangang/taskboard/internal/models"
	"github.com/huangang/taskboard/pkg/response"
	"gorm.io/gorm"
)

// CanAccessProject: project member, project creator or global admin.
func CanAccessProject(user *models.User, project *models.Project, membership *models.ProjectMember) bool {
	return user.IsAdmin() || membership != nil || project.CreatorID == user.ID
}

// CanMutateProject: project creator, project manager or global admin.
func CanMutateProject(user *models.User, project *models.Project, membership *models.ProjectMember) bool {
	if user.IsAdmin() || project.CreatorID == user.ID {
		return true
	}
	return membership != nil && membership.Role == models.RoleManager
}

// CanDeleteFile: uploader, global admin or manager of the file's project.
func CanDeleteFile(user *models.User, file *models.File, membership *models.ProjectMember) bool {
	if user.IsAdmin() || file.UserID == user.ID {
		return true
	}
	return membership != nil && membership.Role == models.RoleManager
}

// ProjectAccess is the caller's standing on one project.
type ProjectAccess struct {
	Project    *models.Project
	Membership *models.ProjectMember
}

// AccessService loads the rows the authorization predicates need.
type AccessService struct {
	db *gorm.DB
}

func NewAccessService(db *gorm.DB) *AccessService {
	return &AccessService{db: db}
}

// Load fetches the project and the user's membership in it, if any.
func (s *AccessService) Load(ctx context.Context, user *models.User, projectID string) (*ProjectAccess, error) {
	var project models.Project
	if err := s.db.WithContext(ctx).First(&project, "id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("Project not found")
		}
		return nil, err
	}

	membership, err := s.membership(ctx, projectID, user.ID)
	if err != nil {
		return nil, err
	}
	return &ProjectAccess{Project: &project, Membership: membership}, nil
}

// RequireAccess fails with 404 or 403 unless the user may read the project.
func (s *AccessService) RequireAccess(ctx context.Context, user *models.User, projectID string) (*ProjectAccess, error) {
	access, err := s.Load(ctx, user, projectID)
	if err != nil {
		return nil, err
	}
	if !CanAccessProject(user, access.Project, access.Membership) {
		return nil, response.NewForbidden("Access denied")
	}
	return access, nil
}

// RequireMutation fails unless the user may modify the project.
func (s *AccessService) RequireMutation(ctx context.Context, user *models.User, projectID string) (*ProjectAccess, error) {
	access, err := s.Load(ctx, user, projectID)
	if err != nil {
		return nil, err
	}
	if !CanMutateProject(user, access.Project, access.Membership) {
		return nil, response.NewForbidden("Only the project creator or a manager can modify this project")
	}
	return access, nil
}

func (s *AccessService) membership(ctx context.Context, projectID, userID string) (*models.ProjectMember, error) {
	// Find instead of First: a missing membership is the normal case.
	var members []models.ProjectMember
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Limit(1).
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}
	return &members[0], nil
}

// VisibleProjectIDs lists the projects the user created or is a member of.
func (s *AccessService) VisibleProjectIDs(ctx context.Context, user *models.User) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.Project{}).
		Where("creator_id = ?", user.ID).
		Or("id IN (?)", s.db.Model(&models.ProjectMember{}).Select("project_id").Where("user_id = ?", user.ID)).
		Pluck("id", &ids).Error
	return ids, err
}
