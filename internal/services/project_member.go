package services

import (
	"context"
	"errors"

	"github.com/huangang/taskboard/internal/models"
	"github.com/huangang/taskboard/pkg/response"
	"gorm.io/gorm"
)

type ProjectMemberService struct {
	db     *gorm.DB
	access *AccessService
	events Broadcaster
}

func NewProjectMemberService(db *gorm.DB, access *AccessService, events Broadcaster) *ProjectMemberService {
	return &ProjectMemberService{db: db, access: access, events: events}
}

type AddMemberRequest struct {
	UserID string `json:"userId" binding:"required"`
	Role   string `json:"role" binding:"omitempty,oneof=MANAGER MEMBER VIEWER"`
}

type UpdateMemberRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=MANAGER MEMBER VIEWER"`
}

func (s *ProjectMemberService) List(ctx context.Context, user *models.User, projectID string) ([]models.ProjectMember, error) {
	if _, err := s.access.RequireAccess(ctx, user, projectID); err != nil {
		return nil, err
	}

	members := []models.ProjectMember{}
	err := s.db.WithContext(ctx).
		Preload("User", publicUser).
		Where("project_id = ?", projectID).
		Order("joined_at ASC").
		Find(&members).Error
	return members, err
}

func (s *ProjectMemberService) Add(ctx context.Context, user *models.User, projectID string, req *AddMemberRequest) (*models.ProjectMember, error) {
	if _, err := s.access.RequireMutation(ctx, user, projectID); err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", req.UserID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, response.NewNotFound("User not found")
	}

	role := req.Role
	if role == "" {
		role = models.RoleMember
	}
	member := models.ProjectMember{ProjectID: projectID, UserID: req.UserID, Role: role}
	if err := s.db.WithContext(ctx).Create(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, response.NewConflict("User is already a member of this project")
		}
		return nil, err
	}

	loaded, err := s.find(ctx, projectID, req.UserID)
	if err != nil {
		return nil, err
	}
	s.events.Publish(projectID, EventMemberAdded, loaded)
	return loaded, nil
}

func (s *ProjectMemberService) UpdateRole(ctx context.Context, user *models.User, projectID, memberUserID string, req *UpdateMemberRoleRequest) (*models.ProjectMember, error) {
	if _, err := s.access.RequireMutation(ctx, user, projectID); err != nil {
		return nil, err
	}

	result := s.db.WithContext(ctx).Model(&models.ProjectMember{}).
		Where("project_id = ? AND user_id = ?", projectID, memberUserID).
		Update("role", req.Role)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, response.NewNotFound("Member not found")
	}

	loaded, err := s.find(ctx, projectID, memberUserID)
	if err != nil {
		return nil, err
	}
	s.events.Publish(projectID, EventMemberUpdated, loaded)
	return loaded, nil
}

// Remove deletes a membership. Members may always remove themselves; removing
// someone else needs the project-mutation permission.
func (s *ProjectMemberService) Remove(ctx context.Context, user *models.User, projectID, memberUserID string) error {
	access, err := s.access.Load(ctx, user, projectID)
	if err != nil {
		return err
	}
	if memberUserID != user.ID && !CanMutateProject(user, access.Project, access.Membership) {
		return response.NewForbidden("Only the project creator or a manager can remove members")
	}

	result := s.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, memberUserID).
		Delete(&models.ProjectMember{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return response.NewNotFound("Member not found")
	}

	s.events.Publish(projectID, EventMemberRemoved, map[string]string{"userId": memberUserID, "projectId": projectID})
	return nil
}

func (s *ProjectMemberService) find(ctx context.Context, projectID, userID string) (*models.ProjectMember, error) {
	var member models.ProjectMember
	err := s.db.WithContext(ctx).
		Preload("User", publicUser).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}
