package services

import (
	"context"
	"errors"
	"strings"

	"github.com/huangang/taskboard/internal/models"
	"github.com/huangang/taskboard/pkg/response"
	"gorm.io/gorm"
)

const userSearchLimit = 20

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

type UserSearchRequest struct {
	Search string `form:"search"`
}

// Search matches name or email, case-insensitively, for member pickers.
func (s *UserService) Search(ctx context.Context, req *UserSearchRequest) ([]models.User, error) {
	query := s.db.WithContext(ctx).Model(&models.User{}).Select(models.PublicUserColumns)

	if term := strings.ToLower(strings.TrimSpace(req.Search)); term != "" {
		like := "%" + term + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}

	users := []models.User{}
	if err := query.Order("name ASC").Limit(userSearchLimit).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Select(models.PublicUserColumns).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("User not found")
		}
		return nil, err
	}
	return &user, nil
}

// publicUser narrows preloaded users to the columns safe to expose.
func publicUser(db *gorm.DB) *gorm.DB {
	return db.Select(models.PublicUserColumns)
}
