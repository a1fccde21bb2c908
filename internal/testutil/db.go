// Package testutil provides an in-memory database for package tests.
package testutil

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/huangang/taskboard/internal/config"
	"github.com/huangang/taskboard/internal/models"
	"gorm.io/gorm"
)

// NewTestDB returns a migrated in-memory sqlite database private to the test.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "_" + uuid.NewString()[:8]
	db, err := models.InitDB(&config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    "file:" + name + "?mode=memory&cache=shared",
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// CreateUser inserts a user with a throwaway password hash.
func CreateUser(t *testing.T, db *gorm.DB, name, email, role string) *models.User {
	t.Helper()
	if role == "" {
		role = models.RoleMember
	}
	user := &models.User{Email: email, Name: name, Role: role, Password: "x"}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return user
}

// CreateProject inserts a project owned by creator, with creator as MANAGER.
func CreateProject(t *testing.T, db *gorm.DB, creator *models.User, name string) *models.Project {
	t.Helper()
	project := &models.Project{Name: name, Color: models.DefaultProjectColor, CreatorID: creator.ID}
	if err := db.Create(project).Error; err != nil {
		t.Fatalf("create project %s: %v", name, err)
	}
	AddMember(t, db, project.ID, creator.ID, models.RoleManager)
	return project
}

// AddMember inserts a project membership.
func AddMember(t *testing.T, db *gorm.DB, projectID, userID, role string) {
	t.Helper()
	member := &models.ProjectMember{ProjectID: projectID, UserID: userID, Role: role}
	if err := db.Create(member).Error; err != nil {
		t.Fatalf("add member: %v", err)
	}
}
