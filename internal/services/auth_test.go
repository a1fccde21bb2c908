package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/huangang/taskboard/internal/models"
	"github.com/huangang/taskboard/internal/testutil"
	"github.com/huangang/taskboard/internal/utils"
	"github.com/huangang/taskboard/pkg/response"
)

func newAuthService(t *testing.T) (*AuthService, *utils.TokenManager) {
	t.Helper()
	db := testutil.NewTestDB(t)
	tokens := utils.NewTokenManager("test-secret", 1)
	return NewAuthService(db, tokens), tokens
}

func TestAuthService_RegisterThenLogin(t *testing.T) {
	svc, tokens := newAuthService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, &RegisterRequest{Email: "Alice@Example.com", Password: "secret1", Name: " Alice "})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if reg.User.Email != "alice@example.com" || reg.User.Name != "Alice" {
		t.Errorf("user = %+v", reg.User)
	}
	if reg.User.Role != models.RoleMember {
		t.Errorf("Role = %q, expected MEMBER", reg.User.Role)
	}

	claims, err := tokens.Parse(reg.Token)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if claims.UserID != reg.User.ID {
		t.Errorf("token subject %q, expected %q", claims.UserID, reg.User.ID)
	}

	login, err := svc.Login(ctx, &LoginRequest{Email: "alice@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if login.User.ID != reg.User.ID {
		t.Error("login resolved a different user")
	}

	found, err := svc.FindUser(ctx, reg.User.ID)
	if err != nil {
		t.Fatalf("FindUser() error = %v", err)
	}
	if found.Password != "" {
		t.Error("FindUser must not load the password hash")
	}
}

func TestAuthService_DuplicateEmail(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()
	req := &RegisterRequest{Email: "bob@example.com", Password: "secret1", Name: "Bob"}

	if _, err := svc.Register(ctx, req); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Register(ctx, req)
	assertStatus(t, err, http.StatusConflict)

	var count int64
	svc.db.Model(&models.User{}).Where("email = ?", "bob@example.com").Count(&count)
	if count != 1 {
		t.Errorf("expected a single row, got %d", count)
	}
}

func TestAuthService_LoginFailures(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, &RegisterRequest{Email: "c@example.com", Password: "secret1", Name: "C"}); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Login(ctx, &LoginRequest{Email: "c@example.com", Password: "wrong-password"})
	assertStatus(t, err, http.StatusUnauthorized)

	_, err = svc.Login(ctx, &LoginRequest{Email: "nobody@example.com", Password: "secret1"})
	assertStatus(t, err, http.StatusUnauthorized)
}

func TestAuthService_DemoIsIdempotent(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	first, err := svc.Demo(ctx)
	if err != nil {
		t.Fatalf("Demo() error = %v", err)
	}
	second, err := svc.Demo(ctx)
	if err != nil {
		t.Fatalf("second Demo() error = %v", err)
	}
	if first.User.ID != second.User.ID {
		t.Error("demo should reuse the same account")
	}

	var projects, tasks, members int64
	svc.db.Model(&models.Project{}).Where("creator_id = ?", first.User.ID).Count(&projects)
	svc.db.Model(&models.Task{}).Count(&tasks)
	svc.db.Model(&models.ProjectMember{}).Where("user_id = ? AND role = ?", first.User.ID, models.RoleManager).Count(&members)
	if projects != 3 || tasks != 12 || members != 3 {
		t.Errorf("seeded projects=%d tasks=%d memberships=%d, expected 3/12/3", projects, tasks, members)
	}

	var task models.Task
	svc.db.Where("title = ?", "Design app icons").First(&task)
	if task.Status != models.TaskStatusInReview || len(task.AssigneeNames) != 2 {
		t.Errorf("seeded task = %+v", task)
	}
}

func TestAuthService_RegisterRejectsOverlongPassword(t *testing.T) {
	svc, _ := newAuthService(t)

	_, err := svc.Register(context.Background(), &RegisterRequest{
		Email:    "long@example.com",
		Password: strings.Repeat("x", utils.MaxPasswordBytes+1),
		Name:     "Long",
	})
	assertStatus(t, err, http.StatusBadRequest)

	var appErr *response.AppError
	if errors.As(err, &appErr) && (len(appErr.Details) != 1 || appErr.Details[0].Field != "password") {
		t.Errorf("details = %+v", appErr.Details)
	}
}
