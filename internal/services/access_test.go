package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/huangang/taskboard/internal/models"
	"github.com/huangang/taskboard/internal/testutil"
	"github.com/huangang/taskboard/pkg/response"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestCanAccessProject(t *testing.T) {
	project := &models.Project{CreatorID: "creator"}
	member := &models.ProjectMember{Role: models.RoleViewer}

	tests := []struct {
		name       string
		user       *models.User
		membership *models.ProjectMember
		want       bool
	}{
		{"member", &models.User{Base: models.Base{ID: "u1"}, Role: models.RoleMember}, member, true},
		{"admin without membership", &models.User{Base: models.Base{ID: "u2"}, Role: models.RoleAdmin}, nil, true},
		{"creator without membership", &models.User{Base: models.Base{ID: "creator"}, Role: models.RoleMember}, nil, true},
		{"stranger", &models.User{Base: models.Base{ID: "u3"}, Role: models.RoleManager}, nil, false},
	}
	for _, tt := range tests {
		if got := CanAccessProject(tt.user, project, tt.membership); got != tt.want {
			t.Errorf("%s: CanAccessProject() = %v, expected %v", tt.name, got, tt.want)
		}
	}
}

func TestCanMutateProject(t *testing.T) {
	project := &models.Project{CreatorID: "creator"}
	user := &models.User{Base: models.Base{ID: "u1"}, Role: models.RoleMember}

	if CanMutateProject(user, project, &models.ProjectMember{Role: models.RoleMember}) {
		t.Error("plain members must not mutate the project")
	}
	if !CanMutateProject(user, project, &models.ProjectMember{Role: models.RoleManager}) {
		t.Error("project managers may mutate the project")
	}
	if !CanMutateProject(&models.User{Base: models.Base{ID: "creator"}}, project, nil) {
		t.Error("the creator may mutate the project")
	}
	if !CanMutateProject(&models.User{Base: models.Base{ID: "x"}, Role: models.RoleAdmin}, project, nil) {
		t.Error("admins may mutate any project")
	}
}

func TestCanDeleteFile(t *testing.T) {
	file := &models.File{UserID: "uploader"}

	if !CanDeleteFile(&models.User{Base: models.Base{ID: "uploader"}}, file, nil) {
		t.Error("uploader may delete")
	}
	if CanDeleteFile(&models.User{Base: models.Base{ID: "u1"}}, file, &models.ProjectMember{Role: models.RoleMember}) {
		t.Error("plain member may not delete someone else's file")
	}
	if !CanDeleteFile(&models.User{Base: models.Base{ID: "u1"}}, file, &models.ProjectMember{Role: models.RoleManager}) {
		t.Error("project manager may delete")
	}
	if !CanDeleteFile(&models.User{Base: models.Base{ID: "u2"}, Role: models.RoleAdmin}, file, nil) {
		t.Error("admin may delete")
	}
}

func TestAccessService_RequireAccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, env.db, "Owner", "owner@example.com", "")
	stranger := testutil.CreateUser(t, env.db, "Stranger", "stranger@example.com", "")
	project := testutil.CreateProject(t, env.db, owner, "Board")

	access, err := env.access.RequireAccess(ctx, owner, project.ID)
	if err != nil {
		t.Fatalf("owner RequireAccess() error = %v", err)
	}
	if access.Membership == nil || access.Membership.Role != models.RoleManager {
		t.Errorf("expected MANAGER membership, got %+v", access.Membership)
	}

	_, err = env.access.RequireAccess(ctx, stranger, project.ID)
	assertStatus(t, err, http.StatusForbidden)

	_, err = env.access.RequireAccess(ctx, owner, "missing")
	assertStatus(t, err, http.StatusNotFound)
}

func TestAccessService_VisibleProjectIDs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, env.db, "Alice", "alice@example.com", "")
	bob := testutil.CreateUser(t, env.db, "Bob", "bob@example.com", "")

	own := testutil.CreateProject(t, env.db, alice, "Own")
	shared := testutil.CreateProject(t, env.db, bob, "Shared")
	testutil.CreateProject(t, env.db, bob, "Private")
	testutil.AddMember(t, env.db, shared.ID, alice.ID, models.RoleMember)

	ids, err := env.access.VisibleProjectIDs(ctx, alice)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 visible projects, got %v", ids)
	}
	seen := map[string]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen[own.ID] || !seen[shared.ID] {
		t.Errorf("visible = %v", ids)
	}
}

func assertStatus(t *testing.T, err error, status int) {
	t.Helper()
	var appErr *response.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError with status %d, got %v", status, err)
	}
	if appErr.HTTPStatus != status {
		t.Fatalf("expected status %d, got %d (%s)", status, appErr.HTTPStatus, appErr.Message)
	}
}

// queryErrorLogger records the errors gorm reports for each statement.
type queryErrorLogger struct {
	gormlogger.Interface
	mu   sync.Mutex
	errs []error
}

func (l *queryErrorLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface { return l }

func (l *queryErrorLogger) Trace(_ context.Context, _ time.Time, _ func() (string, int64), err error) {
	if err == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, err)
}

func TestAccessService_NonMemberCheckIsQuiet(t *testing.T) {
	db := testutil.NewTestDB(t)
	owner := testutil.CreateUser(t, db, "Owner", "owner@example.com", "")
	stranger := testutil.CreateUser(t, db, "Stranger", "stranger@example.com", "")
	project := testutil.CreateProject(t, db, owner, "Board")

	rec := &queryErrorLogger{Interface: gormlogger.Discard}
	access := NewAccessService(db.Session(&gorm.Session{Logger: rec}))

	_, err := access.RequireAccess(context.Background(), stranger, project.ID)
	assertStatus(t, err, http.StatusForbidden)
	if len(rec.errs) != 0 {
		t.Errorf("membership lookup reported query errors: %v", rec.errs)
	}
}
