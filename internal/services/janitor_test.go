package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangang/taskboard/internal/models"
	"github.com/huangang/taskboard/internal/testutil"
)

func TestJanitor_SweepOrphans(t *testing.T) {
	db := testutil.NewTestDB(t)
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	owner := testutil.CreateUser(t, db, "Owner", "owner@example.com", "")

	write := func(name string, age time.Duration) string {
		path := filepath.Join(storage.Dir(), name)
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		old := time.Now().Add(-age)
		os.Chtimes(path, old, old)
		return path
	}
	kept := write("kept.txt", 2*time.Hour)
	orphan := write("orphan.txt", 2*time.Hour)
	fresh := write("fresh.txt", time.Minute)
	db.Create(&models.File{Filename: "kept.txt", OriginalName: "kept.txt", Size: 1, Path: kept, UserID: owner.ID})

	janitor := NewJanitor(db, storage, NewSystemLogService(db), 30)
	removed, err := janitor.SweepOrphans(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, expected 1", removed)
	}
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Error("orphan should be removed")
	}
	for _, path := range []string{kept, fresh} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s should survive: %v", filepath.Base(path), err)
		}
	}
}

func TestJanitor_PruneLogs(t *testing.T) {
	db := testutil.NewTestDB(t)
	logs := NewSystemLogService(db)
	now := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)

	db.Create(&models.SystemLog{Level: LogLevelInfo, Module: "tasks", Action: "old", CreatedAt: now.AddDate(0, 0, -40)})
	db.Create(&models.SystemLog{Level: LogLevelInfo, Module: "tasks", Action: "recent", CreatedAt: now.AddDate(0, 0, -2)})

	janitor := NewJanitor(db, nil, logs, 30)
	janitor.now = func() time.Time { return now }
	janitor.PruneLogs(context.Background())

	var remaining []models.SystemLog
	db.Find(&remaining)
	if len(remaining) != 1 || remaining[0].Action != "recent" {
		t.Errorf("remaining = %+v", remaining)
	}
}

func TestSystemLogService_WriteAndList(t *testing.T) {
	db := testutil.NewTestDB(t)
	logs := NewSystemLogService(db)
	userID := "u1"

	logs.Write(LogEntry{Module: "projects", Action: "POST /api/projects", Message: "created", UserID: &userID, Extra: map[string]string{"k": "v"}})
	logs.Write(LogEntry{Level: LogLevelError, Module: "tasks", Action: "PUT /api/tasks/1", Message: "failed"})

	resp, err := logs.List(context.Background(), &SystemLogListRequest{Module: "projects"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Items[0].Level != LogLevelInfo || resp.Items[0].Extra != `{"k":"v"}` {
		t.Errorf("resp = %+v", resp)
	}

	modules, err := logs.GetModules(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(modules) != 2 || modules[0] != "projects" {
		t.Errorf("modules = %v", modules)
	}
}
