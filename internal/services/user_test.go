package services

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/huangang/taskboard/internal/models"
	"github.com/huangang/taskboard/internal/testutil"
)

func TestUserService_Search(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := NewUserService(db)
	ctx := context.Background()

	testutil.CreateUser(t, db, "Alice Smith", "alice@example.com", models.RoleMember)
	testutil.CreateUser(t, db, "Bob", "bob@smith.test", models.RoleMember)
	testutil.CreateUser(t, db, "Carol", "carol@example.com", models.RoleMember)

	tests := []struct {
		search string
		want   []string
	}{
		{"smith", []string{"Alice Smith", "Bob"}},
		{"CAROL", []string{"Carol"}},
		{"", []string{"Alice Smith", "Bob", "Carol"}},
		{"nobody", nil},
	}
	for _, tt := range tests {
		users, err := svc.Search(ctx, &UserSearchRequest{Search: tt.search})
		if err != nil {
			t.Fatalf("Search(%q) error = %v", tt.search, err)
		}
		if len(users) != len(tt.want) {
			t.Errorf("Search(%q) returned %d users, expected %d", tt.search, len(users), len(tt.want))
			continue
		}
		for i, u := range users {
			if u.Name != tt.want[i] {
				t.Errorf("Search(%q)[%d] = %q, expected %q", tt.search, i, u.Name, tt.want[i])
			}
			if u.Password != "" {
				t.Error("password hash must not be selected")
			}
		}
	}
}

func TestUserService_SearchLimit(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := NewUserService(db)
	for i := 0; i < userSearchLimit+5; i++ {
		testutil.CreateUser(t, db, fmt.Sprintf("User %02d", i), fmt.Sprintf("u%02d@example.com", i), "")
	}

	users, err := svc.Search(context.Background(), &UserSearchRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != userSearchLimit {
		t.Errorf("expected %d users, got %d", userSearchLimit, len(users))
	}
}

func TestUserService_GetByID(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := NewUserService(db)
	alice := testutil.CreateUser(t, db, "Alice", "alice@example.com", "")

	got, err := svc.GetByID(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Email != "alice@example.com" || got.Password != "" {
		t.Errorf("unexpected user %+v", got)
	}

	_, err = svc.GetByID(context.Background(), "missing")
	assertStatus(t, err, http.StatusNotFound)
}
