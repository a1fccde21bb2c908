package services

import (
	"testing"

	"github.com/huangang/taskboard/internal/testutil"
	"gorm.io/gorm"
)

type testEnv struct {
	db       *gorm.DB
	events   *recordingBroadcaster
	queue    *recordingQueue
	access   *AccessService
	projects *ProjectService
	members  *ProjectMemberService
	tasks    *TaskService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewTestDB(t)
	env := &testEnv{
		db:     db,
		events: &recordingBroadcaster{},
		queue:  &recordingQueue{},
		access: NewAccessService(db),
	}
	env.projects = NewProjectService(db, env.access, env.events, env.queue)
	env.members = NewProjectMemberService(db, env.access, env.events)
	env.tasks = NewTaskService(db, env.access, env.projects, env.events, env.queue)
	return env
}
