package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/huangang/taskboard/internal/config"
)

// recordingQueue captures enqueued cleanup tasks for service tests.
type recordingQueue struct {
	tasks []*FileCleanupTask
}

func (q *recordingQueue) Enqueue(task *FileCleanupTask) error {
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *recordingQueue) IsAsync() bool { return false }
func (q *recordingQueue) Close() error  { return nil }

func TestTaskTypeFileCleanup_Constant(t *testing.T) {
	if TaskTypeFileCleanup != "files:cleanup" {
		t.Errorf("TaskTypeFileCleanup = %q, expected %q", TaskTypeFileCleanup, "files:cleanup")
	}
}

func TestFileCleanupTask_JSON(t *testing.T) {
	task := FileCleanupTask{Paths: []string{"uploads/a.png", "uploads/b.pdf"}, ProjectID: "p1"}

	data, err := json.Marshal(task)
	if err != nil {
		t.Fatal(err)
	}
	var decoded FileCleanupTask
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded.Paths) != 2 || decoded.Paths[1] != "uploads/b.pdf" || decoded.ProjectID != "p1" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestNewTaskQueue_RedisDisabledUsesSyncQueue(t *testing.T) {
	queue := NewTaskQueue(&config.RedisConfig{Enabled: false}, nil)
	if queue.IsAsync() {
		t.Error("expected a sync queue when redis is disabled")
	}
	if _, ok := queue.(*SyncQueue); !ok {
		t.Errorf("expected *SyncQueue, got %T", queue)
	}
}

func TestSyncQueue_IsAsync(t *testing.T) {
	queue := NewSyncQueue()
	if queue.IsAsync() {
		t.Error("SyncQueue.IsAsync() should return false")
	}
	if err := queue.Close(); err != nil {
		t.Errorf("SyncQueue.Close() should return nil, got %v", err)
	}
}

func TestSyncQueue_EnqueueWithoutProcessor(t *testing.T) {
	queue := NewSyncQueue()
	if err := queue.Enqueue(&FileCleanupTask{Paths: []string{"x"}}); err != nil {
		t.Errorf("Enqueue without processor should not error, got %v", err)
	}
}

func TestSyncQueue_RunsProcessor(t *testing.T) {
	queue := NewSyncQueue()
	got := make(chan *FileCleanupTask, 1)
	queue.SetProcessor(func(ctx context.Context, task *FileCleanupTask) error {
		got <- task
		return nil
	})

	if err := queue.Enqueue(&FileCleanupTask{ProjectID: "p1"}); err != nil {
		t.Fatal(err)
	}

	select {
	case task := <-got:
		if task.ProjectID != "p1" {
			t.Errorf("ProjectID = %q, expected p1", task.ProjectID)
		}
	case <-time.After(time.Second):
		t.Fatal("processor was not called")
	}
}

func TestAsyncQueue_IsAsync(t *testing.T) {
	queue := &AsyncQueue{}
	if !queue.IsAsync() {
		t.Error("AsyncQueue.IsAsync() should return true")
	}
}

func TestNewWorker_DisabledReturnsNil(t *testing.T) {
	if w := NewWorker(&config.RedisConfig{Enabled: false}, nil); w != nil {
		t.Error("expected no worker when redis is disabled")
	}
}

func TestWorker_HandleFileCleanup(t *testing.T) {
	var got *FileCleanupTask
	w := &Worker{processor: func(ctx context.Context, task *FileCleanupTask) error {
		got = task
		return nil
	}}

	payload, _ := json.Marshal(FileCleanupTask{Paths: []string{"a"}, ProjectID: "p9"})
	if err := w.handleFileCleanup(context.Background(), asynq.NewTask(TaskTypeFileCleanup, payload)); err != nil {
		t.Fatalf("handleFileCleanup() error = %v", err)
	}
	if got == nil || got.ProjectID != "p9" {
		t.Errorf("processor got %+v", got)
	}

	err := w.handleFileCleanup(context.Background(), asynq.NewTask(TaskTypeFileCleanup, []byte("{")))
	if err != asynq.SkipRetry {
		t.Errorf("malformed payload should skip retry, got %v", err)
	}
}
