package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockReviver implements TaskReviver for testing. It rebuilds MockTasks and
// lets tests attach an execution function to revived tasks.
type mockReviver struct {
	ReviveFn func(taskID uuid.UUID, taskType string, payload []byte) (Task, error)
}

func (r *mockReviver) Revive(taskID uuid.UUID, taskType string, payload []byte) (Task, error) {
	if r.ReviveFn != nil {
		return r.ReviveFn(taskID, taskType, payload)
	}
	return NewMockTask(taskID, taskType, payload), nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

func TestTaskRunner_Submit(t *testing.T) {
	t.Parallel()

	logger := newTestLogger()

	t.Run("successful submission", func(t *testing.T) {
		t.Parallel()

		store := NewMockTaskStore()
		runner := NewTaskRunner(store, DefaultTaskRunnerConfig(), logger)
		runner.SetReviver(&mockReviver{})

		task := NewMockTask(uuid.New(), TaskTypeItemEnrichment, []byte(`{}`))
		err := runner.Submit(context.Background(), task)
		assert.NoError(t, err)

		// Task was persisted as pending
		pending, err := store.GetPendingTasks(context.Background())
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, task.ID(), pending[0].ID())
	})

	t.Run("queue full", func(t *testing.T) {
		t.Parallel()

		store := NewMockTaskStore()
		config := DefaultTaskRunnerConfig()
		config.QueueSize = 1

		runner := NewTaskRunner(store, config, logger)
		runner.SetReviver(&mockReviver{})

		err := runner.Submit(context.Background(), NewMockTask(uuid.New(), TaskTypeItemEnrichment, nil))
		require.NoError(t, err)

		err = runner.Submit(context.Background(), NewMockTask(uuid.New(), TaskTypeItemEnrichment, nil))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "queue is full")
	})

	t.Run("store error", func(t *testing.T) {
		t.Parallel()

		store := NewMockTaskStore()
		store.SaveFn = func(ctx context.Context, task Task) error {
			return errors.New("mock store error")
		}

		runner := NewTaskRunner(store, DefaultTaskRunnerConfig(), logger)
		runner.SetReviver(&mockReviver{})

		err := runner.Submit(context.Background(), NewMockTask(uuid.New(), TaskTypeItemEnrichment, nil))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to save task")
	})
}

func TestTaskRunner_StartAndProcess(t *testing.T) {
	t.Parallel()

	store := NewMockTaskStore()
	config := DefaultTaskRunnerConfig()
	config.WorkerCount = 2
	config.QueueSize = 10

	runner := NewTaskRunner(store, config, newTestLogger())
	runner.SetReviver(&mockReviver{})

	executed := make(chan uuid.UUID, 3)
	ids := make([]uuid.UUID, 0, 3)

	require.NoError(t, runner.Start())
	defer runner.Stop()

	for i := 0; i < 3; i++ {
		task := NewMockTask(uuid.New(), TaskTypeItemEnrichment, nil)
		id := task.ID()
		task.ExecuteFn = func(ctx context.Context) error {
			executed <- id
			return nil
		}
		ids = append(ids, id)
		require.NoError(t, runner.Submit(context.Background(), task))
	}

	got := make(map[uuid.UUID]bool)
	for i := 0; i < 3; i++ {
		select {
		case id := <-executed:
			got[id] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for task execution")
		}
	}

	for _, id := range ids {
		assert.True(t, got[id], "task %s was not executed", id)
	}

	// All tasks end up completed in the store
	assert.Eventually(t, func() bool {
		for _, id := range ids {
			status, ok := store.GetTaskStatus(id)
			if !ok || status != TaskStatusCompleted {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTaskRunner_FailedTaskStatus(t *testing.T) {
	t.Parallel()

	store := NewMockTaskStore()
	runner := NewTaskRunner(store, DefaultTaskRunnerConfig(), newTestLogger())
	runner.SetReviver(&mockReviver{})

	task := NewMockTask(uuid.New(), TaskTypeItemEnrichment, nil)
	task.ExecuteFn = func(ctx context.Context) error {
		return errors.New("execution failed")
	}

	require.NoError(t, runner.Start())
	defer runner.Stop()

	require.NoError(t, runner.Submit(context.Background(), task))

	assert.Eventually(t, func() bool {
		status, ok := store.GetTaskStatus(task.ID())
		return ok && status == TaskStatusFailed
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTaskRunner_Recover(t *testing.T) {
	t.Parallel()

	t.Run("requeues pending and processing tasks", func(t *testing.T) {
		t.Parallel()

		store := NewMockTaskStore()

		pendingTask := NewMockTask(uuid.New(), TaskTypeItemEnrichment, []byte(`{"item_id":"a"}`))
		require.NoError(t, store.SaveTask(context.Background(), pendingTask))

		processingTask := NewMockTask(uuid.New(), TaskTypeItemEnrichment, []byte(`{"item_id":"b"}`))
		processingTask.TaskStatus = TaskStatusProcessing
		require.NoError(t, store.SaveTask(context.Background(), processingTask))

		executed := make(chan uuid.UUID, 2)
		reviver := &mockReviver{
			ReviveFn: func(taskID uuid.UUID, taskType string, payload []byte) (Task, error) {
				revived := NewMockTask(taskID, taskType, payload)
				revived.ExecuteFn = func(ctx context.Context) error {
					executed <- taskID
					return nil
				}
				return revived, nil
			},
		}

		runner := NewTaskRunner(store, DefaultTaskRunnerConfig(), newTestLogger())
		runner.SetReviver(reviver)

		require.NoError(t, runner.Start())
		defer runner.Stop()

		got := make(map[uuid.UUID]bool)
		for i := 0; i < 2; i++ {
			select {
			case id := <-executed:
				got[id] = true
			case <-time.After(2 * time.Second):
				t.Fatal("timed out waiting for recovered task execution")
			}
		}
		assert.True(t, got[pendingTask.ID()])
		assert.True(t, got[processingTask.ID()])
	})

	t.Run("marks unrevivable tasks as failed", func(t *testing.T) {
		t.Parallel()

		store := NewMockTaskStore()

		badTask := NewMockTask(uuid.New(), "unknown_type", []byte(`not json`))
		require.NoError(t, store.SaveTask(context.Background(), badTask))

		reviver := &mockReviver{
			ReviveFn: func(taskID uuid.UUID, taskType string, payload []byte) (Task, error) {
				return nil, errors.New("unknown task type")
			},
		}

		runner := NewTaskRunner(store, DefaultTaskRunnerConfig(), newTestLogger())
		runner.SetReviver(reviver)

		require.NoError(t, runner.Recover())

		status, ok := store.GetTaskStatus(badTask.ID())
		require.True(t, ok)
		assert.Equal(t, TaskStatusFailed, status)
	})
}

func TestTaskRunner_Stop(t *testing.T) {
	t.Parallel()

	store := NewMockTaskStore()
	runner := NewTaskRunner(store, DefaultTaskRunnerConfig(), newTestLogger())
	runner.SetReviver(&mockReviver{})

	require.NoError(t, runner.Start())

	done := make(chan struct{})
	go func() {
		runner.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop in time")
	}
}

func TestTaskRunner_SubmitAfterStop(t *testing.T) {
	t.Parallel()

	store := NewMockTaskStore()
	runner := NewTaskRunner(store, DefaultTaskRunnerConfig(), newTestLogger())
	runner.SetReviver(&mockReviver{})

	require.NoError(t, runner.Start())
	runner.Stop()

	task := NewMockTask(uuid.New(), TaskTypeItemEnrichment, []byte(`{}`))
	assert.NotPanics(t, func() {
		err := runner.Submit(context.Background(), task)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "stopped")
	})

	// The task was persisted before the rejection, so the next start
	// recovers it.
	status, ok := store.GetTaskStatus(task.ID())
	require.True(t, ok)
	assert.Equal(t, TaskStatusPending, status)

	// Stop is idempotent
	assert.NotPanics(t, runner.Stop)
}
