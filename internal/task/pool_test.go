package task

import (
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForTask(t *testing.T, ft *fakeTask) {
	t.Helper()

	select {
	case <-ft.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for task execution")
	}
}

func TestWorkerPool_ExecutesEnqueuedTasks(t *testing.T) {
	t.Parallel()

	queue := NewTaskQueue(8, slog.Default())
	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: 2}, slog.Default())
	pool.Start()
	defer func() {
		queue.Close()
		pool.Stop()
	}()

	tasks := []*fakeTask{newFakeTask(nil), newFakeTask(nil), newFakeTask(nil)}
	for _, ft := range tasks {
		require.NoError(t, queue.Enqueue(ft))
	}

	for _, ft := range tasks {
		waitForTask(t, ft)
		assert.True(t, ft.wasExecuted())
	}
}

func TestWorkerPool_ErrorHandlerReceivesFailures(t *testing.T) {
	t.Parallel()

	queue := NewTaskQueue(8, slog.Default())
	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: 1}, slog.Default())

	taskErr := errors.New("finalize failed")
	var mu sync.Mutex
	var failures []error
	pool.SetErrorHandler(func(task Task, err error) {
		mu.Lock()
		failures = append(failures, err)
		mu.Unlock()
	})

	pool.Start()
	defer func() {
		queue.Close()
		pool.Stop()
	}()

	failing := newFakeTask(taskErr)
	require.NoError(t, queue.Enqueue(failing))
	waitForTask(t, failing)

	// The handler runs after Execute returns; poll briefly for it.
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(failures) == 1 && errors.Is(failures[0], taskErr)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWorkerPool_StopDrainsWorkers(t *testing.T) {
	t.Parallel()

	queue := NewTaskQueue(4, slog.Default())
	pool := NewWorkerPool(queue, WorkerPoolConfig{}, slog.Default())
	pool.Start()

	ft := newFakeTask(nil)
	require.NoError(t, queue.Enqueue(ft))
	waitForTask(t, ft)

	queue.Close()
	pool.Stop()
}
