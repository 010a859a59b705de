package dialog

import (
	"context"
	"sync"
)

// TaskState is the lifecycle state of a response task.
type TaskState int

const (
	TaskRunning TaskState = iota
	TaskCancelled
	TaskCompleted
	TaskFailed
)

func (s TaskState) String() string {
	switch s {
	case TaskRunning:
		return "running"
	case TaskCancelled:
		return "cancelled"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ResponseTask is the handle for one in-flight response pipeline. Cancel is
// idempotent and a no-op once the task has finished; Done closes when the
// pipeline goroutine has fully exited.
type ResponseTask struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu    sync.Mutex
	state TaskState
}

func newResponseTask(cancel context.CancelFunc) *ResponseTask {
	return &ResponseTask{
		cancel: cancel,
		done:   make(chan struct{}),
		state:  TaskRunning,
	}
}

// Cancel requests cooperative cancellation. Only a running task transitions
// to cancelled; completed or failed tasks are left as they are.
func (t *ResponseTask) Cancel() {
	t.mu.Lock()
	if t.state == TaskRunning {
		t.state = TaskCancelled
	}
	t.mu.Unlock()
	t.cancel()
}

// State returns the current lifecycle state.
func (t *ResponseTask) State() TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Done closes when the pipeline goroutine has exited.
func (t *ResponseTask) Done() <-chan struct{} {
	return t.done
}

// finish records the terminal state from within the pipeline goroutine.
// A cancel that already happened wins over a late completion.
func (t *ResponseTask) finish(state TaskState) {
	t.mu.Lock()
	if t.state == TaskRunning {
		t.state = state
	}
	t.mu.Unlock()
	t.cancel()
	close(t.done)
}
