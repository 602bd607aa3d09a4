package task

import (
	"errors"
	"log/slog"
	"sync"
)

// Common errors returned by the TaskQueue
var (
	ErrQueueClosed  = errors.New("task queue is closed")
	ErrQueueDrained = errors.New("task queue is closed and drained")
)

// QueueState is the lifecycle stage of a TaskQueue.
type QueueState string

// Queue states. A queue moves Open → Closing → Drained and never back.
const (
	QueueOpen    QueueState = "open"
	QueueClosing QueueState = "closing"
	QueueDrained QueueState = "drained"
)

// TaskQueue is a fixed-capacity FIFO shared by many producers and many
// consumers. Push blocks while the queue is full and Pop blocks while it is
// empty. Closing only affects the producer side: tasks already enqueued stay
// poppable until the queue is drained.
type TaskQueue struct {
	tasks  chan Task
	logger *slog.Logger

	// closing is closed first on Close so blocked pushers wake up.
	closing   chan struct{}
	closeOnce sync.Once

	// mu is read-held by every push for its whole duration and write-held
	// by Close, so tasks is never closed under a pending send.
	mu     sync.RWMutex
	closed bool
}

var (
	_ TaskQueueReader = (*TaskQueue)(nil)
	_ TaskQueueWriter = (*TaskQueue)(nil)
)

// NewTaskQueue creates a new task queue holding at most capacity tasks.
// A capacity below one is raised to one.
func NewTaskQueue(capacity int, logger *slog.Logger) *TaskQueue {
	if capacity < 1 {
		logger.Warn("invalid queue capacity specified, using minimum",
			"specified_capacity", capacity,
			"capacity", 1)
		capacity = 1
	}

	return &TaskQueue{
		tasks:   make(chan Task, capacity),
		logger:  logger,
		closing: make(chan struct{}),
	}
}

// Push adds a task to the queue, blocking while the queue is full.
// Returns ErrQueueClosed if the queue is closed before the task could be
// enqueued; the caller then owns the task and discards it.
func (q *TaskQueue) Push(task Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	// A close that already started wins over free space.
	select {
	case <-q.closing:
		return ErrQueueClosed
	default:
	}

	select {
	case q.tasks <- task:
		q.logger.Debug("task enqueued",
			"task_id", task.ID(),
			"operation", task.Operation().String(),
			"queue_len", len(q.tasks),
			"queue_cap", cap(q.tasks))
		return nil
	case <-q.closing:
		return ErrQueueClosed
	}
}

// Pop removes the oldest task, blocking while the queue is open and empty.
// Returns ErrQueueDrained once the queue is closed and no task remains.
func (q *TaskQueue) Pop() (Task, error) {
	task, ok := <-q.tasks
	if !ok {
		return Task{}, ErrQueueDrained
	}
	return task, nil
}

// Close closes the producer side of the queue. Blocked and future pushes
// fail with ErrQueueClosed. Close is idempotent.
func (q *TaskQueue) Close() {
	q.closeOnce.Do(func() {
		close(q.closing)

		// Waits for in-flight pushes, which all return promptly now.
		q.mu.Lock()
		q.closed = true
		close(q.tasks)
		q.mu.Unlock()

		q.logger.Info("task queue closed", "remaining", len(q.tasks))
	})
}

// Len returns the number of tasks currently enqueued.
func (q *TaskQueue) Len() int {
	return len(q.tasks)
}

// Cap returns the fixed capacity of the queue.
func (q *TaskQueue) Cap() int {
	return cap(q.tasks)
}

// State reports where the queue is in its lifecycle.
func (q *TaskQueue) State() QueueState {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()

	switch {
	case !closed:
		return QueueOpen
	case len(q.tasks) > 0:
		return QueueClosing
	default:
		return QueueDrained
	}
}
