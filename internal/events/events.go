package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind identifies a lifecycle event.
type Kind string

// Lifecycle event kinds.
const (
	// KindTaskCreated is emitted by a producer right after it builds a task.
	KindTaskCreated Kind = "task_created"

	// KindTaskConsumed is emitted by a consumer right after it pops a task.
	KindTaskConsumed Kind = "task_consumed"

	// KindTaskProcessed is emitted once a task has been folded into the accumulator.
	KindTaskProcessed Kind = "task_processed"

	// KindTaskDropped is emitted when a reserved task could not be pushed
	// because the queue closed.
	KindTaskDropped Kind = "task_dropped"

	// KindRunFinished is emitted once every worker has been joined.
	KindRunFinished Kind = "run_finished"
)

// Totals carries the final counters of a run.
type Totals struct {
	Produced uint64 `json:"produced"`
	Consumed uint64 `json:"consumed"`
	Dropped  uint64 `json:"dropped"`
}

// Event is a single lifecycle occurrence of a pipeline run. Task fields are
// zero for run-level events.
type Event struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// RunID identifies the supervisor run that emitted the event
	RunID uuid.UUID `json:"run_id"`

	Kind   Kind   `json:"kind"`
	Worker string `json:"worker,omitempty"`

	TaskID        uint64    `json:"task_id"`
	Operation     string    `json:"operation,omitempty"`
	Operand       float32   `json:"operand"`
	TaskCreatedAt time.Time `json:"task_created_at"`

	// Value is the accumulator value after a task_processed or run_finished event.
	Value float32 `json:"value"`

	// Elapsed is the latency from task creation to the end of processing.
	Elapsed time.Duration `json:"elapsed"`

	Totals *Totals `json:"totals,omitempty"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// New creates an Event of the given kind for runID.
func New(kind Kind, runID uuid.UUID) *Event {
	return &Event{
		ID:        uuid.New(),
		RunID:     runID,
		Kind:      kind,
		CreatedAt: time.Now(),
	}
}

// EventHandler defines an interface for components that can handle events.
// Handlers are called concurrently from many workers and must be safe for
// concurrent use.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *Event) error
}

// EventEmitter defines an interface for components that can emit events.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *Event) error
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ctx context.Context, event *Event) error

// HandleEvent implements EventHandler.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *Event) error {
	return f(ctx, event)
}
