package task

import (
	"fmt"
	"strings"
	"time"
)

// Operation is the arithmetic applied by a task to the accumulator.
type Operation uint8

// The fixed operation set. Nothing outside it is ever generated.
const (
	OpAdd Operation = iota
	OpSub
	OpMul
)

// Operations lists every valid operation in declaration order.
var Operations = [...]Operation{OpAdd, OpSub, OpMul}

// String returns the lower-case name used in logs and events.
func (o Operation) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	case OpMul:
		return "mul"
	default:
		return fmt.Sprintf("Operation(%d)", uint8(o))
	}
}

// Valid reports whether o belongs to the fixed operation set.
func (o Operation) Valid() bool {
	return o <= OpMul
}

// ParseOperation converts a name produced by String back to an Operation.
func ParseOperation(name string) (Operation, error) {
	switch strings.ToLower(name) {
	case "add":
		return OpAdd, nil
	case "sub":
		return OpSub, nil
	case "mul":
		return OpMul, nil
	default:
		return 0, fmt.Errorf("unknown operation %q", name)
	}
}

// Task represents a unit of work: one operation with its operand, tagged
// with a unique id and the time it was created. A Task is immutable once
// constructed; it is handed from a producer to the queue to exactly one
// consumer.
type Task struct {
	id        uint64
	operation Operation
	operand   float32
	createdAt time.Time
}

// New constructs a Task.
func New(id uint64, op Operation, operand float32, createdAt time.Time) Task {
	return Task{
		id:        id,
		operation: op,
		operand:   operand,
		createdAt: createdAt,
	}
}

// ID returns the task's unique identifier.
func (t Task) ID() uint64 { return t.id }

// Operation returns the arithmetic operation.
func (t Task) Operation() Operation { return t.operation }

// Operand returns the right-hand side of the operation.
func (t Task) Operand() float32 { return t.operand }

// CreatedAt returns the time the producer built the task.
func (t Task) CreatedAt() time.Time { return t.createdAt }

// TaskQueueReader provides read-only access to the task queue
// allowing consumers to take tasks without the ability to enqueue.
type TaskQueueReader interface {
	// Pop blocks until a task is available or the queue is drained.
	Pop() (Task, error)
}

// TaskQueueWriter provides write access to the task queue
// allowing producers to enqueue tasks for processing.
type TaskQueueWriter interface {
	// Push blocks until the task is enqueued or the queue is closed.
	Push(task Task) error

	// Close closes the task queue, preventing further task submission
	Close()
}
