package substrate

import (
	"fmt"
	"sync"
	"time"
)

// Substrate names accepted by ByName and the configuration layer.
const (
	NameThreads = "threads"
	NameTasks   = "tasks"
)

// Handle is returned by Spawn and blocks in Wait until the worker returns.
type Handle interface {
	Wait()
}

// Runtime is the scheduling substrate a worker runs on.
type Runtime interface {
	// Name identifies the substrate in logs and snapshots.
	Name() string

	// Spawn starts fn as an independent worker.
	Spawn(name string, fn func()) Handle

	// Sleep suspends the calling worker for d. It is never interrupted.
	Sleep(d time.Duration)

	// NewLocker returns a fresh exclusive-access primitive.
	NewLocker() sync.Locker
}

// ByName returns the runtime registered under name.
func ByName(name string) (Runtime, error) {
	switch name {
	case NameThreads:
		return Threads{}, nil
	case NameTasks:
		return Tasks{}, nil
	default:
		return nil, fmt.Errorf("unknown substrate %q", name)
	}
}

// JoinAll waits for every handle in order.
func JoinAll(handles []Handle) {
	for _, h := range handles {
		h.Wait()
	}
}
