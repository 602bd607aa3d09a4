package substrate

import (
	"context"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"golang.org/x/sync/semaphore"
)

// Tasks runs each worker as a lightweight goroutine scheduled by the Go
// runtime. Lock acquisition and sleeps park the goroutine without holding an
// OS thread. A panic in a worker is re-raised in the goroutine that waits on
// its handle.
type Tasks struct{}

var _ Runtime = Tasks{}

// Name implements Runtime.
func (Tasks) Name() string { return NameTasks }

// Spawn implements Runtime.
func (Tasks) Spawn(name string, fn func()) Handle {
	wg := conc.NewWaitGroup()
	wg.Go(fn)
	return wg
}

// Sleep implements Runtime.
func (Tasks) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	<-t.C
}

// NewLocker implements Runtime.
func (Tasks) NewLocker() sync.Locker {
	return &semLocker{sem: semaphore.NewWeighted(1)}
}

// semLocker adapts a weight-one semaphore to sync.Locker.
type semLocker struct {
	sem *semaphore.Weighted
}

func (l *semLocker) Lock() {
	// Acquire only fails when the context is done; Background never is.
	_ = l.sem.Acquire(context.Background(), 1)
}

func (l *semLocker) Unlock() {
	l.sem.Release(1)
}
