package substrate

import (
	"runtime"
	"sync"
	"time"
)

// Threads runs each worker on a dedicated OS thread. Locks and sleeps block
// that thread.
type Threads struct{}

var _ Runtime = Threads{}

// Name implements Runtime.
func (Threads) Name() string { return NameThreads }

// Spawn implements Runtime. The goroutine is locked to its thread for the
// whole lifetime of fn; the thread is released when fn returns.
func (Threads) Spawn(name string, fn func()) Handle {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		fn()
	}()
	return &wg
}

// Sleep implements Runtime.
func (Threads) Sleep(d time.Duration) {
	time.Sleep(d)
}

// NewLocker implements Runtime.
func (Threads) NewLocker() sync.Locker {
	return &sync.Mutex{}
}
