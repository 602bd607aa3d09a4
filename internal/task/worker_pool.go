package task

import (
	"fmt"
	"log/slog"

	"github.com/phrazzld/taskflow/internal/substrate"
)

// WorkerPool runs a fixed number of identical workers on a substrate and
// joins them on shutdown.
type WorkerPool struct {
	// runtime spawns, suspends and joins the workers
	runtime substrate.Runtime

	// role prefixes worker names, e.g. "producer" or "consumer"
	role string

	// workerCount is the number of concurrent workers to start
	workerCount int

	// handles tracks started workers for joining
	handles []substrate.Handle

	// logger for structured logging
	logger *slog.Logger
}

// WorkerPoolConfig holds configuration options for the worker pool
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent workers to start
	// If zero or negative, defaults to 1
	WorkerCount int
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount: 5,
	}
}

// NewWorkerPool creates a new worker pool with the specified configuration
func NewWorkerPool(
	runtime substrate.Runtime,
	role string,
	config WorkerPoolConfig,
	logger *slog.Logger,
) *WorkerPool {
	// Apply defaults for invalid config values
	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count specified, using default",
			"role", role,
			"specified_count", config.WorkerCount,
			"default_count", 1)
	}

	return &WorkerPool{
		runtime:     runtime,
		role:        role,
		workerCount: workerCount,
		logger:      logger,
	}
}

// Size returns the number of workers the pool runs.
func (p *WorkerPool) Size() int {
	return p.workerCount
}

// WorkerName returns the name of worker number i.
func (p *WorkerPool) WorkerName(i int) string {
	return fmt.Sprintf("%s-%d", p.role, i)
}

// Start spawns every worker. Each runs fn with its own worker number.
func (p *WorkerPool) Start(fn func(worker int)) {
	p.handles = make([]substrate.Handle, 0, p.workerCount)
	for i := 0; i < p.workerCount; i++ {
		name := p.WorkerName(i)
		p.logger.Debug("starting worker", "worker", name, "substrate", p.runtime.Name())
		p.handles = append(p.handles, p.runtime.Spawn(name, func() { fn(i) }))
	}
}

// Wait joins every started worker.
func (p *WorkerPool) Wait() {
	substrate.JoinAll(p.handles)
	p.logger.Debug("all workers joined", "role", p.role, "count", len(p.handles))
}
