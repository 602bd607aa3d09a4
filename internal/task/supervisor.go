package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow/internal/events"
	"github.com/phrazzld/taskflow/internal/substrate"
)

// ErrAlreadyStarted is returned when Run is called on a supervisor that has
// already run.
var ErrAlreadyStarted = errors.New("supervisor already started")

// SupervisorConfig holds configuration for the supervisor
type SupervisorConfig struct {
	// Producers is the number of producer workers
	Producers int

	// Consumers is the number of consumer workers
	Consumers int

	// QueueCapacity is the maximum number of tasks waiting in the queue
	QueueCapacity int

	// Duration is the run window; production stops when it expires
	Duration time.Duration

	// MaxTasks stops production after this many ids. Zero means unlimited.
	MaxTasks uint64

	// InitialValue is the starting value of the accumulator
	InitialValue float32
}

// DefaultSupervisorConfig returns a SupervisorConfig with reasonable defaults
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		Producers:     5,
		Consumers:     5,
		QueueCapacity: 100,
		Duration:      10 * time.Second,
	}
}

func (c SupervisorConfig) validate() error {
	switch {
	case c.Producers <= 0:
		return fmt.Errorf("producers must be positive, got %d", c.Producers)
	case c.Consumers <= 0:
		return fmt.Errorf("consumers must be positive, got %d", c.Consumers)
	case c.QueueCapacity <= 0:
		return fmt.Errorf("queue capacity must be positive, got %d", c.QueueCapacity)
	case c.Duration <= 0:
		return fmt.Errorf("duration must be positive, got %s", c.Duration)
	}
	return nil
}

// SupervisorState is the lifecycle stage of a Supervisor.
type SupervisorState string

// Supervisor states, in order.
const (
	StateIdle     SupervisorState = "idle"
	StateRunning  SupervisorState = "running"
	StateStopping SupervisorState = "stopping"
	StateStopped  SupervisorState = "stopped"
)

// StopReason records why production ended.
type StopReason string

// Stop reasons.
const (
	StopWindowElapsed   StopReason = "window_elapsed"
	StopSignaled        StopReason = "signaled"
	StopBudgetExhausted StopReason = "budget_exhausted"
)

// Summary describes a finished run.
type Summary struct {
	RunID uuid.UUID

	// Produced counts tasks successfully pushed onto the queue.
	Produced uint64
	// Consumed counts tasks folded into the accumulator.
	Consumed uint64
	// Dropped counts tasks whose id was reserved but whose push failed
	// because the queue had closed.
	Dropped uint64
	// Issued counts ids handed out.
	Issued uint64

	Accumulator float32

	StartedAt       time.Time
	StopRequestedAt time.Time
	FinishedAt      time.Time
	StopReason      StopReason
}

// Snapshot is a point-in-time view of a supervisor for status reporting.
type Snapshot struct {
	RunID       uuid.UUID       `json:"run_id"`
	State       SupervisorState `json:"state"`
	Substrate   string          `json:"substrate"`
	Producers   int             `json:"producers"`
	Consumers   int             `json:"consumers"`
	Produced    uint64          `json:"produced"`
	Consumed    uint64          `json:"consumed"`
	Dropped     uint64          `json:"dropped"`
	QueueLen    int             `json:"queue_len"`
	QueueCap    int             `json:"queue_cap"`
	QueueState  QueueState      `json:"queue_state"`
	Accumulator float32         `json:"accumulator"`
	Error       string          `json:"error,omitempty"`
}

// Supervisor owns the shared state of one pipeline run: the id counter, the
// accumulator and the bounded queue. It spawns the producer and consumer
// workers, stops production when the run window ends and joins every worker
// before returning. A Supervisor runs once.
type Supervisor struct {
	config  SupervisorConfig
	runtime substrate.Runtime
	emitter events.EventEmitter
	logger  *slog.Logger
	runID   uuid.UUID

	ids       *IDCounter
	acc       *Accumulator
	queue     *TaskQueue
	producers *WorkerPool
	consumers *WorkerPool

	policies     PolicyFactory
	fatalHandler func(err error)

	// ctx carries values for emitted events; it is never cancelled.
	ctx context.Context

	started       atomic.Bool
	stateMu       sync.Mutex
	state         SupervisorState
	produced      atomic.Uint64
	consumed      atomic.Uint64
	dropped       atomic.Uint64
	producersLeft atomic.Int32
	producersDone chan struct{}

	failMu  sync.Mutex
	failure error
}

// NewSupervisor creates a Supervisor and the shared state of its run. Locks
// for the id counter and the accumulator come from runtime, so both follow
// the substrate's blocking model.
func NewSupervisor(
	config SupervisorConfig,
	runtime substrate.Runtime,
	emitter events.EventEmitter,
	logger *slog.Logger,
) (*Supervisor, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid supervisor config: %w", err)
	}
	if emitter == nil {
		emitter = events.NewInMemoryEventEmitter(logger)
	}

	runID := uuid.New()
	logger = logger.With("component", "supervisor", "run_id", runID)

	s := &Supervisor{
		config:        config,
		runtime:       runtime,
		emitter:       emitter,
		logger:        logger,
		runID:         runID,
		ids:           NewIDCounter(runtime.NewLocker(), config.MaxTasks),
		acc:           NewAccumulator(runtime.NewLocker(), config.InitialValue),
		queue:         NewTaskQueue(config.QueueCapacity, logger),
		producers:     NewWorkerPool(runtime, "producer", WorkerPoolConfig{WorkerCount: config.Producers}, logger),
		consumers:     NewWorkerPool(runtime, "consumer", WorkerPoolConfig{WorkerCount: config.Consumers}, logger),
		policies:      UnseededPolicies(100*time.Millisecond, time.Second),
		ctx:           context.Background(),
		state:         StateIdle,
		producersDone: make(chan struct{}),
	}
	s.fatalHandler = func(err error) {
		// Shared state can no longer be trusted; there is no recovery path.
		os.Exit(1)
	}
	s.producersLeft.Store(int32(config.Producers))

	return s, nil
}

// SetPolicyFactory replaces the source of randomized choices. It must be
// called before Run.
func (s *Supervisor) SetPolicyFactory(factory PolicyFactory) {
	s.policies = factory
}

// SetFatalHandler replaces the handler invoked on an unrecoverable failure.
// The default terminates the process. It must be called before Run.
func (s *Supervisor) SetFatalHandler(handler func(err error)) {
	s.fatalHandler = handler
}

// RunID returns the identifier of this supervisor's run.
func (s *Supervisor) RunID() uuid.UUID {
	return s.runID
}

// Run executes the pipeline. It returns after production has stopped and
// every worker has been joined. The run window ends when the configured
// duration expires, when ctx is cancelled, or when every producer has
// stopped on its own. Tasks already enqueued at that point are still
// consumed before Run returns.
func (s *Supervisor) Run(ctx context.Context) (Summary, error) {
	if !s.started.CompareAndSwap(false, true) {
		return Summary{}, ErrAlreadyStarted
	}
	s.ctx = context.WithoutCancel(ctx)

	summary := Summary{RunID: s.runID, StartedAt: time.Now()}
	s.setState(StateRunning)
	s.logger.Info("starting pipeline",
		"substrate", s.runtime.Name(),
		"producers", s.producers.Size(),
		"consumers", s.consumers.Size(),
		"queue_capacity", s.queue.Cap(),
		"duration", s.config.Duration.String(),
		"max_tasks", s.config.MaxTasks)

	s.consumers.Start(s.consume)
	s.producers.Start(s.produce)

	timer := time.NewTimer(s.config.Duration)
	defer timer.Stop()

	select {
	case <-timer.C:
		summary.StopReason = StopWindowElapsed
	case <-ctx.Done():
		summary.StopReason = StopSignaled
	case <-s.producersDone:
		summary.StopReason = StopBudgetExhausted
	}

	s.setState(StateStopping)
	if _, err := s.ids.RequestStop(); err != nil {
		s.fail(err)
	}
	summary.StopRequestedAt = time.Now()
	s.logger.Info("stopping pipeline", "reason", summary.StopReason)

	s.queue.Close()

	s.producers.Wait()
	s.consumers.Wait()
	s.setState(StateStopped)
	summary.FinishedAt = time.Now()

	summary.Produced = s.produced.Load()
	summary.Consumed = s.consumed.Load()
	summary.Dropped = s.dropped.Load()
	if issued, err := s.ids.Issued(); err == nil {
		summary.Issued = issued
	}
	if value, err := s.acc.Value(); err == nil {
		summary.Accumulator = value
	}

	finished := events.New(events.KindRunFinished, s.runID)
	finished.Value = summary.Accumulator
	finished.Totals = &events.Totals{
		Produced: summary.Produced,
		Consumed: summary.Consumed,
		Dropped:  summary.Dropped,
	}
	s.emit(finished)

	return summary, s.err()
}

// Snapshot returns the current state of the run.
func (s *Supervisor) Snapshot() Snapshot {
	snap := Snapshot{
		RunID:      s.runID,
		State:      s.State(),
		Substrate:  s.runtime.Name(),
		Producers:  s.producers.Size(),
		Consumers:  s.consumers.Size(),
		Produced:   s.produced.Load(),
		Consumed:   s.consumed.Load(),
		Dropped:    s.dropped.Load(),
		QueueLen:   s.queue.Len(),
		QueueCap:   s.queue.Cap(),
		QueueState: s.queue.State(),
	}

	value, err := s.acc.Value()
	if err != nil {
		snap.Error = err.Error()
	} else {
		snap.Accumulator = value
	}
	return snap
}

// Queue returns the supervisor's task queue.
func (s *Supervisor) Queue() *TaskQueue {
	return s.queue
}

// State returns the current lifecycle stage.
func (s *Supervisor) State() SupervisorState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

func (s *Supervisor) setState(state SupervisorState) {
	s.stateMu.Lock()
	s.state = state
	s.stateMu.Unlock()
}

// produce is the loop of one producer worker.
func (s *Supervisor) produce(worker int) {
	defer s.producerExited()

	name := s.producers.WorkerName(worker)
	policy := s.policies(worker)
	logger := s.logger.With("worker", name)

	for {
		id, ok, err := s.ids.TryReserveNext()
		if err != nil {
			s.fail(fmt.Errorf("%s: reserve id: %w", name, err))
			return
		}
		if !ok {
			logger.Debug("producer stopped", "reason", "production stopped")
			return
		}

		t := New(id, policy.Operation(), policy.Operand(), time.Now())
		s.emit(s.taskEvent(events.KindTaskCreated, name, t))

		if err := s.queue.Push(t); err != nil {
			// ErrQueueClosed is the only failure; the task is discarded.
			s.dropped.Add(1)
			s.emit(s.taskEvent(events.KindTaskDropped, name, t))
			logger.Debug("producer stopped", "reason", "queue closed")
			return
		}
		s.produced.Add(1)

		s.runtime.Sleep(policy.Pause())
	}
}

// consume is the loop of one consumer worker.
func (s *Supervisor) consume(worker int) {
	name := s.consumers.WorkerName(worker)
	defer func() {
		// A panic while folding leaves the accumulator poisoned.
		if r := recover(); r != nil {
			s.fail(fmt.Errorf("%s: %v: %w", name, r, substrate.ErrSynchronizationFailure))
		}
	}()
	policy := s.policies(s.producers.Size() + worker)
	logger := s.logger.With("worker", name)

	for {
		t, err := s.queue.Pop()
		if err != nil {
			logger.Debug("consumer stopped", "reason", "queue drained")
			return
		}
		s.emit(s.taskEvent(events.KindTaskConsumed, name, t))

		value, err := s.acc.Apply(t)
		if err != nil {
			s.fail(fmt.Errorf("%s: apply task %d: %w", name, t.ID(), err))
			return
		}
		elapsed := time.Since(t.CreatedAt())
		s.consumed.Add(1)

		processed := s.taskEvent(events.KindTaskProcessed, name, t)
		processed.Value = value
		processed.Elapsed = elapsed
		s.emit(processed)

		s.runtime.Sleep(policy.Pause())
	}
}

func (s *Supervisor) producerExited() {
	if s.producersLeft.Add(-1) == 0 {
		close(s.producersDone)
	}
}

func (s *Supervisor) taskEvent(kind events.Kind, worker string, t Task) *events.Event {
	e := events.New(kind, s.runID)
	e.Worker = worker
	e.TaskID = t.ID()
	e.Operation = t.Operation().String()
	e.Operand = t.Operand()
	e.TaskCreatedAt = t.CreatedAt()
	return e
}

func (s *Supervisor) emit(e *events.Event) {
	if err := s.emitter.EmitEvent(s.ctx, e); err != nil {
		s.logger.Warn("event handler failed", "event_kind", e.Kind, "error", err)
	}
}

// fail records the first unrecoverable error and hands it to the fatal
// handler.
func (s *Supervisor) fail(err error) {
	s.failMu.Lock()
	if s.failure == nil {
		s.failure = err
	}
	s.failMu.Unlock()

	s.logger.Error("fatal pipeline failure", "error", err)
	s.fatalHandler(err)
}

func (s *Supervisor) err() error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	return s.failure
}
