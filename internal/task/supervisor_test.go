package task

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/taskflow/internal/ciutil"
	"github.com/phrazzld/taskflow/internal/events"
	"github.com/phrazzld/taskflow/internal/platform/logger"
	"github.com/phrazzld/taskflow/internal/substrate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedPolicy replays a fixed list of operations and operands and never
// pauses.
type scriptedPolicy struct {
	mu       sync.Mutex
	ops      []Operation
	operands []float32
	next     int
	pause    time.Duration
}

func (p *scriptedPolicy) Operation() Operation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ops[p.next%len(p.ops)]
}

// Operand advances the script; the supervisor reads Operation first.
func (p *scriptedPolicy) Operand() float32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := p.operands[p.next%len(p.operands)]
	p.next++
	return v
}

func (p *scriptedPolicy) Pause() time.Duration {
	return p.pause
}

func fixedPolicies(op Operation, operand float32, pause time.Duration) PolicyFactory {
	return func(int) Policy {
		return &scriptedPolicy{ops: []Operation{op}, operands: []float32{operand}, pause: pause}
	}
}

var runtimes = []substrate.Runtime{substrate.Threads{}, substrate.Tasks{}}

func newTestSupervisor(
	t *testing.T,
	cfg SupervisorConfig,
	rt substrate.Runtime,
) (*Supervisor, *events.Recorder) {
	t.Helper()

	log := setupTestLogger()
	emitter := events.NewInMemoryEventEmitter(log)
	recorder := events.NewRecorder()
	emitter.RegisterHandler(recorder)

	sup, err := NewSupervisor(cfg, rt, emitter, log)
	require.NoError(t, err)
	sup.SetFatalHandler(func(err error) {
		t.Errorf("unexpected fatal error: %v", err)
	})
	return sup, recorder
}

func TestNewSupervisor_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *SupervisorConfig)
	}{
		{"no producers", func(c *SupervisorConfig) { c.Producers = 0 }},
		{"no consumers", func(c *SupervisorConfig) { c.Consumers = -1 }},
		{"zero capacity", func(c *SupervisorConfig) { c.QueueCapacity = 0 }},
		{"zero duration", func(c *SupervisorConfig) { c.Duration = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSupervisorConfig()
			tt.mutate(&cfg)

			sup, err := NewSupervisor(cfg, substrate.Threads{}, nil, setupTestLogger())
			assert.Error(t, err)
			assert.Nil(t, sup)
		})
	}
}

func TestDefaultSupervisorConfig(t *testing.T) {
	cfg := DefaultSupervisorConfig()
	assert.Equal(t, 5, cfg.Producers)
	assert.Equal(t, 5, cfg.Consumers)
	assert.Equal(t, 100, cfg.QueueCapacity)
	assert.Equal(t, 10*time.Second, cfg.Duration)
	assert.Zero(t, cfg.MaxTasks)
	assert.Zero(t, cfg.InitialValue)
}

func TestSupervisor_DeterministicFold(t *testing.T) {
	for _, rt := range runtimes {
		t.Run(rt.Name(), func(t *testing.T) {
			cfg := SupervisorConfig{
				Producers:     1,
				Consumers:     1,
				QueueCapacity: 1,
				Duration:      10 * time.Second,
				MaxTasks:      5,
			}
			sup, recorder := newTestSupervisor(t, cfg, rt)

			// 0 + 1 = 1, - 2 = -1, * 2 = -2, + 0.5 = -1.5, - 1 = -2.5
			producer := &scriptedPolicy{
				ops:      []Operation{OpAdd, OpSub, OpMul, OpAdd, OpSub},
				operands: []float32{1, 2, 2, 0.5, 1},
			}
			sup.SetPolicyFactory(func(worker int) Policy {
				if worker == 0 {
					return producer
				}
				return &scriptedPolicy{ops: []Operation{OpAdd}, operands: []float32{0}}
			})

			start := time.Now()
			summary, err := sup.Run(context.Background())
			require.NoError(t, err)

			assert.Less(t, time.Since(start), 5*time.Second, "budget should end the run early")
			assert.Equal(t, StopBudgetExhausted, summary.StopReason)
			assert.Equal(t, float32(-2.5), summary.Accumulator)
			assert.Equal(t, uint64(5), summary.Produced)
			assert.Equal(t, uint64(5), summary.Consumed)
			assert.Zero(t, summary.Dropped)
			assert.Equal(t, uint64(5), summary.Issued)

			processed := recorder.OfKind(events.KindTaskProcessed)
			require.Len(t, processed, 5)
			wantValues := []float32{1, -1, -2, -1.5, -2.5}
			for i, e := range processed {
				assert.Equal(t, uint64(i), e.TaskID, "single consumer sees FIFO order")
				assert.Equal(t, wantValues[i], e.Value)
				assert.Equal(t, "consumer-0", e.Worker)
			}

			finished := recorder.OfKind(events.KindRunFinished)
			require.Len(t, finished, 1)
			assert.Equal(t, float32(-2.5), finished[0].Value)
			require.NotNil(t, finished[0].Totals)
			assert.Equal(t, events.Totals{Produced: 5, Consumed: 5}, *finished[0].Totals)
		})
	}
}

func TestSupervisor_InitialValue(t *testing.T) {
	cfg := SupervisorConfig{
		Producers:     1,
		Consumers:     1,
		QueueCapacity: 4,
		Duration:      10 * time.Second,
		MaxTasks:      2,
		InitialValue:  10,
	}
	sup, _ := newTestSupervisor(t, cfg, substrate.Tasks{})
	sup.SetPolicyFactory(fixedPolicies(OpSub, 0.5, 0))

	summary, err := sup.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float32(9), summary.Accumulator)
}

func TestSupervisor_Stress(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in short mode")
	}

	for _, rt := range runtimes {
		t.Run(rt.Name(), func(t *testing.T) {
			cfg := SupervisorConfig{
				Producers:     5,
				Consumers:     5,
				QueueCapacity: 100,
				Duration:      2 * time.Second,
			}
			sup, recorder := newTestSupervisor(t, cfg, rt)
			maxPause := 20 * time.Millisecond
			sup.SetPolicyFactory(SeededPolicies(42, time.Millisecond, maxPause))

			start := time.Now()
			summary, err := sup.Run(context.Background())
			require.NoError(t, err)
			elapsed := time.Since(start)

			assert.Equal(t, StopWindowElapsed, summary.StopReason)
			assert.GreaterOrEqual(t, elapsed, cfg.Duration)
			assert.Less(t, elapsed, cfg.Duration+ciutil.Grace(time.Second), "workers must be joined promptly")

			assert.Positive(t, summary.Produced)
			assert.Equal(t, summary.Produced, summary.Consumed, "every enqueued task is consumed")
			assert.Equal(t, summary.Issued, summary.Produced+summary.Dropped, "every issued id is accounted for")

			created := recorder.OfKind(events.KindTaskCreated)
			consumed := recorder.OfKind(events.KindTaskConsumed)
			processed := recorder.OfKind(events.KindTaskProcessed)
			assert.Len(t, created, int(summary.Issued))
			assert.Len(t, consumed, int(summary.Consumed))
			assert.Len(t, processed, int(summary.Consumed))

			// Ids are unique and each task is consumed exactly once.
			seen := make(map[uint64]bool, len(created))
			for _, e := range created {
				assert.False(t, seen[e.TaskID], "task %d created twice", e.TaskID)
				seen[e.TaskID] = true
				assert.Less(t, e.TaskID, summary.Issued)
			}
			consumedIDs := make(map[uint64]bool, len(consumed))
			for _, e := range consumed {
				assert.False(t, consumedIDs[e.TaskID], "task %d consumed twice", e.TaskID)
				consumedIDs[e.TaskID] = true
				assert.True(t, seen[e.TaskID], "consumed task %d was never created", e.TaskID)
			}

			snap := sup.Snapshot()
			assert.Equal(t, StateStopped, snap.State)
			assert.Equal(t, QueueDrained, snap.QueueState)
			assert.Zero(t, snap.QueueLen)
			assert.Equal(t, summary.Accumulator, snap.Accumulator)
		})
	}
}

func TestSupervisor_ContextCancelEndsWindow(t *testing.T) {
	for _, rt := range runtimes {
		t.Run(rt.Name(), func(t *testing.T) {
			cfg := SupervisorConfig{
				Producers:     2,
				Consumers:     2,
				QueueCapacity: 10,
				Duration:      time.Minute,
			}
			sup, _ := newTestSupervisor(t, cfg, rt)
			sup.SetPolicyFactory(fixedPolicies(OpAdd, 0.5, 5*time.Millisecond))

			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			start := time.Now()
			summary, err := sup.Run(ctx)
			require.NoError(t, err)

			assert.Equal(t, StopSignaled, summary.StopReason)
			assert.Less(t, time.Since(start), 5*time.Second)
			assert.Equal(t, summary.Produced, summary.Consumed)
			assert.False(t, summary.StopRequestedAt.Before(summary.StartedAt))
			assert.False(t, summary.FinishedAt.Before(summary.StopRequestedAt))
		})
	}
}

func TestSupervisor_SlowConsumersFillQueue(t *testing.T) {
	cfg := SupervisorConfig{
		Producers:     3,
		Consumers:     1,
		QueueCapacity: 2,
		Duration:      200 * time.Millisecond,
	}
	sup, recorder := newTestSupervisor(t, cfg, substrate.Tasks{})
	sup.SetPolicyFactory(func(worker int) Policy {
		if worker < cfg.Producers {
			return &scriptedPolicy{ops: []Operation{OpAdd}, operands: []float32{1}}
		}
		return &scriptedPolicy{ops: []Operation{OpAdd}, operands: []float32{0}, pause: 50 * time.Millisecond}
	})

	summary, err := sup.Run(context.Background())
	require.NoError(t, err)

	// Producers were blocked on a full queue when it closed.
	assert.Positive(t, summary.Dropped)
	assert.Len(t, recorder.OfKind(events.KindTaskDropped), int(summary.Dropped))
	assert.Equal(t, summary.Produced, summary.Consumed)
	assert.Equal(t, float32(summary.Consumed), summary.Accumulator)
}

func TestSupervisor_RunTwice(t *testing.T) {
	cfg := SupervisorConfig{
		Producers:     1,
		Consumers:     1,
		QueueCapacity: 1,
		Duration:      time.Second,
		MaxTasks:      1,
	}
	sup, _ := newTestSupervisor(t, cfg, substrate.Threads{})
	sup.SetPolicyFactory(fixedPolicies(OpAdd, 1, 0))

	_, err := sup.Run(context.Background())
	require.NoError(t, err)

	_, err = sup.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestSupervisor_InvalidOperationIsFatal(t *testing.T) {
	for _, rt := range runtimes {
		t.Run(rt.Name(), func(t *testing.T) {
			cfg := SupervisorConfig{
				Producers:     1,
				Consumers:     2,
				QueueCapacity: 4,
				Duration:      200 * time.Millisecond,
				MaxTasks:      3,
			}
			sup, _ := newTestSupervisor(t, cfg, rt)

			var (
				mu     sync.Mutex
				fatals []error
			)
			sup.SetFatalHandler(func(err error) {
				mu.Lock()
				fatals = append(fatals, err)
				mu.Unlock()
			})
			sup.SetPolicyFactory(fixedPolicies(Operation(9), 1, 0))

			_, err := sup.Run(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, substrate.ErrSynchronizationFailure)

			mu.Lock()
			assert.NotEmpty(t, fatals)
			mu.Unlock()

			snap := sup.Snapshot()
			assert.NotEmpty(t, snap.Error, "poisoned accumulator is reported")
		})
	}
}

func TestSupervisor_Snapshot(t *testing.T) {
	cfg := SupervisorConfig{
		Producers:     2,
		Consumers:     3,
		QueueCapacity: 7,
		Duration:      time.Second,
		MaxTasks:      4,
	}
	sup, _ := newTestSupervisor(t, cfg, substrate.Tasks{})
	sup.SetPolicyFactory(fixedPolicies(OpAdd, 0.25, 0))

	snap := sup.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Equal(t, sup.RunID(), snap.RunID)
	assert.Equal(t, substrate.NameTasks, snap.Substrate)
	assert.Equal(t, 2, snap.Producers)
	assert.Equal(t, 3, snap.Consumers)
	assert.Equal(t, 7, snap.QueueCap)
	assert.Equal(t, QueueOpen, snap.QueueState)

	_, err := sup.Run(context.Background())
	require.NoError(t, err)

	snap = sup.Snapshot()
	assert.Equal(t, StateStopped, snap.State)
	assert.Equal(t, uint64(4), snap.Produced)
	assert.Equal(t, uint64(4), snap.Consumed)
	assert.Equal(t, float32(1), snap.Accumulator)

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "stopped", decoded["state"])
	assert.Equal(t, "drained", decoded["queue_state"])
	assert.NotContains(t, decoded, "error")
}

func TestSupervisor_LogLines(t *testing.T) {
	log, logBuf := logger.GetTestLogger(t)

	emitter := events.NewInMemoryEventEmitter(log)
	emitter.RegisterHandler(events.NewLogHandler(log))

	cfg := SupervisorConfig{
		Producers:     1,
		Consumers:     1,
		QueueCapacity: 2,
		Duration:      time.Second,
		MaxTasks:      2,
	}
	sup, err := NewSupervisor(cfg, substrate.Threads{}, emitter, log)
	require.NoError(t, err)
	sup.SetPolicyFactory(fixedPolicies(OpAdd, 0.5, 0))

	_, err = sup.Run(context.Background())
	require.NoError(t, err)

	produced, err := logBuf.EntriesWithMessage("producing task")
	require.NoError(t, err)
	assert.Len(t, produced, 2)

	processed, err := logBuf.EntriesWithMessage("processed task")
	require.NoError(t, err)
	require.Len(t, processed, 2)
	assert.Equal(t, "1.0000", processed[1]["value"])

	finished, err := logBuf.EntriesWithMessage("all workers finished")
	require.NoError(t, err)
	require.Len(t, finished, 1)
	assert.Equal(t, "1.0000", finished[0]["value"])
	assert.Equal(t, float64(2), finished[0]["consumed"])
}
