package metrics

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow/internal/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	length, capacity int
}

func (q fakeQueue) Len() int { return q.length }
func (q fakeQueue) Cap() int { return q.capacity }

func taskEvent(kind events.Kind, op string) *events.Event {
	e := events.New(kind, uuid.New())
	e.Worker = "worker-0"
	e.Operation = op
	return e
}

func TestCollector_HandleEvent(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.HandleEvent(ctx, taskEvent(events.KindTaskCreated, "add")))
	require.NoError(t, c.HandleEvent(ctx, taskEvent(events.KindTaskCreated, "add")))
	require.NoError(t, c.HandleEvent(ctx, taskEvent(events.KindTaskCreated, "mul")))
	require.NoError(t, c.HandleEvent(ctx, taskEvent(events.KindTaskConsumed, "add")))

	processed := taskEvent(events.KindTaskProcessed, "add")
	processed.Value = 1.5
	processed.Elapsed = 20 * time.Millisecond
	require.NoError(t, c.HandleEvent(ctx, processed))

	require.NoError(t, c.HandleEvent(ctx, taskEvent(events.KindTaskDropped, "mul")))

	assert.Equal(t, float64(2), testutil.ToFloat64(c.produced.WithLabelValues("add")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.produced.WithLabelValues("mul")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.consumed.WithLabelValues("add")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.dropped))
	assert.Equal(t, 1.5, testutil.ToFloat64(c.accumulator))
	assert.Equal(t, 1, testutil.CollectAndCount(c.latency))

	finished := events.New(events.KindRunFinished, uuid.New())
	finished.Value = -2.5
	require.NoError(t, c.HandleEvent(ctx, finished))
	assert.Equal(t, -2.5, testutil.ToFloat64(c.accumulator))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.runs))
}

func TestCollector_Exposition(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	require.NoError(t, c.HandleEvent(context.Background(), taskEvent(events.KindTaskDropped, "sub")))

	expected := `
# HELP taskflow_tasks_dropped_total Tasks discarded because the queue closed before they could be enqueued.
# TYPE taskflow_tasks_dropped_total counter
taskflow_tasks_dropped_total 1
`
	err = testutil.GatherAndCompare(reg, strings.NewReader(expected), "taskflow_tasks_dropped_total")
	assert.NoError(t, err)
}

func TestCollector_TrackQueue(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	require.NoError(t, c.TrackQueue(fakeQueue{length: 3, capacity: 100}))

	expected := `
# HELP taskflow_queue_capacity Fixed capacity of the queue.
# TYPE taskflow_queue_capacity gauge
taskflow_queue_capacity 100
# HELP taskflow_queue_length Tasks currently waiting in the queue.
# TYPE taskflow_queue_length gauge
taskflow_queue_length 3
`
	err = testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"taskflow_queue_length", "taskflow_queue_capacity")
	assert.NoError(t, err)

	// A second queue would clash with the first
	assert.Error(t, c.TrackQueue(fakeQueue{}))
}

func TestNewCollector_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewCollector(reg)
	require.NoError(t, err)

	_, err = NewCollector(reg)
	assert.Error(t, err)
}
