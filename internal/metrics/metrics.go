// Package metrics exports pipeline counters to Prometheus. A Collector is an
// events.EventHandler, so it observes a run through the same lifecycle events
// that drive the log.
package metrics

import (
	"context"

	"github.com/phrazzld/taskflow/internal/events"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "taskflow"

// Metric names, without the namespace prefix.
const (
	MetricTasksProduced = "tasks_produced_total"
	MetricTasksConsumed = "tasks_consumed_total"
	MetricTasksDropped  = "tasks_dropped_total"
	MetricTaskLatency   = "task_latency_seconds"
	MetricAccumulator   = "accumulator_value"
	MetricRunsFinished  = "runs_finished_total"
	MetricQueueLength   = "queue_length"
	MetricQueueCapacity = "queue_capacity"
)

const labelOperation = "operation"

// Collector turns lifecycle events into Prometheus metrics.
type Collector struct {
	registerer prometheus.Registerer

	produced    *prometheus.CounterVec
	consumed    *prometheus.CounterVec
	dropped     prometheus.Counter
	latency     prometheus.Histogram
	accumulator prometheus.Gauge
	runs        prometheus.Counter
}

var _ events.EventHandler = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		registerer: reg,
		produced: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      MetricTasksProduced,
				Help:      "Tasks created by producers.",
			},
			[]string{labelOperation},
		),
		consumed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      MetricTasksConsumed,
				Help:      "Tasks folded into the accumulator.",
			},
			[]string{labelOperation},
		),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricTasksDropped,
			Help:      "Tasks discarded because the queue closed before they could be enqueued.",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      MetricTaskLatency,
			Help:      "Time from task creation to the end of its processing.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		accumulator: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      MetricAccumulator,
			Help:      "Last observed accumulator value.",
		}),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricRunsFinished,
			Help:      "Pipeline runs whose workers have all been joined.",
		}),
	}

	for _, m := range []prometheus.Collector{
		c.produced, c.consumed, c.dropped, c.latency, c.accumulator, c.runs,
	} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// HandleEvent implements events.EventHandler.
func (c *Collector) HandleEvent(_ context.Context, e *events.Event) error {
	switch e.Kind {
	case events.KindTaskCreated:
		c.produced.WithLabelValues(e.Operation).Inc()
	case events.KindTaskProcessed:
		c.consumed.WithLabelValues(e.Operation).Inc()
		c.latency.Observe(e.Elapsed.Seconds())
		c.accumulator.Set(float64(e.Value))
	case events.KindTaskDropped:
		c.dropped.Inc()
	case events.KindRunFinished:
		c.accumulator.Set(float64(e.Value))
		c.runs.Inc()
	}
	return nil
}

// QueueSource reports the live length and capacity of a queue.
type QueueSource interface {
	Len() int
	Cap() int
}

// TrackQueue exports the length and capacity of q as gauges sampled on
// every scrape.
func (c *Collector) TrackQueue(q QueueSource) error {
	length := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      MetricQueueLength,
		Help:      "Tasks currently waiting in the queue.",
	}, func() float64 { return float64(q.Len()) })

	capacity := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      MetricQueueCapacity,
		Help:      "Fixed capacity of the queue.",
	}, func() float64 { return float64(q.Cap()) })

	if err := c.registerer.Register(length); err != nil {
		return err
	}
	return c.registerer.Register(capacity)
}
