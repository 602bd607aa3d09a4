package events

import (
	"context"
	"fmt"
	"log/slog"
)

// LogHandler writes one structured log line per lifecycle event. The field
// names are stable; tools scraping the log rely on them.
type LogHandler struct {
	logger *slog.Logger
}

// NewLogHandler creates a LogHandler writing through logger.
func NewLogHandler(logger *slog.Logger) *LogHandler {
	return &LogHandler{logger: logger.With("component", "pipeline")}
}

// FormatValue renders an accumulator value with four decimal places.
func FormatValue(v float32) string {
	return fmt.Sprintf("%.4f", v)
}

// HandleEvent implements EventHandler.
func (h *LogHandler) HandleEvent(ctx context.Context, e *Event) error {
	switch e.Kind {
	case KindTaskCreated:
		h.logger.InfoContext(ctx, "producing task",
			"worker", e.Worker,
			"task_id", e.TaskID,
			"operation", e.Operation,
			"operand", e.Operand)
	case KindTaskConsumed:
		h.logger.InfoContext(ctx, "consuming task",
			"worker", e.Worker,
			"task_id", e.TaskID,
			"operation", e.Operation,
			"operand", e.Operand)
	case KindTaskProcessed:
		h.logger.InfoContext(ctx, "processed task",
			"worker", e.Worker,
			"task_id", e.TaskID,
			"value", FormatValue(e.Value),
			"elapsed_ms", e.Elapsed.Milliseconds())
	case KindTaskDropped:
		h.logger.WarnContext(ctx, "dropped task, queue closed",
			"worker", e.Worker,
			"task_id", e.TaskID)
	case KindRunFinished:
		attrs := []any{"run_id", e.RunID, "value", FormatValue(e.Value)}
		if e.Totals != nil {
			attrs = append(attrs,
				"produced", e.Totals.Produced,
				"consumed", e.Totals.Consumed,
				"dropped", e.Totals.Dropped)
		}
		h.logger.InfoContext(ctx, "all workers finished", attrs...)
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	return nil
}
