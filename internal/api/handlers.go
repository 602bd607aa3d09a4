package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/taskflow/internal/api/shared"
	"github.com/phrazzld/taskflow/internal/task"
)

// StatusHandler serves the status endpoints of one run.
type StatusHandler struct {
	stats  StatsProvider
	stop   func()
	logger *slog.Logger
}

// NewStatusHandler creates a StatusHandler. stop may be nil.
func NewStatusHandler(stats StatsProvider, stop func(), logger *slog.Logger) *StatusHandler {
	return &StatusHandler{stats: stats, stop: stop, logger: logger}
}

// Health reports that the process is serving.
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		h.logger.Error("failed to write health check response", "error", err)
	}
}

// Stats writes the current supervisor snapshot as JSON.
func (h *StatusHandler) Stats(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.stats.Snapshot())
}

// StopResponse is the body returned by a successful stop request.
type StopResponse struct {
	State task.SupervisorState `json:"state"`
}

// Stop ends the run window early. Only a running supervisor can be stopped.
func (h *StatusHandler) Stop(w http.ResponseWriter, r *http.Request) {
	snap := h.stats.Snapshot()
	if snap.State != task.StateRunning {
		shared.RespondWithError(w, r, http.StatusConflict, "run is not running")
		return
	}

	h.logger.Info("stop requested over HTTP",
		"run_id", snap.RunID,
		"trace_id", shared.GetTraceID(r.Context()))
	h.stop()

	shared.RespondWithJSON(w, r, http.StatusAccepted, StopResponse{State: task.StateStopping})
}
