package ops

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/pulsekeep/pulsekeep/internal/pipeline"
	"github.com/pulsekeep/pulsekeep/internal/queue"
)

// Handler serves the worker's operational endpoints: liveness, readiness,
// and processing stats.
type Handler struct {
	ready        func() bool
	q            queue.Queue
	counters     *pipeline.Counters
	breakerState func() string
	log          zerolog.Logger
}

// NewHandler constructs the ops handler. breakerState may be nil when the AI
// path is disabled.
func NewHandler(ready func() bool, q queue.Queue, counters *pipeline.Counters, breakerState func() string, log zerolog.Logger) *Handler {
	return &Handler{ready: ready, q: q, counters: counters, breakerState: breakerState, log: log}
}

// Router builds the ops route table.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/v0/health/live", h.handleLive).Methods(http.MethodGet)
	r.HandleFunc("/v0/health/ready", h.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/v0/stats", h.handleStats).Methods(http.MethodGet)
	return r
}

func (h *Handler) handleLive(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "UP",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil && h.ready() {
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "UP",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	WriteJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
		"status":    "DOWN",
		"message":   "one or more dependencies unavailable",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// statsResponse snapshots queue depths and processing totals.
type statsResponse struct {
	Queue        queue.Stats `json:"queue"`
	Processed    int64       `json:"processed"`
	Retried      int64       `json:"retried"`
	DeadLettered int64       `json:"dead_lettered"`
	BreakerState string      `json:"breaker_state,omitempty"`
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	qs, err := h.q.Stats(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("queue stats failed")
		WriteError(w, http.StatusInternalServerError, "queue stats unavailable")
		return
	}
	resp := statsResponse{Queue: qs}
	if h.counters != nil {
		resp.Processed = h.counters.Processed.Load()
		resp.Retried = h.counters.Retried.Load()
		resp.DeadLettered = h.counters.DeadLetter.Load()
	}
	if h.breakerState != nil {
		resp.BreakerState = h.breakerState()
	}
	WriteJSON(w, http.StatusOK, resp)
}
