package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsekeep/pulsekeep/internal/model"
	"github.com/pulsekeep/pulsekeep/internal/pipeline"
	"github.com/pulsekeep/pulsekeep/internal/queue"
	"github.com/pulsekeep/pulsekeep/internal/queue/memqueue"
)

func newTestHandler(t *testing.T, ready bool) (*Handler, queue.Queue, *pipeline.Counters) {
	t.Helper()
	q := memqueue.New(3, 30*time.Second)
	counters := &pipeline.Counters{}
	h := NewHandler(func() bool { return ready }, q, counters, func() string { return "closed" }, zerolog.Nop())
	return h, q, counters
}

func TestHandler_Liveness(t *testing.T) {
	h, _, _ := newTestHandler(t, false)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v0/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_Readiness(t *testing.T) {
	ready, _, _ := newTestHandler(t, true)
	rec := httptest.NewRecorder()
	ready.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v0/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	notReady, _, _ := newTestHandler(t, false)
	rec = httptest.NewRecorder()
	notReady.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v0/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandler_Stats(t *testing.T) {
	h, q, counters := newTestHandler(t, true)

	err := q.Enqueue(context.Background(), queue.Message{
		UserID:  "u1",
		PulseID: "p1",
		Stopped: model.StoppedPulse{Pulse: model.Pulse{UserID: "u1", PulseID: "p1"}},
	})
	require.NoError(t, err)
	counters.Processed.Add(4)
	counters.DeadLetter.Add(1)

	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v0/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Queue struct {
			Pending int64 `json:"pending"`
		} `json:"queue"`
		Processed    int64  `json:"processed"`
		DeadLettered int64  `json:"dead_lettered"`
		BreakerState string `json:"breaker_state"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Queue.Pending)
	assert.Equal(t, int64(4), resp.Processed)
	assert.Equal(t, int64(1), resp.DeadLettered)
	assert.Equal(t, "closed", resp.BreakerState)
}
