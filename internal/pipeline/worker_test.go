package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsekeep/pulsekeep/internal/queue"
	"github.com/pulsekeep/pulsekeep/internal/queue/memqueue"
)

func TestWorker_SettlesBatch(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := newTestProcessor(t, st, nil)
	q := memqueue.New(3, 30*time.Second)
	w := NewWorker(q, p, WorkerConfig{BatchSize: 10, MaxConcurrent: 4}, zerolog.Nop())

	good := worthyPulse("p-good")
	bad := worthyPulse("p-bad")
	bad.EnergyType = "gardening"
	require.NoError(t, q.Enqueue(ctx, queue.Message{UserID: good.UserID, PulseID: good.PulseID, Stopped: good}))
	require.NoError(t, q.Enqueue(ctx, queue.Message{UserID: bad.UserID, PulseID: bad.PulseID, Stopped: bad}))

	require.NoError(t, w.processOnce(ctx))

	s, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.Done)
	assert.Equal(t, int64(1), s.Dead)
	assert.Equal(t, int64(1), w.Counters().Processed.Load())
	assert.Equal(t, int64(1), w.Counters().DeadLetter.Load())

	_, err = st.Ingested().Get(ctx, good.UserID, good.PulseID)
	assert.NoError(t, err)
}

func TestWorker_EmptyQueueIsQuiet(t *testing.T) {
	st := newTestStore(t)
	p := newTestProcessor(t, st, nil)
	q := memqueue.New(3, 30*time.Second)
	w := NewWorker(q, p, WorkerConfig{}, zerolog.Nop())

	require.NoError(t, w.processOnce(context.Background()))
	assert.Equal(t, int64(0), w.Counters().Processed.Load())
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	st := newTestStore(t)
	p := newTestProcessor(t, st, nil)
	q := memqueue.New(3, 30*time.Second)
	w := NewWorker(q, p, WorkerConfig{Interval: 10 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
