package memqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsekeep/pulsekeep/internal/model"
	"github.com/pulsekeep/pulsekeep/internal/queue"
)

func msg(pulseID string) queue.Message {
	return queue.Message{
		UserID:  "u1",
		PulseID: pulseID,
		Stopped: model.StoppedPulse{
			Pulse: model.Pulse{UserID: "u1", PulseID: pulseID, Intent: "work", EnergyType: model.EnergyDeepWork},
		},
	}
}

func TestMemQueue_DeliverAckNack(t *testing.T) {
	ctx := context.Background()
	q := New(3, 30*time.Second)
	now := time.Now().UTC()
	q.SetNow(func() time.Time { return now })

	require.NoError(t, q.Enqueue(ctx, msg("p1")))
	require.NoError(t, q.Enqueue(ctx, msg("p2")))

	got, err := q.Dequeue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Attempt)

	require.NoError(t, q.Ack(ctx, got[0].Handle))
	require.NoError(t, q.Nack(ctx, got[1].Handle))

	// Nacked message comes back after its backoff.
	now = now.Add(5 * time.Second)
	redelivered, err := q.Dequeue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, redelivered, 1)
	assert.Equal(t, got[1].Handle, redelivered[0].Handle)
	assert.Equal(t, 2, redelivered[0].Attempt)

	assert.ErrorIs(t, q.Ack(ctx, queue.AckHandle(404)), queue.ErrUnknownHandle)
}

func TestMemQueue_BudgetThenReplay(t *testing.T) {
	ctx := context.Background()
	q := New(2, 30*time.Second)
	now := time.Now().UTC()
	q.SetNow(func() time.Time { return now })

	require.NoError(t, q.Enqueue(ctx, msg("p1")))
	for i := 0; i < 2; i++ {
		got, err := q.Dequeue(ctx, 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.NoError(t, q.Nack(ctx, got[0].Handle))
		now = now.Add(time.Hour)
	}

	dead, err := q.ListDead(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "p1", dead[0].Message.PulseID)

	require.NoError(t, q.Replay(ctx, dead[0].Handle))
	got, err := q.Dequeue(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Attempt)
}

func TestMemQueue_VisibilityLapse(t *testing.T) {
	ctx := context.Background()
	q := New(5, 10*time.Second)
	now := time.Now().UTC()
	q.SetNow(func() time.Time { return now })

	require.NoError(t, q.Enqueue(ctx, msg("p1")))
	first, err := q.Dequeue(ctx, 1)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Still leased.
	none, err := q.Dequeue(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, none)

	now = now.Add(11 * time.Second)
	second, err := q.Dequeue(ctx, 1)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, 2, second[0].Attempt)
}

func TestMemQueue_Stats(t *testing.T) {
	ctx := context.Background()
	q := New(3, 30*time.Second)

	require.NoError(t, q.Enqueue(ctx, msg("a")))
	require.NoError(t, q.Enqueue(ctx, msg("b")))
	got, err := q.Dequeue(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NoError(t, q.DeadLetter(ctx, got[0].Handle, "bad"))

	s, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.Pending)
	assert.Equal(t, int64(1), s.Dead)
}
