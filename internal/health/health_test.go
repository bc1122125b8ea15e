package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakePinger struct {
	failing atomic.Int32
}

func (f *fakePinger) HealthPing(context.Context) error {
	if f.failing.Load() == 1 {
		return errors.New("ping failed")
	}
	return nil
}

func TestPingChecker_RecoversAfterFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := &fakePinger{}
	c := NewPingChecker("store", p, zerolog.Nop(), time.Second)
	go c.Start(ctx, 10*time.Millisecond)

	waitTrue(t, c.IsHealthy)

	p.failing.Store(1)
	waitTrue(t, func() bool { return !c.IsHealthy() })

	p.failing.Store(0)
	waitTrue(t, c.IsHealthy)
}

func TestWorkerHealth_AggregatesComponents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storePing := &fakePinger{}
	queuePing := &fakePinger{}
	h := NewWorkerHealth(zerolog.Nop(),
		NewPingChecker("store", storePing, zerolog.Nop(), time.Second),
		NewPingChecker("queue", queuePing, zerolog.Nop(), time.Second),
	)
	go h.Start(ctx, 10*time.Millisecond)

	waitTrue(t, h.IsReady)

	queuePing.failing.Store(1)
	waitTrue(t, func() bool { return !h.IsReady() })

	queuePing.failing.Store(0)
	waitTrue(t, h.IsReady)
}

func waitTrue(t *testing.T, pred func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if pred() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before timeout")
}
