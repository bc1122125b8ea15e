package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pulsekeep/pulsekeep/internal/queue"
)

// WorkerConfig controls batch size, polling cadence, and enrichment
// concurrency.
type WorkerConfig struct {
	BatchSize int           // messages leased per cycle
	Interval  time.Duration // poll interval
	// MaxConcurrent bounds in-flight message handling so a burst of worthy
	// pulses cannot exhaust model quota or local resources.
	MaxConcurrent int
}

// Counters expose processing totals for the ops surface.
type Counters struct {
	Processed  atomic.Int64
	Retried    atomic.Int64
	DeadLetter atomic.Int64
}

// Worker drains the stop-event queue and runs the pipeline per message.
type Worker struct {
	q        queue.Queue
	proc     *Processor
	cfg      WorkerConfig
	log      zerolog.Logger
	counters Counters
}

// NewWorker constructs a Worker from dependencies.
func NewWorker(q queue.Queue, proc *Processor, cfg WorkerConfig, log zerolog.Logger) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 8
	}
	return &Worker{q: q, proc: proc, cfg: cfg, log: log}
}

// Counters returns the live processing totals.
func (w *Worker) Counters() *Counters { return &w.counters }

// Run starts the polling loop until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().Int("batch", w.cfg.BatchSize).Dur("interval", w.cfg.Interval).
		Int("max_concurrent", w.cfg.MaxConcurrent).Msg("enrichment worker starting")
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("enrichment worker stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := w.processOnce(ctx); err != nil {
				// Log and continue; queue-side backoff prevents hot-looping.
				w.log.Error().Err(err).Msg("worker cycle failed")
			}
		}
	}
}

// processOnce leases one batch and settles every delivery.
func (w *Worker) processOnce(ctx context.Context) error {
	deliveries, err := w.q.Dequeue(ctx, w.cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(deliveries) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.MaxConcurrent)
	for _, d := range deliveries {
		d := d
		g.Go(func() error {
			w.settle(gctx, d)
			return nil
		})
	}
	return g.Wait()
}

// settle runs the processor and applies the disposition to the queue.
func (w *Worker) settle(ctx context.Context, d queue.Delivery) {
	disposition, perr := w.proc.Process(ctx, d)

	var err error
	switch disposition {
	case DispositionAck:
		w.counters.Processed.Add(1)
		err = w.q.Ack(ctx, d.Handle)
	case DispositionRetry:
		w.counters.Retried.Add(1)
		err = w.q.Nack(ctx, d.Handle)
	case DispositionDead:
		w.counters.DeadLetter.Add(1)
		reason := "processing failed"
		if perr != nil {
			reason = perr.Error()
		}
		err = w.q.DeadLetter(ctx, d.Handle, reason)
	}
	if err != nil {
		// The message will resurface after its visibility window; handlers
		// are idempotent so a duplicate pass is harmless.
		w.log.Error().Err(err).
			Str("user_id", d.UserID).Str("pulse_id", d.PulseID).
			Int("disposition", int(disposition)).
			Msg("queue settle failed")
	}
}
