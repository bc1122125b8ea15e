package enrichworker

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/pulsekeep/pulsekeep/internal/config"
	"github.com/pulsekeep/pulsekeep/internal/enrich"
	"github.com/pulsekeep/pulsekeep/internal/factory"
	"github.com/pulsekeep/pulsekeep/internal/health"
	"github.com/pulsekeep/pulsekeep/internal/llm"
	"github.com/pulsekeep/pulsekeep/internal/logger"
	"github.com/pulsekeep/pulsekeep/internal/ops"
	"github.com/pulsekeep/pulsekeep/internal/pipeline"
	"github.com/pulsekeep/pulsekeep/internal/selector"
)

// Run starts the enrichment worker and its ops HTTP server, blocking until
// shutdown or error.
func Run() error {
	log := logger.New("enrich-worker")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("db_driver", cfg.DBDriver).
		Str("model_provider", cfg.ModelProvider).
		Str("model_name", cfg.ModelName).
		Int("http_port", cfg.HTTPPort).
		Msg("Enrichment worker starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, err := factory.NewStorage(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("storage init failed")
		return err
	}
	defer func() { _ = storage.Close() }()

	model, err := llm.NewModel(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("model init failed")
		return err
	}
	defer func() { _ = model.Close() }()

	ai := enrich.NewAIEnricher(model, storage.Store.Markers(), storage.Store.Ingested(), enrich.AIConfig{
		MaxAttempts:             cfg.AIMaxAttempts,
		BreakerFailureThreshold: cfg.BreakerFailureThreshold,
		BreakerWindow:           time.Duration(cfg.BreakerWindowSeconds) * time.Second,
		BreakerCooloff:          time.Duration(cfg.BreakerCooloffSeconds) * time.Second,
	}, log)

	policy := selector.DefaultPolicy()
	policy.MaxLatency = time.Duration(cfg.AIBudgetLatencyMS) * time.Millisecond
	policy.MaxLatencyLong = time.Duration(cfg.AIBudgetLatencyLongMS) * time.Millisecond
	policy.MaxCostUnits = cfg.AIBudgetCostUnits

	coordinator := pipeline.NewCoordinator(storage.Store.Ingested(), log)
	processor := pipeline.NewProcessor(storage.Store, selector.New(policy), ai, coordinator, log)
	worker := pipeline.NewWorker(storage.Queue, processor, pipeline.WorkerConfig{
		BatchSize:     cfg.QueueBatchSize,
		Interval:      cfg.PollInterval(),
		MaxConcurrent: cfg.MaxConcurrentEnrichments,
	}, log)

	workerHealth := startHealthCheckers(ctx, log, storage)

	opsHandler := ops.NewHandler(workerHealth.IsReady, storage.Queue, worker.Counters(), ai.BreakerState, log)
	server := newHTTPServer(ctx, cfg, opsHandler.Router())
	errCh := serveHTTP(server, log, cfg)

	workerErrCh := make(chan error, 1)
	go func() {
		if err := worker.Run(ctx); err != nil && err != context.Canceled {
			workerErrCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down worker")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Worker exited")
		return nil
	case err := <-workerErrCh:
		log.Error().Stack().Err(err).Msg("enrichment worker failed")
		return err
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return err
	}
}

func startHealthCheckers(ctx context.Context, log zerolog.Logger, storage *factory.Storage) *health.WorkerHealth {
	storeChecker := health.NewPingChecker("store", storage.Store, log, 2*time.Second)
	queueChecker := health.NewPingChecker("queue", health.PingerFunc(func(ctx context.Context) error {
		_, err := storage.Queue.Stats(ctx)
		return err
	}), log, 2*time.Second)

	h := health.NewWorkerHealth(log, storeChecker, queueChecker)
	go h.Start(ctx, 15*time.Second)
	return h
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("ops HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}
