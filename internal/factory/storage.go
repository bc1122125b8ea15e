package factory

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pulsekeep/pulsekeep/internal/config"
	"github.com/pulsekeep/pulsekeep/internal/queue"
	"github.com/pulsekeep/pulsekeep/internal/queue/sqlqueue"
	storepkg "github.com/pulsekeep/pulsekeep/internal/store"
	storepg "github.com/pulsekeep/pulsekeep/internal/store/postgres"
	storesqlite "github.com/pulsekeep/pulsekeep/internal/store/sqlite"
)

// Storage bundles the database-backed components that share one connection:
// the pulse store and the stop-event queue. Sharing matters because PutStopped
// enqueues the stop event inside the same transaction as the pulse write.
type Storage struct {
	DB    *sql.DB
	Store storepkg.Store
	Queue queue.Queue
}

// NewStorage opens the configured database, ensures both schemas, and wires
// the queue into the store as its transactional stop feed.
func NewStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Storage, error) {
	opts := sqlqueue.Options{
		MaxDeliveries: cfg.QueueMaxDeliveries,
		Visibility:    cfg.Visibility(),
		BackoffCap:    cfg.BackoffCap(),
	}

	switch cfg.DBDriver {
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("PULSEKEEP_POSTGRES_DSN is required when DB_DRIVER=postgres")
		}
		db, err := storepg.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := storepg.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("pulse schema: %w", err)
		}
		if err := sqlqueue.EnsurePostgresSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("queue schema: %w", err)
		}
		q := sqlqueue.NewPostgres(db, opts, log)
		return &Storage{DB: db, Store: storepg.New(db, q), Queue: q}, nil

	case "sqlite":
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("PULSEKEEP_SQLITE_PATH is required when DB_DRIVER=sqlite")
		}
		db, err := storesqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := storesqlite.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("pulse schema: %w", err)
		}
		if err := sqlqueue.EnsureSQLiteSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("queue schema: %w", err)
		}
		q := sqlqueue.NewSQLite(db, opts, log)
		return &Storage{DB: db, Store: storesqlite.New(db, q), Queue: q}, nil

	default:
		return nil, fmt.Errorf("unknown DB_DRIVER: %s", cfg.DBDriver)
	}
}

// Close releases the shared database connection.
func (s *Storage) Close() error {
	if s.Store != nil {
		return s.Store.Close()
	}
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}
