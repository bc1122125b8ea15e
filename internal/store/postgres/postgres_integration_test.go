package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/pulsekeep/pulsekeep/internal/store"
	"github.com/pulsekeep/pulsekeep/internal/store/storetest"
)

// makePGStore connects to PULSEKEEP_POSTGRES_DSN when set, otherwise spins
// up a disposable Postgres via testcontainers. Without either, the test is
// skipped.
func makePGStore(t *testing.T) store.Store {
	t.Helper()
	dsn := os.Getenv("PULSEKEEP_POSTGRES_DSN")
	if dsn == "" {
		dsn = startContainer(t)
	}
	db, err := Open(dsn)
	if err != nil {
		t.Fatalf("postgres open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return New(db, nil)
}

func startContainer(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("short mode: skipping postgres container test")
	}
	ctx := context.Background()
	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("pulsekeep"),
		tcpostgres.WithUsername("pulsekeep"),
		tcpostgres.WithPassword("pulsekeep"),
		tcpostgres.BasicWaitStrategies(),
		tcpostgres.WithSQLDriver("pgx"),
	)
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = ctr.Terminate(ctx)
	})
	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("container connection string: %v", err)
	}
	return dsn
}

func TestPostgresStore_Compliance(t *testing.T) {
	storetest.Run(t, makePGStore)
}
