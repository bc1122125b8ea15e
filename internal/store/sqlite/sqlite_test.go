package sqlite

import (
	"context"
	"testing"

	"github.com/pulsekeep/pulsekeep/internal/store"
	"github.com/pulsekeep/pulsekeep/internal/store/storetest"
)

func makeStore(t *testing.T) store.Store {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("sqlite open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return New(db, nil)
}

func TestSQLiteStore_Compliance(t *testing.T) {
	storetest.Run(t, makeStore)
}
