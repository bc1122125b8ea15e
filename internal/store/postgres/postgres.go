// Package postgres implements store.Store on PostgreSQL via the pgx stdlib
// driver. This is the production record store.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/pulsekeep/pulsekeep/internal/model"
	"github.com/pulsekeep/pulsekeep/internal/queue"
	"github.com/pulsekeep/pulsekeep/internal/store"
)

// Open opens a PostgreSQL connection and verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS stopped_pulses (
        user_id          TEXT NOT NULL,
        pulse_id         TEXT NOT NULL,
        intent           TEXT NOT NULL,
        energy_type      TEXT NOT NULL,
        started_at       BIGINT NOT NULL,
        stopped_at       BIGINT NOT NULL,
        duration_seconds BIGINT NOT NULL,
        reflection       TEXT NOT NULL DEFAULT '',
        emotion          TEXT NOT NULL DEFAULT '',
        created_at       BIGINT NOT NULL,
        PRIMARY KEY (user_id, pulse_id)
    );`,
	`CREATE TABLE IF NOT EXISTS ingested_pulses (
        user_id     TEXT NOT NULL,
        pulse_id    TEXT NOT NULL,
        record      JSONB NOT NULL,
        inverted_ts BIGINT NOT NULL,
        ingested_at BIGINT NOT NULL,
        PRIMARY KEY (user_id, pulse_id)
    );`,
	`CREATE INDEX IF NOT EXISTS ingested_pulses_list_idx ON ingested_pulses (user_id, inverted_ts);`,
	`CREATE TABLE IF NOT EXISTS enrichment_markers (
        user_id      TEXT NOT NULL,
        pulse_id     TEXT NOT NULL,
        attempted_at BIGINT NOT NULL,
        result       JSONB,
        PRIMARY KEY (user_id, pulse_id)
    );`,
}

// EnsureSchema creates the store tables if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// New constructs a Postgres store on an existing handle. feed may be nil
// when stop events are published elsewhere.
func New(db *sql.DB, feed store.StopFeed) store.Store {
	return &pgStore{db: db, feed: feed}
}

type pgStore struct {
	db   *sql.DB
	feed store.StopFeed
}

func (s *pgStore) Pulses() store.Pulses     { return &pulses{db: s.db, feed: s.feed} }
func (s *pgStore) Ingested() store.Ingested { return &ingested{db: s.db} }
func (s *pgStore) Markers() store.Markers   { return &markers{db: s.db} }

func (s *pgStore) HealthPing(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *pgStore) Close() error                         { return s.db.Close() }

// --- Pulses ---

type pulses struct {
	db   *sql.DB
	feed store.StopFeed
}

func (p *pulses) PutStopped(ctx context.Context, sp *model.StoppedPulse) error {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
        INSERT INTO stopped_pulses
            (user_id, pulse_id, intent, energy_type, started_at, stopped_at, duration_seconds, reflection, emotion, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        ON CONFLICT (user_id, pulse_id) DO NOTHING`,
		sp.UserID, sp.PulseID, sp.Intent, string(sp.EnergyType),
		sp.StartedAt.UnixMilli(), sp.StoppedAt.UnixMilli(), sp.DurationSeconds,
		sp.Reflection, sp.Emotion, time.Now().UnixMilli())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: pulse %s/%s already stopped", model.ErrDuplicate, sp.UserID, sp.PulseID)
	}
	if p.feed != nil {
		msg := queue.Message{UserID: sp.UserID, PulseID: sp.PulseID, Stopped: *sp}
		if err := p.feed.EnqueueTx(ctx, tx, msg); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *pulses) GetStopped(ctx context.Context, userID, pulseID string) (*model.StoppedPulse, error) {
	row := p.db.QueryRowContext(ctx, `
        SELECT intent, energy_type, started_at, stopped_at, duration_seconds, reflection, emotion
        FROM stopped_pulses WHERE user_id = $1 AND pulse_id = $2`, userID, pulseID)

	var sp model.StoppedPulse
	var energy string
	var startedMS, stoppedMS int64
	if err := row.Scan(&sp.Intent, &energy, &startedMS, &stoppedMS, &sp.DurationSeconds, &sp.Reflection, &sp.Emotion); err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	sp.UserID = userID
	sp.PulseID = pulseID
	sp.EnergyType = model.EnergyType(energy)
	sp.StartedAt = time.UnixMilli(startedMS).UTC()
	sp.StoppedAt = time.UnixMilli(stoppedMS).UTC()
	return &sp, nil
}

// --- Ingested ---

type ingested struct{ db *sql.DB }

func (g *ingested) PutIfAbsent(ctx context.Context, ip *model.IngestedPulse) (bool, error) {
	record, err := json.Marshal(ip)
	if err != nil {
		return false, fmt.Errorf("marshal ingested pulse: %w", err)
	}
	res, err := g.db.ExecContext(ctx, `
        INSERT INTO ingested_pulses (user_id, pulse_id, record, inverted_ts, ingested_at)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (user_id, pulse_id) DO NOTHING`,
		ip.UserID, ip.PulseID, record, ip.InvertedTimestamp, ip.IngestedAt.UnixMilli())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (g *ingested) Get(ctx context.Context, userID, pulseID string) (*model.IngestedPulse, error) {
	row := g.db.QueryRowContext(ctx,
		`SELECT record FROM ingested_pulses WHERE user_id = $1 AND pulse_id = $2`, userID, pulseID)
	var record []byte
	if err := row.Scan(&record); err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	var ip model.IngestedPulse
	if err := json.Unmarshal(record, &ip); err != nil {
		return nil, fmt.Errorf("unmarshal ingested pulse: %w", err)
	}
	return &ip, nil
}

func (g *ingested) List(ctx context.Context, userID string, limit int) ([]*model.IngestedPulse, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := g.db.QueryContext(ctx, `
        SELECT record FROM ingested_pulses WHERE user_id = $1
        ORDER BY inverted_ts ASC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.IngestedPulse
	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return nil, err
		}
		var ip model.IngestedPulse
		if err := json.Unmarshal(record, &ip); err != nil {
			return nil, fmt.Errorf("unmarshal ingested pulse: %w", err)
		}
		out = append(out, &ip)
	}
	return out, rows.Err()
}

// --- Markers ---

type markers struct{ db *sql.DB }

func (m *markers) Claim(ctx context.Context, userID, pulseID string) (model.ClaimResult, error) {
	res, err := m.db.ExecContext(ctx, `
        INSERT INTO enrichment_markers (user_id, pulse_id, attempted_at)
        VALUES ($1,$2,$3)
        ON CONFLICT (user_id, pulse_id) DO NOTHING`,
		userID, pulseID, time.Now().UnixMilli())
	if err != nil {
		return model.ClaimResult{}, err
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return model.ClaimResult{State: model.ClaimAcquired}, nil
	}

	var result sql.NullString
	err = m.db.QueryRowContext(ctx,
		`SELECT result FROM enrichment_markers WHERE user_id = $1 AND pulse_id = $2`,
		userID, pulseID).Scan(&result)
	if err != nil {
		return model.ClaimResult{}, err
	}
	if !result.Valid {
		return model.ClaimResult{State: model.ClaimHeld}, nil
	}
	var er model.EnrichmentResult
	if err := json.Unmarshal([]byte(result.String), &er); err != nil {
		return model.ClaimResult{}, fmt.Errorf("unmarshal marker result: %w", err)
	}
	return model.ClaimResult{State: model.ClaimResolved, Result: &er}, nil
}

func (m *markers) RecordResult(ctx context.Context, userID, pulseID string, er model.EnrichmentResult) error {
	payload, err := json.Marshal(er)
	if err != nil {
		return fmt.Errorf("marshal marker result: %w", err)
	}
	res, err := m.db.ExecContext(ctx,
		`UPDATE enrichment_markers SET result = $1 WHERE user_id = $2 AND pulse_id = $3`,
		payload, userID, pulseID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (m *markers) Get(ctx context.Context, userID, pulseID string) (*model.EnrichmentMarker, error) {
	row := m.db.QueryRowContext(ctx,
		`SELECT attempted_at, result FROM enrichment_markers WHERE user_id = $1 AND pulse_id = $2`,
		userID, pulseID)
	var attemptedMS int64
	var result sql.NullString
	if err := row.Scan(&attemptedMS, &result); err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	mk := &model.EnrichmentMarker{
		UserID: userID, PulseID: pulseID,
		AttemptedAt: time.UnixMilli(attemptedMS).UTC(),
	}
	if result.Valid {
		var er model.EnrichmentResult
		if err := json.Unmarshal([]byte(result.String), &er); err != nil {
			return nil, fmt.Errorf("unmarshal marker result: %w", err)
		}
		mk.Result = &er
	}
	return mk, nil
}
