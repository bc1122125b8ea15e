// Package storetest holds a conformance suite run against every store.Store
// implementation.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pulsekeep/pulsekeep/internal/model"
	"github.com/pulsekeep/pulsekeep/internal/store"
)

// Run exercises the compliance suite against a store.Store implementation.
// makeStore must return a clean, isolated store.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()

	userID := "u-" + uuid.New().String()

	newStopped := func(pulseID string) *model.StoppedPulse {
		started := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
		return &model.StoppedPulse{
			Pulse: model.Pulse{
				UserID:     userID,
				PulseID:    pulseID,
				Intent:     "draft the launch post",
				EnergyType: model.EnergyCreation,
				StartedAt:  started,
			},
			StoppedAt:       started.Add(25 * time.Minute),
			DurationSeconds: 1500,
			Reflection:      "got a full draft down",
			Emotion:         "accomplished",
		}
	}

	// Stopped pulses
	sp := newStopped("p-" + uuid.New().String())
	if err := s.Pulses().PutStopped(ctx, sp); err != nil {
		t.Fatalf("PutStopped: %v", err)
	}
	if err := s.Pulses().PutStopped(ctx, sp); !errors.Is(err, model.ErrDuplicate) {
		t.Fatalf("PutStopped duplicate: want ErrDuplicate, got %v", err)
	}
	got, err := s.Pulses().GetStopped(ctx, userID, sp.PulseID)
	if err != nil {
		t.Fatalf("GetStopped: %v", err)
	}
	if got.Intent != sp.Intent || got.EnergyType != sp.EnergyType || got.DurationSeconds != sp.DurationSeconds {
		t.Fatalf("GetStopped roundtrip mismatch: %+v", got)
	}
	if !got.StoppedAt.Equal(sp.StoppedAt) {
		t.Fatalf("GetStopped stoppedAt: want %v got %v", sp.StoppedAt, got.StoppedAt)
	}
	if _, err := s.Pulses().GetStopped(ctx, userID, "missing"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetStopped missing: want ErrNotFound, got %v", err)
	}

	// Terminal records: first write wins
	ip := &model.IngestedPulse{
		StoppedPulse:      *sp,
		Enrichment:        model.EnrichmentResult{Title: "Building momentum: draft the launch post", Badge: "🏆", Source: model.SourceStandard},
		InvertedTimestamp: model.InvertedTimestamp(sp.StoppedAt),
		IngestedAt:        time.Now().UTC(),
	}
	written, err := s.Ingested().PutIfAbsent(ctx, ip)
	if err != nil || !written {
		t.Fatalf("PutIfAbsent first: written=%v err=%v", written, err)
	}
	second := *ip
	second.Enrichment.Title = "a different title that must not land"
	written, err = s.Ingested().PutIfAbsent(ctx, &second)
	if err != nil || written {
		t.Fatalf("PutIfAbsent second: written=%v err=%v", written, err)
	}
	stored, err := s.Ingested().Get(ctx, userID, sp.PulseID)
	if err != nil {
		t.Fatalf("Get ingested: %v", err)
	}
	if stored.Enrichment.Title != ip.Enrichment.Title {
		t.Fatalf("first write did not win: %q", stored.Enrichment.Title)
	}

	// Listing is reverse-chronological via the inverted sort key.
	older := newStopped("p-" + uuid.New().String())
	older.StoppedAt = sp.StoppedAt.Add(-time.Hour)
	olderIP := &model.IngestedPulse{
		StoppedPulse:      *older,
		Enrichment:        model.EnrichmentResult{Title: "older", Badge: "🔨", Source: model.SourceStandard},
		InvertedTimestamp: model.InvertedTimestamp(older.StoppedAt),
		IngestedAt:        time.Now().UTC(),
	}
	if written, err := s.Ingested().PutIfAbsent(ctx, olderIP); err != nil || !written {
		t.Fatalf("PutIfAbsent older: written=%v err=%v", written, err)
	}
	list, err := s.Ingested().List(ctx, userID, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List: want 2, got %d", len(list))
	}
	if list[0].PulseID != sp.PulseID || list[1].PulseID != older.PulseID {
		t.Fatalf("List order: got %s then %s", list[0].PulseID, list[1].PulseID)
	}

	// Concurrent ingestion attempts land exactly one record.
	race := newStopped("p-" + uuid.New().String())
	const attempts = 8
	var wg sync.WaitGroup
	results := make([]bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w, err := s.Ingested().PutIfAbsent(ctx, &model.IngestedPulse{
				StoppedPulse:      *race,
				Enrichment:        model.EnrichmentResult{Title: "race", Badge: "🎯", Source: model.SourceStandard},
				InvertedTimestamp: model.InvertedTimestamp(race.StoppedAt),
				IngestedAt:        time.Now().UTC(),
			})
			if err != nil {
				t.Errorf("concurrent PutIfAbsent: %v", err)
				return
			}
			results[i] = w
		}(i)
	}
	wg.Wait()
	wins := 0
	for _, w := range results {
		if w {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("concurrent PutIfAbsent: want exactly 1 write, got %d", wins)
	}

	// Markers: exactly one acquirer, result short-circuit afterwards.
	mk := newStopped("p-" + uuid.New().String())
	cr, err := s.Markers().Claim(ctx, userID, mk.PulseID)
	if err != nil || cr.State != model.ClaimAcquired {
		t.Fatalf("Claim first: state=%v err=%v", cr.State, err)
	}
	cr, err = s.Markers().Claim(ctx, userID, mk.PulseID)
	if err != nil || cr.State != model.ClaimHeld {
		t.Fatalf("Claim second: state=%v err=%v", cr.State, err)
	}
	er := model.EnrichmentResult{Title: "Deep in the making: x", Badge: "⚡", Source: model.SourceAI, CostUnits: 12}
	if err := s.Markers().RecordResult(ctx, userID, mk.PulseID, er); err != nil {
		t.Fatalf("RecordResult: %v", err)
	}
	cr, err = s.Markers().Claim(ctx, userID, mk.PulseID)
	if err != nil || cr.State != model.ClaimResolved || cr.Result == nil {
		t.Fatalf("Claim resolved: state=%v result=%v err=%v", cr.State, cr.Result, err)
	}
	if cr.Result.Title != er.Title || cr.Result.CostUnits != er.CostUnits {
		t.Fatalf("resolved result mismatch: %+v", cr.Result)
	}
	marker, err := s.Markers().Get(ctx, userID, mk.PulseID)
	if err != nil || marker.Result == nil || marker.Result.Source != model.SourceAI {
		t.Fatalf("Markers.Get: marker=%+v err=%v", marker, err)
	}
	if err := s.Markers().RecordResult(ctx, userID, "never-claimed", er); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("RecordResult without claim: want ErrNotFound, got %v", err)
	}

	if err := s.HealthPing(ctx); err != nil {
		t.Fatalf("HealthPing: %v", err)
	}
}
