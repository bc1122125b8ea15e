package pipeline

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsekeep/pulsekeep/internal/enrich"
	"github.com/pulsekeep/pulsekeep/internal/model"
)

func TestCoordinator_FirstWriteWins(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	coord := NewCoordinator(st.Ingested(), zerolog.Nop())

	sp := worthyPulse("p1")
	first := model.EnrichmentResult{Title: "first", Badge: "🥇", Source: model.SourceAI}
	second := model.EnrichmentResult{Title: "second", Badge: "🥈", Source: model.SourceStandard}

	require.NoError(t, coord.Ingest(ctx, &sp, first))
	// A racing duplicate delivery loses quietly.
	require.NoError(t, coord.Ingest(ctx, &sp, second))

	ip, err := st.Ingested().Get(ctx, sp.UserID, sp.PulseID)
	require.NoError(t, err)
	assert.Equal(t, "first", ip.Enrichment.Title)
	assert.NotZero(t, ip.InvertedTimestamp)
	assert.False(t, ip.IngestedAt.IsZero())
}

func TestCoordinator_RejectsIncompleteEnrichment(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	coord := NewCoordinator(st.Ingested(), zerolog.Nop())

	sp := worthyPulse("p1")
	err := coord.Ingest(ctx, &sp, model.EnrichmentResult{Title: "no badge", Source: model.SourceAI})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = st.Ingested().Get(ctx, sp.UserID, sp.PulseID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestCoordinator_StandardEnrichmentAlwaysIngestable(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	coord := NewCoordinator(st.Ingested(), zerolog.Nop())

	sp := mundanePulse("p1")
	require.NoError(t, coord.Ingest(ctx, &sp, enrich.Standard(&sp)))
}
