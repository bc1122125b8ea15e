package selector

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pulsekeep/pulsekeep/internal/model"
)

func stopped(energy model.EnergyType, durationS int64, reflection, emotion string) *model.StoppedPulse {
	now := time.Now().UTC()
	return &model.StoppedPulse{
		Pulse: model.Pulse{
			UserID:     "u1",
			PulseID:    "p1",
			Intent:     "draft the launch post",
			EnergyType: energy,
			StartedAt:  now.Add(-time.Duration(durationS) * time.Second),
		},
		StoppedAt:       now,
		DurationSeconds: durationS,
		Reflection:      reflection,
		Emotion:         emotion,
	}
}

func TestSelect_Verdicts(t *testing.T) {
	sel := New(DefaultPolicy())

	cases := []struct {
		name   string
		sp     *model.StoppedPulse
		worthy bool
	}{
		{
			name:   "long creation session with reflection and emotion",
			sp:     stopped(model.EnergyCreation, 1500, "Got the outline done and found a better framing for the intro.", "accomplished"),
			worthy: true,
		},
		{
			name:   "short maintenance session with nothing else",
			sp:     stopped(model.EnergyMaintenance, 60, "", ""),
			worthy: false,
		},
		{
			name:   "long session but no reflection",
			sp:     stopped(model.EnergyMaintenance, 3600, "", ""),
			worthy: false,
		},
		{
			name:   "unknown emotion contributes nothing",
			sp:     stopped(model.EnergyMaintenance, 60, "", "grumpy"),
			worthy: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := sel.Select(tc.sp)
			assert.Equal(t, tc.worthy, d.Worthy, "score %.3f", d.Score)
		})
	}
}

func TestSelect_ThresholdTieIsNotWorthy(t *testing.T) {
	// Only the reflection-presence signal carries weight, so the score lands
	// exactly on the threshold.
	p := Policy{
		Threshold:                0.25,
		DurationCap:              time.Hour,
		ReflectionPresenceWeight: 0.25,
		ReflectionLengthCap:      280,
		MaxLatency:               time.Second,
		MaxLatencyLong:           time.Second,
		LongSessionMin:           time.Hour,
		MaxCostUnits:             10,
	}
	d := New(p).Select(stopped(model.EnergyCreation, 300, "thoughts", ""))
	assert.Equal(t, 0.25, d.Score)
	assert.False(t, d.Worthy)
}

func TestSelect_SignalsSaturate(t *testing.T) {
	sel := New(DefaultPolicy())

	// A ten-hour session scores the same duration signal as a two-hour one.
	tenHours := sel.Select(stopped(model.EnergyMaintenance, 36000, "", ""))
	twoHours := sel.Select(stopped(model.EnergyMaintenance, 7200, "", ""))
	assert.Equal(t, twoHours.Score, tenHours.Score)

	// Reflection length stops helping past the cap.
	atCap := sel.Select(stopped(model.EnergyMaintenance, 60, strings.Repeat("x", 280), ""))
	pastCap := sel.Select(stopped(model.EnergyMaintenance, 60, strings.Repeat("x", 2000), ""))
	assert.Equal(t, atCap.Score, pastCap.Score)
}

func TestSelect_LatencyBudgetByDuration(t *testing.T) {
	sel := New(DefaultPolicy())

	short := sel.Select(stopped(model.EnergyCreation, 1500, "r", ""))
	assert.Equal(t, 8*time.Second, short.Budget.MaxLatency)
	assert.Equal(t, int64(50), short.Budget.MaxCostUnits)

	long := sel.Select(stopped(model.EnergyCreation, 3600, "r", ""))
	assert.Equal(t, 12*time.Second, long.Budget.MaxLatency)
}

func TestSelect_Deterministic(t *testing.T) {
	sel := New(DefaultPolicy())
	sp := stopped(model.EnergyLearning, 2400, "worked through two chapters", "focused")

	first := sel.Select(sp)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, sel.Select(sp))
	}
}
