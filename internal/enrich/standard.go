// Package enrich produces the title, badge, and insights attached to a pulse
// at ingestion. The standard path is pure and total; the AI path is
// best-effort and always resolves to a complete result by falling back to
// the standard output.
package enrich

import (
	"fmt"
	"time"

	"github.com/pulsekeep/pulsekeep/internal/model"
)

// DurationBucket coarsens session length for template selection.
type DurationBucket string

const (
	BucketShort  DurationBucket = "short"  // under 10 minutes
	BucketMedium DurationBucket = "medium" // under 45 minutes
	BucketLong   DurationBucket = "long"
)

// BucketFor maps a session duration to its bucket.
func BucketFor(d time.Duration) DurationBucket {
	switch {
	case d < 10*time.Minute:
		return BucketShort
	case d < 45*time.Minute:
		return BucketMedium
	default:
		return BucketLong
	}
}

// titleTemplates is keyed by energy type, then duration bucket. The %s slot
// receives the pulse intent.
var titleTemplates = map[model.EnergyType]map[DurationBucket]string{
	model.EnergyCreation: {
		BucketShort:  "Quick spark: %s",
		BucketMedium: "Building momentum: %s",
		BucketLong:   "Deep in the making: %s",
	},
	model.EnergyDeepWork: {
		BucketShort:  "Sharp burst: %s",
		BucketMedium: "Locked in: %s",
		BucketLong:   "Sustained focus: %s",
	},
	model.EnergyLearning: {
		BucketShort:  "A taste of: %s",
		BucketMedium: "Studying: %s",
		BucketLong:   "Immersed in: %s",
	},
	model.EnergyConnection: {
		BucketShort:  "Checking in: %s",
		BucketMedium: "Time together: %s",
		BucketLong:   "Fully present: %s",
	},
	model.EnergyMaintenance: {
		BucketShort:  "Tidying up: %s",
		BucketMedium: "Keeping things running: %s",
		BucketLong:   "The long haul: %s",
	},
	model.EnergyRecovery: {
		BucketShort:  "A breather: %s",
		BucketMedium: "Recharging: %s",
		BucketLong:   "Proper rest: %s",
	},
}

// emotionBadges maps recognized emotion tags to badge symbols.
var emotionBadges = map[string]string{
	"accomplished": "🏆",
	"energized":    "⚡",
	"focused":      "🎯",
	"proud":        "🌟",
	"calm":         "🌊",
	"tired":        "🌙",
	"frustrated":   "🌧",
}

// energyBadges is the per-energy fallback when the emotion is unrecognized
// or absent.
var energyBadges = map[model.EnergyType]string{
	model.EnergyCreation:    "🔨",
	model.EnergyDeepWork:    "🧠",
	model.EnergyLearning:    "📚",
	model.EnergyConnection:  "🤝",
	model.EnergyMaintenance: "🧹",
	model.EnergyRecovery:    "🍃",
}

// defaultBadge covers energy types outside the known set. Validation rejects
// those upstream, but totality here must not depend on it.
const defaultBadge = "✦"

// Standard returns the deterministic enrichment for a stopped pulse. It is
// total: every input yields a non-empty title and badge, and there is no
// error path. The rest of the pipeline leans on this when the AI path fails.
func Standard(sp *model.StoppedPulse) model.EnrichmentResult {
	bucket := BucketFor(time.Duration(sp.DurationSeconds) * time.Second)

	tmpl := ""
	if byBucket, ok := titleTemplates[sp.EnergyType]; ok {
		tmpl = byBucket[bucket]
	}
	if tmpl == "" {
		tmpl = "Session logged: %s"
	}
	intent := sp.Intent
	if intent == "" {
		intent = "untitled pulse"
	}

	badge := emotionBadges[sp.Emotion]
	if badge == "" {
		badge = energyBadges[sp.EnergyType]
	}
	if badge == "" {
		badge = defaultBadge
	}

	return model.EnrichmentResult{
		Title:  fmt.Sprintf(tmpl, intent),
		Badge:  badge,
		Source: model.SourceStandard,
	}
}
