package quality

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAggregator(t *testing.T) *Aggregator {
	t.Helper()
	cfg := validatedConfig(t)
	return NewAggregator(cfg.Scoring, &cfg.Validity)
}

func TestAggregatorWeighting(t *testing.T) {
	t.Parallel()
	agg := newTestAggregator(t)

	t.Run("perfect record scores 1 and passes", func(t *testing.T) {
		t.Parallel()
		rec := &EnrichedRecord{RawStateVector: validVector(1700000000)}
		rec.CompletenessScore = 1
		rec.ValidityScore = 1
		rec.ConsistencyScore = 1
		rec.TimelinessScore = 1
		agg.Finalize(rec)

		assert.Equal(t, 1.0, rec.OverallQualityScore)
		assert.Equal(t, "A+", rec.QualityGrade)
		assert.False(t, rec.Quarantined)
		assert.Empty(t, rec.QuarantineReason)
	})

	t.Run("weighted average of mixed scores", func(t *testing.T) {
		t.Parallel()
		rec := &EnrichedRecord{RawStateVector: validVector(1700000000)}
		rec.CompletenessScore = 1
		rec.ValidityScore = 1
		rec.ConsistencyScore = 0.5
		rec.TimelinessScore = 1
		agg.Finalize(rec)

		// 0.30 + 0.30 + 0.25*0.5 + 0.15
		assert.InDelta(t, 0.875, rec.OverallQualityScore, 1e-9)
		assert.Equal(t, "B+", rec.QualityGrade)
		assert.False(t, rec.Quarantined)
	})

	t.Run("non-normalised weights are normalised", func(t *testing.T) {
		t.Parallel()
		cfg := validatedConfig(t)
		cfg.Scoring.CompletenessWeight = 3
		cfg.Scoring.ValidityWeight = 3
		cfg.Scoring.ConsistencyWeight = 2.5
		cfg.Scoring.TimelinessWeight = 1.5
		agg := NewAggregator(cfg.Scoring, &cfg.Validity)

		rec := &EnrichedRecord{RawStateVector: validVector(1700000000)}
		rec.CompletenessScore = 1
		rec.ValidityScore = 1
		rec.ConsistencyScore = 0.5
		rec.TimelinessScore = 1
		agg.Finalize(rec)
		assert.InDelta(t, 0.875, rec.OverallQualityScore, 1e-9)
	})
}

func TestGradeForScore(t *testing.T) {
	t.Parallel()
	cases := []struct {
		score float64
		want  string
	}{
		{1.0, "A+"}, {0.95, "A+"},
		{0.949, "A"}, {0.90, "A"},
		{0.899, "B+"}, {0.85, "B+"},
		{0.849, "B"}, {0.80, "B"},
		{0.799, "C+"}, {0.75, "C+"},
		{0.749, "C"}, {0.70, "C"},
		{0.699, "D"}, {0.60, "D"},
		{0.599, "F"}, {0.0, "F"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, GradeForScore(tc.score), "score=%v", tc.score)
	}
}

func TestQuarantineDecision(t *testing.T) {
	t.Parallel()
	agg := newTestAggregator(t)

	finalize := func(mutate func(*EnrichedRecord)) *EnrichedRecord {
		rec := &EnrichedRecord{RawStateVector: validVector(1700000000)}
		rec.CompletenessScore = 1
		rec.ValidityScore = 1
		rec.ConsistencyScore = 1
		rec.TimelinessScore = 1
		if mutate != nil {
			mutate(rec)
		}
		agg.Finalize(rec)
		return rec
	}

	t.Run("missing identifier", func(t *testing.T) {
		t.Parallel()
		rec := finalize(func(r *EnrichedRecord) { r.ICAO24 = "" })
		require.True(t, rec.Quarantined)
		assert.Equal(t, ReasonMissingICAO24, rec.QuarantineReason)
	})

	t.Run("malformed identifier", func(t *testing.T) {
		t.Parallel()
		rec := finalize(func(r *EnrichedRecord) { r.ICAO24 = "zzz" })
		require.True(t, rec.Quarantined)
		assert.Equal(t, ReasonMalformedICAO24, rec.QuarantineReason)
	})

	t.Run("missing position", func(t *testing.T) {
		t.Parallel()
		rec := finalize(func(r *EnrichedRecord) { r.Latitude = nil })
		require.True(t, rec.Quarantined)
		assert.Equal(t, ReasonMissingPosition, rec.QuarantineReason)
	})

	t.Run("low overall score", func(t *testing.T) {
		t.Parallel()
		rec := finalize(func(r *EnrichedRecord) {
			r.CompletenessScore = 0.5
			r.ValidityScore = 0.4
			r.ConsistencyScore = 0.5
			r.TimelinessScore = 0.3
		})
		require.True(t, rec.Quarantined)
		assert.Equal(t, ReasonLowQualityScore, rec.QuarantineReason)
	})

	t.Run("score exactly at threshold passes", func(t *testing.T) {
		t.Parallel()
		rec := finalize(func(r *EnrichedRecord) {
			r.CompletenessScore = 0.6
			r.ValidityScore = 0.6
			r.ConsistencyScore = 0.6
			r.TimelinessScore = 0.6
		})
		assert.InDelta(t, 0.6, rec.OverallQualityScore, 1e-9)
		assert.False(t, rec.Quarantined)
	})

	t.Run("reasons accumulate most severe first", func(t *testing.T) {
		t.Parallel()
		rec := finalize(func(r *EnrichedRecord) {
			r.ICAO24 = ""
			r.Latitude = nil
			r.CompletenessScore = 0.2
			r.ValidityScore = 0.2
			r.ConsistencyScore = 0.2
			r.TimelinessScore = 0.2
		})
		require.True(t, rec.Quarantined)
		assert.Equal(t, "missing_icao24,missing_position,low_quality_score", rec.QuarantineReason)
	})
}

// Every finalised record satisfies: quarantined iff the score is below the
// threshold, the identifier is unusable, or the position is absent.
func TestQuarantineInvariant(t *testing.T) {
	t.Parallel()
	cfg := validatedConfig(t)
	agg := NewAggregator(cfg.Scoring, &cfg.Validity)
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		rec := &EnrichedRecord{RawStateVector: validVector(1700000000)}
		if rng.Intn(5) == 0 {
			rec.ICAO24 = ""
		}
		if rng.Intn(5) == 0 {
			rec.ICAO24 = "not-hex"
		}
		if rng.Intn(4) == 0 {
			rec.Latitude = nil
		}
		rec.CompletenessScore = rng.Float64()
		rec.ValidityScore = rng.Float64()
		rec.ConsistencyScore = rng.Float64()
		rec.TimelinessScore = rng.Float64()
		agg.Finalize(rec)

		shouldQuarantine := rec.OverallQualityScore < cfg.Scoring.QuarantineThreshold ||
			rec.ICAO24 == "" || !cfg.Validity.ICAO24Valid(rec.ICAO24) ||
			!rec.HasPosition()
		assert.Equal(t, shouldQuarantine, rec.Quarantined, "iteration %d", i)
		assert.Equal(t, shouldQuarantine, rec.QuarantineReason != "", "iteration %d", i)
		assert.GreaterOrEqual(t, rec.OverallQualityScore, 0.0)
		assert.LessOrEqual(t, rec.OverallQualityScore, 1.0)
	}
}
