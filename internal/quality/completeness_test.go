package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompletenessValidator(t *testing.T) {
	t.Parallel()
	v := NewCompletenessValidator(DefaultEngineConfig().Completeness)

	t.Run("all fields present scores 1", func(t *testing.T) {
		t.Parallel()
		rec := validVector(1700000000)
		res := v.Evaluate(&rec, nil)
		assert.Equal(t, 1.0, res.Score)
		assert.Empty(t, res.Flags)
	})

	t.Run("missing important field subtracts penalty", func(t *testing.T) {
		t.Parallel()
		rec := validVector(1700000000)
		rec.Velocity = nil
		res := v.Evaluate(&rec, nil)
		assert.InDelta(t, 0.9, res.Score, 1e-9)
		assert.Equal(t, []string{MissingFlag(FieldVelocity)}, res.Flags)
	})

	t.Run("missing critical field caps score", func(t *testing.T) {
		t.Parallel()
		rec := validVector(1700000000)
		rec.ICAO24 = ""
		res := v.Evaluate(&rec, nil)
		assert.Equal(t, 0.5, res.Score)
		assert.Contains(t, res.Flags, MissingFlag(FieldICAO24))
	})

	t.Run("timestamp satisfied by last_contact alone", func(t *testing.T) {
		t.Parallel()
		rec := validVector(1700000000)
		rec.TimePosition = nil
		res := v.Evaluate(&rec, nil)
		assert.Equal(t, 1.0, res.Score)
	})

	t.Run("important penalties floor at configured minimum", func(t *testing.T) {
		t.Parallel()
		rec := RawStateVector{
			ICAO24:      "4ca7b4",
			LastContact: i64Ptr(1700000000),
			Latitude:    f64Ptr(53.4),
			Longitude:   f64Ptr(-6.3),
		}
		res := v.Evaluate(&rec, nil)
		// Three important fields absent (on_ground is a plain bool and
		// always counts as present), floored at 0.5 regardless.
		assert.InDelta(t, 0.7, res.Score, 1e-9)
	})

	t.Run("empty record caps on critical and floors on important", func(t *testing.T) {
		t.Parallel()
		rec := RawStateVector{}
		res := v.Evaluate(&rec, nil)
		assert.Equal(t, 0.5, res.Score)
		assert.Contains(t, res.Flags, MissingFlag(FieldICAO24))
		assert.Contains(t, res.Flags, MissingFlag(FieldTimestamp))
		assert.Contains(t, res.Flags, MissingFlag(FieldLatitude))
		assert.Contains(t, res.Flags, MissingFlag(FieldLongitude))
	})
}

// Monotonicity: adding a field can only raise or keep the completeness score.
func TestCompletenessMonotonicity(t *testing.T) {
	t.Parallel()
	v := NewCompletenessValidator(DefaultEngineConfig().Completeness)

	rec := RawStateVector{ICAO24: "4ca7b4", LastContact: i64Ptr(1700000000)}
	prev := v.Evaluate(&rec, nil).Score

	steps := []func(){
		func() { rec.Latitude = f64Ptr(40.0) },
		func() { rec.Longitude = f64Ptr(-100.0) },
		func() { rec.BaroAltitude = f64Ptr(9000.0) },
		func() { rec.Velocity = f64Ptr(230.0) },
		func() { rec.TrueTrack = f64Ptr(90.0) },
	}
	for _, step := range steps {
		step()
		score := v.Evaluate(&rec, nil).Score
		assert.GreaterOrEqual(t, score, prev)
		prev = score
	}
	assert.Equal(t, 1.0, prev)
}
