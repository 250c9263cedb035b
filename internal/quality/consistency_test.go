package quality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConsistencyValidator(t *testing.T) {
	t.Parallel()
	cfg := DefaultEngineConfig()
	v := NewConsistencyValidator(cfg.Consistency)

	t.Run("plausible cruise record scores 1", func(t *testing.T) {
		t.Parallel()
		rec := validVector(1700000000)
		res := v.Evaluate(&rec, nil)
		assert.Equal(t, 1.0, res.Score)
		assert.Empty(t, res.Flags)
	})

	t.Run("on ground at altitude and speed triggers both conflicts", func(t *testing.T) {
		t.Parallel()
		rec := validVector(1700000000)
		rec.OnGround = true
		rec.BaroAltitude = f64Ptr(5000.0) // 16404 ft
		rec.Velocity = f64Ptr(154.3)      // ~300 kt
		res := v.Evaluate(&rec, nil)
		assert.Contains(t, res.Flags, FlagGroundAltitudeConflict)
		assert.Contains(t, res.Flags, FlagGroundSpeedConflict)
		assert.InDelta(t, 0.5, res.Score, 1e-9)
	})

	t.Run("on ground taxiing is fine", func(t *testing.T) {
		t.Parallel()
		rec := validVector(1700000000)
		rec.OnGround = true
		rec.BaroAltitude = f64Ptr(50.0) // 164 ft
		rec.Velocity = f64Ptr(10.0)     // ~19 kt
		res := v.Evaluate(&rec, nil)
		assert.Equal(t, 1.0, res.Score)
	})

	t.Run("high speed at low altitude is implausible", func(t *testing.T) {
		t.Parallel()
		rec := validVector(1700000000)
		rec.BaroAltitude = f64Ptr(1000.0) // 3281 ft
		rec.Velocity = f64Ptr(280.0)      // ~544 kt
		res := v.Evaluate(&rec, nil)
		assert.Equal(t, []string{FlagLowAltitudeHighSpeed}, res.Flags)
		assert.InDelta(t, 0.75, res.Score, 1e-9)
	})

	t.Run("missing altitude skips altitude checks", func(t *testing.T) {
		t.Parallel()
		rec := validVector(1700000000)
		rec.BaroAltitude = nil
		rec.Velocity = f64Ptr(280.0)
		res := v.Evaluate(&rec, nil)
		assert.Equal(t, 1.0, res.Score)
	})
}

func TestConsistencyPositionJump(t *testing.T) {
	t.Parallel()
	cfg := DefaultEngineConfig()
	v := NewConsistencyValidator(cfg.Consistency)
	now := time.Now()

	newCtx := func() *BatchContext {
		return &BatchContext{ProcessedAt: now, Positions: NewPositionLog(cfg.Positions)}
	}

	t.Run("teleporting aircraft is flagged", func(t *testing.T) {
		t.Parallel()
		bctx := newCtx()
		bctx.Positions.Update("4ca7b4", 53.42, -6.27, 1700000000, now)

		rec := validVector(1700000010)
		// Roughly 2000 km east in ten seconds.
		rec.Latitude = f64Ptr(51.47)
		rec.Longitude = f64Ptr(24.0)
		res := v.Evaluate(&rec, bctx)
		assert.Contains(t, res.Flags, FlagPositionJump)
		assert.InDelta(t, 0.75, res.Score, 1e-9)
	})

	t.Run("plausible movement passes", func(t *testing.T) {
		t.Parallel()
		bctx := newCtx()
		bctx.Positions.Update("4ca7b4", 53.42, -6.27, 1700000000, now)

		rec := validVector(1700000010)
		// ~2.2 km in ten seconds, about 430 kt.
		rec.Latitude = f64Ptr(53.44)
		rec.Longitude = f64Ptr(-6.27)
		res := v.Evaluate(&rec, bctx)
		assert.NotContains(t, res.Flags, FlagPositionJump)
	})

	t.Run("no previous position skips the check", func(t *testing.T) {
		t.Parallel()
		rec := validVector(1700000010)
		res := v.Evaluate(&rec, newCtx())
		assert.Equal(t, 1.0, res.Score)
	})

	t.Run("non-positive time delta skips the check", func(t *testing.T) {
		t.Parallel()
		bctx := newCtx()
		bctx.Positions.Update("4ca7b4", 0.0, 0.0, 1700000020, now)

		rec := validVector(1700000010)
		res := v.Evaluate(&rec, bctx)
		assert.NotContains(t, res.Flags, FlagPositionJump)
	})
}

func TestHaversineKm(t *testing.T) {
	t.Parallel()
	// Dublin to London, roughly 463 km.
	d := haversineKm(53.3498, -6.2603, 51.5074, -0.1278)
	assert.InDelta(t, 463, d, 10)

	assert.Equal(t, 0.0, haversineKm(10, 20, 10, 20))
}
