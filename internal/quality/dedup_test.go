package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDedup(strategy DedupStrategy) *Deduplicator {
	cfg := DefaultEngineConfig()
	return NewDeduplicator(strategy, NewCompletenessValidator(cfg.Completeness))
}

func TestDeduplicateKeepLatest(t *testing.T) {
	t.Parallel()
	d := newDedup(DedupKeepLatest)

	early := validVector(1700000000)
	late := validVector(1700000000)
	late.LastContact = i64Ptr(1700000009)
	late.Callsign = "LATER"
	other := validVector(1700000000)
	other.ICAO24 = "abc123"

	res := d.Deduplicate([]RawStateVector{early, other, late})
	require.Len(t, res.Kept, 2)
	assert.Equal(t, 1, res.Removed)
	// Batch order preserved: other came before the winning duplicate.
	assert.Equal(t, "abc123", res.Kept[0].ICAO24)
	assert.Equal(t, "LATER", res.Kept[1].Callsign)
}

func TestDeduplicateKeepMostComplete(t *testing.T) {
	t.Parallel()
	d := newDedup(DedupKeepMostComplete)

	sparse := validVector(1700000000)
	sparse.Velocity = nil
	sparse.TrueTrack = nil
	full := validVector(1700000000)
	full.Callsign = "FULL"

	res := d.Deduplicate([]RawStateVector{sparse, full})
	require.Len(t, res.Kept, 1)
	assert.Equal(t, "FULL", res.Kept[0].Callsign)

	t.Run("completeness tie resolves to latest contact", func(t *testing.T) {
		t.Parallel()
		a := validVector(1700000000)
		a.Callsign = "OLD"
		b := validVector(1700000000)
		b.LastContact = i64Ptr(1700000008)
		b.Callsign = "NEW"

		res := d.Deduplicate([]RawStateVector{a, b})
		require.Len(t, res.Kept, 1)
		assert.Equal(t, "NEW", res.Kept[0].Callsign)
	})
}

func TestDeduplicateKeepAllFlagDuplicates(t *testing.T) {
	t.Parallel()
	d := newDedup(DedupKeepAllFlag)

	early := validVector(1700000000)
	late := validVector(1700000000)
	late.LastContact = i64Ptr(1700000009)

	res := d.Deduplicate([]RawStateVector{early, late})
	require.Len(t, res.Kept, 2)
	assert.Equal(t, 0, res.Removed)
	// The non-winning copy is marked, the latest is not.
	assert.True(t, res.DuplicateIdx[0])
	assert.False(t, res.DuplicateIdx[1])
}

func TestDeduplicateEdgeCases(t *testing.T) {
	t.Parallel()

	t.Run("empty batch", func(t *testing.T) {
		t.Parallel()
		res := newDedup(DedupKeepMostComplete).Deduplicate(nil)
		assert.Empty(t, res.Kept)
		assert.Equal(t, 0, res.Removed)
	})

	t.Run("records without identifier pass through", func(t *testing.T) {
		t.Parallel()
		anonA := validVector(1700000000)
		anonA.ICAO24 = ""
		anonB := validVector(1700000001)
		anonB.ICAO24 = ""

		res := newDedup(DedupKeepMostComplete).Deduplicate([]RawStateVector{anonA, anonB})
		assert.Len(t, res.Kept, 2)
	})

	t.Run("no duplicates is a no-op", func(t *testing.T) {
		t.Parallel()
		a := validVector(1700000000)
		b := validVector(1700000000)
		b.ICAO24 = "abc123"

		res := newDedup(DedupKeepLatest).Deduplicate([]RawStateVector{a, b})
		assert.Len(t, res.Kept, 2)
		assert.Equal(t, 0, res.Removed)
	})
}
