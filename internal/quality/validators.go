package quality

import "time"

// ValidationResult is the outcome of one dimensional check: a score in [0,1]
// and the ordered set of issue tags the check raised.
type ValidationResult struct {
	Score float64
	Flags []string
}

// BatchContext carries the read-only context shared by every record in one
// processing batch. Positions reflects state accepted in prior batches only;
// it is never mutated while a batch is in flight.
type BatchContext struct {
	ProcessedAt time.Time
	Positions   *PositionLog
}

// Validator scores one quality dimension of a single record. Implementations
// are pure: they never mutate the record or the context, and they never fail.
// Malformed or absent values score against the relevant check instead.
type Validator interface {
	Name() string
	Evaluate(rec *RawStateVector, bctx *BatchContext) ValidationResult
}

// fieldPresent reports whether the named field carries a value on rec.
// on_ground is a plain bool in the feed and is always considered present.
func fieldPresent(rec *RawStateVector, field string) bool {
	switch field {
	case FieldICAO24:
		return rec.ICAO24 != ""
	case FieldTimestamp:
		_, ok := rec.Timestamp()
		return ok
	case FieldLatitude:
		return rec.Latitude != nil
	case FieldLongitude:
		return rec.Longitude != nil
	case FieldBaroAltitude:
		return rec.BaroAltitude != nil
	case FieldVelocity:
		return rec.Velocity != nil
	case FieldTrueTrack:
		return rec.TrueTrack != nil
	case FieldVerticalRate:
		return rec.VerticalRate != nil
	case FieldOnGround:
		return true
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
