package quality

// ValidityValidator applies per-field range and format checks. Absent fields
// are excluded from the denominator; completeness already penalises them and
// counting both would double-penalise the record.
type ValidityValidator struct {
	cfg *ValidityConfig
}

// NewValidityValidator builds the range/format checker. The config must come
// from an EngineConfig that passed Validate (the patterns are compiled there).
func NewValidityValidator(cfg *ValidityConfig) *ValidityValidator {
	return &ValidityValidator{cfg: cfg}
}

func (v *ValidityValidator) Name() string { return "validity" }

// Evaluate implements Validator. Score is passing/checkable; a record with no
// checkable field at all scores zero.
func (v *ValidityValidator) Evaluate(rec *RawStateVector, _ *BatchContext) ValidationResult {
	var res ValidationResult
	checkable, passing := 0, 0

	check := func(field string, ok bool) {
		checkable++
		if ok {
			passing++
		} else {
			res.Flags = append(res.Flags, InvalidFlag(field))
		}
	}

	if rec.ICAO24 != "" {
		check(FieldICAO24, v.cfg.ICAO24Valid(rec.ICAO24))
	}
	if rec.Latitude != nil {
		check(FieldLatitude, *rec.Latitude >= v.cfg.LatitudeMin && *rec.Latitude <= v.cfg.LatitudeMax)
	}
	if rec.Longitude != nil {
		check(FieldLongitude, *rec.Longitude >= v.cfg.LongitudeMin && *rec.Longitude <= v.cfg.LongitudeMax)
	}
	if rec.BaroAltitude != nil {
		check(FieldBaroAltitude, *rec.BaroAltitude >= v.cfg.BaroAltitudeMin && *rec.BaroAltitude <= v.cfg.BaroAltitudeMax)
	}
	if rec.Velocity != nil {
		check(FieldVelocity, *rec.Velocity >= 0 && *rec.Velocity <= v.cfg.VelocityMax)
	}
	if rec.TrueTrack != nil {
		check(FieldTrueTrack, *rec.TrueTrack >= v.cfg.TrackMin && *rec.TrueTrack < v.cfg.TrackMax)
	}
	if rec.Squawk != "" {
		check("squawk", v.cfg.SquawkValid(rec.Squawk))
	}

	if checkable == 0 {
		res.Score = 0
		return res
	}
	res.Score = float64(passing) / float64(checkable)
	return res
}
