package quality

import "time"

// Unit conversion constants. The feed reports altitude in metres and speeds
// in metres per second.
const (
	metersToFeet = 3.28084
	mpsToKnots   = 1.943844
	mpsToKmh     = 3.6
	mpsToFpm     = 196.8504
	kmhToKnots   = 0.539957
)

// Enricher performs unit conversion, categorisation, region tagging, and
// missing-value handling on validated records.
type Enricher struct {
	cfg   EnrichmentConfig
	phase PhaseConfig
}

// NewEnricher builds the enrichment transformer from config.
func NewEnricher(cfg EnrichmentConfig, phase PhaseConfig) *Enricher {
	return &Enricher{cfg: cfg, phase: phase}
}

// Enrich fills the derived fields of rec in place: converted units,
// categories, region code, and flight phase. Nil inputs propagate as nil
// outputs; no silent zero substitution.
func (e *Enricher) Enrich(rec *EnrichedRecord) {
	rec.AltitudeFt = convert(rec.BaroAltitude, metersToFeet)
	rec.GeoAltitudeFt = convert(rec.GeoAltitude, metersToFeet)
	rec.SpeedKnots = convert(rec.Velocity, mpsToKnots)
	rec.SpeedKmh = convert(rec.Velocity, mpsToKmh)
	rec.VerticalRateFpm = convert(rec.VerticalRate, mpsToFpm)

	if rec.AltitudeFt != nil {
		rec.AltitudeCategory = e.altitudeCategory(*rec.AltitudeFt)
	}
	if rec.SpeedKnots != nil {
		rec.SpeedCategory = e.speedCategory(*rec.SpeedKnots)
	}
	rec.RegionCode = e.regionCode(rec.Latitude, rec.Longitude)
	rec.FlightPhase = ClassifyFlightPhase(rec, e.phase)
}

func convert(v *float64, factor float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v * factor
	return &out
}

func (e *Enricher) altitudeCategory(altFt float64) AltitudeCategory {
	order := []AltitudeCategory{AltitudeLow, AltitudeMedium, AltitudeHigh, AltitudeVeryHigh}
	return order[bucket(altFt, e.cfg.AltitudeBreakpointsFt, len(order))]
}

func (e *Enricher) speedCategory(speedKt float64) SpeedCategory {
	order := []SpeedCategory{SpeedSlow, SpeedNormal, SpeedFast, SpeedVeryFast}
	return order[bucket(speedKt, e.cfg.SpeedBreakpointsKt, len(order))]
}

// bucket returns the index of v among the configured breakpoints, capped at
// maxIdx-1 so a short breakpoint list cannot index past the category set.
func bucket(v float64, breakpoints []float64, maxIdx int) int {
	idx := 0
	for _, bp := range breakpoints {
		if v >= bp {
			idx++
		}
	}
	if idx >= maxIdx {
		idx = maxIdx - 1
	}
	return idx
}

// regionCode returns the first matching bounding box in priority order, or
// the configured default when no box matches or the position is absent.
func (e *Enricher) regionCode(lat, lon *float64) string {
	if lat == nil || lon == nil {
		return e.cfg.DefaultRegionCode
	}
	for _, box := range e.cfg.Regions {
		if *lat >= box.MinLat && *lat <= box.MaxLat && *lon >= box.MinLon && *lon <= box.MaxLon {
			return box.Code
		}
	}
	return e.cfg.DefaultRegionCode
}

// batchMeans holds per-field batch averages for the impute-batch-mean
// strategy. Computed once per batch over records that carry the field.
type batchMeans struct {
	values map[string]float64
}

// computeBatchMeans averages the imputable numeric fields across the batch.
func computeBatchMeans(records []*EnrichedRecord) batchMeans {
	sums := map[string]float64{}
	counts := map[string]int{}
	add := func(field string, v *float64) {
		if v != nil {
			sums[field] += *v
			counts[field]++
		}
	}
	for _, rec := range records {
		add(FieldBaroAltitude, rec.BaroAltitude)
		add(FieldVelocity, rec.Velocity)
		add(FieldVerticalRate, rec.VerticalRate)
	}
	means := batchMeans{values: make(map[string]float64, len(sums))}
	for field, sum := range sums {
		means.values[field] = sum / float64(counts[field])
	}
	return means
}

// ApplyMissingValues resolves absent numeric fields per the configured
// per-field strategy. Imputed or carried-forward values are flagged so the
// substitution stays visible downstream; drop leaves the field absent and
// the quarantine decision handles critical gaps. flag-only is a no-op here
// because completeness scoring already raised the missing flag.
func (e *Enricher) ApplyMissingValues(records []*EnrichedRecord, bctx *BatchContext) {
	means := computeBatchMeans(records)

	for _, rec := range records {
		for field, strategy := range e.cfg.MissingValues {
			if fieldPresent(&rec.RawStateVector, field) {
				continue
			}
			switch strategy {
			case MissingCarryForward:
				e.carryForward(rec, field, bctx)
			case MissingImputeMean:
				if mean, ok := means.values[field]; ok {
					if setField(rec, field, mean) {
						rec.AddFlag("imputed:" + field)
					}
				}
			case MissingDrop, MissingFlagOnly:
				// Nothing to fill in. Completeness flagged the gap; drop on a
				// critical field surfaces through the quarantine decision.
			}
		}
	}
}

// carryForward reuses the last accepted position for the same airframe when
// it is recent enough. Only latitude and longitude are remembered across
// batches, so other fields fall through untouched.
func (e *Enricher) carryForward(rec *EnrichedRecord, field string, bctx *BatchContext) {
	if bctx == nil || bctx.Positions == nil {
		return
	}
	if field != FieldLatitude && field != FieldLongitude {
		return
	}
	prev, ok := bctx.Positions.Lookup(rec.ICAO24)
	if !ok {
		return
	}
	if e.cfg.CarryForwardMaxAge > 0 {
		if epoch, ok := rec.Timestamp(); ok {
			age := time.Unix(epoch, 0).Sub(time.Unix(prev.TimePosition, 0))
			if age < 0 || age > e.cfg.CarryForwardMaxAge {
				return
			}
		}
	}
	value := prev.Latitude
	if field == FieldLongitude {
		value = prev.Longitude
	}
	if setField(rec, field, value) {
		rec.AddFlag("carried_forward:" + field)
	}
}

// setField writes a resolved value into the named numeric field. Returns
// false for fields no strategy can fill (identifier, timestamp, boolean).
func setField(rec *EnrichedRecord, field string, value float64) bool {
	v := value
	switch field {
	case FieldLatitude:
		rec.Latitude = &v
	case FieldLongitude:
		rec.Longitude = &v
	case FieldBaroAltitude:
		rec.BaroAltitude = &v
	case FieldVelocity:
		rec.Velocity = &v
	case FieldTrueTrack:
		rec.TrueTrack = &v
	case FieldVerticalRate:
		rec.VerticalRate = &v
	default:
		return false
	}
	return true
}
