package quality

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// AnomalyDetector runs once per batch, after individual validation. It
// computes per-field z-scores against the batch distribution and applies
// absolute extreme-value bounds. Anomaly flags refine the consistency score
// rather than owning a dimension of their own.
type AnomalyDetector struct {
	cfg AnomalyConfig
}

// NewAnomalyDetector builds the batch outlier detector from config.
func NewAnomalyDetector(cfg AnomalyConfig) *AnomalyDetector {
	return &AnomalyDetector{cfg: cfg}
}

// fieldStats holds the batch baseline for one monitored field.
type fieldStats struct {
	mean   float64
	stddev float64
	n      int
}

// DetectBatch flags outliers across the batch and returns per-flag counts.
// Records with validity 0 or marked duplicate are excluded from the baseline
// statistics but still receive extreme-value flags.
func (d *AnomalyDetector) DetectBatch(records []*EnrichedRecord) map[string]int {
	counts := make(map[string]int)
	if len(records) == 0 {
		return counts
	}

	altStats := d.baseline(records, func(r *EnrichedRecord) *float64 { return r.BaroAltitude })
	velStats := d.baseline(records, func(r *EnrichedRecord) *float64 { return r.Velocity })
	vrtStats := d.baseline(records, func(r *EnrichedRecord) *float64 { return r.VerticalRate })

	for _, rec := range records {
		flag := func(tag string) {
			if !rec.HasFlag(tag) {
				rec.AddFlag(tag)
				rec.ConsistencyScore = clamp01(rec.ConsistencyScore - d.cfg.FlagPenalty)
				counts[tag]++
			}
		}

		if d.outlier(rec.BaroAltitude, altStats) {
			flag(FlagAltitudeAnomaly)
		}
		if d.outlier(rec.Velocity, velStats) {
			flag(FlagVelocityAnomaly)
		}
		if d.outlier(rec.VerticalRate, vrtStats) {
			flag(FlagVerticalRateAnomaly)
		}

		// Absolute bounds apply regardless of batch statistics.
		if rec.AltitudeFt != nil && *rec.AltitudeFt > d.cfg.ExtremeAltitudeFt {
			flag(FlagExtremeAltitude)
		}
		if rec.SpeedKnots != nil && *rec.SpeedKnots > d.cfg.ExtremeSpeedKt {
			flag(FlagExtremeSpeed)
		}
		if rec.VerticalRateFpm != nil && math.Abs(*rec.VerticalRateFpm) > d.cfg.ExtremeVerticalRateFpm {
			flag(FlagExtremeVerticalRate)
		}
		if rec.Latitude != nil && math.Abs(*rec.Latitude) > d.cfg.PolarLatitudeDeg {
			flag(FlagPolarRegion)
		}
		if rec.Latitude != nil && rec.Longitude != nil &&
			math.Abs(*rec.Latitude) < d.cfg.ZeroCoordEpsilon && math.Abs(*rec.Longitude) < d.cfg.ZeroCoordEpsilon {
			flag(FlagZeroCoordinate)
		}
	}
	return counts
}

// baseline computes mean and stddev for one field over the eligible records.
func (d *AnomalyDetector) baseline(records []*EnrichedRecord, get func(*EnrichedRecord) *float64) fieldStats {
	samples := make([]float64, 0, len(records))
	for _, rec := range records {
		if rec.ValidityScore <= 0 || rec.Duplicate {
			continue
		}
		if v := get(rec); v != nil {
			samples = append(samples, *v)
		}
	}
	if len(samples) < 2 {
		// A singleton batch has no meaningful spread; z-scores are skipped.
		return fieldStats{n: len(samples)}
	}
	mean, stddev := stat.MeanStdDev(samples, nil)
	if stddev < d.cfg.StdDevEpsilon {
		stddev = d.cfg.StdDevEpsilon
	}
	return fieldStats{mean: mean, stddev: stddev, n: len(samples)}
}

func (d *AnomalyDetector) outlier(v *float64, stats fieldStats) bool {
	if v == nil || stats.n < 2 {
		return false
	}
	z := math.Abs(*v-stats.mean) / stats.stddev
	return z > d.cfg.ZScoreThreshold
}
