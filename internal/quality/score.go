package quality

import "strings"

// Aggregator combines the four dimensional scores into the overall quality
// score, assigns a letter grade, and makes the quarantine decision. Weights
// are normalised once at construction so the overall score stays in [0,1].
type Aggregator struct {
	wCompleteness float64
	wValidity     float64
	wConsistency  float64
	wTimeliness   float64
	threshold     float64
	validity      *ValidityConfig
}

// NewAggregator builds the score aggregator. cfg must come from an
// EngineConfig that passed Validate.
func NewAggregator(cfg ScoringConfig, validity *ValidityConfig) *Aggregator {
	sum := cfg.CompletenessWeight + cfg.ValidityWeight + cfg.ConsistencyWeight + cfg.TimelinessWeight
	return &Aggregator{
		wCompleteness: cfg.CompletenessWeight / sum,
		wValidity:     cfg.ValidityWeight / sum,
		wConsistency:  cfg.ConsistencyWeight / sum,
		wTimeliness:   cfg.TimelinessWeight / sum,
		threshold:     cfg.QuarantineThreshold,
		validity:      validity,
	}
}

// Finalize computes the overall score and grade for rec and applies the
// quarantine decision. Deterministic: the same dimensional scores and
// identifier always produce the same outcome.
func (a *Aggregator) Finalize(rec *EnrichedRecord) {
	rec.OverallQualityScore = clamp01(
		a.wCompleteness*rec.CompletenessScore +
			a.wValidity*rec.ValidityScore +
			a.wConsistency*rec.ConsistencyScore +
			a.wTimeliness*rec.TimelinessScore)
	rec.QualityGrade = GradeForScore(rec.OverallQualityScore)

	var reasons []string
	if rec.ICAO24 == "" {
		reasons = append(reasons, ReasonMissingICAO24)
	} else if !a.validity.ICAO24Valid(rec.ICAO24) {
		reasons = append(reasons, ReasonMalformedICAO24)
	}
	if !rec.HasPosition() {
		reasons = append(reasons, ReasonMissingPosition)
	}
	if rec.OverallQualityScore < a.threshold {
		reasons = append(reasons, ReasonLowQualityScore)
	}

	if len(reasons) > 0 {
		rec.Quarantined = true
		rec.QuarantineReason = strings.Join(reasons, ",")
	} else {
		rec.Quarantined = false
		rec.QuarantineReason = ""
	}
}

// GradeForScore maps an overall quality score to a letter grade.
func GradeForScore(score float64) string {
	switch {
	case score >= 0.95:
		return "A+"
	case score >= 0.90:
		return "A"
	case score >= 0.85:
		return "B+"
	case score >= 0.80:
		return "B"
	case score >= 0.75:
		return "C+"
	case score >= 0.70:
		return "C"
	case score >= 0.60:
		return "D"
	default:
		return "F"
	}
}
