package quality

// CompletenessValidator scores field presence. Critical fields cap the score
// when absent; important fields each subtract a fixed penalty.
type CompletenessValidator struct {
	cfg CompletenessConfig
}

// NewCompletenessValidator builds the presence checker from config.
func NewCompletenessValidator(cfg CompletenessConfig) *CompletenessValidator {
	return &CompletenessValidator{cfg: cfg}
}

func (v *CompletenessValidator) Name() string { return "completeness" }

// Evaluate implements Validator.
func (v *CompletenessValidator) Evaluate(rec *RawStateVector, _ *BatchContext) ValidationResult {
	var res ValidationResult

	criticalMissing := 0
	for _, field := range v.cfg.CriticalFields {
		if !fieldPresent(rec, field) {
			criticalMissing++
			res.Flags = append(res.Flags, MissingFlag(field))
		}
	}

	importantMissing := 0
	for _, field := range v.cfg.ImportantFields {
		if !fieldPresent(rec, field) {
			importantMissing++
			res.Flags = append(res.Flags, MissingFlag(field))
		}
	}

	score := 1.0 - float64(importantMissing)*v.cfg.ImportantPenalty
	if score < v.cfg.ImportantFloor {
		score = v.cfg.ImportantFloor
	}
	if criticalMissing > 0 && score > v.cfg.CriticalCap {
		score = v.cfg.CriticalCap
	}
	res.Score = clamp01(score)
	return res
}

// Score is a convenience wrapper for callers that only need the numeric
// completeness score (the dedup keep-most-complete strategy).
func (v *CompletenessValidator) Score(rec *RawStateVector) float64 {
	return v.Evaluate(rec, nil).Score
}
