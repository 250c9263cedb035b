package quality

import "time"

// TimelinessValidator scores observation freshness against the batch
// processing time. Records with no usable timestamp get a fixed low score
// and a missing_timestamp flag rather than an error.
type TimelinessValidator struct {
	cfg TimelinessConfig
}

// NewTimelinessValidator builds the freshness checker from config.
func NewTimelinessValidator(cfg TimelinessConfig) *TimelinessValidator {
	return &TimelinessValidator{cfg: cfg}
}

func (v *TimelinessValidator) Name() string { return "timeliness" }

// Evaluate implements Validator.
func (v *TimelinessValidator) Evaluate(rec *RawStateVector, bctx *BatchContext) ValidationResult {
	epoch, ok := rec.Timestamp()
	if !ok {
		return ValidationResult{Score: v.cfg.MissingScore, Flags: []string{FlagMissingTimestamp}}
	}

	now := time.Now()
	if bctx != nil && !bctx.ProcessedAt.IsZero() {
		now = bctx.ProcessedAt
	}
	age := now.Sub(time.Unix(epoch, 0))
	if age < 0 {
		// Clock skew between feed and processor; treat as fresh.
		age = 0
	}

	switch {
	case age <= v.cfg.Fresh:
		return ValidationResult{Score: 1.0}
	case age <= v.cfg.Aged:
		// Linear decay from 1.0 at Fresh to 0.5 at Aged.
		frac := float64(age-v.cfg.Fresh) / float64(v.cfg.Aged-v.cfg.Fresh)
		return ValidationResult{Score: 1.0 - 0.5*frac}
	default:
		// Stale: keep decaying from 0.5 towards the floor over StaleDecay.
		score := 0.5
		if v.cfg.StaleDecay > 0 {
			frac := float64(age-v.cfg.Aged) / float64(v.cfg.StaleDecay)
			if frac > 1 {
				frac = 1
			}
			score = 0.5 - (0.5-v.cfg.StaleFloor)*frac
		}
		if score < v.cfg.StaleFloor {
			score = v.cfg.StaleFloor
		}
		return ValidationResult{Score: score, Flags: []string{FlagStale}}
	}
}
