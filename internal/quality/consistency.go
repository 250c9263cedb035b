package quality

// ConsistencyValidator applies cross-field plausibility checks: ground-state
// conflicts, speed-altitude plausibility, and the position-jump check against
// the previous accepted position for the same airframe. The position-jump
// check is skipped, not penalised, when no previous position exists.
type ConsistencyValidator struct {
	cfg ConsistencyConfig
}

// NewConsistencyValidator builds the plausibility checker from config.
func NewConsistencyValidator(cfg ConsistencyConfig) *ConsistencyValidator {
	return &ConsistencyValidator{cfg: cfg}
}

func (v *ConsistencyValidator) Name() string { return "consistency" }

// Evaluate implements Validator. The score starts at 1.0 and loses a fixed
// penalty per triggered check, floored at 0.
func (v *ConsistencyValidator) Evaluate(rec *RawStateVector, bctx *BatchContext) ValidationResult {
	res := ValidationResult{Score: 1.0}

	var altFt, speedKt float64
	haveAlt := rec.BaroAltitude != nil
	haveSpeed := rec.Velocity != nil
	if haveAlt {
		altFt = *rec.BaroAltitude * metersToFeet
	}
	if haveSpeed {
		speedKt = *rec.Velocity * mpsToKnots
	}

	trigger := func(flag string) {
		res.Flags = append(res.Flags, flag)
		res.Score -= v.cfg.CheckPenalty
	}

	if rec.OnGround {
		if haveAlt && altFt > v.cfg.GroundAltitudeFt {
			trigger(FlagGroundAltitudeConflict)
		}
		if haveSpeed && speedKt > v.cfg.GroundSpeedKt {
			trigger(FlagGroundSpeedConflict)
		}
	}

	if haveAlt && haveSpeed && altFt < v.cfg.LowAltitudeFt && speedKt > v.cfg.LowAltitudeSpeedKt {
		trigger(FlagLowAltitudeHighSpeed)
	}

	if flagged := v.positionJump(rec, bctx); flagged {
		trigger(FlagPositionJump)
	}

	res.Score = clamp01(res.Score)
	return res
}

// positionJump reports whether the implied ground speed from the previous
// accepted position exceeds the configured ceiling.
func (v *ConsistencyValidator) positionJump(rec *RawStateVector, bctx *BatchContext) bool {
	if bctx == nil || bctx.Positions == nil || !rec.HasPosition() || rec.TimePosition == nil {
		return false
	}
	prev, ok := bctx.Positions.Lookup(rec.ICAO24)
	if !ok {
		return false
	}
	dt := *rec.TimePosition - prev.TimePosition
	if dt <= 0 {
		return false
	}
	distKm := haversineKm(prev.Latitude, prev.Longitude, *rec.Latitude, *rec.Longitude)
	impliedKt := distKm / (float64(dt) / 3600.0) * kmhToKnots
	return impliedKt > v.cfg.PositionJumpKt
}
