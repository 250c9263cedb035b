package quality

// ClassifyFlightPhase derives the coarse flight phase from an observation's
// kinematics. This is a stateless decision procedure: observations for one
// airframe may arrive out of order or with gaps, so no continuity across
// observations is assumed.
//
// Missing kinematics default conservatively: an absent vertical rate is
// treated as level flight, and an absent altitude as above the takeoff and
// approach ceilings (so a climbing record without altitude classifies as
// Climb rather than Takeoff).
func ClassifyFlightPhase(rec *EnrichedRecord, cfg PhaseConfig) FlightPhase {
	if rec.OnGround {
		return PhaseGround
	}

	vrate := 0.0
	if rec.VerticalRateFpm != nil {
		vrate = *rec.VerticalRateFpm
	}

	haveAlt := rec.AltitudeFt != nil
	var altFt float64
	if haveAlt {
		altFt = *rec.AltitudeFt
	}

	switch {
	case vrate > cfg.ClimbRateFpm:
		if haveAlt && altFt < cfg.TakeoffCeilingFt {
			return PhaseTakeoff
		}
		return PhaseClimb
	case vrate < -cfg.ClimbRateFpm:
		if haveAlt && altFt < cfg.ApproachCeilingFt {
			return PhaseApproach
		}
		return PhaseDescent
	default:
		return PhaseCruise
	}
}
