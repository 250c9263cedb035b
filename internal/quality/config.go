package quality

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"
)

// DedupStrategy selects how redundant observations of the same aircraft
// within a batch are resolved.
type DedupStrategy string

const (
	DedupKeepLatest       DedupStrategy = "keep-latest"
	DedupKeepMostComplete DedupStrategy = "keep-most-complete"
	DedupKeepAllFlag      DedupStrategy = "keep-all-flag-duplicates"
)

// MissingValueStrategy selects how an absent numeric field is handled during
// enrichment. Declared once per field; never mixed within a field in a batch.
type MissingValueStrategy string

const (
	MissingDrop         MissingValueStrategy = "drop"
	MissingCarryForward MissingValueStrategy = "carry-forward"
	MissingImputeMean   MissingValueStrategy = "impute-batch-mean"
	MissingFlagOnly     MissingValueStrategy = "flag-only"
)

// Field names recognised by the completeness checker and the missing-value
// strategies. "timestamp" stands for "either time_position or last_contact".
const (
	FieldICAO24       = "icao24"
	FieldTimestamp    = "timestamp"
	FieldLatitude     = "latitude"
	FieldLongitude    = "longitude"
	FieldBaroAltitude = "baro_altitude"
	FieldVelocity     = "velocity"
	FieldTrueTrack    = "true_track"
	FieldVerticalRate = "vertical_rate"
	FieldOnGround     = "on_ground"
)

// CompletenessConfig controls the field-presence checker.
type CompletenessConfig struct {
	CriticalFields   []string `json:"critical_fields"`
	ImportantFields  []string `json:"important_fields"`
	ImportantPenalty float64  `json:"important_penalty"` // subtracted per missing important field
	CriticalCap      float64  `json:"critical_cap"`      // score ceiling when a critical field is missing
	ImportantFloor   float64  `json:"important_floor"`   // score floor when only important fields are missing
}

// ValidityConfig holds per-field range and format bounds. Velocity is
// bounded in the feed's source units (m/s).
type ValidityConfig struct {
	LatitudeMin     float64 `json:"latitude_min"`
	LatitudeMax     float64 `json:"latitude_max"`
	LongitudeMin    float64 `json:"longitude_min"`
	LongitudeMax    float64 `json:"longitude_max"`
	BaroAltitudeMin float64 `json:"baro_altitude_min_m"`
	BaroAltitudeMax float64 `json:"baro_altitude_max_m"`
	VelocityMax     float64 `json:"velocity_max_mps"`
	TrackMin        float64 `json:"track_min"`
	TrackMax        float64 `json:"track_max"` // exclusive
	ICAO24Pattern   string  `json:"icao24_pattern"`
	SquawkPattern   string  `json:"squawk_pattern"`

	icao24Re *regexp.Regexp
	squawkRe *regexp.Regexp
}

// ICAO24Valid reports whether s matches the configured identifier pattern.
// Validate must have been called on the enclosing EngineConfig first.
func (v *ValidityConfig) ICAO24Valid(s string) bool {
	return v.icao24Re != nil && v.icao24Re.MatchString(s)
}

// SquawkValid reports whether s matches the configured transponder-code
// pattern.
func (v *ValidityConfig) SquawkValid(s string) bool {
	return v.squawkRe != nil && v.squawkRe.MatchString(s)
}

// ConsistencyConfig controls the cross-field plausibility checks. Each
// triggered check subtracts CheckPenalty from the consistency score.
type ConsistencyConfig struct {
	GroundAltitudeFt   float64 `json:"ground_altitude_ft"`     // on_ground but above this altitude
	GroundSpeedKt      float64 `json:"ground_speed_kt"`        // on_ground but faster than taxi
	LowAltitudeFt      float64 `json:"low_altitude_ft"`        // ceiling for the low-altitude speed check
	LowAltitudeSpeedKt float64 `json:"low_altitude_speed_kt"`  // implausible below LowAltitudeFt
	PositionJumpKt     float64 `json:"position_jump_speed_kt"` // implied ground-speed hard ceiling
	CheckPenalty       float64 `json:"check_penalty"`
}

// TimelinessConfig controls the freshness buckets. Fresh observations score
// 1.0; aged ones decay linearly to 0.5; stale ones decay further towards
// StaleFloor over StaleDecay.
type TimelinessConfig struct {
	Fresh        time.Duration `json:"fresh_ns"`
	Aged         time.Duration `json:"aged_ns"`
	StaleDecay   time.Duration `json:"stale_decay_ns"`
	StaleFloor   float64       `json:"stale_floor"`
	MissingScore float64       `json:"missing_score"`
}

// AnomalyConfig controls batch z-score detection and the absolute
// extreme-value bounds.
type AnomalyConfig struct {
	ZScoreThreshold        float64 `json:"z_score_threshold"`
	StdDevEpsilon          float64 `json:"stddev_epsilon"`
	ExtremeAltitudeFt      float64 `json:"extreme_altitude_ft"`
	ExtremeSpeedKt         float64 `json:"extreme_speed_kt"`
	ExtremeVerticalRateFpm float64 `json:"extreme_vertical_rate_fpm"`
	PolarLatitudeDeg       float64 `json:"polar_latitude_deg"`
	ZeroCoordEpsilon       float64 `json:"zero_coord_epsilon"`
	FlagPenalty            float64 `json:"flag_penalty"` // subtracted from consistency per anomaly flag
}

// RegionBox is one coarse geographic bucket. Boxes are evaluated in slice
// order; the first match wins.
type RegionBox struct {
	Code   string  `json:"code"`
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// EnrichmentConfig controls unit categorisation, region tagging, dedup, and
// missing-value handling.
type EnrichmentConfig struct {
	// Breakpoints are ascending. Values below the first breakpoint land in
	// the lowest category; above the last, in the highest.
	AltitudeBreakpointsFt []float64 `json:"altitude_breakpoints_ft"`
	SpeedBreakpointsKt    []float64 `json:"speed_breakpoints_kt"`

	Regions           []RegionBox `json:"regions"`
	DefaultRegionCode string      `json:"default_region_code"`

	DedupStrategy DedupStrategy                   `json:"dedup_strategy"`
	MissingValues map[string]MissingValueStrategy `json:"missing_values"`

	// CarryForwardMaxAge bounds how old a remembered position may be before
	// carry-forward refuses to reuse it.
	CarryForwardMaxAge time.Duration `json:"carry_forward_max_age_ns"`
}

// PhaseConfig holds the flight-phase classification thresholds.
type PhaseConfig struct {
	TakeoffCeilingFt  float64 `json:"takeoff_ceiling_ft"`
	ApproachCeilingFt float64 `json:"approach_ceiling_ft"`
	ClimbRateFpm      float64 `json:"climb_rate_fpm"`
}

// ScoringConfig holds the dimensional weights and the quarantine threshold.
// Weights are normalised to sum to 1 when the aggregator is built.
type ScoringConfig struct {
	CompletenessWeight  float64 `json:"completeness_weight"`
	ValidityWeight      float64 `json:"validity_weight"`
	ConsistencyWeight   float64 `json:"consistency_weight"`
	TimelinessWeight    float64 `json:"timeliness_weight"`
	QuarantineThreshold float64 `json:"quarantine_threshold"`
}

// PositionLogConfig bounds the cross-batch previous-position map.
type PositionLogConfig struct {
	IdleEviction time.Duration `json:"idle_eviction_ns"`
	MaxEntries   int           `json:"max_entries"`
}

// AlertConfig controls the batch-level alert signal.
type AlertConfig struct {
	QuarantineRateThreshold float64 `json:"quarantine_rate_threshold"`
}

// EngineConfig is the full configuration surface of the quality engine.
// Invalid configuration is fatal at load time; the engine refuses to process
// batches with a config that has not passed Validate.
type EngineConfig struct {
	Completeness CompletenessConfig `json:"completeness"`
	Validity     ValidityConfig     `json:"validity"`
	Consistency  ConsistencyConfig  `json:"consistency"`
	Timeliness   TimelinessConfig   `json:"timeliness"`
	Anomaly      AnomalyConfig      `json:"anomaly"`
	Enrichment   EnrichmentConfig   `json:"enrichment"`
	Phase        PhaseConfig        `json:"phase"`
	Scoring      ScoringConfig      `json:"scoring"`
	Positions    PositionLogConfig  `json:"positions"`
	Alert        AlertConfig        `json:"alert"`
}

// DefaultRegions returns the built-in coarse region buckets, highest
// priority first.
func DefaultRegions() []RegionBox {
	return []RegionBox{
		{Code: "NA", MinLat: 15, MaxLat: 72, MinLon: -170, MaxLon: -50},
		{Code: "EU", MinLat: 35, MaxLat: 72, MinLon: -25, MaxLon: 45},
		{Code: "EA", MinLat: 15, MaxLat: 55, MinLon: 95, MaxLon: 150},
		{Code: "OC", MinLat: -50, MaxLat: 0, MinLon: 110, MaxLon: 180},
	}
}

// DefaultEngineConfig returns the tuning defaults. All numeric constants
// here are starting points, not requirements.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Completeness: CompletenessConfig{
			CriticalFields:   []string{FieldICAO24, FieldTimestamp, FieldLatitude, FieldLongitude},
			ImportantFields:  []string{FieldBaroAltitude, FieldVelocity, FieldTrueTrack, FieldOnGround},
			ImportantPenalty: 0.1,
			CriticalCap:      0.5,
			ImportantFloor:   0.5,
		},
		Validity: ValidityConfig{
			LatitudeMin:     -90,
			LatitudeMax:     90,
			LongitudeMin:    -180,
			LongitudeMax:    180,
			BaroAltitudeMin: -1000,
			BaroAltitudeMax: 20000,
			VelocityMax:     1200 / 3.6, // 1200 km/h ceiling, feed reports m/s
			TrackMin:        0,
			TrackMax:        360,
			ICAO24Pattern:   `^[0-9a-fA-F]{6}$`,
			SquawkPattern:   `^[0-7]{4}$`,
		},
		Consistency: ConsistencyConfig{
			GroundAltitudeFt:   500,
			GroundSpeedKt:      50,
			LowAltitudeFt:      5000,
			LowAltitudeSpeedKt: 500,
			PositionJumpKt:     700,
			CheckPenalty:       0.25,
		},
		Timeliness: TimelinessConfig{
			Fresh:        60 * time.Second,
			Aged:         300 * time.Second,
			StaleDecay:   time.Hour,
			StaleFloor:   0.1,
			MissingScore: 0.3,
		},
		Anomaly: AnomalyConfig{
			ZScoreThreshold:        3.0,
			StdDevEpsilon:          1e-6,
			ExtremeAltitudeFt:      50000,
			ExtremeSpeedKt:         600,
			ExtremeVerticalRateFpm: 3000,
			PolarLatitudeDeg:       80,
			ZeroCoordEpsilon:       0.001,
			FlagPenalty:            0.1,
		},
		Enrichment: EnrichmentConfig{
			AltitudeBreakpointsFt: []float64{10000, 25000, 40000},
			SpeedBreakpointsKt:    []float64{150, 350, 500},
			Regions:               DefaultRegions(),
			DefaultRegionCode:     "Other",
			DedupStrategy:         DedupKeepMostComplete,
			MissingValues: map[string]MissingValueStrategy{
				FieldLatitude:     MissingFlagOnly,
				FieldLongitude:    MissingFlagOnly,
				FieldBaroAltitude: MissingFlagOnly,
				FieldVelocity:     MissingFlagOnly,
				FieldVerticalRate: MissingFlagOnly,
			},
			CarryForwardMaxAge: 5 * time.Minute,
		},
		Phase: PhaseConfig{
			TakeoffCeilingFt:  1000,
			ApproachCeilingFt: 3000,
			ClimbRateFpm:      500,
		},
		Scoring: ScoringConfig{
			CompletenessWeight:  0.30,
			ValidityWeight:      0.30,
			ConsistencyWeight:   0.25,
			TimelinessWeight:    0.15,
			QuarantineThreshold: 0.60,
		},
		Positions: PositionLogConfig{
			IdleEviction: 24 * time.Hour,
			MaxEntries:   500000,
		},
		Alert: AlertConfig{
			QuarantineRateThreshold: 0.10,
		},
	}
}

// Validate checks the configuration and compiles the validity patterns.
// It must be called (and succeed) before the config is handed to the engine.
func (c *EngineConfig) Validate() error {
	w := c.Scoring
	for name, v := range map[string]float64{
		"completeness_weight": w.CompletenessWeight,
		"validity_weight":     w.ValidityWeight,
		"consistency_weight":  w.ConsistencyWeight,
		"timeliness_weight":   w.TimelinessWeight,
	} {
		if v < 0 {
			return fmt.Errorf("scoring: %s must not be negative, got %v", name, v)
		}
	}
	if w.CompletenessWeight+w.ValidityWeight+w.ConsistencyWeight+w.TimelinessWeight <= 0 {
		return fmt.Errorf("scoring: dimensional weights sum to zero")
	}
	if w.QuarantineThreshold < 0 || w.QuarantineThreshold > 1 {
		return fmt.Errorf("scoring: quarantine_threshold must be in [0,1], got %v", w.QuarantineThreshold)
	}

	if len(c.Completeness.CriticalFields) == 0 {
		return fmt.Errorf("completeness: critical_fields must not be empty")
	}
	if c.Completeness.ImportantPenalty < 0 || c.Completeness.ImportantPenalty > 1 {
		return fmt.Errorf("completeness: important_penalty must be in [0,1], got %v", c.Completeness.ImportantPenalty)
	}
	for _, f := range append(append([]string{}, c.Completeness.CriticalFields...), c.Completeness.ImportantFields...) {
		if !knownField(f) {
			return fmt.Errorf("completeness: unknown field %q", f)
		}
	}

	var err error
	if c.Validity.icao24Re, err = regexp.Compile(c.Validity.ICAO24Pattern); err != nil {
		return fmt.Errorf("validity: bad icao24_pattern: %w", err)
	}
	if c.Validity.squawkRe, err = regexp.Compile(c.Validity.SquawkPattern); err != nil {
		return fmt.Errorf("validity: bad squawk_pattern: %w", err)
	}

	if c.Consistency.CheckPenalty < 0 || c.Consistency.CheckPenalty > 1 {
		return fmt.Errorf("consistency: check_penalty must be in [0,1], got %v", c.Consistency.CheckPenalty)
	}
	if c.Anomaly.FlagPenalty < 0 || c.Anomaly.FlagPenalty > 1 {
		return fmt.Errorf("anomaly: flag_penalty must be in [0,1], got %v", c.Anomaly.FlagPenalty)
	}
	if c.Anomaly.ZScoreThreshold <= 0 {
		return fmt.Errorf("anomaly: z_score_threshold must be positive, got %v", c.Anomaly.ZScoreThreshold)
	}
	if c.Anomaly.StdDevEpsilon <= 0 {
		return fmt.Errorf("anomaly: stddev_epsilon must be positive, got %v", c.Anomaly.StdDevEpsilon)
	}

	if c.Timeliness.Fresh <= 0 || c.Timeliness.Aged <= c.Timeliness.Fresh {
		return fmt.Errorf("timeliness: need 0 < fresh < aged, got fresh=%v aged=%v", c.Timeliness.Fresh, c.Timeliness.Aged)
	}

	if err := ascending(c.Enrichment.AltitudeBreakpointsFt); err != nil {
		return fmt.Errorf("enrichment: altitude_breakpoints_ft: %w", err)
	}
	if err := ascending(c.Enrichment.SpeedBreakpointsKt); err != nil {
		return fmt.Errorf("enrichment: speed_breakpoints_kt: %w", err)
	}
	switch c.Enrichment.DedupStrategy {
	case DedupKeepLatest, DedupKeepMostComplete, DedupKeepAllFlag:
	default:
		return fmt.Errorf("enrichment: unknown dedup_strategy %q", c.Enrichment.DedupStrategy)
	}
	for field, strategy := range c.Enrichment.MissingValues {
		if !knownField(field) {
			return fmt.Errorf("enrichment: missing_values: unknown field %q", field)
		}
		switch strategy {
		case MissingDrop, MissingCarryForward, MissingImputeMean, MissingFlagOnly:
		default:
			return fmt.Errorf("enrichment: missing_values[%s]: unknown strategy %q", field, strategy)
		}
	}

	if c.Alert.QuarantineRateThreshold < 0 || c.Alert.QuarantineRateThreshold > 1 {
		return fmt.Errorf("alert: quarantine_rate_threshold must be in [0,1], got %v", c.Alert.QuarantineRateThreshold)
	}

	return nil
}

// LoadEngineConfig reads a JSON config file layered over the defaults and
// validates the result.
func LoadEngineConfig(path string) (EngineConfig, error) {
	cfg := DefaultEngineConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func knownField(name string) bool {
	switch name {
	case FieldICAO24, FieldTimestamp, FieldLatitude, FieldLongitude,
		FieldBaroAltitude, FieldVelocity, FieldTrueTrack, FieldVerticalRate,
		FieldOnGround:
		return true
	}
	return false
}

func ascending(vs []float64) error {
	for i := 1; i < len(vs); i++ {
		if vs[i] <= vs[i-1] {
			return fmt.Errorf("breakpoints must be strictly ascending, got %v", vs)
		}
	}
	return nil
}
