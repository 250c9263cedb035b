package quality

import "time"

// PositionSource identifies the surveillance technology that produced an
// observation. Values follow the upstream feed's encoding.
type PositionSource int

const (
	SourceADSB    PositionSource = 0
	SourceASTERIX PositionSource = 1
	SourceMLAT    PositionSource = 2
)

func (p PositionSource) String() string {
	switch p {
	case SourceADSB:
		return "ADS-B"
	case SourceASTERIX:
		return "ASTERIX"
	case SourceMLAT:
		return "MLAT"
	default:
		return "unknown"
	}
}

// RawStateVector is one timestamped aircraft observation as delivered by the
// upstream tracking feed. Numeric fields the feed may omit are pointers; nil
// means the value was not reported, which is distinct from zero.
type RawStateVector struct {
	ICAO24         string         `json:"icao24"`
	Callsign       string         `json:"callsign,omitempty"`
	OriginCountry  string         `json:"origin_country,omitempty"`
	TimePosition   *int64         `json:"time_position,omitempty"` // epoch seconds
	LastContact    *int64         `json:"last_contact,omitempty"`  // epoch seconds
	Longitude      *float64       `json:"longitude,omitempty"`     // WGS-84 degrees
	Latitude       *float64       `json:"latitude,omitempty"`      // WGS-84 degrees
	BaroAltitude   *float64       `json:"baro_altitude,omitempty"` // metres
	GeoAltitude    *float64       `json:"geo_altitude,omitempty"`  // metres
	OnGround       bool           `json:"on_ground"`
	Velocity       *float64       `json:"velocity,omitempty"`      // m/s
	TrueTrack      *float64       `json:"true_track,omitempty"`    // degrees, clockwise from north
	VerticalRate   *float64       `json:"vertical_rate,omitempty"` // m/s, positive climbing
	Squawk         string         `json:"squawk,omitempty"`
	SPI            bool           `json:"spi"`
	PositionSource PositionSource `json:"position_source"`
	Sensors        []int          `json:"sensors,omitempty"`
}

// Timestamp returns the best available observation time: time_position when
// the feed reported one, otherwise last_contact. ok is false when neither is
// present.
func (r *RawStateVector) Timestamp() (epoch int64, ok bool) {
	if r.TimePosition != nil {
		return *r.TimePosition, true
	}
	if r.LastContact != nil {
		return *r.LastContact, true
	}
	return 0, false
}

// HasPosition reports whether both coordinates were reported.
func (r *RawStateVector) HasPosition() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// AltitudeCategory buckets barometric altitude.
type AltitudeCategory string

const (
	AltitudeLow      AltitudeCategory = "Low"
	AltitudeMedium   AltitudeCategory = "Medium"
	AltitudeHigh     AltitudeCategory = "High"
	AltitudeVeryHigh AltitudeCategory = "VeryHigh"
)

// SpeedCategory buckets ground speed.
type SpeedCategory string

const (
	SpeedSlow     SpeedCategory = "Slow"
	SpeedNormal   SpeedCategory = "Normal"
	SpeedFast     SpeedCategory = "Fast"
	SpeedVeryFast SpeedCategory = "VeryFast"
)

// FlightPhase is the coarse kinematic classification of an observation.
type FlightPhase string

const (
	PhaseGround   FlightPhase = "Ground"
	PhaseTakeoff  FlightPhase = "Takeoff"
	PhaseClimb    FlightPhase = "Climb"
	PhaseCruise   FlightPhase = "Cruise"
	PhaseDescent  FlightPhase = "Descent"
	PhaseApproach FlightPhase = "Approach"
)

// EnrichedRecord is a RawStateVector after validation, enrichment, and
// scoring. It is the unit handed to the curated-store and quarantine sinks.
type EnrichedRecord struct {
	RawStateVector

	// Unit-converted kinematics. Nil inputs stay nil.
	AltitudeFt      *float64 `json:"altitude_ft,omitempty"`
	GeoAltitudeFt   *float64 `json:"geo_altitude_ft,omitempty"`
	SpeedKnots      *float64 `json:"speed_knots,omitempty"`
	SpeedKmh        *float64 `json:"speed_kmh,omitempty"`
	VerticalRateFpm *float64 `json:"vertical_rate_fpm,omitempty"`

	AltitudeCategory AltitudeCategory `json:"altitude_category,omitempty"`
	SpeedCategory    SpeedCategory    `json:"speed_category,omitempty"`
	FlightPhase      FlightPhase      `json:"flight_phase"`
	RegionCode       string           `json:"region_code"`

	CompletenessScore   float64 `json:"completeness_score"`
	ValidityScore       float64 `json:"validity_score"`
	ConsistencyScore    float64 `json:"consistency_score"`
	TimelinessScore     float64 `json:"timeliness_score"`
	OverallQualityScore float64 `json:"overall_quality_score"`
	QualityGrade        string  `json:"quality_grade"`

	// QualityFlags is an ordered set of issue tags accumulated across the
	// pipeline stages. Order is the order the checks ran in; a tag appears
	// at most once.
	QualityFlags []string `json:"quality_flags,omitempty"`

	Quarantined      bool   `json:"quarantined"`
	QuarantineReason string `json:"quarantine_reason,omitempty"`

	// Duplicate marks records retained by the keep-all-flag-duplicates
	// strategy. They are excluded from anomaly baseline statistics.
	Duplicate bool `json:"duplicate,omitempty"`
}

// AddFlag appends tag to QualityFlags unless it is already present.
func (e *EnrichedRecord) AddFlag(tag string) {
	for _, f := range e.QualityFlags {
		if f == tag {
			return
		}
	}
	e.QualityFlags = append(e.QualityFlags, tag)
}

// HasFlag reports whether tag is present in QualityFlags.
func (e *EnrichedRecord) HasFlag(tag string) bool {
	for _, f := range e.QualityFlags {
		if f == tag {
			return true
		}
	}
	return false
}

// Flag tags produced by validators and the anomaly detector. Field-level
// completeness and validity tags are built with MissingFlag and InvalidFlag.
const (
	FlagGroundAltitudeConflict = "ground_altitude_conflict"
	FlagGroundSpeedConflict    = "ground_speed_conflict"
	FlagLowAltitudeHighSpeed   = "low_altitude_high_speed"
	FlagPositionJump           = "position_jump"
	FlagMissingTimestamp       = "missing_timestamp"
	FlagStale                  = "stale"

	FlagAltitudeAnomaly     = "altitude_anomaly"
	FlagVelocityAnomaly     = "velocity_anomaly"
	FlagVerticalRateAnomaly = "vertical_rate_anomaly"
	FlagExtremeAltitude     = "extreme_altitude"
	FlagExtremeSpeed        = "extreme_speed"
	FlagExtremeVerticalRate = "extreme_vertical_rate"
	FlagPolarRegion         = "polar_region"
	FlagZeroCoordinate      = "zero_coordinate"

	FlagDuplicate = "duplicate"
)

// MissingFlag returns the completeness tag for an absent field.
func MissingFlag(field string) string { return "missing:" + field }

// InvalidFlag returns the validity tag for a field that failed its
// range/format check.
func InvalidFlag(field string) string { return "invalid:" + field }

// Quarantine reasons. A record's QuarantineReason joins every applicable
// reason with commas, most severe first.
const (
	ReasonMissingICAO24   = "missing_icao24"
	ReasonMalformedICAO24 = "malformed_icao24"
	ReasonMissingPosition = "missing_position"
	ReasonLowQualityScore = "low_quality_score"
)

// BatchQualityMetrics is the per-batch quality summary handed to the metrics
// sink. It is created once per batch and never mutated after emission.
type BatchQualityMetrics struct {
	BatchID     string    `json:"batch_id"`
	ProcessedAt time.Time `json:"processed_at"`

	TotalRecords       int `json:"total_records"`
	AcceptedRecords    int `json:"accepted_records"`
	QuarantinedRecords int `json:"quarantined_records"`
	DuplicateRecords   int `json:"duplicate_records"`

	AvgCompleteness float64 `json:"avg_completeness"`
	AvgValidity     float64 `json:"avg_validity"`
	AvgConsistency  float64 `json:"avg_consistency"`
	AvgTimeliness   float64 `json:"avg_timeliness"`
	AvgOverall      float64 `json:"avg_overall"`

	AnomalyCounts     map[string]int `json:"anomaly_counts,omitempty"`
	QuarantineReasons map[string]int `json:"quarantine_reasons,omitempty"`
	GradeCounts       map[string]int `json:"grade_counts,omitempty"`

	AlertTriggered bool   `json:"alert_triggered"`
	AlertReason    string `json:"alert_reason,omitempty"`
}
