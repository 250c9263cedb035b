package quality

// Helper functions for creating pointer values
func f64Ptr(f float64) *float64 {
	return &f
}

func i64Ptr(i int64) *int64 {
	return &i
}

// validVector returns a fully populated, plausible state vector for tests to
// mutate.
func validVector(epoch int64) RawStateVector {
	return RawStateVector{
		ICAO24:        "4ca7b4",
		Callsign:      "RYR123",
		OriginCountry: "Ireland",
		TimePosition:  i64Ptr(epoch),
		LastContact:   i64Ptr(epoch),
		Latitude:      f64Ptr(53.42),
		Longitude:     f64Ptr(-6.27),
		BaroAltitude:  f64Ptr(11000),
		Velocity:      f64Ptr(230),
		TrueTrack:     f64Ptr(270),
		VerticalRate:  f64Ptr(0),
		Squawk:        "7000",
	}
}
