// Package ingestion parses raw tracking-feed payloads into state-vector
// batches for the quality engine. Fetch scheduling and transport live with
// the upstream collaborator; this package only understands the wire shape.
package ingestion

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/skyward-data/quality.report/internal/quality"
)

// statesResponse mirrors the JSON shape of an OpenSky-style /states/all
// payload: a timestamp plus an array of heterogeneous state arrays.
type statesResponse struct {
	Time   int64           `json:"time"`
	States [][]interface{} `json:"states"`
}

// Field positions within one state array.
const (
	idxICAO24 = iota
	idxCallsign
	idxOriginCountry
	idxTimePosition
	idxLastContact
	idxLongitude
	idxLatitude
	idxBaroAltitude
	idxOnGround
	idxVelocity
	idxTrueTrack
	idxVerticalRate
	idxSensors
	idxGeoAltitude
	idxSquawk
	idxSPI
	idxPositionSource

	stateFieldCount = 17
)

// Metrics collects ingest counters. All fields are safe for concurrent use.
type Metrics struct {
	TotalPayloads   atomic.Int64
	TotalStates     atomic.Int64
	MalformedStates atomic.Int64
}

// Parser converts feed payloads into RawStateVector batches. A malformed
// state array becomes a record with missing fields, never a parse abort: the
// quality engine downgrades it, the batch proceeds.
type Parser struct {
	Metrics Metrics
}

// NewParser creates a payload parser.
func NewParser() *Parser {
	return &Parser{}
}

// ParsePayload decodes one /states/all-shaped JSON payload. Only a payload
// that is not valid JSON at the top level is an error; individual state
// arrays never are.
func (p *Parser) ParsePayload(data []byte) ([]quality.RawStateVector, error) {
	var raw statesResponse
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing states payload: %w", err)
	}
	p.Metrics.TotalPayloads.Add(1)

	batch := make([]quality.RawStateVector, 0, len(raw.States))
	for _, state := range raw.States {
		p.Metrics.TotalStates.Add(1)
		rec, ok := parseState(state)
		if !ok {
			p.Metrics.MalformedStates.Add(1)
		}
		batch = append(batch, rec)
	}
	return batch, nil
}

// ReadBatchFile loads a payload from disk (the dev-mode fixtures path).
func (p *Parser) ReadBatchFile(path string) ([]quality.RawStateVector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading batch file: %w", err)
	}
	return p.ParsePayload(data)
}

// parseState maps one heterogeneous state array onto a RawStateVector.
// ok is false when the array was too short or carried no usable identifier;
// the partial record is still returned.
func parseState(state []interface{}) (quality.RawStateVector, bool) {
	var rec quality.RawStateVector
	get := func(i int) interface{} {
		if i < len(state) {
			return state[i]
		}
		return nil
	}

	rec.ICAO24 = strings.ToLower(strings.TrimSpace(stringVal(get(idxICAO24))))
	rec.Callsign = strings.TrimSpace(stringVal(get(idxCallsign)))
	rec.OriginCountry = stringVal(get(idxOriginCountry))
	rec.TimePosition = intVal(get(idxTimePosition))
	rec.LastContact = intVal(get(idxLastContact))
	rec.Longitude = floatVal(get(idxLongitude))
	rec.Latitude = floatVal(get(idxLatitude))
	rec.BaroAltitude = floatVal(get(idxBaroAltitude))
	rec.OnGround = boolVal(get(idxOnGround))
	rec.Velocity = floatVal(get(idxVelocity))
	rec.TrueTrack = floatVal(get(idxTrueTrack))
	rec.VerticalRate = floatVal(get(idxVerticalRate))
	rec.Sensors = intSliceVal(get(idxSensors))
	rec.GeoAltitude = floatVal(get(idxGeoAltitude))
	rec.Squawk = strings.TrimSpace(stringVal(get(idxSquawk)))
	rec.SPI = boolVal(get(idxSPI))
	if src := intVal(get(idxPositionSource)); src != nil {
		rec.PositionSource = quality.PositionSource(*src)
	}

	ok := len(state) >= stateFieldCount && rec.ICAO24 != ""
	return rec, ok
}

func stringVal(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func boolVal(v interface{}) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return false
}

func floatVal(v interface{}) *float64 {
	if f, ok := v.(float64); ok {
		return &f
	}
	return nil
}

func intVal(v interface{}) *int64 {
	if f, ok := v.(float64); ok {
		n := int64(f)
		return &n
	}
	return nil
}

func intSliceVal(v interface{}) []int {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]int, 0, len(raw))
	for _, e := range raw {
		if f, ok := e.(float64); ok {
			out = append(out, int(f))
		}
	}
	return out
}
