package quality

import (
	"sync"
	"time"
)

// PreviousPosition is the last accepted position for one airframe.
type PreviousPosition struct {
	Latitude     float64
	Longitude    float64
	TimePosition int64     // epoch seconds of the accepted observation
	UpdatedAt    time.Time // wall clock of acceptance, drives idle eviction
}

// PositionLog is the cross-batch previous-position map, keyed by icao24.
// The batch orchestrator owns it: reads happen concurrently during a batch,
// writes happen single-threaded after the batch finalises, so a record under
// evaluation never observes a sibling's not-yet-accepted position.
type PositionLog struct {
	mu      sync.RWMutex
	entries map[string]PreviousPosition
	cfg     PositionLogConfig
}

// NewPositionLog creates an empty position log.
func NewPositionLog(cfg PositionLogConfig) *PositionLog {
	return &PositionLog{
		entries: make(map[string]PreviousPosition),
		cfg:     cfg,
	}
}

// Lookup returns the remembered position for icao24.
func (p *PositionLog) Lookup(icao24 string) (PreviousPosition, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	prev, ok := p.entries[icao24]
	return prev, ok
}

// Update records an accepted position. Called only by the orchestrator's
// finalisation pass, in batch order.
func (p *PositionLog) Update(icao24 string, lat, lon float64, timePosition int64, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[icao24] = PreviousPosition{
		Latitude:     lat,
		Longitude:    lon,
		TimePosition: timePosition,
		UpdatedAt:    now,
	}
}

// Len returns the number of remembered airframes.
func (p *PositionLog) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Evict drops entries idle longer than the configured window and, when the
// map still exceeds MaxEntries, the oldest entries beyond the bound. Returns
// the number of entries removed. Eviction bounds memory; it is not a
// correctness requirement.
func (p *PositionLog) Evict(now time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0
	if p.cfg.IdleEviction > 0 {
		cutoff := now.Add(-p.cfg.IdleEviction)
		for k, v := range p.entries {
			if v.UpdatedAt.Before(cutoff) {
				delete(p.entries, k)
				removed++
			}
		}
	}

	if p.cfg.MaxEntries > 0 {
		for len(p.entries) > p.cfg.MaxEntries {
			oldestKey := ""
			var oldest time.Time
			for k, v := range p.entries {
				if oldestKey == "" || v.UpdatedAt.Before(oldest) {
					oldestKey = k
					oldest = v.UpdatedAt
				}
			}
			delete(p.entries, oldestKey)
			removed++
		}
	}
	return removed
}

// Snapshot returns a copy of the current entries. Used for idempotent batch
// replay: restore the snapshot, re-run the batch, get identical output.
func (p *PositionLog) Snapshot() map[string]PreviousPosition {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]PreviousPosition, len(p.entries))
	for k, v := range p.entries {
		out[k] = v
	}
	return out
}

// Restore replaces the current entries with a snapshot.
func (p *PositionLog) Restore(snapshot map[string]PreviousPosition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = make(map[string]PreviousPosition, len(snapshot))
	for k, v := range snapshot {
		p.entries[k] = v
	}
}
