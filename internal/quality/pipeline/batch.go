// Package pipeline sequences the quality engine's stages over one ingested
// batch and owns the cross-batch previous-position state.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skyward-data/quality.report/internal/quality"
)

// BatchStage names the orchestrator's sequential stages. Transitions are
// strictly ordered and non-skippable; a failing record never halts the batch.
type BatchStage string

const (
	StageReceived       BatchStage = "received"
	StageDeduplicated   BatchStage = "deduplicated"
	StageValidated      BatchStage = "validated"
	StageEnriched       BatchStage = "enriched"
	StageAnomalyChecked BatchStage = "anomaly-checked"
	StageScored         BatchStage = "scored"
	StageFinalized      BatchStage = "finalized"
)

// RecordSink receives one side of the accepted/quarantined partition.
type RecordSink interface {
	WriteRecords(ctx context.Context, batchID string, records []*quality.EnrichedRecord) error
}

// MetricsSink receives the per-batch quality summary.
type MetricsSink interface {
	WriteMetrics(ctx context.Context, m quality.BatchQualityMetrics) error
}

// AlertFunc is invoked when a batch breaches the configured quality
// threshold. Delivery beyond this callback is the caller's concern.
type AlertFunc func(reason string, m quality.BatchQualityMetrics)

// BatchResult is the full output of one orchestrated batch.
type BatchResult struct {
	BatchID     string
	Stage       BatchStage
	Accepted    []*quality.EnrichedRecord
	Quarantined []*quality.EnrichedRecord
	Metrics     quality.BatchQualityMetrics
}

// Orchestrator runs batches through dedup, validation, enrichment, anomaly
// detection, scoring, and finalisation. It is safe for sequential reuse
// across batches; it owns the previous-position log and updates it only from
// accepted records after a batch finalises.
type Orchestrator struct {
	cfg quality.EngineConfig

	dedup        *quality.Deduplicator
	completeness *quality.CompletenessValidator
	validity     *quality.ValidityValidator
	consistency  *quality.ConsistencyValidator
	timeliness   *quality.TimelinessValidator
	enricher     *quality.Enricher
	detector     *quality.AnomalyDetector
	aggregator   *quality.Aggregator

	positions *quality.PositionLog
	workers   int

	acceptedSink    RecordSink
	quarantinedSink RecordSink
	metricsSink     MetricsSink
	alertFn         AlertFunc
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSinks routes accepted records, quarantined records, and batch metrics
// to external collaborators. Nil sinks are skipped.
func WithSinks(accepted, quarantined RecordSink, metrics MetricsSink) Option {
	return func(o *Orchestrator) {
		o.acceptedSink = accepted
		o.quarantinedSink = quarantined
		o.metricsSink = metrics
	}
}

// WithAlertFunc installs the batch-level alert callback.
func WithAlertFunc(fn AlertFunc) Option {
	return func(o *Orchestrator) { o.alertFn = fn }
}

// WithWorkers overrides the per-record concurrency (default NumCPU).
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// NewOrchestrator builds the batch pipeline. cfg must already have passed
// Validate; invalid configuration is refused here rather than degrading
// per-record.
func NewOrchestrator(cfg quality.EngineConfig, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}

	completeness := quality.NewCompletenessValidator(cfg.Completeness)
	o := &Orchestrator{
		cfg:          cfg,
		completeness: completeness,
		dedup:        quality.NewDeduplicator(cfg.Enrichment.DedupStrategy, completeness),
		validity:     quality.NewValidityValidator(&cfg.Validity),
		consistency:  quality.NewConsistencyValidator(cfg.Consistency),
		timeliness:   quality.NewTimelinessValidator(cfg.Timeliness),
		enricher:     quality.NewEnricher(cfg.Enrichment, cfg.Phase),
		detector:     quality.NewAnomalyDetector(cfg.Anomaly),
		aggregator:   quality.NewAggregator(cfg.Scoring, &cfg.Validity),
		positions:    quality.NewPositionLog(cfg.Positions),
		workers:      runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Positions exposes the previous-position log for eviction scheduling and
// snapshot/restore around batch replay.
func (o *Orchestrator) Positions() *quality.PositionLog { return o.positions }

// ProcessBatch runs one batch at the current wall clock.
func (o *Orchestrator) ProcessBatch(ctx context.Context, batch []quality.RawStateVector) (BatchResult, error) {
	return o.ProcessBatchAt(ctx, batch, time.Now().UTC())
}

// ProcessBatchAt runs one batch against an explicit processing time.
// Replaying the same batch at the same processing time with the same
// previous-position snapshot yields identical output, which makes retries
// safe.
func (o *Orchestrator) ProcessBatchAt(ctx context.Context, batch []quality.RawStateVector, processedAt time.Time) (BatchResult, error) {
	result := BatchResult{
		BatchID: batchID(batch, processedAt),
		Stage:   StageReceived,
	}
	bctx := &quality.BatchContext{ProcessedAt: processedAt, Positions: o.positions}

	// Deduplicate.
	deduped := o.dedup.Deduplicate(batch)
	result.Stage = StageDeduplicated

	records := make([]*quality.EnrichedRecord, len(deduped.Kept))
	for i, raw := range deduped.Kept {
		records[i] = &quality.EnrichedRecord{RawStateVector: raw}
		if deduped.DuplicateIdx[i] {
			records[i].Duplicate = true
			records[i].AddFlag(quality.FlagDuplicate)
		}
	}

	// Validate and enrich each record; no cross-record dependency at this
	// stage beyond the read-only position log, so runs concurrently.
	o.forEach(records, func(rec *quality.EnrichedRecord) {
		o.validateRecord(rec, bctx)
	})
	result.Stage = StageValidated

	o.enricher.ApplyMissingValues(records, bctx)
	o.forEach(records, func(rec *quality.EnrichedRecord) {
		o.enricher.Enrich(rec)
	})
	result.Stage = StageEnriched

	// Batch barrier: statistics need every record visible.
	anomalyCounts := o.detector.DetectBatch(records)
	result.Stage = StageAnomalyChecked

	o.forEach(records, func(rec *quality.EnrichedRecord) {
		o.aggregator.Finalize(rec)
	})
	result.Stage = StageScored

	// Partition and update the position log from accepted records only, in
	// batch order, single-threaded.
	for _, rec := range records {
		if rec.Quarantined {
			result.Quarantined = append(result.Quarantined, rec)
			continue
		}
		result.Accepted = append(result.Accepted, rec)
		if rec.HasPosition() {
			if epoch, ok := rec.Timestamp(); ok {
				o.positions.Update(rec.ICAO24, *rec.Latitude, *rec.Longitude, epoch, processedAt)
			}
		}
	}

	result.Metrics = o.buildMetrics(result, records, deduped, anomalyCounts, processedAt)
	result.Stage = StageFinalized

	if err := o.emit(ctx, result); err != nil {
		return result, err
	}
	return result, nil
}

// validateRecord runs the four dimensional validators on one record.
func (o *Orchestrator) validateRecord(rec *quality.EnrichedRecord, bctx *quality.BatchContext) {
	apply := func(v quality.Validator, dst *float64) {
		res := v.Evaluate(&rec.RawStateVector, bctx)
		*dst = res.Score
		for _, f := range res.Flags {
			rec.AddFlag(f)
		}
	}
	apply(o.completeness, &rec.CompletenessScore)
	apply(o.validity, &rec.ValidityScore)
	apply(o.consistency, &rec.ConsistencyScore)
	apply(o.timeliness, &rec.TimelinessScore)
}

// forEach fans records out over the worker pool and waits for completion.
func (o *Orchestrator) forEach(records []*quality.EnrichedRecord, fn func(*quality.EnrichedRecord)) {
	if len(records) == 0 {
		return
	}
	workers := min(max(1, o.workers), len(records))

	idx := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				fn(records[i])
			}
		}()
	}
	for i := range records {
		idx <- i
	}
	close(idx)
	wg.Wait()
}

func (o *Orchestrator) buildMetrics(result BatchResult, records []*quality.EnrichedRecord, deduped quality.DedupResult, anomalyCounts map[string]int, processedAt time.Time) quality.BatchQualityMetrics {
	m := quality.BatchQualityMetrics{
		BatchID:            result.BatchID,
		ProcessedAt:        processedAt,
		TotalRecords:       len(records) + deduped.Removed,
		AcceptedRecords:    len(result.Accepted),
		QuarantinedRecords: len(result.Quarantined),
		DuplicateRecords:   deduped.Removed + len(deduped.DuplicateIdx),
		AnomalyCounts:      anomalyCounts,
		QuarantineReasons:  make(map[string]int),
		GradeCounts:        make(map[string]int),
	}

	for _, rec := range records {
		m.AvgCompleteness += rec.CompletenessScore
		m.AvgValidity += rec.ValidityScore
		m.AvgConsistency += rec.ConsistencyScore
		m.AvgTimeliness += rec.TimelinessScore
		m.AvgOverall += rec.OverallQualityScore
		m.GradeCounts[rec.QualityGrade]++
		if rec.Quarantined {
			for _, reason := range splitReasons(rec.QuarantineReason) {
				m.QuarantineReasons[reason]++
			}
		}
	}
	if n := float64(len(records)); n > 0 {
		m.AvgCompleteness /= n
		m.AvgValidity /= n
		m.AvgConsistency /= n
		m.AvgTimeliness /= n
		m.AvgOverall /= n
	}

	if total := len(records); total > 0 && o.cfg.Alert.QuarantineRateThreshold > 0 {
		rate := float64(m.QuarantinedRecords) / float64(total)
		if rate > o.cfg.Alert.QuarantineRateThreshold {
			m.AlertTriggered = true
			m.AlertReason = fmt.Sprintf("quarantine rate %.1f%% exceeds %.1f%%",
				rate*100, o.cfg.Alert.QuarantineRateThreshold*100)
		}
	}
	return m
}

// emit routes the partitioned records and metrics to the configured sinks
// and fires the alert callback.
func (o *Orchestrator) emit(ctx context.Context, result BatchResult) error {
	if o.acceptedSink != nil && len(result.Accepted) > 0 {
		if err := o.acceptedSink.WriteRecords(ctx, result.BatchID, result.Accepted); err != nil {
			return fmt.Errorf("writing accepted records: %w", err)
		}
	}
	if o.quarantinedSink != nil && len(result.Quarantined) > 0 {
		if err := o.quarantinedSink.WriteRecords(ctx, result.BatchID, result.Quarantined); err != nil {
			return fmt.Errorf("writing quarantined records: %w", err)
		}
	}
	if o.metricsSink != nil {
		if err := o.metricsSink.WriteMetrics(ctx, result.Metrics); err != nil {
			return fmt.Errorf("writing batch metrics: %w", err)
		}
	}
	if result.Metrics.AlertTriggered && o.alertFn != nil {
		o.alertFn(result.Metrics.AlertReason, result.Metrics)
	}
	if result.Metrics.AlertTriggered {
		log.Printf("batch %s quality alert: %s", result.BatchID, result.Metrics.AlertReason)
	}
	return nil
}

// batchID derives a deterministic identifier from the batch content and
// processing time, so replaying a batch reproduces the same id.
func batchID(batch []quality.RawStateVector, processedAt time.Time) string {
	payload, err := json.Marshal(batch)
	if err != nil {
		payload = nil
	}
	payload = append(payload, []byte(processedAt.UTC().Format(time.RFC3339Nano))...)
	return uuid.NewSHA1(uuid.NameSpaceOID, payload).String()
}

func splitReasons(joined string) []string {
	if joined == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(joined); i++ {
		if i == len(joined) || joined[i] == ',' {
			if i > start {
				out = append(out, joined[start:i])
			}
			start = i + 1
		}
	}
	return out
}
