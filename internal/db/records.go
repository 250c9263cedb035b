package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/skyward-data/quality.report/internal/quality"
)

const busyRetries = 5

// retryOnBusy retries fn when sqlite reports the database is locked or busy,
// with a short linear backoff. Other errors return immediately.
func retryOnBusy(fn func() error) error {
	var err error
	for attempt := 0; attempt < busyRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		msg := err.Error()
		if !strings.Contains(msg, "database is locked") && !strings.Contains(msg, "SQLITE_BUSY") {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * 50 * time.Millisecond)
	}
	return err
}

func nullStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// RecordStore persists EnrichedRecords into one of the two record tables.
// The accepted stream and the quarantine stream are separate sinks over the
// same database, so quarantine stays a routing decision rather than loss.
type RecordStore struct {
	db    *DB
	table string
}

// NewAcceptedStore returns the curated-store sink.
func NewAcceptedStore(db *DB) *RecordStore {
	return &RecordStore{db: db, table: "records"}
}

// NewQuarantineStore returns the quarantine sink.
func NewQuarantineStore(db *DB) *RecordStore {
	return &RecordStore{db: db, table: "quarantine_records"}
}

// WriteRecords implements pipeline.RecordSink. Records are written in one
// transaction; the full record is kept as JSON beside the queryable columns.
func (s *RecordStore) WriteRecords(ctx context.Context, batchID string, records []*quality.EnrichedRecord) error {
	if len(records) == 0 {
		return nil
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (
			batch_id, icao24, time_position, flight_phase, region_code,
			overall_quality_score, quality_grade, quarantined, quarantine_reason, record_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.table)

	return retryOnBusy(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer tx.Rollback()

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()

		for _, rec := range records {
			payload, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("marshalling record %s: %w", rec.ICAO24, err)
			}
			_, err = stmt.ExecContext(ctx,
				batchID,
				nullStr(rec.ICAO24),
				nullInt64(rec.TimePosition),
				string(rec.FlightPhase),
				rec.RegionCode,
				rec.OverallQualityScore,
				rec.QualityGrade,
				rec.Quarantined,
				nullStr(rec.QuarantineReason),
				string(payload),
			)
			if err != nil {
				return fmt.Errorf("inserting record %s: %w", rec.ICAO24, err)
			}
		}
		return tx.Commit()
	})
}

// Recent returns the most recent records from the store's table, newest
// first.
func (s *RecordStore) Recent(ctx context.Context, limit int) ([]*quality.EnrichedRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`
		SELECT record_json FROM %s ORDER BY id DESC LIMIT ?
	`, s.table)

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", s.table, err)
	}
	defer rows.Close()

	var out []*quality.EnrichedRecord
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var rec quality.EnrichedRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("unmarshalling stored record: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// MetricsStore persists and queries per-batch quality metrics.
type MetricsStore struct {
	db *DB
}

// NewMetricsStore returns the metrics sink.
func NewMetricsStore(db *DB) *MetricsStore {
	return &MetricsStore{db: db}
}

// WriteMetrics implements pipeline.MetricsSink. Replayed batches overwrite
// their previous row so retries stay idempotent.
func (s *MetricsStore) WriteMetrics(ctx context.Context, m quality.BatchQualityMetrics) error {
	anomalies, _ := json.Marshal(m.AnomalyCounts)
	reasons, _ := json.Marshal(m.QuarantineReasons)
	grades, _ := json.Marshal(m.GradeCounts)

	query := `
		INSERT INTO batch_metrics (
			batch_id, processed_at, total_records, accepted_records,
			quarantined_records, duplicate_records,
			avg_completeness, avg_validity, avg_consistency, avg_timeliness, avg_overall,
			anomaly_counts, quarantine_reasons, grade_counts,
			alert_triggered, alert_reason
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(batch_id) DO UPDATE SET
			processed_at = excluded.processed_at,
			total_records = excluded.total_records,
			accepted_records = excluded.accepted_records,
			quarantined_records = excluded.quarantined_records,
			duplicate_records = excluded.duplicate_records,
			avg_completeness = excluded.avg_completeness,
			avg_validity = excluded.avg_validity,
			avg_consistency = excluded.avg_consistency,
			avg_timeliness = excluded.avg_timeliness,
			avg_overall = excluded.avg_overall,
			anomaly_counts = excluded.anomaly_counts,
			quarantine_reasons = excluded.quarantine_reasons,
			grade_counts = excluded.grade_counts,
			alert_triggered = excluded.alert_triggered,
			alert_reason = excluded.alert_reason
	`
	return retryOnBusy(func() error {
		_, err := s.db.ExecContext(ctx, query,
			m.BatchID,
			m.ProcessedAt.UTC().Format(time.RFC3339Nano),
			m.TotalRecords,
			m.AcceptedRecords,
			m.QuarantinedRecords,
			m.DuplicateRecords,
			m.AvgCompleteness,
			m.AvgValidity,
			m.AvgConsistency,
			m.AvgTimeliness,
			m.AvgOverall,
			string(anomalies),
			string(reasons),
			string(grades),
			m.AlertTriggered,
			nullStr(m.AlertReason),
		)
		if err != nil {
			return fmt.Errorf("inserting metrics for batch %s: %w", m.BatchID, err)
		}
		return nil
	})
}

// History returns the most recent batch metrics, newest first.
func (s *MetricsStore) History(ctx context.Context, limit int) ([]quality.BatchQualityMetrics, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT batch_id, processed_at, total_records, accepted_records,
		       quarantined_records, duplicate_records,
		       avg_completeness, avg_validity, avg_consistency, avg_timeliness, avg_overall,
		       anomaly_counts, quarantine_reasons, grade_counts,
		       alert_triggered, alert_reason
		FROM batch_metrics ORDER BY processed_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying batch metrics: %w", err)
	}
	defer rows.Close()

	var out []quality.BatchQualityMetrics
	for rows.Next() {
		var m quality.BatchQualityMetrics
		var processedAt string
		var anomalies, reasons, grades sql.NullString
		var alertReason sql.NullString
		if err := rows.Scan(
			&m.BatchID, &processedAt, &m.TotalRecords, &m.AcceptedRecords,
			&m.QuarantinedRecords, &m.DuplicateRecords,
			&m.AvgCompleteness, &m.AvgValidity, &m.AvgConsistency, &m.AvgTimeliness, &m.AvgOverall,
			&anomalies, &reasons, &grades,
			&m.AlertTriggered, &alertReason,
		); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339Nano, processedAt); err == nil {
			m.ProcessedAt = t
		}
		unmarshalMap(anomalies, &m.AnomalyCounts)
		unmarshalMap(reasons, &m.QuarantineReasons)
		unmarshalMap(grades, &m.GradeCounts)
		m.AlertReason = alertReason.String
		out = append(out, m)
	}
	return out, rows.Err()
}

// Latest returns the most recent batch metrics, or ok=false when no batch
// has been processed yet.
func (s *MetricsStore) Latest(ctx context.Context) (quality.BatchQualityMetrics, bool, error) {
	history, err := s.History(ctx, 1)
	if err != nil || len(history) == 0 {
		return quality.BatchQualityMetrics{}, false, err
	}
	return history[0], true, nil
}

func unmarshalMap(src sql.NullString, dst *map[string]int) {
	if !src.Valid || src.String == "" || src.String == "null" {
		return
	}
	_ = json.Unmarshal([]byte(src.String), dst)
}
