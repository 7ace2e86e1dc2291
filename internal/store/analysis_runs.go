package store

import (
	"database/sql"
	"time"
)

// AnalysisRun records a single AI analysis attempt for auditing.
type AnalysisRun struct {
	ID                int64
	StartedAt         time.Time
	FinishedAt        sql.NullTime
	Reason            string // "trigger", "manual", "cli"
	ObservationCount  int
	ResponseSizeBytes sql.NullInt64
	PayloadParsed     sql.NullBool
	Success           bool
	ErrorMessage      sql.NullString
}

// StartAnalysisRun creates a new run record and returns it.
func (s *Store) StartAnalysisRun(reason string, observationCount int) (*AnalysisRun, error) {
	run := &AnalysisRun{
		StartedAt:        time.Now().UTC(),
		Reason:           reason,
		ObservationCount: observationCount,
	}

	result, err := s.db.Exec(`
		INSERT INTO analysis_runs (started_at, reason, observation_count, success)
		VALUES (?, ?, ?, FALSE)
	`, run.StartedAt, run.Reason, run.ObservationCount)
	if err != nil {
		return nil, err
	}

	run.ID, err = result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return run, nil
}

// CompleteAnalysisRun updates the run with its outcome.
func (s *Store) CompleteAnalysisRun(run *AnalysisRun) error {
	if run == nil {
		return nil
	}

	run.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}

	_, err := s.db.Exec(`
		UPDATE analysis_runs SET
			finished_at = ?,
			response_size_bytes = ?,
			payload_parsed = ?,
			success = ?,
			error_message = ?
		WHERE id = ?
	`, run.FinishedAt, run.ResponseSizeBytes, run.PayloadParsed,
		run.Success, run.ErrorMessage, run.ID)
	return err
}

// RecentAnalysisRuns returns the latest runs, newest first.
func (s *Store) RecentAnalysisRuns(limit int) ([]AnalysisRun, error) {
	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, reason, observation_count,
		       response_size_bytes, payload_parsed, success, error_message
		FROM analysis_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []AnalysisRun
	for rows.Next() {
		var r AnalysisRun
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Reason,
			&r.ObservationCount, &r.ResponseSizeBytes, &r.PayloadParsed,
			&r.Success, &r.ErrorMessage); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
