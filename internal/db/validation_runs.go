package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/aeb/internal/aeb/simulation"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ValidationRunSummary is one row of the validation run index.
type ValidationRunSummary struct {
	ID          string    `json:"id"`
	Seed        uint64    `json:"seed"`
	Trials      int       `json:"trials"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Passed      bool      `json:"passed"`
	FailedCount int       `json:"failed_count"`
}

// InsertValidationRun stores a report and one row per requirement.
func (db *DB) InsertValidationRun(r *simulation.ValidationReport) (err error) {
	blob, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode report %s: %w", r.ID, err)
	}
	failed := 0
	for _, req := range r.Requirements {
		if !req.Passed {
			failed++
		}
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				opsf("rollback of validation run %s failed: %v", r.ID, rbErr)
			}
		}
	}()

	if _, err = tx.Exec(`INSERT INTO validation_runs (
			run_id, seed, trials, started_at, finished_at, passed, failed_count, report_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, int64(r.Seed), r.Trials, r.StartedAt.UnixNano(), r.FinishedAt.UnixNano(),
		r.Passed(), failed, string(blob)); err != nil {
		return fmt.Errorf("failed to insert validation run %s: %w", r.ID, err)
	}
	for _, req := range r.Ordered() {
		if _, err = tx.Exec(`INSERT INTO validation_requirements (
				run_id, name, target, observed, comparator, passed, samples
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.ID, req.Name, req.Target, req.Observed, string(req.Comparator), req.Passed, req.Samples); err != nil {
			return fmt.Errorf("failed to insert requirement %s: %w", req.Name, err)
		}
	}
	return tx.Commit()
}

// ListValidationRuns returns run summaries, newest first.
func (db *DB) ListValidationRuns(limit int) ([]ValidationRunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`SELECT run_id, seed, trials, started_at, finished_at, passed, failed_count
		FROM validation_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []ValidationRunSummary
	for rows.Next() {
		var (
			s                   ValidationRunSummary
			seed, start, finish int64
		)
		if err := rows.Scan(&s.ID, &seed, &s.Trials, &start, &finish, &s.Passed, &s.FailedCount); err != nil {
			return nil, err
		}
		s.Seed = uint64(seed)
		s.StartedAt = time.Unix(0, start).UTC()
		s.FinishedAt = time.Unix(0, finish).UTC()
		runs = append(runs, s)
	}
	return runs, rows.Err()
}

// ValidationRun loads a full stored report.
func (db *DB) ValidationRun(id string) (*simulation.ValidationReport, error) {
	var blob string
	err := db.QueryRow(`SELECT report_json FROM validation_runs WHERE run_id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("validation run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var r simulation.ValidationReport
	if err := json.Unmarshal([]byte(blob), &r); err != nil {
		return nil, fmt.Errorf("failed to decode validation run %s: %w", id, err)
	}
	return &r, nil
}
