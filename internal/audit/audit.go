// Package audit records configuration changes and calibration runs. Rows are
// append-only; the writers accept a transaction so they commit together with
// the configuration version they describe.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// #region schema
// Schema creates the audit tables. The configuration store applies it as
// part of its own migration.
const Schema = `
CREATE TABLE IF NOT EXISTS weight_history (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	kind           TEXT NOT NULL,
	target_id      TEXT NOT NULL,
	old_value      REAL NOT NULL,
	new_value      REAL NOT NULL,
	old_max        REAL,
	new_max        REAL,
	reason         TEXT,
	source         TEXT NOT NULL,
	changed_by     TEXT,
	config_version TEXT NOT NULL,
	run_id         TEXT,
	created_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_weight_history_target ON weight_history(target_id);

CREATE TABLE IF NOT EXISTS calibration_runs (
	run_id          TEXT PRIMARY KEY,
	config_version  TEXT NOT NULL,
	total_resolved  INTEGER NOT NULL,
	true_positives  INTEGER NOT NULL,
	false_positives INTEGER NOT NULL,
	false_negatives INTEGER NOT NULL,
	fp_rate         REAL NOT NULL,
	adjustments     INTEGER NOT NULL,
	notes           TEXT,
	ledger_fingerprint TEXT,
	created_at      TEXT NOT NULL
);
`
// #endregion schema

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Queryer is satisfied by *sql.DB and *sql.Tx.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// #region append
// AppendWeightChange writes one weight_history row.
func AppendWeightChange(ctx context.Context, db Execer, c WeightChange) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	var oldMax, newMax any
	if c.Kind == KindThreshold {
		oldMax, newMax = c.OldMax, c.NewMax
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO weight_history (kind, target_id, old_value, new_value, old_max, new_max, reason, source, changed_by, config_version, run_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Kind,
		c.TargetID,
		c.OldValue,
		c.NewValue,
		oldMax,
		newMax,
		nullIfEmpty(c.Reason),
		c.Source,
		nullIfEmpty(c.ChangedBy),
		c.ConfigVersion,
		nullIfEmpty(c.RunID),
		c.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append weight change: %w", err)
	}
	return nil
}

// AppendCalibrationRun writes one calibration_runs row.
func AppendCalibrationRun(ctx context.Context, db Execer, r CalibrationRun) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO calibration_runs (run_id, config_version, total_resolved, true_positives, false_positives, false_negatives, fp_rate, adjustments, notes, ledger_fingerprint, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID,
		r.ConfigVersion,
		r.TotalResolved,
		r.TruePositives,
		r.FalsePositives,
		r.FalseNegatives,
		r.FPRate,
		r.Adjustments,
		nullIfEmpty(r.Notes),
		nullIfEmpty(r.Fingerprint),
		r.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append calibration run: %w", err)
	}
	return nil
}
// #endregion append

// #region list
// ListWeightHistory returns the most recent changes, newest first. An empty
// targetID lists every target.
func ListWeightHistory(ctx context.Context, db Queryer, targetID string, limit int) ([]WeightChange, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, kind, target_id, old_value, new_value, old_max, new_max, reason, source, changed_by, config_version, run_id, created_at
		 FROM weight_history
		 WHERE (? = '' OR target_id = ?)
		 ORDER BY id DESC LIMIT ?`, targetID, targetID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list weight history: %w", err)
	}
	defer rows.Close()

	var out []WeightChange
	for rows.Next() {
		var c WeightChange
		var oldMax, newMax sql.NullFloat64
		var reason, changedBy, runID sql.NullString
		var created string
		if err := rows.Scan(&c.ID, &c.Kind, &c.TargetID, &c.OldValue, &c.NewValue, &oldMax, &newMax,
			&reason, &c.Source, &changedBy, &c.ConfigVersion, &runID, &created); err != nil {
			return nil, fmt.Errorf("scan weight change: %w", err)
		}
		c.OldMax = oldMax.Float64
		c.NewMax = newMax.Float64
		c.Reason = reason.String
		c.ChangedBy = changedBy.String
		c.RunID = runID.String
		c.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListCalibrationRuns returns the most recent runs, newest first.
func ListCalibrationRuns(ctx context.Context, db Queryer, limit int) ([]CalibrationRun, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT run_id, config_version, total_resolved, true_positives, false_positives, false_negatives, fp_rate, adjustments, notes, ledger_fingerprint, created_at
		 FROM calibration_runs ORDER BY rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list calibration runs: %w", err)
	}
	defer rows.Close()

	var out []CalibrationRun
	for rows.Next() {
		var r CalibrationRun
		var notes, fingerprint sql.NullString
		var created string
		if err := rows.Scan(&r.RunID, &r.ConfigVersion, &r.TotalResolved, &r.TruePositives, &r.FalsePositives,
			&r.FalseNegatives, &r.FPRate, &r.Adjustments, &notes, &fingerprint, &created); err != nil {
			return nil, fmt.Errorf("scan calibration run: %w", err)
		}
		r.Notes = notes.String
		r.Fingerprint = fingerprint.String
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, r)
	}
	return out, rows.Err()
}
// #endregion list

// #region helpers
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
