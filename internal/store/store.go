// Package store keeps versioned engine configurations in SQLite. Every
// change inserts a new immutable version; a single-row pointer marks the
// one being served, so rollback is a pointer move.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/socassist/risk-engine/internal/audit"
	"github.com/socassist/risk-engine/internal/config"
)

var (
	ErrNoActiveVersion = errors.New("no active configuration version")
	ErrStaleVersion    = errors.New("active configuration version changed")
	ErrVersionNotFound = errors.New("configuration version not found")
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS config_versions (
	version_id    TEXT PRIMARY KEY,
	parent_id     TEXT,
	engine_json   TEXT NOT NULL,
	catalog_json  TEXT NOT NULL,
	reason        TEXT,
	source        TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (parent_id) REFERENCES config_versions(version_id)
);

CREATE TABLE IF NOT EXISTS active_config (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	version_id    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES config_versions(version_id)
);
`
// #endregion schema

// #region store-struct
// Store manages versioned configuration in SQLite.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	s, err := NewStoreWithDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStoreWithDB runs migrations on an already opened database.
func NewStoreWithDB(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema + audit.Schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Pragmas go in the DSN so every pooled connection gets them.
func dsn(path string) string {
	return "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}
// #endregion constructor

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for table-owning stores (ledger) and
// audit queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #region create-initial
// CreateInitial stores snap as a root version and makes it active.
func (s *Store) CreateInitial(ctx context.Context, snap *config.Snapshot, reason string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	id, err := insertVersion(ctx, tx, "", snap, reason, "bootstrap")
	if err != nil {
		return "", err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO active_config (id, version_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET version_id = excluded.version_id`,
		id,
	)
	if err != nil {
		return "", fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}
// #endregion create-initial

// #region get-current
// ActiveVersion returns the id of the version being served.
func (s *Store) ActiveVersion(ctx context.Context) (string, error) {
	return activeVersion(ctx, s.db)
}

// Current reads the active version.
func (s *Store) Current(ctx context.Context) (Version, error) {
	id, err := s.ActiveVersion(ctx)
	if err != nil {
		return Version{}, err
	}
	return s.GetVersion(ctx, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func activeVersion(ctx context.Context, q queryRower) (string, error) {
	var id string
	err := q.QueryRowContext(ctx, `SELECT version_id FROM active_config WHERE id = 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoActiveVersion
	}
	if err != nil {
		return "", fmt.Errorf("get active: %w", err)
	}
	return id, nil
}
// #endregion get-current

// #region get-version
// GetVersion retrieves a specific version by id.
func (s *Store) GetVersion(ctx context.Context, id string) (Version, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT version_id, parent_id, engine_json, catalog_json, reason, source, created_at
		 FROM config_versions WHERE version_id = ?`, id,
	)
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Version{}, fmt.Errorf("get version %s: %w", id, ErrVersionNotFound)
	}
	if err != nil {
		return Version{}, fmt.Errorf("get version %s: %w", id, err)
	}
	return v, nil
}
// #endregion get-version

// #region commit
// Commit applies c in one transaction: the new version (if any), the
// active pointer move, the weight history rows and the calibration run row.
// It fails with ErrStaleVersion when c.Parent is no longer active, and
// returns the version the audit rows were recorded against.
func (s *Store) Commit(ctx context.Context, c Commit) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	active, err := activeVersion(ctx, tx)
	if err != nil {
		return "", err
	}
	if active != c.Parent {
		return "", fmt.Errorf("%w: expected %s, found %s", ErrStaleVersion, c.Parent, active)
	}

	versionID := c.Parent
	if c.Snapshot != nil {
		versionID, err = insertVersion(ctx, tx, c.Parent, c.Snapshot, c.Reason, c.Source)
		if err != nil {
			return "", err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE active_config SET version_id = ? WHERE id = 1`, versionID); err != nil {
			return "", fmt.Errorf("update active: %w", err)
		}
	}

	for _, h := range c.History {
		h.ConfigVersion = versionID
		if err := audit.AppendWeightChange(ctx, tx, h); err != nil {
			return "", err
		}
	}
	if c.Run != nil {
		run := *c.Run
		run.ConfigVersion = versionID
		if err := audit.AppendCalibrationRun(ctx, tx, run); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return versionID, nil
}
// #endregion commit

// #region rollback
// Rollback points the active pointer at an existing version and records
// history in the same transaction. Like Commit, it fails with
// ErrStaleVersion when parent is no longer the active version.
func (s *Store) Rollback(ctx context.Context, parent, targetID string, history ...audit.WeightChange) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	active, err := activeVersion(ctx, tx)
	if err != nil {
		return err
	}
	if active != parent {
		return fmt.Errorf("%w: expected %s, found %s", ErrStaleVersion, parent, active)
	}

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM config_versions WHERE version_id = ?`, targetID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("rollback to %s: %w", targetID, ErrVersionNotFound)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE active_config SET version_id = ? WHERE id = 1`, targetID); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	for _, h := range history {
		h.ConfigVersion = targetID
		if err := audit.AppendWeightChange(ctx, tx, h); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
// #endregion rollback

// #region last-run
// LastCalibrationRun returns the most recent completed calibration run, or
// nil when none has been recorded.
func (s *Store) LastCalibrationRun(ctx context.Context) (*audit.CalibrationRun, error) {
	runs, err := audit.ListCalibrationRuns(ctx, s.db, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}
// #endregion last-run

// #region list-versions
// ListVersions returns the most recent versions, newest first.
func (s *Store) ListVersions(ctx context.Context, limit int) ([]Version, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version_id, parent_id, engine_json, catalog_json, reason, source, created_at
		 FROM config_versions ORDER BY rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var out []Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
// #endregion list-versions

// #region helpers
type scanner interface {
	Scan(dest ...any) error
}

func scanVersion(sc scanner) (Version, error) {
	var v Version
	var parentID, reason sql.NullString
	var engineJSON, catalogJSON, created string

	if err := sc.Scan(&v.ID, &parentID, &engineJSON, &catalogJSON, &reason, &v.Source, &created); err != nil {
		return Version{}, err
	}
	v.ParentID = parentID.String
	v.Reason = reason.String
	v.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)

	snap, err := decodeSnapshot(engineJSON, catalogJSON)
	if err != nil {
		return Version{}, fmt.Errorf("decode version %s: %w", v.ID, err)
	}
	v.Snapshot = snap.WithVersion(v.ID)
	return v, nil
}

func insertVersion(ctx context.Context, tx *sql.Tx, parent string, snap *config.Snapshot, reason, source string) (string, error) {
	engineJSON, err := json.Marshal(snap.Engine())
	if err != nil {
		return "", fmt.Errorf("marshal engine config: %w", err)
	}
	catalogJSON, err := json.Marshal(snap.Catalog())
	if err != nil {
		return "", fmt.Errorf("marshal question catalog: %w", err)
	}

	id := uuid.New().String()
	var parentPtr any
	if parent != "" {
		parentPtr = parent
	}
	var reasonPtr any
	if reason != "" {
		reasonPtr = reason
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO config_versions (version_id, parent_id, engine_json, catalog_json, reason, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, parentPtr, string(engineJSON), string(catalogJSON), reasonPtr, source,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("insert version: %w", err)
	}
	return id, nil
}

func decodeSnapshot(engineJSON, catalogJSON string) (*config.Snapshot, error) {
	var eng config.EngineDoc
	if err := json.Unmarshal([]byte(engineJSON), &eng); err != nil {
		return nil, fmt.Errorf("unmarshal engine config: %w", err)
	}
	var cat config.Catalog
	if err := json.Unmarshal([]byte(catalogJSON), &cat); err != nil {
		return nil, fmt.Errorf("unmarshal question catalog: %w", err)
	}
	return config.NewSnapshot(eng, cat)
}
// #endregion helpers
