// Package ledger persists evaluated incidents and analyst resolutions. The
// resolved incidents are the ground truth consumed by calibration.
package ledger

// #region imports
import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/socassist/risk-engine/internal/scoring"
)

// #endregion imports

var (
	ErrNotFound          = errors.New("incident not found")
	ErrInvalidResolution = errors.New("invalid resolution")
)

// #region store

// Store persists incidents in SQLite. It shares the configuration store's
// database and owns its own tables.
type Store struct {
	db *sql.DB
}

// NewStore creates the incident tables if needed and returns a store.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.init(); err != nil {
		return nil, fmt.Errorf("init ledger: %w", err)
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS incidents (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	title           TEXT,
	created_at      TEXT NOT NULL,
	base_score      REAL NOT NULL,
	final_score     REAL NOT NULL,
	multiplier      REAL NOT NULL,
	classification  TEXT NOT NULL,
	hard_rule_id    TEXT,
	config_version  TEXT,
	raw_answers     TEXT NOT NULL,
	resolution      TEXT,
	analyst_name    TEXT,
	analyst_notes   TEXT,
	resolved_at     TEXT
);

CREATE INDEX IF NOT EXISTS idx_incidents_resolution ON incidents(resolution);

CREATE TABLE IF NOT EXISTS incident_answers (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	incident_id   INTEGER NOT NULL,
	question_id   TEXT NOT NULL,
	module        TEXT NOT NULL,
	value         TEXT NOT NULL,
	raw_score     REAL NOT NULL,
	contribution  REAL NOT NULL,
	FOREIGN KEY (incident_id) REFERENCES incidents(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_incident_answers_incident ON incident_answers(incident_id);
`)
	return err
}

// Record stores an evaluation and its scored answers. The incident starts
// unresolved.
func (s *Store) Record(ctx context.Context, title string, answers map[string]string, res scoring.Result) (Incident, error) {
	raw, err := json.Marshal(answers)
	if err != nil {
		return Incident{}, fmt.Errorf("marshal answers: %w", err)
	}
	inc := Incident{
		Title:          title,
		CreatedAt:      time.Now().UTC(),
		BaseScore:      res.BaseScore,
		FinalScore:     res.FinalScore,
		Multiplier:     res.Multiplier,
		Classification: res.Classification,
		ConfigVersion:  res.ConfigVersion,
		RawAnswers:     answers,
	}
	if res.HardRule != nil {
		inc.HardRuleID = res.HardRule.ID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Incident{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	r, err := tx.ExecContext(ctx,
		`INSERT INTO incidents (title, created_at, base_score, final_score, multiplier, classification, hard_rule_id, config_version, raw_answers)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullIfEmpty(inc.Title), inc.CreatedAt.Format(time.RFC3339Nano),
		inc.BaseScore, inc.FinalScore, inc.Multiplier, inc.Classification,
		nullIfEmpty(inc.HardRuleID), nullIfEmpty(inc.ConfigVersion), string(raw),
	)
	if err != nil {
		return Incident{}, fmt.Errorf("insert incident: %w", err)
	}
	if inc.ID, err = r.LastInsertId(); err != nil {
		return Incident{}, fmt.Errorf("incident id: %w", err)
	}

	for _, a := range res.Answers {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO incident_answers (incident_id, question_id, module, value, raw_score, contribution)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			inc.ID, a.QuestionID, a.Module, a.Value, a.RawScore, a.Contribution,
		)
		if err != nil {
			return Incident{}, fmt.Errorf("insert answer %s: %w", a.QuestionID, err)
		}
		inc.Answers = append(inc.Answers, AnswerRecord{
			QuestionID:   a.QuestionID,
			Module:       a.Module,
			Value:        a.Value,
			RawScore:     a.RawScore,
			Contribution: a.Contribution,
		})
	}

	if err := tx.Commit(); err != nil {
		return Incident{}, fmt.Errorf("commit: %w", err)
	}
	return inc, nil
}

// Resolve sets the analyst verdict on an incident. Setting a terminal
// resolution stamps resolved_at; ongoing clears it.
func (s *Store) Resolve(ctx context.Context, id int64, resolution Resolution, analyst, notes string) error {
	if !resolution.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidResolution, resolution)
	}
	var resolvedAt any
	if resolution.IsTerminal() {
		resolvedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}

	r, err := s.db.ExecContext(ctx,
		`UPDATE incidents SET resolution = ?, analyst_name = ?, analyst_notes = ?, resolved_at = ? WHERE id = ?`,
		string(resolution), nullIfEmpty(analyst), nullIfEmpty(notes), resolvedAt, id,
	)
	if err != nil {
		return fmt.Errorf("resolve incident %d: %w", id, err)
	}
	if n, _ := r.RowsAffected(); n == 0 {
		return fmt.Errorf("resolve incident %d: %w", id, ErrNotFound)
	}
	return nil
}

// Get returns one incident with its answers.
func (s *Store) Get(ctx context.Context, id int64) (Incident, error) {
	row := s.db.QueryRowContext(ctx, selectIncident+` WHERE id = ?`, id)
	inc, err := scanIncident(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Incident{}, fmt.Errorf("get incident %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Incident{}, fmt.Errorf("get incident %d: %w", id, err)
	}
	if err := s.attachAnswers(ctx, []*Incident{&inc}, `i.id = ?`, id); err != nil {
		return Incident{}, err
	}
	return inc, nil
}

// Resolved returns every incident with a terminal resolution, oldest
// first, with answers attached.
func (s *Store) Resolved(ctx context.Context) ([]Incident, error) {
	rows, err := s.db.QueryContext(ctx,
		selectIncident+` WHERE resolution IN (?, ?, ?) ORDER BY id`,
		string(FalsePositive), string(TruePositiveResolved), string(TruePositiveEscalated),
	)
	if err != nil {
		return nil, fmt.Errorf("query resolved incidents: %w", err)
	}
	out, err := collect(rows)
	if err != nil {
		return nil, err
	}

	ptrs := make([]*Incident, len(out))
	for i := range out {
		ptrs[i] = &out[i]
	}
	err = s.attachAnswers(ctx, ptrs, `i.resolution IN (?, ?, ?)`,
		string(FalsePositive), string(TruePositiveResolved), string(TruePositiveEscalated))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// List returns the most recent incidents, newest first, without answers.
func (s *Store) List(ctx context.Context, limit int) ([]Incident, error) {
	rows, err := s.db.QueryContext(ctx, selectIncident+` ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	return collect(rows)
}

// #endregion store

// #region scan

const selectIncident = `SELECT id, title, created_at, base_score, final_score, multiplier, classification,
	hard_rule_id, config_version, raw_answers, resolution, analyst_name, analyst_notes, resolved_at
	FROM incidents`

type scanner interface {
	Scan(dest ...any) error
}

func scanIncident(sc scanner) (Incident, error) {
	var inc Incident
	var title, hardRule, version, resolution, analyst, notes, resolvedAt sql.NullString
	var created, raw string

	err := sc.Scan(&inc.ID, &title, &created, &inc.BaseScore, &inc.FinalScore, &inc.Multiplier,
		&inc.Classification, &hardRule, &version, &raw, &resolution, &analyst, &notes, &resolvedAt)
	if err != nil {
		return Incident{}, err
	}
	inc.Title = title.String
	inc.HardRuleID = hardRule.String
	inc.ConfigVersion = version.String
	inc.Resolution = Resolution(resolution.String)
	inc.AnalystName = analyst.String
	inc.AnalystNotes = notes.String
	inc.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	if resolvedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, resolvedAt.String)
		if err == nil {
			inc.ResolvedAt = &t
		}
	}
	if err := json.Unmarshal([]byte(raw), &inc.RawAnswers); err != nil {
		return Incident{}, fmt.Errorf("unmarshal raw answers: %w", err)
	}
	return inc, nil
}

func collect(rows *sql.Rows) ([]Incident, error) {
	defer rows.Close()
	var out []Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

// attachAnswers loads answers for the incidents selected by filter, a
// condition over incidents aliased as i.
func (s *Store) attachAnswers(ctx context.Context, incs []*Incident, filter string, args ...any) error {
	if len(incs) == 0 {
		return nil
	}
	byID := make(map[int64]*Incident, len(incs))
	for _, inc := range incs {
		byID[inc.ID] = inc
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT a.incident_id, a.question_id, a.module, a.value, a.raw_score, a.contribution
		 FROM incident_answers a JOIN incidents i ON i.id = a.incident_id
		 WHERE `+filter+`
		 ORDER BY a.incident_id, a.id`, args...,
	)
	if err != nil {
		return fmt.Errorf("query answers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var incidentID int64
		var a AnswerRecord
		if err := rows.Scan(&incidentID, &a.QuestionID, &a.Module, &a.Value, &a.RawScore, &a.Contribution); err != nil {
			return fmt.Errorf("scan answer: %w", err)
		}
		if inc, ok := byID[incidentID]; ok {
			inc.Answers = append(inc.Answers, a)
		}
	}
	return rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// #endregion scan
