package calibration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/socassist/risk-engine/internal/audit"
	"github.com/socassist/risk-engine/internal/config"
	"github.com/socassist/risk-engine/internal/ledger"
	"github.com/socassist/risk-engine/internal/precision"
	"github.com/socassist/risk-engine/internal/store"
)

// ErrRunInProgress is returned when a run is requested while another one
// holds the runner.
var ErrRunInProgress = errors.New("calibration run already in progress")

// #region deps
// Ledger supplies resolved incidents.
type Ledger interface {
	Resolved(ctx context.Context) ([]ledger.Incident, error)
}

// Store persists the outcome of a run atomically.
type Store interface {
	Commit(ctx context.Context, c store.Commit) (string, error)
	LastCalibrationRun(ctx context.Context) (*audit.CalibrationRun, error)
}

// Engine is the live scoring engine whose snapshot is recalibrated.
type Engine interface {
	Snapshot() *config.Snapshot
	Reload(snap *config.Snapshot) error
}

// Publisher announces completed runs to downstream consumers.
type Publisher interface {
	PublishCalibration(ctx context.Context, s Summary) error
}

// Recorder receives per-run telemetry.
type Recorder interface {
	ObserveCalibration(status string, adjustments int)
}
// #endregion deps

// #region runner
// Runner executes calibration runs one at a time. It never holds a lock
// shared with evaluation; the engine sees the new snapshot only after the
// store transaction has committed.
type Runner struct {
	mu        sync.Mutex
	ledger    Ledger
	store     Store
	engine    Engine
	cfg       Config
	logger    *slog.Logger
	publisher Publisher
	recorder  Recorder
	now       func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithConfig overrides DefaultConfig.
func WithConfig(cfg Config) Option { return func(r *Runner) { r.cfg = cfg } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(r *Runner) { r.logger = l } }

// WithPublisher sets where completed runs are announced.
func WithPublisher(p Publisher) Option { return func(r *Runner) { r.publisher = p } }

// WithRecorder sets the metrics sink.
func WithRecorder(rec Recorder) Option { return func(r *Runner) { r.recorder = rec } }

// NewRunner creates a runner.
func NewRunner(l Ledger, s Store, e Engine, opts ...Option) *Runner {
	r := &Runner{
		ledger: l,
		store:  s,
		engine: e,
		cfg:    DefaultConfig(),
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run performs one calibration run. A run over a ledger identical to the
// one the last completed run saw is skipped.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	return r.run(ctx, false)
}

// Rerun performs a calibration run even if the ledger has not changed
// since the last one.
func (r *Runner) Rerun(ctx context.Context) (Summary, error) {
	return r.run(ctx, true)
}

func (r *Runner) run(ctx context.Context, force bool) (Summary, error) {
	if !r.mu.TryLock() {
		return Summary{}, ErrRunInProgress
	}
	defer r.mu.Unlock()

	summary, err := r.execute(ctx, force)
	if err != nil {
		r.logger.Error("calibration run failed", slog.Any("error", err))
		r.observe("failed", 0)
		return Summary{}, err
	}
	r.observe(string(summary.Status), summary.Adjustments)
	return summary, nil
}

func (r *Runner) execute(ctx context.Context, force bool) (Summary, error) {
	snap := r.engine.Snapshot()

	incidents, err := r.ledger.Resolved(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("load resolved incidents: %w", err)
	}
	plan, err := Compute(ctx, snap, incidents, r.cfg)
	if err != nil {
		return Summary{}, fmt.Errorf("compute calibration: %w", err)
	}

	summary := Summary{
		TotalResolved:  plan.TotalResolved,
		TruePositives:  plan.TruePositives,
		FalsePositives: plan.FalsePositives,
		FPRate:         precision.Round(plan.FPRate*100, 1),
		ConfigVersion:  snap.Version(),
		Timestamp:      r.now(),
	}

	if plan.Decision.Action == ActionSkip {
		summary.Status = StatusSkipped
		summary.Reason = plan.Decision.Reason
		r.logger.Info("calibration skipped", slog.String("reason", summary.Reason))
		return summary, nil
	}

	if !force {
		last, err := r.store.LastCalibrationRun(ctx)
		if err != nil {
			return Summary{}, fmt.Errorf("load last run: %w", err)
		}
		// An unchanged ledger still gets a run row, but no weight moves.
		if last != nil && last.Fingerprint == plan.Fingerprint {
			plan.Adjustments = nil
			plan.Snapshot = nil
			plan.Decision = Decision{
				Action: ActionNoOp,
				Reason: fmt.Sprintf("no new resolutions since run %s", last.RunID),
			}
		}
	}

	runID := uuid.New().String()
	history := make([]audit.WeightChange, 0, len(plan.Adjustments))
	for _, a := range plan.Adjustments {
		history = append(history, audit.WeightChange{
			Kind:      audit.KindQuestionWeight,
			TargetID:  a.QuestionID,
			OldValue:  a.OldWeight,
			NewValue:  a.NewWeight,
			Reason:    fmt.Sprintf("Auto-calibration: tp_rate=%.2f, fp_rate=%.2f", a.TPRate, a.FPRate),
			Source:    audit.SourceCalibration,
			RunID:     runID,
			CreatedAt: summary.Timestamp,
		})
	}

	version, err := r.store.Commit(ctx, store.Commit{
		Parent:   snap.Version(),
		Snapshot: plan.Snapshot,
		Reason:   fmt.Sprintf("calibration run %s", runID),
		Source:   audit.SourceCalibration,
		History:  history,
		Run: &audit.CalibrationRun{
			RunID:          runID,
			TotalResolved:  plan.TotalResolved,
			TruePositives:  plan.TruePositives,
			FalsePositives: plan.FalsePositives,
			FalseNegatives: 0,
			FPRate:         summary.FPRate,
			Adjustments:    len(plan.Adjustments),
			Notes:          notes(summary.FPRate, len(plan.Adjustments)),
			Fingerprint:    plan.Fingerprint,
			CreatedAt:      summary.Timestamp,
		},
	})
	if err != nil {
		return Summary{}, fmt.Errorf("commit calibration: %w", err)
	}

	if plan.Snapshot != nil {
		if err := r.engine.Reload(plan.Snapshot.WithVersion(version)); err != nil {
			return Summary{}, fmt.Errorf("reload engine: %w", err)
		}
	}

	summary.Status = StatusCompleted
	summary.Reason = plan.Decision.Reason
	summary.Adjustments = len(plan.Adjustments)
	summary.Changes = plan.Adjustments
	summary.RunID = runID
	summary.ConfigVersion = version

	r.logger.Info("calibration completed",
		slog.String("run_id", runID),
		slog.String("config_version", version),
		slog.Int("total_resolved", summary.TotalResolved),
		slog.Float64("fp_rate", summary.FPRate),
		slog.Int("adjustments", summary.Adjustments))

	if r.publisher != nil {
		if err := r.publisher.PublishCalibration(ctx, summary); err != nil {
			r.logger.Warn("publish calibration result", slog.String("run_id", runID), slog.Any("error", err))
		}
	}
	return summary, nil
}

func (r *Runner) observe(status string, adjustments int) {
	if r.recorder != nil {
		r.recorder.ObserveCalibration(status, adjustments)
	}
}

func notes(fpRate float64, adjustments int) string {
	return fmt.Sprintf("FP rate: %.1f%%. Adjustments: %d. False negatives are not measured and reported as 0.", fpRate, adjustments)
}
// #endregion runner
