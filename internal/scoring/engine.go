package scoring

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/socassist/risk-engine/internal/config"
)

// Recorder receives per-evaluation telemetry.
type Recorder interface {
	ObserveEvaluation(classification string, fallback bool, elapsed time.Duration)
}

// #region engine
// Engine serves evaluations from the active configuration snapshot. The
// snapshot is swapped as a whole by Reload; an evaluation loads the pointer
// once and sees either the old or the new configuration, never a mix.
type Engine struct {
	active   atomic.Pointer[config.Snapshot]
	logger   *slog.Logger
	recorder Recorder
}

// NewEngine creates an engine serving snap. logger and rec may be nil.
func NewEngine(snap *config.Snapshot, logger *slog.Logger, rec Recorder) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{logger: logger, recorder: rec}
	e.active.Store(snap)
	return e
}

// Snapshot returns the configuration currently being served.
func (e *Engine) Snapshot() *config.Snapshot {
	return e.active.Load()
}

// Reload publishes a fully built snapshot in one step.
func (e *Engine) Reload(snap *config.Snapshot) error {
	if snap == nil {
		return errors.New("reload: nil snapshot")
	}
	prev := e.active.Swap(snap)
	e.logger.Info("configuration reloaded",
		slog.String("from_version", prev.Version()),
		slog.String("to_version", snap.Version()))
	return nil
}

// Evaluate scores answers against the active snapshot.
func (e *Engine) Evaluate(answers map[string]string) Result {
	start := time.Now()
	snap := e.active.Load()
	res := Evaluate(snap, answers)

	if res.ClassificationFallback {
		e.logger.Warn("score outside every configured threshold, using most severe tier",
			slog.Float64("final_score", res.FinalScore),
			slog.String("classification", res.ScoreClassification),
			slog.String("config_version", snap.Version()))
	}
	if e.recorder != nil {
		e.recorder.ObserveEvaluation(res.Classification, res.ClassificationFallback, time.Since(start))
	}
	return res
}
// #endregion engine
