// Package admin applies operator edits to the live configuration. Every
// edit is validated, committed as a new version together with its audit
// rows, and only then published to the scoring engine.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/socassist/risk-engine/internal/audit"
	"github.com/socassist/risk-engine/internal/config"
	"github.com/socassist/risk-engine/internal/eval"
	"github.com/socassist/risk-engine/internal/precision"
	"github.com/socassist/risk-engine/internal/store"
)

// ErrRejected is returned when an edited configuration fails validation.
var ErrRejected = errors.New("configuration rejected")

const (
	minWeight      = 0.1
	maxWeight      = 5.0
	moduleDeadband = 0.001
	manualReason   = "Manual edit via admin API"
)

// #region deps
// Store is the versioned configuration store.
type Store interface {
	Commit(ctx context.Context, c store.Commit) (string, error)
	GetVersion(ctx context.Context, id string) (store.Version, error)
	Rollback(ctx context.Context, parent, targetID string, history ...audit.WeightChange) error
}

// Engine is the live scoring engine.
type Engine interface {
	Snapshot() *config.Snapshot
	Reload(snap *config.Snapshot) error
}
// #endregion deps

// Outcome describes an applied edit. ConfigVersion is empty when the edit
// changed nothing.
type Outcome struct {
	ConfigVersion string               `json:"config_version,omitempty"`
	Changes       []audit.WeightChange `json:"changes"`
	Eval          *eval.EvalResult     `json:"eval,omitempty"`
}

// #region service
// Service serializes operator edits.
type Service struct {
	mu      sync.Mutex
	store   Store
	engine  Engine
	harness *eval.EvalHarness
	logger  *slog.Logger
}

// NewService creates an admin service. logger may be nil.
func NewService(s Store, e Engine, h *eval.EvalHarness, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if h == nil {
		h = eval.NewEvalHarness(eval.DefaultEvalConfig())
	}
	return &Service{store: s, engine: e, harness: h, logger: logger}
}

// SetQuestionWeight sets one question weight, rounded to 3 places and
// clamped to [0.1, 5.0].
func (s *Service) SetQuestionWeight(ctx context.Context, questionID string, weight float64, changedBy string) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.engine.Snapshot()
	q, ok := cur.Question(questionID)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", config.ErrUnknownQuestion, questionID)
	}
	newWeight := normalize(weight)
	if newWeight == q.Weight {
		return Outcome{}, nil
	}

	next, err := cur.WithQuestionWeights(map[string]float64{questionID: newWeight})
	if err != nil {
		return Outcome{}, err
	}
	return s.publish(ctx, cur, next, fmt.Sprintf("question %s weight", questionID), []audit.WeightChange{{
		Kind:      audit.KindQuestionWeight,
		TargetID:  questionID,
		OldValue:  q.Weight,
		NewValue:  newWeight,
		Reason:    manualReason,
		Source:    audit.SourceManual,
		ChangedBy: changedBy,
	}})
}

// SetModuleWeights sets module weights, each rounded to 3 places and
// clamped to [0.1, 5.0]. Changes of 0.001 or less are ignored.
func (s *Service) SetModuleWeights(ctx context.Context, weights map[string]float64, changedBy string) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.engine.Snapshot()
	known := make(map[string]bool)
	for _, m := range cur.Modules() {
		known[m.ID] = true
	}

	ids := make([]string, 0, len(weights))
	for id := range weights {
		if !known[id] {
			return Outcome{}, fmt.Errorf("%w: %s", config.ErrUnknownModule, id)
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	changed := make(map[string]float64)
	var history []audit.WeightChange
	for _, id := range ids {
		old := cur.ModuleWeight(id)
		w := normalize(weights[id])
		if math.Abs(w-old) <= moduleDeadband {
			continue
		}
		changed[id] = w
		history = append(history, audit.WeightChange{
			Kind:      audit.KindModuleWeight,
			TargetID:  id,
			OldValue:  old,
			NewValue:  w,
			Reason:    manualReason,
			Source:    audit.SourceManual,
			ChangedBy: changedBy,
		})
	}
	if len(changed) == 0 {
		return Outcome{}, nil
	}

	next, err := cur.WithModuleWeights(changed)
	if err != nil {
		return Outcome{}, err
	}
	return s.publish(ctx, cur, next, "module weights", history)
}

// SetThresholds replaces tier ranges. The result must keep tiers ordered
// without overlap.
func (s *Service) SetThresholds(ctx context.Context, bounds map[string]config.Bounds, changedBy string) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.engine.Snapshot()
	keys := make([]string, 0, len(bounds))
	for k := range bounds {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var history []audit.WeightChange
	changed := make(map[string]config.Bounds)
	for _, k := range keys {
		t, ok := cur.Tier(k)
		if !ok {
			return Outcome{}, fmt.Errorf("%w: %s", config.ErrUnknownTier, k)
		}
		b := bounds[k]
		if b.Min == t.Min && b.Max == t.Max {
			continue
		}
		changed[k] = b
		history = append(history, audit.WeightChange{
			Kind:      audit.KindThreshold,
			TargetID:  k,
			OldValue:  t.Min,
			NewValue:  b.Min,
			OldMax:    t.Max,
			NewMax:    b.Max,
			Reason:    manualReason,
			Source:    audit.SourceManual,
			ChangedBy: changedBy,
		})
	}
	if len(changed) == 0 {
		return Outcome{}, nil
	}

	next, err := cur.WithThresholds(changed)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", ErrRejected, err)
	}
	return s.publish(ctx, cur, next, "thresholds", history)
}

// Rollback makes a previous version active again. The weight and tier
// differences between the current and the target version are recorded.
func (s *Service) Rollback(ctx context.Context, versionID, changedBy string) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.engine.Snapshot()
	target, err := s.store.GetVersion(ctx, versionID)
	if err != nil {
		return Outcome{}, err
	}
	history := Diff(cur, target.Snapshot)
	for i := range history {
		history[i].Source = audit.SourceRollback
		history[i].ChangedBy = changedBy
		history[i].Reason = fmt.Sprintf("Rollback from %s to %s", cur.Version(), versionID)
		history[i].ConfigVersion = versionID
	}

	if err := s.store.Rollback(ctx, cur.Version(), versionID, history...); err != nil {
		return Outcome{}, fmt.Errorf("rollback: %w", err)
	}
	if err := s.engine.Reload(target.Snapshot); err != nil {
		return Outcome{}, fmt.Errorf("reload engine: %w", err)
	}
	s.logger.Info("configuration rolled back",
		slog.String("from_version", cur.Version()),
		slog.String("to_version", versionID),
		slog.String("changed_by", changedBy))
	return Outcome{ConfigVersion: versionID, Changes: history}, nil
}

func (s *Service) publish(ctx context.Context, cur, next *config.Snapshot, what string, history []audit.WeightChange) (Outcome, error) {
	result := s.harness.Run(next)
	if !result.Passed {
		return Outcome{Eval: &result}, fmt.Errorf("%w: %s", ErrRejected, result.Reason)
	}

	version, err := s.store.Commit(ctx, store.Commit{
		Parent:   cur.Version(),
		Snapshot: next,
		Reason:   "manual edit: " + what,
		Source:   audit.SourceManual,
		History:  history,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("commit edit: %w", err)
	}
	if err := s.engine.Reload(next.WithVersion(version)); err != nil {
		return Outcome{}, fmt.Errorf("reload engine: %w", err)
	}

	for i := range history {
		history[i].ConfigVersion = version
	}
	s.logger.Info("configuration edited",
		slog.String("what", what),
		slog.String("config_version", version),
		slog.Int("changes", len(history)))
	return Outcome{ConfigVersion: version, Changes: history, Eval: &result}, nil
}
// #endregion service

// #region diff
// Diff lists question weight, module weight and tier range differences
// from a to b, sorted by kind then target.
func Diff(a, b *config.Snapshot) []audit.WeightChange {
	var out []audit.WeightChange

	for _, qb := range b.Questions() {
		if qa, ok := a.Question(qb.ID); ok && qa.Weight != qb.Weight {
			out = append(out, audit.WeightChange{
				Kind: audit.KindQuestionWeight, TargetID: qb.ID, OldValue: qa.Weight, NewValue: qb.Weight,
			})
		}
	}
	for _, m := range b.Modules() {
		if wa, wb := a.ModuleWeight(m.ID), b.ModuleWeight(m.ID); wa != wb {
			out = append(out, audit.WeightChange{
				Kind: audit.KindModuleWeight, TargetID: m.ID, OldValue: wa, NewValue: wb,
			})
		}
	}
	for _, tb := range b.Tiers() {
		if ta, ok := a.Tier(tb.Key); ok && (ta.Min != tb.Min || ta.Max != tb.Max) {
			out = append(out, audit.WeightChange{
				Kind: audit.KindThreshold, TargetID: tb.Key,
				OldValue: ta.Min, NewValue: tb.Min, OldMax: ta.Max, NewMax: tb.Max,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].TargetID < out[j].TargetID
	})
	return out
}
// #endregion diff

func normalize(w float64) float64 {
	return precision.Clamp(precision.Round(w, 3), minWeight, maxWeight)
}
