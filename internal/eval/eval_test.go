package eval

import (
	"strings"
	"testing"

	"github.com/socassist/risk-engine/internal/config"
	"github.com/socassist/risk-engine/internal/testutil"
)

func mustMetric(t *testing.T, r EvalResult, name string) EvalMetric {
	t.Helper()
	m, ok := r.Metric(name)
	if !ok {
		t.Fatalf("metric %s missing", name)
	}
	return m
}

func TestEvalPassesOnFixture(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())

	result := h.Run(testutil.Snapshot(t))

	if !result.Passed {
		t.Fatalf("expected pass, got fail: %s", result.Reason)
	}
	if len(result.Metrics) != 8 {
		t.Fatalf("expected 8 metrics, got %d", len(result.Metrics))
	}
	if result.Reason != "all checks passed" {
		t.Fatalf("unexpected reason %q", result.Reason)
	}
}

func TestEvalFailsOnQuestionWeightOutOfBounds(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	snap := testutil.Snapshot(t, func(_ *config.EngineDoc, c *config.Catalog) {
		c.Questions[0].Weight = 5.5
		c.Questions[1].Weight = 0.05
	})

	result := h.Run(snap)

	if result.Passed {
		t.Fatal("expected fail on out-of-bounds weights")
	}
	if m := mustMetric(t, result, "question_weight_bounds"); m.Value != 2 || m.Pass {
		t.Fatalf("unexpected metric %+v", m)
	}
	if !strings.Contains(result.Reason, "Q1=5.500") {
		t.Fatalf("reason should name the question: %s", result.Reason)
	}
}

func TestEvalFailsOnModuleWeightOutOfBounds(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	snap := testutil.Snapshot(t, func(e *config.EngineDoc, _ *config.Catalog) {
		e.ModuleWeights["network"] = 0
	})

	result := h.Run(snap)

	if result.Passed {
		t.Fatal("expected fail on zero module weight")
	}
}

func TestEvalFailsOnHugeOptionScore(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	snap := testutil.Snapshot(t, func(_ *config.EngineDoc, c *config.Catalog) {
		c.Questions[0].Options[0].Score = 1e308
	})

	result := h.Run(snap)

	if result.Passed {
		t.Fatal("expected fail for an option score of 1e308")
	}
	if m := mustMetric(t, result, "option_score_bounds"); m.Pass || m.Value != 1 {
		t.Fatalf("option_score_bounds = %+v, want one offending option", m)
	}
}

func TestEvalFailsOnOverlappingTiers(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	snap := testutil.Snapshot(t, func(e *config.EngineDoc, _ *config.Catalog) {
		e.Thresholds[1].Min = 9 // suspicious starts inside informational
	})

	result := h.Run(snap)

	if result.Passed {
		t.Fatal("expected fail on overlap")
	}
	if m := mustMetric(t, result, "threshold_overlap"); m.Value != 1 {
		t.Fatalf("expected 1 overlap, got %+v", m)
	}
}

func TestEvalGapsAreInformational(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	snap := testutil.Snapshot(t, func(e *config.EngineDoc, _ *config.Catalog) {
		e.Thresholds[2].Min = 40
	})

	result := h.Run(snap)

	if !result.Passed {
		t.Fatalf("gaps must not fail validation: %s", result.Reason)
	}
	if m := mustMetric(t, result, "threshold_gaps"); m.Pass || m.Value != 1 {
		t.Fatalf("expected one reported gap, got %+v", m)
	}
}

func TestEvalContiguousTiersHaveNoGap(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())

	result := h.Run(testutil.Snapshot(t))

	if m := mustMetric(t, result, "threshold_gaps"); !m.Pass {
		t.Fatalf("0.01 steps between tiers are contiguous, got %+v", m)
	}
}

func TestEvalFailsOnDanglingRuleReference(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	snap := testutil.Snapshot(t, func(e *config.EngineDoc, _ *config.Catalog) {
		e.HardRules = []config.HardRule{{
			ID: "h", Conditions: []config.Condition{testutil.Cond("Q9", "yes")}, Classification: testutil.TierBreach,
		}}
		e.Multipliers = []config.MultiplierRule{{
			ID: "m", Conditions: []config.Condition{testutil.Cond("Q1", "perhaps")}, Multiplier: 2,
		}}
	})

	result := h.Run(snap)

	if result.Passed {
		t.Fatal("expected fail on unknown references")
	}
	if m := mustMetric(t, result, "rule_references"); m.Value != 2 {
		t.Fatalf("expected 2 bad references, got %+v", m)
	}
}

func TestEvalMissingRecommendationIsInformational(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	snap := testutil.Snapshot(t, func(e *config.EngineDoc, _ *config.Catalog) {
		delete(e.Recommendations, testutil.TierCritical)
	})

	result := h.Run(snap)

	if !result.Passed {
		t.Fatalf("expected pass, got %s", result.Reason)
	}
	if m := mustMetric(t, result, "recommendation_coverage"); m.Pass {
		t.Fatal("expected coverage metric to report the gap")
	}
}

func TestEvalReasonCountsFailures(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	snap := testutil.Snapshot(t, func(e *config.EngineDoc, c *config.Catalog) {
		c.Questions[0].Weight = 9
		e.Thresholds[1].Min = 5
	})

	result := h.Run(snap)

	if !strings.HasPrefix(result.Reason, "eval failed: 2 checks:") {
		t.Fatalf("unexpected reason %q", result.Reason)
	}
}
