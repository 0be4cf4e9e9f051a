package eval

import (
	"fmt"
	"math"

	"github.com/socassist/risk-engine/internal/config"
)

// #region eval-harness
// EvalHarness validates a configuration snapshot before it is published.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run checks snap and returns pass/fail with one metric per check.
// Threshold gaps and missing recommendations are reported but do not fail:
// the classifier already falls back to the most severe tier.
func (h *EvalHarness) Run(snap *config.Snapshot) EvalResult {
	var metrics []EvalMetric
	var failReasons []string

	check := func(name string, offending []string, blocking bool) {
		pass := len(offending) == 0
		metrics = append(metrics, EvalMetric{Name: name, Value: float64(len(offending)), Pass: pass})
		if !pass && blocking {
			failReasons = append(failReasons, fmt.Sprintf("%s: %v", name, offending))
		}
	}

	// 1. Weight bounds
	var badQuestions []string
	for _, q := range snap.Questions() {
		if q.Weight < h.config.MinWeight || q.Weight > h.config.MaxWeight {
			badQuestions = append(badQuestions, fmt.Sprintf("%s=%.3f", q.ID, q.Weight))
		}
	}
	check("question_weight_bounds", badQuestions, true)

	var badModules []string
	for _, m := range snap.Modules() {
		if w := snap.ModuleWeight(m.ID); w < h.config.MinWeight || w > h.config.MaxWeight {
			badModules = append(badModules, fmt.Sprintf("%s=%.3f", m.ID, w))
		}
	}
	check("module_weight_bounds", badModules, true)

	var badScores []string
	for _, q := range snap.Questions() {
		for _, o := range q.Options {
			if math.IsNaN(o.Score) || math.Abs(o.Score) > h.config.MaxOptionScore {
				badScores = append(badScores, fmt.Sprintf("%s=%s:%g", q.ID, o.Value, o.Score))
			}
		}
	}
	check("option_score_bounds", badScores, true)

	// 2. Tier ordering: each tier starts above the previous one's max
	tiers := snap.Tiers()
	var overlaps, gaps []string
	for i := 1; i < len(tiers); i++ {
		prev, cur := tiers[i-1], tiers[i]
		switch {
		case cur.Min <= prev.Max:
			overlaps = append(overlaps, fmt.Sprintf("%s/%s", prev.Key, cur.Key))
		case cur.Min-prev.Max > h.config.GapEpsilon+1e-9:
			gaps = append(gaps, fmt.Sprintf("%s/%s", prev.Key, cur.Key))
		}
	}
	check("threshold_overlap", overlaps, true)
	check("threshold_gaps", gaps, false)

	// 3. Rule conditions must name real questions and options
	var badRefs []string
	refCheck := func(ruleID string, conds []config.Condition) {
		for _, c := range conds {
			q, ok := snap.Question(c.QuestionID)
			if !ok {
				badRefs = append(badRefs, fmt.Sprintf("%s:%s", ruleID, c.QuestionID))
				continue
			}
			if _, ok := q.Option(c.Value); !ok {
				badRefs = append(badRefs, fmt.Sprintf("%s:%s=%s", ruleID, c.QuestionID, c.Value))
			}
		}
	}
	var badFactors []string
	for _, r := range snap.HardRules() {
		refCheck(r.ID, r.Conditions)
	}
	for _, m := range snap.Multipliers() {
		refCheck(m.ID, m.Conditions)
		if m.Multiplier <= 0 {
			badFactors = append(badFactors, m.ID)
		}
	}
	check("rule_references", badRefs, true)
	check("multiplier_factor", badFactors, true)

	// 4. Recommendation coverage: informational
	var uncovered []string
	for _, t := range tiers {
		if snap.Recommendation(t.Key) == "" {
			uncovered = append(uncovered, t.Key)
		}
	}
	check("recommendation_coverage", uncovered, false)

	reason := "all checks passed"
	if len(failReasons) > 0 {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}

	return EvalResult{
		Passed:  len(failReasons) == 0,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness

// Metric returns the named metric from r.
func (r EvalResult) Metric(name string) (EvalMetric, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return EvalMetric{}, false
}
