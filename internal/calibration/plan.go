package calibration

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"

	"github.com/socassist/risk-engine/internal/config"
	"github.com/socassist/risk-engine/internal/ledger"
	"github.com/socassist/risk-engine/internal/precision"
)

// #region compute
// Compute is the pure calibration pass: it aggregates resolved incidents
// per question and proposes new question weights against snap. It performs
// no I/O. ctx is checked between incidents so a long aggregation can be
// abandoned without side effects.
func Compute(ctx context.Context, snap *config.Snapshot, incidents []ledger.Incident, cfg Config) (Plan, error) {
	if err := ctx.Err(); err != nil {
		return Plan{}, err
	}

	resolved := make([]ledger.Incident, 0, len(incidents))
	for _, inc := range incidents {
		if inc.Resolution.IsTerminal() {
			resolved = append(resolved, inc)
		}
	}

	plan := Plan{
		TotalResolved: len(resolved),
		Fingerprint:   Fingerprint(resolved),
		Stats:         make(map[string]QuestionStat),
	}
	if len(resolved) < cfg.MinSamples {
		plan.Decision = Decision{
			Action: ActionSkip,
			Reason: fmt.Sprintf("at least %d resolved incidents required (have %d)", cfg.MinSamples, len(resolved)),
		}
		return plan, nil
	}

	for i, inc := range resolved {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return Plan{}, err
			}
		}
		tp := inc.Resolution.IsTruePositive()
		if tp {
			plan.TruePositives++
		} else {
			plan.FalsePositives++
		}
		for _, a := range inc.Answers {
			st := plan.Stats[a.QuestionID]
			st.Occurrences++
			st.ContributionSum += a.Contribution
			if tp {
				st.TruePositives++
			} else {
				st.FalsePositives++
			}
			plan.Stats[a.QuestionID] = st
		}
	}
	plan.FPRate = float64(plan.FalsePositives) / float64(len(resolved))

	ids := make([]string, 0, len(plan.Stats))
	for id := range plan.Stats {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	weights := make(map[string]float64)
	for _, id := range ids {
		st := plan.Stats[id]
		if st.Occurrences < cfg.MinSamples {
			continue
		}
		q, ok := snap.Question(id)
		if !ok {
			continue
		}

		tpRate := float64(st.TruePositives) / float64(st.Occurrences)
		fpRate := float64(st.FalsePositives) / float64(st.Occurrences)
		errorRate := tpRate - fpRate

		newWeight := precision.Round(precision.Clamp(q.Weight+cfg.LearningRate*errorRate, cfg.MinWeight, cfg.MaxWeight), 3)
		if math.Abs(newWeight-q.Weight) <= cfg.Deadband {
			continue
		}
		weights[id] = newWeight
		plan.Adjustments = append(plan.Adjustments, Adjustment{
			QuestionID:  id,
			Module:      q.Module,
			Occurrences: st.Occurrences,
			TPRate:      tpRate,
			FPRate:      fpRate,
			OldWeight:   q.Weight,
			NewWeight:   newWeight,
		})
	}

	if len(weights) == 0 {
		plan.Decision = Decision{Action: ActionNoOp, Reason: "no weight moved beyond the deadband"}
		return plan, nil
	}

	next, err := snap.WithQuestionWeights(weights)
	if err != nil {
		return Plan{}, fmt.Errorf("apply weights: %w", err)
	}
	plan.Snapshot = next
	plan.Decision = Decision{
		Action: ActionCommit,
		Reason: fmt.Sprintf("%d question weights adjusted from %d resolved incidents", len(weights), len(resolved)),
	}
	return plan, nil
}
// #endregion compute

// #region fingerprint
// Fingerprint identifies a set of resolved incidents by id and verdict.
// Two ledgers with the same fingerprint yield the same aggregation.
func Fingerprint(resolved []ledger.Incident) string {
	keys := make([]string, 0, len(resolved))
	for _, inc := range resolved {
		keys = append(keys, fmt.Sprintf("%d:%s", inc.ID, inc.Resolution))
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}
// #endregion fingerprint
