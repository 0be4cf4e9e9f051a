package replay

import (
	"fmt"

	"github.com/socassist/risk-engine/internal/config"
	"github.com/socassist/risk-engine/internal/ledger"
	"github.com/socassist/risk-engine/internal/precision"
	"github.com/socassist/risk-engine/internal/scoring"
)

// Replay actions.
const (
	ActionEscalate   = "escalate"
	ActionDeescalate = "deescalate"
	ActionUnchanged  = "unchanged"
)

// #region types
// Case is one recorded incident to re-score.
type Case struct {
	IncidentID             int64
	Title                  string
	Answers                map[string]string
	RecordedClassification string
	RecordedScore          float64
	Resolution             ledger.Resolution
}

// ReplayResult captures the outcome of re-scoring one incident.
type ReplayResult struct {
	IncidentID int64
	Action     string // "escalate" | "deescalate" | "unchanged"
	Reason     string

	RecordedClassification string
	Classification         string
	RecordedScore          float64
	FinalScore             float64
	Delta                  float64

	HardRuleID string
	Fallback   bool
	Resolution ledger.Resolution
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	ConfigVersion string
	TotalCases    int
	Escalations   int
	Deescalations int
	Unchanged     int

	// Escalated incidents that analysts had closed as false positives, and
	// de-escalated ones they had confirmed. Both are regressions worth a look.
	EscalatedFalsePositives  int
	DeescalatedTruePositives int
}

// #endregion types

// #region replay
// Replay re-scores each case against snap and compares the outcome with the
// recorded classification. A recorded tier that snap no longer defines is
// treated as less severe than every current tier. Operates entirely
// in-memory.
func Replay(snap *config.Snapshot, cases []Case) []ReplayResult {
	results := make([]ReplayResult, 0, len(cases))

	for _, c := range cases {
		res := scoring.Evaluate(snap, c.Answers)

		r := ReplayResult{
			IncidentID:             c.IncidentID,
			RecordedClassification: c.RecordedClassification,
			Classification:         res.Classification,
			RecordedScore:          c.RecordedScore,
			FinalScore:             res.FinalScore,
			Delta:                  precision.Round(res.FinalScore-c.RecordedScore, 2),
			Fallback:               res.ClassificationFallback,
			Resolution:             c.Resolution,
		}
		if res.HardRule != nil {
			r.HardRuleID = res.HardRule.ID
		}

		was, ok := snap.Severity(c.RecordedClassification)
		if !ok {
			was = -1
		}
		now, _ := snap.Severity(res.Classification)

		switch {
		case now > was:
			r.Action = ActionEscalate
			r.Reason = fmt.Sprintf("%s -> %s (score %.2f -> %.2f)", c.RecordedClassification, res.Classification, c.RecordedScore, res.FinalScore)
		case now < was:
			r.Action = ActionDeescalate
			r.Reason = fmt.Sprintf("%s -> %s (score %.2f -> %.2f)", c.RecordedClassification, res.Classification, c.RecordedScore, res.FinalScore)
		default:
			r.Action = ActionUnchanged
			r.Reason = fmt.Sprintf("stays %s", res.Classification)
		}
		results = append(results, r)
	}

	return results
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult, configVersion string) ReplaySummary {
	s := ReplaySummary{
		ConfigVersion: configVersion,
		TotalCases:    len(results),
	}
	for _, r := range results {
		switch r.Action {
		case ActionEscalate:
			s.Escalations++
			if r.Resolution == ledger.FalsePositive {
				s.EscalatedFalsePositives++
			}
		case ActionDeescalate:
			s.Deescalations++
			if r.Resolution.IsTruePositive() {
				s.DeescalatedTruePositives++
			}
		case ActionUnchanged:
			s.Unchanged++
		}
	}
	return s
}

// #endregion replay

// FromIncidents converts ledger incidents into replay cases using their raw
// answers.
func FromIncidents(incs []ledger.Incident) []Case {
	out := make([]Case, 0, len(incs))
	for _, inc := range incs {
		out = append(out, Case{
			IncidentID:             inc.ID,
			Title:                  inc.Title,
			Answers:                inc.RawAnswers,
			RecordedClassification: inc.Classification,
			RecordedScore:          inc.FinalScore,
			Resolution:             inc.Resolution,
		})
	}
	return out
}
