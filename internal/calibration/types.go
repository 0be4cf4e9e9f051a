package calibration

import (
	"time"

	"github.com/socassist/risk-engine/internal/config"
)

// #region config
// Config holds the learning parameters for a calibration run.
type Config struct {
	MinSamples   int     // minimum resolved incidents overall and per question (default 5)
	LearningRate float64 // step size per unit of error rate (default 0.08)
	Deadband     float64 // changes at or below this are not committed (default 0.005)
	MinWeight    float64 // lower clamp on question weight (default 0.1)
	MaxWeight    float64 // upper clamp on question weight (default 3.0)
}

// DefaultConfig returns the production parameters.
func DefaultConfig() Config {
	return Config{
		MinSamples:   5,
		LearningRate: 0.08,
		Deadband:     0.005,
		MinWeight:    0.1,
		MaxWeight:    3.0,
	}
}
// #endregion config

// #region decision
// Decision records what a calibration pass decided.
type Decision struct {
	Action string // "commit" | "no_op" | "skip"
	Reason string
}

const (
	ActionCommit = "commit"
	ActionNoOp   = "no_op"
	ActionSkip   = "skip"
)
// #endregion decision

// #region stats
// QuestionStat aggregates one question's appearances across resolved
// incidents.
type QuestionStat struct {
	Occurrences     int
	TruePositives   int
	FalsePositives  int
	ContributionSum float64
}

// Adjustment is one question weight change proposed by a pass.
type Adjustment struct {
	QuestionID  string  `json:"question_id"`
	Module      string  `json:"module"`
	Occurrences int     `json:"occurrences"`
	TPRate      float64 `json:"tp_rate"`
	FPRate      float64 `json:"fp_rate"`
	OldWeight   float64 `json:"old_weight"`
	NewWeight   float64 `json:"new_weight"`
}
// #endregion stats

// #region plan
// Plan is the output of the pure calibration pass.
type Plan struct {
	Decision       Decision
	TotalResolved  int
	TruePositives  int
	FalsePositives int
	FPRate         float64 // fraction of resolved incidents judged false positive
	Fingerprint    string
	Stats          map[string]QuestionStat
	Adjustments    []Adjustment

	// Snapshot is the recalibrated configuration when Decision.Action is
	// commit, nil otherwise.
	Snapshot *config.Snapshot
}
// #endregion plan

// #region summary
// Status of a calibration run.
type Status string

const (
	StatusSkipped   Status = "skipped"
	StatusCompleted Status = "completed"
)

// Summary is the externally visible result of a run. FPRate is a
// percentage rounded to one decimal. FalseNegatives is always 0: missed
// threats never reach the ledger, so they cannot be counted.
type Summary struct {
	Status         Status       `json:"status"`
	Reason         string       `json:"reason,omitempty"`
	TotalResolved  int          `json:"total_resolved"`
	TruePositives  int          `json:"true_positives"`
	FalsePositives int          `json:"false_positives"`
	FalseNegatives int          `json:"false_negatives"`
	FPRate         float64      `json:"fp_rate"`
	Adjustments    int          `json:"adjustments"`
	Changes        []Adjustment `json:"changes,omitempty"`
	RunID          string       `json:"run_id,omitempty"`
	ConfigVersion  string       `json:"config_version,omitempty"`
	Timestamp      time.Time    `json:"timestamp"`
}
// #endregion summary
