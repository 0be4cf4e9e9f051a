package audit

import "time"

// Change kinds recorded in weight_history.
const (
	KindQuestionWeight = "question_weight"
	KindModuleWeight   = "module_weight"
	KindThreshold      = "threshold"
)

// Change sources.
const (
	SourceCalibration = "calibration"
	SourceManual      = "manual"
	SourceRollback    = "rollback"
)

// #region weight-change
// WeightChange is a single row in the weight_history table. For threshold
// edits OldValue/NewValue hold the tier minimum and OldMax/NewMax the
// maximum; they are zero otherwise.
type WeightChange struct {
	ID            int64     `json:"id"`
	Kind          string    `json:"kind"`
	TargetID      string    `json:"target_id"`
	OldValue      float64   `json:"old_value"`
	NewValue      float64   `json:"new_value"`
	OldMax        float64   `json:"old_max,omitempty"`
	NewMax        float64   `json:"new_max,omitempty"`
	Reason        string    `json:"reason"`
	Source        string    `json:"source"`
	ChangedBy     string    `json:"changed_by,omitempty"`
	ConfigVersion string    `json:"config_version"`
	RunID         string    `json:"run_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
// #endregion weight-change

// #region calibration-run
// CalibrationRun is a single row in the calibration_runs table, one per
// completed calibration.
type CalibrationRun struct {
	RunID          string    `json:"run_id"`
	ConfigVersion  string    `json:"config_version"`
	TotalResolved  int       `json:"total_resolved"`
	TruePositives  int       `json:"true_positives"`
	FalsePositives int       `json:"false_positives"`
	FalseNegatives int       `json:"false_negatives"`
	FPRate         float64   `json:"fp_rate"`
	Adjustments    int       `json:"adjustments"`
	Notes          string    `json:"notes"`
	Fingerprint    string    `json:"ledger_fingerprint,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
// #endregion calibration-run
