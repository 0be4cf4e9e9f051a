package ledger

import "time"

// #region resolution
// Resolution is the analyst's final verdict on an incident.
type Resolution string

const (
	FalsePositive         Resolution = "fp"
	TruePositiveResolved  Resolution = "tp_resolved"
	TruePositiveEscalated Resolution = "tp_escalated"
	Ongoing               Resolution = "ongoing"
)

// Valid reports whether r is one of the known resolutions.
func (r Resolution) Valid() bool {
	switch r {
	case FalsePositive, TruePositiveResolved, TruePositiveEscalated, Ongoing:
		return true
	}
	return false
}

// IsTerminal reports whether r closes the incident for calibration.
func (r Resolution) IsTerminal() bool {
	return r == FalsePositive || r.IsTruePositive()
}

// IsTruePositive reports whether r confirms the threat was real.
func (r Resolution) IsTruePositive() bool {
	return r == TruePositiveResolved || r == TruePositiveEscalated
}
// #endregion resolution

// #region incident
// AnswerRecord is one scored answer kept with its incident.
type AnswerRecord struct {
	QuestionID   string  `json:"question_id"`
	Module       string  `json:"module"`
	Value        string  `json:"value"`
	RawScore     float64 `json:"raw_score"`
	Contribution float64 `json:"contribution"`
}

// Incident is one evaluated questionnaire and, once known, its outcome.
// RawAnswers holds the full submitted answer set, including answers that
// contributed nothing; Answers holds only the scored ones.
type Incident struct {
	ID             int64             `json:"id"`
	Title          string            `json:"title,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	BaseScore      float64           `json:"base_score"`
	FinalScore     float64           `json:"final_score"`
	Multiplier     float64           `json:"multiplier"`
	Classification string            `json:"classification"`
	HardRuleID     string            `json:"hard_rule_id,omitempty"`
	ConfigVersion  string            `json:"config_version,omitempty"`
	Resolution     Resolution        `json:"resolution,omitempty"`
	AnalystName    string            `json:"analyst_name,omitempty"`
	AnalystNotes   string            `json:"analyst_notes,omitempty"`
	ResolvedAt     *time.Time        `json:"resolved_at,omitempty"`
	RawAnswers     map[string]string `json:"raw_answers"`
	Answers        []AnswerRecord    `json:"answers,omitempty"`
}
// #endregion incident
