package scoring

import "github.com/socassist/risk-engine/internal/config"

// #region answer-detail
// AnswerDetail explains how one accepted answer contributed to the score.
type AnswerDetail struct {
	QuestionID   string  `json:"question_id"`
	QuestionText string  `json:"question_text"`
	Module       string  `json:"module"`
	Value        string  `json:"value"`
	ValueLabel   string  `json:"value_label"`
	RawScore     float64 `json:"raw_score"`
	Contribution float64 `json:"contribution"`
}
// #endregion answer-detail

// #region result
// Result is the full output of one evaluation.
type Result struct {
	BaseScore  float64 `json:"base_score"`
	FinalScore float64 `json:"final_score"`
	Multiplier float64 `json:"multiplier"`

	// Classification is the effective tier: the more severe of
	// ScoreClassification and the matched hard rule's tier.
	Classification      string `json:"classification"`
	ScoreClassification string `json:"score_classification"`

	// ClassificationFallback is set when FinalScore fell outside every
	// configured range and the most severe tier was used instead.
	ClassificationFallback bool `json:"classification_fallback"`

	Threshold      config.Tier `json:"threshold"`
	Recommendation string      `json:"recommendation"`

	ModuleScores      map[string]float64      `json:"module_scores"`
	Answers           []AnswerDetail          `json:"answer_details"`
	HardRule          *config.HardRule        `json:"hard_rule"`
	OverrideMessage   string                  `json:"override_message,omitempty"`
	ActiveMultipliers []config.MultiplierRule `json:"active_multipliers"`

	ConfigVersion string `json:"config_version,omitempty"`
}
// #endregion result
