package config

// #region catalog-types

// Option is one selectable answer to a question. Score is the raw, signed
// risk contribution before any weighting.
type Option struct {
	Value string  `json:"value"`
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Question is a single questionnaire item.
type Question struct {
	ID      string   `json:"id"`
	Module  string   `json:"module"`
	Text    string   `json:"text"`
	Weight  float64  `json:"weight"`
	Order   int      `json:"order"`
	Options []Option `json:"options"`
}

// Option returns the option with the given value.
func (q Question) Option(value string) (Option, bool) {
	for _, o := range q.Options {
		if o.Value == value {
			return o, true
		}
	}
	return Option{}, false
}

// Module is a thematic grouping of questions.
type Module struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Order int    `json:"order"`
}

// Catalog is the question catalog document.
type Catalog struct {
	Modules   []Module   `json:"modules"`
	Questions []Question `json:"questions"`
}

// #endregion catalog-types

// #region rule-types

// Condition matches when the answer to QuestionID equals Value literally.
type Condition struct {
	QuestionID string `json:"question_id"`
	Value      string `json:"value"`
}

// HardRule forces a minimum classification when all conditions match.
type HardRule struct {
	ID              string      `json:"id"`
	Conditions      []Condition `json:"conditions"`
	Classification  string      `json:"classification"`
	OverrideMessage string      `json:"override_message,omitempty"`
}

// MultiplierRule scales the final score when all conditions match.
type MultiplierRule struct {
	ID          string      `json:"id"`
	Description string      `json:"description,omitempty"`
	Conditions  []Condition `json:"conditions"`
	Multiplier  float64     `json:"multiplier"`
}

// #endregion rule-types

// #region threshold-types

// Tier is one classification level with its closed score range.
type Tier struct {
	Key   string  `json:"-"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Label string  `json:"label"`
	Emoji string  `json:"emoji,omitempty"`
	Color string  `json:"color,omitempty"`
}

// Contains reports whether score lies in [Min, Max].
func (t Tier) Contains(score float64) bool {
	return t.Min <= score && score <= t.Max
}

// Thresholds is the ordered tier list, least severe first. It is encoded as
// a JSON object whose key order is the severity order.
type Thresholds []Tier

// Bounds is a replacement [Min, Max] range for a tier.
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// #endregion threshold-types

// #region engine-doc

// EngineDoc is the engine configuration document.
type EngineDoc struct {
	ModuleWeights   map[string]float64 `json:"module_weights"`
	Thresholds      Thresholds         `json:"thresholds"`
	Multipliers     []MultiplierRule   `json:"multipliers"`
	HardRules       []HardRule         `json:"hard_rules"`
	Recommendations map[string]string  `json:"recommendations"`
}

// #endregion engine-doc
