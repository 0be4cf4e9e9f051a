package eval

// #region eval-config
// EvalConfig holds the bounds a configuration must respect before it is
// published.
type EvalConfig struct {
	MinWeight  float64 // lowest allowed question or module weight
	MaxWeight  float64 // highest allowed question or module weight
	GapEpsilon float64 // tier gaps at or below this are treated as contiguous

	MaxOptionScore float64 // largest allowed absolute option score
}

// DefaultEvalConfig returns the bounds used for manual edits.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		MinWeight:  0.1,
		MaxWeight:  5.0,
		GapEpsilon: 0.01,

		MaxOptionScore: 10000,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result. Value is the
// number of offending items.
type EvalMetric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Pass  bool    `json:"pass"`
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of configuration validation.
type EvalResult struct {
	Passed  bool         `json:"passed"`
	Metrics []EvalMetric `json:"metrics"`
	Reason  string       `json:"reason"`
}

// #endregion eval-result
