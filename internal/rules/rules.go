// Package rules matches configured hard rules and multiplier rules against a
// raw answer set. Conditions compare literal question/value pairs; scores and
// weights play no part here.
package rules

import (
	"github.com/socassist/risk-engine/internal/config"
	"github.com/socassist/risk-engine/internal/precision"
)

// #region matching

// Matches reports whether every condition is satisfied by answers. An empty
// condition list never matches.
func Matches(answers map[string]string, conds []config.Condition) bool {
	if len(conds) == 0 {
		return false
	}
	for _, c := range conds {
		v, ok := answers[c.QuestionID]
		if !ok || v != c.Value {
			return false
		}
	}
	return true
}

// #endregion matching

// #region hard-rules

// MatchHardRule returns the first rule, in declaration order, whose
// conditions all hold. Later rules are not checked once one matches.
func MatchHardRule(answers map[string]string, hardRules []config.HardRule) *config.HardRule {
	for i := range hardRules {
		if Matches(answers, hardRules[i].Conditions) {
			r := hardRules[i]
			return &r
		}
	}
	return nil
}

// #endregion hard-rules

// #region multipliers

// Composition is the product of every matching multiplier rule.
type Composition struct {
	Factor float64
	Active []config.MultiplierRule
}

// ComposeMultipliers applies every matching rule. Factors multiply and the
// product is rounded to 3 decimals; with no match the factor is 1.
func ComposeMultipliers(answers map[string]string, multipliers []config.MultiplierRule) Composition {
	total := 1.0
	active := []config.MultiplierRule{}
	for _, m := range multipliers {
		if Matches(answers, m.Conditions) {
			total *= m.Multiplier
			active = append(active, m)
		}
	}
	return Composition{
		Factor: precision.Round(total, 3),
		Active: active,
	}
}

// #endregion multipliers
