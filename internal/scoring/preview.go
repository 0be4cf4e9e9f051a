package scoring

import (
	"github.com/socassist/risk-engine/internal/config"
	"github.com/socassist/risk-engine/internal/precision"
)

// Preview returns, for every question and option, the contribution that
// option would make if selected: raw score x module weight x question
// weight, rounded to 2 places. Form front-ends use it for a live indicator.
func Preview(snap *config.Snapshot) map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(snap.Questions()))
	for _, q := range snap.Questions() {
		mw := snap.ModuleWeight(q.Module)
		opts := make(map[string]float64, len(q.Options))
		for _, o := range q.Options {
			opts[o.Value] = precision.Round(o.Score*mw*q.Weight, 2)
		}
		out[q.ID] = opts
	}
	return out
}
