package scoring

import "github.com/socassist/risk-engine/internal/config"

// #region classify
// Classify maps a score to the first tier, in configured order, whose closed
// range contains it. When no range matches, the most severe tier is returned
// with matched=false: a configuration gap fails closed, never open.
func Classify(snap *config.Snapshot, score float64) (key string, matched bool) {
	for _, t := range snap.Tiers() {
		if t.Contains(score) {
			return t.Key, true
		}
	}
	return snap.MostSevere().Key, false
}

// MoreSevere returns whichever of a and b sits later in severity order. An
// unknown key loses to a known one.
func MoreSevere(snap *config.Snapshot, a, b string) string {
	ia, okA := snap.Severity(a)
	ib, okB := snap.Severity(b)
	switch {
	case !okB:
		return a
	case !okA:
		return b
	case ib > ia:
		return b
	default:
		return a
	}
}
// #endregion classify
