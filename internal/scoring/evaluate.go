package scoring

import (
	"sort"

	"github.com/socassist/risk-engine/internal/config"
	"github.com/socassist/risk-engine/internal/precision"
	"github.com/socassist/risk-engine/internal/rules"
)

// #region evaluate
// Evaluate scores an answer set against a configuration snapshot. It is a
// pure function: the same snapshot and answers always produce the same
// Result, and nothing outside the return value is touched.
//
// Unknown question ids and unknown option values contribute nothing and are
// left out of the answer details.
func Evaluate(snap *config.Snapshot, answers map[string]string) Result {
	// Sorted iteration keeps float accumulation order stable.
	qids := make([]string, 0, len(answers))
	for qid := range answers {
		qids = append(qids, qid)
	}
	sort.Strings(qids)

	moduleScores := make(map[string]float64)
	details := make([]AnswerDetail, 0, len(answers))

	for _, qid := range qids {
		q, ok := snap.Question(qid)
		if !ok {
			continue
		}
		value := answers[qid]
		opt, ok := q.Option(value)
		if !ok || opt.Score == 0 {
			continue
		}

		contribution := precision.Round(opt.Score*snap.ModuleWeight(q.Module)*q.Weight, 2)
		moduleScores[q.Module] += contribution
		details = append(details, AnswerDetail{
			QuestionID:   qid,
			QuestionText: q.Text,
			Module:       q.Module,
			Value:        value,
			ValueLabel:   opt.Label,
			RawScore:     opt.Score,
			Contribution: contribution,
		})
	}

	modules := make([]string, 0, len(moduleScores))
	for m := range moduleScores {
		modules = append(modules, m)
	}
	sort.Strings(modules)
	var sum float64
	for _, m := range modules {
		moduleScores[m] = precision.Round(moduleScores[m], 2)
		sum += moduleScores[m]
	}
	base := precision.Round(sum, 2)

	hardRule := rules.MatchHardRule(answers, snap.HardRules())
	comp := rules.ComposeMultipliers(answers, snap.Multipliers())
	final := precision.Round(base*comp.Factor, 2)

	scoreClass, matched := Classify(snap, final)
	effective := scoreClass
	var override string
	if hardRule != nil {
		effective = MoreSevere(snap, scoreClass, hardRule.Classification)
		override = hardRule.OverrideMessage
	}

	sort.SliceStable(details, func(i, j int) bool {
		if details[i].Contribution != details[j].Contribution {
			return details[i].Contribution > details[j].Contribution
		}
		return details[i].QuestionID < details[j].QuestionID
	})

	tier, _ := snap.Tier(effective)
	return Result{
		BaseScore:              base,
		FinalScore:             final,
		Multiplier:             comp.Factor,
		Classification:         effective,
		ScoreClassification:    scoreClass,
		ClassificationFallback: !matched,
		Threshold:              tier,
		Recommendation:         snap.Recommendation(effective),
		ModuleScores:           moduleScores,
		Answers:                details,
		HardRule:               hardRule,
		OverrideMessage:        override,
		ActiveMultipliers:      comp.Active,
		ConfigVersion:          snap.Version(),
	}
}
// #endregion evaluate
