package rules

import (
	"testing"

	"github.com/socassist/risk-engine/internal/config"
)

func cond(qid, value string) config.Condition {
	return config.Condition{QuestionID: qid, Value: value}
}

func TestMatchHardRuleFirstMatchWins(t *testing.T) {
	hard := []config.HardRule{
		{ID: "exfil", Conditions: []config.Condition{cond("q1", "yes"), cond("q2", "yes")}, Classification: "breach"},
		{ID: "q1-only", Conditions: []config.Condition{cond("q1", "yes")}, Classification: "critical"},
		{ID: "q1-again", Conditions: []config.Condition{cond("q1", "yes")}, Classification: "incident"},
	}

	got := MatchHardRule(map[string]string{"q1": "yes", "q2": "no"}, hard)
	if got == nil {
		t.Fatal("expected a match")
	}
	if got.ID != "q1-only" {
		t.Fatalf("expected q1-only, got %s", got.ID)
	}

	got = MatchHardRule(map[string]string{"q1": "yes", "q2": "yes"}, hard)
	if got == nil || got.ID != "exfil" {
		t.Fatalf("expected exfil to win by declaration order, got %+v", got)
	}
}

func TestMatchHardRuleRequiresAllConditions(t *testing.T) {
	hard := []config.HardRule{
		{ID: "both", Conditions: []config.Condition{cond("q1", "yes"), cond("q2", "yes")}, Classification: "breach"},
	}
	if got := MatchHardRule(map[string]string{"q1": "yes"}, hard); got != nil {
		t.Fatalf("expected no match with a missing answer, got %s", got.ID)
	}
	if got := MatchHardRule(map[string]string{"q1": "yes", "q2": "YES"}, hard); got != nil {
		t.Fatalf("values compare literally, got %s", got.ID)
	}
}

func TestMatchHardRuleReturnsCopy(t *testing.T) {
	hard := []config.HardRule{
		{ID: "r1", Conditions: []config.Condition{cond("q1", "yes")}, Classification: "breach"},
	}
	got := MatchHardRule(map[string]string{"q1": "yes"}, hard)
	got.ID = "mutated"
	if hard[0].ID != "r1" {
		t.Fatal("caller mutation leaked into rule table")
	}
}

func TestEmptyConditionsNeverMatch(t *testing.T) {
	if Matches(map[string]string{"q1": "yes"}, nil) {
		t.Fatal("empty condition list must not match")
	}
}

func TestComposeMultipliersAllMatchingApply(t *testing.T) {
	mults := []config.MultiplierRule{
		{ID: "off-hours", Conditions: []config.Condition{cond("q2", "no")}, Multiplier: 1.5},
		{ID: "privileged", Conditions: []config.Condition{cond("q1", "yes")}, Multiplier: 2.0},
		{ID: "unmatched", Conditions: []config.Condition{cond("q9", "yes")}, Multiplier: 4.0},
	}

	comp := ComposeMultipliers(map[string]string{"q1": "yes", "q2": "no"}, mults)
	if comp.Factor != 3.0 {
		t.Fatalf("expected factor 3.0, got %v", comp.Factor)
	}
	if len(comp.Active) != 2 {
		t.Fatalf("expected 2 active multipliers, got %d", len(comp.Active))
	}
	if comp.Active[0].ID != "off-hours" || comp.Active[1].ID != "privileged" {
		t.Fatalf("active list should keep declaration order, got %s, %s", comp.Active[0].ID, comp.Active[1].ID)
	}
}

func TestComposeMultipliersNeutralWhenNothingMatches(t *testing.T) {
	mults := []config.MultiplierRule{
		{ID: "m", Conditions: []config.Condition{cond("q1", "yes")}, Multiplier: 2.5},
	}
	comp := ComposeMultipliers(map[string]string{"q1": "no"}, mults)
	if comp.Factor != 1.0 {
		t.Fatalf("expected neutral factor, got %v", comp.Factor)
	}
	if len(comp.Active) != 0 {
		t.Fatalf("expected no active multipliers, got %d", len(comp.Active))
	}
}

func TestComposeMultipliersRoundsToThreePlaces(t *testing.T) {
	mults := []config.MultiplierRule{
		{ID: "a", Conditions: []config.Condition{cond("q1", "yes")}, Multiplier: 1.1},
		{ID: "b", Conditions: []config.Condition{cond("q2", "yes")}, Multiplier: 1.15},
		{ID: "c", Conditions: []config.Condition{cond("q3", "yes")}, Multiplier: 1.05},
	}
	comp := ComposeMultipliers(map[string]string{"q1": "yes", "q2": "yes", "q3": "yes"}, mults)
	// 1.1 * 1.15 * 1.05 = 1.328250
	if comp.Factor != 1.328 {
		t.Fatalf("expected 1.328, got %v", comp.Factor)
	}
}

func TestComposeMultipliersCommutative(t *testing.T) {
	mults := []config.MultiplierRule{
		{ID: "a", Conditions: []config.Condition{cond("q1", "yes")}, Multiplier: 1.3},
		{ID: "b", Conditions: []config.Condition{cond("q2", "yes")}, Multiplier: 1.7},
		{ID: "c", Conditions: []config.Condition{cond("q3", "yes")}, Multiplier: 0.9},
		{ID: "d", Conditions: []config.Condition{cond("q4", "yes")}, Multiplier: 2.2},
	}
	answers := map[string]string{"q1": "yes", "q2": "yes", "q3": "yes", "q4": "yes"}
	want := ComposeMultipliers(answers, mults).Factor

	perms := [][]int{{3, 2, 1, 0}, {1, 3, 0, 2}, {2, 0, 3, 1}, {0, 2, 1, 3}}
	for _, p := range perms {
		reordered := make([]config.MultiplierRule, len(p))
		for i, idx := range p {
			reordered[i] = mults[idx]
		}
		if got := ComposeMultipliers(answers, reordered).Factor; got != want {
			t.Fatalf("order %v: expected %v, got %v", p, want, got)
		}
	}
}
