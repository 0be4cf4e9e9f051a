// Package testutil provides configuration fixtures shared by package tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/socassist/risk-engine/internal/config"
)

// Tier keys of the fixture configuration, least severe first.
const (
	TierInformational = "informational"
	TierSuspicious    = "suspicious"
	TierIncident      = "incident"
	TierCritical      = "critical"
	TierBreach        = "breach"
)

// EngineDoc returns the fixture engine document: unit module weights,
// contiguous tiers starting at 0, no rules.
func EngineDoc() config.EngineDoc {
	return config.EngineDoc{
		ModuleWeights: map[string]float64{
			"network":  1.0,
			"identity": 1.0,
			"endpoint": 1.0,
		},
		Thresholds: config.Thresholds{
			{Key: TierInformational, Min: 0, Max: 10, Label: "Informational"},
			{Key: TierSuspicious, Min: 10.01, Max: 30, Label: "Suspicious"},
			{Key: TierIncident, Min: 30.01, Max: 60, Label: "Incident"},
			{Key: TierCritical, Min: 60.01, Max: 100, Label: "Critical"},
			{Key: TierBreach, Min: 100.01, Max: 100000, Label: "Breach"},
		},
		Multipliers: []config.MultiplierRule{},
		HardRules:   []config.HardRule{},
		Recommendations: map[string]string{
			TierInformational: "Log and close.",
			TierSuspicious:    "Monitor the asset for 24 hours.",
			TierIncident:      "Open an incident ticket and contain the host.",
			TierCritical:      "Isolate the host and page the on-call lead.",
			TierBreach:        "Invoke the breach response plan.",
		},
	}
}

// Catalog returns the fixture question catalog.
//
//	Q1 network   yes=10 no=0
//	Q2 identity  yes=0  no=5
//	Q3 endpoint  yes=-4 no=6 unknown=2
func Catalog() config.Catalog {
	return config.Catalog{
		Modules: []config.Module{
			{ID: "network", Label: "Network", Order: 1},
			{ID: "identity", Label: "Identity", Order: 2},
			{ID: "endpoint", Label: "Endpoint", Order: 3},
		},
		Questions: []config.Question{
			{
				ID: "Q1", Module: "network", Weight: 1.0, Order: 1,
				Text: "Was data sent to an unknown external host?",
				Options: []config.Option{
					{Value: "yes", Label: "Yes", Score: 10},
					{Value: "no", Label: "No", Score: 0},
				},
			},
			{
				ID: "Q2", Module: "identity", Weight: 1.0, Order: 1,
				Text: "Did the account owner confirm the activity?",
				Options: []config.Option{
					{Value: "yes", Label: "Yes", Score: 0},
					{Value: "no", Label: "No", Score: 5},
				},
			},
			{
				ID: "Q3", Module: "endpoint", Weight: 1.0, Order: 1,
				Text: "Did the endpoint agent quarantine the file?",
				Options: []config.Option{
					{Value: "yes", Label: "Yes", Score: -4},
					{Value: "no", Label: "No", Score: 6},
					{Value: "unknown", Label: "Unknown", Score: 2},
				},
			},
		},
	}
}

// Snapshot builds a snapshot from the fixture documents after applying
// the optional mutators.
func Snapshot(t testing.TB, mutate ...func(*config.EngineDoc, *config.Catalog)) *config.Snapshot {
	t.Helper()
	eng := EngineDoc()
	cat := Catalog()
	for _, m := range mutate {
		m(&eng, &cat)
	}
	snap, err := config.NewSnapshot(eng, cat)
	require.NoError(t, err)
	return snap
}

// Cond is shorthand for a single condition.
func Cond(questionID, value string) config.Condition {
	return config.Condition{QuestionID: questionID, Value: value}
}
